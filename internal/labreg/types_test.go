package labreg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDraft() DeviceDraft {
	return DeviceDraft{
		StudentName:        "Ada Lovelace",
		StudentID:          "S1",
		Phone:              "0241234567",
		Email:              "ada@example.edu",
		SerialNumber:       "SN1",
		MACAddress:         "AA:BB:CC:DD:EE:FF",
		LaptopBrand:        "Dell",
		OperatingSystem:    "Linux",
		AntiVirusInstalled: true,
	}
}

func TestDraftValidate(t *testing.T) {
	draft := validDraft()
	require.NoError(t, draft.Validate())

	tests := []struct {
		name   string
		mutate func(*DeviceDraft)
	}{
		{"missing student name", func(d *DeviceDraft) { d.StudentName = "" }},
		{"missing student id", func(d *DeviceDraft) { d.StudentID = "  " }},
		{"missing serial", func(d *DeviceDraft) { d.SerialNumber = "" }},
		{"missing mac", func(d *DeviceDraft) { d.MACAddress = "" }},
		{"unknown brand", func(d *DeviceDraft) { d.LaptopBrand = "Commodore" }},
		{"unknown os", func(d *DeviceDraft) { d.OperatingSystem = "TempleOS" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDraft()
			tt.mutate(&d)
			assert.Error(t, d.Validate())
		})
	}
}

func TestFindConflict(t *testing.T) {
	existing := []Device{
		{ID: 1, StudentID: "S1", SerialNumber: "SN1", MACAddress: "AA:BB:CC:DD:EE:FF"},
		{ID: 2, StudentID: "S2", SerialNumber: "SN2", MACAddress: "11:22:33:44:55:66"},
	}

	clear := validDraft()
	clear.StudentID = "S9"
	clear.SerialNumber = "SN9"
	clear.MACAddress = "FF:FF:FF:FF:FF:FF"
	assert.Nil(t, FindConflict(existing, &clear))

	dupStudent := clear
	dupStudent.StudentID = "S1"
	conflict := FindConflict(existing, &dupStudent)
	require.NotNil(t, conflict)
	assert.Equal(t, ConflictStudentID, conflict.Field)

	dupSerial := clear
	dupSerial.SerialNumber = "sn2" // case-insensitive
	conflict = FindConflict(existing, &dupSerial)
	require.NotNil(t, conflict)
	assert.Equal(t, ConflictSerialNumber, conflict.Field)

	dupMAC := clear
	dupMAC.MACAddress = "aa:bb:cc:dd:ee:ff"
	conflict = FindConflict(existing, &dupMAC)
	require.NotNil(t, conflict)
	assert.Equal(t, ConflictMACAddress, conflict.Field)
}

func TestPatchApplyPreservesOmittedFields(t *testing.T) {
	original := Device{
		ID:              7,
		StudentName:     "Ada Lovelace",
		StudentID:       "S1",
		Phone:           "0241234567",
		Email:           "ada@example.edu",
		SerialNumber:    "SN1",
		MACAddress:      "AA:BB:CC:DD:EE:FF",
		LaptopBrand:     "Dell",
		OperatingSystem: "Linux",
		Verified:        true,
	}

	name := "Ada L."
	patch := DevicePatch{StudentName: &name}
	merged := patch.Apply(original)

	assert.Equal(t, "Ada L.", merged.StudentName)
	assert.Equal(t, original.Email, merged.Email)
	assert.Equal(t, original.MACAddress, merged.MACAddress)
	assert.Equal(t, original.Phone, merged.Phone)
	assert.Equal(t, original.Verified, merged.Verified)
	// Input device untouched.
	assert.Equal(t, "Ada Lovelace", original.StudentName)
}
