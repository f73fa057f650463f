package apiclient

import (
	"time"

	"labreg/internal/labreg"
)

// wireDevice is the backend's JSON shape for a device. Older backend
// builds emitted studentID and Verified instead of studentId and verified;
// both spellings are accepted on decode and both are emitted on encode so
// legacy consumers of the same API keep working. The mapping lives here,
// at the API boundary, and nowhere else.
type wireDevice struct {
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
	StudentName        string    `json:"studentName"`
	StudentID          string    `json:"studentId,omitempty"`
	StudentIDAlt       string    `json:"studentID,omitempty"`
	Phone              string    `json:"phone"`
	Email              string    `json:"email"`
	SerialNumber       string    `json:"serialNumber"`
	MACAddress         string    `json:"macAddress"`
	LaptopBrand        string    `json:"laptopBrand"`
	OperatingSystem    string    `json:"operatingSystem"`
	Verified           *bool     `json:"verified,omitempty"`
	VerifiedAlt        *bool     `json:"Verified,omitempty"`
	ID                 int       `json:"id"`
	AntiVirusInstalled bool      `json:"antiVirusInstalled"`
}

// device resolves the naming variants into the canonical in-memory shape.
func (w *wireDevice) device() labreg.Device {
	studentID := w.StudentID
	if studentID == "" {
		studentID = w.StudentIDAlt
	}
	verified := false
	switch {
	case w.Verified != nil:
		verified = *w.Verified
	case w.VerifiedAlt != nil:
		verified = *w.VerifiedAlt
	}
	return labreg.Device{
		ID:                 w.ID,
		StudentName:        w.StudentName,
		StudentID:          studentID,
		Phone:              w.Phone,
		Email:              w.Email,
		SerialNumber:       w.SerialNumber,
		MACAddress:         w.MACAddress,
		LaptopBrand:        w.LaptopBrand,
		OperatingSystem:    w.OperatingSystem,
		AntiVirusInstalled: w.AntiVirusInstalled,
		Verified:           verified,
		CreatedAt:          w.CreatedAt,
		UpdatedAt:          w.UpdatedAt,
	}
}

func toWire(d labreg.Device) wireDevice {
	verified := d.Verified
	return wireDevice{
		ID:                 d.ID,
		StudentName:        d.StudentName,
		StudentID:          d.StudentID,
		StudentIDAlt:       d.StudentID,
		Phone:              d.Phone,
		Email:              d.Email,
		SerialNumber:       d.SerialNumber,
		MACAddress:         d.MACAddress,
		LaptopBrand:        d.LaptopBrand,
		OperatingSystem:    d.OperatingSystem,
		AntiVirusInstalled: d.AntiVirusInstalled,
		Verified:           &verified,
		VerifiedAlt:        &verified,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}
}

// wireDraft is the registration payload. Verified is never sent: the
// backend owns that transition.
type wireDraft struct {
	StudentName        string `json:"studentName"`
	StudentID          string `json:"studentId"`
	StudentIDAlt       string `json:"studentID"`
	Phone              string `json:"phone"`
	Email              string `json:"email"`
	SerialNumber       string `json:"serialNumber"`
	MACAddress         string `json:"macAddress"`
	LaptopBrand        string `json:"laptopBrand"`
	OperatingSystem    string `json:"operatingSystem"`
	AntiVirusInstalled bool   `json:"antiVirusInstalled"`
}

func draftToWire(d *labreg.DeviceDraft) wireDraft {
	return wireDraft{
		StudentName:        d.StudentName,
		StudentID:          d.StudentID,
		StudentIDAlt:       d.StudentID,
		Phone:              d.Phone,
		Email:              d.Email,
		SerialNumber:       d.SerialNumber,
		MACAddress:         d.MACAddress,
		LaptopBrand:        d.LaptopBrand,
		OperatingSystem:    d.OperatingSystem,
		AntiVirusInstalled: d.AntiVirusInstalled,
	}
}

// apiError is the backend's error body. Field is set on uniqueness
// conflicts and names the offending field.
type apiError struct {
	Message string `json:"error"`
	Field   string `json:"field,omitempty"`
}
