// Package labreg defines shared data structures for the laptop registry.
package labreg

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Device represents a registered laptop and its owner.
type Device struct {
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
	StudentName        string    `json:"studentName"`
	StudentID          string    `json:"studentId"`
	Phone              string    `json:"phone"`
	Email              string    `json:"email"`
	SerialNumber       string    `json:"serialNumber"`
	MACAddress         string    `json:"macAddress"`
	LaptopBrand        string    `json:"laptopBrand"`
	OperatingSystem    string    `json:"operatingSystem"`
	ID                 int       `json:"id"`
	AntiVirusInstalled bool      `json:"antiVirusInstalled"`
	Verified           bool      `json:"verified"`
}

// DeviceDraft is the payload for registering a new device. The backend
// assigns ID and timestamps; Verified always starts false.
type DeviceDraft struct {
	StudentName        string `json:"studentName"`
	StudentID          string `json:"studentId"`
	Phone              string `json:"phone"`
	Email              string `json:"email"`
	SerialNumber       string `json:"serialNumber"`
	MACAddress         string `json:"macAddress"`
	LaptopBrand        string `json:"laptopBrand"`
	OperatingSystem    string `json:"operatingSystem"`
	AntiVirusInstalled bool   `json:"antiVirusInstalled"`
}

// DevicePatch carries the fields the edit flow may change. Nil fields are
// left untouched on merge; email and MAC address are deliberately absent
// because they are immutable once registered.
type DevicePatch struct {
	StudentName        *string
	StudentID          *string
	Phone              *string
	SerialNumber       *string
	LaptopBrand        *string
	OperatingSystem    *string
	AntiVirusInstalled *bool
}

// Laptop brand and operating system option lists, as presented by the
// registration form.
var (
	Brands           = []string{"Dell", "HP", "Lenovo", "Apple", "Asus", "Acer", "Toshiba", "Other"}
	OperatingSystems = []string{"Windows", "macOS", "Linux", "ChromeOS", "Other"}
)

// ConflictField identifies which uniqueness invariant a registration
// violated. Values match the field names used on the wire.
type ConflictField string

const (
	ConflictStudentID    ConflictField = "studentId"
	ConflictSerialNumber ConflictField = "serialNumber"
	ConflictMACAddress   ConflictField = "macAddress"
)

// ConflictError reports a uniqueness violation on a single field. It is
// returned both by the advisory pre-submit check and when the backend
// rejects a registration.
type ConflictError struct {
	Field ConflictField
}

func (e *ConflictError) Error() string {
	switch e.Field {
	case ConflictStudentID:
		return "a device is already registered for this student ID"
	case ConflictSerialNumber:
		return "a device with this serial number is already registered"
	case ConflictMACAddress:
		return "a device with this MAC address is already registered"
	default:
		return fmt.Sprintf("duplicate value for %s", string(e.Field))
	}
}

// ErrNotFound is returned when an operation references a device ID that is
// not in the working set.
var ErrNotFound = errors.New("device not found")

// Validate checks that every required field of a draft is present and that
// brand and OS come from the fixed option lists.
func (d *DeviceDraft) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"studentName", d.StudentName},
		{"studentId", d.StudentID},
		{"phone", d.Phone},
		{"email", d.Email},
		{"serialNumber", d.SerialNumber},
		{"macAddress", d.MACAddress},
		{"laptopBrand", d.LaptopBrand},
		{"operatingSystem", d.OperatingSystem},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("missing required field %s", f.name)
		}
	}
	if !contains(Brands, d.LaptopBrand) {
		return fmt.Errorf("unknown laptop brand %q", d.LaptopBrand)
	}
	if !contains(OperatingSystems, d.OperatingSystem) {
		return fmt.Errorf("unknown operating system %q", d.OperatingSystem)
	}
	return nil
}

// FindConflict checks a draft against the currently loaded device list and
// returns the first violated uniqueness field, or nil if the draft is
// clear. The check is advisory: the backend performs the authoritative one.
func FindConflict(devices []Device, draft *DeviceDraft) *ConflictError {
	for i := range devices {
		d := &devices[i]
		switch {
		case equalFold(d.StudentID, draft.StudentID):
			return &ConflictError{Field: ConflictStudentID}
		case equalFold(d.SerialNumber, draft.SerialNumber):
			return &ConflictError{Field: ConflictSerialNumber}
		case equalFold(d.MACAddress, draft.MACAddress):
			return &ConflictError{Field: ConflictMACAddress}
		}
	}
	return nil
}

// Apply merges a patch over a device, leaving fields the patch omits
// untouched. The result is a copy; the input device is not modified.
func (p *DevicePatch) Apply(d Device) Device {
	if p.StudentName != nil {
		d.StudentName = *p.StudentName
	}
	if p.StudentID != nil {
		d.StudentID = *p.StudentID
	}
	if p.Phone != nil {
		d.Phone = *p.Phone
	}
	if p.SerialNumber != nil {
		d.SerialNumber = *p.SerialNumber
	}
	if p.LaptopBrand != nil {
		d.LaptopBrand = *p.LaptopBrand
	}
	if p.OperatingSystem != nil {
		d.OperatingSystem = *p.OperatingSystem
	}
	if p.AntiVirusInstalled != nil {
		d.AntiVirusInstalled = *p.AntiVirusInstalled
	}
	return d
}

func contains(options []string, value string) bool {
	for _, o := range options {
		if o == value {
			return true
		}
	}
	return false
}

func equalFold(a, b string) bool {
	return a != "" && strings.EqualFold(a, b)
}
