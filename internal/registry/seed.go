package registry

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"labreg/internal/labreg"
)

//go:embed seed.yaml
var seedConfig []byte

// seedDevice mirrors labreg.Device with YAML tags for the bundled dataset.
type seedDevice struct {
	StudentName        string `yaml:"studentName"`
	StudentID          string `yaml:"studentId"`
	Phone              string `yaml:"phone"`
	Email              string `yaml:"email"`
	SerialNumber       string `yaml:"serialNumber"`
	MACAddress         string `yaml:"macAddress"`
	LaptopBrand        string `yaml:"laptopBrand"`
	OperatingSystem    string `yaml:"operatingSystem"`
	ID                 int    `yaml:"id"`
	AntiVirusInstalled bool   `yaml:"antiVirusInstalled"`
	Verified           bool   `yaml:"verified"`
}

func loadSeed() ([]labreg.Device, error) {
	var doc struct {
		Devices []seedDevice `yaml:"devices"`
	}
	if err := yaml.Unmarshal(seedConfig, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse seed dataset: %w", err)
	}

	devices := make([]labreg.Device, 0, len(doc.Devices))
	for _, sd := range doc.Devices {
		devices = append(devices, labreg.Device{
			ID:                 sd.ID,
			StudentName:        sd.StudentName,
			StudentID:          sd.StudentID,
			Phone:              sd.Phone,
			Email:              sd.Email,
			SerialNumber:       sd.SerialNumber,
			MACAddress:         sd.MACAddress,
			LaptopBrand:        sd.LaptopBrand,
			OperatingSystem:    sd.OperatingSystem,
			AntiVirusInstalled: sd.AntiVirusInstalled,
			Verified:           sd.Verified,
		})
	}
	return devices, nil
}
