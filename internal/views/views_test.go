package views

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"labreg/internal/labreg"
)

func sampleDevices() []labreg.Device {
	return []labreg.Device{
		{ID: 1, StudentName: "Kofi Mensah", StudentID: "S1", SerialNumber: "5CD123", MACAddress: "AA:BB:CC:00:00:01", LaptopBrand: "HP", OperatingSystem: "Windows", Verified: true},
		{ID: 2, StudentName: "Ama Owusu", StudentID: "S2", SerialNumber: "PF3GH8", MACAddress: "AA:BB:CC:00:00:02", LaptopBrand: "Lenovo", OperatingSystem: "Windows"},
		{ID: 3, StudentName: "Yaw Darko", StudentID: "S3", SerialNumber: "C02XL0", MACAddress: "AA:BB:CC:00:00:03", LaptopBrand: "Apple", OperatingSystem: "macOS", Verified: true},
	}
}

func ids(list *DeviceList) []int {
	out := make([]int, 0, len(list.Devices))
	for _, d := range list.Devices {
		out = append(out, d.ID)
	}
	return out
}

func TestBuildDeviceListNoFilters(t *testing.T) {
	list := BuildDeviceList(sampleDevices(), Filters{})
	assert.Equal(t, []int{1, 2, 3}, ids(list))
	assert.Equal(t, 3, list.Total)
	assert.Equal(t, 2, list.VerifiedCount)
	assert.Equal(t, 1, list.UnverifiedCount)
}

func TestBrandAndOSFilters(t *testing.T) {
	list := BuildDeviceList(sampleDevices(), Filters{Brand: "HP"})
	assert.Equal(t, []int{1}, ids(list))

	list = BuildDeviceList(sampleDevices(), Filters{Brand: FilterAll, OS: "Windows"})
	assert.Equal(t, []int{1, 2}, ids(list))

	list = BuildDeviceList(sampleDevices(), Filters{Brand: "Lenovo", OS: "macOS"})
	assert.Empty(t, ids(list))
}

func TestSearchMatchesAnyIdentityField(t *testing.T) {
	// Name, serial, MAC, and student ID are all searchable, case-insensitively.
	assert.Equal(t, []int{2}, ids(BuildDeviceList(sampleDevices(), Filters{Search: "ama"})))
	assert.Equal(t, []int{1}, ids(BuildDeviceList(sampleDevices(), Filters{Search: "5cd"})))
	assert.Equal(t, []int{3}, ids(BuildDeviceList(sampleDevices(), Filters{Search: "00:00:03"})))
	assert.Equal(t, []int{2}, ids(BuildDeviceList(sampleDevices(), Filters{Search: "s2"})))
	assert.Empty(t, ids(BuildDeviceList(sampleDevices(), Filters{Search: "zzz"})))
}

func TestSearchCombinesWithFilters(t *testing.T) {
	list := BuildDeviceList(sampleDevices(), Filters{OS: "Windows", Search: "AA:BB"})
	assert.Equal(t, []int{1, 2}, ids(list))
}
