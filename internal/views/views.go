// Package views builds display models for the console from the raw
// device list: filtering, search, and summary counts. Everything here is
// a pure function of the current list and filter state.
package views

import (
	"fmt"
	"strings"
	"time"

	"labreg/internal/labreg"
)

// FilterAll is the wildcard value for the brand and OS filters.
const FilterAll = "All"

// Filters narrows the device list. Empty values behave like FilterAll.
type Filters struct {
	Brand  string
	OS     string
	Search string
}

// DeviceList is the list screen's view model.
type DeviceList struct {
	Filters         Filters
	Devices         []labreg.Device
	Total           int
	VerifiedCount   int
	UnverifiedCount int
}

// BuildDeviceList applies the filters and computes summary counts. The
// input slice is not modified.
func BuildDeviceList(devices []labreg.Device, f Filters) *DeviceList {
	list := &DeviceList{Filters: f, Total: len(devices)}

	for i := range devices {
		d := &devices[i]
		if !matches(d, f) {
			continue
		}
		list.Devices = append(list.Devices, *d)
		if d.Verified {
			list.VerifiedCount++
		} else {
			list.UnverifiedCount++
		}
	}
	return list
}

func matches(d *labreg.Device, f Filters) bool {
	if !matchesOption(d.LaptopBrand, f.Brand) {
		return false
	}
	if !matchesOption(d.OperatingSystem, f.OS) {
		return false
	}
	if f.Search == "" {
		return true
	}
	needle := strings.ToLower(f.Search)
	haystacks := []string{d.StudentName, d.SerialNumber, d.MACAddress, d.StudentID}
	for _, h := range haystacks {
		if strings.Contains(strings.ToLower(h), needle) {
			return true
		}
	}
	return false
}

func matchesOption(value, filter string) bool {
	return filter == "" || filter == FilterAll || value == filter
}

// FormatTime renders a timestamp for table output.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return "N/A"
	}
	return t.Format("2006-01-02 15:04:05")
}

// FormatAgo renders a timestamp as a relative age.
func FormatAgo(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	dur := time.Since(t).Round(time.Second)
	if dur < time.Minute {
		return fmt.Sprintf("%d seconds ago", int(dur.Seconds()))
	}
	if dur < time.Hour {
		return fmt.Sprintf("%d minutes ago", int(dur.Minutes()))
	}
	if dur < 24*time.Hour {
		return fmt.Sprintf("%d hours ago", int(dur.Hours()))
	}
	return fmt.Sprintf("%d days ago", int(dur.Hours()/24))
}
