package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"labreg/internal/labreg"
	"labreg/internal/views"
)

// dispatch runs one command. The bool return requests a clean exit.
func (c *console) dispatch(ctx context.Context, cmd string, args []string) (bool, error) {
	switch cmd {
	case "help", "?":
		c.printHelp()
	case "list", "ls":
		c.cmdList(args)
	case "sync":
		c.syncDevices(ctx)
	case "show":
		c.cmdShow(args)
	case "register", "add":
		c.cmdRegister(ctx)
	case "edit":
		c.cmdEdit(ctx, args)
	case "verify":
		c.cmdVerify(ctx, args)
	case "delete", "rm":
		c.cmdDelete(ctx, args)
	case "checkin":
		c.cmdMovement(args, labreg.MovementIn)
	case "checkout":
		c.cmdMovement(args, labreg.MovementOut)
	case "history":
		c.cmdHistory(args)
	case "lock":
		c.gate.Lock()
	case "logout":
		c.gate.Logout()
		c.synced = false
	case "reset-passcode":
		c.gate.ForgotPasscode()
		c.synced = false
		fmt.Fprintln(c.out, "Passcode cleared. Sign in again to set a new one.")
	case "quit", "exit":
		return true, nil
	default:
		fmt.Fprintf(c.out, "Unknown command %q. Type \"help\" for a list.\n", cmd)
	}
	return false, nil
}

func (c *console) printHelp() {
	fmt.Fprint(c.out, `Commands:
  list [brand=X] [os=X] [search=X]   list devices, optionally filtered
  show <id>                          full details for one device
  sync                               refresh the list from the server
  register                           register a new device
  edit <id>                          edit a device (blank keeps current)
  verify <id>                        mark a device as verified
  delete <id>                        remove a device
  checkin <id> [note]                record the laptop entering the lab
  checkout <id> [note]               record the laptop leaving the lab
  history <id>                       show a device's in/out history
  lock                               lock the session now
  logout                             end the session, keep the passcode
  reset-passcode                     clear the passcode and sign out
  quit                               exit
`)
}

func (c *console) cmdList(args []string) {
	var f views.Filters
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			fmt.Fprintf(c.out, "Bad filter %q: expected key=value.\n", arg)
			return
		}
		switch strings.ToLower(key) {
		case "brand":
			f.Brand = value
		case "os":
			f.OS = value
		case "search":
			f.Search = value
		default:
			fmt.Fprintf(c.out, "Unknown filter %q (want brand, os or search).\n", key)
			return
		}
	}

	list := views.BuildDeviceList(c.reg.Devices(), f)

	w := tabwriter.NewWriter(c.out, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTUDENT\tSTUDENT ID\tSERIAL\tBRAND\tOS\tVERIFIED\tPRESENCE")
	for _, d := range list.Devices {
		presence := "-"
		if status, ok := c.reg.MovementStatus(d.ID); ok {
			presence = string(status)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			d.ID, d.StudentName, d.StudentID, d.SerialNumber,
			d.LaptopBrand, d.OperatingSystem, yesNo(d.Verified), presence)
	}
	w.Flush()
	fmt.Fprintf(c.out, "%d shown of %d total (%d verified, %d pending).\n",
		len(list.Devices), list.Total, list.VerifiedCount, list.UnverifiedCount)
}

func (c *console) cmdShow(args []string) {
	d, ok := c.deviceArg(args)
	if !ok {
		return
	}

	w := tabwriter.NewWriter(c.out, 2, 4, 2, ' ', 0)
	fmt.Fprintf(w, "ID:\t%d\n", d.ID)
	fmt.Fprintf(w, "Student:\t%s (%s)\n", d.StudentName, d.StudentID)
	fmt.Fprintf(w, "Phone:\t%s\n", d.Phone)
	fmt.Fprintf(w, "Email:\t%s\n", d.Email)
	fmt.Fprintf(w, "Serial number:\t%s\n", d.SerialNumber)
	fmt.Fprintf(w, "MAC address:\t%s\n", d.MACAddress)
	fmt.Fprintf(w, "Brand / OS:\t%s / %s\n", d.LaptopBrand, d.OperatingSystem)
	fmt.Fprintf(w, "Antivirus:\t%s\n", yesNo(d.AntiVirusInstalled))
	fmt.Fprintf(w, "Verified:\t%s\n", yesNo(d.Verified))
	fmt.Fprintf(w, "Registered:\t%s\n", views.FormatTime(d.CreatedAt))
	fmt.Fprintf(w, "Last update:\t%s (%s)\n", views.FormatTime(d.UpdatedAt), views.FormatAgo(d.UpdatedAt))
	if status, ok := c.reg.MovementStatus(d.ID); ok {
		fmt.Fprintf(w, "Presence:\t%s\n", status)
	}
	w.Flush()
}

func (c *console) cmdRegister(ctx context.Context) {
	draft := &labreg.DeviceDraft{}
	prompts := []struct {
		label string
		dest  *string
	}{
		{"Student name", &draft.StudentName},
		{"Student ID", &draft.StudentID},
		{"Phone", &draft.Phone},
		{"Email", &draft.Email},
		{"Serial number", &draft.SerialNumber},
		{"MAC address", &draft.MACAddress},
	}
	for _, p := range prompts {
		value, err := c.readLine(p.label + ": ")
		if err != nil {
			return
		}
		*p.dest = value
	}

	brand, err := c.readOption("Laptop brand", labreg.Brands)
	if err != nil {
		return
	}
	draft.LaptopBrand = brand

	osName, err := c.readOption("Operating system", labreg.OperatingSystems)
	if err != nil {
		return
	}
	draft.OperatingSystem = osName

	av, err := c.readLine("Antivirus installed? [y/N]: ")
	if err != nil {
		return
	}
	draft.AntiVirusInstalled = isYes(av)

	if err := draft.Validate(); err != nil {
		fmt.Fprintf(c.out, "Not registered: %v.\n", err)
		return
	}

	d, err := c.reg.Add(ctx, draft)
	if err != nil {
		var conflict *labreg.ConflictError
		if errors.As(err, &conflict) {
			fmt.Fprintf(c.out, "Not registered: %s.\n", conflict.Error())
		} else {
			fmt.Fprintf(c.out, "Registration failed: %v\n", err)
		}
		return
	}
	fmt.Fprintf(c.out, "Registered device %d for %s.\n", d.ID, d.StudentName)
}

func (c *console) cmdEdit(ctx context.Context, args []string) {
	d, ok := c.deviceArg(args)
	if !ok {
		return
	}
	fmt.Fprintln(c.out, "Press Enter to keep the current value. Email and MAC address cannot change.")

	patch := &labreg.DevicePatch{}
	prompts := []struct {
		label   string
		current string
		dest    **string
	}{
		{"Student name", d.StudentName, &patch.StudentName},
		{"Student ID", d.StudentID, &patch.StudentID},
		{"Phone", d.Phone, &patch.Phone},
		{"Serial number", d.SerialNumber, &patch.SerialNumber},
	}
	for _, p := range prompts {
		value, err := c.readLine(fmt.Sprintf("%s [%s]: ", p.label, p.current))
		if err != nil {
			return
		}
		if value != "" {
			v := value
			*p.dest = &v
		}
	}

	brand, err := c.readLine(fmt.Sprintf("Laptop brand [%s]: ", d.LaptopBrand))
	if err != nil {
		return
	}
	if brand != "" {
		patch.LaptopBrand = &brand
	}
	osName, err := c.readLine(fmt.Sprintf("Operating system [%s]: ", d.OperatingSystem))
	if err != nil {
		return
	}
	if osName != "" {
		patch.OperatingSystem = &osName
	}
	av, err := c.readLine(fmt.Sprintf("Antivirus installed? [%s]: ", yesNo(d.AntiVirusInstalled)))
	if err != nil {
		return
	}
	if av != "" {
		v := isYes(av)
		patch.AntiVirusInstalled = &v
	}

	result, err := c.reg.Update(ctx, d.ID, patch)
	if err != nil {
		var conflict *labreg.ConflictError
		if errors.As(err, &conflict) {
			fmt.Fprintf(c.out, "Not saved: %s.\n", conflict.Error())
		} else {
			fmt.Fprintf(c.out, "Edit failed: %v\n", err)
		}
		return
	}
	if result.SavedRemotely {
		fmt.Fprintf(c.out, "Saved device %d.\n", result.Device.ID)
	} else {
		fmt.Fprintf(c.out, "Saved device %d locally; the server was unreachable.\n", result.Device.ID)
	}
}

func (c *console) cmdVerify(ctx context.Context, args []string) {
	d, ok := c.deviceArg(args)
	if !ok {
		return
	}
	if d.Verified {
		fmt.Fprintf(c.out, "Device %d is already verified.\n", d.ID)
		return
	}
	if _, err := c.reg.Verify(ctx, d.ID); err != nil {
		fmt.Fprintf(c.out, "Verify failed: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "Device %d verified.\n", d.ID)
}

func (c *console) cmdDelete(ctx context.Context, args []string) {
	d, ok := c.deviceArg(args)
	if !ok {
		return
	}
	answer, err := c.readLine(fmt.Sprintf("Delete device %d (%s)? [y/N]: ", d.ID, d.StudentName))
	if err != nil || !isYes(answer) {
		fmt.Fprintln(c.out, "Not deleted.")
		return
	}

	remoteOK, err := c.reg.Delete(ctx, d.ID)
	if err != nil {
		fmt.Fprintf(c.out, "Delete failed: %v\n", err)
		return
	}
	if remoteOK {
		fmt.Fprintf(c.out, "Deleted device %d.\n", d.ID)
	} else {
		fmt.Fprintf(c.out, "Removed device %d locally; the server was unreachable.\n", d.ID)
	}
}

func (c *console) cmdMovement(args []string, status labreg.MovementStatus) {
	d, ok := c.deviceArg(args)
	if !ok {
		return
	}
	note := strings.Join(args[1:], " ")
	if err := c.reg.SetMovement(d.ID, status, note); err != nil {
		fmt.Fprintf(c.out, "Could not record movement: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "Device %d checked %s.\n", d.ID, status)
}

func (c *console) cmdHistory(args []string) {
	d, ok := c.deviceArg(args)
	if !ok {
		return
	}
	history := c.reg.MovementHistory(d.ID)
	if len(history) == 0 {
		fmt.Fprintf(c.out, "No recorded movements for device %d.\n", d.ID)
		return
	}
	w := tabwriter.NewWriter(c.out, 2, 4, 2, ' ', 0)
	for _, m := range history {
		fmt.Fprintf(w, "%s\t%s\t%s\n", views.FormatTime(m.At), m.Status, m.Note)
	}
	w.Flush()
}

// deviceArg resolves the mandatory <id> argument against the working set.
func (c *console) deviceArg(args []string) (labreg.Device, bool) {
	if len(args) == 0 {
		fmt.Fprintln(c.out, "A device ID is required.")
		return labreg.Device{}, false
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Fprintf(c.out, "Bad device ID %q.\n", args[0])
		return labreg.Device{}, false
	}
	d, ok := c.reg.Device(id)
	if !ok {
		fmt.Fprintf(c.out, "No device with ID %d.\n", id)
		return labreg.Device{}, false
	}
	return d, true
}

func (c *console) readOption(label string, options []string) (string, error) {
	value, err := c.readLine(fmt.Sprintf("%s (%s): ", label, strings.Join(options, ", ")))
	if err != nil {
		return "", err
	}
	for _, o := range options {
		if strings.EqualFold(o, value) {
			return o, nil
		}
	}
	// Let Validate report the error with the raw input.
	return value, nil
}

func isYes(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "y" || s == "yes"
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
