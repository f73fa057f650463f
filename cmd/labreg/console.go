package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"labreg/internal/apiclient"
	"labreg/internal/gate"
	"labreg/internal/registry"
)

const (
	// How often the idle watchdog re-evaluates the gate.
	watchdogInterval = 1 * time.Second
	// Splash screen poll interval.
	splashPoll = 250 * time.Millisecond
)

type console struct {
	gate        *gate.Gate
	reg         *registry.Registry
	log         zerolog.Logger
	in          *bufio.Reader
	out         io.Writer
	stdinFd     int
	isTerminal  bool
	bannerShown bool
	synced      bool
}

func newConsole(g *gate.Gate, reg *registry.Registry, log zerolog.Logger) *console {
	fd := int(os.Stdin.Fd())
	return &console{
		gate:       g,
		reg:        reg,
		log:        log.With().Str("component", "console").Logger(),
		in:         bufio.NewReader(os.Stdin),
		out:        os.Stdout,
		stdinFd:    fd,
		isTerminal: term.IsTerminal(fd),
	}
}

// run drives the screen loop: the gate decides which screen renders, the
// console renders it. A watchdog re-evaluates the gate every second so
// the inactivity lock fires even while the prompt sits idle.
func (c *console) run(ctx context.Context) error {
	ticker := time.NewTicker(watchdogInterval)
	defer ticker.Stop()
	go c.watchdog(ctx, ticker)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var err error
		switch c.gate.Evaluate() {
		case gate.StateSplash:
			c.showSplash()
		case gate.StateNoAuth:
			err = c.loginScreen(ctx)
		case gate.StateNeedsPasscode:
			err = c.setupScreen()
		case gate.StateLocked:
			err = c.lockScreen()
		case gate.StateActive:
			var quit bool
			quit, err = c.commandPrompt(ctx)
			if quit {
				return nil
			}
		}

		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
	}
}

// watchdog fires the time-driven transitions while the main loop is
// blocked on input and announces an inactivity lock as it happens.
func (c *console) watchdog(ctx context.Context, ticker *time.Ticker) {
	prev := c.gate.State()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			state := c.gate.Evaluate()
			if state == gate.StateLocked && prev == gate.StateActive {
				fmt.Fprintln(c.out, "\nSession locked due to inactivity. Press Enter to continue.")
			}
			prev = state
		}
	}
}

func (c *console) showSplash() {
	if !c.bannerShown {
		fmt.Fprintln(c.out, "==============================================")
		fmt.Fprintln(c.out, "  labreg — laptop registration console")
		fmt.Fprintln(c.out, "==============================================")
		c.bannerShown = true
	}
	time.Sleep(splashPoll)
}

func (c *console) loginScreen(ctx context.Context) error {
	if c.gate.ViaReset() {
		fmt.Fprintln(c.out, "Passcode reset: sign in with your admin credentials to continue.")
	} else {
		fmt.Fprintln(c.out, "Sign in to the laptop registry.")
	}

	email, err := c.readLine("Email: ")
	if err != nil {
		return err
	}
	password, err := c.readSecret("Password: ")
	if err != nil {
		return err
	}

	if err := c.gate.Login(ctx, email, password); err != nil {
		switch {
		case errors.Is(err, apiclient.ErrInvalidCredentials):
			fmt.Fprintln(c.out, "Invalid email or password.")
		default:
			fmt.Fprintf(c.out, "Login failed: %v\n", err)
		}
		return nil
	}
	return nil
}

func (c *console) setupScreen() error {
	fmt.Fprintln(c.out, "Create a local unlock passcode (minimum 4 characters).")

	code, err := c.readSecret("New passcode: ")
	if err != nil {
		return err
	}
	confirm, err := c.readSecret("Confirm passcode: ")
	if err != nil {
		return err
	}
	if code != confirm {
		fmt.Fprintln(c.out, "Passcodes do not match.")
		return nil
	}

	if err := c.gate.SetupPasscode(code); err != nil {
		fmt.Fprintf(c.out, "Could not set passcode: %v\n", err)
		return nil
	}
	fmt.Fprintln(c.out, "Passcode set. You'll be asked for it once now.")
	return nil
}

func (c *console) lockScreen() error {
	if remaining := c.gate.CooldownRemaining(); remaining > 0 {
		fmt.Fprintf(c.out, "\rToo many failed attempts. Try again in %2ds...", int(remaining.Seconds())+1)
		time.Sleep(time.Second)
		return nil
	}

	code, err := c.readSecret("Passcode (or 'forgot'): ")
	if err != nil {
		return err
	}
	if strings.EqualFold(strings.TrimSpace(code), "forgot") {
		c.gate.ForgotPasscode()
		fmt.Fprintln(c.out, "Passcode cleared. Sign in again to set a new one.")
		return nil
	}

	if err := c.gate.Unlock(code); err != nil {
		var bad *gate.BadPasscodeError
		var cooling *gate.CooldownError
		switch {
		case errors.As(err, &bad):
			fmt.Fprintf(c.out, "%s.\n", bad.Error())
		case errors.As(err, &cooling):
			fmt.Fprintln(c.out, "Input disabled, wait for the countdown.")
		default:
			fmt.Fprintf(c.out, "Unlock failed: %v\n", err)
		}
		return nil
	}
	return nil
}

func (c *console) commandPrompt(ctx context.Context) (bool, error) {
	if !c.synced {
		c.syncDevices(ctx)
		c.synced = true
		fmt.Fprintln(c.out, `Type "help" for commands.`)
	}

	line, err := c.readLine("labreg> ")
	if err != nil {
		return false, err
	}
	c.gate.Touch()

	// The gate may have locked while the prompt was waiting; the typed
	// command must not slip through.
	if c.gate.Evaluate() != gate.StateActive {
		return false, nil
	}

	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	return c.dispatch(ctx, fields[0], fields[1:])
}

func (c *console) syncDevices(ctx context.Context) {
	devices, source := c.reg.FetchAll(ctx)
	switch source {
	case registry.SourceRemote:
		fmt.Fprintf(c.out, "Synced %d devices from the server.\n", len(devices))
	case registry.SourceMirror:
		fmt.Fprintf(c.out, "Server unreachable, showing %d locally cached devices.\n", len(devices))
	case registry.SourceSeed:
		fmt.Fprintf(c.out, "Server unreachable and no local cache, showing %d bundled records.\n", len(devices))
	}
}

func (c *console) readLine(prompt string) (string, error) {
	fmt.Fprint(c.out, prompt)
	line, err := c.in.ReadString('\n')
	if err != nil {
		if err == io.EOF && line != "" {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// readSecret reads without echo on a real terminal and falls back to a
// plain read when stdin is piped (tests, scripts).
func (c *console) readSecret(prompt string) (string, error) {
	if !c.isTerminal {
		return c.readLine(prompt)
	}
	fmt.Fprint(c.out, prompt)
	secret, err := term.ReadPassword(c.stdinFd)
	fmt.Fprintln(c.out)
	if err != nil {
		return "", err
	}
	return string(secret), nil
}
