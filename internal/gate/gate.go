// Package gate implements the session gate: the state machine deciding
// whether the console shows the splash screen, the login prompt, passcode
// setup, the lock screen, or the protected application. It owns the
// inactivity timeout and the passcode retry policy.
package gate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// State is the gate's current screen decision.
type State int

const (
	// StateSplash shows the first-run welcome screen.
	StateSplash State = iota
	// StateNoAuth requires primary-credential login.
	StateNoAuth
	// StateNeedsPasscode requires a local unlock passcode to be created.
	StateNeedsPasscode
	// StateActive renders the protected application.
	StateActive
	// StateLocked gates everything behind the lock screen.
	StateLocked
)

func (s State) String() string {
	switch s {
	case StateSplash:
		return "splash"
	case StateNoAuth:
		return "no-auth"
	case StateNeedsPasscode:
		return "needs-passcode"
	case StateActive:
		return "active"
	case StateLocked:
		return "locked"
	default:
		return "unknown"
	}
}

// Policy defaults.
const (
	DefaultIdleTimeout = 5 * time.Minute
	DefaultMaxAttempts = 3
	DefaultCooldown    = 30 * time.Second
	DefaultSplashDelay = 3 * time.Second

	minPasscodeLength = 4
)

// Authenticator verifies the primary admin credentials. Satisfied by
// *apiclient.Client.
type Authenticator interface {
	Login(ctx context.Context, email, password string) error
}

// BadPasscodeError reports a passcode mismatch on the lock screen.
type BadPasscodeError struct {
	Remaining int
}

func (e *BadPasscodeError) Error() string {
	if e.Remaining <= 0 {
		return "incorrect passcode, no attempts remaining"
	}
	return fmt.Sprintf("incorrect passcode, %d attempt(s) remaining", e.Remaining)
}

// CooldownError reports that the lock screen is in its cool-down window.
// Entries during cool-down are rejected outright and consume no attempt.
type CooldownError struct {
	Until time.Time
}

func (e *CooldownError) Error() string {
	return "too many failed attempts, input disabled"
}

// ErrWrongState is returned when an operation is invoked from a state
// that does not allow it.
type ErrWrongState struct {
	Op    string
	State State
}

func (e *ErrWrongState) Error() string {
	return fmt.Sprintf("%s is not allowed in state %s", e.Op, e.State)
}

// Options tunes the gate policy. Zero values fall back to the defaults.
type Options struct {
	Clock       func() time.Time
	IdleTimeout time.Duration
	MaxAttempts int
	Cooldown    time.Duration
	SplashDelay time.Duration
}

// Gate drives the session lock state machine. Safe for concurrent use:
// the console's command loop and its idle watchdog both drive it.
type Gate struct {
	store       *Store
	auth        Authenticator
	now         func() time.Time
	log         zerolog.Logger
	started     time.Time
	p           persisted
	mu          sync.Mutex
	state       State
	idleTimeout time.Duration
	cooldown    time.Duration
	splashDelay time.Duration
	maxAttempts int
}

// New loads persisted state and starts the gate in the splash state. A
// missing or unreadable state file means a fresh first visit.
func New(store *Store, auth Authenticator, opts Options, log zerolog.Logger) *Gate {
	g := &Gate{
		store:       store,
		auth:        auth,
		now:         opts.Clock,
		log:         log.With().Str("component", "gate").Logger(),
		state:       StateSplash,
		idleTimeout: opts.IdleTimeout,
		maxAttempts: opts.MaxAttempts,
		cooldown:    opts.Cooldown,
		splashDelay: opts.SplashDelay,
	}
	if g.now == nil {
		g.now = time.Now
	}
	if g.idleTimeout <= 0 {
		g.idleTimeout = DefaultIdleTimeout
	}
	if g.maxAttempts <= 0 {
		g.maxAttempts = DefaultMaxAttempts
	}
	if g.cooldown <= 0 {
		g.cooldown = DefaultCooldown
	}
	if g.splashDelay <= 0 {
		g.splashDelay = DefaultSplashDelay
	}

	g.p = store.Load()
	g.started = g.now()
	return g
}

// State returns the current state without evaluating transitions.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Evaluate applies every time-driven transition that is due and returns
// the resulting state. Call it before rendering a screen and from the
// idle watchdog.
func (g *Gate) Evaluate() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()

	switch g.state {
	case StateSplash:
		if g.p.SeenWelcome {
			g.leaveSplash(now)
			break
		}
		if now.Sub(g.started) >= g.splashDelay {
			g.p.SeenWelcome = true
			g.save()
			g.leaveSplash(now)
		}

	case StateActive:
		if g.p.JustSetUp {
			// A freshly created passcode gets one forced lock cycle so the
			// operator proves they can get back in.
			g.p.JustSetUp = false
			g.lock("passcode setup")
			break
		}
		if now.Sub(g.p.LastActivity) >= g.idleTimeout {
			g.lock("inactivity")
		}

	case StateLocked:
		g.expireCooldown(now)

	case StateNoAuth, StateNeedsPasscode:
		// User-driven states; nothing to do on the clock.
	}

	return g.state
}

// leaveSplash resumes a prior session when one is still fresh, otherwise
// falls through to login.
func (g *Gate) leaveSplash(now time.Time) {
	switch {
	case g.p.SessionActive && g.p.HasPasscode:
		if now.Sub(g.p.LastActivity) >= g.idleTimeout {
			g.lock("session expired during downtime")
		} else {
			g.state = StateActive
			g.log.Debug().Str("session", g.p.SessionID).Msg("resumed session")
		}
	default:
		g.clearSession()
		g.state = StateNoAuth
	}
}

// Login verifies the primary credentials against the backend. On success
// the gate either opens a session or, when no local passcode exists yet,
// moves to passcode setup.
func (g *Gate) Login(ctx context.Context, email, password string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != StateNoAuth {
		return &ErrWrongState{Op: "login", State: g.state}
	}
	if err := g.auth.Login(ctx, email, password); err != nil {
		return err
	}

	if !g.p.HasPasscode {
		g.state = StateNeedsPasscode
		g.save()
		return nil
	}
	g.startSession()
	g.state = StateActive
	g.save()
	g.log.Info().Msg("login successful")
	return nil
}

// SetupPasscode stores a new local unlock passcode. Only the bcrypt hash
// is persisted; the raw value never touches disk.
func (g *Gate) SetupPasscode(code string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != StateNeedsPasscode {
		return &ErrWrongState{Op: "passcode setup", State: g.state}
	}
	if len(code) < minPasscodeLength {
		return fmt.Errorf("passcode must be at least %d characters", minPasscodeLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash passcode: %w", err)
	}

	g.p.PasscodeHash = string(hash)
	g.p.HasPasscode = true
	g.p.JustSetUp = true
	g.p.ViaReset = false
	g.p.FailedAttempts = 0
	g.p.CooldownUntil = time.Time{}
	g.startSession()
	g.state = StateActive
	g.save()
	g.log.Info().Msg("local passcode configured")
	return nil
}

// Unlock attempts to open the lock screen with a passcode. During the
// cool-down window every entry is rejected without consuming an attempt,
// correct or not.
func (g *Gate) Unlock(code string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != StateLocked {
		return &ErrWrongState{Op: "unlock", State: g.state}
	}

	now := g.now()
	if now.Before(g.p.CooldownUntil) {
		return &CooldownError{Until: g.p.CooldownUntil}
	}
	g.expireCooldown(now)

	if bcrypt.CompareHashAndPassword([]byte(g.p.PasscodeHash), []byte(code)) != nil {
		g.p.FailedAttempts++
		remaining := g.maxAttempts - g.p.FailedAttempts
		if remaining <= 0 {
			g.p.CooldownUntil = now.Add(g.cooldown)
			g.log.Warn().Int("attempts", g.p.FailedAttempts).Msg("lock screen cool-down engaged")
		}
		g.save()
		return &BadPasscodeError{Remaining: remaining}
	}

	g.p.FailedAttempts = 0
	g.p.CooldownUntil = time.Time{}
	g.startSession()
	g.state = StateActive
	g.save()
	g.log.Info().Msg("unlocked")
	return nil
}

// Lock immediately gates the application.
func (g *Gate) Lock() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != StateActive {
		return
	}
	g.lock("user request")
}

// Logout drops the session from any state and returns to login.
func (g *Gate) Logout() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.clearSession()
	g.p.JustSetUp = false
	g.state = StateNoAuth
	g.save()
	g.log.Info().Msg("logged out")
}

// ForgotPasscode clears the stored passcode and all session markers. The
// operator must re-prove identity through the primary login before a new
// passcode can be set; this path never bypasses authentication.
func (g *Gate) ForgotPasscode() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.clearSession()
	g.p.PasscodeHash = ""
	g.p.HasPasscode = false
	g.p.ViaReset = true
	g.p.FailedAttempts = 0
	g.p.CooldownUntil = time.Time{}
	g.state = StateNoAuth
	g.save()
	g.log.Info().Msg("passcode reset requested")
}

// Touch refreshes the activity clock. Activity only counts while the
// application is unlocked; typing at the lock screen does not postpone
// anything.
func (g *Gate) Touch() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != StateActive {
		return
	}
	g.p.LastActivity = g.now()
	g.save()
}

// IdleDeadline is the instant the current session will lock absent
// further activity.
func (g *Gate) IdleDeadline() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.p.LastActivity.Add(g.idleTimeout)
}

// FailedAttempts returns the current consecutive mismatch count.
func (g *Gate) FailedAttempts() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.p.FailedAttempts
}

// RemainingAttempts returns how many tries are left before cool-down.
func (g *Gate) RemainingAttempts() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	remaining := g.maxAttempts - g.p.FailedAttempts
	if remaining < 0 {
		return 0
	}
	return remaining
}

// CooldownRemaining returns how long the lock screen stays disabled, or
// zero when input is allowed.
func (g *Gate) CooldownRemaining() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	remaining := g.p.CooldownUntil.Sub(g.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// SessionID identifies the current active session, empty when none.
func (g *Gate) SessionID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.p.SessionID
}

// ViaReset reports whether the user arrived at login through the
// forgot-passcode path.
func (g *Gate) ViaReset() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.p.ViaReset
}

func (g *Gate) lock(reason string) {
	g.clearSession()
	g.state = StateLocked
	g.save()
	g.log.Info().Str("reason", reason).Msg("locked")
}

func (g *Gate) startSession() {
	g.p.SessionID = uuid.NewString()
	g.p.SessionActive = true
	g.p.LastActivity = g.now()
}

func (g *Gate) clearSession() {
	g.p.SessionID = ""
	g.p.SessionActive = false
	g.p.LastActivity = time.Time{}
}

// expireCooldown resets the attempt counter once the cool-down window has
// passed.
func (g *Gate) expireCooldown(now time.Time) {
	if !g.p.CooldownUntil.IsZero() && !now.Before(g.p.CooldownUntil) {
		g.p.CooldownUntil = time.Time{}
		g.p.FailedAttempts = 0
		g.save()
	}
}

// save persists state. Persistence failures are logged and otherwise
// ignored: losing a state write degrades to re-asking for credentials,
// never to skipping the gate.
func (g *Gate) save() {
	if err := g.store.Save(g.p); err != nil {
		g.log.Warn().Err(err).Msg("failed to persist session state")
	}
}
