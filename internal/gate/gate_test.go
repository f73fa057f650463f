package gate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type fakeAuth struct {
	err   error
	calls int
}

func (a *fakeAuth) Login(_ context.Context, _, _ string) error {
	a.calls++
	return a.err
}

func newTestGate(t *testing.T, dir string, clk *fakeClock, auth Authenticator) *Gate {
	t.Helper()
	store, err := NewStore(dir, zerolog.Nop())
	require.NoError(t, err)
	if auth == nil {
		auth = &fakeAuth{}
	}
	return New(store, auth, Options{Clock: clk.Now}, zerolog.Nop())
}

// activeGate walks a fresh gate through first run, login, passcode setup
// and the forced post-setup lock cycle, ending in StateActive.
func activeGate(t *testing.T, clk *fakeClock) *Gate {
	t.Helper()
	g := newTestGate(t, t.TempDir(), clk, nil)

	require.Equal(t, StateSplash, g.Evaluate())
	clk.Advance(DefaultSplashDelay)
	require.Equal(t, StateNoAuth, g.Evaluate())

	require.NoError(t, g.Login(context.Background(), "admin@example.edu", "hunter2"))
	require.Equal(t, StateNeedsPasscode, g.State())

	require.NoError(t, g.SetupPasscode("4821"))
	require.Equal(t, StateActive, g.State())

	// A brand-new passcode forces one lock cycle on the next evaluation.
	require.Equal(t, StateLocked, g.Evaluate())
	require.NoError(t, g.Unlock("4821"))
	require.Equal(t, StateActive, g.State())
	return g
}

func TestSplashHoldsForFirstVisit(t *testing.T) {
	clk := newFakeClock()
	g := newTestGate(t, t.TempDir(), clk, nil)

	assert.Equal(t, StateSplash, g.Evaluate())
	clk.Advance(DefaultSplashDelay - time.Second)
	assert.Equal(t, StateSplash, g.Evaluate())
	clk.Advance(time.Second)
	assert.Equal(t, StateNoAuth, g.Evaluate())
}

func TestSubsequentVisitSkipsSplash(t *testing.T) {
	dir := t.TempDir()
	clk := newFakeClock()

	first := newTestGate(t, dir, clk, nil)
	clk.Advance(DefaultSplashDelay)
	require.Equal(t, StateNoAuth, first.Evaluate())

	second := newTestGate(t, dir, clk, nil)
	assert.Equal(t, StateNoAuth, second.Evaluate(), "seen-welcome flag must skip the splash delay")
}

func TestIdleTimeoutLocks(t *testing.T) {
	clk := newFakeClock()
	g := activeGate(t, clk)

	clk.Advance(DefaultIdleTimeout - time.Second)
	assert.Equal(t, StateActive, g.Evaluate())

	clk.Advance(time.Second)
	assert.Equal(t, StateLocked, g.Evaluate())
	assert.Empty(t, g.SessionID(), "timeout must clear the session")
}

func TestActivityPostponesLock(t *testing.T) {
	clk := newFakeClock()
	g := activeGate(t, clk)

	for i := 0; i < 5; i++ {
		clk.Advance(DefaultIdleTimeout - time.Minute)
		g.Touch()
		assert.Equal(t, StateActive, g.Evaluate())
	}

	clk.Advance(DefaultIdleTimeout)
	assert.Equal(t, StateLocked, g.Evaluate())
}

func TestActivityWhileLockedDoesNotCount(t *testing.T) {
	clk := newFakeClock()
	g := activeGate(t, clk)
	g.Lock()
	require.Equal(t, StateLocked, g.State())

	deadline := g.IdleDeadline()
	g.Touch()
	assert.Equal(t, deadline, g.IdleDeadline(), "touching while locked must not move the idle clock")
}

func TestUnlockResetsAttempts(t *testing.T) {
	clk := newFakeClock()
	g := activeGate(t, clk)
	g.Lock()

	var bad *BadPasscodeError
	err := g.Unlock("0000")
	require.ErrorAs(t, err, &bad)
	assert.Equal(t, 2, bad.Remaining)

	err = g.Unlock("9999")
	require.ErrorAs(t, err, &bad)
	assert.Equal(t, 1, bad.Remaining)

	require.NoError(t, g.Unlock("4821"))
	assert.Equal(t, StateActive, g.State())
	assert.Equal(t, 0, g.FailedAttempts())
}

func TestCooldownAfterThreeMisses(t *testing.T) {
	clk := newFakeClock()
	g := activeGate(t, clk)
	g.Lock()

	for i := 0; i < DefaultMaxAttempts; i++ {
		var bad *BadPasscodeError
		require.ErrorAs(t, g.Unlock("0000"), &bad)
	}
	assert.Equal(t, DefaultCooldown, g.CooldownRemaining())

	// The correct passcode during cool-down is rejected without consuming
	// an attempt.
	var cooling *CooldownError
	require.ErrorAs(t, g.Unlock("4821"), &cooling)
	assert.Equal(t, DefaultMaxAttempts, g.FailedAttempts())

	// Cool-down expiry resets the counter and input works again.
	clk.Advance(DefaultCooldown)
	require.Equal(t, StateLocked, g.Evaluate())
	assert.Equal(t, 0, g.FailedAttempts())
	require.NoError(t, g.Unlock("4821"))
	assert.Equal(t, StateActive, g.State())
}

func TestLoginFailure(t *testing.T) {
	clk := newFakeClock()
	auth := &fakeAuth{err: errors.New("invalid credentials")}
	g := newTestGate(t, t.TempDir(), clk, auth)
	clk.Advance(DefaultSplashDelay)
	require.Equal(t, StateNoAuth, g.Evaluate())

	assert.Error(t, g.Login(context.Background(), "admin@example.edu", "wrong"))
	assert.Equal(t, StateNoAuth, g.State())
}

func TestLogoutFromAnyState(t *testing.T) {
	clk := newFakeClock()
	g := activeGate(t, clk)

	g.Logout()
	assert.Equal(t, StateNoAuth, g.State())
	assert.Empty(t, g.SessionID())

	// Passcode survives logout: the next login goes straight to active.
	require.NoError(t, g.Login(context.Background(), "admin@example.edu", "hunter2"))
	assert.Equal(t, StateActive, g.State())
}

func TestForgotPasscodeRequiresReLogin(t *testing.T) {
	clk := newFakeClock()
	g := activeGate(t, clk)
	g.Lock()

	g.ForgotPasscode()
	assert.Equal(t, StateNoAuth, g.State())
	assert.True(t, g.ViaReset())

	// Unlock is impossible now; identity must be re-proven first.
	var wrong *ErrWrongState
	assert.ErrorAs(t, g.Unlock("4821"), &wrong)

	require.NoError(t, g.Login(context.Background(), "admin@example.edu", "hunter2"))
	assert.Equal(t, StateNeedsPasscode, g.State())

	require.NoError(t, g.SetupPasscode("7777"))
	assert.False(t, g.ViaReset())
}

func TestSessionResumesAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	clk := newFakeClock()

	store, err := NewStore(dir, zerolog.Nop())
	require.NoError(t, err)
	g := New(store, &fakeAuth{}, Options{Clock: clk.Now}, zerolog.Nop())
	require.Equal(t, StateSplash, g.Evaluate())
	clk.Advance(DefaultSplashDelay)
	require.Equal(t, StateNoAuth, g.Evaluate())
	require.NoError(t, g.Login(context.Background(), "a@b.c", "pw"))
	require.NoError(t, g.SetupPasscode("4821"))
	require.Equal(t, StateLocked, g.Evaluate())
	require.NoError(t, g.Unlock("4821"))

	// Restart within the idle window resumes the session.
	clk.Advance(time.Minute)
	resumed := newTestGate(t, dir, clk, nil)
	assert.Equal(t, StateActive, resumed.Evaluate())

	// Restart after the idle window lands on the lock screen.
	clk.Advance(DefaultIdleTimeout)
	expired := newTestGate(t, dir, clk, nil)
	assert.Equal(t, StateLocked, expired.Evaluate())
}

func TestCorruptStateFileStartsFresh(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "session.json"), []byte("{broken"), 0o600))

	clk := newFakeClock()
	g := newTestGate(t, dir, clk, nil)
	// Fails open toward setup: the gate behaves like a first visit and
	// never skips itself.
	assert.Equal(t, StateSplash, g.Evaluate())
}

func TestPasscodeStoredHashed(t *testing.T) {
	clk := newFakeClock()
	dir := t.TempDir()
	store, err := NewStore(dir, zerolog.Nop())
	require.NoError(t, err)
	g := New(store, &fakeAuth{}, Options{Clock: clk.Now}, zerolog.Nop())
	clk.Advance(DefaultSplashDelay)
	g.Evaluate()
	require.NoError(t, g.Login(context.Background(), "a@b.c", "pw"))
	require.NoError(t, g.SetupPasscode("4821"))

	data, err := os.ReadFile(filepath.Join(dir, "session.json"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "4821", "raw passcode must never touch disk")
}

func TestWrongStateOperationsRejected(t *testing.T) {
	clk := newFakeClock()
	g := activeGate(t, clk)

	var wrong *ErrWrongState
	assert.ErrorAs(t, g.Unlock("4821"), &wrong)
	assert.ErrorAs(t, g.Login(context.Background(), "a@b.c", "pw"), &wrong)
	assert.ErrorAs(t, g.SetupPasscode("1234"), &wrong)
}
