package gate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

const (
	stateDirPerm  = 0o750
	stateFilePerm = 0o600
	stateFile     = "session.json"
)

// persisted is the gate state written to disk. Session fields persist so a
// still-fresh session survives a restart; they are cleared on lock, logout
// and timeout.
type persisted struct {
	LastActivity   time.Time `json:"last_activity"`
	CooldownUntil  time.Time `json:"cooldown_until"`
	PasscodeHash   string    `json:"passcode_hash,omitempty"`
	SessionID      string    `json:"session_id,omitempty"`
	FailedAttempts int       `json:"failed_attempts"`
	SeenWelcome    bool      `json:"seen_welcome"`
	HasPasscode    bool      `json:"has_passcode"`
	SessionActive  bool      `json:"session_active"`
	JustSetUp      bool      `json:"just_set_up"`
	ViaReset       bool      `json:"via_reset"`
}

// Store persists gate state as a JSON file in the state directory.
type Store struct {
	log zerolog.Logger
	dir string
}

// NewStore creates the state directory if needed.
func NewStore(dir string, log zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, stateDirPerm); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return &Store{dir: dir, log: log.With().Str("component", "gatestore").Logger()}, nil
}

// Load reads persisted gate state. Any read or decode failure is treated
// as "no prior state": the gate then fails toward requiring setup or
// re-entry, never toward skipping itself.
func (s *Store) Load() persisted {
	data, err := os.ReadFile(filepath.Join(s.dir, stateFile))
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn().Err(err).Msg("failed to read session state, starting fresh")
		}
		return persisted{}
	}
	var p persisted
	if err := json.Unmarshal(data, &p); err != nil {
		s.log.Warn().Err(err).Msg("corrupt session state, starting fresh")
		return persisted{}
	}
	return p
}

// Save writes gate state atomically.
func (s *Store) Save(p persisted) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session state: %w", err)
	}

	path := filepath.Join(s.dir, stateFile)
	tmp, err := os.CreateTemp(s.dir, stateFile+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, stateFilePerm); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
