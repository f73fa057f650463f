// Package mirror provides file-backed local storage for the device list
// snapshot and per-device movement history. The mirror exists to survive
// restarts and backend outages; the in-memory registry list remains the
// source of truth while the process runs.
package mirror

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"labreg/internal/labreg"
)

const (
	// Directory permissions.
	stateDirPerm = 0o750
	// File permissions.
	stateFilePerm = 0o600

	snapshotFile  = "devices.json"
	movementsFile = "movements.json"
)

// ErrNoSnapshot is returned when no usable device snapshot has been
// mirrored yet. A corrupt snapshot file reads the same as a missing one.
var ErrNoSnapshot = errors.New("no mirrored snapshot")

// Store is a file-backed mirror rooted at a state directory.
type Store struct {
	log zerolog.Logger
	dir string
	mu  sync.Mutex
}

// New creates the state directory if needed and returns a store over it.
func New(dir string, log zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, stateDirPerm); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	return &Store{
		dir: dir,
		log: log.With().Str("component", "mirror").Logger(),
	}, nil
}

// snapshot is the on-disk shape of the device mirror.
type snapshot struct {
	SavedAt time.Time       `json:"saved_at"`
	Devices []labreg.Device `json:"devices"`
}

// SaveSnapshot overwrites the mirrored device list.
func (s *Store) SaveSnapshot(devices []labreg.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(snapshot{SavedAt: time.Now(), Devices: devices}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := s.writeFile(snapshotFile, data); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	s.log.Debug().Int("devices", len(devices)).Msg("snapshot mirrored")
	return nil
}

// Snapshot returns the last mirrored device list, or ErrNoSnapshot when
// none exists or the file cannot be decoded.
func (s *Store) Snapshot() ([]labreg.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(s.dir, snapshotFile))
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn().Err(err).Msg("failed to read snapshot, treating as absent")
		}
		return nil, ErrNoSnapshot
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		s.log.Warn().Err(err).Msg("corrupt snapshot, treating as absent")
		return nil, ErrNoSnapshot
	}
	if snap.Devices == nil {
		snap.Devices = []labreg.Device{}
	}
	return snap.Devices, nil
}

// movementRecord holds a device's current in/out status and its history.
type movementRecord struct {
	Status  labreg.MovementStatus `json:"status"`
	History []labreg.Movement     `json:"history"`
}

// SetMovement records a physical in/out transition for a device and
// appends it to the device's history.
func (s *Store) SetMovement(id int, status labreg.MovementStatus, note string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.loadMovements()
	key := strconv.Itoa(id)
	rec := records[key]
	rec.Status = status
	rec.History = append(rec.History, labreg.Movement{Status: status, Note: note, At: at})
	records[key] = rec

	return s.saveMovements(records)
}

// MovementStatus returns a device's current in/out status. The second
// return is false when the device has no recorded movements.
func (s *Store) MovementStatus(id int) (labreg.MovementStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.loadMovements()[strconv.Itoa(id)]
	return rec.Status, ok
}

// MovementHistory returns a device's movement log, oldest first.
func (s *Store) MovementHistory(id int) []labreg.Movement {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.loadMovements()[strconv.Itoa(id)].History
}

// ClearMovements drops the movement record of a deleted device.
func (s *Store) ClearMovements(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.loadMovements()
	key := strconv.Itoa(id)
	if _, ok := records[key]; !ok {
		return nil
	}
	delete(records, key)
	return s.saveMovements(records)
}

func (s *Store) loadMovements() map[string]movementRecord {
	records := make(map[string]movementRecord)
	data, err := os.ReadFile(filepath.Join(s.dir, movementsFile))
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn().Err(err).Msg("failed to read movements, treating as empty")
		}
		return records
	}
	if err := json.Unmarshal(data, &records); err != nil {
		s.log.Warn().Err(err).Msg("corrupt movements file, treating as empty")
		return make(map[string]movementRecord)
	}
	return records
}

func (s *Store) saveMovements(records map[string]movementRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal movements: %w", err)
	}
	if err := s.writeFile(movementsFile, data); err != nil {
		return fmt.Errorf("failed to write movements: %w", err)
	}
	return nil
}

// writeFile writes atomically via a temp file in the same directory so a
// crash mid-write never leaves a truncated state file behind.
func (s *Store) writeFile(name string, data []byte) error {
	path := filepath.Join(s.dir, name)
	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
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
