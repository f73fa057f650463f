// Package registry maintains the working set of registered devices: an
// in-memory list backed by the remote API, mirrored to local storage, and
// resilient to backend unavailability.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"labreg/internal/labreg"
	"labreg/internal/mirror"
)

// Backend is the slice of the API client the registry depends on.
type Backend interface {
	ListDevices(ctx context.Context) ([]labreg.Device, error)
	Register(ctx context.Context, draft *labreg.DeviceDraft) (labreg.Device, error)
	Update(ctx context.Context, device labreg.Device) (labreg.Device, error)
	Verify(ctx context.Context, id int) (labreg.Device, error)
	Delete(ctx context.Context, id int) error
}

// Source reports where a fetched device list came from.
type Source int

const (
	SourceRemote Source = iota
	SourceMirror
	SourceSeed
)

func (s Source) String() string {
	switch s {
	case SourceRemote:
		return "remote"
	case SourceMirror:
		return "mirror"
	case SourceSeed:
		return "seed"
	default:
		return "unknown"
	}
}

// UpdateResult is the outcome of an Update. SavedRemotely is false when
// the backend was unreachable and the change was applied to the local
// list and mirror only.
type UpdateResult struct {
	Device        labreg.Device
	SavedRemotely bool
}

// Registry owns the in-memory device list and its local mirror. All
// mutations go through it; the list it hands out is always a copy.
type Registry struct {
	backend  Backend
	mirror   *mirror.Store
	now      func() time.Time
	versions map[int]uint64
	log      zerolog.Logger
	devices  []labreg.Device
	seed     []labreg.Device
	mu       sync.RWMutex
}

// New builds a registry over a backend and a local mirror.
func New(backend Backend, store *mirror.Store, log zerolog.Logger) (*Registry, error) {
	seed, err := loadSeed()
	if err != nil {
		return nil, err
	}
	return &Registry{
		backend:  backend,
		mirror:   store,
		seed:     seed,
		versions: make(map[int]uint64),
		now:      time.Now,
		log:      log.With().Str("component", "registry").Logger(),
	}, nil
}

// FetchAll refreshes the working set from the backend. On failure it falls
// back to the last mirrored snapshot, then to the bundled seed dataset.
// It never fails: the returned list may be stale but is always defined.
func (r *Registry) FetchAll(ctx context.Context) ([]labreg.Device, Source) {
	start := time.Now()

	devices, err := r.backend.ListDevices(ctx)
	source := SourceRemote
	if err != nil {
		r.log.Warn().Err(err).Msg("backend fetch failed, falling back to mirror")
		devices, source = r.fallback()
	}

	r.mu.Lock()
	r.devices = devices
	list := copyDevices(r.devices)
	r.mu.Unlock()

	if source == SourceRemote {
		if err := r.mirror.SaveSnapshot(devices); err != nil {
			r.log.Warn().Err(err).Msg("failed to mirror fetched devices")
		}
	}

	r.log.Info().
		Int("devices", len(list)).
		Str("source", source.String()).
		Dur("elapsed", time.Since(start)).
		Msg("device list refreshed")
	return list, source
}

func (r *Registry) fallback() ([]labreg.Device, Source) {
	if snap, err := r.mirror.Snapshot(); err == nil {
		return snap, SourceMirror
	}
	return copyDevices(r.seed), SourceSeed
}

// Devices returns a copy of the current working set.
func (r *Registry) Devices() []labreg.Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return copyDevices(r.devices)
}

// Device looks up a device by ID in the working set.
func (r *Registry) Device(id int) (labreg.Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := range r.devices {
		if r.devices[i].ID == id {
			return r.devices[i], true
		}
	}
	return labreg.Device{}, false
}

// Add registers a new device. The draft must already be validated by the
// caller; Add performs the advisory uniqueness check against the loaded
// list before any network traffic, so an obvious duplicate never leaves
// the machine. No local state changes on failure.
func (r *Registry) Add(ctx context.Context, draft *labreg.DeviceDraft) (labreg.Device, error) {
	r.mu.RLock()
	conflict := labreg.FindConflict(r.devices, draft)
	r.mu.RUnlock()
	if conflict != nil {
		return labreg.Device{}, conflict
	}

	created, err := r.backend.Register(ctx, draft)
	if err != nil {
		return labreg.Device{}, fmt.Errorf("registration failed: %w", err)
	}

	r.mu.Lock()
	r.devices = append(r.devices, created)
	list := copyDevices(r.devices)
	r.mu.Unlock()

	r.saveMirror(list)
	r.log.Info().Int("id", created.ID).Str("student_id", created.StudentID).Msg("device registered")
	return created, nil
}

// Update merges a patch over the stored record and sends the merged
// record to the backend. Fields the patch omits are preserved. When the
// backend is unreachable the merge is applied to the local list and
// mirror anyway and the result reports SavedRemotely=false. A response
// that arrives after a newer mutation on the same record is discarded.
func (r *Registry) Update(ctx context.Context, id int, patch *labreg.DevicePatch) (UpdateResult, error) {
	r.mu.Lock()
	existing, ok := r.findLocked(id)
	if !ok {
		r.mu.Unlock()
		return UpdateResult{}, labreg.ErrNotFound
	}
	merged := patch.Apply(existing)
	r.versions[id]++
	version := r.versions[id]
	r.mu.Unlock()

	updated, err := r.backend.Update(ctx, merged)
	if err != nil {
		var conflict *labreg.ConflictError
		if errors.As(err, &conflict) {
			return UpdateResult{}, conflict
		}

		r.log.Warn().Err(err).Int("id", id).Msg("backend update failed, saving locally only")
		merged.UpdatedAt = r.now()
		r.applyIfCurrent(id, version, merged)
		return UpdateResult{Device: merged, SavedRemotely: false}, nil
	}

	r.applyIfCurrent(id, version, updated)
	return UpdateResult{Device: updated, SavedRemotely: true}, nil
}

// Delete removes a device. The record leaves the local list and mirror
// even when the backend call fails: the operator asked for it to be gone
// from their view, and a failed remote delete is only logged. The return
// reports whether the backend acknowledged the deletion.
func (r *Registry) Delete(ctx context.Context, id int) (bool, error) {
	r.mu.Lock()
	if _, ok := r.findLocked(id); !ok {
		r.mu.Unlock()
		return false, labreg.ErrNotFound
	}
	// Invalidate any in-flight mutation response for this record.
	r.versions[id]++
	r.mu.Unlock()

	remoteOK := true
	if err := r.backend.Delete(ctx, id); err != nil {
		remoteOK = false
		r.log.Warn().Err(err).Int("id", id).Msg("backend delete failed, removing locally anyway")
	}

	r.mu.Lock()
	kept := r.devices[:0]
	for i := range r.devices {
		if r.devices[i].ID != id {
			kept = append(kept, r.devices[i])
		}
	}
	r.devices = kept
	list := copyDevices(r.devices)
	r.mu.Unlock()

	r.saveMirror(list)
	if err := r.mirror.ClearMovements(id); err != nil {
		r.log.Warn().Err(err).Int("id", id).Msg("failed to clear movement history")
	}
	r.log.Info().Int("id", id).Bool("remote", remoteOK).Msg("device deleted")
	return remoteOK, nil
}

// Verify asks the backend to mark a device verified. Verification is a
// trust assertion, so unlike update and delete it gets no local-only
// fallback: if the backend does not confirm it, nothing changes.
func (r *Registry) Verify(ctx context.Context, id int) (labreg.Device, error) {
	r.mu.Lock()
	if _, ok := r.findLocked(id); !ok {
		r.mu.Unlock()
		return labreg.Device{}, labreg.ErrNotFound
	}
	r.versions[id]++
	version := r.versions[id]
	r.mu.Unlock()

	verified, err := r.backend.Verify(ctx, id)
	if err != nil {
		return labreg.Device{}, fmt.Errorf("verification failed: %w", err)
	}

	r.applyIfCurrent(id, version, verified)
	r.log.Info().Int("id", id).Msg("device verified")
	return verified, nil
}

// SetMovement records a physical check-in/check-out for a device.
func (r *Registry) SetMovement(id int, status labreg.MovementStatus, note string) error {
	if _, ok := r.Device(id); !ok {
		return labreg.ErrNotFound
	}
	return r.mirror.SetMovement(id, status, note, r.now())
}

// MovementStatus returns a device's current in/out status.
func (r *Registry) MovementStatus(id int) (labreg.MovementStatus, bool) {
	return r.mirror.MovementStatus(id)
}

// MovementHistory returns a device's in/out log, oldest first.
func (r *Registry) MovementHistory(id int) []labreg.Movement {
	return r.mirror.MovementHistory(id)
}

// applyIfCurrent replaces the record only if no newer mutation superseded
// the one that produced this response.
func (r *Registry) applyIfCurrent(id int, version uint64, device labreg.Device) {
	r.mu.Lock()
	if r.versions[id] != version {
		r.mu.Unlock()
		r.log.Debug().Int("id", id).Msg("discarding stale mutation response")
		return
	}
	for i := range r.devices {
		if r.devices[i].ID == id {
			r.devices[i] = device
			break
		}
	}
	list := copyDevices(r.devices)
	r.mu.Unlock()

	r.saveMirror(list)
}

func (r *Registry) findLocked(id int) (labreg.Device, bool) {
	for i := range r.devices {
		if r.devices[i].ID == id {
			return r.devices[i], true
		}
	}
	return labreg.Device{}, false
}

func (r *Registry) saveMirror(devices []labreg.Device) {
	if err := r.mirror.SaveSnapshot(devices); err != nil {
		r.log.Warn().Err(err).Msg("failed to mirror device list")
	}
}

func copyDevices(devices []labreg.Device) []labreg.Device {
	out := make([]labreg.Device, len(devices))
	copy(out, devices)
	return out
}
