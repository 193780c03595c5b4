// Package saves is the save game engine: per-slot keyed persistence with a
// default backup and ten rotating indexed backups per slot, a recovery
// cascade for unreadable containers, a slot-independent global store, a
// guard against clock rollback, and a registry of save data providers.
//
// A [System] is not safe for concurrent use. It is meant to be driven from a
// single game loop; providers and hook subscribers may call back into it.
//
// Reads and writes never fail because a container is corrupt or unreadable.
// Such containers are repaired from backups, or reset to empty when every
// backup is unusable, before control returns. The reset is reported through
// [System.RestoreFailed] and OnRestoreFailureDetected.
package saves

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/calvinalkan/savestore/internal/logging"
	"github.com/calvinalkan/savestore/internal/prefs"
	"github.com/calvinalkan/savestore/pkg/container"
	sfs "github.com/calvinalkan/savestore/pkg/fs"
)

// Keys the engine writes into every slot container.
const (
	KeySaveTime = "SaveTime"
	KeyCreated  = "Created"
	KeySaveID   = "SaveID"
)

// DefaultBackupInterval is the minimum time between indexed backup rotations.
const DefaultBackupInterval = 5 * time.Minute

// Options configures [Open].
type Options struct {
	// Dir holds slot files and the global store. Required.
	Dir string

	// FS defaults to the real filesystem.
	FS sfs.FS

	// Prefs defaults to an in-memory store.
	Prefs prefs.Store

	// Clock defaults to [SystemClock].
	Clock Clock

	// Logger receives engine logs. The zero value discards them.
	Logger zerolog.Logger

	// Registerer exports metrics. Nil keeps them unregistered.
	Registerer prometheus.Registerer

	// BackupInterval defaults to [DefaultBackupInterval].
	BackupInterval time.Duration
}

// System is the save engine.
type System struct {
	dir      string
	fs       sfs.FS
	lib      *container.Library
	prefs    prefs.Store
	clock    Clock
	log      zerolog.Logger
	metrics  *metrics
	interval time.Duration

	current *namespace
	global  *namespace

	restoreFailed bool
	saving        bool

	providers []Provider
	hooks     hooks
}

// Open returns a System for opts.Dir. It does not touch disk; containers are
// loaded on first use.
func Open(opts Options) (*System, error) {
	if opts.Dir == "" {
		return nil, ErrNoDir
	}

	if opts.FS == nil {
		opts.FS = sfs.NewReal()
	}

	if opts.Prefs == nil {
		opts.Prefs = prefs.NewMemory()
	}

	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}

	if opts.BackupInterval <= 0 {
		opts.BackupInterval = DefaultBackupInterval
	}

	return &System{
		dir:      opts.Dir,
		fs:       opts.FS,
		lib:      container.New(opts.FS),
		prefs:    opts.Prefs,
		clock:    opts.Clock,
		log:      logging.WithComponent(opts.Logger, "saves"),
		metrics:  newMetrics(opts.Registerer),
		interval: opts.BackupInterval,
		global:   &namespace{slot: 0, path: GlobalPath(opts.Dir)},
	}, nil
}

// Dir returns the save directory.
func (s *System) Dir() string { return s.dir }

// currentNS returns the current slot namespace, reading the persisted slot
// on first use.
func (s *System) currentNS() *namespace {
	if s.current == nil {
		slot := 1
		if v, ok := s.prefs.Int64(prefSlot); ok {
			slot = ClampSlot(int(v))
		}

		s.current = &namespace{slot: slot, path: PathFor(s.dir, slot)}
	}

	return s.current
}

// Slot returns the current slot.
func (s *System) Slot() int { return s.currentNS().slot }

// Context returns a snapshot of the current slot's persistence context.
func (s *System) Context() PersistenceContext { return s.currentNS().context() }

// RestoreFailed reports whether any container had to be reset to empty
// because every backup was unusable. It is never cleared.
func (s *System) RestoreFailed() bool { return s.restoreFailed }

// Saving reports whether [System.SaveFile] is in progress.
func (s *System) Saving() bool { return s.saving }

// Save stores v under key in the current slot. It reaches disk on the next
// [System.SaveFile].
func Save[T any](s *System, key string, v T) error {
	ns := s.currentNS()
	s.ensureCached(ns)

	return s.lib.Save(key, v, ns.path)
}

// Load returns the value stored under key in the current slot. The only
// errors are [ErrKeyNotFound] and decode failures.
func Load[T any](s *System, key string) (T, error) {
	ns := s.currentNS()
	s.ensureCached(ns)

	return loadFrom[T](s, ns, key)
}

// LoadOr is [Load] returning def on any error.
func LoadOr[T any](s *System, key string, def T) T {
	v, err := Load[T](s, key)
	if err != nil {
		return def
	}

	return v
}

func loadFrom[T any](s *System, ns *namespace, key string) (T, error) {
	return container.Load[T](s.lib, key, ns.path)
}

// KeyExists reports whether key is present in the current slot.
func (s *System) KeyExists(key string) bool {
	ns := s.currentNS()
	s.ensureCached(ns)

	ok, _ := s.lib.KeyExists(key, ns.path)

	return ok
}

// DeleteKey removes key from the current slot.
func (s *System) DeleteKey(key string) error {
	ns := s.currentNS()
	s.ensureCached(ns)

	return s.lib.DeleteKey(key, ns.path)
}

// Keys returns the sorted keys of the current slot.
func (s *System) Keys() []string {
	ns := s.currentNS()
	s.ensureCached(ns)

	keys, _ := s.lib.Keys(ns.path)

	return keys
}

// SaveID returns the identity stamped on the current slot when it was created.
func (s *System) SaveID() string {
	return LoadOr(s, KeySaveID, "")
}

// SaveFile commits the current slot: it stamps the save time, collects
// provider data, writes the container and rotates backups. Only a failure to
// write the container is returned; provider and backup failures are logged.
func (s *System) SaveFile() error {
	start := time.Now()

	s.saving = true
	defer func() { s.saving = false }()

	ns := s.currentNS()
	s.ensureCached(ns)

	saveTime := s.clock.Now()
	err := s.lib.Save(KeySaveTime, saveTime.UnixNano(), ns.path)
	if err != nil {
		s.log.Warn().Err(err).Int(logging.FieldSlot, ns.slot).Msg("stamp save time")
	}

	err = s.CollectSaveData()
	if err != nil {
		s.log.Warn().Err(err).Int(logging.FieldSlot, ns.slot).Msg("collect save data")
	}

	err = s.lib.StoreCachedFile(ns.path)
	if err != nil {
		s.metrics.saves.WithLabelValues(statusError).Inc()
		s.log.Error().Err(err).Int(logging.FieldSlot, ns.slot).Msg("save failed")

		return fmt.Errorf("save slot %d: %w", ns.slot, err)
	}

	s.rotateBackups(ns, saveTime)

	s.metrics.saves.WithLabelValues(statusOK).Inc()
	s.metrics.saveDuration.Observe(time.Since(start).Seconds())
	s.log.Debug().Int(logging.FieldSlot, ns.slot).Msg("saved")

	return nil
}

// SetFile switches to slot (clamped to >= 1) and persists the choice. The
// new slot is loaded, repaired if necessary, OnSetFile fires, and every
// provider reloads its data. Provider failures are joined and returned.
func (s *System) SetFile(slot int) error {
	slot = ClampSlot(slot)

	err := s.prefs.SetInt64(prefSlot, int64(slot))
	if err != nil {
		s.log.Warn().Err(err).Int(logging.FieldSlot, slot).Msg("persist current slot")
	}

	if s.current != nil {
		s.lib.Uncache(s.current.path)
		s.current.cached = false
	}

	ns := &namespace{slot: slot, path: PathFor(s.dir, slot)}
	s.current = ns
	s.ensureCached(ns)

	s.log.Info().Int(logging.FieldSlot, slot).Msg("slot selected")

	for _, fn := range s.hooks.setFile.snapshot() {
		_ = s.safeCall("OnSetFile", func() { fn(slot) })
	}

	return s.setupProviders()
}

// DeleteSave removes slot's file and all its backups and forgets its backup
// times. If slot is current its cache is dropped; the next access starts a
// fresh container. OnSaveDeleted fires even if some files could not be removed.
func (s *System) DeleteSave(slot int) error {
	slot = ClampSlot(slot)
	path := PathFor(s.dir, slot)

	var errs []error

	for _, p := range append([]string{path}, companionPaths(path)...) {
		err := s.lib.DeleteFile(p)
		if err != nil {
			errs = append(errs, err)
		}
	}

	keys := []string{rotationKey(slot)}
	for i := range MaxIndexedBackups {
		keys = append(keys, backupTimeKey(slot, i))
	}

	err := s.prefs.Delete(keys...)
	if err != nil {
		errs = append(errs, err)
	}

	if s.current != nil && s.current.slot == slot {
		s.current.cached = false
	}

	s.log.Info().Int(logging.FieldSlot, slot).Msg("save deleted")

	for _, fn := range s.hooks.saveDeleted.snapshot() {
		_ = s.safeCall("OnSaveDeleted", func() { fn(slot) })
	}

	return errors.Join(errs...)
}

// HasSave reports whether slot's file exists.
func (s *System) HasSave(slot int) bool {
	return s.lib.FileExists(PathFor(s.dir, slot))
}

// Slots returns the slots that have a save file, ascending.
func (s *System) Slots() ([]int, error) {
	entries, err := s.fs.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("read save dir: %w", err)
	}

	var slots []int

	for _, e := range entries {
		if e.IsDir() {
			continue
		}

		if slot, ok := parseSlotFile(e.Name()); ok {
			slots = append(slots, slot)
		}
	}

	slices.Sort(slots)

	return slots, nil
}
