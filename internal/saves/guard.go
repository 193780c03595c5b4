package saves

import (
	"errors"

	"github.com/google/uuid"

	"github.com/calvinalkan/savestore/internal/logging"
	"github.com/calvinalkan/savestore/pkg/container"
)

// ensureCached makes ns's container readable and writable. It loads the file
// at most once until the namespace is invalidated. A missing file without
// backups is a fresh slot; any other failure runs the recovery cascade.
// Afterwards the container is always cached.
func (s *System) ensureCached(ns *namespace) {
	if ns.cached && s.lib.IsCached(ns.path) {
		return
	}

	hardReset := false

	err := s.lib.CacheFile(ns.path)

	switch {
	case err == nil:
	case errors.Is(err, container.ErrNotFound) && !s.anyBackupExists(ns):
		s.log.Debug().Str(logging.FieldPath, ns.path).Msg("creating fresh container")
		s.createFresh(ns)
	default:
		s.log.Warn().Err(err).Str(logging.FieldPath, ns.path).Msg("container unreadable, recovering")
		hardReset = s.recover(ns)
	}

	if !s.lib.IsCached(ns.path) {
		s.createFresh(ns)
	} else if !s.lib.FileExists(ns.path) {
		s.storeLogged(ns.path)
	}

	ns.cached = true

	if hardReset {
		for _, fn := range s.hooks.restoreFailure.snapshot() {
			_ = s.safeCall("OnRestoreFailureDetected", func() { fn(ns.path) })
		}
	}
}

// createFresh caches and writes an empty container carrying the Created
// sentinel and a new save id.
func (s *System) createFresh(ns *namespace) {
	s.lib.Reset(ns.path)
	_ = s.lib.Save(KeyCreated, true, ns.path)
	_ = s.lib.Save(KeySaveID, newSaveID(), ns.path)
	s.storeLogged(ns.path)
}

func (s *System) storeLogged(path string) {
	err := s.lib.StoreCachedFile(path)
	if err != nil {
		s.log.Warn().Err(err).Str(logging.FieldPath, path).Msg("write container")
	}
}

// anyBackupExists reports whether ns has a default backup or, for slots, any
// indexed backup.
func (s *System) anyBackupExists(ns *namespace) bool {
	if s.lib.FileExists(DefaultBackupPath(ns.path)) {
		return true
	}

	if ns.global() {
		return false
	}

	for i := range MaxIndexedBackups {
		if s.lib.FileExists(IndexedBackupPath(ns.path, i)) {
			return true
		}
	}

	return false
}

func newSaveID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return id.String()
}
