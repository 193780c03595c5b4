package saves

import (
	"github.com/calvinalkan/savestore/internal/logging"
)

// SaveGlobal stores v under key in the global store and writes it through,
// refreshing the global default backup.
func SaveGlobal[T any](s *System, key string, v T) error {
	s.ensureCached(s.global)

	err := s.lib.Save(key, v, s.global.path)
	if err != nil {
		return err
	}

	return s.persistGlobal()
}

// LoadGlobal returns the value stored under key in the global store, or def
// if it is missing or cannot be decoded as T.
func LoadGlobal[T any](s *System, key string, def T) T {
	s.ensureCached(s.global)

	v, err := loadFrom[T](s, s.global, key)
	if err != nil {
		return def
	}

	return v
}

// GlobalKeyExists reports whether key is present in the global store.
func (s *System) GlobalKeyExists(key string) bool {
	s.ensureCached(s.global)

	ok, _ := s.lib.KeyExists(key, s.global.path)

	return ok
}

// DeleteGlobalKey removes key from the global store and writes it through.
func (s *System) DeleteGlobalKey(key string) error {
	s.ensureCached(s.global)

	err := s.lib.DeleteKey(key, s.global.path)
	if err != nil {
		return err
	}

	return s.persistGlobal()
}

// GlobalKeys returns the sorted keys of the global store.
func (s *System) GlobalKeys() []string {
	s.ensureCached(s.global)

	keys, _ := s.lib.Keys(s.global.path)

	return keys
}

func (s *System) persistGlobal() error {
	path := s.global.path

	err := s.lib.StoreCachedFile(path)
	if err != nil {
		s.log.Error().Err(err).Str(logging.FieldPath, path).Msg("write global store")

		return err
	}

	err = s.lib.CreateBackup(path)
	s.metrics.backup(kindDefault, err)

	if err != nil {
		s.log.Warn().Err(err).Str(logging.FieldPath, path).Msg("global backup failed")
	}

	return nil
}
