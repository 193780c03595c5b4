package saves

import (
	"cmp"
	"slices"

	"github.com/calvinalkan/savestore/internal/logging"
)

// recover makes ns's container loadable again. It tries the default backup,
// then (for slots) every existing indexed backup newest first, and finally
// resets the container to empty. It reports whether the hard reset ran.
func (s *System) recover(ns *namespace) bool {
	log := s.log.With().Str(logging.FieldPath, ns.path).Logger()

	err := s.lib.RestoreBackup(ns.path)
	if err == nil {
		err = s.lib.CacheFile(ns.path)
	}

	if err == nil {
		log.Warn().Str(logging.FieldStep, outcomeDefaultBackup).Msg("recovered from default backup")
		s.metrics.recoveries.WithLabelValues(outcomeDefaultBackup).Inc()

		return false
	}

	log.Warn().Err(err).Str(logging.FieldStep, outcomeDefaultBackup).Msg("default backup unusable")

	if !ns.global() {
		for _, b := range s.recoveryCandidates(ns.slot) {
			err = s.lib.CopyFile(b.Path, ns.path)
			if err == nil {
				err = s.lib.CacheFile(ns.path)
			}

			if err == nil {
				log.Warn().
					Str(logging.FieldStep, outcomeIndexedBackup).
					Int(logging.FieldIndex, b.Index).
					Msg("recovered from indexed backup")
				s.metrics.recoveries.WithLabelValues(outcomeIndexedBackup).Inc()

				return false
			}

			log.Warn().Err(err).
				Str(logging.FieldStep, outcomeIndexedBackup).
				Int(logging.FieldIndex, b.Index).
				Msg("indexed backup unusable")
		}
	}

	s.hardReset(ns)

	return true
}

// recoveryCandidates returns the existing indexed backups of slot, newest
// first, ties broken by lowest index.
func (s *System) recoveryCandidates(slot int) []BackupInfo {
	infos := slices.DeleteFunc(s.Backups(slot), func(b BackupInfo) bool { return !b.Exists })

	slices.SortStableFunc(infos, func(a, b BackupInfo) int {
		if c := cmp.Compare(b.TimeRaw, a.TimeRaw); c != 0 {
			return c
		}

		return cmp.Compare(a.Index, b.Index)
	})

	return infos
}

// hardReset replaces ns's container with an empty one and raises the
// restore failure marker.
func (s *System) hardReset(ns *namespace) {
	err := s.lib.DeleteFile(ns.path)
	if err != nil {
		s.log.Warn().Err(err).Str(logging.FieldPath, ns.path).Msg("delete unrecoverable container")
	}

	s.lib.Reset(ns.path)
	_ = s.lib.Save(KeyCreated, true, ns.path)
	_ = s.lib.Save(KeySaveID, newSaveID(), ns.path)
	s.storeLogged(ns.path)

	s.restoreFailed = true
	s.metrics.recoveries.WithLabelValues(outcomeHardReset).Inc()
	s.log.Error().Str(logging.FieldPath, ns.path).Msg("all backups exhausted, container reset to empty")
}
