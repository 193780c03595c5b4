package saves

import (
	"time"

	"github.com/calvinalkan/savestore/internal/logging"
	"github.com/calvinalkan/savestore/pkg/container"
)

// BackupInfo describes one indexed backup of a slot.
type BackupInfo struct {
	Slot   int
	Index  int
	Path   string
	Exists bool

	// TimeRaw is the save time (unix nanoseconds) of the file the backup
	// was copied from, or 0 if unknown.
	TimeRaw int64
}

// Time returns TimeRaw as a [time.Time].
func (b BackupInfo) Time() time.Time { return time.Unix(0, b.TimeRaw) }

// TimeValid reports whether TimeRaw is known.
func (b BackupInfo) TimeValid() bool { return b.TimeRaw > 0 }

// Backups lists the ten indexed backups of slot.
func (s *System) Backups(slot int) []BackupInfo {
	slot = ClampSlot(slot)
	path := PathFor(s.dir, slot)
	infos := make([]BackupInfo, MaxIndexedBackups)

	for i := range infos {
		b := BackupInfo{Slot: slot, Index: i, Path: IndexedBackupPath(path, i)}
		b.Exists = s.lib.FileExists(b.Path)

		if v, ok := s.prefs.Int64(backupTimeKey(slot, i)); ok && v > 0 {
			b.TimeRaw = v
		} else if b.Exists {
			v, err := container.LoadUncached[int64](s.lib, KeySaveTime, b.Path)
			if err == nil && v > 0 {
				b.TimeRaw = v
			}
		}

		infos[i] = b
	}

	return infos
}

// rotateBackups runs after ns was stored: it refreshes the default backup
// and, at most once per interval, one indexed backup.
func (s *System) rotateBackups(ns *namespace, saveTime time.Time) {
	err := s.lib.CreateBackup(ns.path)
	s.metrics.backup(kindDefault, err)

	if err != nil {
		s.log.Warn().Err(err).Str(logging.FieldPath, ns.path).Msg("default backup failed")
	}

	if ns.global() {
		return
	}

	now := s.clock.Now()

	last, ok := s.guardTime(prefsTimes{s}, rotationKey(ns.slot))
	if ok && now.Sub(last) < s.interval {
		return
	}

	index := s.rotationTarget(ns.slot)
	target := IndexedBackupPath(ns.path, index)

	err = s.lib.CopyFile(ns.path, target)
	s.metrics.backup(kindIndexed, err)

	if err != nil {
		s.log.Warn().Err(err).Str(logging.FieldPath, target).Msg("indexed backup failed")

		return
	}

	err = s.prefs.SetInt64(backupTimeKey(ns.slot, index), saveTime.UnixNano())
	if err != nil {
		s.log.Warn().Err(err).Int(logging.FieldIndex, index).Msg("record backup time")
	}

	err = s.prefs.SetInt64(rotationKey(ns.slot), now.UnixNano())
	if err != nil {
		s.log.Warn().Err(err).Int(logging.FieldSlot, ns.slot).Msg("record rotation time")
	}

	s.log.Debug().Int(logging.FieldSlot, ns.slot).Int(logging.FieldIndex, index).Msg("indexed backup rotated")
}

// rotationTarget picks the lowest missing index, else the oldest backup
// (lowest index on ties).
func (s *System) rotationTarget(slot int) int {
	infos := s.Backups(slot)

	for _, b := range infos {
		if !b.Exists {
			return b.Index
		}
	}

	oldest := infos[0]

	for _, b := range infos[1:] {
		if b.TimeRaw < oldest.TimeRaw {
			oldest = b
		}
	}

	return oldest.Index
}

// RestoreIndexedBackup copies indexed backup index (0..9) of slot over the
// slot's file. If slot is current it is reloaded as if by [System.SetFile].
func (s *System) RestoreIndexedBackup(slot, index int) error {
	if index < 0 || index >= MaxIndexedBackups {
		return ErrInvalidIndex
	}

	slot = ClampSlot(slot)
	path := PathFor(s.dir, slot)
	src := IndexedBackupPath(path, index)

	if !s.lib.FileExists(src) {
		return ErrNoBackup
	}

	err := s.lib.CopyFile(src, path)
	if err != nil {
		return err
	}

	s.log.Info().Int(logging.FieldSlot, slot).Int(logging.FieldIndex, index).Msg("indexed backup restored")

	if s.current != nil && s.current.slot == slot {
		return s.SetFile(slot)
	}

	return nil
}
