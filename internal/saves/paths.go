package saves

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/calvinalkan/savestore/pkg/container"
)

// MaxIndexedBackups is the number of rotating indexed backups kept per slot.
const MaxIndexedBackups = 10

// GlobalFileName is the file name of the slot-independent global store.
const GlobalFileName = "global.sav"

const (
	slotFilePrefix = "slot-"
	saveFileExt    = ".sav"
)

// ClampSlot maps any slot below 1 to 1.
func ClampSlot(slot int) int {
	return max(slot, 1)
}

// PathFor returns the canonical save file for slot inside dir.
func PathFor(dir string, slot int) string {
	return filepath.Join(dir, slotFilePrefix+strconv.Itoa(ClampSlot(slot))+saveFileExt)
}

// GlobalPath returns the global store file inside dir.
func GlobalPath(dir string) string {
	return filepath.Join(dir, GlobalFileName)
}

// DefaultBackupPath returns the default backup companion of path.
func DefaultBackupPath(path string) string {
	return path + container.BackupSuffix
}

// IndexedBackupPath returns the indexed backup companion of path for index
// 0..9, named path.bac.01 through path.bac.10.
func IndexedBackupPath(path string, index int) string {
	return fmt.Sprintf("%s%s.%02d", path, container.BackupSuffix, index+1)
}

// companionPaths returns the default backup followed by every indexed backup.
func companionPaths(path string) []string {
	paths := make([]string, 0, 1+MaxIndexedBackups)
	paths = append(paths, DefaultBackupPath(path))

	for i := range MaxIndexedBackups {
		paths = append(paths, IndexedBackupPath(path, i))
	}

	return paths
}

// parseSlotFile extracts the slot from a canonical save file name.
func parseSlotFile(name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, slotFilePrefix)
	if !ok {
		return 0, false
	}

	digits, ok := strings.CutSuffix(rest, saveFileExt)
	if !ok || digits == "" {
		return 0, false
	}

	slot, err := strconv.Atoi(digits)
	if err != nil || slot < 1 || strconv.Itoa(slot) != digits {
		return 0, false
	}

	return slot, true
}

// Preference keys.
const (
	prefSlot = "slot"
)

func rotationKey(slot int) string {
	return fmt.Sprintf("backup.%d.last", slot)
}

func backupTimeKey(slot, index int) string {
	return fmt.Sprintf("backup.%d.%d.time", slot, index)
}
