package saves

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/savestore/pkg/container"
	sfs "github.com/calvinalkan/savestore/pkg/fs"
)

func Test_Backups_Refreshes_Default_Every_Save_When_Saves_Are_Within_Interval(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	s := h.open()
	path := PathFor(h.dir, 1)

	for i := range 10 {
		mustSave(t, s, "HP", i)
		mustSaveFile(t, s)
		h.clock.Advance(time.Second)
	}

	assert.InDelta(t, 10, testutil.ToFloat64(s.metrics.backups.WithLabelValues(kindDefault, statusOK)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(s.metrics.backups.WithLabelValues(kindIndexed, statusOK)), 0)

	hp, err := container.LoadUncached[int](container.New(sfs.NewReal()), "HP", DefaultBackupPath(path))
	require.NoError(t, err)
	assert.Equal(t, 9, hp, "default backup holds the latest save")

	first, err := container.LoadUncached[int](container.New(sfs.NewReal()), "HP", IndexedBackupPath(path, 0))
	require.NoError(t, err)
	assert.Equal(t, 0, first, "indexed backup holds the save that rotated it")

	for i := 1; i < MaxIndexedBackups; i++ {
		assert.False(t, fileExists(t, IndexedBackupPath(path, i)), i)
	}

	h.clock.Advance(DefaultBackupInterval)
	mustSaveFile(t, s)

	assert.True(t, fileExists(t, IndexedBackupPath(path, 1)))
	assert.InDelta(t, 2, testutil.ToFloat64(s.metrics.backups.WithLabelValues(kindIndexed, statusOK)), 0)
}

func Test_Backups_Overwrites_Oldest_When_All_Indexes_Used(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	s := h.open()

	var times []int64

	for range MaxIndexedBackups + 2 {
		times = append(times, h.clock.Now().UnixNano())
		mustSaveFile(t, s)
		h.clock.Advance(DefaultBackupInterval)
	}

	infos := s.Backups(1)
	require.Len(t, infos, MaxIndexedBackups)

	want := make([]int64, MaxIndexedBackups)
	copy(want, times[:MaxIndexedBackups])
	want[0] = times[MaxIndexedBackups]
	want[1] = times[MaxIndexedBackups+1]

	for i, b := range infos {
		assert.True(t, b.Exists, i)
		assert.True(t, b.TimeValid(), i)
		assert.Equal(t, want[i], b.TimeRaw, "index %d", i)
		assert.Equal(t, i, b.Index)
		assert.Equal(t, 1, b.Slot)
	}
}

func Test_RotationTarget_Picks_Expected_Index_When_Backups_Vary(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		missing []int
		times   map[int]int64
		want    int
	}{
		{name: "AllMissing", missing: []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, want: 0},
		{name: "LowestMissing", missing: []int{7, 3}, want: 3},
		{name: "AllEqualTimes", want: 0},
		{name: "OldestWins", times: map[int]int64{4: 5}, want: 4},
		{name: "TieBreaksOnLowestIndex", times: map[int]int64{0: 500, 6: 5, 8: 5}, want: 6},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t)
			path := PathFor(h.dir, 1)

			for i := range MaxIndexedBackups {
				require.NoError(t, h.prefs.SetInt64(backupTimeKey(1, i), 100))

				if v, ok := testCase.times[i]; ok {
					require.NoError(t, h.prefs.SetInt64(backupTimeKey(1, i), v))
				}

				if !slices.Contains(testCase.missing, i) {
					h.writeContainer(IndexedBackupPath(path, i), map[string]any{})
				}
			}

			assert.Equal(t, testCase.want, h.open().rotationTarget(1))
		})
	}
}

func Test_Backups_Reads_Time_From_File_When_Prefs_Lack_It(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	path := PathFor(h.dir, 5)
	h.writeContainer(IndexedBackupPath(path, 3), map[string]any{KeySaveTime: int64(4242)})
	h.writeContainer(IndexedBackupPath(path, 4), map[string]any{"HP": 1})

	infos := h.open().Backups(5)

	assert.Equal(t, int64(4242), infos[3].TimeRaw)
	assert.True(t, infos[4].Exists)
	assert.False(t, infos[4].TimeValid())
	assert.False(t, infos[0].Exists)
	assert.Equal(t, time.Unix(0, 4242), infos[3].Time())
}

func Test_Backups_Continue_When_Default_Backup_Write_Fails(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	s := h.open()
	mustSaveFile(t, s)

	// A directory in place of the .bac file makes the backup write fail.
	bac := DefaultBackupPath(PathFor(h.dir, 1))
	require.NoError(t, os.Remove(bac))
	require.NoError(t, os.MkdirAll(filepath.Join(bac, "blocker"), 0o755))

	h.clock.Advance(DefaultBackupInterval)
	mustSaveFile(t, s)

	assert.InDelta(t, 1, testutil.ToFloat64(s.metrics.backups.WithLabelValues(kindDefault, statusError)), 0)
	assert.True(t, fileExists(t, IndexedBackupPath(PathFor(h.dir, 1), 1)), "indexed rotation still runs")
}

func Test_RestoreIndexedBackup_Reloads_Current_Slot_When_Restored(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	s := h.open()

	mustSave(t, s, "HP", 1)
	mustSaveFile(t, s)
	h.clock.Advance(DefaultBackupInterval)

	mustSave(t, s, "HP", 2)
	mustSaveFile(t, s)
	mustSave(t, s, "HP", 3)
	mustSaveFile(t, s)

	var reloaded []int

	s.OnSetFile(func(slot int) { reloaded = append(reloaded, slot) })

	require.NoError(t, s.RestoreIndexedBackup(1, 0))
	assert.Equal(t, 1, LoadOr(s, "HP", 0))
	assert.Equal(t, []int{1}, reloaded)

	require.ErrorIs(t, s.RestoreIndexedBackup(1, 10), ErrInvalidIndex)
	require.ErrorIs(t, s.RestoreIndexedBackup(1, -1), ErrInvalidIndex)
	require.ErrorIs(t, s.RestoreIndexedBackup(1, 5), ErrNoBackup)
}
