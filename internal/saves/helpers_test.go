package saves

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/calvinalkan/savestore/internal/prefs"
	"github.com/calvinalkan/savestore/internal/testutil"
	"github.com/calvinalkan/savestore/pkg/container"
	sfs "github.com/calvinalkan/savestore/pkg/fs"
)

// recordingFS records the paths passed to ReadFile.
type recordingFS struct {
	sfs.FS

	mu    sync.Mutex
	reads []string
}

func (r *recordingFS) ReadFile(path string) ([]byte, error) {
	r.mu.Lock()
	r.reads = append(r.reads, path)
	r.mu.Unlock()

	return r.FS.ReadFile(path)
}

func (r *recordingFS) Reads() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.reads...)
}

func (r *recordingFS) ReadsExcept(path string) []string {
	var out []string

	for _, p := range r.Reads() {
		if p != path {
			out = append(out, p)
		}
	}

	return out
}

func (r *recordingFS) Count(path string) int {
	n := 0

	for _, p := range r.Reads() {
		if p == path {
			n++
		}
	}

	return n
}

type harness struct {
	t     *testing.T
	dir   string
	fs    sfs.FS
	prefs *prefs.Memory
	clock *testutil.Clock
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	return &harness{
		t:     t,
		dir:   filepath.Join(t.TempDir(), "saves"),
		fs:    sfs.NewReal(),
		prefs: prefs.NewMemory(),
		clock: testutil.NewClock(),
	}
}

// open starts a new session over the harness state.
func (h *harness) open() *System {
	h.t.Helper()

	s, err := Open(Options{
		Dir:        h.dir,
		FS:         h.fs,
		Prefs:      h.prefs,
		Clock:      h.clock,
		Registerer: prometheus.NewRegistry(),
	})
	if err != nil {
		h.t.Fatalf("Open: %v", err)
	}

	return s
}

// openWith starts a session over fsys.
func (h *harness) openWith(fsys sfs.FS) *System {
	h.t.Helper()

	s, err := Open(Options{Dir: h.dir, FS: fsys, Prefs: h.prefs, Clock: h.clock})
	if err != nil {
		h.t.Fatalf("Open: %v", err)
	}

	return s
}

// writeContainer writes a valid container holding values to path.
func (h *harness) writeContainer(path string, values map[string]any) {
	h.t.Helper()

	lib := container.New(sfs.NewReal())
	lib.Reset(path)

	for k, v := range values {
		if err := lib.Save(k, v, path); err != nil {
			h.t.Fatalf("save %s: %v", k, err)
		}
	}

	if err := lib.StoreCachedFile(path); err != nil {
		h.t.Fatalf("store %s: %v", path, err)
	}
}

func (h *harness) corrupt(path string) {
	h.t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		h.t.Fatalf("mkdir: %v", err)
	}

	if err := os.WriteFile(path, []byte("garbage, not a container"), 0o644); err != nil {
		h.t.Fatalf("corrupt %s: %v", path, err)
	}
}

func fileExists(t *testing.T, path string) bool {
	t.Helper()

	_, err := os.Stat(path)
	if err == nil {
		return true
	}

	if os.IsNotExist(err) {
		return false
	}

	t.Fatalf("stat %s: %v", path, err)

	return false
}

// snapshotFiles returns the contents of every existing path.
func snapshotFiles(t *testing.T, paths []string) map[string]string {
	t.Helper()

	out := make(map[string]string)

	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}

			t.Fatalf("read %s: %v", p, err)
		}

		out[p] = string(data)
	}

	return out
}

func mustSave[T any](t *testing.T, s *System, key string, v T) {
	t.Helper()

	if err := Save(s, key, v); err != nil {
		t.Fatalf("Save(%s): %v", key, err)
	}
}

func mustSaveFile(t *testing.T, s *System) {
	t.Helper()

	if err := s.SaveFile(); err != nil {
		t.Fatalf("SaveFile: %v", err)
	}
}

func mustSetFile(t *testing.T, s *System, slot int) {
	t.Helper()

	if err := s.SetFile(slot); err != nil {
		t.Fatalf("SetFile(%d): %v", slot, err)
	}
}
