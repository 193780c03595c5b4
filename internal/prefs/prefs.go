// Package prefs is a small key/value preference store for integer settings
// that must survive restarts independently of save files: the current slot
// and backup rotation timestamps.
package prefs

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"path/filepath"
	"sync"

	"github.com/tailscale/hujson"

	sfs "github.com/calvinalkan/savestore/pkg/fs"
)

// ErrInvalid reports a preference file that could not be parsed.
var ErrInvalid = errors.New("invalid preferences")

// Store reads and writes integer preferences.
// Every successful SetInt64 or Delete is durable before it returns.
type Store interface {
	Int64(key string) (int64, bool)
	SetInt64(key string, value int64) error
	Delete(keys ...string) error
}

// File is a [Store] persisted as a JSON object at a fixed path.
// Comments and trailing commas are accepted when reading.
type File struct {
	fs   sfs.FS
	path string

	mu     sync.Mutex
	values map[string]int64
}

// Open loads the preference file at path. A missing file yields an empty store.
func Open(fsys sfs.FS, path string) (*File, error) {
	f := &File{fs: fsys, path: path, values: map[string]int64{}}

	data, err := fsys.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return f, nil
		}

		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrInvalid, path, err)
	}

	err = json.Unmarshal(standardized, &f.values)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrInvalid, path, err)
	}

	if f.values == nil {
		f.values = map[string]int64{}
	}

	return f, nil
}

// Path returns the backing file path.
func (f *File) Path() string { return f.path }

// Int64 returns the value stored under key.
func (f *File) Int64(key string) (int64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	v, ok := f.values[key]

	return v, ok
}

// SetInt64 stores value under key and writes the file.
// On write failure the in-memory value is rolled back.
func (f *File) SetInt64(key string, value int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	prev, had := f.values[key]
	f.values[key] = value

	err := f.flushLocked()
	if err != nil {
		if had {
			f.values[key] = prev
		} else {
			delete(f.values, key)
		}

		return err
	}

	return nil
}

// Delete removes keys and writes the file. Missing keys are ignored.
func (f *File) Delete(keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	prev := maps.Clone(f.values)
	changed := false

	for _, k := range keys {
		if _, ok := f.values[k]; ok {
			delete(f.values, k)

			changed = true
		}
	}

	if !changed {
		return nil
	}

	err := f.flushLocked()
	if err != nil {
		f.values = prev

		return err
	}

	return nil
}

func (f *File) flushLocked() error {
	data, err := json.MarshalIndent(f.values, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal preferences: %w", err)
	}

	data = append(data, '\n')

	err = f.fs.MkdirAll(filepath.Dir(f.path), 0o755)
	if err != nil {
		return fmt.Errorf("create preferences dir: %w", err)
	}

	err = f.fs.WriteFileAtomic(f.path, data, 0o644)
	if err != nil {
		return fmt.Errorf("write preferences: %w", err)
	}

	return nil
}

// Memory is an in-memory [Store]. The zero value is ready to use.
type Memory struct {
	mu     sync.Mutex
	values map[string]int64
}

// NewMemory returns an empty [Memory] store.
func NewMemory() *Memory {
	return &Memory{}
}

// Int64 returns the value stored under key.
func (m *Memory) Int64(key string) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.values[key]

	return v, ok
}

// SetInt64 stores value under key.
func (m *Memory) SetInt64(key string, value int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.values == nil {
		m.values = map[string]int64{}
	}

	m.values[key] = value

	return nil
}

// Delete removes keys. Missing keys are ignored.
func (m *Memory) Delete(keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, k := range keys {
		delete(m.values, k)
	}

	return nil
}

var (
	_ Store = (*File)(nil)
	_ Store = (*Memory)(nil)
)
