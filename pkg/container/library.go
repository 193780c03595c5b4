// Package container implements a flat-file keyed blob store.
//
// Each container file holds a set of string keys mapped to JSON-encoded
// values behind a checksummed header. A [Library] loads files into an
// in-memory cache; reads and writes go against the cache and
// [Library.StoreCachedFile] flushes a cached container back to disk.
//
// Values are encoded with encoding/json, so any type that round-trips through
// JSON can be stored:
//
//	lib := container.New(fs.NewReal())
//	if err := lib.CacheFile(path); err != nil { ... }
//	_ = lib.Save("HP", 100, path)
//	hp, err := container.Load[int](lib, "HP", path)
//	_ = lib.StoreCachedFile(path)
//
// Failures are reported as [*Error] wrapping one of [ErrNotFound],
// [ErrCorrupt], [ErrKeyNotFound], [ErrNotCached], or an OS error.
package container

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"sync"

	sfs "github.com/calvinalkan/savestore/pkg/fs"
)

// BackupSuffix is appended to a container path to form its default backup path.
const BackupSuffix = ".bac"

const (
	filePerm = 0o644
	dirPerm  = 0o755
)

// Library caches container files and performs file-level operations on them.
// A Library is safe for concurrent use.
type Library struct {
	fs sfs.FS

	mu    sync.Mutex
	cache map[string]map[string]json.RawMessage
}

// New returns a Library backed by fsys.
func New(fsys sfs.FS) *Library {
	if fsys == nil {
		panic("container: nil fs")
	}

	return &Library{
		fs:    fsys,
		cache: make(map[string]map[string]json.RawMessage),
	}
}

// CacheFile reads path, validates it, and replaces the cache entry.
// On failure the previous cache entry (if any) is dropped.
func (l *Library) CacheFile(path string) error {
	entries, err := l.read(path)

	l.mu.Lock()
	defer l.mu.Unlock()

	if err != nil {
		delete(l.cache, path)

		return newError("cache", path, "", err)
	}

	l.cache[path] = entries

	return nil
}

// IsCached reports whether path has a cache entry.
func (l *Library) IsCached(path string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, ok := l.cache[path]

	return ok
}

// Uncache drops the cache entry for path. Unstored changes are discarded.
func (l *Library) Uncache(path string) {
	l.mu.Lock()
	delete(l.cache, path)
	l.mu.Unlock()
}

// Reset caches an empty container for path without touching disk.
func (l *Library) Reset(path string) {
	l.mu.Lock()
	l.cache[path] = map[string]json.RawMessage{}
	l.mu.Unlock()
}

// FileExists reports whether path exists on disk. Stat errors count as
// not existing.
func (l *Library) FileExists(path string) bool {
	ok, err := l.fs.Exists(path)

	return err == nil && ok
}

// KeyExists reports whether key is present in the cached container at path.
func (l *Library) KeyExists(key, path string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, ok := l.cache[path]
	if !ok {
		return false, newError("key_exists", path, key, ErrNotCached)
	}

	_, ok = entries[key]

	return ok, nil
}

// Save encodes value and stores it under key in the cached container at path.
// The change reaches disk on the next [Library.StoreCachedFile].
func (l *Library) Save(key string, value any, path string) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return newError("save", path, key, fmt.Errorf("encode: %w", err))
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entries, ok := l.cache[path]
	if !ok {
		return newError("save", path, key, ErrNotCached)
	}

	entries[key] = raw

	return nil
}

// Raw returns the encoded value stored under key in the cached container.
func (l *Library) Raw(key, path string) (json.RawMessage, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, ok := l.cache[path]
	if !ok {
		return nil, newError("load", path, key, ErrNotCached)
	}

	raw, ok := entries[key]
	if !ok {
		return nil, newError("load", path, key, ErrKeyNotFound)
	}

	return slices.Clone(raw), nil
}

// Load decodes the value stored under key in the cached container at path.
func Load[T any](l *Library, key, path string) (T, error) {
	var out T

	raw, err := l.Raw(key, path)
	if err != nil {
		return out, err
	}

	err = json.Unmarshal(raw, &out)
	if err != nil {
		return out, newError("load", path, key, fmt.Errorf("decode: %w", err))
	}

	return out, nil
}

// LoadUncached reads key straight from the file at path, bypassing and
// leaving the cache untouched.
func LoadUncached[T any](l *Library, key, path string) (T, error) {
	var out T

	entries, err := l.read(path)
	if err != nil {
		return out, newError("load_uncached", path, key, err)
	}

	raw, ok := entries[key]
	if !ok {
		return out, newError("load_uncached", path, key, ErrKeyNotFound)
	}

	err = json.Unmarshal(raw, &out)
	if err != nil {
		return out, newError("load_uncached", path, key, fmt.Errorf("decode: %w", err))
	}

	return out, nil
}

// SaveUncached encodes value and writes it under key straight into the file
// at path. Other keys in the file and the cache are left untouched.
func (l *Library) SaveUncached(key string, value any, path string) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return newError("save_uncached", path, key, fmt.Errorf("encode: %w", err))
	}

	entries, err := l.read(path)
	if err != nil {
		return newError("save_uncached", path, key, err)
	}

	entries[key] = raw

	data, err := encode(entries)
	if err != nil {
		return newError("save_uncached", path, key, err)
	}

	err = l.writeFile(path, data)
	if err != nil {
		return newError("save_uncached", path, key, err)
	}

	return nil
}

// DeleteKey removes key from the cached container at path. Missing keys are
// not an error.
func (l *Library) DeleteKey(key, path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, ok := l.cache[path]
	if !ok {
		return newError("delete_key", path, key, ErrNotCached)
	}

	delete(entries, key)

	return nil
}

// Keys returns the sorted keys of the cached container at path.
func (l *Library) Keys(path string) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, ok := l.cache[path]
	if !ok {
		return nil, newError("keys", path, "", ErrNotCached)
	}

	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}

	slices.Sort(keys)

	return keys, nil
}

// StoreCachedFile writes the cached container for path to disk atomically,
// creating the parent directory if needed.
func (l *Library) StoreCachedFile(path string) error {
	l.mu.Lock()

	entries, ok := l.cache[path]
	if !ok {
		l.mu.Unlock()

		return newError("store", path, "", ErrNotCached)
	}

	data, err := encode(entries)
	l.mu.Unlock()

	if err != nil {
		return newError("store", path, "", err)
	}

	err = l.writeFile(path, data)
	if err != nil {
		return newError("store", path, "", err)
	}

	return nil
}

// CopyFile copies src over dst byte for byte. The source is not validated.
func (l *Library) CopyFile(src, dst string) error {
	data, err := l.fs.ReadFile(src)
	if err != nil {
		return newError("copy", src, "", classifyReadErr(err))
	}

	err = l.writeFile(dst, data)
	if err != nil {
		return newError("copy", dst, "", err)
	}

	return nil
}

// DeleteFile removes path and drops its cache entry. A missing file is not
// an error.
func (l *Library) DeleteFile(path string) error {
	l.Uncache(path)

	err := l.fs.Remove(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return newError("delete", path, "", err)
	}

	return nil
}

// CreateBackup copies the file at path to its default backup path.
func (l *Library) CreateBackup(path string) error {
	err := l.CopyFile(path, path+BackupSuffix)
	if err != nil {
		return relabel(err, "backup")
	}

	return nil
}

// RestoreBackup overwrites path with its default backup and drops the cache
// entry for path. Returns [ErrNotFound] if no backup exists.
func (l *Library) RestoreBackup(path string) error {
	l.Uncache(path)

	err := l.CopyFile(path+BackupSuffix, path)
	if err != nil {
		return relabel(err, "restore")
	}

	return nil
}

func (l *Library) read(path string) (map[string]json.RawMessage, error) {
	data, err := l.fs.ReadFile(path)
	if err != nil {
		return nil, classifyReadErr(err)
	}

	return decode(data)
}

func (l *Library) writeFile(path string, data []byte) error {
	err := l.fs.MkdirAll(filepath.Dir(path), dirPerm)
	if err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	return l.fs.WriteFileAtomic(path, data, filePerm)
}

func classifyReadErr(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	return fmt.Errorf("read: %w", err)
}

func relabel(err error, op string) error {
	var cErr *Error
	if errors.As(err, &cErr) {
		cErr.Op = op
	}

	return err
}
