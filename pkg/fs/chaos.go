package fs

import (
	"errors"
	"io/fs"
	"math/rand/v2"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
)

// ChaosConfig controls fault injection probabilities.
// Each rate is a float64 from 0.0 (never) to 1.0 (always).
//
// The zero value disables all fault injection. Partially initialized configs
// only inject faults for the specified rates; unset fields default to 0.0.
//
// Fault injection is enabled by default ([ChaosModeActive]). Use
// [Chaos.SetMode] with [ChaosModeNoOp] to disable injection and pass
// all operations through to the underlying filesystem.
type ChaosConfig struct {
	// ReadFailRate controls how often FS.ReadFile fails entirely, returning
	// zero bytes and an error. The error may be an open-phase failure
	// (EACCES, EMFILE, ENFILE, ENOTDIR) or a read-phase failure (EIO).
	ReadFailRate float64

	// PartialReadRate controls how often FS.ReadFile returns a truncated
	// prefix of the file contents along with an EIO error.
	PartialReadRate float64

	// WriteFailRate controls how often FS.WriteFile and FS.WriteFileAtomic
	// fail. WriteFile may leave a truncated prefix behind; WriteFileAtomic
	// never touches the destination when it fails.
	WriteFailRate float64

	// RemoveFailRate controls how often FS.Remove fails.
	// Returns EACCES, EPERM, EBUSY, EIO, or EROFS.
	RemoveFailRate float64

	// RenameFailRate controls how often FS.Rename fails. Returns an
	// *os.LinkError with EACCES, EIO, ENOSPC, EXDEV, EROFS, or EPERM.
	RenameFailRate float64

	// StatFailRate controls how often FS.Stat and FS.Exists fail.
	// Returns EACCES or EIO.
	StatFailRate float64

	// MkdirAllFailRate controls how often FS.MkdirAll fails.
	MkdirAllFailRate float64

	// ReadDirFailRate controls how often FS.ReadDir fails entirely.
	ReadDirFailRate float64
}

// ChaosMode controls how [Chaos] behaves.
type ChaosMode uint8

const (
	// ChaosModeActive enables fault-rate injection.
	// This is the default mode for a new [Chaos].
	ChaosModeActive ChaosMode = iota

	// ChaosModeNoOp passes every operation directly to the underlying FS.
	ChaosModeNoOp
)

// ChaosStats contains counts of injected faults.
type ChaosStats struct {
	ReadFails     int64
	PartialReads  int64
	WriteFails    int64
	RemoveFails   int64
	RenameFails   int64
	StatFails     int64
	MkdirAllFails int64
	ReadDirFails  int64
}

// Total returns the sum of all injected faults.
func (s ChaosStats) Total() int64 {
	return s.ReadFails + s.PartialReads + s.WriteFails + s.RemoveFails +
		s.RenameFails + s.StatFails + s.MkdirAllFails + s.ReadDirFails
}

// chaosError marks an error as intentionally injected by [Chaos].
//
// It wraps an [*fs.PathError] (or [*os.LinkError] for rename) with a real
// [syscall.Errno] so os.IsPermission and friends keep working via unwrapping,
// while [IsChaosErr] can still distinguish chaos vs real OS errors in tests.
type chaosError struct {
	Err error
}

func (e *chaosError) Error() string {
	return "chaos: " + e.Err.Error()
}

func (e *chaosError) Unwrap() error {
	return e.Err
}

// IsChaosErr reports whether err (or any wrapped error) was injected by [Chaos].
// Returns false if err is nil.
func IsChaosErr(err error) bool {
	var injected *chaosError

	return errors.As(err, &injected)
}

// Chaos wraps an [FS] and injects random failures for testing.
//
// Chaos does not maintain per-path "sticky" fault state; each call
// independently decides whether to inject. It never injects ENOENT, so any
// os.IsNotExist result originates from the wrapped [FS].
//
// Use [Chaos.SetMode] to control behavior and [Chaos.Stats] to inspect how many
// faults were injected.
type Chaos struct {
	fs     FS
	rng    *rand.Rand
	config ChaosConfig
	mode   atomic.Uint32

	rngMu sync.Mutex

	readFails     atomic.Int64
	partialReads  atomic.Int64
	writeFails    atomic.Int64
	removeFails   atomic.Int64
	renameFails   atomic.Int64
	statFails     atomic.Int64
	mkdirAllFails atomic.Int64
	readDirFails  atomic.Int64
}

// NewChaos creates a new [Chaos] filesystem wrapping the given [FS].
// The seed controls random fault injection for reproducibility.
// Panics if underlying is nil.
func NewChaos(underlying FS, seed int64, config ChaosConfig) *Chaos {
	if underlying == nil {
		panic("underlying fs is nil")
	}

	return &Chaos{
		fs:     underlying,
		rng:    rand.New(rand.NewPCG(uint64(seed), uint64(seed))),
		config: config,
	}
}

// SetMode updates [Chaos] behavior. Safe to call concurrently with
// filesystem operations.
func (c *Chaos) SetMode(m ChaosMode) { c.mode.Store(uint32(m)) }

// Stats returns the current fault injection counts.
func (c *Chaos) Stats() ChaosStats {
	return ChaosStats{
		ReadFails:     c.readFails.Load(),
		PartialReads:  c.partialReads.Load(),
		WriteFails:    c.writeFails.Load(),
		RemoveFails:   c.removeFails.Load(),
		RenameFails:   c.renameFails.Load(),
		StatFails:     c.statFails.Load(),
		MkdirAllFails: c.mkdirAllFails.Load(),
		ReadDirFails:  c.readDirFails.Load(),
	}
}

// ReadFile reads a file's contents with fault injection.
func (c *Chaos) ReadFile(path string) ([]byte, error) {
	if c.should(c.config.ReadFailRate) {
		c.readFails.Add(1)

		if c.randFloat() < 0.5 {
			return nil, pathError("open", path, c.pickRandom([]syscall.Errno{
				syscall.EACCES,
				syscall.EMFILE,
				syscall.ENFILE,
				syscall.ENOTDIR,
			}))
		}

		return nil, pathError("read", path, syscall.EIO)
	}

	data, err := c.fs.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Like os.ReadFile returning bytes read so far after a later Read fails.
	if len(data) > 1 && c.should(c.config.PartialReadRate) {
		c.partialReads.Add(1)
		cutoff := c.randIntn(len(data)-1) + 1

		return data[:cutoff], pathError("read", path, syscall.EIO)
	}

	return data, nil
}

// WriteFile writes data with fault injection. A failed write may leave a
// truncated prefix behind, like a write that ran out of space partway.
func (c *Chaos) WriteFile(path string, data []byte, perm os.FileMode) error {
	if c.should(c.config.WriteFailRate) {
		c.writeFails.Add(1)

		if len(data) > 1 {
			_ = c.fs.WriteFile(path, data[:c.randIntn(len(data)-1)+1], perm)
		}

		return pathError("write", path, c.pickWriteErrno())
	}

	return c.fs.WriteFile(path, data, perm)
}

// WriteFileAtomic writes data atomically with fault injection.
// Injected failures leave the destination untouched.
func (c *Chaos) WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	if c.should(c.config.WriteFailRate) {
		c.writeFails.Add(1)

		return pathError("write", path, c.pickWriteErrno())
	}

	return c.fs.WriteFileAtomic(path, data, perm)
}

// ReadDir reads directory contents with fault injection.
func (c *Chaos) ReadDir(path string) ([]os.DirEntry, error) {
	if c.should(c.config.ReadDirFailRate) {
		c.readDirFails.Add(1)

		return nil, pathError("readdir", path, c.pickRandom([]syscall.Errno{
			syscall.EACCES,
			syscall.EIO,
			syscall.EMFILE,
			syscall.ENFILE,
		}))
	}

	return c.fs.ReadDir(path)
}

// MkdirAll creates directories with fault injection.
func (c *Chaos) MkdirAll(path string, perm os.FileMode) error {
	if c.should(c.config.MkdirAllFailRate) {
		c.mkdirAllFails.Add(1)

		return pathError("mkdir", path, c.pickRandom([]syscall.Errno{
			syscall.EACCES,
			syscall.EIO,
			syscall.ENOSPC,
			syscall.EROFS,
		}))
	}

	return c.fs.MkdirAll(path, perm)
}

// Stat returns file info with fault injection.
func (c *Chaos) Stat(path string) (os.FileInfo, error) {
	err := c.statChaos(path)
	if err != nil {
		return nil, err
	}

	return c.fs.Stat(path)
}

// Exists checks existence with fault injection.
func (c *Chaos) Exists(path string) (bool, error) {
	err := c.statChaos(path)
	if err != nil {
		return false, err
	}

	return c.fs.Exists(path)
}

// Remove removes a file with fault injection.
func (c *Chaos) Remove(path string) error {
	if c.should(c.config.RemoveFailRate) {
		c.removeFails.Add(1)

		return pathError("remove", path, c.pickRandom([]syscall.Errno{
			syscall.EACCES,
			syscall.EPERM,
			syscall.EBUSY,
			syscall.EIO,
			syscall.EROFS,
		}))
	}

	return c.fs.Remove(path)
}

// Rename renames a file with fault injection.
func (c *Chaos) Rename(oldpath, newpath string) error {
	if c.should(c.config.RenameFailRate) {
		c.renameFails.Add(1)

		le := &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: c.pickRandom([]syscall.Errno{
			syscall.EACCES,
			syscall.EIO,
			syscall.ENOSPC,
			syscall.EXDEV,
			syscall.EROFS,
			syscall.EPERM,
		})}

		return &chaosError{Err: le}
	}

	return c.fs.Rename(oldpath, newpath)
}

func (c *Chaos) statChaos(path string) error {
	if !c.should(c.config.StatFailRate) {
		return nil
	}

	c.statFails.Add(1)

	return pathError("stat", path, c.pickRandom([]syscall.Errno{syscall.EACCES, syscall.EIO}))
}

func (c *Chaos) pickWriteErrno() syscall.Errno {
	return c.pickRandom([]syscall.Errno{
		syscall.EIO,
		syscall.ENOSPC,
		syscall.EDQUOT,
		syscall.EROFS,
	})
}

// should returns true with the given probability when chaos is injecting.
func (c *Chaos) should(rate float64) bool {
	if ChaosMode(c.mode.Load()) != ChaosModeActive {
		return false
	}

	return c.randFloat() < rate
}

// randFloat returns a random float64 in [0.0, 1.0) (thread-safe).
func (c *Chaos) randFloat() float64 {
	c.rngMu.Lock()
	result := c.rng.Float64()
	c.rngMu.Unlock()

	return result
}

// randIntn returns a random int in [0, n) (thread-safe).
func (c *Chaos) randIntn(n int) int {
	c.rngMu.Lock()
	result := c.rng.IntN(n)
	c.rngMu.Unlock()

	return result
}

func (c *Chaos) pickRandom(errs []syscall.Errno) syscall.Errno {
	return errs[c.randIntn(len(errs))]
}

// pathError creates an injected [*fs.PathError] with the given operation, path, and errno.
func pathError(op, path string, errno syscall.Errno) error {
	pe := &fs.PathError{Op: op, Path: path, Err: errno}

	return &chaosError{Err: pe}
}

// Compile-time interface check.
var _ FS = (*Chaos)(nil)
