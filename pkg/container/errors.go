package container

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound reports a container file (or backup) that does not exist.
	ErrNotFound = errors.New("container not found")

	// ErrCorrupt reports a container file whose header, checksum or body
	// failed validation.
	ErrCorrupt = errors.New("container corrupt")

	// ErrKeyNotFound reports a key missing from a cached container.
	ErrKeyNotFound = errors.New("key not found")

	// ErrNotCached reports an operation that requires a cached container.
	ErrNotCached = errors.New("container not cached")
)

// Error is the uniform error type returned by all public [Library] APIs.
//
// The underlying error message appears first, followed by context:
//
//	container corrupt: checksum mismatch (op=cache path=/saves/slot-1.sav)
//
// Use [errors.Is] with the package sentinels to classify failures:
//
//	if errors.Is(err, container.ErrCorrupt) { ... }
type Error struct {
	// Op is the library operation that failed ("cache", "save", "store", ...).
	Op string

	// Path is the container file path the operation targeted.
	Path string

	// Key is the key involved, if any.
	Key string

	// Err is the underlying cause.
	Err error
}

// Error formats as "<cause> (op=X key=Y path=Z)".
func (e *Error) Error() string {
	if e == nil {
		return ""
	}

	var parts []string

	if e.Op != "" {
		parts = append(parts, "op="+e.Op)
	}

	if e.Key != "" {
		parts = append(parts, "key="+e.Key)
	}

	if e.Path != "" {
		parts = append(parts, "path="+e.Path)
	}

	cause := ""
	if e.Err != nil {
		cause = e.Err.Error()
	}

	if len(parts) == 0 {
		return cause
	}

	suffix := "(" + strings.Join(parts, " ") + ")"
	if cause == "" {
		return suffix
	}

	return cause + " " + suffix
}

// Unwrap returns the underlying error for use with [errors.Is] and [errors.As].
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.Err
}

func newError(op, path, key string, err error) error {
	if err == nil {
		return nil
	}

	existing := &Error{}
	if errors.As(err, &existing) {
		return existing
	}

	return &Error{Op: op, Path: path, Key: key, Err: err}
}
