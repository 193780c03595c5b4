package saves

import (
	"errors"

	"github.com/calvinalkan/savestore/pkg/container"
)

// ErrKeyNotFound reports a key that is not present in the container.
// It is the same sentinel the container library uses.
var ErrKeyNotFound = container.ErrKeyNotFound

var (
	// ErrNoDir reports Options without a save directory.
	ErrNoDir = errors.New("save directory is required")

	// ErrInvalidIndex reports an indexed backup outside 0..9.
	ErrInvalidIndex = errors.New("invalid backup index")

	// ErrNoBackup reports a restore from a backup that does not exist.
	ErrNoBackup = errors.New("backup does not exist")

	// ErrDuplicateProvider reports a second provider for the same save key.
	ErrDuplicateProvider = errors.New("provider already registered")

	// ErrEmptySaveKey reports a provider with an empty save key.
	ErrEmptySaveKey = errors.New("provider save key is empty")

	// ErrCallbackPanic reports a provider or hook subscriber that panicked.
	ErrCallbackPanic = errors.New("callback panicked")

	// ErrEmptyPayload reports decoding a payload that holds no data.
	ErrEmptyPayload = errors.New("empty payload")
)
