package saves

import (
	"fmt"
	"slices"
	"time"
)

type hookEntry[F any] struct {
	id uint64
	fn F
}

// hookList is an insertion-ordered list of subscribers.
type hookList[F any] struct {
	next    uint64
	entries []hookEntry[F]
}

func (h *hookList[F]) add(fn F) func() {
	h.next++
	id := h.next
	h.entries = append(h.entries, hookEntry[F]{id: id, fn: fn})

	return func() {
		h.entries = slices.DeleteFunc(h.entries, func(e hookEntry[F]) bool { return e.id == id })
	}
}

// snapshot copies the subscribers so broadcasts tolerate (un)subscribing.
func (h *hookList[F]) snapshot() []F {
	fns := make([]F, len(h.entries))
	for i, e := range h.entries {
		fns[i] = e.fn
	}

	return fns
}

type hooks struct {
	setFile         hookList[func(slot int)]
	saveDeleted     hookList[func(slot int)]
	collectSaveData hookList[func()]
	restoreFailure  hookList[func(path string)]
	timeTravel      hookList[func(key string, stored, now time.Time)]
}

// OnSetFile subscribes fn to slot switches. fn runs after the new slot is
// cached and before providers reload. The returned func unsubscribes.
func (s *System) OnSetFile(fn func(slot int)) func() { return s.hooks.setFile.add(fn) }

// OnSaveDeleted subscribes fn to [System.DeleteSave].
func (s *System) OnSaveDeleted(fn func(slot int)) func() { return s.hooks.saveDeleted.add(fn) }

// OnCollectSaveData subscribes fn to [System.CollectSaveData]. fn may call
// [Save] to contribute data.
func (s *System) OnCollectSaveData(fn func()) func() { return s.hooks.collectSaveData.add(fn) }

// OnRestoreFailureDetected subscribes fn to hard resets. fn receives the
// path of the container that was reset to empty.
func (s *System) OnRestoreFailureDetected(fn func(path string)) func() {
	return s.hooks.restoreFailure.add(fn)
}

// OnTimeTravel subscribes fn to clamped future timestamps.
func (s *System) OnTimeTravel(fn func(key string, stored, now time.Time)) func() {
	return s.hooks.timeTravel.add(fn)
}

// safeCall runs fn, converting a panic into a logged error.
func (s *System) safeCall(name string, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: %w: %v", name, ErrCallbackPanic, r)
			s.log.Error().Err(err).Msg("subscriber panicked")
		}
	}()

	fn()

	return nil
}
