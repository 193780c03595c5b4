package saves

import (
	"time"

	"github.com/calvinalkan/savestore/internal/logging"
	"github.com/calvinalkan/savestore/pkg/container"
)

// Clock supplies wall-clock time.
type Clock interface {
	Now() time.Time
}

// SystemClock is the real wall clock.
type SystemClock struct{}

// Now returns [time.Now].
func (SystemClock) Now() time.Time { return time.Now() }

// timeStore is a place a timestamp can be persisted in: the preference
// store or one of the containers.
type timeStore interface {
	readTime(key string) (int64, bool)
	writeTime(key string, unixNano int64) error
}

type prefsTimes struct{ s *System }

func (p prefsTimes) readTime(key string) (int64, bool) { return p.s.prefs.Int64(key) }

func (p prefsTimes) writeTime(key string, v int64) error { return p.s.prefs.SetInt64(key, v) }

type containerTimes struct {
	s  *System
	ns *namespace
}

func (c containerTimes) readTime(key string) (int64, bool) {
	c.s.ensureCached(c.ns)

	v, err := loadFrom[int64](c.s, c.ns, key)
	if err != nil {
		return 0, false
	}

	return v, true
}

func (c containerTimes) writeTime(key string, v int64) error {
	c.s.ensureCached(c.ns)

	err := c.s.lib.Save(key, v, c.ns.path)
	if err != nil {
		return err
	}

	if c.ns.global() {
		return c.s.persistGlobal()
	}

	// Slot writes wait for SaveFile; only a committed copy of key is patched.
	_, err = container.LoadUncached[int64](c.s.lib, key, c.ns.path)
	if err != nil {
		return nil
	}

	return c.s.lib.SaveUncached(key, v, c.ns.path)
}

// guardTime reads a persisted timestamp. A value strictly after now is
// clamped to now, the correction is persisted, and OnTimeTravel fires.
func (s *System) guardTime(store timeStore, key string) (time.Time, bool) {
	raw, ok := store.readTime(key)
	if !ok || raw <= 0 {
		return time.Time{}, false
	}

	stored := time.Unix(0, raw)
	now := s.clock.Now()

	if !stored.After(now) {
		return stored, true
	}

	s.metrics.timeTravel.Inc()
	s.log.Warn().
		Str(logging.FieldKey, key).
		Time("stored", stored).
		Time("now", now).
		Dur("ahead", stored.Sub(now)).
		Msg("time travel detected, clamping timestamp")

	err := store.writeTime(key, now.UnixNano())
	if err != nil {
		s.log.Warn().Err(err).Str(logging.FieldKey, key).Msg("persist clamped timestamp")
	}

	for _, fn := range s.hooks.timeTravel.snapshot() {
		_ = s.safeCall("OnTimeTravel", func() { fn(key, stored, now) })
	}

	return now, true
}

// CheckTime reads the timestamp stored under key in the current slot,
// clamping it if it lies in the future. ok is false if no timestamp exists.
func (s *System) CheckTime(key string) (time.Time, bool) {
	return s.guardTime(containerTimes{s: s, ns: s.currentNS()}, key)
}

// CheckGlobalTime is [System.CheckTime] for the global store.
func (s *System) CheckGlobalTime(key string) (time.Time, bool) {
	return s.guardTime(containerTimes{s: s, ns: s.global}, key)
}

// StampTime records now under key in the current slot. It is persisted with
// the next [System.SaveFile].
func (s *System) StampTime(key string) error {
	return Save(s, key, s.clock.Now().UnixNano())
}

// StampGlobalTime records now under key in the global store.
func (s *System) StampGlobalTime(key string) error {
	return SaveGlobal(s, key, s.clock.Now().UnixNano())
}

// LastSaveTime returns the save time of the current slot, clamped if it
// lies in the future.
func (s *System) LastSaveTime() (time.Time, bool) {
	return s.CheckTime(KeySaveTime)
}
