package saves

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/calvinalkan/savestore/internal/logging"
)

// Provider is a gameplay system that owns a piece of save data.
//
// GenerateSaveData is called before every flush; its result is stored under
// SaveKey. SetupSaveData is called after every slot switch with whatever is
// stored under SaveKey in the new slot (an empty [Payload] if nothing is).
type Provider interface {
	SaveKey() string
	GenerateSaveData() (any, error)
	SetupSaveData(data Payload) error
}

// Payload is a provider's stored data, still encoded.
type Payload struct {
	raw json.RawMessage
}

// Empty reports whether the slot held no data for the provider.
func (p Payload) Empty() bool { return len(p.raw) == 0 }

// Decode unmarshals the payload into v.
func (p Payload) Decode(v any) error {
	if p.Empty() {
		return ErrEmptyPayload
	}

	return json.Unmarshal(p.raw, v)
}

// Bytes returns the encoded payload.
func (p Payload) Bytes() []byte { return slices.Clone(p.raw) }

// Register adds p to the registry. Providers run in registration order.
func (s *System) Register(p Provider) error {
	key := p.SaveKey()
	if key == "" {
		return ErrEmptySaveKey
	}

	for _, existing := range s.providers {
		if existing.SaveKey() == key {
			return fmt.Errorf("%w: %q", ErrDuplicateProvider, key)
		}
	}

	s.providers = append(s.providers, p)

	return nil
}

// Unregister removes the provider registered under key and reports whether
// one was found.
func (s *System) Unregister(key string) bool {
	n := len(s.providers)
	s.providers = slices.DeleteFunc(s.providers, func(p Provider) bool { return p.SaveKey() == key })

	return len(s.providers) != n
}

// Providers returns the save keys of registered providers in order.
func (s *System) Providers() []string {
	keys := make([]string, len(s.providers))
	for i, p := range s.providers {
		keys[i] = p.SaveKey()
	}

	return keys
}

// CollectSaveData stores every provider's data in the current slot, then
// fires OnCollectSaveData. A failing provider does not stop the others;
// their errors are joined.
func (s *System) CollectSaveData() error {
	var errs []error

	for _, p := range slices.Clone(s.providers) {
		key := p.SaveKey()

		var genErr error

		err := s.safeCall("GenerateSaveData "+key, func() {
			var data any

			data, genErr = p.GenerateSaveData()
			if genErr == nil {
				genErr = Save(s, key, data)
			}
		})
		if err == nil {
			err = genErr
		}

		if err != nil {
			s.log.Warn().Err(err).Str(logging.FieldKey, key).Msg("provider collect failed")
			errs = append(errs, fmt.Errorf("provider %q: %w", key, err))
		}
	}

	for _, fn := range s.hooks.collectSaveData.snapshot() {
		err := s.safeCall("OnCollectSaveData", fn)
		if err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// setupProviders hands every provider its data from the current slot.
func (s *System) setupProviders() error {
	ns := s.currentNS()
	s.ensureCached(ns)

	var errs []error

	for _, p := range slices.Clone(s.providers) {
		key := p.SaveKey()

		raw, _ := s.lib.Raw(key, ns.path)

		var setupErr error

		err := s.safeCall("SetupSaveData "+key, func() {
			setupErr = p.SetupSaveData(Payload{raw: raw})
		})
		if err == nil {
			err = setupErr
		}

		if err != nil {
			s.log.Warn().Err(err).Str(logging.FieldKey, key).Msg("provider setup failed")
			errs = append(errs, fmt.Errorf("provider %q: %w", key, err))
		}
	}

	return errors.Join(errs...)
}
