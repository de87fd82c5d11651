// Package store holds the dashboard's single source of truth: the
// configuration being edited, which ear edits apply to, and the backup
// slots captured when control is split between the ears.
package store

import (
	"fmt"
	"sync"

	"github.com/wufe/catears-dashboard/internal/schema"
	"github.com/wufe/catears-dashboard/internal/wire"
)

type EarSelection string

const (
	SelectLeft  EarSelection = "left"
	SelectRight EarSelection = "right"
	SelectBoth  EarSelection = "both"
)

func ParseEarSelection(s string) (EarSelection, error) {
	switch sel := EarSelection(s); sel {
	case SelectLeft, SelectRight, SelectBoth:
		return sel, nil
	default:
		return "", fmt.Errorf("unknown ear selection %q", s)
	}
}

// Ear is the per side part of a configuration.
type Ear struct {
	Servo schema.ServoMode
	Light schema.LightMode
}

// Backups are the ear states captured on the last switch from both ears to
// a single one. They are never restored automatically.
type Backups struct {
	Left     Ear
	Right    Ear
	Captured bool
}

type Store struct {
	mtx       struct{ sync.RWMutex }
	cfg       schema.Configuration
	selection EarSelection
	backups   Backups

	observersMtx struct{ sync.Mutex }
	observers    map[int]func(schema.Configuration)
	nextObserver int
}

// New returns a store holding the default configuration with both ears
// selected.
func New() *Store {
	return &Store{
		cfg:       schema.Default(),
		selection: SelectBoth,
		observers: make(map[int]func(schema.Configuration)),
	}
}

// OnChange registers fn to be called with a copy of the configuration after
// every mutation. Selection changes are not configuration changes and do
// not notify. The returned function unregisters fn.
func (s *Store) OnChange(fn func(schema.Configuration)) (cancel func()) {
	s.observersMtx.Lock()
	defer s.observersMtx.Unlock()
	id := s.nextObserver
	s.nextObserver++
	s.observers[id] = fn
	return func() {
		s.observersMtx.Lock()
		defer s.observersMtx.Unlock()
		delete(s.observers, id)
	}
}

// mutate applies fn under the write lock, then notifies observers outside
// of it.
func (s *Store) mutate(fn func(cfg *schema.Configuration)) {
	s.mtx.Lock()
	fn(&s.cfg)
	snapshot := s.cfg.Clone()
	s.mtx.Unlock()

	s.observersMtx.Lock()
	observers := make([]func(schema.Configuration), 0, len(s.observers))
	for _, fn := range s.observers {
		observers = append(observers, fn)
	}
	s.observersMtx.Unlock()

	for _, fn := range observers {
		fn(snapshot.Clone())
	}
}

func (s *Store) Snapshot() schema.Configuration {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.cfg.Clone()
}

func (s *Store) EarSelection() EarSelection {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.selection
}

func (s *Store) Backups() Backups {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.backups
}

// SetEarSelection changes which ear edits apply to. Leaving SelectBoth for
// a single ear first captures both ears into the backup slots; every other
// transition leaves the backups alone.
func (s *Store) SetEarSelection(target EarSelection) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.selection == SelectBoth && target != SelectBoth {
		s.backups = Backups{
			Left:     Ear{Servo: s.cfg.Servos.Left, Light: s.cfg.Lights.Left},
			Right:    Ear{Servo: s.cfg.Servos.Right, Light: s.cfg.Lights.Right},
			Captured: true,
		}
	}
	s.selection = target
}

// SyncToBothEars copies the selected ear's servo and light onto both ears.
// With both ears selected the left ear is copied.
func (s *Store) SyncToBothEars() {
	s.mutate(func(cfg *schema.Configuration) {
		servo, light := cfg.Servos.Left, cfg.Lights.Left
		if s.selection == SelectRight {
			servo, light = cfg.Servos.Right, cfg.Lights.Right
		}
		cfg.Servos.Left, cfg.Servos.Right = servo, servo
		cfg.Lights.Left, cfg.Lights.Right = light, light
	})
}

func (s *Store) SetServoMode(mode schema.ServoMode) {
	s.mutate(func(cfg *schema.Configuration) {
		if s.selection != SelectRight {
			cfg.Servos.Left = mode
		}
		if s.selection != SelectLeft {
			cfg.Servos.Right = mode
		}
	})
}

func (s *Store) SetLightMode(mode schema.LightMode) {
	s.mutate(func(cfg *schema.Configuration) {
		if s.selection != SelectRight {
			cfg.Lights.Left = mode
		}
		if s.selection != SelectLeft {
			cfg.Lights.Right = mode
		}
	})
}

func (s *Store) SetLeftServoMode(mode schema.ServoMode) {
	s.mutate(func(cfg *schema.Configuration) { cfg.Servos.Left = mode })
}

func (s *Store) SetRightServoMode(mode schema.ServoMode) {
	s.mutate(func(cfg *schema.Configuration) { cfg.Servos.Right = mode })
}

func (s *Store) SetLeftLightMode(mode schema.LightMode) {
	s.mutate(func(cfg *schema.Configuration) { cfg.Lights.Left = mode })
}

func (s *Store) SetRightLightMode(mode schema.LightMode) {
	s.mutate(func(cfg *schema.Configuration) { cfg.Lights.Right = mode })
}

func (s *Store) SetBrightness(value uint8) {
	s.mutate(func(cfg *schema.Configuration) { cfg.Lights.Brightness = value })
}

func (s *Store) SetVolume(value uint8) {
	s.mutate(func(cfg *schema.Configuration) { cfg.Speakers.Volume = value })
}

func (s *Store) SetAudioMode(mode schema.AudioMode) {
	mode = schema.CloneAudio(mode)
	s.mutate(func(cfg *schema.Configuration) { cfg.Speakers.Mode = mode })
}

// ResetState replaces the configuration with schema.Default.
func (s *Store) ResetState() {
	s.mutate(func(cfg *schema.Configuration) { *cfg = schema.Default() })
}

// Load replaces the whole configuration with cfg, normalized.
func (s *Store) Load(cfg schema.Configuration) {
	cfg = cfg.Clone().Normalize()
	s.mutate(func(dst *schema.Configuration) { *dst = cfg })
}

// LoadState decodes a device document and replaces the configuration with
// it. Chiptune and LED array lengths are repaired by the decoder. Values
// out of numeric range, or that the firmware cannot run, are reported and
// leave the store unchanged.
func (s *Store) LoadState(raw []byte) error {
	cfg, err := wire.Unmarshal(raw)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("store: refusing to load: %w", err)
	}
	s.Load(cfg)
	return nil
}

// ExportState encodes the current configuration as a device document.
func (s *Store) ExportState() ([]byte, error) {
	return wire.Marshal(s.Snapshot())
}
