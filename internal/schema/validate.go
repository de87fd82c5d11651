package schema

import (
	"errors"
	"fmt"
)

// FieldError reports a value the device firmware cannot run.
type FieldError struct {
	Path   string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

// Validate checks the invariants the firmware relies on. Every violation
// is returned, joined, as a *FieldError.
func (c Configuration) Validate() error {
	var errs []error
	errs = append(errs, validateServo("servos.left", c.Servos.Left)...)
	errs = append(errs, validateServo("servos.right", c.Servos.Right)...)
	errs = append(errs, validateLight("lights.left", c.Lights.Left)...)
	errs = append(errs, validateLight("lights.right", c.Lights.Right)...)
	errs = append(errs, validateAudio("speakers.mode", c.Speakers.Mode)...)
	return errors.Join(errs...)
}

func validateServo(path string, m ServoMode) []error {
	switch v := m.(type) {
	case nil:
		return []error{&FieldError{Path: path, Reason: "missing servo mode"}}
	case Sweep:
		if v.SpeedMs == 0 {
			return []error{&FieldError{Path: path + ".Sweep.speed_ms", Reason: "must be at least 1"}}
		}
	case Twitch:
		if v.IntervalMs == 0 {
			return []error{&FieldError{Path: path + ".Twitch.interval_ms", Reason: "must be at least 1"}}
		}
	}
	return nil
}

func validateLight(path string, m LightMode) []error {
	var errs []error
	switch v := m.(type) {
	case nil:
		errs = append(errs, &FieldError{Path: path, Reason: "missing light mode"})
	case Chase:
		if v.Length < 1 || v.Length > MaxChaseLength {
			errs = append(errs, &FieldError{
				Path:   path + ".Chase.length",
				Reason: fmt.Sprintf("%d outside 1-%d", v.Length, MaxChaseLength),
			})
		}
		if v.SpeedMs == 0 {
			errs = append(errs, &FieldError{Path: path + ".Chase.speed_ms", Reason: "must be at least 1"})
		}
	case Pulse:
		if v.PeriodMs == 0 {
			errs = append(errs, &FieldError{Path: path + ".Pulse.period_ms", Reason: "must be at least 1"})
		}
		if v.MinBrightness > v.MaxBrightness {
			errs = append(errs, &FieldError{
				Path:   path + ".Pulse",
				Reason: fmt.Sprintf("min_brightness %d above max_brightness %d", v.MinBrightness, v.MaxBrightness),
			})
		}
	case Rainbow:
		if v.SpeedMs == 0 {
			errs = append(errs, &FieldError{Path: path + ".Rainbow.speed_ms", Reason: "must be at least 1"})
		}
	}
	return errs
}

func validateAudio(path string, m AudioMode) []error {
	switch v := m.(type) {
	case nil:
		return []error{&FieldError{Path: path, Reason: "missing audio mode"}}
	case Chiptune:
		if len(v.Notes) > MaxChiptuneNotes {
			return []error{&FieldError{
				Path:   path + ".Chiptune.notes",
				Reason: fmt.Sprintf("%d notes exceed capacity %d", len(v.Notes), MaxChiptuneNotes),
			}}
		}
	}
	return nil
}
