// Package wire converts configurations to and from the JSON document the
// device firmware polls. Variants are single key objects, and chiptune
// notes always occupy the firmware's fixed 64 slot buffer on the wire.
package wire

import (
	"encoding/json"
	"fmt"

	"github.com/wufe/catears-dashboard/internal/schema"
)

type documentOut struct {
	Servos   servosOut   `json:"servos"`
	Lights   lightsOut   `json:"lights"`
	Speakers speakersOut `json:"speakers"`
}

type servosOut struct {
	Left  variant `json:"left"`
	Right variant `json:"right"`
}

type lightsOut struct {
	Left       variant `json:"left"`
	Right      variant `json:"right"`
	Brightness uint8   `json:"brightness"`
}

type speakersOut struct {
	Mode   variant `json:"mode"`
	Volume uint8   `json:"volume"`
}

// variant is a tagged union value, encoded as {"Tag": payload}.
type variant map[string]any

type sweepOut struct {
	Min     uint8  `json:"min"`
	Max     uint8  `json:"max"`
	SpeedMs uint16 `json:"speed_ms"`
}

type twitchOut struct {
	Center     uint8  `json:"center"`
	Amplitude  uint8  `json:"amplitude"`
	IntervalMs uint16 `json:"interval_ms"`
}

type chaseOut struct {
	Color      schema.RGB8 `json:"color"`
	Background schema.RGB8 `json:"background"`
	Length     uint8       `json:"length"`
	SpeedMs    uint16      `json:"speed_ms"`
	Clockwise  bool        `json:"clockwise"`
}

type pulseOut struct {
	Color         schema.RGB8 `json:"color"`
	MinBrightness uint8       `json:"min_brightness"`
	MaxBrightness uint8       `json:"max_brightness"`
	PeriodMs      uint16      `json:"period_ms"`
}

type rainbowOut struct {
	SpeedMs    uint16 `json:"speed_ms"`
	Spread     bool   `json:"spread"`
	Brightness uint8  `json:"brightness"`
}

type customOut struct {
	LEDs    [schema.CustomLEDCount]schema.RGB8 `json:"leds"`
	Looping bool                               `json:"looping"`
}

type noteOut struct {
	Frequency  float32 `json:"frequency"`
	DurationMs uint16  `json:"duration_ms"`
	Volume     *uint8  `json:"volume,omitempty"`
}

type chiptuneOut struct {
	Notes         []noteOut `json:"notes"`
	Length        uint8     `json:"length"`
	DefaultVolume uint8     `json:"default_volume"`
	Looping       bool      `json:"looping"`
}

// Marshal encodes cfg into the device document.
func Marshal(cfg schema.Configuration) ([]byte, error) {
	doc, err := encode(cfg)
	if err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

// MarshalIndent is Marshal with indentation, for previews.
func MarshalIndent(cfg schema.Configuration) ([]byte, error) {
	doc, err := encode(cfg)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(doc, "", "  ")
}

func encode(cfg schema.Configuration) (*documentOut, error) {
	var doc documentOut
	var err error

	if doc.Servos.Left, err = encodeServo(cfg.Servos.Left); err != nil {
		return nil, fmt.Errorf("wire: servos.left: %w", err)
	}
	if doc.Servos.Right, err = encodeServo(cfg.Servos.Right); err != nil {
		return nil, fmt.Errorf("wire: servos.right: %w", err)
	}
	if doc.Lights.Left, err = encodeLight(cfg.Lights.Left); err != nil {
		return nil, fmt.Errorf("wire: lights.left: %w", err)
	}
	if doc.Lights.Right, err = encodeLight(cfg.Lights.Right); err != nil {
		return nil, fmt.Errorf("wire: lights.right: %w", err)
	}
	if doc.Speakers.Mode, err = encodeAudio(cfg.Speakers.Mode); err != nil {
		return nil, fmt.Errorf("wire: speakers.mode: %w", err)
	}
	doc.Lights.Brightness = cfg.Lights.Brightness
	doc.Speakers.Volume = cfg.Speakers.Volume

	return &doc, nil
}

func encodeServo(m schema.ServoMode) (variant, error) {
	switch v := m.(type) {
	case schema.Static:
		return variant{"Static": v.Position}, nil
	case schema.Sweep:
		return variant{"Sweep": sweepOut{Min: v.Min, Max: v.Max, SpeedMs: v.SpeedMs}}, nil
	case schema.Twitch:
		return variant{"Twitch": twitchOut{Center: v.Center, Amplitude: v.Amplitude, IntervalMs: v.IntervalMs}}, nil
	default:
		return nil, fmt.Errorf("unsupported servo mode %T", m)
	}
}

func encodeLight(m schema.LightMode) (variant, error) {
	switch v := m.(type) {
	case schema.Off:
		return variant{"Off": nil}, nil
	case schema.Solid:
		return variant{"Solid": v.Color}, nil
	case schema.Gradient:
		return variant{"Gradient": [2]schema.RGB8{v.From, v.To}}, nil
	case schema.Chase:
		return variant{"Chase": chaseOut{
			Color:      v.Color,
			Background: v.Background,
			Length:     v.Length,
			SpeedMs:    v.SpeedMs,
			Clockwise:  v.Clockwise,
		}}, nil
	case schema.Pulse:
		return variant{"Pulse": pulseOut{
			Color:         v.Color,
			MinBrightness: v.MinBrightness,
			MaxBrightness: v.MaxBrightness,
			PeriodMs:      v.PeriodMs,
		}}, nil
	case schema.Rainbow:
		return variant{"Rainbow": rainbowOut{SpeedMs: v.SpeedMs, Spread: v.Spread, Brightness: v.Brightness}}, nil
	case schema.Custom:
		return variant{"Custom": customOut{LEDs: v.LEDs, Looping: v.Looping}}, nil
	default:
		return nil, fmt.Errorf("unsupported light mode %T", m)
	}
}

func encodeAudio(m schema.AudioMode) (variant, error) {
	switch v := m.(type) {
	case schema.Silent:
		return variant{"Silent": nil}, nil
	case schema.Tone:
		return variant{"Tone": encodeNote(v.Note)}, nil
	case schema.Chiptune:
		return variant{"Chiptune": encodeChiptune(v)}, nil
	default:
		return nil, fmt.Errorf("unsupported audio mode %T", m)
	}
}

// encodeChiptune always emits exactly MaxChiptuneNotes notes: the
// meaningful ones first, then rests of zero length. Notes past the
// capacity are dropped.
func encodeChiptune(c schema.Chiptune) chiptuneOut {
	notes := c.Notes
	if len(notes) > schema.MaxChiptuneNotes {
		notes = notes[:schema.MaxChiptuneNotes]
	}

	out := chiptuneOut{
		Notes:         make([]noteOut, schema.MaxChiptuneNotes),
		Length:        uint8(len(notes)),
		DefaultVolume: c.DefaultVolume,
		Looping:       c.Looping,
	}
	for i, n := range notes {
		out.Notes[i] = encodeNote(n)
	}
	return out
}

func encodeNote(n schema.Note) noteOut {
	out := noteOut{Frequency: n.Frequency, DurationMs: n.DurationMs}
	if n.Volume != nil {
		vol := *n.Volume
		out.Volume = &vol
	}
	return out
}
