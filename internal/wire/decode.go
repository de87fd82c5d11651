package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/wufe/catears-dashboard/internal/schema"
)

// ErrMalformed is returned when data is not a JSON object at all.
var ErrMalformed = errors.New("wire: malformed document")

// DecodeError lists every field of a document that could not be turned
// into a configuration value.
type DecodeError struct {
	Fields []*schema.FieldError
}

func (e *DecodeError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Error()
	}
	return "wire: invalid document: " + strings.Join(parts, "; ")
}

func (e *DecodeError) Unwrap() []error {
	errs := make([]error, len(e.Fields))
	for i, f := range e.Fields {
		errs[i] = f
	}
	return errs
}

type documentIn struct {
	Servos struct {
		Left  json.RawMessage `json:"left"`
		Right json.RawMessage `json:"right"`
	} `json:"servos"`
	Lights struct {
		Left       json.RawMessage `json:"left"`
		Right      json.RawMessage `json:"right"`
		Brightness json.RawMessage `json:"brightness"`
	} `json:"lights"`
	Speakers struct {
		Mode   json.RawMessage `json:"mode"`
		Volume json.RawMessage `json:"volume"`
	} `json:"speakers"`
}

type rgbIn struct {
	R int64 `json:"r"`
	G int64 `json:"g"`
	B int64 `json:"b"`
}

type noteIn struct {
	Frequency  float64 `json:"frequency"`
	DurationMs int64   `json:"duration_ms"`
	Volume     *int64  `json:"volume"`
}

// Unmarshal decodes a device document. Array lengths are repaired rather
// than rejected: chiptune notes are cut to the declared length (padded
// with rests when the document holds fewer), the length itself is clamped
// to the firmware capacity, and custom LED rings are padded or cut to 12.
// Scalars outside their numeric range and unknown variants are reported
// together in a *DecodeError.
func Unmarshal(data []byte) (schema.Configuration, error) {
	var doc documentIn
	if err := json.Unmarshal(data, &doc); err != nil {
		return schema.Configuration{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	d := &decoder{}
	cfg := schema.Configuration{
		Servos: schema.Servos{
			Left:  d.servo("servos.left", doc.Servos.Left),
			Right: d.servo("servos.right", doc.Servos.Right),
		},
		Lights: schema.Lights{
			Left:       d.light("lights.left", doc.Lights.Left),
			Right:      d.light("lights.right", doc.Lights.Right),
			Brightness: d.scalar8("lights.brightness", doc.Lights.Brightness),
		},
		Speakers: schema.Speakers{
			Mode:   d.audio("speakers.mode", doc.Speakers.Mode),
			Volume: d.scalar8("speakers.volume", doc.Speakers.Volume),
		},
	}

	if len(d.fields) > 0 {
		return schema.Configuration{}, &DecodeError{Fields: d.fields}
	}
	return cfg, nil
}

type decoder struct {
	fields []*schema.FieldError
}

func (d *decoder) fail(path, format string, args ...any) {
	d.fields = append(d.fields, &schema.FieldError{Path: path, Reason: fmt.Sprintf(format, args...)})
}

func (d *decoder) u8(path string, v int64) uint8 {
	if v < 0 || v > math.MaxUint8 {
		d.fail(path, "%d outside 0-255", v)
		return 0
	}
	return uint8(v)
}

func (d *decoder) u16(path string, v int64) uint16 {
	if v < 0 || v > math.MaxUint16 {
		d.fail(path, "%d outside 0-65535", v)
		return 0
	}
	return uint16(v)
}

func (d *decoder) scalar8(path string, raw json.RawMessage) uint8 {
	if isAbsent(raw) {
		d.fail(path, "missing")
		return 0
	}
	var v int64
	if err := json.Unmarshal(raw, &v); err != nil {
		d.fail(path, "not an integer")
		return 0
	}
	return d.u8(path, v)
}

func (d *decoder) payload(path string, raw json.RawMessage, into any) bool {
	if err := json.Unmarshal(raw, into); err != nil {
		d.fail(path, "malformed payload: %v", err)
		return false
	}
	return true
}

func (d *decoder) rgb(path string, c rgbIn) schema.RGB8 {
	return schema.RGB8{
		R: d.u8(path+".r", c.R),
		G: d.u8(path+".g", c.G),
		B: d.u8(path+".b", c.B),
	}
}

func (d *decoder) note(path string, n noteIn) schema.Note {
	out := schema.Note{DurationMs: d.u16(path+".duration_ms", n.DurationMs)}
	if n.Frequency < 0 || n.Frequency > math.MaxFloat32 {
		d.fail(path+".frequency", "%g is not a playable frequency", n.Frequency)
	} else {
		out.Frequency = float32(n.Frequency)
	}
	if n.Volume != nil {
		vol := d.u8(path+".volume", *n.Volume)
		out.Volume = &vol
	}
	return out
}

func (d *decoder) servo(path string, raw json.RawMessage) schema.ServoMode {
	tag, payload, ok := d.variant(path, raw)
	if !ok {
		return nil
	}
	path += "." + tag

	switch tag {
	case "Static":
		var pos int64
		if !d.payload(path, payload, &pos) {
			return nil
		}
		return schema.Static{Position: d.u8(path, pos)}
	case "Sweep":
		var in struct {
			Min     int64 `json:"min"`
			Max     int64 `json:"max"`
			SpeedMs int64 `json:"speed_ms"`
		}
		if !d.payload(path, payload, &in) {
			return nil
		}
		return schema.Sweep{
			Min:     d.u8(path+".min", in.Min),
			Max:     d.u8(path+".max", in.Max),
			SpeedMs: d.u16(path+".speed_ms", in.SpeedMs),
		}
	case "Twitch":
		var in struct {
			Center     int64 `json:"center"`
			Amplitude  int64 `json:"amplitude"`
			IntervalMs int64 `json:"interval_ms"`
		}
		if !d.payload(path, payload, &in) {
			return nil
		}
		return schema.Twitch{
			Center:     d.u8(path+".center", in.Center),
			Amplitude:  d.u8(path+".amplitude", in.Amplitude),
			IntervalMs: d.u16(path+".interval_ms", in.IntervalMs),
		}
	default:
		d.fail(path, "unknown servo mode")
		return nil
	}
}

func (d *decoder) light(path string, raw json.RawMessage) schema.LightMode {
	tag, payload, ok := d.variant(path, raw)
	if !ok {
		return nil
	}
	path += "." + tag

	switch tag {
	case "Off":
		return schema.Off{}
	case "Solid":
		var c rgbIn
		if !d.payload(path, payload, &c) {
			return nil
		}
		return schema.Solid{Color: d.rgb(path, c)}
	case "Gradient":
		var pair []rgbIn
		if !d.payload(path, payload, &pair) {
			return nil
		}
		// Missing stops are black, extra stops are dropped.
		g := schema.Gradient{From: schema.Black, To: schema.Black}
		if len(pair) > 0 {
			g.From = d.rgb(path+"[0]", pair[0])
		}
		if len(pair) > 1 {
			g.To = d.rgb(path+"[1]", pair[1])
		}
		return g
	case "Chase":
		var in struct {
			Color      rgbIn `json:"color"`
			Background rgbIn `json:"background"`
			Length     int64 `json:"length"`
			SpeedMs    int64 `json:"speed_ms"`
			Clockwise  bool  `json:"clockwise"`
		}
		if !d.payload(path, payload, &in) {
			return nil
		}
		return schema.Chase{
			Color:      d.rgb(path+".color", in.Color),
			Background: d.rgb(path+".background", in.Background),
			Length:     d.u8(path+".length", in.Length),
			SpeedMs:    d.u16(path+".speed_ms", in.SpeedMs),
			Clockwise:  in.Clockwise,
		}
	case "Pulse":
		var in struct {
			Color         rgbIn `json:"color"`
			MinBrightness int64 `json:"min_brightness"`
			MaxBrightness int64 `json:"max_brightness"`
			PeriodMs      int64 `json:"period_ms"`
		}
		if !d.payload(path, payload, &in) {
			return nil
		}
		return schema.Pulse{
			Color:         d.rgb(path+".color", in.Color),
			MinBrightness: d.u8(path+".min_brightness", in.MinBrightness),
			MaxBrightness: d.u8(path+".max_brightness", in.MaxBrightness),
			PeriodMs:      d.u16(path+".period_ms", in.PeriodMs),
		}
	case "Rainbow":
		var in struct {
			SpeedMs    int64 `json:"speed_ms"`
			Spread     bool  `json:"spread"`
			Brightness int64 `json:"brightness"`
		}
		if !d.payload(path, payload, &in) {
			return nil
		}
		return schema.Rainbow{
			SpeedMs:    d.u16(path+".speed_ms", in.SpeedMs),
			Spread:     in.Spread,
			Brightness: d.u8(path+".brightness", in.Brightness),
		}
	case "Custom":
		var in struct {
			LEDs    []rgbIn `json:"leds"`
			Looping bool    `json:"looping"`
		}
		if !d.payload(path, payload, &in) {
			return nil
		}
		out := schema.Custom{Looping: in.Looping}
		for i := 0; i < len(in.LEDs) && i < schema.CustomLEDCount; i++ {
			out.LEDs[i] = d.rgb(fmt.Sprintf("%s.leds[%d]", path, i), in.LEDs[i])
		}
		return out
	default:
		d.fail(path, "unknown light mode")
		return nil
	}
}

func (d *decoder) audio(path string, raw json.RawMessage) schema.AudioMode {
	tag, payload, ok := d.variant(path, raw)
	if !ok {
		return nil
	}
	path += "." + tag

	switch tag {
	case "Silent":
		return schema.Silent{}
	case "Tone":
		var n noteIn
		if !d.payload(path, payload, &n) {
			return nil
		}
		return schema.Tone{Note: d.note(path, n)}
	case "Chiptune":
		var in struct {
			Notes         []noteIn `json:"notes"`
			Length        *int64   `json:"length"`
			DefaultVolume int64    `json:"default_volume"`
			Looping       bool     `json:"looping"`
		}
		if !d.payload(path, payload, &in) {
			return nil
		}

		length := int64(len(in.Notes))
		if in.Length != nil {
			length = *in.Length
		}
		length = max(0, min(length, schema.MaxChiptuneNotes))

		notes := make([]schema.Note, length)
		for i := range notes {
			if i < len(in.Notes) {
				notes[i] = d.note(fmt.Sprintf("%s.notes[%d]", path, i), in.Notes[i])
			}
		}
		return schema.Chiptune{
			Notes:         notes,
			DefaultVolume: d.u8(path+".default_volume", in.DefaultVolume),
			Looping:       in.Looping,
		}
	default:
		d.fail(path, "unknown audio mode")
		return nil
	}
}

// variant splits {"Tag": payload} into its parts. A bare "Tag" string is
// accepted for payload-less variants.
func (d *decoder) variant(path string, raw json.RawMessage) (string, json.RawMessage, bool) {
	if isAbsent(raw) {
		d.fail(path, "missing")
		return "", nil, false
	}

	var tag string
	if err := json.Unmarshal(raw, &tag); err == nil {
		return tag, nil, true
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		d.fail(path, "expected a tagged variant object")
		return "", nil, false
	}
	if len(obj) != 1 {
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		d.fail(path, "expected exactly one variant tag, got %q", keys)
		return "", nil, false
	}
	for tag, payload := range obj {
		return tag, payload, true
	}
	return "", nil, false
}

func isAbsent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
