// Package schema defines the configuration the cat ears device polls
// for: servo motion, LED ring patterns and speaker audio, each as a
// closed set of variants.
package schema

const (
	// ServoCenter is the mechanical center of both ear servos.
	ServoCenter uint8 = 125
	// CustomLEDCount is the number of LEDs on each ear ring.
	CustomLEDCount = 12
	// MaxChiptuneNotes is the capacity of the firmware note buffer.
	MaxChiptuneNotes = 64
	// MaxChaseLength is the longest chase segment a ring can show.
	MaxChaseLength = CustomLEDCount
)

// Configuration is the whole desired state of the device.
type Configuration struct {
	Servos   Servos
	Lights   Lights
	Speakers Speakers
}

type Servos struct {
	Left  ServoMode
	Right ServoMode
}

type Lights struct {
	Left  LightMode
	Right LightMode
	// Brightness scales both rings.
	Brightness uint8
}

type Speakers struct {
	Mode   AudioMode
	Volume uint8
}

// RGB8 is a color with independent 8 bit channels.
type RGB8 struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

var (
	Black = RGB8{}
	Red   = RGB8{R: 255}
)

// ServoMode is one of Static, Sweep or Twitch.
type ServoMode interface {
	servoMode()
}

// Static holds the ear at Position.
type Static struct {
	Position uint8
}

// Sweep moves back and forth between Min and Max. Min greater than Max is
// passed through to the device untouched.
type Sweep struct {
	Min     uint8
	Max     uint8
	SpeedMs uint16
}

// Twitch jitters randomly around Center every IntervalMs.
type Twitch struct {
	Center     uint8
	Amplitude  uint8
	IntervalMs uint16
}

func (Static) servoMode() {}
func (Sweep) servoMode()  {}
func (Twitch) servoMode() {}

// LightMode is one of Off, Solid, Gradient, Chase, Pulse, Rainbow or Custom.
type LightMode interface {
	lightMode()
}

type Off struct{}

type Solid struct {
	Color RGB8
}

type Gradient struct {
	From RGB8
	To   RGB8
}

type Chase struct {
	Color      RGB8
	Background RGB8
	Length     uint8
	SpeedMs    uint16
	Clockwise  bool
}

type Pulse struct {
	Color         RGB8
	MinBrightness uint8
	MaxBrightness uint8
	PeriodMs      uint16
}

type Rainbow struct {
	SpeedMs    uint16
	Spread     bool
	Brightness uint8
}

// Custom sets every LED of the ring individually.
type Custom struct {
	LEDs    [CustomLEDCount]RGB8
	Looping bool
}

func (Off) lightMode()      {}
func (Solid) lightMode()    {}
func (Gradient) lightMode() {}
func (Chase) lightMode()    {}
func (Pulse) lightMode()    {}
func (Rainbow) lightMode()  {}
func (Custom) lightMode()   {}

// AudioMode is one of Silent, Tone or Chiptune.
type AudioMode interface {
	audioMode()
}

type Silent struct{}

type Tone struct {
	Note Note
}

// Chiptune plays Notes in order. Every entry is meaningful; the firmware
// padding only exists on the wire.
type Chiptune struct {
	Notes         []Note
	DefaultVolume uint8
	Looping       bool
}

func (Silent) audioMode()   {}
func (Tone) audioMode()     {}
func (Chiptune) audioMode() {}

// Note is a single tone. A zero Frequency is a rest and a nil Volume
// falls back to the sequence default.
type Note struct {
	Frequency  float32
	DurationMs uint16
	Volume     *uint8
}

// Rest returns a silent note lasting durationMs.
func Rest(durationMs uint16) Note {
	return Note{DurationMs: durationMs}
}

// Default is the configuration a freshly reset device runs: ears centered,
// both rings pulsing red, speakers silent.
func Default() Configuration {
	pulse := Pulse{Color: Red, MinBrightness: 0, MaxBrightness: 255, PeriodMs: 250}
	return Configuration{
		Servos: Servos{
			Left:  Static{Position: ServoCenter},
			Right: Static{Position: ServoCenter},
		},
		Lights: Lights{
			Left:       pulse,
			Right:      pulse,
			Brightness: 255,
		},
		Speakers: Speakers{
			Mode:   Silent{},
			Volume: 128,
		},
	}
}

// Clone returns a copy that shares no memory with c.
func (c Configuration) Clone() Configuration {
	out := c
	out.Speakers.Mode = CloneAudio(c.Speakers.Mode)
	return out
}

// CloneAudio deep-copies the note storage of m.
func CloneAudio(m AudioMode) AudioMode {
	switch v := m.(type) {
	case Tone:
		v.Note = v.Note.clone()
		return v
	case Chiptune:
		if v.Notes != nil {
			notes := make([]Note, len(v.Notes))
			for i, n := range v.Notes {
				notes[i] = n.clone()
			}
			v.Notes = notes
		}
		return v
	default:
		return m
	}
}

func (n Note) clone() Note {
	if n.Volume != nil {
		vol := *n.Volume
		n.Volume = &vol
	}
	return n
}

// Normalize fills unset variants with their defaults and trims chiptunes
// to the firmware capacity.
func (c Configuration) Normalize() Configuration {
	def := Default()
	if c.Servos.Left == nil {
		c.Servos.Left = def.Servos.Left
	}
	if c.Servos.Right == nil {
		c.Servos.Right = def.Servos.Right
	}
	if c.Lights.Left == nil {
		c.Lights.Left = def.Lights.Left
	}
	if c.Lights.Right == nil {
		c.Lights.Right = def.Lights.Right
	}
	if c.Speakers.Mode == nil {
		c.Speakers.Mode = def.Speakers.Mode
	}
	if ct, ok := c.Speakers.Mode.(Chiptune); ok && len(ct.Notes) > MaxChiptuneNotes {
		ct.Notes = ct.Notes[:MaxChiptuneNotes]
		c.Speakers.Mode = ct
	}
	return c
}

// ServoModeName returns the variant tag of m.
func ServoModeName(m ServoMode) string {
	switch m.(type) {
	case Static:
		return "Static"
	case Sweep:
		return "Sweep"
	case Twitch:
		return "Twitch"
	default:
		return ""
	}
}

// LightModeName returns the variant tag of m.
func LightModeName(m LightMode) string {
	switch m.(type) {
	case Off:
		return "Off"
	case Solid:
		return "Solid"
	case Gradient:
		return "Gradient"
	case Chase:
		return "Chase"
	case Pulse:
		return "Pulse"
	case Rainbow:
		return "Rainbow"
	case Custom:
		return "Custom"
	default:
		return ""
	}
}

// AudioModeName returns the variant tag of m.
func AudioModeName(m AudioMode) string {
	switch m.(type) {
	case Silent:
		return "Silent"
	case Tone:
		return "Tone"
	case Chiptune:
		return "Chiptune"
	default:
		return ""
	}
}
