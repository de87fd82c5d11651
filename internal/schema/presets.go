package schema

// LightPresetNames lists the named ring patterns in display order.
var LightPresetNames = []string{
	"police", "breathing", "party", "alert", "success",
	"loading", "cat_eyes", "notification", "fire", "ocean",
}

// ChiptunePresetNames lists the named melodies in display order.
var ChiptunePresetNames = []string{
	"coin_collect", "power_up", "level_complete", "game_over", "menu_select",
	"alert", "happy", "sad", "startup", "shutdown",
}

// LightPreset returns the named ring pattern.
func LightPreset(name string) (LightMode, bool) {
	switch name {
	case "police":
		return Chase{Color: Red, Background: RGB8{B: 255}, Length: 6, SpeedMs: 100, Clockwise: true}, true
	case "breathing":
		return Pulse{Color: RGB8{255, 255, 255}, MinBrightness: 20, MaxBrightness: 255, PeriodMs: 3000}, true
	case "party":
		return Rainbow{SpeedMs: 50, Spread: true, Brightness: 255}, true
	case "alert":
		return Pulse{Color: Red, MaxBrightness: 255, PeriodMs: 500}, true
	case "success":
		return Pulse{Color: RGB8{G: 255}, MinBrightness: 50, MaxBrightness: 255, PeriodMs: 1000}, true
	case "loading":
		return Chase{Color: RGB8{G: 100, B: 255}, Length: 3, SpeedMs: 150, Clockwise: true}, true
	case "cat_eyes":
		var c Custom
		amber := RGB8{R: 255, G: 150}
		c.LEDs[0] = amber
		c.LEDs[6] = amber
		return c, true
	case "notification":
		return Pulse{Color: RGB8{G: 150, B: 255}, MinBrightness: 30, MaxBrightness: 200, PeriodMs: 2000}, true
	case "fire":
		return Gradient{From: Red, To: RGB8{R: 255, G: 150}}, true
	case "ocean":
		return Gradient{From: RGB8{B: 255}, To: RGB8{G: 255, B: 255}}, true
	default:
		return nil, false
	}
}

// ChiptunePreset returns the named melody at the default sequence volume.
func ChiptunePreset(name string) (Chiptune, bool) {
	var notes []Note
	switch name {
	case "coin_collect":
		notes = []Note{{Frequency: 988, DurationMs: 100}, {Frequency: 1319, DurationMs: 400}}
	case "power_up":
		notes = []Note{{Frequency: 523, DurationMs: 100}, {Frequency: 659, DurationMs: 100}, {Frequency: 784, DurationMs: 100}, {Frequency: 1047, DurationMs: 200}}
	case "level_complete":
		notes = []Note{
			{Frequency: 523, DurationMs: 150}, {Frequency: 659, DurationMs: 150}, {Frequency: 784, DurationMs: 150},
			{Frequency: 1047, DurationMs: 150}, {Frequency: 784, DurationMs: 150}, {Frequency: 1047, DurationMs: 400},
		}
	case "game_over":
		notes = []Note{{Frequency: 523, DurationMs: 200}, {Frequency: 494, DurationMs: 200}, {Frequency: 466, DurationMs: 200}, {Frequency: 440, DurationMs: 600}}
	case "menu_select":
		notes = []Note{{Frequency: 1047, DurationMs: 50}, {Frequency: 1319, DurationMs: 50}}
	case "alert":
		notes = []Note{{Frequency: 880, DurationMs: 100}, Rest(50), {Frequency: 880, DurationMs: 100}}
	case "happy":
		notes = []Note{
			{Frequency: 523, DurationMs: 150}, {Frequency: 659, DurationMs: 150}, {Frequency: 784, DurationMs: 150},
			{Frequency: 659, DurationMs: 150}, {Frequency: 1047, DurationMs: 300},
		}
	case "sad":
		notes = []Note{{Frequency: 440, DurationMs: 300}, {Frequency: 415, DurationMs: 300}, {Frequency: 392, DurationMs: 300}, {Frequency: 349, DurationMs: 600}}
	case "startup":
		notes = []Note{
			{Frequency: 262, DurationMs: 100}, {Frequency: 392, DurationMs: 100}, {Frequency: 523, DurationMs: 100},
			{Frequency: 659, DurationMs: 100}, {Frequency: 784, DurationMs: 200},
		}
	case "shutdown":
		notes = []Note{
			{Frequency: 784, DurationMs: 100}, {Frequency: 659, DurationMs: 100}, {Frequency: 523, DurationMs: 100},
			{Frequency: 392, DurationMs: 100}, {Frequency: 262, DurationMs: 200},
		}
	default:
		return Chiptune{}, false
	}
	return Chiptune{Notes: notes, DefaultVolume: 128}, true
}
