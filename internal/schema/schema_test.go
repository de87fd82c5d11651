package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, Static{Position: 125}, cfg.Servos.Left)
	assert.Equal(t, Static{Position: 125}, cfg.Servos.Right)
	assert.Equal(t, Pulse{Color: RGB8{R: 255}, MinBrightness: 0, MaxBrightness: 255, PeriodMs: 250}, cfg.Lights.Left)
	assert.Equal(t, cfg.Lights.Left, cfg.Lights.Right)
	assert.Equal(t, uint8(255), cfg.Lights.Brightness)
	assert.Equal(t, Silent{}, cfg.Speakers.Mode)
	assert.Equal(t, uint8(128), cfg.Speakers.Volume)
	assert.NoError(t, cfg.Validate())
}

func TestCloneDoesNotAliasNotes(t *testing.T) {
	vol := uint8(10)
	cfg := Default()
	cfg.Speakers.Mode = Chiptune{Notes: []Note{{Frequency: 440, DurationMs: 100, Volume: &vol}}}

	clone := cfg.Clone()
	orig := cfg.Speakers.Mode.(Chiptune)
	orig.Notes[0].Frequency = 1
	*orig.Notes[0].Volume = 99

	copied := clone.Speakers.Mode.(Chiptune)
	assert.Equal(t, float32(440), copied.Notes[0].Frequency)
	assert.Equal(t, uint8(10), *copied.Notes[0].Volume)
}

func TestNormalize(t *testing.T) {
	t.Run("fills missing variants", func(t *testing.T) {
		cfg := Configuration{}.Normalize()
		def := Default()
		assert.Equal(t, def.Servos, cfg.Servos)
		assert.Equal(t, def.Lights.Left, cfg.Lights.Left)
		assert.Equal(t, Silent{}, cfg.Speakers.Mode)
	})

	t.Run("trims long chiptunes", func(t *testing.T) {
		cfg := Default()
		cfg.Speakers.Mode = Chiptune{Notes: make([]Note, 70)}
		cfg = cfg.Normalize()
		assert.Len(t, cfg.Speakers.Mode.(Chiptune).Notes, MaxChiptuneNotes)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*Configuration)
		paths []string
	}{
		{
			name:  "inverted sweep is allowed",
			edit:  func(c *Configuration) { c.Servos.Left = Sweep{Min: 200, Max: 50, SpeedMs: 1000} },
			paths: nil,
		},
		{
			name:  "zero sweep speed",
			edit:  func(c *Configuration) { c.Servos.Right = Sweep{Min: 0, Max: 10} },
			paths: []string{"servos.right.Sweep.speed_ms"},
		},
		{
			name:  "chase length out of range",
			edit:  func(c *Configuration) { c.Lights.Left = Chase{Length: 13, SpeedMs: 10} },
			paths: []string{"lights.left.Chase.length"},
		},
		{
			name: "pulse errors are all reported",
			edit: func(c *Configuration) {
				c.Lights.Right = Pulse{MinBrightness: 200, MaxBrightness: 100}
			},
			paths: []string{"lights.right.Pulse.period_ms", "lights.right.Pulse"},
		},
		{
			name:  "missing audio mode",
			edit:  func(c *Configuration) { c.Speakers.Mode = nil },
			paths: []string{"speakers.mode"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.edit(&cfg)
			err := cfg.Validate()
			if tt.paths == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)

			var got []string
			for _, e := range err.(interface{ Unwrap() []error }).Unwrap() {
				var fe *FieldError
				require.True(t, errors.As(e, &fe))
				got = append(got, fe.Path)
			}
			assert.Equal(t, tt.paths, got)
		})
	}
}

func TestPresets(t *testing.T) {
	for _, name := range LightPresetNames {
		mode, ok := LightPreset(name)
		require.True(t, ok, name)
		assert.NotNil(t, mode)
	}
	for _, name := range ChiptunePresetNames {
		tune, ok := ChiptunePreset(name)
		require.True(t, ok, name)
		assert.NotEmpty(t, tune.Notes)
		assert.LessOrEqual(t, len(tune.Notes), MaxChiptuneNotes)
	}

	_, ok := LightPreset("disco")
	assert.False(t, ok)

	eyes, _ := LightPreset("cat_eyes")
	custom := eyes.(Custom)
	assert.Equal(t, RGB8{R: 255, G: 150}, custom.LEDs[6])
	assert.Equal(t, Black, custom.LEDs[1])
}
