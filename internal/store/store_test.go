package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wufe/catears-dashboard/internal/schema"
	"github.com/wufe/catears-dashboard/internal/wire"
)

func TestParseEarSelection(t *testing.T) {
	sel, err := ParseEarSelection("right")
	require.NoError(t, err)
	assert.Equal(t, SelectRight, sel)

	_, err = ParseEarSelection("middle")
	assert.Error(t, err)
}

func TestSetServoModeFollowsSelection(t *testing.T) {
	s := New()
	assert.Equal(t, SelectBoth, s.EarSelection())

	s.SetEarSelection(SelectLeft)
	s.SetServoMode(schema.Static{Position: 10})
	cfg := s.Snapshot()
	assert.Equal(t, schema.Static{Position: 10}, cfg.Servos.Left)
	assert.Equal(t, schema.Static{Position: schema.ServoCenter}, cfg.Servos.Right)

	s.SetEarSelection(SelectRight)
	s.SetLightMode(schema.Off{})
	cfg = s.Snapshot()
	assert.Equal(t, schema.Off{}, cfg.Lights.Right)
	assert.IsType(t, schema.Pulse{}, cfg.Lights.Left)

	s.SetEarSelection(SelectBoth)
	sweep := schema.Sweep{Min: 50, Max: 200, SpeedMs: 1000}
	s.SetServoMode(sweep)
	cfg = s.Snapshot()
	assert.Equal(t, sweep, cfg.Servos.Left)
	assert.Equal(t, sweep, cfg.Servos.Right)
}

func TestPerSideOverridesIgnoreSelection(t *testing.T) {
	s := New()
	s.SetEarSelection(SelectLeft)
	s.SetRightServoMode(schema.Static{Position: 1})
	s.SetRightLightMode(schema.Solid{Color: schema.Red})

	cfg := s.Snapshot()
	assert.Equal(t, schema.Static{Position: 1}, cfg.Servos.Right)
	assert.Equal(t, schema.Solid{Color: schema.Red}, cfg.Lights.Right)
	assert.Equal(t, schema.Static{Position: schema.ServoCenter}, cfg.Servos.Left)

	s.SetEarSelection(SelectBoth)
	s.SetLeftServoMode(schema.Static{Position: 2})
	s.SetLeftLightMode(schema.Off{})
	cfg = s.Snapshot()
	assert.Equal(t, schema.Static{Position: 2}, cfg.Servos.Left)
	assert.Equal(t, schema.Static{Position: 1}, cfg.Servos.Right)
	assert.Equal(t, schema.Off{}, cfg.Lights.Left)
}

func TestSyncToBothEars(t *testing.T) {
	s := New()
	s.SetAudioMode(schema.Tone{Note: schema.Note{Frequency: 440, DurationMs: 100}})
	s.SetVolume(40)
	s.SetEarSelection(SelectRight)

	sweep := schema.Sweep{Min: 10, Max: 90, SpeedMs: 300}
	s.SetServoMode(sweep)
	s.SetLightMode(schema.Rainbow{SpeedMs: 20, Brightness: 100})
	before := s.Snapshot().Speakers

	s.SyncToBothEars()
	cfg := s.Snapshot()
	assert.Equal(t, sweep, cfg.Servos.Left)
	assert.Equal(t, sweep, cfg.Servos.Right)
	assert.Equal(t, cfg.Lights.Right, cfg.Lights.Left)
	assert.Equal(t, before, cfg.Speakers)

	t.Run("both copies left", func(t *testing.T) {
		s := New()
		s.SetRightServoMode(schema.Static{Position: 3})
		s.SyncToBothEars()
		cfg := s.Snapshot()
		assert.Equal(t, schema.Static{Position: schema.ServoCenter}, cfg.Servos.Right)
	})
}

func TestBackups(t *testing.T) {
	s := New()
	s.SetLeftServoMode(schema.Static{Position: 100})
	s.SetRightServoMode(schema.Static{Position: 200})
	assert.False(t, s.Backups().Captured)

	s.SetEarSelection(SelectLeft)
	b := s.Backups()
	require.True(t, b.Captured)
	assert.Equal(t, schema.Static{Position: 100}, b.Left.Servo)
	assert.Equal(t, schema.Static{Position: 200}, b.Right.Servo)
	assert.IsType(t, schema.Pulse{}, b.Left.Light)

	// switching between single ears keeps the stale backups
	s.SetServoMode(schema.Static{Position: 5})
	s.SetEarSelection(SelectRight)
	assert.Equal(t, b, s.Backups())

	s.SetEarSelection(SelectBoth)
	assert.Equal(t, b, s.Backups())

	s.SetEarSelection(SelectRight)
	assert.Equal(t, schema.Static{Position: 5}, s.Backups().Left.Servo)
}

func TestGlobalsIgnoreSelection(t *testing.T) {
	s := New()
	s.SetEarSelection(SelectLeft)
	s.SetBrightness(12)
	s.SetVolume(34)
	s.SetAudioMode(schema.Silent{})

	cfg := s.Snapshot()
	assert.Equal(t, uint8(12), cfg.Lights.Brightness)
	assert.Equal(t, uint8(34), cfg.Speakers.Volume)
}

func TestResetState(t *testing.T) {
	s := New()
	s.SetServoMode(schema.Twitch{Center: 1, Amplitude: 2, IntervalMs: 3})
	s.SetBrightness(1)
	s.SetAudioMode(schema.Chiptune{Notes: []schema.Note{{Frequency: 1, DurationMs: 1}}})

	s.ResetState()
	assert.Equal(t, schema.Default(), s.Snapshot())
}

func TestLoadState(t *testing.T) {
	t.Run("repairs lengths", func(t *testing.T) {
		cfg := schema.Default()
		cfg.Speakers.Mode = schema.Chiptune{Notes: []schema.Note{{Frequency: 440, DurationMs: 10}, schema.Rest(5)}, DefaultVolume: 9}
		doc, err := wire.Marshal(cfg)
		require.NoError(t, err)

		s := New()
		require.NoError(t, s.LoadState(doc))
		assert.Equal(t, cfg, s.Snapshot())
	})

	t.Run("rejects out of range values untouched", func(t *testing.T) {
		s := New()
		s.SetBrightness(7)
		doc := []byte(`{"servos":{"left":{"Static":999},"right":{"Static":1}},` +
			`"lights":{"left":"Off","right":"Off","brightness":1},"speakers":{"mode":"Silent","volume":1}}`)
		assert.Error(t, s.LoadState(doc))
		assert.Equal(t, uint8(7), s.Snapshot().Lights.Brightness)
	})

	t.Run("rejects values the firmware cannot run", func(t *testing.T) {
		s := New()
		doc := []byte(`{"servos":{"left":{"Static":1},"right":{"Static":1}},` +
			`"lights":{"left":{"Chase":{"color":{"r":0,"g":0,"b":0},"background":{"r":0,"g":0,"b":0},"length":0,"speed_ms":10,"clockwise":true}},` +
			`"right":"Off","brightness":1},"speakers":{"mode":"Silent","volume":1}}`)
		err := s.LoadState(doc)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "lights.left.Chase.length")
		assert.Equal(t, schema.Default(), s.Snapshot())
	})
}

func TestExportState(t *testing.T) {
	s := New()
	a, err := s.ExportState()
	require.NoError(t, err)
	b, err := s.ExportState()
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, schema.Default(), s.Snapshot())
}

func TestOnChange(t *testing.T) {
	s := New()
	var seen []schema.Configuration
	cancel := s.OnChange(func(cfg schema.Configuration) { seen = append(seen, cfg) })

	s.SetBrightness(1)
	s.SetEarSelection(SelectLeft)
	s.SetVolume(2)
	require.Len(t, seen, 2)
	assert.Equal(t, uint8(1), seen[0].Lights.Brightness)
	assert.Equal(t, uint8(2), seen[1].Speakers.Volume)

	cancel()
	s.SetVolume(3)
	assert.Len(t, seen, 2)
}

func TestSnapshotIsACopy(t *testing.T) {
	s := New()
	s.SetAudioMode(schema.Chiptune{Notes: []schema.Note{{Frequency: 440, DurationMs: 1}}})

	cfg := s.Snapshot()
	cfg.Speakers.Mode.(schema.Chiptune).Notes[0].Frequency = 1
	assert.Equal(t, float32(440), s.Snapshot().Speakers.Mode.(schema.Chiptune).Notes[0].Frequency)
}
