package mirror

import (
	"context"
	"errors"
	"testing"

	"github.com/amimof/huego"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wufe/catears-dashboard/internal/schema"
)

type fakeBridge struct {
	calls []huego.State
	err   error
}

func (f *fakeBridge) SetLightStateContext(_ context.Context, _ int, state huego.State) (*huego.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.calls = append(f.calls, state)
	return &huego.Response{}, nil
}

func TestStateFor(t *testing.T) {
	off := StateFor(schema.Lights{Left: schema.Off{}, Brightness: 255})
	assert.False(t, off.On)

	dark := StateFor(schema.Lights{Left: schema.Solid{Color: schema.Red}, Brightness: 0})
	assert.False(t, dark.On)

	red := StateFor(schema.Lights{Left: schema.Solid{Color: schema.Red}, Brightness: 255})
	require.True(t, red.On)
	assert.Equal(t, uint8(254), red.Bri)
	require.Len(t, red.Xy, 2)
	assert.InDelta(t, 0.70, red.Xy[0], 0.01)
	assert.InDelta(t, 0.30, red.Xy[1], 0.01)
	assert.Equal(t, "none", red.Effect)

	pulse := StateFor(schema.Lights{Left: schema.Pulse{Color: schema.Red, MaxBrightness: 128, PeriodMs: 10}, Brightness: 255})
	assert.InDelta(t, 127, int(pulse.Bri), 1)
	assert.Equal(t, "lselect", pulse.Alert)

	rainbow := StateFor(schema.Lights{Left: schema.Rainbow{SpeedMs: 1, Brightness: 255}, Brightness: 255})
	assert.Equal(t, "colorloop", rainbow.Effect)

	var ring schema.Custom
	ring.LEDs[3] = schema.RGB8{B: 200}
	custom := StateFor(schema.Lights{Left: ring, Brightness: 255})
	require.True(t, custom.On)
	assert.Less(t, custom.Xy[1], float32(0.1))

	assert.False(t, StateFor(schema.Lights{Left: schema.Custom{}, Brightness: 255}).On)
}

func TestMirrorSkipsUnchangedStates(t *testing.T) {
	bridge := &fakeBridge{}
	h := New(bridge, 3, zerolog.Nop())
	ctx := context.Background()

	cfg := schema.Default()
	require.NoError(t, h.Mirror(ctx, cfg))
	require.NoError(t, h.Mirror(ctx, cfg))
	assert.Len(t, bridge.calls, 1)

	cfg.Lights.Brightness = 10
	require.NoError(t, h.Mirror(ctx, cfg))
	assert.Len(t, bridge.calls, 2)

	bridge.err = errors.New("bridge offline")
	cfg.Lights.Left = schema.Off{}
	assert.Error(t, h.Mirror(ctx, cfg))

	bridge.err = nil
	require.NoError(t, h.Mirror(ctx, cfg))
	assert.Len(t, bridge.calls, 3)
	assert.False(t, bridge.calls[2].On)
}

func TestConnectNeedsLightName(t *testing.T) {
	_, err := Connect(context.Background(), Config{BridgeIP: "127.0.0.1", BridgeUsername: "u"})
	assert.Error(t, err)
}
