// Package mirror repeats the left ear's light on a Philips Hue lamp, so
// a synced configuration can be checked at a glance without the device.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/amimof/huego"
	"github.com/rs/zerolog"

	"github.com/wufe/catears-dashboard/internal/schema"
)

const appName = "catears dashboard"

type LightSetter interface {
	SetLightStateContext(ctx context.Context, id int, state huego.State) (*huego.Response, error)
}

type Config struct {
	BridgeIP       string
	BridgeUsername string
	LightName      string
	Logger         zerolog.Logger
}

type Hue struct {
	bridge  LightSetter
	lightID int
	log     zerolog.Logger

	mtx  struct{ sync.Mutex }
	last *huego.State
}

func New(bridge LightSetter, lightID int, logger zerolog.Logger) *Hue {
	return &Hue{
		bridge:  bridge,
		lightID: lightID,
		log:     logger.With().Str("component", "hue-mirror").Int("light", lightID).Logger(),
	}
}

// Connect finds the bridge (discovering it when no IP is configured) and
// the light named cfg.LightName. Without a username the bridge's link
// button has to be pressed within a minute.
func Connect(ctx context.Context, cfg Config) (*Hue, error) {
	if cfg.LightName == "" {
		return nil, errors.New("mirror: no light name configured")
	}

	bridgeIP := cfg.BridgeIP
	if bridgeIP == "" {
		cfg.Logger.Info().Msg("Bridge IP not specified: discovering..")
		bridge, err := huego.Discover()
		if err != nil {
			return nil, fmt.Errorf("mirror: discovering bridge: %w", err)
		}
		bridgeIP = bridge.Host
		cfg.Logger.Info().Msgf("Bridge IP: %s", bridgeIP)
	}

	username := cfg.BridgeUsername
	if username == "" {
		var err error
		username, err = register(ctx, bridgeIP, cfg.Logger)
		if err != nil {
			return nil, err
		}
	}

	bridge := huego.New(bridgeIP, username)
	lights, err := bridge.GetLightsContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("mirror: listing lights: %w", err)
	}
	for _, light := range lights {
		if light.Name == cfg.LightName {
			return New(bridge, light.ID, cfg.Logger), nil
		}
	}
	return nil, fmt.Errorf("mirror: no light named %q on bridge %s", cfg.LightName, bridgeIP)
}

func register(ctx context.Context, bridgeIP string, logger zerolog.Logger) (string, error) {
	logger.Info().Msg("Bridge username not specified: press the button on the bridge to register a new one")
	bridge := huego.New(bridgeIP, "")
	for attempt := 0; attempt < 12; attempt++ {
		username, err := bridge.CreateUserContext(ctx, appName)
		if err == nil && username != "" {
			logger.Info().Msgf("Bridge username: %s", username)
			return username, nil
		}
		if err != nil && !strings.Contains(err.Error(), "link button not pressed") {
			return "", fmt.Errorf("mirror: registering with bridge: %w", err)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(5 * time.Second):
		}
	}
	return "", errors.New("mirror: link button was not pressed")
}

// Mirror sets the lamp to the left ear's light. Unchanged states are not
// sent again.
func (h *Hue) Mirror(ctx context.Context, cfg schema.Configuration) error {
	state := StateFor(cfg.Lights)

	h.mtx.Lock()
	defer h.mtx.Unlock()
	if h.last != nil && sameState(*h.last, state) {
		return nil
	}
	if _, err := h.bridge.SetLightStateContext(ctx, h.lightID, state); err != nil {
		return fmt.Errorf("mirror: setting light %d: %w", h.lightID, err)
	}
	h.last = &state
	h.log.Debug().Bool("on", state.On).Uint8("bri", state.Bri).Str("effect", state.Effect).Msg("Mirrored light")
	return nil
}

func sameState(a, b huego.State) bool {
	if a.On != b.On || a.Bri != b.Bri || a.Effect != b.Effect || a.Alert != b.Alert || len(a.Xy) != len(b.Xy) {
		return false
	}
	for i := range a.Xy {
		if a.Xy[i] != b.Xy[i] {
			return false
		}
	}
	return true
}

// StateFor picks the lamp state closest to the left ear's light: the
// mode's main color scaled by the global brightness.
func StateFor(lights schema.Lights) huego.State {
	color, level, effect, alert := schema.Black, uint8(255), "none", "none"
	switch v := lights.Left.(type) {
	case schema.Off, nil:
		return huego.State{On: false}
	case schema.Solid:
		color = v.Color
	case schema.Gradient:
		color = mix(v.From, v.To)
	case schema.Chase:
		color = v.Color
		alert = "lselect"
	case schema.Pulse:
		color, level = v.Color, v.MaxBrightness
		alert = "lselect"
	case schema.Rainbow:
		color, level, effect = schema.RGB8{R: 255, G: 255, B: 255}, v.Brightness, "colorloop"
	case schema.Custom:
		color = average(v.LEDs[:])
	}

	bri := uint8(math.Round(float64(lights.Brightness) * float64(level) / 255 * 254 / 255))
	if bri == 0 || color == schema.Black {
		return huego.State{On: false}
	}
	x, y := rgbToXY(color)
	return huego.State{
		On:     true,
		Bri:    bri,
		Xy:     []float32{x, y},
		Effect: effect,
		Alert:  alert,
	}
}

func mix(a, b schema.RGB8) schema.RGB8 {
	return schema.RGB8{
		R: uint8((uint16(a.R) + uint16(b.R)) / 2),
		G: uint8((uint16(a.G) + uint16(b.G)) / 2),
		B: uint8((uint16(a.B) + uint16(b.B)) / 2),
	}
}

// average ignores unlit LEDs.
func average(leds []schema.RGB8) schema.RGB8 {
	var r, g, b, n int
	for _, c := range leds {
		if c == schema.Black {
			continue
		}
		r, g, b, n = r+int(c.R), g+int(c.G), b+int(c.B), n+1
	}
	if n == 0 {
		return schema.Black
	}
	return schema.RGB8{R: uint8(r / n), G: uint8(g / n), B: uint8(b / n)}
}

// rgbToXY converts sRGB to CIE xy with the Wide RGB D65 matrix Hue
// bridges use.
func rgbToXY(c schema.RGB8) (float32, float32) {
	linear := func(v uint8) float64 {
		f := float64(v) / 255
		if f > 0.04045 {
			return math.Pow((f+0.055)/(1.0+0.055), 2.4)
		}
		return f / 12.92
	}
	r, g, b := linear(c.R), linear(c.G), linear(c.B)

	X := r*0.664511 + g*0.154324 + b*0.162028
	Y := r*0.283881 + g*0.668433 + b*0.047685
	Z := r*0.000088 + g*0.072310 + b*0.986039

	sum := X + Y + Z
	if sum == 0 {
		return 0.3227, 0.3290
	}
	return float32(X / sum), float32(Y / sum)
}
