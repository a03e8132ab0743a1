package hue

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/amimof/huego"
	"github.com/rs/zerolog/log"
)

// Client talks to a paired Hue bridge over the v1 API.
type Client struct {
	bridge  *huego.Bridge
	timeout time.Duration
}

// NewClient creates a new Hue client. The timeout bounds light listing only;
// state changes are never cut short.
func NewClient(address, token string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		bridge:  huego.New(address, token),
		timeout: timeout,
	}
}

// Lights returns all lights known to the bridge, ordered by numeric id.
func (c *Client) Lights(ctx context.Context) ([]Light, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.bridge.GetLightsContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list lights: %w", err)
	}

	sort.Slice(raw, func(i, j int) bool { return raw[i].ID < raw[j].ID })

	lights := make([]Light, 0, len(raw))
	for _, l := range raw {
		lights = append(lights, Light{ID: strconv.Itoa(l.ID), Name: l.Name})
	}

	log.Debug().
		Str("bridge", c.bridge.Host).
		Int("lights", len(lights)).
		Msg("Lights listed")

	return lights, nil
}

// SetLightState applies cmd to a single light.
func (c *Client) SetLightState(ctx context.Context, lightID string, cmd Command) error {
	id, err := strconv.Atoi(lightID)
	if err != nil {
		return fmt.Errorf("invalid light id %q: %w", lightID, err)
	}

	state := stateFor(cmd)
	if _, err := c.bridge.SetLightStateContext(ctx, id, state); err != nil {
		return fmt.Errorf("failed to set state of light %s: %w", lightID, err)
	}
	return nil
}

// stateFor maps a Command onto the v1 light state body.
func stateFor(cmd Command) huego.State {
	state := huego.State{On: cmd.On}
	if !cmd.On {
		return state
	}

	state.Bri = cmd.Brightness
	if state.Bri > MaxBrightness {
		state.Bri = MaxBrightness
	}
	if cmd.Color != nil {
		xy := cmd.Color.XY()
		state.Xy = []float32{xy[0], xy[1]}
	}
	if cmd.Effect != "" {
		state.Effect = string(cmd.Effect)
	}
	return state
}

// Registrar creates application users on a bridge.
type Registrar struct {
	timeout time.Duration
}

// NewRegistrar returns a Registrar whose individual attempts are bounded by
// timeout.
func NewRegistrar(timeout time.Duration) *Registrar {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Registrar{timeout: timeout}
}

// Register asks the bridge at address for a new application key. The bridge
// rejects the request until its link button has been pressed.
func (r *Registrar) Register(ctx context.Context, address, appName, deviceName string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	token, err := huego.New(address, "").CreateUserContext(ctx, DeviceType(appName, deviceName))
	if err != nil {
		return "", err
	}
	return token, nil
}

// Limits of the two halves of a v1 devicetype ("app#device").
const (
	maxAppNameLen    = 20
	maxDeviceNameLen = 19
)

// DeviceType builds the v1 devicetype string, truncating both halves to the
// byte lengths the bridge accepts without splitting a character.
func DeviceType(appName, deviceName string) string {
	appName = truncate(appName, maxAppNameLen)
	deviceName = truncate(deviceName, maxDeviceNameLen)
	if deviceName == "" {
		return appName
	}
	return appName + "#" + deviceName
}

// truncate cuts s to at most n bytes on a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
