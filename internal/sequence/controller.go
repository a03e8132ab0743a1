// Package sequence drives the color lights through the party script.
package sequence

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/haparty/internal/clock"
	"github.com/dokzlo13/haparty/internal/dispatch"
	"github.com/dokzlo13/haparty/internal/hue"
	"github.com/dokzlo13/haparty/internal/palette"
)

// ErrWrongLightCount is returned when the number of color lights is not the
// expected one. No command is sent in that case.
var ErrWrongLightCount = errors.New("unexpected number of color lights")

// Script colors.
var (
	Red         = hue.MustParseRGB("FF0000")
	Blue        = hue.MustParseRGB("0000FF")
	Magenta     = hue.MustParseRGB("FF00FF")
	SteadyShade = hue.MustParseRGB("FF20FF")
)

// LightLister enumerates lights.
type LightLister interface {
	Lights(ctx context.Context) ([]hue.Light, error)
}

// Dispatcher sends commands to lights.
type Dispatcher interface {
	SendAll(ctx context.Context, cmd hue.Command, lightIDs []string) error
	SendMany(ctx context.Context, targets []dispatch.Target) error
}

// Timing holds the delays of the script.
type Timing struct {
	Countdown time.Duration
	Darkness  time.Duration
	Step      time.Duration
	Steady    time.Duration
}

// DefaultTiming returns the stock script delays.
func DefaultTiming() Timing {
	return Timing{
		Countdown: 5 * time.Second,
		Darkness:  3 * time.Second,
		Step:      2 * time.Second,
		Steady:    1 * time.Second,
	}
}

// Config contains controller settings.
type Config struct {
	Marker     string
	LightCount int
	Timing     Timing
}

// Controller runs the scripted and randomized modes.
type Controller struct {
	lights   LightLister
	dispatch Dispatcher
	picker   *palette.Picker
	clock    clock.Clock
	out      io.Writer
	cfg      Config
}

// New creates a Controller. Progress lines are written to out.
func New(lights LightLister, d Dispatcher, picker *palette.Picker, clk clock.Clock, out io.Writer, cfg Config) *Controller {
	if cfg.Marker == "" {
		cfg.Marker = "color"
	}
	if cfg.LightCount == 0 {
		cfg.LightCount = 3
	}
	if clk == nil {
		clk = clock.Real{}
	}
	if out == nil {
		out = io.Discard
	}
	return &Controller{
		lights:   lights,
		dispatch: d,
		picker:   picker,
		clock:    clk,
		out:      out,
		cfg:      cfg,
	}
}

// ColorLights returns the lights whose name contains marker, keeping order.
func ColorLights(lights []hue.Light, marker string) []hue.Light {
	var out []hue.Light
	for _, l := range lights {
		if strings.Contains(l.Name, marker) {
			out = append(out, l)
		}
	}
	return out
}

func ids(lights []hue.Light) []string {
	out := make([]string, len(lights))
	for i, l := range lights {
		out[i] = l.ID
	}
	return out
}

// inventory lists all lights and checks the color light count.
func (c *Controller) inventory(ctx context.Context) (all, colored []hue.Light, err error) {
	all, err = c.lights.Lights(ctx)
	if err != nil {
		return nil, nil, err
	}
	colored = ColorLights(all, c.cfg.Marker)
	if len(colored) != c.cfg.LightCount {
		return nil, nil, fmt.Errorf("%w: found %d lights named %q, want %d",
			ErrWrongLightCount, len(colored), c.cfg.Marker, c.cfg.LightCount)
	}

	log.Info().
		Int("lights", len(all)).
		Strs("color_lights", ids(colored)).
		Msg("Light inventory checked")
	return all, colored, nil
}

func (c *Controller) progress(msg string) {
	fmt.Fprintln(c.out, msg)
}

// Run plays the script: countdown, darkness, red, blue, magenta, then the
// steady shade refreshed forever. It only returns on error or when ctx is
// done.
func (c *Controller) Run(ctx context.Context) error {
	all, colored, err := c.inventory(ctx)
	if err != nil {
		return err
	}

	t := c.cfg.Timing

	c.progress("Get ready...")
	if err := c.clock.Sleep(ctx, t.Countdown); err != nil {
		return err
	}

	if err := c.TurnOff(ctx, all); err != nil {
		return err
	}
	c.progress("Lights out")
	if err := c.clock.Sleep(ctx, t.Darkness); err != nil {
		return err
	}

	steps := []struct {
		color hue.RGB
		label string
	}{
		{Red, "Red"},
		{Blue, "Blue"},
		{Magenta, "Magenta"},
	}
	for _, s := range steps {
		if err := c.SetColors(ctx, colored, false, s.color, s.color, s.color); err != nil {
			return err
		}
		c.progress(s.label)
		if err := c.clock.Sleep(ctx, t.Step); err != nil {
			return err
		}
	}

	c.progress("Holding steady shade " + SteadyShade.String())
	for {
		if err := c.SetColors(ctx, colored, false, SteadyShade, SteadyShade, SteadyShade); err != nil {
			return err
		}
		if err := c.clock.Sleep(ctx, t.Steady); err != nil {
			return err
		}
	}
}

// TurnOff switches off every light in lights with one combined call.
func (c *Controller) TurnOff(ctx context.Context, lights []hue.Light) error {
	return c.dispatch.SendAll(ctx, hue.Off(), ids(lights))
}

// SetColors sets lights[i] to colors[i] at full brightness, all at once.
// With loop set, the lights also start the color loop effect.
func (c *Controller) SetColors(ctx context.Context, lights []hue.Light, loop bool, colors ...hue.RGB) error {
	if len(colors) != len(lights) {
		return fmt.Errorf("got %d colors for %d lights", len(colors), len(lights))
	}

	effect := hue.EffectNone
	if loop {
		effect = hue.EffectColorLoop
	}

	targets := make([]dispatch.Target, len(lights))
	for i, l := range lights {
		targets[i] = dispatch.Target{LightID: l.ID, Command: hue.ColorCommand(colors[i], effect)}
	}
	return c.dispatch.SendMany(ctx, targets)
}

// Randomize gives each color light its own palette color, once. Colors are
// drawn one after another so the picker history is never shared between
// goroutines; the resulting commands are then sent together.
func (c *Controller) Randomize(ctx context.Context) error {
	_, colored, err := c.inventory(ctx)
	if err != nil {
		return err
	}

	colors := make([]hue.RGB, len(colored))
	for i, l := range colored {
		color, pattern, err := c.picker.Next()
		if err != nil {
			return fmt.Errorf("pick color for light %s: %w", l.ID, err)
		}
		colors[i] = color
		log.Debug().
			Str("light", l.ID).
			Str("pattern", pattern.String()).
			Str("color", color.String()).
			Msg("Picked color")
	}

	if err := c.SetColors(ctx, colored, false, colors...); err != nil {
		return err
	}
	c.progress(fmt.Sprintf("Randomized %d lights", len(colored)))
	return nil
}
