package sequence

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/dokzlo13/haparty/internal/clock"
	"github.com/dokzlo13/haparty/internal/dispatch"
	"github.com/dokzlo13/haparty/internal/hue"
	"github.com/dokzlo13/haparty/internal/palette"
	"github.com/dokzlo13/haparty/internal/random"
)

// fakeBridge lists a fixed set of lights and records commands in batches,
// one batch per dispatcher call.
type fakeBridge struct {
	lights  []hue.Light
	listErr error

	mu       sync.Mutex
	received []dispatch.Target
	fail     error
}

func (b *fakeBridge) Lights(ctx context.Context) ([]hue.Light, error) {
	return b.lights, b.listErr
}

func (b *fakeBridge) SetLightState(ctx context.Context, lightID string, cmd hue.Command) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.received = append(b.received, dispatch.Target{LightID: lightID, Command: cmd})
	return b.fail
}

func (b *fakeBridge) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.received)
}

// batchingDispatcher wraps the real dispatcher and snapshots each step.
type batchingDispatcher struct {
	inner   *dispatch.Dispatcher
	batches [][]dispatch.Target
}

func (d *batchingDispatcher) SendAll(ctx context.Context, cmd hue.Command, lightIDs []string) error {
	batch := make([]dispatch.Target, 0, len(lightIDs))
	for _, id := range lightIDs {
		batch = append(batch, dispatch.Target{LightID: id, Command: cmd})
	}
	d.batches = append(d.batches, batch)
	return d.inner.SendAll(ctx, cmd, lightIDs)
}

func (d *batchingDispatcher) SendMany(ctx context.Context, targets []dispatch.Target) error {
	d.batches = append(d.batches, append([]dispatch.Target(nil), targets...))
	return d.inner.SendMany(ctx, targets)
}

func kitchenLights() []hue.Light {
	return []hue.Light{
		{ID: "1", Name: "Kitchen color 1"},
		{ID: "2", Name: "Kitchen color 2"},
		{ID: "3", Name: "Living white"},
		{ID: "4", Name: "Kitchen color 3"},
	}
}

func newTestController(bridge *fakeBridge, clk clock.Clock, out *bytes.Buffer) (*Controller, *batchingDispatcher) {
	d := &batchingDispatcher{inner: dispatch.New(bridge, 0)}
	picker := palette.NewPicker(random.New(), palette.DefaultWidth)
	c := New(bridge, d, picker, clk, out, Config{Timing: DefaultTiming()})
	return c, d
}

func colorCmd(c hue.RGB) hue.Command {
	return hue.ColorCommand(c, hue.EffectNone)
}

func TestColorLights(t *testing.T) {
	got := ColorLights(kitchenLights(), "color")
	want := []hue.Light{
		{ID: "1", Name: "Kitchen color 1"},
		{ID: "2", Name: "Kitchen color 2"},
		{ID: "4", Name: "Kitchen color 3"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ColorLights mismatch (-want +got):\n%s", diff)
	}

	if got := ColorLights(kitchenLights(), "Color"); len(got) != 0 {
		t.Errorf("marker match must be case sensitive, got %v", got)
	}
}

func TestRun_WrongLightCountAbortsBeforeAnyCommand(t *testing.T) {
	bridge := &fakeBridge{lights: []hue.Light{
		{ID: "1", Name: "Kitchen color 1"},
		{ID: "2", Name: "Kitchen color 2"},
		{ID: "3", Name: "Living white"},
	}}
	clk := &clock.Fake{}
	c, _ := newTestController(bridge, clk, &bytes.Buffer{})

	err := c.Run(context.Background())
	if !errors.Is(err, ErrWrongLightCount) {
		t.Fatalf("Run error = %v, want ErrWrongLightCount", err)
	}
	if bridge.count() != 0 {
		t.Errorf("bridge received %d commands, want 0", bridge.count())
	}
	if len(clk.Sleeps()) != 0 {
		t.Errorf("slept %v before aborting", clk.Sleeps())
	}

	if err := c.Randomize(context.Background()); !errors.Is(err, ErrWrongLightCount) {
		t.Fatalf("Randomize error = %v, want ErrWrongLightCount", err)
	}
}

func TestRun_ListError(t *testing.T) {
	bridge := &fakeBridge{listErr: errors.New("bridge unreachable")}
	c, _ := newTestController(bridge, &clock.Fake{}, &bytes.Buffer{})
	if err := c.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestRun_Script(t *testing.T) {
	bridge := &fakeBridge{lights: kitchenLights()}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// countdown, darkness, 3 steps, then 3 steady refreshes.
	const steadyRounds = 3
	clk := &clock.Fake{OnSleep: func(n int, d time.Duration) {
		if n == 5+steadyRounds {
			cancel()
		}
	}}
	out := &bytes.Buffer{}
	c, d := newTestController(bridge, clk, out)

	err := c.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run error = %v, want context.Canceled", err)
	}

	wantSleeps := []time.Duration{5 * time.Second, 3 * time.Second, 2 * time.Second, 2 * time.Second, 2 * time.Second}
	for i := 0; i < steadyRounds; i++ {
		wantSleeps = append(wantSleeps, time.Second)
	}
	if diff := cmp.Diff(wantSleeps, clk.Sleeps()); diff != "" {
		t.Errorf("sleeps mismatch (-want +got):\n%s", diff)
	}

	colorStep := func(c hue.RGB) []dispatch.Target {
		return []dispatch.Target{
			{LightID: "1", Command: colorCmd(c)},
			{LightID: "2", Command: colorCmd(c)},
			{LightID: "4", Command: colorCmd(c)},
		}
	}
	want := [][]dispatch.Target{
		{
			{LightID: "1", Command: hue.Off()},
			{LightID: "2", Command: hue.Off()},
			{LightID: "3", Command: hue.Off()},
			{LightID: "4", Command: hue.Off()},
		},
		colorStep(Red),
		colorStep(Blue),
		colorStep(Magenta),
	}
	for i := 0; i < steadyRounds; i++ {
		want = append(want, colorStep(SteadyShade))
	}
	if diff := cmp.Diff(want, d.batches); diff != "" {
		t.Errorf("dispatched steps mismatch (-want +got):\n%s", diff)
	}

	if got, wantN := bridge.count(), 4+3*(3+steadyRounds); got != wantN {
		t.Errorf("bridge received %d commands, want %d", got, wantN)
	}

	for _, line := range []string{"Get ready...", "Lights out", "Red", "Blue", "Magenta", "#FF20FF"} {
		if !bytes.Contains(out.Bytes(), []byte(line)) {
			t.Errorf("progress output missing %q:\n%s", line, out.String())
		}
	}
}

func TestRun_CommandFailureIsFatal(t *testing.T) {
	bridge := &fakeBridge{lights: kitchenLights(), fail: errors.New("bridge busy")}
	clk := &clock.Fake{}
	c, _ := newTestController(bridge, clk, &bytes.Buffer{})

	err := c.Run(context.Background())
	if err == nil || errors.Is(err, context.Canceled) {
		t.Fatalf("Run error = %v, want command failure", err)
	}
	// Only the countdown ran; the failing turn-off stopped the script.
	if n := len(clk.Sleeps()); n != 1 {
		t.Errorf("sleeps = %d, want 1", n)
	}
}

func TestSetColors_Positional(t *testing.T) {
	bridge := &fakeBridge{lights: kitchenLights()}
	c, d := newTestController(bridge, &clock.Fake{}, &bytes.Buffer{})

	colored := ColorLights(kitchenLights(), "color")
	green := hue.MustParseRGB("00FF00")
	if err := c.SetColors(context.Background(), colored, true, Red, green, Blue); err != nil {
		t.Fatalf("SetColors: %v", err)
	}

	loop := func(c hue.RGB) hue.Command { return hue.ColorCommand(c, hue.EffectColorLoop) }
	want := [][]dispatch.Target{{
		{LightID: "1", Command: loop(Red)},
		{LightID: "2", Command: loop(green)},
		{LightID: "4", Command: loop(Blue)},
	}}
	if diff := cmp.Diff(want, d.batches); diff != "" {
		t.Errorf("SetColors mismatch (-want +got):\n%s", diff)
	}

	if err := c.SetColors(context.Background(), colored, false, Red); err == nil {
		t.Error("expected error for mismatched color count")
	}
}

func TestRandomize(t *testing.T) {
	bridge := &fakeBridge{lights: kitchenLights()}
	out := &bytes.Buffer{}
	c, d := newTestController(bridge, &clock.Fake{}, out)

	if err := c.Randomize(context.Background()); err != nil {
		t.Fatalf("Randomize: %v", err)
	}

	if len(d.batches) != 1 || len(d.batches[0]) != 3 {
		t.Fatalf("batches = %+v, want one batch of 3", d.batches)
	}

	batch := append([]dispatch.Target(nil), d.batches[0]...)
	sort.Slice(batch, func(i, j int) bool { return batch[i].LightID < batch[j].LightID })

	patterns := map[palette.Assignment]bool{}
	for i, target := range batch {
		if target.LightID != []string{"1", "2", "4"}[i] {
			t.Errorf("target %d light = %s", i, target.LightID)
		}
		cmd := target.Command
		if !cmd.On || cmd.Brightness != 255 || cmd.Effect != hue.EffectNone || cmd.Color == nil {
			t.Fatalf("unexpected command %+v", cmd)
		}

		var p palette.Assignment
		for ch, v := range []uint8{cmd.Color.R, cmd.Color.G, cmd.Color.B} {
			switch {
			case v >= 224:
				p[ch] = palette.High
			case v < 32:
				p[ch] = palette.Low
			default:
				t.Fatalf("channel %d = %d outside both bands", ch, v)
			}
		}
		if p.Uniform() {
			t.Errorf("light %s got uniform pattern %s", target.LightID, p)
		}
		if patterns[p] {
			t.Errorf("pattern %s used twice", p)
		}
		patterns[p] = true
	}

	if c.picker.History().Len() != 3 {
		t.Errorf("history length = %d, want 3", c.picker.History().Len())
	}
}

func TestRandomize_ExhaustedPalette(t *testing.T) {
	bridge := &fakeBridge{lights: kitchenLights()}
	c, _ := newTestController(bridge, &clock.Fake{}, &bytes.Buffer{})

	if err := c.Randomize(context.Background()); err != nil {
		t.Fatalf("first Randomize: %v", err)
	}
	if err := c.Randomize(context.Background()); err != nil {
		t.Fatalf("second Randomize: %v", err)
	}
	sent := bridge.count()

	if err := c.Randomize(context.Background()); !errors.Is(err, palette.ErrExhausted) {
		t.Fatalf("third Randomize error = %v, want ErrExhausted", err)
	}
	if bridge.count() != sent {
		t.Error("no command may be sent once the palette is exhausted")
	}
}
