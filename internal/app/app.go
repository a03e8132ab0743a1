package app

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/haparty/internal/clock"
	"github.com/dokzlo13/haparty/internal/config"
	"github.com/dokzlo13/haparty/internal/discovery"
	"github.com/dokzlo13/haparty/internal/pairing"
	"github.com/dokzlo13/haparty/internal/palette"
	"github.com/dokzlo13/haparty/internal/random"
	"github.com/dokzlo13/haparty/internal/sequence"
)

// Deps overrides collaborators. Zero fields get the production implementation.
type Deps struct {
	Locator   discovery.Locator
	Registrar pairing.Registrar
	NewBridge func(address, token string) Bridge
	Clock     clock.Clock
	Random    palette.Intn
	Out       io.Writer
}

// App is the main application container: it pairs with the bridge and runs
// the configured light sequence.
type App struct {
	cfg   *config.Config
	deps  Deps
	runID string

	Hue *HueService
}

// New creates a new App instance with all services initialized but not started.
func New(cfg *config.Config, deps Deps) (*App, error) {
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	if deps.Random == nil {
		deps.Random = random.New()
	}
	if deps.Out == nil {
		deps.Out = os.Stdout
	}

	hueService, err := NewHueService(cfg, deps)
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:   cfg,
		deps:  deps,
		runID: uuid.NewString(),
		Hue:   hueService,
	}, nil
}

// RunID identifies this process run in the logs.
func (a *App) RunID() string {
	return a.runID
}

// Run connects to the bridge and plays the configured mode. The scripted
// mode only returns on error or when ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if err := a.Hue.Start(ctx); err != nil {
		return err
	}

	seq := a.cfg.Sequence
	controller := sequence.New(
		a.Hue.Bridge,
		a.Hue.Dispatcher,
		palette.NewPicker(a.deps.Random, seq.ColorWidth),
		a.deps.Clock,
		a.deps.Out,
		sequence.Config{
			Marker:     seq.Marker,
			LightCount: seq.LightCount,
			Timing: sequence.Timing{
				Countdown: seq.Countdown.Duration(),
				Darkness:  seq.Darkness.Duration(),
				Step:      seq.Step.Duration(),
				Steady:    seq.SteadyInterval.Duration(),
			},
		},
	)

	log.Info().Str("mode", seq.Mode).Msg("Starting light sequence")

	if seq.Mode == config.ModeRandom {
		return controller.Randomize(ctx)
	}
	return controller.Run(ctx)
}

// SignalContext creates a context that is cancelled when SIGINT or SIGTERM is received.
func SignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Warn().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	return ctx
}
