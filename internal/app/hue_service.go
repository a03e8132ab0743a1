package app

import (
	"context"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/haparty/internal/clock"
	"github.com/dokzlo13/haparty/internal/config"
	"github.com/dokzlo13/haparty/internal/credentials"
	"github.com/dokzlo13/haparty/internal/discovery"
	"github.com/dokzlo13/haparty/internal/dispatch"
	"github.com/dokzlo13/haparty/internal/hue"
	"github.com/dokzlo13/haparty/internal/pairing"
)

// Bridge is what the sequence needs from a paired bridge.
type Bridge interface {
	Lights(ctx context.Context) ([]hue.Light, error)
	SetLightState(ctx context.Context, lightID string, cmd hue.Command) error
}

// HueService resolves bridge credentials and builds the bridge client and
// dispatcher on top of them.
type HueService struct {
	cfg   *config.Config
	store *credentials.Store

	Pairer     *pairing.Pairer
	Bridge     Bridge
	Dispatcher *dispatch.Dispatcher

	newBridge func(address, token string) Bridge
}

// NewHueService creates a HueService with all components initialized but not connected.
func NewHueService(cfg *config.Config, deps Deps) (*HueService, error) {
	store, err := credentials.NewStore(cfg.Credentials.Path)
	if err != nil {
		return nil, err
	}

	locator := deps.Locator
	if locator == nil {
		locator = discovery.NewMulti(cfg.Hue.DiscoveryTimeout.Duration())
	}
	registrar := deps.Registrar
	if registrar == nil {
		registrar = hue.NewRegistrar(cfg.Hue.Timeout.Duration())
	}
	newBridge := deps.NewBridge
	if newBridge == nil {
		timeout := cfg.Hue.Timeout.Duration()
		newBridge = func(address, token string) Bridge {
			return hue.NewClient(address, token, timeout)
		}
	}
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real{}
	}

	pairer := pairing.New(locator, registrar, clk, pairing.Config{
		AppName:          cfg.Hue.AppName,
		DeviceName:       hostname(),
		DiscoveryTimeout: cfg.Hue.DiscoveryTimeout.Duration(),
		Retry: pairing.RetryPolicy{
			Interval:    cfg.Hue.PairingInterval.Duration(),
			MaxAttempts: cfg.Hue.PairingMaxAttempts,
			Deadline:    cfg.Hue.PairingDeadline.Duration(),
		},
	})

	return &HueService{
		cfg:       cfg,
		store:     store,
		Pairer:    pairer,
		newBridge: newBridge,
	}, nil
}

// Start obtains credentials, pairing with a bridge if none are stored, and
// connects the client.
func (s *HueService) Start(ctx context.Context) error {
	creds, err := s.credentials(ctx)
	if err != nil {
		return err
	}

	s.Bridge = s.newBridge(creds.Address, creds.Token)
	s.Dispatcher = dispatch.New(s.Bridge, s.cfg.Dispatch.RateLimitRPS)

	log.Info().Str("bridge", creds.Address).Msg("Using Hue bridge")
	return nil
}

func (s *HueService) credentials(ctx context.Context) (credentials.Credentials, error) {
	manual := credentials.Credentials{Address: s.cfg.Hue.Bridge, Token: s.cfg.Hue.Token}
	if !manual.IsZero() {
		log.Debug().Msg("Using bridge credentials from configuration")
		return manual, nil
	}
	return s.store.LoadOrInit(ctx, s.Pairer.Pair)
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read hostname")
		return ""
	}
	return name
}
