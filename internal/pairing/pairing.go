// Package pairing discovers a bridge and registers this application with it.
//
// Registration only succeeds after someone presses the bridge's link button,
// so failed attempts are retried on a fixed interval. By default there is no
// bound on attempts; RetryPolicy can add one.
package pairing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/haparty/internal/clock"
	"github.com/dokzlo13/haparty/internal/credentials"
	"github.com/dokzlo13/haparty/internal/discovery"
)

var (
	// ErrNoBridges is returned when discovery finds nothing. Not retried.
	ErrNoBridges = errors.New("no Hue bridge found")
	// ErrRetriesExhausted is returned when a bounded RetryPolicy runs out.
	ErrRetriesExhausted = errors.New("pairing retries exhausted")
)

// State is a pairing phase.
type State int

const (
	StateDiscovering State = iota
	StateRegistering
	StatePaired
)

func (s State) String() string {
	switch s {
	case StateDiscovering:
		return "discovering"
	case StateRegistering:
		return "registering"
	case StatePaired:
		return "paired"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Registrar requests an application key from the bridge at address.
type Registrar interface {
	Register(ctx context.Context, address, appName, deviceName string) (string, error)
}

// RetryPolicy controls registration retries. Zero MaxAttempts and Deadline
// mean unbounded.
type RetryPolicy struct {
	Interval    time.Duration
	MaxAttempts int
	Deadline    time.Duration
}

// DefaultRetryPolicy retries every 500ms forever.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Interval: 500 * time.Millisecond}
}

// Config contains pairing settings.
type Config struct {
	AppName          string
	DeviceName       string
	DiscoveryTimeout time.Duration
	Retry            RetryPolicy
}

// Pairer runs the discover-then-register handshake.
type Pairer struct {
	locator   discovery.Locator
	registrar Registrar
	clock     clock.Clock
	cfg       Config

	state State
}

// New creates a Pairer.
func New(locator discovery.Locator, registrar Registrar, clk clock.Clock, cfg Config) *Pairer {
	if cfg.DiscoveryTimeout == 0 {
		cfg.DiscoveryTimeout = 5 * time.Second
	}
	if cfg.Retry.Interval == 0 {
		cfg.Retry.Interval = DefaultRetryPolicy().Interval
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &Pairer{
		locator:   locator,
		registrar: registrar,
		clock:     clk,
		cfg:       cfg,
	}
}

// State returns the current phase.
func (p *Pairer) State() State {
	return p.state
}

func (p *Pairer) transition(s State) {
	log.Debug().Str("from", p.state.String()).Str("to", s.String()).Msg("Pairing state change")
	p.state = s
}

// Pair discovers a bridge, registers with it and returns the credentials.
func (p *Pairer) Pair(ctx context.Context) (credentials.Credentials, error) {
	p.transition(StateDiscovering)

	address, err := p.discover(ctx)
	if err != nil {
		return credentials.Credentials{}, err
	}

	p.transition(StateRegistering)

	token, err := p.register(ctx, address)
	if err != nil {
		return credentials.Credentials{}, err
	}

	p.transition(StatePaired)
	log.Info().Str("bridge", address).Msg("Paired with Hue bridge")

	return credentials.Credentials{Address: address, Token: token}, nil
}

func (p *Pairer) discover(ctx context.Context) (string, error) {
	dctx, cancel := context.WithTimeout(ctx, p.cfg.DiscoveryTimeout)
	defer cancel()

	bridges, err := p.locator.Locate(dctx)
	if err != nil {
		return "", fmt.Errorf("discovery: %w", err)
	}
	if len(bridges) == 0 {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", ErrNoBridges
	}

	b := bridges[0]
	log.Info().
		Str("address", b.Address).
		Str("id", b.ID).
		Str("source", b.Source).
		Int("found", len(bridges)).
		Msg("Hue bridge discovered")
	return b.Address, nil
}

func (p *Pairer) register(ctx context.Context, address string) (string, error) {
	policy := p.cfg.Retry

	var deadline time.Time
	if policy.Deadline > 0 {
		deadline = p.clock.Now().Add(policy.Deadline)
	}

	for attempt := 1; ; attempt++ {
		token, err := p.registrar.Register(ctx, address, p.cfg.AppName, p.cfg.DeviceName)
		if err == nil {
			return token, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		if policy.MaxAttempts > 0 && attempt >= policy.MaxAttempts {
			return "", fmt.Errorf("%w after %d attempts: %v", ErrRetriesExhausted, attempt, err)
		}
		if policy.Deadline > 0 && p.clock.Now().Add(policy.Interval).After(deadline) {
			return "", fmt.Errorf("%w after %s: %v", ErrRetriesExhausted, policy.Deadline, err)
		}

		if attempt == 1 {
			log.Info().Str("bridge", address).Msg("Press the link button on the Hue bridge")
		}
		log.Debug().
			Err(err).
			Int("attempt", attempt).
			Dur("interval", policy.Interval).
			Msg("Registration rejected, retrying")

		if err := p.clock.Sleep(ctx, policy.Interval); err != nil {
			return "", err
		}
	}
}
