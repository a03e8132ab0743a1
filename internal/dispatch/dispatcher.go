// Package dispatch sends light commands to the bridge, one request per light,
// all in flight at once.
package dispatch

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/dokzlo13/haparty/internal/hue"
)

// LightSetter applies a command to one light.
type LightSetter interface {
	SetLightState(ctx context.Context, lightID string, cmd hue.Command) error
}

// Target pairs a command with the light it is for.
type Target struct {
	LightID string
	Command hue.Command
}

// Dispatcher fans commands out to lights.
//
// A failed light does not cancel its siblings and nothing is rolled back: the
// call waits for every request to settle and then returns the first error.
// The lights that succeeded keep their new state.
type Dispatcher struct {
	bridge  LightSetter
	limiter *rate.Limiter
}

// New creates a Dispatcher. Requests are throttled to rateLimitRPS; zero or
// less disables throttling.
func New(bridge LightSetter, rateLimitRPS float64) *Dispatcher {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if rateLimitRPS > 0 {
		burst := int(rateLimitRPS)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(rateLimitRPS), burst)
	}

	return &Dispatcher{
		bridge:  bridge,
		limiter: limiter,
	}
}

// SendAll applies the same command to every light in lightIDs.
func (d *Dispatcher) SendAll(ctx context.Context, cmd hue.Command, lightIDs []string) error {
	targets := make([]Target, 0, len(lightIDs))
	for _, id := range lightIDs {
		targets = append(targets, Target{LightID: id, Command: cmd})
	}
	return d.SendMany(ctx, targets)
}

// SendMany applies each target's command to its light concurrently and
// blocks until all requests have finished.
func (d *Dispatcher) SendMany(ctx context.Context, targets []Target) error {
	var g errgroup.Group
	for _, t := range targets {
		g.Go(func() error {
			if err := d.limiter.Wait(ctx); err != nil {
				return err
			}
			if err := d.bridge.SetLightState(ctx, t.LightID, t.Command); err != nil {
				log.Warn().
					Err(err).
					Str("light", t.LightID).
					Msg("Light command failed")
				return fmt.Errorf("light %s: %w", t.LightID, err)
			}
			log.Debug().
				Str("light", t.LightID).
				Bool("on", t.Command.On).
				Interface("color", t.Command.Color).
				Str("effect", string(t.Command.Effect)).
				Msg("Light command applied")
			return nil
		})
	}
	return g.Wait()
}
