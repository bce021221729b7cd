package game

import (
	"context"
	"errors"
)

// ErrNoSimulation is returned by RunHeadless when no engine could be built.
var ErrNoSimulation = errors.New("no simulation installed")

// RunHeadless steps the simulation without presenting until ctx is done or
// maxTicks ticks have run (0 = unlimited). Cancellation is checked between
// frames, never mid-tick.
func (g *Game) RunHeadless(ctx context.Context, maxTicks uint64) error {
	if g.engine == nil {
		if g.lastError != "" {
			return errors.Join(ErrNoSimulation, errors.New(g.lastError))
		}
		return ErrNoSimulation
	}
	g.paused = false

	g.log.Info("starting headless simulation",
		"seed", g.opts.Seed,
		"max_ticks", maxTicks,
		"steps_per_frame", g.opts.StepsPerFrame,
	)
	for {
		select {
		case <-ctx.Done():
			g.log.Info("headless run cancelled", "tick", g.Tick())
			return ctx.Err()
		default:
		}

		err := g.Update()
		g.EndFrame()
		if err != nil {
			return err
		}
		if g.engine == nil {
			return ErrNoSimulation
		}

		if maxTicks > 0 && g.Tick() >= maxTicks {
			g.log.Info("max ticks reached", "tick", g.Tick())
			return nil
		}
	}
}
