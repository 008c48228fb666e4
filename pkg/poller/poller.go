// Package poller implements the adaptive refresh scheduler used by every
// recurring on-chain and backend read. The delay grows while nothing
// changes and snaps back to the initial value as soon as a tick reports a
// change or a dependency is poked from outside.
package poller

import (
	"context"
	"time"
)

const (
	defaultInitialDelay = 12 * time.Second
	defaultMaxDelay     = 60 * time.Second
	defaultMultiplier   = 2.0
)

// TickFunc performs one refresh. It reports whether the observed value
// changed since the previous tick; errors keep the current cadence.
type TickFunc func(ctx context.Context) (changed bool, err error)

// Poller schedules a TickFunc with exponential backoff on no-change ticks.
type Poller struct {
	initialDelay time.Duration
	maxDelay     time.Duration
	multiplier   float64
	enabled      bool

	poke chan struct{}
}

// Option configures a Poller.
type Option func(*Poller)

// WithInitialDelay sets the delay used after a change and at startup.
func WithInitialDelay(d time.Duration) Option {
	return func(p *Poller) {
		p.initialDelay = d
	}
}

// WithMaxDelay caps the backed-off delay.
func WithMaxDelay(d time.Duration) Option {
	return func(p *Poller) {
		p.maxDelay = d
	}
}

// WithMultiplier sets the backoff multiplier applied after a no-change tick.
func WithMultiplier(m float64) Option {
	return func(p *Poller) {
		p.multiplier = m
	}
}

// WithEnabled toggles the poller. A disabled poller never arms a timer and
// ignores pokes.
func WithEnabled(enabled bool) Option {
	return func(p *Poller) {
		p.enabled = enabled
	}
}

// New creates a Poller with default values and optional overrides.
func New(opts ...Option) *Poller {
	p := &Poller{
		initialDelay: defaultInitialDelay,
		maxDelay:     defaultMaxDelay,
		multiplier:   defaultMultiplier,
		enabled:      true,
		poke:         make(chan struct{}, 1),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Poke resets the cadence and fires a tick immediately. Safe to call from
// any goroutine; coalesces when a poke is already pending.
func (p *Poller) Poke() {
	select {
	case p.poke <- struct{}{}:
	default:
	}
}

// nextDelay advances the schedule after a successful tick.
func (p *Poller) nextDelay(current time.Duration, changed bool) time.Duration {
	if changed {
		return p.initialDelay
	}
	next := time.Duration(float64(current) * p.multiplier)
	if next > p.maxDelay {
		next = p.maxDelay
	}
	return next
}

// Run ticks once immediately, then loops until ctx is cancelled. The
// pending timer is always stopped on exit so no callback outlives Run.
func (p *Poller) Run(ctx context.Context, tick TickFunc) error {
	if !p.enabled {
		<-ctx.Done()
		return ctx.Err()
	}

	delay := p.initialDelay

	runTick := func() {
		changed, err := tick(ctx)
		if err != nil {
			// keep the current cadence; the caller logs the failure
			return
		}
		delay = p.nextDelay(delay, changed)
	}

	runTick()

	timer := time.NewTimer(delay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.poke:
			delay = p.initialDelay
			runTick()
		case <-timer.C:
			runTick()
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(delay)
	}
}
