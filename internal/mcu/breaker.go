package mcu

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// breakerState is a closed/open/half-open circuit-breaker cycle with a
// single purpose: stop
// hammering a wedged serial link with MCU commands that are only going to
// time out.
type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

// ErrLinkOpen is returned by a GuardedMcu when the underlying link has
// tripped open and is waiting out its cooldown.
var ErrLinkOpen = errors.New("mcu: link circuit open")

// GuardedMcu wraps an Mcu and trips open after a run of consecutive send
// failures, short-circuiting further sends until Timeout has elapsed. This
// is the single-writer command bus's guard against a stalled MCU firmware
// turning every Plan tick into a multi-second timeout.
type GuardedMcu struct {
	inner Mcu

	maxConsecutiveFailures int
	timeout                time.Duration

	mu                  sync.Mutex
	state               breakerState
	consecutiveFailures int
	openedAt            time.Time
}

// NewGuardedMcu wraps inner, tripping open after maxConsecutiveFailures
// and staying open for timeout before allowing a half-open probe.
func NewGuardedMcu(inner Mcu, maxConsecutiveFailures int, timeout time.Duration) *GuardedMcu {
	if maxConsecutiveFailures <= 0 {
		maxConsecutiveFailures = 3
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &GuardedMcu{inner: inner, maxConsecutiveFailures: maxConsecutiveFailures, timeout: timeout}
}

// Send implements Mcu, guarding inner.Send with the breaker.
func (g *GuardedMcu) Send(ctx context.Context, cmd Command) error {
	if err := g.allow(); err != nil {
		return err
	}
	err := g.inner.Send(ctx, cmd)
	g.record(err == nil)
	return err
}

func (g *GuardedMcu) allow() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == breakerOpen {
		if time.Since(g.openedAt) < g.timeout {
			return ErrLinkOpen
		}
		g.state = breakerHalfOpen
	}
	return nil
}

func (g *GuardedMcu) record(success bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if success {
		if g.state == breakerHalfOpen {
			slog.Info("mcu link recovered, closing breaker")
		}
		g.state = breakerClosed
		g.consecutiveFailures = 0
		return
	}
	g.consecutiveFailures++
	if g.state == breakerHalfOpen || g.consecutiveFailures >= g.maxConsecutiveFailures {
		if g.state != breakerOpen {
			slog.Warn("mcu link breaker tripped open", "consecutive_failures", g.consecutiveFailures)
		}
		g.state = breakerOpen
		g.openedAt = time.Now()
	}
}

// Broadcasts implements Mcu.
func (g *GuardedMcu) Broadcasts() <-chan GpsBroadcast { return g.inner.Broadcasts() }

// Close implements Mcu.
func (g *GuardedMcu) Close() error { return g.inner.Close() }
