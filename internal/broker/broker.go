// Package broker implements the cooperative, single-pass scheduler that
// drives a Plan: every enabled agent is polled once per pass, in a fixed
// declared order, and the loop suspends between passes until an agent
// channel has something to offer or the context is cancelled.
package broker

import (
	"context"
	"reflect"
)

// Flow is the directive a Plan handler returns after processing one
// output: Continue keeps the current pass going, Break ends the broker
// loop immediately.
type Flow int

const (
	Continue Flow = iota
	Break
)

// Station is one agent's slot in the broker's fixed, declared poll order.
type Station struct {
	// Name identifies the station for diagnostics; it plays no role in
	// scheduling.
	Name string
	// Poll attempts a single non-blocking receive from the station's
	// agent and, if a value was ready, runs pre-dispatch routing and the
	// Plan's matching handler. ready is false when nothing was available
	// this pass; flow is only meaningful when ready is true.
	Poll func() (flow Flow, ready bool)
	// Chan returns the agent's current output channel for the idle-wait
	// select, or an invalid reflect.Value if the agent is disabled and
	// has nothing to wait on.
	Chan func() reflect.Value
}

// PollExtra is invoked once per pass, after every Station has been
// polled, regardless of whether any of them were ready.
type PollExtra func() Flow

// Run drives stations through passes until a handler (or pollExtra)
// returns Break, or ctx is cancelled. Each pass takes at most one message
// per station, so no station can starve another by being persistently
// busy.
func Run(ctx context.Context, stations []Station, pollExtra PollExtra) error {
	for {
		anyReady := false
		for _, st := range stations {
			flow, ready := st.Poll()
			if !ready {
				continue
			}
			anyReady = true
			if flow == Break {
				return nil
			}
		}

		if pollExtra() == Break {
			return nil
		}

		if anyReady {
			continue
		}
		if err := suspend(ctx, stations); err != nil {
			return err
		}
	}
}

// suspend blocks until any station's output channel becomes readable or
// ctx is done, the Go translation of registering a waker against every
// agent's output and sleeping until one fires.
func suspend(ctx context.Context, stations []Station) error {
	cases := make([]reflect.SelectCase, 0, len(stations)+1)
	for _, st := range stations {
		if ch := st.Chan(); ch.IsValid() {
			cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: ch})
		}
	}
	cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(ctx.Done())})

	chosen, _, _ := reflect.Select(cases)
	if chosen == len(cases)-1 {
		return ctx.Err()
	}
	return nil
}
