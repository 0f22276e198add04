// Package agent implements the agent cell: the lifecycle wrapper that lets
// the broker enable, disable, and exchange typed messages with an agent
// without knowing whether that agent runs as a cooperative task, a pinned OS
// thread, or an isolated subprocess.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Model selects the execution model used to run an agent's logic. It is
// chosen once, at Cell construction, and never changes afterwards.
type Model int

const (
	// Task runs the agent on a plain goroutine, sharing the Go runtime's
	// scheduler. Cheap; for lightweight glue agents (mirror actuator,
	// distance, autofocus, autoexposure, eye PID).
	Task Model = iota
	// Thread runs the agent on a goroutine pinned to its own OS thread via
	// runtime.LockOSThread, for blocking driver work (IR cameras, eye
	// tracker, image notary).
	Thread
	// Subprocess runs the agent's logic out of process (a Docker container
	// for the three perception models), bridged by a serialized pipe.
	Subprocess
)

func (m Model) String() string {
	switch m {
	case Task:
		return "task"
	case Thread:
		return "thread"
	case Subprocess:
		return "subprocess"
	default:
		return "unknown"
	}
}

// ErrNotEnabled is returned by Send/SendNow/SendUnjam on a disabled cell.
var ErrNotEnabled = errors.New("agent: cell is not enabled")

// ErrFull is returned by SendNow when the agent's inbox has no spare
// capacity.
var ErrFull = errors.New("agent: inbox full")

// Runner is the agent logic hosted inside a Cell. Run must return when ctx
// is cancelled; its return value becomes the disable error, if any.
type Runner[I, O any] interface {
	Run(ctx context.Context, in <-chan I, out chan<- O) error
}

// RunnerFunc adapts a plain function to the Runner interface.
type RunnerFunc[I, O any] func(ctx context.Context, in <-chan I, out chan<- O) error

// Run implements Runner.
func (f RunnerFunc[I, O]) Run(ctx context.Context, in <-chan I, out chan<- O) error {
	return f(ctx, in, out)
}

// handle is the running state of an enabled cell.
type handle[I, O any] struct {
	inputTx chan I
	outputRx chan O
	cancel  context.CancelFunc
	done    chan error
}

// Cell is the slot holding either Disabled or Enabled{input, output, handle}.
// Transitions are Disabled -> Enabled -> Disabled, atomic per call; a Cell is
// never observed half-enabled.
type Cell[I, O any] struct {
	name     string
	model    Model
	capacity int

	mu sync.Mutex
	h  *handle[I, O]
}

// NewCell declares an agent slot with a fixed name (used in panic messages
// for lifecycle misuse) and execution model, and the bounded capacity of its
// input inbox.
func NewCell[I, O any](name string, model Model, capacity int) *Cell[I, O] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Cell[I, O]{name: name, model: model, capacity: capacity}
}

// Name returns the agent's declared name.
func (c *Cell[I, O]) Name() string { return c.name }

// Model returns the agent's fixed execution model.
func (c *Cell[I, O]) Model() Model { return c.model }

// IsEnabled reports whether the cell currently has a running agent.
func (c *Cell[I, O]) IsEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.h != nil
}

// Enable constructs and starts the agent's runner according to the cell's
// execution model. It is a no-op error if the cell is already enabled.
func (c *Cell[I, O]) Enable(ctx context.Context, runner Runner[I, O]) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.h != nil {
		return fmt.Errorf("agent %s: already enabled", c.name)
	}

	runCtx, cancel := context.WithCancel(ctx)
	h := &handle[I, O]{
		inputTx: make(chan I, c.capacity),
		outputRx: make(chan O, c.capacity),
		cancel:  cancel,
		done:    make(chan error, 1),
	}

	switch c.model {
	case Thread:
		go func() {
			// Dedicated OS thread for blocking driver work; the goroutine
			// never migrates and is never reused by other goroutines.
			h.done <- runOnLockedThread(runCtx, runner, h.inputTx, h.outputRx)
			close(h.outputRx)
		}()
	default: // Task and Subprocess both reduce to "run this Runner on a goroutine";
		// for Subprocess the Runner bridges to the container/gRPC boundary.
		go func() {
			h.done <- runner.Run(runCtx, h.inputTx, h.outputRx)
			close(h.outputRx)
		}()
	}

	c.h = h
	return nil
}

// Disable tears down the running agent and blocks until it has fully
// stopped. Calling Disable on an already-disabled cell panics: this is
// lifecycle misuse, a programming error, per the error taxonomy.
func (c *Cell[I, O]) Disable() error {
	c.mu.Lock()
	h := c.h
	c.h = nil
	c.mu.Unlock()

	if h == nil {
		panic(fmt.Sprintf("agent %s: stop called while disabled", c.name))
	}
	h.cancel()
	close(h.inputTx)
	err := <-h.done
	return err
}

// Output returns the channel of outputs produced by the running agent, for
// the broker to poll. It returns nil, false if the cell is disabled.
func (c *Cell[I, O]) Output() (<-chan O, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.h == nil {
		return nil, false
	}
	return c.h.outputRx, true
}

// Send awaits capacity in the agent's inbox; used for messages that must
// never be silently dropped and where the caller can afford to block (e.g.
// awaited MCU acknowledgements, camera Start/Stop commands).
func (c *Cell[I, O]) Send(ctx context.Context, value I) error {
	c.mu.Lock()
	h := c.h
	c.mu.Unlock()
	if h == nil {
		return ErrNotEnabled
	}
	select {
	case h.inputTx <- value:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SendNow attempts a non-blocking send and reports ErrFull without
// dropping any bookkeeping state if the inbox has no spare capacity. Used
// for control signals that must not be silently dropped.
func (c *Cell[I, O]) SendNow(value I) error {
	c.mu.Lock()
	h := c.h
	c.mu.Unlock()
	if h == nil {
		return ErrNotEnabled
	}
	select {
	case h.inputTx <- value:
		return nil
	default:
		return ErrFull
	}
}

// SendUnjam tries a non-blocking send; if the inbox is full, it drains one
// pending output (to make room for a consumer that is also a producer we
// read from) and retries once. Used to avoid a producer-consumer deadlock
// when sending into an agent whose output we also consume on the same
// broker pass.
func (c *Cell[I, O]) SendUnjam(ctx context.Context, value I) error {
	c.mu.Lock()
	h := c.h
	c.mu.Unlock()
	if h == nil {
		return ErrNotEnabled
	}
	select {
	case h.inputTx <- value:
		return nil
	default:
	}
	select {
	case <-h.outputRx:
	default:
	}
	select {
	case h.inputTx <- value:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySend implements the bounded-capacity backpressure policy of §4.1: a
// non-blocking send whose failure is silently absorbed (no error, no
// bookkeeping). Returns true if the value was accepted; the caller is
// expected to only record pending-frame-queue bookkeeping when it is.
func (c *Cell[I, O]) TrySend(value I) bool {
	c.mu.Lock()
	h := c.h
	c.mu.Unlock()
	if h == nil {
		return false
	}
	select {
	case h.inputTx <- value:
		return true
	default:
		return false
	}
}
