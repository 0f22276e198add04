package agent

import (
	"context"
	"runtime"
)

// runOnLockedThread pins the calling goroutine to its current OS thread for
// the lifetime of runner.Run, matching the "Thread" execution model's
// promise that blocking driver calls never borrow a thread shared with
// other goroutines.
func runOnLockedThread[I, O any](ctx context.Context, runner Runner[I, O], in <-chan I, out chan<- O) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	return runner.Run(ctx, in, out)
}
