package greekscache

import (
	"context"
	"time"
)

// taskHandle is a cancellable periodic task. Each subscription owns exactly
// one handle, so timer leakage is prevented structurally: replacing or
// removing a subscription stops its task.
type taskHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// schedule runs fn every interval until the handle is stopped.
func schedule(interval time.Duration, fn func()) *taskHandle {
	ctx, cancel := context.WithCancel(context.Background())
	t := &taskHandle{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(t.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
	return t
}

// Stop cancels the task and waits for its goroutine to exit.
func (t *taskHandle) Stop() {
	t.cancel()
	<-t.done
}
