// Package bus fans Greeks update batches out from the cache to delivery
// sinks (WebSocket gateway, loggers). A slow sink never blocks the pipeline:
// its batches are dropped instead. Subscribers may bind to a single user so
// per-user consumers skip batches they would discard anyway.
package bus

import (
	"context"
	"log"
	"sync"

	"risk-systemv1/internal/model"
)

// output is one subscriber channel, optionally bound to a user.
type output struct {
	ch     chan model.GreeksBatch
	userID string // "" receives every batch
}

// FanOut broadcasts batches from a single input channel to N output
// channels, dropping per-subscriber on backpressure.
type FanOut struct {
	mu      sync.RWMutex
	outputs []output
	bufSize int

	// OnDrop is called when a batch is dropped for a subscriber.
	OnDrop func(subscriberIdx int)
}

// New creates a FanOut with the given buffer size for output channels.
func New(outputBufferSize int) *FanOut {
	return &FanOut{bufSize: outputBufferSize}
}

// Subscribe creates and returns a new output channel receiving every batch.
func (f *FanOut) Subscribe() <-chan model.GreeksBatch {
	return f.SubscribeUser("")
}

// SubscribeUser creates an output channel receiving only batches addressed
// to userID. An empty userID receives every batch.
func (f *FanOut) SubscribeUser(userID string) <-chan model.GreeksBatch {
	ch := make(chan model.GreeksBatch, f.bufSize)
	f.mu.Lock()
	f.outputs = append(f.outputs, output{ch: ch, userID: userID})
	f.mu.Unlock()
	return ch
}

// Run reads from input and fans out to matching subscribers. Blocks until
// ctx is cancelled or input is closed; output channels are closed on exit.
func (f *FanOut) Run(ctx context.Context, input <-chan model.GreeksBatch) {
	defer func() {
		f.mu.RLock()
		for _, out := range f.outputs {
			close(out.ch)
		}
		f.mu.RUnlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-input:
			if !ok {
				return
			}
			f.mu.RLock()
			for i, out := range f.outputs {
				if out.userID != "" && out.userID != batch.UserID {
					continue
				}
				select {
				case out.ch <- batch:
				default:
					if f.OnDrop != nil {
						f.OnDrop(i)
					} else {
						log.Printf("[bus] output channel %d full, dropping batch for user %s", i, batch.UserID)
					}
				}
			}
			f.mu.RUnlock()
		}
	}
}
