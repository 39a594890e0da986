// Package background runs supervised fire-and-forget tasks. Callers hand off
// work that must not block a request (remote cart sync, lead mirroring) and
// the server drains outstanding tasks on shutdown.
package background

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/sirupsen/logrus"
)

type Background struct {
	log logrus.FieldLogger
	wg  sync.WaitGroup
}

func New(log logrus.FieldLogger) *Background {
	return &Background{log: log}
}

// Go runs fn on its own goroutine. Panics are recovered and logged so a
// misbehaving task cannot take the process down.
func (b *Background) Go(fn func()) {
	b.wg.Add(1)

	go func() {
		defer b.wg.Done()

		defer func() {
			if rec := recover(); rec != nil {
				trace := debug.Stack()
				b.log.WithField("message", fmt.Sprintf("PANIC [%v] TRACE[%s]", rec, trace)).
					Error("background task panicked")
			}
		}()

		fn()
	}()
}

// Shutdown waits for all outstanding tasks or the context deadline,
// whichever comes first.
func (b *Background) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for background tasks: %w", ctx.Err())
	}
}
