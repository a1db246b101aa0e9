package engine

import (
	"context"
	"sync"
	"time"

	"github.com/tailored-agentic-units/propstore/database"
)

// autosave tracks the background loop started by Engine.Start.
type autosave struct {
	period time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan error
}

func (a *autosave) start(ctx context.Context, m *database.Manager) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.period == 0 || a.cancel != nil {
		return false
	}

	ctx, a.cancel = context.WithCancel(ctx)
	a.done = make(chan error, 1)
	go func(done chan<- error) {
		done <- m.Run(ctx, a.period)
	}(a.done)
	return true
}

// stop cancels the loop and waits for its final flush.
func (a *autosave) stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancel == nil {
		return nil
	}
	a.cancel()
	err := <-a.done
	a.cancel, a.done = nil, nil
	return err
}
