package signalmarker

import (
	"context"
	"sync"
)

// Marker is a fire-once completion signal. Unlike a bare notification
// it is persistent: a waiter that subscribes after the signal fired
// returns immediately, so there is no signal/subscribe race.
type Marker struct {
	once sync.Once
	ch   chan struct{}
	err  error
}

func New() *Marker {
	return &Marker{ch: make(chan struct{})}
}

// Signal marks completion with an optional error. Calls after the
// first are no-ops.
func (m *Marker) Signal(err error) {
	m.once.Do(func() {
		m.err = err
		close(m.ch)
	})
}

// Wait blocks until the marker is signaled or ctx is done, returning
// the signaled error or the context error.
func (m *Marker) Wait(ctx context.Context) error {
	select {
	case <-m.ch:
		return m.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Signaled reports whether Signal has been called.
func (m *Marker) Signaled() bool {
	select {
	case <-m.ch:
		return true
	default:
		return false
	}
}
