// Package clock provides the logical clock that deadlines are measured
// against. The clock is a monotonically non-decreasing block height.
package clock

import (
	"context"
	"errors"
	"sync"
)

// ErrRewind is returned when a clock is moved backwards.
var ErrRewind = errors.New("clock: cannot move backwards")

// Clock reports the current logical time.
type Clock interface {
	Now(ctx context.Context) (uint64, error)
}

// Func adapts a function to the Clock interface.
type Func func(ctx context.Context) (uint64, error)

// Now implements Clock.
func (f Func) Now(ctx context.Context) (uint64, error) {
	return f(ctx)
}

// Manual is a clock advanced explicitly by its owner. It is safe for
// concurrent use.
type Manual struct {
	mu  sync.RWMutex
	now uint64
}

// NewManual returns a Manual clock starting at height.
func NewManual(height uint64) *Manual {
	return &Manual{now: height}
}

// Now implements Clock.
func (m *Manual) Now(context.Context) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.now, nil
}

// Set moves the clock to height. Moving backwards fails with ErrRewind.
func (m *Manual) Set(height uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if height < m.now {
		return ErrRewind
	}
	m.now = height
	return nil
}

// Advance moves the clock forward by n and returns the new height.
func (m *Manual) Advance(n uint64) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now += n
	return m.now
}
