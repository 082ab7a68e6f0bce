package clock

import (
	"context"
	"errors"
	"testing"
)

func TestManual(t *testing.T) {
	ctx := context.Background()
	c := NewManual(10)

	if now, _ := c.Now(ctx); now != 10 {
		t.Fatalf("expected 10, got %d", now)
	}
	if got := c.Advance(5); got != 15 {
		t.Errorf("Advance: expected 15, got %d", got)
	}
	if err := c.Set(15); err != nil {
		t.Errorf("Set to same height: %v", err)
	}
	if err := c.Set(14); !errors.Is(err, ErrRewind) {
		t.Errorf("expected ErrRewind, got %v", err)
	}
	if now, _ := c.Now(ctx); now != 15 {
		t.Errorf("rewind must not change the clock, got %d", now)
	}
}

func TestFunc(t *testing.T) {
	var c Clock = Func(func(context.Context) (uint64, error) { return 42, nil })
	now, err := c.Now(context.Background())
	if err != nil || now != 42 {
		t.Errorf("got %d, %v", now, err)
	}
}
