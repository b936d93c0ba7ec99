package services

import (
	"context"
	"time"
)

// Latency holds optional artificial delays per operation kind. The zero
// value disables them.
type Latency struct {
	List     time.Duration
	Get      time.Duration
	Create   time.Duration
	Update   time.Duration
	Delete   time.Duration
	Decide   time.Duration
	AddSpend time.Duration
}

// DefaultLatency mirrors the delays of the mock data layer the service replaces.
func DefaultLatency() Latency {
	return Latency{
		List:     300 * time.Millisecond,
		Get:      200 * time.Millisecond,
		Create:   400 * time.Millisecond,
		Update:   400 * time.Millisecond,
		Delete:   300 * time.Millisecond,
		Decide:   300 * time.Millisecond,
		AddSpend: 300 * time.Millisecond,
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
