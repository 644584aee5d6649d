package login

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// Pacer chooses the delay inserted between two account attempts.
type Pacer interface {
	Next() time.Duration
}

// UniformPacer samples whole milliseconds uniformly from [Min, Max).
type UniformPacer struct {
	Min, Max time.Duration

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewUniformPacer returns a pacer seeded from the runtime's random source.
func NewUniformPacer(lo, hi time.Duration) *UniformPacer {
	return &UniformPacer{Min: lo, Max: hi}
}

// NewSeededPacer returns a pacer with a reproducible sequence.
func NewSeededPacer(lo, hi time.Duration, seed uint64) *UniformPacer {
	return &UniformPacer{Min: lo, Max: hi, rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Next returns the next delay.
func (p *UniformPacer) Next() time.Duration {
	span := int64((p.Max - p.Min) / time.Millisecond)
	if span <= 0 {
		return p.Min
	}
	var n int64
	if p.rnd != nil {
		p.mu.Lock()
		n = p.rnd.Int64N(span)
		p.mu.Unlock()
	} else {
		n = rand.Int64N(span)
	}
	return p.Min + time.Duration(n)*time.Millisecond
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
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
