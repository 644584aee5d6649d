package login

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUniformPacerStaysInBounds(t *testing.T) {
	p := NewSeededPacer(time.Second, 9*time.Second, 42)
	var lo, hi time.Duration = time.Hour, 0
	for i := 0; i < 5000; i++ {
		d := p.Next()
		if d < lo {
			lo = d
		}
		if d > hi {
			hi = d
		}
		assert.Zero(t, d%time.Millisecond, "whole milliseconds")
	}
	assert.GreaterOrEqual(t, lo, 1000*time.Millisecond)
	assert.LessOrEqual(t, hi, 8999*time.Millisecond)
	// With 5000 samples the range is well covered.
	assert.Less(t, lo, 1500*time.Millisecond)
	assert.Greater(t, hi, 8500*time.Millisecond)
}

func TestUniformPacerSeededIsReproducible(t *testing.T) {
	a := NewSeededPacer(time.Second, 9*time.Second, 7)
	b := NewSeededPacer(time.Second, 9*time.Second, 7)
	for i := 0; i < 10; i++ {
		assert.Equal(t, a.Next(), b.Next())
	}
}

func TestUniformPacerDegenerateRange(t *testing.T) {
	assert.Equal(t, 2*time.Second, NewUniformPacer(2*time.Second, 2*time.Second).Next())
	assert.Equal(t, 2*time.Second, NewUniformPacer(2*time.Second, time.Second).Next())
}

func TestUnseededPacerInBounds(t *testing.T) {
	p := NewUniformPacer(10*time.Millisecond, 20*time.Millisecond)
	for i := 0; i < 100; i++ {
		d := p.Next()
		assert.GreaterOrEqual(t, d, 10*time.Millisecond)
		assert.Less(t, d, 20*time.Millisecond)
	}
}

func TestSleepContext(t *testing.T) {
	start := time.Now()
	assert.NoError(t, sleepContext(context.Background(), 20*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}
