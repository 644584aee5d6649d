package login

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSchedule(t *testing.T) {
	for _, expr := range []string{"0 */6 * * *", "@daily", "@every 90m"} {
		_, err := ParseSchedule(expr)
		assert.NoError(t, err, expr)
	}

	_, err := ParseSchedule("every day")
	assert.ErrorContains(t, err, `parse schedule "every day"`)
	_, err = ParseSchedule("0 0 */6 * * *")
	assert.Error(t, err, "seconds field is not accepted")
}

func TestSchedulerLoop(t *testing.T) {
	s, err := NewScheduler("0 */6 * * *")
	require.NoError(t, err)

	clock := time.Date(2024, 6, 1, 4, 30, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var waits []time.Duration
	s.after = func(d time.Duration) <-chan time.Time {
		if ctx.Err() != nil {
			return nil
		}
		waits = append(waits, d)
		clock = clock.Add(d)
		ch := make(chan time.Time, 1)
		ch <- clock
		return ch
	}

	var runs []time.Time
	err = s.Loop(ctx, func(ctx context.Context) error {
		runs = append(runs, clock)
		if len(runs) == 1 {
			return errors.New("panel unreachable")
		}
		cancel()
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []time.Duration{90 * time.Minute, 6 * time.Hour}, waits)
	assert.Equal(t, []time.Time{
		time.Date(2024, 6, 1, 6, 0, 0, 0, time.UTC),
		time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}, runs)
}

func TestRunScheduledInvalid(t *testing.T) {
	err := RunScheduled(context.Background(), "nonsense", func(context.Context) error { return nil })
	assert.Error(t, err)
}

func TestRunScheduledStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := RunScheduled(ctx, "@every 1h", func(context.Context) error {
		t.Fatal("job must not run")
		return nil
	})
	assert.NoError(t, err)
}
