package circuitbreaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/speedrun-hq/gmp-verifier/pkg/logger"
)

func newTestBreaker(enabled bool) (*CircuitBreaker, *time.Time) {
	clock := time.Unix(1_700_000_000, 0)
	cb := NewCircuitBreaker(2, Config{
		Enabled:       enabled,
		Threshold:     3,
		FailureWindow: time.Minute,
		ResetTimeout:  5 * time.Minute,
	}, &logger.EmptyLogger{})
	cb.now = func() time.Time { return clock }
	return cb, &clock
}

func TestCircuitBreaker(t *testing.T) {
	t.Run("trips at threshold", func(t *testing.T) {
		cb, _ := newTestBreaker(true)
		assert.False(t, cb.RecordFailure())
		assert.False(t, cb.RecordFailure())
		assert.True(t, cb.RecordFailure())
		assert.True(t, cb.IsOpen())
		assert.True(t, cb.GetState().Open)
	})

	t.Run("failures outside window do not accumulate", func(t *testing.T) {
		cb, clock := newTestBreaker(true)
		cb.RecordFailure()
		cb.RecordFailure()
		*clock = clock.Add(2 * time.Minute)
		assert.False(t, cb.RecordFailure())
		assert.Equal(t, 1, cb.GetState().FailureCount)
	})

	t.Run("resets after timeout", func(t *testing.T) {
		cb, clock := newTestBreaker(true)
		for i := 0; i < 3; i++ {
			cb.RecordFailure()
		}
		*clock = clock.Add(6 * time.Minute)
		assert.False(t, cb.IsOpen())
		assert.Zero(t, cb.GetState().FailureCount)
	})

	t.Run("success clears count", func(t *testing.T) {
		cb, _ := newTestBreaker(true)
		cb.RecordFailure()
		cb.RecordFailure()
		cb.RecordSuccess()
		assert.False(t, cb.RecordFailure())
	})

	t.Run("disabled never opens", func(t *testing.T) {
		cb, _ := newTestBreaker(false)
		for i := 0; i < 10; i++ {
			assert.False(t, cb.RecordFailure())
		}
		assert.False(t, cb.IsOpen())
	})

	t.Run("manual reset", func(t *testing.T) {
		cb, _ := newTestBreaker(true)
		for i := 0; i < 3; i++ {
			cb.RecordFailure()
		}
		cb.Reset()
		assert.False(t, cb.IsOpen())
	})
}
