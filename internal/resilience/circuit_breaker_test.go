package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBreaker() (*CircuitBreaker, *time.Time) {
	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(BreakerConfig{
		FailureThreshold: 3,
		RecoveryTimeout:  60 * time.Second,
		SuccessThreshold: 2,
		HalfOpenMaxCalls: 2,
	})
	cb.now = func() time.Time { return now }
	return cb, &now
}

func trip(cb *CircuitBreaker, failures int) {
	for i := 0; i < failures; i++ {
		cb.RecordFailure()
	}
}

func TestCircuitBreaker_OpensAtFailureThreshold(t *testing.T) {
	cb, _ := testBreaker()

	cb.RecordFailure()
	cb.RecordFailure()
	assert.Equal(t, StateClosed, cb.Status().State)
	assert.True(t, cb.CanExecute())

	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.Status().State)
	assert.False(t, cb.CanExecute())
}

func TestCircuitBreaker_SuccessResetsFailureStreak(t *testing.T) {
	cb, _ := testBreaker()

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	cb.RecordFailure()

	// Streak broken; still two short of the threshold.
	assert.Equal(t, StateClosed, cb.Status().State)
}

func TestCircuitBreaker_LazyHalfOpenTransition(t *testing.T) {
	cb, now := testBreaker()
	trip(cb, 3)

	*now = now.Add(59 * time.Second)
	assert.False(t, cb.CanExecute())
	assert.Equal(t, StateOpen, cb.Status().State)

	*now = now.Add(2 * time.Second)
	assert.True(t, cb.CanExecute())
	assert.Equal(t, StateHalfOpen, cb.Status().State)
}

func TestCircuitBreaker_HalfOpenClosesAfterSuccesses(t *testing.T) {
	cb, now := testBreaker()
	trip(cb, 3)
	*now = now.Add(61 * time.Second)

	require.True(t, cb.CanExecute())
	cb.RecordSuccess()
	assert.Equal(t, StateHalfOpen, cb.Status().State)

	require.True(t, cb.CanExecute())
	cb.RecordSuccess()
	assert.Equal(t, StateClosed, cb.Status().State)
	assert.True(t, cb.CanExecute())
}

func TestCircuitBreaker_HalfOpenReopensOnFailure(t *testing.T) {
	cb, now := testBreaker()
	trip(cb, 3)
	*now = now.Add(61 * time.Second)

	require.True(t, cb.CanExecute())
	cb.RecordSuccess()
	cb.RecordFailure()

	assert.Equal(t, StateOpen, cb.Status().State)
	assert.False(t, cb.CanExecute())

	// The recovery clock restarted at the trial failure.
	*now = now.Add(59 * time.Second)
	assert.False(t, cb.CanExecute())
	*now = now.Add(2 * time.Second)
	assert.True(t, cb.CanExecute())
}

func TestCircuitBreaker_HalfOpenBoundsConcurrentTrials(t *testing.T) {
	cb, now := testBreaker()
	trip(cb, 3)
	*now = now.Add(61 * time.Second)

	assert.True(t, cb.CanExecute())  // transition admits the first trial
	assert.True(t, cb.CanExecute())  // second slot
	assert.False(t, cb.CanExecute()) // max trials in flight

	// A finished trial frees its slot.
	cb.RecordSuccess()
	assert.True(t, cb.CanExecute())
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb, _ := testBreaker()
	trip(cb, 3)
	require.Equal(t, StateOpen, cb.Status().State)

	cb.Reset()

	status := cb.Status()
	assert.Equal(t, StateClosed, status.State)
	assert.Zero(t, status.Failures)
	assert.True(t, cb.CanExecute())
}
