package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBackend = errors.New("backend down")

func TestCircuitBreaker_Lifecycle(t *testing.T) {
	var transitions []State
	cb := NewCircuitBreaker("redis", CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     time.Minute,
		OnStateChange:    func(_ string, to State) { transitions = append(transitions, to) },
	})
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cb.now = func() time.Time { return clock }

	// Given: two consecutive failures
	assert.ErrorIs(t, cb.Execute(func() error { return errBackend }), errBackend)
	assert.ErrorIs(t, cb.Execute(func() error { return errBackend }), errBackend)

	// Then: the circuit is open and short-circuits calls
	assert.Equal(t, StateOpen, cb.State())
	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)

	// When: the reset timeout elapses, one probe is allowed and closes it
	clock = clock.Add(time.Minute)
	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())

	assert.Equal(t, []State{StateOpen, StateHalfOpen, StateClosed}, transitions)
}

func TestCircuitBreaker_FailedProbeReopens(t *testing.T) {
	cb := NewCircuitBreaker("redis", CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Second})
	clock := time.Now()
	cb.now = func() time.Time { return clock }

	_ = cb.Execute(func() error { return errBackend })
	clock = clock.Add(time.Second)
	_ = cb.Execute(func() error { return errBackend })

	assert.Equal(t, StateOpen, cb.State())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.State())
}

func TestCall(t *testing.T) {
	v, err := Call(context.Background(), time.Second, "fast", func(context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	_, err = Call(context.Background(), 10*time.Millisecond, "slow", func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	v, err = Call(context.Background(), 0, "unbounded", func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}
