package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errBoom = errors.New("boom")

func newTestBreaker(clock *time.Time, transitions *[]string) *CircuitBreaker {
	cb := New(Config{
		FailureThreshold:    3,
		SuccessThreshold:    2,
		Timeout:             10 * time.Second,
		HalfOpenMaxRequests: 1,
		OnStateChange: func(from, to State) {
			*transitions = append(*transitions, from.String()+"->"+to.String())
		},
	})
	cb.now = func() time.Time { return *clock }
	return cb
}

func fail() error { return errBoom }
func ok() error   { return nil }

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	clock := time.Unix(0, 0)
	var transitions []string
	cb := newTestBreaker(&clock, &transitions)

	assert.ErrorIs(t, cb.Execute(fail), errBoom)
	assert.ErrorIs(t, cb.Execute(fail), errBoom)
	assert.NoError(t, cb.Execute(ok), "success resets the failure streak")
	assert.Equal(t, StateClosed, cb.State())

	for i := 0; i < 3; i++ {
		_ = cb.Execute(fail)
	}
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
	assert.Equal(t, []string{"closed->open"}, transitions)
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	clock := time.Unix(0, 0)
	var transitions []string
	cb := newTestBreaker(&clock, &transitions)
	for i := 0; i < 3; i++ {
		_ = cb.Execute(fail)
	}

	clock = clock.Add(11 * time.Second)
	assert.NoError(t, cb.Execute(ok))
	assert.Equal(t, StateHalfOpen, cb.State())
	assert.NoError(t, cb.Execute(ok))
	assert.Equal(t, StateClosed, cb.State())

	assert.Equal(t, []string{"closed->open", "open->half_open", "half_open->closed"}, transitions)
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	clock := time.Unix(0, 0)
	var transitions []string
	cb := newTestBreaker(&clock, &transitions)
	for i := 0; i < 3; i++ {
		_ = cb.Execute(fail)
	}

	clock = clock.Add(11 * time.Second)
	assert.ErrorIs(t, cb.Execute(fail), errBoom)
	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Execute(ok), ErrOpen, "timeout restarts on reopen")
}

func TestBreakerReset(t *testing.T) {
	clock := time.Unix(0, 0)
	var transitions []string
	cb := newTestBreaker(&clock, &transitions)
	for i := 0; i < 3; i++ {
		_ = cb.Execute(fail)
	}
	cb.Reset()
	assert.Equal(t, StateClosed, cb.State())
	assert.NoError(t, cb.Execute(ok))
}
