package circuitbreaker

import (
	"errors"
	"testing"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecute_NilBreaker(t *testing.T) {
	called := false
	err := Execute(nil, func() error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestExecute_PassesThroughError(t *testing.T) {
	cb := New(DefaultConfig("test"))
	wantErr := errors.New("kv down")

	err := Execute(cb, func() error { return wantErr })
	assert.ErrorIs(t, err, wantErr)
}

func TestExecute_TripsAfterFailures(t *testing.T) {
	cfg := DefaultConfig("test-trip")
	cfg.MinRequests = 3
	cfg.FailureThreshold = 0.5
	cb := New(cfg)

	kvErr := errors.New("kv down")
	for i := 0; i < 5; i++ {
		_ = Execute(cb, func() error { return kvErr })
	}

	assert.Equal(t, gobreaker.StateOpen, cb.State())

	// Open breaker fails fast without invoking fn
	called := false
	err := Execute(cb, func() error {
		called = true
		return nil
	})
	assert.Error(t, err)
	assert.False(t, called)
}

func TestExecute_StaysClosedUnderMinRequests(t *testing.T) {
	cfg := DefaultConfig("test-min")
	cfg.MinRequests = 100
	cb := New(cfg)

	for i := 0; i < 10; i++ {
		_ = Execute(cb, func() error { return errors.New("fail") })
	}
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}
