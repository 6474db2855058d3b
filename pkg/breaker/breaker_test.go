package breaker

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	cb := New(Settings{Name: "test", Failures: 2, OpenFor: time.Hour}, nil)
	boom := errors.New("boom")
	fail := func() (interface{}, error) { return nil, boom }

	_, err := cb.Execute(fail)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, gobreaker.StateClosed, cb.State())

	_, err = cb.Execute(fail)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, gobreaker.StateOpen, cb.State())

	_, err = cb.Execute(func() (interface{}, error) { return "ok", nil })
	assert.True(t, IsOpen(err))
	assert.False(t, IsOpen(boom))
}

func TestBreakerDefaults(t *testing.T) {
	cb := New(Settings{Name: "defaults"}, nil)
	_, err := cb.Execute(func() (interface{}, error) { return nil, errors.New("x") })
	require.Error(t, err)
	assert.Equal(t, gobreaker.StateOpen, cb.State())
}
