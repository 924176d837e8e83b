package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerPassesThroughSuccess(t *testing.T) {
	b := NewBreaker(BreakerConfig{Name: "test"})

	out, err := b.Execute(context.Background(), func() (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	b := NewBreaker(BreakerConfig{Name: "test", MaxFailures: 2, Cooldown: time.Minute})
	boom := errors.New("provider down")

	for i := 0; i < 2; i++ {
		_, err := b.Execute(context.Background(), func() (any, error) {
			return nil, boom
		})
		assert.ErrorIs(t, err, boom)
	}

	called := false
	_, err := b.Execute(context.Background(), func() (any, error) {
		called = true
		return "ok", nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called, "open breaker must not invoke the call")
}

func TestBreakerRecoversAfterCooldown(t *testing.T) {
	b := NewBreaker(BreakerConfig{Name: "test", MaxFailures: 1, Cooldown: 20 * time.Millisecond})

	_, err := b.Execute(context.Background(), func() (any, error) {
		return nil, errors.New("boom")
	})
	require.Error(t, err)
	_, err = b.Execute(context.Background(), func() (any, error) { return "ok", nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)

	time.Sleep(30 * time.Millisecond)

	out, err := b.Execute(context.Background(), func() (any, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

func TestBreakerHonorsContext(t *testing.T) {
	b := NewBreaker(BreakerConfig{Name: "test"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.Execute(ctx, func() (any, error) { return "ok", nil })
	assert.ErrorIs(t, err, context.Canceled)
}
