package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned while the breaker rejects provider calls
// after repeated failures.
var ErrCircuitOpen = errors.New("provider circuit breaker is open")

// Breaker wraps gobreaker around provider calls so a failing LLM or
// embedding endpoint cannot stall every request in the engine. It opens
// after consecutive failures, rejects calls for a cooldown, then lets a
// few probes through before closing again. It never retries.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// BreakerConfig tunes the failure threshold and cooldown.
type BreakerConfig struct {
	Name        string
	MaxFailures uint32
	Cooldown    time.Duration
	HalfOpenMax uint32
}

// NewBreaker creates a breaker; zero fields take the defaults of
// 3 consecutive failures, 30s cooldown and 2 half-open probes.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.Name == "" {
		cfg.Name = "provider"
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 3
	}
	if cfg.Cooldown == 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.HalfOpenMax == 0 {
		cfg.HalfOpenMax = 2
	}
	return &Breaker{
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        cfg.Name,
			MaxRequests: cfg.HalfOpenMax,
			Timeout:     cfg.Cooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= cfg.MaxFailures
			},
		}),
	}
}

// Execute runs fn through the breaker, honoring ctx cancellation before
// the call is attempted.
func (b *Breaker) Execute(ctx context.Context, fn func() (any, error)) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out, err := b.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
		}
		return nil, err
	}
	return out, nil
}
