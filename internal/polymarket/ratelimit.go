package polymarket

import (
	"context"
	"sync"
	"time"

	"smartmoney-tracker/config"
)

// EndpointClass buckets upstream endpoints by their rate-limit budget.
type EndpointClass string

const (
	ClassPositions       EndpointClass = "positions"
	ClassClosedPositions EndpointClass = "closed_positions"
	ClassTrades          EndpointClass = "trades"
	ClassGeneral         EndpointClass = "general"
)

const maxLimiterSleep = 250 * time.Millisecond

// classLimiter is a sliding-window token bucket for one endpoint class.
// The admit mutex is held for the whole wait so blocked callers are
// served in arrival order.
type classLimiter struct {
	admit sync.Mutex

	mu     sync.Mutex
	limit  int
	window time.Duration
	stamps []time.Time
}

func newClassLimiter(limit int, window time.Duration) *classLimiter {
	return &classLimiter{limit: limit, window: window}
}

func (l *classLimiter) wait(ctx context.Context) error {
	l.admit.Lock()
	defer l.admit.Unlock()

	for {
		l.mu.Lock()
		now := time.Now()
		i := 0
		for i < len(l.stamps) && now.Sub(l.stamps[i]) >= l.window {
			i++
		}
		if i > 0 {
			l.stamps = append(l.stamps[:0], l.stamps[i:]...)
		}
		if len(l.stamps) < l.limit {
			l.stamps = append(l.stamps, now)
			l.mu.Unlock()
			return nil
		}
		sleep := l.window - now.Sub(l.stamps[0])
		l.mu.Unlock()

		if sleep > maxLimiterSleep {
			sleep = maxLimiterSleep
		}
		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Limiter holds one token bucket per endpoint class.
type Limiter struct {
	classes map[EndpointClass]*classLimiter
}

// NewLimiter builds the per-class buckets from config. The general
// class gets the smallest of the three configured budgets.
func NewLimiter(cfg config.PolymarketConfig) *Limiter {
	window := time.Duration(cfg.RateLimitWindowSeconds) * time.Second

	general := cfg.PositionsRateLimit
	if cfg.ClosedPositionsRateLimit < general {
		general = cfg.ClosedPositionsRateLimit
	}
	if cfg.TradesRateLimit < general {
		general = cfg.TradesRateLimit
	}

	return &Limiter{
		classes: map[EndpointClass]*classLimiter{
			ClassPositions:       newClassLimiter(cfg.PositionsRateLimit, window),
			ClassClosedPositions: newClassLimiter(cfg.ClosedPositionsRateLimit, window),
			ClassTrades:          newClassLimiter(cfg.TradesRateLimit, window),
			ClassGeneral:         newClassLimiter(general, window),
		},
	}
}

// Wait blocks until the class admits one more request or ctx is done.
func (l *Limiter) Wait(ctx context.Context, class EndpointClass) error {
	cl, ok := l.classes[class]
	if !ok {
		cl = l.classes[ClassGeneral]
	}
	return cl.wait(ctx)
}
