package polymarket

import (
	"context"
	"testing"
	"time"

	"smartmoney-tracker/config"
)

func testLimiterConfig() config.PolymarketConfig {
	return config.PolymarketConfig{
		PositionsRateLimit:       3,
		ClosedPositionsRateLimit: 2,
		TradesRateLimit:          5,
		RateLimitWindowSeconds:   1,
	}
}

func TestLimiterAdmitsUpToLimit(t *testing.T) {
	l := NewLimiter(testLimiterConfig())
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := l.Wait(ctx, ClassPositions); err != nil {
			t.Fatalf("wait %d: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("first %d admits should not block, took %s", 3, elapsed)
	}
}

func TestLimiterBlocksPastLimit(t *testing.T) {
	l := NewLimiter(testLimiterConfig())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := l.Wait(ctx, ClassClosedPositions); err != nil {
			t.Fatalf("wait %d: %v", i, err)
		}
	}

	start := time.Now()
	if err := l.Wait(ctx, ClassClosedPositions); err != nil {
		t.Fatalf("blocked wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 500*time.Millisecond {
		t.Errorf("third admit should wait for the window, took %s", elapsed)
	}
}

func TestLimiterRespectsContextCancel(t *testing.T) {
	l := NewLimiter(testLimiterConfig())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := l.Wait(ctx, ClassClosedPositions); err != nil {
			t.Fatalf("wait %d: %v", i, err)
		}
	}

	cancelCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if err := l.Wait(cancelCtx, ClassClosedPositions); err == nil {
		t.Error("expected context deadline error while saturated")
	}
}

func TestLimiterUnknownClassUsesGeneral(t *testing.T) {
	l := NewLimiter(testLimiterConfig())
	ctx := context.Background()

	// General budget is the minimum of the three, here 2.
	for i := 0; i < 2; i++ {
		if err := l.Wait(ctx, EndpointClass("mystery")); err != nil {
			t.Fatalf("wait %d: %v", i, err)
		}
	}
	cancelCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if err := l.Wait(cancelCtx, EndpointClass("mystery")); err == nil {
		t.Error("general bucket should be saturated after two admits")
	}
}

func TestLimiterClassesAreIndependent(t *testing.T) {
	l := NewLimiter(testLimiterConfig())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := l.Wait(ctx, ClassClosedPositions); err != nil {
			t.Fatalf("wait %d: %v", i, err)
		}
	}

	// Saturating one class must not block another.
	start := time.Now()
	if err := l.Wait(ctx, ClassTrades); err != nil {
		t.Fatalf("trades wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("trades class should be free, took %s", elapsed)
	}
}
