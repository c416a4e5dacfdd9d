package cache_test

import (
	"context"
	"os"
	"testing"
	"time"

	"marketchart/config"
	"marketchart/internal/cache"
	"marketchart/internal/market"
)

// go test -v --run ^TestKey$
func TestKey(t *testing.T) {
	if got := cache.Key("AAPL", market.KindOHLC); got != "chart:ohlc:AAPL" {
		t.Errorf("unexpected key %s", got)
	}
}

// go test -v --run ^TestNoop$
func TestNoop(t *testing.T) {
	var c cache.Payloads = cache.Noop{}
	ctx := context.Background()

	if err := c.Set(ctx, "AAPL", market.KindOHLC, []byte(`{}`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, ok, err := c.Get(ctx, "AAPL", market.KindOHLC); ok || err != nil {
		t.Errorf("expected a miss, got ok=%v err=%v", ok, err)
	}
}

// go test -v --run ^TestRedis$
func TestRedis(t *testing.T) {
	addr := os.Getenv("MARKETCHART_REDIS_ADDR")
	if addr == "" {
		t.Skip("MARKETCHART_REDIS_ADDR not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := cache.NewRedis(ctx, config.RedisConfig{Enabled: true, Addr: addr, TTL: time.Minute})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer c.Close()

	symbol := "TEST-" + time.Now().Format("150405.000000")
	defer c.Invalidate(ctx, symbol)

	if _, ok, err := c.Get(ctx, symbol, market.KindSimple); ok || err != nil {
		t.Fatalf("expected a miss, got ok=%v err=%v", ok, err)
	}
	if err := c.Set(ctx, symbol, market.KindSimple, []byte(`{"data":{}}`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok, err := c.Get(ctx, symbol, market.KindSimple)
	if err != nil || !ok || string(got) != `{"data":{}}` {
		t.Fatalf("unexpected hit %q ok=%v err=%v", got, ok, err)
	}

	if err := c.Invalidate(ctx, symbol); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, ok, _ := c.Get(ctx, symbol, market.KindSimple); ok {
		t.Error("expected the entry to be gone")
	}
}
