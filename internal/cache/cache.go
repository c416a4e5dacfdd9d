// Package cache stores built chart payloads between requests.
package cache

import (
	"context"
	"fmt"

	"marketchart/internal/market"
)

// Payloads caches chart payloads. Get reports a miss with ok false and a nil
// error.
type Payloads interface {
	Get(ctx context.Context, symbol string, kind market.Kind) (payload []byte, ok bool, err error)
	Set(ctx context.Context, symbol string, kind market.Kind, payload []byte) error
	Close() error
}

// Key is the cache key of a chart.
func Key(symbol string, kind market.Kind) string {
	return fmt.Sprintf("chart:%s:%s", kind, symbol)
}

// Noop never hits.
type Noop struct{}

func (Noop) Get(context.Context, string, market.Kind) ([]byte, bool, error) { return nil, false, nil }
func (Noop) Set(context.Context, string, market.Kind, []byte) error         { return nil }
func (Noop) Close() error                                                   { return nil }
