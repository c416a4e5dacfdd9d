package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"marketchart/internal/apperrors"
	"marketchart/internal/cache"
	"marketchart/internal/market"
	"marketchart/internal/vega"

	"go.uber.org/zap"
)

// Charts builds chart payloads from storage, through the payload cache.
type Charts struct {
	storage market.Storage
	cache   cache.Payloads
	logger  *zap.Logger
}

func NewCharts(storage market.Storage, payloads cache.Payloads, logger *zap.Logger) *Charts {
	if payloads == nil {
		payloads = cache.Noop{}
	}
	return &Charts{storage: storage, cache: payloads, logger: logger}
}

// Payload returns the Vega-Lite spec of symbol for kind as JSON. A symbol
// without values gets a chart with an empty dataset.
func (c *Charts) Payload(ctx context.Context, symbol string, kind market.Kind) ([]byte, error) {
	if cached, ok, err := c.cache.Get(ctx, symbol, kind); err != nil {
		c.logger.Warn("chart cache read failed", zap.String("symbol", symbol), zap.Error(err))
	} else if ok {
		return cached, nil
	}

	values, err := c.storage.GetValues(ctx, symbol, kind, vega.Limit(kind))
	if err != nil {
		return nil, fmt.Errorf("get %s values of %s: %w", kind, symbol, err)
	}

	spec, err := vega.Build(kind, values)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(spec)
	if err != nil {
		return nil, fmt.Errorf("marshal chart: %w", err)
	}

	if err := c.cache.Set(ctx, symbol, kind, payload); err != nil {
		c.logger.Warn("chart cache write failed", zap.String("symbol", symbol), zap.Error(err))
	}
	return payload, nil
}

// Fetch serves a chart data URL in process, with the same defaults as the
// /json route. It lets live sessions share the HTTP handler's code path.
func (c *Charts) Fetch(ctx context.Context, dataURL string) ([]byte, error) {
	u, err := url.Parse(dataURL)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, err)
	}

	symbol, ok := strings.CutPrefix(u.Path, "/json/")
	if !ok || symbol == "" || strings.Contains(symbol, "/") {
		return nil, apperrors.WithMessage(apperrors.ErrNotFound, "No chart at "+dataURL)
	}

	kind := market.KindOHLC
	if raw := u.Query().Get("kind"); raw != "" {
		if kind, err = market.ParseKind(raw); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInvalidKind, err)
		}
	}
	return c.Payload(ctx, symbol, kind)
}

// Tickers returns every known ticker, sorted.
func (c *Charts) Tickers(ctx context.Context) ([]string, error) {
	tickers, err := c.storage.GetAllTickers(ctx)
	if err != nil {
		return nil, fmt.Errorf("get tickers: %w", err)
	}
	slices.Sort(tickers)
	return tickers, nil
}
