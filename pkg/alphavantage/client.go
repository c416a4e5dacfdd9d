// Package alphavantage is a client of the Alpha Vantage market data API.
package alphavantage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"marketchart/internal/market"
	"marketchart/pkg/httpcache"

	"go.uber.org/zap"
)

var (
	// ErrUnsupportedSerie is returned for (kind, granularity) pairs the API
	// has no function for.
	ErrUnsupportedSerie = errors.New("unsupported serie")
	ErrAPI              = errors.New("alphavantage error")
	ErrRateLimited      = errors.New("alphavantage rate limit")
)

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient returns a client for baseURL (https://www.alphavantage.co/query).
// A nil httpClient selects a client with the given timeout.
func NewClient(baseURL, apiKey string, httpClient *http.Client, timeout time.Duration, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: httpClient,
		logger:     logger,
	}
}

// GetStockValues fetches the serie of ticker, oldest first. Only
// simple/coarse (TIME_SERIES_DAILY_ADJUSTED) and ohlc/fine
// (TIME_SERIES_INTRADAY, 15 minutes) exist.
func (c *Client) GetStockValues(ctx context.Context, ticker string, kind market.Kind, granularity market.Granularity) ([]market.StockValue, error) {
	var (
		series Series
		out    []market.StockValue
		err    error
	)

	switch {
	case kind == market.KindSimple && granularity == market.GranularityCoarse:
		params := url.Values{"function": {"TIME_SERIES_DAILY_ADJUSTED"}, "symbol": {ticker}}
		if err := c.getJSON(ctx, params, &series); err != nil {
			return nil, err
		}
		out, err = dailyCloses(ticker, series)

	case kind == market.KindOHLC && granularity == market.GranularityFine:
		params := url.Values{"function": {"TIME_SERIES_INTRADAY"}, "symbol": {ticker}, "interval": {"15min"}}
		if err := c.getJSON(ctx, params, &series); err != nil {
			return nil, err
		}
		out, err = intradayCandles(ticker, series)

	default:
		return nil, fmt.Errorf("%w: (%s, %s)", ErrUnsupportedSerie, kind, granularity)
	}
	if err != nil {
		return nil, err
	}

	c.logger.Info("fetched stock values",
		zap.String("ticker", ticker),
		zap.String("kind", string(kind)),
		zap.String("granularity", string(granularity)),
		zap.Int("count", len(out)),
	)
	return out, nil
}

// GetCompanyInfo fetches one OVERVIEW per ticker. Tickers the API does not
// know are left out.
func (c *Client) GetCompanyInfo(ctx context.Context, tickers []string) ([]market.CompanyInfo, error) {
	out := make([]market.CompanyInfo, 0, len(tickers))
	for _, ticker := range tickers {
		var o Overview
		if err := c.getJSON(ctx, url.Values{"function": {"OVERVIEW"}, "symbol": {ticker}}, &o); err != nil {
			return nil, err
		}
		if o.Symbol == "" {
			c.logger.Warn("no company overview", zap.String("ticker", ticker))
			continue
		}
		out = append(out, o.CompanyInfo())
	}
	c.logger.Info("fetched company info", zap.Int("count", len(out)))
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, params url.Values, dst any) error {
	function := params.Get("function")
	params.Set("apikey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request %s failed: %w", function, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", function, err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("alphavantage %s: status %d: %s", function, resp.StatusCode, bytes.TrimSpace(body))
	}

	var msg message
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("decode %s response: %w", function, err)
	}
	if err := msg.err(); err != nil {
		return fmt.Errorf("%s %s: %w", function, params.Get("symbol"), err)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("decode %s response: %w", function, err)
	}

	c.logger.Debug("alphavantage response",
		zap.String("function", function),
		zap.Bool("cached", resp.Header.Get(httpcache.HeaderCached) == "1"),
	)
	return nil
}
