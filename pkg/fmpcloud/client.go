// Package fmpcloud is a client of the FMP Cloud market data API.
package fmpcloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"marketchart/internal/market"
	"marketchart/pkg/httpcache"

	"go.uber.org/zap"
)

// ErrUnsupportedSerie is returned for (kind, granularity) pairs the API has
// no endpoint for.
var ErrUnsupportedSerie = errors.New("unsupported serie")

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient returns a client for baseURL (e.g. https://fmpcloud.io/api/v3).
// A nil httpClient selects a client with the given timeout.
func NewClient(baseURL, apiKey string, httpClient *http.Client, timeout time.Duration, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
		logger:     logger,
	}
}

func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// GetStockValues fetches the serie of ticker. Only simple/coarse (daily
// closes) and ohlc/fine (15 minutes candles) exist.
func (c *Client) GetStockValues(ctx context.Context, ticker string, kind market.Kind, granularity market.Granularity) ([]market.StockValue, error) {
	var out []market.StockValue

	switch {
	case kind == market.KindSimple && granularity == market.GranularityCoarse:
		var data SimpleData
		err := c.getJSON(ctx, "/historical-price-full/"+url.PathEscape(ticker), url.Values{"serietype": {"line"}}, &data)
		if err != nil {
			return nil, err
		}
		out = make([]market.StockValue, 0, len(data.Historical))
		for _, v := range data.Historical {
			out = append(out, v.StockValue(ticker))
		}

	case kind == market.KindOHLC && granularity == market.GranularityFine:
		var data []OHLCValue
		if err := c.getJSON(ctx, "/historical-chart/15min/"+url.PathEscape(ticker), nil, &data); err != nil {
			return nil, err
		}
		out = make([]market.StockValue, 0, len(data))
		for _, v := range data {
			out = append(out, v.StockValue(ticker))
		}

	default:
		return nil, fmt.Errorf("%w: (%s, %s)", ErrUnsupportedSerie, kind, granularity)
	}

	c.logger.Info("fetched stock values",
		zap.String("ticker", ticker),
		zap.String("kind", string(kind)),
		zap.String("granularity", string(granularity)),
		zap.Int("count", len(out)),
	)
	return out, nil
}

// GetCompanyInfo fetches the profiles of tickers in one request. Tickers are
// sorted so the same set always yields the same URL.
func (c *Client) GetCompanyInfo(ctx context.Context, tickers []string) ([]market.CompanyInfo, error) {
	if len(tickers) == 0 {
		return nil, nil
	}

	sorted := append([]string(nil), tickers...)
	sort.Strings(sorted)
	for i, t := range sorted {
		sorted[i] = url.PathEscape(t)
	}

	var profiles []Profile
	if err := c.getJSON(ctx, "/profile/"+strings.Join(sorted, ","), nil, &profiles); err != nil {
		return nil, err
	}

	out := make([]market.CompanyInfo, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, p.CompanyInfo())
	}
	c.logger.Info("fetched company info", zap.Int("count", len(out)))
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, dst any) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("apikey", c.apiKey)
	endpoint := c.baseURL + path + "?" + params.Encode()

	// Construct the GET request with context for timeout/cancel support
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("fmpcloud %s: status %d: %s", path, resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}

	c.logger.Debug("fmpcloud response",
		zap.String("path", path),
		zap.Bool("cached", resp.Header.Get(httpcache.HeaderCached) == "1"),
	)
	return nil
}
