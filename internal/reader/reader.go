// Package reader imports company information and stock values from a
// market data provider into storage.
package reader

import (
	"context"
	"errors"
	"fmt"

	"marketchart/internal/market"
	"marketchart/internal/schema"

	"go.uber.org/zap"
)

// Provider is a source of market data.
type Provider interface {
	GetStockValues(ctx context.Context, ticker string, kind market.Kind, granularity market.Granularity) ([]market.StockValue, error)
	GetCompanyInfo(ctx context.Context, tickers []string) ([]market.CompanyInfo, error)
}

// UnsupportedFunc reports whether a provider error means the serie does not
// exist. Such imports are skipped with a warning.
type UnsupportedFunc func(error) bool

// Import is one serie imported for every ticker by Run.
type Import struct {
	Kind        market.Kind
	Granularity market.Granularity
}

// DefaultImports is the order used by Run. Coarse ohlc values come after
// fine ones so that fine values are stored in priority.
var DefaultImports = []Import{
	{Kind: market.KindSimple, Granularity: market.GranularityCoarse},
	{Kind: market.KindOHLC, Granularity: market.GranularityFine},
	{Kind: market.KindOHLC, Granularity: market.GranularityCoarse},
}

type Reader struct {
	provider    Provider
	storage     market.Storage
	logger      *zap.Logger
	unsupported UnsupportedFunc
}

// New returns a reader. unsupported may be nil, in which case every provider
// error fails the import.
func New(provider Provider, storage market.Storage, unsupported UnsupportedFunc, logger *zap.Logger) *Reader {
	if unsupported == nil {
		unsupported = func(error) bool { return false }
	}
	return &Reader{provider: provider, storage: storage, logger: logger, unsupported: unsupported}
}

// Run imports company info, then every serie of DefaultImports.
func (r *Reader) Run(ctx context.Context, tickers []string) error {
	r.logger.Info("reader run starting", zap.Strings("tickers", tickers))

	if err := r.ImportCompanyInfo(ctx, tickers); err != nil {
		return err
	}

	var errs []error
	for _, imp := range DefaultImports {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("reader interrupted: %w", err)
		}
		_, err := r.ImportStockValues(ctx, tickers, imp.Kind, imp.Granularity)
		switch {
		case err == nil:
		case r.unsupported(err):
			r.logger.Warn("serie not available from provider",
				zap.String("kind", string(imp.Kind)),
				zap.String("granularity", string(imp.Granularity)),
			)
		default:
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}
	r.logger.Info("reader run done")
	return nil
}

func (r *Reader) ImportCompanyInfo(ctx context.Context, tickers []string) error {
	infos, err := r.provider.GetCompanyInfo(ctx, tickers)
	if err != nil {
		return fmt.Errorf("get company info: %w", err)
	}
	if err := r.storage.InsertCompanyInfos(ctx, infos); err != nil {
		return fmt.Errorf("store company info: %w", err)
	}
	return nil
}

// ImportStockValues fetches the serie of every ticker and stores the values
// falling outside the [oldest, latest] range already stored for the ticker.
// Values rejected by the collection schema are dropped and logged. It returns
// the values handed to storage.
func (r *Reader) ImportStockValues(ctx context.Context, tickers []string, kind market.Kind, granularity market.Granularity) ([]market.StockValue, error) {
	stats, err := r.storage.GetStats(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("get %s stats: %w", kind, err)
	}

	coll := schema.HistoricalPrices(schema.ValuesCollection(kind))
	fetched := 0
	var fresh []market.StockValue

	for _, ticker := range tickers {
		values, err := r.provider.GetStockValues(ctx, ticker, kind, granularity)
		if err != nil {
			return nil, fmt.Errorf("get %s %s values of %s: %w", kind, granularity, ticker, err)
		}
		fetched += len(values)

		s, known := stats[ticker]
		for _, v := range values {
			if known && s.Covers(v.Date) {
				continue
			}
			if err := coll.ValidateValue(v); err != nil {
				r.logger.Warn("invalid stock value dropped",
					zap.String("ticker", ticker),
					zap.Time("date", v.Date),
					zap.Error(err),
				)
				continue
			}
			fresh = append(fresh, v)
		}
	}

	if len(fresh) == 0 {
		r.logger.Info("fetched values discarded, their timespan is already stored",
			zap.Int("count", fetched),
			zap.String("kind", string(kind)),
			zap.String("granularity", string(granularity)),
		)
		return nil, nil
	}

	res, err := r.storage.InsertValues(ctx, kind, fresh)
	if err != nil {
		return nil, fmt.Errorf("store %s values: %w", kind, err)
	}
	r.logger.Info("stock values imported",
		zap.String("kind", string(kind)),
		zap.String("granularity", string(granularity)),
		zap.Int("fetched", fetched),
		zap.Int("inserted", res.Inserted),
	)
	return fresh, nil
}
