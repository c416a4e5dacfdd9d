// Package memory keeps stock values in process memory. It backs the chart
// server in development and the tests of packages that need a market.Storage.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"marketchart/internal/market"
)

type seriesKey struct {
	kind   market.Kind
	ticker string
}

type Store struct {
	globalMu sync.RWMutex
	data     map[seriesKey]*tickerStore

	companyMu sync.RWMutex
	companies map[string]market.CompanyInfo
}

// tickerStore holds one (kind, ticker) serie ordered by date, oldest first.
// Dates are unique within a serie.
type tickerStore struct {
	mu     sync.Mutex
	values []market.StockValue
}

func NewStore() *Store {
	return &Store{
		data:      make(map[seriesKey]*tickerStore),
		companies: make(map[string]market.CompanyInfo),
	}
}

func (s *Store) serie(key seriesKey, create bool) *tickerStore {
	// Fast path: lock per-ticker store only
	s.globalMu.RLock()
	store, ok := s.data[key]
	s.globalMu.RUnlock()

	if ok || !create {
		return store
	}

	s.globalMu.Lock()
	if store, ok = s.data[key]; !ok {
		store = &tickerStore{}
		s.data[key] = store
	}
	s.globalMu.Unlock()
	return store
}

// insert adds v unless a value with the same date exists.
func (t *tickerStore) insert(v market.StockValue) bool {
	i := sort.Search(len(t.values), func(i int) bool { return !t.values[i].Date.Before(v.Date) })
	if i < len(t.values) && t.values[i].Date.Equal(v.Date) {
		return false
	}
	t.values = append(t.values, market.StockValue{})
	copy(t.values[i+1:], t.values[i:])
	t.values[i] = v
	return true
}

func (s *Store) InsertValues(_ context.Context, kind market.Kind, values []market.StockValue) (market.InsertResult, error) {
	res := market.InsertResult{Requested: len(values)}

	for _, v := range values {
		v.Date = v.Date.UTC()
		store := s.serie(seriesKey{kind: kind, ticker: v.Ticker}, true)

		store.mu.Lock()
		inserted := store.insert(v)
		store.mu.Unlock()

		if inserted {
			res.Inserted++
		} else {
			res.ExpectedDuplicates++
		}
	}
	return res, nil
}

func (s *Store) GetValues(_ context.Context, ticker string, kind market.Kind, limit int) ([]market.StockValue, error) {
	if limit == 0 {
		limit = market.DefaultLimit
	}

	store := s.serie(seriesKey{kind: kind, ticker: ticker}, false)
	if store == nil {
		return []market.StockValue{}, nil
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	n := len(store.values)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]market.StockValue, 0, n)
	for i := len(store.values) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, store.values[i])
	}
	return out, nil
}

func (s *Store) GetAllTickers(context.Context) ([]string, error) {
	s.companyMu.RLock()
	defer s.companyMu.RUnlock()

	out := make([]string, 0, len(s.companies))
	for symbol := range s.companies {
		out = append(out, symbol)
	}
	return out, nil
}

// InsertCompanyInfos keeps the first info stored for a symbol.
func (s *Store) InsertCompanyInfos(_ context.Context, infos []market.CompanyInfo) error {
	s.companyMu.Lock()
	defer s.companyMu.Unlock()

	for _, info := range infos {
		if _, ok := s.companies[info.Symbol]; !ok {
			s.companies[info.Symbol] = info
		}
	}
	return nil
}

func (s *Store) GetCompanyInfos(_ context.Context, symbols []string) (map[string]market.CompanyInfo, error) {
	s.companyMu.RLock()
	defer s.companyMu.RUnlock()

	out := make(map[string]market.CompanyInfo, len(symbols))
	for _, symbol := range symbols {
		if info, ok := s.companies[symbol]; ok {
			out[symbol] = info
		}
	}
	return out, nil
}

func (s *Store) GetStats(_ context.Context, kind market.Kind) (map[string]market.CollectionStats, error) {
	s.globalMu.RLock()
	defer s.globalMu.RUnlock()

	out := make(map[string]market.CollectionStats)
	for key, store := range s.data {
		if key.kind != kind {
			continue
		}
		store.mu.Lock()
		if n := len(store.values); n > 0 {
			out[key.ticker] = market.CollectionStats{
				Oldest: store.values[0].Date,
				Latest: store.values[n-1].Date,
				Count:  int64(n),
			}
		}
		store.mu.Unlock()
	}
	return out, nil
}

// CountAll returns the number of values stored across all series.
func (s *Store) CountAll() int {
	s.globalMu.RLock()
	defer s.globalMu.RUnlock()

	total := 0
	for _, store := range s.data {
		store.mu.Lock()
		total += len(store.values)
		store.mu.Unlock()
	}
	return total
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close(context.Context) error { return nil }

// Seed fills s with a deterministic daily serie per ticker, ending at end.
// Used by the chart server when no database is configured.
func (s *Store) Seed(tickers []string, days int, end time.Time) {
	end = time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	for ti, ticker := range tickers {
		base := 100.0 + float64(ti)*50
		infos := []market.CompanyInfo{{Symbol: ticker, Name: ticker, Currency: "USD"}}
		_ = s.InsertCompanyInfos(context.Background(), infos)

		simple := make([]market.StockValue, 0, days)
		ohlc := make([]market.StockValue, 0, days)
		for d := 0; d < days; d++ {
			date := end.AddDate(0, 0, d-days+1)
			// small deterministic oscillation around base
			open := base + float64((d*7+ti*3)%11) - 5
			closePrice := base + float64((d*5+ti*2)%13) - 6
			high := max(open, closePrice) + 1.5
			low := min(open, closePrice) - 1.5

			simple = append(simple, market.StockValue{Ticker: ticker, Date: date, Close: closePrice, Interval: market.IntervalDay})
			ohlc = append(ohlc, market.StockValue{
				Ticker:   ticker,
				Date:     date,
				Close:    closePrice,
				Interval: market.IntervalDay,
				Open:     market.Float(open),
				High:     market.Float(high),
				Low:      market.Float(low),
				Volume:   market.Int(int64(1_000_000 + d*1000)),
			})
		}
		_, _ = s.InsertValues(context.Background(), market.KindSimple, simple)
		_, _ = s.InsertValues(context.Background(), market.KindOHLC, ohlc)
	}
}
