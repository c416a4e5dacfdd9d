package alphavantage

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"marketchart/internal/market"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04:05"
)

// message carries the errors the API reports with a 200 status.
type message struct {
	ErrorMessage string `json:"Error Message"`
	Note         string `json:"Note"`
	Information  string `json:"Information"`
}

func (m message) err() error {
	switch {
	case m.ErrorMessage != "":
		return fmt.Errorf("%w: %s", ErrAPI, m.ErrorMessage)
	case m.Note != "":
		return fmt.Errorf("%w: %s", ErrRateLimited, m.Note)
	case m.Information != "":
		return fmt.Errorf("%w: %s", ErrRateLimited, m.Information)
	}
	return nil
}

// Bar is one entry of a time series, keyed "1. open", "2. high"...
type Bar map[string]string

// Series is a TIME_SERIES_* response. Only one of the series is set.
type Series struct {
	Meta     map[string]string `json:"Meta Data"`
	Daily    map[string]Bar    `json:"Time Series (Daily)"`
	Intraday map[string]Bar    `json:"Time Series (15min)"`
}

// location returns the time zone named in the metadata, UTC when absent or
// unknown.
func (s Series) location() *time.Location {
	for key, value := range s.Meta {
		if strings.HasSuffix(key, "Time Zone") {
			if loc, err := time.LoadLocation(value); err == nil {
				return loc
			}
		}
	}
	return time.UTC
}

func (b Bar) float(name string) (float64, error) {
	for key, raw := range b {
		if strings.HasSuffix(key, ". "+name) {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return 0, fmt.Errorf("%s %q: %w", name, raw, err)
			}
			return v, nil
		}
	}
	return 0, fmt.Errorf("missing %s", name)
}

// dailyCloses converts a daily series to simple values at UTC midnight.
func dailyCloses(ticker string, s Series) ([]market.StockValue, error) {
	out := make([]market.StockValue, 0, len(s.Daily))
	for day, bar := range s.Daily {
		date, err := time.ParseInLocation(dateLayout, day, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("date %q: %w", day, err)
		}
		closePrice, err := bar.float("close")
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", ticker, day, err)
		}
		out = append(out, market.StockValue{
			Ticker:   ticker,
			Date:     date,
			Close:    closePrice,
			Interval: market.IntervalDay,
		})
	}
	sortByDate(out)
	return out, nil
}

// intradayCandles converts a 15 minutes series to ohlc values in UTC.
func intradayCandles(ticker string, s Series) ([]market.StockValue, error) {
	loc := s.location()
	out := make([]market.StockValue, 0, len(s.Intraday))
	for stamp, bar := range s.Intraday {
		date, err := time.ParseInLocation(dateTimeLayout, stamp, loc)
		if err != nil {
			return nil, fmt.Errorf("date %q: %w", stamp, err)
		}

		var v [5]float64
		for i, name := range []string{"open", "high", "low", "close", "volume"} {
			if v[i], err = bar.float(name); err != nil {
				return nil, fmt.Errorf("%s %s: %w", ticker, stamp, err)
			}
		}
		out = append(out, market.StockValue{
			Ticker:   ticker,
			Date:     date.UTC(),
			Close:    v[3],
			Interval: market.IntervalFifteenMinutes,
			Open:     market.Float(v[0]),
			High:     market.Float(v[1]),
			Low:      market.Float(v[2]),
			Volume:   market.Int(int64(v[4])),
		})
	}
	sortByDate(out)
	return out, nil
}

func sortByDate(values []market.StockValue) {
	sort.Slice(values, func(i, j int) bool { return values[i].Date.Before(values[j].Date) })
}

// Overview is the OVERVIEW response. Unknown symbols yield an empty object.
type Overview struct {
	Symbol       string `json:"Symbol"`
	Name         string `json:"Name"`
	Description  string `json:"Description"`
	Currency     string `json:"Currency"`
	Country      string `json:"Country"`
	Sector       string `json:"Sector"`
	Address      string `json:"Address"`
	OfficialSite string `json:"OfficialSite"`
}

func (o Overview) CompanyInfo() market.CompanyInfo {
	return market.CompanyInfo{
		Symbol:      o.Symbol,
		Name:        o.Name,
		Currency:    o.Currency,
		Website:     o.OfficialSite,
		Description: o.Description,
		Sector:      o.Sector,
		Country:     o.Country,
		Address:     o.Address,
	}
}
