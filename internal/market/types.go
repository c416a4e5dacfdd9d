package market

import (
	"fmt"
	"time"
)

// Kind is the shape of a stock value serie.
type Kind string

const (
	KindSimple Kind = "simple" // close only
	KindOHLC   Kind = "ohlc"   // open, high, low, close, volume
)

// Kinds lists every kind in display order.
var Kinds = []Kind{KindOHLC, KindSimple}

func (k Kind) IsValid() bool {
	return k == KindSimple || k == KindOHLC
}

// ParseKind parses a kind from its wire value.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.IsValid() {
		return "", fmt.Errorf("invalid kind: %q", s)
	}
	return k, nil
}

// Granularity is the sampling resolution requested from a provider.
type Granularity string

const (
	GranularityFine   Granularity = "fine"   // 15 minutes
	GranularityCoarse Granularity = "coarse" // one day
)

// Interval lengths in seconds as stored in StockValue.Interval.
const (
	IntervalFifteenMinutes = 15 * 60
	IntervalDay            = 24 * 60 * 60
)

// StockValue is one historical price document.
type StockValue struct {
	Ticker   string    `json:"ticker" bson:"ticker"`
	Date     time.Time `json:"date" bson:"date"`
	Close    float64   `json:"close" bson:"close"`
	Interval int64     `json:"interval" bson:"interval"` // seconds
	Open     *float64  `json:"open,omitempty" bson:"open,omitempty"`
	Low      *float64  `json:"low,omitempty" bson:"low,omitempty"`
	High     *float64  `json:"high,omitempty" bson:"high,omitempty"`
	Volume   *int64    `json:"volume,omitempty" bson:"volume,omitempty"`
}

// CompanyInfo describes a listed company.
type CompanyInfo struct {
	Symbol      string    `json:"symbol" bson:"symbol"`
	Name        string    `json:"name" bson:"name"`
	Currency    string    `json:"currency" bson:"currency"`
	Website     string    `json:"website" bson:"website"`
	Description string    `json:"description" bson:"description"`
	Sector      string    `json:"sector" bson:"sector"`
	Country     string    `json:"country" bson:"country"`
	Image       string    `json:"image" bson:"image"`
	IPODate     time.Time `json:"ipo_date" bson:"ipo_date"`
	Address     string    `json:"address" bson:"address"`
	City        string    `json:"city" bson:"city"`
}

// CollectionStats summarises the stored values of one ticker.
type CollectionStats struct {
	Oldest time.Time `json:"oldest" bson:"oldest"`
	Latest time.Time `json:"latest" bson:"latest"`
	Count  int64     `json:"count" bson:"count"`
}

// Covers reports whether t falls inside the stored [Oldest, Latest] range.
func (s CollectionStats) Covers(t time.Time) bool {
	return !t.Before(s.Oldest) && !t.After(s.Latest)
}

// InsertResult reports the outcome of a bulk insert.
type InsertResult struct {
	Requested          int
	Inserted           int
	ExpectedDuplicates int // (ticker, date) already stored
	OtherDuplicates    int
	ValidationFailures int
}

func Float(v float64) *float64 { return &v }

func Int(v int64) *int64 { return &v }
