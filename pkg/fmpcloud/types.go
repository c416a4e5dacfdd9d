package fmpcloud

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"marketchart/internal/market"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04:05"
)

// Date decodes the provider's "2006-01-02" and "2006-01-02 15:04:05"
// strings as UTC. An empty string decodes to the zero time.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date: %w", err)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		d.Time = time.Time{}
		return nil
	}

	layout := dateLayout
	if len(s) > len(dateLayout) {
		layout = dateTimeLayout
	}
	t, err := time.ParseInLocation(layout, s, time.UTC)
	if err != nil {
		return fmt.Errorf("date %q: %w", s, err)
	}
	d.Time = t
	return nil
}

// SimpleValue is one daily close of /historical-price-full?serietype=line.
type SimpleValue struct {
	Date  Date    `json:"date"`
	Close float64 `json:"close"`
}

// SimpleData is the /historical-price-full response.
type SimpleData struct {
	Symbol     string        `json:"symbol"`
	Historical []SimpleValue `json:"historical"`
}

// OHLCValue is one candle of /historical-chart/15min.
type OHLCValue struct {
	Date   Date    `json:"date"`
	Open   float64 `json:"open"`
	Close  float64 `json:"close"`
	Low    float64 `json:"low"`
	High   float64 `json:"high"`
	Volume int64   `json:"volume"`
}

// Profile is one entry of the /profile response.
type Profile struct {
	Symbol      string `json:"symbol"`
	CompanyName string `json:"companyName"`
	Currency    string `json:"currency"`
	Website     string `json:"website"`
	Description string `json:"description"`
	Sector      string `json:"sector"`
	Country     string `json:"country"`
	Image       string `json:"image"`
	IPODate     Date   `json:"ipoDate"`
	Address     string `json:"address"`
	City        string `json:"city"`
}

func (v SimpleValue) StockValue(ticker string) market.StockValue {
	return market.StockValue{
		Ticker:   ticker,
		Date:     v.Date.Time,
		Close:    v.Close,
		Interval: market.IntervalDay,
	}
}

func (v OHLCValue) StockValue(ticker string) market.StockValue {
	return market.StockValue{
		Ticker:   ticker,
		Date:     v.Date.Time,
		Close:    v.Close,
		Interval: market.IntervalFifteenMinutes,
		Open:     market.Float(v.Open),
		Low:      market.Float(v.Low),
		High:     market.Float(v.High),
		Volume:   market.Int(v.Volume),
	}
}

func (p Profile) CompanyInfo() market.CompanyInfo {
	return market.CompanyInfo{
		Symbol:      p.Symbol,
		Name:        p.CompanyName,
		Currency:    p.Currency,
		Website:     p.Website,
		Description: p.Description,
		Sector:      p.Sector,
		Country:     p.Country,
		Image:       p.Image,
		IPODate:     p.IPODate.Time,
		Address:     p.Address,
		City:        p.City,
	}
}
