package postgres

import (
	"time"

	"marketchart/internal/market"
)

// ValueRecord is one row of the ohlc or simple table. The table is picked
// per query from the kind.
type ValueRecord struct {
	ID uint `gorm:"primaryKey"`

	Date     time.Time `gorm:"not null"`
	Ticker   string    `gorm:"type:text;not null"`
	Close    float64   `gorm:"not null"`
	Interval int64     `gorm:"column:interval"`

	Open   *float64
	Low    *float64
	High   *float64
	Volume *int64
}

// CompanyRecord is one row of the company_info table.
type CompanyRecord struct {
	ID uint `gorm:"primaryKey"`

	Symbol      string `gorm:"type:text;not null"`
	Name        string `gorm:"type:text;not null"`
	Currency    string `gorm:"type:text;not null"`
	Website     string
	Description string
	Sector      string
	Country     string
	Image       string
	IPODate     *time.Time `gorm:"column:ipo_date"`
	Address     string
	City        string
}

// TableName overrides the default table name for GORM.
func (CompanyRecord) TableName() string {
	return "company_info"
}

// ToValueRecord converts a StockValue into a row.
func ToValueRecord(v market.StockValue) ValueRecord {
	return ValueRecord{
		Date:     v.Date.UTC(),
		Ticker:   v.Ticker,
		Close:    v.Close,
		Interval: v.Interval,
		Open:     v.Open,
		Low:      v.Low,
		High:     v.High,
		Volume:   v.Volume,
	}
}

func (r ValueRecord) StockValue() market.StockValue {
	return market.StockValue{
		Ticker:   r.Ticker,
		Date:     r.Date.UTC(),
		Close:    r.Close,
		Interval: r.Interval,
		Open:     r.Open,
		Low:      r.Low,
		High:     r.High,
		Volume:   r.Volume,
	}
}

// ToCompanyRecord converts a CompanyInfo into a row. A zero IPO date is
// stored as NULL.
func ToCompanyRecord(c market.CompanyInfo) CompanyRecord {
	r := CompanyRecord{
		Symbol:      c.Symbol,
		Name:        c.Name,
		Currency:    c.Currency,
		Website:     c.Website,
		Description: c.Description,
		Sector:      c.Sector,
		Country:     c.Country,
		Image:       c.Image,
		Address:     c.Address,
		City:        c.City,
	}
	if !c.IPODate.IsZero() {
		d := c.IPODate.UTC()
		r.IPODate = &d
	}
	return r
}

func (r CompanyRecord) CompanyInfo() market.CompanyInfo {
	c := market.CompanyInfo{
		Symbol:      r.Symbol,
		Name:        r.Name,
		Currency:    r.Currency,
		Website:     r.Website,
		Description: r.Description,
		Sector:      r.Sector,
		Country:     r.Country,
		Image:       r.Image,
		Address:     r.Address,
		City:        r.City,
	}
	if r.IPODate != nil {
		c.IPODate = r.IPODate.UTC()
	}
	return c
}
