package schema

import "marketchart/internal/market"

// Collection names in the stock_market database.
const (
	CompanyInfoCollection = "company_info"
)

// ValuesCollection returns the collection holding values of kind.
func ValuesCollection(kind market.Kind) string {
	return string(kind)
}

var integer = []BSONType{TypeInt, TypeLong}

// HistoricalPrices is the schema of a stock values collection.
func HistoricalPrices(name string) Collection {
	return Collection{
		Name: name,
		Fields: []Field{
			{Name: "date", Types: []BSONType{TypeDate}, Required: true},
			{Name: "ticker", Types: []BSONType{TypeString}, Required: true},
			{Name: "close", Types: []BSONType{TypeDouble}, Required: true},
			{Name: "interval", Types: integer},
			{Name: "open", Types: []BSONType{TypeDouble}},
			{Name: "low", Types: []BSONType{TypeDouble}},
			{Name: "high", Types: []BSONType{TypeDouble}},
			{Name: "volume", Types: integer},
		},
		UniqueIndexes: []Index{
			{Name: "date_ticker_unique", Keys: []string{"date", "ticker"}},
		},
		Strict: true,
	}
}

// CompanyInfos is the schema of the company_info collection.
func CompanyInfos() Collection {
	str := []BSONType{TypeString}
	return Collection{
		Name: CompanyInfoCollection,
		Fields: []Field{
			{Name: "symbol", Types: str, Required: true},
			{Name: "name", Types: str, Required: true},
			{Name: "currency", Types: str, Required: true},
			{Name: "website", Types: str},
			{Name: "description", Types: str},
			{Name: "sector", Types: str},
			{Name: "country", Types: str},
			{Name: "image", Types: str},
			{Name: "ipo_date", Types: []BSONType{TypeDate}},
			{Name: "address", Types: str},
			{Name: "city", Types: str},
		},
		UniqueIndexes: []Index{
			{Name: "symbol_unique", Keys: []string{"symbol"}},
		},
		Strict: true,
	}
}

// StockMarket returns every collection of the stock_market database.
func StockMarket() []Collection {
	out := make([]Collection, 0, len(market.Kinds)+1)
	for _, k := range market.Kinds {
		out = append(out, HistoricalPrices(ValuesCollection(k)))
	}
	return append(out, CompanyInfos())
}
