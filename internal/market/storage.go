package market

import "context"

// DefaultLimit caps GetValues when the caller passes zero.
const DefaultLimit = 500

// Storage persists stock values and company information.
type Storage interface {
	InsertValues(ctx context.Context, kind Kind, values []StockValue) (InsertResult, error)
	// GetValues returns at most limit values for ticker, most recent first.
	// A negative limit means no limit.
	GetValues(ctx context.Context, ticker string, kind Kind, limit int) ([]StockValue, error)
	// GetAllTickers returns every ticker with stored company info, unordered.
	GetAllTickers(ctx context.Context) ([]string, error)
	InsertCompanyInfos(ctx context.Context, infos []CompanyInfo) error
	GetCompanyInfos(ctx context.Context, symbols []string) (map[string]CompanyInfo, error)
	GetStats(ctx context.Context, kind Kind) (map[string]CollectionStats, error)
	Close(ctx context.Context) error
}
