package postgres

import (
	"context"
	"fmt"
	"time"

	"marketchart/internal/market"
	"marketchart/internal/schema"

	"go.uber.org/zap"
	"gorm.io/gorm/clause"
)

const insertBatchSize = 500

// Store implements market.Storage on tables created by the migrations.
// Duplicate rows are skipped by ON CONFLICT DO NOTHING, which relies on the
// unique indexes created by the bootstrap.
type Store struct {
	client *PostgresClient
	logger *zap.Logger
}

func NewStore(client *PostgresClient, logger *zap.Logger) *Store {
	return &Store{client: client, logger: logger}
}

func (s *Store) InsertValues(ctx context.Context, kind market.Kind, values []market.StockValue) (market.InsertResult, error) {
	res := market.InsertResult{Requested: len(values)}
	if len(values) == 0 {
		return res, nil
	}

	records := make([]ValueRecord, len(values))
	for i, v := range values {
		records[i] = ToValueRecord(v)
	}

	tx := s.client.DB.WithContext(ctx).
		Table(schema.ValuesCollection(kind)).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(records, insertBatchSize)
	if tx.Error != nil {
		return res, fmt.Errorf("insert %s values: %w", kind, tx.Error)
	}

	res.Inserted = int(tx.RowsAffected)
	res.ExpectedDuplicates = res.Requested - res.Inserted

	if res.ExpectedDuplicates > 0 {
		s.logger.Warn("only part of the stock values could be inserted",
			zap.String("kind", string(kind)),
			zap.Int("inserted", res.Inserted),
			zap.Int("requested", res.Requested),
			zap.Int("expected_duplicates", res.ExpectedDuplicates),
		)
	} else {
		s.logger.Info("stock values inserted", zap.String("kind", string(kind)), zap.Int("count", res.Inserted))
	}
	return res, nil
}

func (s *Store) GetValues(ctx context.Context, ticker string, kind market.Kind, limit int) ([]market.StockValue, error) {
	if limit == 0 {
		limit = market.DefaultLimit
	}

	var records []ValueRecord
	err := s.client.DB.WithContext(ctx).
		Table(schema.ValuesCollection(kind)).
		Where("ticker = ?", ticker).
		Order("date DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("find %s values of %s: %w", kind, ticker, err)
	}

	out := make([]market.StockValue, len(records))
	for i, r := range records {
		out[i] = r.StockValue()
	}
	return out, nil
}

func (s *Store) GetAllTickers(ctx context.Context) ([]string, error) {
	var tickers []string
	err := s.client.DB.WithContext(ctx).
		Model(&CompanyRecord{}).
		Distinct("symbol").
		Pluck("symbol", &tickers).Error
	if err != nil {
		return nil, fmt.Errorf("distinct symbols: %w", err)
	}
	return tickers, nil
}

func (s *Store) InsertCompanyInfos(ctx context.Context, infos []market.CompanyInfo) error {
	if len(infos) == 0 {
		return nil
	}

	records := make([]CompanyRecord, len(infos))
	for i, info := range infos {
		records[i] = ToCompanyRecord(info)
	}

	tx := s.client.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&records)
	if tx.Error != nil {
		return fmt.Errorf("insert company infos: %w", tx.Error)
	}
	if skipped := len(infos) - int(tx.RowsAffected); skipped > 0 {
		s.logger.Info("company infos already present", zap.Int("skipped", skipped))
	}
	return nil
}

func (s *Store) GetCompanyInfos(ctx context.Context, symbols []string) (map[string]market.CompanyInfo, error) {
	out := map[string]market.CompanyInfo{}
	if len(symbols) == 0 {
		return out, nil
	}

	var records []CompanyRecord
	if err := s.client.DB.WithContext(ctx).Where("symbol IN ?", symbols).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("find company infos: %w", err)
	}
	for _, r := range records {
		out[r.Symbol] = r.CompanyInfo()
	}
	return out, nil
}

type statsRow struct {
	Ticker string
	Oldest time.Time
	Latest time.Time
	Count  int64
}

func (s *Store) GetStats(ctx context.Context, kind market.Kind) (map[string]market.CollectionStats, error) {
	var rows []statsRow
	err := s.client.DB.WithContext(ctx).
		Table(schema.ValuesCollection(kind)).
		Select("ticker, MIN(date) AS oldest, MAX(date) AS latest, COUNT(*) AS count").
		Group("ticker").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("aggregate %s stats: %w", kind, err)
	}

	out := make(map[string]market.CollectionStats, len(rows))
	for _, r := range rows {
		out[r.Ticker] = market.CollectionStats{Oldest: r.Oldest.UTC(), Latest: r.Latest.UTC(), Count: r.Count}
	}
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if !s.client.IsHealthy(ctx) {
		return fmt.Errorf("postgres is not reachable")
	}
	return nil
}

func (s *Store) Close(context.Context) error {
	return s.client.Close()
}
