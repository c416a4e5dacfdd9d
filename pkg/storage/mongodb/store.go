package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketchart/internal/market"
	"marketchart/internal/schema"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Store implements market.Storage on one database.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	logger *zap.Logger
}

func NewStore(client *mongo.Client, database string, logger *zap.Logger) *Store {
	return &Store{
		client: client,
		db:     client.Database(database),
		logger: logger,
	}
}

func (s *Store) values(kind market.Kind) *mongo.Collection {
	return s.db.Collection(schema.ValuesCollection(kind))
}

func (s *Store) companies() *mongo.Collection {
	return s.db.Collection(schema.CompanyInfoCollection)
}

// InsertValues inserts values unordered so that duplicates and invalid
// documents do not prevent the rest from being stored.
func (s *Store) InsertValues(ctx context.Context, kind market.Kind, values []market.StockValue) (market.InsertResult, error) {
	if len(values) == 0 {
		return market.InsertResult{}, nil
	}

	docs := make([]any, len(values))
	for i, v := range values {
		docs[i] = v
	}

	_, err := s.values(kind).InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	res, err := classifyInsert(len(values), err)
	if err != nil {
		return res, fmt.Errorf("insert %s values: %w", kind, err)
	}

	if res.Inserted == res.Requested {
		s.logger.Info("stock values inserted",
			zap.String("kind", string(kind)),
			zap.Int("count", res.Inserted),
		)
		return res, nil
	}

	s.logger.Warn("only part of the stock values could be inserted",
		zap.String("kind", string(kind)),
		zap.Int("inserted", res.Inserted),
		zap.Int("requested", res.Requested),
		zap.Int("expected_duplicates", res.ExpectedDuplicates),
	)
	if res.OtherDuplicates > 0 {
		s.logger.Error("unexpected duplicate values", zap.Int("count", res.OtherDuplicates))
	}
	if res.ValidationFailures > 0 {
		s.logger.Error("documents failed validation", zap.Int("count", res.ValidationFailures))
	}
	return res, nil
}

func (s *Store) GetValues(ctx context.Context, ticker string, kind market.Kind, limit int) ([]market.StockValue, error) {
	if limit == 0 {
		limit = market.DefaultLimit
	}

	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cur, err := s.values(kind).Find(ctx, bson.M{"ticker": ticker}, opts)
	if err != nil {
		return nil, fmt.Errorf("find %s values of %s: %w", kind, ticker, err)
	}

	var out []market.StockValue
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode %s values of %s: %w", kind, ticker, err)
	}

	for i := range out {
		out[i].Date = out[i].Date.UTC()
	}

	s.logger.Debug("stock values retrieved",
		zap.String("ticker", ticker),
		zap.String("kind", string(kind)),
		zap.Int("count", len(out)),
	)
	return out, nil
}

func (s *Store) GetAllTickers(ctx context.Context) ([]string, error) {
	raw, err := s.companies().Distinct(ctx, "symbol", bson.D{})
	if err != nil {
		return nil, fmt.Errorf("distinct symbols: %w", err)
	}

	tickers := make([]string, 0, len(raw))
	for _, v := range raw {
		if t, ok := v.(string); ok {
			tickers = append(tickers, t)
		}
	}
	return tickers, nil
}

// InsertCompanyInfos stores infos. Companies already present are kept as
// they are.
func (s *Store) InsertCompanyInfos(ctx context.Context, infos []market.CompanyInfo) error {
	if len(infos) == 0 {
		return nil
	}

	docs := make([]any, len(infos))
	for i, info := range infos {
		docs[i] = info
	}

	_, err := s.companies().InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	res, err := classifyInsert(len(infos), err)
	if err != nil {
		return fmt.Errorf("insert company infos: %w", err)
	}
	if res.Inserted < res.Requested {
		s.logger.Info("company infos already present",
			zap.Int("skipped", res.Requested-res.Inserted),
			zap.Int("inserted", res.Inserted),
		)
	}
	return nil
}

func (s *Store) GetCompanyInfos(ctx context.Context, symbols []string) (map[string]market.CompanyInfo, error) {
	cur, err := s.companies().Find(ctx, bson.M{"symbol": bson.M{"$in": symbols}})
	if err != nil {
		return nil, fmt.Errorf("find company infos: %w", err)
	}

	var infos []market.CompanyInfo
	if err := cur.All(ctx, &infos); err != nil {
		return nil, fmt.Errorf("decode company infos: %w", err)
	}

	out := make(map[string]market.CompanyInfo, len(infos))
	for _, info := range infos {
		out[info.Symbol] = info
	}
	s.logger.Debug("company infos retrieved", zap.Int("count", len(out)))
	return out, nil
}

type statsRow struct {
	Ticker string    `bson:"_id"`
	Oldest time.Time `bson:"oldest"`
	Latest time.Time `bson:"latest"`
	Count  int64     `bson:"count"`
}

func (s *Store) GetStats(ctx context.Context, kind market.Kind) (map[string]market.CollectionStats, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$ticker"},
			{Key: "latest", Value: bson.M{"$max": "$date"}},
			{Key: "oldest", Value: bson.M{"$min": "$date"}},
			{Key: "count", Value: bson.M{"$sum": 1}},
		}}},
	}

	cur, err := s.values(kind).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate %s stats: %w", kind, err)
	}

	var rows []statsRow
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode %s stats: %w", kind, err)
	}

	out := make(map[string]market.CollectionStats, len(rows))
	for _, r := range rows {
		out[r.Ticker] = market.CollectionStats{Oldest: r.Oldest.UTC(), Latest: r.Latest.UTC(), Count: r.Count}
	}
	return out, nil
}

// Ping reports whether the server answers.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) Close(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil && !errors.Is(err, mongo.ErrClientDisconnected) {
		return fmt.Errorf("disconnect mongodb: %w", err)
	}
	return nil
}
