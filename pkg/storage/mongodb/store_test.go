package mongodb_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"marketchart/config"
	"marketchart/internal/bootstrap"
	"marketchart/internal/market"
	"marketchart/internal/schema"
	"marketchart/pkg/storage/mongodb"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// testClient connects to MARKETCHART_MONGO_URI with a throwaway database, or
// skips the test.
func testClient(t *testing.T) (*mongo.Client, string) {
	t.Helper()

	uri := os.Getenv("MARKETCHART_MONGO_URI")
	if uri == "" {
		t.Skip("MARKETCHART_MONGO_URI not set")
	}

	ctx := context.Background()
	client, err := mongodb.Connect(ctx, config.MongoConfig{URI: uri, Timeout: 5 * time.Second}, "", "")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	dbName := fmt.Sprintf("marketchart_test_%d", time.Now().UnixNano())
	t.Cleanup(func() {
		_ = client.Database(dbName).Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})
	return client, dbName
}

func bootstrapCollections(t *testing.T, client *mongo.Client, dbName string) {
	t.Helper()

	engine := mongodb.NewEngine(client)
	ctx := context.Background()
	for _, coll := range schema.StockMarket() {
		if err := engine.CreateCollection(ctx, dbName, coll, true); err != nil {
			t.Fatalf("create %s: %v", coll.Name, err)
		}
		for _, idx := range coll.UniqueIndexes {
			if err := engine.CreateUniqueIndex(ctx, dbName, coll.Name, idx); err != nil {
				t.Fatalf("index %s: %v", idx.Name, err)
			}
		}
	}
}

// go test -v --run ^TestEngineIsIdempotent$
func TestEngineIsIdempotent(t *testing.T) {
	client, dbName := testClient(t)
	bootstrapCollections(t, client, dbName)

	engine := mongodb.NewEngine(client)
	coll := schema.HistoricalPrices(string(market.KindOHLC))
	err := engine.CreateCollection(context.Background(), dbName, coll, true)
	if !errors.Is(err, bootstrap.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	err = engine.CreateUniqueIndex(context.Background(), dbName, coll.Name, coll.UniqueIndexes[0])
	if !errors.Is(err, bootstrap.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists for index, got %v", err)
	}
}

// go test -v --run ^TestValidatorRejectsInvalidDocuments$
func TestValidatorRejectsInvalidDocuments(t *testing.T) {
	client, dbName := testClient(t)
	bootstrapCollections(t, client, dbName)

	coll := client.Database(dbName).Collection(string(market.KindOHLC))
	ctx := context.Background()
	date := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	if _, err := coll.InsertOne(ctx, bson.M{"date": date, "ticker": "AAPL"}); err == nil {
		t.Error("expected document without close to be rejected")
	}
	if _, err := coll.InsertOne(ctx, bson.M{"date": date, "ticker": "AAPL", "close": 1.0, "foo": "bar"}); err == nil {
		t.Error("expected document with extra field to be rejected")
	}
	if _, err := coll.InsertOne(ctx, bson.M{"date": date, "ticker": "AAPL", "close": 1.0}); err != nil {
		t.Errorf("expected valid document to be accepted, got %v", err)
	}
}

// go test -v --run ^TestStoreRoundTrip$
func TestStoreRoundTrip(t *testing.T) {
	client, dbName := testClient(t)
	bootstrapCollections(t, client, dbName)

	store := mongodb.NewStore(client, dbName, zap.NewNop())
	ctx := context.Background()

	day := func(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }
	values := []market.StockValue{
		{Ticker: "AAPL", Date: day(2), Close: 185.6, Interval: market.IntervalDay},
		{Ticker: "AAPL", Date: day(3), Close: 184.2, Interval: market.IntervalDay},
		{Ticker: "MSFT", Date: day(2), Close: 370.8, Interval: market.IntervalDay},
	}

	res, err := store.InsertValues(ctx, market.KindSimple, values)
	if err != nil || res.Inserted != 3 {
		t.Fatalf("first insert: %+v, %v", res, err)
	}

	// second insert of the same (date, ticker) pairs is rejected by the index
	res, err = store.InsertValues(ctx, market.KindSimple, values)
	if err != nil {
		t.Fatalf("second insert: %v", err)
	}
	if res.Inserted != 0 || res.ExpectedDuplicates != 3 {
		t.Errorf("expected 3 duplicates, got %+v", res)
	}

	got, err := store.GetValues(ctx, "AAPL", market.KindSimple, 0)
	if err != nil {
		t.Fatalf("get values: %v", err)
	}
	if len(got) != 2 || !got[0].Date.Equal(day(3)) {
		t.Errorf("expected 2 values most recent first, got %+v", got)
	}

	stats, err := store.GetStats(ctx, market.KindSimple)
	if err != nil {
		t.Fatalf("get stats: %v", err)
	}
	if s := stats["AAPL"]; s.Count != 2 || !s.Oldest.Equal(day(2)) || !s.Latest.Equal(day(3)) {
		t.Errorf("unexpected AAPL stats: %+v", s)
	}

	infos := []market.CompanyInfo{{Symbol: "AAPL", Name: "Apple Inc.", Currency: "USD", IPODate: day(12)}}
	if err := store.InsertCompanyInfos(ctx, infos); err != nil {
		t.Fatalf("insert company infos: %v", err)
	}
	if err := store.InsertCompanyInfos(ctx, infos); err != nil {
		t.Fatalf("re-insert company infos: %v", err)
	}
	tickers, err := store.GetAllTickers(ctx)
	if err != nil || len(tickers) != 1 || tickers[0] != "AAPL" {
		t.Errorf("expected [AAPL], got %v, %v", tickers, err)
	}
	byTicker, err := store.GetCompanyInfos(ctx, []string{"AAPL", "MSFT"})
	if err != nil || byTicker["AAPL"].Name != "Apple Inc." {
		t.Errorf("unexpected company infos: %v, %v", byTicker, err)
	}
}
