package mongodb

import (
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func writeError(t *testing.T, code int, keyPattern bson.D) mongo.BulkWriteError {
	t.Helper()

	doc := bson.D{{Key: "code", Value: code}}
	if keyPattern != nil {
		doc = append(doc, bson.E{Key: "keyPattern", Value: keyPattern})
	}
	raw, err := bson.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal write error: %v", err)
	}
	return mongo.BulkWriteError{WriteError: mongo.WriteError{Code: code, Raw: raw}}
}

// go test -v --run ^TestClassifyInsert$
func TestClassifyInsert(t *testing.T) {
	valuesKey := bson.D{{Key: "date", Value: 1}, {Key: "ticker", Value: 1}}
	swappedKey := bson.D{{Key: "ticker", Value: 1}, {Key: "date", Value: 1}}
	idKey := bson.D{{Key: "_id", Value: 1}}

	err := mongo.BulkWriteException{
		WriteErrors: []mongo.BulkWriteError{
			writeError(t, codeDuplicateKey, valuesKey),
			writeError(t, codeDuplicateKey, swappedKey),
			writeError(t, codeDuplicateKey, idKey),
			writeError(t, codeValidationFailure, nil),
		},
	}

	res, cerr := classifyInsert(10, err)
	if cerr != nil {
		t.Fatalf("expected bulk errors to be counted, got %v", cerr)
	}
	if res.Requested != 10 || res.Inserted != 6 {
		t.Errorf("expected 6 of 10 inserted, got %+v", res)
	}
	if res.ExpectedDuplicates != 2 {
		t.Errorf("expected 2 (date, ticker) duplicates, got %d", res.ExpectedDuplicates)
	}
	if res.OtherDuplicates != 1 {
		t.Errorf("expected 1 other duplicate, got %d", res.OtherDuplicates)
	}
	if res.ValidationFailures != 1 {
		t.Errorf("expected 1 validation failure, got %d", res.ValidationFailures)
	}
}

// go test -v --run ^TestClassifyInsertPassesOtherErrors$
func TestClassifyInsertPassesOtherErrors(t *testing.T) {
	res, err := classifyInsert(3, nil)
	if err != nil || res.Inserted != 3 {
		t.Fatalf("expected clean insert, got %+v, %v", res, err)
	}

	boom := errors.New("connection reset")
	res, err = classifyInsert(3, boom)
	if !errors.Is(err, boom) {
		t.Fatalf("expected error to pass through, got %v", err)
	}
	if res.Inserted != 0 {
		t.Errorf("expected nothing counted as inserted, got %d", res.Inserted)
	}

	wce := mongo.BulkWriteException{WriteConcernError: &mongo.WriteConcernError{Code: 64, Message: "waiting for replication timed out"}}
	if _, err := classifyInsert(3, wce); err == nil {
		t.Fatal("expected write concern error to be returned")
	}
}
