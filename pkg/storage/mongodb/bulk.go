package mongodb

import (
	"errors"
	"sort"
	"strings"

	"marketchart/internal/market"

	"go.mongodb.org/mongo-driver/mongo"
)

const (
	codeDuplicateKey       = 11000
	codeValidationFailure  = 121
	valuesDuplicatePattern = "date,ticker"
)

// classifyInsert turns the error of an unordered InsertMany into counts.
// It returns a non-nil error only when err is not a bulk write exception or
// carries a write concern error; per-document failures are counted instead.
func classifyInsert(requested int, err error) (market.InsertResult, error) {
	res := market.InsertResult{Requested: requested, Inserted: requested}
	if err == nil {
		return res, nil
	}

	var bwe mongo.BulkWriteException
	if !errors.As(err, &bwe) {
		res.Inserted = 0
		return res, err
	}
	if bwe.WriteConcernError != nil {
		res.Inserted = 0
		return res, err
	}

	res.Inserted = requested - len(bwe.WriteErrors)
	for _, we := range bwe.WriteErrors {
		switch we.Code {
		case codeDuplicateKey:
			if keyPattern(we.WriteError) == valuesDuplicatePattern {
				res.ExpectedDuplicates++
			} else {
				res.OtherDuplicates++
			}
		case codeValidationFailure:
			res.ValidationFailures++
		}
	}
	return res, nil
}

// keyPattern returns the sorted, comma-joined fields of a duplicate key
// error, or "" when the server did not report them.
func keyPattern(we mongo.WriteError) string {
	if we.Raw == nil {
		return ""
	}
	v, err := we.Raw.LookupErr("keyPattern")
	if err != nil {
		return ""
	}
	doc, ok := v.DocumentOK()
	if !ok {
		return ""
	}
	elems, err := doc.Elements()
	if err != nil {
		return ""
	}

	keys := make([]string, 0, len(elems))
	for _, e := range elems {
		keys = append(keys, e.Key())
	}
	sort.Strings(keys)
	return strings.Join(keys, ",")
}
