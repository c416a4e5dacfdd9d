package chart

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"marketchart/internal/market"
)

var ErrInvalidPayload = errors.New("invalid chart payload")

// DataURL is the endpoint serving the chart of symbol for kind.
func DataURL(symbol string, kind market.Kind) string {
	return "/json/" + url.PathEscape(symbol) + "?kind=" + url.QueryEscape(string(kind))
}

// Payload is a fetched chart spec. DataName is the spec's data.name and
// Records is datasets[DataName].
type Payload struct {
	Spec     json.RawMessage
	DataName string
	Records  []json.RawMessage
}

// ParsePayload extracts the dataset of a chart spec.
func ParsePayload(raw []byte) (Payload, error) {
	var doc struct {
		Data *struct {
			Name string `json:"name"`
		} `json:"data"`
		Datasets map[string][]json.RawMessage `json:"datasets"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if doc.Data == nil || doc.Data.Name == "" {
		return Payload{}, fmt.Errorf("%w: missing data.name", ErrInvalidPayload)
	}
	records, ok := doc.Datasets[doc.Data.Name]
	if !ok {
		return Payload{}, fmt.Errorf("%w: no dataset %q", ErrInvalidPayload, doc.Data.Name)
	}
	if records == nil {
		records = []json.RawMessage{}
	}

	return Payload{Spec: json.RawMessage(raw), DataName: doc.Data.Name, Records: records}, nil
}
