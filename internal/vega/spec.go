// Package vega builds the Vega-Lite specs served to the chart element.
package vega

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"marketchart/internal/market"
)

const (
	SchemaURL = "https://vega.github.io/schema/vega-lite/v5.json"

	Width  = 1000
	Height = 500

	colorUp   = "#06982d"
	colorDown = "#ae1325"
)

// Limit is the number of values plotted for kind.
func Limit(kind market.Kind) int {
	if kind == market.KindSimple {
		return 5000
	}
	return 500
}

// DataRef names the inline dataset plotted by a spec.
type DataRef struct {
	Name string `json:"name"`
}

// Layer is one unit spec of a layered chart.
type Layer struct {
	Mark     any            `json:"mark"`
	Encoding map[string]any `json:"encoding"`
	Params   []Param        `json:"params,omitempty"`
}

// Param is an interval selection bound to the x scale, which makes the chart
// zoomable and pannable horizontally.
type Param struct {
	Name   string         `json:"name"`
	Select map[string]any `json:"select"`
	Bind   string         `json:"bind"`
}

// Spec is a Vega-Lite top-level spec with its data inlined in Datasets.
// Data.Name always has an entry in Datasets.
type Spec struct {
	Schema   string                         `json:"$schema"`
	Config   map[string]any                 `json:"config"`
	Data     DataRef                        `json:"data"`
	Datasets map[string][]market.StockValue `json:"datasets"`
	Width    int                            `json:"width"`
	Height   int                            `json:"height"`

	// unit spec (simple)
	Mark     any            `json:"mark,omitempty"`
	Encoding map[string]any `json:"encoding,omitempty"`
	Params   []Param        `json:"params,omitempty"`

	// layered spec (ohlc)
	Layer []Layer `json:"layer,omitempty"`
}

// Values returns the records of the plotted dataset.
func (s Spec) Values() []market.StockValue {
	return s.Datasets[s.Data.Name]
}

// DatasetName derives a content-addressed name from the records.
func DatasetName(values []market.StockValue) (string, error) {
	raw, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("marshal dataset: %w", err)
	}
	sum := sha256.Sum256(raw)
	return "data-" + hex.EncodeToString(sum[:])[:32], nil
}

// Build returns the chart of values, most recent first, for kind.
func Build(kind market.Kind, values []market.StockValue) (Spec, error) {
	if values == nil {
		values = []market.StockValue{}
	}

	name, err := DatasetName(values)
	if err != nil {
		return Spec{}, err
	}

	spec := Spec{
		Schema:   SchemaURL,
		Config:   map[string]any{"view": map[string]any{"continuousWidth": 300, "continuousHeight": 300}},
		Data:     DataRef{Name: name},
		Datasets: map[string][]market.StockValue{name: values},
		Width:    Width,
		Height:   Height,
	}

	switch kind {
	case market.KindOHLC:
		spec.Layer = candlestick()
	case market.KindSimple:
		spec.Mark = map[string]any{"type": "line"}
		spec.Encoding = map[string]any{
			"x":       xDate(),
			"y":       map[string]any{"field": "close", "type": "quantitative", "title": "Price", "scale": map[string]any{"zero": false}},
			"tooltip": tooltip(),
		}
		spec.Params = []Param{zoom()}
	default:
		return Spec{}, fmt.Errorf("invalid kind: %q", kind)
	}
	return spec, nil
}

// candlestick is a rule from low to high under a bar from open to close,
// green when the price went up.
func candlestick() []Layer {
	color := map[string]any{
		"condition": map[string]any{"test": "datum.open <= datum.close", "value": colorUp},
		"value":     colorDown,
	}

	rule := Layer{
		Mark: map[string]any{"type": "rule"},
		Encoding: map[string]any{
			"x":     xDate(),
			"color": color,
			"y":     map[string]any{"field": "low", "type": "quantitative", "title": "Price", "scale": map[string]any{"zero": false}},
			"y2":    map[string]any{"field": "high"},
		},
		Params: []Param{zoom()},
	}
	bar := Layer{
		Mark: map[string]any{"type": "bar"},
		Encoding: map[string]any{
			"x":       xDate(),
			"color":   color,
			"y":       map[string]any{"field": "open", "type": "quantitative"},
			"y2":      map[string]any{"field": "close"},
			"tooltip": tooltip(),
		},
	}
	return []Layer{rule, bar}
}

func xDate() map[string]any {
	return map[string]any{
		"field":    "date",
		"type":     "ordinal",
		"timeUnit": "yearmonthdatehoursminutes",
		"axis":     map[string]any{"format": "%m/%d", "labelAngle": -45},
		"title":    "Date",
	}
}

func tooltip() []any {
	return []any{
		map[string]any{"field": "date", "type": "temporal", "timeUnit": "yearmonthdatehoursminutes"},
		map[string]any{"field": "close", "type": "quantitative"},
	}
}

func zoom() Param {
	return Param{
		Name:   "zoom",
		Select: map[string]any{"type": "interval", "encodings": []string{"x"}},
		Bind:   "scales",
	}
}
