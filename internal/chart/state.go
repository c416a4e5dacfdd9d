// Package chart drives a chart view that follows the selected symbol and
// kind. Update is a pure state machine; Widget executes its effects.
package chart

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"marketchart/internal/market"

	"go.uber.org/zap/zapcore"
)

// Default option lists used when the page does not supply its own.
var (
	DefaultSymbols = []string{"AAPL", "MSFT", "META"}
	DefaultKinds   = []market.Kind{market.KindOHLC, market.KindSimple}
)

type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseInitializing
	PhaseRendered
	PhaseUpdating
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseInitializing:
		return "initializing"
	case PhaseRendered:
		return "rendered"
	case PhaseUpdating:
		return "updating"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// ViewID identifies a rendered view. Zero means no view.
type ViewID uint64

// State is the selection and rendering state of one chart.
type State struct {
	Symbol  string
	Kind    market.Kind
	Symbols []string
	Kinds   []market.Kind

	// Dataset is the data.name of the payload the view was embedded with.
	// Patches always target it.
	Dataset string
	View    ViewID
	Phase   Phase

	// Gen is bumped by every fetch. Completions carrying another value are
	// stale and discarded.
	Gen uint64
}

// Options are the selectable symbols and kinds. The first of each is
// selected initially.
type Options struct {
	Symbols []string
	Kinds   []market.Kind
}

// DefaultOptions returns the built-in option lists.
func DefaultOptions() Options {
	return Options{
		Symbols: slices.Clone(DefaultSymbols),
		Kinds:   slices.Clone(DefaultKinds),
	}
}

// ParseOptions decodes page-supplied JSON arrays. An empty string selects the
// default list.
func ParseOptions(symbolsJSON, kindsJSON string) (Options, error) {
	opts := DefaultOptions()
	if symbolsJSON != "" {
		var symbols []string
		if err := json.Unmarshal([]byte(symbolsJSON), &symbols); err != nil {
			return Options{}, fmt.Errorf("symbols: %w", err)
		}
		opts.Symbols = symbols
	}
	if kindsJSON != "" {
		var kinds []market.Kind
		if err := json.Unmarshal([]byte(kindsJSON), &kinds); err != nil {
			return Options{}, fmt.Errorf("kinds: %w", err)
		}
		opts.Kinds = kinds
	}
	return opts, opts.Validate()
}

func (o Options) Validate() error {
	if len(o.Symbols) == 0 {
		return errors.New("no symbol to choose from")
	}
	if len(o.Kinds) == 0 {
		return errors.New("no kind to choose from")
	}
	for _, k := range o.Kinds {
		if !k.IsValid() {
			return fmt.Errorf("invalid kind: %q", k)
		}
	}
	return nil
}

// NewState returns the uninitialized state selecting the first option of
// each list.
func NewState(opts Options) (State, error) {
	if err := opts.Validate(); err != nil {
		return State{}, err
	}
	return State{
		Symbol:  opts.Symbols[0],
		Kind:    opts.Kinds[0],
		Symbols: slices.Clone(opts.Symbols),
		Kinds:   slices.Clone(opts.Kinds),
		Phase:   PhaseUninitialized,
	}, nil
}

// DataURL is the endpoint of the current selection.
func (s State) DataURL() string {
	return DataURL(s.Symbol, s.Kind)
}

// Purpose tells what a fetched payload is for.
type Purpose int

const (
	PurposeInitialize Purpose = iota
	PurposeUpdate
)

func (p Purpose) String() string {
	if p == PurposeUpdate {
		return "update"
	}
	return "initialize"
}

// Events.
type (
	Event interface{ isEvent() }

	Start          struct{}
	KindSelected   struct{ Kind market.Kind }
	SymbolSelected struct{ Symbol string }

	PayloadFetched struct {
		Gen     uint64
		Purpose Purpose
		Payload Payload
	}
	FetchFailed struct {
		Gen     uint64
		Purpose Purpose
		Err     error
	}
	ViewEmbedded struct {
		Gen     uint64
		View    ViewID
		Dataset string
	}
	EmbedFailed struct {
		Gen uint64
		Err error
	}
	ViewPatched struct {
		Gen uint64
		Err error
	}
)

func (Start) isEvent()          {}
func (KindSelected) isEvent()   {}
func (SymbolSelected) isEvent() {}
func (PayloadFetched) isEvent() {}
func (FetchFailed) isEvent()    {}
func (ViewEmbedded) isEvent()   {}
func (EmbedFailed) isEvent()    {}
func (ViewPatched) isEvent()    {}

// Effects.
type (
	Effect interface{ isEffect() }

	Fetch struct {
		URL     string
		Gen     uint64
		Purpose Purpose
	}
	// Embed renders a new view from Payload.
	Embed struct {
		Gen     uint64
		Payload Payload
	}
	// Patch replaces every record of Dataset in View with Records, then
	// re-runs the view.
	Patch struct {
		Gen     uint64
		View    ViewID
		Dataset string
		Records []json.RawMessage
	}
	// Finalize discards View.
	Finalize struct{ View ViewID }
	Log      struct {
		Level zapcore.Level
		Msg   string
		Err   error
	}
)

func (Fetch) isEffect()    {}
func (Embed) isEffect()    {}
func (Patch) isEffect()    {}
func (Finalize) isEffect() {}
func (Log) isEffect()      {}
