package chart

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sync"

	"marketchart/internal/market"

	"go.uber.org/zap"
)

var ErrStopped = errors.New("chart widget stopped")

// Fetcher performs the GET of a chart data URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Renderer owns the views. Patch replaces the whole content of dataset
// inside view and re-runs it.
type Renderer interface {
	Embed(ctx context.Context, payload Payload) (ViewID, error)
	Patch(ctx context.Context, view ViewID, dataset string, records []json.RawMessage) error
	Finalize(ctx context.Context, view ViewID) error
}

// Widget runs the chart state machine. Events are applied by Run one at a
// time; fetches run in their own goroutines and report back as events.
type Widget struct {
	fetcher  Fetcher
	renderer Renderer
	logger   *zap.Logger

	events chan Event
	done   chan struct{}

	mu    sync.RWMutex
	state State
}

func NewWidget(opts Options, fetcher Fetcher, renderer Renderer, logger *zap.Logger) (*Widget, error) {
	state, err := NewState(opts)
	if err != nil {
		return nil, err
	}
	return &Widget{
		fetcher:  fetcher,
		renderer: renderer,
		logger:   logger,
		events:   make(chan Event, 16),
		done:     make(chan struct{}),
		state:    state,
	}, nil
}

// Snapshot returns a copy of the current state.
func (w *Widget) Snapshot() State {
	w.mu.RLock()
	defer w.mu.RUnlock()

	s := w.state
	s.Symbols = slices.Clone(s.Symbols)
	s.Kinds = slices.Clone(s.Kinds)
	return s
}

// Send queues ev for Run.
func (w *Widget) Send(ctx context.Context, ev Event) error {
	select {
	case <-w.done:
		return ErrStopped
	default:
	}

	select {
	case w.events <- ev:
		return nil
	case <-w.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Widget) SelectSymbol(ctx context.Context, symbol string) error {
	return w.Send(ctx, SymbolSelected{Symbol: symbol})
}

func (w *Widget) SelectKind(ctx context.Context, kind market.Kind) error {
	return w.Send(ctx, KindSelected{Kind: kind})
}

// Run starts the chart and applies events until ctx is done. The current
// view, if any, is finalized on return.
func (w *Widget) Run(ctx context.Context) error {
	defer close(w.done)

	w.apply(ctx, Start{})
	for {
		select {
		case <-ctx.Done():
			if view := w.Snapshot().View; view != 0 {
				if err := w.renderer.Finalize(context.WithoutCancel(ctx), view); err != nil {
					w.logger.Debug("failed to finalize view on stop", zap.Error(err))
				}
			}
			return nil
		case ev := <-w.events:
			w.apply(ctx, ev)
		}
	}
}

// apply runs ev and the events produced by its synchronous effects.
func (w *Widget) apply(ctx context.Context, ev Event) {
	pending := []Event{ev}
	for len(pending) > 0 {
		ev, pending = pending[0], pending[1:]

		w.mu.Lock()
		next, effects := Update(w.state, ev)
		w.state = next
		w.mu.Unlock()

		for _, effect := range effects {
			if follow := w.execute(ctx, effect); follow != nil {
				pending = append(pending, follow)
			}
		}
	}
}

func (w *Widget) execute(ctx context.Context, effect Effect) Event {
	switch e := effect.(type) {
	case Fetch:
		go w.fetch(ctx, e)
		return nil

	case Embed:
		view, err := w.renderer.Embed(ctx, e.Payload)
		if err != nil {
			return EmbedFailed{Gen: e.Gen, Err: err}
		}
		return ViewEmbedded{Gen: e.Gen, View: view, Dataset: e.Payload.DataName}

	case Patch:
		err := w.renderer.Patch(ctx, e.View, e.Dataset, e.Records)
		return ViewPatched{Gen: e.Gen, Err: err}

	case Finalize:
		if err := w.renderer.Finalize(ctx, e.View); err != nil {
			w.logger.Warn("failed to finalize view", zap.Uint64("view", uint64(e.View)), zap.Error(err))
		}
		return nil

	case Log:
		fields := []zap.Field{zap.Uint64("generation", w.Snapshot().Gen)}
		if e.Err != nil {
			fields = append(fields, zap.Error(e.Err))
		}
		if ce := w.logger.Check(e.Level, e.Msg); ce != nil {
			ce.Write(fields...)
		}
		return nil

	default:
		w.logger.Warn("unknown chart effect", zap.Any("effect", effect))
		return nil
	}
}

func (w *Widget) fetch(ctx context.Context, f Fetch) {
	var ev Event
	raw, err := w.fetcher.Fetch(ctx, f.URL)
	if err == nil {
		var payload Payload
		payload, err = ParsePayload(raw)
		if err == nil {
			ev = PayloadFetched{Gen: f.Gen, Purpose: f.Purpose, Payload: payload}
		}
	}
	if err != nil {
		ev = FetchFailed{Gen: f.Gen, Purpose: f.Purpose, Err: err}
	}

	if err := w.Send(ctx, ev); err != nil {
		w.logger.Debug("dropped fetch result", zap.String("url", f.URL), zap.Error(err))
	}
}
