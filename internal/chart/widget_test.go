package chart_test

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"marketchart/internal/chart"
	"marketchart/internal/market"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// fakeFetcher serves one payload per URL. A URL with a gate blocks until the
// gate is closed.
type fakeFetcher struct {
	mu     sync.Mutex
	bodies map[string]string
	gates  map[string]chan struct{}
}

func newFakeFetcher() *fakeFetcher {
	f := &fakeFetcher{bodies: map[string]string{}, gates: map[string]chan struct{}{}}
	for i, symbol := range chart.DefaultSymbols {
		for _, kind := range chart.DefaultKinds {
			name := fmt.Sprintf("data-%s-%s", symbol, kind)
			records := strings.TrimSuffix(strings.Repeat(`{"close":1},`, i+2), ",")
			f.bodies[chart.DataURL(symbol, kind)] = fmt.Sprintf(`{"data":{"name":%q},"datasets":{%q:[%s]}}`, name, name, records)
		}
	}
	return f
}

func (f *fakeFetcher) gate(url string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	g := make(chan struct{})
	f.gates[url] = g
	return g
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	body, ok := f.bodies[url]
	g := f.gates[url]
	f.mu.Unlock()

	if g != nil {
		select {
		case <-g:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if !ok {
		return nil, fmt.Errorf("GET %s: 404", url)
	}
	return []byte(body), nil
}

// fakeRenderer keeps the records of every live view in memory.
type fakeRenderer struct {
	mu        sync.Mutex
	next      chart.ViewID
	views     map[chart.ViewID]map[string][]json.RawMessage
	finalized []chart.ViewID
	patches   int
}

func newFakeRenderer() *fakeRenderer {
	return &fakeRenderer{views: map[chart.ViewID]map[string][]json.RawMessage{}}
}

func (r *fakeRenderer) Embed(_ context.Context, p chart.Payload) (chart.ViewID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	r.views[r.next] = map[string][]json.RawMessage{p.DataName: p.Records}
	return r.next, nil
}

func (r *fakeRenderer) Patch(_ context.Context, view chart.ViewID, dataset string, records []json.RawMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	datasets, ok := r.views[view]
	if !ok {
		return fmt.Errorf("view %d is gone", view)
	}
	if _, ok := datasets[dataset]; !ok {
		return fmt.Errorf("view %d has no dataset %s", view, dataset)
	}
	datasets[dataset] = records
	r.patches++
	return nil
}

func (r *fakeRenderer) Finalize(_ context.Context, view chart.ViewID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.views, view)
	r.finalized = append(r.finalized, view)
	return nil
}

func (r *fakeRenderer) records(view chart.ViewID, dataset string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views[view][dataset])
}

func (r *fakeRenderer) wasFinalized(view chart.ViewID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.finalized {
		if v == view {
			return true
		}
	}
	return false
}

func (r *fakeRenderer) patchCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.patches
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func startWidget(t *testing.T, fetcher chart.Fetcher, renderer chart.Renderer, logger *zap.Logger) (*chart.Widget, func()) {
	t.Helper()
	w, err := chart.NewWidget(chart.DefaultOptions(), fetcher, renderer, logger)
	if err != nil {
		t.Fatalf("new widget: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	stop := func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("run: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("widget did not stop")
		}
	}
	return w, stop
}

// go test -v --run ^TestWidgetLifecycle$
func TestWidgetLifecycle(t *testing.T) {
	renderer := newFakeRenderer()
	w, stop := startWidget(t, newFakeFetcher(), renderer, zap.NewNop())
	ctx := context.Background()

	waitFor(t, "first render", func() bool { return w.Snapshot().Phase == chart.PhaseRendered })
	first := w.Snapshot()
	if first.Dataset != "data-AAPL-ohlc" || renderer.records(first.View, first.Dataset) != 2 {
		t.Fatalf("unexpected first render %+v", first)
	}

	// symbol change: same view, recorded dataset fully replaced
	if err := w.SelectSymbol(ctx, "META"); err != nil {
		t.Fatalf("select symbol: %v", err)
	}
	waitFor(t, "patch", func() bool { return renderer.patchCount() == 1 && w.Snapshot().Phase == chart.PhaseRendered })
	patched := w.Snapshot()
	if patched.View != first.View || patched.Dataset != first.Dataset {
		t.Fatalf("expected the view to be patched in place, got %+v", patched)
	}
	if got := renderer.records(first.View, first.Dataset); got != 4 {
		t.Errorf("expected the dataset to hold META's 4 records, got %d", got)
	}

	// kind change: old view discarded, new one embedded
	if err := w.SelectKind(ctx, market.KindSimple); err != nil {
		t.Fatalf("select kind: %v", err)
	}
	waitFor(t, "new view", func() bool {
		s := w.Snapshot()
		return s.Phase == chart.PhaseRendered && s.View != first.View && s.View != 0
	})
	second := w.Snapshot()
	if !renderer.wasFinalized(first.View) {
		t.Error("expected the first view to be finalized")
	}
	if second.Dataset != "data-META-simple" {
		t.Errorf("unexpected dataset %s", second.Dataset)
	}

	stop()
	if !renderer.wasFinalized(second.View) {
		t.Error("expected the last view to be finalized on stop")
	}
	if err := w.SelectSymbol(ctx, "AAPL"); err != chart.ErrStopped {
		t.Errorf("expected ErrStopped after stop, got %v", err)
	}
}

// go test -v --run ^TestWidgetDiscardsStaleUpdate$
func TestWidgetDiscardsStaleUpdate(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	fetcher := newFakeFetcher()
	renderer := newFakeRenderer()
	w, stop := startWidget(t, fetcher, renderer, zap.New(core))
	defer stop()
	ctx := context.Background()

	waitFor(t, "first render", func() bool { return w.Snapshot().Phase == chart.PhaseRendered })
	first := w.Snapshot().View

	gate := fetcher.gate(chart.DataURL("MSFT", market.KindOHLC))
	if err := w.SelectSymbol(ctx, "MSFT"); err != nil {
		t.Fatalf("select symbol: %v", err)
	}
	waitFor(t, "update", func() bool { return w.Snapshot().Phase == chart.PhaseUpdating })

	if err := w.SelectKind(ctx, market.KindSimple); err != nil {
		t.Fatalf("select kind: %v", err)
	}
	waitFor(t, "new view", func() bool {
		s := w.Snapshot()
		return s.Phase == chart.PhaseRendered && s.View != first
	})

	// release the superseded symbol fetch
	close(gate)
	waitFor(t, "stale payload log", func() bool {
		return logs.FilterMessageSnippet("stale payload").Len() == 1
	})

	if renderer.patchCount() != 0 {
		t.Errorf("expected no patch, got %d", renderer.patchCount())
	}
	s := w.Snapshot()
	if s.Kind != market.KindSimple || s.Symbol != "MSFT" || s.Phase != chart.PhaseRendered {
		t.Errorf("unexpected state %+v", s)
	}
}

// go test -v --run ^TestWidgetFetchFailure$
func TestWidgetFetchFailure(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	fetcher := newFakeFetcher()
	fetcher.bodies[chart.DataURL("AAPL", market.KindOHLC)] = `{"mark":"line"}`

	w, stop := startWidget(t, fetcher, newFakeRenderer(), zap.New(core))
	defer stop()

	waitFor(t, "error log", func() bool { return logs.Len() == 1 })
	if s := w.Snapshot(); s.Phase != chart.PhaseUninitialized || s.View != 0 {
		t.Errorf("expected no chart, got %+v", s)
	}

	// a later selection starts over
	if err := w.SelectSymbol(context.Background(), "MSFT"); err != nil {
		t.Fatalf("select symbol: %v", err)
	}
	waitFor(t, "render", func() bool { return w.Snapshot().Phase == chart.PhaseRendered })
}
