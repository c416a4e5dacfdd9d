// Package live serves chart sessions over a websocket. The browser element
// only executes the frames it receives; the refresh logic runs server side.
package live

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"marketchart/internal/chart"
	"marketchart/internal/market"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4096
)

// Frame types.
const (
	TypeSession  = "session"
	TypeSelect   = "select"
	TypeEmbed    = "embed"
	TypeChange   = "change"
	TypeFinalize = "finalize"
	TypeError    = "error"
)

// SelectMessage is sent by the browser when a dropdown changes. Exactly one
// of Symbol and Kind is set.
type SelectMessage struct {
	Type   string      `json:"type"`
	Symbol string      `json:"symbol,omitempty"`
	Kind   market.Kind `json:"kind,omitempty"`
}

type SessionFrame struct {
	Type    string        `json:"type"`
	Session string        `json:"session"`
	Symbol  string        `json:"symbol"`
	Kind    market.Kind   `json:"kind"`
	Symbols []string      `json:"symbols"`
	Kinds   []market.Kind `json:"kinds"`
}

// EmbedFrame asks the browser to render Spec as a new view.
type EmbedFrame struct {
	Type string          `json:"type"`
	View chart.ViewID    `json:"view"`
	Spec json.RawMessage `json:"spec"`
}

// ChangeFrame replaces every record of Dataset in View with Values.
type ChangeFrame struct {
	Type    string            `json:"type"`
	View    chart.ViewID      `json:"view"`
	Dataset string            `json:"dataset"`
	Values  []json.RawMessage `json:"values"`
}

type FinalizeFrame struct {
	Type string       `json:"type"`
	View chart.ViewID `json:"view"`
}

type ErrorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Handler upgrades requests to chart sessions. The optional "tickers" and
// "kinds" query parameters are JSON arrays overriding the default options.
type Handler struct {
	upgrader websocket.Upgrader
	fetcher  chart.Fetcher
	logger   *zap.Logger

	active atomic.Int64
}

func NewHandler(fetcher chart.Fetcher, logger *zap.Logger) *Handler {
	return &Handler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		fetcher: fetcher,
		logger:  logger,
	}
}

// Active returns the number of open sessions.
func (h *Handler) Active() int64 {
	return h.active.Load()
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts, err := chart.ParseOptions(q.Get("tickers"), q.Get("kinds"))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid chart options: %v", err), http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader already replied
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	id := uuid.NewString()
	s := &session{
		id:     id,
		conn:   conn,
		logger: h.logger.With(zap.String("session", id)),
	}

	h.active.Add(1)
	defer h.active.Add(-1)

	if err := s.serve(r.Context(), opts, h.fetcher); err != nil {
		s.logger.Warn("chart session ended with error", zap.Error(err))
	}
}

// session is one browser chart. It is the chart.Renderer of its widget.
type session struct {
	id     string
	conn   *websocket.Conn
	logger *zap.Logger

	writeMu sync.Mutex
	views   atomic.Uint64
}

func (s *session) serve(ctx context.Context, opts chart.Options, fetcher chart.Fetcher) error {
	defer s.conn.Close()

	widget, err := chart.NewWidget(opts, fetcher, s, s.logger)
	if err != nil {
		return err
	}

	initial := widget.Snapshot()
	if err := s.write(SessionFrame{
		Type:    TypeSession,
		Session: s.id,
		Symbol:  initial.Symbol,
		Kind:    initial.Kind,
		Symbols: initial.Symbols,
		Kinds:   initial.Kinds,
	}); err != nil {
		return err
	}
	s.logger.Info("chart session started", zap.String("symbol", initial.Symbol), zap.String("kind", string(initial.Kind)))

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := widget.Run(ctx); err != nil {
			s.logger.Warn("chart widget stopped", zap.Error(err))
		}
	}()
	go func() {
		defer wg.Done()
		s.ping(ctx)
	}()

	err = s.readLoop(ctx, widget)
	cancel()
	wg.Wait()

	s.logger.Info("chart session closed")
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return nil
	}
	return err
}

func (s *session) readLoop(ctx context.Context, widget *chart.Widget) error {
	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return err
		}
		var msg SelectMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Warn("ignoring malformed message", zap.Error(err))
			continue
		}

		switch {
		case msg.Type != TypeSelect:
			err = s.write(ErrorFrame{Type: TypeError, Message: fmt.Sprintf("unknown message type %q", msg.Type)})
		case msg.Kind != "":
			err = widget.SelectKind(ctx, msg.Kind)
		case msg.Symbol != "":
			err = widget.SelectSymbol(ctx, msg.Symbol)
		default:
			err = s.write(ErrorFrame{Type: TypeError, Message: "select needs a symbol or a kind"})
		}
		if err != nil {
			return err
		}
	}
}

func (s *session) ping(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.writeMu.Lock()
			err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			s.writeMu.Unlock()
			if err != nil {
				s.logger.Debug("ping failed", zap.Error(err))
				return
			}
		}
	}
}

func (s *session) write(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(v)
}

func (s *session) Embed(_ context.Context, payload chart.Payload) (chart.ViewID, error) {
	view := chart.ViewID(s.views.Add(1))
	if err := s.write(EmbedFrame{Type: TypeEmbed, View: view, Spec: payload.Spec}); err != nil {
		return 0, fmt.Errorf("send embed: %w", err)
	}
	return view, nil
}

func (s *session) Patch(_ context.Context, view chart.ViewID, dataset string, records []json.RawMessage) error {
	if records == nil {
		records = []json.RawMessage{}
	}
	if err := s.write(ChangeFrame{Type: TypeChange, View: view, Dataset: dataset, Values: records}); err != nil {
		return fmt.Errorf("send change: %w", err)
	}
	return nil
}

func (s *session) Finalize(_ context.Context, view chart.ViewID) error {
	if err := s.write(FinalizeFrame{Type: TypeFinalize, View: view}); err != nil {
		return fmt.Errorf("send finalize: %w", err)
	}
	return nil
}
