// Package httpcache stores successful GET responses in SQLite so that
// repeated provider calls within the expiry are served locally.
package httpcache

import (
	"bufio"
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// HeaderCached is set to "1" on responses served from the cache.
const HeaderCached = "X-From-Cache"

// Transport is an http.RoundTripper caching 2xx GET responses by URL.
type Transport struct {
	db     *sql.DB
	mu     sync.Mutex
	ttl    time.Duration
	next   http.RoundTripper
	logger *zap.Logger
	now    func() time.Time
}

// Open opens (or creates) the cache database at path. next performs the
// requests that miss; nil selects http.DefaultTransport.
func Open(path string, ttl time.Duration, next http.RoundTripper, logger *zap.Logger) (*Transport, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	stmt := `CREATE TABLE IF NOT EXISTS responses (
		url        TEXT PRIMARY KEY,
		stored_at  INTEGER NOT NULL,
		response   BLOB NOT NULL
	)`
	if _, err := db.Exec(stmt); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	if next == nil {
		next = http.DefaultTransport
	}
	return &Transport{db: db, ttl: ttl, next: next, logger: logger, now: time.Now}, nil
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet {
		return t.next.RoundTrip(req)
	}

	key := req.URL.String()
	if resp, ok := t.lookup(req, key); ok {
		t.logger.Debug("http cache hit", zap.String("url", redact(req)))
		return resp, nil
	}

	resp, err := t.next.RoundTrip(req)
	if err != nil || resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, err
	}

	raw, err := httputil.DumpResponse(resp, true)
	if err != nil {
		resp.Body.Close()
		return nil, fmt.Errorf("dump response: %w", err)
	}
	// DumpResponse has replaced resp.Body with an in-memory copy

	t.mu.Lock()
	_, err = t.db.ExecContext(req.Context(),
		`INSERT INTO responses (url, stored_at, response) VALUES (?, ?, ?)
		 ON CONFLICT(url) DO UPDATE SET stored_at = excluded.stored_at, response = excluded.response`,
		key, t.now().Unix(), raw)
	t.mu.Unlock()
	if err != nil {
		t.logger.Warn("http cache write failed", zap.String("url", redact(req)), zap.Error(err))
	}
	return resp, nil
}

func (t *Transport) lookup(req *http.Request, key string) (*http.Response, bool) {
	var storedAt int64
	var raw []byte
	err := t.db.QueryRowContext(req.Context(),
		`SELECT stored_at, response FROM responses WHERE url = ?`, key).Scan(&storedAt, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false
	}
	if err != nil {
		t.logger.Warn("http cache read failed", zap.Error(err))
		return nil, false
	}

	if t.now().Sub(time.Unix(storedAt, 0)) > t.ttl {
		return nil, false
	}

	resp, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(raw)), req)
	if err != nil {
		t.logger.Warn("http cache entry unreadable", zap.Error(err))
		return nil, false
	}
	resp.Header.Set(HeaderCached, "1")
	return resp, true
}

// Purge removes entries older than the expiry.
func (t *Transport) Purge() (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	res, err := t.db.Exec(`DELETE FROM responses WHERE stored_at < ?`, t.now().Add(-t.ttl).Unix())
	if err != nil {
		return 0, fmt.Errorf("purge: %w", err)
	}
	return res.RowsAffected()
}

func (t *Transport) Close() error {
	return t.db.Close()
}

// redact drops the query string, which carries the API key.
func redact(req *http.Request) string {
	u := *req.URL
	u.RawQuery = ""
	return u.String()
}
