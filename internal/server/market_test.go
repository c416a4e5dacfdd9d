package server_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"marketchart/config"
	"marketchart/internal/market"
	"marketchart/internal/server"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// go test -v --run ^TestValues$
func TestValues(t *testing.T) {
	h := newServer(seeded()).Handler()

	tests := []struct {
		target string
		count  int
	}{
		{"/values/AAPL?kind=simple", 30},
		{"/values/AAPL?kind=ohlc&limit=5", 5},
		{"/values/MSFT?kind=ohlc&limit=0", 30},
		{"/values/TSLA?kind=simple", 0},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := get(t, h, tt.target)
			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
			}
			var values []market.StockValue
			if err := json.Unmarshal(rec.Body.Bytes(), &values); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if values == nil || len(values) != tt.count {
				t.Fatalf("expected %d values, got %s", tt.count, rec.Body)
			}
			if tt.count > 0 && !values[0].Date.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
				t.Errorf("expected the most recent value first, got %s", values[0].Date)
			}
		})
	}
}

// go test -v --run ^TestValuesRejectsBadQuery$
func TestValuesRejectsBadQuery(t *testing.T) {
	h := newServer(seeded()).Handler()

	tests := []struct {
		target string
		code   string
	}{
		{"/values/AAPL", "INVALID_KIND"},
		{"/values/AAPL?kind=candles", "INVALID_KIND"},
		{"/values/AAPL?kind=ohlc&limit=-1", "INVALID_LIMIT"},
		{"/values/AAPL?kind=ohlc&limit=many", "INVALID_LIMIT"},
	}
	for _, tt := range tests {
		rec := get(t, h, tt.target)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", tt.target, rec.Code)
			continue
		}
		var body errorBody
		_ = json.Unmarshal(rec.Body.Bytes(), &body)
		if body.Error.Code != tt.code {
			t.Errorf("%s: expected %s, got %+v", tt.target, tt.code, body)
		}
	}
}

// go test -v --run ^TestCompanyInfos$
func TestCompanyInfos(t *testing.T) {
	h := newServer(seeded()).Handler()

	rec := get(t, h, "/company_infos?tickers=AAPL&tickers=TSLA")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var infos map[string]market.CompanyInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &infos); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(infos) != 1 || infos["AAPL"].Currency != "USD" {
		t.Errorf("expected AAPL only, got %+v", infos)
	}

	rec = get(t, h, "/company_infos")
	infos = nil
	_ = json.Unmarshal(rec.Body.Bytes(), &infos)
	if len(infos) != 3 {
		t.Errorf("expected every company, got %+v", infos)
	}

	rec = get(t, h, "/company_infos/MSFT")
	var info market.CompanyInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil || info.Symbol != "MSFT" {
		t.Errorf("expected MSFT, got %s (%v)", rec.Body, err)
	}

	rec = get(t, h, "/company_infos/TSLA")
	var body errorBody
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if rec.Code != http.StatusNotFound || body.Error.Code != "NOT_FOUND" {
		t.Errorf("expected 404, got %d: %s", rec.Code, rec.Body)
	}
}

// users accepts alice with the password "pw".
type users map[string]string

func (u users) Verify(username, password string) (bool, error) {
	want, ok := u[username]
	return ok && want == password, nil
}

// go test -v --run ^TestBasicAuth$
func TestBasicAuth(t *testing.T) {
	cfg := config.ServerConfig{Addr: "127.0.0.1:0", Mode: gin.TestMode}
	h := server.New(cfg, seeded(), nil, zap.NewNop(), server.WithUsers(users{"alice": "pw"})).Handler()

	request := func(target, user, password string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		if user != "" {
			req.SetBasicAuth(user, password)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	rec := request("/tickers", "", "")
	if rec.Code != http.StatusUnauthorized || rec.Header().Get("WWW-Authenticate") == "" {
		t.Errorf("expected a basic auth challenge, got %d", rec.Code)
	}
	if rec := request("/values/AAPL?kind=ohlc", "alice", "wrong"); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for a wrong password, got %d", rec.Code)
	}
	if rec := request("/tickers", "alice", "pw"); rec.Code != http.StatusOK {
		t.Errorf("expected 200 with credentials, got %d", rec.Code)
	}
	if rec := request("/health", "", ""); rec.Code != http.StatusOK {
		t.Errorf("expected /health to stay open, got %d", rec.Code)
	}
}
