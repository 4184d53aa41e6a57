package api

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/optsim/data"
	"github.com/rustyeddy/optsim/market"
	"github.com/rustyeddy/optsim/sim"
)

const call475 = "SPY240119C00475000"

func init() {
	gin.SetMode(gin.TestMode)
}

func at(day, hour, min int) time.Time {
	return time.Date(2024, 1, day, hour, min, 0, 0, time.UTC)
}

func newTestServer(t *testing.T, persist func(sim.SessionState) error) *Server {
	t.Helper()
	exp := time.Date(2024, 1, 19, 0, 0, 0, 0, time.UTC)
	m := data.NewMemory(data.NewCalendar())
	for _, ts := range []time.Time{at(16, 9, 30), at(16, 9, 45)} {
		require.NoError(t, m.AddQuotes(
			market.Quote{Timestamp: ts, Underlying: "SPY", Strike: 475, Expiry: exp, Type: market.Call, Bid: 5, Ask: 5.2, Volume: 1000, OpenInterest: 300},
			market.Quote{Timestamp: ts, Underlying: "SPY", Strike: 475, Expiry: exp, Type: market.Put, Bid: 4, Ask: 4.2, Volume: 900, OpenInterest: 200},
		))
		m.SetUnderlyingPrice("SPY", ts, 475)
	}

	e, err := sim.NewEngine(sim.Options{Provider: m, RiskFreeRate: 0.05})
	require.NoError(t, err)
	return NewServer(e, Options{
		Defaults: Defaults{Symbol: "SPY", Date: at(15, 0, 0), InitialCash: 100000, FillModel: "midpoint"},
		Persist:  persist,
		Logger:   log.New(io.Discard, "", 0),
	})
}

type envelope struct {
	Code  int             `json:"code"`
	Count int             `json:"count"`
	Data  json.RawMessage `json:"data"`
	Kind  string          `json:"kind"`
	Error string          `json:"error"`
}

func do(t *testing.T, s *Server, method, path, body string) (int, envelope) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestSessionFlow(t *testing.T) {
	var saved []sim.SessionState
	s := newTestServer(t, func(st sim.SessionState) error {
		saved = append(saved, st)
		return nil
	})

	code, env := do(t, s, http.MethodGet, "/api/status", "")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "InvalidState", env.Kind)

	code, env = do(t, s, http.MethodPost, "/api/start", `{"fill_model":"aggressive"}`)
	require.Equal(t, http.StatusCreated, code, string(env.Data))
	var st map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.Equal(t, "RUNNING", st["state"])
	assert.Equal(t, "aggressive", st["fill_model"])

	code, env = do(t, s, http.MethodPost, "/api/orders", `{"symbol":"`+call475+`","side":"buy","quantity":10}`)
	require.Equal(t, http.StatusCreated, code, env.Error)
	var tr map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &tr))
	assert.Equal(t, 5.2, tr["price"])

	code, env = do(t, s, http.MethodGet, "/api/account", "")
	require.Equal(t, http.StatusOK, code)
	var acct map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &acct))
	assert.Equal(t, 94800.0, acct["cash"])

	code, env = do(t, s, http.MethodPost, "/api/step?minutes=15", "")
	require.Equal(t, http.StatusOK, code, env.Error)
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.Equal(t, "2024-01-16T09:45:00Z", st["time"])

	code, env = do(t, s, http.MethodPost, "/api/step", `{"minutes":15}`)
	assert.Equal(t, http.StatusGone, code)
	assert.Equal(t, "EndOfData", env.Kind)

	code, env = do(t, s, http.MethodGet, "/api/positions", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, env.Count)

	code, env = do(t, s, http.MethodGet, "/api/history", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, env.Count)

	assert.Len(t, saved, 3, "start, order and the successful step persist")

	code, _ = do(t, s, http.MethodPost, "/api/reset", "")
	assert.Equal(t, http.StatusOK, code)
	code, _ = do(t, s, http.MethodGet, "/api/status", "")
	assert.Equal(t, http.StatusConflict, code)
}

func TestChainAndScan(t *testing.T) {
	s := newTestServer(t, nil)
	code, _ := do(t, s, http.MethodPost, "/api/start", "")
	require.Equal(t, http.StatusCreated, code)

	code, env := do(t, s, http.MethodGet, "/api/chain?expiry=2024-01-19", "")
	require.Equal(t, http.StatusOK, code)
	var ch struct {
		Rows []map[string]any `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &ch))
	require.Len(t, ch.Rows, 2)
	assert.Equal(t, call475, ch.Rows[0]["symbol"])

	code, env = do(t, s, http.MethodGet, "/api/chain?expiry=19-01-2024", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "InvalidInput", env.Kind)

	code, env = do(t, s, http.MethodGet, "/api/scan/unusual_volume?volume_oi_ratio=3", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 2, env.Count)

	code, _ = do(t, s, http.MethodGet, "/api/scan/earnings", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestOrderErrors(t *testing.T) {
	s := newTestServer(t, nil)
	code, _ := do(t, s, http.MethodPost, "/api/start", "")
	require.Equal(t, http.StatusCreated, code)

	tests := []struct {
		name   string
		body   string
		status int
		kind   string
	}{
		{"malformed json", `{"symbol":`, http.StatusBadRequest, "InvalidInput"},
		{"bad symbol", `{"symbol":"XYZ","side":"buy","quantity":1}`, http.StatusBadRequest, "InvalidContractSymbol"},
		{"unknown contract", `{"symbol":"SPY240119C00500000","side":"buy","quantity":1}`, http.StatusNotFound, "UnknownContract"},
		{"limit", `{"symbol":"` + call475 + `","side":"buy","quantity":1,"limit":1}`, http.StatusUnprocessableEntity, "LimitNotMarketable"},
		{"funds", `{"symbol":"` + call475 + `","side":"buy","quantity":400}`, http.StatusUnprocessableEntity, "InsufficientFunds"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := do(t, s, http.MethodPost, "/api/orders", tt.body)
			assert.Equal(t, tt.status, code)
			assert.Equal(t, tt.kind, env.Kind)
			assert.NotEmpty(t, env.Error)
		})
	}
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, statusFor(io.EOF))
	assert.Equal(t, http.StatusNotFound, statusFor(market.ErrNoDataForSymbol))
	assert.Equal(t, http.StatusConflict, statusFor(market.Errorf(market.KindInvalidState, "not running")))
}
