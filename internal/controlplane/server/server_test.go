package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/hlarb/internal/domain"
	"github.com/betbot/hlarb/internal/journal"
	"github.com/betbot/hlarb/internal/risk"
)

type fakeExposure struct {
	snap  *domain.ExposureSnapshot
	err   error
	calls int
}

func (f *fakeExposure) Snapshot(context.Context) (*domain.ExposureSnapshot, error) {
	f.calls++
	return f.snap, f.err
}

type fakeQuotes struct {
	q   domain.Quote
	err error
}

func (f fakeQuotes) Quote(_ context.Context, symbol string) (domain.Quote, error) {
	if f.err != nil {
		return domain.Quote{}, f.err
	}
	q := f.q
	q.Symbol = symbol
	return q, nil
}

type fakeJournal struct {
	recs []domain.ExecutionRecord
	opt  journal.ListOptions
}

func (f *fakeJournal) List(_ context.Context, opt journal.ListOptions) ([]domain.ExecutionRecord, error) {
	f.opt = opt
	return f.recs, nil
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestServer(t *testing.T, cfg Config) http.Handler {
	t.Helper()
	cfg.Addr = "127.0.0.1:0"
	s, err := New(cfg)
	require.NoError(t, err)
	return s.Router()
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestServer_Healthz(t *testing.T) {
	rec := get(t, newTestServer(t, Config{}), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_Exposure(t *testing.T) {
	snap := domain.NewExposureSnapshot("0xabc",
		map[string]decimal.Decimal{"USDC": dec("150.25")},
		domain.PerpState{AccountValueUSD: dec("98.7"), Positions: []domain.PerpPosition{{Symbol: "HYPE", Size: dec("-1.5")}}},
		time.Unix(1700000000, 0).UTC())
	src := &fakeExposure{snap: snap}
	h := newTestServer(t, Config{Exposure: src})

	rec := get(t, h, "/api/exposure")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Account         string                         `json:"account"`
		SpotBalances    map[string]decimal.Decimal     `json:"spot_balances"`
		PerpPositions   map[string]domain.PerpPosition `json:"perp_positions"`
		AccountValueUSD decimal.Decimal                `json:"account_value_usd"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "0xabc", body.Account)
	assert.True(t, body.SpotBalances["USDC"].Equal(dec("150.25")))
	assert.True(t, body.PerpPositions["HYPE"].Size.Equal(dec("-1.5")))

	// 每次请求都重新对账
	get(t, h, "/api/exposure")
	assert.Equal(t, 2, src.calls)
}

func TestServer_ExposureTransportFailure(t *testing.T) {
	src := &fakeExposure{err: errors.Wrap(domain.NewTransportError(errors.New("timeout")), "查询现货余额失败")}
	rec := get(t, newTestServer(t, Config{Exposure: src}), "/api/exposure")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "error")
}

func TestServer_Quote(t *testing.T) {
	q, err := domain.NewQuote("", decimal.NewNullDecimal(dec("23.9")), decimal.NewNullDecimal(dec("24.1")))
	require.NoError(t, err)
	rec := get(t, newTestServer(t, Config{Quotes: fakeQuotes{q: q}}), "/api/quote/@107")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "@107", body["symbol"])
	assert.Equal(t, "23.9", body["best_bid"])
	assert.Equal(t, "24", body["mid"])
	assert.Equal(t, "83.33", body["spread_bps"])
}

func TestServer_QuoteEmptySide(t *testing.T) {
	q, err := domain.NewQuote("", decimal.NewNullDecimal(dec("23.9")), decimal.NullDecimal{})
	require.NoError(t, err)
	rec := get(t, newTestServer(t, Config{Quotes: fakeQuotes{q: q}}), "/api/quote/HYPE")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Nil(t, body["best_ask"])
	assert.NotContains(t, body, "mid")
}

func TestServer_QuoteErrors(t *testing.T) {
	rec := get(t, newTestServer(t, Config{Quotes: fakeQuotes{err: errors.Wrap(domain.ErrInvalidInput, "未知交易对")}}), "/api/quote/DOGE")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get(t, newTestServer(t, Config{}), "/api/quote/HYPE")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_Journal(t *testing.T) {
	j := &fakeJournal{recs: []domain.ExecutionRecord{{ID: 2, Symbol: "HYPE", Outcome: "accepted"}}}
	h := newTestServer(t, Config{Journal: j})

	rec := get(t, h, "/api/journal?symbol=HYPE&limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, journal.ListOptions{Symbol: "HYPE", Limit: 5}, j.opt)

	var body []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 1)
	assert.Equal(t, "accepted", body[0]["outcome"])

	rec = get(t, h, "/api/journal?limit=abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	j.recs = nil
	rec = get(t, h, "/api/journal")
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestServer_Breaker(t *testing.T) {
	cb := risk.NewCircuitBreaker(risk.CircuitBreakerConfig{MaxConsecutiveErrors: 3})
	cb.Record(domain.Rejected{Reason: "x"})
	rec := get(t, newTestServer(t, Config{Breaker: cb}), "/api/breaker")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"halted":false,"consecutive_errors":1,"max_errors":3}`, rec.Body.String())
}

func TestNew_RequiresAddr(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestServer_Metrics(t *testing.T) {
	h := newTestServer(t, Config{})
	assert.Equal(t, http.StatusNotFound, get(t, h, "/metrics").Code)

	h = newTestServer(t, Config{Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("hlarb_orders_total 0\n"))
	})})
	rec := get(t, h, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "hlarb_orders_total")
}
