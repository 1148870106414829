package metrics

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/hlarb/internal/domain"
)

func TestMetrics_ObserveOrder(t *testing.T) {
	m := New()
	m.ObserveOrder("HYPE", domain.SideBuy, domain.Accepted{ExchangeOrderID: 1, Fills: []domain.Fill{{Quantity: decimal.NewFromInt(1), Price: decimal.NewFromInt(24)}}}, 120*time.Millisecond)
	m.ObserveOrder("HYPE", domain.SideBuy, domain.Rejected{Reason: "x"}, 0)
	m.ObserveOrder("HYPE", domain.SideBuy, nil, time.Second)
	m.ObserveDryRun("HYPE", domain.SideSell)
	m.ObserveSkip("@107")
	m.ObserveReconcile(nil)
	m.ObserveReconcile(errors.New("boom"))
	m.SetBreakerHalted(true)

	got, err := m.Gather()
	require.NoError(t, err)
	assert.Equal(t, 1.0, got["hlarb_orders_total|outcome=accepted|side=buy|symbol=HYPE"])
	assert.Equal(t, 1.0, got["hlarb_orders_total|outcome=rejected|side=buy|symbol=HYPE"])
	assert.Equal(t, 1.0, got["hlarb_order_submit_seconds|symbol=HYPE"], "只有带耗时的订单计入直方图")
	assert.Equal(t, 1.0, got["hlarb_dry_run_intents_total|side=sell|symbol=HYPE"])
	assert.Equal(t, 1.0, got["hlarb_skipped_requests_total|symbol=@107"])
	assert.Equal(t, 1.0, got["hlarb_reconcile_total|result=ok"])
	assert.Equal(t, 1.0, got["hlarb_reconcile_total|result=error"])
	assert.Equal(t, 1.0, got["hlarb_breaker_halted"])
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveOrder("HYPE", domain.SideBuy, domain.Rejected{}, time.Second)
	m.ObserveReconcile(nil)
	m.SetBreakerHalted(true)
}

func TestStartAsync_ServesMetrics(t *testing.T) {
	m := New()
	m.ObserveReconcile(nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv, err := StartAsync(ctx, "127.0.0.1:0", m)
	require.NoError(t, err)

	resp, err := http.Get("http://" + srv.Addr + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `hlarb_reconcile_total{result="ok"} 1`))
}
