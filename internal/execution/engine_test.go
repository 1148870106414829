package execution

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/hlarb/internal/domain"
	"github.com/betbot/hlarb/internal/risk"
)

type engineFixture struct {
	books    *fakeBooks
	orders   *fakeOrders
	recorder *fakeRecorder
	breaker  *risk.CircuitBreaker
	engine   *Engine
}

func newEngineFixture(t *testing.T, cfg EngineConfig, outcome domain.OrderOutcome, opts ...EngineOption) *engineFixture {
	t.Helper()
	if cfg.SlippageTolerance.IsZero() {
		cfg.SlippageTolerance = d("0.05")
	}
	params, err := risk.NewParams(d("100"), d("200"), 2)
	require.NoError(t, err)

	f := &engineFixture{
		books:    &fakeBooks{quotes: map[string]domain.Quote{"HYPE": mustQuote("HYPE", "23.90", "24.00")}},
		orders:   &fakeOrders{outcome: outcome},
		recorder: &fakeRecorder{},
		breaker:  risk.NewCircuitBreaker(risk.CircuitBreakerConfig{MaxConsecutiveErrors: 2}),
	}
	opts = append([]EngineOption{WithRecorder(f.recorder), WithCircuitBreaker(f.breaker)}, opts...)
	f.engine, err = NewEngine(cfg, params, f.books, f.orders, opts...)
	require.NoError(t, err)
	return f
}

func buyRequest(notional string) TradeRequest {
	return TradeRequest{
		Symbol:      "HYPE",
		Side:        domain.SideBuy,
		NotionalUSD: d(notional),
		TimeInForce: domain.TifIoc,
	}
}

func TestEngine_BuyFills(t *testing.T) {
	fill := domain.Accepted{ExchangeOrderID: 9, Fills: []domain.Fill{{Quantity: d("0.5"), Price: d("24.01")}}}
	f := newEngineFixture(t, EngineConfig{}, fill)

	exec, err := f.engine.Execute(context.Background(), buyRequest("12"))
	require.NoError(t, err)

	assert.True(t, exec.ReferencePrice.Equal(d("24")))
	assert.True(t, exec.Sizing.RoundedQuantity.Equal(d("0.5")))
	assert.True(t, exec.LimitPrice.Equal(d("25.2")), exec.LimitPrice.String())
	assert.False(t, exec.Skipped)
	assert.False(t, exec.DryRun)
	assert.Equal(t, StateAccepted, exec.Ticket.State())
	assert.Equal(t, fill, exec.Outcome())

	sent := f.orders.submitted()
	require.Len(t, sent, 1)
	assert.Equal(t, domain.SideBuy, sent[0].Side())
	assert.Equal(t, domain.TifIoc, sent[0].TimeInForce())
	assert.True(t, sent[0].Quantity().Equal(d("0.5")))
	_, hasCloid := sent[0].ClientOrderID()
	assert.True(t, hasCloid)

	require.Len(t, f.recorder.recs, 1)
	rec := f.recorder.recs[0]
	assert.Equal(t, "accepted", rec.Outcome)
	assert.Equal(t, int64(9), rec.ExchangeOID)
	assert.True(t, rec.FilledQuantity.Equal(d("0.5")))
	assert.True(t, rec.AvgFillPrice.Valid)
}

func TestEngine_SellUsesBid(t *testing.T) {
	f := newEngineFixture(t, EngineConfig{}, domain.Accepted{ExchangeOrderID: 1})
	req := buyRequest("12")
	req.Side = domain.SideSell

	exec, err := f.engine.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, exec.ReferencePrice.Equal(d("23.9")))
	// 23.9 * 0.95
	assert.True(t, exec.LimitPrice.Equal(d("22.705")), exec.LimitPrice.String())
}

func TestEngine_EmptyBookBeforeSizing(t *testing.T) {
	f := newEngineFixture(t, EngineConfig{}, domain.Accepted{})
	f.books.quotes["HYPE"] = mustQuote("HYPE", "23.9", "")

	exec, err := f.engine.Execute(context.Background(), buyRequest("12"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrEmptyBook))
	assert.True(t, exec.Sizing.RoundedQuantity.IsZero())
	assert.Nil(t, exec.Intent)
	assert.Empty(t, f.orders.submitted())
}

func TestEngine_SkipsWhenTooSmall(t *testing.T) {
	f := newEngineFixture(t, EngineConfig{}, domain.Accepted{})
	f.books.quotes["HYPE"] = mustQuote("HYPE", "49", "50.00")

	exec, err := f.engine.Execute(context.Background(), buyRequest("0.001"))
	require.NoError(t, err)
	assert.True(t, exec.Skipped)
	assert.True(t, exec.Sizing.RawQuantity.Equal(d("0.00002")))
	assert.Nil(t, exec.Ticket)
	assert.Empty(t, f.orders.submitted())
	assert.Empty(t, f.recorder.recs)
}

func TestEngine_DryRun(t *testing.T) {
	f := newEngineFixture(t, EngineConfig{DryRun: true}, domain.Accepted{})

	exec, err := f.engine.Execute(context.Background(), buyRequest("12"))
	require.NoError(t, err)
	assert.True(t, exec.DryRun)
	require.NotNil(t, exec.Intent)
	assert.Nil(t, exec.Outcome())
	assert.Empty(t, f.orders.submitted())

	require.Len(t, f.recorder.recs, 1)
	assert.True(t, f.recorder.recs[0].DryRun)
	assert.Equal(t, "dry_run", f.recorder.recs[0].Outcome)
}

func TestEngine_RejectedAndBreaker(t *testing.T) {
	f := newEngineFixture(t, EngineConfig{}, domain.Rejected{Reason: "Order could not immediately match against any resting orders."})

	for i := 0; i < 2; i++ {
		exec, err := f.engine.Execute(context.Background(), buyRequest("12"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrRejected))
		assert.Equal(t, StateRejected, exec.Ticket.State())
	}

	_, err := f.engine.Execute(context.Background(), buyRequest("12"))
	assert.True(t, errors.Is(err, domain.ErrCircuitBreakerOpen))
	assert.Len(t, f.orders.submitted(), 2)
	assert.True(t, f.breaker.State().Halted)

	f.breaker.Resume()
	f.orders.outcome = domain.Accepted{ExchangeOrderID: 5}
	_, err = f.engine.Execute(context.Background(), buyRequest("12"))
	assert.NoError(t, err)
}

func TestEngine_TransportFailure(t *testing.T) {
	f := newEngineFixture(t, EngineConfig{}, domain.TransportFailure{Cause: context.DeadlineExceeded})
	exec, err := f.engine.Execute(context.Background(), buyRequest("12"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTransportFailure))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, StateTransportFailure, exec.Ticket.State())
	require.Len(t, f.recorder.recs, 1)
	assert.Equal(t, "transport_failure", f.recorder.recs[0].Outcome)
}

func TestEngine_RiskLimit(t *testing.T) {
	f := newEngineFixture(t, EngineConfig{}, domain.Accepted{})
	_, err := f.engine.Execute(context.Background(), buyRequest("100.01"))
	assert.True(t, errors.Is(err, domain.ErrRiskLimit))
	assert.Zero(t, f.books.calls, "风控拒绝前不应拉取盘口")
}

func TestEngine_InvalidRequest(t *testing.T) {
	f := newEngineFixture(t, EngineConfig{}, domain.Accepted{})
	bad := []TradeRequest{
		{Side: domain.SideBuy, NotionalUSD: d("1"), TimeInForce: domain.TifIoc},
		{Symbol: "HYPE", Side: "long", NotionalUSD: d("1"), TimeInForce: domain.TifIoc},
		{Symbol: "HYPE", Side: domain.SideBuy, NotionalUSD: d("1"), TimeInForce: "Fok"},
		{Symbol: "HYPE", Side: domain.SideBuy, NotionalUSD: decimal.Zero, TimeInForce: domain.TifIoc},
	}
	for _, req := range bad {
		_, err := f.engine.Execute(context.Background(), req)
		assert.True(t, errors.Is(err, domain.ErrInvalidInput), "%+v", req)
	}
}

func TestEngine_LotSizeResolution(t *testing.T) {
	// 交易所步长 0.1
	f := newEngineFixture(t, EngineConfig{}, domain.Accepted{ExchangeOrderID: 1}, WithLotSizer(fakeLots{lot: d("0.1")}))
	exec, err := f.engine.Execute(context.Background(), buyRequest("12"))
	require.NoError(t, err)
	assert.True(t, exec.Sizing.LotSize.Equal(d("0.1")))
	assert.True(t, exec.Sizing.RoundedQuantity.Equal(d("0.5")))

	// 覆盖值更粗时使用覆盖值
	f = newEngineFixture(t, EngineConfig{LotSizeOverride: nd("1")}, domain.Accepted{ExchangeOrderID: 1}, WithLotSizer(fakeLots{lot: d("0.1")}))
	exec, err = f.engine.Execute(context.Background(), buyRequest("12"))
	require.NoError(t, err)
	assert.True(t, exec.Skipped)

	// 覆盖值比交易所精度更细时按交易所步长取整：0.2 / 24 = 0.0083 -> 0
	f = newEngineFixture(t, EngineConfig{LotSizeOverride: nd("0.001")}, domain.Accepted{ExchangeOrderID: 1}, WithLotSizer(fakeLots{lot: d("0.01")}))
	exec, err = f.engine.Execute(context.Background(), buyRequest("0.2"))
	require.NoError(t, err)
	assert.True(t, exec.Sizing.LotSize.Equal(d("0.01")))
	assert.True(t, exec.Skipped)
	assert.Nil(t, exec.Ticket)
	assert.Empty(t, f.orders.submitted())

	// 没有交易所步长时直接用覆盖值
	f = newEngineFixture(t, EngineConfig{LotSizeOverride: nd("0.001")}, domain.Accepted{ExchangeOrderID: 1})
	exec, err = f.engine.Execute(context.Background(), buyRequest("12"))
	require.NoError(t, err)
	assert.True(t, exec.Sizing.LotSize.Equal(d("0.001")))

	// 查询失败
	f = newEngineFixture(t, EngineConfig{}, domain.Accepted{}, WithLotSizer(fakeLots{err: domain.NewTransportError(errors.New("boom"))}))
	_, err = f.engine.Execute(context.Background(), buyRequest("12"))
	assert.True(t, errors.Is(err, domain.ErrTransportFailure))
	assert.Empty(t, f.orders.submitted())
}

func TestEngine_RecorderFailureDoesNotFailTrade(t *testing.T) {
	f := newEngineFixture(t, EngineConfig{}, domain.Accepted{ExchangeOrderID: 1})
	f.recorder.err = errors.New("disk full")
	_, err := f.engine.Execute(context.Background(), buyRequest("12"))
	assert.NoError(t, err)
}

func TestEngine_OneInFlightPerSymbolSide(t *testing.T) {
	f := newEngineFixture(t, EngineConfig{InFlightTTL: time.Minute}, domain.Accepted{ExchangeOrderID: 1})
	f.orders.block = make(chan struct{})
	f.orders.entered = make(chan struct{}, 1)

	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = f.engine.Execute(context.Background(), buyRequest("12"))
	}()

	select {
	case <-f.orders.entered:
	case <-time.After(time.Second):
		t.Fatal("第一笔订单未提交")
	}

	_, err := f.engine.Execute(context.Background(), buyRequest("12"))
	assert.True(t, errors.Is(err, domain.ErrDuplicateInFlight))

	close(f.orders.block)
	wg.Wait()
	require.NoError(t, firstErr)
	f.orders.entered = nil

	_, err = f.engine.Execute(context.Background(), buyRequest("12"))
	assert.NoError(t, err)
}

func TestNewEngine_Validation(t *testing.T) {
	params, err := risk.NewParams(d("100"), d("0"), 1)
	require.NoError(t, err)
	_, err = NewEngine(EngineConfig{SlippageTolerance: d("1")}, params, &fakeBooks{}, &fakeOrders{})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	_, err = NewEngine(EngineConfig{SlippageTolerance: d("0.05"), LotSizeOverride: nd("0")}, params, &fakeBooks{}, &fakeOrders{})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestEngine_PlaceLimit(t *testing.T) {
	f := newEngineFixture(t, EngineConfig{}, domain.Accepted{ExchangeOrderID: 77})

	exec, err := f.engine.PlaceLimit(context.Background(), LimitRequest{
		Symbol:      "HYPE",
		Side:        domain.SideBuy,
		Quantity:    d("1"),
		LimitPrice:  d("12"),
		TimeInForce: domain.TifGtc,
	})
	require.NoError(t, err)
	assert.Zero(t, f.books.calls, "指定价格时不拉取盘口")
	assert.Equal(t, StateAccepted, exec.Ticket.State())
	assert.True(t, exec.Request.NotionalUSD.Equal(d("12")))

	sent := f.orders.submitted()
	require.Len(t, sent, 1)
	assert.Equal(t, domain.TifGtc, sent[0].TimeInForce())
	assert.True(t, sent[0].LimitPrice().Equal(d("12")))

	require.Len(t, f.recorder.recs, 1)
	assert.Equal(t, "accepted", f.recorder.recs[0].Outcome)
}

func TestEngine_PlaceLimitGuards(t *testing.T) {
	t.Run("dry run", func(t *testing.T) {
		f := newEngineFixture(t, EngineConfig{DryRun: true}, domain.Accepted{})
		exec, err := f.engine.PlaceLimit(context.Background(), LimitRequest{
			Symbol: "HYPE", Side: domain.SideBuy, Quantity: d("1"), LimitPrice: d("12"), TimeInForce: domain.TifGtc,
		})
		require.NoError(t, err)
		assert.True(t, exec.DryRun)
		assert.Empty(t, f.orders.submitted())
		require.Len(t, f.recorder.recs, 1)
		assert.Equal(t, "dry_run", f.recorder.recs[0].Outcome)
	})

	t.Run("risk limit", func(t *testing.T) {
		f := newEngineFixture(t, EngineConfig{}, domain.Accepted{})
		_, err := f.engine.PlaceLimit(context.Background(), LimitRequest{
			Symbol: "HYPE", Side: domain.SideBuy, Quantity: d("10"), LimitPrice: d("10.01"), TimeInForce: domain.TifGtc,
		})
		assert.True(t, errors.Is(err, domain.ErrRiskLimit))
		assert.Empty(t, f.orders.submitted())
	})

	t.Run("invalid", func(t *testing.T) {
		f := newEngineFixture(t, EngineConfig{}, domain.Accepted{})
		_, err := f.engine.PlaceLimit(context.Background(), LimitRequest{
			Symbol: "HYPE", Side: domain.SideBuy, Quantity: d("0"), LimitPrice: d("12"), TimeInForce: domain.TifGtc,
		})
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})
}

type fakeObserver struct {
	mu      sync.Mutex
	orders  []string
	dryRuns int
	skips   int
	halted  bool
}

func (o *fakeObserver) ObserveOrder(symbol string, side domain.Side, outcome domain.OrderOutcome, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.orders = append(o.orders, symbol+"/"+string(side)+"/"+domain.OutcomeKind(outcome))
}

func (o *fakeObserver) ObserveDryRun(string, domain.Side) { o.dryRuns++ }
func (o *fakeObserver) ObserveSkip(string)                { o.skips++ }
func (o *fakeObserver) SetBreakerHalted(h bool)           { o.halted = h }

func TestEngine_Observer(t *testing.T) {
	obs := &fakeObserver{}
	f := newEngineFixture(t, EngineConfig{}, domain.Rejected{Reason: "no"}, WithObserver(obs))

	for i := 0; i < 2; i++ {
		_, err := f.engine.Execute(context.Background(), buyRequest("12"))
		require.Error(t, err)
	}
	assert.Equal(t, []string{"HYPE/buy/rejected", "HYPE/buy/rejected"}, obs.orders)
	assert.True(t, obs.halted)

	_, err := f.engine.Execute(context.Background(), buyRequest("0.001"))
	require.Error(t, err, "熔断后拒绝")
	assert.Zero(t, obs.skips)

	f.breaker.Resume()
	_, err = f.engine.Execute(context.Background(), buyRequest("0.001"))
	require.NoError(t, err)
	assert.Equal(t, 1, obs.skips)

	dry := newEngineFixture(t, EngineConfig{DryRun: true}, domain.Accepted{}, WithObserver(obs))
	_, err = dry.engine.Execute(context.Background(), buyRequest("12"))
	require.NoError(t, err)
	assert.Equal(t, 1, obs.dryRuns)
}

func TestEngine_ValidationFailureNeverSubmits(t *testing.T) {
	for _, dryRun := range []bool{false, true} {
		params, err := risk.NewParams(d("100"), d("200"), 2)
		require.NoError(t, err)
		orders := &validatingOrders{
			fakeOrders: fakeOrders{outcome: domain.Accepted{ExchangeOrderID: 1}},
			err:        errors.Wrap(domain.ErrInvalidInput, "数量超出 szDecimals 精度"),
		}
		books := &fakeBooks{quotes: map[string]domain.Quote{"HYPE": mustQuote("HYPE", "23.90", "24.00")}}
		breaker := risk.NewCircuitBreaker(risk.CircuitBreakerConfig{MaxConsecutiveErrors: 1})
		recorder := &fakeRecorder{}
		engine, err := NewEngine(EngineConfig{SlippageTolerance: d("0.05"), DryRun: dryRun}, params, books, orders,
			WithCircuitBreaker(breaker), WithRecorder(recorder))
		require.NoError(t, err)

		exec, err := engine.Execute(context.Background(), buyRequest("12"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
		assert.False(t, errors.Is(err, domain.ErrRejected))
		require.NotNil(t, exec)
		assert.Nil(t, exec.Ticket)
		assert.False(t, exec.DryRun)
		assert.Empty(t, orders.submitted())
		assert.Equal(t, int64(0), breaker.State().ConsecutiveErrors)
		assert.Empty(t, recorder.recs)

		_, err = engine.PlaceLimit(context.Background(), LimitRequest{
			Symbol: "HYPE", Side: domain.SideBuy, Quantity: d("0.5"), LimitPrice: d("12"), TimeInForce: domain.TifGtc,
		})
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
		assert.Equal(t, int64(0), breaker.State().ConsecutiveErrors)
		assert.Equal(t, 2, orders.validated)
	}
}

func TestEngine_RecordSurvivesCallerCancel(t *testing.T) {
	f := newEngineFixture(t, EngineConfig{}, domain.Accepted{ExchangeOrderID: 3})
	// 适配器不看 ctx，模拟订单已发出后调用方收到退出信号
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exec, err := f.engine.Execute(ctx, buyRequest("12"))
	require.NoError(t, err)
	assert.Equal(t, StateAccepted, exec.Ticket.State())
	require.Len(t, f.recorder.recs, 1)
	assert.Equal(t, "accepted", f.recorder.recs[0].Outcome)
}
