package execution

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/betbot/hlarb/internal/domain"
)

type fakeBooks struct {
	quotes map[string]domain.Quote
	err    error
	calls  int
}

func (f *fakeBooks) FetchOrderBook(_ context.Context, symbol string) (domain.Quote, error) {
	f.calls++
	if f.err != nil {
		return domain.Quote{}, f.err
	}
	q, ok := f.quotes[symbol]
	if !ok {
		return domain.Quote{Symbol: symbol}, nil
	}
	return q, nil
}

type fakeOrders struct {
	mu      sync.Mutex
	outcome domain.OrderOutcome
	intents []domain.OrderIntent
	block   chan struct{}
	entered chan struct{}
}

func (f *fakeOrders) SubmitOrder(_ context.Context, intent domain.OrderIntent) domain.OrderOutcome {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.intents = append(f.intents, intent)
	return f.outcome
}

func (f *fakeOrders) submitted() []domain.OrderIntent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.OrderIntent(nil), f.intents...)
}

// validatingOrders 额外实现 ports.OrderValidator
type validatingOrders struct {
	fakeOrders
	err       error
	validated int
}

func (f *validatingOrders) ValidateOrder(context.Context, domain.OrderIntent) error {
	f.validated++
	return f.err
}

type fakeCanceler struct {
	report    domain.CancelReport
	err       error
	allCalls  []string
	singleOID []int64
}

func (f *fakeCanceler) CancelOrders(_ context.Context, symbol string) (domain.CancelReport, error) {
	f.allCalls = append(f.allCalls, symbol)
	r := f.report
	r.Symbol = symbol
	return r, f.err
}

func (f *fakeCanceler) CancelOrder(_ context.Context, symbol string, oid int64) (domain.CancelReport, error) {
	f.singleOID = append(f.singleOID, oid)
	if f.err != nil {
		return domain.CancelReport{Symbol: symbol}, f.err
	}
	return domain.CancelReport{Symbol: symbol, Results: []domain.CancelResult{{ExchangeOrderID: oid, OK: true}}}, nil
}

type fakeLots struct {
	lot decimal.Decimal
	err error
}

func (f fakeLots) LotSize(context.Context, string) (decimal.Decimal, error) {
	return f.lot, f.err
}

type fakeRecorder struct {
	mu   sync.Mutex
	recs []domain.ExecutionRecord
	err  error
}

func (f *fakeRecorder) Append(ctx context.Context, rec domain.ExecutionRecord) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	f.recs = append(f.recs, rec)
	return int64(len(f.recs)), nil
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func nd(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(d(s))
}

func mustQuote(symbol, bid, ask string) domain.Quote {
	var b, a decimal.NullDecimal
	if bid != "" {
		b = nd(bid)
	}
	if ask != "" {
		a = nd(ask)
	}
	q, err := domain.NewQuote(symbol, b, a)
	if err != nil {
		panic(err)
	}
	return q
}

func mustIntent(symbol string, side domain.Side, qty, px string, tif domain.TimeInForce) domain.OrderIntent {
	intent, err := domain.NewOrderIntent(domain.OrderIntentParams{
		Symbol:      symbol,
		Side:        side,
		Quantity:    d(qty),
		LimitPrice:  d(px),
		TimeInForce: tif,
	})
	if err != nil {
		panic(err)
	}
	return intent
}
