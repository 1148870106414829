package domain

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// OrderOutcome 下单结果，只有 Accepted / Rejected / TransportFailure 三种。
// 调用方应对三种情况逐一 type switch。
type OrderOutcome interface {
	// Err 转换为错误分类；Accepted 返回 nil
	Err() error
	String() string
	isOrderOutcome()
}

// Fill 一笔成交
type Fill struct {
	Quantity decimal.Decimal
	Price    decimal.Decimal
}

// Accepted 交易所接受了订单。接受不代表成交，成交见 Fills。
type Accepted struct {
	ExchangeOrderID int64
	Fills           []Fill
}

// Rejected 交易所明确拒绝
type Rejected struct {
	Reason string
}

// TransportFailure 未得到交易所的明确答复（网络、超时、无法解析的响应）。
// 订单状态未知，调用方应对账后再决定是否重试。
type TransportFailure struct {
	Cause error
}

func (Accepted) isOrderOutcome() {}
func (Rejected) isOrderOutcome() {}
func (TransportFailure) isOrderOutcome() {}

func (Accepted) Err() error { return nil }

func (r Rejected) Err() error {
	return errors.Wrap(ErrRejected, r.Reason)
}

func (t TransportFailure) Err() error {
	return NewTransportError(t.Cause)
}

// FilledQuantity 累计成交数量
func (a Accepted) FilledQuantity() decimal.Decimal {
	total := decimal.Zero
	for _, f := range a.Fills {
		total = total.Add(f.Quantity)
	}
	return total
}

// AvgFillPrice 成交均价，未成交时 ok=false
func (a Accepted) AvgFillPrice() (decimal.Decimal, bool) {
	qty := a.FilledQuantity()
	if !qty.IsPositive() {
		return decimal.Zero, false
	}
	notional := decimal.Zero
	for _, f := range a.Fills {
		notional = notional.Add(f.Quantity.Mul(f.Price))
	}
	return notional.Div(qty), true
}

// IsResting 已接受但没有任何成交
func (a Accepted) IsResting() bool {
	return len(a.Fills) == 0
}

func (a Accepted) String() string {
	if a.IsResting() {
		return fmt.Sprintf("accepted oid=%d resting", a.ExchangeOrderID)
	}
	px, _ := a.AvgFillPrice()
	return fmt.Sprintf("accepted oid=%d filled=%s avgPx=%s", a.ExchangeOrderID, a.FilledQuantity(), px)
}

func (r Rejected) String() string { return "rejected: " + r.Reason }

func (t TransportFailure) String() string {
	if t.Cause == nil {
		return "transport failure"
	}
	return "transport failure: " + t.Cause.Error()
}

// OutcomeKind 结果类型名（日志与持久化用）
func OutcomeKind(o OrderOutcome) string {
	switch o.(type) {
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	case TransportFailure:
		return "transport_failure"
	default:
		return "unknown"
	}
}
