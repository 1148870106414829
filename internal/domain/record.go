package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExecutionRecord 一次执行的审计记录（意图 + 结果），只追加写入
type ExecutionRecord struct {
	ID             int64               `json:"id"`
	At             time.Time           `json:"at"`
	Symbol         string              `json:"symbol"`
	Side           Side                `json:"side"`
	TimeInForce    TimeInForce         `json:"tif"`
	NotionalUSD    decimal.Decimal     `json:"notional_usd"`
	ReferencePrice decimal.Decimal     `json:"reference_price"`
	Quantity       decimal.Decimal     `json:"quantity"`
	LimitPrice     decimal.Decimal     `json:"limit_price"`
	Cloid          string              `json:"cloid,omitempty"`
	DryRun         bool                `json:"dry_run"`
	Outcome        string              `json:"outcome"`
	ExchangeOID    int64               `json:"oid,omitempty"`
	FilledQuantity decimal.Decimal     `json:"filled_quantity"`
	AvgFillPrice   decimal.NullDecimal `json:"avg_fill_price"`
	Reason         string              `json:"reason,omitempty"`
}

// NewExecutionRecord 由意图与结果生成记录。outcome 为 nil 表示未提交（dry run）。
func NewExecutionRecord(at time.Time, intent OrderIntent, notional, reference decimal.Decimal, outcome OrderOutcome, dryRun bool) ExecutionRecord {
	rec := ExecutionRecord{
		At:             at,
		Symbol:         intent.Symbol(),
		Side:           intent.Side(),
		TimeInForce:    intent.TimeInForce(),
		NotionalUSD:    notional,
		ReferencePrice: reference,
		Quantity:       intent.Quantity(),
		LimitPrice:     intent.LimitPrice(),
		DryRun:         dryRun,
		Outcome:        "dry_run",
	}
	if c, ok := intent.ClientOrderID(); ok {
		rec.Cloid = c.String()
	}
	if outcome == nil {
		return rec
	}
	rec.Outcome = OutcomeKind(outcome)
	switch o := outcome.(type) {
	case Accepted:
		rec.ExchangeOID = o.ExchangeOrderID
		rec.FilledQuantity = o.FilledQuantity()
		if px, ok := o.AvgFillPrice(); ok {
			rec.AvgFillPrice = decimal.NewNullDecimal(px)
		}
	case Rejected:
		rec.Reason = o.Reason
	case TransportFailure:
		rec.Reason = o.String()
	}
	return rec
}
