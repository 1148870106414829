package domain

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Quote 某一时刻的最优买卖价。缺失的一侧 Valid=false，与价格 0 区分。
type Quote struct {
	Symbol  string              `json:"symbol"`
	BestBid decimal.NullDecimal `json:"best_bid"`
	BestAsk decimal.NullDecimal `json:"best_ask"`
}

// NewQuote 校验后构建报价：价格非负，两侧都存在时 ask >= bid
func NewQuote(symbol string, bid, ask decimal.NullDecimal) (Quote, error) {
	if bid.Valid && bid.Decimal.IsNegative() {
		return Quote{}, errors.Wrapf(ErrInvalidInput, "%s bid 为负: %s", symbol, bid.Decimal)
	}
	if ask.Valid && ask.Decimal.IsNegative() {
		return Quote{}, errors.Wrapf(ErrInvalidInput, "%s ask 为负: %s", symbol, ask.Decimal)
	}
	if bid.Valid && ask.Valid && ask.Decimal.LessThan(bid.Decimal) {
		return Quote{}, errors.Wrapf(ErrInvalidInput, "%s 盘口交叉: bid=%s ask=%s", symbol, bid.Decimal, ask.Decimal)
	}
	return Quote{Symbol: symbol, BestBid: bid, BestAsk: ask}, nil
}

// Best 买入取 ask，卖出取 bid。对应一侧为空时返回 ErrEmptyBook。
func (q Quote) Best(side Side) (decimal.Decimal, error) {
	if err := side.Validate(); err != nil {
		return decimal.Zero, err
	}
	level := q.BestBid
	name := "bid"
	if side.IsBuy() {
		level = q.BestAsk
		name = "ask"
	}
	if !level.Valid {
		return decimal.Zero, errors.Wrapf(ErrEmptyBook, "%s 没有 %s 档位", q.Symbol, name)
	}
	return level.Decimal, nil
}

// SizingResult 仓位计算结果。RoundedQuantity 为 0 表示应跳过本次交易。
type SizingResult struct {
	RawQuantity       decimal.Decimal
	RoundedQuantity   decimal.Decimal
	TargetNotionalUSD decimal.Decimal
	ReferencePrice    decimal.Decimal
	LotSize           decimal.Decimal
}

// ShouldSkip 按手数取整后为 0
func (s SizingResult) ShouldSkip() bool {
	return !s.RoundedQuantity.IsPositive()
}
