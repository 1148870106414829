package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PerpPosition 永续仓位。Size 带符号，负数为空头。
type PerpPosition struct {
	Symbol     string              `json:"symbol"`
	Size       decimal.Decimal     `json:"size"`
	EntryPrice decimal.NullDecimal `json:"entry_price"`
}

// PerpState 永续账户状态
type PerpState struct {
	AccountValueUSD decimal.Decimal
	Positions       []PerpPosition
}

// ExposureSnapshot 现货余额与永续仓位的合并视图，只反映查询时刻，不缓存。
// 同一币种的现货与永续不做对冲净额计算。
type ExposureSnapshot struct {
	Account         string                     `json:"account"`
	SpotBalances    map[string]decimal.Decimal `json:"spot_balances"`
	PerpPositions   map[string]PerpPosition    `json:"perp_positions"`
	AccountValueUSD decimal.Decimal            `json:"account_value_usd"`
	FetchedAt       time.Time                  `json:"fetched_at"`
}

// NewExposureSnapshot 合并现货余额与永续状态。零仓位不计入。
func NewExposureSnapshot(account string, spot map[string]decimal.Decimal, perp PerpState, at time.Time) *ExposureSnapshot {
	snap := &ExposureSnapshot{
		Account:         account,
		SpotBalances:    make(map[string]decimal.Decimal, len(spot)),
		PerpPositions:   make(map[string]PerpPosition, len(perp.Positions)),
		AccountValueUSD: perp.AccountValueUSD,
		FetchedAt:       at,
	}
	for coin, amt := range spot {
		snap.SpotBalances[coin] = amt
	}
	for _, p := range perp.Positions {
		if p.Size.IsZero() {
			continue
		}
		snap.PerpPositions[p.Symbol] = p
	}
	return snap
}

// SameHoldings 除 FetchedAt 外内容一致
func (s *ExposureSnapshot) SameHoldings(other *ExposureSnapshot) bool {
	if s == nil || other == nil {
		return s == other
	}
	if s.Account != other.Account || !s.AccountValueUSD.Equal(other.AccountValueUSD) {
		return false
	}
	if len(s.SpotBalances) != len(other.SpotBalances) || len(s.PerpPositions) != len(other.PerpPositions) {
		return false
	}
	for coin, amt := range s.SpotBalances {
		o, ok := other.SpotBalances[coin]
		if !ok || !o.Equal(amt) {
			return false
		}
	}
	for sym, p := range s.PerpPositions {
		o, ok := other.PerpPositions[sym]
		if !ok || !o.Size.Equal(p.Size) || o.EntryPrice.Valid != p.EntryPrice.Valid {
			return false
		}
		if p.EntryPrice.Valid && !o.EntryPrice.Decimal.Equal(p.EntryPrice.Decimal) {
			return false
		}
	}
	return true
}
