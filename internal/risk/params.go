package risk

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/betbot/hlarb/internal/domain"
)

var bps = decimal.NewFromInt(10000)

// Params 风控参数。启动时构建一次，只读，显式传递给需要的组件。
type Params struct {
	maxPositionNotionalUSD decimal.Decimal
	stopLossBps            decimal.Decimal
	leverage               int
}

// NewParams 校验并构建风控参数
func NewParams(maxPositionNotionalUSD, stopLossBps decimal.Decimal, leverage int) (Params, error) {
	if !maxPositionNotionalUSD.IsPositive() {
		return Params{}, errors.Wrapf(domain.ErrInvalidInput, "最大仓位必须为正: %s", maxPositionNotionalUSD)
	}
	if stopLossBps.IsNegative() || stopLossBps.GreaterThanOrEqual(bps) {
		return Params{}, errors.Wrapf(domain.ErrInvalidInput, "止损 bps 必须在 [0, 10000): %s", stopLossBps)
	}
	if leverage < 1 {
		return Params{}, errors.Wrapf(domain.ErrInvalidInput, "杠杆必须 >= 1: %d", leverage)
	}
	return Params{
		maxPositionNotionalUSD: maxPositionNotionalUSD,
		stopLossBps:            stopLossBps,
		leverage:               leverage,
	}, nil
}

func (p Params) MaxPositionNotionalUSD() decimal.Decimal { return p.maxPositionNotionalUSD }
func (p Params) StopLossBps() decimal.Decimal { return p.stopLossBps }
func (p Params) Leverage() int { return p.leverage }

// CheckNotional 单笔目标名义金额不得超过最大仓位
func (p Params) CheckNotional(notional decimal.Decimal) error {
	if !notional.IsPositive() {
		return errors.Wrapf(domain.ErrInvalidInput, "名义金额必须为正: %s", notional)
	}
	if notional.GreaterThan(p.maxPositionNotionalUSD) {
		return errors.Wrapf(domain.ErrRiskLimit, "名义金额 %s 超过上限 %s", notional, p.maxPositionNotionalUSD)
	}
	return nil
}

// StopLossPrice 按开仓方向计算止损价：多头 entry*(1-bps)，空头 entry*(1+bps)
func (p Params) StopLossPrice(entry decimal.Decimal, side domain.Side) (decimal.Decimal, error) {
	if !entry.IsPositive() {
		return decimal.Zero, errors.Wrapf(domain.ErrInvalidInput, "开仓价必须为正: %s", entry)
	}
	if err := side.Validate(); err != nil {
		return decimal.Zero, err
	}
	frac := p.stopLossBps.Div(bps)
	if side.IsBuy() {
		return entry.Mul(decimal.NewFromInt(1).Sub(frac)), nil
	}
	return entry.Mul(decimal.NewFromInt(1).Add(frac)), nil
}

// StopLossTriggered 当前价格是否已触及止损
func (p Params) StopLossTriggered(entry, mark decimal.Decimal, side domain.Side) (bool, error) {
	stop, err := p.StopLossPrice(entry, side)
	if err != nil {
		return false, err
	}
	if side.IsBuy() {
		return mark.LessThanOrEqual(stop), nil
	}
	return mark.GreaterThanOrEqual(stop), nil
}
