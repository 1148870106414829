package execution

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/betbot/hlarb/internal/domain"
)

// DefaultLotSize 交易所未提供步长且未配置覆盖值时使用
var DefaultLotSize = decimal.New(1, -2)

// rawPrecision 原始数量保留的小数位
const rawPrecision = 18

// SizePosition 将目标名义金额换算为可下单数量。
// raw = notional / price，rounded = floor(raw / lot) * lot，始终向下取整。
// lot 为 0 时使用 DefaultLotSize。rounded 为 0 不是错误，调用方须检查 ShouldSkip。
func SizePosition(notional, price, lot decimal.Decimal) (domain.SizingResult, error) {
	if !notional.IsPositive() {
		return domain.SizingResult{}, errors.Wrapf(domain.ErrInvalidInput, "名义金额必须为正: %s", notional)
	}
	if !price.IsPositive() {
		return domain.SizingResult{}, errors.Wrapf(domain.ErrInvalidInput, "参考价必须为正: %s", price)
	}
	if lot.IsNegative() {
		return domain.SizingResult{}, errors.Wrapf(domain.ErrInvalidInput, "步长不能为负: %s", lot)
	}
	if lot.IsZero() {
		lot = DefaultLotSize
	}
	if lot.Exponent() < -rawPrecision {
		return domain.SizingResult{}, errors.Wrapf(domain.ErrInvalidInput, "步长精度过高: %s", lot)
	}

	raw := notional.DivRound(price, rawPrecision)

	// 精确整除：lots = floor(notional / (price * lot))
	lots, _ := notional.QuoRem(price.Mul(lot), 0)
	rounded := lots.Mul(lot)

	return domain.SizingResult{
		RawQuantity:       raw,
		RoundedQuantity:   rounded,
		TargetNotionalUSD: notional,
		ReferencePrice:    price,
		LotSize:           lot,
	}, nil
}
