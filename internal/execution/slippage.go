package execution

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/betbot/hlarb/internal/domain"
)

var one = decimal.NewFromInt(1)

// BoundPrice 由参考价与滑点容忍度计算可成交限价。
// 买入 ref*(1+tol) 为价格上限，卖出 ref*(1-tol) 为价格下限。tol 必须在 (0, 1)，不做截断。
func BoundPrice(reference decimal.Decimal, side domain.Side, tolerance decimal.Decimal) (decimal.Decimal, error) {
	if !reference.IsPositive() {
		return decimal.Zero, errors.Wrapf(domain.ErrInvalidInput, "参考价必须为正: %s", reference)
	}
	if !tolerance.IsPositive() || tolerance.GreaterThanOrEqual(one) {
		return decimal.Zero, errors.Wrapf(domain.ErrInvalidInput, "滑点容忍度必须在 (0, 1): %s", tolerance)
	}
	if err := side.Validate(); err != nil {
		return decimal.Zero, err
	}
	if side.IsBuy() {
		return reference.Mul(one.Add(tolerance)), nil
	}
	return reference.Mul(one.Sub(tolerance)), nil
}
