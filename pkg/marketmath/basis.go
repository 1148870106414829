package marketmath

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var bpsFactor = decimal.NewFromInt(10000)

// TopOfBook 一档盘口。缺失的一侧为 Valid=false，不用 0 表示。
type TopOfBook struct {
	Bid decimal.NullDecimal
	Ask decimal.NullDecimal
}

// Mid 中间价，需要两侧都存在
func (t TopOfBook) Mid() (decimal.Decimal, error) {
	if !t.Bid.Valid || !t.Ask.Valid {
		return decimal.Zero, fmt.Errorf("top-of-book 单边缺失，无法计算中间价")
	}
	if t.Bid.Decimal.GreaterThan(t.Ask.Decimal) {
		return decimal.Zero, fmt.Errorf("盘口交叉: bid=%s ask=%s", t.Bid.Decimal, t.Ask.Decimal)
	}
	return t.Bid.Decimal.Add(t.Ask.Decimal).Div(decimal.NewFromInt(2)), nil
}

// SpreadBps 买卖价差（相对中间价，bps）
func (t TopOfBook) SpreadBps() (decimal.Decimal, error) {
	mid, err := t.Mid()
	if err != nil {
		return decimal.Zero, err
	}
	if !mid.IsPositive() {
		return decimal.Zero, fmt.Errorf("中间价必须为正: %s", mid)
	}
	return t.Ask.Decimal.Sub(t.Bid.Decimal).Div(mid).Mul(bpsFactor), nil
}

// BasisBps 永续相对现货的基差：(perp - spot) / spot * 10000。
// 正数表示永续溢价。
func BasisBps(spotPx, perpPx decimal.Decimal) (decimal.Decimal, error) {
	if !spotPx.IsPositive() || !perpPx.IsPositive() {
		return decimal.Zero, fmt.Errorf("价格必须为正: spot=%s perp=%s", spotPx, perpPx)
	}
	return perpPx.Sub(spotPx).Div(spotPx).Mul(bpsFactor), nil
}

// ExceedsThreshold 基差绝对值是否达到阈值
func ExceedsThreshold(basisBps, thresholdBps decimal.Decimal) bool {
	return basisBps.Abs().GreaterThanOrEqual(thresholdBps)
}
