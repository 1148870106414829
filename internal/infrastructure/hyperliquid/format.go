package hyperliquid

import (
	"github.com/shopspring/decimal"
)

// maxSigFigs 价格最多 5 位有效数字（整数价格不受限制）
const maxSigFigs = 5

// FormatPrice 按交易所精度规则格式化限价。
// 买单向下取整、卖单向上取整，只会收紧限价，不会放宽。
func FormatPrice(px decimal.Decimal, asset Asset, isBuy bool) string {
	places := priceDecimals(px, asset)
	var rounded decimal.Decimal
	if isBuy {
		rounded = px.RoundFloor(places)
	} else {
		rounded = px.RoundCeil(places)
	}
	return rounded.String()
}

// priceDecimals 同时满足有效数字与最大小数位两项限制的小数位数
func priceDecimals(px decimal.Decimal, asset Asset) int32 {
	// 整数部分位数 = floor(log10(px)) + 1
	intDigits := int32(len(px.Coefficient().String())) + px.Exponent()
	places := maxSigFigs - intDigits
	if maxDec := asset.maxPriceDecimals(); places > maxDec {
		places = maxDec
	}
	if places < 0 {
		places = 0
	}
	return places
}

// FormatSize 数量按 szDecimals 向下截断
func FormatSize(sz decimal.Decimal, asset Asset) string {
	return sz.Truncate(asset.SzDecimals).String()
}

// LotSize 最小数量步长 10^-szDecimals
func (a Asset) LotSize() decimal.Decimal {
	return decimal.New(1, -a.SzDecimals)
}
