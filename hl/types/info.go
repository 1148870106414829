package types

import "github.com/shopspring/decimal"

// InfoRequest /info 请求体
type InfoRequest struct {
	Type string `json:"type"`
	Coin string `json:"coin,omitempty"`
	User string `json:"user,omitempty"`
}

// L2Level 盘口档位
type L2Level struct {
	Px decimal.Decimal `json:"px"`
	Sz decimal.Decimal `json:"sz"`
	N  int             `json:"n"`
}

// L2Book 订单簿快照。Levels[0] 为 bids（价格降序），Levels[1] 为 asks（价格升序）。
type L2Book struct {
	Coin   string       `json:"coin"`
	Time   int64        `json:"time"`
	Levels [2][]L2Level `json:"levels"`
}

// Bids 买盘
func (b *L2Book) Bids() []L2Level { return b.Levels[0] }

// Asks 卖盘
func (b *L2Book) Asks() []L2Level { return b.Levels[1] }

// SpotBalance 现货余额
type SpotBalance struct {
	Coin     string          `json:"coin"`
	Token    int             `json:"token"`
	Hold     decimal.Decimal `json:"hold"`
	Total    decimal.Decimal `json:"total"`
	EntryNtl decimal.Decimal `json:"entryNtl"`
}

// SpotClearinghouseState 现货账户状态
type SpotClearinghouseState struct {
	Balances []SpotBalance `json:"balances"`
}

// MarginSummary 保证金汇总
type MarginSummary struct {
	AccountValue    decimal.Decimal `json:"accountValue"`
	TotalNtlPos     decimal.Decimal `json:"totalNtlPos"`
	TotalRawUsd     decimal.Decimal `json:"totalRawUsd"`
	TotalMarginUsed decimal.Decimal `json:"totalMarginUsed"`
}

// Leverage 仓位杠杆
type Leverage struct {
	Type  string `json:"type"`
	Value int    `json:"value"`
}

// Position 永续仓位（szi 为带符号数量，负数为空头）
type Position struct {
	Coin           string           `json:"coin"`
	Szi            decimal.Decimal  `json:"szi"`
	EntryPx        *decimal.Decimal `json:"entryPx"`
	PositionValue  decimal.Decimal  `json:"positionValue"`
	UnrealizedPnl  decimal.Decimal  `json:"unrealizedPnl"`
	ReturnOnEquity decimal.Decimal  `json:"returnOnEquity"`
	LiquidationPx  *decimal.Decimal `json:"liquidationPx"`
	MarginUsed     decimal.Decimal  `json:"marginUsed"`
	Leverage       Leverage         `json:"leverage"`
}

// AssetPosition 仓位包装
type AssetPosition struct {
	Type     string   `json:"type"`
	Position Position `json:"position"`
}

// ClearinghouseState 永续账户状态（info type=clearinghouseState）
type ClearinghouseState struct {
	MarginSummary      MarginSummary   `json:"marginSummary"`
	CrossMarginSummary MarginSummary   `json:"crossMarginSummary"`
	Withdrawable       decimal.Decimal `json:"withdrawable"`
	AssetPositions     []AssetPosition `json:"assetPositions"`
	Time               int64           `json:"time"`
}

// OpenOrder 挂单（side: "B" 买 / "A" 卖）
type OpenOrder struct {
	Coin      string          `json:"coin"`
	LimitPx   decimal.Decimal `json:"limitPx"`
	Oid       int64           `json:"oid"`
	Side      string          `json:"side"`
	Sz        decimal.Decimal `json:"sz"`
	Timestamp int64           `json:"timestamp"`
}

// PerpAssetInfo meta.universe 元素
type PerpAssetInfo struct {
	Name        string `json:"name"`
	SzDecimals  int32  `json:"szDecimals"`
	MaxLeverage int    `json:"maxLeverage"`
	IsDelisted  bool   `json:"isDelisted,omitempty"`
}

// Meta 永续元数据
type Meta struct {
	Universe []PerpAssetInfo `json:"universe"`
}

// SpotToken spotMeta.tokens 元素
type SpotToken struct {
	Name        string `json:"name"`
	SzDecimals  int32  `json:"szDecimals"`
	WeiDecimals int32  `json:"weiDecimals"`
	Index       int    `json:"index"`
	TokenID     string `json:"tokenId"`
	IsCanonical bool   `json:"isCanonical"`
}

// SpotPair spotMeta.universe 元素，Tokens 为 [base, quote] 的 token 下标
type SpotPair struct {
	Name        string `json:"name"`
	Tokens      [2]int `json:"tokens"`
	Index       int    `json:"index"`
	IsCanonical bool   `json:"isCanonical"`
}

// SpotMeta 现货元数据
type SpotMeta struct {
	Tokens   []SpotToken `json:"tokens"`
	Universe []SpotPair  `json:"universe"`
}
