package ports

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/betbot/hlarb/internal/domain"
)

// 交易所边界上的小接口。execution / services 只依赖这些接口，
// 具体实现在 internal/infrastructure/hyperliquid。

type BookFetcher interface {
	// FetchOrderBook 拉取最新盘口（不缓存）
	FetchOrderBook(ctx context.Context, symbol string) (domain.Quote, error)
}

type OrderSubmitter interface {
	// SubmitOrder 提交一笔订单。失败体现在返回的 OrderOutcome 中。
	SubmitOrder(ctx context.Context, intent domain.OrderIntent) domain.OrderOutcome
}

// OrderValidator 提交前的本地检查（资产解析、数量精度）。
// 失败时订单不会离开进程。
type OrderValidator interface {
	ValidateOrder(ctx context.Context, intent domain.OrderIntent) error
}

type OrderCanceler interface {
	// CancelOrders 撤销 symbol 上目标账户的全部挂单
	CancelOrders(ctx context.Context, symbol string) (domain.CancelReport, error)
	// CancelOrder 按交易所订单号撤单
	CancelOrder(ctx context.Context, symbol string, oid int64) (domain.CancelReport, error)
}

type AccountFetcher interface {
	FetchSpotBalances(ctx context.Context, account string) (map[string]decimal.Decimal, error)
	FetchPerpState(ctx context.Context, account string) (domain.PerpState, error)
}

type LotSizer interface {
	// LotSize 最小下单数量步长
	LotSize(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// Exchange 交易所适配器需要实现的全部能力
type Exchange interface {
	BookFetcher
	OrderSubmitter
	OrderValidator
	OrderCanceler
	AccountFetcher
	LotSizer
}
