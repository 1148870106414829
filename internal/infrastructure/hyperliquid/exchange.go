package hyperliquid

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/betbot/hlarb/hl/client"
	"github.com/betbot/hlarb/hl/types"
	"github.com/betbot/hlarb/internal/domain"
	"github.com/betbot/hlarb/internal/ports"
)

var venueLog = logrus.WithField("component", "hyperliquid")

var _ ports.Exchange = (*Exchange)(nil)

// Exchange 基于 hl/client 的交易所适配器。
// account 为挂单查询与撤单的目标账户（配置了主账户时为主账户）。
type Exchange struct {
	client  *client.Client
	assets  *AssetResolver
	account common.Address
}

func NewExchange(c *client.Client, account common.Address) *Exchange {
	return &Exchange{
		client:  c,
		assets:  NewAssetResolver(c),
		account: account,
	}
}

// Account 目标账户
func (e *Exchange) Account() common.Address {
	return e.account
}

// Resolve 查询交易对信息
func (e *Exchange) Resolve(ctx context.Context, symbol string) (Asset, error) {
	return e.assets.Resolve(ctx, symbol)
}

// FetchOrderBook 拉取 l2Book，只取最优一档
func (e *Exchange) FetchOrderBook(ctx context.Context, symbol string) (domain.Quote, error) {
	asset, err := e.assets.Resolve(ctx, symbol)
	if err != nil {
		return domain.Quote{}, err
	}
	book, err := e.client.L2Book(ctx, asset.Coin)
	if err != nil {
		return domain.Quote{}, domain.NewTransportError(errors.Wrapf(err, "获取 %s 盘口失败", symbol))
	}
	return QuoteFromBook(symbol, book)
}

// QuoteFromBook l2Book -> Quote，空的一侧保持 Valid=false
func QuoteFromBook(symbol string, book *types.L2Book) (domain.Quote, error) {
	var bid, ask decimal.NullDecimal
	if book != nil {
		if bids := book.Bids(); len(bids) > 0 {
			bid = decimal.NewNullDecimal(bids[0].Px)
		}
		if asks := book.Asks(); len(asks) > 0 {
			ask = decimal.NewNullDecimal(asks[0].Px)
		}
	}
	return domain.NewQuote(symbol, bid, ask)
}

// ValidateOrder 解析资产并按交易所精度构建报文，不发请求。
// 元数据拉取失败为 ErrTransportFailure，其余为 ErrInvalidInput。
func (e *Exchange) ValidateOrder(ctx context.Context, intent domain.OrderIntent) error {
	_, _, err := e.prepare(ctx, intent)
	return err
}

func (e *Exchange) prepare(ctx context.Context, intent domain.OrderIntent) (Asset, types.OrderWire, error) {
	if !e.client.CanSign() {
		return Asset{}, types.OrderWire{}, errors.Wrap(domain.ErrInvalidInput, client.ErrNoSigner.Error())
	}
	asset, err := e.assets.Resolve(ctx, intent.Symbol())
	if err != nil {
		return Asset{}, types.OrderWire{}, err
	}
	wire, err := buildOrderWire(asset, intent)
	if err != nil {
		return Asset{}, types.OrderWire{}, err
	}
	return asset, wire, nil
}

// SubmitOrder 下单。网络错误与无法解析的响应为 TransportFailure，交易所明确拒绝为 Rejected。
// 调用方应先 ValidateOrder；execution.Submitter 会自动这样做。
func (e *Exchange) SubmitOrder(ctx context.Context, intent domain.OrderIntent) domain.OrderOutcome {
	asset, wire, err := e.prepare(ctx, intent)
	if err != nil {
		if errors.Is(err, domain.ErrTransportFailure) {
			return domain.TransportFailure{Cause: err}
		}
		return domain.Rejected{Reason: "未提交: " + err.Error()}
	}

	start := time.Now()
	resp, err := e.client.PlaceOrders(ctx, wire)
	if err != nil {
		return domain.TransportFailure{Cause: err}
	}
	outcome := outcomeFromResponse(resp)
	venueLog.WithFields(logrus.Fields{
		"symbol":  intent.Symbol(),
		"asset":   asset.ID,
		"px":      wire.LimitPx,
		"sz":      wire.Size,
		"latency": time.Since(start),
	}).Debugf("下单返回: %s", outcome)
	return outcome
}

func buildOrderWire(asset Asset, intent domain.OrderIntent) (types.OrderWire, error) {
	qty := intent.Quantity()
	truncated := qty.Truncate(asset.SzDecimals)
	if !truncated.IsPositive() {
		return types.OrderWire{}, errors.Wrapf(domain.ErrInvalidInput, "数量 %s 按 szDecimals=%d 截断后为 0", qty, asset.SzDecimals)
	}
	if !truncated.Equal(qty) {
		return types.OrderWire{}, errors.Wrapf(domain.ErrInvalidInput, "数量 %s 超出 szDecimals=%d 精度", qty, asset.SzDecimals)
	}
	isBuy := intent.Side().IsBuy()
	px := FormatPrice(intent.LimitPrice(), asset, isBuy)
	if d, _ := decimal.NewFromString(px); !d.IsPositive() {
		return types.OrderWire{}, errors.Wrapf(domain.ErrInvalidInput, "限价 %s 按精度取整后为 0", intent.LimitPrice())
	}
	w := types.OrderWire{
		Asset:      asset.ID,
		IsBuy:      isBuy,
		LimitPx:    px,
		Size:       FormatSize(qty, asset),
		ReduceOnly: intent.ReduceOnly(),
		OrderType:  types.OrderTypeWire{Limit: &types.LimitWire{Tif: types.Tif(intent.TimeInForce())}},
	}
	if cloid, ok := intent.ClientOrderID(); ok {
		s := cloid.String()
		w.Cloid = &s
	}
	return w, nil
}

// outcomeFromResponse 解析单笔下单的返回
func outcomeFromResponse(resp *types.ExchangeResponse) domain.OrderOutcome {
	if !resp.IsOK() {
		return domain.Rejected{Reason: resp.ErrorMessage()}
	}
	statuses, err := resp.Statuses()
	if err != nil {
		return domain.TransportFailure{Cause: err}
	}
	if len(statuses) == 0 {
		return domain.TransportFailure{Cause: errors.New("响应中没有订单状态")}
	}
	return outcomeFromStatus(statuses[0])
}

func outcomeFromStatus(raw json.RawMessage) domain.OrderOutcome {
	st, err := types.ParseOrderStatus(raw)
	if err != nil {
		return domain.TransportFailure{Cause: err}
	}
	switch {
	case st.Error != nil:
		return domain.Rejected{Reason: *st.Error}
	case st.Filled != nil:
		return domain.Accepted{
			ExchangeOrderID: st.Filled.Oid,
			Fills:           []domain.Fill{{Quantity: st.Filled.TotalSz, Price: st.Filled.AvgPx}},
		}
	default:
		return domain.Accepted{ExchangeOrderID: st.Resting.Oid}
	}
}

// CancelOrders 查询目标账户在 symbol 上的挂单并一次性批量撤销
func (e *Exchange) CancelOrders(ctx context.Context, symbol string) (domain.CancelReport, error) {
	report := domain.CancelReport{Symbol: symbol}
	asset, err := e.assets.Resolve(ctx, symbol)
	if err != nil {
		return report, err
	}
	open, err := e.client.OpenOrders(ctx, e.account.Hex())
	if err != nil {
		return report, domain.NewTransportError(errors.Wrapf(err, "查询 %s 挂单失败", e.account.Hex()))
	}
	var oids []int64
	for _, o := range open {
		if o.Coin == asset.Coin {
			oids = append(oids, o.Oid)
		}
	}
	if len(oids) == 0 {
		return report, nil
	}
	return e.cancel(ctx, asset, symbol, oids)
}

// CancelOrder 按 oid 撤单
func (e *Exchange) CancelOrder(ctx context.Context, symbol string, oid int64) (domain.CancelReport, error) {
	asset, err := e.assets.Resolve(ctx, symbol)
	if err != nil {
		return domain.CancelReport{Symbol: symbol}, err
	}
	return e.cancel(ctx, asset, symbol, []int64{oid})
}

func (e *Exchange) cancel(ctx context.Context, asset Asset, symbol string, oids []int64) (domain.CancelReport, error) {
	report := domain.CancelReport{Symbol: symbol}
	wires := make([]types.CancelWire, len(oids))
	for i, oid := range oids {
		wires[i] = types.CancelWire{Asset: asset.ID, Oid: oid}
	}

	resp, err := e.client.CancelOrders(ctx, wires...)
	if err != nil {
		return report, domain.NewTransportError(errors.Wrapf(err, "撤销 %s 挂单失败", symbol))
	}
	if !resp.IsOK() {
		reason := resp.ErrorMessage()
		for _, oid := range oids {
			report.Results = append(report.Results, domain.CancelResult{ExchangeOrderID: oid, Reason: reason})
		}
		return report, nil
	}

	statuses, err := resp.Statuses()
	if err != nil {
		return report, domain.NewTransportError(err)
	}
	for i, oid := range oids {
		res := domain.CancelResult{ExchangeOrderID: oid}
		if i >= len(statuses) {
			res.Reason = "响应中缺少撤单状态"
			report.Results = append(report.Results, res)
			continue
		}
		reason, err := types.ParseCancelStatus(statuses[i])
		switch {
		case err != nil:
			res.Reason = err.Error()
		case reason != "":
			res.Reason = reason
		default:
			res.OK = true
		}
		report.Results = append(report.Results, res)
	}
	return report, nil
}

// FetchSpotBalances 现货余额（total，包含挂单冻结部分）
func (e *Exchange) FetchSpotBalances(ctx context.Context, account string) (map[string]decimal.Decimal, error) {
	st, err := e.client.SpotClearinghouseState(ctx, account)
	if err != nil {
		return nil, domain.NewTransportError(err)
	}
	out := make(map[string]decimal.Decimal, len(st.Balances))
	for _, b := range st.Balances {
		out[b.Coin] = b.Total
	}
	return out, nil
}

// FetchPerpState 永续账户净值与仓位
func (e *Exchange) FetchPerpState(ctx context.Context, account string) (domain.PerpState, error) {
	st, err := e.client.ClearinghouseState(ctx, account)
	if err != nil {
		return domain.PerpState{}, domain.NewTransportError(err)
	}
	state := domain.PerpState{AccountValueUSD: st.MarginSummary.AccountValue}
	for _, ap := range st.AssetPositions {
		p := domain.PerpPosition{Symbol: ap.Position.Coin, Size: ap.Position.Szi}
		if ap.Position.EntryPx != nil {
			p.EntryPrice = decimal.NewNullDecimal(*ap.Position.EntryPx)
		}
		state.Positions = append(state.Positions, p)
	}
	return state, nil
}

// LotSize 10^-szDecimals
func (e *Exchange) LotSize(ctx context.Context, symbol string) (decimal.Decimal, error) {
	asset, err := e.assets.Resolve(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	return asset.LotSize(), nil
}

// UpdateLeverage 设置永续杠杆
func (e *Exchange) UpdateLeverage(ctx context.Context, symbol string, leverage int, isCross bool) error {
	asset, err := e.assets.Resolve(ctx, symbol)
	if err != nil {
		return err
	}
	if asset.IsSpot {
		return errors.Wrapf(domain.ErrInvalidInput, "%s 是现货，不能设置杠杆", symbol)
	}
	resp, err := e.client.UpdateLeverage(ctx, asset.ID, isCross, leverage)
	if err != nil {
		return domain.NewTransportError(errors.Wrapf(err, "设置 %s 杠杆失败", symbol))
	}
	if !resp.IsOK() {
		return errors.Wrapf(domain.ErrRejected, "设置 %s 杠杆 %dx: %s", symbol, leverage, resp.ErrorMessage())
	}
	venueLog.WithField("symbol", symbol).Infof("杠杆已设置为 %dx (cross=%v)", leverage, isCross)
	return nil
}
