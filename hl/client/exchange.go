package client

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/betbot/hlarb/hl/signing"
	"github.com/betbot/hlarb/hl/types"
	"github.com/betbot/hlarb/pkg/ratelimit"
)

// ErrNoSigner 未配置私钥
var ErrNoSigner = errors.New("客户端未配置私钥，无法签名")

// postAction 签名并提交 L1 action。
// 返回 error 仅表示传输或协议层失败；交易所拒绝体现在 ExchangeResponse 中。
func (c *Client) postAction(ctx context.Context, action any) (*types.ExchangeResponse, error) {
	if !c.CanSign() {
		return nil, ErrNoSigner
	}
	if err := c.rateLimiter.Wait(ctx, ratelimit.KeyExchange); err != nil {
		return nil, errors.Wrap(err, "等待限速失败")
	}

	nonce := c.nextNonce()
	sig, err := signing.SignL1Action(c.privateKey, action, c.vault, nonce, c.network.IsMainnet())
	if err != nil {
		return nil, errors.Wrap(err, "签名 action 失败")
	}

	req := types.ExchangeRequest{
		Action:    action,
		Nonce:     nonce,
		Signature: sig,
	}
	if c.vault != nil {
		v := strings.ToLower(c.vault.Hex())
		req.VaultAddress = &v
	}

	var resp types.ExchangeResponse
	if err := c.httpClient.postExchange(ctx, req, &resp); err != nil {
		return nil, errors.Wrap(err, "提交 action 失败")
	}
	if resp.Status == "" {
		return nil, errors.New("交易所响应缺少 status 字段")
	}
	return &resp, nil
}

// PlaceOrders 下单（不分组）
func (c *Client) PlaceOrders(ctx context.Context, orders ...types.OrderWire) (*types.ExchangeResponse, error) {
	if len(orders) == 0 {
		return nil, errors.New("订单列表为空")
	}
	return c.postAction(ctx, types.NewOrderAction(orders...))
}

// CancelOrders 按 oid 批量撤单
func (c *Client) CancelOrders(ctx context.Context, cancels ...types.CancelWire) (*types.ExchangeResponse, error) {
	if len(cancels) == 0 {
		return nil, errors.New("撤单列表为空")
	}
	return c.postAction(ctx, types.NewCancelAction(cancels...))
}

// UpdateLeverage 调整永续杠杆
func (c *Client) UpdateLeverage(ctx context.Context, asset int, isCross bool, leverage int) (*types.ExchangeResponse, error) {
	if leverage <= 0 {
		return nil, errors.Errorf("杠杆必须为正数: %d", leverage)
	}
	return c.postAction(ctx, types.NewUpdateLeverageAction(asset, isCross, leverage))
}
