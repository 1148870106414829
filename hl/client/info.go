package client

import (
	"context"

	"github.com/pkg/errors"

	"github.com/betbot/hlarb/hl/types"
	"github.com/betbot/hlarb/pkg/ratelimit"
)

func (c *Client) info(ctx context.Context, req types.InfoRequest, out any) error {
	if err := c.rateLimiter.Wait(ctx, ratelimit.KeyInfo); err != nil {
		return errors.Wrap(err, "等待限速失败")
	}
	if err := c.httpClient.postInfo(ctx, req, out); err != nil {
		return errors.Wrapf(err, "info %s", req.Type)
	}
	return nil
}

// L2Book 获取订单簿快照。coin 为永续名称（如 "HYPE"）或现货名称（如 "@107"）。
func (c *Client) L2Book(ctx context.Context, coin string) (*types.L2Book, error) {
	var book types.L2Book
	if err := c.info(ctx, types.InfoRequest{Type: InfoTypeL2Book, Coin: coin}, &book); err != nil {
		return nil, err
	}
	return &book, nil
}

// Meta 永续元数据
func (c *Client) Meta(ctx context.Context) (*types.Meta, error) {
	var meta types.Meta
	if err := c.info(ctx, types.InfoRequest{Type: InfoTypeMeta}, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// SpotMeta 现货元数据
func (c *Client) SpotMeta(ctx context.Context) (*types.SpotMeta, error) {
	var meta types.SpotMeta
	if err := c.info(ctx, types.InfoRequest{Type: InfoTypeSpotMeta}, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// SpotClearinghouseState 现货余额
func (c *Client) SpotClearinghouseState(ctx context.Context, user string) (*types.SpotClearinghouseState, error) {
	if user == "" {
		return nil, errors.New("user 地址不能为空")
	}
	var st types.SpotClearinghouseState
	if err := c.info(ctx, types.InfoRequest{Type: InfoTypeSpotClearinghouseState, User: user}, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// ClearinghouseState 永续账户状态
func (c *Client) ClearinghouseState(ctx context.Context, user string) (*types.ClearinghouseState, error) {
	if user == "" {
		return nil, errors.New("user 地址不能为空")
	}
	var st types.ClearinghouseState
	if err := c.info(ctx, types.InfoRequest{Type: InfoTypeClearinghouseState, User: user}, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// OpenOrders 账户当前挂单
func (c *Client) OpenOrders(ctx context.Context, user string) ([]types.OpenOrder, error) {
	if user == "" {
		return nil, errors.New("user 地址不能为空")
	}
	var orders []types.OpenOrder
	if err := c.info(ctx, types.InfoRequest{Type: InfoTypeOpenOrders, User: user}, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}
