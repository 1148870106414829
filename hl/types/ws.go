package types

import "encoding/json"

// WSSubscription 订阅参数
type WSSubscription struct {
	Type string `json:"type"`
	Coin string `json:"coin,omitempty"`
	User string `json:"user,omitempty"`
}

// WSRequest 订阅/取消订阅请求
type WSRequest struct {
	Method       string          `json:"method"`
	Subscription *WSSubscription `json:"subscription,omitempty"`
}

// WSMessage 服务端推送
type WSMessage struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

const (
	WSChannelL2Book            = "l2Book"
	WSChannelSubscriptionReply = "subscriptionResponse"
	WSChannelPong              = "pong"
	WSChannelError             = "error"
)
