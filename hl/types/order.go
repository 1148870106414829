package types

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// OrderWire 下单请求（字段顺序参与 msgpack 哈希，不能调整）
type OrderWire struct {
	Asset      int           `json:"a" msgpack:"a"`
	IsBuy      bool          `json:"b" msgpack:"b"`
	LimitPx    string        `json:"p" msgpack:"p"`
	Size       string        `json:"s" msgpack:"s"`
	ReduceOnly bool          `json:"r" msgpack:"r"`
	OrderType  OrderTypeWire `json:"t" msgpack:"t"`
	Cloid      *string       `json:"c,omitempty" msgpack:"c,omitempty"`
}

// OrderTypeWire 订单类型（目前只用 limit）
type OrderTypeWire struct {
	Limit *LimitWire `json:"limit,omitempty" msgpack:"limit,omitempty"`
}

// LimitWire 限价参数
type LimitWire struct {
	Tif Tif `json:"tif" msgpack:"tif"`
}

// OrderAction 下单 action
type OrderAction struct {
	Type     string      `json:"type" msgpack:"type"`
	Orders   []OrderWire `json:"orders" msgpack:"orders"`
	Grouping string      `json:"grouping" msgpack:"grouping"`
}

// NewOrderAction 构建不分组的下单 action
func NewOrderAction(orders ...OrderWire) OrderAction {
	return OrderAction{Type: "order", Orders: orders, Grouping: "na"}
}

// CancelWire 按 oid 撤单
type CancelWire struct {
	Asset int   `json:"a" msgpack:"a"`
	Oid   int64 `json:"o" msgpack:"o"`
}

// CancelAction 撤单 action
type CancelAction struct {
	Type    string       `json:"type" msgpack:"type"`
	Cancels []CancelWire `json:"cancels" msgpack:"cancels"`
}

// NewCancelAction 构建撤单 action
func NewCancelAction(cancels ...CancelWire) CancelAction {
	return CancelAction{Type: "cancel", Cancels: cancels}
}

// UpdateLeverageAction 调整杠杆 action
type UpdateLeverageAction struct {
	Type     string `json:"type" msgpack:"type"`
	Asset    int    `json:"asset" msgpack:"asset"`
	IsCross  bool   `json:"isCross" msgpack:"isCross"`
	Leverage int    `json:"leverage" msgpack:"leverage"`
}

// NewUpdateLeverageAction 构建调整杠杆 action
func NewUpdateLeverageAction(asset int, isCross bool, leverage int) UpdateLeverageAction {
	return UpdateLeverageAction{Type: "updateLeverage", Asset: asset, IsCross: isCross, Leverage: leverage}
}

// ExchangeRequest /exchange 请求体
type ExchangeRequest struct {
	Action       any       `json:"action"`
	Nonce        int64     `json:"nonce"`
	Signature    Signature `json:"signature"`
	VaultAddress *string   `json:"vaultAddress"`
}

// ExchangeResponse /exchange 响应。
// status=ok 时 response 为对象；status=err 时 response 为错误字符串。
type ExchangeResponse struct {
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response"`
}

// IsOK 交易所是否接受了请求
func (r *ExchangeResponse) IsOK() bool {
	return r != nil && r.Status == "ok"
}

// ErrorMessage status=err 时的原因
func (r *ExchangeResponse) ErrorMessage() string {
	if r == nil {
		return ""
	}
	var msg string
	if err := json.Unmarshal(r.Response, &msg); err == nil {
		return msg
	}
	return string(r.Response)
}

// ExchangeResponseBody status=ok 时的 response
type ExchangeResponseBody struct {
	Type string `json:"type"`
	Data *struct {
		Statuses []json.RawMessage `json:"statuses"`
	} `json:"data,omitempty"`
}

// Statuses 解析 response.data.statuses
func (r *ExchangeResponse) Statuses() ([]json.RawMessage, error) {
	var body ExchangeResponseBody
	if err := json.Unmarshal(r.Response, &body); err != nil {
		return nil, fmt.Errorf("解析 response 失败: %w", err)
	}
	if body.Data == nil {
		return nil, nil
	}
	return body.Data.Statuses, nil
}

// OrderStatus 单个订单的返回状态（三选一）
type OrderStatus struct {
	Resting *RestingStatus `json:"resting,omitempty"`
	Filled  *FilledStatus  `json:"filled,omitempty"`
	Error   *string        `json:"error,omitempty"`
}

// RestingStatus 挂单成功
type RestingStatus struct {
	Oid   int64   `json:"oid"`
	Cloid *string `json:"cloid,omitempty"`
}

// FilledStatus 立即成交
type FilledStatus struct {
	TotalSz decimal.Decimal `json:"totalSz"`
	AvgPx   decimal.Decimal `json:"avgPx"`
	Oid     int64           `json:"oid"`
	Cloid   *string         `json:"cloid,omitempty"`
}

// ParseOrderStatus 解析 statuses 中的一项
func ParseOrderStatus(raw json.RawMessage) (OrderStatus, error) {
	var st OrderStatus
	if err := json.Unmarshal(raw, &st); err != nil {
		return st, fmt.Errorf("解析订单状态失败: %w, 原始数据: %s", err, string(raw))
	}
	if st.Resting == nil && st.Filled == nil && st.Error == nil {
		return st, fmt.Errorf("未知订单状态: %s", string(raw))
	}
	return st, nil
}

// ParseCancelStatus 撤单状态为字符串 "success" 或 {"error": "..."}。
// 成功返回空字符串。
func ParseCancelStatus(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "success" {
			return "", nil
		}
		return s, nil
	}
	var e struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &e); err != nil {
		return "", fmt.Errorf("解析撤单状态失败: %w, 原始数据: %s", err, string(raw))
	}
	if e.Error == "" {
		return "", fmt.Errorf("未知撤单状态: %s", string(raw))
	}
	return e.Error, nil
}
