package domain

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Side 买卖方向
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// IsBuy 是否买入
func (s Side) IsBuy() bool { return s == SideBuy }

// Opposite 反方向
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Validate 只允许 buy / sell
func (s Side) Validate() error {
	if s != SideBuy && s != SideSell {
		return errors.Wrapf(ErrInvalidInput, "未知方向 %q", string(s))
	}
	return nil
}

// TimeInForce 订单有效期
type TimeInForce string

const (
	TifIoc TimeInForce = "Ioc" // 立即成交，剩余撤销
	TifGtc TimeInForce = "Gtc" // 挂单直到撤销
)

// Validate 只允许 Ioc / Gtc
func (t TimeInForce) Validate() error {
	if t != TifIoc && t != TifGtc {
		return errors.Wrapf(ErrInvalidInput, "不支持的 time-in-force %q", string(t))
	}
	return nil
}

// Cloid 客户端订单号（16 字节，线上格式为 0x + 32 位十六进制）
type Cloid [16]byte

// NewCloid 随机生成
func NewCloid() Cloid {
	return Cloid(uuid.New())
}

// ParseCloid 解析 0x 开头的 32 位十六进制
func ParseCloid(s string) (Cloid, error) {
	var c Cloid
	raw := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	b, err := hex.DecodeString(raw)
	if err != nil || len(b) != len(c) {
		return c, errors.Wrapf(ErrInvalidInput, "无效的 cloid %q", s)
	}
	copy(c[:], b)
	return c, nil
}

func (c Cloid) String() string {
	return "0x" + hex.EncodeToString(c[:])
}

// OrderIntentParams 构建 OrderIntent 的参数
type OrderIntentParams struct {
	Symbol        string
	Side          Side
	Quantity      decimal.Decimal
	LimitPrice    decimal.Decimal
	TimeInForce   TimeInForce
	ReduceOnly    bool
	ClientOrderID *Cloid
}

// OrderIntent 一次下单意图。构建后不可修改。
type OrderIntent struct {
	symbol     string
	side       Side
	quantity   decimal.Decimal
	limitPrice decimal.Decimal
	tif        TimeInForce
	reduceOnly bool
	cloid      *Cloid
}

// NewOrderIntent 校验参数并构建下单意图
func NewOrderIntent(p OrderIntentParams) (OrderIntent, error) {
	if strings.TrimSpace(p.Symbol) == "" {
		return OrderIntent{}, errors.Wrap(ErrInvalidInput, "symbol 不能为空")
	}
	if err := p.Side.Validate(); err != nil {
		return OrderIntent{}, err
	}
	if err := p.TimeInForce.Validate(); err != nil {
		return OrderIntent{}, err
	}
	if !p.Quantity.IsPositive() {
		return OrderIntent{}, errors.Wrapf(ErrInvalidInput, "数量必须为正: symbol=%s qty=%s", p.Symbol, p.Quantity)
	}
	if !p.LimitPrice.IsPositive() {
		return OrderIntent{}, errors.Wrapf(ErrInvalidInput, "限价必须为正: symbol=%s px=%s", p.Symbol, p.LimitPrice)
	}

	intent := OrderIntent{
		symbol:     p.Symbol,
		side:       p.Side,
		quantity:   p.Quantity,
		limitPrice: p.LimitPrice,
		tif:        p.TimeInForce,
		reduceOnly: p.ReduceOnly,
	}
	if p.ClientOrderID != nil {
		c := *p.ClientOrderID
		intent.cloid = &c
	}
	return intent, nil
}

func (o OrderIntent) Symbol() string { return o.symbol }
func (o OrderIntent) Side() Side { return o.side }
func (o OrderIntent) Quantity() decimal.Decimal { return o.quantity }
func (o OrderIntent) LimitPrice() decimal.Decimal { return o.limitPrice }
func (o OrderIntent) TimeInForce() TimeInForce { return o.tif }
func (o OrderIntent) ReduceOnly() bool { return o.reduceOnly }

// ClientOrderID 返回副本，调用方修改不影响意图本身
func (o OrderIntent) ClientOrderID() (Cloid, bool) {
	if o.cloid == nil {
		return Cloid{}, false
	}
	return *o.cloid, true
}

// Notional 数量 × 限价
func (o OrderIntent) Notional() decimal.Decimal {
	return o.quantity.Mul(o.limitPrice)
}

func (o OrderIntent) String() string {
	s := fmt.Sprintf("%s %s %s @ %s %s", o.symbol, o.side, o.quantity, o.limitPrice, o.tif)
	if o.reduceOnly {
		s += " reduce-only"
	}
	if o.cloid != nil {
		s += " cloid=" + o.cloid.String()
	}
	return s
}
