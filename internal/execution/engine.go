package execution

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/betbot/hlarb/internal/domain"
	"github.com/betbot/hlarb/internal/ports"
	"github.com/betbot/hlarb/internal/risk"
	"github.com/betbot/hlarb/pkg/logger"
)

// Recorder 执行审计记录
type Recorder interface {
	Append(ctx context.Context, rec domain.ExecutionRecord) (int64, error)
}

// Observer 执行指标
type Observer interface {
	ObserveOrder(symbol string, side domain.Side, outcome domain.OrderOutcome, latency time.Duration)
	ObserveDryRun(symbol string, side domain.Side)
	ObserveSkip(symbol string)
	SetBreakerHalted(halted bool)
}

type nopObserver struct{}

func (nopObserver) ObserveOrder(string, domain.Side, domain.OrderOutcome, time.Duration) {}
func (nopObserver) ObserveDryRun(string, domain.Side)                                    {}
func (nopObserver) ObserveSkip(string)                                                   {}
func (nopObserver) SetBreakerHalted(bool)                                                {}

// EngineConfig 执行参数
type EngineConfig struct {
	SlippageTolerance decimal.Decimal
	// LotSizeOverride 与交易所步长取较粗者；没有交易所步长时直接使用
	LotSizeOverride decimal.NullDecimal
	DryRun          bool
	InFlightTTL     time.Duration
}

// TradeRequest 一次交易请求：以目标名义金额在 symbol 上买入或卖出
type TradeRequest struct {
	Symbol      string
	Side        domain.Side
	NotionalUSD decimal.Decimal
	TimeInForce domain.TimeInForce
	ReduceOnly  bool
}

// Execution 一次执行的全过程
type Execution struct {
	Request        TradeRequest
	ReferencePrice decimal.Decimal
	Sizing         domain.SizingResult
	LimitPrice     decimal.Decimal
	Intent         *domain.OrderIntent
	Ticket         *OrderTicket
	// Skipped 数量取整后为 0，没有下单
	Skipped bool
	// DryRun 构建了意图但没有提交
	DryRun bool
}

// Outcome 提交结果；未提交时为 nil
func (e *Execution) Outcome() domain.OrderOutcome {
	if e == nil || e.Ticket == nil {
		return nil
	}
	return e.Ticket.Outcome()
}

// Engine 串联 报价 -> 计算数量 -> 限价 -> 下单。
// 同一进程内同一 (symbol, side) 只允许一笔在途。
type Engine struct {
	cfg       EngineConfig
	risk      risk.Params
	quotes    *QuoteReader
	lots      ports.LotSizer
	submitter *Submitter
	breaker   *risk.CircuitBreaker
	inFlight  *InFlightGuard
	recorder  Recorder
	observer  Observer
	now       func() time.Time
}

// EngineOption 可选组件
type EngineOption func(*Engine)

// WithCircuitBreaker 连续失败熔断
func WithCircuitBreaker(cb *risk.CircuitBreaker) EngineOption {
	return func(e *Engine) { e.breaker = cb }
}

// WithRecorder 审计记录
func WithRecorder(r Recorder) EngineOption {
	return func(e *Engine) { e.recorder = r }
}

// WithObserver 上报下单指标
func WithObserver(o Observer) EngineOption {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// WithLotSizer 从交易所查询步长
func WithLotSizer(l ports.LotSizer) EngineOption {
	return func(e *Engine) { e.lots = l }
}

func NewEngine(cfg EngineConfig, params risk.Params, books ports.BookFetcher, orders ports.OrderSubmitter, opts ...EngineOption) (*Engine, error) {
	if !cfg.SlippageTolerance.IsPositive() || cfg.SlippageTolerance.GreaterThanOrEqual(one) {
		return nil, errors.Wrapf(domain.ErrInvalidInput, "滑点容忍度必须在 (0, 1): %s", cfg.SlippageTolerance)
	}
	if cfg.LotSizeOverride.Valid && !cfg.LotSizeOverride.Decimal.IsPositive() {
		return nil, errors.Wrapf(domain.ErrInvalidInput, "步长必须为正: %s", cfg.LotSizeOverride.Decimal)
	}
	e := &Engine{
		cfg:       cfg,
		risk:      params,
		quotes:    NewQuoteReader(books),
		submitter: NewSubmitter(orders),
		inFlight:  NewInFlightGuard(cfg.InFlightTTL),
		observer:  nopObserver{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (r TradeRequest) validate() error {
	if r.Symbol == "" {
		return errors.Wrap(domain.ErrInvalidInput, "symbol 不能为空")
	}
	if err := r.Side.Validate(); err != nil {
		return err
	}
	if err := r.TimeInForce.Validate(); err != nil {
		return err
	}
	if !r.NotionalUSD.IsPositive() {
		return errors.Wrapf(domain.ErrInvalidInput, "名义金额必须为正: %s", r.NotionalUSD)
	}
	return nil
}

// Execute 执行一次交易请求。
// 返回的 error 覆盖风控拒绝、空盘口、非法输入以及交易所 Rejected / TransportFailure；
// 只要已经提交过，Execution.Ticket 就带有结果。
func (e *Engine) Execute(ctx context.Context, req TradeRequest) (*Execution, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	if err := e.risk.CheckNotional(req.NotionalUSD); err != nil {
		return nil, err
	}
	if err := e.breaker.AllowTrading(); err != nil {
		return nil, err
	}

	release, err := e.inFlight.Acquire(req.Symbol, req.Side)
	if err != nil {
		return nil, err
	}
	defer release()

	log := logger.WithFields(logrus.Fields{
		"symbol": req.Symbol,
		"side":   req.Side,
	})
	exec := &Execution{Request: req}

	ref, err := e.quotes.BestPrice(ctx, req.Symbol, req.Side)
	if err != nil {
		return exec, err
	}
	exec.ReferencePrice = ref

	lot, err := e.lotSize(ctx, req.Symbol)
	if err != nil {
		return exec, err
	}
	sizing, err := SizePosition(req.NotionalUSD, ref, lot)
	if err != nil {
		return exec, err
	}
	exec.Sizing = sizing
	if sizing.ShouldSkip() {
		exec.Skipped = true
		e.observer.ObserveSkip(req.Symbol)
		log.Warnf("数量取整后为 0，跳过: notional=%s px=%s raw=%s lot=%s",
			req.NotionalUSD, ref, sizing.RawQuantity, sizing.LotSize)
		return exec, nil
	}

	limit, err := BoundPrice(ref, req.Side, e.cfg.SlippageTolerance)
	if err != nil {
		return exec, err
	}
	exec.LimitPrice = limit

	cloid := domain.NewCloid()
	intent, err := domain.NewOrderIntent(domain.OrderIntentParams{
		Symbol:        req.Symbol,
		Side:          req.Side,
		Quantity:      sizing.RoundedQuantity,
		LimitPrice:    limit,
		TimeInForce:   req.TimeInForce,
		ReduceOnly:    req.ReduceOnly,
		ClientOrderID: &cloid,
	})
	if err != nil {
		return exec, err
	}
	exec.Intent = &intent
	return e.submit(ctx, exec, log)
}

// LimitRequest 指定价格和数量的限价单，用于挂远离市价的测试单等场景
type LimitRequest struct {
	Symbol      string
	Side        domain.Side
	Quantity    decimal.Decimal
	LimitPrice  decimal.Decimal
	TimeInForce domain.TimeInForce
	ReduceOnly  bool
}

// PlaceLimit 按给定价格和数量下单，不做滑点限价。
// 风控、熔断、在途去重、dry run 和审计与 Execute 一致。
func (e *Engine) PlaceLimit(ctx context.Context, req LimitRequest) (*Execution, error) {
	cloid := domain.NewCloid()
	intent, err := domain.NewOrderIntent(domain.OrderIntentParams{
		Symbol:        req.Symbol,
		Side:          req.Side,
		Quantity:      req.Quantity,
		LimitPrice:    req.LimitPrice,
		TimeInForce:   req.TimeInForce,
		ReduceOnly:    req.ReduceOnly,
		ClientOrderID: &cloid,
	})
	if err != nil {
		return nil, err
	}
	notional := intent.Notional()
	if err := e.risk.CheckNotional(notional); err != nil {
		return nil, err
	}
	if err := e.breaker.AllowTrading(); err != nil {
		return nil, err
	}

	release, err := e.inFlight.Acquire(req.Symbol, req.Side)
	if err != nil {
		return nil, err
	}
	defer release()

	exec := &Execution{
		Request: TradeRequest{
			Symbol:      req.Symbol,
			Side:        req.Side,
			NotionalUSD: notional,
			TimeInForce: req.TimeInForce,
			ReduceOnly:  req.ReduceOnly,
		},
		ReferencePrice: req.LimitPrice,
		LimitPrice:     req.LimitPrice,
		Intent:         &intent,
	}
	log := logger.WithFields(logrus.Fields{
		"symbol": req.Symbol,
		"side":   req.Side,
	})
	return e.submit(ctx, exec, log)
}

// submit 提交 exec.Intent（dry run 时只记录），并更新熔断与审计
func (e *Engine) submit(ctx context.Context, exec *Execution, log *logrus.Entry) (*Execution, error) {
	intent := *exec.Intent
	if cloid, ok := intent.ClientOrderID(); ok {
		log = log.WithField("cloid", cloid)
	}
	log = log.WithFields(logrus.Fields{"qty": intent.Quantity(), "px": intent.LimitPrice()})
	ref := exec.ReferencePrice

	// 本地检查失败：订单不离开进程，不建 ticket，不计入熔断
	if err := e.submitter.Validate(ctx, intent); err != nil {
		log.Warnf("下单前检查失败: %v", err)
		return exec, errors.Wrapf(err, "%s qty=%s px=%s", intent.Symbol(), intent.Quantity(), intent.LimitPrice())
	}

	if e.cfg.DryRun {
		exec.DryRun = true
		e.observer.ObserveDryRun(intent.Symbol(), intent.Side())
		log.Infof("[DRY RUN] 不提交订单: %s (ref=%s)", intent, ref)
		e.record(ctx, exec, nil)
		return exec, nil
	}

	ticket := NewOrderTicket(intent)
	exec.Ticket = ticket
	log.Infof("提交订单: %s (ref=%s)", intent, ref)
	if err := e.submitter.SubmitTicket(ctx, ticket); err != nil {
		return exec, err
	}

	outcome := ticket.Outcome()
	e.breaker.Record(outcome)
	e.observer.ObserveOrder(intent.Symbol(), intent.Side(), outcome, ticket.Latency())
	if e.breaker != nil {
		e.observer.SetBreakerHalted(e.breaker.State().Halted)
	}
	e.record(ctx, exec, outcome)

	switch o := outcome.(type) {
	case domain.Accepted:
		if o.IsResting() {
			log.WithField("oid", o.ExchangeOrderID).Infof("订单已接受，无成交 (%s)", intent.TimeInForce())
		} else {
			px, _ := o.AvgFillPrice()
			log.WithField("oid", o.ExchangeOrderID).Infof("订单成交: qty=%s avgPx=%s", o.FilledQuantity(), px)
		}
		return exec, nil
	case domain.Rejected:
		log.Errorf("订单被拒绝: %s", o.Reason)
	case domain.TransportFailure:
		log.Errorf("订单状态未知: %v", o.Cause)
	}
	return exec, errors.Wrapf(outcome.Err(), "%s qty=%s px=%s", intent.Symbol(), intent.Quantity(), intent.LimitPrice())
}

// lotSize 覆盖值与交易所步长取较粗者，二者都没有时用 DefaultLotSize。
// 比交易所精度更细的覆盖值会在线上被再次截断，数量与记录不一致。
func (e *Engine) lotSize(ctx context.Context, symbol string) (decimal.Decimal, error) {
	override := e.cfg.LotSizeOverride
	if e.lots == nil {
		if override.Valid {
			return override.Decimal, nil
		}
		return DefaultLotSize, nil
	}
	lot, err := e.lots.LotSize(ctx, symbol)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "获取 %s 步长失败", symbol)
	}
	if override.Valid && override.Decimal.GreaterThan(lot) {
		return override.Decimal, nil
	}
	return lot, nil
}

// record 审计写入失败只记日志，不影响已经确定的下单结果
func (e *Engine) record(ctx context.Context, exec *Execution, outcome domain.OrderOutcome) {
	if e.recorder == nil || exec.Intent == nil {
		return
	}
	rec := domain.NewExecutionRecord(e.now(), *exec.Intent, exec.Request.NotionalUSD, exec.ReferencePrice, outcome, exec.DryRun)
	// 调用方 ctx 已取消时仍要写入，已提交订单的记录不能丢
	if _, err := e.recorder.Append(context.WithoutCancel(ctx), rec); err != nil {
		logger.WithField("symbol", exec.Request.Symbol).Errorf("写入执行记录失败: %v", err)
	}
}

// Breaker 断路器（可能为 nil）
func (e *Engine) Breaker() *risk.CircuitBreaker {
	return e.breaker
}
