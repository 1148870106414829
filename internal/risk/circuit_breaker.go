package risk

import (
	"sync/atomic"

	"github.com/betbot/hlarb/internal/domain"
)

// CircuitBreakerConfig 断路器配置。阈值 <= 0 表示关闭连续错误熔断。
type CircuitBreakerConfig struct {
	// MaxConsecutiveErrors 连续失败上限（Rejected / TransportFailure）
	MaxConsecutiveErrors int64
}

// CircuitBreaker 快路径只读原子变量
type CircuitBreaker struct {
	halted               atomic.Bool
	consecutiveErrors    atomic.Int64
	maxConsecutiveErrors atomic.Int64
}

// BreakerState 断路器状态快照
type BreakerState struct {
	Halted            bool  `json:"halted"`
	ConsecutiveErrors int64 `json:"consecutive_errors"`
	MaxErrors         int64 `json:"max_errors"`
}

func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	cb := &CircuitBreaker{}
	cb.maxConsecutiveErrors.Store(cfg.MaxConsecutiveErrors)
	return cb
}

// Halt 手动熔断
func (cb *CircuitBreaker) Halt() {
	if cb == nil {
		return
	}
	cb.halted.Store(true)
}

// Resume 手动恢复，同时清空连续错误计数
func (cb *CircuitBreaker) Resume() {
	if cb == nil {
		return
	}
	cb.halted.Store(false)
	cb.consecutiveErrors.Store(0)
}

// AllowTrading 检查是否允许下单
func (cb *CircuitBreaker) AllowTrading() error {
	if cb == nil {
		return nil
	}
	if cb.halted.Load() {
		return domain.ErrCircuitBreakerOpen
	}
	maxErr := cb.maxConsecutiveErrors.Load()
	if maxErr > 0 && cb.consecutiveErrors.Load() >= maxErr {
		cb.halted.Store(true)
		return domain.ErrCircuitBreakerOpen
	}
	return nil
}

// Record 按下单结果更新计数：Accepted 清零，其余累加
func (cb *CircuitBreaker) Record(outcome domain.OrderOutcome) {
	if cb == nil || outcome == nil {
		return
	}
	if outcome.Err() == nil {
		cb.consecutiveErrors.Store(0)
		return
	}
	cb.consecutiveErrors.Add(1)
}

// State 当前状态。连续错误已达上限时即视为熔断，不必等下一次 AllowTrading。
func (cb *CircuitBreaker) State() BreakerState {
	if cb == nil {
		return BreakerState{}
	}
	errs := cb.consecutiveErrors.Load()
	maxErr := cb.maxConsecutiveErrors.Load()
	return BreakerState{
		Halted:            cb.halted.Load() || (maxErr > 0 && errs >= maxErr),
		ConsecutiveErrors: errs,
		MaxErrors:         maxErr,
	}
}
