package execution

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/betbot/hlarb/internal/domain"
	"github.com/betbot/hlarb/internal/ports"
)

// OrderState 订单生命周期：Built -> Submitted -> Accepted | Rejected | TransportFailure
type OrderState int

const (
	StateBuilt OrderState = iota
	StateSubmitted
	StateAccepted
	StateRejected
	StateTransportFailure
)

func (s OrderState) String() string {
	switch s {
	case StateBuilt:
		return "built"
	case StateSubmitted:
		return "submitted"
	case StateAccepted:
		return "accepted"
	case StateRejected:
		return "rejected"
	case StateTransportFailure:
		return "transport_failure"
	default:
		return "unknown"
	}
}

// IsTerminal 是否终态
func (s OrderState) IsTerminal() bool {
	return s >= StateAccepted
}

// ErrIllegalTransition 非法状态迁移（例如同一张订单提交两次）
var ErrIllegalTransition = errors.New("illegal order state transition")

// OrderTicket 单笔订单的状态机。一张 ticket 只能提交一次。
type OrderTicket struct {
	mu          sync.Mutex
	intent      domain.OrderIntent
	state       OrderState
	outcome     domain.OrderOutcome
	submittedAt time.Time
	completedAt time.Time
}

// NewOrderTicket 处于 Built 状态
func NewOrderTicket(intent domain.OrderIntent) *OrderTicket {
	return &OrderTicket{intent: intent, state: StateBuilt}
}

func (t *OrderTicket) Intent() domain.OrderIntent { return t.intent }

func (t *OrderTicket) State() OrderState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Outcome 终态前为 nil
func (t *OrderTicket) Outcome() domain.OrderOutcome {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.outcome
}

// Latency 提交到得到结果的耗时
func (t *OrderTicket) Latency() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.completedAt.IsZero() {
		return 0
	}
	return t.completedAt.Sub(t.submittedAt)
}

func (t *OrderTicket) markSubmitted(at time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateBuilt {
		return errors.Wrapf(ErrIllegalTransition, "%s -> %s", t.state, StateSubmitted)
	}
	t.state = StateSubmitted
	t.submittedAt = at
	return nil
}

func (t *OrderTicket) complete(outcome domain.OrderOutcome, at time.Time) error {
	var next OrderState
	switch outcome.(type) {
	case domain.Accepted:
		next = StateAccepted
	case domain.Rejected:
		next = StateRejected
	case domain.TransportFailure:
		next = StateTransportFailure
	default:
		return errors.Wrapf(ErrIllegalTransition, "未知结果类型 %T", outcome)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateSubmitted {
		return errors.Wrapf(ErrIllegalTransition, "%s -> %s", t.state, next)
	}
	t.state = next
	t.outcome = outcome
	t.completedAt = at
	return nil
}

// Submitter 提交订单。内部不重试：重复提交可能导致重复成交。
type Submitter struct {
	orders    ports.OrderSubmitter
	validator ports.OrderValidator
	now       func() time.Time
}

// NewSubmitter orders 同时实现 ports.OrderValidator 时，提交前先做本地检查
func NewSubmitter(orders ports.OrderSubmitter) *Submitter {
	s := &Submitter{orders: orders, now: time.Now}
	if v, ok := orders.(ports.OrderValidator); ok {
		s.validator = v
	}
	return s
}

// Validate 本地检查，不改变任何 ticket 状态
func (s *Submitter) Validate(ctx context.Context, intent domain.OrderIntent) error {
	if s == nil || s.validator == nil {
		return nil
	}
	return s.validator.ValidateOrder(ctx, intent)
}

// Submit 构建 ticket 并提交，返回终态结果。
// error 表示订单没有离开进程（本地检查失败或未初始化）。
func (s *Submitter) Submit(ctx context.Context, intent domain.OrderIntent) (domain.OrderOutcome, error) {
	t := NewOrderTicket(intent)
	if err := s.SubmitTicket(ctx, t); err != nil {
		return nil, err
	}
	return t.Outcome(), nil
}

// SubmitTicket 提交一张 Built 状态的 ticket，完成后 ticket 处于终态。
// 本地检查失败时 ticket 保持 Built 并返回 error；非法状态迁移同样返回 error。
// 交易所结果记录在 ticket 中。
func (s *Submitter) SubmitTicket(ctx context.Context, t *OrderTicket) error {
	if s == nil || s.orders == nil {
		return errors.New("submitter not initialized")
	}
	if t.State() != StateBuilt {
		return errors.Wrapf(ErrIllegalTransition, "%s -> %s", t.State(), StateSubmitted)
	}
	if err := s.Validate(ctx, t.intent); err != nil {
		return err
	}
	if err := t.markSubmitted(s.now()); err != nil {
		return err
	}

	outcome := s.orders.SubmitOrder(ctx, t.intent)
	if outcome == nil {
		outcome = domain.TransportFailure{Cause: errors.New("交易所适配器返回空结果")}
	}
	return t.complete(outcome, s.now())
}
