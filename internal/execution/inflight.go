package execution

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/betbot/hlarb/internal/domain"
)

type inFlightKey struct {
	symbol string
	side   domain.Side
}

// InFlightGuard 同一 (symbol, side) 同时只允许一笔订单在途。
// 占用超过 ttl 视为已释放，防止异常路径漏掉释放后永久锁死。
type InFlightGuard struct {
	ttl time.Duration
	now func() time.Time

	mu   sync.Mutex
	held map[inFlightKey]time.Time // -> 占用时间
}

// NewInFlightGuard ttl 应覆盖一次 报价->下单->确认 的最长耗时
func NewInFlightGuard(ttl time.Duration) *InFlightGuard {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &InFlightGuard{
		ttl:  ttl,
		now:  time.Now,
		held: make(map[inFlightKey]time.Time),
	}
}

// Acquire 占用 (symbol, side)，返回的 release 只释放本次占用，可重复调用。
// 已被占用时返回 ErrDuplicateInFlight。
func (g *InFlightGuard) Acquire(symbol string, side domain.Side) (release func(), err error) {
	if g == nil {
		return func() {}, nil
	}
	key := inFlightKey{symbol: symbol, side: side}
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()
	if since, ok := g.held[key]; ok && now.Sub(since) < g.ttl {
		return nil, errors.Wrapf(domain.ErrDuplicateInFlight, "%s %s 已有在途订单（%s 前占用）", symbol, side, now.Sub(since).Round(time.Millisecond))
	}
	g.held[key] = now

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			defer g.mu.Unlock()
			// 超时后被别人重新占用的不释放
			if since, ok := g.held[key]; ok && since.Equal(now) {
				delete(g.held, key)
			}
		})
	}, nil
}

// Held 当前占用数量（含已超时未清理的）
func (g *InFlightGuard) Held() int {
	if g == nil {
		return 0
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.held)
}
