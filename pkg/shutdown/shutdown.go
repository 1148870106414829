package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/betbot/hlarb/pkg/logger"
)

// Handler 关闭处理函数
type Handler func(ctx context.Context) error

// Manager 按注册的逆序关闭资源（后打开的先关闭）
type Manager struct {
	mu       sync.Mutex
	handlers []namedHandler
}

type namedHandler struct {
	name string
	fn   Handler
}

func NewManager() *Manager {
	return &Manager{}
}

// OnShutdown 注册关闭回调，nil 忽略
func (m *Manager) OnShutdown(name string, handler Handler) {
	if handler == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, namedHandler{name: name, fn: handler})
}

// Shutdown 逆序执行回调，每个回调只执行一次。
// ctx 到期后剩余回调不再执行；返回出错、超时或被跳过的回调数量。
func (m *Manager) Shutdown(ctx context.Context) int {
	m.mu.Lock()
	handlers := m.handlers
	m.handlers = nil
	m.mu.Unlock()

	failed := 0
	for i := len(handlers) - 1; i >= 0; i-- {
		h := handlers[i]
		if ctx.Err() != nil {
			logger.Warnf("关闭超时，跳过 %s", h.name)
			failed++
			continue
		}
		if err := runHandler(ctx, h); err != nil {
			logger.Warnf("关闭 %s 失败: %v", h.name, err)
			failed++
		}
	}
	if len(handlers) > 0 {
		logger.Infof("关闭完成: %d 个回调，失败 %d", len(handlers), failed)
	}
	return failed
}

// runHandler 回调不响应 ctx 时也能按时返回
func runHandler(ctx context.Context, h namedHandler) error {
	done := make(chan error, 1)
	go func() { done <- h.fn(ctx) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SignalContext 收到 SIGINT/SIGTERM 时取消的 context
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
