package syncgroup

import (
	"sync"
)

// SyncGroup 是 sync.WaitGroup 的包装器，自动管理 Add() 和 Done()。
// 先 Add 若干函数，再 Run 并发启动，最后 Wait。
type SyncGroup struct {
	wg sync.WaitGroup

	mu      sync.Mutex
	fns     []func()
	running int
}

// NewSyncGroup 创建新的 SyncGroup
func NewSyncGroup() *SyncGroup {
	return &SyncGroup{}
}

// Add 添加一个待启动的函数。运行中的组拒绝新函数并返回 false。
func (w *SyncGroup) Add(fn func()) bool {
	if fn == nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running > 0 {
		return false
	}
	w.fns = append(w.fns, fn)
	return true
}

// Run 启动所有已添加的函数，并清空待启动列表
func (w *SyncGroup) Run() {
	w.mu.Lock()
	if w.running > 0 {
		w.mu.Unlock()
		return
	}
	fns := w.fns
	w.fns = nil
	w.running = len(fns)
	w.mu.Unlock()

	w.wg.Add(len(fns))
	for _, fn := range fns {
		go func(do func()) {
			defer func() {
				w.mu.Lock()
				w.running--
				w.mu.Unlock()
				w.wg.Done()
			}()
			do()
		}(fn)
	}
}

// Wait 等待所有已启动的函数完成
func (w *SyncGroup) Wait() {
	w.wg.Wait()
}

// RunAndWait 启动并等待
func (w *SyncGroup) RunAndWait() {
	w.Run()
	w.Wait()
}
