package shutdown

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestManager_ReverseOrder(t *testing.T) {
	m := NewManager()
	var order []string
	m.OnShutdown("journal", func(ctx context.Context) error { order = append(order, "journal"); return nil })
	m.OnShutdown("server", func(ctx context.Context) error { order = append(order, "server"); return errors.New("boom") })
	m.OnShutdown("nil", nil)

	if failed := m.Shutdown(context.Background()); failed != 1 {
		t.Fatalf("failed got=%d want=1", failed)
	}
	if len(order) != 2 || order[0] != "server" || order[1] != "journal" {
		t.Fatalf("order got=%v want=[server journal]", order)
	}
	if again := m.Shutdown(context.Background()); again != 0 {
		t.Fatalf("回调只应执行一次")
	}
}

func TestManager_Timeout(t *testing.T) {
	m := NewManager()
	block := make(chan struct{})
	defer close(block)
	ran := false
	m.OnShutdown("first", func(ctx context.Context) error { ran = true; return nil })
	m.OnShutdown("slow", func(ctx context.Context) error { <-block; return nil })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if failed := m.Shutdown(ctx); failed != 2 {
		t.Fatalf("超时与被跳过的回调都计为失败: %d", failed)
	}
	if ran {
		t.Fatalf("超时后不应再执行剩余回调")
	}
}
