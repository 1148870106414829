package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/betbot/hlarb/hl/types"
	"github.com/betbot/hlarb/pkg/logger"
	"github.com/betbot/hlarb/pkg/syncgroup"
)

// BookHandler l2Book 推送回调（在读 goroutine 中同步调用，不要阻塞）
type BookHandler func(book types.L2Book)

// BookStream 订阅 l2Book 推送，断线后自动重连并重新订阅。
// 推送只用于观察盘口；下单前的报价始终通过 REST 重新拉取。
type BookStream struct {
	url            string
	dialer         websocket.Dialer
	pingInterval   time.Duration
	readTimeout    time.Duration
	reconnectDelay time.Duration
	maxReconnects  int

	mu       sync.RWMutex
	handlers []BookHandler
	latest   map[string]types.L2Book
	writeMu  sync.Mutex
}

// Option BookStream 可选项
type Option func(*BookStream)

// WithPingInterval 心跳间隔
func WithPingInterval(d time.Duration) Option {
	return func(s *BookStream) { s.pingInterval = d }
}

// WithReconnect 重连延迟与最大连续重连次数（<=0 表示不限）
func WithReconnect(delay time.Duration, maxReconnects int) Option {
	return func(s *BookStream) {
		s.reconnectDelay = delay
		s.maxReconnects = maxReconnects
	}
}

// WithProxy 通过 HTTP 代理连接（默认读取 HTTPS_PROXY / HTTP_PROXY）
func WithProxy(proxyURL string) Option {
	return func(s *BookStream) {
		if u, err := url.Parse(proxyURL); err == nil && proxyURL != "" {
			s.dialer.Proxy = http.ProxyURL(u)
		}
	}
}

func NewBookStream(wsURL string, opts ...Option) *BookStream {
	s := &BookStream{
		url:            wsURL,
		dialer:         websocket.Dialer{HandshakeTimeout: 30 * time.Second, Proxy: http.ProxyFromEnvironment},
		pingInterval:   30 * time.Second,
		readTimeout:    60 * time.Second,
		reconnectDelay: 5 * time.Second,
		maxReconnects:  10,
		latest:         make(map[string]types.L2Book),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.readTimeout < 2*s.pingInterval {
		s.readTimeout = 2 * s.pingInterval
	}
	return s
}

// OnBook 注册回调
func (s *BookStream) OnBook(h BookHandler) {
	if h == nil {
		return
	}
	s.mu.Lock()
	s.handlers = append(s.handlers, h)
	s.mu.Unlock()
}

// Latest 最近一次收到的盘口
func (s *BookStream) Latest(coin string) (types.L2Book, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.latest[coin]
	return b, ok
}

// Run 连接并订阅 coins，阻塞直到 ctx 取消（返回 nil）或连续重连失败次数用尽。
func (s *BookStream) Run(ctx context.Context, coins ...string) error {
	if len(coins) == 0 {
		return errors.New("至少订阅一个 coin")
	}
	failures := 0
	for {
		err := s.runOnce(ctx, coins)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			failures = 0
		} else {
			failures++
		}
		if s.maxReconnects > 0 && failures > s.maxReconnects {
			return errors.Wrapf(err, "WebSocket 重连 %d 次仍失败", s.maxReconnects)
		}
		if err == nil {
			logger.Infof("l2Book WebSocket 连接已关闭，%v 后重连", s.reconnectDelay)
		} else {
			logger.Warnf("l2Book WebSocket 断开: %v，%v 后重连 (%d)", err, s.reconnectDelay, failures)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.reconnectDelay):
		}
	}
}

// runOnce 一次连接的生命周期。收到过数据后断开返回 nil（计数清零）。
func (s *BookStream) runOnce(ctx context.Context, coins []string) error {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return errors.Wrapf(err, "连接 %s 失败", s.url)
	}
	defer conn.Close()

	for _, coin := range coins {
		req := types.WSRequest{Method: "subscribe", Subscription: &types.WSSubscription{Type: types.WSChannelL2Book, Coin: coin}}
		if err := s.writeJSON(conn, req); err != nil {
			return errors.Wrapf(err, "订阅 %s 失败", coin)
		}
	}
	logger.Infof("l2Book WebSocket 已连接: %s coins=%s", s.url, strings.Join(coins, ","))

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sg := syncgroup.NewSyncGroup()
	sg.Add(func() { s.pingLoop(connCtx, conn) })
	sg.Add(func() {
		<-connCtx.Done()
		_ = conn.Close()
	})
	sg.Run()

	received, readErr := s.readLoop(conn)
	cancel()
	sg.Wait()

	if received {
		return nil
	}
	return readErr
}

func (s *BookStream) readLoop(conn *websocket.Conn) (bool, error) {
	received := false
	for {
		_ = conn.SetReadDeadline(time.Now().Add(s.readTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			return received, err
		}
		var msg types.WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Debugf("忽略无法解析的消息: %s", string(data))
			continue
		}
		switch msg.Channel {
		case types.WSChannelL2Book:
			var book types.L2Book
			if err := json.Unmarshal(msg.Data, &book); err != nil {
				logger.Warnf("解析 l2Book 失败: %v", err)
				continue
			}
			received = true
			s.dispatch(book)
		case types.WSChannelError:
			logger.Warnf("WebSocket 错误消息: %s", string(msg.Data))
		case types.WSChannelPong, types.WSChannelSubscriptionReply:
		default:
			logger.Debugf("忽略消息 channel=%s", msg.Channel)
		}
	}
}

func (s *BookStream) dispatch(book types.L2Book) {
	s.mu.Lock()
	s.latest[book.Coin] = book
	handlers := append([]BookHandler(nil), s.handlers...)
	s.mu.Unlock()
	for _, h := range handlers {
		h(book)
	}
}

func (s *BookStream) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.writeJSON(conn, types.WSRequest{Method: "ping"}); err != nil {
				logger.Debugf("发送 ping 失败: %v", err)
				_ = conn.Close()
				return
			}
		}
	}
}

func (s *BookStream) writeJSON(conn *websocket.Conn, v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteJSON(v)
}
