// book-watch 订阅现货与永续的 l2Book 推送，实时打印买一卖一、价差和基差。只读，不需要私钥。
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/betbot/hlarb/hl/client"
	"github.com/betbot/hlarb/hl/types"
	"github.com/betbot/hlarb/hl/ws"
	"github.com/betbot/hlarb/internal/app"
	"github.com/betbot/hlarb/internal/domain"
	"github.com/betbot/hlarb/internal/infrastructure/hyperliquid"
	"github.com/betbot/hlarb/pkg/config"
	"github.com/betbot/hlarb/pkg/marketmath"
	"github.com/betbot/hlarb/pkg/shutdown"
)

func main() {
	var (
		configPath = flag.String("config", "", "配置文件路径（可选）")
		envFile    = flag.String("env", ".env", ".env 文件路径")
		proxy      = flag.String("proxy", "", "WebSocket 代理（默认读取 HTTPS_PROXY）")
		interval   = flag.Duration("interval", time.Second, "同一币种最短打印间隔")
	)
	flag.Parse()

	cfg, err := app.LoadConfig(*configPath, *envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	if err := app.InitLogger(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := shutdown.SignalContext(context.Background())
	defer stop()
	if err := run(ctx, cfg, *proxy, *interval); err != nil {
		logrus.Errorf("book-watch 退出: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, proxy string, interval time.Duration) error {
	// 只读客户端：把配置里的 symbol 解析为推送使用的 coin 名
	ex := hyperliquid.NewExchange(client.NewClient(cfg.Network, nil), cfg.TargetAccount())
	spot, err := ex.Resolve(ctx, cfg.Trading.SpotSymbol)
	if err != nil {
		return err
	}
	perp, err := ex.Resolve(ctx, cfg.Trading.PerpSymbol)
	if err != nil {
		return err
	}

	opts := []ws.Option{ws.WithReconnect(3*time.Second, 10)}
	if proxy != "" {
		opts = append(opts, ws.WithProxy(proxy))
	}
	stream := ws.NewBookStream(cfg.Network.WSURL(), opts...)
	w := &watcher{
		stream:       stream,
		spotCoin:     spot.Coin,
		perpCoin:     perp.Coin,
		thresholdBps: cfg.Trading.BpsThreshold,
		interval:     interval,
		lastPrint:    make(map[string]time.Time),
	}
	stream.OnBook(w.onBook)

	logrus.Infof("订阅 l2Book: spot=%s(%s) perp=%s", cfg.Trading.SpotSymbol, spot.Coin, perp.Coin)
	return stream.Run(ctx, spot.Coin, perp.Coin)
}

type watcher struct {
	stream       *ws.BookStream
	spotCoin     string
	perpCoin     string
	thresholdBps decimal.Decimal
	interval     time.Duration

	mu        sync.Mutex
	lastPrint map[string]time.Time
}

func (w *watcher) throttled(coin string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := time.Now()
	if last, ok := w.lastPrint[coin]; ok && now.Sub(last) < w.interval {
		return true
	}
	w.lastPrint[coin] = now
	return false
}

func (w *watcher) onBook(book types.L2Book) {
	if w.throttled(book.Coin) {
		return
	}
	q, err := hyperliquid.QuoteFromBook(book.Coin, &book)
	if err != nil {
		logrus.Warnf("盘口异常: %v", err)
		return
	}
	spread, err := topOfBook(q).SpreadBps()
	if err != nil {
		logrus.Warnf("%s 盘口异常: %v", book.Coin, err)
		return
	}
	logrus.WithField("coin", book.Coin).Infof("bid=%s ask=%s spread=%sbps",
		q.BestBid.Decimal, q.BestAsk.Decimal, spread.StringFixed(2))
	w.logBasis()
}

func (w *watcher) logBasis() {
	spotBook, ok1 := w.stream.Latest(w.spotCoin)
	perpBook, ok2 := w.stream.Latest(w.perpCoin)
	if !ok1 || !ok2 {
		return
	}
	spotMid, ok1 := midOf(w.spotCoin, spotBook)
	perpMid, ok2 := midOf(w.perpCoin, perpBook)
	if !ok1 || !ok2 {
		return
	}
	basis, err := marketmath.BasisBps(spotMid, perpMid)
	if err != nil {
		return
	}
	note := ""
	if marketmath.ExceedsThreshold(basis, w.thresholdBps) {
		note = " (超过阈值)"
	}
	logrus.Infof("基差 %s bps%s", basis.StringFixed(2), note)
}

func topOfBook(q domain.Quote) marketmath.TopOfBook {
	return marketmath.TopOfBook{Bid: q.BestBid, Ask: q.BestAsk}
}

func midOf(coin string, book types.L2Book) (decimal.Decimal, bool) {
	q, err := hyperliquid.QuoteFromBook(coin, &book)
	if err != nil {
		return decimal.Zero, false
	}
	m, err := topOfBook(q).Mid()
	if err != nil {
		return decimal.Zero, false
	}
	return m, true
}
