package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/betbot/hlarb/internal/app"
	"github.com/betbot/hlarb/internal/domain"
	"github.com/betbot/hlarb/pkg/marketmath"
	"github.com/betbot/hlarb/pkg/shutdown"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径（.yaml/.yml，可选；环境变量优先）")
	envFile := flag.String("env", ".env", ".env 文件路径")
	applyLeverage := flag.Bool("apply-leverage", false, "按 LEVERAGE 设置永续合约杠杆（DRY_RUN=true 时只打印）")
	timeout := flag.Duration("timeout", 30*time.Second, "整体超时")
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

	logrus.Infof("启动 hlarb: network=%s dry_run=%v", cfg.Network, cfg.DryRun)
	logrus.Infof("Agent 地址: %s", cfg.AgentAddress.Hex())
	if master, ok := cfg.MasterAddress.Get(); ok {
		logrus.Infof("主账户地址: %s", master.Hex())
	}

	env, err := app.NewEnvironment(cfg)
	if err != nil {
		logrus.Errorf("初始化失败: %v", err)
		os.Exit(1)
	}

	ctx, stop := shutdown.SignalContext(context.Background())
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	code := run(ctx, env, *applyLeverage)
	cancel()
	stop()

	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	env.Shutdown(shutdownCtx)
	done()
	os.Exit(code)
}

func run(ctx context.Context, env *app.Environment, applyLeverage bool) int {
	cfg := env.Config

	logrus.Infof("--- 对账: %s ---", env.Reconciler.Target().Hex())
	snap, err := env.Reconciler.Snapshot(ctx)
	if err != nil {
		logrus.Errorf("获取余额失败: %v", err)
		return 1
	}
	printSnapshot(snap)

	logrus.Info("--- 基差 ---")
	spot, err := env.Quotes.Quote(ctx, cfg.Trading.SpotSymbol)
	if err != nil {
		logrus.Errorf("获取现货盘口失败: %v", err)
		return 1
	}
	perp, err := env.Quotes.Quote(ctx, cfg.Trading.PerpSymbol)
	if err != nil {
		logrus.Errorf("获取永续盘口失败: %v", err)
		return 1
	}
	printBasis(spot, perp, cfg.Trading.BpsThreshold)

	if applyLeverage {
		if err := updateLeverage(ctx, env); err != nil {
			logrus.Errorf("设置杠杆失败: %v", err)
			return 1
		}
	}
	return 0
}

func printSnapshot(snap *domain.ExposureSnapshot) {
	coins := make([]string, 0, len(snap.SpotBalances))
	for coin := range snap.SpotBalances {
		coins = append(coins, coin)
	}
	sort.Strings(coins)
	for _, coin := range coins {
		logrus.Infof("现货余额 - %s: %s", coin, snap.SpotBalances[coin])
	}

	logrus.Infof("永续账户价值: %s", snap.AccountValueUSD)
	symbols := make([]string, 0, len(snap.PerpPositions))
	for symbol := range snap.PerpPositions {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	for _, symbol := range symbols {
		p := snap.PerpPositions[symbol]
		entry := "-"
		if p.EntryPrice.Valid {
			entry = p.EntryPrice.Decimal.String()
		}
		logrus.Infof("永续持仓 - %s: size=%s entry=%s", symbol, p.Size, entry)
	}
}

func topOfBook(q domain.Quote) marketmath.TopOfBook {
	return marketmath.TopOfBook{Bid: q.BestBid, Ask: q.BestAsk}
}

// printBasis 只展示，不据此下单
func printBasis(spot, perp domain.Quote, threshold decimal.Decimal) {
	spotMid, err := topOfBook(spot).Mid()
	if err != nil {
		logrus.Warnf("计算现货中间价失败: %v", err)
		return
	}
	perpMid, err := topOfBook(perp).Mid()
	if err != nil {
		logrus.Warnf("计算永续中间价失败: %v", err)
		return
	}
	basis, err := marketmath.BasisBps(spotMid, perpMid)
	if err != nil {
		logrus.Warnf("计算基差失败: %v", err)
		return
	}
	entry := logrus.WithFields(logrus.Fields{
		"spot":      spot.Symbol,
		"perp":      perp.Symbol,
		"spot_mid":  spotMid.StringFixed(4),
		"perp_mid":  perpMid.StringFixed(4),
		"basis_bps": basis.StringFixed(2),
	})
	if marketmath.ExceedsThreshold(basis, threshold) {
		entry.Infof("基差超过阈值 %s bps", threshold)
	} else {
		entry.Infof("基差未超过阈值 %s bps", threshold)
	}
}

func updateLeverage(ctx context.Context, env *app.Environment) error {
	symbol := env.Config.Trading.PerpSymbol
	leverage := env.Risk.Leverage()
	if env.Config.DryRun {
		logrus.Infof("[DRY RUN] 不设置杠杆: %s %dx (cross)", symbol, leverage)
		return nil
	}
	if err := env.Exchange.UpdateLeverage(ctx, symbol, leverage, true); err != nil {
		return err
	}
	logrus.Infof("杠杆已设置: %s %dx (cross)", symbol, leverage)
	return nil
}
