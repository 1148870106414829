// test-order 挂一笔远低于市价的 GTC 买单验证签名与下单链路，随后撤销该 symbol 的全部挂单。
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/betbot/hlarb/internal/app"
	"github.com/betbot/hlarb/internal/domain"
	"github.com/betbot/hlarb/internal/execution"
	"github.com/betbot/hlarb/pkg/config"
	"github.com/betbot/hlarb/pkg/shutdown"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径（可选）")
	envFile := flag.String("env", ".env", ".env 文件路径")
	symbol := flag.String("symbol", "", "交易对（默认 SPOT_SYMBOL）")
	discountFlag := flag.String("discount", "0.5", "挂单价低于买一的比例，(0,1)")
	usdFlag := flag.String("usd", "12", "目标名义金额 USD")
	wait := flag.Duration("wait", 2*time.Second, "下单后等待多久再撤单")
	flag.Parse()

	discount, err := config.ParseDecimal("-discount", *discountFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	usd, err := config.ParseDecimal("-usd", *usdFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	env, err := app.Setup(*configPath, *envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "启动失败: %v\n", err)
		os.Exit(1)
	}
	if *symbol == "" {
		*symbol = env.Config.Trading.SpotSymbol
	}

	ctx, stop := shutdown.SignalContext(context.Background())
	err = run(ctx, env, *symbol, discount, usd, *wait)
	stop()
	env.Shutdown(context.Background())
	if err != nil {
		logrus.Errorf("TEST ORDER 失败: %v", err)
		os.Exit(1)
	}
	logrus.Info("--- TEST ORDER 通过: 签名与下单链路正常 ---")
}

func run(ctx context.Context, env *app.Environment, symbol string, discount, usd decimal.Decimal, wait time.Duration) error {
	if !discount.IsPositive() || discount.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("discount 必须在 (0,1): %s", discount)
	}

	bid, err := env.Quotes.BestPrice(ctx, symbol, domain.SideSell)
	if err != nil {
		return err
	}
	price := bid.Mul(decimal.NewFromInt(1).Sub(discount))

	lot, err := env.Exchange.LotSize(ctx, symbol)
	if err != nil {
		return err
	}
	// 与执行引擎一致：覆盖值只在比交易所步长更粗时生效
	if o := env.Config.Trading.LotSize; o.Valid && o.Decimal.GreaterThan(lot) {
		lot = o.Decimal
	}
	sizing, err := execution.SizePosition(usd, price, lot)
	if err != nil {
		return err
	}
	if sizing.ShouldSkip() {
		return fmt.Errorf("数量取整后为 0: usd=%s px=%s lot=%s", usd, price, lot)
	}
	logrus.Infof("准备测试单: BUY %s %s @ %s (买一 %s)", sizing.RoundedQuantity, symbol, price, bid)

	exec, err := env.Engine.PlaceLimit(ctx, execution.LimitRequest{
		Symbol:      symbol,
		Side:        domain.SideBuy,
		Quantity:    sizing.RoundedQuantity,
		LimitPrice:  price,
		TimeInForce: domain.TifGtc,
	})
	if err != nil {
		return err
	}
	if exec.DryRun {
		logrus.Info("DRY_RUN=true，未提交订单，跳过撤单")
		return nil
	}

	select {
	case <-ctx.Done():
	case <-time.After(wait):
	}

	// 取消后 ctx 已失效，撤单用独立的超时
	cancelCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logrus.Infof("撤销 %s 全部挂单...", symbol)
	_, err = env.Cleaner.CancelAll(cancelCtx, symbol)
	return err
}
