// test-fill 以约 12 USD 下一笔可立即成交的 IOC 买单，验证真实成交链路。
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

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
	usdFlag := flag.String("usd", "12", "目标名义金额 USD")
	flag.Parse()

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
	exec, err := env.Engine.Execute(ctx, execution.TradeRequest{
		Symbol:      *symbol,
		Side:        domain.SideBuy,
		NotionalUSD: usd,
		TimeInForce: domain.TifIoc,
	})
	stop()
	env.Shutdown(context.Background())
	if err != nil {
		logrus.Errorf("TEST FILL 失败: %v", err)
		os.Exit(1)
	}

	switch {
	case exec.Skipped:
		logrus.Warnf("数量取整后为 0，未下单: %s", exec.Sizing.RawQuantity)
	case exec.DryRun:
		logrus.Infof("DRY_RUN=true，未提交: %s", exec.Intent)
	default:
		if accepted, ok := exec.Outcome().(domain.Accepted); ok {
			px, _ := accepted.AvgFillPrice()
			logrus.WithField("oid", accepted.ExchangeOrderID).Infof("成交 %s @ %s", accepted.FilledQuantity(), px)
		}
	}
	logrus.Info("--- TEST FILL 完成 ---")
}
