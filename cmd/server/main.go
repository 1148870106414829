package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/betbot/hlarb/internal/app"
	"github.com/betbot/hlarb/internal/controlplane/server"
	"github.com/betbot/hlarb/internal/metrics"
	"github.com/betbot/hlarb/pkg/shutdown"
)

func main() {
	var (
		configPath = flag.String("config", "", "配置文件路径（可选）")
		envFile    = flag.String("env", ".env", ".env 文件路径")
		listenAddr = flag.String("listen", "", "HTTP 监听地址（默认 SERVER_ADDR）")
		reqTimeout = flag.Duration("request-timeout", 10*time.Second, "单个请求访问交易所的超时")
		debugAddr  = flag.String("debug-listen", "", "pprof 调试服务监听地址（为空不启用）")
	)
	flag.Parse()

	env, err := app.Setup(*configPath, *envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "启动失败: %v\n", err)
		os.Exit(1)
	}
	addr := *listenAddr
	if addr == "" {
		addr = env.Config.ServerAddr
	}

	cfg := server.Config{
		Addr:           addr,
		Exposure:       env.Reconciler,
		Quotes:         env.Quotes,
		Breaker:        env.Breaker,
		Metrics:        env.Metrics.Handler(),
		RequestTimeout: *reqTimeout,
	}
	if env.Journal != nil {
		cfg.Journal = env.Journal
	}
	srv, err := server.New(cfg)
	if err != nil {
		logrus.Errorf("初始化状态服务失败: %v", err)
		os.Exit(1)
	}

	ctx, stop := shutdown.SignalContext(context.Background())
	if *debugAddr != "" {
		if _, err := metrics.StartAsync(ctx, *debugAddr, env.Metrics); err != nil {
			logrus.Errorf("启动调试服务失败: %v", err)
			os.Exit(1)
		}
		logrus.Infof("调试服务监听 %s (/metrics, /debug/pprof)", *debugAddr)
	}
	err = srv.ListenAndServe(ctx)
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	env.Shutdown(shutdownCtx)
	cancel()
	if err != nil {
		logrus.Errorf("状态服务异常退出: %v", err)
		os.Exit(1)
	}
	logrus.Info("server stopped")
}
