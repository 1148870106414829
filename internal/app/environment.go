package app

import (
	"context"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/betbot/hlarb/hl/client"
	"github.com/betbot/hlarb/internal/execution"
	"github.com/betbot/hlarb/internal/infrastructure/hyperliquid"
	"github.com/betbot/hlarb/internal/journal"
	"github.com/betbot/hlarb/internal/metrics"
	"github.com/betbot/hlarb/internal/risk"
	"github.com/betbot/hlarb/internal/services"
	"github.com/betbot/hlarb/pkg/config"
	"github.com/betbot/hlarb/pkg/keys"
	"github.com/betbot/hlarb/pkg/logger"
	"github.com/betbot/hlarb/pkg/shutdown"
)

// Environment 一个进程内共享的执行组件。由 cmd/* 构建一次后显式传递。
type Environment struct {
	Config *config.Config

	Client     *client.Client
	Exchange   *hyperliquid.Exchange
	Quotes     *execution.QuoteReader
	Engine     *execution.Engine
	Cleaner    *execution.Cleaner
	Reconciler *services.Reconciler

	Risk    risk.Params
	Breaker *risk.CircuitBreaker
	// Journal 未配置 JOURNAL_PATH 时为 nil
	Journal *journal.Journal
	Metrics *metrics.Metrics

	shutdownManager *shutdown.Manager
}

// Option 构建选项
type Option func(*options)

type options struct {
	clientOpts  []client.Option
	skipJournal bool
}

// WithClientOptions 透传给 hl 客户端（测试时指向本地服务）
func WithClientOptions(opts ...client.Option) Option {
	return func(o *options) { o.clientOpts = append(o.clientOpts, opts...) }
}

// WithoutJournal 不打开审计库（只读流程）
func WithoutJournal() Option {
	return func(o *options) { o.skipJournal = true }
}

// LoadConfig 加载 .env 与配置文件
func LoadConfig(configPath string, envFiles ...string) (*config.Config, error) {
	if err := config.LoadDotEnv(envFiles...); err != nil {
		return nil, err
	}
	return config.Load(configPath)
}

// InitLogger 按配置初始化日志
func InitLogger(cfg *config.Config) error {
	return logger.Init(logger.Config{
		Level:      cfg.LogLevel,
		OutputFile: cfg.LogFile,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     7,
		Compress:   true,
	})
}

// NewEnvironment 解析私钥并校验签名地址，然后装配交易所适配器、风控、审计和执行引擎
func NewEnvironment(cfg *config.Config, opts ...Option) (*Environment, error) {
	if cfg == nil {
		return nil, errors.New("配置为空")
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	pk, err := keys.Resolve(cfg.Key)
	if err != nil {
		return nil, errors.Wrap(err, "解析 agent 私钥失败")
	}
	if err := cfg.CheckSigner(crypto.PubkeyToAddress(pk.PublicKey)); err != nil {
		return nil, err
	}

	params, err := risk.NewParams(cfg.Risk.MaxPositionSizeUSD, cfg.Risk.StopLossBps, cfg.Risk.Leverage)
	if err != nil {
		return nil, err
	}

	env := &Environment{
		Config:          cfg,
		Risk:            params,
		Breaker:         risk.NewCircuitBreaker(risk.CircuitBreakerConfig{MaxConsecutiveErrors: int64(cfg.Risk.BreakerMaxErrors)}),
		Metrics:         metrics.New(),
		shutdownManager: shutdown.NewManager(),
	}
	env.Client = client.NewClient(cfg.Network, pk, o.clientOpts...)
	env.Exchange = hyperliquid.NewExchange(env.Client, cfg.TargetAccount())
	env.Quotes = execution.NewQuoteReader(env.Exchange)
	env.Cleaner = execution.NewCleaner(env.Exchange)
	env.Reconciler = services.NewReconciler(env.Exchange, cfg.AgentAddress, cfg.MasterAddress)
	env.Reconciler.SetObserver(env.Metrics)

	engineOpts := []execution.EngineOption{
		execution.WithLotSizer(env.Exchange),
		execution.WithCircuitBreaker(env.Breaker),
		execution.WithObserver(env.Metrics),
	}
	if !o.skipJournal && strings.TrimSpace(cfg.JournalPath) != "" {
		j, err := journal.Open(cfg.JournalPath)
		if err != nil {
			return nil, err
		}
		env.Journal = j
		engineOpts = append(engineOpts, execution.WithRecorder(j))
		env.shutdownManager.OnShutdown("journal", func(context.Context) error {
			return j.Close()
		})
	}

	env.Engine, err = execution.NewEngine(execution.EngineConfig{
		SlippageTolerance: cfg.Trading.SlippageTolerance,
		LotSizeOverride:   cfg.Trading.LotSize,
		DryRun:            cfg.DryRun,
	}, params, env.Exchange, env.Exchange, engineOpts...)
	if err != nil {
		env.Shutdown(context.Background())
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"network": cfg.Network,
		"host":    env.Client.GetHost(),
		"agent":   cfg.AgentAddress.Hex(),
		"target":  env.Reconciler.Target().Hex(),
		"dry_run": cfg.DryRun,
	}).Info("执行环境已就绪")
	return env, nil
}

// ShutdownManager 获取关闭管理器
func (e *Environment) ShutdownManager() *shutdown.Manager {
	return e.shutdownManager
}

// Shutdown 执行所有关闭回调，返回失败数量
func (e *Environment) Shutdown(ctx context.Context) int {
	return e.shutdownManager.Shutdown(ctx)
}

// Setup cmd/* 的公共启动流程：加载配置、初始化日志、装配执行环境
func Setup(configPath, envFile string, opts ...Option) (*Environment, error) {
	cfg, err := LoadConfig(configPath, envFile)
	if err != nil {
		return nil, errors.Wrap(err, "加载配置失败")
	}
	if err := InitLogger(cfg); err != nil {
		return nil, errors.Wrap(err, "初始化日志失败")
	}
	return NewEnvironment(cfg, opts...)
}
