package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/betbot/hlarb/hl/types"
)

// 默认值
const (
	DefaultPerpSymbol        = "HYPE"
	DefaultSpotSymbol        = "@107"
	DefaultDerivationPath    = "m/44'/60'/0'/0/0"
	DefaultSecretStoreKey    = "hl_api_agent_private_key"
	DefaultJournalPath       = "data/journal.db"
	DefaultServerAddr        = "127.0.0.1:8080"
	DefaultLogFile           = "logs/hlarb.log"
	DefaultLeverage          = 2
	DefaultBreakerMaxErrors  = 3
	defaultBpsThreshold      = "5.0"
	defaultPositionSizeUSD   = "20.0"
	defaultMaxPositionUSD    = "100.0"
	defaultStopLossBps       = "50.0"
	defaultSlippageTolerance = "0.05"
)

// KeyConfig 签名私钥来源（三选一，按此顺序优先）
type KeyConfig struct {
	PrivateKeyHex   string // HL_API_AGENT_PRIVATE_KEY
	Mnemonic        string // HL_API_AGENT_MNEMONIC
	DerivationPath  string // HL_DERIVATION_PATH
	SecretStorePath string // HL_SECRET_STORE_PATH（badger 目录）
	SecretStoreKey  string // HL_SECRET_STORE_KEY（库内 key 名）
	SecretStorePass string // HL_SECRET_STORE_ENCRYPTION_KEY（可选，加密密钥）
}

// HasSource 是否配置了任一私钥来源
func (k KeyConfig) HasSource() bool {
	return k.PrivateKeyHex != "" || k.Mnemonic != "" || k.SecretStorePath != ""
}

// TradingConfig 交易参数
type TradingConfig struct {
	PerpSymbol        string
	SpotSymbol        string
	BpsThreshold      decimal.Decimal // 仅用于日志展示
	PositionSizeUSD   decimal.Decimal
	SlippageTolerance decimal.Decimal
	LotSize           decimal.NullDecimal // 覆盖交易所 szDecimals
}

// RiskConfig 风控参数
type RiskConfig struct {
	MaxPositionSizeUSD decimal.Decimal
	StopLossBps        decimal.Decimal
	Leverage           int
	BreakerMaxErrors   int // 连续失败多少次后熔断
}

// Config 应用配置。加载一次后只读，由调用方显式传递。
type Config struct {
	Network       types.Network
	Key           KeyConfig
	AgentAddress  common.Address
	MasterAddress OptionalAddress
	Trading       TradingConfig
	Risk          RiskConfig
	DryRun        bool
	LogLevel      string
	LogFile       string
	JournalPath   string
	ServerAddr    string
}

// TargetAccount 查询余额/挂单的账户：配置了主账户时为主账户，否则为 agent 地址
func (c *Config) TargetAccount() common.Address {
	if master, ok := c.MasterAddress.Get(); ok {
		return master
	}
	return c.AgentAddress
}

// CheckSigner 私钥推导出的地址必须等于配置的 agent 地址
func (c *Config) CheckSigner(derived common.Address) error {
	if derived != c.AgentAddress {
		return errors.Errorf("私钥地址 %s 与 HL_API_AGENT_WALLET_ADDRESS %s 不一致", derived.Hex(), c.AgentAddress.Hex())
	}
	if master, ok := c.MasterAddress.Get(); ok && master == derived {
		return errors.Errorf("HL_MASTER_ADDRESS 不应与 agent 地址相同: %s", master.Hex())
	}
	return nil
}

// yamlDecimal 允许 YAML 中写数字或字符串
type yamlDecimal struct {
	decimal.NullDecimal
}

func (d *yamlDecimal) UnmarshalYAML(n *yaml.Node) error {
	if n.Tag == "!!null" || strings.TrimSpace(n.Value) == "" {
		return nil
	}
	v, err := decimal.NewFromString(strings.TrimSpace(n.Value))
	if err != nil {
		return errors.Wrapf(err, "无效的数值 %q (line %d)", n.Value, n.Line)
	}
	d.Decimal = v
	d.Valid = true
	return nil
}

// ConfigFile 配置文件结构（YAML）。私钥不从文件读取。
type ConfigFile struct {
	Network       string `yaml:"network"`
	AgentAddress  string `yaml:"agent_address"`
	MasterAddress string `yaml:"master_address"`
	Trading       struct {
		PerpSymbol        string      `yaml:"perp_symbol"`
		SpotSymbol        string      `yaml:"spot_symbol"`
		BpsThreshold      yamlDecimal `yaml:"bps_threshold"`
		PositionSizeUSD   yamlDecimal `yaml:"position_size_usd"`
		SlippageTolerance yamlDecimal `yaml:"slippage_tolerance"`
		LotSize           yamlDecimal `yaml:"lot_size"`
	} `yaml:"trading"`
	Risk struct {
		MaxPositionSizeUSD yamlDecimal `yaml:"max_position_size_usd"`
		StopLossBps        yamlDecimal `yaml:"stop_loss_bps"`
		Leverage           int         `yaml:"leverage"`
		BreakerMaxErrors   int         `yaml:"breaker_max_errors"`
	} `yaml:"risk"`
	DryRun      *bool  `yaml:"dry_run"`
	LogLevel    string `yaml:"log_level"`
	LogFile     string `yaml:"log_file"`
	JournalPath string `yaml:"journal_path"`
	ServerAddr  string `yaml:"server_addr"`
}

// loadConfigFile 读取 YAML 配置文件
func loadConfigFile(filePath string) (*ConfigFile, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrap(err, "读取配置文件失败")
	}
	var cf ConfigFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, errors.Wrap(err, "解析 YAML 配置失败")
	}
	return &cf, nil
}

// LoadDotEnv 加载 .env（文件不存在时忽略）。已存在的环境变量不会被覆盖。
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return errors.Wrap(err, "加载 .env 失败")
	}
	return nil
}

// Load 加载配置。优先级：环境变量 > 配置文件 > 默认值。filePath 为空时只读环境变量。
func Load(filePath string) (*Config, error) {
	var cf ConfigFile
	if filePath != "" {
		loaded, err := loadConfigFile(filePath)
		if err != nil {
			return nil, errors.Wrapf(err, "加载配置文件失败 %s", filePath)
		}
		cf = *loaded
	}

	r := &envReader{}
	cfg := &Config{
		// 默认测试网，主网须显式设置 HL_NETWORK=mainnet
		Network: types.Network(strings.ToLower(r.strVal("HL_NETWORK", cf.Network, string(types.NetworkTestnet)))),
		Key: KeyConfig{
			PrivateKeyHex:   strings.TrimSpace(os.Getenv("HL_API_AGENT_PRIVATE_KEY")),
			Mnemonic:        strings.TrimSpace(os.Getenv("HL_API_AGENT_MNEMONIC")),
			DerivationPath:  r.strVal("HL_DERIVATION_PATH", "", DefaultDerivationPath),
			SecretStorePath: r.strVal("HL_SECRET_STORE_PATH", "", ""),
			SecretStoreKey:  r.strVal("HL_SECRET_STORE_KEY", "", DefaultSecretStoreKey),
			SecretStorePass: os.Getenv("HL_SECRET_STORE_ENCRYPTION_KEY"),
		},
		Trading: TradingConfig{
			PerpSymbol:        r.strVal("PERP_SYMBOL", cf.Trading.PerpSymbol, DefaultPerpSymbol),
			SpotSymbol:        r.strVal("SPOT_SYMBOL", cf.Trading.SpotSymbol, DefaultSpotSymbol),
			BpsThreshold:      r.decVal("BPS_THRESHOLD", cf.Trading.BpsThreshold, defaultBpsThreshold),
			PositionSizeUSD:   r.decVal("POSITION_SIZE_USD", cf.Trading.PositionSizeUSD, defaultPositionSizeUSD),
			SlippageTolerance: r.decVal("SLIPPAGE_TOLERANCE", cf.Trading.SlippageTolerance, defaultSlippageTolerance),
			LotSize:           r.optDecVal("LOT_SIZE", cf.Trading.LotSize),
		},
		Risk: RiskConfig{
			MaxPositionSizeUSD: r.decVal("MAX_POSITION_SIZE_USD", cf.Risk.MaxPositionSizeUSD, defaultMaxPositionUSD),
			StopLossBps:        r.decVal("STOP_LOSS_BPS", cf.Risk.StopLossBps, defaultStopLossBps),
			Leverage:           r.intVal("LEVERAGE", cf.Risk.Leverage, DefaultLeverage),
			BreakerMaxErrors:   r.intVal("BREAKER_MAX_ERRORS", cf.Risk.BreakerMaxErrors, DefaultBreakerMaxErrors),
		},
		DryRun:      r.boolVal("DRY_RUN", cf.DryRun, true),
		LogLevel:    r.strVal("LOG_LEVEL", cf.LogLevel, "info"),
		LogFile:     r.strVal("LOG_FILE", cf.LogFile, DefaultLogFile),
		JournalPath: r.strVal("JOURNAL_PATH", cf.JournalPath, DefaultJournalPath),
		ServerAddr:  r.strVal("SERVER_ADDR", cf.ServerAddr, DefaultServerAddr),
	}

	if agent := r.strVal("HL_API_AGENT_WALLET_ADDRESS", cf.AgentAddress, ""); agent != "" {
		addr, err := ParseAddress(agent)
		if err != nil {
			r.fail(errors.Wrap(err, "HL_API_AGENT_WALLET_ADDRESS"))
		}
		cfg.AgentAddress = addr
	}
	master, err := ParseOptionalAddress(r.strVal("HL_MASTER_ADDRESS", cf.MasterAddress, ""))
	if err != nil {
		r.fail(errors.Wrap(err, "HL_MASTER_ADDRESS"))
	}
	cfg.MasterAddress = master

	if r.err != nil {
		return nil, r.err
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "配置验证失败")
	}
	return cfg, nil
}

// Validate 验证配置
func (c *Config) Validate() error {
	if !c.Key.HasSource() {
		return errors.New("HL_API_AGENT_PRIVATE_KEY / HL_API_AGENT_MNEMONIC / HL_SECRET_STORE_PATH 至少配置一个")
	}
	if c.AgentAddress == (common.Address{}) {
		return errors.New("HL_API_AGENT_WALLET_ADDRESS 未配置")
	}
	if c.Network != types.NetworkMainnet && c.Network != types.NetworkTestnet {
		return errors.Errorf("HL_NETWORK 只能是 mainnet 或 testnet: %q", c.Network)
	}
	if c.Trading.PerpSymbol == "" || c.Trading.SpotSymbol == "" {
		return errors.New("PERP_SYMBOL / SPOT_SYMBOL 不能为空")
	}
	if !c.Trading.PositionSizeUSD.IsPositive() {
		return errors.New("POSITION_SIZE_USD 必须大于 0")
	}
	if !c.Risk.MaxPositionSizeUSD.IsPositive() {
		return errors.New("MAX_POSITION_SIZE_USD 必须大于 0")
	}
	if c.Trading.PositionSizeUSD.GreaterThan(c.Risk.MaxPositionSizeUSD) {
		return errors.Errorf("POSITION_SIZE_USD (%s) 不能超过 MAX_POSITION_SIZE_USD (%s)",
			c.Trading.PositionSizeUSD, c.Risk.MaxPositionSizeUSD)
	}
	if tol := c.Trading.SlippageTolerance; !tol.IsPositive() || tol.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return errors.Errorf("SLIPPAGE_TOLERANCE 必须在 (0, 1) 区间: %s", tol)
	}
	if c.Risk.Leverage < 1 {
		return errors.Errorf("LEVERAGE 必须 >= 1: %d", c.Risk.Leverage)
	}
	if c.Risk.StopLossBps.IsNegative() {
		return errors.New("STOP_LOSS_BPS 不能为负数")
	}
	if c.Risk.BreakerMaxErrors < 1 {
		return errors.New("BREAKER_MAX_ERRORS 必须 >= 1")
	}
	if c.Trading.LotSize.Valid && !c.Trading.LotSize.Decimal.IsPositive() {
		return errors.New("LOT_SIZE 必须大于 0")
	}
	return nil
}

// envReader 读取环境变量，记录第一个解析错误（格式错误直接启动失败，不回落默认值）
type envReader struct {
	err error
}

func (r *envReader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *envReader) strVal(key, fileValue, defaultValue string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	if fileValue != "" {
		return fileValue
	}
	return defaultValue
}

// ParseDecimal 解析十进制数值（环境变量、命令行参数），不经过 float
func ParseDecimal(name, raw string) (decimal.Decimal, error) {
	v := strings.TrimSpace(raw)
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, errors.Errorf("%s 不是合法数值: %q", name, v)
	}
	return d, nil
}

func (r *envReader) decVal(key string, fileValue yamlDecimal, defaultValue string) decimal.Decimal {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		d, err := ParseDecimal(key, v)
		if err != nil {
			r.fail(err)
			return decimal.Zero
		}
		return d
	}
	if fileValue.Valid {
		return fileValue.Decimal
	}
	return decimal.RequireFromString(defaultValue)
}

func (r *envReader) optDecVal(key string, fileValue yamlDecimal) decimal.NullDecimal {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		d, err := ParseDecimal(key, v)
		if err != nil {
			r.fail(err)
			return decimal.NullDecimal{}
		}
		return decimal.NewNullDecimal(d)
	}
	return fileValue.NullDecimal
}

func (r *envReader) intVal(key string, fileValue, defaultValue int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			r.fail(errors.Errorf("%s 不是合法整数: %q", key, v))
			return 0
		}
		return n
	}
	if fileValue != 0 {
		return fileValue
	}
	return defaultValue
}

func (r *envReader) boolVal(key string, fileValue *bool, defaultValue bool) bool {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			r.fail(errors.Errorf("%s 不是合法布尔值: %q", key, v))
			return defaultValue
		}
		return b
	}
	if fileValue != nil {
		return *fileValue
	}
	return defaultValue
}
