package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// 默认值（与原始做市进程保持一致）
const (
	DefaultEndpoint       = "https://api.mainnet-beta.solana.com"
	DefaultKeyFile        = "secrets/sol_sk.txt"
	DefaultSpreadBps      = 12.0
	DefaultSizeQuote      = 6.00
	DefaultRefreshMs      = 600
	DefaultStatsFile      = "logs/maker_stats.json"
	DefaultLadderDepth    = 10
	DefaultOrderTTLSecond = 30
	DefaultDryRun         = false
)

// LogConfig 日志配置
type LogConfig struct {
	Level      string // debug, info, warn, error
	File       string // 日志文件路径（为空则只输出到控制台）
	MaxSize    int    // MB
	MaxBackups int
	MaxAge     int // 天
	Compress   bool
}

// Config 做市进程配置，启动时加载一次，运行期间不可变
type Config struct {
	Endpoint  string  // 场所 RPC/REST 地址
	KeyFile   string  // 私钥文件路径
	MarketID  string  // 市场标识（为空表示未配置）
	SpreadBps float64 // 报价点差（bps），> 0
	SizeQuote float64 // 单边报价名义金额（quote 币），> 0
	RefreshMs int     // 刷新间隔（毫秒），> 0
	DryRun    bool    // 显式模拟模式

	StatsFile        string // 快照文件路径
	RequestTimeoutMs int    // 单次网络调用超时（毫秒），不超过刷新间隔
	LadderDepth      int    // 读取盘口深度
	OrderTTLSeconds  int    // 报价有效期（秒）
	SimSeed          int64  // 模拟随机种子（0 表示按时间取种子）

	StatusAddr  string // 状态 API 监听地址（为空则不启动）
	MetricsAddr string // expvar/pprof 监听地址（为空则不启动）

	Log LogConfig
}

// ConfigFile 配置文件结构（YAML）
type ConfigFile struct {
	Endpoint  string  `yaml:"endpoint"`
	KeyFile   string  `yaml:"key_file"`
	MarketID  string  `yaml:"market_id"`
	SpreadBps float64 `yaml:"spread_bps"`
	SizeQuote float64 `yaml:"size_quote"`
	RefreshMs int     `yaml:"refresh_ms"`
	DryRun    *bool   `yaml:"dry_run"`

	StatsFile        string `yaml:"stats_file"`
	RequestTimeoutMs int    `yaml:"request_timeout_ms"`
	LadderDepth      int    `yaml:"ladder_depth"`
	OrderTTLSeconds  int    `yaml:"order_ttl_seconds"`
	SimSeed          int64  `yaml:"sim_seed"`

	StatusAddr  string `yaml:"status_addr"`
	MetricsAddr string `yaml:"metrics_addr"`

	Log struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		MaxSize    int    `yaml:"max_size"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAge     int    `yaml:"max_age"`
		Compress   *bool  `yaml:"compress"`
	} `yaml:"log"`
}

// LoadOptions 加载选项
type LoadOptions struct {
	// EnvFile .env 文件路径（为空则尝试当前目录的 .env，不存在则忽略）
	EnvFile string
}

// Load 加载配置。优先级：配置文件 > 环境变量 > 默认值。
// filePath 为空时只使用环境变量和默认值。
func Load(filePath string, opts LoadOptions) (*Config, error) {
	loadDotEnv(opts.EnvFile)

	var cf *ConfigFile
	if strings.TrimSpace(filePath) != "" {
		var err error
		cf, err = loadConfigFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("加载配置文件失败 %s: %w", filePath, err)
		}
	}
	if cf == nil {
		cf = &ConfigFile{}
	}

	env := &envParser{}
	cfg := &Config{
		Endpoint:  firstNonEmpty(cf.Endpoint, getEnv("SOL_RPC", DefaultEndpoint)),
		KeyFile:   firstNonEmpty(cf.KeyFile, getEnv("SOL_SK_FILE", DefaultKeyFile)),
		MarketID:  strings.TrimSpace(firstNonEmpty(cf.MarketID, getEnv("PHOENIX_MARKET", ""))),
		SpreadBps: nonZeroFloat(cf.SpreadBps, env.Float("MAKER_QUOTE_SPREAD_BPS", DefaultSpreadBps)),
		SizeQuote: nonZeroFloat(cf.SizeQuote, env.Float("MAKER_SIZE_USD", DefaultSizeQuote)),
		RefreshMs: nonZeroInt(cf.RefreshMs, env.Int("MAKER_REFRESH_MS", DefaultRefreshMs)),
		DryRun: func() bool {
			if cf.DryRun != nil {
				return *cf.DryRun
			}
			return env.Flag("MAKER_DRY_RUN", DefaultDryRun)
		}(),

		StatsFile:        firstNonEmpty(cf.StatsFile, getEnv("MAKER_STATS_FILE", DefaultStatsFile)),
		RequestTimeoutMs: nonZeroInt(cf.RequestTimeoutMs, env.Int("MAKER_REQUEST_TIMEOUT_MS", 0)),
		LadderDepth:      nonZeroInt(cf.LadderDepth, env.Int("MAKER_LADDER_DEPTH", DefaultLadderDepth)),
		OrderTTLSeconds:  nonZeroInt(cf.OrderTTLSeconds, env.Int("MAKER_ORDER_TTL_SECONDS", DefaultOrderTTLSecond)),
		SimSeed: func() int64 {
			if cf.SimSeed != 0 {
				return cf.SimSeed
			}
			return int64(env.Int("MAKER_SIM_SEED", 0))
		}(),

		StatusAddr:  firstNonEmpty(cf.StatusAddr, getEnv("MAKER_STATUS_ADDR", "")),
		MetricsAddr: firstNonEmpty(cf.MetricsAddr, getEnv("MAKER_METRICS_ADDR", "")),

		Log: LogConfig{
			Level:      firstNonEmpty(cf.Log.Level, getEnv("LOG_LEVEL", "info")),
			File:       firstNonEmpty(cf.Log.File, getEnv("LOG_FILE", "logs/maker.log")),
			MaxSize:    firstPositiveInt(cf.Log.MaxSize, 100),
			MaxBackups: firstPositiveInt(cf.Log.MaxBackups, 3),
			MaxAge:     firstPositiveInt(cf.Log.MaxAge, 7),
			Compress: func() bool {
				if cf.Log.Compress != nil {
					return *cf.Log.Compress
				}
				return true
			}(),
		},
	}

	if err := env.Err(); err != nil {
		return nil, fmt.Errorf("环境变量解析失败: %w", err)
	}

	// 单次网络调用超时：未设置时等于刷新间隔，且不允许超过刷新间隔
	if cfg.RequestTimeoutMs == 0 || cfg.RequestTimeoutMs > cfg.RefreshMs {
		cfg.RequestTimeoutMs = cfg.RefreshMs
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}
	return cfg, nil
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.SpreadBps <= 0 {
		return fmt.Errorf("MAKER_QUOTE_SPREAD_BPS 必须大于 0")
	}
	if c.SpreadBps >= 20000 {
		return fmt.Errorf("MAKER_QUOTE_SPREAD_BPS 必须小于 20000")
	}
	if c.SizeQuote <= 0 {
		return fmt.Errorf("MAKER_SIZE_USD 必须大于 0")
	}
	if c.RefreshMs <= 0 {
		return fmt.Errorf("MAKER_REFRESH_MS 必须大于 0")
	}
	if c.RequestTimeoutMs <= 0 || c.RequestTimeoutMs > c.RefreshMs {
		return fmt.Errorf("request timeout 必须在 (0, refresh_ms] 之间")
	}
	if c.LadderDepth <= 0 {
		return fmt.Errorf("ladder depth 必须大于 0")
	}
	if c.OrderTTLSeconds <= 0 {
		return fmt.Errorf("order ttl 必须大于 0")
	}
	if strings.TrimSpace(c.StatsFile) == "" {
		return fmt.Errorf("stats file 不能为空")
	}
	return nil
}

// RefreshInterval 刷新间隔
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshMs) * time.Millisecond
}

// RequestTimeout 单次网络调用超时
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMs) * time.Millisecond
}

// OrderTTL 报价有效期
func (c *Config) OrderTTL() time.Duration {
	return time.Duration(c.OrderTTLSeconds) * time.Second
}

// loadDotEnv 加载 .env（best-effort，不存在则忽略）。已存在的环境变量不会被覆盖。
func loadDotEnv(path string) {
	if strings.TrimSpace(path) != "" {
		_ = godotenv.Load(path)
		return
	}
	_ = godotenv.Load()
}

// loadConfigFile 加载 YAML 配置文件
func loadConfigFile(filePath string) (*ConfigFile, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(filePath))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("不支持的配置文件格式: %s (支持 .yaml, .yml)", ext)
	}

	var cf ConfigFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("解析 YAML 配置文件失败: %w", err)
	}
	return &cf, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func firstPositiveInt(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

// nonZeroInt 配置文件中显式设置（非零）的值优先；负数保留下来交给 Validate
func nonZeroInt(fileValue, envValue int) int {
	if fileValue != 0 {
		return fileValue
	}
	return envValue
}

func nonZeroFloat(fileValue, envValue float64) float64 {
	if fileValue != 0 {
		return fileValue
	}
	return envValue
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// envParser 解析数值类环境变量。已设置但无法解析的值记为错误，不静默回退到默认值。
type envParser struct {
	errs []error
}

// Int 解析整数环境变量，未设置时返回默认值
func (p *envParser) Int(key string, defaultValue int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s=%q 不是整数", key, value))
		return defaultValue
	}
	return parsed
}

// Float 解析浮点数环境变量，未设置时返回默认值
func (p *envParser) Float(key string, defaultValue float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s=%q 不是数字", key, value))
		return defaultValue
	}
	return parsed
}

// Flag 解析开关类环境变量："1" 或 "true" 为开启，未设置时使用默认值
func (p *envParser) Flag(key string, defaultValue bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return defaultValue
	}
	return v == "1" || v == "true"
}

// Err 汇总解析错误
func (p *envParser) Err() error {
	return errors.Join(p.errs...)
}
