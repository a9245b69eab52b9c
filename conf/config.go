package conf

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// 配置加载（API密钥等）

type ServerConfig struct {
	Listen       string `yaml:"listen" validate:"required"`
	Mode         string `yaml:"mode"` // debug / release
	MaxPingCount int    `yaml:"max-ping-count"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	FileName   string `yaml:"file-name"`
	TimeFormat string `yaml:"time-format"`
	MaxSize    int    `yaml:"max-size"`
	MaxBackups int    `yaml:"max-backups"`
	MaxAge     int    `yaml:"max-age"`
	Compress   bool   `yaml:"compress"`
	LocalTime  bool   `yaml:"local-time"`
	Console    bool   `yaml:"console"`
}

type BingxConfig struct {
	ApiKey    string `yaml:"api-key" validate:"required"`
	SecretKey string `yaml:"secret-key" validate:"required"`
	BaseURL   string `yaml:"base-url" validate:"required,url"`
	WsURL     string `yaml:"ws-url"`
}

// Duration yaml 里写 "500ms"、"30s" 这种人类可读的时长
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	text := strings.TrimSpace(node.Value)
	if text == "" {
		*d = 0
		return nil
	}
	dur, err := time.ParseDuration(text)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(dur)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// 平仓策略
const (
	// 盲平：直接按信号里的数量下 reduceOnly 单，不查仓位
	ExitPolicyBlind = "blind"
	// 查仓平仓：先查当前持仓数量再平
	ExitPolicyPosition = "position"
)

type TradingConfig struct {
	Symbol          string   `yaml:"symbol" validate:"required"`                  // 例如 ETH-USDT
	Leverage        int      `yaml:"leverage"`                                    // 启动时设置一次
	DefaultFraction float64  `yaml:"default-fraction"`                            // 信号未携带仓位比例时的默认值
	Precision       int32    `yaml:"quantity-precision"`                          // 下单数量小数位
	ExitPolicy      string   `yaml:"exit-policy" validate:"oneof=blind position"`
	PriceTTL        Duration `yaml:"price-ttl"`
	BalanceTTL      Duration `yaml:"balance-ttl"`
	PositionTTL     Duration `yaml:"position-ttl"`
	PriceRefresh    Duration `yaml:"price-refresh-interval"`                      // 后台定时刷新价格的间隔，0 关闭
	StreamEnabled   bool     `yaml:"stream-enabled"`                              // 是否用 websocket 行情喂价格缓存
	ExecutorWorkers int      `yaml:"executor-workers"`                            // 交易执行池大小
}

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
	Bingx   BingxConfig   `yaml:"bingx"`
	Trading TradingConfig `yaml:"trading"`
}

var AppConfig Config

// LoadConfig 读取 yaml 配置；BINGX_API_KEY / BINGX_SECRET_KEY 环境变量优先于文件。
// 密钥缺失属于致命错误，由调用方 Fatal。
func LoadConfig(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file error %w", err)
	}
	if err := yaml.Unmarshal(data, &AppConfig); err != nil {
		return fmt.Errorf("unmarshal config yaml error: %w", err)
	}

	if key := os.Getenv("BINGX_API_KEY"); key != "" {
		AppConfig.Bingx.ApiKey = key
	}
	if secret := os.Getenv("BINGX_SECRET_KEY"); secret != "" {
		AppConfig.Bingx.SecretKey = secret
	}

	applyDefaults(&AppConfig)

	if err := validator.New().Struct(&AppConfig); err != nil {
		return fmt.Errorf("config validate error: %w", err)
	}
	return nil
}

func applyDefaults(c *Config) {
	if c.Server.Listen == "" {
		c.Server.Listen = ":8090"
	}
	if c.Server.MaxPingCount == 0 {
		c.Server.MaxPingCount = 10
	}
	if c.Bingx.BaseURL == "" {
		c.Bingx.BaseURL = "https://open-api.bingx.com"
	}
	if c.Trading.DefaultFraction <= 0 || c.Trading.DefaultFraction >= 1 {
		c.Trading.DefaultFraction = 0.40
	}
	if c.Trading.Precision <= 0 {
		c.Trading.Precision = 4
	}
	if c.Trading.ExitPolicy == "" {
		c.Trading.ExitPolicy = ExitPolicyPosition
	}
	if c.Trading.PriceTTL <= 0 {
		c.Trading.PriceTTL = Duration(500 * time.Millisecond)
	}
	if c.Trading.BalanceTTL <= 0 {
		c.Trading.BalanceTTL = Duration(30 * time.Second)
	}
	if c.Trading.PositionTTL <= 0 {
		c.Trading.PositionTTL = Duration(100 * time.Millisecond)
	}
	if c.Trading.ExecutorWorkers <= 0 {
		c.Trading.ExecutorWorkers = 8
	}
}
