package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleConfig = `
server:
  listen: ":8090"
  mode: release

bingx:
  api-key: file-key
  secret-key: file-secret
  base-url: https://open-api.bingx.com

trading:
  symbol: ETH-USDT
  leverage: 5
  default-fraction: 0.25
  exit-policy: blind
  price-ttl: 500ms
  balance-ttl: 30s
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	if err := LoadConfig(writeConfig(t, sampleConfig)); err != nil {
		t.Fatalf("load: %v", err)
	}
	if AppConfig.Trading.Symbol != "ETH-USDT" {
		t.Errorf("symbol = %q", AppConfig.Trading.Symbol)
	}
	if AppConfig.Trading.ExitPolicy != ExitPolicyBlind {
		t.Errorf("exit policy = %q, want blind", AppConfig.Trading.ExitPolicy)
	}
	// 人类可读的时长写法要能解析
	if got := AppConfig.Trading.PriceTTL.Std(); got != 500*time.Millisecond {
		t.Errorf("price ttl = %v, want 500ms", got)
	}
	if got := AppConfig.Trading.BalanceTTL.Std(); got != 30*time.Second {
		t.Errorf("balance ttl = %v, want 30s", got)
	}
	// 没写的字段吃默认值
	if got := AppConfig.Trading.PositionTTL.Std(); got != 100*time.Millisecond {
		t.Errorf("position ttl default = %v, want 100ms", got)
	}
	if AppConfig.Trading.ExecutorWorkers != 8 {
		t.Errorf("workers default = %d, want 8", AppConfig.Trading.ExecutorWorkers)
	}
}

// 环境变量里的密钥优先于文件
func TestLoadConfig_EnvOverridesKeys(t *testing.T) {
	t.Setenv("BINGX_API_KEY", "env-key")
	t.Setenv("BINGX_SECRET_KEY", "env-secret")

	if err := LoadConfig(writeConfig(t, sampleConfig)); err != nil {
		t.Fatalf("load: %v", err)
	}
	if AppConfig.Bingx.ApiKey != "env-key" || AppConfig.Bingx.SecretKey != "env-secret" {
		t.Fatalf("env override lost: %q / %q", AppConfig.Bingx.ApiKey, AppConfig.Bingx.SecretKey)
	}
}

// 密钥缺失必须在启动时报错，而不是跑到下单时才发现
func TestLoadConfig_MissingCredentials(t *testing.T) {
	cfg := `
server:
  listen: ":8090"
trading:
  symbol: ETH-USDT
  exit-policy: position
`
	t.Setenv("BINGX_API_KEY", "")
	t.Setenv("BINGX_SECRET_KEY", "")
	if err := LoadConfig(writeConfig(t, cfg)); err == nil {
		t.Fatal("missing credentials must fail validation")
	}
}

func TestLoadConfig_BadDuration(t *testing.T) {
	cfg := `
bingx:
  api-key: k
  secret-key: s
trading:
  symbol: ETH-USDT
  price-ttl: fast
`
	if err := LoadConfig(writeConfig(t, cfg)); err == nil {
		t.Fatal("unparseable duration must fail")
	}
}
