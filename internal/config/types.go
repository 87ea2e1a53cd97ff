package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"24h" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// Config 描述整个进程的运行参数，启动时构建一次后只读，并通过构造函数显式注入。
type Config struct {
	ListenPort    int    `mapstructure:"ListenPort"`
	LogLevel      string `mapstructure:"LogLevel"`
	LogFilePath   string `mapstructure:"LogFilePath"`
	LogMaxSize    int    `mapstructure:"LogMaxSize"`
	LogMaxBackups int    `mapstructure:"LogMaxBackups"`
	LogCompress   bool   `mapstructure:"LogCompress"`

	// StoragePath 是 XML 缓存目录，目录本身即索引，不额外维护 manifest。
	StoragePath string   `mapstructure:"StoragePath"`
	CacheTTL    Duration `mapstructure:"CacheTTL"`
	// MaxEntries 是软上限：超过后触发一次过期清理，但不会强制裁剪目录。
	MaxEntries      int      `mapstructure:"MaxEntries"`
	UpstreamTimeout Duration `mapstructure:"UpstreamTimeout"`

	ProxyService  string `mapstructure:"ProxyService"`
	CleanSecret   string `mapstructure:"CleanSecret"`
	ErrorRedirect string `mapstructure:"ErrorRedirect"`

	// SweepCheckInterval 限制请求前目录计数检查的频率，0 表示每个请求都检查。
	SweepCheckInterval Duration `mapstructure:"SweepCheckInterval"`
	// SweepInterval 大于 0 时启用后台定时清理。
	SweepInterval Duration `mapstructure:"SweepInterval"`
}

// CleanupEnabled 表示是否配置了清理密钥；未配置时 /clean-task 永远拒绝。
func (c *Config) CleanupEnabled() bool {
	return c != nil && c.CleanSecret != ""
}

// SecretMode 输出 `configured` 或 `missing`，供日志字段使用，避免泄露密钥本身。
func (c *Config) SecretMode() string {
	if c.CleanupEnabled() {
		return "configured"
	}
	return "missing"
}
