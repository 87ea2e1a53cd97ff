package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix 是除兼容变量外所有配置项的环境变量前缀，例如 DANMAKU_CACHE_LISTENPORT。
	EnvPrefix = "DANMAKU_CACHE"

	defaultProxyService  = "https://fc.lyz05.cn"
	defaultErrorRedirect = "https://http.cat/500"
)

// Load 读取可选的 TOML 配置文件并叠加环境变量，同时注入默认值与校验逻辑。
// path 为空时只使用默认值与环境变量。
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	if err := bindEnv(v); err != nil {
		return nil, fmt.Errorf("绑定环境变量失败: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	absStorage, err := filepath.Abs(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("无法解析缓存目录: %w", err)
	}
	cfg.StoragePath = absStorage
	cfg.ProxyService = strings.TrimRight(cfg.ProxyService, "/")

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenPort", 3000)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("StoragePath", filepath.Join(os.TempDir(), "xml"))
	v.SetDefault("CacheTTL", "24h")
	v.SetDefault("MaxEntries", 100)
	v.SetDefault("UpstreamTimeout", "10s")
	v.SetDefault("ProxyService", defaultProxyService)
	v.SetDefault("CleanSecret", "")
	v.SetDefault("ErrorRedirect", defaultErrorRedirect)
	v.SetDefault("SweepCheckInterval", "30s")
	v.SetDefault("SweepInterval", 0)
}

// bindEnv 保留部署环境里已有的 PROXY_SERVICE/CLEAN_SECRET，其余字段走统一前缀。
func bindEnv(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	if err := v.BindEnv("ProxyService", "PROXY_SERVICE", EnvPrefix+"_PROXYSERVICE"); err != nil {
		return err
	}
	return v.BindEnv("CleanSecret", "CLEAN_SECRET", EnvPrefix+"_CLEANSECRET")
}

func applyDefaults(c *Config) {
	if c.ListenPort == 0 {
		c.ListenPort = 3000
	}
	if c.CacheTTL.DurationValue() == 0 {
		c.CacheTTL = Duration(24 * time.Hour)
	}
	if c.MaxEntries == 0 {
		c.MaxEntries = 100
	}
	if c.UpstreamTimeout.DurationValue() == 0 {
		c.UpstreamTimeout = Duration(10 * time.Second)
	}
	if strings.TrimSpace(c.ProxyService) == "" {
		c.ProxyService = defaultProxyService
	}
	if strings.TrimSpace(c.ErrorRedirect) == "" {
		c.ErrorRedirect = defaultErrorRedirect
	}
	if c.SweepCheckInterval.DurationValue() < 0 {
		c.SweepCheckInterval = Duration(0)
	}
	if c.SweepInterval.DurationValue() < 0 {
		c.SweepInterval = Duration(0)
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}
