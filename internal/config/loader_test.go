package config

import "testing"

func TestLoadFailsWithMissingFile(t *testing.T) {
	if _, err := Load(testConfigPath(t, "absent.toml")); err == nil {
		t.Fatalf("显式指定但不存在的配置文件应返回错误")
	}
}

func TestLoadRejectsInvalidDuration(t *testing.T) {
	clearEnv(t)
	cfg := `
LogLevel = "info"
StoragePath = "./data"
CacheTTL = "boom"
`
	path := writeTempConfig(t, cfg)
	if _, err := Load(path); err == nil {
		t.Fatalf("无效 Duration 应失败")
	}
}

func TestLoadClampsNegativeSweepIntervals(t *testing.T) {
	clearEnv(t)
	cfg := `
StoragePath = "./data"
SweepCheckInterval = "-5s"
SweepInterval = "-1m"
`
	loaded, err := Load(writeTempConfig(t, cfg))
	if err != nil {
		t.Fatalf("Load 返回错误: %v", err)
	}
	if loaded.SweepCheckInterval != 0 || loaded.SweepInterval != 0 {
		t.Fatalf("负数间隔应被归零")
	}
}
