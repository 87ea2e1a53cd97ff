package config

import (
	"os"
	"path/filepath"
	"testing"
)

func testConfigPath(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join("testdata", name)
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("写入临时配置失败: %v", err)
	}
	return path
}

// clearEnv 避免宿主环境中的 PROXY_SERVICE/CLEAN_SECRET 干扰断言。
func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv("PROXY_SERVICE", "")
	t.Setenv("CLEAN_SECRET", "")
	os.Unsetenv("PROXY_SERVICE")
	os.Unsetenv("CLEAN_SECRET")
}
