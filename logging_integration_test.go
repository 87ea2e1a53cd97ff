package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCheckConfigWritesToRotatingLogFile(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "logs", "danmaku-cache.log")
	configPath := writeConfigFile(t, fmt.Sprintf(`
LogLevel = "info"
LogFilePath = "%s"
StoragePath = "%s"
ListenPort = 5000
`, logPath, filepath.Join(dir, "xml")))

	useBufferWriters(t)
	code := run(cliOptions{configPath: configPath, checkOnly: true})
	if code != 0 {
		t.Fatalf("配置校验应成功，得到 %d (stderr=%s)", code, stdErrBuffer().String())
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("应写入日志文件: %v", err)
	}
	logs := string(data)
	for _, want := range []string{`"action":"check_config"`, `"clean_secret":"missing"`, `"result":"ok"`} {
		if !strings.Contains(logs, want) {
			t.Fatalf("日志缺少 %s: %s", want, logs)
		}
	}
}

func TestCheckConfigFallsBackWhenLogDirBlocked(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root 用户不受目录权限限制")
	}
	dir := t.TempDir()
	blocked := filepath.Join(dir, "blocked")
	if err := os.Mkdir(blocked, 0o755); err != nil {
		t.Fatalf("创建目录失败: %v", err)
	}
	if err := os.Chmod(blocked, 0o000); err != nil {
		t.Fatalf("设置目录权限失败: %v", err)
	}
	t.Cleanup(func() { _ = os.Chmod(blocked, 0o755) })

	configPath := writeConfigFile(t, fmt.Sprintf(`
LogFilePath = "%s"
StoragePath = "%s"
`, filepath.Join(blocked, "sub", "danmaku-cache.log"), filepath.Join(dir, "xml")))

	useBufferWriters(t)
	if code := run(cliOptions{configPath: configPath, checkOnly: true}); code != 0 {
		t.Fatalf("日志 fallback 不应导致失败，得到 %d", code)
	}
}
