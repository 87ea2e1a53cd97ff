// Package generic 注册兜底 provider：回源下载弹幕 XML 并写入磁盘缓存。
package generic

import "github.com/danmaku-cache/danmaku-cache/internal/provider"

func init() {
	provider.MustRegister(provider.Metadata{
		Key:         provider.DefaultKey(),
		Description: "Fetches danmaku XML from the upstream conversion service and caches it on disk",
		Mode:        provider.ModeCache,
	})
}
