// Package bilibili 注册 B 站 provider：弹幕由上游转换服务直接提供，本服务只做跳转。
package bilibili

import "github.com/danmaku-cache/danmaku-cache/internal/provider"

func init() {
	provider.MustRegister(provider.Metadata{
		Key:         "bilibili",
		Description: "Bilibili sources are served by the upstream browse endpoint without local caching",
		Mode:        provider.ModeRedirect,
		HostMarkers: []string{"bilibili"},
	})
}
