package provider

import "strings"

// Mode 描述 provider 的处理方式。
type Mode string

const (
	ModeCache    Mode = "cache"
	ModeRedirect Mode = "redirect"
)

// Metadata 记录一个 provider 的静态信息，供代理分发和诊断端使用。
type Metadata struct {
	Key         string
	Description string
	Mode        Mode
	// HostMarkers 中任一字符串出现在主机名里即视为命中，匹配时忽略大小写。
	HostMarkers []string
}

// DefaultKey 返回兜底 provider 的键值。
func DefaultKey() string {
	return defaultKey
}

// MatchesHost 判断主机名是否包含任一标记。
func (m Metadata) MatchesHost(host string) bool {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return false
	}
	for _, marker := range m.HostMarkers {
		marker = strings.ToLower(strings.TrimSpace(marker))
		if marker != "" && strings.Contains(host, marker) {
			return true
		}
	}
	return false
}
