package server

import (
	"net"
	"net/http"
	"time"

	"github.com/danmaku-cache/danmaku-cache/internal/config"
)

// Shared HTTP transport tunings，复用长连接并集中配置超时。
var defaultTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   100,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ForceAttemptHTTP2:     true,
	DialContext: (&net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
}

// DefaultUpstreamTimeout 是未配置 UpstreamTimeout 时的回源超时。
const DefaultUpstreamTimeout = 10 * time.Second

// NewUpstreamClient 返回共享 http.Client，用于所有回源请求。
// 上游转换服务的跳转会被跟随，最终响应的状态码决定回源成败。
func NewUpstreamClient(cfg *config.Config) *http.Client {
	return &http.Client{
		Timeout:   UpstreamTimeout(cfg),
		Transport: defaultTransport.Clone(),
	}
}

// UpstreamTimeout 返回配置的回源超时，未配置时为 DefaultUpstreamTimeout。
func UpstreamTimeout(cfg *config.Config) time.Duration {
	if cfg != nil && cfg.UpstreamTimeout.DurationValue() > 0 {
		return cfg.UpstreamTimeout.DurationValue()
	}
	return DefaultUpstreamTimeout
}
