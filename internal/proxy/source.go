package proxy

import (
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/danmaku-cache/danmaku-cache/internal/cache"
	"github.com/danmaku-cache/danmaku-cache/internal/provider"
)

// Source 描述一次 /proxy 请求携带的源视频地址。
type Source struct {
	// Raw 是解码后的原始地址，回源时原样传给上游。
	Raw string
	// URL 在无法解析为绝对地址时为 nil。
	URL      *url.URL
	Provider provider.Metadata
}

// ParseSource 解析源地址并按主机名选择 provider；解析失败时走默认 provider。
func ParseSource(raw string) Source {
	src := Source{Raw: raw}
	host := ""
	if parsed, err := parseSourceURL(raw); err == nil {
		src.URL = parsed
		host = parsed.Hostname()
	}
	if meta, ok := provider.Match(host); ok {
		src.Provider = meta
	}
	return src
}

// DeriveKey 取 URL 路径最后一段并去掉第一个 "." 之后的部分作为缓存键。
// 解析失败或得到的键不能作为文件名时退回毫秒时间戳，这类键不可复现。
// 不同 URL 的最后一段相同时会共用同一个键。
func DeriveKey(raw string, now time.Time) string {
	parsed, err := parseSourceURL(raw)
	if err != nil {
		return fallbackKey(now)
	}

	p := parsed.Path
	segment := p[strings.LastIndex(p, "/")+1:]
	if idx := strings.IndexByte(segment, '.'); idx >= 0 {
		segment = segment[:idx]
	}
	if !cache.ValidKey(segment) {
		return fallbackKey(now)
	}
	return segment
}

func fallbackKey(now time.Time) string {
	return strconv.FormatInt(now.UnixMilli(), 10)
}

func parseSourceURL(raw string) (*url.URL, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, errors.New("source url must be absolute")
	}
	return parsed, nil
}

// CacheLocation 返回缓存条目对外暴露的路径。
func CacheLocation(key string) string {
	return "/xml/" + url.PathEscape(cache.FileName(key))
}
