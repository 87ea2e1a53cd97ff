package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/danmaku-cache/danmaku-cache/internal/cache"
)

// UpstreamError 表示上游转换服务的网络错误、超时或非 2xx 响应。
type UpstreamError struct {
	URL    string
	Status int
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("upstream %s returned status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("upstream %s: %v", e.URL, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Timeout 表示错误是否由固定的回源超时触发。
func (e *UpstreamError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// errEmptySource 表示 /proxy/ 之后没有任何内容。
var errEmptySource = errors.New("empty source url")

// panicError 包装 handler 中恢复的 panic，使其走统一的错误跳转。
type panicError struct {
	value interface{}
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}

// errorKind 把错误归类为日志字段，客户端永远只看到统一的错误跳转。
func errorKind(err error) string {
	var (
		upstreamErr *UpstreamError
		storageErr  *cache.StorageError
		recovered   *panicError
	)
	switch {
	case errors.As(err, &upstreamErr):
		if upstreamErr.Timeout() {
			return "upstream_timeout"
		}
		return "upstream"
	case errors.As(err, &storageErr):
		return "storage"
	case errors.As(err, &recovered):
		return "panic"
	case errors.Is(err, errEmptySource):
		return "bad_request"
	default:
		return "internal"
	}
}
