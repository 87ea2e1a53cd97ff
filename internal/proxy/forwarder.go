package proxy

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/danmaku-cache/danmaku-cache/internal/logging"
	"github.com/danmaku-cache/danmaku-cache/internal/provider"
	"github.com/danmaku-cache/danmaku-cache/internal/server"
)

// Forwarder 是 /proxy/* 的入口：解析源地址，按 provider 模式选择 SourceHandler，
// 把结果转成 302；任何错误或 panic 都跳转到统一错误页，细节只写日志。
type Forwarder struct {
	logger   *logrus.Logger
	errorURL string

	mu       sync.RWMutex
	handlers map[provider.Mode]SourceHandler
}

// NewForwarder 创建 Forwarder，errorURL 是所有失败请求的跳转目标。
func NewForwarder(logger *logrus.Logger, errorURL string) *Forwarder {
	return &Forwarder{
		logger:   logger,
		errorURL: errorURL,
		handlers: make(map[provider.Mode]SourceHandler),
	}
}

// Handle 实现 server.ProxyHandler。
func (f *Forwarder) Handle(c fiber.Ctx) error {
	started := time.Now()
	requestID := server.RequestID(c)
	setRequestIDHeader(c, requestID)

	raw := sourceFromParams(c)
	src := ParseSource(raw)
	if strings.TrimSpace(raw) == "" {
		f.logResult(src, Outcome{}, requestID, started, errEmptySource)
		return f.redirectError(c)
	}

	handler := f.lookup(src.Provider.Mode)
	if handler == nil {
		f.logModuleError(src, requestID)
		return f.redirectError(c)
	}

	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	outcome, err := f.invokeHandler(ctx, handler, src)
	f.logResult(src, outcome, requestID, started, err)
	if err != nil {
		return f.redirectError(c)
	}

	if outcome.Key != "" {
		c.Set("X-Cache-Key", outcome.Key)
	}
	if outcome.Bypass {
		c.Set("X-Cache-Hit", "bypass")
	} else if outcome.CacheHit {
		c.Set("X-Cache-Hit", "true")
	} else {
		c.Set("X-Cache-Hit", "false")
	}
	return c.Redirect().Status(fiber.StatusFound).To(outcome.Location)
}

func (f *Forwarder) invokeHandler(ctx context.Context, handler SourceHandler, src Source) (outcome Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r}
		}
	}()
	return handler.Resolve(ctx, src)
}

func (f *Forwarder) redirectError(c fiber.Ctx) error {
	return c.Redirect().Status(fiber.StatusFound).To(f.errorURL)
}

func (f *Forwarder) lookup(mode provider.Mode) SourceHandler {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.handlers[mode]
}

// sourceFromParams 取出 /proxy/ 之后的部分并做一次 URL 解码；解码失败时保留原文。
func sourceFromParams(c fiber.Ctx) string {
	raw := c.Params("*")
	if decoded, err := url.PathUnescape(raw); err == nil {
		return decoded
	}
	return raw
}

func setRequestIDHeader(c fiber.Ctx, requestID string) {
	if requestID != "" {
		c.Set("X-Request-ID", requestID)
	}
}

func (f *Forwarder) logResult(src Source, outcome Outcome, requestID string, started time.Time, err error) {
	if f.logger == nil {
		return
	}
	fields := logging.RequestFields(src.Provider.Key, outcome.Key, outcome.CacheHit)
	fields["action"] = "proxy"
	fields["source"] = src.Raw
	fields["bypass"] = outcome.Bypass
	fields["shared_fill"] = outcome.Shared
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	if requestID != "" {
		fields["request_id"] = requestID
	}
	if err != nil {
		fields["error"] = err.Error()
		fields["error_kind"] = errorKind(err)
		f.logger.WithFields(fields).Error("proxy_failed")
		return
	}
	f.logger.WithFields(fields).Info("proxy_complete")
}

func (f *Forwarder) logModuleError(src Source, requestID string) {
	if f.logger == nil {
		return
	}
	fields := logging.RequestFields(src.Provider.Key, "", false)
	fields["action"] = "proxy"
	fields["error"] = "mode_handler_missing"
	fields["mode"] = string(src.Provider.Mode)
	if requestID != "" {
		fields["request_id"] = requestID
	}
	f.logger.WithFields(fields).Error("mode handler unavailable")
}
