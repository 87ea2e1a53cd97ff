package server

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ProxyHandler describes the component serving /proxy/*. It allows injecting
// fake handlers during tests.
type ProxyHandler interface {
	Handle(fiber.Ctx) error
}

// ProxyHandlerFunc adapts a function to the ProxyHandler interface.
type ProxyHandlerFunc func(fiber.Ctx) error

// Handle makes ProxyHandlerFunc satisfy ProxyHandler.
func (f ProxyHandlerFunc) Handle(c fiber.Ctx) error {
	return f(c)
}

// Maintainer 在请求进入前检查缓存是否过满，实现必须自行限流且不能阻断请求。
type Maintainer interface {
	CheckCrowded(ctx context.Context) bool
}

// AppOptions controls how the Fiber application should behave.
type AppOptions struct {
	Logger     *logrus.Logger
	Proxy      ProxyHandler
	Maintainer Maintainer
	// ErrorRedirect 是所有未处理错误的跳转目标。
	ErrorRedirect string
}

const contextKeyRequestID = "_danmaku_request_id"

// NewApp builds a Fiber application with request ID and maintenance
// middlewares, the /proxy/* route and a redirecting error handler.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Proxy == nil {
		return nil, errors.New("proxy handler is required")
	}
	if strings.TrimSpace(opts.ErrorRedirect) == "" {
		return nil, errors.New("error redirect is required")
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
		ErrorHandler:  errorHandler(opts.Logger, opts.ErrorRedirect),
	})

	app.Use(recover.New())
	app.Use(requestIDMiddleware())
	if opts.Maintainer != nil {
		app.Use(maintenanceMiddleware(opts.Maintainer))
	}

	app.Get("/proxy/*", opts.Proxy.Handle)

	return app, nil
}

// requestIDMiddleware 为每个请求生成 ID，写入 Locals 与响应头。
func requestIDMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

// maintenanceMiddleware 在业务处理前做一次（限流的）条目数检查，诊断接口除外。
func maintenanceMiddleware(m Maintainer) fiber.Handler {
	return func(c fiber.Ctx) error {
		if !isDiagnosticsPath(string(c.Request().URI().Path())) {
			m.CheckCrowded(c.Context())
		}
		return c.Next()
	}
}

// errorHandler 记录错误并统一跳转到错误页；未知路由仍返回 404。
func errorHandler(logger *logrus.Logger, errorURL string) fiber.ErrorHandler {
	return func(c fiber.Ctx, err error) error {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) && fiberErr.Code == fiber.StatusNotFound {
			return c.Status(fiber.StatusNotFound).SendString(fiberErr.Message)
		}

		fields := logrus.Fields{
			"action": "request",
			"method": c.Method(),
			"path":   c.Path(),
		}
		if reqID := RequestID(c); reqID != "" {
			fields["request_id"] = reqID
		}
		logger.WithError(err).WithFields(fields).Error("request_failed")

		return c.Redirect().Status(fiber.StatusFound).To(errorURL)
	}
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}

func isDiagnosticsPath(path string) bool {
	return strings.HasPrefix(path, "/-/")
}
