package routes

import (
	"context"
	"crypto/subtle"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/danmaku-cache/danmaku-cache/internal/cache"
)

// Sweeper 是 /clean-task 依赖的清理入口。
type Sweeper interface {
	Sweep(ctx context.Context) (cache.EvictReport, error)
}

// RegisterCleanRoute 暴露 /clean-task?secret=...，供外部定时器触发过期清理。
// 未配置密钥时任何请求都返回 403。
func RegisterCleanRoute(app *fiber.App, sweeper Sweeper, secret string, logger *logrus.Logger) {
	if app == nil || sweeper == nil {
		return
	}

	app.Get("/clean-task", func(c fiber.Ctx) error {
		if !secretMatches(secret, c.Query("secret")) {
			if logger != nil {
				logger.WithFields(logrus.Fields{
					"action": "clean_task",
					"ip":     c.IP(),
				}).Warn("clean_task_rejected")
			}
			return c.Status(fiber.StatusForbidden).SendString("Invalid secret")
		}

		if _, err := sweeper.Sweep(c.Context()); err != nil {
			return c.Status(fiber.StatusInternalServerError).SendString("Cleanup failed: " + err.Error())
		}
		return c.SendString("Cleanup completed")
	})
}

func secretMatches(expected, provided string) bool {
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(provided)) == 1
}
