package routes

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"

	"github.com/danmaku-cache/danmaku-cache/internal/cache"
	"github.com/danmaku-cache/danmaku-cache/internal/config"
	"github.com/danmaku-cache/danmaku-cache/internal/provider"
	"github.com/danmaku-cache/danmaku-cache/internal/version"
)

// DiagnosticsOptions 汇总 /-/ 诊断接口需要的依赖，Metrics 为空时不注册 /-/metrics。
type DiagnosticsOptions struct {
	Config  *config.Config
	Store   cache.Store
	Metrics http.Handler
}

// RegisterDiagnosticsRoutes 暴露 /-/providers、/-/status 与 /-/metrics。
func RegisterDiagnosticsRoutes(app *fiber.App, opts DiagnosticsOptions) {
	if app == nil {
		return
	}

	app.Get("/-/providers", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"providers": encodeProviders(provider.List()),
		})
	})

	if opts.Store != nil {
		app.Get("/-/status", func(c fiber.Ctx) error {
			count, err := opts.Store.Count(c.Context())
			if err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "cache_count_failed"})
			}
			return c.JSON(buildStatus(opts.Config, opts.Store.Policy(), count))
		})
	}

	if opts.Metrics != nil {
		app.Get("/-/metrics", adaptor.HTTPHandler(opts.Metrics))
	}
}

type providerPayload struct {
	Key         string   `json:"key"`
	Description string   `json:"description"`
	Mode        string   `json:"mode"`
	HostMarkers []string `json:"host_markers,omitempty"`
	Default     bool     `json:"default"`
}

type statusPayload struct {
	Entries     int    `json:"entries"`
	TTLSeconds  int64  `json:"ttl_seconds"`
	MaxEntries  int    `json:"max_entries"`
	StoragePath string `json:"storage_path"`
	CleanSecret string `json:"clean_secret"`
	Version     string `json:"version"`
}

func encodeProviders(list []provider.Metadata) []providerPayload {
	if len(list) == 0 {
		return nil
	}
	result := make([]providerPayload, 0, len(list))
	for _, meta := range list {
		result = append(result, providerPayload{
			Key:         meta.Key,
			Description: meta.Description,
			Mode:        string(meta.Mode),
			HostMarkers: append([]string(nil), meta.HostMarkers...),
			Default:     meta.Key == provider.DefaultKey(),
		})
	}
	return result
}

func buildStatus(cfg *config.Config, policy cache.Policy, count int) statusPayload {
	payload := statusPayload{
		Entries:     count,
		TTLSeconds:  int64(policy.TTL / time.Second),
		MaxEntries:  policy.MaxEntries,
		CleanSecret: "missing",
		Version:     version.Full(),
	}
	if cfg != nil {
		payload.StoragePath = cfg.StoragePath
		payload.CleanSecret = cfg.SecretMode()
	}
	return payload
}
