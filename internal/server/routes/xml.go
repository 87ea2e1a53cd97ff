package routes

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/danmaku-cache/danmaku-cache/internal/cache"
)

// RegisterCacheRoutes 暴露 /xml/<key>.xml，直接从缓存目录读取文档，不校验新鲜度。
func RegisterCacheRoutes(app *fiber.App, store cache.Store) {
	if app == nil || store == nil {
		return
	}

	app.Get("/xml/:name", func(c fiber.Ctx) error {
		key, ok := keyFromFileName(c.Params("name"))
		if !ok {
			return c.SendStatus(fiber.StatusNotFound)
		}

		result, err := store.Get(c.Context(), key)
		if err != nil {
			if errors.Is(err, cache.ErrNotFound) || errors.Is(err, cache.ErrInvalidKey) {
				return c.SendStatus(fiber.StatusNotFound)
			}
			return err
		}

		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationXML)
		c.Set(fiber.HeaderLastModified, result.Entry.ModTime.UTC().Format(http.TimeFormat))
		return c.SendStream(result.Reader, int(result.Entry.SizeBytes))
	})
}

// keyFromFileName 要求文件名形如 <key>.xml，并解码路径转义。
func keyFromFileName(name string) (string, bool) {
	decoded, err := url.PathUnescape(name)
	if err != nil {
		return "", false
	}
	if !strings.HasSuffix(decoded, cache.EntryExt) {
		return "", false
	}
	key := strings.TrimSuffix(decoded, cache.EntryExt)
	if !cache.ValidKey(key) {
		return "", false
	}
	return key, true
}
