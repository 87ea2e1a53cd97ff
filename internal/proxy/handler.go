package proxy

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/danmaku-cache/danmaku-cache/internal/cache"
	"github.com/danmaku-cache/danmaku-cache/internal/metrics"
)

// SourceHandler 把一个源地址解析为跳转目标，失败时返回错误由 Forwarder 统一处理。
type SourceHandler interface {
	Resolve(ctx context.Context, src Source) (Outcome, error)
}

// Outcome 描述一次代理请求的最终跳转。
type Outcome struct {
	Location string
	Key      string
	CacheHit bool
	Bypass   bool
	// Shared 表示本次回源与同 key 的其它请求合并执行。
	Shared bool
}

// Handler 串联“派生缓存键 → 查缓存 → 回源写缓存”的全流程。
// 同一 key 的并发回源通过 singleflight 合并，跨进程仍为 last writer wins。
type Handler struct {
	store   cache.Store
	fetcher Fetcher
	logger  *logrus.Logger
	metrics metrics.Recorder
	now     func() time.Time

	fills singleflight.Group
}

// NewHandler constructs the cache-mode handler with shared store/fetcher/logger.
func NewHandler(store cache.Store, fetcher Fetcher, logger *logrus.Logger, recorder metrics.Recorder) *Handler {
	if recorder == nil {
		recorder = metrics.Noop()
	}
	return &Handler{
		store:   store,
		fetcher: fetcher,
		logger:  logger,
		metrics: recorder,
		now:     time.Now,
	}
}

// Resolve 命中有效缓存时直接返回缓存地址，不发起任何网络请求；否则回源并写入缓存。
func (h *Handler) Resolve(ctx context.Context, src Source) (Outcome, error) {
	key := DeriveKey(src.Raw, h.now())
	outcome := Outcome{Key: key, Location: CacheLocation(key)}

	result, err := h.store.Lookup(ctx, key)
	switch {
	case err != nil:
		// 查找失败按未命中处理，仍尝试回源覆盖。
		h.logger.WithError(err).WithFields(logrus.Fields{
			"action":    "cache_lookup",
			"cache_key": key,
		}).Warn("cache_lookup_failed")
	case result.Valid:
		h.metrics.RecordLookup(ctx, src.Provider.Key, true)
		outcome.CacheHit = true
		return outcome, nil
	}
	h.metrics.RecordLookup(ctx, src.Provider.Key, false)

	// 回源与调用方的取消解耦，避免一个客户端断开拖垮合并中的其它请求；超时仍由 Fetcher 控制。
	fillCtx := context.WithoutCancel(ctx)
	_, err, shared := h.fills.Do(key, func() (interface{}, error) {
		return h.fill(fillCtx, src.Raw, key)
	})
	outcome.Shared = shared
	if err != nil {
		return outcome, err
	}
	return outcome, nil
}

// fill 在 singleflight 内再查一次缓存，之后才真正回源，保证同一 key 的迟到者不会重复请求上游。
func (h *Handler) fill(ctx context.Context, sourceURL, key string) (*cache.Entry, error) {
	if result, err := h.store.Lookup(ctx, key); err == nil && result.Valid {
		entry := result.Entry
		return &entry, nil
	}

	fetched, err := h.fetcher.Fetch(ctx, sourceURL)
	h.metrics.RecordFetch(ctx, err)
	if err != nil {
		return nil, err
	}
	defer fetched.Body.Close()

	entry, err := h.store.Put(ctx, key, fetched.Body, cache.PutOptions{})
	if err != nil {
		return nil, fmt.Errorf("store %s: %w", cache.FileName(key), err)
	}

	h.logger.WithFields(logrus.Fields{
		"action":     "cache_fill",
		"cache_key":  key,
		"size_bytes": entry.SizeBytes,
	}).Debug("cache_written")
	return entry, nil
}
