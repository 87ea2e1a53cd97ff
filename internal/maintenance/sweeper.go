// Package maintenance keeps the cache directory bounded: a rate limited
// threshold check on the request path, an explicit sweep for the admin route
// and an optional periodic loop.
package maintenance

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/danmaku-cache/danmaku-cache/internal/cache"
	"github.com/danmaku-cache/danmaku-cache/internal/logging"
	"github.com/danmaku-cache/danmaku-cache/internal/metrics"
)

// 清理触发来源，写入日志与指标。
const (
	TriggerThreshold = "threshold"
	TriggerAdmin     = "admin"
	TriggerTicker    = "ticker"
)

// Store 是 Sweeper 依赖的最小缓存接口。
type Store interface {
	Count(ctx context.Context) (int, error)
	EvictExpired(ctx context.Context) (cache.EvictReport, error)
	Policy() cache.Policy
}

// Sweeper 负责判断缓存是否超过软上限并删除过期条目。
type Sweeper struct {
	store         Store
	logger        *logrus.Logger
	metrics       metrics.Recorder
	checkInterval time.Duration
	now           func() time.Time

	// lastCheck 保存上一次阈值检查的 UnixNano，0 表示尚未检查。
	lastCheck atomic.Int64
	running   atomic.Bool
}

// NewSweeper 创建 Sweeper；checkInterval <= 0 表示每次调用都检查。
func NewSweeper(store Store, logger *logrus.Logger, recorder metrics.Recorder, checkInterval time.Duration) *Sweeper {
	if recorder == nil {
		recorder = metrics.Noop()
	}
	if checkInterval < 0 {
		checkInterval = 0
	}
	return &Sweeper{
		store:         store,
		logger:        logger,
		metrics:       recorder,
		checkInterval: checkInterval,
		now:           time.Now,
	}
}

// CheckCrowded 在条目数超过上限时清理过期条目。检查按 checkInterval 限流，
// 任何失败只记日志，不影响调用方。返回值表示本次是否真正执行了清理。
func (s *Sweeper) CheckCrowded(ctx context.Context) bool {
	if !s.allowCheck() {
		return false
	}

	count, err := s.store.Count(ctx)
	if err != nil {
		s.logger.WithError(err).WithField("action", "cache_count").Warn("cache_count_failed")
		return false
	}
	if !s.store.Policy().Crowded(count) {
		return false
	}

	s.logger.WithFields(logrus.Fields{
		"action":      "cache_sweep",
		"entries":     count,
		"max_entries": s.store.Policy().MaxEntries,
	}).Info("cache_threshold_exceeded")

	if _, err := s.sweep(ctx, TriggerThreshold); err != nil {
		return false
	}
	return true
}

// Sweep 立即删除全部过期条目，供管理接口调用。
func (s *Sweeper) Sweep(ctx context.Context) (cache.EvictReport, error) {
	return s.sweep(ctx, TriggerAdmin)
}

// Start 按 interval 周期清理，直到 ctx 结束；阻塞调用，通常放在独立 goroutine。
func (s *Sweeper) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_, _ = s.sweep(ctx, TriggerTicker)
		case <-ctx.Done():
			s.logger.WithField("action", "cache_sweep").Debug("sweeper stopped")
			return
		}
	}
}

// allowCheck 以 CAS 抢占检查窗口，同一窗口内只有一个调用者会真正计数。
func (s *Sweeper) allowCheck() bool {
	if s.checkInterval == 0 {
		return true
	}
	now := s.now().UnixNano()
	for {
		last := s.lastCheck.Load()
		if last != 0 && now-last < int64(s.checkInterval) {
			return false
		}
		if s.lastCheck.CompareAndSwap(last, now) {
			return true
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context, trigger string) (cache.EvictReport, error) {
	// 阈值与定时清理不叠加执行；管理接口总是执行。
	if trigger != TriggerAdmin {
		if !s.running.CompareAndSwap(false, true) {
			return cache.EvictReport{}, nil
		}
		defer s.running.Store(false)
	}

	started := s.now()
	report, err := s.store.EvictExpired(ctx)
	s.metrics.RecordSweep(ctx, trigger, report.Removed, len(report.Failures))

	fields := logging.SweepFields(trigger, report.Scanned, report.Removed, len(report.Failures))
	fields["elapsed_ms"] = s.now().Sub(started).Milliseconds()
	for _, failure := range report.Failures {
		s.logger.WithFields(logrus.Fields{
			"action":  "cache_sweep",
			"trigger": trigger,
			"file":    failure.Name,
			"error":   failure.Err.Error(),
		}).Warn("cache_evict_failed")
	}
	if err != nil {
		s.logger.WithError(err).WithFields(fields).Error("cache_sweep_failed")
		return report, err
	}
	s.logger.WithFields(fields).Info("cache_sweep_complete")
	return report, nil
}
