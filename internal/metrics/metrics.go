// Package metrics records cache counters through the OpenTelemetry metric API
// and exposes them in Prometheus text format on a private registry.
package metrics

import (
	"context"
	"net/http"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "github.com/danmaku-cache/danmaku-cache"

// Recorder 是代理与清理流程依赖的最小指标接口，实现必须并发安全且不得 panic。
type Recorder interface {
	RecordLookup(ctx context.Context, provider string, hit bool)
	RecordFetch(ctx context.Context, err error)
	RecordSweep(ctx context.Context, trigger string, removed, failed int)
}

// Metrics 基于 OTel SDK + Prometheus exporter 的 Recorder 实现。
type Metrics struct {
	provider *sdkmetric.MeterProvider
	registry *promclient.Registry

	lookups       metric.Int64Counter
	fetches       metric.Int64Counter
	sweepRemoved  metric.Int64Counter
	sweepFailures metric.Int64Counter
}

// New 创建独立的 MeterProvider 与 Prometheus registry，避免多实例重复注册。
func New() (*Metrics, error) {
	registry := promclient.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, err
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter(meterName)

	lookups, err := meter.Int64Counter(
		"danmaku_cache_lookups",
		metric.WithDescription("Cache lookups by provider and result"),
	)
	if err != nil {
		return nil, err
	}
	fetches, err := meter.Int64Counter(
		"danmaku_cache_upstream_fetches",
		metric.WithDescription("Upstream conversion fetches by result"),
	)
	if err != nil {
		return nil, err
	}
	sweepRemoved, err := meter.Int64Counter(
		"danmaku_cache_sweep_removed",
		metric.WithDescription("Entries removed by eviction sweeps"),
	)
	if err != nil {
		return nil, err
	}
	sweepFailures, err := meter.Int64Counter(
		"danmaku_cache_sweep_failures",
		metric.WithDescription("Per-entry failures during eviction sweeps"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		provider:      provider,
		registry:      registry,
		lookups:       lookups,
		fetches:       fetches,
		sweepRemoved:  sweepRemoved,
		sweepFailures: sweepFailures,
	}, nil
}

// RecordLookup 记录一次缓存查找的命中情况。
func (m *Metrics) RecordLookup(ctx context.Context, provider string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.lookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("result", result),
	))
}

// RecordFetch 记录一次上游回源结果。
func (m *Metrics) RecordFetch(ctx context.Context, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.fetches.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordSweep 记录一次清理扫描删除与失败的数量。
func (m *Metrics) RecordSweep(ctx context.Context, trigger string, removed, failed int) {
	opt := metric.WithAttributes(attribute.String("trigger", trigger))
	m.sweepRemoved.Add(ctx, int64(removed), opt)
	m.sweepFailures.Add(ctx, int64(failed), opt)
}

// Handler 返回 Prometheus 文本格式的 http.Handler。
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Shutdown 刷新并关闭 MeterProvider。
func (m *Metrics) Shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}

// Noop 返回丢弃所有数据的 Recorder，便于测试或未启用指标时注入。
func Noop() Recorder {
	return noopRecorder{}
}

type noopRecorder struct{}

func (noopRecorder) RecordLookup(context.Context, string, bool)    {}
func (noopRecorder) RecordFetch(context.Context, error)            {}
func (noopRecorder) RecordSweep(context.Context, string, int, int) {}
