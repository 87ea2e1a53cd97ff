package proxy

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/danmaku-cache/danmaku-cache/internal/cache"
)

const sampleSource = "https://example.com/video/12345.mp4"

func TestHandlerMissFetchesAndStores(t *testing.T) {
	env := newTestEnv(t, time.Second)

	outcome, err := env.handler.Resolve(context.Background(), ParseSource(sampleSource))
	if err != nil {
		t.Fatalf("resolve error: %v", err)
	}
	if outcome.CacheHit || outcome.Bypass {
		t.Fatalf("expected cache miss, got %+v", outcome)
	}
	if outcome.Key != "12345" || outcome.Location != "/xml/12345.xml" {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if env.upstream.Hits() != 1 {
		t.Fatalf("expected one upstream request, got %d", env.upstream.Hits())
	}
	if got := env.upstream.Query().Get("url"); got != sampleSource {
		t.Fatalf("upstream received url %q", got)
	}
	if body := readEntry(t, env.store, "12345"); body != env.upstream.body {
		t.Fatalf("unexpected cached body: %s", body)
	}
}

func TestHandlerHitSkipsUpstream(t *testing.T) {
	env := newTestEnv(t, time.Second)
	ctx := context.Background()

	if _, err := env.handler.Resolve(ctx, ParseSource(sampleSource)); err != nil {
		t.Fatalf("prime error: %v", err)
	}
	env.clock.Advance(23 * time.Hour)

	outcome, err := env.handler.Resolve(ctx, ParseSource(sampleSource))
	if err != nil {
		t.Fatalf("resolve error: %v", err)
	}
	if !outcome.CacheHit {
		t.Fatalf("expected cache hit, got %+v", outcome)
	}
	if outcome.Location != "/xml/12345.xml" {
		t.Fatalf("unexpected location: %s", outcome.Location)
	}
	if env.upstream.Hits() != 1 {
		t.Fatalf("hit must not contact upstream, got %d requests", env.upstream.Hits())
	}
}

func TestHandlerRefetchesStaleEntry(t *testing.T) {
	env := newTestEnv(t, time.Second)
	ctx := context.Background()

	if _, err := env.handler.Resolve(ctx, ParseSource(sampleSource)); err != nil {
		t.Fatalf("prime error: %v", err)
	}
	env.upstream.Respond(http.StatusOK, "<i>fresh</i>")
	env.clock.Advance(24*time.Hour + time.Second)

	outcome, err := env.handler.Resolve(ctx, ParseSource(sampleSource))
	if err != nil {
		t.Fatalf("resolve error: %v", err)
	}
	if outcome.CacheHit {
		t.Fatalf("stale entry must not count as hit")
	}
	if env.upstream.Hits() != 2 {
		t.Fatalf("expected refetch, got %d upstream requests", env.upstream.Hits())
	}
	if body := readEntry(t, env.store, "12345"); body != "<i>fresh</i>" {
		t.Fatalf("expected replaced content, got %s", body)
	}

	result, err := env.store.Lookup(ctx, "12345")
	if err != nil || !result.Valid {
		t.Fatalf("refreshed entry should be valid: %+v %v", result, err)
	}
}

func TestHandlerUpstreamFailureWritesNothing(t *testing.T) {
	env := newTestEnv(t, time.Second)
	env.upstream.Respond(http.StatusInternalServerError, "boom")

	_, err := env.handler.Resolve(context.Background(), ParseSource(sampleSource))
	var upstreamErr *UpstreamError
	if !errors.As(err, &upstreamErr) {
		t.Fatalf("expected upstream error, got %v", err)
	}

	count, err := env.store.Count(context.Background())
	if err != nil {
		t.Fatalf("count error: %v", err)
	}
	if count != 0 {
		t.Fatalf("failed fetch must not create entries, found %d", count)
	}
	assertNoTempFiles(t, env.root)
}

func TestHandlerUpstreamTimeoutWritesNothing(t *testing.T) {
	env := newTestEnv(t, 50*time.Millisecond)
	env.upstream.Delay(2 * time.Second)

	_, err := env.handler.Resolve(context.Background(), ParseSource(sampleSource))
	if errorKind(err) != "upstream_timeout" {
		t.Fatalf("expected timeout, got %v", err)
	}
	if _, err := env.store.Get(context.Background(), "12345"); !errors.Is(err, cache.ErrNotFound) {
		t.Fatalf("expected no entry, got %v", err)
	}
	assertNoTempFiles(t, env.root)
}

func TestHandlerConcurrentMissesShareOneFetch(t *testing.T) {
	env := newTestEnv(t, 5*time.Second)
	env.upstream.Delay(150 * time.Millisecond)

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := env.handler.Resolve(context.Background(), ParseSource(sampleSource))
			if err == nil && outcome.Location != "/xml/12345.xml" {
				err = errors.New("unexpected location " + outcome.Location)
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("resolve error: %v", err)
		}
	}
	if env.upstream.Hits() != 1 {
		t.Fatalf("expected a single upstream request, got %d", env.upstream.Hits())
	}
	if body := readEntry(t, env.store, "12345"); body != env.upstream.body {
		t.Fatalf("unexpected cached body: %s", body)
	}
}

func TestHandlerMalformedSourceUsesTimestampKey(t *testing.T) {
	env := newTestEnv(t, time.Second)

	outcome, err := env.handler.Resolve(context.Background(), ParseSource("definitely not a url"))
	if err != nil {
		t.Fatalf("resolve error: %v", err)
	}
	want := fallbackKey(env.clock.Now())
	if outcome.Key != want {
		t.Fatalf("expected fallback key %s, got %s", want, outcome.Key)
	}
	if got := env.upstream.Query().Get("url"); got != "definitely not a url" {
		t.Fatalf("raw source should be forwarded, got %q", got)
	}
}

func TestRedirectHandlerReturnsBrowseURL(t *testing.T) {
	handler := NewRedirectHandler("https://fc.lyz05.cn/")
	src := ParseSource("https://www.bilibili.com/video/BV1xx411c7mD")

	outcome, err := handler.Resolve(context.Background(), src)
	if err != nil {
		t.Fatalf("resolve error: %v", err)
	}
	if !outcome.Bypass || outcome.CacheHit {
		t.Fatalf("expected bypass outcome, got %+v", outcome)
	}
	want := "https://fc.lyz05.cn/?url=https%3A%2F%2Fwww.bilibili.com%2Fvideo%2FBV1xx411c7mD"
	if outcome.Location != want {
		t.Fatalf("unexpected location: %s", outcome.Location)
	}
}

func assertNoTempFiles(t *testing.T, root string) {
	t.Helper()
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return
		}
		t.Fatalf("read dir: %v", err)
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".cache-") {
			t.Fatalf("temporary file left behind: %s", entry.Name())
		}
	}
}
