package proxy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/danmaku-cache/danmaku-cache/internal/cache"
	_ "github.com/danmaku-cache/danmaku-cache/internal/provider/bilibili"
	_ "github.com/danmaku-cache/danmaku-cache/internal/provider/generic"
)

// upstreamStub 模拟上游转换服务，记录命中次数与最后一次查询参数。
type upstreamStub struct {
	*httptest.Server

	mu        sync.Mutex
	hits      int
	status    int
	body      string
	delay     time.Duration
	lastQuery url.Values
}

func newUpstreamStub(t *testing.T) *upstreamStub {
	t.Helper()
	stub := &upstreamStub{status: http.StatusOK, body: `<?xml version="1.0"?><i><d p="1">hi</d></i>`}
	stub.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stub.mu.Lock()
		stub.hits++
		stub.lastQuery = r.URL.Query()
		status, body, delay := stub.status, stub.body, stub.delay
		stub.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(stub.Close)
	return stub
}

func (s *upstreamStub) Hits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits
}

func (s *upstreamStub) Query() url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastQuery
}

func (s *upstreamStub) Respond(status int, body string) {
	s.mu.Lock()
	s.status = status
	s.body = body
	s.mu.Unlock()
}

func (s *upstreamStub) Delay(d time.Duration) {
	s.mu.Lock()
	s.delay = d
	s.mu.Unlock()
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func discardLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type testEnv struct {
	handler  *Handler
	store    cache.Store
	clock    *testClock
	upstream *upstreamStub
	root     string
}

func newTestEnv(t *testing.T, fetchTimeout time.Duration) *testEnv {
	t.Helper()
	upstream := newUpstreamStub(t)
	clock := newTestClock()
	root := t.TempDir()
	store, err := cache.NewStore(root, cache.Policy{TTL: cache.DefaultTTL, MaxEntries: cache.DefaultMaxEntries, Now: clock.Now})
	if err != nil {
		t.Fatalf("store error: %v", err)
	}
	fetcher := NewHTTPFetcher(upstream.Client(), upstream.URL, fetchTimeout)
	handler := NewHandler(store, fetcher, discardLogger(), nil)
	handler.now = clock.Now
	return &testEnv{handler: handler, store: store, clock: clock, upstream: upstream, root: root}
}

func readEntry(t *testing.T, store cache.Store, key string) string {
	t.Helper()
	result, err := store.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("get %s: %v", key, err)
	}
	defer result.Reader.Close()
	body, err := io.ReadAll(result.Reader)
	if err != nil {
		t.Fatalf("read %s: %v", key, err)
	}
	return string(body)
}

func proxyPath(source string) string {
	return fmt.Sprintf("/proxy/%s", url.QueryEscape(source))
}
