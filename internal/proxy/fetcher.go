package proxy

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/danmaku-cache/danmaku-cache/internal/version"
)

// DefaultFetchTimeout 是单次回源的固定超时，超时后不会自动重试。
const DefaultFetchTimeout = 10 * time.Second

// Fetcher 负责把源视频地址交给上游转换服务并拿回弹幕文档。
type Fetcher interface {
	Fetch(ctx context.Context, sourceURL string) (*FetchResult, error)
}

// FetchResult 是一次成功回源的响应体；调用方必须关闭 Body。
type FetchResult struct {
	Body        io.ReadCloser
	Size        int64
	ContentType string
}

// HTTPFetcher 通过共享 http.Client 请求 <base>/?url=<src>&download=on。
type HTTPFetcher struct {
	client  *http.Client
	base    string
	timeout time.Duration
}

// NewHTTPFetcher 构造回源客户端，timeout <= 0 时使用 DefaultFetchTimeout。
func NewHTTPFetcher(client *http.Client, base string, timeout time.Duration) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &HTTPFetcher{
		client:  client,
		base:    strings.TrimRight(base, "/"),
		timeout: timeout,
	}
}

// BrowseURL 返回上游浏览入口，redirect 模式的 provider 直接跳转到这里。
func BrowseURL(base, sourceURL string) string {
	return strings.TrimRight(base, "/") + "/?url=" + url.QueryEscape(sourceURL)
}

// DownloadURL 返回要求上游以可下载形式返回文档的地址。
func DownloadURL(base, sourceURL string) string {
	return BrowseURL(base, sourceURL) + "&download=on"
}

func (f *HTTPFetcher) Fetch(ctx context.Context, sourceURL string) (*FetchResult, error) {
	target := DownloadURL(f.base, sourceURL)
	ctx, cancel := context.WithTimeout(ctx, f.timeout)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		cancel()
		return nil, &UpstreamError{URL: target, Err: err}
	}
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := f.client.Do(req)
	if err != nil {
		cancel()
		return nil, &UpstreamError{URL: target, Err: err}
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		cancel()
		return nil, &UpstreamError{URL: target, Status: resp.StatusCode}
	}

	return &FetchResult{
		Body:        &upstreamBody{ReadCloser: resp.Body, cancel: cancel, url: target},
		Size:        resp.ContentLength,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

// upstreamBody 在读取失败时标记为 UpstreamError，并在关闭时释放超时 context。
type upstreamBody struct {
	io.ReadCloser
	cancel context.CancelFunc
	url    string
}

func (b *upstreamBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, &UpstreamError{URL: b.url, Err: err}
	}
	return n, err
}

func (b *upstreamBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
