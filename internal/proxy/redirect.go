package proxy

import "context"

// RedirectHandler 服务 redirect 模式的 provider：直接跳转到上游浏览入口，完全绕过缓存。
type RedirectHandler struct {
	base string
}

// NewRedirectHandler 以上游转换服务地址构造跳转 handler。
func NewRedirectHandler(proxyService string) *RedirectHandler {
	return &RedirectHandler{base: proxyService}
}

func (h *RedirectHandler) Resolve(_ context.Context, src Source) (Outcome, error) {
	return Outcome{
		Location: BrowseURL(h.base, src.Raw),
		Bypass:   true,
	}, nil
}
