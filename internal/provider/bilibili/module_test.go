package bilibili

import (
	"testing"

	"github.com/danmaku-cache/danmaku-cache/internal/provider"
)

func TestBilibiliRegisteredAsRedirect(t *testing.T) {
	meta, ok := provider.Resolve("bilibili")
	if !ok {
		t.Fatalf("bilibili provider not registered")
	}
	if meta.Mode != provider.ModeRedirect {
		t.Fatalf("expected redirect mode, got %s", meta.Mode)
	}
	for _, host := range []string{"www.bilibili.com", "m.bilibili.com", "space.bilibili.com"} {
		if !meta.MatchesHost(host) {
			t.Fatalf("host %s should match bilibili provider", host)
		}
	}
	if meta.MatchesHost("www.youtube.com") {
		t.Fatalf("unrelated host should not match")
	}
}
