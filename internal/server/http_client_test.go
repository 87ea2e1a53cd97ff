package server

import (
	"testing"
	"time"

	"github.com/danmaku-cache/danmaku-cache/internal/config"
)

func TestNewUpstreamClientUsesConfigTimeout(t *testing.T) {
	cfg := &config.Config{
		UpstreamTimeout: config.Duration(45 * time.Second),
	}

	client := NewUpstreamClient(cfg)
	if client.Timeout != 45*time.Second {
		t.Fatalf("expected timeout 45s, got %s", client.Timeout)
	}
}

func TestNewUpstreamClientDefaultsTimeout(t *testing.T) {
	client := NewUpstreamClient(&config.Config{})
	if client.Timeout != DefaultUpstreamTimeout {
		t.Fatalf("expected default timeout, got %s", client.Timeout)
	}
	if client.Transport == nil {
		t.Fatalf("expected shared transport clone")
	}
	if UpstreamTimeout(nil) != DefaultUpstreamTimeout {
		t.Fatalf("nil config should use default timeout")
	}
}
