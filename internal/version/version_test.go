package version

import (
	"strings"
	"testing"
)

func TestFullIncludesVersionAndCommit(t *testing.T) {
	full := Full()
	if !strings.Contains(full, Version) || !strings.Contains(full, Commit) {
		t.Fatalf("unexpected version string: %s", full)
	}
}

func TestUserAgent(t *testing.T) {
	if got := UserAgent(); got != "danmaku-cache/"+Version {
		t.Fatalf("unexpected user agent: %s", got)
	}
}
