package provider

import "testing"

func replaceRegistry(t *testing.T) {
	t.Helper()
	prev := globalRegistry
	globalRegistry = newRegistry()
	t.Cleanup(func() { globalRegistry = prev })
}

func TestRegisterAndResolve(t *testing.T) {
	replaceRegistry(t)

	meta := Metadata{Key: "Sample", Description: "sample", Mode: ModeCache}
	if err := Register(meta); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if err := Register(meta); err == nil {
		t.Fatalf("duplicate key should fail")
	}

	got, ok := Resolve(" sample ")
	if !ok {
		t.Fatalf("resolve failed")
	}
	if got.Key != "sample" {
		t.Fatalf("expected normalized key, got %s", got.Key)
	}
}

func TestRegisterRejectsUnknownMode(t *testing.T) {
	replaceRegistry(t)

	if err := Register(Metadata{Key: "odd", Mode: "stream"}); err == nil {
		t.Fatalf("unsupported mode should fail")
	}
	if err := Register(Metadata{Key: " ", Mode: ModeCache}); err == nil {
		t.Fatalf("empty key should fail")
	}
}

func TestMatchPrefersMarkersOverDefault(t *testing.T) {
	replaceRegistry(t)

	MustRegister(Metadata{Key: defaultKey, Mode: ModeCache})
	MustRegister(Metadata{Key: "bili", Mode: ModeRedirect, HostMarkers: []string{"bilibili"}})

	testCases := []struct {
		host string
		want string
	}{
		{"www.bilibili.com", "bili"},
		{"WWW.BILIBILI.COM", "bili"},
		{"b23.tv", defaultKey},
		{"example.com", defaultKey},
		{"", defaultKey},
	}
	for _, tc := range testCases {
		got, ok := Match(tc.host)
		if !ok || got.Key != tc.want {
			t.Fatalf("Match(%q) = %s, want %s", tc.host, got.Key, tc.want)
		}
	}
}

func TestMatchWithoutDefault(t *testing.T) {
	replaceRegistry(t)

	if _, ok := Match("example.com"); ok {
		t.Fatalf("match should fail when no default provider is registered")
	}
}

func TestKeysSorted(t *testing.T) {
	replaceRegistry(t)

	MustRegister(Metadata{Key: "zeta", Mode: ModeCache})
	MustRegister(Metadata{Key: "alpha", Mode: ModeRedirect})

	keys := Keys()
	if len(keys) != 2 || keys[0] != "alpha" || keys[1] != "zeta" {
		t.Fatalf("unexpected keys: %v", keys)
	}
}
