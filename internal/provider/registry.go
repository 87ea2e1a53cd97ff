package provider

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

const defaultKey = "generic"

var globalRegistry = newRegistry()

type registry struct {
	mu        sync.RWMutex
	providers map[string]Metadata
}

func newRegistry() *registry {
	return &registry{providers: make(map[string]Metadata)}
}

// Register 将 provider 元数据加入全局注册表，重复键会返回错误。
func Register(meta Metadata) error {
	return globalRegistry.register(meta)
}

// MustRegister 在注册失败时 panic，适合 provider init() 中调用。
func MustRegister(meta Metadata) {
	if err := Register(meta); err != nil {
		panic(err)
	}
}

// Resolve 返回指定键的 provider 元数据。
func Resolve(key string) (Metadata, bool) {
	return globalRegistry.resolve(key)
}

// List 返回按键排序的 provider 元数据列表。
func List() []Metadata {
	return globalRegistry.list()
}

// Keys 返回所有已注册 provider 的键值，供调试或诊断使用。
func Keys() []string {
	items := List()
	result := make([]string, len(items))
	for i, meta := range items {
		result[i] = meta.Key
	}
	return result
}

// Match 按键顺序返回第一个主机标记命中的 provider，都未命中时返回默认 provider。
// 默认 provider 未注册时第二个返回值为 false。
func Match(host string) (Metadata, bool) {
	return globalRegistry.match(host)
}

func (r *registry) normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

func (r *registry) register(meta Metadata) error {
	key := r.normalizeKey(meta.Key)
	if key == "" {
		return fmt.Errorf("provider key is required")
	}
	meta.Key = key
	switch meta.Mode {
	case ModeCache, ModeRedirect:
	default:
		return fmt.Errorf("provider %s has unsupported mode %q", key, meta.Mode)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[key]; exists {
		return fmt.Errorf("provider %s already registered", key)
	}
	r.providers[key] = meta
	return nil
}

func (r *registry) resolve(key string) (Metadata, bool) {
	if key == "" {
		return Metadata{}, false
	}
	normalized := r.normalizeKey(key)

	r.mu.RLock()
	defer r.mu.RUnlock()

	meta, ok := r.providers[normalized]
	return meta, ok
}

func (r *registry) list() []Metadata {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.providers) == 0 {
		return nil
	}

	keys := make([]string, 0, len(r.providers))
	for key := range r.providers {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	result := make([]Metadata, 0, len(keys))
	for _, key := range keys {
		result = append(result, r.providers[key])
	}
	return result
}

func (r *registry) match(host string) (Metadata, bool) {
	for _, meta := range r.list() {
		if meta.Key == defaultKey {
			continue
		}
		if meta.MatchesHost(host) {
			return meta, true
		}
	}
	return r.resolve(defaultKey)
}
