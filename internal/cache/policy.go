package cache

import "time"

const (
	// DefaultTTL 是条目在不回源的情况下可被复用的最长时间。
	DefaultTTL = 24 * time.Hour
	// DefaultMaxEntries 是触发清理的软上限。
	DefaultMaxEntries = 100
)

// Policy 描述新鲜度与清理触发规则。新鲜度只看写入时间，命中不会延长寿命。
type Policy struct {
	TTL        time.Duration
	MaxEntries int
	// Now 允许测试注入时钟，为空时使用 time.Now。
	Now func() time.Time
}

// DefaultPolicy 返回 24h TTL、100 条软上限的默认策略。
func DefaultPolicy() Policy {
	return Policy{TTL: DefaultTTL, MaxEntries: DefaultMaxEntries, Now: time.Now}
}

func (p Policy) normalize() Policy {
	if p.TTL <= 0 {
		p.TTL = DefaultTTL
	}
	if p.MaxEntries <= 0 {
		p.MaxEntries = DefaultMaxEntries
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	return p
}

// Age 返回条目自最后一次写入以来的时长。
func (p Policy) Age(modTime time.Time) time.Duration {
	return p.normalize().Now().Sub(modTime)
}

// Valid 当 now - ModTime < TTL 时返回 true。
func (p Policy) Valid(entry Entry) bool {
	p = p.normalize()
	return p.Age(entry.ModTime) < p.TTL
}

// Expired 当 now - ModTime > TTL 时返回 true；恰好等于 TTL 的条目既不有效也不会被清理。
func (p Policy) Expired(modTime time.Time) bool {
	p = p.normalize()
	return p.Age(modTime) > p.TTL
}

// Crowded 判断条目数量是否超过软上限，超过时应触发一次过期清理。
func (p Policy) Crowded(count int) bool {
	return count > p.normalize().MaxEntries
}
