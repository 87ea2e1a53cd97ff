package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// EntryExt 是缓存文件固定的扩展名。
const EntryExt = ".xml"

// Store 负责管理 XML 缓存的读写与清理。磁盘布局遵循：
//
//	<StoragePath>/<key>.xml    # 上游返回的完整文档
//
// 每个条目仅由正文文件组成，文件的 ModTime/Size 由文件系统提供。
type Store interface {
	// Lookup 只做 stat，返回条目是否存在以及按 TTL 是否仍然有效。
	// 条目不存在时 Found=false 且不返回错误。
	Lookup(ctx context.Context, key string) (LookupResult, error)

	// Get 返回一个可流式读取的缓存条目，不校验新鲜度。若不存在则返回 ErrNotFound。
	Get(ctx context.Context, key string) (*ReadResult, error)

	// Put 将上游文档写入缓存。实现需通过临时文件 + rename 保证写入原子性，
	// 并在失败时清理临时文件。写入会重置条目的新鲜度时钟。
	Put(ctx context.Context, key string, body io.Reader, opts PutOptions) (*Entry, error)

	// Remove 删除单个条目，条目不存在不视为错误。
	Remove(ctx context.Context, key string) error

	// EvictExpired 删除所有年龄超过 TTL 的条目。单个条目失败记录在报告中，不会中断扫描。
	EvictExpired(ctx context.Context) (EvictReport, error)

	// Count 返回当前条目数量，根目录不存在时为 0。
	Count(ctx context.Context) (int, error)

	// Policy 返回 Store 使用的新鲜度策略。
	Policy() Policy
}

// PutOptions 控制写入过程中的可选属性。
type PutOptions struct {
	ModTime time.Time
}

// Entry 描述一个缓存条目，包含绝对文件路径及文件信息。
type Entry struct {
	Key       string    `json:"key"`
	Name      string    `json:"name"`
	FilePath  string    `json:"file_path"`
	SizeBytes int64     `json:"size_bytes"`
	ModTime   time.Time `json:"mod_time"`
}

// LookupResult 是 Lookup 的结果；Entry 仅在 Found 为 true 时有意义。
type LookupResult struct {
	Found bool
	Valid bool
	Entry Entry
}

// ReadResult 组合 Entry 与正文 Reader，便于 /xml 路由直接将 Body 流式返回。
type ReadResult struct {
	Entry  Entry
	Reader io.ReadSeekCloser
}

// EvictFailure 记录清理过程中单个文件的失败原因。
type EvictFailure struct {
	Name string
	Err  error
}

// EvictReport 汇总一次清理扫描的结果。
type EvictReport struct {
	Scanned  int
	Removed  int
	Failures []EvictFailure
}

// FileName 返回 key 对应的缓存文件名。
func FileName(key string) string {
	return key + EntryExt
}

var (
	// ErrNotFound 表示缓存不存在。
	ErrNotFound = errors.New("cache entry not found")
	// ErrInvalidKey 表示 key 无法安全地作为文件名使用。
	ErrInvalidKey = errors.New("invalid cache key")
)

// StorageError 包装除“不存在”以外的文件系统错误（权限、I/O 等）。
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("cache %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("cache %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageErr(op, key string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Key: key, Err: err}
}
