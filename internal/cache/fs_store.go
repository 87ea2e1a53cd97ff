package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

const (
	tempPrefix   = ".cache-"
	sweepWorkers = 8
)

// NewStore 以 basePath 为根目录构建磁盘缓存，整站复用一份实例。
func NewStore(basePath string, policy Policy) (Store, error) {
	if basePath == "" {
		return nil, errors.New("storage path required")
	}

	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve storage path: %w", err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage path: %w", err)
	}

	return &fileStore{
		basePath: abs,
		policy:   policy.normalize(),
		locks:    make(map[string]*entryLock),
	}, nil
}

// fileStore 通过 entryLock 避免同一 key 在进程内并发写入/清理，同时复用 basePath。
type fileStore struct {
	basePath string
	policy   Policy

	mu    sync.Mutex
	locks map[string]*entryLock
}

type entryLock struct {
	mu   sync.Mutex
	refs int
}

// ValidKey 判断 key 能否安全地作为单个文件名片段使用。
func ValidKey(key string) bool {
	if key == "" || key == "." || key == ".." {
		return false
	}
	if strings.HasPrefix(key, ".") {
		return false
	}
	return !strings.ContainsAny(key, "/\\\x00")
}

func (s *fileStore) Policy() Policy {
	return s.policy
}

// Root 返回缓存根目录的绝对路径。
func (s *fileStore) Root() string {
	return s.basePath
}

func (s *fileStore) Lookup(ctx context.Context, key string) (LookupResult, error) {
	if err := ctx.Err(); err != nil {
		return LookupResult{}, err
	}

	filePath, err := s.entryPath(key)
	if err != nil {
		return LookupResult{}, err
	}

	info, err := os.Stat(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return LookupResult{}, nil
		}
		return LookupResult{}, storageErr("stat", key, err)
	}
	if info.IsDir() {
		return LookupResult{}, nil
	}

	entry := s.entryFromInfo(key, filePath, info)
	return LookupResult{
		Found: true,
		Valid: s.policy.Valid(entry),
		Entry: entry,
	}, nil
}

func (s *fileStore) Get(ctx context.Context, key string) (*ReadResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	filePath, err := s.entryPath(key)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, storageErr("stat", key, err)
	}
	if info.IsDir() {
		return nil, ErrNotFound
	}

	f, err := os.Open(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, storageErr("open", key, err)
	}

	return &ReadResult{
		Entry:  s.entryFromInfo(key, filePath, info),
		Reader: f,
	}, nil
}

func (s *fileStore) Put(ctx context.Context, key string, body io.Reader, opts PutOptions) (*Entry, error) {
	filePath, err := s.entryPath(key)
	if err != nil {
		return nil, err
	}

	unlock := s.lockEntry(key)
	defer unlock()

	if err := os.MkdirAll(s.basePath, 0o755); err != nil {
		return nil, storageErr("mkdir", key, err)
	}

	tempFile, err := os.CreateTemp(s.basePath, tempPrefix+"*")
	if err != nil {
		return nil, storageErr("create", key, err)
	}
	tempName := tempFile.Name()

	written, err := copyWithContext(ctx, tempFile, body)
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempName)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, storageErr("write", key, err)
	}

	modTime := opts.ModTime
	if modTime.IsZero() {
		modTime = s.policy.Now()
	}
	// 先改时间再 rename，读者永远不会看到新内容配旧时间。
	if err := os.Chtimes(tempName, modTime, modTime); err != nil {
		os.Remove(tempName)
		return nil, storageErr("chtimes", key, err)
	}

	if err := os.Rename(tempName, filePath); err != nil {
		os.Remove(tempName)
		return nil, storageErr("rename", key, err)
	}

	return &Entry{
		Key:       key,
		Name:      FileName(key),
		FilePath:  filePath,
		SizeBytes: written,
		ModTime:   modTime,
	}, nil
}

func (s *fileStore) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	filePath, err := s.entryPath(key)
	if err != nil {
		return err
	}

	unlock := s.lockEntry(key)
	defer unlock()

	if err := os.Remove(filePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return storageErr("remove", key, err)
	}
	return nil
}

func (s *fileStore) EvictExpired(ctx context.Context) (EvictReport, error) {
	var report EvictReport

	dirEntries, err := os.ReadDir(s.basePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return report, nil
		}
		return report, storageErr("list", "", err)
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(sweepWorkers)

	for _, dirEntry := range dirEntries {
		name := dirEntry.Name()
		if dirEntry.IsDir() || !isSweepable(name) {
			continue
		}
		if err := ctx.Err(); err != nil {
			g.Wait()
			return report, err
		}

		report.Scanned++
		g.Go(func() error {
			removed, err := s.evictFile(name)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failures = append(report.Failures, EvictFailure{Name: name, Err: err})
				return nil
			}
			if removed {
				report.Removed++
			}
			return nil
		})
	}
	g.Wait()

	return report, nil
}

// evictFile 检查单个文件的年龄并在过期时删除；条目文件会持有与 Put 相同的锁。
func (s *fileStore) evictFile(name string) (bool, error) {
	if key, ok := keyFromName(name); ok {
		unlock := s.lockEntry(key)
		defer unlock()
	}

	filePath := filepath.Join(s.basePath, name)
	info, err := os.Stat(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, storageErr("stat", name, err)
	}
	if info.IsDir() || !s.policy.Expired(info.ModTime()) {
		return false, nil
	}

	if err := os.Remove(filePath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, storageErr("remove", name, err)
	}
	return true, nil
}

func (s *fileStore) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	dirEntries, err := os.ReadDir(s.basePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, storageErr("list", "", err)
	}

	count := 0
	for _, dirEntry := range dirEntries {
		if dirEntry.IsDir() {
			continue
		}
		if _, ok := keyFromName(dirEntry.Name()); ok {
			count++
		}
	}
	return count, nil
}

func (s *fileStore) entryFromInfo(key, filePath string, info fs.FileInfo) Entry {
	return Entry{
		Key:       key,
		Name:      FileName(key),
		FilePath:  filePath,
		SizeBytes: info.Size(),
		ModTime:   info.ModTime(),
	}
}

func (s *fileStore) lockEntry(key string) func() {
	s.mu.Lock()
	lock := s.locks[key]
	if lock == nil {
		lock = &entryLock{}
		s.locks[key] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		s.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(s.locks, key)
		}
		s.mu.Unlock()
	}
}

func (s *fileStore) entryPath(key string) (string, error) {
	if !ValidKey(key) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(s.basePath, FileName(key)), nil
}

// keyFromName 把 <key>.xml 还原为 key，临时文件与其它文件返回 false。
func keyFromName(name string) (string, bool) {
	if !strings.HasSuffix(name, EntryExt) {
		return "", false
	}
	key := strings.TrimSuffix(name, EntryExt)
	if !ValidKey(key) {
		return "", false
	}
	return key, true
}

func isSweepable(name string) bool {
	if strings.HasPrefix(name, tempPrefix) {
		return true
	}
	_, ok := keyFromName(name)
	return ok
}

func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	var copied int64
	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return copied, err
		}
		n, err := src.Read(buf)
		if n > 0 {
			w, wErr := dst.Write(buf[:n])
			copied += int64(w)
			if wErr != nil {
				return copied, wErr
			}
			if w < n {
				return copied, io.ErrShortWrite
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return copied, nil
			}
			return copied, err
		}
	}
}
