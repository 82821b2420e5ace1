// Package storage provides the durable key/value store behind the chat engine.
//
// Values are JSON documents addressed by flat string keys such as
// "assistant-chats" or "namespace". Every Put is durable when it returns.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrInvalidKey = errors.New("invalid key")
)

// Store is a durable string-keyed JSON store.
type Store interface {
	// Get decodes the value stored under key into v.
	Get(ctx context.Context, key string, v any) error
	// Put encodes v and stores it under key before returning.
	Put(ctx context.Context, key string, v any) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Keys lists stored keys with the given prefix in ascending order.
	Keys(ctx context.Context, prefix string) ([]string, error)
	// Exists reports whether key holds a value.
	Exists(ctx context.Context, key string) bool
	Close() error
}

// Driver names accepted by Open.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// Open opens a store using the named driver. For the file driver path is a
// directory; for sqlite it is the database file.
func Open(driver, path string) (Store, error) {
	switch driver {
	case "", DriverFile:
		return New(path), nil
	case DriverSQLite:
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}

// ValidateKey rejects keys that cannot be used as a single file name.
func ValidateKey(key string) error {
	if key == "" || key == "." || key == ".." ||
		strings.ContainsAny(key, `/\`) || strings.ContainsRune(key, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// FileStore keeps one JSON file per key in a directory.
type FileStore struct {
	basePath string
	mu       sync.Mutex
	locks    map[string]*FileLock
}

var _ Store = (*FileStore)(nil)

// New creates a FileStore rooted at basePath.
func New(basePath string) *FileStore {
	return &FileStore{
		basePath: basePath,
		locks:    make(map[string]*FileLock),
	}
}

// keyToFile converts a key to its file path.
func (s *FileStore) keyToFile(key string) string {
	return filepath.Join(s.basePath, key+".json")
}

// Get retrieves a value from storage.
func (s *FileStore) Get(ctx context.Context, key string, v any) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	data, err := os.ReadFile(s.keyToFile(key))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to read file: %w", err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}

	return nil
}

// Put stores a value with file locking. The file is written to a temporary
// path, synced and renamed over the old value, so a crash leaves either the
// old or the new document.
func (s *FileStore) Put(ctx context.Context, key string, v any) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	filePath := s.keyToFile(key)
	if err := os.MkdirAll(s.basePath, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal: %w", err)
	}

	lock := s.getLock(filePath)
	if err := lock.Lock(ctx); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer lock.Unlock()

	tmpPath := filePath + ".tmp"
	if err := writeSynced(tmpPath, data); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tmpPath, filePath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename file: %w", err)
	}

	if err := syncDir(s.basePath); err != nil {
		return fmt.Errorf("failed to sync directory: %w", err)
	}

	return nil
}

// syncDir flushes a directory entry so a completed rename survives a crash.
var syncDir = func(dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	if err := d.Sync(); err != nil {
		d.Close()
		return err
	}
	return d.Close()
}

func writeSynced(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Delete removes a value from storage.
func (s *FileStore) Delete(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	filePath := s.keyToFile(key)
	lock := s.getLock(filePath)
	if err := lock.Lock(ctx); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer lock.Unlock()

	if err := os.Remove(filePath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}

	return nil
}

// Keys returns all keys with the given prefix.
func (s *FileStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	keys := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		key := strings.TrimSuffix(name, ".json")
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	return keys, nil
}

// Exists checks if a key holds a value.
func (s *FileStore) Exists(ctx context.Context, key string) bool {
	if ValidateKey(key) != nil {
		return false
	}
	_, err := os.Stat(s.keyToFile(key))
	return err == nil
}

// Close is a no-op for file storage.
func (s *FileStore) Close() error {
	return nil
}

// getLock returns a file lock for a path.
func (s *FileStore) getLock(filePath string) *FileLock {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[filePath]
	if !ok {
		lock = NewFileLock(filePath)
		s.locks[filePath] = lock
	}

	return lock
}
