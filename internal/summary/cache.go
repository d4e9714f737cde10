package summary

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/ledgerlens/pkg/provider"
)

// Cache stores responses by request key.
type Cache interface {
	Get(key string) (string, bool)
	Put(key, text string) error
}

// CacheKey hashes everything that determines a response.
func CacheKey(providerName string, req provider.ChatRequest) string {
	h := sha256.New()
	write := func(s string) {
		_, _ = h.Write([]byte(s))
		_, _ = h.Write([]byte{0})
	}
	write(providerName)
	write(req.Model)
	write(fmt.Sprintf("%d|%g|%g", req.MaxTokens, req.Temperature, req.TopP))
	for _, m := range req.Messages {
		write(m.Role)
		write(m.Content)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// FileCache keeps one file per response under a directory.
type FileCache struct {
	dir string
}

// NewFileCache returns a cache rooted at dir. The directory is created on
// first write.
func NewFileCache(dir string) *FileCache {
	return &FileCache{dir: dir}
}

func (c *FileCache) path(key string) string {
	return filepath.Join(c.dir, key[:2], key+".txt")
}

// Get implements Cache.
func (c *FileCache) Get(key string) (string, bool) {
	if len(key) < 2 {
		return "", false
	}
	data, err := os.ReadFile(c.path(key))
	if err != nil {
		return "", false
	}
	return string(data), true
}

// Put implements Cache. Writes go through a temp file and rename so a
// crashed run never leaves a truncated entry.
func (c *FileCache) Put(key, text string) error {
	if len(key) < 2 {
		return errors.New("cache key too short")
	}
	path := c.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".entry-*")
	if err != nil {
		return fmt.Errorf("failed to create cache entry: %w", err)
	}
	if _, err := tmp.WriteString(text); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to close cache entry: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to commit cache entry: %w", err)
	}
	return nil
}

// Clear removes every cached entry.
func (c *FileCache) Clear() error {
	err := os.RemoveAll(c.dir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}
