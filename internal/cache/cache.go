package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppiankov/conflictmap/internal/model"
)

// Cache defines the interface for caching fetched documents
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// CacheKey generates a cache key from a URL
func CacheKey(url string) string {
	hash := sha256.Sum256([]byte(url))
	return "conflictmap:v1:" + hex.EncodeToString(hash[:])
}

// GetOrFetch returns the cached value for url, calling fetch and storing its result on a miss.
// A nil cache always fetches.
func GetOrFetch(c Cache, url string, ttl time.Duration, fetch func() ([]byte, error)) ([]byte, bool, error) {
	if c == nil {
		data, err := fetch()
		return data, false, err
	}

	key := CacheKey(url)
	if data, ok := c.Get(key); ok {
		return data, true, nil
	}

	data, err := fetch()
	if err != nil {
		return nil, false, err
	}

	if err := c.Set(key, data, ttl); err != nil {
		return data, false, fmt.Errorf("cache %s: %w", url, err)
	}
	return data, false, nil
}

// New builds the configured cache: memory in front of disk, or nil when disabled
func New(cfg model.CacheConfig) (Cache, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	dir, err := ExpandHome(cfg.Dir)
	if err != nil {
		return nil, err
	}

	return NewLayeredCache(
		time.Duration(cfg.MemoryTTL)*time.Minute,
		dir,
		time.Duration(cfg.DiskTTL)*time.Hour,
	), nil
}

// ExpandHome resolves a leading "~" to the user's home directory
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("find home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
