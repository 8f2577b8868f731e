package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrCacheMiss is returned when the cache file is missing, empty or corrupt
var ErrCacheMiss = errors.New("feed cache miss")

// Cache stores fetched feeds in a JSON file
type Cache struct {
	path string
}

// NewCache makes a cache backed by the file at path
func NewCache(path string) *Cache {
	return &Cache{path: path}
}

// Path returns the cache file location
func (c *Cache) Path() string { return c.path }

// Load reads cached feeds. Any problem with the file is reported as ErrCacheMiss.
func (c *Cache) Load() (ByTeam, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheMiss, err)
	}

	var res ByTeam
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrCacheMiss, c.path, err)
	}
	if len(res) == 0 {
		return nil, fmt.Errorf("%w: %s has no teams", ErrCacheMiss, c.path)
	}
	return res, nil
}

// Save writes feeds to the cache file, replacing it atomically
func (c *Cache) Save(feeds ByTeam) error {
	data, err := json.MarshalIndent(feeds, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal feeds: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(c.path), filepath.Base(c.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after successful rename

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		return fmt.Errorf("rename to %s: %w", c.path, err)
	}
	return nil
}
