package resource

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileRetriever reads file URLs from the directory tree under root. URL
// paths are taken relative to root and may not escape it.
func FileRetriever(root string) Retriever {
	return func(_ context.Context, rawURL string) (string, error) {
		u, err := url.Parse(rawURL)
		if err != nil || u.Scheme != "file" {
			return "", fmt.Errorf("%w: %s", ErrInvalidURL, rawURL)
		}

		rel := filepath.FromSlash(strings.TrimPrefix(u.Path, "/"))
		if !filepath.IsLocal(rel) {
			return "", fmt.Errorf("%w: %s", ErrInvalidURL, rawURL)
		}

		data, err := os.ReadFile(filepath.Join(root, rel))
		if err != nil {
			if os.IsNotExist(err) {
				return "", fmt.Errorf("%w: %s", ErrNotFound, rawURL)
			}
			return "", fmt.Errorf("%w: %s: %v", ErrRetrieveFailed, rawURL, err)
		}
		return string(data), nil
	}
}

// Cache memoizes a retriever. Content is fetched on first use and served
// from memory afterwards. Failures are not cached. Safe for concurrent use.
type Cache struct {
	retriever Retriever
	entries   map[string]string
	mu        sync.RWMutex
}

func NewCache(retriever Retriever) *Cache {
	return &Cache{
		retriever: retriever,
		entries:   make(map[string]string),
	}
}

// Retrieve returns the cached content of rawURL, fetching it if needed.
func (c *Cache) Retrieve(ctx context.Context, rawURL string) (string, error) {
	c.mu.RLock()
	content, ok := c.entries[rawURL]
	c.mu.RUnlock()
	if ok {
		return content, nil
	}

	content, err := c.retriever(ctx, rawURL)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.entries[rawURL] = content
	c.mu.Unlock()
	return content, nil
}

// Forget drops cached content. Without urls the whole cache is cleared.
func (c *Cache) Forget(urls ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(urls) == 0 {
		clear(c.entries)
		return
	}
	for _, u := range urls {
		delete(c.entries, u)
	}
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}
