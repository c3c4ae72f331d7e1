package index

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"go.trai.ch/envy/internal/core/domain"
)

// DefaultSpecCacheSize bounds the number of distinct dependency strings kept parsed.
const DefaultSpecCacheSize = 1 << 16

// SpecCache parses match specs once. Channel indexes repeat the same
// dependency strings thousands of times.
type SpecCache struct {
	cache *lru.Cache[string, domain.MatchSpec]
}

// NewSpecCache creates a cache holding up to size parsed specs.
func NewSpecCache(size int) *SpecCache {
	if size <= 0 {
		size = DefaultSpecCacheSize
	}
	cache, err := lru.New[string, domain.MatchSpec](size)
	if err != nil {
		// lru.New only fails for non-positive sizes.
		panic(err)
	}
	return &SpecCache{cache: cache}
}

// Parse returns the parsed form of text.
func (c *SpecCache) Parse(text string) (domain.MatchSpec, error) {
	if ms, ok := c.cache.Get(text); ok {
		return ms, nil
	}
	ms, err := domain.ParseMatchSpec(text)
	if err != nil {
		return domain.MatchSpec{}, err
	}
	c.cache.Add(text, ms)
	return ms, nil
}

// ParseAll parses every text, stopping at the first failure.
func (c *SpecCache) ParseAll(texts []string) ([]domain.MatchSpec, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([]domain.MatchSpec, len(texts))
	for i, text := range texts {
		ms, err := c.Parse(text)
		if err != nil {
			return nil, err
		}
		out[i] = ms
	}
	return out, nil
}

// Len returns the number of cached specs.
func (c *SpecCache) Len() int {
	return c.cache.Len()
}
