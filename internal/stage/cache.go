package stage

import (
	"container/list"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/aistage/aistage/internal/metrics"
)

// DefaultCacheSize is the maximum number of cached stage operators.
const DefaultCacheSize = 64

// Defaults supplies endpoint and region fallbacks for stage payloads that
// omit them.
type Defaults struct {
	Endpoint string
	Region   string
}

// Cache builds and caches stage operators keyed by the stage's identity
// and storage options. Least recently used operators are evicted once the
// cache is full.
type Cache struct {
	mu       sync.Mutex
	maxSize  int
	defaults Defaults
	entries  map[uint64]*list.Element
	lru      *list.List // front = most recently used
}

type cacheEntry struct {
	key uint64
	op  *Operator
}

// NewCache creates an operator cache holding at most maxSize operators.
func NewCache(maxSize int, defaults Defaults) *Cache {
	if maxSize <= 0 {
		maxSize = DefaultCacheSize
	}
	return &Cache{
		maxSize:  maxSize,
		defaults: defaults,
		entries:  make(map[uint64]*list.Element),
		lru:      list.New(),
	}
}

// Get returns the operator for the given stage, building it on first use.
func (c *Cache) Get(loc *Location) (*Operator, error) {
	key, err := cacheKey(loc)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		c.lru.MoveToFront(el)
		metrics.IncOperatorCache(true)
		return el.Value.(*cacheEntry).op, nil
	}
	metrics.IncOperatorCache(false)

	op, err := buildOperator(loc, c.defaults)
	if err != nil {
		return nil, err
	}

	el := c.lru.PushFront(&cacheEntry{key: key, op: op})
	c.entries[key] = el
	if c.lru.Len() > c.maxSize {
		oldest := c.lru.Back()
		c.lru.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
	return op, nil
}

// Len returns the number of cached operators.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Reset drops all cached operators, primarily for testing.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[uint64]*list.Element)
	c.lru.Init()
}

// cacheKey hashes the stage identity and storage options. The relative
// path is excluded: it is resolved per call and does not change which
// client serves the stage.
func cacheKey(loc *Location) (uint64, error) {
	payload := struct {
		StageName string         `json:"stage_name"`
		StageType string         `json:"stage_type"`
		Storage   map[string]any `json:"storage"`
	}{
		StageName: loc.Name,
		StageType: loc.Type,
		Storage:   loc.Storage,
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	return xxhash.Sum64(encoded), nil
}
