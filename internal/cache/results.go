package cache

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"echoreach/internal/models"
)

const (
	// DefaultFreshness is the maximum age at which an entry is served as
	// authoritative rather than merely a fallback.
	DefaultFreshness = 15 * time.Minute

	// DefaultCapacity bounds the number of stored entries.
	DefaultCapacity = 256
)

// Entry is one cached result set. Presence and freshness are independent:
// a stale entry is still returned by Get so the gateway can serve it as a
// degraded fallback.
type Entry struct {
	Signature string
	Payload   models.ResultSet
	CachedAt  time.Time

	lastUsed time.Time
}

// ResultCache stores prior successful search results keyed by query
// signature. It knows nothing about rate limits or network failures; the
// gateway decides whether staleness is acceptable.
type ResultCache struct {
	mu        sync.Mutex
	entries   map[string]*Entry
	capacity  int
	freshness time.Duration
	now       func() time.Time
}

// New creates a cache with the default capacity and freshness window.
func New() *ResultCache {
	return NewWithOptions(DefaultCapacity, DefaultFreshness, time.Now)
}

// NewWithOptions creates a cache with explicit bounds and clock.
func NewWithOptions(capacity int, freshness time.Duration, now func() time.Time) *ResultCache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if freshness <= 0 {
		freshness = DefaultFreshness
	}
	return &ResultCache{
		entries:   make(map[string]*Entry),
		capacity:  capacity,
		freshness: freshness,
		now:       now,
	}
}

// Signature derives a deterministic key from the normalized query and
// filters. Keyword order, case and extra whitespace do not change the key.
func Signature(query string, filters models.SearchFilters) string {
	keywords := strings.Fields(strings.ToLower(query))
	sort.Strings(keywords)

	canonical := fmt.Sprintf("q=%s|lang=%s|max=%d|sort=%s|xrt=%t",
		strings.Join(keywords, " "),
		strings.ToLower(filters.Language),
		filters.MaxResults,
		strings.ToLower(filters.SortOrder),
		filters.ExcludeRetweets,
	)

	sum := sha1.Sum([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// Get returns the entry for a signature regardless of freshness, updating
// its recency for LRU purposes. The second return is false when absent.
func (c *ResultCache) Get(signature string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[signature]
	if !ok {
		return nil, false
	}
	e.lastUsed = c.now()

	// Return a copy so callers cannot mutate cache state.
	cp := *e
	return &cp, true
}

// Put stores or overwrites the payload for a signature, stamped with the
// current time. When over capacity the least-recently-used entry is evicted.
func (c *ResultCache) Put(signature string, payload models.ResultSet) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.entries[signature] = &Entry{
		Signature: signature,
		Payload:   payload,
		CachedAt:  now,
		lastUsed:  now,
	}

	for len(c.entries) > c.capacity {
		c.evictOldestLocked()
	}
}

// IsFresh reports whether an entry is young enough to be authoritative.
func (c *ResultCache) IsFresh(e *Entry) bool {
	if e == nil {
		return false
	}
	return c.now().Sub(e.CachedAt) < c.freshness
}

// Age returns how old an entry is.
func (c *ResultCache) Age(e *Entry) time.Duration {
	return c.now().Sub(e.CachedAt)
}

// Reset drops every entry.
func (c *ResultCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*Entry)
	log.Println("🧹 [RESULT-CACHE] All entries cleared")
}

// Len returns the number of stored entries.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evictOldestLocked removes the least-recently-used entry. Caller holds mu.
func (c *ResultCache) evictOldestLocked() {
	var oldestKey string
	var oldestUsed time.Time
	for key, e := range c.entries {
		if oldestKey == "" || e.lastUsed.Before(oldestUsed) {
			oldestKey = key
			oldestUsed = e.lastUsed
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}
