package placement

import (
	"sort"
	"sync"

	"placement/internal/ring"
)

// Record is the ordered replica list of one token.
type Record []ring.NodeID

// Copy returns an independent copy of the record.
func (r Record) Copy() Record {
	if r == nil {
		return nil
	}
	return append(Record(make([]ring.NodeID, 0, len(r))), r...)
}

// Primary returns position 0, if any.
func (r Record) Primary() (ring.NodeID, bool) {
	if len(r) == 0 {
		return ring.NodeID{}, false
	}
	return r[0], true
}

// Contains reports whether the node appears in the record.
func (r Record) Contains(node ring.NodeID) bool {
	for _, n := range r {
		if n == node {
			return true
		}
	}
	return false
}

// Entry is a token together with its record.
type Entry struct {
	Token  ring.Token
	Record Record
}

// Cache maps tokens to placement records.
// It's thread-safe and never aliases records with its callers.
type Cache struct {
	mu      sync.RWMutex
	records map[ring.Token]Record
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{records: make(map[ring.Token]Record)}
}

// Get returns a copy of the record cached for the token.
func (c *Cache) Get(token ring.Token) (Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	r, exists := c.records[token]
	if !exists {
		return nil, false
	}
	return r.Copy(), true
}

// Contains reports whether the token has a record.
func (c *Cache) Contains(token ring.Token) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, exists := c.records[token]
	return exists
}

// Put stores a copy of the record under the token, replacing any previous one.
func (c *Cache) Put(token ring.Token, record Record) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.records[token] = record.Copy()
}

// SetPrimary overwrites position 0 of an existing record.
// Returns false and changes nothing if the token is absent.
// An existing empty record gets the node as its only entry.
func (c *Cache) SetPrimary(token ring.Token, node ring.NodeID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, exists := c.records[token]
	if !exists {
		return false
	}
	if len(r) == 0 {
		c.records[token] = Record{node}
		return true
	}
	r[0] = node
	return true
}

// Len returns the number of cached tokens.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// Entries returns a copy of every record, sorted by token.
func (c *Cache) Entries() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Entry, 0, len(c.records))
	for t, r := range c.records {
		out = append(out, Entry{Token: t, Record: r.Copy()})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Token < out[j].Token
	})
	return out
}
