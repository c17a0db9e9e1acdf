package device

import (
	"sort"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Cache.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Cache is the in-memory store of every device known from the latest
// snapshot, keyed by device ID.
//
// Every write replaces the stored record pointer while holding the write
// lock, so readers only ever observe complete records. Records handed out
// are deep copies; callers can safely modify them.
//
// All public methods are thread-safe. The Cache performs no I/O and never fails.
type Cache struct {
	records map[string]*Record
	mu      sync.RWMutex
	logger  Logger
}

// NewCache creates an empty device cache.
func NewCache() *Cache {
	return &Cache{
		records: make(map[string]*Record),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the cache.
func (c *Cache) SetLogger(logger Logger) {
	c.logger = logger
}

// Get returns a copy of the record for id.
func (c *Cache) Get(id string) (Record, bool) {
	c.mu.RLock()
	rec, ok := c.records[id]
	c.mu.RUnlock()

	if !ok {
		return Record{}, false
	}
	return *rec.DeepCopy(), true
}

// GetAll returns a deep-copied snapshot of every cached record.
func (c *Cache) GetAll() map[string]Record {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]Record, len(c.records))
	for id, rec := range c.records {
		out[id] = *rec.DeepCopy()
	}
	return out
}

// Keys returns the cached device IDs in sorted order.
func (c *Cache) Keys() []string {
	c.mu.RLock()
	keys := make([]string, 0, len(c.records))
	for id := range c.records {
		keys = append(keys, id)
	}
	c.mu.RUnlock()

	sort.Strings(keys)
	return keys
}

// Count returns the number of cached records.
func (c *Cache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// Put inserts or overwrites the record keyed by rec.DeviceID.
//
// When rec carries a zero Handle and a record already exists, the stored
// handle is kept. Put returns a copy of what was stored.
func (c *Cache) Put(rec Record) Record {
	stored := rec.DeepCopy()
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = time.Now().UTC()
	}

	c.mu.Lock()
	if existing, ok := c.records[rec.DeviceID]; ok && stored.Handle.IsZero() {
		stored.Handle = existing.Handle
	}
	c.records[rec.DeviceID] = stored
	c.mu.Unlock()

	return *stored.DeepCopy()
}

// Remove deletes the record for id. It reports whether a record was present.
func (c *Cache) Remove(id string) bool {
	c.mu.Lock()
	_, ok := c.records[id]
	delete(c.records, id)
	c.mu.Unlock()

	if ok {
		c.logger.Debug("device removed from cache", "device_id", id)
	}
	return ok
}

// UpdateAttribute sets a single attribute on the record for id.
//
// The existing record is copied, modified and swapped in, so concurrent
// readers see either the old or the new record in full. When id is not
// cached nothing changes and ok is false.
func (c *Cache) UpdateAttribute(id, name string, value any, at time.Time) (Record, bool) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	existing, ok := c.records[id]
	if !ok {
		return Record{}, false
	}

	updated := existing.DeepCopy()
	if updated.Attributes == nil {
		updated.Attributes = make(Attributes)
	}
	updated.Attributes[name] = deepCopyValue(value)
	updated.UpdatedAt = at
	c.records[id] = updated

	return *updated.DeepCopy(), true
}
