package bootstrap

import (
	"sync"

	"github.com/google/uuid"
	"github.com/multiformats/go-multiaddr"
)

// pendingOp is one staged mutation: an add/remove token observed against
// the live set. Every stage operation gets a fresh token so two concurrent
// inserts of the same address don't cancel each other out before
// UpdateCache commits.
type pendingOp struct {
	insert bool
	key    string
	record Record
	token  uuid.UUID
}

// Cache is the mutable, per-protocol-indexed set of bootstrap records.
// Mutations raised from peer
// connect/disconnect events are staged and only take effect once
// UpdateCache runs on the core thread, so a burst of endpoint callbacks
// never interleaves a torn read with a scheduler tick.
type Cache struct {
	mu      sync.RWMutex
	records map[string]Record // dedup key -> record
	byProto map[string]map[string]bool

	pendingMu sync.Mutex
	pending   []pendingOp

	path string
}

// New builds an empty bootstrap cache with no bound persistence path.
func New() *Cache {
	return &Cache{
		records: make(map[string]Record),
		byProto: make(map[string]map[string]bool),
	}
}

// BindPath attaches a persistence path; Serialize becomes a real write only
// once this has been called.
func (c *Cache) BindPath(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.path = path
}

// SetDefaults seeds the cache directly (bypassing staging) from configured
// endpoint bootstraps, before any persisted file is read.
func (c *Cache) SetDefaults(records []Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range records {
		c.insertLocked(r)
	}
}

func (c *Cache) insertLocked(r Record) bool {
	key := normalize(r.Protocol, r.RemoteAddress)
	if _, exists := c.records[key]; exists {
		return false
	}
	c.records[key] = r
	if c.byProto[r.Protocol] == nil {
		c.byProto[r.Protocol] = make(map[string]bool)
	}
	c.byProto[r.Protocol][key] = true
	return true
}

func (c *Cache) removeLocked(protocol string, addr multiaddr.Multiaddr) bool {
	key := normalize(protocol, addr)
	if _, exists := c.records[key]; !exists {
		return false
	}
	delete(c.records, key)
	delete(c.byProto[protocol], key)
	return true
}

// Contains reports whether addr (under protocol) is already in the
// committed set.
func (c *Cache) Contains(protocol string, addr multiaddr.Multiaddr) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.records[normalize(protocol, addr)]
	return ok
}

// ForEachBootstrap visits every committed record, optionally restricted to
// one protocol.
func (c *Cache) ForEachBootstrap(protocol string, fn func(Record) bool) {
	c.mu.RLock()
	keys := c.records
	var selected []string
	if protocol != "" {
		for k := range c.byProto[protocol] {
			selected = append(selected, k)
		}
	} else {
		for k := range keys {
			selected = append(selected, k)
		}
	}
	out := make([]Record, 0, len(selected))
	for _, k := range selected {
		out = append(out, keys[k])
	}
	c.mu.RUnlock()

	for _, r := range out {
		if !fn(r) {
			return
		}
	}
}

// BootstrapCount reports how many records are committed, optionally
// restricted to one protocol.
func (c *Cache) BootstrapCount(protocol string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if protocol == "" {
		return len(c.records)
	}
	return len(c.byProto[protocol])
}

// InsertBootstrap stages an insert. It takes effect on the next
// UpdateCache.
func (c *Cache) InsertBootstrap(r Record) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	c.pending = append(c.pending, pendingOp{
		insert: true,
		key:    normalize(r.Protocol, r.RemoteAddress),
		record: r,
		token:  uuid.New(),
	})
}

// RemoveBootstrap stages a removal. It takes effect on the next
// UpdateCache.
func (c *Cache) RemoveBootstrap(protocol string, addr multiaddr.Multiaddr) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	c.pending = append(c.pending, pendingOp{
		insert: false,
		key:    normalize(protocol, addr),
		record: Record{Protocol: protocol, RemoteAddress: addr},
		token:  uuid.New(),
	})
}

// UpdateCache atomically applies every staged mutation since the last call,
// in order, and reports how many applied plus the signed net change in
// record count.
func (c *Cache) UpdateCache() (applied int, difference int) {
	c.pendingMu.Lock()
	ops := c.pending
	c.pending = nil
	c.pendingMu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, op := range ops {
		var ok bool
		if op.insert {
			ok = c.insertLocked(op.record)
			if ok {
				difference++
			}
		} else {
			ok = c.removeLocked(op.record.Protocol, op.record.RemoteAddress)
			if ok {
				difference--
			}
		}
		if ok {
			applied++
		}
	}
	return applied, difference
}
