package childsync

import (
	"log/slog"
	"sync"

	"github.com/oklog/ulid/v2"
)

// entry is a cached record plus the bookkeeping the cache needs internally.
type entry[F any] struct {
	rec Record[F]
	// rev increments on every local field edit.
	rev uint64
	// confirmedAt is the cache sequence at which the row was confirmed locally.
	// Zero for rows that arrived through a server snapshot.
	confirmedAt uint64
}

// Cache is the ordered in-memory list of child records for one category.
// It is safe for concurrent use.
type Cache[F any] struct {
	mu      sync.Mutex
	entries []entry[F]
	seq     uint64
	newKey  func() string
	logger  *slog.Logger

	// removed maps server ids of rows dropped locally to the sequence at
	// which they were dropped. A snapshot listed before then still carries
	// them.
	removed map[string]uint64
}

// NewCache creates an empty Cache.
func NewCache[F any](opts ...Option) *Cache[F] {
	o := buildOptions(opts)
	return &Cache[F]{
		newKey:  o.keyFunc,
		logger:  o.logger,
		removed: make(map[string]uint64),
	}
}

func newLocalKey() string {
	return ulid.Make().String()
}

// Append adds a new pending record at the end of the list and returns it.
// It never fails and does not depend on the parent state.
func (c *Cache[F]) Append(fields F) Record[F] {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec := Record[F]{
		LocalKey: c.newKey(),
		Pending:  true,
		Fields:   fields,
	}
	c.entries = append(c.entries, entry[F]{rec: rec})
	return rec
}

// Replace confirms the record identified by localKey with the server's copy.
// Returns false, after logging, when the key is not cached.
func (c *Cache[F]) Replace(localKey string, sr ServerRecord[F]) bool {
	_, _, ok := c.confirm(localKey, sr, 0, false)
	return ok
}

// confirm flips a record to confirmed. When checkRev is set and the record was
// edited locally since rev, the local fields are kept and stale is reported so
// the caller can push them.
func (c *Cache[F]) confirm(localKey string, sr ServerRecord[F], rev uint64, checkRev bool) (rec Record[F], stale bool, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.indexOf(localKey)
	if idx < 0 {
		c.logger.Debug("replace skipped, local key not cached",
			"component", "childsync",
			"local_key", localKey,
			"server_id", sr.ID,
		)
		return Record[F]{}, false, false
	}

	// A concurrent fetch may already have delivered this server row under a
	// different local key; keep the caller's key so the form's identity holds.
	for i := len(c.entries) - 1; i >= 0; i-- {
		e := c.entries[i]
		if i != idx && !e.rec.Pending && e.rec.ServerID == sr.ID {
			c.entries = append(c.entries[:i], c.entries[i+1:]...)
			if i < idx {
				idx--
			}
		}
	}

	c.seq++
	e := &c.entries[idx]
	stale = checkRev && e.rev != rev
	e.rec.ServerID = sr.ID
	e.rec.Pending = false
	if !stale {
		e.rec.Fields = sr.Fields
	}
	e.confirmedAt = c.seq
	return e.rec, stale, true
}

// Patch overwrites the fields of a cached record without touching its sync state.
func (c *Cache[F]) Patch(localKey string, fields F) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.indexOf(localKey)
	if idx < 0 {
		return false
	}
	c.entries[idx].rec.Fields = fields
	c.entries[idx].rev++
	return true
}

// Remove deletes the record regardless of its pending state.
func (c *Cache[F]) Remove(localKey string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.indexOf(localKey)
	if idx < 0 {
		return false
	}
	if rec := c.entries[idx].rec; !rec.Pending {
		c.tombstone(rec.ServerID)
	}
	c.entries = append(c.entries[:idx], c.entries[idx+1:]...)
	return true
}

// Forget drops every confirmed record for serverID, such as a row a fetch
// delivered while its create was being orphaned. Snapshots listed before
// the call will not bring it back.
func (c *Cache[F]) Forget(serverID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.entries[:0]
	dropped := 0
	for _, e := range c.entries {
		if !e.rec.Pending && e.rec.ServerID == serverID {
			dropped++
			continue
		}
		kept = append(kept, e)
	}
	c.entries = kept
	c.tombstone(serverID)
	return dropped
}

func (c *Cache[F]) tombstone(serverID string) {
	c.seq++
	c.removed[serverID] = c.seq
}

// Get returns a copy of the record for localKey.
func (c *Cache[F]) Get(localKey string) (Record[F], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.indexOf(localKey)
	if idx < 0 {
		return Record[F]{}, false
	}
	return c.entries[idx].rec, true
}

// Records returns a copy of the list in display order.
func (c *Cache[F]) Records() []Record[F] {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Record[F], len(c.entries))
	for i, e := range c.entries {
		out[i] = e.rec
	}
	return out
}

// Pending returns copies of the records not yet known to the server.
func (c *Cache[F]) Pending() []Record[F] {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []Record[F]
	for _, e := range c.entries {
		if e.rec.Pending {
			out = append(out, e.rec)
		}
	}
	return out
}

// Len returns the number of cached records.
func (c *Cache[F]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Seq returns the current sequence, advanced by every confirmation and every
// removal of a confirmed row. A fetch reads it before listing so Merge can
// tell which local changes the snapshot may predate.
func (c *Cache[F]) Seq() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// MergeFromServer treats records as the authoritative set of confirmed rows.
func (c *Cache[F]) MergeFromServer(records []ServerRecord[F]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.merge(records, c.seq)
}

// Merge is MergeFromServer for a snapshot listed at sequence asOf. Rows
// confirmed locally after asOf survive even when the snapshot lacks them and
// keep their local fields when it has them. Rows removed locally after asOf
// stay removed.
func (c *Cache[F]) Merge(records []ServerRecord[F], asOf uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.merge(records, asOf)
}

// merge rebuilds the list as pending rows first, then confirmed rows. Pending
// rows are never touched. Local keys of confirmed rows are reused by server id.
func (c *Cache[F]) merge(records []ServerRecord[F], asOf uint64) {
	for id, at := range c.removed {
		if at <= asOf {
			delete(c.removed, id)
		}
	}

	var pending, retained []entry[F]
	known := make(map[string]entry[F])
	for _, e := range c.entries {
		if e.rec.Pending {
			pending = append(pending, e)
			continue
		}
		known[e.rec.ServerID] = e
	}

	inSnapshot := make(map[string]struct{}, len(records))
	confirmed := make([]entry[F], 0, len(records))
	for _, sr := range records {
		if _, dup := inSnapshot[sr.ID]; dup {
			continue
		}
		inSnapshot[sr.ID] = struct{}{}
		if _, gone := c.removed[sr.ID]; gone {
			continue
		}

		e := entry[F]{rec: Record[F]{ServerID: sr.ID, Fields: sr.Fields}}
		if prev, ok := known[sr.ID]; ok {
			e.rec.LocalKey = prev.rec.LocalKey
			e.confirmedAt = prev.confirmedAt
			e.rev = prev.rev
			if prev.confirmedAt > asOf {
				e.rec.Fields = prev.rec.Fields
			}
		} else {
			e.rec.LocalKey = c.newKey()
		}
		confirmed = append(confirmed, e)
	}

	for _, e := range c.entries {
		if e.rec.Pending || e.confirmedAt <= asOf {
			continue
		}
		if _, ok := inSnapshot[e.rec.ServerID]; !ok {
			retained = append(retained, e)
		}
	}

	merged := make([]entry[F], 0, len(pending)+len(retained)+len(confirmed))
	merged = append(merged, pending...)
	merged = append(merged, retained...)
	merged = append(merged, confirmed...)
	c.entries = merged
}

// pendingItem is a pending record with the revision it was read at.
type pendingItem[F any] struct {
	rec Record[F]
	rev uint64
}

func (c *Cache[F]) pendingItems() []pendingItem[F] {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []pendingItem[F]
	for _, e := range c.entries {
		if e.rec.Pending {
			out = append(out, pendingItem[F]{rec: e.rec, rev: e.rev})
		}
	}
	return out
}

func (c *Cache[F]) pendingItem(localKey string) (pendingItem[F], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.indexOf(localKey)
	if idx < 0 || !c.entries[idx].rec.Pending {
		return pendingItem[F]{}, false
	}
	e := c.entries[idx]
	return pendingItem[F]{rec: e.rec, rev: e.rev}, true
}

func (c *Cache[F]) indexOf(localKey string) int {
	for i, e := range c.entries {
		if e.rec.LocalKey == localKey {
			return i
		}
	}
	return -1
}
