package childsync

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Coordinator drains pending records of one cache into the remote store.
//
// The set of records currently being created is scoped to the Coordinator, so
// construct one per form session. At most one Create is in flight per local
// key. A Create whose response is lost after the server committed it will be
// retried and can leave a duplicate server row; this is a known limitation.
type Coordinator[F any] struct {
	category string
	cache    *Cache[F]
	remote   Remote[F]
	logger   *slog.Logger

	mu      sync.Mutex
	syncing map[string]struct{}
}

// NewCoordinator creates a Coordinator for the given cache and remote.
func NewCoordinator[F any](category string, cache *Cache[F], remote Remote[F], opts ...Option) *Coordinator[F] {
	o := buildOptions(opts)
	return &Coordinator[F]{
		category: category,
		cache:    cache,
		remote:   remote,
		logger:   o.logger,
		syncing:  make(map[string]struct{}),
	}
}

// ShouldSync reports whether a pass would do any work for parentID.
func (c *Coordinator[F]) ShouldSync(parentID string) bool {
	if parentID == "" {
		return false
	}
	for _, item := range c.cache.pendingItems() {
		if !c.isClaimed(item.rec.LocalKey) {
			return true
		}
	}
	return false
}

// Sync runs one pass: every pending record not already claimed is created
// remotely against parentID. Remote failures are logged and counted, never
// returned; failed records stay pending for the next pass.
func (c *Coordinator[F]) Sync(ctx context.Context, parentID string) SyncStats {
	var stats SyncStats
	if parentID == "" {
		return stats
	}

	for _, item := range c.cache.pendingItems() {
		if ctx.Err() != nil {
			break
		}
		if !c.claim(item.rec.LocalKey) {
			stats.InFlight++
			continue
		}
		// Another pass may have confirmed or the form removed the record
		// between listing and claiming.
		current, ok := c.cache.pendingItem(item.rec.LocalKey)
		if !ok {
			c.release(item.rec.LocalKey)
			continue
		}
		stats.Attempted++
		c.syncOne(ctx, parentID, current, &stats)
	}

	if stats.Attempted > 0 {
		c.logger.Info("sync pass completed",
			"component", "childsync",
			"category", c.category,
			"parent_id", parentID,
			"attempted", stats.Attempted,
			"created", stats.Created,
			"failed", stats.Failed,
			"in_flight", stats.InFlight,
		)
	}
	return stats
}

// InFlight returns the number of records currently claimed.
func (c *Coordinator[F]) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.syncing)
}

func (c *Coordinator[F]) syncOne(ctx context.Context, parentID string, item pendingItem[F], stats *SyncStats) {
	key := item.rec.LocalKey
	defer c.release(key)

	created, err := c.remote.Create(ctx, parentID, item.rec.Fields)
	if err != nil {
		stats.Failed++
		c.logger.Warn("create failed, record stays pending",
			"component", "childsync",
			"category", c.category,
			"local_key", key,
			"parent_id", parentID,
			"error", err,
		)
		return
	}

	rec, stale, ok := c.cache.confirm(key, created, item.rev, true)
	if !ok {
		// Removed from the form while the create was in flight.
		stats.Orphaned++
		c.discardOrphan(ctx, key, created.ID)
		return
	}
	stats.Created++

	if stale {
		c.pushLocalEdit(ctx, rec)
	}
}

// pushLocalEdit sends fields edited during an in-flight create. On failure the
// record stays confirmed with the local fields; the server keeps the older copy
// until the next edit or fetch.
func (c *Coordinator[F]) pushLocalEdit(ctx context.Context, rec Record[F]) {
	updated, err := c.remote.Update(ctx, rec.ServerID, rec.Fields)
	if err != nil {
		c.logger.Warn("update of edited record failed",
			"component", "childsync",
			"category", c.category,
			"local_key", rec.LocalKey,
			"server_id", rec.ServerID,
			"error", err,
		)
		return
	}
	c.cache.Replace(rec.LocalKey, updated)
}

func (c *Coordinator[F]) discardOrphan(ctx context.Context, localKey, serverID string) {
	err := c.remote.Delete(ctx, serverID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		c.logger.Warn("failed to delete orphaned record",
			"component", "childsync",
			"category", c.category,
			"local_key", localKey,
			"server_id", serverID,
			"error", err,
		)
		return
	}
	// A fetch may have delivered the row under a fresh key meanwhile.
	dropped := c.cache.Forget(serverID)
	c.logger.Debug("deleted orphaned record",
		"component", "childsync",
		"category", c.category,
		"local_key", localKey,
		"server_id", serverID,
		"dropped_from_cache", dropped,
	)
}

func (c *Coordinator[F]) claim(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.syncing[key]; busy {
		return false
	}
	c.syncing[key] = struct{}{}
	return true
}

func (c *Coordinator[F]) release(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.syncing, key)
}

func (c *Coordinator[F]) isClaimed(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, busy := c.syncing[key]
	return busy
}
