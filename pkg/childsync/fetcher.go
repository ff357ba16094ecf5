package childsync

import (
	"context"
	"fmt"
	"log/slog"
)

// Fetcher loads confirmed records for a parent and merges them into a cache.
type Fetcher[F any] struct {
	category string
	cache    *Cache[F]
	remote   Remote[F]
	logger   *slog.Logger
}

// NewFetcher creates a Fetcher for the given cache and remote.
func NewFetcher[F any](category string, cache *Cache[F], remote Remote[F], opts ...Option) *Fetcher[F] {
	o := buildOptions(opts)
	return &Fetcher[F]{
		category: category,
		cache:    cache,
		remote:   remote,
		logger:   o.logger,
	}
}

// Refresh lists the parent's records and merges them. Pending records are
// kept; rows confirmed while the list call was in flight are kept too.
// Returns the number of server records merged.
func (f *Fetcher[F]) Refresh(ctx context.Context, parentID string) (int, error) {
	if parentID == "" {
		return 0, ErrParentNotCreated
	}

	asOf := f.cache.Seq()
	records, err := f.remote.List(ctx, parentID)
	if err != nil {
		return 0, fmt.Errorf("list %s: %w", f.category, err)
	}
	f.cache.Merge(records, asOf)

	f.logger.Debug("merged server records",
		"component", "childsync",
		"category", f.category,
		"parent_id", parentID,
		"count", len(records),
	)
	return len(records), nil
}
