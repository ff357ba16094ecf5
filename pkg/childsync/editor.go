package childsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Validator checks fields before they enter the cache.
type Validator[F any] func(fields F) error

// Editor is the form-facing surface of one category: the cache, its fetcher
// and coordinator, bound to a shared Parent.
type Editor[F any] struct {
	category    string
	parent      *Parent
	remote      Remote[F]
	validate    Validator[F]
	cache       *Cache[F]
	fetcher     *Fetcher[F]
	coordinator *Coordinator[F]
	logger      *slog.Logger
}

// NewEditor wires a category to parent. When the parent is created the editor
// refreshes from the server and drains its pending records.
func NewEditor[F any](category string, parent *Parent, remote Remote[F], validate Validator[F], opts ...Option) *Editor[F] {
	o := buildOptions(opts)
	cache := NewCache[F](opts...)
	e := &Editor[F]{
		category:    category,
		parent:      parent,
		remote:      remote,
		validate:    validate,
		cache:       cache,
		fetcher:     NewFetcher(category, cache, remote, opts...),
		coordinator: NewCoordinator(category, cache, remote, opts...),
		logger:      o.logger,
	}
	parent.Observe(e.activate)
	return e
}

// Category returns the category name.
func (e *Editor[F]) Category() string {
	return e.category
}

// Records returns the category's rows in display order.
func (e *Editor[F]) Records() []Record[F] {
	return e.cache.Records()
}

// Pending returns the rows not yet created remotely.
func (e *Editor[F]) Pending() []Record[F] {
	return e.cache.Pending()
}

// Add validates fields and appends a pending row. If the parent already
// exists the row is created remotely before Add returns; a failed create
// leaves it pending and is not an error.
func (e *Editor[F]) Add(ctx context.Context, fields F) (Record[F], error) {
	if err := e.check(fields); err != nil {
		return Record[F]{}, err
	}

	rec := e.cache.Append(fields)
	if parentID, ok := e.parent.ID(); ok {
		e.coordinator.Sync(ctx, parentID)
		if current, ok := e.cache.Get(rec.LocalKey); ok {
			rec = current
		}
	}
	return rec, nil
}

// Edit replaces the fields of a row. Pending rows change locally. Confirmed
// rows are updated remotely first; on failure the cache is left as it was and
// the error is returned.
func (e *Editor[F]) Edit(ctx context.Context, localKey string, fields F) (Record[F], error) {
	if err := e.check(fields); err != nil {
		return Record[F]{}, err
	}

	rec, ok := e.cache.Get(localKey)
	if !ok {
		return Record[F]{}, fmt.Errorf("edit %s %s: %w", e.category, localKey, ErrUnknownRecord)
	}

	if rec.Pending {
		e.cache.Patch(localKey, fields)
		rec.Fields = fields
		return rec, nil
	}

	updated, err := e.remote.Update(ctx, rec.ServerID, fields)
	if err != nil {
		e.logger.Warn("update failed",
			"component", "childsync",
			"category", e.category,
			"local_key", localKey,
			"server_id", rec.ServerID,
			"error", err,
		)
		return rec, fmt.Errorf("update %s %s: %w", e.category, rec.ServerID, err)
	}
	e.cache.Replace(localKey, updated)

	current, _ := e.cache.Get(localKey)
	return current, nil
}

// Remove deletes a row. Pending rows are dropped locally without any remote
// call. Confirmed rows are deleted remotely first; a row the server no longer
// knows counts as deleted. Other failures leave the cache unchanged.
func (e *Editor[F]) Remove(ctx context.Context, localKey string) error {
	rec, ok := e.cache.Get(localKey)
	if !ok {
		return fmt.Errorf("remove %s %s: %w", e.category, localKey, ErrUnknownRecord)
	}

	if rec.Pending {
		e.cache.Remove(localKey)
		return nil
	}

	if err := e.remote.Delete(ctx, rec.ServerID); err != nil && !errors.Is(err, ErrNotFound) {
		e.logger.Warn("delete failed",
			"component", "childsync",
			"category", e.category,
			"local_key", localKey,
			"server_id", rec.ServerID,
			"error", err,
		)
		return fmt.Errorf("delete %s %s: %w", e.category, rec.ServerID, err)
	}
	e.cache.Remove(localKey)
	return nil
}

// Refresh merges the server's rows for the current parent.
func (e *Editor[F]) Refresh(ctx context.Context) error {
	parentID, ok := e.parent.ID()
	if !ok {
		return ErrParentNotCreated
	}
	_, err := e.fetcher.Refresh(ctx, parentID)
	return err
}

// Sync runs one coordinator pass. It is a no-op until the parent exists.
func (e *Editor[F]) Sync(ctx context.Context) SyncStats {
	parentID, ok := e.parent.ID()
	if !ok {
		return SyncStats{}
	}
	return e.coordinator.Sync(ctx, parentID)
}

// NeedsSync reports whether a coordinator pass would do any work.
func (e *Editor[F]) NeedsSync() bool {
	parentID, _ := e.parent.ID()
	return e.coordinator.ShouldSync(parentID)
}

func (e *Editor[F]) activate(ctx context.Context, parentID string) {
	if _, err := e.fetcher.Refresh(ctx, parentID); err != nil {
		e.logger.Warn("initial fetch failed",
			"component", "childsync",
			"category", e.category,
			"parent_id", parentID,
			"error", err,
		)
	}
	e.coordinator.Sync(ctx, parentID)
}

func (e *Editor[F]) check(fields F) error {
	if e.validate == nil {
		return nil
	}
	if err := e.validate(fields); err != nil {
		return fmt.Errorf("%s: %w: %w", e.category, ErrValidation, err)
	}
	return nil
}
