package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hyperengineering/onboard/internal/types"
	"github.com/hyperengineering/onboard/pkg/childsync"
)

// Category is the childsync.Remote of one child category. F is the category's
// field struct; it travels as the flat JSON object the backend expects.
type Category[F any] struct {
	client   *Client
	category types.Category
}

var _ childsync.Remote[types.Ingredient] = (*Category[types.Ingredient])(nil)

// NewCategory binds c to one category.
func NewCategory[F any](c *Client, category types.Category) *Category[F] {
	return &Category[F]{client: c, category: category}
}

// List returns the confirmed rows of parentID in server order.
func (r *Category[F]) List(ctx context.Context, parentID string) ([]childsync.ServerRecord[F], error) {
	rows, err := r.client.ListChildren(ctx, r.category, parentID)
	if err != nil {
		return nil, err
	}
	out := make([]childsync.ServerRecord[F], 0, len(rows))
	for _, row := range rows {
		rec, err := serverRecord[F](row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Create creates a row under parentID.
func (r *Category[F]) Create(ctx context.Context, parentID string, fields F) (childsync.ServerRecord[F], error) {
	row, err := r.client.CreateChild(ctx, r.category, parentID, fields)
	if err != nil {
		return childsync.ServerRecord[F]{}, err
	}
	return serverRecord[F](*row)
}

// Update replaces every field of a row.
func (r *Category[F]) Update(ctx context.Context, serverID string, fields F) (childsync.ServerRecord[F], error) {
	row, err := r.client.UpdateChild(ctx, r.category, serverID, fields)
	if err != nil {
		return childsync.ServerRecord[F]{}, err
	}
	return serverRecord[F](*row)
}

// Delete removes a row.
func (r *Category[F]) Delete(ctx context.Context, serverID string) error {
	return r.client.DeleteChild(ctx, r.category, serverID)
}

func serverRecord[F any](row types.ChildRow) (childsync.ServerRecord[F], error) {
	var fields F
	data, err := json.Marshal(row.Fields)
	if err != nil {
		return childsync.ServerRecord[F]{}, fmt.Errorf("encode row %s: %w", row.ID, err)
	}
	if err := json.Unmarshal(data, &fields); err != nil {
		return childsync.ServerRecord[F]{}, fmt.Errorf("decode row %s: %w", row.ID, err)
	}
	return childsync.ServerRecord[F]{ID: row.ID, Fields: fields}, nil
}
