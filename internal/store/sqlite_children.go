package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/hyperengineering/onboard/internal/types"
	"github.com/oklog/ulid/v2"
)

// selectColumns lists the columns of a child table in scan order.
func selectColumns(schema TableSchema) string {
	cols := make([]string, 0, len(schema.Columns)+4)
	cols = append(cols, "id", "onboarding_id")
	for _, c := range schema.Columns {
		cols = append(cols, c.Name)
	}
	cols = append(cols, "created_at", "updated_at")
	return strings.Join(cols, ", ")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChild(schema TableSchema, sc rowScanner) (*types.ChildRow, error) {
	var row types.ChildRow
	var createdAt, updatedAt string

	targets := make([]any, len(schema.Columns))
	dest := make([]any, 0, len(schema.Columns)+4)
	dest = append(dest, &row.ID, &row.OnboardingID)
	for i, c := range schema.Columns {
		targets[i] = c.scanTarget()
		dest = append(dest, targets[i])
	}
	dest = append(dest, &createdAt, &updatedAt)

	if err := sc.Scan(dest...); err != nil {
		return nil, err
	}

	row.Fields = make(map[string]any, len(schema.Columns))
	for i, c := range schema.Columns {
		row.Fields[c.Name] = c.fromScan(targets[i])
	}
	row.CreatedAt = parseTime(createdAt)
	row.UpdatedAt = parseTime(updatedAt)
	return &row, nil
}

func (s *SQLiteStore) onboardingExists(ctx context.Context, id string) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM onboardings WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check onboarding: %w", err)
	}
	return nil
}

// ListChildren returns the rows of one category for an onboarding in
// creation order.
func (s *SQLiteStore) ListChildren(ctx context.Context, category types.Category, onboardingID string) ([]types.ChildRow, error) {
	schema, err := SchemaFor(category)
	if err != nil {
		return nil, err
	}
	if err := s.onboardingExists(ctx, onboardingID); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE onboarding_id = ? ORDER BY created_at, rowid",
		selectColumns(schema), schema.Name,
	)
	rows, err := s.db.QueryContext(ctx, query, onboardingID)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", category, err)
	}
	defer rows.Close()

	out := []types.ChildRow{}
	for rows.Next() {
		row, err := scanChild(schema, rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s row: %w", category, err)
		}
		out = append(out, *row)
	}
	return out, rows.Err()
}

// GetChild returns one row by id.
func (s *SQLiteStore) GetChild(ctx context.Context, category types.Category, id string) (*types.ChildRow, error) {
	schema, err := SchemaFor(category)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", selectColumns(schema), schema.Name)
	row, err := scanChild(schema, s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s row %s: %w", category, id, err)
	}
	return row, nil
}

// CreateChild inserts a row under onboardingID. Columns absent from fields
// take their zero value.
func (s *SQLiteStore) CreateChild(ctx context.Context, category types.Category, onboardingID string, fields map[string]any) (*types.ChildRow, error) {
	schema, err := SchemaFor(category)
	if err != nil {
		return nil, err
	}
	values, err := schema.sqlValues(fields)
	if err != nil {
		return nil, err
	}
	if err := s.onboardingExists(ctx, onboardingID); err != nil {
		return nil, err
	}

	id := ulid.Make().String()
	ts := formatTime(now())

	cols := []string{"id", "onboarding_id"}
	args := []any{id, onboardingID}
	for _, c := range schema.Columns {
		v, ok := values[c.Name]
		if !ok {
			v, _ = c.toSQL(nil)
		}
		cols = append(cols, c.Name)
		args = append(args, v)
	}
	cols = append(cols, "created_at", "updated_at")
	args = append(args, ts, ts)

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		schema.Name, strings.Join(cols, ", "), placeholders,
	)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("insert %s row: %w", category, err)
	}

	return s.GetChild(ctx, category, id)
}

// UpdateChild overwrites the columns present in fields and leaves the rest.
func (s *SQLiteStore) UpdateChild(ctx context.Context, category types.Category, id string, fields map[string]any) (*types.ChildRow, error) {
	schema, err := SchemaFor(category)
	if err != nil {
		return nil, err
	}
	values, err := schema.sqlValues(fields)
	if err != nil {
		return nil, err
	}

	sets := make([]string, 0, len(values)+1)
	args := make([]any, 0, len(values)+2)
	for _, c := range schema.Columns {
		if v, ok := values[c.Name]; ok {
			sets = append(sets, c.Name+" = ?")
			args = append(args, v)
		}
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, formatTime(now()), id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", schema.Name, strings.Join(sets, ", "))
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("update %s row %s: %w", category, id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("check rows affected: %w", err)
	}
	if affected == 0 {
		return nil, ErrNotFound
	}

	return s.GetChild(ctx, category, id)
}

// DeleteChild removes a row. Returns ErrNotFound when the id is unknown.
func (s *SQLiteStore) DeleteChild(ctx context.Context, category types.Category, id string) error {
	schema, err := SchemaFor(category)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", schema.Name), id)
	if err != nil {
		return fmt.Errorf("delete %s row %s: %w", category, id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
