package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"

	"github.com/hyperengineering/onboard/internal/types"
)

// ColumnKind is the Go-side type of a child table column.
type ColumnKind int

const (
	KindText ColumnKind = iota
	KindInt
	KindBool
)

// Column describes one category column.
type Column struct {
	Name string
	Kind ColumnKind
}

// TableSchema declares a child table. The child row functions build
// parameterized SQL from it at runtime.
type TableSchema struct {
	Category types.Category

	// Name is the SQL table name (must match the migration).
	Name string

	// Columns lists the category columns, excluding id, onboarding_id and
	// timestamps.
	Columns []Column
}

var childSchemas = map[types.Category]TableSchema{
	types.CategoryProducts: {
		Category: types.CategoryProducts,
		Name:     "onboarding_products",
		Columns: []Column{
			{Name: "name", Kind: KindText},
			{Name: "formula_source", Kind: KindText},
			{Name: "specifications", Kind: KindText},
			{Name: "trial_date", Kind: KindText},
		},
	},
	types.CategoryPackaging: {
		Category: types.CategoryPackaging,
		Name:     "onboarding_packaging",
		Columns: []Column{
			{Name: "type", Kind: KindText},
			{Name: "size", Kind: KindText},
			{Name: "case_pack_qty", Kind: KindInt},
			{Name: "label_orientation", Kind: KindText},
			{Name: "artwork_required", Kind: KindBool},
			{Name: "provided_by_customer", Kind: KindBool},
			{Name: "notes", Kind: KindText},
		},
	},
	types.CategoryIngredients: {
		Category: types.CategoryIngredients,
		Name:     "onboarding_ingredients",
		Columns: []Column{
			{Name: "name", Kind: KindText},
			{Name: "vendor_name", Kind: KindText},
			{Name: "provided_by_customer", Kind: KindBool},
		},
	},
	types.CategoryDocuments: {
		Category: types.CategoryDocuments,
		Name:     "onboarding_documents",
		Columns: []Column{
			{Name: "document_type", Kind: KindText},
			{Name: "file_url", Kind: KindText},
		},
	},
}

// SchemaFor returns the table schema of a category.
func SchemaFor(category types.Category) (TableSchema, error) {
	schema, ok := childSchemas[category]
	if !ok {
		return TableSchema{}, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	return schema, nil
}

func (s TableSchema) column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// sqlValues converts request fields to SQL parameters keyed by column name.
// Unknown names and values of the wrong type are rejected.
func (s TableSchema) sqlValues(fields map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(fields))
	for name, v := range fields {
		col, ok := s.column(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s has no column %q", ErrInvalidField, s.Category, name)
		}
		sv, err := col.toSQL(v)
		if err != nil {
			return nil, err
		}
		out[name] = sv
	}
	return out, nil
}

func (c Column) toSQL(v any) (any, error) {
	switch c.Kind {
	case KindText:
		switch val := v.(type) {
		case nil:
			return "", nil
		case string:
			return val, nil
		}
	case KindInt:
		switch val := v.(type) {
		case nil:
			return int64(0), nil
		case int:
			return int64(val), nil
		case int64:
			return val, nil
		case float64:
			if val == math.Trunc(val) {
				return int64(val), nil
			}
		case json.Number:
			if n, err := val.Int64(); err == nil {
				return n, nil
			}
		}
	case KindBool:
		switch val := v.(type) {
		case nil:
			return 0, nil
		case bool:
			if val {
				return 1, nil
			}
			return 0, nil
		}
	}
	return nil, fmt.Errorf("%w: %s has unexpected type %T", ErrInvalidField, c.Name, v)
}

// scanTarget returns a destination for database/sql Scan.
func (c Column) scanTarget() any {
	switch c.Kind {
	case KindInt, KindBool:
		return new(sql.NullInt64)
	default:
		return new(sql.NullString)
	}
}

// fromScan converts a scanned destination back to the JSON-facing value.
func (c Column) fromScan(dest any) any {
	switch c.Kind {
	case KindInt:
		return dest.(*sql.NullInt64).Int64
	case KindBool:
		return dest.(*sql.NullInt64).Int64 != 0
	default:
		return dest.(*sql.NullString).String
	}
}
