package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hyperengineering/onboard/internal/types"
	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

// SQLiteStore is the SQLite-backed onboarding database.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLiteStore instance.
// It initializes the database with WAL mode, applies pragmas, and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dataSourceName(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Every pooled connection to :memory: would see its own empty database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := enablePragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable pragmas: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// dataSourceName attaches per-connection pragmas so every pooled connection
// gets them, not only the one enablePragmas runs on.
func dataSourceName(dbPath string) string {
	if dbPath == ":memory:" {
		return dbPath
	}
	return "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}

// enablePragmas sets SQLite pragmas for performance and safety.
func enablePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func now() time.Time {
	return time.Now().UTC()
}

// timeLayout has fixed-width fractional seconds so stored timestamps sort
// lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

// --- Customers ---

// CreateCustomer stores a new customer with a generated ULID.
func (s *SQLiteStore) CreateCustomer(ctx context.Context, in types.NewCustomer) (*types.Customer, error) {
	c := types.Customer{
		ID:           ulid.Make().String(),
		Name:         in.Name,
		ContactEmail: in.ContactEmail,
		CreatedAt:    now(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, contact_email, created_at)
		VALUES (?, ?, ?, ?)
	`, c.ID, c.Name, c.ContactEmail, formatTime(c.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("insert customer: %w", err)
	}
	return &c, nil
}

// GetCustomer returns a customer by id.
func (s *SQLiteStore) GetCustomer(ctx context.Context, id string) (*types.Customer, error) {
	var c types.Customer
	var createdAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, contact_email, created_at FROM customers WHERE id = ?
	`, id).Scan(&c.ID, &c.Name, &c.ContactEmail, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}
	c.CreatedAt = parseTime(createdAt)
	return &c, nil
}

// ListCustomers returns all customers ordered by name.
func (s *SQLiteStore) ListCustomers(ctx context.Context) ([]types.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, contact_email, created_at FROM customers ORDER BY name, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	customers := []types.Customer{}
	for rows.Next() {
		var c types.Customer
		var createdAt string
		if err := rows.Scan(&c.ID, &c.Name, &c.ContactEmail, &createdAt); err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		c.CreatedAt = parseTime(createdAt)
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

// --- Onboardings ---

// CreateOnboarding stores a new onboarding. Status defaults to draft; an
// onboarding created as submitted gets its submitted_at set.
func (s *SQLiteStore) CreateOnboarding(ctx context.Context, in types.NewOnboarding) (*types.Onboarding, error) {
	if _, err := s.GetCustomer(ctx, in.CustomerID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrCustomerNotFound, in.CustomerID)
		}
		return nil, err
	}

	ts := now()
	o := types.Onboarding{
		ID:             ulid.Make().String(),
		CustomerID:     in.CustomerID,
		OnboardingType: in.OnboardingType,
		Status:         in.Status,
		Notes:          in.Notes,
		CreatedAt:      ts,
		UpdatedAt:      ts,
	}
	if o.Status == "" {
		o.Status = types.StatusDraft
	}
	var submittedAt any
	if o.Status == types.StatusSubmitted {
		o.SubmittedAt = &ts
		submittedAt = formatTime(ts)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO onboardings (id, customer_id, onboarding_type, status, notes, created_at, updated_at, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, o.ID, o.CustomerID, o.OnboardingType, string(o.Status), o.Notes,
		formatTime(o.CreatedAt), formatTime(o.UpdatedAt), submittedAt)
	if err != nil {
		return nil, fmt.Errorf("insert onboarding: %w", err)
	}
	return &o, nil
}

// GetOnboarding returns an onboarding by id.
func (s *SQLiteStore) GetOnboarding(ctx context.Context, id string) (*types.Onboarding, error) {
	var o types.Onboarding
	var status, createdAt, updatedAt string
	var submittedAt sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, customer_id, onboarding_type, status, notes, created_at, updated_at, submitted_at
		FROM onboardings WHERE id = ?
	`, id).Scan(&o.ID, &o.CustomerID, &o.OnboardingType, &status, &o.Notes, &createdAt, &updatedAt, &submittedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get onboarding: %w", err)
	}

	o.Status = types.OnboardingStatus(status)
	o.CreatedAt = parseTime(createdAt)
	o.UpdatedAt = parseTime(updatedAt)
	if submittedAt.Valid {
		t := parseTime(submittedAt.String)
		o.SubmittedAt = &t
	}
	return &o, nil
}

// UpdateOnboarding applies patch. A submitted onboarding cannot return to
// draft; resubmitting keeps the original submitted_at.
func (s *SQLiteStore) UpdateOnboarding(ctx context.Context, id string, patch types.OnboardingPatch) (*types.Onboarding, error) {
	current, err := s.GetOnboarding(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.OnboardingType != nil {
		current.OnboardingType = *patch.OnboardingType
	}
	if patch.Notes != nil {
		current.Notes = *patch.Notes
	}
	if patch.Status != nil && *patch.Status != current.Status {
		if current.Status == types.StatusSubmitted {
			return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, current.Status, *patch.Status)
		}
		current.Status = *patch.Status
		if current.Status == types.StatusSubmitted {
			ts := now()
			current.SubmittedAt = &ts
		}
	}
	current.UpdatedAt = now()

	var submittedAt any
	if current.SubmittedAt != nil {
		submittedAt = formatTime(*current.SubmittedAt)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE onboardings
		SET onboarding_type = ?, status = ?, notes = ?, updated_at = ?, submitted_at = ?
		WHERE id = ?
	`, current.OnboardingType, string(current.Status), current.Notes,
		formatTime(current.UpdatedAt), submittedAt, id)
	if err != nil {
		return nil, fmt.Errorf("update onboarding: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("check rows affected: %w", err)
	}
	if affected == 0 {
		return nil, ErrNotFound
	}
	return current, nil
}

// GetStats returns aggregate store statistics.
func (s *SQLiteStore) GetStats(ctx context.Context) (*types.StoreStats, error) {
	stats := &types.StoreStats{ChildRows: make(map[types.Category]int64)}

	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM customers`).Scan(&stats.Customers)
	if err != nil {
		return nil, fmt.Errorf("count customers: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN status = 'draft' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = 'submitted' THEN 1 ELSE 0 END), 0)
		FROM onboardings
	`).Scan(&stats.Onboardings, &stats.Drafts, &stats.Submitted)
	if err != nil {
		return nil, fmt.Errorf("count onboardings: %w", err)
	}

	for _, category := range types.Categories() {
		schema := childSchemas[category]
		var n int64
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+schema.Name).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", category, err)
		}
		stats.ChildRows[category] = n
	}

	return stats, nil
}
