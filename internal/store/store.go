package store

import (
	"context"

	"github.com/hyperengineering/onboard/internal/types"
)

// Store defines the persistence contract of the onboarding backend.
type Store interface {
	CreateCustomer(ctx context.Context, in types.NewCustomer) (*types.Customer, error)
	GetCustomer(ctx context.Context, id string) (*types.Customer, error)
	ListCustomers(ctx context.Context) ([]types.Customer, error)

	CreateOnboarding(ctx context.Context, in types.NewOnboarding) (*types.Onboarding, error)
	GetOnboarding(ctx context.Context, id string) (*types.Onboarding, error)
	UpdateOnboarding(ctx context.Context, id string, patch types.OnboardingPatch) (*types.Onboarding, error)

	// Child rows are addressed by category. Fields maps column names to
	// values; unknown columns are rejected with ErrInvalidField.
	ListChildren(ctx context.Context, category types.Category, onboardingID string) ([]types.ChildRow, error)
	GetChild(ctx context.Context, category types.Category, id string) (*types.ChildRow, error)
	CreateChild(ctx context.Context, category types.Category, onboardingID string, fields map[string]any) (*types.ChildRow, error)
	UpdateChild(ctx context.Context, category types.Category, id string, fields map[string]any) (*types.ChildRow, error)
	DeleteChild(ctx context.Context, category types.Category, id string) error

	GetStats(ctx context.Context) (*types.StoreStats, error)
	Close() error
}
