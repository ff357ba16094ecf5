package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// OnboardingStatus is the lifecycle state of an onboarding.
type OnboardingStatus string

const (
	StatusDraft     OnboardingStatus = "draft"
	StatusSubmitted OnboardingStatus = "submitted"
)

// Category names a kind of child record attached to an onboarding.
type Category string

const (
	CategoryProducts    Category = "products"
	CategoryPackaging   Category = "packaging"
	CategoryIngredients Category = "ingredients"
	CategoryDocuments   Category = "documents"
)

// Categories lists every child category in display order.
func Categories() []Category {
	return []Category{CategoryProducts, CategoryPackaging, CategoryIngredients, CategoryDocuments}
}

// ParseCategory validates a category name from a URL or flag.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories() {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// Customer is a manufacturing customer.
type Customer struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	ContactEmail string    `json:"contact_email,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewCustomer is the input for creating a customer.
type NewCustomer struct {
	Name         string `json:"name" yaml:"name"`
	ContactEmail string `json:"contact_email,omitempty" yaml:"contact_email"`
}

// Onboarding is the parent entity that child records attach to.
type Onboarding struct {
	ID             string           `json:"id"`
	CustomerID     string           `json:"customer_id"`
	OnboardingType string           `json:"onboarding_type"`
	Status         OnboardingStatus `json:"status"`
	Notes          string           `json:"notes,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
	SubmittedAt    *time.Time       `json:"submitted_at,omitempty"`
}

// NewOnboarding is the input for creating an onboarding.
type NewOnboarding struct {
	CustomerID     string           `json:"customer_id" yaml:"customer_id"`
	OnboardingType string           `json:"onboarding_type" yaml:"onboarding_type"`
	Status         OnboardingStatus `json:"status,omitempty" yaml:"status"`
	Notes          string           `json:"notes,omitempty" yaml:"notes"`
}

// OnboardingPatch carries the fields of an onboarding update. Nil fields are
// left unchanged.
type OnboardingPatch struct {
	OnboardingType *string           `json:"onboarding_type,omitempty"`
	Status         *OnboardingStatus `json:"status,omitempty"`
	Notes          *string           `json:"notes,omitempty"`
}

// IDResponse is returned by parent create and update.
type IDResponse struct {
	ID string `json:"id"`
}

// Product is a product to be manufactured for the customer.
type Product struct {
	Name           string `json:"name" yaml:"name"`
	FormulaSource  string `json:"formula_source" yaml:"formula_source"`
	Specifications string `json:"specifications" yaml:"specifications"`
	TrialDate      string `json:"trial_date" yaml:"trial_date"`
}

// Packaging is a packaging specification.
type Packaging struct {
	Type               string `json:"type" yaml:"type"`
	Size               string `json:"size" yaml:"size"`
	CasePackQty        int    `json:"case_pack_qty" yaml:"case_pack_qty"`
	LabelOrientation   string `json:"label_orientation" yaml:"label_orientation"`
	ArtworkRequired    bool   `json:"artwork_required" yaml:"artwork_required"`
	ProvidedByCustomer bool   `json:"provided_by_customer" yaml:"provided_by_customer"`
	Notes              string `json:"notes" yaml:"notes"`
}

// Ingredient is a raw material used by the customer's products.
type Ingredient struct {
	Name               string `json:"name" yaml:"name"`
	VendorName         string `json:"vendor_name" yaml:"vendor_name"`
	ProvidedByCustomer bool   `json:"provided_by_customer" yaml:"provided_by_customer"`
}

// Document is a supporting document stored in object storage.
type Document struct {
	DocumentType string `json:"document_type" yaml:"document_type"`
	FileURL      string `json:"file_url" yaml:"file_url"`
}

// ChildRow is a child record as held by the backend. Fields holds the
// category columns and is flattened into the JSON object next to the
// bookkeeping keys.
type ChildRow struct {
	ID           string
	OnboardingID string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Fields       map[string]any
}

var childRowKeys = []string{"id", "onboarding_id", "created_at", "updated_at"}

// MarshalJSON flattens Fields into the row object.
func (r ChildRow) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Fields)+len(childRowKeys))
	for k, v := range r.Fields {
		out[k] = v
	}
	out["id"] = r.ID
	out["onboarding_id"] = r.OnboardingID
	out["created_at"] = r.CreatedAt.UTC().Format(time.RFC3339)
	out["updated_at"] = r.UpdatedAt.UTC().Format(time.RFC3339)
	return json.Marshal(out)
}

// UnmarshalJSON splits a flat row object into bookkeeping keys and Fields.
func (r *ChildRow) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.ID, _ = raw["id"].(string)
	r.OnboardingID, _ = raw["onboarding_id"].(string)
	if s, ok := raw["created_at"].(string); ok {
		r.CreatedAt, _ = time.Parse(time.RFC3339, s)
	}
	if s, ok := raw["updated_at"].(string); ok {
		r.UpdatedAt, _ = time.Parse(time.RFC3339, s)
	}
	for _, k := range childRowKeys {
		delete(raw, k)
	}
	r.Fields = raw
	return nil
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Customers   int64  `json:"customers"`
	Onboardings int64  `json:"onboardings"`
}

// StoreStats contains aggregate backend statistics.
type StoreStats struct {
	Customers   int64              `json:"customers"`
	Onboardings int64              `json:"onboardings"`
	Drafts      int64              `json:"drafts"`
	Submitted   int64              `json:"submitted"`
	ChildRows   map[Category]int64 `json:"child_rows"`
}
