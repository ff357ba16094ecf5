package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hyperengineering/onboard/internal/store"
	"github.com/hyperengineering/onboard/internal/types"
	"github.com/hyperengineering/onboard/internal/validation"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Handler implements the API handlers
type Handler struct {
	store   store.Store
	apiKey  string
	version string
}

// NewHandler creates a new Handler with store.Store interface
func NewHandler(s store.Store, apiKey, version string) *Handler {
	return &Handler{
		store:   s,
		apiKey:  apiKey,
		version: version,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "component", "api", "error", err)
	}
}

// decodeBody decodes a JSON request body into dst, rejecting unknown
// fields. On failure it writes a 400 and returns false.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return false
	}
	return true
}

// Health handles GET /api/v1/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.GetStats(r.Context())
	if err != nil {
		MapStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, types.HealthResponse{
		Status:      "healthy",
		Version:     h.version,
		Customers:   stats.Customers,
		Onboardings: stats.Onboardings,
	})
}

// --- Customers ---

// CreateCustomer handles POST /api/v1/customers
func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req types.NewCustomer
	if !decodeBody(w, r, &req) {
		return
	}
	if errs := validation.ValidateNewCustomer(req); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	c, err := h.store.CreateCustomer(r.Context(), req)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	slog.Info("customer created", "component", "api", "customer_id", c.ID)
	writeJSON(w, http.StatusCreated, c)
}

// ListCustomers handles GET /api/v1/customers
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.store.ListCustomers(r.Context())
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, customers)
}

// GetCustomer handles GET /api/v1/customers/{customerID}
func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	c, err := h.store.GetCustomer(r.Context(), chi.URLParam(r, "customerID"))
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// --- Onboardings ---

// CreateOnboarding handles POST /api/v1/onboardings
func (h *Handler) CreateOnboarding(w http.ResponseWriter, r *http.Request) {
	var req types.NewOnboarding
	if !decodeBody(w, r, &req) {
		return
	}
	if errs := validation.ValidateNewOnboarding(req); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	o, err := h.store.CreateOnboarding(r.Context(), req)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	slog.Info("onboarding created",
		"component", "api",
		"parent_id", o.ID,
		"customer_id", o.CustomerID,
		"status", o.Status,
	)
	writeJSON(w, http.StatusCreated, o)
}

// GetOnboarding handles GET /api/v1/onboardings/{onboardingID}
func (h *Handler) GetOnboarding(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, MustOnboardingFromContext(r.Context()))
}

// UpdateOnboarding handles PATCH /api/v1/onboardings/{onboardingID}
func (h *Handler) UpdateOnboarding(w http.ResponseWriter, r *http.Request) {
	current := MustOnboardingFromContext(r.Context())

	var patch types.OnboardingPatch
	if !decodeBody(w, r, &patch) {
		return
	}
	if errs := validation.ValidateOnboardingPatch(patch); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	o, err := h.store.UpdateOnboarding(r.Context(), current.ID, patch)
	if err != nil {
		if !errors.Is(err, store.ErrInvalidTransition) {
			slog.Error("update onboarding failed", "component", "api", "parent_id", current.ID, "error", err)
		}
		MapStoreError(w, r, err)
		return
	}
	if o.Status != current.Status {
		slog.Info("onboarding status changed",
			"component", "api",
			"parent_id", o.ID,
			"from", current.Status,
			"to", o.Status,
		)
	}
	writeJSON(w, http.StatusOK, o)
}
