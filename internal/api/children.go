package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hyperengineering/onboard/internal/types"
	"github.com/hyperengineering/onboard/internal/validation"
)

// categoryParam resolves the {category} URL parameter, writing a 404 for
// unknown names.
func categoryParam(w http.ResponseWriter, r *http.Request) (types.Category, bool) {
	category, err := types.ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		WriteProblem(w, r, http.StatusNotFound, "Unknown category")
		return "", false
	}
	return category, true
}

// decodeFields reads a flat JSON object of column values. Numbers are kept
// as json.Number so integer columns are not routed through float64.
func decodeFields(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return nil, false
	}
	if fields == nil {
		WriteProblem(w, r, http.StatusBadRequest, "Request body must be a JSON object")
		return nil, false
	}
	return fields, true
}

// validateFields checks a complete set of column values against the
// category's field rules.
func validateFields(category types.Category, fields map[string]any) []validation.ValidationError {
	switch category {
	case types.CategoryProducts:
		return validateAs(fields, validation.ValidateProduct)
	case types.CategoryPackaging:
		return validateAs(fields, validation.ValidatePackaging)
	case types.CategoryIngredients:
		return validateAs(fields, validation.ValidateIngredient)
	case types.CategoryDocuments:
		return validateAs(fields, validation.ValidateDocument)
	}
	return []validation.ValidationError{{Field: "category", Message: "is not a known category"}}
}

func validateAs[T any](fields map[string]any, validate func(T) []validation.ValidationError) []validation.ValidationError {
	var v T
	if errs := decodeTyped(fields, &v); len(errs) > 0 {
		return errs
	}
	return validate(v)
}

// decodeTyped converts loose field values into the category struct,
// reporting unknown names and mistyped values as field errors.
func decodeTyped(fields map[string]any, dst any) []validation.ValidationError {
	raw, err := json.Marshal(fields)
	if err != nil {
		return []validation.ValidationError{{Field: "body", Message: "is not a valid object"}}
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	err = dec.Decode(dst)
	if err == nil {
		return nil
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return []validation.ValidationError{{
			Field:   typeErr.Field,
			Message: fmt.Sprintf("must be of type %s", typeErr.Type),
		}}
	}
	const unknownPrefix = "json: unknown field "
	if msg := err.Error(); strings.HasPrefix(msg, unknownPrefix) {
		return []validation.ValidationError{{
			Field:   strings.Trim(strings.TrimPrefix(msg, unknownPrefix), `"`),
			Message: "is not a known field",
		}}
	}
	return []validation.ValidationError{{Field: "body", Message: err.Error()}}
}

// ListChildren handles GET /api/v1/onboardings/{onboardingID}/{category}
func (h *Handler) ListChildren(w http.ResponseWriter, r *http.Request) {
	o := MustOnboardingFromContext(r.Context())
	category, ok := categoryParam(w, r)
	if !ok {
		return
	}

	rows, err := h.store.ListChildren(r.Context(), category, o.ID)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// CreateChild handles POST /api/v1/onboardings/{onboardingID}/{category}
func (h *Handler) CreateChild(w http.ResponseWriter, r *http.Request) {
	o := MustOnboardingFromContext(r.Context())
	category, ok := categoryParam(w, r)
	if !ok {
		return
	}
	fields, ok := decodeFields(w, r)
	if !ok {
		return
	}
	if errs := validateFields(category, fields); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	row, err := h.store.CreateChild(r.Context(), category, o.ID, fields)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	slog.Debug("child row created",
		"component", "api",
		"category", category,
		"parent_id", o.ID,
		"server_id", row.ID,
	)
	writeJSON(w, http.StatusCreated, row)
}

// UpdateChild handles PATCH /api/v1/{category}/{rowID}. The body is
// overlaid on the stored row and the merged row must validate.
func (h *Handler) UpdateChild(w http.ResponseWriter, r *http.Request) {
	category, ok := categoryParam(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "rowID")

	fields, ok := decodeFields(w, r)
	if !ok {
		return
	}

	existing, err := h.store.GetChild(r.Context(), category, id)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	merged := make(map[string]any, len(existing.Fields)+len(fields))
	for k, v := range existing.Fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	if errs := validateFields(category, merged); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	row, err := h.store.UpdateChild(r.Context(), category, id, fields)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

// DeleteChild handles DELETE /api/v1/{category}/{rowID}
func (h *Handler) DeleteChild(w http.ResponseWriter, r *http.Request) {
	category, ok := categoryParam(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "rowID")

	if err := h.store.DeleteChild(r.Context(), category, id); err != nil {
		MapStoreError(w, r, err)
		return
	}
	slog.Debug("child row deleted", "component", "api", "category", category, "server_id", id)
	w.WriteHeader(http.StatusNoContent)
}
