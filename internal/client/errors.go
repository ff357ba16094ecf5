package client

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/hyperengineering/onboard/internal/validation"
	"github.com/hyperengineering/onboard/pkg/childsync"
)

var (
	// ErrUnauthorized indicates the backend rejected the API key.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrConflict indicates the request conflicts with the resource state,
	// such as moving a submitted onboarding back to draft.
	ErrConflict = errors.New("conflict")
)

// APIError is a non-2xx response from the backend, decoded from its RFC 7807
// problem body when there is one.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Title      string
	Detail     string
	Errors     []validation.ValidationError
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: %d", e.Method, e.Path, e.StatusCode)
	if e.Title != "" {
		b.WriteString(" " + e.Title)
	}
	if e.Detail != "" && e.Detail != e.Title {
		b.WriteString(": " + e.Detail)
	}
	if len(e.Errors) > 0 {
		b.WriteString(" (" + validation.Errors(e.Errors).Error() + ")")
	}
	return b.String()
}

// Unwrap maps the status code onto the sentinel errors the sync engine
// understands.
func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusNotFound:
		return childsync.ErrNotFound
	case e.StatusCode == http.StatusBadRequest, e.StatusCode == http.StatusUnprocessableEntity:
		return childsync.ErrValidation
	case e.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case e.StatusCode == http.StatusConflict:
		return ErrConflict
	case e.StatusCode == http.StatusTooManyRequests, e.StatusCode >= 500:
		return childsync.ErrRemoteUnavailable
	}
	return nil
}
