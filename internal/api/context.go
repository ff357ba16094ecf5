package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hyperengineering/onboard/internal/types"
)

// onboardingContextKey is the context key for the resolved onboarding.
type onboardingContextKey struct{}

// ErrNoOnboardingInContext indicates no onboarding was found in the context.
var ErrNoOnboardingInContext = errors.New("no onboarding in context")

// WithOnboarding returns a new context with the onboarding attached.
func WithOnboarding(ctx context.Context, o *types.Onboarding) context.Context {
	return context.WithValue(ctx, onboardingContextKey{}, o)
}

// OnboardingFromContext extracts the onboarding from the context.
// Returns ErrNoOnboardingInContext if not present or nil.
func OnboardingFromContext(ctx context.Context) (*types.Onboarding, error) {
	o, ok := ctx.Value(onboardingContextKey{}).(*types.Onboarding)
	if !ok || o == nil {
		return nil, ErrNoOnboardingInContext
	}
	return o, nil
}

// MustOnboardingFromContext extracts the onboarding or panics.
// Use only on routes mounted behind OnboardingCtx.
func MustOnboardingFromContext(ctx context.Context) *types.Onboarding {
	o, err := OnboardingFromContext(ctx)
	if err != nil {
		panic("onboarding not in context: middleware misconfiguration")
	}
	return o
}

// OnboardingCtx resolves the {onboardingID} URL parameter. Unknown ids
// get a 404 before the handler runs.
func (h *Handler) OnboardingCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "onboardingID")
		o, err := h.store.GetOnboarding(r.Context(), id)
		if err != nil {
			MapStoreError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithOnboarding(r.Context(), o)))
	})
}
