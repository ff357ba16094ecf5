package onboarding

import (
	"github.com/hyperengineering/onboard/internal/types"
	"github.com/hyperengineering/onboard/internal/validation"
)

func validateProduct(p types.Product) error {
	return validation.AsError(validation.ValidateProduct(p))
}

func validatePackaging(p types.Packaging) error {
	return validation.AsError(validation.ValidatePackaging(p))
}

func validateIngredient(i types.Ingredient) error {
	return validation.AsError(validation.ValidateIngredient(i))
}

func validateDocument(d types.Document) error {
	return validation.AsError(validation.ValidateDocument(d))
}
