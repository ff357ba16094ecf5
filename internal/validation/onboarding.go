package validation

import (
	"github.com/hyperengineering/onboard/internal/types"
)

const (
	maxNameLength  = 200
	maxShortLength = 100
	maxTextLength  = 4000
	maxCasePackQty = 100000
)

var allowedStatuses = []string{string(types.StatusDraft), string(types.StatusSubmitted)}

// text applies the checks shared by every free-text field.
func text(c *Collector, field, value string, max int) {
	c.Add(ValidateUTF8(field, value))
	c.Add(ValidateNoNullBytes(field, value))
	c.Add(ValidateMaxLength(field, value, max))
}

// ValidateNewCustomer validates a customer create request.
func ValidateNewCustomer(in types.NewCustomer) []ValidationError {
	c := &Collector{}
	c.Add(ValidateRequired("name", in.Name))
	text(c, "name", in.Name, maxNameLength)
	c.Add(ValidateEmail("contact_email", in.ContactEmail))
	return c.Errors()
}

// ValidateNewOnboarding validates an onboarding create request.
func ValidateNewOnboarding(in types.NewOnboarding) []ValidationError {
	c := &Collector{}
	c.Add(ValidateRequired("customer_id", in.CustomerID))
	if in.CustomerID != "" {
		c.Add(ValidateULID("customer_id", in.CustomerID))
	}
	c.Add(ValidateRequired("onboarding_type", in.OnboardingType))
	text(c, "onboarding_type", in.OnboardingType, maxShortLength)
	if in.Status != "" {
		c.Add(ValidateEnum("status", string(in.Status), allowedStatuses))
	}
	text(c, "notes", in.Notes, maxTextLength)
	return c.Errors()
}

// ValidateOnboardingPatch validates the fields present in an onboarding update.
func ValidateOnboardingPatch(in types.OnboardingPatch) []ValidationError {
	c := &Collector{}
	if in.OnboardingType != nil {
		c.Add(ValidateRequired("onboarding_type", *in.OnboardingType))
		text(c, "onboarding_type", *in.OnboardingType, maxShortLength)
	}
	if in.Status != nil {
		c.Add(ValidateEnum("status", string(*in.Status), allowedStatuses))
	}
	if in.Notes != nil {
		text(c, "notes", *in.Notes, maxTextLength)
	}
	return c.Errors()
}

// ValidateProduct validates product fields.
func ValidateProduct(p types.Product) []ValidationError {
	c := &Collector{}
	c.Add(ValidateRequired("name", p.Name))
	text(c, "name", p.Name, maxNameLength)
	text(c, "formula_source", p.FormulaSource, maxShortLength)
	text(c, "specifications", p.Specifications, maxTextLength)
	c.Add(ValidateDate("trial_date", p.TrialDate))
	return c.Errors()
}

// ValidatePackaging validates packaging fields.
func ValidatePackaging(p types.Packaging) []ValidationError {
	c := &Collector{}
	c.Add(ValidateRequired("type", p.Type))
	text(c, "type", p.Type, maxShortLength)
	text(c, "size", p.Size, maxShortLength)
	c.Add(ValidateIntRange("case_pack_qty", p.CasePackQty, 0, maxCasePackQty))
	text(c, "label_orientation", p.LabelOrientation, maxShortLength)
	text(c, "notes", p.Notes, maxTextLength)
	return c.Errors()
}

// ValidateIngredient validates ingredient fields.
func ValidateIngredient(i types.Ingredient) []ValidationError {
	c := &Collector{}
	c.Add(ValidateRequired("name", i.Name))
	text(c, "name", i.Name, maxNameLength)
	text(c, "vendor_name", i.VendorName, maxNameLength)
	return c.Errors()
}

// ValidateDocument validates document fields.
func ValidateDocument(d types.Document) []ValidationError {
	c := &Collector{}
	c.Add(ValidateRequired("document_type", d.DocumentType))
	text(c, "document_type", d.DocumentType, maxShortLength)
	c.Add(ValidateRequired("file_url", d.FileURL))
	c.Add(ValidateURL("file_url", d.FileURL))
	return c.Errors()
}
