package onboarding

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/hyperengineering/onboard/internal/types"
)

// Attachment is a local file to upload as a supporting document.
type Attachment struct {
	DocumentType string `yaml:"document_type"`
	Path         string `yaml:"path"`
}

// Form is an onboarding as written in a YAML file: the parent fields plus
// the rows of every category.
type Form struct {
	CustomerID     string `yaml:"customer_id"`
	OnboardingType string `yaml:"onboarding_type"`
	Notes          string `yaml:"notes"`

	Products    []types.Product    `yaml:"products"`
	Packaging   []types.Packaging  `yaml:"packaging"`
	Ingredients []types.Ingredient `yaml:"ingredients"`
	Documents   []types.Document   `yaml:"documents"`
	Attachments []Attachment       `yaml:"attachments"`
}

// LoadForm reads a form file. Unknown keys are rejected so that typos do
// not silently drop data. Relative attachment paths resolve against the
// form's directory.
func LoadForm(path string) (*Form, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading form: %w", err)
	}

	var f Form
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parsing form %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	for i, a := range f.Attachments {
		if a.Path != "" && !filepath.IsAbs(a.Path) {
			f.Attachments[i].Path = filepath.Join(dir, a.Path)
		}
	}
	return &f, nil
}

// Header returns the parent fields of the form.
func (f *Form) Header() types.NewOnboarding {
	return types.NewOnboarding{
		CustomerID:     f.CustomerID,
		OnboardingType: f.OnboardingType,
		Notes:          f.Notes,
	}
}

// Rows returns the number of child rows the form would add, attachments
// included.
func (f *Form) Rows() int {
	return len(f.Products) + len(f.Packaging) + len(f.Ingredients) + len(f.Documents) + len(f.Attachments)
}

// Fill adds every row of f to the session. Invalid rows are skipped and
// reported together; valid rows are added regardless.
func (s *Session) Fill(ctx context.Context, f *Form) error {
	var errs []error
	note := func(category types.Category, i int, err error) {
		if err != nil {
			errs = append(errs, fmt.Errorf("%s[%d]: %w", category, i, err))
		}
	}

	for i, p := range f.Products {
		_, err := s.Products.Add(ctx, p)
		note(types.CategoryProducts, i, err)
	}
	for i, p := range f.Packaging {
		_, err := s.Packaging.Add(ctx, p)
		note(types.CategoryPackaging, i, err)
	}
	for i, in := range f.Ingredients {
		_, err := s.Ingredients.Add(ctx, in)
		note(types.CategoryIngredients, i, err)
	}
	for i, d := range f.Documents {
		_, err := s.Documents.Add(ctx, d)
		note(types.CategoryDocuments, i, err)
	}
	for i, a := range f.Attachments {
		_, err := s.AttachDocument(ctx, a.DocumentType, a.Path)
		if err != nil {
			errs = append(errs, fmt.Errorf("attachments[%d]: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
