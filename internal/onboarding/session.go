// Package onboarding runs one onboarding form: four child categories that
// can be filled in before the onboarding itself is saved, all bound to the
// same parent.
package onboarding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/hyperengineering/onboard/internal/client"
	"github.com/hyperengineering/onboard/internal/filestore"
	"github.com/hyperengineering/onboard/internal/types"
	"github.com/hyperengineering/onboard/pkg/childsync"
)

// Backend persists the onboarding itself.
type Backend interface {
	CreateOnboarding(ctx context.Context, in types.NewOnboarding) (string, error)
	UpdateOnboarding(ctx context.Context, id string, patch types.OnboardingPatch) (string, error)
}

// Remotes holds the remote store of every category.
type Remotes struct {
	Products    childsync.Remote[types.Product]
	Packaging   childsync.Remote[types.Packaging]
	Ingredients childsync.Remote[types.Ingredient]
	Documents   childsync.Remote[types.Document]
}

// RemotesFor returns HTTP-backed remotes for every category.
func RemotesFor(c *client.Client) Remotes {
	return Remotes{
		Products:    client.NewCategory[types.Product](c, types.CategoryProducts),
		Packaging:   client.NewCategory[types.Packaging](c, types.CategoryPackaging),
		Ingredients: client.NewCategory[types.Ingredient](c, types.CategoryIngredients),
		Documents:   client.NewCategory[types.Document](c, types.CategoryDocuments),
	}
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithFileStore enables AttachDocument.
func WithFileStore(fs filestore.Store) Option {
	return func(s *Session) {
		s.files = fs
	}
}

// Session is one onboarding form. The category editors are usable from the
// start; their rows stay pending until SaveDraft or Submit creates the
// onboarding.
type Session struct {
	Products    *childsync.Editor[types.Product]
	Packaging   *childsync.Editor[types.Packaging]
	Ingredients *childsync.Editor[types.Ingredient]
	Documents   *childsync.Editor[types.Document]

	backend Backend
	parent  *childsync.Parent
	files   filestore.Store
	logger  *slog.Logger

	// draftKey groups uploads made before the onboarding has an id.
	draftKey string

	mu     sync.Mutex
	header types.NewOnboarding
}

// NewSession creates a form for header. Nothing is sent to the backend until
// SaveDraft, Submit or Open.
func NewSession(backend Backend, remotes Remotes, header types.NewOnboarding, opts ...Option) *Session {
	s := &Session{
		backend:  backend,
		parent:   childsync.NewParent(),
		logger:   slog.Default(),
		draftKey: "draft-" + ulid.Make().String(),
		header:   header,
	}
	for _, opt := range opts {
		opt(s)
	}

	eo := []childsync.Option{childsync.WithLogger(s.logger)}
	s.Products = childsync.NewEditor(string(types.CategoryProducts), s.parent, remotes.Products, validateProduct, eo...)
	s.Packaging = childsync.NewEditor(string(types.CategoryPackaging), s.parent, remotes.Packaging, validatePackaging, eo...)
	s.Ingredients = childsync.NewEditor(string(types.CategoryIngredients), s.parent, remotes.Ingredients, validateIngredient, eo...)
	s.Documents = childsync.NewEditor(string(types.CategoryDocuments), s.parent, remotes.Documents, validateDocument, eo...)
	return s
}

// ID returns the onboarding id once it exists.
func (s *Session) ID() (string, bool) {
	return s.parent.ID()
}

// Parent exposes the shared parent, mainly for waiting on Created.
func (s *Session) Parent() *childsync.Parent {
	return s.parent
}

// Open binds the session to an onboarding that already exists, loading its
// rows and draining anything entered so far.
func (s *Session) Open(ctx context.Context, id string) error {
	if err := s.parent.Adopt(ctx, id); err != nil {
		return fmt.Errorf("open onboarding %s: %w", id, err)
	}
	s.logger.Info("onboarding opened", "component", "onboarding", "parent_id", id)
	return nil
}

// SaveDraft creates the onboarding as a draft if it does not exist yet; on
// creation every category fetches and drains its pending rows. On later calls
// it re-attempts whatever is still pending. Row sync failures do not fail
// SaveDraft; see Summary.
func (s *Session) SaveDraft(ctx context.Context) (string, error) {
	id, created, err := s.ensureParent(ctx, types.StatusDraft)
	if err != nil {
		return "", err
	}
	if !created {
		s.SyncAll(ctx)
	}
	return id, nil
}

// Submit marks the onboarding submitted, creating it first if needed. Still
// pending rows are re-attempted before the status changes; rows that keep
// failing do not block submission.
func (s *Session) Submit(ctx context.Context) (string, error) {
	id, created, err := s.ensureParent(ctx, types.StatusSubmitted)
	if err != nil {
		return "", err
	}
	if created {
		return id, nil
	}

	if _, err := s.SyncAll(ctx); err != nil {
		s.logger.Warn("submitting with unsynced rows",
			"component", "onboarding",
			"parent_id", id,
			"error", err,
		)
	}

	status := types.StatusSubmitted
	if _, err := s.backend.UpdateOnboarding(ctx, id, types.OnboardingPatch{Status: &status}); err != nil {
		return id, fmt.Errorf("submit onboarding %s: %w", id, err)
	}
	s.logger.Info("onboarding submitted", "component", "onboarding", "parent_id", id)
	return id, nil
}

// ensureParent performs the parent transition with the given initial status.
// created reports whether this call performed it.
func (s *Session) ensureParent(ctx context.Context, status types.OnboardingStatus) (id string, created bool, err error) {
	s.mu.Lock()
	in := s.header
	s.mu.Unlock()
	in.Status = status

	id, err = s.parent.Create(ctx, func(ctx context.Context) (string, error) {
		return s.backend.CreateOnboarding(ctx, in)
	})
	switch {
	case errors.Is(err, childsync.ErrParentAlreadyCreated):
		return id, false, nil
	case err != nil:
		return "", false, fmt.Errorf("create onboarding: %w", err)
	}

	s.logger.Info("onboarding created",
		"component", "onboarding",
		"action", "parent_created",
		"parent_id", id,
		"status", status,
	)
	return id, true, nil
}

// SetNotes changes the notes sent when the onboarding is created, or updates
// them remotely when it already exists.
func (s *Session) SetNotes(ctx context.Context, notes string) error {
	s.mu.Lock()
	s.header.Notes = notes
	s.mu.Unlock()

	id, ok := s.parent.ID()
	if !ok {
		return nil
	}
	if _, err := s.backend.UpdateOnboarding(ctx, id, types.OnboardingPatch{Notes: &notes}); err != nil {
		return fmt.Errorf("update notes of %s: %w", id, err)
	}
	return nil
}

// categoryJob is one category's share of a session-wide pass.
type categoryJob struct {
	category types.Category
	sync     func(ctx context.Context) childsync.SyncStats
	refresh  func(ctx context.Context) error
	pending  func() int
	total    func() int
}

func job[F any](category types.Category, e *childsync.Editor[F]) categoryJob {
	return categoryJob{
		category: category,
		sync:     e.Sync,
		refresh:  e.Refresh,
		pending:  func() int { return len(e.Pending()) },
		total:    func() int { return len(e.Records()) },
	}
}

func (s *Session) jobs() []categoryJob {
	return []categoryJob{
		job(types.CategoryProducts, s.Products),
		job(types.CategoryPackaging, s.Packaging),
		job(types.CategoryIngredients, s.Ingredients),
		job(types.CategoryDocuments, s.Documents),
	}
}

// SyncAll runs one coordinator pass in every category concurrently. The
// returned error joins one ErrUnsynced per category with failed creates.
func (s *Session) SyncAll(ctx context.Context) (map[types.Category]childsync.SyncStats, error) {
	jobs := s.jobs()
	stats := make([]childsync.SyncStats, len(jobs))

	var g errgroup.Group
	for i, j := range jobs {
		g.Go(func() error {
			stats[i] = j.sync(ctx)
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[types.Category]childsync.SyncStats, len(jobs))
	var errs []error
	for i, j := range jobs {
		out[j.category] = stats[i]
		if stats[i].Failed > 0 {
			errs = append(errs, fmt.Errorf("%s: %d failed: %w", j.category, stats[i].Failed, ErrUnsynced))
		}
	}
	return out, errors.Join(errs...)
}

// Refresh merges the server's rows into every category concurrently.
func (s *Session) Refresh(ctx context.Context) error {
	if _, ok := s.parent.ID(); !ok {
		return childsync.ErrParentNotCreated
	}

	jobs := s.jobs()
	errs := make([]error, len(jobs))

	g, ctx := errgroup.WithContext(ctx)
	for i, j := range jobs {
		g.Go(func() error {
			if err := j.refresh(ctx); err != nil {
				errs[i] = fmt.Errorf("refresh %s: %w", j.category, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// NeedsSync reports whether any category has pending rows a coordinator pass
// would pick up.
func (s *Session) NeedsSync() bool {
	return s.Products.NeedsSync() ||
		s.Packaging.NeedsSync() ||
		s.Ingredients.NeedsSync() ||
		s.Documents.NeedsSync()
}

// CategorySummary counts the rows of one category.
type CategorySummary struct {
	Category  types.Category `json:"category"`
	Pending   int            `json:"pending"`
	Confirmed int            `json:"confirmed"`
}

// Summary describes the session's sync state.
type Summary struct {
	OnboardingID string            `json:"onboarding_id,omitempty"`
	Categories   []CategorySummary `json:"categories"`
	Pending      int               `json:"pending"`
	Confirmed    int               `json:"confirmed"`
}

// Summary counts pending and confirmed rows per category.
func (s *Session) Summary() Summary {
	id, _ := s.parent.ID()
	sum := Summary{OnboardingID: id}
	for _, j := range s.jobs() {
		pending := j.pending()
		confirmed := j.total() - pending
		sum.Categories = append(sum.Categories, CategorySummary{
			Category:  j.category,
			Pending:   pending,
			Confirmed: confirmed,
		})
		sum.Pending += pending
		sum.Confirmed += confirmed
	}
	return sum
}

// AttachDocument uploads the file at path and adds a document row pointing
// at it. Uploads made before the onboarding exists are grouped under a
// per-session draft key.
func (s *Session) AttachDocument(ctx context.Context, documentType, path string) (childsync.Record[types.Document], error) {
	if s.files == nil {
		return childsync.Record[types.Document]{}, ErrNoFileStore
	}

	folder, ok := s.parent.ID()
	if !ok {
		folder = s.draftKey
	}
	url, err := s.files.Put(ctx, folder, path)
	if err != nil {
		return childsync.Record[types.Document]{}, fmt.Errorf("attach %s: %w", path, err)
	}

	return s.Documents.Add(ctx, types.Document{DocumentType: documentType, FileURL: url})
}
