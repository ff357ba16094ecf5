package onboarding

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/hyperengineering/onboard/internal/types"
	"github.com/hyperengineering/onboard/pkg/childsync"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memRemote is an in-memory childsync.Remote.
type memRemote[F any] struct {
	mu         sync.Mutex
	next       int
	rows       map[string][]childsync.ServerRecord[F]
	createErr  error
	listErr    error
	creates    int
	createdFor []string
}

func newMemRemote[F any]() *memRemote[F] {
	return &memRemote[F]{rows: make(map[string][]childsync.ServerRecord[F])}
}

func (m *memRemote[F]) setCreateErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createErr = err
}

func (m *memRemote[F]) seed(parentID string, fields F) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	id := fmt.Sprintf("srv-%d", m.next)
	m.rows[parentID] = append(m.rows[parentID], childsync.ServerRecord[F]{ID: id, Fields: fields})
	return id
}

func (m *memRemote[F]) count(parentID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows[parentID])
}

func (m *memRemote[F]) List(ctx context.Context, parentID string) ([]childsync.ServerRecord[F], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	return append([]childsync.ServerRecord[F](nil), m.rows[parentID]...), nil
}

func (m *memRemote[F]) Create(ctx context.Context, parentID string, fields F) (childsync.ServerRecord[F], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	if m.createErr != nil {
		return childsync.ServerRecord[F]{}, m.createErr
	}
	m.next++
	rec := childsync.ServerRecord[F]{ID: fmt.Sprintf("srv-%d", m.next), Fields: fields}
	m.rows[parentID] = append(m.rows[parentID], rec)
	m.createdFor = append(m.createdFor, parentID)
	return rec, nil
}

func (m *memRemote[F]) Update(ctx context.Context, serverID string, fields F) (childsync.ServerRecord[F], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for parent, rows := range m.rows {
		for i, r := range rows {
			if r.ID == serverID {
				m.rows[parent][i].Fields = fields
				return m.rows[parent][i], nil
			}
		}
	}
	return childsync.ServerRecord[F]{}, childsync.ErrNotFound
}

func (m *memRemote[F]) Delete(ctx context.Context, serverID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for parent, rows := range m.rows {
		for i, r := range rows {
			if r.ID == serverID {
				m.rows[parent] = append(rows[:i], rows[i+1:]...)
				return nil
			}
		}
	}
	return childsync.ErrNotFound
}

// fakeBackend records parent operations.
type fakeBackend struct {
	mu        sync.Mutex
	createErr error
	updateErr error
	created   []types.NewOnboarding
	updates   []types.OnboardingPatch
}

func (b *fakeBackend) CreateOnboarding(ctx context.Context, in types.NewOnboarding) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.createErr != nil {
		return "", b.createErr
	}
	b.created = append(b.created, in)
	return fmt.Sprintf("ob-%d", len(b.created)), nil
}

func (b *fakeBackend) UpdateOnboarding(ctx context.Context, id string, patch types.OnboardingPatch) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.updateErr != nil {
		return "", b.updateErr
	}
	b.updates = append(b.updates, patch)
	return id, nil
}

type fakeRemotes struct {
	products    *memRemote[types.Product]
	packaging   *memRemote[types.Packaging]
	ingredients *memRemote[types.Ingredient]
	documents   *memRemote[types.Document]
}

func newFakeRemotes() *fakeRemotes {
	return &fakeRemotes{
		products:    newMemRemote[types.Product](),
		packaging:   newMemRemote[types.Packaging](),
		ingredients: newMemRemote[types.Ingredient](),
		documents:   newMemRemote[types.Document](),
	}
}

func (f *fakeRemotes) remotes() Remotes {
	return Remotes{
		Products:    f.products,
		Packaging:   f.packaging,
		Ingredients: f.ingredients,
		Documents:   f.documents,
	}
}
