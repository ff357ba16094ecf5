package childsync

import (
	"context"
	"fmt"
	"sync"
)

// ParentObserver is notified once when the parent id becomes known.
type ParentObserver func(ctx context.Context, parentID string)

// Parent owns the single transition of the parent id from absent to present.
// Every category of a form observes the same Parent.
type Parent struct {
	// createMu serializes persist calls so a double save creates one parent.
	createMu sync.Mutex

	mu        sync.Mutex
	id        string
	created   chan struct{}
	observers []ParentObserver
}

// NewParent returns a Parent in the uncreated state.
func NewParent() *Parent {
	return &Parent{created: make(chan struct{})}
}

// ID returns the parent id and whether it is known.
func (p *Parent) ID() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.id, p.id != ""
}

// Created returns a channel closed when the parent id becomes known.
func (p *Parent) Created() <-chan struct{} {
	return p.created
}

// Observe registers fn. If the parent already exists fn is not called.
func (p *Parent) Observe(fn ParentObserver) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, fn)
}

// Create runs persist and adopts the id it returns. When the parent already
// exists persist is not called and ErrParentAlreadyCreated is returned along
// with the existing id. Observers run concurrently and Create waits for them.
func (p *Parent) Create(ctx context.Context, persist func(ctx context.Context) (string, error)) (string, error) {
	p.createMu.Lock()
	defer p.createMu.Unlock()

	if id, ok := p.ID(); ok {
		return id, ErrParentAlreadyCreated
	}

	id, err := persist(ctx)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", fmt.Errorf("persist parent: empty id")
	}

	if err := p.transition(ctx, id); err != nil {
		return "", err
	}
	return id, nil
}

// Adopt moves the Parent to an id that already exists remotely, such as when
// a saved draft is reopened.
func (p *Parent) Adopt(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("adopt parent: empty id")
	}
	p.createMu.Lock()
	defer p.createMu.Unlock()
	return p.transition(ctx, id)
}

func (p *Parent) transition(ctx context.Context, id string) error {
	p.mu.Lock()
	if p.id != "" {
		existing := p.id
		p.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrParentAlreadyCreated, existing)
	}
	p.id = id
	close(p.created)
	observers := append([]ParentObserver(nil), p.observers...)
	p.mu.Unlock()

	var wg sync.WaitGroup
	for _, fn := range observers {
		wg.Add(1)
		go func(fn ParentObserver) {
			defer wg.Done()
			fn(ctx, id)
		}(fn)
	}
	wg.Wait()
	return nil
}
