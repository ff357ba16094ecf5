package childsync

import (
	"context"
	"fmt"
	"sync"
)

type ingredient struct {
	Name               string
	VendorName         string
	ProvidedByCustomer bool
}

// mockRemote is an in-memory Remote with call recording and failure injection.
type mockRemote struct {
	mu sync.Mutex

	rows    map[string][]ServerRecord[ingredient] // parentID -> rows
	nextID  int
	idFunc  func() string
	listErr error

	// createErrs are consumed one per Create call; nil entries succeed.
	createErrs []error
	updateErr  error
	deleteErr  error

	// createGate, when set, blocks Create until it is closed.
	createGate    chan struct{}
	createStarted chan string
	// commitBeforeGate stores the row before blocking on createGate, so the
	// server has it while the caller still waits for the response.
	commitBeforeGate bool

	createCalls []string // parent ids
	updateCalls []string // server ids
	deleteCalls []string // server ids
	listCalls   int
}

func newMockRemote() *mockRemote {
	return &mockRemote{rows: make(map[string][]ServerRecord[ingredient])}
}

func (m *mockRemote) List(ctx context.Context, parentID string) ([]ServerRecord[ingredient], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	return append([]ServerRecord[ingredient](nil), m.rows[parentID]...), nil
}

func (m *mockRemote) Create(ctx context.Context, parentID string, fields ingredient) (ServerRecord[ingredient], error) {
	m.mu.Lock()
	m.createCalls = append(m.createCalls, parentID)
	gate := m.createGate
	started := m.createStarted
	commitFirst := m.commitBeforeGate
	var err error
	if len(m.createErrs) > 0 {
		err = m.createErrs[0]
		m.createErrs = m.createErrs[1:]
	}
	m.mu.Unlock()

	var rec ServerRecord[ingredient]
	if commitFirst && err == nil {
		rec = m.commit(parentID, fields)
	}
	if started != nil {
		started <- parentID
	}
	if gate != nil {
		<-gate
	}
	if err != nil {
		return ServerRecord[ingredient]{}, err
	}
	if !commitFirst {
		rec = m.commit(parentID, fields)
	}
	return rec, nil
}

func (m *mockRemote) commit(parentID string, fields ingredient) ServerRecord[ingredient] {
	m.mu.Lock()
	defer m.mu.Unlock()
	var id string
	if m.idFunc != nil {
		id = m.idFunc()
	} else {
		m.nextID++
		id = fmt.Sprintf("srv-%d", m.nextID)
	}
	rec := ServerRecord[ingredient]{ID: id, Fields: fields}
	m.rows[parentID] = append(m.rows[parentID], rec)
	return rec
}

func (m *mockRemote) Update(ctx context.Context, serverID string, fields ingredient) (ServerRecord[ingredient], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls = append(m.updateCalls, serverID)
	if m.updateErr != nil {
		return ServerRecord[ingredient]{}, m.updateErr
	}
	for parentID, rows := range m.rows {
		for i, r := range rows {
			if r.ID == serverID {
				m.rows[parentID][i].Fields = fields
				return m.rows[parentID][i], nil
			}
		}
	}
	return ServerRecord[ingredient]{}, ErrNotFound
}

func (m *mockRemote) Delete(ctx context.Context, serverID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteCalls = append(m.deleteCalls, serverID)
	if m.deleteErr != nil {
		return m.deleteErr
	}
	for parentID, rows := range m.rows {
		for i, r := range rows {
			if r.ID == serverID {
				m.rows[parentID] = append(rows[:i], rows[i+1:]...)
				return nil
			}
		}
	}
	return ErrNotFound
}

func (m *mockRemote) calls() (create, update, del, list int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.createCalls), len(m.updateCalls), len(m.deleteCalls), m.listCalls
}

func (m *mockRemote) seed(parentID string, recs ...ServerRecord[ingredient]) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[parentID] = append(m.rows[parentID], recs...)
}

// sequentialKeys returns a deterministic local key generator.
func sequentialKeys() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("lk-%d", n)
	}
}
