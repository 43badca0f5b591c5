package repository

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/edusync/platform-sync/internal/projection"
)

var (
	ErrNotFound = errors.New("platform document not found")
)

// Store is the document store contract used by the sync engine and the read path.
// Upsert fully replaces the document with the same id; DeleteByID is a no-op
// when the document is absent.
type Store interface {
	Upsert(ctx context.Context, doc *projection.PlatformDocument) error
	DeleteByID(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*projection.PlatformDocument, error)
	ListIDs(ctx context.Context) ([]string, error)
}

// MemoryRepo is an in-memory Store used by unit tests and local runs without Mongo.
type MemoryRepo struct {
	mu    sync.RWMutex
	store map[string]*projection.PlatformDocument
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{store: make(map[string]*projection.PlatformDocument)}
}

func (m *MemoryRepo) Upsert(ctx context.Context, doc *projection.PlatformDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[doc.ID] = cloneDocument(doc)
	return nil
}

func (m *MemoryRepo) Get(ctx context.Context, id string) (*projection.PlatformDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if d, ok := m.store[id]; ok {
		return cloneDocument(d), nil
	}
	return nil, ErrNotFound
}

func (m *MemoryRepo) ListIDs(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.store))
	for id := range m.store {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemoryRepo) DeleteByID(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.store, id)
	return nil
}

// Len returns the number of stored documents.
func (m *MemoryRepo) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.store)
}

// cloneDocument copies the document so callers never share slices with the store.
func cloneDocument(d *projection.PlatformDocument) *projection.PlatformDocument {
	out := &projection.PlatformDocument{ID: d.ID, Name: d.Name, Courses: make([]projection.CourseEmbed, len(d.Courses))}
	for i, c := range d.Courses {
		users := make([]projection.UserEmbed, len(c.EnrolledUsers))
		copy(users, c.EnrolledUsers)
		out.Courses[i] = projection.CourseEmbed{ID: c.ID, Title: c.Title, EnrolledUsers: users}
	}
	return out
}
