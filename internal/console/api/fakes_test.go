package api

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lexintake/console/internal/console"
)

// memStore is a small in-memory implementation of the console stores.
type memStore struct {
	mu        sync.Mutex
	intakes   map[uuid.UUID]console.IntakeRequest
	attorneys map[uuid.UUID]console.Attorney
	posts     map[uuid.UUID]console.Post
	smtp      *console.SMTPSettings
}

func newMemStore() *memStore {
	return &memStore{
		intakes:   map[uuid.UUID]console.IntakeRequest{},
		attorneys: map[uuid.UUID]console.Attorney{},
		posts:     map[uuid.UUID]console.Post{},
	}
}

func (m *memStore) CreateIntake(_ context.Context, r *console.IntakeRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.intakes[r.ID] = *r
	return nil
}

func (m *memStore) GetIntake(_ context.Context, id uuid.UUID) (*console.IntakeRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.intakes[id]
	if !ok {
		return nil, console.ErrNotFound
	}
	return &r, nil
}

func (m *memStore) ListIntakes(_ context.Context, f console.IntakeFilter) ([]console.IntakeRequest, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []console.IntakeRequest{}
	for _, r := range m.intakes {
		if f.Status == "" || r.Status == f.Status {
			out = append(out, r)
		}
	}
	total := len(out)
	start := min(f.Page.Offset(), total)
	end := min(start+f.Page.Limit(), total)
	return out[start:end], total, nil
}

func (m *memStore) UpdateIntake(_ context.Context, r *console.IntakeRequest, from console.IntakeStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.intakes[r.ID]
	if !ok {
		return console.ErrNotFound
	}
	if cur.Status != from {
		return console.ErrStaleStatus
	}
	m.intakes[r.ID] = *r
	return nil
}

func (m *memStore) DeleteIntake(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.intakes[id]; !ok {
		return console.ErrNotFound
	}
	delete(m.intakes, id)
	return nil
}

func (m *memStore) CountIntakesByStatus(context.Context) (map[console.IntakeStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[console.IntakeStatus]int{}
	for _, r := range m.intakes {
		out[r.Status]++
	}
	return out, nil
}

func (m *memStore) CreateAttorney(_ context.Context, a *console.Attorney) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.attorneys {
		if existing.Email == a.Email || existing.BarNumber == a.BarNumber {
			return console.ErrConflict
		}
	}
	m.attorneys[a.ID] = *a
	return nil
}

func (m *memStore) GetAttorney(_ context.Context, id uuid.UUID) (*console.Attorney, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attorneys[id]
	if !ok {
		return nil, console.ErrNotFound
	}
	return &a, nil
}

func (m *memStore) ListAttorneys(_ context.Context, status console.AttorneyStatus) ([]console.Attorney, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []console.Attorney{}
	for _, a := range m.attorneys {
		if status == "" || a.Status == status {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) SetAttorneyStatus(_ context.Context, id uuid.UUID, next console.AttorneyStatus, from []console.AttorneyStatus, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attorneys[id]
	if !ok {
		return console.ErrNotFound
	}
	if !slices.Contains(from, a.Status) {
		return console.ErrStaleStatus
	}
	a.Status, a.UpdatedAt = next, at
	m.attorneys[id] = a
	return nil
}

func (m *memStore) SetAttorneyPhoto(_ context.Context, id uuid.UUID, key string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attorneys[id]
	if !ok {
		return console.ErrNotFound
	}
	a.PhotoKey, a.UpdatedAt = key, at
	m.attorneys[id] = a
	return nil
}

func (m *memStore) CountAttorneysByStatus(context.Context) (map[console.AttorneyStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[console.AttorneyStatus]int{}
	for _, a := range m.attorneys {
		out[a.Status]++
	}
	return out, nil
}

func (m *memStore) savePost(p *console.Post) error {
	for _, existing := range m.posts {
		if existing.ID != p.ID && existing.Slug == p.Slug {
			return console.ErrConflict
		}
	}
	m.posts[p.ID] = *p
	return nil
}

func (m *memStore) CreatePost(_ context.Context, p *console.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.savePost(p)
}

func (m *memStore) GetPost(_ context.Context, id uuid.UUID) (*console.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return nil, console.ErrNotFound
	}
	return &p, nil
}

func (m *memStore) GetPostBySlug(_ context.Context, slug string) (*console.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.posts {
		if p.Slug == slug {
			return &p, nil
		}
	}
	return nil, console.ErrNotFound
}

func (m *memStore) ListPosts(_ context.Context, publishedOnly bool) ([]console.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []console.Post{}
	for _, p := range m.posts {
		if !publishedOnly || p.Published {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) UpdatePost(_ context.Context, p *console.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.posts[p.ID]
	if !ok {
		return console.ErrNotFound
	}
	cur.Title, cur.Slug, cur.Body, cur.UpdatedAt = p.Title, p.Slug, p.Body, p.UpdatedAt
	return m.savePost(&cur)
}

func (m *memStore) SetPostPublished(_ context.Context, id uuid.UUID, published bool, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return console.ErrNotFound
	}
	p.Published, p.UpdatedAt = published, at
	if published && p.PublishedAt == nil {
		p.PublishedAt = &at
	}
	m.posts[id] = p
	return nil
}

func (m *memStore) SetPostCover(_ context.Context, id uuid.UUID, key string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return console.ErrNotFound
	}
	p.CoverImageKey, p.UpdatedAt = key, at
	m.posts[id] = p
	return nil
}

func (m *memStore) DeletePost(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.posts[id]; !ok {
		return console.ErrNotFound
	}
	delete(m.posts, id)
	return nil
}

func (m *memStore) CountPosts(context.Context) (console.PostCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var c console.PostCounts
	for _, p := range m.posts {
		c.Total++
		if p.Published {
			c.Published++
		}
	}
	return c, nil
}

func (m *memStore) GetSMTPSettings(context.Context) (*console.SMTPSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.smtp == nil {
		return nil, console.ErrNotFound
	}
	cp := *m.smtp
	return &cp, nil
}

func (m *memStore) SaveSMTPSettings(_ context.Context, s *console.SMTPSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.smtp = &cp
	return nil
}
