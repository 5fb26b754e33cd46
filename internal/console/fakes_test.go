package console

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/lexintake/console/pkg/email"
	"github.com/lexintake/console/pkg/objectstore"
	"github.com/lexintake/console/pkg/objectstore/localfs"
	"github.com/lexintake/console/pkg/observability/logger"
)

type memStore struct {
	mu        sync.Mutex
	intakes   map[uuid.UUID]IntakeRequest
	attorneys map[uuid.UUID]Attorney
	posts     map[uuid.UUID]Post
	smtp      *SMTPSettings
	failWith  error
}

func newMemStore() *memStore {
	return &memStore{
		intakes:   map[uuid.UUID]IntakeRequest{},
		attorneys: map[uuid.UUID]Attorney{},
		posts:     map[uuid.UUID]Post{},
	}
}

func (m *memStore) CreateIntake(_ context.Context, req *IntakeRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	m.intakes[req.ID] = *req
	return nil
}

func (m *memStore) GetIntake(_ context.Context, id uuid.UUID) (*IntakeRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.intakes[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &req, nil
}

func (m *memStore) ListIntakes(_ context.Context, filter IntakeFilter) ([]IntakeRequest, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []IntakeRequest
	for _, req := range m.intakes {
		if filter.Status == "" || req.Status == filter.Status {
			all = append(all, req)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	start := min(filter.Page.Offset(), len(all))
	end := min(start+filter.Page.Limit(), len(all))
	return all[start:end], len(all), nil
}

func (m *memStore) UpdateIntake(_ context.Context, req *IntakeRequest, from IntakeStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.intakes[req.ID]
	if !ok {
		return ErrNotFound
	}
	if cur.Status != from {
		return ErrStaleStatus
	}
	m.intakes[req.ID] = *req
	return nil
}

func (m *memStore) DeleteIntake(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.intakes[id]; !ok {
		return ErrNotFound
	}
	delete(m.intakes, id)
	return nil
}

func (m *memStore) CountIntakesByStatus(_ context.Context) (map[IntakeStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[IntakeStatus]int{}
	for _, req := range m.intakes {
		out[req.Status]++
	}
	return out, nil
}

func (m *memStore) CreateAttorney(_ context.Context, a *Attorney) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.attorneys {
		if existing.Email == a.Email || existing.BarNumber == a.BarNumber {
			return ErrConflict
		}
	}
	m.attorneys[a.ID] = *a
	return nil
}

func (m *memStore) GetAttorney(_ context.Context, id uuid.UUID) (*Attorney, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attorneys[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (m *memStore) ListAttorneys(_ context.Context, status AttorneyStatus) ([]Attorney, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Attorney
	for _, a := range m.attorneys {
		if status == "" || a.Status == status {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) SetAttorneyStatus(_ context.Context, id uuid.UUID, next AttorneyStatus, from []AttorneyStatus, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attorneys[id]
	if !ok {
		return ErrNotFound
	}
	if !slices.Contains(from, a.Status) {
		return ErrStaleStatus
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
		return ErrNotFound
	}
	a.PhotoKey, a.UpdatedAt = key, at
	m.attorneys[id] = a
	return nil
}

func (m *memStore) CountAttorneysByStatus(_ context.Context) (map[AttorneyStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[AttorneyStatus]int{}
	for _, a := range m.attorneys {
		out[a.Status]++
	}
	return out, nil
}

func (m *memStore) slugTaken(p *Post) bool {
	for _, existing := range m.posts {
		if existing.ID != p.ID && existing.Slug == p.Slug {
			return true
		}
	}
	return false
}

func (m *memStore) CreatePost(_ context.Context, p *Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.slugTaken(p) {
		return ErrConflict
	}
	m.posts[p.ID] = *p
	return nil
}

func (m *memStore) GetPost(_ context.Context, id uuid.UUID) (*Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (m *memStore) GetPostBySlug(_ context.Context, slug string) (*Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.posts {
		if p.Slug == slug {
			return &p, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) ListPosts(_ context.Context, publishedOnly bool) ([]Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Post
	for _, p := range m.posts {
		if !publishedOnly || p.Published {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) UpdatePost(_ context.Context, p *Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.posts[p.ID]
	if !ok {
		return ErrNotFound
	}
	if m.slugTaken(p) {
		return ErrConflict
	}
	cur.Title, cur.Slug, cur.Body, cur.UpdatedAt = p.Title, p.Slug, p.Body, p.UpdatedAt
	m.posts[p.ID] = cur
	return nil
}

func (m *memStore) SetPostPublished(_ context.Context, id uuid.UUID, published bool, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return ErrNotFound
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
		return ErrNotFound
	}
	p.CoverImageKey, p.UpdatedAt = key, at
	m.posts[id] = p
	return nil
}

func (m *memStore) DeletePost(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.posts[id]; !ok {
		return ErrNotFound
	}
	delete(m.posts, id)
	return nil
}

func (m *memStore) CountPosts(_ context.Context) (PostCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var c PostCounts
	for _, p := range m.posts {
		c.Total++
		if p.Published {
			c.Published++
		}
	}
	return c, nil
}

func (m *memStore) GetSMTPSettings(_ context.Context) (*SMTPSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.smtp == nil {
		return nil, ErrNotFound
	}
	cp := *m.smtp
	return &cp, nil
}

func (m *memStore) SaveSMTPSettings(_ context.Context, s *SMTPSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.smtp = &cp
	return nil
}

type staticSignal bool

func (s staticSignal) IsManagedEnvironment() bool { return bool(s) }

// newLocalStorage returns a selector that picks a filesystem backend under a temp dir.
func newLocalStorage(t *testing.T) *objectstore.Selector {
	t.Helper()
	root := t.TempDir()
	sel, err := objectstore.NewSelector(staticSignal(false),
		func(context.Context) (objectstore.Service, error) {
			return nil, errors.New("cloud storage is not available in tests")
		},
		func(context.Context) (objectstore.Service, error) {
			adapter, err := localfs.NewAdapter(localfs.Config{Root: root}, logger.NewNop())
			if err != nil {
				return nil, err
			}
			return adapter, nil
		},
	)
	if err != nil {
		t.Fatalf("NewSelector() error = %v", err)
	}
	t.Cleanup(func() { _ = sel.Close() })
	return sel
}

// brokenStorage always fails to construct its backend.
type brokenStorage struct{}

func (brokenStorage) Get(context.Context) (objectstore.Service, error) {
	return nil, objectstore.ErrStorageUnavailable
}
func (brokenStorage) Variant() objectstore.Variant { return "" }
func (brokenStorage) State() objectstore.State     { return objectstore.StateUnselected }

type recordingNotifier struct {
	mu    sync.Mutex
	calls []uuid.UUID
	err   error
}

func (r *recordingNotifier) NotifyAssignment(_ context.Context, req IntakeRequest, _ Attorney) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, req.ID)
	return r.err
}

type recordingMailer struct {
	mu     sync.Mutex
	cfg    email.SMTPConfig
	sent   []email.Message
	err    error
	closed bool
}

func (r *recordingMailer) factory(cfg email.SMTPConfig, _ logger.Logger) (email.Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg = cfg
	return r, nil
}

func (r *recordingMailer) Send(_ context.Context, msg email.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

func (r *recordingMailer) Close() error {
	r.closed = true
	return nil
}

func wantKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if got := KindOf(err); got != kind {
		t.Fatalf("KindOf(%v) = %s, want %s", err, got, kind)
	}
}

func wantCode(t *testing.T, err error, code string) {
	t.Helper()
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("expected *Error, got %T (%v)", err, err)
	}
	if e.Code != code {
		t.Fatalf("code = %q, want %q", e.Code, code)
	}
}

var (
	pngImage  = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)
	jpegImage = append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, make([]byte, 32)...)
)

func hasString(values []string, v string) bool {
	return slices.Contains(values, v)
}
