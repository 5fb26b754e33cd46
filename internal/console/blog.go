package console

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/lexintake/console/pkg/observability/logger"
)

const (
	maxSlugLength     = 80
	maxSlugAttempts   = 10
	maxTitleLength    = 200
	maxPostBodyLength = 100_000
)

// Post is a blog article.
type Post struct {
	ID            uuid.UUID  `json:"id"`
	Title         string     `json:"title"`
	Slug          string     `json:"slug"`
	Body          string     `json:"body"`
	CoverImageKey string     `json:"cover_image_key,omitempty"`
	Published     bool       `json:"published"`
	PublishedAt   *time.Time `json:"published_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// PostInput creates or replaces a post's editable fields. An empty Slug is derived
// from Title.
type PostInput struct {
	Title string `json:"title"`
	Slug  string `json:"slug"`
	Body  string `json:"body"`
}

// Validate checks the editable fields.
func (in PostInput) Validate() error {
	switch {
	case strings.TrimSpace(in.Title) == "":
		return invalid("title", "title is required")
	case utf8.RuneCountInString(in.Title) > maxTitleLength:
		return invalid("title", "title must be at most 200 characters")
	case len(in.Body) > maxPostBodyLength:
		return invalid("body", "body is too long")
	}
	if in.Slug != "" && Slugify(in.Slug) != in.Slug {
		return invalid("slug", "slug may only contain lowercase letters, digits and single hyphens")
	}
	return nil
}

// PostCounts summarises the blog for the dashboard.
type PostCounts struct {
	Total     int `json:"total"`
	Published int `json:"published"`
}

// PostStore persists posts. CreatePost and UpdatePost return ErrConflict on a taken slug.
// UpdatePost writes the content columns only, so it never races a publish or a cover upload.
type PostStore interface {
	CreatePost(ctx context.Context, p *Post) error
	GetPost(ctx context.Context, id uuid.UUID) (*Post, error)
	GetPostBySlug(ctx context.Context, slug string) (*Post, error)
	ListPosts(ctx context.Context, publishedOnly bool) ([]Post, error)
	UpdatePost(ctx context.Context, p *Post) error
	SetPostPublished(ctx context.Context, id uuid.UUID, published bool, at time.Time) error
	SetPostCover(ctx context.Context, id uuid.UUID, key string, at time.Time) error
	DeletePost(ctx context.Context, id uuid.UUID) error
	CountPosts(ctx context.Context) (PostCounts, error)
}

// BlogService manages blog posts and their cover images.
type BlogService struct {
	store PostStore
	media *MediaService
	log   logger.Logger
	now   func() time.Time
}

// NewBlogService creates the service.
func NewBlogService(store PostStore, media *MediaService, log logger.Logger) *BlogService {
	if log == nil {
		log = logger.NewNop()
	}
	return &BlogService{store: store, media: media, log: log, now: time.Now}
}

// Slugify lowercases s and joins its letter and digit runs with single hyphens.
// Non-ASCII letters are dropped.
func Slugify(s string) string {
	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(s) {
		if r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}
	slug := b.String()
	if len(slug) > maxSlugLength {
		slug = strings.TrimRight(slug[:maxSlugLength], "-")
	}
	return slug
}

// Create stores a draft post. A derived slug that is taken gets a numeric suffix; an
// explicit slug that is taken is a conflict.
func (s *BlogService) Create(ctx context.Context, in PostInput) (*Post, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	p := &Post{
		ID:        uuid.New(),
		Title:     strings.TrimSpace(in.Title),
		Body:      in.Body,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.saveWithSlug(ctx, p, in.Slug, s.store.CreatePost); err != nil {
		return nil, err
	}
	s.log.WithContext(ctx).Info("post created", "post_id", p.ID, "slug", p.Slug)
	return p, nil
}

// Update replaces title and body, and the slug when one is given.
func (s *BlogService) Update(ctx context.Context, id uuid.UUID, in PostInput) (*Post, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Title = strings.TrimSpace(in.Title)
	p.Body = in.Body
	p.UpdatedAt = s.now().UTC()

	// an empty slug keeps the current one
	slug := in.Slug
	if slug == "" {
		slug = p.Slug
	}
	if err := s.saveWithSlug(ctx, p, slug, s.store.UpdatePost); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *BlogService) saveWithSlug(ctx context.Context, p *Post, explicit string, save func(context.Context, *Post) error) error {
	if explicit != "" {
		p.Slug = explicit
		if err := save(ctx, p); err != nil {
			return postSaveErr(err)
		}
		return nil
	}

	base := Slugify(p.Title)
	if base == "" {
		return invalid("slug", "title must contain letters or digits to derive a slug")
	}
	for attempt := 1; attempt <= maxSlugAttempts; attempt++ {
		p.Slug = base
		if attempt > 1 {
			suffix := "-" + strconv.Itoa(attempt)
			p.Slug = strings.TrimRight(truncate(base, maxSlugLength-len(suffix)), "-") + suffix
		}
		err := save(ctx, p)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrConflict) {
			return postSaveErr(err)
		}
	}
	return conflict("post.slug_taken", "could not derive a free slug from the title", nil)
}

func postSaveErr(err error) error {
	if errors.Is(err, ErrConflict) {
		return conflict("post.slug_taken", "slug is already in use", err)
	}
	return lookupErr("post", err)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// Publish makes a post public, stamping PublishedAt the first time.
func (s *BlogService) Publish(ctx context.Context, id uuid.UUID) (*Post, error) {
	return s.setPublished(ctx, id, true)
}

// Unpublish hides a post.
func (s *BlogService) Unpublish(ctx context.Context, id uuid.UUID) (*Post, error) {
	return s.setPublished(ctx, id, false)
}

func (s *BlogService) setPublished(ctx context.Context, id uuid.UUID, published bool) (*Post, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Published == published {
		return p, nil
	}
	if err := s.store.SetPostPublished(ctx, id, published, s.now().UTC()); err != nil {
		return nil, lookupErr("post", err)
	}
	s.log.WithContext(ctx).Info("post visibility changed", "post_id", id, "published", published)
	return s.Get(ctx, id)
}

// Delete removes a post and then its cover image. A cover that cannot be removed is
// logged and left behind.
func (s *BlogService) Delete(ctx context.Context, id uuid.UUID) error {
	p, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeletePost(ctx, id); err != nil {
		return lookupErr("post", err)
	}
	if p.CoverImageKey != "" {
		if err := s.media.Remove(ctx, p.CoverImageKey); err != nil {
			s.log.WithContext(ctx).Warn("remove cover image failed", "post_id", id, "key", p.CoverImageKey, "error", err)
		}
	}
	s.log.WithContext(ctx).Info("post deleted", "post_id", id)
	return nil
}

// List returns posts, newest first.
func (s *BlogService) List(ctx context.Context, publishedOnly bool) ([]Post, error) {
	return s.store.ListPosts(ctx, publishedOnly)
}

// Get returns a post by id.
func (s *BlogService) Get(ctx context.Context, id uuid.UUID) (*Post, error) {
	p, err := s.store.GetPost(ctx, id)
	if err != nil {
		return nil, lookupErr("post", err)
	}
	return p, nil
}

// GetBySlug returns a post by slug. With publishedOnly, drafts read as not found.
func (s *BlogService) GetBySlug(ctx context.Context, slug string, publishedOnly bool) (*Post, error) {
	p, err := s.store.GetPostBySlug(ctx, slug)
	if err != nil {
		return nil, lookupErr("post", err)
	}
	if publishedOnly && !p.Published {
		return nil, notFound("post", nil)
	}
	return p, nil
}

// UploadCover stores the cover under blog/<id>/cover<ext>, removing a previous cover
// stored under a different extension.
func (s *BlogService) UploadCover(ctx context.Context, id uuid.UUID, data []byte) (*Post, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	info, err := s.media.UploadImage(ctx, "blog/"+p.ID.String()+"/cover", data)
	if err != nil {
		return nil, err
	}

	if err := s.store.SetPostCover(ctx, id, info.Key, s.now().UTC()); err != nil {
		return nil, lookupErr("post", err)
	}
	if previous := p.CoverImageKey; previous != "" && previous != info.Key {
		if err := s.media.Remove(ctx, previous); err != nil {
			s.log.WithContext(ctx).Warn("remove previous cover failed", "key", previous, "error", err)
		}
	}
	return s.Get(ctx, id)
}
