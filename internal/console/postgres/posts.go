package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lexintake/console/internal/console"
	"github.com/lexintake/console/pkg/observability/tracing"
)

const postColumns = `id, title, slug, body, cover_image_key, published, published_at, created_at, updated_at`

func scanPost(row rowScanner) (*console.Post, error) {
	var (
		p           console.Post
		publishedAt sql.NullTime
	)
	if err := row.Scan(&p.ID, &p.Title, &p.Slug, &p.Body, &p.CoverImageKey, &p.Published,
		&publishedAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if publishedAt.Valid {
		p.PublishedAt = &publishedAt.Time
	}
	return &p, nil
}

// CreatePost inserts a post. A taken slug is ErrConflict.
func (s *Store) CreatePost(ctx context.Context, p *console.Post) (err error) {
	ctx, done := s.db.begin(ctx, tracing.SpanOperationDBInsert, "blog_posts")
	defer func() { done(err) }()

	_, err = s.db.db.ExecContext(ctx, `INSERT INTO blog_posts (`+postColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.Title, p.Slug, p.Body, p.CoverImageKey, p.Published, p.PublishedAt, p.CreatedAt, p.UpdatedAt)
	return mapErr(err)
}

// GetPost loads a post by id.
func (s *Store) GetPost(ctx context.Context, id uuid.UUID) (p *console.Post, err error) {
	ctx, done := s.db.begin(ctx, tracing.SpanOperationDBQuery, "blog_posts")
	defer func() { done(err) }()

	p, err = scanPost(s.db.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM blog_posts WHERE id = $1`, id))
	return p, mapErr(err)
}

// GetPostBySlug loads a post by slug.
func (s *Store) GetPostBySlug(ctx context.Context, slug string) (p *console.Post, err error) {
	ctx, done := s.db.begin(ctx, tracing.SpanOperationDBQuery, "blog_posts")
	defer func() { done(err) }()

	p, err = scanPost(s.db.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM blog_posts WHERE slug = $1`, slug))
	return p, mapErr(err)
}

// ListPosts returns posts newest first. Published posts sort by publication time.
func (s *Store) ListPosts(ctx context.Context, publishedOnly bool) (out []console.Post, err error) {
	ctx, done := s.db.begin(ctx, tracing.SpanOperationDBQuery, "blog_posts")
	defer func() { done(err) }()

	rows, err := s.db.db.QueryContext(ctx, `SELECT `+postColumns+` FROM blog_posts
		WHERE (NOT $1 OR published)
		ORDER BY COALESCE(published_at, created_at) DESC, id`, publishedOnly)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	out = []console.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// UpdatePost stores the post's title, slug and body. A taken slug is ErrConflict.
func (s *Store) UpdatePost(ctx context.Context, p *console.Post) (err error) {
	ctx, done := s.db.begin(ctx, tracing.SpanOperationDBUpdate, "blog_posts")
	defer func() { done(err) }()

	res, err := s.db.db.ExecContext(ctx, `UPDATE blog_posts
		SET title = $2, slug = $3, body = $4, updated_at = $5
		WHERE id = $1`,
		p.ID, p.Title, p.Slug, p.Body, p.UpdatedAt)
	if err != nil {
		return mapErr(err)
	}
	return affectedOne(res)
}

// SetPostPublished flips the published flag. published_at is stamped on the first publish
// and kept afterwards.
func (s *Store) SetPostPublished(ctx context.Context, id uuid.UUID, published bool, at time.Time) (err error) {
	ctx, done := s.db.begin(ctx, tracing.SpanOperationDBUpdate, "blog_posts")
	defer func() { done(err) }()

	res, err := s.db.db.ExecContext(ctx, `UPDATE blog_posts
		SET published = $2,
			published_at = CASE WHEN $2 AND published_at IS NULL THEN $3 ELSE published_at END,
			updated_at = $3
		WHERE id = $1`,
		id, published, at)
	if err != nil {
		return mapErr(err)
	}
	return affectedOne(res)
}

// SetPostCover stores the cover image key.
func (s *Store) SetPostCover(ctx context.Context, id uuid.UUID, key string, at time.Time) (err error) {
	ctx, done := s.db.begin(ctx, tracing.SpanOperationDBUpdate, "blog_posts")
	defer func() { done(err) }()

	res, err := s.db.db.ExecContext(ctx, `UPDATE blog_posts SET cover_image_key = $2, updated_at = $3 WHERE id = $1`,
		id, key, at)
	if err != nil {
		return mapErr(err)
	}
	return affectedOne(res)
}

// DeletePost removes a post.
func (s *Store) DeletePost(ctx context.Context, id uuid.UUID) (err error) {
	ctx, done := s.db.begin(ctx, tracing.SpanOperationDBDelete, "blog_posts")
	defer func() { done(err) }()

	res, err := s.db.db.ExecContext(ctx, `DELETE FROM blog_posts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return affectedOne(res)
}

// CountPosts returns total and published counts.
func (s *Store) CountPosts(ctx context.Context) (counts console.PostCounts, err error) {
	ctx, done := s.db.begin(ctx, tracing.SpanOperationDBQuery, "blog_posts")
	defer func() { done(err) }()

	err = s.db.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE published) FROM blog_posts`,
	).Scan(&counts.Total, &counts.Published)
	return counts, err
}
