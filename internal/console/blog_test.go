package console

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func newBlogFixture(t *testing.T) (*BlogService, *memStore) {
	t.Helper()
	store := newMemStore()
	media := NewMediaService(newLocalStorage(t), 0, nil)
	return NewBlogService(store, media, nil), store
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Hello, World!", "hello-world"},
		{"  Custody 101 -- a guide  ", "custody-101-a-guide"},
		{"Ünïcode stays out", "n-code-stays-out"},
		{"---", ""},
		{"already-a-slug", "already-a-slug"},
		{strings.Repeat("ab ", 60), strings.TrimRight(strings.Repeat("ab-", 27), "-")},
	}
	for _, tt := range tests {
		if got := Slugify(tt.in); got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestProperty_SlugifyIsIdempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("slugify is a fixed point on its own output", prop.ForAll(
		func(s string) bool {
			slug := Slugify(s)
			return Slugify(slug) == slug &&
				len(slug) <= maxSlugLength &&
				!strings.HasPrefix(slug, "-") &&
				!strings.HasSuffix(slug, "-") &&
				!strings.Contains(slug, "--")
		},
		gen.AnyString(),
	))
	properties.TestingRun(t)
}

func TestBlogService_CreateDerivesUniqueSlugs(t *testing.T) {
	svc, _ := newBlogFixture(t)
	first, err := svc.Create(t.Context(), PostInput{Title: "Know Your Rights", Body: "..."})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	second, err := svc.Create(t.Context(), PostInput{Title: "Know your rights!", Body: "..."})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if first.Slug != "know-your-rights" || second.Slug != "know-your-rights-2" {
		t.Fatalf("slugs = %q, %q", first.Slug, second.Slug)
	}
	if first.Published {
		t.Fatal("new posts must be drafts")
	}
}

func TestBlogService_CreateExplicitSlugConflict(t *testing.T) {
	svc, _ := newBlogFixture(t)
	if _, err := svc.Create(t.Context(), PostInput{Title: "One", Slug: "shared"}); err != nil {
		t.Fatal(err)
	}
	_, err := svc.Create(t.Context(), PostInput{Title: "Two", Slug: "shared"})
	wantKind(t, err, KindConflict)
	wantCode(t, err, "post.slug_taken")

	_, err = svc.Create(t.Context(), PostInput{Title: "Three", Slug: "Not A Slug"})
	wantCode(t, err, "validation.slug")
}

func TestBlogService_Update(t *testing.T) {
	svc, _ := newBlogFixture(t)
	p, _ := svc.Create(t.Context(), PostInput{Title: "Original title"})

	got, err := svc.Update(t.Context(), p.ID, PostInput{Title: "New title", Body: "updated"})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if got.Slug != "original-title" {
		t.Fatalf("slug changed to %q without an explicit slug", got.Slug)
	}

	got, err = svc.Update(t.Context(), p.ID, PostInput{Title: "New title", Slug: "new-title"})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if got.Slug != "new-title" {
		t.Fatalf("slug = %q", got.Slug)
	}
}

func TestBlogService_PublishVisibility(t *testing.T) {
	svc, _ := newBlogFixture(t)
	p, _ := svc.Create(t.Context(), PostInput{Title: "Draft post"})

	_, err := svc.GetBySlug(t.Context(), p.Slug, true)
	wantKind(t, err, KindNotFound)
	if _, err := svc.GetBySlug(t.Context(), p.Slug, false); err != nil {
		t.Fatalf("admin read of draft: %v", err)
	}

	pub, err := svc.Publish(t.Context(), p.ID)
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if pub.PublishedAt == nil {
		t.Fatal("PublishedAt not set")
	}
	firstPublished := *pub.PublishedAt

	if _, err := svc.Unpublish(t.Context(), p.ID); err != nil {
		t.Fatal(err)
	}
	again, _ := svc.Publish(t.Context(), p.ID)
	if !again.PublishedAt.Equal(firstPublished) {
		t.Fatal("republishing must keep the first publication time")
	}

	public, _ := svc.List(t.Context(), true)
	if len(public) != 1 {
		t.Fatalf("public posts = %d", len(public))
	}
}

func TestBlogService_CoverLifecycle(t *testing.T) {
	svc, _ := newBlogFixture(t)
	p, _ := svc.Create(t.Context(), PostInput{Title: "With cover"})

	got, err := svc.UploadCover(t.Context(), p.ID, pngImage)
	if err != nil {
		t.Fatalf("UploadCover() error = %v", err)
	}
	if got.CoverImageKey != "blog/"+p.ID.String()+"/cover.png" {
		t.Fatalf("cover key = %q", got.CoverImageKey)
	}

	if err := svc.Delete(t.Context(), p.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	_, err = svc.media.Open(t.Context(), got.CoverImageKey)
	wantKind(t, err, KindNotFound)
	wantKind(t, svc.Delete(t.Context(), p.ID), KindNotFound)
}

func TestBlogService_DeleteWithUnavailableStorage(t *testing.T) {
	store := newMemStore()
	svc := NewBlogService(store, NewMediaService(brokenStorage{}, 0, nil), nil)
	p, _ := svc.Create(t.Context(), PostInput{Title: "Orphaned cover"})
	_ = store.SetPostCover(t.Context(), p.ID, "blog/"+p.ID.String()+"/cover.png", time.Now())

	if err := svc.Delete(t.Context(), p.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok := store.posts[p.ID]; ok {
		t.Fatal("post row was not removed")
	}
}

// interleavedPosts runs between once, right after the next post read.
type interleavedPosts struct {
	*memStore
	between func()
}

func (s *interleavedPosts) GetPost(ctx context.Context, id uuid.UUID) (*Post, error) {
	p, err := s.memStore.GetPost(ctx, id)
	if run := s.between; run != nil && err == nil {
		s.between = nil
		run()
	}
	return p, err
}

func TestBlogService_PublishAndCoverUploadDoNotOverwriteEachOther(t *testing.T) {
	tests := []struct {
		name  string
		write func(svc *BlogService, id uuid.UUID) (*Post, error)
		other func(svc *BlogService, id uuid.UUID)
	}{
		{
			name:  "cover upload during publish",
			write: func(svc *BlogService, id uuid.UUID) (*Post, error) { return svc.Publish(t.Context(), id) },
			other: func(svc *BlogService, id uuid.UUID) {
				if _, err := svc.UploadCover(t.Context(), id, pngImage); err != nil {
					t.Errorf("UploadCover() error = %v", err)
				}
			},
		},
		{
			name:  "publish during cover upload",
			write: func(svc *BlogService, id uuid.UUID) (*Post, error) { return svc.UploadCover(t.Context(), id, pngImage) },
			other: func(svc *BlogService, id uuid.UUID) {
				if _, err := svc.Publish(t.Context(), id); err != nil {
					t.Errorf("Publish() error = %v", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given: a draft whose other field changes between read and write
			store := newMemStore()
			posts := &interleavedPosts{memStore: store}
			svc := NewBlogService(posts, NewMediaService(newLocalStorage(t), 0, nil), nil)
			p, _ := svc.Create(t.Context(), PostInput{Title: "Racing edits"})
			posts.between = func() { tt.other(svc, p.ID) }

			// When: the first write lands
			got, err := tt.write(svc, p.ID)
			if err != nil {
				t.Fatalf("write error = %v", err)
			}

			// Then: both changes are kept
			if !got.Published || got.PublishedAt == nil || got.CoverImageKey == "" {
				t.Fatalf("post = %+v, want published with a cover", got)
			}
		})
	}
}
