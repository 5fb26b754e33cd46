package localfs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/lexintake/console/pkg/objectstore"
)

func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()
	a, err := NewAdapter(Config{Root: filepath.Join(t.TempDir(), "uploads")}, nil)
	if err != nil {
		t.Fatalf("NewAdapter() error = %v", err)
	}
	return a
}

func TestNewAdapter_CreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "uploads")
	a, err := NewAdapter(Config{Root: root}, nil)
	if err != nil {
		t.Fatalf("NewAdapter() error = %v", err)
	}
	if stat, err := os.Stat(root); err != nil || !stat.IsDir() {
		t.Fatalf("root not created: %v", err)
	}
	entries, _ := os.ReadDir(root)
	if len(entries) != 0 {
		t.Fatalf("writability probe left %d entries behind", len(entries))
	}
	if a.Variant() != objectstore.VariantLocal {
		t.Fatalf("Variant() = %s", a.Variant())
	}
}

func TestNewAdapter_Errors(t *testing.T) {
	if _, err := NewAdapter(Config{Root: "  "}, nil); err == nil {
		t.Fatal("expected error for empty root")
	}

	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewAdapter(Config{Root: filepath.Join(blocker, "uploads")}, nil); err == nil {
		t.Fatal("expected error when root cannot be created")
	}
}

func TestStoreRetrieve_RoundTrip(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	info, err := a.Store(ctx, "/attorneys/42/photo.jpg", []byte("jpeg"), "image/jpeg")
	if err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if info.Key != "attorneys/42/photo.jpg" || info.Size != 4 || info.ContentType != "image/jpeg" || info.ETag == "" {
		t.Fatalf("unexpected info: %+v", info)
	}

	obj, err := a.Retrieve(ctx, "attorneys\\42\\photo.jpg")
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if string(obj.Data) != "jpeg" || obj.ContentType != "image/jpeg" || obj.ETag != info.ETag {
		t.Fatalf("unexpected object: %+v data=%q", obj.ObjectInfo, obj.Data)
	}

	if _, err := os.Stat(filepath.Join(a.Root(), "attorneys", "42", "photo.jpg")); err != nil {
		t.Fatalf("object file missing: %v", err)
	}
}

func TestStore_Overwrite(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	if _, err := a.Store(ctx, "blog/1/cover.png", []byte("v1"), "image/png"); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Store(ctx, "blog/1/cover.png", []byte("version-2"), "image/webp"); err != nil {
		t.Fatal(err)
	}
	obj, err := a.Retrieve(ctx, "blog/1/cover.png")
	if err != nil {
		t.Fatal(err)
	}
	if string(obj.Data) != "version-2" || obj.ContentType != "image/webp" {
		t.Fatalf("overwrite not applied: %q %q", obj.Data, obj.ContentType)
	}
}

func TestRetrieve_ContentTypeFallsBackToExtension(t *testing.T) {
	a := newTestAdapter(t)
	path := filepath.Join(a.Root(), "legacy.png")
	if err := os.WriteFile(path, []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}
	obj, err := a.Retrieve(context.Background(), "legacy.png")
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if obj.ContentType != "image/png" {
		t.Fatalf("ContentType = %q, want image/png", obj.ContentType)
	}
}

func TestRetrieve_NotFound(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	if _, err := a.Retrieve(ctx, "missing.png"); !errors.Is(err, objectstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := a.Store(ctx, "dir/file.txt", []byte("x"), "text/plain"); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Retrieve(ctx, "dir"); !errors.Is(err, objectstore.ErrNotFound) {
		t.Fatalf("directories must read as not found, got %v", err)
	}
}

func TestInvalidKeys(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	for _, key := range []string{"", "../outside", "a/../../b", "photo.png.meta.json", "dir/.upload-123"} {
		if _, err := a.Store(ctx, key, []byte("x"), ""); !errors.Is(err, objectstore.ErrInvalidKey) {
			t.Errorf("Store(%q) error = %v, want ErrInvalidKey", key, err)
		}
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(a.Root()), "outside")); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("a file escaped the storage root")
	}
}

func TestList_SortedAndFiltered(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	for _, key := range []string{"blog/2/cover.png", "blog/1/cover.png", "attorneys/1/photo.jpg", "blogroll.txt"} {
		if _, err := a.Store(ctx, key, []byte(key), "application/octet-stream"); err != nil {
			t.Fatalf("Store(%q) error = %v", key, err)
		}
	}
	if err := os.WriteFile(filepath.Join(a.Root(), "blog", ".upload-stale"), []byte("partial"), 0o644); err != nil {
		t.Fatal(err)
	}

	all, err := a.List(ctx, "")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	var keys []string
	for _, info := range all {
		keys = append(keys, info.Key)
	}
	want := "attorneys/1/photo.jpg,blog/1/cover.png,blog/2/cover.png,blogroll.txt"
	if strings.Join(keys, ",") != want {
		t.Fatalf("List() keys = %v, want %s", keys, want)
	}

	blog, err := a.List(ctx, "blog/")
	if err != nil {
		t.Fatalf("List(blog/) error = %v", err)
	}
	if len(blog) != 2 || blog[0].Key != "blog/1/cover.png" || blog[1].Key != "blog/2/cover.png" {
		t.Fatalf("List(blog/) = %+v", blog)
	}
	if blog[0].ContentType != "application/octet-stream" {
		t.Fatalf("listing lost content type: %q", blog[0].ContentType)
	}

	loose, err := a.List(ctx, "blog")
	if err != nil {
		t.Fatal(err)
	}
	if len(loose) != 3 {
		t.Fatalf("List(blog) returned %d entries, want 3", len(loose))
	}

	none, err := a.List(ctx, "nothing/here/")
	if err != nil || len(none) != 0 {
		t.Fatalf("List(missing prefix) = %v, %v", none, err)
	}
}

func TestDelete(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	if _, err := a.Store(ctx, "blog/9/cover.gif", []byte("gif"), "image/gif"); err != nil {
		t.Fatal(err)
	}
	if err := a.Delete(ctx, "blog/9/cover.gif"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := a.Retrieve(ctx, "blog/9/cover.gif"); !errors.Is(err, objectstore.ErrNotFound) {
		t.Fatalf("object still retrievable: %v", err)
	}
	if _, err := os.Stat(filepath.Join(a.Root(), "blog")); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("empty parent directories were not pruned")
	}
	if _, err := os.Stat(a.Root()); err != nil {
		t.Fatalf("root removed: %v", err)
	}
	if err := a.Delete(ctx, "blog/9/cover.gif"); !errors.Is(err, objectstore.ErrNotFound) {
		t.Fatalf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestConcurrentWritesSameKey(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	payloads := []string{"aaaa", "bbbbbbbb", "cc"}
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(p string) {
			defer wg.Done()
			if _, err := a.Store(ctx, "shared.bin", []byte(p), "application/octet-stream"); err != nil {
				t.Errorf("Store() error = %v", err)
			}
		}(payloads[i%len(payloads)])
	}
	wg.Wait()

	obj, err := a.Retrieve(ctx, "shared.bin")
	if err != nil {
		t.Fatal(err)
	}
	got := string(obj.Data)
	if got != "aaaa" && got != "bbbbbbbb" && got != "cc" {
		t.Fatalf("torn write observed: %q", got)
	}
}

func TestClosedAdapter(t *testing.T) {
	a := newTestAdapter(t)
	if err := a.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck() error = %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Store(context.Background(), "a", []byte("x"), ""); !errors.Is(err, objectstore.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := a.HealthCheck(context.Background()); !errors.Is(err, objectstore.ErrClosed) {
		t.Fatalf("expected ErrClosed from HealthCheck, got %v", err)
	}
}
