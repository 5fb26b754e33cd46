// Package localfs is the filesystem object storage backend used outside the managed host.
package localfs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/lexintake/console/pkg/objectstore"
	"github.com/lexintake/console/pkg/observability/logger"
	"github.com/lexintake/console/pkg/security"
)

const (
	metaSuffix = ".meta.json"
	tempPrefix = ".upload-"
)

// Config defines the filesystem backend configuration.
type Config struct {
	Root string
}

type metadata struct {
	ContentType string `json:"content_type"`
	ETag        string `json:"etag"`
}

// Adapter implements objectstore.Service on a directory tree.
type Adapter struct {
	root   string
	logger logger.Logger

	mu     sync.RWMutex
	closed bool
}

var _ objectstore.Service = (*Adapter)(nil)

// NewAdapter creates the root directory if needed and verifies it is writable.
func NewAdapter(cfg Config, log logger.Logger) (*Adapter, error) {
	root := strings.TrimSpace(cfg.Root)
	if root == "" {
		return nil, errors.New("local storage root is required")
	}
	if log == nil {
		log = logger.NewNop()
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage root %q: %w", root, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root %q: %w", abs, err)
	}

	a := &Adapter{root: abs, logger: log}
	if err := a.probeWritable(); err != nil {
		return nil, err
	}

	log.Info("local storage initialized", "root", abs)
	return a, nil
}

// Root returns the absolute storage root.
func (a *Adapter) Root() string {
	return a.root
}

// Store writes data atomically under key.
func (a *Adapter) Store(ctx context.Context, key string, data []byte, contentType string) (objectstore.ObjectInfo, error) {
	if err := a.ensureOpen(); err != nil {
		return objectstore.ObjectInfo{}, err
	}
	key, target, err := a.resolve(key)
	if err != nil {
		return objectstore.ObjectInfo{}, err
	}
	if err := ctx.Err(); err != nil {
		return objectstore.ObjectInfo{}, err
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return objectstore.ObjectInfo{}, fmt.Errorf("failed to create directory for %q: %w", key, err)
	}

	sum := sha256.Sum256(data)
	meta := metadata{ContentType: strings.TrimSpace(contentType), ETag: hex.EncodeToString(sum[:])}
	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return objectstore.ObjectInfo{}, fmt.Errorf("failed to encode metadata for %q: %w", key, err)
	}

	if err := writeAtomic(target, data); err != nil {
		return objectstore.ObjectInfo{}, fmt.Errorf("failed to write object %q: %w", key, err)
	}
	if err := writeAtomic(target+metaSuffix, metaBytes); err != nil {
		return objectstore.ObjectInfo{}, fmt.Errorf("failed to write metadata for %q: %w", key, err)
	}

	stat, err := os.Stat(target)
	if err != nil {
		return objectstore.ObjectInfo{}, fmt.Errorf("failed to stat object %q: %w", key, err)
	}

	a.logger.Debug("stored object in file", "path", target, "size", len(data))
	return objectstore.ObjectInfo{
		Key:          key,
		Size:         stat.Size(),
		ContentType:  meta.ContentType,
		ETag:         meta.ETag,
		LastModified: stat.ModTime().UTC(),
	}, nil
}

// Retrieve reads the object stored under key.
func (a *Adapter) Retrieve(ctx context.Context, key string) (*objectstore.Object, error) {
	if err := a.ensureOpen(); err != nil {
		return nil, err
	}
	key, target, err := a.resolve(key)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stat, err := os.Stat(target)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && stat.IsDir()) {
		return nil, fmt.Errorf("object %q: %w", key, objectstore.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat object %q: %w", key, err)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("object %q: %w", key, objectstore.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read object %q: %w", key, err)
	}

	info := a.describe(key, target, stat)
	info.Size = int64(len(data))
	return &objectstore.Object{ObjectInfo: info, Data: data}, nil
}

// List returns every object whose key starts with prefix, sorted by key.
func (a *Adapter) List(ctx context.Context, prefix string) ([]objectstore.ObjectInfo, error) {
	if err := a.ensureOpen(); err != nil {
		return nil, err
	}
	prefix, err := objectstore.NormalizePrefix(prefix)
	if err != nil {
		return nil, err
	}

	start := a.root
	if dir := path.Dir(prefix); prefix != "" && dir != "." {
		start = filepath.Join(a.root, filepath.FromSlash(dir))
	}

	out := make([]objectstore.ObjectInfo, 0)
	err = filepath.WalkDir(start, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if errors.Is(walkErr, fs.ErrNotExist) {
				return nil
			}
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || isInternal(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(a.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		stat, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		out = append(out, a.describe(key, p, stat))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list objects with prefix %q: %w", prefix, err)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Delete removes the object and its metadata, pruning empty parent directories.
func (a *Adapter) Delete(ctx context.Context, key string) error {
	if err := a.ensureOpen(); err != nil {
		return err
	}
	key, target, err := a.resolve(key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if stat, err := os.Stat(target); err == nil && stat.IsDir() {
		return fmt.Errorf("object %q: %w", key, objectstore.ErrNotFound)
	}
	if err := os.Remove(target); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("object %q: %w", key, objectstore.ErrNotFound)
		}
		return fmt.Errorf("failed to delete object %q: %w", key, err)
	}
	if err := os.Remove(target + metaSuffix); err != nil && !errors.Is(err, fs.ErrNotExist) {
		a.logger.Warn("failed to delete object metadata", "key", key, "error", err)
	}
	a.pruneEmptyDirs(filepath.Dir(target))
	return nil
}

// HealthCheck verifies the root is still writable.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	if err := a.ensureOpen(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := a.probeWritable(); err != nil {
		a.logger.Error("local storage health check failed", "error", err)
		return fmt.Errorf("local storage health check failed: %w", err)
	}
	return nil
}

// Variant reports objectstore.VariantLocal.
func (a *Adapter) Variant() objectstore.Variant {
	return objectstore.VariantLocal
}

// Close marks the adapter as closed.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	return nil
}

func (a *Adapter) resolve(key string) (string, string, error) {
	key, err := objectstore.NormalizeKey(key)
	if err != nil {
		return "", "", err
	}
	if isInternal(path.Base(key)) {
		return "", "", fmt.Errorf("%w: %q uses a reserved name", objectstore.ErrInvalidKey, key)
	}
	target, err := security.JoinWithin(a.root, key)
	if err != nil {
		return "", "", fmt.Errorf("%w: %q escapes the storage root", objectstore.ErrInvalidKey, key)
	}
	return key, target, nil
}

func (a *Adapter) describe(key, target string, stat fs.FileInfo) objectstore.ObjectInfo {
	info := objectstore.ObjectInfo{
		Key:          key,
		Size:         stat.Size(),
		LastModified: stat.ModTime().UTC(),
	}
	if raw, err := os.ReadFile(target + metaSuffix); err == nil {
		var meta metadata
		if err := json.Unmarshal(raw, &meta); err == nil {
			info.ContentType = meta.ContentType
			info.ETag = meta.ETag
		}
	}
	if info.ContentType == "" {
		info.ContentType = mime.TypeByExtension(path.Ext(key))
	}
	return info
}

func (a *Adapter) pruneEmptyDirs(dir string) {
	for dir != a.root && strings.HasPrefix(dir, a.root) {
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

func (a *Adapter) probeWritable() error {
	f, err := os.CreateTemp(a.root, tempPrefix+"probe-*")
	if err != nil {
		return fmt.Errorf("storage root %q is not writable: %w", a.root, err)
	}
	name := f.Name()
	closeErr := f.Close()
	removeErr := os.Remove(name)
	if closeErr != nil {
		return fmt.Errorf("storage root %q is not writable: %w", a.root, closeErr)
	}
	if removeErr != nil {
		return fmt.Errorf("storage root %q is not writable: %w", a.root, removeErr)
	}
	return nil
}

func (a *Adapter) ensureOpen() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return fmt.Errorf("local storage: %w", objectstore.ErrClosed)
	}
	return nil
}

func isInternal(name string) bool {
	return strings.HasSuffix(name, metaSuffix) || strings.HasPrefix(name, tempPrefix)
}

func writeAtomic(target string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(target), tempPrefix+"*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
