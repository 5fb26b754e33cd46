// Package objectstore defines the object storage capability set used by the console and
// the Selector that picks, once per process, which backend provides it.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
)

// Variant identifies a storage backend implementation.
type Variant string

const (
	// VariantCloud is the bucket-backed store used on the managed host.
	VariantCloud Variant = "cloud"
	// VariantLocal is the filesystem store used everywhere else.
	VariantLocal Variant = "local"
)

func (v Variant) String() string {
	return string(v)
}

var (
	// ErrNotFound is returned when the requested key has no object.
	ErrNotFound = errors.New("object not found")
	// ErrInvalidKey is returned for empty or escaping keys.
	ErrInvalidKey = errors.New("invalid object key")
	// ErrClosed is returned by a backend after Close.
	ErrClosed = errors.New("object store is closed")
	// ErrStorageUnavailable wraps backend construction failures.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type,omitempty"`
	ETag         string    `json:"etag,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// Object is a retrieved object with its payload.
type Object struct {
	ObjectInfo
	Data []byte
}

// Service is the capability set every storage backend provides.
type Service interface {
	Store(ctx context.Context, key string, data []byte, contentType string) (ObjectInfo, error)
	Retrieve(ctx context.Context, key string) (*Object, error)
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	Delete(ctx context.Context, key string) error
	HealthCheck(ctx context.Context) error
	Variant() Variant
	Close() error
}

// Presigner is implemented by backends that can hand out temporary download URLs.
type Presigner interface {
	PresignGetURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// NormalizeKey returns the canonical form of key: forward slashes, no leading slash,
// no empty or dot segments. Keys containing ".." segments or NUL bytes are rejected.
func NormalizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if strings.ContainsRune(key, 0) {
		return "", fmt.Errorf("%w: contains NUL byte", ErrInvalidKey)
	}
	key = strings.ReplaceAll(key, "\\", "/")

	segments := strings.Split(key, "/")
	kept := segments[:0]
	for _, segment := range segments {
		switch segment {
		case "", ".":
			continue
		case "..":
			return "", fmt.Errorf("%w: %q escapes the store", ErrInvalidKey, key)
		}
		kept = append(kept, segment)
	}
	if len(kept) == 0 {
		return "", fmt.Errorf("%w: key is empty", ErrInvalidKey)
	}
	return path.Join(kept...), nil
}

// NormalizePrefix is like NormalizeKey but accepts an empty prefix, and keeps a
// trailing slash so "blog/" does not match "blogroll".
func NormalizePrefix(prefix string) (string, error) {
	trimmed := strings.TrimSpace(prefix)
	if trimmed == "" || trimmed == "/" {
		return "", nil
	}
	key, err := NormalizeKey(trimmed)
	if err != nil {
		return "", err
	}
	if strings.HasSuffix(strings.ReplaceAll(trimmed, "\\", "/"), "/") {
		key += "/"
	}
	return key, nil
}
