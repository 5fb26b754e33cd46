package console

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/lexintake/console/pkg/objectstore"
	"github.com/lexintake/console/pkg/observability/logger"
)

// DefaultMaxUploadBytes caps media uploads at 5 MiB.
const DefaultMaxUploadBytes int64 = 5 << 20

// Image types accepted for uploads, keyed by sniffed content type.
var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// StorageProvider hands out the process storage backend. *objectstore.Selector
// implements it.
type StorageProvider interface {
	Get(ctx context.Context) (objectstore.Service, error)
	Variant() objectstore.Variant
	State() objectstore.State
}

// MediaService stores and serves images through whichever backend is selected.
type MediaService struct {
	storage  StorageProvider
	maxBytes int64
	log      logger.Logger
}

// NewMediaService creates the service. maxBytes <= 0 uses DefaultMaxUploadBytes.
func NewMediaService(storage StorageProvider, maxBytes int64, log logger.Logger) *MediaService {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &MediaService{storage: storage, maxBytes: maxBytes, log: log}
}

// MaxBytes returns the upload size limit.
func (m *MediaService) MaxBytes() int64 {
	return m.maxBytes
}

// SniffImage returns the content type and key extension for an accepted image.
func (m *MediaService) SniffImage(data []byte) (contentType, ext string, err error) {
	if len(data) == 0 {
		return "", "", invalid("file", "file is empty")
	}
	if int64(len(data)) > m.maxBytes {
		return "", "", invalid("file", fmt.Sprintf("file exceeds the %d byte limit", m.maxBytes))
	}
	contentType = http.DetectContentType(data)
	ext, ok := imageExtensions[contentType]
	if !ok {
		return "", "", invalid("file", "unsupported image type "+contentType)
	}
	return contentType, ext, nil
}

// UploadImage validates data and stores it at base plus the type's extension.
func (m *MediaService) UploadImage(ctx context.Context, base string, data []byte) (objectstore.ObjectInfo, error) {
	contentType, ext, err := m.SniffImage(data)
	if err != nil {
		return objectstore.ObjectInfo{}, err
	}
	svc, err := m.backend(ctx)
	if err != nil {
		return objectstore.ObjectInfo{}, err
	}
	info, err := svc.Store(ctx, base+ext, data, contentType)
	if err != nil {
		return objectstore.ObjectInfo{}, m.objectErr(err)
	}
	m.log.WithContext(ctx).Info("media stored", "key", info.Key, "size", info.Size, "variant", svc.Variant())
	return info, nil
}

// Open retrieves an object for streaming.
func (m *MediaService) Open(ctx context.Context, key string) (*objectstore.Object, error) {
	svc, err := m.backend(ctx)
	if err != nil {
		return nil, err
	}
	obj, err := svc.Retrieve(ctx, key)
	if err != nil {
		return nil, m.objectErr(err)
	}
	return obj, nil
}

// List returns objects under prefix.
func (m *MediaService) List(ctx context.Context, prefix string) ([]objectstore.ObjectInfo, error) {
	svc, err := m.backend(ctx)
	if err != nil {
		return nil, err
	}
	infos, err := svc.List(ctx, prefix)
	if err != nil {
		return nil, m.objectErr(err)
	}
	return infos, nil
}

// Remove deletes key. Missing objects are not an error.
func (m *MediaService) Remove(ctx context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return nil
	}
	svc, err := m.backend(ctx)
	if err != nil {
		return err
	}
	if err := svc.Delete(ctx, key); err != nil && !errors.Is(err, objectstore.ErrNotFound) {
		return m.objectErr(err)
	}
	return nil
}

func (m *MediaService) backend(ctx context.Context) (objectstore.Service, error) {
	svc, err := m.storage.Get(ctx)
	if err != nil {
		m.log.WithContext(ctx).Error("storage backend unavailable", "error", err)
		return nil, unavailable(err)
	}
	return svc, nil
}

func (m *MediaService) objectErr(err error) error {
	switch {
	case errors.Is(err, objectstore.ErrNotFound):
		return notFound("object", err)
	case errors.Is(err, objectstore.ErrInvalidKey):
		return invalid("key", "invalid object key")
	case errors.Is(err, objectstore.ErrClosed):
		return unavailable(err)
	default:
		return fmt.Errorf("object storage: %w", err)
	}
}

// DownloadURL returns a temporary direct URL for key, or "" when the backend cannot
// presign and objects must be streamed through the console.
func (m *MediaService) DownloadURL(ctx context.Context, key string) (string, error) {
	svc, err := m.backend(ctx)
	if err != nil {
		return "", err
	}
	url, err := objectstore.Presign(ctx, svc, key, 0)
	if errors.Is(err, objectstore.ErrPresignUnsupported) {
		return "", nil
	}
	if err != nil {
		return "", m.objectErr(err)
	}
	return url, nil
}
