// Package s3 is the cloud object storage backend, used when the console runs on the
// managed host.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	awss3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/lexintake/console/pkg/objectstore"
	"github.com/lexintake/console/pkg/observability/logger"
)

// Config defines the bucket backend configuration.
type Config struct {
	Bucket           string
	Region           string
	Endpoint         string
	Prefix           string
	AccessKeyID      string
	SecretAccessKey  string
	SessionToken     string
	UsePathStyle     bool
	OperationTimeout time.Duration
	PresignExpiry    time.Duration

	// SidecarCredentials fetches short-lived keys from SidecarURL instead of the
	// default AWS chain. Static keys still take precedence.
	SidecarCredentials bool
	SidecarURL         string
	HTTPClient         *http.Client
}

type s3API interface {
	HeadBucket(ctx context.Context, params *awss3.HeadBucketInput, optFns ...func(*awss3.Options)) (*awss3.HeadBucketOutput, error)
	PutObject(ctx context.Context, params *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *awss3.GetObjectInput, optFns ...func(*awss3.Options)) (*awss3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *awss3.HeadObjectInput, optFns ...func(*awss3.Options)) (*awss3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *awss3.DeleteObjectInput, optFns ...func(*awss3.Options)) (*awss3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *awss3.ListObjectsV2Input, optFns ...func(*awss3.Options)) (*awss3.ListObjectsV2Output, error)
}

type presignAPI interface {
	PresignGetObject(ctx context.Context, params *awss3.GetObjectInput, optFns ...func(*awss3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Adapter implements objectstore.Service on top of an S3-compatible bucket.
type Adapter struct {
	client  s3API
	presign presignAPI
	logger  logger.Logger
	config  Config

	mu     sync.RWMutex
	closed bool
}

var _ objectstore.Service = (*Adapter)(nil)
var _ objectstore.Presigner = (*Adapter)(nil)

// NewAdapter creates the bucket backend and verifies the bucket is reachable.
func NewAdapter(ctx context.Context, cfg Config, log logger.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("s3 bucket is required")
	}
	if strings.TrimSpace(cfg.Region) == "" {
		return nil, errors.New("aws region is required")
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = 10 * time.Second
	}
	if cfg.PresignExpiry <= 0 {
		cfg.PresignExpiry = 15 * time.Minute
	}
	cfg.Prefix = strings.Trim(strings.TrimSpace(cfg.Prefix), "/")
	if log == nil {
		log = logger.NewNop()
	}

	loadOptions := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	source := "default-chain"
	switch {
	case cfg.AccessKeyID != "" || cfg.SecretAccessKey != "":
		source = "static"
		loadOptions = append(loadOptions, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	case cfg.SidecarCredentials:
		source = "sidecar"
		provider, err := NewSidecarCredentialsProvider(cfg.SidecarURL, cfg.HTTPClient)
		if err != nil {
			return nil, err
		}
		loadOptions = append(loadOptions, awsconfig.WithCredentialsProvider(aws.NewCredentialsCache(provider)))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	clientOptions := make([]func(*awss3.Options), 0, 2)
	if cfg.Endpoint != "" {
		clientOptions = append(clientOptions, func(o *awss3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.UsePathStyle {
		clientOptions = append(clientOptions, func(o *awss3.Options) {
			o.UsePathStyle = true
		})
	}

	client := awss3.NewFromConfig(awsCfg, clientOptions...)
	adapter := &Adapter{
		client:  client,
		presign: awss3.NewPresignClient(client),
		logger:  log,
		config:  cfg,
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.OperationTimeout)
	defer cancel()
	if err := adapter.Ping(pingCtx); err != nil {
		return nil, err
	}

	log.Info("S3 adapter initialized", "bucket", cfg.Bucket, "region", cfg.Region, "endpoint", cfg.Endpoint, "credentials", source)
	return adapter, nil
}

// Ping verifies that the configured bucket is accessible.
func (a *Adapter) Ping(ctx context.Context) error {
	if err := a.ensureOpen(); err != nil {
		return err
	}
	_, err := a.client.HeadBucket(ctx, &awss3.HeadBucketInput{
		Bucket: aws.String(a.config.Bucket),
	})
	if err != nil {
		return fmt.Errorf("s3 ping failed for bucket %q: %w", a.config.Bucket, err)
	}
	return nil
}

// Store uploads data under key and returns the stored object's descriptor.
func (a *Adapter) Store(ctx context.Context, key string, data []byte, contentType string) (objectstore.ObjectInfo, error) {
	if err := a.ensureOpen(); err != nil {
		return objectstore.ObjectInfo{}, err
	}
	key, err := objectstore.NormalizeKey(key)
	if err != nil {
		return objectstore.ObjectInfo{}, err
	}

	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()

	input := &awss3.PutObjectInput{
		Bucket:        aws.String(a.config.Bucket),
		Key:           aws.String(a.fullKey(key)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if strings.TrimSpace(contentType) != "" {
		input.ContentType = aws.String(contentType)
	}

	resp, err := a.client.PutObject(opCtx, input)
	if err != nil {
		return objectstore.ObjectInfo{}, fmt.Errorf("failed to upload object %q: %w", key, err)
	}
	return objectstore.ObjectInfo{
		Key:          key,
		Size:         int64(len(data)),
		ContentType:  contentType,
		ETag:         trimETag(resp.ETag),
		LastModified: time.Now().UTC(),
	}, nil
}

// Retrieve downloads the object stored under key.
func (a *Adapter) Retrieve(ctx context.Context, key string) (*objectstore.Object, error) {
	if err := a.ensureOpen(); err != nil {
		return nil, err
	}
	key, err := objectstore.NormalizeKey(key)
	if err != nil {
		return nil, err
	}

	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()

	resp, err := a.client.GetObject(opCtx, &awss3.GetObjectInput{
		Bucket: aws.String(a.config.Bucket),
		Key:    aws.String(a.fullKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("object %q: %w", key, objectstore.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to download object %q: %w", key, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %q: %w", key, err)
	}

	return &objectstore.Object{
		ObjectInfo: objectstore.ObjectInfo{
			Key:          key,
			Size:         int64(len(payload)),
			ContentType:  aws.ToString(resp.ContentType),
			ETag:         trimETag(resp.ETag),
			LastModified: aws.ToTime(resp.LastModified),
		},
		Data: payload,
	}, nil
}

// Delete removes the object stored under key. Missing keys report ErrNotFound.
func (a *Adapter) Delete(ctx context.Context, key string) error {
	if err := a.ensureOpen(); err != nil {
		return err
	}
	key, err := objectstore.NormalizeKey(key)
	if err != nil {
		return err
	}

	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()

	// DeleteObject succeeds for absent keys, so existence is checked first.
	if _, err := a.client.HeadObject(opCtx, &awss3.HeadObjectInput{
		Bucket: aws.String(a.config.Bucket),
		Key:    aws.String(a.fullKey(key)),
	}); err != nil {
		if isNotFound(err) {
			return fmt.Errorf("object %q: %w", key, objectstore.ErrNotFound)
		}
		return fmt.Errorf("failed to stat object %q: %w", key, err)
	}

	_, err = a.client.DeleteObject(opCtx, &awss3.DeleteObjectInput{
		Bucket: aws.String(a.config.Bucket),
		Key:    aws.String(a.fullKey(key)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %q: %w", key, err)
	}
	return nil
}

// List returns descriptors for every object under prefix, following continuation tokens.
func (a *Adapter) List(ctx context.Context, prefix string) ([]objectstore.ObjectInfo, error) {
	if err := a.ensureOpen(); err != nil {
		return nil, err
	}
	prefix, err := objectstore.NormalizePrefix(prefix)
	if err != nil {
		return nil, err
	}

	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()

	paginator := awss3.NewListObjectsV2Paginator(a.client, &awss3.ListObjectsV2Input{
		Bucket: aws.String(a.config.Bucket),
		Prefix: aws.String(a.fullKey(prefix)),
	})

	out := make([]objectstore.ObjectInfo, 0)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(opCtx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects with prefix %q: %w", prefix, err)
		}
		for _, item := range page.Contents {
			out = append(out, a.toObjectInfo(item))
		}
	}
	return out, nil
}

// PresignGetURL generates a temporary download URL.
func (a *Adapter) PresignGetURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if err := a.ensureOpen(); err != nil {
		return "", err
	}
	key, err := objectstore.NormalizeKey(key)
	if err != nil {
		return "", err
	}
	if expiry <= 0 {
		expiry = a.config.PresignExpiry
	}

	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()

	resp, err := a.presign.PresignGetObject(opCtx, &awss3.GetObjectInput{
		Bucket: aws.String(a.config.Bucket),
		Key:    aws.String(a.fullKey(key)),
	}, func(opts *awss3.PresignOptions) {
		opts.Expires = expiry
	})
	if err != nil {
		return "", fmt.Errorf("failed to presign object %q: %w", key, err)
	}
	return resp.URL, nil
}

// HealthCheck verifies the adapter can reach the bucket within a short timeout.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	hcCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := a.Ping(hcCtx); err != nil {
		a.logger.Error("S3 health check failed", "error", err)
		return fmt.Errorf("s3 health check failed: %w", err)
	}
	return nil
}

// Variant reports objectstore.VariantCloud.
func (a *Adapter) Variant() objectstore.Variant {
	return objectstore.VariantCloud
}

// Close marks the adapter as closed.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	return nil
}

func (a *Adapter) fullKey(key string) string {
	if a.config.Prefix == "" {
		return key
	}
	if key == "" {
		return a.config.Prefix + "/"
	}
	joined := path.Join(a.config.Prefix, key)
	if strings.HasSuffix(key, "/") {
		joined += "/"
	}
	return joined
}

func (a *Adapter) withOperationTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.config.OperationTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.config.OperationTimeout)
}

func (a *Adapter) ensureOpen() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return fmt.Errorf("s3 adapter: %w", objectstore.ErrClosed)
	}
	return nil
}

func (a *Adapter) toObjectInfo(item awss3types.Object) objectstore.ObjectInfo {
	key := aws.ToString(item.Key)
	if a.config.Prefix != "" {
		key = strings.TrimPrefix(key, a.config.Prefix+"/")
	}
	return objectstore.ObjectInfo{
		Key:          key,
		ETag:         trimETag(item.ETag),
		Size:         aws.ToInt64(item.Size),
		LastModified: aws.ToTime(item.LastModified),
	}
}

func trimETag(etag *string) string {
	return strings.Trim(strings.TrimSpace(aws.ToString(etag)), "\"")
}

func isNotFound(err error) bool {
	var noSuchKey *awss3types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var notFound *awss3types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var respErr *awshttp.ResponseError
	return errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound
}
