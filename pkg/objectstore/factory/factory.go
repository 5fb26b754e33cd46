// Package factory wires configuration into the storage Selector.
package factory

import (
	"context"
	"errors"
	"strings"

	"github.com/lexintake/console/pkg/config"
	"github.com/lexintake/console/pkg/environment"
	"github.com/lexintake/console/pkg/objectstore"
	"github.com/lexintake/console/pkg/objectstore/localfs"
	"github.com/lexintake/console/pkg/objectstore/s3"
	"github.com/lexintake/console/pkg/observability/logger"
)

// NewDetector builds the environment detector from the managed-host settings.
func NewDetector(cfg config.ManagedHostConfig, log logger.Logger, recorder environment.ProbeRecorder) *environment.Detector {
	return environment.NewDetector(
		environment.WithEnvVar(cfg.EnvVar),
		environment.WithSidecarURL(cfg.SidecarURL),
		environment.WithProbeTimeout(cfg.ProbeTimeout),
		environment.WithLogger(log),
		environment.WithProbeRecorder(recorder),
	)
}

// NewSelector creates an unselected storage Selector whose constructors are built from
// cfg. Nothing is constructed until the first Get.
func NewSelector(cfg config.ObjectStorageConfig, detector *environment.Detector, log logger.Logger, metrics objectstore.Metrics, opts ...objectstore.SelectorOption) (*objectstore.Selector, error) {
	if detector == nil {
		return nil, errors.New("environment detector is required")
	}
	if log == nil {
		log = logger.NewNop()
	}
	storageLog := log.With("component", "objectstore")

	all := []objectstore.SelectorOption{objectstore.WithLogger(storageLog)}
	if metrics != nil {
		all = append(all, objectstore.WithMetrics(metrics))
	}
	all = append(all, opts...)

	return objectstore.NewSelector(detector,
		CloudConstructor(cfg, detector.SidecarURL(), storageLog),
		LocalConstructor(cfg.Local, storageLog),
		all...,
	)
}

// CloudConstructor returns the constructor for the bucket-backed variant.
func CloudConstructor(cfg config.ObjectStorageConfig, sidecarURL string, log logger.Logger) objectstore.Constructor {
	return func(ctx context.Context) (objectstore.Service, error) {
		cloud := cfg.Cloud
		if strings.TrimSpace(cloud.Bucket) == "" {
			return nil, errors.New("object_storage.cloud.bucket is not set (INTAKE_STORAGE_CLOUD_BUCKET)")
		}
		adapter, err := s3.NewAdapter(ctx, s3.Config{
			Bucket:             cloud.Bucket,
			Region:             cloud.Region,
			Endpoint:           cloud.Endpoint,
			Prefix:             cloud.Prefix,
			AccessKeyID:        cloud.AccessKeyID,
			SecretAccessKey:    cloud.SecretAccessKey,
			SessionToken:       cloud.SessionToken,
			UsePathStyle:       cloud.UsePathStyle,
			OperationTimeout:   cloud.OperationTimeout,
			PresignExpiry:      cloud.PresignExpiry,
			SidecarCredentials: cloud.SidecarCredentials,
			SidecarURL:         sidecarURL,
		}, log.With("variant", objectstore.VariantCloud.String()))
		if err != nil {
			return nil, err
		}
		return adapter, nil
	}
}

// LocalConstructor returns the constructor for the filesystem variant.
func LocalConstructor(cfg config.LocalObjectStorageConfig, log logger.Logger) objectstore.Constructor {
	return func(context.Context) (objectstore.Service, error) {
		adapter, err := localfs.NewAdapter(localfs.Config{Root: cfg.Root}, log.With("variant", objectstore.VariantLocal.String()))
		if err != nil {
			return nil, err
		}
		return adapter, nil
	}
}
