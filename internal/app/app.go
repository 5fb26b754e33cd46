// Package app assembles the console from configuration and runs it.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/lexintake/console/internal/console"
	"github.com/lexintake/console/internal/console/api"
	"github.com/lexintake/console/internal/console/postgres"
	"github.com/lexintake/console/pkg/auth"
	"github.com/lexintake/console/pkg/config"
	"github.com/lexintake/console/pkg/environment"
	"github.com/lexintake/console/pkg/health"
	"github.com/lexintake/console/pkg/middleware/ratelimit"
	"github.com/lexintake/console/pkg/migrate"
	"github.com/lexintake/console/pkg/objectstore"
	"github.com/lexintake/console/pkg/objectstore/factory"
	"github.com/lexintake/console/pkg/observability/logger"
	"github.com/lexintake/console/pkg/observability/metrics"
	"github.com/lexintake/console/pkg/resilience"
	"github.com/lexintake/console/pkg/server"
	"github.com/lexintake/console/pkg/version"
)

// Serve builds every component from cfg and runs the public and management servers
// until ctx is cancelled. Storage is selected lazily on the first request that needs it.
func Serve(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	if log == nil {
		log = logger.NewNop()
	}
	info := version.Current(cfg.Service.Name)

	creds, tokens, err := newAuth(cfg.Auth)
	if err != nil {
		return err
	}

	tp, tracingHook, err := server.InitTracing(ctx, cfg, info)
	if err != nil {
		return err
	}

	db, err := postgres.Open(ctx, databaseConfig(cfg.Database), log.With("component", "postgres"))
	if err != nil {
		_ = tracingHook.Fn(context.Background())
		return fmt.Errorf("open database: %w", err)
	}

	reg := metrics.NewRegistry()
	detector := factory.NewDetector(cfg.ObjectStorage.Managed, log, reg)
	selector, err := factory.NewSelector(cfg.ObjectStorage, detector, log, reg,
		objectstore.WithTracer(tp.Tracer("objectstore")))
	if err == nil {
		err = objectstore.InstallProcessSelector(selector)
	}
	if err != nil {
		_ = db.Close()
		_ = tracingHook.Fn(context.Background())
		return fmt.Errorf("create storage selector: %w", err)
	}

	services := newServices(cfg, postgres.NewStore(db), selector, detector, creds, tokens, log)
	handler := api.New(services, apiConfig(cfg, tokens, log))

	public := server.NewPublicServer(cfg.HTTP, log, server.PublicOptions{Metrics: reg})
	handler.Register(public.Router())

	servers := server.Servers{Public: public}
	if cfg.Management.Enabled {
		servers.Management = server.NewManagementServer(cfg.Management, log, server.ManagementOptions{
			Health:      newHealthRegistry(db, selector, detector),
			Metrics:     reg,
			Version:     info,
			Environment: detector,
			Storage:     selector,
		})
	}

	return server.RunWithSignals(ctx, servers, server.RunOptions{
		Logger:       log,
		Version:      info,
		StartupHooks: []server.LifecycleHook{environmentHook(detector, log)},
		ShutdownHooks: []server.LifecycleHook{
			{Name: "storage", Fn: func(context.Context) error { return selector.Close() }},
			{Name: "database", Fn: func(context.Context) error { return db.Close() }},
			tracingHook,
		},
	})
}

// Migrate runs one migration subcommand against the configured database.
func Migrate(ctx context.Context, cfg *config.Config, log logger.Logger, direction string, steps int) (*migrate.Status, error) {
	db, err := postgres.Open(ctx, databaseConfig(cfg.Database), log)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	m, err := db.Migrator()
	if err != nil {
		return nil, err
	}
	return migrate.Run(ctx, m, direction, steps, log)
}

func databaseConfig(cfg config.DatabaseConfig) postgres.Config {
	return postgres.Config{
		URL:             cfg.URL,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
		QueryTimeout:    cfg.QueryTimeout,
	}
}

func newAuth(cfg config.AuthConfig) (*auth.AdminCredentials, *auth.HMACTokens, error) {
	if cfg.AdminPasswordHash == "" {
		return nil, nil, errors.New("auth.admin_password_hash is not set (INTAKE_AUTH_ADMIN_PASSWORD_HASH)")
	}
	creds, err := auth.NewAdminCredentials(cfg.AdminUsername, cfg.AdminPasswordHash)
	if err != nil {
		return nil, nil, fmt.Errorf("admin credentials: %w", err)
	}
	tokens, err := auth.NewHMACTokens(cfg.SigningKey, cfg.Issuer, cfg.TokenTTL)
	if err != nil {
		return nil, nil, fmt.Errorf("token signer: %w", err)
	}
	return creds, tokens, nil
}

type consoleStore interface {
	console.IntakeStore
	console.AttorneyStore
	console.PostStore
	console.SettingsStore
}

func newServices(
	cfg *config.Config,
	store consoleStore,
	storage console.StorageProvider,
	env console.EnvironmentInfo,
	creds *auth.AdminCredentials,
	tokens *auth.HMACTokens,
	log logger.Logger,
) api.Services {
	media := console.NewMediaService(storage, cfg.Media.MaxUploadBytes, log.With("component", "media"))
	breaker := resilience.NewBreaker("smtp-notify", resilience.BreakerConfig{
		MaxFailures:    cfg.Email.NotifyMaxFailures,
		Cooldown:       cfg.Email.NotifyCooldown,
		AttemptTimeout: cfg.Email.SendTimeout,
	})
	smtp := console.NewSMTPService(store, nil, log.With("component", "smtp"), console.WithNotifyBreaker(breaker))
	return api.Services{
		Auth:      console.NewAuthService(creds, tokens, log.With("component", "auth")),
		Intakes:   console.NewIntakeService(store, store, smtp, log.With("component", "intake")),
		Attorneys: console.NewAttorneyService(store, media, log.With("component", "attorneys")),
		Blog:      console.NewBlogService(store, media, log.With("component", "blog")),
		Media:     media,
		SMTP:      smtp,
		Dashboard: console.NewDashboardService(store, store, store, storage, env),
	}
}

func apiConfig(cfg *config.Config, tokens *auth.HMACTokens, log logger.Logger) api.Config {
	c := api.Config{
		Validator:     tokens,
		RedirectMedia: cfg.Media.RedirectPresigned,
		Logger:        log,
	}
	if cfg.RateLimit.Enabled {
		c.LoginLimiter = ratelimit.NewTokenBucketLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	}
	return c
}

func newHealthRegistry(db health.Checkable, selector health.SelectedStorage, probe health.SidecarProbe) *health.Registry {
	reg := health.NewRegistry()
	reg.Register(health.NewAdapterChecker("database", db, 0))
	reg.Register(health.NewStorageChecker(selector, 0))
	reg.Register(health.NewSidecarChecker(probe))
	return reg
}

// environmentHook logs what the detector sees at startup. An unreachable sidecar is
// reported but does not stop the console.
func environmentHook(detector *environment.Detector, log logger.Logger) server.LifecycleHook {
	return server.LifecycleHook{Name: "environment", Fn: func(ctx context.Context) error {
		signal := detector.Signal()
		fields := []any{"environment", signal.Name, "env_var", signal.EnvVar}
		if signal.Managed {
			fields = append(fields, "sidecar_available", detector.IsSidecarAvailable(ctx))
		}
		log.Info("environment detected", fields...)
		return nil
	}}
}
