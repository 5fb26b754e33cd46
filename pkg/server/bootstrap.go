package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lexintake/console/pkg/config"
	"github.com/lexintake/console/pkg/observability/logger"
	"github.com/lexintake/console/pkg/observability/tracing"
	"github.com/lexintake/console/pkg/version"
)

// LifecycleHook is a named startup or shutdown action.
type LifecycleHook struct {
	Name string
	Fn   func(context.Context) error
}

// Servers groups the runtime servers. Management is nil when disabled.
type Servers struct {
	Public     *PublicServer
	Management *ManagementServer
}

// RunOptions controls Run.
type RunOptions struct {
	Logger              logger.Logger
	Version             version.Info
	StartupHooks        []LifecycleHook
	ShutdownHooks       []LifecycleHook
	ShutdownHookTimeout time.Duration
}

func (o RunOptions) withDefaults() RunOptions {
	if o.Logger == nil {
		o.Logger = logger.NewNop()
	}
	return o
}

// Run runs startup hooks, starts every server and blocks until ctx is cancelled or a
// server fails. Shutdown hooks run after the servers have stopped, even on failure.
func Run(ctx context.Context, servers Servers, opts RunOptions) error {
	if servers.Public == nil {
		return errors.New("public server is required")
	}
	opts = opts.withDefaults()

	opts.Logger.Info("application version metadata",
		"service", opts.Version.Service,
		"version", opts.Version.Version,
		"commit", opts.Version.Commit,
		"build_time", opts.Version.BuildTime,
	)

	if err := runStartupHooks(ctx, opts); err != nil {
		return err
	}
	defer func() {
		if err := runShutdownHooks(opts); err != nil {
			opts.Logger.Error("shutdown hooks completed with errors", "error", err)
		}
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	serverCount := 1
	if servers.Management != nil {
		serverCount = 2
	}

	errCh := make(chan error, serverCount)
	go func() { errCh <- servers.Public.Start(runCtx) }()
	if servers.Management != nil {
		go func() { errCh <- servers.Management.Start(runCtx) }()
	}

	var firstErr error
	for range serverCount {
		if err := <-errCh; err != nil && firstErr == nil {
			firstErr = err
			cancel()
		}
	}
	return firstErr
}

// RunWithSignals runs the servers until ctx is cancelled or SIGINT, SIGTERM or one of
// the given signals arrives.
func RunWithSignals(ctx context.Context, servers Servers, opts RunOptions, signals ...os.Signal) error {
	if len(signals) == 0 {
		signals = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}
	ctx, stop := signal.NotifyContext(ctx, signals...)
	defer stop()
	return Run(ctx, servers, opts)
}

// InitTracing creates the tracer provider for cfg. The returned hook flushes and stops it.
func InitTracing(ctx context.Context, cfg *config.Config, info version.Info) (*tracing.TracerProvider, LifecycleHook, error) {
	provider, err := tracing.NewTracerProvider(ctx, tracing.ConfigFrom(cfg, info.Version))
	if err != nil {
		return nil, LifecycleHook{}, fmt.Errorf("initialize tracing provider: %w", err)
	}
	return provider, LifecycleHook{Name: "tracing", Fn: provider.Shutdown}, nil
}

func hookName(hook LifecycleHook) string {
	if name := strings.TrimSpace(hook.Name); name != "" {
		return name
	}
	return "unnamed"
}

func runStartupHooks(ctx context.Context, opts RunOptions) error {
	for _, hook := range opts.StartupHooks {
		if hook.Fn == nil {
			continue
		}
		name := hookName(hook)
		opts.Logger.Info("startup hook start", "hook", name)
		if err := hook.Fn(ctx); err != nil {
			opts.Logger.Error("startup hook failed", "hook", name, "error", err)
			return fmt.Errorf("startup hook %q failed: %w", name, err)
		}
		opts.Logger.Info("startup hook complete", "hook", name)
	}
	return nil
}

// runShutdownHooks runs every hook with its own timeout and joins their errors.
func runShutdownHooks(opts RunOptions) error {
	timeout := opts.ShutdownHookTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	var errs []error
	for _, hook := range opts.ShutdownHooks {
		if hook.Fn == nil {
			continue
		}
		name := hookName(hook)
		opts.Logger.Info("shutdown hook start", "hook", name)

		hookCtx, cancel := context.WithTimeout(context.Background(), timeout)
		err := hook.Fn(hookCtx)
		cancel()

		if err != nil {
			opts.Logger.Error("shutdown hook failed", "hook", name, "error", err)
			errs = append(errs, fmt.Errorf("shutdown hook %q failed: %w", name, err))
			continue
		}
		opts.Logger.Info("shutdown hook complete", "hook", name)
	}
	return errors.Join(errs...)
}
