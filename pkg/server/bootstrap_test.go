package server

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lexintake/console/pkg/config"
	"github.com/lexintake/console/pkg/version"
)

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()
	return port
}

func TestRun_RequiresPublicServer(t *testing.T) {
	if err := Run(context.Background(), Servers{}, RunOptions{}); err == nil {
		t.Fatal("expected error without a public server")
	}
}

func TestRun_StartupHookFailureStopsRun(t *testing.T) {
	public := NewPublicServer(config.HTTPConfig{Port: freePort(t)}, nil, PublicOptions{})
	var shutdownRan bool
	err := Run(context.Background(), Servers{Public: public}, RunOptions{
		StartupHooks: []LifecycleHook{
			{Name: "database", Fn: func(context.Context) error { return errors.New("connection refused") }},
		},
		ShutdownHooks: []LifecycleHook{
			{Name: "never", Fn: func(context.Context) error { shutdownRan = true; return nil }},
		},
	})
	if err == nil || !strings.Contains(err.Error(), `startup hook "database" failed`) {
		t.Fatalf("Run() error = %v", err)
	}
	if shutdownRan {
		t.Fatal("shutdown hooks must not run when startup fails")
	}
}

func TestRun_ShutdownHooksRunAfterCancel(t *testing.T) {
	// Given: both servers on free ports and two shutdown hooks, one failing
	public := NewPublicServer(config.HTTPConfig{Port: freePort(t)}, nil, PublicOptions{})
	mgmt := NewManagementServer(config.ManagementConfig{Port: freePort(t)}, nil, ManagementOptions{})

	var mu sync.Mutex
	var order []string
	hook := func(name string, err error) LifecycleHook {
		return LifecycleHook{Name: name, Fn: func(context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return err
		}}
	}

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, Servers{Public: public, Management: mgmt}, RunOptions{
			Version:       version.Current("intake-console"),
			StartupHooks:  []LifecycleHook{{Name: "ready", Fn: func(context.Context) error { close(started); return nil }}},
			ShutdownHooks: []LifecycleHook{hook("storage", errors.New("close failed")), hook("database", nil)},
		})
	}()

	// When: the run context is cancelled
	<-started
	cancel()

	// Then: Run returns cleanly and every shutdown hook ran in order
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return")
	}
	mu.Lock()
	defer mu.Unlock()
	if strings.Join(order, ",") != "storage,database" {
		t.Fatalf("shutdown order = %v", order)
	}
}

func TestRunShutdownHooks_JoinsErrors(t *testing.T) {
	err := runShutdownHooks(RunOptions{
		Logger: nil,
		ShutdownHooks: []LifecycleHook{
			{Name: "a", Fn: func(context.Context) error { return errors.New("a failed") }},
			{Name: "", Fn: func(context.Context) error { return errors.New("b failed") }},
			{Name: "skipped"},
		},
		ShutdownHookTimeout: time.Second,
	}.withDefaults())
	if err == nil {
		t.Fatal("expected joined error")
	}
	for _, want := range []string{`"a" failed`, `"unnamed" failed`} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q missing %q", err, want)
		}
	}
}

func TestInitTracing_Disabled(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Observability.Tracing.Enabled = false

	provider, hook, err := InitTracing(context.Background(), cfg, version.Current(cfg.Service.Name))
	if err != nil {
		t.Fatalf("InitTracing() error = %v", err)
	}
	if provider.Enabled() {
		t.Fatal("provider should be disabled")
	}
	if hook.Name != "tracing" || hook.Fn(context.Background()) != nil {
		t.Fatal("tracing shutdown hook failed")
	}
}

func TestInitTracing_EnabledWithoutEndpoint(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Observability.Tracing.Enabled = true
	cfg.Observability.Tracing.Endpoint = ""

	if _, _, err := InitTracing(context.Background(), cfg, version.Current(cfg.Service.Name)); err == nil {
		t.Fatal("expected error when tracing is enabled without an endpoint")
	}
}
