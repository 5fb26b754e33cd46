package migrate

import (
	"context"
	"errors"
	"testing"
)

type fakeMigrator struct {
	upErr     error
	downSteps int
}

func (f *fakeMigrator) Up(context.Context) (int, error) { return 2, f.upErr }

func (f *fakeMigrator) Down(_ context.Context, steps int) (int, error) {
	f.downSteps = steps
	return steps, nil
}

func (f *fakeMigrator) Status(context.Context) (*Status, error) {
	return &Status{Pending: []PendingMigration{{Version: 3, Name: "blog"}}}, nil
}

func TestParseArgsDefaultsToUp(t *testing.T) {
	subcommand, steps, err := ParseArgs(nil)
	if err != nil {
		t.Fatalf("ParseArgs() error = %v", err)
	}
	if subcommand != "up" || steps != 1 {
		t.Fatalf("got %q %d, want up 1", subcommand, steps)
	}
}

func TestParseArgsInvalidSteps(t *testing.T) {
	if _, _, err := ParseArgs([]string{"down", "bad"}); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	m := &fakeMigrator{}

	if _, err := Run(ctx, m, "up", 1, nil); err != nil {
		t.Fatalf("up: %v", err)
	}
	if _, err := Run(ctx, m, "down", 2, nil); err != nil || m.downSteps != 2 {
		t.Fatalf("down: %v steps=%d", err, m.downSteps)
	}
	if _, err := Run(ctx, m, "down", 0, nil); err == nil {
		t.Fatal("expected error for zero steps")
	}
	status, err := Run(ctx, m, "status", 1, nil)
	if err != nil || len(status.Pending) != 1 {
		t.Fatalf("status: %v %+v", err, status)
	}
	if _, err := Run(ctx, m, "sideways", 1, nil); err == nil {
		t.Fatal("expected error for unknown command")
	}
	if _, err := Run(ctx, nil, "up", 1, nil); err == nil {
		t.Fatal("expected error for nil migrator")
	}
}

func TestRunPropagatesOperationError(t *testing.T) {
	boom := errors.New("boom")
	_, err := Run(context.Background(), &fakeMigrator{upErr: boom}, "up", 1, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom error, got %v", err)
	}
}
