package version

import (
	"runtime"
	"strings"
	"testing"
	"time"
)

func withBuildVars(t *testing.T, version, commit, buildTime string) {
	t.Helper()
	oldVersion, oldCommit, oldBuildTime := AppVersion, GitCommit, BuildTime
	t.Cleanup(func() {
		AppVersion, GitCommit, BuildTime = oldVersion, oldCommit, oldBuildTime
	})
	AppVersion, GitCommit, BuildTime = version, commit, buildTime
}

func TestCurrent_Defaults(t *testing.T) {
	withBuildVars(t, "", "", "")

	info := Current("")
	if info.Service != Unknown {
		t.Fatalf("expected service %q, got %q", Unknown, info.Service)
	}
	if info.Version != DevelopmentVersion {
		t.Fatalf("expected version %q, got %q", DevelopmentVersion, info.Version)
	}
	if info.Commit == "" || info.BuildTime == "" {
		t.Fatalf("commit and build time must never be empty: %+v", info)
	}
	if info.GoVersion != runtime.Version() {
		t.Fatalf("go version = %q", info.GoVersion)
	}
}

func TestCurrent_LinkerValues(t *testing.T) {
	withBuildVars(t, "v1.4.0", "abc123", "2026-05-01T10:00:00Z")

	info := Current("intake-console")
	if info.Version != "v1.4.0" || info.Commit != "abc123" || info.BuildTime != "2026-05-01T10:00:00Z" {
		t.Fatalf("unexpected info: %+v", info)
	}
	if !strings.HasPrefix(info.String(), "intake-console@v1.4.0 (commit=abc123") {
		t.Fatalf("unexpected string: %s", info.String())
	}
}

func TestInfo_ParseBuildTime(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	parsed, ok := Info{BuildTime: now.Format(time.RFC3339)}.ParseBuildTime()
	if !ok {
		t.Fatalf("expected build time to be parsed")
	}
	if !parsed.Equal(now) {
		t.Fatalf("expected %s, got %s", now, parsed)
	}

	if _, ok := (Info{BuildTime: Unknown}).ParseBuildTime(); ok {
		t.Fatal("unknown build time parsed")
	}
	if _, ok := (Info{BuildTime: "yesterday"}).ParseBuildTime(); ok {
		t.Fatal("garbage build time parsed")
	}
}
