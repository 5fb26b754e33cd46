// Package testutil holds helpers shared by the console's test suites.
package testutil

import (
	"os"
	"testing"
)

// IntegrationEnv enables tests that need Docker or other external services.
const IntegrationEnv = "INTEGRATION_TESTS"

// SkipIfShort skips the test if running in short mode
func SkipIfShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
}

// RequireIntegration skips the test unless INTEGRATION_TESTS is set and the run is
// not in short mode.
func RequireIntegration(t *testing.T) {
	t.Helper()
	SkipIfShort(t)
	if os.Getenv(IntegrationEnv) == "" {
		t.Skipf("skipping integration test (set %s=1 to run)", IntegrationEnv)
	}
}
