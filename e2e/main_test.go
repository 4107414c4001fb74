package e2e

import (
	"context"
	"os"
	"testing"

	"github.com/cucumber/godog"
)

// TestFeatures runs the Gherkin scenarios against a server named by
// ZENID_E2E_BASE_URL. Without it the suite is skipped, so the package can
// live in CI without a standing deployment.
func TestFeatures(t *testing.T) {
	baseURL := os.Getenv("ZENID_E2E_BASE_URL")
	if baseURL == "" {
		t.Skip("ZENID_E2E_BASE_URL not set, skipping end-to-end features")
	}

	tc := NewTestContext(baseURL)

	suite := godog.TestSuite{
		ScenarioInitializer: func(ctx *godog.ScenarioContext) {
			ctx.Before(func(c context.Context, _ *godog.Scenario) (context.Context, error) {
				tc.Reset()
				return c, nil
			})
			RegisterSteps(ctx, tc)
		},
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("end-to-end feature failures")
	}
}
