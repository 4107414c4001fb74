package ratelimit

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
	"github.com/google/uuid"
)

// TestContext defines the methods these steps need from the shared context.
type TestContext interface {
	POST(path string, body any) error
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
}

// RegisterSteps registers rate-limiting step definitions. Session creation is
// budgeted per client IP; the burst here exercises that window.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &ratelimitSteps{tc: tc}

	ctx.Step(`^I create (\d+) verification sessions in a burst$`, steps.createSessionsBurst)
	ctx.Step(`^the next session creation should return (\d+)$`, steps.nextCreateReturns)
	ctx.Step(`^the response should carry a retry hint$`, steps.responseCarriesRetryHint)
}

type ratelimitSteps struct {
	tc TestContext

	lastRetryAfter bool
}

func (s *ratelimitSteps) create() error {
	return s.tc.POST("/sessions", map[string]any{
		"user_id":       uuid.NewString(),
		"policy_id":     "default",
		"document_ref":  "doc://e2e/front.jpg",
		"document_kind": "nin",
	})
}

func (s *ratelimitSteps) createSessionsBurst(ctx context.Context, n int) error {
	for i := 0; i < n; i++ {
		if err := s.create(); err != nil {
			return err
		}
		if s.tc.GetLastResponseStatus() != 201 {
			return fmt.Errorf("create %d of %d returned %d: %s", i+1, n, s.tc.GetLastResponseStatus(), s.tc.GetLastResponseBody())
		}
	}
	return nil
}

func (s *ratelimitSteps) nextCreateReturns(ctx context.Context, status int) error {
	if err := s.create(); err != nil {
		return err
	}
	if s.tc.GetLastResponseStatus() != status {
		return fmt.Errorf("status %d, wanted %d", s.tc.GetLastResponseStatus(), status)
	}
	return nil
}

func (s *ratelimitSteps) responseCarriesRetryHint(ctx context.Context) error {
	body := string(s.tc.GetLastResponseBody())
	if body == "" {
		return fmt.Errorf("empty rate limit response body")
	}
	return nil
}
