package verification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cucumber/godog"
	"github.com/google/uuid"
)

// TestContext defines the methods these steps need from the shared context.
type TestContext interface {
	POST(path string, body any) error
	GET(path string, headers map[string]string) error
	GetResponseField(field string) (any, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	GetSessionID() string
	SetSessionID(id string)
	GetUserID() string
	SetUserID(id string)
}

// RegisterSteps registers verification pipeline step definitions.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &verificationSteps{tc: tc}

	ctx.Step(`^a new applicant$`, steps.newApplicant)
	ctx.Step(`^I start a verification session with document kind "([^"]*)"$`, steps.startSession)
	ctx.Step(`^I submit a live capture$`, steps.submitLiveCapture)
	ctx.Step(`^I submit a telemetry batch$`, steps.submitTelemetry)
	ctx.Step(`^the session should reach state "([^"]*)" within (\d+) seconds$`, steps.sessionReachesState)
	ctx.Step(`^the decision outcome should be "([^"]*)"$`, steps.decisionOutcomeIs)
	ctx.Step(`^the assigned tier should be "([^"]*)"$`, steps.assignedTierIs)
	ctx.Step(`^the response status should be (\d+)$`, steps.responseStatusIs)
	ctx.Step(`^the response error should be "([^"]*)"$`, steps.responseErrorIs)
	ctx.Step(`^I create a session with a malformed user id$`, steps.createSessionMalformedUser)
}

type verificationSteps struct {
	tc TestContext
}

func (s *verificationSteps) newApplicant(ctx context.Context) error {
	s.tc.SetUserID(uuid.NewString())
	return nil
}

func (s *verificationSteps) startSession(ctx context.Context, kind string) error {
	if err := s.tc.POST("/sessions", map[string]any{
		"user_id":       s.tc.GetUserID(),
		"policy_id":     "default",
		"document_ref":  "doc://e2e/front.jpg",
		"document_kind": kind,
	}); err != nil {
		return err
	}
	if s.tc.GetLastResponseStatus() != 201 {
		return fmt.Errorf("session create returned %d: %s", s.tc.GetLastResponseStatus(), s.tc.GetLastResponseBody())
	}
	sessionID, err := s.tc.GetResponseField("session_id")
	if err != nil {
		return err
	}
	s.tc.SetSessionID(sessionID.(string))
	return nil
}

func (s *verificationSteps) submitLiveCapture(ctx context.Context) error {
	return s.tc.POST("/sessions/"+s.tc.GetSessionID()+"/biometric", map[string]any{
		"live_capture_ref": "capture://e2e/live.jpg",
		"reference_ref":    "doc://e2e/front.jpg",
	})
}

func (s *verificationSteps) submitTelemetry(ctx context.Context) error {
	return s.tc.POST("/sessions/"+s.tc.GetSessionID()+"/telemetry", map[string]any{
		"events": []map[string]any{
			{"type": "keydown", "dt": 120},
			{"type": "touch", "pressure": 0.4},
		},
	})
}

func (s *verificationSteps) sessionReachesState(ctx context.Context, state string, seconds int) error {
	deadline := time.Now().Add(time.Duration(seconds) * time.Second)
	for {
		if err := s.tc.GET("/sessions/"+s.tc.GetSessionID(), nil); err != nil {
			return err
		}
		current, err := s.tc.GetResponseField("state")
		if err != nil {
			return err
		}
		if current == state {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("session stuck in %q, wanted %q: %s", current, state, s.tc.GetLastResponseBody())
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func (s *verificationSteps) decisionOutcomeIs(ctx context.Context, outcome string) error {
	decision, err := s.tc.GetResponseField("decision")
	if err != nil {
		return err
	}
	m, ok := decision.(map[string]any)
	if !ok {
		return fmt.Errorf("decision is not an object: %v", decision)
	}
	if m["outcome"] != outcome {
		return fmt.Errorf("outcome %v, wanted %q", m["outcome"], outcome)
	}
	return nil
}

func (s *verificationSteps) assignedTierIs(ctx context.Context, tier string) error {
	decision, err := s.tc.GetResponseField("decision")
	if err != nil {
		return err
	}
	m, ok := decision.(map[string]any)
	if !ok {
		return fmt.Errorf("decision is not an object: %v", decision)
	}
	if m["tier"] != tier {
		return fmt.Errorf("tier %v, wanted %q", m["tier"], tier)
	}
	return nil
}

func (s *verificationSteps) responseStatusIs(ctx context.Context, status int) error {
	if s.tc.GetLastResponseStatus() != status {
		return fmt.Errorf("status %d, wanted %d: %s", s.tc.GetLastResponseStatus(), status, s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *verificationSteps) responseErrorIs(ctx context.Context, code string) error {
	errField, err := s.tc.GetResponseField("error")
	if err != nil {
		return err
	}
	if !strings.EqualFold(fmt.Sprint(errField), code) {
		return fmt.Errorf("error %v, wanted %q", errField, code)
	}
	return nil
}

func (s *verificationSteps) createSessionMalformedUser(ctx context.Context) error {
	return s.tc.POST("/sessions", map[string]any{
		"user_id":       "not-a-uuid",
		"policy_id":     "default",
		"document_ref":  "doc://e2e/front.jpg",
		"document_kind": "nin",
	})
}
