package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zenid/internal/admin"
	auditsvc "zenid/internal/audit"
	audithandler "zenid/internal/audit/handler"
	"zenid/internal/coordinator"
	jwttoken "zenid/internal/jwt_token"
	"zenid/internal/policy"
	"zenid/internal/provider"
	"zenid/internal/ratelimit"
	"zenid/internal/session"
	sessionhandler "zenid/internal/session/handler"
	"zenid/pkg/platform/audit"
	auditmemory "zenid/pkg/platform/audit/store/memory"
	"zenid/pkg/testutil"
)

type stack struct {
	router  http.Handler
	manager *session.Manager
	tokens  *jwttoken.JWTService
}

func newStack(t *testing.T) *stack {
	t.Helper()

	pol := policy.Default()
	pol.Chains = map[provider.Capability]policy.Chain{
		provider.CapabilityDocument:   {Providers: []policy.ProviderPolicy{{ID: "doc", MaxAttempts: 1, Timeout: 5 * time.Second}}},
		provider.CapabilityRegistry:   {Providers: []policy.ProviderPolicy{{ID: "reg", MaxAttempts: 1, Timeout: 5 * time.Second}}},
		provider.CapabilityBiometric:  {Providers: []policy.ProviderPolicy{{ID: "bio", MaxAttempts: 1, Timeout: 5 * time.Second}}},
		provider.CapabilityBehavioral: {Providers: []policy.ProviderPolicy{{ID: "beh", MaxAttempts: 1, Timeout: 5 * time.Second}}},
	}
	policies := policy.NewRegistry()
	require.NoError(t, policies.Put(pol))

	providers := provider.NewRegistry()
	require.NoError(t, providers.RegisterDocument(provider.MockDocumentVerifier{Name: "doc", Confidence: 95}))
	require.NoError(t, providers.RegisterRegistry(provider.MockRegistryValidator{Name: "reg"}))
	require.NoError(t, providers.RegisterBiometric(provider.MockBiometricMatcher{Name: "bio"}))
	require.NoError(t, providers.RegisterBehavioral(provider.MockBehavioralScorer{Name: "beh", Anomaly: 0.1}))

	auditStore := auditmemory.NewInMemoryStore()
	recorder := audit.NewRecorder(auditStore)

	coord := coordinator.New(
		coordinator.WithAttemptSink(session.NewAuditAttemptSink(recorder, nil)),
		coordinator.WithSleep(func(context.Context, time.Duration) error { return nil }),
	)
	delivery := coordinator.NewDelivery(coordinator.NewInMemoryTokenStore(), time.Minute, nil)

	manager := session.NewManager(session.NewInMemoryStore(), recorder, policies, providers, coord, delivery)
	t.Cleanup(manager.Close)

	logger := slog.New(slog.DiscardHandler)
	tokens := jwttoken.NewJWTService("test-signing-key", "zenid", "zenid-api")

	router := NewRouter(Deps{
		Sessions:   sessionhandler.New(manager, logger),
		Audit:      audithandler.New(auditsvc.NewService(auditStore, logger), logger),
		Admin:      admin.New(policies, logger),
		Validator:  jwttoken.NewJWTServiceAdapter(tokens),
		Limiter:    ratelimit.NewMiddleware(ratelimit.NewInMemoryStore(), logger),
		Logger:     logger,
		AdminToken: "test-admin-token",
	})

	return &stack{router: router, manager: manager, tokens: tokens}
}

func (s *stack) createSession(t *testing.T) string {
	t.Helper()
	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(t, http.MethodPost, "/sessions", map[string]string{
		"user_id":       "7a27ab59-3eff-4a08-9b60-6ec553b3a9af",
		"policy_id":     policy.DefaultPolicyID,
		"document_ref":  "s3://documents/img-001.jpg",
		"document_kind": "nin",
	}))
	testutil.AssertStatus(t, rr, http.StatusCreated)
	resp := testutil.UnmarshalResponse[sessionhandler.CreateSessionResponse](t, rr)
	require.NotEmpty(t, resp.SessionID)
	return resp.SessionID
}

func (s *stack) waitDecided(t *testing.T, sessionID string) *sessionhandler.StatusResponse {
	t.Helper()
	var status *sessionhandler.StatusResponse
	require.Eventually(t, func() bool {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(t, http.MethodGet, "/sessions/"+sessionID))
		if rr.Code != http.StatusOK {
			return false
		}
		status = testutil.UnmarshalResponse[sessionhandler.StatusResponse](t, rr)
		return status.State == "decided"
	}, 5*time.Second, 10*time.Millisecond, "session never reached a decision over HTTP")
	return status
}

func (s *stack) bearer(t *testing.T, subject, role string) string {
	t.Helper()
	token, err := s.tokens.GenerateAccessToken(subject, role, time.Minute)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestVerificationFlowOverHTTP(t *testing.T) {
	s := newStack(t)

	sessionID := s.createSession(t)

	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(t, http.MethodPost, "/sessions/"+sessionID+"/biometric", map[string]any{
		"live_capture_ref": "s3://captures/live-001.jpg",
		"reference_ref":    "s3://captures/ref-001.jpg",
		"telemetry":        json.RawMessage(`{"keystrokes":[120,95,130]}`),
	}))
	testutil.AssertStatus(t, rr, http.StatusAccepted)

	status := s.waitDecided(t, sessionID)
	require.NotNil(t, status.Decision)
	assert.Equal(t, "accepted", status.Decision.Outcome)
	assert.Equal(t, "tier2_standard", status.Decision.Tier)
	assert.Equal(t, "verified", status.Document)
	assert.Equal(t, "verified", status.Biometric)
	require.NotNil(t, status.Score)
	assert.Greater(t, status.Score.Value, 700)

	// Evidence is summarized: field names only, no extracted values.
	require.NotEmpty(t, status.Evidence)
	raw := testutil.MustMarshal(t, status.Evidence)
	assert.NotContains(t, raw, "value")
}

func TestCreateSessionValidation(t *testing.T) {
	s := newStack(t)

	t.Run("malformed body", func(t *testing.T) {
		rr := testutil.DoRequest(s.router, testutil.NewRequestWithBody(t, http.MethodPost, "/sessions", `{"user_id":`))
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})

	t.Run("missing document_ref", func(t *testing.T) {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(t, http.MethodPost, "/sessions", map[string]string{
			"user_id":       "7a27ab59-3eff-4a08-9b60-6ec553b3a9af",
			"document_kind": "nin",
		}))
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
		body := testutil.UnmarshalErrorResponse(t, rr)
		assert.Equal(t, "invalid_input", body["error"])
	})

	t.Run("unknown document kind", func(t *testing.T) {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(t, http.MethodPost, "/sessions", map[string]string{
			"user_id":       "7a27ab59-3eff-4a08-9b60-6ec553b3a9af",
			"document_ref":  "s3://documents/img.jpg",
			"document_kind": "library_card",
		}))
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})

	t.Run("unknown policy", func(t *testing.T) {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(t, http.MethodPost, "/sessions", map[string]string{
			"user_id":       "7a27ab59-3eff-4a08-9b60-6ec553b3a9af",
			"policy_id":     "no-such-policy",
			"document_ref":  "s3://documents/img.jpg",
			"document_kind": "nin",
		}))
		testutil.AssertStatus(t, rr, http.StatusUnprocessableEntity)
	})

	t.Run("unknown session", func(t *testing.T) {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(t, http.MethodGet, "/sessions/5d1d5b5e-95ab-4c23-9475-1b8b88bb9f1b"))
		testutil.AssertStatus(t, rr, http.StatusNotFound)
	})

	t.Run("invalid session id", func(t *testing.T) {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(t, http.MethodGet, "/sessions/not-a-uuid"))
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})
}

func TestTelemetryEndpoint(t *testing.T) {
	s := newStack(t)
	sessionID := s.createSession(t)

	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(t, http.MethodPost, "/sessions/"+sessionID+"/telemetry", map[string]any{
		"events": json.RawMessage(`[{"type":"keystroke","dt":120}]`),
	}))
	testutil.AssertStatus(t, rr, http.StatusAccepted)

	t.Run("empty batch rejected", func(t *testing.T) {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(t, http.MethodPost, "/sessions/"+sessionID+"/telemetry", map[string]any{}))
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})
}

func TestAuditEndpointsRequireAuditorRole(t *testing.T) {
	s := newStack(t)
	sessionID := s.createSession(t)

	path := "/audit/sessions/" + sessionID

	t.Run("missing token", func(t *testing.T) {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(t, http.MethodGet, path))
		testutil.AssertStatus(t, rr, http.StatusUnauthorized)
	})

	t.Run("wrong role", func(t *testing.T) {
		req := testutil.NewRequest(t, http.MethodGet, path)
		req.Header.Set("Authorization", s.bearer(t, "reviewer-1", jwttoken.RoleReviewer))
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(t, rr, http.StatusUnauthorized)
	})

	t.Run("auditor sees the ledger", func(t *testing.T) {
		req := testutil.NewRequest(t, http.MethodGet, path)
		req.Header.Set("Authorization", s.bearer(t, "auditor-1", jwttoken.RoleAuditor))
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusOK(t, rr)

		resp := testutil.UnmarshalResponse[audithandler.ExportResponse](t, rr)
		require.NotEmpty(t, resp.Events)
		assert.Equal(t, uint64(1), resp.Events[0].Seq)
		assert.Equal(t, "session_created", resp.Events[0].Type)
	})

	t.Run("range export validates bounds", func(t *testing.T) {
		req := testutil.NewRequest(t, http.MethodGet, "/audit/events?from=2026-01-02T00:00:00Z&to=2026-01-01T00:00:00Z")
		req.Header.Set("Authorization", s.bearer(t, "auditor-1", jwttoken.RoleAuditor))
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})
}

func TestReplayEndpointMatchesLiveDecision(t *testing.T) {
	s := newStack(t)
	sessionID := s.createSession(t)

	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(t, http.MethodPost, "/sessions/"+sessionID+"/biometric", map[string]any{
		"live_capture_ref": "s3://captures/live-001.jpg",
	}))
	testutil.AssertStatus(t, rr, http.StatusAccepted)
	live := s.waitDecided(t, sessionID)

	req := testutil.NewRequest(t, http.MethodGet, "/audit/sessions/"+sessionID+"/replay")
	req.Header.Set("Authorization", s.bearer(t, "auditor-1", jwttoken.RoleAuditor))
	rr = testutil.DoRequest(s.router, req)
	testutil.AssertStatusOK(t, rr)

	replay := testutil.UnmarshalResponse[audithandler.ReplayResponse](t, rr)
	assert.Equal(t, sessionID, replay.SessionID)
	assert.Equal(t, "decided", replay.State)
	require.NotNil(t, replay.Score)
	assert.Equal(t, live.Score.Value, *replay.Score)
	assert.Equal(t, live.Decision.Outcome, replay.Outcome)
}

func TestOverrideRequiresReviewerRole(t *testing.T) {
	s := newStack(t)
	sessionID := s.createSession(t)

	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(t, http.MethodPost, "/sessions/"+sessionID+"/biometric", map[string]any{
		"live_capture_ref": "s3://captures/live-001.jpg",
	}))
	testutil.AssertStatus(t, rr, http.StatusAccepted)
	s.waitDecided(t, sessionID)

	body := map[string]string{
		"outcome": "rejected",
		"reason":  "document flagged in manual sweep",
	}

	t.Run("missing token", func(t *testing.T) {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(t, http.MethodPost, "/sessions/"+sessionID+"/override", body))
		testutil.AssertStatus(t, rr, http.StatusUnauthorized)
	})

	t.Run("auditor cannot override", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/sessions/"+sessionID+"/override", body)
		req.Header.Set("Authorization", s.bearer(t, "auditor-1", jwttoken.RoleAuditor))
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(t, rr, http.StatusUnauthorized)
	})

	t.Run("reviewer overrides and the trail shows both", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/sessions/"+sessionID+"/override", body)
		req.Header.Set("Authorization", s.bearer(t, "reviewer-1", jwttoken.RoleReviewer))
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusOK(t, rr)

		status := testutil.UnmarshalResponse[sessionhandler.StatusResponse](t, rr)
		require.Len(t, status.Overrides, 1)
		assert.Equal(t, "rejected", status.Overrides[0].Outcome)
		assert.Equal(t, "reviewer-1", status.Overrides[0].ReviewerID)
		assert.Equal(t, "accepted", status.Overrides[0].OriginalOutcome)
		// The original decision stays untouched.
		assert.Equal(t, "accepted", status.Decision.Outcome)
	})

	t.Run("tier required when accepting", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/sessions/"+sessionID+"/override", map[string]string{
			"outcome": "accepted",
			"reason":  "looks fine",
		})
		req.Header.Set("Authorization", s.bearer(t, "reviewer-1", jwttoken.RoleReviewer))
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})
}

func TestSessionCreateRateLimit(t *testing.T) {
	s := newStack(t)

	// Budget is 20/min per IP; the 21st create from one IP is turned away.
	for i := 0; i < 20; i++ {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(t, http.MethodPost, "/sessions", map[string]string{
			"user_id":       "7a27ab59-3eff-4a08-9b60-6ec553b3a9af",
			"document_ref":  "s3://documents/img.jpg",
			"document_kind": "nin",
		}))
		testutil.AssertStatus(t, rr, http.StatusCreated)
	}

	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(t, http.MethodPost, "/sessions", map[string]string{
		"user_id":       "7a27ab59-3eff-4a08-9b60-6ec553b3a9af",
		"document_ref":  "s3://documents/img.jpg",
		"document_kind": "nin",
	}))
	testutil.AssertStatus(t, rr, http.StatusTooManyRequests)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
}

func TestAdminPolicyEndpoints(t *testing.T) {
	s := newStack(t)

	pol := policy.Default()
	pol.ID = "kyc-strict"
	pol.Decision.MinConfidence = 0.7

	t.Run("missing admin token is rejected", func(t *testing.T) {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(t, http.MethodPut, "/admin/policies", pol))
		testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
	})

	t.Run("upsert then fetch", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPut, "/admin/policies", pol)
		req.Header.Set("X-Admin-Token", "test-admin-token")
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusOK(t, rr)

		req = testutil.NewRequest(t, http.MethodGet, "/admin/policies/kyc-strict")
		req.Header.Set("X-Admin-Token", "test-admin-token")
		rr = testutil.DoRequest(s.router, req)
		testutil.AssertStatusOK(t, rr)
		got := testutil.UnmarshalResponse[policy.Policy](t, rr)
		assert.Equal(t, 0.7, got.Decision.MinConfidence)
	})

	t.Run("invalid policy is rejected with a reason", func(t *testing.T) {
		bad := policy.Default()
		bad.ID = ""
		req := testutil.NewJSONRequest(t, http.MethodPut, "/admin/policies", bad)
		req.Header.Set("X-Admin-Token", "test-admin-token")
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(t, rr, http.StatusUnprocessableEntity, "invalid_policy")
	})

	t.Run("unknown policy is not found", func(t *testing.T) {
		req := testutil.NewRequest(t, http.MethodGet, "/admin/policies/ghost")
		req.Header.Set("X-Admin-Token", "test-admin-token")
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(t, rr, http.StatusNotFound)
	})
}

func TestHealthz(t *testing.T) {
	s := newStack(t)
	rr := testutil.DoRequest(s.router, testutil.NewRequest(t, http.MethodGet, "/healthz"))
	testutil.AssertStatusOK(t, rr)
}
