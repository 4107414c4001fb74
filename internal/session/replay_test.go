package session

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zenid/internal/domain"
	"zenid/internal/policy"
	id "zenid/pkg/domain"
	dErrors "zenid/pkg/domain-errors"
	"zenid/pkg/platform/audit"
)

func event(t *testing.T, sessionID id.SessionID, seq uint64, typ audit.EventType, payload any) audit.Event {
	t.Helper()
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(t, err)
		raw = b
	}
	return audit.Event{
		ID:        uuid.New(),
		SessionID: sessionID,
		Seq:       seq,
		Type:      typ,
		Payload:   raw,
		Timestamp: time.Now().UTC(),
	}
}

func TestReplay(t *testing.T) {
	sessionID := id.NewSessionID()
	userID := id.NewUserID()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	created := createdPayload{
		UserID:       userID,
		PolicyID:     policy.DefaultPolicyID,
		DocumentKind: domain.DocumentNIN,
		DocumentRef:  "img-001",
		CreatedAt:    now,
		Deadline:     now.Add(15 * time.Minute),
	}

	docResult := domain.StageResult{
		Stage:     domain.StageDocument,
		Status:    domain.StageVerified,
		AttemptID: id.NewAttemptID(),
	}
	bioResult := domain.StageResult{
		Stage:     domain.StageBiometric,
		Status:    domain.StageVerified,
		AttemptID: id.NewAttemptID(),
	}

	t.Run("full ledger reconstructs the decided session", func(t *testing.T) {
		dec := domain.Decision{Outcome: domain.OutcomeAccepted, Tier: domain.Tier2Standard, DecidedAt: now}
		events := []audit.Event{
			event(t, sessionID, 1, audit.EventSessionCreated, created),
			event(t, sessionID, 2, audit.EventStageSettled, docResult),
			event(t, sessionID, 3, audit.EventBiometricSubmitted, biometricPayload{LiveCaptureRef: "live"}),
			event(t, sessionID, 4, audit.EventStageSettled, bioResult),
			event(t, sessionID, 5, audit.EventRiskScored, domain.RiskScore{Value: 900, Confidence: 0.9}),
			event(t, sessionID, 6, audit.EventDecisionMade, dec),
		}

		sess, err := Replay(events)

		require.NoError(t, err)
		assert.Equal(t, sessionID, sess.ID)
		assert.Equal(t, userID, sess.UserID)
		assert.Equal(t, PhaseDecided, sess.State.Phase)
		assert.Equal(t, domain.StageVerified, sess.State.Document)
		assert.Equal(t, domain.StageVerified, sess.State.Biometric)
		require.NotNil(t, sess.Decision)
		assert.Equal(t, domain.OutcomeAccepted, sess.Decision.Outcome)
		require.NotNil(t, sess.Score)
		assert.Equal(t, 900, sess.Score.Value)
		assert.Len(t, sess.Results, 2)
	})

	t.Run("expired ledger reconstructs the expired session", func(t *testing.T) {
		events := []audit.Event{
			event(t, sessionID, 1, audit.EventSessionCreated, created),
			event(t, sessionID, 2, audit.EventStageSettled, docResult),
			event(t, sessionID, 3, audit.EventSessionExpired, expiredPayload{ExpiredAt: now}),
		}

		sess, err := Replay(events)

		require.NoError(t, err)
		assert.Equal(t, PhaseExpired, sess.State.Phase)
		assert.Equal(t, domain.StageVerified, sess.State.Document)
	})

	t.Run("duplicate settlement in the ledger folds once", func(t *testing.T) {
		events := []audit.Event{
			event(t, sessionID, 1, audit.EventSessionCreated, created),
			event(t, sessionID, 2, audit.EventStageSettled, docResult),
			event(t, sessionID, 3, audit.EventStageSettled, docResult),
		}

		sess, err := Replay(events)

		require.NoError(t, err)
		assert.Len(t, sess.Results, 1)
		assert.Equal(t, domain.StageVerified, sess.State.Document)
	})

	t.Run("sequence gap is an inconsistency", func(t *testing.T) {
		events := []audit.Event{
			event(t, sessionID, 1, audit.EventSessionCreated, created),
			event(t, sessionID, 3, audit.EventStageSettled, docResult),
		}

		_, err := Replay(events)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInconsistency))
	})

	t.Run("ledger not starting with creation is an inconsistency", func(t *testing.T) {
		events := []audit.Event{
			event(t, sessionID, 1, audit.EventStageSettled, docResult),
		}

		_, err := Replay(events)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInconsistency))
	})

	t.Run("empty ledger is not found", func(t *testing.T) {
		_, err := Replay(nil)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

// Replaying the ledger written by a real run must land on the stored state.
func TestReplayMatchesLiveSession(t *testing.T) {
	h := newHarness(t, harnessConfig{})
	ctx := context.Background()

	sess, err := h.manager.CreateSession(ctx, id.NewUserID(), policy.DefaultPolicyID, "img-replay", domain.DocumentNIN)
	require.NoError(t, err)
	require.NoError(t, h.manager.SubmitBiometric(ctx, sess.ID, "live", "ref", []byte(`{"keys":[2,7]}`)))
	final := h.waitDecided(t, sess.ID)

	require.NoError(t, VerifyReplay(ctx, h.auditStore, final))

	events, err := h.auditStore.ListBySession(ctx, sess.ID)
	require.NoError(t, err)
	replayed, err := Replay(events)
	require.NoError(t, err)

	assert.Equal(t, final.State, replayed.State)
	assert.Equal(t, final.Decision.Outcome, replayed.Decision.Outcome)
	assert.Equal(t, final.Decision.Tier, replayed.Decision.Tier)
	assert.Equal(t, final.Score.Value, replayed.Score.Value)
	assert.Len(t, replayed.Results, len(final.Results))
}
