package session

import (
	"context"
	"encoding/json"

	"zenid/internal/domain"
	dErrors "zenid/pkg/domain-errors"
	"zenid/pkg/platform/audit"
)

// Replay folds a session's audit events, in order, into the session state
// they describe. The ledger is the source of truth: a session reconstructed
// from empty must match the stored one exactly, and any gap or undecodable
// event is an InternalInconsistency, never silently skipped.
func Replay(events []audit.Event) (*Session, error) {
	if len(events) == 0 {
		return nil, dErrors.New(dErrors.CodeNotFound, "no audit events to replay")
	}

	var sess *Session
	var prevSeq uint64
	for _, event := range events {
		if event.Seq != prevSeq+1 {
			return nil, dErrors.Newf(dErrors.CodeInconsistency,
				"audit sequence gap for session %s: have %d after %d", event.SessionID, event.Seq, prevSeq)
		}
		prevSeq = event.Seq

		next, err := fold(sess, event)
		if err != nil {
			return nil, err
		}
		sess = next
	}
	return sess, nil
}

func fold(sess *Session, event audit.Event) (*Session, error) {
	if sess == nil && event.Type != audit.EventSessionCreated {
		return nil, dErrors.Newf(dErrors.CodeInconsistency,
			"session %s ledger does not begin with creation", event.SessionID)
	}

	switch event.Type {
	case audit.EventSessionCreated:
		if sess != nil {
			return nil, dErrors.Newf(dErrors.CodeInconsistency, "session %s created twice", event.SessionID)
		}
		var p createdPayload
		if err := decode(event, &p); err != nil {
			return nil, err
		}
		return &Session{
			ID:           event.SessionID,
			UserID:       p.UserID,
			PolicyID:     p.PolicyID,
			DocumentRef:  p.DocumentRef,
			DocumentKind: p.DocumentKind,
			State:        NewState(),
			CreatedAt:    p.CreatedAt,
			Deadline:     p.Deadline,
			Applied:      make(map[string]bool),
		}, nil

	case audit.EventStageSettled:
		var result domain.StageResult
		if err := decode(event, &result); err != nil {
			return nil, err
		}
		key := AppliedKey(result.Stage, result.AttemptID)
		if sess.Applied[key] {
			// A redelivered settlement that slipped past delivery dedup; the
			// manager absorbed it, so replay does too.
			return sess, nil
		}
		next, err := Apply(sess.State, Transition{
			Kind:   TransitionStageSettled,
			Stage:  result.Stage,
			Status: result.Status,
		})
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInconsistency, "replaying stage settlement")
		}
		sess.State = next
		sess.Results = append(sess.Results, result)
		sess.Applied[key] = true
		if result.Stage == domain.StageBehavioral && result.Behavioral != nil {
			sess.Behavioral = result.Behavioral
		}
		return sess, nil

	case audit.EventRiskScored:
		var score domain.RiskScore
		if err := decode(event, &score); err != nil {
			return nil, err
		}
		sess.Score = &score
		return sess, nil

	case audit.EventDecisionMade:
		var dec domain.Decision
		if err := decode(event, &dec); err != nil {
			return nil, err
		}
		next, err := Apply(sess.State, Transition{Kind: TransitionDecided})
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInconsistency, "replaying decision")
		}
		sess.State = next
		sess.Decision = &dec
		return sess, nil

	case audit.EventSessionExpired:
		next, err := Apply(sess.State, Transition{Kind: TransitionExpired})
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInconsistency, "replaying expiry")
		}
		sess.State = next
		return sess, nil

	case audit.EventDecisionOverridden:
		var o Override
		if err := decode(event, &o); err != nil {
			return nil, err
		}
		sess.Overrides = append(sess.Overrides, o)
		return sess, nil

	case audit.EventBiometricSubmitted, audit.EventTelemetryReceived, audit.EventProviderAttempted:
		// Operations events carry no state.
		return sess, nil
	}

	return nil, dErrors.Newf(dErrors.CodeInconsistency, "unknown audit event type %q", event.Type)
}

func decode(event audit.Event, v any) error {
	if err := json.Unmarshal(event.Payload, v); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInconsistency, "decoding audit payload")
	}
	return nil
}

// VerifyReplay reconstructs a session from its ledger and checks it against
// the stored copy. Divergence is fatal by contract: the caller gets an
// InternalInconsistency it must not mask.
func VerifyReplay(ctx context.Context, store audit.Store, stored *Session) error {
	events, err := store.ListBySession(ctx, stored.ID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "loading ledger for replay")
	}
	replayed, err := Replay(events)
	if err != nil {
		return err
	}

	if replayed.State != stored.State {
		return dErrors.Newf(dErrors.CodeInconsistency,
			"session %s state %+v diverges from replayed %+v", stored.ID, stored.State, replayed.State)
	}
	if (replayed.Decision == nil) != (stored.Decision == nil) {
		return dErrors.Newf(dErrors.CodeInconsistency, "session %s decision presence diverges from ledger", stored.ID)
	}
	if replayed.Decision != nil && replayed.Decision.Outcome != stored.Decision.Outcome {
		return dErrors.Newf(dErrors.CodeInconsistency,
			"session %s decision %s diverges from replayed %s", stored.ID, stored.Decision.Outcome, replayed.Decision.Outcome)
	}
	if len(replayed.Results) != len(stored.Results) {
		return dErrors.Newf(dErrors.CodeInconsistency, "session %s stage results diverge from ledger", stored.ID)
	}
	return nil
}
