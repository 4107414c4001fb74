package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zenid/internal/domain"
	dErrors "zenid/pkg/domain-errors"
)

func settle(stage domain.Stage, status domain.StageStatus) Transition {
	return Transition{Kind: TransitionStageSettled, Stage: stage, Status: status}
}

func TestApply(t *testing.T) {
	t.Run("document settles independently of biometric", func(t *testing.T) {
		state, err := Apply(NewState(), settle(domain.StageDocument, domain.StageVerified))

		require.NoError(t, err)
		assert.Equal(t, PhaseGathering, state.Phase)
		assert.Equal(t, domain.StageVerified, state.Document)
		assert.Equal(t, domain.StagePending, state.Biometric)
	})

	t.Run("both stages settled moves to scoring", func(t *testing.T) {
		state, err := Apply(NewState(), settle(domain.StageDocument, domain.StageVerified))
		require.NoError(t, err)
		state, err = Apply(state, settle(domain.StageBiometric, domain.StageFailed))
		require.NoError(t, err)

		assert.Equal(t, PhaseScoring, state.Phase)
	})

	t.Run("stage failure also counts as settled", func(t *testing.T) {
		state, err := Apply(NewState(), settle(domain.StageDocument, domain.StageFailed))
		require.NoError(t, err)
		state, err = Apply(state, settle(domain.StageBiometric, domain.StageFailed))
		require.NoError(t, err)

		assert.Equal(t, PhaseScoring, state.Phase)
		assert.Equal(t, domain.StageFailed, state.Document)
	})

	t.Run("double settlement of the same stage is rejected", func(t *testing.T) {
		state, err := Apply(NewState(), settle(domain.StageDocument, domain.StageVerified))
		require.NoError(t, err)

		_, err = Apply(state, settle(domain.StageDocument, domain.StageFailed))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})

	t.Run("non-terminal stage status is rejected", func(t *testing.T) {
		_, err := Apply(NewState(), settle(domain.StageDocument, domain.StagePending))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})

	t.Run("behavioral settlement never changes the phase", func(t *testing.T) {
		state, err := Apply(NewState(), settle(domain.StageBehavioral, domain.StageVerified))

		require.NoError(t, err)
		assert.Equal(t, NewState(), state)
	})

	t.Run("decide requires scoring phase", func(t *testing.T) {
		_, err := Apply(NewState(), Transition{Kind: TransitionDecided})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})

	t.Run("decide from scoring is terminal", func(t *testing.T) {
		state := State{Phase: PhaseScoring, Document: domain.StageVerified, Biometric: domain.StageVerified}
		state, err := Apply(state, Transition{Kind: TransitionDecided})

		require.NoError(t, err)
		assert.Equal(t, PhaseDecided, state.Phase)
		assert.True(t, state.Terminal())

		_, err = Apply(state, Transition{Kind: TransitionDecided})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})

	t.Run("expiry reaches any non-terminal state", func(t *testing.T) {
		for _, state := range []State{
			NewState(),
			{Phase: PhaseGathering, Document: domain.StageVerified, Biometric: domain.StagePending},
			{Phase: PhaseScoring, Document: domain.StageVerified, Biometric: domain.StageFailed},
		} {
			next, err := Apply(state, Transition{Kind: TransitionExpired})
			require.NoError(t, err)
			assert.Equal(t, PhaseExpired, next.Phase)
		}
	})

	t.Run("terminal states cannot expire", func(t *testing.T) {
		for _, phase := range []Phase{PhaseDecided, PhaseExpired} {
			_, err := Apply(State{Phase: phase}, Transition{Kind: TransitionExpired})
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
		}
	})

	t.Run("settlement after expiry is rejected", func(t *testing.T) {
		state := State{Phase: PhaseExpired, Document: domain.StagePending, Biometric: domain.StagePending}
		_, err := Apply(state, settle(domain.StageDocument, domain.StageVerified))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})
}

func TestStateLabel(t *testing.T) {
	assert.Equal(t, "created", NewState().Label())
	assert.Equal(t, "collecting_evidence", State{Phase: PhaseGathering, Document: domain.StageVerified, Biometric: domain.StagePending}.Label())
	assert.Equal(t, "risk_scoring", State{Phase: PhaseScoring}.Label())
	assert.Equal(t, "decided", State{Phase: PhaseDecided}.Label())
	assert.Equal(t, "expired", State{Phase: PhaseExpired}.Label())
}
