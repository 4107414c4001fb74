package session

import (
	"zenid/internal/domain"
	dErrors "zenid/pkg/domain-errors"
)

// TransitionKind names the inputs the state machine accepts.
type TransitionKind string

const (
	// TransitionStageSettled folds a terminal stage status into the state.
	TransitionStageSettled TransitionKind = "stage_settled"
	// TransitionDecided moves a scoring session to its terminal decision.
	TransitionDecided TransitionKind = "decided"
	// TransitionExpired terminates any non-terminal session.
	TransitionExpired TransitionKind = "expired"
)

// Transition is one input to Apply.
type Transition struct {
	Kind  TransitionKind
	Stage domain.Stage
	// Status is the settled stage status for TransitionStageSettled.
	Status domain.StageStatus
}

// Apply is the pure transition function: (state, transition) to next state.
// It never touches storage or clocks, so every legal and illegal path is
// table-testable. Illegal inputs return InvalidTransition and the unchanged
// state.
func Apply(state State, tr Transition) (State, error) {
	switch tr.Kind {
	case TransitionExpired:
		if state.Terminal() {
			return state, dErrors.Newf(dErrors.CodeInvalidTransition, "cannot expire a %s session", state.Phase)
		}
		state.Phase = PhaseExpired
		return state, nil

	case TransitionStageSettled:
		return applyStageSettled(state, tr)

	case TransitionDecided:
		if state.Phase != PhaseScoring {
			return state, dErrors.Newf(dErrors.CodeInvalidTransition, "cannot decide in phase %s", state.Phase)
		}
		state.Phase = PhaseDecided
		return state, nil
	}
	return state, dErrors.Newf(dErrors.CodeInvalidTransition, "unknown transition %q", tr.Kind)
}

func applyStageSettled(state State, tr Transition) (State, error) {
	if state.Phase != PhaseGathering {
		return state, dErrors.Newf(dErrors.CodeInvalidTransition, "stage %s settled in phase %s", tr.Stage, state.Phase)
	}
	if tr.Status != domain.StageVerified && tr.Status != domain.StageFailed {
		return state, dErrors.Newf(dErrors.CodeInvalidTransition, "stage %s settled with non-terminal status %q", tr.Stage, tr.Status)
	}

	switch tr.Stage {
	case domain.StageDocument:
		if state.Document != domain.StagePending {
			return state, dErrors.Newf(dErrors.CodeInvalidTransition, "document stage already %s", state.Document)
		}
		state.Document = tr.Status
	case domain.StageBiometric:
		if state.Biometric != domain.StagePending {
			return state, dErrors.Newf(dErrors.CodeInvalidTransition, "biometric stage already %s", state.Biometric)
		}
		state.Biometric = tr.Status
	case domain.StageBehavioral:
		// Behavioral enriches scoring but does not gate the phase.
		return state, nil
	default:
		return state, dErrors.Newf(dErrors.CodeInvalidTransition, "stage %q cannot settle a session", tr.Stage)
	}

	if state.Document != domain.StagePending && state.Biometric != domain.StagePending {
		state.Phase = PhaseScoring
	}
	return state, nil
}
