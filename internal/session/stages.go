package session

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"zenid/internal/coordinator"
	"zenid/internal/domain"
	"zenid/internal/policy"
	"zenid/internal/provider"
	id "zenid/pkg/domain"
	dErrors "zenid/pkg/domain-errors"
	"zenid/pkg/platform/audit"
)

// runDocumentStage executes OCR extraction and, when extraction yields an
// identity number, validates it against the matching government registry.
// Registry failure does not fail the document stage: the stage settles
// verified on usable OCR evidence and the missing corroboration shows up as a
// zero registry factor in scoring.
func (m *Manager) runDocumentStage(sctx context.Context, sessionID id.SessionID, pol policy.Policy, documentRef string, kind domain.DocumentKind) {
	ctx, span := m.tracer.Start(sctx, "session.document_stage")
	span.SetAttributes(attribute.String("session_id", sessionID.String()))
	defer span.End()

	attemptID := id.NewAttemptID()

	result, attempts, err := m.coord.Execute(ctx, sessionID, domain.StageDocument, pol.Chain(provider.CapabilityDocument),
		func(ctx context.Context, providerID string) (*provider.Result, error) {
			p, ok := m.providers.Document(providerID)
			if !ok {
				return nil, provider.NewError(provider.ErrorInternal, providerID, "document provider not registered", provider.ErrProviderNotFound)
			}
			return p.Extract(ctx, documentRef, kind)
		})

	stage := domain.StageResult{
		Stage:     domain.StageDocument,
		AttemptID: attemptID,
		Attempts:  attempts,
	}

	if err != nil {
		stage.Status = domain.StageFailed
		stage.FailureKind = string(provider.CategoryOf(err))
		stage.Evidence = []domain.EvidenceItem{
			m.aggregator.Failure(domain.StageDocument, lastProvider(attempts), provider.CategoryOf(err)),
		}
		m.deliver(sessionID, domain.StageDocument, attemptID, stage)
		return
	}

	docItem := m.aggregator.Normalize(domain.StageDocument, result)
	stage.Status = domain.StageVerified
	stage.Evidence = []domain.EvidenceItem{docItem}

	if regItem, ok := m.validateRegistry(ctx, sessionID, pol, docItem, kind); ok {
		stage.Evidence = append(stage.Evidence, regItem)
	}

	m.deliver(sessionID, domain.StageDocument, attemptID, stage)
}

// validateRegistry checks the extracted identity number against the registry
// for the document kind. Returns false when there is nothing to validate.
func (m *Manager) validateRegistry(ctx context.Context, sessionID id.SessionID, pol policy.Policy, docItem domain.EvidenceItem, kind domain.DocumentKind) (domain.EvidenceItem, bool) {
	chain := pol.Chain(provider.CapabilityRegistry)
	if len(chain.Providers) == 0 {
		return domain.EvidenceItem{}, false
	}
	identityNumber := docItem.Fields[domain.FieldIDNumber].Value
	if identityNumber == "" {
		return domain.EvidenceItem{}, false
	}

	regKind := domain.RegistryKindFor(kind)
	result, attempts, err := m.coord.Execute(ctx, sessionID, domain.StageRegistry, chain,
		func(ctx context.Context, providerID string) (*provider.Result, error) {
			p, ok := m.providers.RegistryValidator(providerID)
			if !ok {
				return nil, provider.NewError(provider.ErrorInternal, providerID, "registry provider not registered", provider.ErrProviderNotFound)
			}
			return p.Validate(ctx, identityNumber, regKind)
		})
	if err != nil {
		return m.aggregator.Failure(domain.StageRegistry, lastProvider(attempts), provider.CategoryOf(err)), true
	}
	return m.aggregator.Normalize(domain.StageRegistry, result), true
}

// runBiometricStage runs the face match and, when a telemetry batch rode
// along with the capture, the behavioral scorer concurrently. The behavioral
// leg settles through its own Advance so its failure never blocks the match.
func (m *Manager) runBiometricStage(sctx context.Context, sessionID id.SessionID, pol policy.Policy, liveCaptureRef, referenceRef string, telemetry []byte) {
	ctx, span := m.tracer.Start(sctx, "session.biometric_stage")
	span.SetAttributes(attribute.String("session_id", sessionID.String()))
	defer span.End()

	g, gctx := errgroup.WithContext(ctx)

	attemptID := id.NewAttemptID()
	var stage domain.StageResult

	g.Go(func() error {
		result, attempts, err := m.coord.Execute(gctx, sessionID, domain.StageBiometric, pol.Chain(provider.CapabilityBiometric),
			func(ctx context.Context, providerID string) (*provider.Result, error) {
				p, ok := m.providers.Biometric(providerID)
				if !ok {
					return nil, provider.NewError(provider.ErrorInternal, providerID, "biometric provider not registered", provider.ErrProviderNotFound)
				}
				return p.Match(ctx, liveCaptureRef, referenceRef)
			})

		stage = domain.StageResult{
			Stage:     domain.StageBiometric,
			AttemptID: attemptID,
			Attempts:  attempts,
		}
		if err != nil {
			stage.Status = domain.StageFailed
			stage.FailureKind = string(provider.CategoryOf(err))
			stage.Evidence = []domain.EvidenceItem{
				m.aggregator.Failure(domain.StageBiometric, lastProvider(attempts), provider.CategoryOf(err)),
			}
		} else {
			stage.Status = domain.StageVerified
			stage.Evidence = []domain.EvidenceItem{m.aggregator.Normalize(domain.StageBiometric, result)}
		}
		return nil
	})

	if len(telemetry) > 0 {
		g.Go(func() error {
			m.runBehavioralStage(gctx, sessionID, pol, telemetry)
			return nil
		})
	}

	// Legs report through deliver, never through the group error. The match
	// result is delivered after the behavioral leg settles: the biometric
	// settlement may be the one that trips the scoring sync point, and the
	// behavioral factor must be in place by then.
	_ = g.Wait()
	m.deliver(sessionID, domain.StageBiometric, attemptID, stage)
}

// runBehavioralStage scores a telemetry batch. Failure settles the stage as
// failed without touching the phase; scoring treats missing behavioral signal
// as neutral.
func (m *Manager) runBehavioralStage(sctx context.Context, sessionID id.SessionID, pol policy.Policy, telemetry []byte) {
	ctx, span := m.tracer.Start(sctx, "session.behavioral_stage")
	span.SetAttributes(attribute.String("session_id", sessionID.String()))
	defer span.End()

	chain := pol.Chain(provider.CapabilityBehavioral)
	if len(chain.Providers) == 0 {
		return
	}

	attemptID := id.NewAttemptID()
	result, attempts, err := m.coord.Execute(ctx, sessionID, domain.StageBehavioral, chain,
		func(ctx context.Context, providerID string) (*provider.Result, error) {
			p, ok := m.providers.Behavioral(providerID)
			if !ok {
				return nil, provider.NewError(provider.ErrorInternal, providerID, "behavioral provider not registered", provider.ErrProviderNotFound)
			}
			return p.Score(ctx, telemetry)
		})

	stage := domain.StageResult{
		Stage:     domain.StageBehavioral,
		AttemptID: attemptID,
		Attempts:  attempts,
	}
	if err != nil {
		stage.Status = domain.StageFailed
		stage.FailureKind = string(provider.CategoryOf(err))
	} else {
		stage.Status = domain.StageVerified
		stage.Behavioral = result.Factors
		stage.Evidence = []domain.EvidenceItem{m.aggregator.Normalize(domain.StageBehavioral, result)}
	}
	m.deliver(sessionID, domain.StageBehavioral, attemptID, stage)
}

// deliver hands a settled stage result to Advance through the idempotent
// delivery layer. Runs on the base context: a result that settled just before
// the session deadline must still be applied or cleanly rejected by Advance,
// not lost to the stage context dying.
func (m *Manager) deliver(sessionID id.SessionID, stage domain.Stage, attemptID id.AttemptID, result domain.StageResult) {
	err := m.delivery.Deliver(m.baseCtx, sessionID, stage, attemptID, func(ctx context.Context) error {
		return m.Advance(ctx, sessionID, result)
	})
	if err == nil {
		return
	}
	if dErrors.HasCode(err, dErrors.CodeSessionExpired) || dErrors.HasCode(err, dErrors.CodeInvalidTransition) {
		m.logger.InfoContext(m.baseCtx, "stage result discarded",
			"session_id", sessionID,
			"stage", stage,
			"reason", err,
		)
		return
	}
	m.logger.ErrorContext(m.baseCtx, "applying stage result",
		"session_id", sessionID,
		"stage", stage,
		"error", err,
	)
}

func lastProvider(attempts []domain.ProviderAttempt) string {
	if len(attempts) == 0 {
		return ""
	}
	return attempts[len(attempts)-1].ProviderID
}

// auditAttemptSink routes coordinator attempts into the ledger as operations
// events.
type auditAttemptSink struct {
	recorder *audit.Recorder
	logger   *slog.Logger
}

// NewAuditAttemptSink adapts the audit recorder to the coordinator's sink.
func NewAuditAttemptSink(recorder *audit.Recorder, logger *slog.Logger) coordinator.AttemptSink {
	return &auditAttemptSink{recorder: recorder, logger: logger}
}

type attemptPayload struct {
	Stage domain.Stage `json:"stage"`
	domain.ProviderAttempt
}

func (s *auditAttemptSink) RecordAttempt(ctx context.Context, sessionID id.SessionID, stage domain.Stage, attempt domain.ProviderAttempt) {
	if _, err := s.recorder.Record(ctx, sessionID, audit.EventProviderAttempted, attemptPayload{
		Stage:           stage,
		ProviderAttempt: attempt,
	}); err != nil && s.logger != nil {
		// A lost operations event does not fail the attempt itself; the
		// coordinator's outcome still reaches the ledger via stage_settled.
		if !errors.Is(err, context.Canceled) {
			s.logger.ErrorContext(ctx, "recording provider attempt", "session_id", sessionID, "error", err)
		}
	}
}
