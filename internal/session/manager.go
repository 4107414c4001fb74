package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"zenid/internal/coordinator"
	"zenid/internal/decision"
	"zenid/internal/domain"
	"zenid/internal/evidence"
	"zenid/internal/policy"
	"zenid/internal/provider"
	"zenid/internal/scoring"
	"zenid/internal/session/metrics"
	id "zenid/pkg/domain"
	dErrors "zenid/pkg/domain-errors"
	"zenid/pkg/platform/audit"
	"zenid/pkg/platform/sentinel"
)

// Manager is the sole mutator of session state. Stage executors, deadline
// watchers, and HTTP handlers all funnel their proposed changes through
// Advance; the manager serializes them per session and writes audit before
// state so state is never observably ahead of the ledger.
type Manager struct {
	store      Store
	auditor    *audit.Recorder
	policies   *policy.Registry
	providers  *provider.Registry
	coord      *coordinator.Coordinator
	delivery   *coordinator.Delivery
	aggregator *evidence.Aggregator
	engine     *scoring.Engine
	resolver   *decision.Resolver

	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
	clock   func() time.Time
	baseCtx context.Context

	mu      sync.Mutex
	locks   map[id.SessionID]*sync.Mutex
	ctxs    map[id.SessionID]context.Context
	cancels map[id.SessionID]context.CancelFunc

	wg sync.WaitGroup
}

// Option configures the Manager.
type Option func(*Manager)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

func WithMetrics(mx *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mx }
}

func WithTracer(tracer trace.Tracer) Option {
	return func(m *Manager) { m.tracer = tracer }
}

// WithClock injects time for deterministic tests.
func WithClock(clock func() time.Time) Option {
	return func(m *Manager) { m.clock = clock }
}

// WithBaseContext sets the context parenting all background stage work, so
// process shutdown cancels in-flight provider calls.
func WithBaseContext(ctx context.Context) Option {
	return func(m *Manager) { m.baseCtx = ctx }
}

func NewManager(
	store Store,
	auditor *audit.Recorder,
	policies *policy.Registry,
	providers *provider.Registry,
	coord *coordinator.Coordinator,
	delivery *coordinator.Delivery,
	opts ...Option,
) *Manager {
	m := &Manager{
		store:      store,
		auditor:    auditor,
		policies:   policies,
		providers:  providers,
		coord:      coord,
		delivery:   delivery,
		aggregator: evidence.NewAggregator(),
		engine:     scoring.NewEngine(),
		resolver:   decision.NewResolver(),
		logger:     slog.Default(),
		tracer:     otel.Tracer("zenid/session"),
		clock:      time.Now,
		baseCtx:    context.Background(),
		locks:      make(map[id.SessionID]*sync.Mutex),
		ctxs:       make(map[id.SessionID]context.Context),
		cancels:    make(map[id.SessionID]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type createdPayload struct {
	UserID       id.UserID           `json:"user_id"`
	PolicyID     string              `json:"policy_id"`
	DocumentKind domain.DocumentKind `json:"document_kind"`
	DocumentRef  string              `json:"document_ref"`
	CreatedAt    time.Time           `json:"created_at"`
	Deadline     time.Time           `json:"deadline"`
}

// CreateSession starts a verification run under the named policy. The policy
// is resolved and snapshotted onto the session at creation, so a later policy
// change never touches an in-flight session. The document stage starts
// immediately in the background; the biometric stage waits for the capture
// submission.
func (m *Manager) CreateSession(ctx context.Context, userID id.UserID, policyID string, documentRef string, kind domain.DocumentKind) (*Session, error) {
	pol, err := m.policies.Get(policyID)
	if err != nil {
		return nil, err
	}
	if err := pol.Validate(); err != nil {
		return nil, err
	}
	switch kind {
	case domain.DocumentNIN, domain.DocumentVotersCard, domain.DocumentPassport, domain.DocumentDriversLicense:
	default:
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unsupported document kind %q", kind)
	}

	now := m.clock().UTC()
	sess := &Session{
		ID:           id.NewSessionID(),
		UserID:       userID,
		PolicyID:     pol.ID,
		Policy:       pol,
		DocumentRef:  documentRef,
		DocumentKind: kind,
		State:        NewState(),
		CreatedAt:    now,
		Deadline:     now.Add(pol.SessionTTL),
		Applied:      make(map[string]bool),
	}

	if _, err := m.auditor.Record(ctx, sess.ID, audit.EventSessionCreated, createdPayload{
		UserID:       userID,
		PolicyID:     pol.ID,
		DocumentKind: kind,
		DocumentRef:  documentRef,
		CreatedAt:    sess.CreatedAt,
		Deadline:     sess.Deadline,
	}); err != nil {
		return nil, err
	}

	if err := m.store.Create(ctx, sess); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Newf(dErrors.CodeConflict, "session %s already exists", sess.ID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persisting session")
	}

	m.metrics.SessionStarted()

	sctx := m.registerSession(sess.ID, sess.Deadline)
	m.spawn(func() { m.runDocumentStage(sctx, sess.ID, pol, documentRef, kind) })
	m.spawn(func() { m.watchDeadline(sctx, sess.ID) })

	return sess.Clone(), nil
}

type biometricPayload struct {
	LiveCaptureRef string `json:"live_capture_ref"`
	ReferenceRef   string `json:"reference_ref"`
	TelemetryBytes int    `json:"telemetry_bytes,omitempty"`
}

// SubmitBiometric triggers the biometric stage with the user's live capture.
// An optional telemetry batch rides along and is scored concurrently.
func (m *Manager) SubmitBiometric(ctx context.Context, sessionID id.SessionID, liveCaptureRef, referenceRef string, telemetry []byte) error {
	lock := m.lockFor(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, err := m.load(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.State.Phase == PhaseExpired {
		return dErrors.Newf(dErrors.CodeSessionExpired, "session %s has expired", sessionID)
	}
	if sess.State.Phase != PhaseGathering || sess.State.Biometric != domain.StagePending {
		return dErrors.Newf(dErrors.CodeInvalidState, "session %s is past the biometric stage", sessionID)
	}

	if _, err := m.auditor.Record(ctx, sessionID, audit.EventBiometricSubmitted, biometricPayload{
		LiveCaptureRef: liveCaptureRef,
		ReferenceRef:   referenceRef,
		TelemetryBytes: len(telemetry),
	}); err != nil {
		return err
	}

	sctx := m.sessionContext(sessionID)
	m.spawn(func() { m.runBiometricStage(sctx, sess.ID, sess.Policy, liveCaptureRef, referenceRef, telemetry) })
	return nil
}

type telemetryPayload struct {
	Bytes int `json:"bytes"`
}

// SubmitTelemetry accepts a behavioral telemetry batch on its own. The
// behavioral stage is optional enrichment: it never gates the phase, it only
// feeds a factor into scoring if it settles before the sync point.
func (m *Manager) SubmitTelemetry(ctx context.Context, sessionID id.SessionID, telemetry []byte) error {
	lock := m.lockFor(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, err := m.load(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.State.Phase == PhaseExpired {
		return dErrors.Newf(dErrors.CodeSessionExpired, "session %s has expired", sessionID)
	}
	if sess.State.Phase != PhaseGathering {
		return dErrors.Newf(dErrors.CodeInvalidState, "session %s is no longer collecting evidence", sessionID)
	}

	if _, err := m.auditor.Record(ctx, sessionID, audit.EventTelemetryReceived, telemetryPayload{Bytes: len(telemetry)}); err != nil {
		return err
	}

	sctx := m.sessionContext(sessionID)
	m.spawn(func() { m.runBehavioralStage(sctx, sess.ID, sess.Policy, telemetry) })
	return nil
}

// Advance folds a settled stage result into the session. It is the only state
// mutator and is idempotent per (session, stage, attempt): a redelivered
// result is absorbed without a second transition. Out-of-order results and
// transitions on terminal sessions are rejected with InvalidTransition.
func (m *Manager) Advance(ctx context.Context, sessionID id.SessionID, result domain.StageResult) error {
	lock := m.lockFor(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, err := m.load(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.State.Phase == PhaseExpired {
		return dErrors.Newf(dErrors.CodeSessionExpired, "session %s has expired", sessionID)
	}

	key := AppliedKey(result.Stage, result.AttemptID)
	if sess.Applied[key] {
		return nil
	}

	next, err := Apply(sess.State, Transition{
		Kind:   TransitionStageSettled,
		Stage:  result.Stage,
		Status: result.Status,
	})
	if err != nil {
		return err
	}

	if _, err := m.auditor.Record(ctx, sessionID, audit.EventStageSettled, result); err != nil {
		return err
	}

	sess.State = next
	sess.Results = append(sess.Results, result)
	sess.Applied[key] = true
	if result.Stage == domain.StageBehavioral && result.Behavioral != nil {
		sess.Behavioral = result.Behavioral
	}

	if err := m.store.Update(ctx, sess); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "persisting session state")
	}

	m.metrics.ObserveStageLatency(string(result.Stage), string(result.Status), m.clock().Sub(sess.CreatedAt))

	if next.Phase == PhaseScoring {
		return m.scoreAndDecide(ctx, sess)
	}
	return nil
}

// scoreAndDecide is the synchronization point: both mandatory stages settled.
// Runs under the session lock so a racing advance cannot interleave.
func (m *Manager) scoreAndDecide(ctx context.Context, sess *Session) error {
	bundle := m.aggregator.Collect(sess.Evidence(), sess.Behavioral)

	score := m.engine.Score(bundle, sess.Policy.Scoring)
	if _, err := m.auditor.Record(ctx, sess.ID, audit.EventRiskScored, score); err != nil {
		return err
	}

	dec := m.resolver.Resolve(score, bundle, sess.Policy.Decision)
	if _, err := m.auditor.Record(ctx, sess.ID, audit.EventDecisionMade, dec); err != nil {
		return err
	}

	next, err := Apply(sess.State, Transition{Kind: TransitionDecided})
	if err != nil {
		return err
	}
	sess.State = next
	sess.Score = &score
	sess.Decision = &dec

	if err := m.store.Update(ctx, sess); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "persisting decision")
	}

	m.metrics.IncrementDecision(string(dec.Outcome), string(dec.Tier))
	m.metrics.SessionSettled()
	m.releaseSession(sess.ID)

	m.logger.InfoContext(ctx, "session decided",
		"session_id", sess.ID,
		"outcome", dec.Outcome,
		"tier", dec.Tier,
		"score", score.Value,
	)
	return nil
}

type expiredPayload struct {
	ExpiredAt time.Time `json:"expired_at"`
}

// expire transitions a non-terminal session to Expired and cancels any
// outstanding provider calls. Safe to call more than once.
func (m *Manager) expire(ctx context.Context, sessionID id.SessionID) {
	lock := m.lockFor(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, err := m.load(ctx, sessionID)
	if err != nil {
		m.logger.ErrorContext(ctx, "loading session for expiry", "session_id", sessionID, "error", err)
		return
	}
	if sess.State.Terminal() {
		return
	}

	if _, err := m.auditor.Record(ctx, sessionID, audit.EventSessionExpired, expiredPayload{ExpiredAt: m.clock().UTC()}); err != nil {
		m.logger.ErrorContext(ctx, "recording session expiry", "session_id", sessionID, "error", err)
		return
	}

	next, err := Apply(sess.State, Transition{Kind: TransitionExpired})
	if err != nil {
		m.logger.ErrorContext(ctx, "expiring session", "session_id", sessionID, "error", err)
		return
	}
	sess.State = next
	if err := m.store.Update(ctx, sess); err != nil {
		m.logger.ErrorContext(ctx, "persisting session expiry", "session_id", sessionID, "error", err)
		return
	}

	m.metrics.IncrementExpirations()
	m.metrics.SessionSettled()
	m.releaseSession(sessionID)

	m.logger.WarnContext(ctx, "session expired before decision", "session_id", sessionID)
}

// GetStatus returns a read-only snapshot; safe to call in any phase.
func (m *Manager) GetStatus(ctx context.Context, sessionID id.SessionID) (*Session, error) {
	sess, err := m.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Clone(), nil
}

// OverrideDecision appends a human correction to a decided session. The
// original decision stands; the override references it and both remain in the
// ledger.
func (m *Manager) OverrideDecision(ctx context.Context, sessionID id.SessionID, o Override) error {
	lock := m.lockFor(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, err := m.load(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.State.Phase != PhaseDecided || sess.Decision == nil {
		return dErrors.Newf(dErrors.CodeInvalidState, "session %s has no decision to override", sessionID)
	}

	o.OriginalOutcome = sess.Decision.Outcome
	o.Timestamp = m.clock().UTC()

	if _, err := m.auditor.Record(ctx, sessionID, audit.EventDecisionOverridden, o); err != nil {
		return err
	}

	sess.Overrides = append(sess.Overrides, o)
	if err := m.store.Update(ctx, sess); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "persisting override")
	}
	return nil
}

// Resume re-arms deadline watchers for sessions that were in flight when the
// previous process stopped. Sessions whose deadline already passed expire
// immediately through the normal watcher path.
func (m *Manager) Resume(ctx context.Context) error {
	unsettled, err := m.store.ListUnsettled(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "listing unsettled sessions")
	}
	for _, sess := range unsettled {
		sessionID := sess.ID
		sctx := m.registerSession(sessionID, sess.Deadline)
		m.spawn(func() { m.watchDeadline(sctx, sessionID) })
	}
	if len(unsettled) > 0 {
		m.logger.InfoContext(ctx, "resumed deadline watchers", "sessions", len(unsettled))
	}
	return nil
}

// Close cancels all in-flight session work and waits for stage goroutines.
func (m *Manager) Close() {
	m.mu.Lock()
	for _, cancel := range m.cancels {
		cancel()
	}
	m.mu.Unlock()
	m.wg.Wait()
}

func (m *Manager) load(ctx context.Context, sessionID id.SessionID) (*Session, error) {
	sess, err := m.store.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "session %s not found", sessionID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "loading session")
	}
	if sess.Applied == nil {
		sess.Applied = make(map[string]bool)
	}
	return sess, nil
}

func (m *Manager) lockFor(sessionID id.SessionID) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[sessionID] = lock
	}
	return lock
}

func (m *Manager) registerSession(sessionID id.SessionID, deadline time.Time) context.Context {
	sctx, cancel := context.WithDeadline(m.baseCtx, deadline)
	m.mu.Lock()
	m.ctxs[sessionID] = sctx
	m.cancels[sessionID] = cancel
	m.mu.Unlock()
	return sctx
}

func (m *Manager) sessionContext(sessionID id.SessionID) context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sctx, ok := m.ctxs[sessionID]; ok {
		return sctx
	}
	return m.baseCtx
}

// releaseSession cancels outstanding work for a settled session and drops its
// bookkeeping. The per-session lock stays until process end; the map of locks
// is bounded by session churn between restarts.
func (m *Manager) releaseSession(sessionID id.SessionID) {
	m.mu.Lock()
	cancel, ok := m.cancels[sessionID]
	delete(m.cancels, sessionID)
	delete(m.ctxs, sessionID)
	m.mu.Unlock()
	if ok {
		cancel()
	}
}

func (m *Manager) spawn(fn func()) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		fn()
	}()
}

// watchDeadline waits for the session context to end. Deadline elapse expires
// the session; plain cancellation (decision reached, shutdown) does not.
func (m *Manager) watchDeadline(sctx context.Context, sessionID id.SessionID) {
	<-sctx.Done()
	if errors.Is(sctx.Err(), context.DeadlineExceeded) {
		m.expire(m.baseCtx, sessionID)
	}
}
