package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stark-secure/starkmole-integrity/integrity"
	"github.com/stark-secure/starkmole-integrity/models"
	"github.com/stark-secure/starkmole-integrity/repository"
	"github.com/stark-secure/starkmole-integrity/responses"
)

// actionTimestampWindow bounds how stale a client action timestamp may be.
// Anything outside [now-window, now] is rejected outright: letting it in
// would corrupt the sequence-time invariants every downstream check relies on.
const actionTimestampWindow = 5 * time.Minute

// sessionTokenTTL is the lifetime of the signed session handle.
const sessionTokenTTL = 24 * time.Hour

// ActionInput is a client-supplied action before validation.
type ActionInput struct {
	Type      models.ActionType `json:"type"`
	Timestamp int64             `json:"timestamp"` // client clock, unix ms
	Sequence  int64             `json:"sequence"`
	Data      json.RawMessage   `json:"data,omitempty"`
	ClientID  string            `json:"clientId,omitempty"`
}

// EndSessionData is the final payload supplied to EndSession.
type EndSessionData struct {
	Score    *int                    `json:"score,omitempty"`
	Metadata *models.SessionMetadata `json:"metadata,omitempty"`
}

// Manager owns the session lifecycle. Every mutation of one session runs
// under that session's lock, so the sequence check and the append it guards
// are a single atomic step.
type Manager struct {
	store     repository.Store
	validator *integrity.Validator
	signer    *integrity.Signer
	secret    []byte
	logger    *slog.Logger

	rules    map[string]models.ValidationRules
	defaults models.ValidationRules
	config   models.DetectionConfig

	// Clock is overridable so tests can pin time.
	Clock func() time.Time

	// mu guards locks, rules and config; per-session work runs under the
	// individual session locks.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewManager(store repository.Store, validator *integrity.Validator, signer *integrity.Signer, secret []byte, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:     store,
		validator: validator,
		signer:    signer,
		secret:    secret,
		logger:    logger,
		rules:     make(map[string]models.ValidationRules),
		defaults:  models.DefaultValidationRules(),
		config:    models.DefaultDetectionConfig(),
		Clock:     time.Now,
		locks:     make(map[string]*sync.Mutex),
	}
}

// SetRules registers validation rules for one session type. Session types
// without registered rules fall back to the documented defaults.
func (m *Manager) SetRules(sessionType string, rules models.ValidationRules) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules[sessionType] = rules
}

func (m *Manager) SetDetectionConfig(config models.DetectionConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config = config
}

func (m *Manager) rulesFor(sessionType string) models.ValidationRules {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rules, ok := m.rules[sessionType]; ok {
		return rules
	}
	return m.defaults
}

func (m *Manager) detectionConfig() models.DetectionConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config
}

func (m *Manager) sessionLock(id string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[id] = lock
	}
	return lock
}

func (m *Manager) releaseLock(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, id)
}

// StartSession creates a session in the active state with its start action
// already recorded, plus a signed session token in the metadata.
func (m *Manager) StartSession(ctx context.Context, userID, sessionType, puzzleID, moduleID string, meta models.SessionMetadata) (*models.GameSession, error) {
	if userID == "" {
		return nil, responses.BadRequestError{Msg: "userId is required."}
	}
	now := m.Clock()
	id := uuid.New().String()

	token, err := NewSessionToken(m.secret, id, userID, sessionTokenTTL)
	if err != nil {
		return nil, responses.InternalServerError{Msg: "Failed to create session token."}
	}
	meta.SessionToken = token

	session := &models.GameSession{
		ID:          id,
		UserID:      userID,
		PuzzleID:    puzzleID,
		ModuleID:    moduleID,
		SessionType: sessionType,
		Status:      models.StatusActive,
		StartedAt:   now,
		Metadata:    meta,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.appendServerAction(session, models.ActionStart, now)

	if err := m.store.Sessions.Create(ctx, session); err != nil {
		return nil, responses.InternalServerError{Msg: "Failed to create session."}
	}
	m.logger.Info("session started", "sessionId", id, "userId", userID, "sessionType", sessionType)
	return session, nil
}

// RecordAction validates and appends one client action. Validation order:
// session state, timestamp window, sequence monotonicity, action transition.
func (m *Manager) RecordAction(ctx context.Context, sessionID string, input ActionInput) (*models.GameAction, error) {
	lock := m.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := m.getMutable(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.StatusActive && session.Status != models.StatusPaused {
		return nil, responses.StateConflictError{Msg: fmt.Sprintf(
			"Session in state %q no longer accepts actions.", session.Status)}
	}

	now := m.Clock()
	if input.Timestamp < now.Add(-actionTimestampWindow).UnixMilli() || input.Timestamp > now.UnixMilli() {
		return nil, responses.InvalidActionError{Msg: "Action timestamp outside the accepted window."}
	}
	if input.Sequence <= session.MaxSequence() {
		return nil, responses.InvalidActionError{Msg: fmt.Sprintf(
			"Action sequence %d must be greater than %d.", input.Sequence, session.MaxSequence())}
	}
	prev := models.ActionType("")
	if last := session.LastAction(); last != nil {
		prev = last.Type
	}
	if !ActionTransitionAllowed(prev, input.Type) {
		return nil, responses.InvalidActionError{Msg: fmt.Sprintf(
			"Action %q may not follow %q.", input.Type, prev)}
	}

	action := models.GameAction{
		ID:              uuid.New().String(),
		Type:            input.Type,
		Timestamp:       input.Timestamp,
		ServerTimestamp: now.UnixMilli(),
		Sequence:        input.Sequence,
		Data:            input.Data,
		ClientID:        input.ClientID,
	}
	session.Actions = append(session.Actions, action)
	session.UpdatedAt = now

	if err := m.store.Sessions.Update(ctx, session); err != nil {
		return nil, responses.InternalServerError{Msg: "Failed to record action."}
	}
	return &action, nil
}

// PauseSession moves an active session to paused and records the pause action.
func (m *Manager) PauseSession(ctx context.Context, sessionID string) (*models.GameSession, error) {
	return m.transition(ctx, sessionID, models.StatusPaused, models.ActionPause, func(s *models.GameSession) {
		s.Metadata.PauseCount++
	})
}

// ResumeSession moves a paused session back to active.
func (m *Manager) ResumeSession(ctx context.Context, sessionID string) (*models.GameSession, error) {
	return m.transition(ctx, sessionID, models.StatusActive, models.ActionResume, nil)
}

// AbandonSession terminates a session without validation.
func (m *Manager) AbandonSession(ctx context.Context, sessionID string) (*models.GameSession, error) {
	session, err := m.transition(ctx, sessionID, models.StatusAbandoned, models.ActionAbandon, func(s *models.GameSession) {
		now := m.Clock()
		s.EndedAt = &now
		s.Duration = now.Sub(s.StartedAt).Milliseconds()
	})
	if err == nil {
		m.releaseLock(sessionID)
	}
	return session, err
}

func (m *Manager) transition(ctx context.Context, sessionID string, to models.SessionStatus, actionType models.ActionType, mutate func(*models.GameSession)) (*models.GameSession, error) {
	lock := m.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := m.getMutable(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !StatusTransitionAllowed(session.Status, to) {
		return nil, responses.StateConflictError{Msg: fmt.Sprintf(
			"Session in state %q cannot move to %q.", session.Status, to)}
	}
	prev := models.ActionType("")
	if last := session.LastAction(); last != nil {
		prev = last.Type
	}
	if !ActionTransitionAllowed(prev, actionType) {
		return nil, responses.InvalidActionError{Msg: fmt.Sprintf(
			"Action %q may not follow %q.", actionType, prev)}
	}

	now := m.Clock()
	m.appendServerAction(session, actionType, now)
	session.Status = to
	if mutate != nil {
		mutate(session)
	}
	session.UpdatedAt = now

	if err := m.store.Sessions.Update(ctx, session); err != nil {
		return nil, responses.InternalServerError{Msg: "Failed to update session."}
	}
	return session, nil
}

// EndSession finishes a session: stamps the end time, applies the final
// score and metadata, appends the complete action, re-signs the session,
// runs the validation pipeline and applies its recommendation. The returned
// report is the only externally visible fraud classification signal.
func (m *Manager) EndSession(ctx context.Context, sessionID string, final EndSessionData) (*models.SessionIntegrityReport, error) {
	lock := m.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := m.getMutable(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.StatusActive && session.Status != models.StatusPaused {
		return nil, responses.StateConflictError{Msg: fmt.Sprintf(
			"Session in state %q cannot be ended.", session.Status)}
	}

	now := m.Clock()
	session.EndedAt = &now
	session.Duration = now.Sub(session.StartedAt).Milliseconds()
	if final.Score != nil {
		session.Score = *final.Score
	}
	if final.Metadata != nil {
		session.Metadata.Merge(*final.Metadata)
	}
	m.appendServerAction(session, models.ActionComplete, now)

	signature, err := m.signer.Sign(session)
	if err != nil {
		return nil, responses.InternalServerError{Msg: "Failed to sign session."}
	}
	session.Signature = signature

	report := m.validator.Validate(session, m.rulesFor(session.SessionType), m.detectionConfig())
	session.Checks = report.Checks

	next := models.StatusCompleted
	switch report.Recommendation {
	case models.RecommendReject:
		next = models.StatusInvalid
	case models.RecommendReview:
		next = models.StatusUnderReview
	}
	session.Status = next
	session.UpdatedAt = now

	if err := m.store.Sessions.Update(ctx, session); err != nil {
		return nil, responses.InternalServerError{Msg: "Failed to finalize session."}
	}
	m.persistAnomalies(ctx, &report)

	m.logger.Info("session ended",
		"sessionId", session.ID,
		"status", string(next),
		"overallStatus", string(report.OverallStatus),
		"confidence", report.ConfidenceScore,
		"risk", report.RiskScore)
	if next.Terminal() {
		m.releaseLock(sessionID)
	}
	return &report, nil
}

// ValidateSession re-runs the pipeline independently of the lifecycle.
// Nil rules or config fall back to the manager's configuration.
func (m *Manager) ValidateSession(session *models.GameSession, rules *models.ValidationRules, config *models.DetectionConfig) *models.SessionIntegrityReport {
	effectiveRules := m.defaults
	if session != nil {
		effectiveRules = m.rulesFor(session.SessionType)
	}
	if rules != nil {
		effectiveRules = *rules
	}
	effectiveConfig := m.detectionConfig()
	if config != nil {
		effectiveConfig = *config
	}
	report := m.validator.Validate(session, effectiveRules, effectiveConfig)
	return &report
}

// GetSession returns nil without error when the session does not exist.
func (m *Manager) GetSession(ctx context.Context, sessionID string) (*models.GameSession, error) {
	session, err := m.store.Sessions.Get(ctx, sessionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, responses.InternalServerError{Msg: "Failed to fetch session."}
	}
	return session, nil
}

// GetUserSessions lists a user's sessions, newest first.
func (m *Manager) GetUserSessions(ctx context.Context, userID string, limit int) ([]*models.GameSession, error) {
	sessions, err := m.store.Sessions.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, responses.InternalServerError{Msg: "Failed to fetch user sessions."}
	}
	return sessions, nil
}

// GetAnomalies lists anomaly log entries filtered by session and/or user,
// most recent first.
func (m *Manager) GetAnomalies(ctx context.Context, sessionID, userID string) ([]*models.SessionAnomalyLog, error) {
	anomalies, err := m.store.Anomalies.List(ctx, sessionID, userID)
	if err != nil {
		return nil, responses.InternalServerError{Msg: "Failed to fetch anomalies."}
	}
	return anomalies, nil
}

// ResolveAnomaly marks an anomaly resolved with the moderator's notes.
// Resolving an already-resolved anomaly is a no-op that preserves the
// original notes.
func (m *Manager) ResolveAnomaly(ctx context.Context, anomalyID, moderatorNotes string) error {
	anomaly, err := m.store.Anomalies.Get(ctx, anomalyID)
	if errors.Is(err, repository.ErrNotFound) {
		return responses.NotFoundError{Msg: "Anomaly not found."}
	}
	if err != nil {
		return responses.InternalServerError{Msg: "Failed to fetch anomaly."}
	}
	if anomaly.Resolved {
		return nil
	}
	anomaly.Resolved = true
	anomaly.ModeratorNotes = moderatorNotes
	if err := m.store.Anomalies.Update(ctx, anomaly); err != nil {
		return responses.InternalServerError{Msg: "Failed to resolve anomaly."}
	}
	m.logger.Info("anomaly resolved", "anomalyId", anomalyID)
	return nil
}

// ResolveReview applies the external moderation decision to a session under
// review: approve completes it, reject invalidates it.
func (m *Manager) ResolveReview(ctx context.Context, sessionID string, approve bool) (*models.GameSession, error) {
	lock := m.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := m.getMutable(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.StatusUnderReview {
		return nil, responses.StateConflictError{Msg: fmt.Sprintf(
			"Session in state %q is not under review.", session.Status)}
	}

	if approve {
		session.Status = models.StatusCompleted
	} else {
		session.Status = models.StatusInvalid
	}
	session.UpdatedAt = m.Clock()

	if err := m.store.Sessions.Update(ctx, session); err != nil {
		return nil, responses.InternalServerError{Msg: "Failed to update session."}
	}
	m.releaseLock(sessionID)
	m.logger.Info("review resolved", "sessionId", sessionID, "approved", approve)
	return session, nil
}

// getMutable fetches a session that must exist and still accept lifecycle
// calls. Callers hold the session lock.
func (m *Manager) getMutable(ctx context.Context, sessionID string) (*models.GameSession, error) {
	session, err := m.store.Sessions.Get(ctx, sessionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, responses.NotFoundError{Msg: "Session not found."}
	}
	if err != nil {
		return nil, responses.InternalServerError{Msg: "Failed to fetch session."}
	}
	return session, nil
}

// appendServerAction appends a lifecycle-generated action with the next
// sequence number. Server actions are trusted: they carry the server clock
// and skip the client transition validation (end() is legal from paused,
// where the table has no complete edge).
func (m *Manager) appendServerAction(session *models.GameSession, actionType models.ActionType, now time.Time) {
	session.Actions = append(session.Actions, models.GameAction{
		ID:              uuid.New().String(),
		Type:            actionType,
		Timestamp:       now.UnixMilli(),
		ServerTimestamp: now.UnixMilli(),
		Sequence:        session.MaxSequence() + 1,
	})
}

// persistAnomalies writes report anomalies to the log store, honoring the
// configured log level. Store failures are logged, not propagated: the
// classification already happened.
func (m *Manager) persistAnomalies(ctx context.Context, report *models.SessionIntegrityReport) {
	logLevel := m.detectionConfig().LogLevel
	for i := range report.Anomalies {
		anomaly := &report.Anomalies[i]
		if !integrity.ShouldLog(logLevel, anomaly.Severity) {
			continue
		}
		if err := m.store.Anomalies.Append(ctx, anomaly); err != nil {
			m.logger.Error("failed to persist anomaly",
				"anomalyId", anomaly.ID, "sessionId", anomaly.SessionID, "error", err)
		}
	}
}
