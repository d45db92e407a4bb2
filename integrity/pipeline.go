package integrity

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/stark-secure/starkmole-integrity/models"
)

// Validator runs the integrity check pipeline over a finished session and
// folds the results into a SessionIntegrityReport. It never mutates the
// session; its only side effect is the replay cache insert.
type Validator struct {
	signer *Signer
	cache  ReplayCache
	logger *slog.Logger

	// Clock is overridable so tests can pin validation time.
	Clock func() time.Time
}

func NewValidator(signer *Signer, cache ReplayCache, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{
		signer: signer,
		cache:  cache,
		logger: logger,
		Clock:  time.Now,
	}
}

func (v *Validator) now() time.Time {
	return v.Clock()
}

// Validate runs every enabled check and aggregates the outcome. A panic in
// any check degrades to the most conservative classification instead of
// propagating: a validation crash must never read as "passed".
func (v *Validator) Validate(session *models.GameSession, rules models.ValidationRules, config models.DetectionConfig) (report models.SessionIntegrityReport) {
	sessionID := ""
	if session != nil {
		sessionID = session.ID
	}
	defer func() {
		if r := recover(); r != nil {
			v.logger.Error("validation pipeline panicked",
				"sessionId", sessionID, "panic", fmt.Sprint(r))
			report = v.internalErrorReport(sessionID, fmt.Sprintf("internal validation error: %v", r))
		}
	}()

	if session == nil || session.ID == "" {
		return v.internalErrorReport(sessionID, "internal validation error: empty session")
	}

	var checks []models.IntegrityCheckResult
	if config.ScoreCheck {
		checks = append(checks, v.checkScore(session, rules))
	}
	if config.TimeCheck {
		checks = append(checks, v.checkTiming(session, rules))
	}
	if config.SequenceCheck {
		checks = append(checks, v.checkSequence(session, rules))
	}
	if config.ReplayCheck {
		checks = append(checks, v.checkReplay(session))
	}
	if config.RateLimitCheck {
		checks = append(checks, v.checkRateLimit(session, rules))
	}
	if config.SignatureCheck {
		checks = append(checks, v.checkSignature(session))
	}
	if config.MetadataCheck {
		checks = append(checks, v.checkMetadata(session, rules))
	}

	return v.aggregate(session, checks, config)
}

// internalErrorReport is the conservative fallback report: invalid, reject,
// zero confidence, one failed check describing what went wrong.
func (v *Validator) internalErrorReport(sessionID, message string) models.SessionIntegrityReport {
	return models.SessionIntegrityReport{
		SessionID:       sessionID,
		OverallStatus:   models.StatusInvalidRes,
		ConfidenceScore: 0,
		RiskScore:       100,
		Recommendation:  models.RecommendReject,
		Checks: []models.IntegrityCheckResult{
			v.result(models.CheckInternal, models.CheckFailed, models.SeverityCritical, message, nil),
		},
	}
}
