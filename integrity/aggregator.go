package integrity

import (
	"github.com/google/uuid"

	"github.com/stark-secure/starkmole-integrity/models"
)

// anomalyTypeFor maps each check to the anomaly category it reports under.
func anomalyTypeFor(checkType models.CheckType) models.AnomalyType {
	switch checkType {
	case models.CheckScore:
		return models.AnomalyImpossibleScore
	case models.CheckTime:
		return models.AnomalySuspiciousTime
	case models.CheckSequence:
		return models.AnomalyInvalidSequence
	case models.CheckReplay:
		return models.AnomalyReplayAttack
	case models.CheckRateLimit:
		return models.AnomalyRateLimitExceeded
	case models.CheckSignature:
		return models.AnomalyTamperedData
	default:
		return models.AnomalyInconsistentMetadata
	}
}

// aggregate folds check results into the confidence score, risk score,
// overall status and recommendation. Every failing or warning check yields
// exactly one anomaly record carrying the check's severity.
func (v *Validator) aggregate(session *models.GameSession, checks []models.IntegrityCheckResult, config models.DetectionConfig) models.SessionIntegrityReport {
	var anomalies []models.SessionAnomalyLog
	failed, warnings := 0, 0
	criticalAnomalies, highAnomalies := 0, 0
	criticalFailure := false

	for i := range checks {
		check := &checks[i]
		switch check.Status {
		case models.CheckFailed:
			failed++
			if check.Severity == models.SeverityCritical {
				criticalFailure = true
			}
		case models.CheckWarning:
			warnings++
		default:
			continue
		}

		anomaly := models.SessionAnomalyLog{
			ID:          uuid.New().String(),
			SessionID:   session.ID,
			UserID:      session.UserID,
			AnomalyType: anomalyTypeFor(check.CheckType),
			Severity:    check.Severity,
			Description: check.Message,
			DetectedAt:  v.now(),
			Metadata: map[string]interface{}{
				"checkType": string(check.CheckType),
				"score":     session.Score,
				"duration":  session.Duration,
			},
		}
		for k, val := range check.Details {
			anomaly.Metadata[k] = val
		}
		anomalies = append(anomalies, anomaly)

		switch check.Severity {
		case models.SeverityCritical:
			criticalAnomalies++
		case models.SeverityHigh:
			highAnomalies++
		}
	}

	confidence := clamp(100 - 20*failed - 10*warnings - 30*criticalAnomalies - 15*highAnomalies)
	risk := clamp(25*failed + 10*warnings + 40*criticalAnomalies + 20*highAnomalies)

	status := models.StatusValid
	switch {
	case criticalAnomalies > 0 || criticalFailure:
		status = models.StatusInvalidRes
	case len(anomalies) > 0 || failed > 0 || warnings > 1:
		status = models.StatusSuspicious
	}

	recommendation := models.RecommendAccept
	switch {
	case status == models.StatusInvalidRes || (config.AutoReject && risk > 70):
		recommendation = models.RecommendReject
	case status == models.StatusSuspicious || risk > 30:
		recommendation = models.RecommendReview
	case config.ModerationThreshold > 0 && len(anomalies) >= config.ModerationThreshold:
		recommendation = models.RecommendReview
	}

	for i := range anomalies {
		if ShouldLog(config.LogLevel, anomalies[i].Severity) {
			v.logger.Warn("session anomaly detected",
				"sessionId", session.ID,
				"userId", session.UserID,
				"anomalyType", string(anomalies[i].AnomalyType),
				"severity", string(anomalies[i].Severity),
				"description", anomalies[i].Description)
		}
	}

	return models.SessionIntegrityReport{
		SessionID:       session.ID,
		OverallStatus:   status,
		ConfidenceScore: confidence,
		Checks:          checks,
		Anomalies:       anomalies,
		Recommendation:  recommendation,
		RiskScore:       risk,
	}
}

// ShouldLog reports whether an anomaly of the given severity is persisted
// and logged under the configured level. Gating affects only what is
// recorded: anomalies are always produced and scored.
func ShouldLog(level models.LogLevel, severity models.Severity) bool {
	switch level {
	case models.LogNone:
		return false
	case models.LogWarnings:
		return severity != models.SeverityLow
	default:
		return true
	}
}

func clamp(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}
