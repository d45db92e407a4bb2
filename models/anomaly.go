package models

import "time"

type AnomalyType string

const (
	AnomalyImpossibleScore      AnomalyType = "impossible_score"
	AnomalySuspiciousTime       AnomalyType = "suspicious_time"
	AnomalyInvalidSequence      AnomalyType = "invalid_sequence"
	AnomalyReplayAttack         AnomalyType = "replay_attack"
	AnomalyRateLimitExceeded    AnomalyType = "rate_limit_exceeded"
	AnomalyTamperedData         AnomalyType = "tampered_data"
	AnomalyInconsistentMetadata AnomalyType = "inconsistent_metadata"
)

// SessionAnomalyLog is the persisted record of one detected integrity
// violation. Append-only: moderation may resolve an entry but nothing
// deletes or rewrites it.
type SessionAnomalyLog struct {
	ID             string                 `json:"id" bson:"_id"`
	SessionID      string                 `json:"sessionId" bson:"sessionId"`
	UserID         string                 `json:"userId" bson:"userId"`
	AnomalyType    AnomalyType            `json:"anomalyType" bson:"anomalyType"`
	Severity       Severity               `json:"severity" bson:"severity"`
	Description    string                 `json:"description" bson:"description"`
	DetectedAt     time.Time              `json:"detectedAt" bson:"detectedAt"`
	Metadata       map[string]interface{} `json:"metadata,omitempty" bson:"metadata,omitempty"`
	Resolved       bool                   `json:"resolved" bson:"resolved"`
	ModeratorNotes string                 `json:"moderatorNotes,omitempty" bson:"moderatorNotes,omitempty"`
}

type OverallStatus string

const (
	StatusValid      OverallStatus = "valid"
	StatusSuspicious OverallStatus = "suspicious"
	StatusInvalidRes OverallStatus = "invalid"
)

type Recommendation string

const (
	RecommendAccept Recommendation = "accept"
	RecommendReview Recommendation = "review"
	RecommendReject Recommendation = "reject"
)

// SessionIntegrityReport is the ephemeral output of one validation run and
// the only externally visible fraud classification signal.
type SessionIntegrityReport struct {
	SessionID       string                 `json:"sessionId"`
	OverallStatus   OverallStatus          `json:"overallStatus"`
	ConfidenceScore int                    `json:"confidenceScore"` // 0..100
	Checks          []IntegrityCheckResult `json:"checks"`
	Anomalies       []SessionAnomalyLog    `json:"anomalies"`
	Recommendation  Recommendation         `json:"recommendation"`
	RiskScore       int                    `json:"riskScore"` // 0..100
}
