package models

import "time"

type CheckType string

const (
	CheckScore     CheckType = "score_validation"
	CheckTime      CheckType = "time_validation"
	CheckSequence  CheckType = "action_sequence"
	CheckReplay    CheckType = "replay_detection"
	CheckRateLimit CheckType = "rate_limiting"
	CheckSignature CheckType = "signature_verification"
	CheckMetadata  CheckType = "metadata_validation"

	// CheckInternal is only emitted when the pipeline itself fails; a
	// validation crash must read as reject, never as passed.
	CheckInternal CheckType = "internal_error"
)

type CheckStatus string

const (
	CheckPassed  CheckStatus = "passed"
	CheckWarning CheckStatus = "warning"
	CheckFailed  CheckStatus = "failed"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// IntegrityCheckResult is produced fresh on every validation run; the session
// keeps only the snapshot from its most recent run.
type IntegrityCheckResult struct {
	CheckType CheckType              `json:"checkType" bson:"checkType"`
	Status    CheckStatus            `json:"status" bson:"status"`
	Message   string                 `json:"message" bson:"message"`
	Severity  Severity               `json:"severity" bson:"severity"`
	Timestamp time.Time              `json:"timestamp" bson:"timestamp"`
	Details   map[string]interface{} `json:"details,omitempty" bson:"details,omitempty"`
}

// ValidationRules are the per-session-type thresholds the pipeline checks
// against. Durations are milliseconds.
type ValidationRules struct {
	MinDuration         int64           `json:"minDuration"`
	MaxDuration         int64           `json:"maxDuration"`
	MaxScore            int             `json:"maxScore"`
	MinScore            int             `json:"minScore"`
	MaxActionsPerSecond float64         `json:"maxActionsPerSecond"`
	RequiredActions     []ActionType    `json:"requiredActions"`
	MaxHints            int             `json:"maxHints"`
	MaxAttempts         int             `json:"maxAttempts"`
	ScoreThresholds     ScoreThresholds `json:"scoreThresholds"`
	TimeThresholds      TimeThresholds  `json:"timeThresholds"`
}

type ScoreThresholds struct {
	Suspicious int `json:"suspicious"`
	Impossible int `json:"impossible"`
}

type TimeThresholds struct {
	TooFast int64 `json:"tooFast"`
	TooSlow int64 `json:"tooSlow"`
}

// DefaultValidationRules returns the documented system defaults, applied
// whenever the caller supplies no session-type-specific rules.
func DefaultValidationRules() ValidationRules {
	return ValidationRules{
		MinDuration:         5000,
		MaxDuration:         3600000,
		MaxScore:            1000,
		MinScore:            0,
		MaxActionsPerSecond: 10,
		RequiredActions:     []ActionType{ActionStart, ActionComplete},
		MaxHints:            3,
		MaxAttempts:         5,
		ScoreThresholds:     ScoreThresholds{Suspicious: 950, Impossible: 1001},
		TimeThresholds:      TimeThresholds{TooFast: 10000, TooSlow: 1800000},
	}
}

type LogLevel string

const (
	LogNone     LogLevel = "none"
	LogWarnings LogLevel = "warnings"
	LogAll      LogLevel = "all"
)

// DetectionConfig switches individual checks on or off and controls how
// anomalies are persisted. Disabling a check omits it from the report
// entirely; no placeholder "passed" entry is synthesized.
type DetectionConfig struct {
	ScoreCheck          bool     `json:"scoreCheck"`
	TimeCheck           bool     `json:"timeCheck"`
	SequenceCheck       bool     `json:"sequenceCheck"`
	ReplayCheck         bool     `json:"replayCheck"`
	RateLimitCheck      bool     `json:"rateLimitCheck"`
	SignatureCheck      bool     `json:"signatureCheck"`
	MetadataCheck       bool     `json:"metadataCheck"`
	LogLevel            LogLevel `json:"logLevel"`
	AutoReject          bool     `json:"autoReject"`
	ModerationThreshold int      `json:"moderationThreshold"`
}

func DefaultDetectionConfig() DetectionConfig {
	return DetectionConfig{
		ScoreCheck:          true,
		TimeCheck:           true,
		SequenceCheck:       true,
		ReplayCheck:         true,
		RateLimitCheck:      true,
		SignatureCheck:      true,
		MetadataCheck:       true,
		LogLevel:            LogWarnings,
		AutoReject:          false,
		ModerationThreshold: 3,
	}
}
