package models

import "time"

// SessionStatus is the lifecycle state of a game session. Transitions are
// enforced by the session manager, never assigned directly by callers.
type SessionStatus string

const (
	StatusActive      SessionStatus = "active"
	StatusPaused      SessionStatus = "paused"
	StatusCompleted   SessionStatus = "completed"
	StatusAbandoned   SessionStatus = "abandoned"
	StatusInvalid     SessionStatus = "invalid"
	StatusUnderReview SessionStatus = "under_review"
)

// Terminal reports whether no further lifecycle transitions are allowed.
// under_review is semi-terminal: it exits only through a moderation decision.
func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusAbandoned || s == StatusInvalid
}

type GameSession struct {
	ID               string                 `json:"id" bson:"_id"`
	UserID           string                 `json:"userId" bson:"userId"`
	PuzzleID         string                 `json:"puzzleId,omitempty" bson:"puzzleId,omitempty"`
	ModuleID         string                 `json:"moduleId,omitempty" bson:"moduleId,omitempty"`
	SessionType      string                 `json:"sessionType" bson:"sessionType"`
	Status           SessionStatus          `json:"status" bson:"status"`
	StartedAt        time.Time              `json:"startedAt" bson:"startedAt"`
	EndedAt          *time.Time             `json:"endedAt,omitempty" bson:"endedAt,omitempty"`
	Duration         int64                  `json:"duration,omitempty" bson:"duration,omitempty"` // milliseconds
	Score            int                    `json:"score" bson:"score"`
	MaxPossibleScore int                    `json:"maxPossibleScore,omitempty" bson:"maxPossibleScore,omitempty"`
	Actions          []GameAction           `json:"actions" bson:"actions"`
	Metadata         SessionMetadata        `json:"metadata" bson:"metadata"`
	Checks           []IntegrityCheckResult `json:"checks,omitempty" bson:"checks,omitempty"`
	Signature        string                 `json:"signature,omitempty" bson:"signature,omitempty"`
	CreatedAt        time.Time              `json:"createdAt" bson:"createdAt"`
	UpdatedAt        time.Time              `json:"updatedAt" bson:"updatedAt"`
}

// SessionMetadata carries the client-reported context the metadata check
// inspects. Hints and Attempts are pointers so "not reported" is
// distinguishable from zero. Extra is an escape hatch for fields the core
// does not interpret.
type SessionMetadata struct {
	UserAgent    string            `json:"userAgent,omitempty" bson:"userAgent,omitempty"`
	IPAddress    string            `json:"ipAddress,omitempty" bson:"ipAddress,omitempty"`
	SessionToken string            `json:"sessionToken,omitempty" bson:"sessionToken,omitempty"`
	PauseCount   int               `json:"pauseCount,omitempty" bson:"pauseCount,omitempty"`
	Hints        *int              `json:"hints,omitempty" bson:"hints,omitempty"`
	Attempts     *int              `json:"attempts,omitempty" bson:"attempts,omitempty"`
	Extra        map[string]string `json:"extra,omitempty" bson:"extra,omitempty"`
}

// Merge overlays the non-zero fields of other onto m.
func (m *SessionMetadata) Merge(other SessionMetadata) {
	if other.UserAgent != "" {
		m.UserAgent = other.UserAgent
	}
	if other.IPAddress != "" {
		m.IPAddress = other.IPAddress
	}
	if other.SessionToken != "" {
		m.SessionToken = other.SessionToken
	}
	if other.PauseCount != 0 {
		m.PauseCount = other.PauseCount
	}
	if other.Hints != nil {
		m.Hints = other.Hints
	}
	if other.Attempts != nil {
		m.Attempts = other.Attempts
	}
	for k, v := range other.Extra {
		if m.Extra == nil {
			m.Extra = make(map[string]string)
		}
		m.Extra[k] = v
	}
}

// LastAction returns the most recently appended action, or nil for a session
// with no actions yet.
func (s *GameSession) LastAction() *GameAction {
	if len(s.Actions) == 0 {
		return nil
	}
	return &s.Actions[len(s.Actions)-1]
}

// MaxSequence is the highest action sequence number recorded so far, 0 if none.
func (s *GameSession) MaxSequence() int64 {
	var max int64
	for i := range s.Actions {
		if s.Actions[i].Sequence > max {
			max = s.Actions[i].Sequence
		}
	}
	return max
}
