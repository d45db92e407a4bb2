package models

import "encoding/json"

// ActionType enumerates every action a client (or the lifecycle itself) can
// record into a session. Adding a type here requires extending the transition
// table in the session package.
type ActionType string

const (
	ActionStart        ActionType = "start"
	ActionMove         ActionType = "move"
	ActionHintRequest  ActionType = "hint_request"
	ActionPause        ActionType = "pause"
	ActionResume       ActionType = "resume"
	ActionSubmitAnswer ActionType = "submit_answer"
	ActionComplete     ActionType = "complete"
	ActionAbandon      ActionType = "abandon"
	ActionHeartbeat    ActionType = "heartbeat"
)

// GameAction is immutable once appended to a session.
type GameAction struct {
	ID              string          `json:"id" bson:"id"`
	Type            ActionType      `json:"type" bson:"type"`
	Timestamp       int64           `json:"timestamp" bson:"timestamp"`             // client clock, unix ms
	ServerTimestamp int64           `json:"serverTimestamp" bson:"serverTimestamp"` // unix ms
	Sequence        int64           `json:"sequence" bson:"sequence"`
	Data            json.RawMessage `json:"data,omitempty" bson:"data,omitempty"`
	ClientID        string          `json:"clientId,omitempty" bson:"clientId,omitempty"`
}

// MoveData is the documented payload shape for move actions.
type MoveData struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// SubmitAnswerData is the documented payload shape for submit_answer actions.
type SubmitAnswerData struct {
	Accuracy float64 `json:"accuracy"`
	Answer   string  `json:"answer,omitempty"`
}
