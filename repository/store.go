package repository

import (
	"context"
	"errors"

	"github.com/stark-secure/starkmole-integrity/models"
)

// ErrNotFound is returned by stores when the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// SessionStore defines session data access methods
type SessionStore interface {
	Create(ctx context.Context, session *models.GameSession) error
	Get(ctx context.Context, id string) (*models.GameSession, error)
	Update(ctx context.Context, session *models.GameSession) error
	ListByUser(ctx context.Context, userID string, limit int) ([]*models.GameSession, error)
}

// AnomalyStore defines anomaly log data access methods. The log is
// append-only: Update exists solely for the moderation resolve flow.
type AnomalyStore interface {
	Append(ctx context.Context, anomaly *models.SessionAnomalyLog) error
	Get(ctx context.Context, id string) (*models.SessionAnomalyLog, error)
	Update(ctx context.Context, anomaly *models.SessionAnomalyLog) error
	List(ctx context.Context, sessionID, userID string) ([]*models.SessionAnomalyLog, error)
}

// Store aggregates all stores handed to the session manager.
type Store struct {
	Sessions  SessionStore
	Anomalies AnomalyStore
}
