package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/stark-secure/starkmole-integrity/models"
)

// MemorySessionStore keeps sessions in a mutex-guarded map. It stores and
// returns copies, so callers can only change persisted state through Update.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.GameSession
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]*models.GameSession)}
}

func cloneSession(s *models.GameSession) *models.GameSession {
	c := *s
	c.Actions = append([]models.GameAction(nil), s.Actions...)
	c.Checks = append([]models.IntegrityCheckResult(nil), s.Checks...)
	if s.Metadata.Extra != nil {
		c.Metadata.Extra = make(map[string]string, len(s.Metadata.Extra))
		for k, v := range s.Metadata.Extra {
			c.Metadata.Extra[k] = v
		}
	}
	return &c
}

func (m *MemorySessionStore) Create(_ context.Context, session *models.GameSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = cloneSession(session)
	return nil
}

func (m *MemorySessionStore) Get(_ context.Context, id string) (*models.GameSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSession(session), nil
}

func (m *MemorySessionStore) Update(_ context.Context, session *models.GameSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[session.ID]; !ok {
		return ErrNotFound
	}
	m.sessions[session.ID] = cloneSession(session)
	return nil
}

func (m *MemorySessionStore) ListByUser(_ context.Context, userID string, limit int) ([]*models.GameSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*models.GameSession
	for _, session := range m.sessions {
		if session.UserID == userID {
			result = append(result, cloneSession(session))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// MemoryAnomalyStore is the in-memory append-only anomaly log.
type MemoryAnomalyStore struct {
	mu        sync.RWMutex
	anomalies map[string]*models.SessionAnomalyLog
	order     []string // insertion order, oldest first
}

func NewMemoryAnomalyStore() *MemoryAnomalyStore {
	return &MemoryAnomalyStore{anomalies: make(map[string]*models.SessionAnomalyLog)}
}

func cloneAnomaly(a *models.SessionAnomalyLog) *models.SessionAnomalyLog {
	c := *a
	if a.Metadata != nil {
		c.Metadata = make(map[string]interface{}, len(a.Metadata))
		for k, v := range a.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

func (m *MemoryAnomalyStore) Append(_ context.Context, anomaly *models.SessionAnomalyLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.anomalies[anomaly.ID]; !ok {
		m.order = append(m.order, anomaly.ID)
	}
	m.anomalies[anomaly.ID] = cloneAnomaly(anomaly)
	return nil
}

func (m *MemoryAnomalyStore) Get(_ context.Context, id string) (*models.SessionAnomalyLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	anomaly, ok := m.anomalies[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneAnomaly(anomaly), nil
}

func (m *MemoryAnomalyStore) Update(_ context.Context, anomaly *models.SessionAnomalyLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.anomalies[anomaly.ID]; !ok {
		return ErrNotFound
	}
	m.anomalies[anomaly.ID] = cloneAnomaly(anomaly)
	return nil
}

// List returns anomalies matching the non-empty filters, most recent first.
func (m *MemoryAnomalyStore) List(_ context.Context, sessionID, userID string) ([]*models.SessionAnomalyLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*models.SessionAnomalyLog
	for i := len(m.order) - 1; i >= 0; i-- {
		anomaly := m.anomalies[m.order[i]]
		if sessionID != "" && anomaly.SessionID != sessionID {
			continue
		}
		if userID != "" && anomaly.UserID != userID {
			continue
		}
		result = append(result, cloneAnomaly(anomaly))
	}
	return result, nil
}
