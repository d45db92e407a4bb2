package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stark-secure/starkmole-integrity/models"
)

func TestMemorySessionStoreCRUD(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()

	session := &models.GameSession{
		ID:        "s1",
		UserID:    "u1",
		Status:    models.StatusActive,
		CreatedAt: time.Now(),
	}
	require.NoError(t, store.Create(ctx, session))

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)

	got.Status = models.StatusCompleted
	require.NoError(t, store.Update(ctx, got))

	updated, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, updated.Status)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	err = store.Update(ctx, &models.GameSession{ID: "missing"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemorySessionStoreReturnsCopies(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()

	session := &models.GameSession{
		ID:     "s1",
		UserID: "u1",
		Actions: []models.GameAction{
			{ID: "a1", Type: models.ActionStart, Sequence: 1},
		},
	}
	require.NoError(t, store.Create(ctx, session))

	// mutating a fetched copy must not touch persisted state
	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	got.Actions = append(got.Actions, models.GameAction{ID: "a2", Sequence: 2})
	got.UserID = "someone-else"

	fresh, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "u1", fresh.UserID)
	assert.Len(t, fresh.Actions, 1)
}

func TestMemorySessionStoreListByUser(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()
	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"s1", "s2", "s3"} {
		require.NoError(t, store.Create(ctx, &models.GameSession{
			ID:        id,
			UserID:    "u1",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, store.Create(ctx, &models.GameSession{
		ID: "other", UserID: "u2", CreatedAt: base,
	}))

	sessions, err := store.ListByUser(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	assert.Equal(t, "s3", sessions[0].ID)
	assert.Equal(t, "s1", sessions[2].ID)

	limited, err := store.ListByUser(ctx, "u1", 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "s3", limited[0].ID)

	none, err := store.ListByUser(ctx, "u3", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemoryAnomalyStoreAppendGetUpdate(t *testing.T) {
	store := NewMemoryAnomalyStore()
	ctx := context.Background()

	anomaly := &models.SessionAnomalyLog{
		ID:          "a1",
		SessionID:   "s1",
		UserID:      "u1",
		AnomalyType: models.AnomalyImpossibleScore,
		Severity:    models.SeverityCritical,
		DetectedAt:  time.Now(),
	}
	require.NoError(t, store.Append(ctx, anomaly))

	got, err := store.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, models.AnomalyImpossibleScore, got.AnomalyType)
	assert.False(t, got.Resolved)

	got.Resolved = true
	got.ModeratorNotes = "confirmed"
	require.NoError(t, store.Update(ctx, got))

	resolved, err := store.Get(ctx, "a1")
	require.NoError(t, err)
	assert.True(t, resolved.Resolved)
	assert.Equal(t, "confirmed", resolved.ModeratorNotes)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	err = store.Update(ctx, &models.SessionAnomalyLog{ID: "missing"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryAnomalyStoreListFilters(t *testing.T) {
	store := NewMemoryAnomalyStore()
	ctx := context.Background()

	entries := []*models.SessionAnomalyLog{
		{ID: "a1", SessionID: "s1", UserID: "u1"},
		{ID: "a2", SessionID: "s1", UserID: "u1"},
		{ID: "a3", SessionID: "s2", UserID: "u2"},
	}
	for _, e := range entries {
		require.NoError(t, store.Append(ctx, e))
	}

	// most recent first
	all, err := store.List(ctx, "", "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a3", all[0].ID)
	assert.Equal(t, "a1", all[2].ID)

	bySession, err := store.List(ctx, "s1", "")
	require.NoError(t, err)
	require.Len(t, bySession, 2)
	assert.Equal(t, "a2", bySession[0].ID)

	byUser, err := store.List(ctx, "", "u2")
	require.NoError(t, err)
	require.Len(t, byUser, 1)
	assert.Equal(t, "a3", byUser[0].ID)

	both, err := store.List(ctx, "s1", "u2")
	require.NoError(t, err)
	assert.Empty(t, both)
}
