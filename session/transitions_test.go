package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stark-secure/starkmole-integrity/models"
)

func TestActionTransitions(t *testing.T) {
	tests := []struct {
		prev    models.ActionType
		next    models.ActionType
		allowed bool
	}{
		{"", models.ActionStart, true},
		{"", models.ActionMove, false},
		{models.ActionStart, models.ActionMove, true},
		{models.ActionStart, models.ActionStart, false},
		{models.ActionMove, models.ActionPause, true},
		{models.ActionMove, models.ActionComplete, true},
		{models.ActionMove, models.ActionResume, false},
		{models.ActionHintRequest, models.ActionSubmitAnswer, true},
		{models.ActionPause, models.ActionResume, true},
		{models.ActionPause, models.ActionAbandon, true},
		{models.ActionPause, models.ActionMove, false},
		{models.ActionPause, models.ActionComplete, false},
		{models.ActionResume, models.ActionHeartbeat, true},
		{models.ActionHeartbeat, models.ActionAbandon, true},
		{models.ActionComplete, models.ActionMove, false},
		{models.ActionComplete, models.ActionComplete, false},
		{models.ActionAbandon, models.ActionStart, false},
	}

	for _, tc := range tests {
		got := ActionTransitionAllowed(tc.prev, tc.next)
		assert.Equal(t, tc.allowed, got, "%q -> %q", tc.prev, tc.next)
	}
}

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from    models.SessionStatus
		to      models.SessionStatus
		allowed bool
	}{
		{models.StatusActive, models.StatusPaused, true},
		{models.StatusActive, models.StatusAbandoned, true},
		{models.StatusActive, models.StatusUnderReview, true},
		{models.StatusActive, models.StatusActive, false},
		{models.StatusPaused, models.StatusActive, true},
		{models.StatusPaused, models.StatusPaused, false},
		{models.StatusPaused, models.StatusCompleted, true},
		{models.StatusUnderReview, models.StatusCompleted, true},
		{models.StatusUnderReview, models.StatusInvalid, true},
		{models.StatusUnderReview, models.StatusActive, false},
		{models.StatusCompleted, models.StatusActive, false},
		{models.StatusAbandoned, models.StatusCompleted, false},
		{models.StatusInvalid, models.StatusUnderReview, false},
	}

	for _, tc := range tests {
		got := StatusTransitionAllowed(tc.from, tc.to)
		assert.Equal(t, tc.allowed, got, "%q -> %q", tc.from, tc.to)
	}
}
