package session

import "github.com/stark-secure/starkmole-integrity/models"

// allowedNextActions is the action-transition relation. The zero ActionType
// stands for "no action recorded yet". One exhaustive switch so a new action
// type shows up here as a compile-time visible gap.
func allowedNextActions(prev models.ActionType) []models.ActionType {
	switch prev {
	case "":
		return []models.ActionType{models.ActionStart}
	case models.ActionStart, models.ActionMove, models.ActionHintRequest,
		models.ActionResume, models.ActionSubmitAnswer, models.ActionHeartbeat:
		return []models.ActionType{
			models.ActionMove, models.ActionHintRequest, models.ActionPause,
			models.ActionSubmitAnswer, models.ActionComplete, models.ActionAbandon,
			models.ActionHeartbeat,
		}
	case models.ActionPause:
		return []models.ActionType{models.ActionResume, models.ActionAbandon}
	case models.ActionComplete, models.ActionAbandon:
		return nil // terminal, no further actions accepted
	default:
		return nil
	}
}

// ActionTransitionAllowed reports whether next may follow prev in a
// session's action stream.
func ActionTransitionAllowed(prev, next models.ActionType) bool {
	for _, allowed := range allowedNextActions(prev) {
		if allowed == next {
			return true
		}
	}
	return false
}

// StatusTransitionAllowed is the session lifecycle relation. under_review
// exits only toward the two moderation outcomes.
func StatusTransitionAllowed(from, to models.SessionStatus) bool {
	switch from {
	case models.StatusActive:
		return to == models.StatusPaused || to == models.StatusAbandoned ||
			to == models.StatusCompleted || to == models.StatusInvalid ||
			to == models.StatusUnderReview
	case models.StatusPaused:
		return to == models.StatusActive || to == models.StatusAbandoned ||
			to == models.StatusCompleted || to == models.StatusInvalid ||
			to == models.StatusUnderReview
	case models.StatusUnderReview:
		return to == models.StatusCompleted || to == models.StatusInvalid
	case models.StatusCompleted, models.StatusAbandoned, models.StatusInvalid:
		return false
	default:
		return false
	}
}
