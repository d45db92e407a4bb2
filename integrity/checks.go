package integrity

import (
	"fmt"
	"net/netip"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/stark-secure/starkmole-integrity/models"
)

// automationPattern matches user agents of known automation tooling.
var automationPattern = regexp.MustCompile(`(?i)(bot|crawler|spider|scraper|automated|headless|phantom|selenium)`)

// burstWindow and burstLimit define the sliding-window burst detector: more
// than burstLimit actions inside any burstWindow span raises a warning
// regardless of the session-wide average rate.
const (
	burstWindow = 1000 * time.Millisecond
	burstLimit  = 5
)

func (v *Validator) result(checkType models.CheckType, status models.CheckStatus, severity models.Severity, message string, details map[string]interface{}) models.IntegrityCheckResult {
	return models.IntegrityCheckResult{
		CheckType: checkType,
		Status:    status,
		Message:   message,
		Severity:  severity,
		Timestamp: v.now(),
		Details:   details,
	}
}

func (v *Validator) checkScore(session *models.GameSession, rules models.ValidationRules) models.IntegrityCheckResult {
	maxPossible := session.MaxPossibleScore
	if maxPossible == 0 {
		maxPossible = rules.MaxScore
	}
	switch {
	case session.Score > maxPossible:
		return v.result(models.CheckScore, models.CheckFailed, models.SeverityCritical,
			fmt.Sprintf("score %d exceeds maximum possible %d", session.Score, maxPossible),
			map[string]interface{}{"score": session.Score, "maxPossible": maxPossible})
	case session.Score > rules.ScoreThresholds.Suspicious:
		return v.result(models.CheckScore, models.CheckWarning, models.SeverityMedium,
			fmt.Sprintf("score %d above suspicious threshold %d", session.Score, rules.ScoreThresholds.Suspicious),
			map[string]interface{}{"score": session.Score, "threshold": rules.ScoreThresholds.Suspicious})
	case session.Score < rules.MinScore:
		return v.result(models.CheckScore, models.CheckFailed, models.SeverityLow,
			fmt.Sprintf("score %d below minimum %d", session.Score, rules.MinScore), nil)
	}
	return v.result(models.CheckScore, models.CheckPassed, models.SeverityLow, "score within expected bounds", nil)
}

func (v *Validator) checkTiming(session *models.GameSession, rules models.ValidationRules) models.IntegrityCheckResult {
	if session.EndedAt != nil && session.EndedAt.Before(session.StartedAt) {
		return v.result(models.CheckTime, models.CheckFailed, models.SeverityCritical,
			"session ended before it started", nil)
	}
	duration := session.Duration
	switch {
	case duration < rules.MinDuration:
		return v.result(models.CheckTime, models.CheckFailed, models.SeverityHigh,
			fmt.Sprintf("duration %dms below minimum %dms", duration, rules.MinDuration),
			map[string]interface{}{"duration": duration})
	case duration > rules.MaxDuration:
		return v.result(models.CheckTime, models.CheckFailed, models.SeverityMedium,
			fmt.Sprintf("duration %dms above maximum %dms", duration, rules.MaxDuration),
			map[string]interface{}{"duration": duration})
	case duration < rules.TimeThresholds.TooFast && session.Score > 0:
		return v.result(models.CheckTime, models.CheckWarning, models.SeverityHigh,
			fmt.Sprintf("scored session finished in %dms, under the too-fast threshold %dms", duration, rules.TimeThresholds.TooFast),
			map[string]interface{}{"duration": duration, "score": session.Score})
	}
	return v.result(models.CheckTime, models.CheckPassed, models.SeverityLow, "timing within expected bounds", nil)
}

func (v *Validator) checkSequence(session *models.GameSession, rules models.ValidationRules) models.IntegrityCheckResult {
	present := make(map[models.ActionType]bool, len(session.Actions))
	var startTS, completeTS int64
	seen := make(map[int64]bool, len(session.Actions))
	nowMs := v.now().UnixMilli()

	for i := range session.Actions {
		a := &session.Actions[i]
		present[a.Type] = true
		if a.Type == models.ActionStart {
			startTS = a.Timestamp
		}
		if a.Type == models.ActionComplete {
			completeTS = a.Timestamp
		}
	}

	for _, required := range rules.RequiredActions {
		if !present[required] {
			return v.result(models.CheckSequence, models.CheckFailed, models.SeverityHigh,
				fmt.Sprintf("required action %q missing from session", required), nil)
		}
	}
	if present[models.ActionStart] && present[models.ActionComplete] && startTS > completeTS {
		return v.result(models.CheckSequence, models.CheckFailed, models.SeverityCritical,
			"start action timestamped after complete action", nil)
	}
	for i := range session.Actions {
		seq := session.Actions[i].Sequence
		if seen[seq] {
			return v.result(models.CheckSequence, models.CheckFailed, models.SeverityHigh,
				fmt.Sprintf("duplicate action sequence number %d", seq), nil)
		}
		seen[seq] = true
	}
	for i := range session.Actions {
		if session.Actions[i].Timestamp > nowMs {
			return v.result(models.CheckSequence, models.CheckFailed, models.SeverityHigh,
				fmt.Sprintf("action %d timestamped in the future", session.Actions[i].Sequence), nil)
		}
	}
	return v.result(models.CheckSequence, models.CheckPassed, models.SeverityLow, "action sequence is consistent", nil)
}

func (v *Validator) checkReplay(session *models.GameSession) models.IntegrityCheckResult {
	fingerprint, err := Fingerprint(session)
	if err != nil {
		return v.result(models.CheckReplay, models.CheckFailed, models.SeverityMedium,
			fmt.Sprintf("could not compute session fingerprint: %v", err), nil)
	}
	if v.cache.CheckAndAdd(fingerprint) {
		return v.result(models.CheckReplay, models.CheckFailed, models.SeverityCritical,
			"session fingerprint matches a previously submitted session",
			map[string]interface{}{"fingerprint": fingerprint})
	}
	return v.result(models.CheckReplay, models.CheckPassed, models.SeverityLow, "no matching fingerprint on record",
		map[string]interface{}{"fingerprint": fingerprint})
}

func (v *Validator) checkRateLimit(session *models.GameSession, rules models.ValidationRules) models.IntegrityCheckResult {
	count := len(session.Actions)
	if session.Duration == 0 {
		if count > 0 {
			return v.result(models.CheckRateLimit, models.CheckFailed, models.SeverityCritical,
				fmt.Sprintf("%d actions recorded in a zero-duration session", count), nil)
		}
		return v.result(models.CheckRateLimit, models.CheckPassed, models.SeverityLow, "action rate within limits", nil)
	}

	rate := float64(count) * 1000 / float64(session.Duration)
	peak := peakBurst(session.Actions)
	if rate > rules.MaxActionsPerSecond {
		// the peak burst rides along so the independent burst signal
		// survives the one-result-per-check shape
		return v.result(models.CheckRateLimit, models.CheckFailed, models.SeverityHigh,
			fmt.Sprintf("average rate %.2f actions/s exceeds limit %.2f", rate, rules.MaxActionsPerSecond),
			map[string]interface{}{"rate": rate, "actions": count, "burst": peak})
	}
	if peak > burstLimit {
		return v.result(models.CheckRateLimit, models.CheckWarning, models.SeverityMedium,
			fmt.Sprintf("%d actions within a single 1s window", peak),
			map[string]interface{}{"burst": peak})
	}
	return v.result(models.CheckRateLimit, models.CheckPassed, models.SeverityLow, "action rate within limits", nil)
}

// peakBurst slides a 1-second window over the client timestamps and returns
// the largest number of actions any window contains.
func peakBurst(actions []models.GameAction) int {
	if len(actions) == 0 {
		return 0
	}
	timestamps := make([]int64, len(actions))
	for i := range actions {
		timestamps[i] = actions[i].Timestamp
	}
	sort.Slice(timestamps, func(i, j int) bool { return timestamps[i] < timestamps[j] })

	peak, lo := 0, 0
	for hi := range timestamps {
		for timestamps[hi]-timestamps[lo] >= burstWindow.Milliseconds() {
			lo++
		}
		if n := hi - lo + 1; n > peak {
			peak = n
		}
	}
	return peak
}

func (v *Validator) checkSignature(session *models.GameSession) models.IntegrityCheckResult {
	if session.Signature == "" {
		return v.result(models.CheckSignature, models.CheckWarning, models.SeverityLow,
			"session carries no signature", nil)
	}
	ok, err := v.signer.Verify(session, session.Signature)
	if err != nil {
		return v.result(models.CheckSignature, models.CheckFailed, models.SeverityMedium,
			fmt.Sprintf("could not verify signature: %v", err), nil)
	}
	if !ok {
		return v.result(models.CheckSignature, models.CheckFailed, models.SeverityCritical,
			"session signature does not match signed fields", nil)
	}
	return v.result(models.CheckSignature, models.CheckPassed, models.SeverityLow, "signature verified", nil)
}

func (v *Validator) checkMetadata(session *models.GameSession, rules models.ValidationRules) models.IntegrityCheckResult {
	meta := session.Metadata
	var issues []string
	severity := models.SeverityMedium

	if meta.UserAgent == "" {
		issues = append(issues, "missing user agent")
	}
	if meta.IPAddress == "" {
		issues = append(issues, "missing ip address")
	} else if !validIPv4(meta.IPAddress) {
		issues = append(issues, fmt.Sprintf("malformed ip address %q", meta.IPAddress))
	}
	if meta.UserAgent != "" && automationPattern.MatchString(meta.UserAgent) {
		issues = append(issues, fmt.Sprintf("automation signature in user agent %q", meta.UserAgent))
		severity = models.SeverityHigh
	}
	if meta.Hints != nil {
		if *meta.Hints < 0 {
			issues = append(issues, fmt.Sprintf("negative hint count %d", *meta.Hints))
		} else if *meta.Hints > rules.MaxHints {
			issues = append(issues, fmt.Sprintf("hint count %d exceeds limit %d", *meta.Hints, rules.MaxHints))
		}
	}
	if meta.Attempts != nil {
		if *meta.Attempts < 1 {
			issues = append(issues, fmt.Sprintf("attempt count %d below 1", *meta.Attempts))
		} else if *meta.Attempts > rules.MaxAttempts {
			issues = append(issues, fmt.Sprintf("attempt count %d exceeds limit %d", *meta.Attempts, rules.MaxAttempts))
		}
	}

	if len(issues) > 0 {
		return v.result(models.CheckMetadata, models.CheckFailed, severity, strings.Join(issues, "; "), nil)
	}
	return v.result(models.CheckMetadata, models.CheckPassed, models.SeverityLow, "metadata is consistent", nil)
}

// validIPv4 accepts only dotted-quad IPv4 addresses.
func validIPv4(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	return err == nil && addr.Is4()
}
