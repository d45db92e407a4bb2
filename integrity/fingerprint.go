package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/gowebpki/jcs"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/stark-secure/starkmole-integrity/models"
)

type fingerprintAction struct {
	Type     models.ActionType `json:"type"`
	Sequence int64             `json:"sequence"`
	Data     json.RawMessage   `json:"data,omitempty"`
}

// fingerprintPayload is keyed purely by gameplay content. Session id and
// wall-clock time are deliberately excluded: one replay file submitted from
// many accounts must collapse to the same fingerprint.
type fingerprintPayload struct {
	UserID   string              `json:"userId"`
	PuzzleID string              `json:"puzzleId"`
	ModuleID string              `json:"moduleId"`
	Score    int                 `json:"score"`
	Duration int64               `json:"duration"`
	Actions  []fingerprintAction `json:"actions"`
}

// Fingerprint returns the hex SHA-256 of the canonicalized gameplay payload.
func Fingerprint(session *models.GameSession) (string, error) {
	payload := fingerprintPayload{
		UserID:   session.UserID,
		PuzzleID: session.PuzzleID,
		ModuleID: session.ModuleID,
		Score:    session.Score,
		Duration: session.Duration,
		Actions:  make([]fingerprintAction, 0, len(session.Actions)),
	}
	for i := range session.Actions {
		a := &session.Actions[i]
		payload.Actions = append(payload.Actions, fingerprintAction{
			Type:     a.Type,
			Sequence: a.Sequence,
			Data:     a.Data,
		})
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// ReplayCache is the shared fingerprint set the replay check consults.
// CheckAndAdd must be atomic: two concurrent submissions of the same
// fingerprint must not both observe "unseen".
type ReplayCache interface {
	CheckAndAdd(fingerprint string) (seen bool)
}

// LRUReplayCache bounds the fingerprint set by entry count and TTL, so the
// cache cannot grow without limit under sustained traffic.
type LRUReplayCache struct {
	mu  sync.Mutex
	lru *expirable.LRU[string, time.Time]
}

const (
	DefaultReplayCacheSize = 100000
	DefaultReplayCacheTTL  = 24 * time.Hour
)

func NewLRUReplayCache(size int, ttl time.Duration) *LRUReplayCache {
	if size <= 0 {
		size = DefaultReplayCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultReplayCacheTTL
	}
	return &LRUReplayCache{lru: expirable.NewLRU[string, time.Time](size, nil, ttl)}
}

func (c *LRUReplayCache) CheckAndAdd(fingerprint string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.lru.Get(fingerprint); ok {
		return true
	}
	c.lru.Add(fingerprint, time.Now())
	return false
}

// Len reports the current number of cached fingerprints.
func (c *LRUReplayCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
