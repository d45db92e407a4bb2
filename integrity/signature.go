package integrity

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/gowebpki/jcs"

	"github.com/stark-secure/starkmole-integrity/models"
)

// signaturePayload is the exact field set covered by the session signature.
// Anything outside it (actions, metadata) is covered by the replay
// fingerprint instead.
type signaturePayload struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	StartedAt int64  `json:"startedAt"` // unix ms
	Score     int    `json:"score"`
	Duration  int64  `json:"duration"`
}

// Signer produces and verifies HMAC-SHA256 session signatures. Payloads are
// canonicalized with JCS before hashing so the signature is independent of
// JSON key order.
type Signer struct {
	secret []byte
}

func NewSigner(secret []byte) *Signer {
	return &Signer{secret: secret}
}

// Sign computes the hex signature over {id, userId, startedAt, score,
// duration}. Deterministic: identical inputs always yield identical output.
func (s *Signer) Sign(session *models.GameSession) (string, error) {
	payload := signaturePayload{
		ID:        session.ID,
		UserID:    session.UserID,
		StartedAt: session.StartedAt.UnixMilli(),
		Score:     session.Score,
		Duration:  session.Duration,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(canonical)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify recomputes the signature and compares it in constant time.
func (s *Signer) Verify(session *models.GameSession, signature string) (bool, error) {
	expected, err := s.Sign(session)
	if err != nil {
		return false, err
	}
	return hmac.Equal([]byte(expected), []byte(signature)), nil
}
