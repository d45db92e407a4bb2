package session

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// SessionClaims is the signed session handle handed to clients. Unlike a
// bare base64 blob it is tamper-evident: the HMAC covers the session and
// user ids.
type SessionClaims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
}

// NewSessionToken signs a session handle valid for ttl.
func NewSessionToken(secret []byte, sessionID, userID string, ttl time.Duration) (string, error) {
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		SessionID: sessionID,
		UserID:    userID,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ParseSessionToken validates the signature and expiry of a session handle.
func ParseSessionToken(secret []byte, tokenStr string) (*SessionClaims, error) {
	keyFunc := func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrInvalidKey
		}
		return secret, nil
	}

	token, err := jwt.ParseWithClaims(tokenStr, &SessionClaims{}, keyFunc)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}
