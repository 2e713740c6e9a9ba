// Package session keeps the registry of bridge sessions and their access
// tokens.
package session

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"
)

// Session is one registered surface. Two tokens are issued at creation: the
// surface token mounts the surface, the operator token completes its
// requests. Only their hashes are stored.
type Session struct {
	ID           string    `json:"id"`
	TokenHash    string    `json:"token_hash"`
	OperatorHash string    `json:"operator_hash"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	Connected    bool      `json:"connected"`
}

func New(id, token, operatorToken string, ttl time.Duration) *Session {
	now := time.Now()
	return &Session{
		ID:           id,
		TokenHash:    HashSHA256(token),
		OperatorHash: HashSHA256(operatorToken),
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
	}
}

func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// VerifyToken checks the surface token.
func (s *Session) VerifyToken(token string) bool {
	return verify(token, s.TokenHash)
}

// VerifyOperator checks the operator token.
func (s *Session) VerifyOperator(token string) bool {
	return verify(token, s.OperatorHash)
}

func verify(token, hash string) bool {
	if token == "" {
		return false
	}
	providedHash := HashSHA256(token)
	return subtle.ConstantTimeCompare([]byte(providedHash), []byte(hash)) == 1
}

func HashSHA256(input string) string {
	h := sha256.Sum256([]byte(input))
	return hex.EncodeToString(h[:])
}

type StoreInterface interface {
	Save(session *Session)
	Get(id string) (*Session, bool)
	Delete(id string)
	OnExpire(func(id string))
	Close() error
}
