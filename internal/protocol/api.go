package protocol

import (
	"encoding/json"
	"time"
)

type CreateSessionRequest struct {
	SessionID string        `json:"session_id,omitempty"`
	ExpiresIn time.Duration `json:"expires_in,omitempty"`
}

type CreateSessionResponse struct {
	SessionID     string        `json:"session_id"`
	Token         string        `json:"token"`
	OperatorToken string        `json:"operator_token"`
	SurfaceURL    string        `json:"surface_url"`
	ExpiresIn     time.Duration `json:"expires_in"`
}

type LoginResponse struct {
	Address   string `json:"address"`
	PublicKey string `json:"public_key,omitempty"`
	Kind      string `json:"kind"`
}

type ResolveRequest struct {
	Result json.RawMessage `json:"result"`
}

type RejectRequest struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
