// Package client talks to a bridge host: the operator API over HTTP and the
// surface side over a websocket.
package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"dappbridge/internal/auth"
	"dappbridge/internal/constants"
	"dappbridge/internal/protocol"
	"dappbridge/internal/queue"
	"dappbridge/internal/utils"
)

// APIError is a non-2xx answer from the host.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned status %d: %s", e.Status, e.Message)
}

type Client struct {
	Base   string
	HTTP   *http.Client
	Dialer *websocket.Dialer
}

func New(serverURL string) *Client {
	base, skipTLSVerify := utils.NormalizeServerURL(serverURL)

	httpClient := &http.Client{Timeout: 30 * time.Second}
	dialer := &websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
		ReadBufferSize:   constants.WSBufferSize,
		WriteBufferSize:  constants.WSBufferSize,
	}
	if skipTLSVerify {
		httpClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Client{Base: base, HTTP: httpClient, Dialer: dialer}
}

func sessionPath(sessionID string, parts ...string) string {
	p := constants.EndpointSessions + "/" + escapeSegment(sessionID)
	for _, part := range parts {
		p += "/" + escapeSegment(part)
	}
	return p
}

// escapeSegment also encodes dot segments, which url.PathEscape leaves
// alone and proxies may resolve away.
func escapeSegment(s string) string {
	if s == "." || s == ".." {
		return strings.Repeat("%2E", len(s))
	}
	return url.PathEscape(s)
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.Base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var er protocol.ErrorResponse
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, constants.MaxAPIBodySize))
		if json.Unmarshal(raw, &er) == nil && er.Error != "" {
			apiErr.Message = er.Error
		} else {
			apiErr.Message = string(bytes.TrimSpace(raw))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, constants.EndpointHealth, "", nil, nil)
}

func (c *Client) CreateSession(ctx context.Context, req protocol.CreateSessionRequest) (protocol.CreateSessionResponse, error) {
	var out protocol.CreateSessionResponse
	err := c.do(ctx, http.MethodPost, constants.EndpointSessions, "", req, &out)
	return out, err
}

func (c *Client) Login(ctx context.Context, sessionID, token string, creds auth.Credentials) (protocol.LoginResponse, error) {
	var out protocol.LoginResponse
	err := c.do(ctx, http.MethodPost, sessionPath(sessionID, "login"), token, creds, &out)
	return out, err
}

func (c *Client) Requests(ctx context.Context, sessionID, token string) ([]queue.PendingRequest, error) {
	var out []queue.PendingRequest
	err := c.do(ctx, http.MethodGet, sessionPath(sessionID, "requests"), token, nil, &out)
	return out, err
}

func (c *Client) Resolve(ctx context.Context, sessionID, token, id string, result json.RawMessage) error {
	return c.do(ctx, http.MethodPost, sessionPath(sessionID, "requests", id, "resolve"), token,
		protocol.ResolveRequest{Result: result}, nil)
}

func (c *Client) Reject(ctx context.Context, sessionID, token, id, message string) error {
	return c.do(ctx, http.MethodPost, sessionPath(sessionID, "requests", id, "reject"), token,
		protocol.RejectRequest{Message: message}, nil)
}

func (c *Client) DeleteSession(ctx context.Context, sessionID, token string) error {
	return c.do(ctx, http.MethodDelete, sessionPath(sessionID), token, nil, nil)
}
