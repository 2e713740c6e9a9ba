package server_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"dappbridge/internal/config"
	"dappbridge/internal/protocol"
	"dappbridge/internal/queue"
	"dappbridge/internal/server"
	"dappbridge/internal/session"
)

const (
	testWIF     = "L44B5gGEpqEDRS9vVPz7QT35jcBG2r3CZwSwQ4fCewXAhAhqGVpP"
	testAddress = "AStZHy8E6StCqYQbzMqi4poH7YNDHQKxvt"
)

type harness struct {
	t   *testing.T
	srv *httptest.Server
	s   *server.Server
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := config.Config{
		LogDir:          t.TempDir(),
		SessionDuration: time.Hour,
	}
	s, err := server.New(cfg, session.NewMemoryStore(), queue.NewMemoryQueue())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		srv.Close()
		s.Cleanup()
	})
	return &harness{t: t, srv: srv, s: s}
}

func (h *harness) do(method, path, token string, body any) *http.Response {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			h.t.Fatalf("Encode: %v", err)
		}
	}
	req, err := http.NewRequest(method, h.srv.URL+path, &buf)
	if err != nil {
		h.t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		h.t.Fatalf("%s %s: %v", method, path, err)
	}
	h.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (h *harness) createSession(id string) protocol.CreateSessionResponse {
	h.t.Helper()
	resp := h.do(http.MethodPost, "/api/sessions", "", protocol.CreateSessionRequest{SessionID: id})
	if resp.StatusCode != http.StatusCreated {
		h.t.Fatalf("create session: status %d", resp.StatusCode)
	}
	var created protocol.CreateSessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		h.t.Fatalf("Decode: %v", err)
	}
	return created
}

func (h *harness) dial(surfaceURL string) *websocket.Conn {
	h.t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(surfaceURL, nil)
	if err != nil {
		h.t.Fatalf("Dial: %v", err)
	}
	h.t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, frame string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
}

func read(t *testing.T, conn *websocket.Conn) (string, json.RawMessage) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var resp struct {
		Channel string          `json:"channel"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	return resp.Channel, resp.Payload
}

// waitPending polls the operator API until n requests are pending.
func (h *harness) waitPending(sessionID, token string, n int) []queue.PendingRequest {
	h.t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		resp := h.do(http.MethodGet, "/api/sessions/"+sessionID+"/requests", token, nil)
		if resp.StatusCode != http.StatusOK {
			h.t.Fatalf("list requests: status %d", resp.StatusCode)
		}
		var pending []queue.PendingRequest
		if err := json.NewDecoder(resp.Body).Decode(&pending); err != nil {
			h.t.Fatalf("Decode: %v", err)
		}
		if len(pending) == n {
			return pending
		}
		if time.Now().After(deadline) {
			h.t.Fatalf("pending = %d, want %d", len(pending), n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestServer_Health(t *testing.T) {
	h := newHarness(t)
	resp := h.do(http.MethodGet, "/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Frame-Options") != "DENY" {
		t.Fatal("security headers missing")
	}
}

func TestServer_SurfaceRoundTrip(t *testing.T) {
	h := newHarness(t)
	created := h.createSession("dapp-1")
	if created.SessionID != "dapp-1" || created.Token == "" || created.OperatorToken == "" {
		t.Fatalf("created = %+v", created)
	}
	if !strings.HasPrefix(created.SurfaceURL, "ws://") || !strings.Contains(created.SurfaceURL, "/ws/dapp-1?token=") {
		t.Fatalf("surface url = %q", created.SurfaceURL)
	}

	conn := h.dial(created.SurfaceURL)

	send(t, conn, `{"type":"ipc-message","channel":"invoke","args":["req-1","foo","bar"]}`)
	pending := h.waitPending("dapp-1", created.OperatorToken, 1)
	if pending[0].Channel != "invoke" || pending[0].ID != "req-1" || len(pending[0].Args) != 2 {
		t.Fatalf("pending = %+v", pending[0])
	}

	resp := h.do(http.MethodPost, "/api/sessions/dapp-1/requests/req-1/resolve", created.OperatorToken,
		map[string]any{"result": 42})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("resolve: status %d", resp.StatusCode)
	}
	channel, payload := read(t, conn)
	if channel != "invoke-success-req-1" || string(payload) != "42" {
		t.Fatalf("got %s %s", channel, payload)
	}

	resp = h.do(http.MethodPost, "/api/sessions/dapp-1/requests/req-1/resolve", created.OperatorToken,
		map[string]any{"result": 43})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second resolve: status %d", resp.StatusCode)
	}

	send(t, conn, `{"type":"ipc-message","channel":"send","args":[5]}`)
	h.waitPending("dapp-1", created.OperatorToken, 1)
	resp = h.do(http.MethodPost, "/api/sessions/dapp-1/requests/5/reject", created.OperatorToken,
		protocol.RejectRequest{Message: "user declined"})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("reject: status %d", resp.StatusCode)
	}
	channel, payload = read(t, conn)
	if channel != "send-failure-5" || string(payload) != `"user declined"` {
		t.Fatalf("got %s %s", channel, payload)
	}
}

func TestServer_ResolveAwkwardIDs(t *testing.T) {
	h := newHarness(t)
	created := h.createSession("dapp-ids")
	conn := h.dial(created.SurfaceURL)

	for _, id := range []string{"tx/1", "..", ".", "50%", "a b"} {
		frame, _ := json.Marshal(map[string]any{"type": "ipc-message", "channel": "invoke", "args": []string{id}})
		send(t, conn, string(frame))
		pending := h.waitPending("dapp-ids", created.OperatorToken, 1)
		if pending[0].ID != id {
			t.Fatalf("pending id = %q, want %q", pending[0].ID, id)
		}

		path := "/api/sessions/dapp-ids/requests/" + url.PathEscape(id) + "/resolve"
		resp := h.do(http.MethodPost, path, created.OperatorToken, map[string]any{"result": "ok"})
		if resp.StatusCode != http.StatusNoContent {
			t.Fatalf("resolve %q: status %d", id, resp.StatusCode)
		}
		channel, payload := read(t, conn)
		if channel != "invoke-success-"+id || string(payload) != `"ok"` {
			t.Fatalf("got %s %s", channel, payload)
		}
	}
}

func TestServer_LoginAndGetAccount(t *testing.T) {
	h := newHarness(t)
	created := h.createSession("")
	conn := h.dial(created.SurfaceURL)

	send(t, conn, `{"type":"ipc-message","channel":"getAccount","args":["a1"]}`)
	channel, payload := read(t, conn)
	if channel != "getAccount-failure-a1" || string(payload) != `"not logged in"` {
		t.Fatalf("got %s %s", channel, payload)
	}

	path := "/api/sessions/" + created.SessionID + "/login"
	resp := h.do(http.MethodPost, path, created.OperatorToken, map[string]string{"passphrase": "abc", "encrypted_wif": "x"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("short passphrase: status %d", resp.StatusCode)
	}

	resp = h.do(http.MethodPost, path, created.OperatorToken, map[string]string{"wif": testWIF})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: status %d", resp.StatusCode)
	}
	var login protocol.LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&login); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if login.Address != testAddress || login.Kind != "direct" {
		t.Fatalf("login = %+v", login)
	}

	send(t, conn, `{"type":"ipc-message","channel":"getAccount","args":["a2"]}`)
	channel, payload = read(t, conn)
	if channel != "getAccount-success-a2" {
		t.Fatalf("got %s %s", channel, payload)
	}
	var pub struct {
		Address string `json:"address"`
	}
	json.Unmarshal(payload, &pub)
	if pub.Address != testAddress {
		t.Fatalf("payload = %s", payload)
	}
	if strings.Contains(string(payload), testWIF) {
		t.Fatal("secret key sent to the surface")
	}
}

func TestServer_RejectsBadTokens(t *testing.T) {
	h := newHarness(t)
	created := h.createSession("dapp-2")

	if resp := h.do(http.MethodGet, "/api/sessions/dapp-2/requests", "", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no token: status %d", resp.StatusCode)
	}
	if resp := h.do(http.MethodGet, "/api/sessions/dapp-2/requests", created.Token, nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("surface token on operator API: status %d", resp.StatusCode)
	}
	if resp := h.do(http.MethodGet, "/api/sessions/missing/requests", created.OperatorToken, nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing session: status %d", resp.StatusCode)
	}

	bad := strings.Replace(created.SurfaceURL, created.Token, "wrong", 1)
	_, resp, err := websocket.DefaultDialer.Dial(bad, nil)
	if err == nil {
		t.Fatal("Dial with wrong token succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong token: %v", resp)
	}

	if resp := h.do(http.MethodPost, "/api/sessions", "", protocol.CreateSessionRequest{SessionID: "dapp-2"}); resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate session: status %d", resp.StatusCode)
	}
	if resp := h.do(http.MethodPost, "/api/sessions", "", protocol.CreateSessionRequest{SessionID: "../etc"}); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad session id: status %d", resp.StatusCode)
	}
}

func TestServer_DeleteTearsDown(t *testing.T) {
	h := newHarness(t)
	created := h.createSession("dapp-3")
	conn := h.dial(created.SurfaceURL)

	send(t, conn, `{"type":"ipc-message","channel":"invoke","args":["req-2"]}`)
	h.waitPending("dapp-3", created.OperatorToken, 1)

	if resp := h.do(http.MethodDelete, "/api/sessions/dapp-3", created.OperatorToken, nil); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: status %d", resp.StatusCode)
	}

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("surface still open after delete")
	}
	if len(h.s.Queue.List("dapp-3")) != 0 {
		t.Fatal("pending requests survived teardown")
	}
	if _, ok := h.s.Controller("dapp-3"); ok {
		t.Fatal("bridge survived delete")
	}
	if resp := h.do(http.MethodPost, "/api/sessions/dapp-3/login", created.OperatorToken,
		map[string]string{"wif": testWIF}); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("login after delete: status %d", resp.StatusCode)
	}
	if _, ok := h.s.Controller("dapp-3"); ok {
		t.Fatal("login recreated the bridge")
	}
	if resp := h.do(http.MethodGet, "/api/sessions/dapp-3/requests", created.OperatorToken, nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("after delete: status %d", resp.StatusCode)
	}
}

func TestServer_CORS(t *testing.T) {
	cfg := config.Config{LogDir: t.TempDir(), SessionDuration: time.Hour, AllowedOrigins: []string{"https://wallet.example"}}
	s, _ := server.New(cfg, session.NewMemoryStore(), queue.NewMemoryQueue())
	defer s.Cleanup()

	req := httptest.NewRequest(http.MethodOptions, "/api/sessions", nil)
	req.Header.Set("Origin", "https://wallet.example")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "https://wallet.example" {
		t.Fatal("allowed origin not echoed")
	}

	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("disallowed origin echoed")
	}
}
