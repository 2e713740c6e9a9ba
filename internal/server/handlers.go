package server

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"dappbridge/internal/auth"
	"dappbridge/internal/bridge"
	"dappbridge/internal/constants"
	"dappbridge/internal/protocol"
	"dappbridge/internal/queue"
	"dappbridge/internal/security"
	"dappbridge/internal/session"
	"dappbridge/internal/utils"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, protocol.ErrorResponse{Error: message})
}

// decodeBody decodes an optional JSON body into v. An empty body leaves v
// unchanged.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxAPIBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, constants.MsgInvalidJSON)
		return false
	}
	return true
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": constants.Version,
	})
}

func (s *Server) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req protocol.CreateSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	if !security.ValidateSessionID(sessionID) {
		writeError(w, http.StatusBadRequest, "Invalid session ID")
		return
	}
	if _, exists := s.Store.Get(sessionID); exists {
		writeError(w, http.StatusConflict, "Session already exists")
		return
	}

	sessionDuration := s.Config.SessionDuration
	if req.ExpiresIn > 0 {
		sessionDuration = req.ExpiresIn
		if sessionDuration < constants.MinSessionDuration {
			sessionDuration = constants.MinSessionDuration
		}
		if sessionDuration > constants.MaxSessionDuration {
			sessionDuration = constants.MaxSessionDuration
		}
	}

	token := uuid.New().String()
	operatorToken := uuid.New().String()
	s.Store.Save(session.New(sessionID, token, operatorToken, sessionDuration))
	if _, ok := s.bridgeFor(sessionID); !ok {
		writeError(w, http.StatusInternalServerError, "Failed to register session")
		return
	}

	scheme := utils.GetScheme(r)
	urlHost := r.Host
	if s.Config.Host != "" {
		urlHost = s.Config.Host
		if !utils.IsStandardPort(scheme, s.Config.Port) {
			urlHost = s.Config.Host + ":" + s.Config.Port
		}
	}
	serverURL := utils.ConstructURL(scheme, urlHost, "/")

	writeJSON(w, http.StatusCreated, protocol.CreateSessionResponse{
		SessionID:     sessionID,
		Token:         token,
		OperatorToken: operatorToken,
		SurfaceURL:    utils.ConstructWSURL(serverURL, sessionID, token),
		ExpiresIn:     sessionDuration,
	})

	log.Printf("✅ New session registered: %s (expires in %s)", sessionID, utils.FormatDuration(sessionDuration))
}

func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	clientIP := s.Proxies.ClientIP(r)

	release, ok := s.Surfaces.Acquire(clientIP)
	if !ok {
		s.AuditLogger.LogConnectionLimit(clientIP)
		writeError(w, http.StatusTooManyRequests, "Connection limit exceeded")
		return
	}
	defer release()

	sessionID, ok := pathVar(r, "session")
	if !ok || !security.ValidateSessionID(sessionID) {
		writeError(w, http.StatusBadRequest, "Invalid session ID")
		return
	}

	sess, ok := s.Store.Get(sessionID)
	if !ok {
		writeError(w, http.StatusNotFound, constants.MsgSessionNotFound)
		return
	}

	if !sess.VerifyToken(r.URL.Query().Get("token")) {
		s.AuditLogger.LogTokenFailure(clientIP, sessionID)
		writeError(w, http.StatusUnauthorized, constants.MsgUnauthorized)
		return
	}

	b, ok := s.bridgeFor(sessionID)
	if !ok {
		writeError(w, http.StatusNotFound, constants.MsgSessionNotFound)
		return
	}
	if b.controller.Mounted() {
		writeError(w, http.StatusConflict, "Surface already connected")
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  constants.WSBufferSize,
		WriteBufferSize: constants.WSBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			return security.ValidateOrigin(r, s.Config.AllowedOrigins)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("❌ WebSocket upgrade error: %v", err)
		return
	}

	surface := bridge.NewWebSocketSurface(conn)
	defer surface.Close()

	s.setConnected(sessionID, true)
	if b.log != nil {
		b.log.LogEvent("surface connected from " + clientIP)
	}

	if err := surface.Serve(b.controller); err != nil {
		log.Printf("⚠️  Session %s: %v", sessionID, err)
		if b.log != nil {
			b.log.LogError(err, "surface connection")
		}
	}

	s.setConnected(sessionID, false)
	if b.log != nil {
		b.log.LogEvent("surface disconnected")
	}
}

func (s *Server) setConnected(sessionID string, connected bool) {
	sess, ok := s.Store.Get(sessionID)
	if !ok {
		return
	}
	sess.Connected = connected
	s.Store.Save(sess)
}

func (s *Server) HandleLogin(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	clientIP := s.Proxies.ClientIP(r)
	key := clientIP + "|" + sess.ID

	if !s.Logins.Allow(key) {
		s.AuditLogger.LogBruteForce(clientIP, sess.ID, constants.MaxLoginAttempts)
		writeError(w, http.StatusTooManyRequests, constants.MsgTooManyAttempts)
		return
	}

	var creds auth.Credentials
	if !decodeBody(w, r, &creds) {
		return
	}

	acct, err := auth.Authenticate(creds)
	if err != nil {
		if s.Logins.Fail(key) {
			s.AuditLogger.LogBruteForce(clientIP, sess.ID, constants.MaxLoginAttempts)
		}
		s.AuditLogger.LogLoginFailure(clientIP, sess.ID, err.Error())

		status := http.StatusBadRequest
		if errors.Is(err, auth.ErrDecryptionFailed) {
			status = http.StatusUnauthorized
		}
		writeError(w, status, err.Error())
		return
	}
	s.Logins.Reset(key)

	if _, ok := s.bridgeFor(sess.ID); !ok || !s.setAccount(sess.ID, acct) {
		writeError(w, http.StatusNotFound, constants.MsgSessionNotFound)
		return
	}
	s.AuditLogger.LogLoginSuccess(clientIP, sess.ID, acct.Address)
	log.Printf("🔑 Session %s logged in as %s (%s)", sess.ID, acct.Address, acct.Kind())

	pub := acct.Public()
	writeJSON(w, http.StatusOK, protocol.LoginResponse{
		Address:   pub.Address,
		PublicKey: pub.PublicKey,
		Kind:      string(pub.Kind),
	})
}

func (s *Server) HandleListRequests(w http.ResponseWriter, r *http.Request) {
	pending := s.Queue.List(sessionFrom(r).ID)
	if pending == nil {
		pending = []queue.PendingRequest{}
	}
	writeJSON(w, http.StatusOK, pending)
}

func (s *Server) HandleResolve(w http.ResponseWriter, r *http.Request) {
	var body protocol.ResolveRequest
	if !decodeBody(w, r, &body) {
		return
	}
	result := body.Result
	if len(result) == 0 {
		result = json.RawMessage("null")
	}
	s.complete(w, r, bridge.Success(result))
}

func (s *Server) HandleReject(w http.ResponseWriter, r *http.Request) {
	var body protocol.RejectRequest
	if !decodeBody(w, r, &body) {
		return
	}
	message := security.SanitizeInput(body.Message)
	if message == "" {
		message = "request rejected"
	}
	s.complete(w, r, bridge.Failure(message))
}

func (s *Server) complete(w http.ResponseWriter, r *http.Request, o bridge.Outcome) {
	sessionID := sessionFrom(r).ID
	id, ok := pathVar(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, constants.MsgRequestNotFound)
		return
	}

	c, ok := s.Controller(sessionID)
	if !ok {
		writeError(w, http.StatusNotFound, constants.MsgRequestNotFound)
		return
	}
	req, ok := c.Pending(id)
	if !ok {
		writeError(w, http.StatusNotFound, constants.MsgRequestNotFound)
		return
	}

	if err := c.Complete(req, o); err != nil {
		if errors.Is(err, bridge.ErrNotPending) {
			writeError(w, http.StatusNotFound, constants.MsgRequestNotFound)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) HandleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := sessionFrom(r).ID
	s.Store.Delete(sessionID)
	s.teardown(sessionID)
	log.Printf("🗑 Session closed: %s", sessionID)
	w.WriteHeader(http.StatusNoContent)
}
