package server

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"runtime/debug"
	"strings"

	"github.com/gorilla/mux"

	"dappbridge/internal/constants"
	"dappbridge/internal/security"
	"dappbridge/internal/session"
)

// CorsMiddleware echoes the origin back only when it is allowed.
func CorsMiddleware(allowedOrigins []string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && security.ValidateOrigin(r, allowedOrigins) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				w.Header().Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("🔥 PANIC RECOVERED: %v\nStack Trace:\n%s", err, string(debug.Stack()))
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type sessionKey struct{}

// sessionAuth guards every route with a {session} variable: the session
// must exist and the request must carry its operator token.
func (s *Server) sessionAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := mux.Vars(r)["session"]; !ok {
			next.ServeHTTP(w, r)
			return
		}

		id, ok := pathVar(r, "session")
		if !ok || !security.ValidateSessionID(id) {
			writeError(w, http.StatusBadRequest, "Invalid session ID")
			return
		}
		sess, ok := s.Store.Get(id)
		if !ok {
			writeError(w, http.StatusNotFound, constants.MsgSessionNotFound)
			return
		}
		if !sess.VerifyOperator(bearerToken(r)) {
			s.AuditLogger.LogTokenFailure(s.Proxies.ClientIP(r), id)
			writeError(w, http.StatusUnauthorized, constants.MsgUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, sess)))
	})
}

// pathVar returns a route variable unescaped. Routes match the encoded
// path, so a request id may contain '/' or be "." or "..".
func pathVar(r *http.Request, name string) (string, bool) {
	raw, ok := mux.Vars(r)[name]
	if !ok {
		return "", false
	}
	v, err := url.PathUnescape(raw)
	if err != nil {
		return "", false
	}
	return v, true
}

func sessionFrom(r *http.Request) *session.Session {
	sess, _ := r.Context().Value(sessionKey{}).(*session.Session)
	return sess
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(h, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}
