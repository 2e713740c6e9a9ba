// Package server is the bridge host: it registers sessions, mounts surfaces
// over websockets and exposes the pending requests to an operator.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"dappbridge/internal/auth"
	"dappbridge/internal/bridge"
	"dappbridge/internal/config"
	"dappbridge/internal/constants"
	"dappbridge/internal/logger"
	"dappbridge/internal/processor"
	"dappbridge/internal/queue"
	"dappbridge/internal/security"
	"dappbridge/internal/session"
)

// sessionBridge is the live state of one session in this process.
type sessionBridge struct {
	controller *bridge.Controller
	log        *logger.Logger
	account    *auth.Account
}

type Server struct {
	Config      config.Config
	Store       session.StoreInterface
	Queue       queue.Queue
	Processor   *processor.Processor
	Opener      bridge.LinkOpener
	Proxies     security.Proxies
	Surfaces    *security.SurfaceLimiter
	Logins      *security.LoginGuard
	AuditLogger *security.AuditLogger

	mu      sync.RWMutex
	bridges map[string]*sessionBridge
}

// NewServer builds a server from cfg, choosing Redis or in-memory backends.
func NewServer(cfg config.Config) (*Server, error) {
	return New(cfg, session.NewStore(cfg), queue.NewQueue(cfg))
}

func New(cfg config.Config, store session.StoreInterface, q queue.Queue) (*Server, error) {
	proxies, err := security.ParseProxies(cfg.TrustedProxies)
	if err != nil {
		return nil, err
	}

	auditLogger, err := security.NewAuditLogger(cfg.LogDir)
	if err != nil {
		log.Printf("Warning: Failed to initialize audit logger: %v", err)
	}

	var opener bridge.LinkOpener = bridge.LogOpener{}
	if cfg.OpenExternal {
		opener = bridge.SystemOpener{}
	}

	s := &Server{
		Config:      cfg,
		Store:       store,
		Queue:       q,
		Opener:      opener,
		Proxies:     proxies,
		Surfaces:    security.NewSurfaceLimiter(constants.MaxConnectionsPerIP),
		Logins:      security.NewLoginGuard(constants.MaxLoginAttempts, constants.LoginBlockDuration, constants.CleanupInterval),
		AuditLogger: auditLogger,
		bridges:     make(map[string]*sessionBridge),
	}

	s.Processor = processor.New(s, constants.ProcessorTimeout)
	s.Processor.Handle(processor.ChannelGetAccount, processor.AccountHandler(s))
	s.Queue.OnEnqueue(s.Processor.Process)

	s.Store.OnExpire(func(id string) {
		if s.teardown(id) {
			log.Printf("🗑 Session closed (expired): %s", id)
		}
	})

	return s, nil
}

// Controller returns the bridge controller of a live session.
func (s *Server) Controller(sessionID string) (*bridge.Controller, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bridges[sessionID]
	if !ok {
		return nil, false
	}
	return b.controller, true
}

// Account returns the account the session logged in with. Accounts live
// only in this process and are never written to the store.
func (s *Server) Account(sessionID string) (auth.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bridges[sessionID]
	if !ok || b.account == nil {
		return auth.Account{}, false
	}
	return *b.account, true
}

func (s *Server) setAccount(sessionID string, acct auth.Account) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bridges[sessionID]
	if !ok {
		return false
	}
	b.account = &acct
	return true
}

// bridgeFor returns the session's bridge, creating it on first use. It
// reports false once the session is gone from the store.
func (s *Server) bridgeFor(sessionID string) (*sessionBridge, bool) {
	b := s.ensureBridge(sessionID)
	// Checked after insertion: a concurrent delete either tears this bridge
	// down itself or has already removed the session from the store.
	if _, ok := s.Store.Get(sessionID); !ok {
		s.teardown(sessionID)
		return nil, false
	}
	return b, true
}

func (s *Server) ensureBridge(sessionID string) *sessionBridge {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b, ok := s.bridges[sessionID]; ok {
		return b
	}

	b := &sessionBridge{}
	opts := []bridge.Option{
		bridge.WithLinkOpener(s.Opener),
		bridge.WithBlockedLinkHook(func(url string) {
			s.AuditLogger.LogBlockedNavigation(sessionID, url)
		}),
	}
	if l, err := logger.NewLogger(s.Config.LogDir, sessionID); err != nil {
		log.Printf("⚠️  Session %s: console log unavailable: %v", sessionID, err)
	} else {
		b.log = l
		opts = append(opts, bridge.WithConsole(l))
		log.Printf("📝 Session %s console log: %s", sessionID, l.GetLogPath())
	}
	b.controller = bridge.NewController(sessionID, s.Queue, opts...)
	s.bridges[sessionID] = b
	return b
}

// teardown unmounts the session's surface, drops its pending requests and
// forgets its account. It reports whether the session had a live bridge.
func (s *Server) teardown(sessionID string) bool {
	s.mu.Lock()
	b, ok := s.bridges[sessionID]
	delete(s.bridges, sessionID)
	s.mu.Unlock()

	if !ok {
		s.Queue.Empty(sessionID)
		return false
	}

	b.controller.Unmount()
	s.Queue.Empty(sessionID)
	if b.log != nil {
		b.log.LogEvent("session closed")
		b.log.Close()
	}
	return true
}

// Handler returns the routed and wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.UseEncodedPath()
	r.SkipClean(true)
	r.HandleFunc(constants.EndpointHealth, s.HandleHealth).Methods(http.MethodGet)
	r.HandleFunc(constants.EndpointWebSocket+"{session}", s.HandleWebSocket).Methods(http.MethodGet)

	api := r.PathPrefix(constants.EndpointSessions).Subrouter()
	api.HandleFunc("", s.HandleCreateSession).Methods(http.MethodPost)
	api.HandleFunc("/{session}", s.HandleDeleteSession).Methods(http.MethodDelete)
	api.HandleFunc("/{session}/login", s.HandleLogin).Methods(http.MethodPost)
	api.HandleFunc("/{session}/requests", s.HandleListRequests).Methods(http.MethodGet)
	api.HandleFunc("/{session}/requests/{id}/resolve", s.HandleResolve).Methods(http.MethodPost)
	api.HandleFunc("/{session}/requests/{id}/reject", s.HandleReject).Methods(http.MethodPost)
	api.Use(s.sessionAuth)

	var handler http.Handler = r
	handler = RecoveryMiddleware(handler)
	handler = CorsMiddleware(s.Config.AllowedOrigins)(handler)
	handler = security.SecurityHeaders(handler)
	return handler
}

func (s *Server) Run() error {
	cfg := s.Config

	useTLS := false
	if cfg.EnableTLS {
		if _, err := os.Stat(cfg.CertFile); err == nil {
			if _, err := os.Stat(cfg.KeyFile); err == nil {
				useTLS = true
			}
		}

		if !useTLS {
			log.Printf("Warning: DAPPBRIDGE_ENABLE_TLS is true but certs not found at %s", cfg.CertFile)
		}
	}

	var h2Handler http.Handler
	if useTLS {
		h2Handler = s.Handler()
	} else {
		h2Handler = h2c.NewHandler(s.Handler(), &http2.Server{})
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           h2Handler,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	errChan := make(chan error, 1)

	if useTLS {
		log.Printf("🔒 HTTPS enabled (HTTP/2)")
		go func() {
			if err := server.ListenAndServeTLS(cfg.CertFile, cfg.KeyFile); err != nil && err != http.ErrServerClosed {
				errChan <- fmt.Errorf("HTTPS server error: %w", err)
			}
		}()
	} else {
		log.Printf("🌐 HTTP mode (HTTP/2 enabled)")
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errChan <- fmt.Errorf("HTTP server error: %w", err)
			}
		}()
	}

	log.Printf("🚀 %s %s starting on :%s", constants.AppName, constants.Version, cfg.Port)

	var runErr error
	select {
	case <-sigChan:
		log.Println("🛑 Shutting down server...")
	case runErr = <-errChan:
	}

	ctx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	s.Cleanup()
	log.Println("✅ Server stopped")
	return runErr
}

// Cleanup tears down every live session and closes the backends.
func (s *Server) Cleanup() {
	s.mu.RLock()
	ids := make([]string, 0, len(s.bridges))
	for id := range s.bridges {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	for _, id := range ids {
		s.Store.Delete(id)
		s.teardown(id)
	}
	s.Processor.Wait()
	s.Logins.Stop()
	s.Store.Close()
	s.Queue.Close()
	s.AuditLogger.Close()
}
