// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Solver Space Contributors

// Package web exposes the authentication state machine over a JSON API.
// Each browser gets one server-side session, keyed by an opaque cookie.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/solverspace/solverspace/internal/auth"
	"github.com/solverspace/solverspace/internal/observability"
	"github.com/solverspace/solverspace/pkg/errutil"
)

// SessionCookie is the name of the session-key cookie.
const SessionCookie = "ss_session"

const shutdownTimeout = 5 * time.Second

// Server serves the authentication JSON API.
type Server struct {
	addr    string
	manager *auth.Manager
	logger  *slog.Logger
	metrics *observability.Metrics

	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// NewServer creates a Server with a no-op logger.
func NewServer(addr string, manager *auth.Manager) (*Server, error) {
	return NewServerWithLogger(addr, manager, slog.New(slog.DiscardHandler))
}

// NewServerWithLogger creates a Server with the provided logger.
func NewServerWithLogger(addr string, manager *auth.Manager, logger *slog.Logger) (*Server, error) {
	if addr == "" {
		return nil, oops.Errorf("listen address is required")
	}
	if manager == nil {
		return nil, oops.Errorf("session manager is required")
	}
	if logger == nil {
		return nil, oops.Errorf("logger is required")
	}
	return &Server{addr: addr, manager: manager, logger: logger}, nil
}

// SetMetrics attaches gauges updated as sessions come and go. Optional.
func (s *Server) SetMetrics(m *observability.Metrics) {
	s.metrics = m
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("POST /api/restore", s.handleRestore)
	mux.HandleFunc("POST /api/field", s.handleField)
	mux.HandleFunc("POST /api/login", s.handleLogin)
	mux.HandleFunc("POST /api/signup", s.handleSignup)
	mux.HandleFunc("POST /api/verify/begin", s.handleVerifyBegin)
	mux.HandleFunc("POST /api/verify", s.handleVerify)
	mux.HandleFunc("POST /api/resend", s.handleResend)
	mux.HandleFunc("POST /api/logout", s.handleLogout)
	return mux
}

// Start begins serving in a background goroutine. The returned channel
// receives the terminal serve error, if any.
func (s *Server) Start() (<-chan error, error) {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return nil, oops.Code("WEB_LISTEN_FAILED").With("addr", s.addr).Wrap(err)
	}
	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		serveErr := s.httpServer.Serve(listener)
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errChan <- serveErr
		}
		close(errChan)
	}()

	s.running.Store(true)
	s.logger.Info("web server listening", "addr", listener.Addr().String())
	return errChan, nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.Swap(false) {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return oops.Code("WEB_SHUTDOWN_FAILED").Wrap(err)
	}
	return nil
}

// Addr returns the bound listen address, useful when the configured
// port was 0.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// session resolves the caller's session from the cookie, creating a new
// session (and setting the cookie) when none exists.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*auth.Session, error) {
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		if id, parseErr := ulid.Parse(cookie.Value); parseErr == nil {
			if session := s.manager.Get(id); session != nil {
				return session, nil
			}
		}
	}

	id, session, err := s.manager.Create()
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.ActiveSessions.Set(float64(s.manager.Len()))
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id.String(),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return session, nil
}

// stateResponse is what every endpoint returns: the navigation intent
// of the operation (if any) plus the full renderable state.
type stateResponse struct {
	Redirect string `json:"redirect,omitempty"`
	auth.Snapshot
}

func (s *Server) respond(w http.ResponseWriter, session *auth.Session, redirect string) {
	w.Header().Set("Content-Type", "application/json")
	resp := stateResponse{Redirect: redirect, Snapshot: session.State()}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		errutil.LogWarn(s.logger, "encoding response failed", err)
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, into any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(into); err != nil {
		http.Error(w, `{"error":"malformed request body"}`, http.StatusBadRequest)
		return false
	}
	return true
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	session, err := s.session(w, r)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.respond(w, session, "")
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	session, err := s.session(w, r)
	if err != nil {
		s.fail(w, err)
		return
	}
	session.Restore(r.Context())
	s.respond(w, session, "")
}

func (s *Server) handleField(w http.ResponseWriter, r *http.Request) {
	session, err := s.session(w, r)
	if err != nil {
		s.fail(w, err)
		return
	}

	var req struct {
		Field string `json:"field"`
		Value string `json:"value"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	session.SetField(auth.Field(req.Field), req.Value)
	s.respond(w, session, "")
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	session, err := s.session(w, r)
	if err != nil {
		s.fail(w, err)
		return
	}

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	redirect := session.Login(r.Context(), req.Email, req.Password)
	s.respond(w, session, redirect)
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	session, err := s.session(w, r)
	if err != nil {
		s.fail(w, err)
		return
	}

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Username string `json:"username"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	redirect := session.Signup(r.Context(), req.Email, req.Password, req.Username)
	s.respond(w, session, redirect)
}

func (s *Server) handleVerifyBegin(w http.ResponseWriter, r *http.Request) {
	session, err := s.session(w, r)
	if err != nil {
		s.fail(w, err)
		return
	}

	var req struct {
		Email    string `json:"email"`
		Username string `json:"username"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	session.BeginVerification(req.Email, req.Username)
	s.respond(w, session, "")
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	session, err := s.session(w, r)
	if err != nil {
		s.fail(w, err)
		return
	}

	var req struct {
		Code string `json:"code"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	redirect := session.VerifyOtp(r.Context(), req.Code)
	s.respond(w, session, redirect)
}

func (s *Server) handleResend(w http.ResponseWriter, r *http.Request) {
	session, err := s.session(w, r)
	if err != nil {
		s.fail(w, err)
		return
	}

	session.ResendOtp(r.Context())
	s.respond(w, session, "")
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	session, err := s.session(w, r)
	if err != nil {
		s.fail(w, err)
		return
	}

	redirect := session.Logout(r.Context())
	s.respond(w, session, redirect)
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	errutil.LogError(s.logger, "session resolution failed", err)
	http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
}
