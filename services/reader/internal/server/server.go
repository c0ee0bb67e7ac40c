package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"readlater/internal/ratelimit"
	"readlater/internal/usertoken"
	"readlater/internal/util"
	"readlater/pkg/domain"
	"readlater/services/reader/internal/app"
	"readlater/services/reader/internal/identity"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App *app.App
	// TokenVerifier checks access token signatures locally via JWKS.
	TokenVerifier  *usertoken.Verifier
	TrustedProxies *util.TrustedProxies

	SignupLimiter  *ratelimit.FixedWindowLimiter
	LoginLimiter   *ratelimit.FixedWindowLimiter
	RefreshLimiter *ratelimit.FixedWindowLimiter
}

// Server exposes the reading-list HTTP endpoints.
type Server struct {
	app            *app.App
	tokenVerifier  *usertoken.Verifier
	trustedProxies *util.TrustedProxies

	signupLimiter  *ratelimit.FixedWindowLimiter
	loginLimiter   *ratelimit.FixedWindowLimiter
	refreshLimiter *ratelimit.FixedWindowLimiter

	mux *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	s := &Server{
		app:            cfg.App,
		tokenVerifier:  cfg.TokenVerifier,
		trustedProxies: cfg.TrustedProxies,
		signupLimiter:  cfg.SignupLimiter,
		loginLimiter:   cfg.LoginLimiter,
		refreshLimiter: cfg.RefreshLimiter,
		mux:            http.NewServeMux(),
	}
	s.routes()
	return s
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithSecurityHeaders(util.WithCORS(s.mux))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// auth proxy
	s.mux.HandleFunc("/api/auth/signup", s.handleSignup)
	s.mux.HandleFunc("/api/auth/login", s.handleLogin)
	s.mux.HandleFunc("/api/auth/refresh", s.handleRefresh)
	s.mux.HandleFunc("/api/auth/logout", s.handleLogout)

	// reading list
	s.mux.Handle("/read", s.authenticated(s.handleRead))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type authHandler func(w http.ResponseWriter, r *http.Request, token, userID string)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		userID, err := s.tokenVerifier.VerifySubject(token)
		if err != nil {
			slog.Warn("token rejected", "path", r.URL.Path, "err", err)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, token, userID)
	})
}

// auth proxy handlers
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.signupLimiter, "too many signup attempts") {
		return
	}
	var req authRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, accessToken, refreshToken, err := s.app.Identity().SignUp(req.Email, req.Password)
	if err != nil {
		writeIdentityError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, authResponse{
		Token:        accessToken,
		RefreshToken: refreshToken,
		User:         user,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.loginLimiter, "too many login attempts") {
		return
	}
	var req authRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, accessToken, refreshToken, ok, err := s.app.Identity().VerifyLogin(req.Email, req.Password)
	if err != nil {
		writeIdentityError(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusUnauthorized, "Incorrect email address or password")
		return
	}
	writeJSON(w, http.StatusOK, authResponse{
		Token:        accessToken,
		RefreshToken: refreshToken,
		User:         user,
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.refreshLimiter, "too many refresh attempts") {
		return
	}
	var req refreshRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, accessToken, refreshToken, err := s.app.Identity().Refresh(req.RefreshToken)
	if err != nil {
		writeIdentityError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{
		Token:        accessToken,
		RefreshToken: refreshToken,
		User:         user,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req refreshRequest
	if r.Body != nil {
		_ = json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req)
	}
	if err := s.app.Identity().Logout(token, req.RefreshToken); err != nil {
		writeIdentityError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// reading-list handlers
func (s *Server) handleRead(w http.ResponseWriter, r *http.Request, token, userID string) {
	switch r.Method {
	case http.MethodGet:
		s.handleReadList(w, r, token, userID)
	case http.MethodPost:
		s.handleReadAction(w, r, userID)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleReadList(w http.ResponseWriter, r *http.Request, token, userID string) {
	user, items, err := s.app.Overview(r.Context(), token, userID)
	if err != nil {
		var apiErr *identity.APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		slog.Error("load content failed", "err", err, "user_id", userID)
		writeError(w, http.StatusInternalServerError, "Failed to load content.")
		return
	}
	if items == nil {
		items = []domain.Content{}
	}
	writeJSON(w, http.StatusOK, readPageResponse{
		Email:       user.Email,
		ContentList: items,
	})
}

func (s *Server) handleReadAction(w http.ResponseWriter, r *http.Request, userID string) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}
	action := r.PostFormValue("_action")
	switch action {
	case "create":
		content, err := s.app.CreateContent(userID, r.PostFormValue("url"))
		if err != nil {
			writeContentError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, content)
	case "update":
		checked := r.PostFormValue("checked") == "on"
		content, err := s.app.UpdateContent(userID, r.PostFormValue("id"), checked)
		if err != nil {
			writeContentError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, content)
	default:
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("Action: %s, was not provided or is not recognised.", action))
	}
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, msg string) bool {
	if limiter == nil {
		return true
	}
	key := r.URL.Path + "|" + util.ClientIP(r, s.trustedProxies)
	if limiter.Allow(key) {
		return true
	}
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

type authRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token        string      `json:"token"`
	RefreshToken string      `json:"refreshToken"`
	User         domain.User `json:"user"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type readPageResponse struct {
	Email       string           `json:"email"`
	ContentList []domain.Content `json:"contentList"`
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

func writeIdentityError(w http.ResponseWriter, err error) {
	var apiErr *identity.APIError
	if errors.As(err, &apiErr) {
		writeError(w, apiErr.Status, apiErr.Message)
		return
	}
	writeError(w, http.StatusBadGateway, "identity service unavailable")
}

func writeContentError(w http.ResponseWriter, err error) {
	var fieldErr *app.FieldError
	if errors.As(err, &fieldErr) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"errors": map[string]string{fieldErr.Field: fieldErr.Message},
		})
		return
	}
	if errors.Is(err, app.ErrContentNotFound) {
		writeError(w, http.StatusNotFound, "content not found")
		return
	}
	slog.Error("content mutation failed", "err", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
