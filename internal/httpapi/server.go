// Package httpapi serves the local administrative façade: whitelist checks,
// contact CRUD, and audit reads. Localhost by default.
package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/waspsec/wasp/internal/config"
	"github.com/waspsec/wasp/internal/ratelimit"
	"github.com/waspsec/wasp/internal/store"
	"github.com/waspsec/wasp/internal/trust"
)

// directClient is the sentinel client IP for connections carrying no proxy
// headers. The server binds loopback by default, so these are local.
const directClient = "direct"

// Server is the admin HTTP façade.
type Server struct {
	cfg     *config.Config
	store   *store.Store
	limiter *ratelimit.Limiter
	mux     *http.ServeMux
}

// NewServer builds the façade around an open store.
func NewServer(cfg *config.Config, st *store.Store) *Server {
	s := &Server{
		cfg:     cfg,
		store:   st,
		limiter: ratelimit.NewLimiter(),
		mux:     http.NewServeMux(),
	}
	s.mux.HandleFunc("/check", s.handleCheck)
	s.mux.HandleFunc("/contacts", s.handleContacts)
	s.mux.HandleFunc("/contacts/", s.handleContactDelete)
	s.mux.HandleFunc("/audit", s.handleAudit)
	s.mux.HandleFunc("/health", s.handleHealth)
	return s
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler { return s.mux }

// Serve runs the façade until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Admin.Host, s.cfg.Admin.Port)
	srv := &http.Server{Addr: addr, Handler: s.mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	go s.limiter.RunSweeper(ctx, time.Duration(s.cfg.RateLimit.WindowMs)*time.Millisecond)

	slog.Info("admin api listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// clientIP extracts the caller's address: first comma-separated entry of
// X-Forwarded-For, then X-Real-IP, then the direct-connect sentinel.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if rip := strings.TrimSpace(r.Header.Get("X-Real-IP")); rip != "" {
		return rip
	}
	return directClient
}

// authorize gates the protected endpoints. With a configured token, the
// Authorization header must carry it ("Bearer <token>" or bare). Without
// one, only loopback clients are accepted. Error bodies never echo the
// token.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request) bool {
	token := s.cfg.Admin.APIToken
	if token != "" {
		supplied := strings.TrimSpace(r.Header.Get("Authorization"))
		supplied = strings.TrimSpace(strings.TrimPrefix(supplied, "Bearer "))
		if subtle.ConstantTimeCompare([]byte(supplied), []byte(token)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return false
		}
		return true
	}
	switch clientIP(r) {
	case "127.0.0.1", "::1", directClient:
		return true
	}
	writeError(w, http.StatusUnauthorized, "unauthorized: admin endpoints require loopback or an API token")
	return false
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	verdict := s.limiter.Check(clientIP(r), ratelimit.Options{
		Window:      time.Duration(s.cfg.RateLimit.WindowMs) * time.Millisecond,
		MaxRequests: s.cfg.RateLimit.MaxRequests,
	})
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(s.cfg.RateLimit.MaxRequests))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(verdict.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(verdict.ResetMs, 10))
	if !verdict.Allowed {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	var body struct {
		Identifier string `json:"identifier"`
		Platform   string `json:"platform"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Identifier == "" {
		writeError(w, http.StatusBadRequest, "identifier required")
		return
	}
	platform, err := trust.ParsePlatform(body.Platform)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := s.store.CheckContact(body.Identifier, platform)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "storage failure")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleContacts(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r) {
		return
	}
	switch r.Method {
	case http.MethodGet:
		s.listContacts(w, r)
	case http.MethodPost:
		s.upsertContact(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) listContacts(w http.ResponseWriter, r *http.Request) {
	var platform trust.Platform
	if p := r.URL.Query().Get("platform"); p != "" {
		parsed, err := trust.ParsePlatform(p)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		platform = parsed
	}
	var level trust.Level
	if t := r.URL.Query().Get("trust"); t != "" {
		parsed, err := trust.ParseLevel(t)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		level = parsed
	}
	contacts, err := s.store.ListContacts(platform, level)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "storage failure")
		return
	}
	if contacts == nil {
		contacts = []store.Contact{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"contacts": contacts})
}

func (s *Server) upsertContact(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Identifier string `json:"identifier"`
		Platform   string `json:"platform"`
		Trust      string `json:"trust"`
		Name       string `json:"name"`
		Notes      string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Identifier == "" {
		writeError(w, http.StatusBadRequest, "identifier required")
		return
	}
	platform, err := trust.ParsePlatform(body.Platform)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.Trust == "" {
		body.Trust = string(trust.Trusted)
	}
	level, err := trust.ParseLevel(body.Trust)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.UpsertContact(body.Identifier, platform, level, body.Name, body.Notes); err != nil {
		writeError(w, http.StatusInternalServerError, "storage failure")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleContactDelete(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r) {
		return
	}
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	identifier := strings.TrimPrefix(r.URL.Path, "/contacts/")
	if identifier == "" {
		writeError(w, http.StatusBadRequest, "identifier required")
		return
	}
	platform, err := trust.ParsePlatform(r.URL.Query().Get("platform"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	removed, err := s.store.RemoveContact(identifier, platform)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "storage failure")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": removed})
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r) {
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	q := store.AuditQuery{Limit: -1}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 || n > store.MaxAuditLimit {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("limit must be an integer within 0-%d", store.MaxAuditLimit))
			return
		}
		q.Limit = n
	}
	if d := r.URL.Query().Get("decision"); d != "" {
		switch d {
		case trust.DecisionAllow, trust.DecisionDeny, trust.DecisionLimited:
			q.Decision = d
		default:
			writeError(w, http.StatusBadRequest, "decision must be allow, deny or limited")
			return
		}
	}
	entries, err := s.store.QueryAudit(q)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "storage failure")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "degraded"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
