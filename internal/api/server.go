// Package api wires the HTTP surface §6.1 describes: bootstrap,
// datapath endpoints, and health/readiness, over gorilla/mux — the
// router library Chartly2.0's own go.mod already carries.
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/Ap3pp3rs94/kvrelay/internal/apperrors"
	"github.com/Ap3pp3rs94/kvrelay/internal/auth"
	"github.com/Ap3pp3rs94/kvrelay/internal/engine"
	"github.com/Ap3pp3rs94/kvrelay/internal/telemetry"
)

// Config is the static, operator-supplied configuration a Server is
// built from (§6.3's CLI surface plus the optional config-file layer).
type Config struct {
	DatabaseID        string
	AccessToken       string
	EphemeralTokenTTL time.Duration
}

// Server holds the dependencies every handler needs: the engine handle,
// the live ephemeral-token set, and static configuration — all shared,
// task-safe, across concurrently-handled requests per §5.
type Server struct {
	cfg    Config
	store  engine.Store
	tokens *auth.EphemeralTokens
	log    *telemetry.Logger
	ready  func() bool
}

// NewServer constructs a Server. ready reports whether the engine has
// finished opening, backing /readyz.
func NewServer(cfg Config, store engine.Store, log *telemetry.Logger, ready func() bool) *Server {
	return &Server{
		cfg:    cfg,
		store:  store,
		tokens: auth.NewEphemeralTokens(),
		log:    log,
		ready:  ready,
	}
}

// Router builds the full HTTP handler tree.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReadyz).Methods(http.MethodGet)

	r.HandleFunc("/", s.requireAccessToken(s.handleBootstrap)).Methods(http.MethodPost)

	r.HandleFunc("/snapshot_read", s.requireEphemeralToken(s.handleSnapshotRead)).Methods(http.MethodPost)
	r.HandleFunc("/kv/snapshot_read", s.requireEphemeralToken(s.handleSnapshotRead)).Methods(http.MethodPost)

	r.HandleFunc("/atomic_write", s.requireEphemeralToken(s.handleAtomicWrite)).Methods(http.MethodPost)
	r.HandleFunc("/kv/atomic_write", s.requireEphemeralToken(s.handleAtomicWrite)).Methods(http.MethodPost)

	r.HandleFunc("/kv/watch", s.requireEphemeralToken(s.handleWatch)).Methods(http.MethodPost)

	// Any recognized path hit with the wrong method gets 405+Allow from
	// mux's MethodNotAllowedHandler; everything else is a plain 404.
	r.MethodNotAllowedHandler = http.HandlerFunc(s.handleMethodNotAllowed)
	r.NotFoundHandler = http.HandlerFunc(s.handleNotFound)

	return withAccessLog(s.log, r)
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", http.MethodPost)
	writeError(w, apperrors.CodeMethodNotAllowed, "method not allowed")
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, apperrors.CodeNotFound, "not found")
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil && !s.ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// bearerToken extracts the token from an "Authorization: Bearer <token>"
// header, or "" if absent/malformed.
func bearerToken(r *http.Request) string {
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if len(authz) <= len(prefix) || !strings.EqualFold(authz[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(authz[len(prefix):])
}

func (s *Server) requireAccessToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" || !auth.ConstantTimeEqual(token, s.cfg.AccessToken) {
			writeError(w, apperrors.CodeAuthUnauthorized, "missing or invalid access token")
			return
		}
		next(w, r)
	}
}

func (s *Server) requireEphemeralToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" || !s.tokens.Valid(token) {
			writeError(w, apperrors.CodeAuthUnauthorized, "missing or expired ephemeral token")
			return
		}
		next(w, r)
	}
}

// newRequestID mints a random UUID correlation id; withRequestID stamps
// it onto the request context, the same enrichment hook Chartly2.0's
// telemetry package expects.
func newRequestID() string {
	return uuid.NewString()
}

func withRequestID(ctx context.Context) (context.Context, string) {
	id := newRequestID()
	return telemetry.WithRequestID(ctx, id), id
}
