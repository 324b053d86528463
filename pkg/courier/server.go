package courier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/monoco-io/fabric/pkg/log"
	"github.com/monoco-io/fabric/pkg/mailbox"
	"github.com/monoco-io/fabric/pkg/metrics"
	"github.com/monoco-io/fabric/pkg/types"
)

const (
	// DefaultAddr is the courier bind address
	DefaultAddr = "localhost:8644"

	// APIPrefix roots the courier REST surface
	APIPrefix = "/api/v1/courier"

	// DefaultClaimTimeout leases a message when the claimer does not
	// specify one
	DefaultClaimTimeout = 300 * time.Second
)

// InboundHandler receives webhook messages after signature
// verification
type InboundHandler func(project *Project, msg *types.Message) error

// Server is the courier HTTP API over the lock manager, state
// manager, registry, and websocket hub
type Server struct {
	addr         string
	state        *MessageStateManager
	store        *mailbox.Store
	registry     *Registry
	hub          *Hub
	inbound      InboundHandler
	claimTimeout time.Duration
	logger       zerolog.Logger

	httpServer *http.Server
}

// NewServer wires the courier API. hub and inbound may be nil; the
// events route and webhook ingestion degrade gracefully.
func NewServer(addr string, state *MessageStateManager, store *mailbox.Store, registry *Registry, hub *Hub, inbound InboundHandler) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	s := &Server{
		addr:         addr,
		state:        state,
		store:        store,
		registry:     registry,
		hub:          hub,
		inbound:      inbound,
		claimTimeout: DefaultClaimTimeout,
		logger:       log.WithComponent("courier"),
	}
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	return s
}

// WithClaimTimeout overrides the default lease granted when a claim
// request does not name one
func (s *Server) WithClaimTimeout(timeout time.Duration) *Server {
	if timeout > 0 {
		s.claimTimeout = timeout
	}
	return s
}

// routes builds the mux router with logging and metrics middleware
func (s *Server) routes() http.Handler {
	r := mux.NewRouter()
	r.Use(s.observe)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix(APIPrefix).Subrouter()
	api.HandleFunc("/messages/{id}", s.handleGetMessage).Methods(http.MethodGet)
	api.HandleFunc("/messages/{id}/claim", s.handleClaim).Methods(http.MethodPost)
	api.HandleFunc("/messages/{id}/complete", s.handleComplete).Methods(http.MethodPost)
	api.HandleFunc("/messages/{id}/fail", s.handleFail).Methods(http.MethodPost)
	api.HandleFunc("/webhook/dingtalk/{slug}", s.handleWebhook).Methods(http.MethodPost)
	api.HandleFunc("/registry/register", s.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/registry/list", s.handleListProjects).Methods(http.MethodPost)
	if s.hub != nil {
		api.HandleFunc("/events", s.hub.ServeWS).Methods(http.MethodGet)
	}
	return r
}

// Start runs the HTTP server until the listener fails or Shutdown is
// called
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.addr).Msg("Courier API listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve courier API: %w", err)
	}
	return nil
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the configured bind address
func (s *Server) Addr() string {
	return s.addr
}

// statusRecorder captures the response code for middleware
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// observe is the request logging + metrics middleware
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timer := metrics.NewTimer()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				path = tpl
			}
		}
		metrics.HTTPRequestsTotal.WithLabelValues(path, strconv.Itoa(rec.status)).Inc()
		timer.ObserveDurationVec(metrics.HTTPRequestDuration, path)

		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", timer.Duration()).
			Msg("Request")
	})
}

// writeJSON renders a JSON response body
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError renders the error envelope
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   code,
		"message": message,
	})
}

// lockError maps typed lock/state errors onto the API's status codes
func lockError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrAlreadyClaimed):
		writeError(w, http.StatusConflict, "already_claimed", err.Error())
	case errors.Is(err, ErrNotClaimed):
		writeError(w, http.StatusConflict, "not_claimed", err.Error())
	case errors.Is(err, ErrClaimedByOther):
		writeError(w, http.StatusForbidden, "claimed_by_other", err.Error())
	case errors.Is(err, mailbox.ErrMessageNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

// handleHealth serves the aggregate health report
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := metrics.GetHealth()
	health.Metrics = map[string]any{
		"active_claims": s.state.Locks().ActiveClaims(),
	}
	status := http.StatusOK
	if health.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

// handleGetMessage reports a message's lifecycle status and lock
func (s *Server) handleGetMessage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if _, _, err := s.store.GetByID(id); err != nil {
		if errors.Is(err, mailbox.ErrMessageNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "message not found: "+id)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}

	body := map[string]any{
		"success":    true,
		"message_id": id,
		"status":     string(types.LockNew),
	}
	if entry := s.state.Locks().GetStatus(id); entry != nil {
		body["status"] = string(entry.Status)
		body["lock"] = entry
	}
	writeJSON(w, http.StatusOK, body)
}

type claimRequest struct {
	AgentID string `json:"agent_id"`
	Timeout int    `json:"timeout,omitempty"` // seconds
}

// handleClaim leases a message to an agent
func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AgentID == "" {
		writeError(w, http.StatusBadRequest, "invalid_body", "agent_id is required")
		return
	}

	if _, _, err := s.store.GetByID(id); err != nil {
		if errors.Is(err, mailbox.ErrMessageNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "message not found: "+id)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}

	timeout := s.claimTimeout
	if req.Timeout > 0 {
		timeout = time.Duration(req.Timeout) * time.Second
	}

	entry, err := s.state.Locks().Claim(id, req.AgentID, timeout)
	if err != nil {
		if errors.Is(err, ErrAlreadyClaimed) {
			writeJSON(w, http.StatusConflict, map[string]any{
				"success":    false,
				"error":      "already_claimed",
				"message":    err.Error(),
				"claimed_by": entry.ClaimedBy,
			})
			return
		}
		lockError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"message_id": id,
		"lock":       entry,
	})
}

type agentRequest struct {
	AgentID string `json:"agent_id"`
}

// handleComplete archives a claimed message
func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req agentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AgentID == "" {
		writeError(w, http.StatusBadRequest, "invalid_body", "agent_id is required")
		return
	}

	path, err := s.state.Complete(id, req.AgentID)
	if err != nil {
		lockError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"message_id":    id,
		"archived_path": path,
	})
}

type failRequest struct {
	AgentID   string `json:"agent_id"`
	Reason    string `json:"reason,omitempty"`
	Retryable *bool  `json:"retryable,omitempty"`
}

// handleFail records a processing failure, possibly promoting to
// deadletter
func (s *Server) handleFail(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req failRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AgentID == "" {
		writeError(w, http.StatusBadRequest, "invalid_body", "agent_id is required")
		return
	}

	retryable := true
	if req.Retryable != nil {
		retryable = *req.Retryable
	}

	entry, deadPath, err := s.state.Fail(id, req.AgentID, req.Reason, retryable)
	if err != nil {
		lockError(w, err)
		return
	}

	body := map[string]any{
		"success":     true,
		"message_id":  id,
		"status":      string(entry.Status),
		"retry_count": entry.RetryCount,
	}
	if deadPath != "" {
		body["deadletter_path"] = deadPath
	}
	writeJSON(w, http.StatusOK, body)
}

// handleWebhook verifies the signature and hands the message to the
// inbound pipeline
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]

	project, err := s.registry.Get(slug)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", "unknown project: "+slug)
		return
	}

	if secret := project.WebhookSecret(); secret != "" {
		tsParam := r.URL.Query().Get("timestamp")
		sign := r.URL.Query().Get("sign")
		ts, parseErr := strconv.ParseInt(tsParam, 10, 64)
		if parseErr != nil || !VerifySignature(secret, sign, ts, time.Now()) {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid webhook signature")
			return
		}
	}

	var msg types.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil || msg.ID == "" {
		writeError(w, http.StatusBadRequest, "invalid_body", "message id is required")
		return
	}
	if msg.Provider == "" {
		msg.Provider = "dingtalk"
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	if s.inbound != nil {
		if err := s.inbound(project, &msg); err != nil {
			s.logger.Error().Err(err).Str("slug", slug).Msg("Inbound handler failed")
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to accept message")
			return
		}
	} else {
		if _, err := s.store.CreateInbound(&msg); err != nil {
			s.logger.Error().Err(err).Str("slug", slug).Msg("Failed to store inbound message")
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to store message")
			return
		}
	}

	metrics.MessagesTotal.WithLabelValues(msg.Provider, "inbound").Inc()
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"message_id": msg.ID,
	})
}

type registerRequest struct {
	Slug   string            `json:"slug"`
	Path   string            `json:"path"`
	Config map[string]string `json:"config,omitempty"`
}

// handleRegister adds a project to the registry
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Slug == "" || req.Path == "" {
		writeError(w, http.StatusBadRequest, "invalid_body", "slug and path are required")
		return
	}

	project, err := s.registry.Register(req.Slug, req.Path, req.Config)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to register project")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"slug":    project.Slug,
		"path":    project.Path,
	})
}

// handleListProjects returns the registered projects
func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"projects": s.registry.List(),
	})
}
