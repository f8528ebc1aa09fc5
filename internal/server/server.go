// Package server exposes the healing substrate over HTTP: credential issue and
// refresh, failed-request intake, and queue status.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vietddude/healer/internal/core/domain"
	"github.com/vietddude/healer/internal/credential"
	"github.com/vietddude/healer/internal/queue"
)

// Server provides the HTTP surface around the pool and queue.
type Server struct {
	pool   *credential.Pool
	queue  *queue.Queue
	server *http.Server
	log    *slog.Logger
}

// New creates the HTTP server on the given port.
func New(pool *credential.Pool, q *queue.Queue, port int) *Server {
	mux := http.NewServeMux()
	s := &Server{
		pool:  pool,
		queue: q,
		log:   slog.Default(),
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
	}

	mux.HandleFunc("POST /v1/keys/issue", s.handleIssueKey)
	mux.HandleFunc("POST /v1/keys/refresh", s.handleRefreshToken)
	mux.HandleFunc("POST /v1/usage", s.handleUsage)
	mux.HandleFunc("POST /v1/queue/failed", s.handleQueueFailed)
	mux.HandleFunc("GET /v1/queue/status", s.handleQueueStatus)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type issueKeyRequest struct {
	UserID   string `json:"user_id"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

type issueKeyResponse struct {
	Token          string `json:"token"`
	CredentialID   string `json:"credential_id"`
	Provider       string `json:"provider"`
	Model          string `json:"model"`
	Status         string `json:"status"`
	DailyCallLimit int    `json:"daily_call_limit,omitempty"`
	UsedCalls      int    `json:"used_calls"`
}

func (s *Server) handleIssueKey(w http.ResponseWriter, r *http.Request) {
	var req issueKeyRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Provider == "" {
		writeError(w, http.StatusBadRequest, "provider is required")
		return
	}

	cred := s.pool.SelectNext(req.Provider, req.Model)
	if cred == nil {
		writeError(w, http.StatusServiceUnavailable,
			"No credentials available for requested provider/model.")
		return
	}

	issuedFor := req.UserID
	if issuedFor == "" {
		issuedFor = "anonymous"
	}
	s.log.Info("credential issued",
		"credential_id", cred.ID, "provider", cred.Provider, "model", cred.Model,
		"issued_for", issuedFor, "via", "issue")

	writeJSON(w, http.StatusOK, issueKeyResponse{
		Token:          cred.APIKey,
		CredentialID:   cred.ID,
		Provider:       cred.Provider,
		Model:          cred.Model,
		Status:         string(cred.Status),
		DailyCallLimit: cred.CallLimit(),
		UsedCalls:      cred.UsedCalls,
	})
}

type refreshTokenRequest struct {
	PreviousToken string `json:"previous_token"`
	FailureStatus int    `json:"failure_status"`
	Provider      string `json:"provider"`
	Model         string `json:"model"`
}

type refreshTokenResponse struct {
	Token        string `json:"token"`
	CredentialID string `json:"credential_id"`
	Action       string `json:"action"`
	Message      string `json:"message"`
}

func (s *Server) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	var req refreshTokenRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Provider == "" {
		writeError(w, http.StatusBadRequest, "provider is required")
		return
	}

	action, message := s.retirePrevious(req.PreviousToken, req.FailureStatus)

	cred := s.pool.SelectNext(req.Provider, req.Model)
	if cred == nil {
		writeError(w, http.StatusServiceUnavailable,
			"No healthy credentials available for rotation.")
		return
	}

	s.log.Info("credential issued",
		"credential_id", cred.ID, "provider", cred.Provider, "model", cred.Model,
		"via", "refresh", "action", action)

	writeJSON(w, http.StatusOK, refreshTokenResponse{
		Token:        cred.APIKey,
		CredentialID: cred.ID,
		Action:       action,
		Message:      message,
	})
}

// retirePrevious marks the reported credential based on the upstream failure
// status and returns the action the client should take.
func (s *Server) retirePrevious(previousToken string, failureStatus int) (action, message string) {
	action = "refresh_token"
	message = "Issued a standard replacement token."
	if previousToken == "" {
		return action, message
	}

	switch failureStatus {
	case http.StatusUnauthorized:
		reason := "Credential rejected due to authentication failure."
		s.pool.MarkStatusByToken(previousToken, domain.CredentialDisabled, reason, 0)
		return "rotate_token", reason

	case http.StatusForbidden:
		reason := "Provider blocked previous credential."
		s.pool.MarkStatusByToken(previousToken, domain.CredentialDisabled, reason, 0)
		return "rotate_token", reason

	case http.StatusTooManyRequests:
		reason := "Rate limit exceeded for credential."
		s.pool.MarkStatusByToken(previousToken, domain.CredentialExhausted, reason, refreshCooldown)
		return action, "Previous credential temporarily exhausted. Selecting alternate token."

	case http.StatusGone:
		reason := "Region deprecated. Prefer alternative credential."
		s.pool.MarkStatusByToken(previousToken, domain.CredentialDisabled, reason, 0)
		return "rotate_token", reason
	}

	return action, message
}

type usageRequest struct {
	Token      string `json:"token"`
	Calls      int    `json:"calls"`
	TokensUsed int    `json:"tokens_used"`
}

type usageResponse struct {
	CredentialID      string  `json:"credential_id"`
	Status            string  `json:"status"`
	Action            string  `json:"action"`
	AvgCallsPerMin    float64 `json:"avg_calls_per_min"`
	RetryAfterSeconds int     `json:"retry_after_seconds,omitempty"`
}

// handleUsage records usage reported by the client SDK against the credential
// behind the presented token and answers with the predictive quota action.
func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	var req usageRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cred := s.pool.LookupByToken(req.Token)
	if cred == nil {
		writeError(w, http.StatusUnauthorized, "Invalid token")
		return
	}

	calls := req.Calls
	if calls <= 0 {
		calls = 1
	}
	cred = s.pool.RecordUsage(cred.ID, calls, req.TokensUsed)
	avg := s.pool.ObserveCall(cred.ID)
	action := credential.PredictAction(cred, avg)

	if action != credential.ActionAllow {
		s.log.Info("quota signal",
			"credential_id", cred.ID, "action", action, "avg_calls_per_min", avg)
	}

	resp := usageResponse{
		CredentialID:   cred.ID,
		Status:         string(cred.Status),
		Action:         string(action),
		AvgCallsPerMin: avg,
	}
	if cred.Status == domain.CredentialExhausted {
		resp.RetryAfterSeconds = s.pool.SecondsUntilReset(cred.ID)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleQueueFailed(w http.ResponseWriter, r *http.Request) {
	var payload domain.ReplayPayload
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := s.queue.Enqueue(payload)
	if err != nil {
		if errors.Is(err, queue.ErrInvalidPayload) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "queued",
		"id":     rec.ID,
	})
}

func (s *Server) handleQueueStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.queue.Snapshot())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.queue.Snapshot()
	active := 0
	for _, c := range s.pool.List() {
		if c.Status == domain.CredentialActive {
			active++
		}
	}

	status := "healthy"
	if active == 0 {
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":             status,
		"active_credentials": active,
		"queue":              snap,
	})
}

// refreshCooldown is how long a rate-limited credential rests before auto-reset.
const refreshCooldown = 60 * time.Second

func decodeBody(r *http.Request, dst any) error {
	defer func() {
		_ = r.Body.Close()
	}()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}
