// Package api exposes the dispatcher over HTTP: send, manual sweep, health,
// readiness and Prometheus metrics.
package api

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"sort"
	"time"

	"notification-dispatch/internal/common/errors"
	"notification-dispatch/internal/common/logger"
	"notification-dispatch/internal/dispatch"
	"notification-dispatch/internal/sweep"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxBodyBytes = 1 << 20

type Sender interface {
	Send(ctx context.Context, req dispatch.SendRequest) (string, error)
}

type Sweeper interface {
	ProcessPendingNotifications(ctx context.Context) (sweep.SweepResult, error)
}

// Check is a named readiness check, e.g. a database ping.
type Check func(ctx context.Context) error

type Options struct {
	Sender  Sender
	Sweeper Sweeper // optional; nil disables POST /v1/sweeps
	Checks  map[string]Check
	Logger  logger.Logger
}

type Server struct {
	sender  Sender
	sweeper Sweeper
	checks  map[string]Check
	logger  logger.Logger
}

func NewServer(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Server{
		sender:  opts.Sender,
		sweeper: opts.Sweeper,
		checks:  opts.Checks,
		logger:  logger.Component(log, "api"),
	}
}

// Routes returns the HTTP handler for every endpoint.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/notifications", s.handleSend)
	if s.sweeper != nil {
		mux.HandleFunc("POST /v1/sweeps", s.handleSweep)
	}
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

type sendResponse struct {
	NotificationID string `json:"notificationId"`
}

type errorBody struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, errorBody{
				Code:    string(errors.ErrCodeInvalidArgument),
				Message: "request body too large",
			})
			return
		}
		writeError(w, http.StatusBadRequest, errorBody{
			Code:    string(errors.ErrCodeInvalidArgument),
			Message: "could not read request body",
		})
		return
	}

	if result := dispatch.SendRequestSchema.ValidateBytes(body); !result.Valid {
		writeError(w, http.StatusBadRequest, errorBody{
			Code:    string(errors.ErrCodeInvalidArgument),
			Message: "request validation failed",
			Details: result.GetErrorMessages(),
		})
		return
	}

	var req dispatch.SendRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, errorBody{
			Code:    string(errors.ErrCodeInvalidArgument),
			Message: err.Error(),
		})
		return
	}

	id, err := s.sender.Send(r.Context(), req)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("send failed", map[string]interface{}{"error": err, "userId": req.UserID})
		}
		writeError(w, status, errorBodyFor(err))
		return
	}

	writeJSON(w, http.StatusCreated, sendResponse{NotificationID: id})
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	result, err := s.sweeper.ProcessPendingNotifications(r.Context())
	if err != nil {
		s.logger.Error("manual sweep failed", map[string]interface{}{"error": err})
		writeError(w, http.StatusInternalServerError, errorBodyFor(err))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var failing []string
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			s.logger.Warn("readiness check failed", map[string]interface{}{"check": name, "error": err})
			failing = append(failing, name)
		}
	}
	sort.Strings(failing)

	if len(failing) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":  "not ready",
			"failing": failing,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func statusFor(err error) int {
	switch errors.CodeOf(err) {
	case errors.ErrCodeInvalidArgument:
		return http.StatusBadRequest
	case errors.ErrCodeUserNotFound:
		return http.StatusNotFound
	case errors.ErrCodeDuplicateNotification:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func errorBodyFor(err error) errorBody {
	code := errors.CodeOf(err)
	if code == "" {
		return errorBody{Code: string(errors.ErrCodeInternal), Message: "internal error"}
	}
	return errorBody{Code: string(code), Message: err.Error()}
}

func writeError(w http.ResponseWriter, status int, body errorBody) {
	writeJSON(w, status, map[string]errorBody{"error": body})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
