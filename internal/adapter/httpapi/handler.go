// Package httpapi exposes the pipeline as a Pub/Sub push endpoint.
package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/simaogato/irrflow/internal/usecase/pipeline"
)

// Runner executes one pipeline run
type Runner interface {
	Run(ctx context.Context) (*pipeline.RunResult, error)
}

// PushEnvelope is the body Pub/Sub sends to push subscriptions
// The message content does not parameterize the run; it is only logged
type PushEnvelope struct {
	Message struct {
		Data        []byte            `json:"data"`
		Attributes  map[string]string `json:"attributes"`
		MessageID   string            `json:"messageId"`
		PublishTime string            `json:"publishTime"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

type errorResponse struct {
	Type string `json:"type"`
	Msg  string `json:"message"`
}

// Handler routes trigger and health requests
type Handler struct {
	runner Runner
	token  string
	onRun  func(error)

	// running serializes runs; a trigger arriving mid-run is rejected
	running sync.Mutex
}

// Option configures a Handler
type Option func(*Handler)

// WithToken requires token on trigger requests, as ?token= or an Authorization header
func WithToken(token string) Option {
	return func(h *Handler) { h.token = token }
}

// WithRunObserver calls f with the outcome of every run
func WithRunObserver(f func(error)) Option {
	return func(h *Handler) { h.onRun = f }
}

// NewHandler builds the router; every route is traced with otelhttp
func NewHandler(runner Runner, opts ...Option) http.Handler {
	h := &Handler{runner: runner}
	for _, opt := range opts {
		opt(h)
	}

	router := mux.NewRouter()
	handle := func(path string, f http.HandlerFunc, methods ...string) {
		// One instrumented handler per route so spans are named by route
		router.Handle(path, otelhttp.NewHandler(f, path)).Methods(methods...)
	}
	handle("/healthz", h.health, http.MethodGet)
	handle("/v1/pubsub", h.requireToken(h.trigger), http.MethodPost)

	return router
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	setResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) trigger(w http.ResponseWriter, r *http.Request) {
	var envelope PushEnvelope
	if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
		setErrorResponse(w, "bad_request", http.StatusBadRequest, fmt.Errorf("invalid push envelope: %w", err))
		return
	}

	logger := log.WithFields(log.Fields{
		"component":    "http",
		"message_id":   envelope.Message.MessageID,
		"subscription": envelope.Subscription,
	})

	if !h.running.TryLock() {
		logger.Warn("pipeline run already in progress")
		setErrorResponse(w, "conflict", http.StatusConflict, errors.New("pipeline run already in progress"))
		return
	}
	defer h.running.Unlock()

	logger.Info("pipeline triggered")
	result, err := h.runner.Run(r.Context())
	if h.onRun != nil {
		h.onRun(err)
	}
	if err != nil {
		setErrorResponse(w, "pipeline_failed", http.StatusInternalServerError, err)
		return
	}

	setResponse(w, http.StatusOK, result)
}

func (h *Handler) requireToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.token == "" {
			next(w, r)
			return
		}

		provided := r.URL.Query().Get("token")
		if provided == "" {
			provided = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		}
		if subtle.ConstantTimeCompare([]byte(provided), []byte(h.token)) != 1 {
			setErrorResponse(w, "unauthorized", http.StatusUnauthorized, errors.New("invalid token"))
			return
		}
		next(w, r)
	}
}

func setResponse(w http.ResponseWriter, statusCode int, response interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.WithError(err).Error("failed to encode response")
	}
}

func setErrorResponse(w http.ResponseWriter, errType string, statusCode int, err error) {
	setResponse(w, statusCode, errorResponse{Type: errType, Msg: err.Error()})
}
