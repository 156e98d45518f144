// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/jeranaias/chatdesk/internal/chat"
	"github.com/jeranaias/chatdesk/internal/export"
	"github.com/jeranaias/chatdesk/internal/generate"
	"github.com/jeranaias/chatdesk/internal/logging"
	"github.com/jeranaias/chatdesk/internal/model"
	"github.com/jeranaias/chatdesk/internal/store"
	"github.com/jeranaias/chatdesk/internal/telemetry"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultAddr is the default listen address.
	DefaultAddr = "127.0.0.1:8080"

	// MaxRequestBodySize bounds JSON request bodies (1MB).
	MaxRequestBodySize = 1 * 1024 * 1024

	backendCheckTimeout = 3 * time.Second

	// eventKeepAlive is the interval of SSE comment pings.
	eventKeepAlive = 15 * time.Second
)

// ============================================================================
// SERVER
// ============================================================================

// Options configures a Server.
type Options struct {
	Addr    string
	Store   *store.Store
	Chat    *chat.Controller
	Metrics *telemetry.Metrics
	Logger  zerolog.Logger

	// RateLimiter is optional. Default: DefaultRateLimiter.
	RateLimiter *RateLimiter

	// Version is reported by /health.
	Version string

	// Backend, when set, is checked by /health.
	Backend generate.Checker
}

// Server exposes the conversation store and streaming controller over HTTP.
type Server struct {
	addr    string
	store   *store.Store
	chat    *chat.Controller
	metrics *telemetry.Metrics
	logger  zerolog.Logger
	limiter *RateLimiter
	version string
	backend generate.Checker

	router  *mux.Router
	handler http.Handler
	server  *http.Server

	// Sends and regenerations outlive their request.
	baseCtx    context.Context
	cancelBase context.CancelFunc
	work       sync.WaitGroup
}

// New creates a Server.
func New(opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = DefaultAddr
	}
	if opts.RateLimiter == nil {
		opts.RateLimiter = DefaultRateLimiter()
	}
	baseCtx, cancel := context.WithCancel(context.Background())

	s := &Server{
		addr:       opts.Addr,
		store:      opts.Store,
		chat:       opts.Chat,
		metrics:    opts.Metrics,
		logger:     logging.Component(opts.Logger, "server"),
		limiter:    opts.RateLimiter,
		version:    opts.Version,
		backend:    opts.Backend,
		router:     mux.NewRouter(),
		baseCtx:    baseCtx,
		cancelBase: cancel,
	}
	s.setupRoutes()
	s.handler = Chain(
		RecoveryMiddleware(s.logger),
		SecurityHeadersMiddleware(),
		LoggingMiddleware(s.logger),
		RateLimitMiddleware(s.limiter, s.logger),
	)(s.router)
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.addr
}

// ============================================================================
// ROUTES
// ============================================================================

func (s *Server) setupRoutes() {
	r := s.router
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/v1").Subrouter()
	api.HandleFunc("/conversations", s.handleListConversations).Methods(http.MethodGet)
	api.HandleFunc("/conversations", s.handleCreateConversation).Methods(http.MethodPost)
	api.HandleFunc("/conversations/{id}", s.handleGetConversation).Methods(http.MethodGet)
	api.HandleFunc("/conversations/{id}", s.handleRenameConversation).Methods(http.MethodPatch)
	api.HandleFunc("/conversations/{id}", s.handleDeleteConversation).Methods(http.MethodDelete)
	api.HandleFunc("/conversations/{id}/select", s.handleSelectConversation).Methods(http.MethodPost)
	api.HandleFunc("/conversations/{id}/export", s.handleExport).Methods(http.MethodGet)
	api.HandleFunc("/conversations/{id}/messages/{mid}", s.handleDeleteMessage).Methods(http.MethodDelete)
	api.HandleFunc("/conversations/{id}/messages/{mid}/regenerate", s.handleRegenerate).Methods(http.MethodPost)
	api.HandleFunc("/messages", s.handleSendMessage).Methods(http.MethodPost)
	api.HandleFunc("/stop", s.handleStop).Methods(http.MethodPost)
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
}

// ============================================================================
// API TYPES
// ============================================================================

// ConversationSummary is a list entry.
type ConversationSummary struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Preview      string `json:"preview"`
	MessageCount int    `json:"messageCount"`
	CreatedAt    int64  `json:"createdAt"`
	UpdatedAt    int64  `json:"updatedAt"`
	Current      bool   `json:"current"`
}

// CreateConversationRequest is the body of POST /v1/conversations.
type CreateConversationRequest struct {
	Title string `json:"title"`
}

// RenameConversationRequest is the body of PATCH /v1/conversations/{id}.
type RenameConversationRequest struct {
	Title string `json:"title"`
}

// SendMessageRequest is the body of POST /v1/messages.
type SendMessageRequest struct {
	Content     string             `json:"content"`
	Attachments []model.Attachment `json:"attachments,omitempty"`

	// ConversationID selects the target conversation first when set.
	ConversationID string `json:"conversationId,omitempty"`
}

// ReplyResponse describes a finished reply (?wait=true).
type ReplyResponse struct {
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId"`
	Outcome        string `json:"outcome"`
}

// StatusResponse is returned by GET /v1/status.
type StatusResponse struct {
	Streaming      bool   `json:"streaming"`
	ConversationID string `json:"conversationId,omitempty"`
	Query          string `json:"query,omitempty"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version,omitempty"`
	Conversations int    `json:"conversations"`

	// Backend is "ok" or the reason the reply backend is unusable. It is
	// omitted when no backend check is configured.
	Backend string `json:"backend,omitempty"`
}

// ============================================================================
// HANDLERS
// ============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:        "ok",
		Version:       s.version,
		Conversations: s.store.Len(),
	}
	if s.backend != nil {
		ctx, cancel := context.WithTimeout(r.Context(), backendCheckTimeout)
		defer cancel()
		resp.Backend = "ok"
		if err := s.backend.Check(ctx); err != nil {
			resp.Status = "degraded"
			resp.Backend = err.Error()
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	convs := s.store.Search(r.URL.Query().Get("q"))
	current, _ := s.store.Current()

	out := make([]ConversationSummary, 0, len(convs))
	for _, c := range convs {
		out = append(out, ConversationSummary{
			ID:           c.ID,
			Title:        c.DisplayTitle(),
			Preview:      c.Preview(),
			MessageCount: c.MessageCount(),
			CreatedAt:    c.CreatedAt,
			UpdatedAt:    c.UpdatedAt,
			Current:      c.ID == current,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req CreateConversationRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	id := s.store.CreateConversation(req.Title)
	conv, _ := s.store.Conversation(id)
	writeJSON(w, http.StatusCreated, conv)
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	conv, ok := s.store.Conversation(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (s *Server) handleRenameConversation(w http.ResponseWriter, r *http.Request) {
	var req RenameConversationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id := mux.Vars(r)["id"]
	if !s.store.RenameConversation(id, req.Title) {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	conv, _ := s.store.Conversation(id)
	writeJSON(w, http.StatusOK, conv)
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	if !s.store.DeleteConversation(mux.Vars(r)["id"]) {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSelectConversation(w http.ResponseWriter, r *http.Request) {
	if !s.store.SelectConversation(mux.Vars(r)["id"]) {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if !s.store.DeleteMessage(vars["id"], vars["mid"]) {
		writeError(w, http.StatusNotFound, "message not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	formatName := r.URL.Query().Get("format")
	if formatName == "" {
		formatName = string(export.FormatMarkdown)
	}
	format, err := export.ParseFormat(formatName)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := mux.Vars(r)["id"]
	if _, ok := s.store.Conversation(id); !ok {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	artifact, ok := s.store.ExportConversation(id, format)
	if !ok {
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}

	w.Header().Set("Content-Type", artifact.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", artifact.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(artifact.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(artifact.Data)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}
	if req.ConversationID != "" && !s.store.SelectConversation(req.ConversationID) {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}

	s.run(w, r, func(ctx context.Context) (<-chan chat.Reply, error) {
		return s.chat.StartMessage(ctx, req.Content, req.Attachments)
	})
}

func (s *Server) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	convID, msgID := vars["id"], vars["mid"]

	switch err := s.chat.CheckRegenerate(convID, msgID); {
	case errors.Is(err, chat.ErrInvalidTarget):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case errors.Is(err, chat.ErrBusy):
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	s.run(w, r, func(ctx context.Context) (<-chan chat.Reply, error) {
		return s.chat.StartRegenerate(ctx, convID, msgID)
	})
}

// run starts a reply. The run is claimed before anything is written, so a
// request that loses the race gets 409 in both modes. With ?wait=true it
// blocks and returns the reply; otherwise it answers 202 and streams in the
// background.
func (s *Server) run(w http.ResponseWriter, r *http.Request, start func(context.Context) (<-chan chat.Reply, error)) {
	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))
	ctx := s.baseCtx
	if wait {
		ctx = r.Context()
	}
	replies, err := start(ctx)
	if err != nil {
		writeChatError(w, err)
		return
	}

	if !wait {
		s.work.Add(1)
		go func() {
			defer s.work.Done()
			<-replies
		}()
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
		return
	}

	reply := <-replies
	writeJSON(w, http.StatusOK, ReplyResponse{
		ConversationID: reply.ConversationID,
		MessageID:      reply.MessageID,
		Outcome:        string(reply.Outcome),
	})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.chat.StopGeneration()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	current, _ := s.store.Current()
	writeJSON(w, http.StatusOK, StatusResponse{
		Streaming:      s.chat.IsStreaming(),
		ConversationID: current,
		Query:          s.store.Query(),
	})
}

// handleEvents streams store events as Server-Sent Events until the client
// disconnects or the store closes.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	events, unsubscribe := s.store.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	ping := time.NewTicker(eventKeepAlive)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.baseCtx.Done():
			return
		case <-ping.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case ev, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
			flusher.Flush()
		}
	}
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.addr).Str("version", s.version).Msg("server starting")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the in-flight reply, waits for background work and
// gracefully shuts the listener down.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("server shutting down")
	s.cancelBase()
	s.chat.StopGeneration()

	done := make(chan struct{})
	go func() {
		s.work.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	return s.server.Shutdown(ctx)
}

// ============================================================================
// HELPERS
// ============================================================================

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody describes an API error.
type ErrorBody struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorBody{Message: message, Code: status}})
}

func writeChatError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chat.ErrBusy):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, chat.ErrInvalidTarget):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
