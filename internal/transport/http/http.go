package http

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/zmcp/civicrm-mcp/internal/constants"
	"github.com/zmcp/civicrm-mcp/internal/debug"
	"github.com/zmcp/civicrm-mcp/internal/logging"
	"github.com/zmcp/civicrm-mcp/internal/transport"
)

// SessionHeader carries the session id issued on initialize
const SessionHeader = "Mcp-Session-Id"

const (
	maxBodyBytes   = 1 << 20
	requestTimeout = 120 * time.Second
)

// Transport serves JSON-RPC over plain HTTP POST: one request, one response
type Transport struct {
	addr    string
	token   string
	handler transport.Handler
	router  *chi.Mux
	server  *http.Server
	tracer  *debug.TraceLogger
}

// New creates an HTTP transport. A non-empty token requires
// "Authorization: Bearer <token>" on /mcp.
func New(addr, token string, handler transport.Handler) *Transport {
	t := &Transport{
		addr:    addr,
		token:   token,
		handler: handler,
		router:  chi.NewRouter(),
	}

	t.router.Use(middleware.RequestID)
	t.router.Use(middleware.RealIP)
	t.router.Use(middleware.Recoverer)
	t.router.Use(middleware.Timeout(requestTimeout))

	t.router.Get("/health", t.handleHealth)
	t.router.Route("/mcp", func(r chi.Router) {
		r.Use(t.auth)
		r.Post("/", t.handleMCP)
	})

	return t
}

// SetTracer sets the trace logger
func (t *Transport) SetTracer(tracer *debug.TraceLogger) {
	t.tracer = tracer
}

// Router exposes the root HTTP handler
func (t *Transport) Router() http.Handler { return t.router }

// Start listens on the configured address until ctx is cancelled
func (t *Transport) Start(ctx context.Context) error {
	t.server = &http.Server{
		Addr:              t.addr,
		Handler:           t.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("HTTP", "Listening on http://%s/mcp", t.addr)
		if err := t.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		return t.Close()
	}
}

// WriteMessage is unsupported: there is no open stream to push notifications on
func (t *Transport) WriteMessage(msg *transport.Message) error {
	return fmt.Errorf("http transport cannot send unsolicited message %q", msg.Method)
}

// Close gracefully shuts down the HTTP server
func (t *Transport) Close() error {
	if t.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return t.server.Shutdown(ctx)
}

func (t *Transport) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if t.token == "" {
			next.ServeHTTP(w, r)
			return
		}
		want := []byte(constants.BearerPrefix + t.token)
		got := []byte(r.Header.Get(constants.Authorization))
		if subtle.ConstantTimeCompare(want, got) != 1 {
			logging.Warn("HTTP", "Rejected unauthenticated request from %s", r.RemoteAddr)
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (t *Transport) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"transport": "http",
		"protocol":  constants.MCPProtocolVersion,
	})
}

func (t *Transport) handleMCP(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get(constants.ContentType); ct != "" && !strings.HasPrefix(ct, constants.ContentTypeJSON) {
		http.Error(w, "Content-Type must be application/json", http.StatusUnsupportedMediaType)
		return
	}

	var msg transport.Message
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&msg); err != nil {
		writeJSON(w, http.StatusBadRequest, &transport.Message{
			JSONRPC: "2.0",
			ID:      json.RawMessage("0"),
			Error:   &transport.Error{Code: -32700, Message: "Parse error", Data: mustJSON(err.Error())},
		})
		return
	}

	t.tracer.Log("HTTP_IN", "Request received", map[string]interface{}{
		"request_id": middleware.GetReqID(r.Context()),
		"method":     msg.Method,
		"id":         msg.ID,
	})

	response, err := t.handler(r.Context(), &msg)
	if err != nil {
		response = transport.InternalError(msg.ID, err)
	}

	if msg.Method == "initialize" && response != nil && response.Error == nil {
		w.Header().Set(SessionHeader, uuid.NewString())
	}

	if response == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	t.tracer.Log("HTTP_OUT", "Response sent", map[string]interface{}{
		"request_id": middleware.GetReqID(r.Context()),
		"id":         response.ID,
		"has_error":  response.Error != nil,
	})
	writeJSON(w, http.StatusOK, response)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set(constants.ContentType, constants.ContentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("HTTP", err, "Failed to encode response")
	}
}

func mustJSON(s string) json.RawMessage {
	data, _ := json.Marshal(s)
	return data
}
