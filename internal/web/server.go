package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"zha-go/internal/automation"
	"zha-go/internal/coordinator"
	"zha-go/internal/gateway"
	"zha-go/internal/helpers"
	"zha-go/internal/store"
	"zha-go/internal/zcl"
)

// maxBodySize limits request bodies on every JSON endpoint.
const maxBodySize = 1 << 20

// ServerOption configures the web server.
type ServerOption func(*Server)

// WithAPIKey enables API key authentication.
func WithAPIKey(key string) ServerOption {
	return func(s *Server) {
		s.apiKey = key
	}
}

// WithAllowedOrigins sets allowed CORS and WebSocket origin patterns.
func WithAllowedOrigins(origins []string) ServerOption {
	return func(s *Server) {
		s.allowedOrigins = origins
	}
}

// WithAutomation sets the automation engine and script manager.
func WithAutomation(engine *automation.Engine, mgr *automation.Manager) ServerOption {
	return func(s *Server) {
		s.autoEngine = engine
		s.scriptMgr = mgr
	}
}

// WithVersion sets the version reported by /api/version.
func WithVersion(v string) ServerOption {
	return func(s *Server) {
		s.version = v
	}
}

// Server serves the JSON API and the event WebSocket.
type Server struct {
	coord          *coordinator.Coordinator
	wsHub          *WSHub
	logger         *slog.Logger
	mux            *http.ServeMux
	apiKey         string
	allowedOrigins []string
	scriptMgr      *automation.Manager
	autoEngine     *automation.Engine
	version        string
	wg             sync.WaitGroup
	unsubEvents    func()
}

// NewServer creates the server and starts broadcasting coordinator events
// to WebSocket clients.
func NewServer(coord *coordinator.Coordinator, logger *slog.Logger, opts ...ServerOption) *Server {
	s := &Server{
		coord:   coord,
		logger:  logger.With("component", "web"),
		mux:     http.NewServeMux(),
		version: "dev",
	}
	for _, opt := range opts {
		opt(s)
	}

	s.wsHub = NewWSHub(s.logger)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.wsHub.Run()
	}()

	s.unsubEvents = coord.Events().OnAll(func(event coordinator.Event) {
		s.wsHub.Broadcast(event)
	})

	s.routes()
	return s
}

// Stop shuts down the WebSocket hub and waits for its goroutine.
func (s *Server) Stop() {
	if s.unsubEvents != nil {
		s.unsubEvents()
	}
	s.wsHub.Stop()
	s.wg.Wait()
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/devices", s.handleAPIListDevices)
	s.mux.HandleFunc("GET /api/devices/{ieee}", s.handleAPIGetDevice)
	s.mux.HandleFunc("PUT /api/devices/{ieee}", s.handleAPIRenameDevice)
	s.mux.HandleFunc("DELETE /api/devices/{ieee}", s.handleAPIDeleteDevice)
	s.mux.HandleFunc("GET /api/devices/{ieee}/bindable", s.handleAPIBindable)
	s.mux.HandleFunc("GET /api/devices/{ieee}/bindings", s.handleAPIBindings)
	s.mux.HandleFunc("POST /api/devices/{ieee}/command", s.handleAPIIssueCommand)
	s.mux.HandleFunc("POST /api/bind", s.handleAPIBind)
	s.mux.HandleFunc("POST /api/unbind", s.handleAPIUnbind)
	s.mux.HandleFunc("POST /api/convert", s.handleAPIConvert)
	s.mux.HandleFunc("GET /api/clusters", s.handleAPIListClusters)
	s.mux.HandleFunc("GET /api/version", s.handleAPIVersion)

	s.mux.HandleFunc("GET /api/scripts", s.handleAPIListScripts)
	s.mux.HandleFunc("GET /api/scripts/{id}", s.handleAPIGetScript)
	s.mux.HandleFunc("POST /api/scripts", s.handleAPICreateScript)
	s.mux.HandleFunc("PUT /api/scripts/{id}", s.handleAPIUpdateScript)
	s.mux.HandleFunc("DELETE /api/scripts/{id}", s.handleAPIDeleteScript)
	s.mux.HandleFunc("POST /api/scripts/{id}/toggle", s.handleAPIToggleScript)
	s.mux.HandleFunc("POST /api/scripts/{id}/run", s.handleAPIRunScript)
	s.mux.HandleFunc("POST /api/run", s.handleAPIRunCode)
	s.mux.HandleFunc("GET /api/running", s.handleAPIRunning)

	s.mux.HandleFunc("GET /ws", s.handleWS)
}

// ServeHTTP implements http.Handler, applying auth and CORS middleware.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if len(s.allowedOrigins) > 0 {
		origin := r.Header.Get("Origin")
		if origin != "" {
			if r.Method == http.MethodOptions {
				if s.isOriginAllowed(origin) {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")
					w.Header().Set("Access-Control-Max-Age", "3600")
					w.WriteHeader(http.StatusNoContent)
					return
				}
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}

			if r.Method != http.MethodGet {
				if !s.isOriginAllowed(origin) {
					http.Error(w, "Forbidden", http.StatusForbidden)
					return
				}
				w.Header().Set("Access-Control-Allow-Origin", origin)
			}
		}
	}

	// The WebSocket upgrade cannot carry custom headers from a browser, so
	// only /api/ is key protected.
	if s.apiKey != "" && strings.HasPrefix(r.URL.Path, "/api/") {
		if subtle.ConstantTimeCompare([]byte(requestKey(r)), []byte(s.apiKey)) != 1 {
			s.writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
	}
	s.mux.ServeHTTP(w, r)
}

// requestKey returns the API key from the Authorization bearer token or the
// X-API-Key header.
func requestKey(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return r.Header.Get("X-API-Key")
}

// isOriginAllowed checks if the origin matches any allowed origin pattern.
func (s *Server) isOriginAllowed(origin string) bool {
	for _, allowed := range s.allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func (s *Server) handleAPIVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("writeJSON encode failed", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// decodeBody reads a JSON request body into v, answering 400 on failure.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// errorStatus maps domain errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, helpers.ErrCoercion),
		errors.Is(err, coordinator.ErrInvalidIEEE),
		errors.Is(err, coordinator.ErrUnknownCommand),
		errors.Is(err, zcl.ErrMissingField):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound), errors.Is(err, automation.ErrScriptNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, gateway.ErrTimeout):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// writeDomainError answers with the mapped status. Client errors carry the
// error message; server errors are logged and reported generically.
func (s *Server) writeDomainError(w http.ResponseWriter, op string, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError && status != http.StatusGatewayTimeout {
		s.logger.Error(op, "err", err)
		s.writeError(w, status, "internal server error")
		return
	}
	s.writeError(w, status, err.Error())
}
