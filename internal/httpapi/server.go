package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/homehub/devicehub/pkg/sentinel"
)

// Dispatcher is the subset of *dispatcher.Dispatcher the Control Server
// calls into.
type Dispatcher interface {
	SendCommand(ctx context.Context, deviceID, command string) (string, error)
	GetUnsolicited(ctx context.Context, deviceID string) (string, error)
	RunMacro(ctx context.Context, name string) (string, error)
	ListDevices() []string
	ToggleDisabled() bool
}

// Config holds the Control Server's listen configuration.
type Config struct {
	Addr string
}

// Server is the external Control Server: a net/http.ServeMux wrapping a
// Dispatcher.
type Server struct {
	config     Config
	mux        *http.ServeMux
	server     *http.Server
	dispatcher Dispatcher
}

// NewServer builds a Control Server over dispatcher.
func NewServer(cfg Config, dispatcher Dispatcher) *Server {
	s := &Server{
		config:     cfg,
		mux:        http.NewServeMux(),
		dispatcher: dispatcher,
	}
	s.registerRoutes()
	s.server = &http.Server{
		Addr:    cfg.Addr,
		Handler: s.mux,
	}
	return s
}

// Handler returns the Control Server's http.Handler, for use with
// httptest or a custom listener instead of ListenAndServe.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/listDevices", s.handleListDevices)
	s.mux.HandleFunc("/toggleStatus", s.handleToggleStatus)
	s.mux.HandleFunc("/macro", s.handleMacro)
	s.mux.HandleFunc("/", s.handleDeviceRoute)
}

// handleListDevices returns the roster snapshot as a JSON array of ids.
// Exempt from the disabled check — see pkg/dispatcher.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.dispatcher.ListDevices())
}

// handleToggleStatus flips the disabled flag and confirms the new state.
func (s *Server) handleToggleStatus(w http.ResponseWriter, r *http.Request) {
	disabled := s.dispatcher.ToggleDisabled()
	status := "enabled"
	if disabled {
		status = "disabled"
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "Toggled the site status: now %s", status)
}

// handleMacro runs the macro named by the macroName query parameter.
func (s *Server) handleMacro(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	macroName := r.URL.Query().Get("macroName")
	if macroName == "" {
		http.Error(w, "missing macroName query parameter", http.StatusInternalServerError)
		return
	}

	result, err := s.dispatcher.RunMacro(r.Context(), macroName)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if result != string(sentinel.Success) {
		w.WriteHeader(http.StatusInternalServerError)
	}
	io.WriteString(w, result)
}

// handleDeviceRoute dispatches /{device_id}/sendCommand and
// /{device_id}/getUnsolicited requests.
func (s *Server) handleDeviceRoute(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(r.URL.Path, "/")
	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 {
		http.NotFound(w, r)
		return
	}
	deviceID, action := parts[0], parts[1]

	switch action {
	case "sendCommand":
		s.handleSendCommand(w, r, deviceID)
	case "getUnsolicited":
		s.handleGetUnsolicited(w, r, deviceID)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleSendCommand(w http.ResponseWriter, r *http.Request, deviceID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	command := r.URL.Query().Get("command")
	if command == "" {
		http.Error(w, "missing command query parameter", http.StatusInternalServerError)
		return
	}

	result, err := s.dispatcher.SendCommand(r.Context(), deviceID, command)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeResult(w, result)
}

func (s *Server) handleGetUnsolicited(w http.ResponseWriter, r *http.Request, deviceID string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	result, err := s.dispatcher.GetUnsolicited(r.Context(), deviceID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeResult(w, result)
}

// writeResult writes result as the plain-text response body. Only
// NO_DEVICE_FOUND fails the request (spec.md §6); TIMEOUT and DISABLED
// are delivered in a 200 body like any other result.
func writeResult(w http.ResponseWriter, result string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if result == string(sentinel.NoDeviceFound) {
		w.WriteHeader(http.StatusInternalServerError)
	}
	io.WriteString(w, result)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// ListenAndServe starts the Control Server.
func (s *Server) ListenAndServe() error {
	return s.server.ListenAndServe()
}

// Close shuts the Control Server down.
func (s *Server) Close(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
