// Package gateway exposes the command pipeline over HTTP and WebSocket.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/webterm/webterm/internal/core"
	"github.com/webterm/webterm/internal/core/complete"
	"github.com/webterm/webterm/internal/core/session"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 64 << 10

// Options configures a Server.
type Options struct {
	Engine         *core.Engine
	Completer      *complete.Completer
	AllowedOrigins []string
	Logger         *zap.Logger
}

// Server serves the HTTP API and the streaming endpoint.
type Server struct {
	engine    *core.Engine
	completer *complete.Completer
	origins   []string
	logger    *zap.Logger
	upgrader  websocket.Upgrader

	mu     sync.Mutex
	conns  map[*connection]struct{}
	closed bool
	wg     sync.WaitGroup
}

// NewServer creates a gateway server.
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Engine == nil {
		opts.Engine = core.NewEngine(core.Options{Logger: opts.Logger})
	}
	if opts.Completer == nil {
		opts.Completer = complete.New(complete.Options{Verbs: opts.Engine.Verbs()})
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	s := &Server{
		engine:    opts.Engine,
		completer: opts.Completer,
		origins:   opts.AllowedOrigins,
		logger:    opts.Logger,
		conns:     make(map[*connection]struct{}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return s.originAllowed(r.Header.Get("Origin"))
		},
	}
	return s
}

// NewRouter registers the API routes.
func (s *Server) NewRouter() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/command", s.handleCommand).Methods(http.MethodPost)
	api.HandleFunc("/autocomplete", s.handleAutocomplete).Methods(http.MethodPost)
	api.HandleFunc("/context/{sessionId}", s.handleContext).Methods(http.MethodGet)
	api.HandleFunc("/cancel", s.handleCancel).Methods(http.MethodPost)
	api.HandleFunc("/session/{sessionId}", s.handleCloseSession).Methods(http.MethodDelete)

	r.HandleFunc("/ws", s.handleStream).Methods(http.MethodGet)
	return r
}

// Handler returns the root handler with CORS applied to every route.
func (s *Server) Handler() http.Handler {
	return s.cors(s.NewRouter())
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("elapsed", time.Since(start)))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:      "ok",
		Sessions:    s.engine.Sessions().Len(),
		Running:     s.engine.Running(),
		Translation: s.engine.TranslationEnabled(),
	})
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if !s.decode(w, r, &req) {
		return
	}
	sessionID := sessionOrDefault(req.SessionID)

	out, err := s.engine.Execute(r.Context(), sessionID, req.Command)
	if err != nil {
		e := core.AsError(err)
		writeJSON(w, http.StatusOK, commandResponse{
			Error: strPtr(e.Error()),
			Kind:  string(e.Kind),
		})
		return
	}

	resp := commandResponse{
		Output:    strPtr(out.Output),
		Kind:      string(out.Kind),
		Status:    string(out.Status),
		ProcessID: out.ProcessID,
	}
	if out.Error != "" {
		resp.Error = strPtr(out.Error)
	}
	if out.NewPath != "" {
		resp.NewPath = strPtr(filepath.ToSlash(out.NewPath))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAutocomplete(w http.ResponseWriter, r *http.Request) {
	var req autocompleteRequest
	if !s.decode(w, r, &req) {
		return
	}

	writeJSON(w, http.StatusOK, autocompleteResponse{
		Suggestions: s.completer.Suggest(req.Text, s.baseDir(req)),
	})
}

// baseDir picks the directory completions are relative to without creating
// a session: the session's path, else an absolute client path, else home.
func (s *Server) baseDir(req autocompleteRequest) string {
	if snap, err := s.engine.Context(sessionOrDefault(req.SessionID)); err == nil {
		return snap.CurrentPath
	}
	if req.Path != "" && filepath.IsAbs(req.Path) {
		return req.Path
	}
	home, _ := os.UserHomeDir()
	return home
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionId"]

	snap, err := s.engine.Context(sessionID)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "session not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, contextResponse{
		CommandHistory: snap.CommandHistory,
		OutputHistory:  snap.OutputHistory,
		MaxHistory:     snap.MaxHistory,
		CurrentPath:    filepath.ToSlash(snap.CurrentPath),
	})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if !s.decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, cancelResponse{Cancelled: s.engine.Cancel(req.ProcessID)})
}

// handleCloseSession cancels the session's processes and forgets it. The
// sync API has no connection to tie a session to, so tabs call this when
// they close.
func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionId"]

	if _, err := s.engine.Context(sessionID); err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "session not found"})
		return
	}
	s.engine.CloseSession(sessionID)
	writeJSON(w, http.StatusOK, closeSessionResponse{Closed: true})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Shutdown closes every streaming connection and waits for their
// processes to be released.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	conns := make([]*connection, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for connections: %w", ctx.Err())
	}
}

func (s *Server) register(c *connection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[c] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) unregister(c *connection) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
	s.wg.Done()
}
