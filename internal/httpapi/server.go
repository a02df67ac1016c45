package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/user/chatscribe/internal/chat"
	"github.com/user/chatscribe/internal/memory"
	"github.com/user/chatscribe/internal/types"
)

// Server exposes the chat and session-management endpoints over HTTP.
type Server struct {
	runner  *chat.Runner
	factory *memory.Factory
	mux     *http.ServeMux
}

// NewServer creates the HTTP API server.
func NewServer(runner *chat.Runner, factory *memory.Factory) *Server {
	s := &Server{
		runner:  runner,
		factory: factory,
		mux:     http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /v1/chat", s.handleChat)
	s.mux.HandleFunc("GET /v1/sessions", s.handleSessions)
	s.mux.HandleFunc("GET /v1/sessions/", s.handleSessionSubresource)
	s.mux.HandleFunc("POST /v1/sessions/", s.handleSessionAction)
	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// chatRequest is the JSON body for POST /v1/chat.
type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type chatResponse struct {
	SessionID string `json:"session_id"`
	Reply     string `json:"reply"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		http.Error(w, `{"error":"message is required"}`, http.StatusBadRequest)
		return
	}

	sessionID := types.SessionID(req.SessionID)
	if sessionID == "" {
		sessionID = types.NewSessionID()
	}

	reply, err := s.runner.Respond(r.Context(), sessionID, req.Message)
	if err != nil {
		slog.Error("chat turn failed", "session_id", sessionID, "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(chatResponse{SessionID: string(sessionID), Reply: reply})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.factory.Sessions()
	if err != nil {
		slog.Error("list sessions failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	if ids == nil {
		ids = []types.SessionID{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"sessions": ids})
}

// handleSessionSubresource serves GET /v1/sessions/{id}/stats and
// GET /v1/sessions/{id}/records.
func (s *Server) handleSessionSubresource(w http.ResponseWriter, r *http.Request) {
	sessionID, sub, ok := splitSessionPath(r.URL.Path)
	if !ok {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}

	mem, err := s.factory.Open(memory.KindComposite, sessionID)
	if err != nil {
		slog.Error("open session failed", "session_id", sessionID, "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	switch sub {
	case "stats":
		stats, err := mem.Stats(r.Context())
		if err != nil {
			slog.Error("session stats failed", "session_id", sessionID, "error", err)
			http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(stats)

	case "records":
		snap, err := mem.Load(r.Context())
		if err != nil {
			slog.Error("session load failed", "session_id", sessionID, "error", err)
			http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			return
		}
		limit := len(snap.Recent)
		if q := r.URL.Query().Get("limit"); q != "" {
			if n, err := strconv.Atoi(q); err == nil && n > 0 && n < limit {
				limit = n
			}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"records": snap.Recent[len(snap.Recent)-limit:],
			"summary": snap.Summary,
		})

	default:
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
	}
}

// handleSessionAction serves POST /v1/sessions/{id}/compact and
// POST /v1/sessions/{id}/clear.
func (s *Server) handleSessionAction(w http.ResponseWriter, r *http.Request) {
	sessionID, action, ok := splitSessionPath(r.URL.Path)
	if !ok {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}

	mem, err := s.factory.Open(memory.KindComposite, sessionID)
	if err != nil {
		slog.Error("open session failed", "session_id", sessionID, "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	switch action {
	case "compact":
		comp, isComposite := mem.(*memory.Composite)
		if !isComposite {
			http.Error(w, `{"error":"session does not support compaction"}`, http.StatusConflict)
			return
		}
		ran, err := comp.Compact(r.Context())
		if err != nil {
			slog.Error("forced compaction failed", "session_id", sessionID, "error", err)
			http.Error(w, `{"error":"compaction failed"}`, http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]bool{"compacted": ran})

	case "clear":
		if err := mem.Clear(r.Context()); err != nil {
			slog.Error("clear session failed", "session_id", sessionID, "error", err)
			http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "cleared"})

	default:
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
	}
}

// splitSessionPath parses /v1/sessions/{id}/{sub} into its parts.
func splitSessionPath(path string) (types.SessionID, string, bool) {
	rest := strings.TrimPrefix(path, "/v1/sessions/")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return types.SessionID(parts[0]), parts[1], true
}
