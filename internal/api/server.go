package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"codesync/internal/session"
	"codesync/pkg/interfaces"
	"codesync/pkg/types"
)

const (
	defaultExecutionLimit = 20
	maxExecutionLimit     = 100
)

// Directory reports transport-level membership without exposing connections
type Directory interface {
	interfaces.Membership
	GetStats() map[string]int
}

// Counter reports how many participants have announced a display name
type Counter interface {
	Count() int
}

// ARCHITECTURAL DISCOVERY: HTTP API layer is a read-only window onto room state
// Clean separation - no business logic, only HTTP handling and JSON serialization
type Server struct {
	store      *session.Store
	directory  Directory
	presence   Counter
	executions interfaces.ExecutionLog // nil when the audit log is disabled
	router     *http.ServeMux
	startedAt  time.Time
}

// NewServer wires the read-only endpoints. A nil execution log disables
// the execution history endpoint.
func NewServer(store *session.Store, directory Directory, presence Counter, executions interfaces.ExecutionLog) *Server {
	s := &Server{
		store:      store,
		directory:  directory,
		presence:   presence,
		executions: executions,
		router:     http.NewServeMux(),
		startedAt:  time.Now(),
	}

	s.setupRoutes()
	return s
}

// ARCHITECTURAL DISCOVERY: CORS and JSON middleware applied to all routes for web client compatibility
func (s *Server) setupRoutes() {
	s.router.Handle("/api/rooms", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.handleRooms))))
	s.router.Handle("/api/rooms/", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.handleRoomByID))))
	s.router.Handle("/health", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.healthCheck))))
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response types for JSON serialization
type RoomSummary struct {
	ID      string `json:"id"`
	Members int    `json:"members"`
	Files   int    `json:"files"`
	Cursors int    `json:"cursors"`
}

type FileSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Size int    `json:"size"`
}

type ListRoomsResponse struct {
	Rooms []RoomSummary `json:"rooms"`
}

type RoomResponse struct {
	Room  RoomSummary   `json:"room"`
	Files []FileSummary `json:"files"`
}

type ExecutionsResponse struct {
	RoomID     string                   `json:"roomId"`
	Executions []*types.ExecutionRecord `json:"executions"`
}

type HealthResponse struct {
	Status      string                 `json:"status"`
	Timestamp   time.Time              `json:"timestamp"`
	Database    string                 `json:"database"`
	Connections map[string]int         `json:"connections"`
	System      map[string]interface{} `json:"system"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// handleRooms serves GET /api/rooms
func (s *Server) handleRooms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rooms := make([]RoomSummary, 0)
	for _, roomID := range s.store.Rooms() {
		if summary, ok := s.summary(roomID); ok {
			rooms = append(rooms, summary)
		}
	}

	s.sendJSON(w, http.StatusOK, ListRoomsResponse{Rooms: rooms})
}

// handleRoomByID serves GET /api/rooms/{id} and GET /api/rooms/{id}/executions
func (s *Server) handleRoomByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/rooms/")
	parts := strings.Split(path, "/")
	roomID := parts[0]
	if roomID == "" {
		s.sendError(w, "Room ID required", http.StatusBadRequest)
		return
	}

	switch {
	case len(parts) == 1:
		s.getRoom(w, roomID)
	case len(parts) == 2 && parts[1] == "executions":
		s.listExecutions(w, r, roomID)
	default:
		s.sendError(w, "Not found", http.StatusNotFound)
	}
}

// getRoom returns counts and file metadata; file contents stay on the websocket
func (s *Server) getRoom(w http.ResponseWriter, roomID string) {
	summary, ok := s.summary(roomID)
	if !ok {
		s.sendError(w, "Room not found", http.StatusNotFound)
		return
	}

	files := s.store.ListFiles(roomID)
	summaries := make([]FileSummary, len(files))
	for i, file := range files {
		summaries[i] = FileSummary{ID: file.ID, Name: file.Name, Size: len(file.Content)}
	}

	s.sendJSON(w, http.StatusOK, RoomResponse{Room: summary, Files: summaries})
}

// listExecutions returns the newest audit records of a room
// FUNCTIONAL DISCOVERY: History outlives rooms, so an evicted room still has records
func (s *Server) listExecutions(w http.ResponseWriter, r *http.Request, roomID string) {
	if s.executions == nil {
		s.sendError(w, "Execution log is disabled", http.StatusNotFound)
		return
	}

	limit := defaultExecutionLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			s.sendError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}
	if limit > maxExecutionLimit {
		limit = maxExecutionLimit
	}

	records, err := s.executions.RecentExecutions(r.Context(), roomID, limit)
	if err != nil {
		log.Printf("Failed to read executions for room %s: %v", roomID, err)
		s.sendError(w, "Failed to read executions", http.StatusInternalServerError)
		return
	}

	s.sendJSON(w, http.StatusOK, ExecutionsResponse{RoomID: roomID, Executions: records})
}

func (s *Server) summary(roomID string) (RoomSummary, bool) {
	stats, exists := s.store.Stats(roomID)
	if !exists {
		return RoomSummary{}, false
	}
	return RoomSummary{
		ID:      roomID,
		Members: s.directory.RoomMemberCount(roomID),
		Files:   stats.Files,
		Cursors: stats.Cursors,
	}, true
}

// healthCheck serves GET /health
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	dbStatus := "disabled"

	if s.executions != nil {
		dbStatus = "healthy"
		if err := s.executions.HealthCheck(ctx); err != nil {
			status = "unhealthy"
			dbStatus = fmt.Sprintf("error: %v", err)
		}
	}

	response := HealthResponse{
		Status:      status,
		Timestamp:   time.Now(),
		Database:    dbStatus,
		Connections: s.directory.GetStats(),
		System: map[string]interface{}{
			"goroutines":   runtime.NumGoroutine(),
			"participants": s.presence.Count(),
			"rooms":        len(s.store.Rooms()),
			"uptime":       time.Since(s.startedAt).Round(time.Second).String(),
		},
	}

	// FUNCTIONAL DISCOVERY: Return 503 if any component is unhealthy
	code := http.StatusOK
	if status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	s.sendJSON(w, code, response)
}

func (s *Server) sendJSON(w http.ResponseWriter, code int, body interface{}) {
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

// FUNCTIONAL DISCOVERY: Consistent error response format
func (s *Server) sendError(w http.ResponseWriter, message string, code int) {
	s.sendJSON(w, code, ErrorResponse{
		Error:   http.StatusText(code),
		Code:    code,
		Message: message,
	})
}

// ARCHITECTURAL DISCOVERY: CORS middleware enables web client access
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// jsonMiddleware sets the JSON content type on every API response
func (s *Server) jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
