package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"taskboard/api/internal/auth"
	"taskboard/api/internal/events"
	"taskboard/api/internal/store"
)

type HTTPServer struct {
	service    *Service
	streams    *events.Broadcaster
	corsOrigin string
}

func NewHTTPServer(service *Service, streams *events.Broadcaster, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, streams: streams, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "timestamp": time.Now().UTC()})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.service.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not_ready", "error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/signup" {
		s.handleSignUp(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/login" {
		s.handleLogin(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/stream" {
		s.handleStream(w, r)
		return
	}

	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/auth/me" {
		payload, err := s.service.Me(r.Context(), session)
		if err != nil {
			status, message := mapError(err)
			writeError(w, status, message)
			return
		}
		writeSuccess(w, http.StatusOK, payload)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/boards" {
		page := queryInt(r, "page", 1)
		limit := queryInt(r, "limit", 12)
		query := strings.TrimSpace(r.URL.Query().Get("search"))
		payload, err := s.service.ListBoards(r.Context(), session, query, page, limit)
		if err != nil {
			status, message := mapError(err)
			writeError(w, status, message)
			return
		}
		writeSuccess(w, http.StatusOK, payload)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/boards" {
		var body struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			Color       string `json:"color"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if msg := validateTitle(body.Title, 100); msg != "" {
			writeError(w, http.StatusBadRequest, msg)
			return
		}
		if len(body.Description) > 500 {
			writeError(w, http.StatusBadRequest, "description must be at most 500 characters")
			return
		}
		payload, err := s.service.CreateBoard(r.Context(), session, BoardInput{
			Title:       strings.TrimSpace(body.Title),
			Description: body.Description,
			Color:       strings.TrimSpace(body.Color),
		})
		if err != nil {
			status, message := mapError(err)
			writeError(w, status, message)
			return
		}
		writeSuccess(w, http.StatusCreated, payload)
		return
	}

	parts := splitPath(r.URL.Path)

	if len(parts) >= 3 && parts[0] == "api" && parts[1] == "stream" {
		s.handleStreamChannel(w, r, session, parts)
		return
	}

	if len(parts) >= 3 && parts[0] == "api" && parts[1] == "boards" {
		s.handleBoards(w, r, session, parts)
		return
	}

	if len(parts) >= 3 && parts[0] == "api" && parts[1] == "lists" {
		s.handleLists(w, r, session, parts)
		return
	}

	if len(parts) >= 3 && parts[0] == "api" && parts[1] == "tasks" {
		s.handleTasks(w, r, session, parts)
		return
	}

	writeError(w, http.StatusNotFound, "Not found")
}

// ── Auth ──

func (s *HTTPServer) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(body.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(body.Email)); err != nil {
		writeError(w, http.StatusBadRequest, "a valid email is required")
		return
	}
	if len(body.Password) < 6 {
		writeError(w, http.StatusBadRequest, "password must be at least 6 characters")
		return
	}
	payload, err := s.service.SignUp(r.Context(), body.Name, body.Email, body.Password)
	if err != nil {
		status, message := mapError(err)
		writeError(w, status, message)
		return
	}
	writeSuccess(w, http.StatusCreated, payload)
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	payload, err := s.service.SignIn(r.Context(), body.Email, body.Password)
	if err != nil {
		status, message := mapError(err)
		writeError(w, status, message)
		return
	}
	writeSuccess(w, http.StatusOK, payload)
}

// ── Event stream ──

func (s *HTTPServer) handleStream(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		token = strings.TrimSpace(r.URL.Query().Get("token"))
	}
	if token == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	session, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	stream := s.streams.Register(session.UserID)
	defer s.streams.Unregister(stream.ID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "event: connected\ndata: {\"sessionId\":%q}\n\n", stream.ID)
	flusher.Flush()

	heartbeat := time.NewTicker(25 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case frame := <-stream.C:
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", frame.Event, frame.Data)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}

func (s *HTTPServer) handleStreamChannel(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if len(parts) != 4 || r.Method != http.MethodPost {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	sessionID := parts[2]
	var body struct {
		BoardID string `json:"boardId"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.BoardID == "" {
		writeError(w, http.StatusBadRequest, "boardId is required")
		return
	}

	switch parts[3] {
	case "join":
		if _, err := s.service.requireMember(r.Context(), body.BoardID, session.UserID); err != nil {
			status, message := mapError(err)
			writeError(w, status, message)
			return
		}
		if err := s.streams.Join(sessionID, session.UserID, body.BoardID); err != nil {
			writeStreamError(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, map[string]any{"joined": body.BoardID})
	case "leave":
		if err := s.streams.Leave(sessionID, session.UserID, body.BoardID); err != nil {
			writeStreamError(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, map[string]any{"left": body.BoardID})
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

func writeStreamError(w http.ResponseWriter, err error) {
	if errors.Is(err, events.ErrNoSession) {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}
	if errors.Is(err, events.ErrNotSessionUser) {
		writeError(w, http.StatusForbidden, "Forbidden")
		return
	}
	writeError(w, http.StatusInternalServerError, "Server error")
}

// ── Boards ──

func (s *HTTPServer) handleBoards(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	boardID := parts[2]

	if len(parts) == 3 {
		switch r.Method {
		case http.MethodGet:
			payload, err := s.service.GetBoard(r.Context(), session, boardID)
			if err != nil {
				status, message := mapError(err)
				writeError(w, status, message)
				return
			}
			writeSuccess(w, http.StatusOK, payload)
		case http.MethodPut:
			var body struct {
				Title       *string `json:"title"`
				Description *string `json:"description"`
				Color       *string `json:"color"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			if body.Title != nil {
				if msg := validateTitle(*body.Title, 100); msg != "" {
					writeError(w, http.StatusBadRequest, msg)
					return
				}
			}
			if body.Description != nil && len(*body.Description) > 500 {
				writeError(w, http.StatusBadRequest, "description must be at most 500 characters")
				return
			}
			payload, err := s.service.UpdateBoard(r.Context(), session, boardID, BoardPatch{
				Title:       body.Title,
				Description: body.Description,
				Color:       body.Color,
			})
			if err != nil {
				status, message := mapError(err)
				writeError(w, status, message)
				return
			}
			writeSuccess(w, http.StatusOK, payload)
		case http.MethodDelete:
			if err := s.service.DeleteBoard(r.Context(), session, boardID); err != nil {
				status, message := mapError(err)
				writeError(w, status, message)
				return
			}
			writeMessage(w, http.StatusOK, nil, "Board deleted")
		default:
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
		return
	}

	if len(parts) == 4 && parts[3] == "members" && r.Method == http.MethodPost {
		var body struct {
			Email string `json:"email"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if _, err := mail.ParseAddress(strings.TrimSpace(body.Email)); err != nil {
			writeError(w, http.StatusBadRequest, "a valid email is required")
			return
		}
		payload, message, err := s.service.AddMember(r.Context(), session, boardID, body.Email)
		if err != nil {
			status, msg := mapError(err)
			writeError(w, status, msg)
			return
		}
		if message != "" {
			writeMessage(w, http.StatusOK, payload, message)
			return
		}
		writeSuccess(w, http.StatusCreated, payload)
		return
	}

	if len(parts) == 4 && parts[3] == "lists" && r.Method == http.MethodPost {
		var body struct {
			Title string `json:"title"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if msg := validateTitle(body.Title, 100); msg != "" {
			writeError(w, http.StatusBadRequest, msg)
			return
		}
		payload, err := s.service.CreateList(r.Context(), session, boardID, strings.TrimSpace(body.Title))
		if err != nil {
			status, message := mapError(err)
			writeError(w, status, message)
			return
		}
		writeSuccess(w, http.StatusCreated, payload)
		return
	}

	if len(parts) == 5 && parts[3] == "lists" && parts[4] == "reorder" && r.Method == http.MethodPut {
		var body struct {
			Lists []struct {
				ID       string `json:"id"`
				Position int    `json:"position"`
			} `json:"lists"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if len(body.Lists) == 0 {
			writeError(w, http.StatusBadRequest, "lists is required")
			return
		}
		items := make([]store.ListPosition, 0, len(body.Lists))
		for _, item := range body.Lists {
			if item.ID == "" || item.Position < 0 {
				writeError(w, http.StatusBadRequest, "each list needs an id and a non-negative position")
				return
			}
			items = append(items, store.ListPosition{ID: item.ID, Position: item.Position})
		}
		payload, err := s.service.ReorderLists(r.Context(), session, boardID, items)
		if err != nil {
			status, message := mapError(err)
			writeError(w, status, message)
			return
		}
		writeSuccess(w, http.StatusOK, payload)
		return
	}

	if len(parts) == 5 && parts[3] == "tasks" && parts[4] == "search" && r.Method == http.MethodGet {
		text := strings.TrimSpace(r.URL.Query().Get("q"))
		page := queryInt(r, "page", 1)
		limit := queryInt(r, "limit", 20)
		payload, err := s.service.SearchTasks(r.Context(), session, boardID, text, page, limit)
		if err != nil {
			status, message := mapError(err)
			writeError(w, status, message)
			return
		}
		writeSuccess(w, http.StatusOK, payload)
		return
	}

	if len(parts) == 4 && parts[3] == "activities" && r.Method == http.MethodGet {
		page := queryInt(r, "page", 1)
		limit := queryInt(r, "limit", 20)
		payload, err := s.service.Activities(r.Context(), session, boardID, page, limit)
		if err != nil {
			status, message := mapError(err)
			writeError(w, status, message)
			return
		}
		writeSuccess(w, http.StatusOK, payload)
		return
	}

	writeError(w, http.StatusNotFound, "Not found")
}

// ── Lists ──

func (s *HTTPServer) handleLists(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	listID := parts[2]

	if len(parts) == 3 && r.Method == http.MethodPut {
		var body struct {
			Title string `json:"title"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if msg := validateTitle(body.Title, 100); msg != "" {
			writeError(w, http.StatusBadRequest, msg)
			return
		}
		payload, err := s.service.UpdateList(r.Context(), session, listID, strings.TrimSpace(body.Title))
		if err != nil {
			status, message := mapError(err)
			writeError(w, status, message)
			return
		}
		writeSuccess(w, http.StatusOK, payload)
		return
	}

	if len(parts) == 3 && r.Method == http.MethodDelete {
		if err := s.service.DeleteList(r.Context(), session, listID); err != nil {
			status, message := mapError(err)
			writeError(w, status, message)
			return
		}
		writeMessage(w, http.StatusOK, nil, "List deleted")
		return
	}

	if len(parts) == 4 && parts[3] == "tasks" && r.Method == http.MethodPost {
		var body struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			Priority    string `json:"priority"`
			DueDate     string `json:"dueDate"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if msg := validateTitle(body.Title, 200); msg != "" {
			writeError(w, http.StatusBadRequest, msg)
			return
		}
		if len(body.Description) > 2000 {
			writeError(w, http.StatusBadRequest, "description must be at most 2000 characters")
			return
		}
		if body.Priority != "" && !validPriority(body.Priority) {
			writeError(w, http.StatusBadRequest, "priority must be low, medium, or high")
			return
		}
		due, ok := parseDueDate(body.DueDate)
		if !ok {
			writeError(w, http.StatusBadRequest, "dueDate must be RFC 3339 or YYYY-MM-DD")
			return
		}
		payload, err := s.service.CreateTask(r.Context(), session, listID, TaskInput{
			Title:       strings.TrimSpace(body.Title),
			Description: body.Description,
			Priority:    body.Priority,
			DueDate:     due,
		})
		if err != nil {
			status, message := mapError(err)
			writeError(w, status, message)
			return
		}
		writeSuccess(w, http.StatusCreated, payload)
		return
	}

	writeError(w, http.StatusNotFound, "Not found")
}

// ── Tasks ──

func (s *HTTPServer) handleTasks(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	taskID := parts[2]

	if len(parts) == 3 && r.Method == http.MethodPut {
		var body struct {
			Title       *string `json:"title"`
			Description *string `json:"description"`
			Priority    *string `json:"priority"`
			DueDate     *string `json:"dueDate"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		patch := TaskPatch{Description: body.Description}
		if body.Title != nil {
			if msg := validateTitle(*body.Title, 200); msg != "" {
				writeError(w, http.StatusBadRequest, msg)
				return
			}
			trimmed := strings.TrimSpace(*body.Title)
			patch.Title = &trimmed
		}
		if body.Description != nil && len(*body.Description) > 2000 {
			writeError(w, http.StatusBadRequest, "description must be at most 2000 characters")
			return
		}
		if body.Priority != nil {
			if !validPriority(*body.Priority) {
				writeError(w, http.StatusBadRequest, "priority must be low, medium, or high")
				return
			}
			patch.Priority = body.Priority
		}
		if body.DueDate != nil {
			if *body.DueDate == "" {
				patch.ClearDue = true
			} else {
				due, ok := parseDueDate(*body.DueDate)
				if !ok {
					writeError(w, http.StatusBadRequest, "dueDate must be RFC 3339 or YYYY-MM-DD")
					return
				}
				patch.DueDate = due
			}
		}
		payload, err := s.service.UpdateTask(r.Context(), session, taskID, patch)
		if err != nil {
			status, message := mapError(err)
			writeError(w, status, message)
			return
		}
		writeSuccess(w, http.StatusOK, payload)
		return
	}

	if len(parts) == 3 && r.Method == http.MethodDelete {
		if err := s.service.DeleteTask(r.Context(), session, taskID); err != nil {
			status, message := mapError(err)
			writeError(w, status, message)
			return
		}
		writeMessage(w, http.StatusOK, nil, "Task deleted")
		return
	}

	if len(parts) == 4 && parts[3] == "move" && r.Method == http.MethodPut {
		var body struct {
			ListID   string `json:"listId"`
			Position *int   `json:"position"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if body.ListID == "" || body.Position == nil || *body.Position < 0 {
			writeError(w, http.StatusBadRequest, "listId and a non-negative position are required")
			return
		}
		payload, err := s.service.MoveTask(r.Context(), session, taskID, body.ListID, *body.Position)
		if err != nil {
			status, message := mapError(err)
			writeError(w, status, message)
			return
		}
		writeSuccess(w, http.StatusOK, payload)
		return
	}

	if len(parts) == 4 && parts[3] == "assign" && r.Method == http.MethodPost {
		var body struct {
			UserID string `json:"userId"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if body.UserID == "" {
			writeError(w, http.StatusBadRequest, "userId is required")
			return
		}
		payload, message, err := s.service.AssignTask(r.Context(), session, taskID, body.UserID)
		if err != nil {
			status, msg := mapError(err)
			writeError(w, status, msg)
			return
		}
		if message != "" {
			writeMessage(w, http.StatusOK, payload, message)
			return
		}
		writeSuccess(w, http.StatusCreated, payload)
		return
	}

	if len(parts) == 5 && parts[3] == "assign" && r.Method == http.MethodDelete {
		payload, err := s.service.UnassignTask(r.Context(), session, taskID, parts[4])
		if err != nil {
			status, message := mapError(err)
			writeError(w, status, message)
			return
		}
		writeSuccess(w, http.StatusOK, payload)
		return
	}

	writeError(w, http.StatusNotFound, "Not found")
}

// ── Plumbing ──

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return Session{}, false
	}
	session, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return Session{}, false
	}
	return session, true
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush lets the SSE handler stream through the recorder.
func (r *statusRecorder) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeSuccess(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, map[string]any{"status": "success", "data": data})
}

func writeMessage(w http.ResponseWriter, status int, data any, message string) {
	envelope := map[string]any{"status": "success", "message": message}
	if data != nil {
		envelope["data"] = data
	}
	writeJSON(w, status, envelope)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"status": "error", "message": message})
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed < 1 {
		return fallback
	}
	return parsed
}

func validateTitle(title string, max int) string {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return "title is required"
	}
	if len(trimmed) > max {
		return fmt.Sprintf("title must be at most %d characters", max)
	}
	return ""
}

func validPriority(priority string) bool {
	return priority == "low" || priority == "medium" || priority == "high"
}

// parseDueDate accepts RFC 3339 or a bare YYYY-MM-DD date. An empty string
// means no due date.
func parseDueDate(raw string) (*time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, true
	}
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return &parsed, true
	}
	if parsed, err := time.Parse("2006-01-02", raw); err == nil {
		return &parsed, true
	}
	return nil, false
}

func mapError(err error) (int, string) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Message
	}
	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "Not found"
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, "Unauthorized"
	}
	return http.StatusInternalServerError, "Server error"
}
