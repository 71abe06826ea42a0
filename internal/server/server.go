// Package server provides HTTP and WebSocket handlers
package server

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	apperrors "github.com/GriffinCanCode/screenlocator/internal/errors"
	"github.com/GriffinCanCode/screenlocator/internal/icons"
	"github.com/GriffinCanCode/screenlocator/internal/locator"
	"github.com/GriffinCanCode/screenlocator/internal/orchestrator"
	"github.com/GriffinCanCode/screenlocator/internal/orchestrator/history"
	"github.com/GriffinCanCode/screenlocator/internal/resilience"
	"github.com/GriffinCanCode/screenlocator/internal/trace"
)

// Service is the part of the orchestrator the server drives.
type Service interface {
	Locate(ctx context.Context, name string) (orchestrator.LocateResult, error)
	LocateImage(ctx context.Context, name string, img image.Image) (orchestrator.LocateResult, error)
	Refresh(ctx context.Context) (orchestrator.SnapshotInfo, error)
	Snapshot() (orchestrator.SnapshotInfo, bool)
	CaptureStats() resilience.Stats
	Icons() []icons.Info
	AddIcon(name string, img image.Image) (icons.Info, error)
	RemoveIcon(name string) error
	History(icon string, n int) []history.Entry
	Events() <-chan history.Event
}

// Message types.
type Message struct {
	Type string `json:"type"`
}

type LocateMessage struct {
	Type    string `json:"type"`
	Icon    string `json:"icon"`
	TraceID string `json:"trace_id,omitempty"`
}

type StepMessage struct {
	Type string `json:"type"`
	locator.Step
}

type MatchMessage struct {
	Type string `json:"type"`
	history.Entry
}

type ResultMessage struct {
	Type string `json:"type"`
	orchestrator.LocateResult
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// errorBody is the JSON body of failed HTTP requests.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// rateLimiter tracks message timestamps using a sliding window.
type rateLimiter struct {
	timestamps []time.Time
	mu         sync.Mutex
}

// allow checks if a message is allowed and records the timestamp if so.
func (r *rateLimiter) allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-RateLimitWindow)

	valid := r.timestamps[:0]
	for _, t := range r.timestamps {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	r.timestamps = valid

	if len(r.timestamps) >= RateLimitMessages {
		return false
	}

	r.timestamps = append(r.timestamps, now)
	return true
}

// Server handles HTTP and WebSocket connections.
type Server struct {
	svc        Service
	mu         sync.RWMutex
	conns      map[*websocket.Conn]struct{}
	rateLimits map[*websocket.Conn]*rateLimiter
}

// New creates a new server and starts pushing svc's events to WebSocket
// clients.
func New(svc Service) *Server {
	s := &Server{
		svc:        svc,
		conns:      make(map[*websocket.Conn]struct{}),
		rateLimits: make(map[*websocket.Conn]*rateLimiter),
	}
	go s.broadcastEvents()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// WebSocket endpoint
	mux.HandleFunc("/ws", s.handleWebSocket)

	// REST API
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/snapshot", s.handleSnapshot)
	mux.HandleFunc("POST /api/snapshot", s.handleRefresh)
	mux.HandleFunc("GET /api/icons", s.handleIcons)
	mux.HandleFunc("PUT /api/icons/{name}", s.handleAddIcon)
	mux.HandleFunc("DELETE /api/icons/{name}", s.handleRemoveIcon)
	mux.HandleFunc("POST /api/icons/{name}/locate", s.handleLocate)
	mux.HandleFunc("POST /api/locate", s.handleLocateImage)
	mux.HandleFunc("GET /api/history", s.handleHistory)

	// Apply middleware: trace -> CORS
	return corsMiddleware(trace.Middleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to its HTTP status. Errors outside the AppError
// family are reported as internal.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := apperrors.As(err)
	if !ok {
		appErr = apperrors.Wrap(err, apperrors.CodeInternal, "internal error")
	}
	status := appErr.HTTPStatus()
	log := trace.Logger(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "path", r.URL.Path, "error", err)
	} else {
		log.Debug("request rejected", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorBody{Code: appErr.Code.String(), Message: appErr.Message})
}

// readImage decodes the request body as an image.
func readImage(w http.ResponseWriter, r *http.Request) (image.Image, error) {
	img, err := icons.Decode(http.MaxBytesReader(w, r.Body, MaxImageBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apperrors.Newf(apperrors.CodeInvalidInput, "image larger than %d bytes", MaxImageBytes)
		}
		return nil, err
	}
	return img, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{"status": "ok", "icons": len(s.svc.Icons()), "capture": s.svc.CaptureStats()}
	if info, ok := s.svc.Snapshot(); ok {
		resp["snapshot"] = info.ID
	} else {
		resp["status"] = "waiting_for_snapshot"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	info, ok := s.svc.Snapshot()
	if !ok {
		writeError(w, r, apperrors.New(apperrors.CodeUnavailable, "no screen snapshot yet"))
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	info, err := s.svc.Refresh(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleIcons(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Icons())
}

func (s *Server) handleAddIcon(w http.ResponseWriter, r *http.Request) {
	img, err := readImage(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	info, err := s.svc.AddIcon(r.PathValue("name"), img)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

func (s *Server) handleRemoveIcon(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.RemoveIcon(r.PathValue("name")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLocate(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Locate(r.Context(), r.PathValue("name"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleLocateImage(w http.ResponseWriter, r *http.Request) {
	img, err := readImage(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.svc.LocateImage(r.Context(), r.URL.Query().Get("name"), img)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > MaxHistoryLimit {
			writeError(w, r, apperrors.Newf(apperrors.CodeInvalidInput, "limit must be between 0 and %d", MaxHistoryLimit))
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, s.svc.History(r.URL.Query().Get("icon"), limit))
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.rateLimits[conn] = &rateLimiter{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		delete(s.rateLimits, conn)
		s.mu.Unlock()
	}()

	baseCtx := r.Context()
	log := trace.Logger(baseCtx)
	log.Info("websocket connected", "remote", r.RemoteAddr)

	for {
		var msg json.RawMessage
		if err := wsjson.Read(baseCtx, conn, &msg); err != nil {
			log.Debug("websocket read error", "error", err)
			return
		}

		s.mu.RLock()
		rl := s.rateLimits[conn]
		s.mu.RUnlock()

		if !rl.allow() {
			log.Warn("rate limit exceeded", "remote", r.RemoteAddr)
			_ = wsjson.Write(baseCtx, conn, ErrorMessage{Type: "error", Message: "rate limit exceeded"})
			continue
		}

		var base Message
		if err := json.Unmarshal(msg, &base); err != nil {
			_ = wsjson.Write(baseCtx, conn, ErrorMessage{Type: "error", Message: "invalid message"})
			continue
		}

		switch base.Type {
		case "locate":
			var req LocateMessage
			if err := json.Unmarshal(msg, &req); err != nil {
				continue
			}
			ctx := baseCtx
			if tc, ok := trace.ExtractFromJSON(msg); ok {
				ctx = trace.WithContext(ctx, tc)
			}
			s.handleLocateMessage(ctx, conn, req.Icon)
		default:
			_ = wsjson.Write(baseCtx, conn, ErrorMessage{Type: "error", Message: "unknown message type " + strconv.Quote(base.Type)})
		}
	}
}

func (s *Server) handleLocateMessage(ctx context.Context, conn *websocket.Conn, icon string) {
	res, err := s.svc.Locate(ctx, icon)
	if err != nil {
		msg := ErrorMessage{Type: "error", Message: err.Error()}
		if appErr, ok := apperrors.As(err); ok {
			msg.Code, msg.Message = appErr.Code.String(), appErr.Message
		}
		_ = wsjson.Write(ctx, conn, msg)
		return
	}
	_ = wsjson.Write(ctx, conn, ResultMessage{Type: "result", LocateResult: res})
}

func (s *Server) broadcastEvents() {
	for evt := range s.svc.Events() {
		var msg any
		switch evt.Type {
		case history.EventStep:
			msg = StepMessage{Type: "step", Step: *evt.Step}
		case history.EventMatch:
			msg = MatchMessage{Type: "match", Entry: *evt.Entry}
		default:
			continue
		}

		s.mu.RLock()
		for conn := range s.conns {
			go func(c *websocket.Conn, m any) {
				ctx, cancel := context.WithTimeout(context.Background(), WriteTimeout)
				defer cancel()
				_ = wsjson.Write(ctx, c, m)
			}(conn, msg)
		}
		s.mu.RUnlock()
	}
}
