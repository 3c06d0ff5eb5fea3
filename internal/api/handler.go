// Package api exposes the tutoring engine over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/abhisek/lessonloop/internal/exposition"
	"github.com/abhisek/lessonloop/internal/lesson"
	"github.com/abhisek/lessonloop/internal/logger"
	"github.com/abhisek/lessonloop/internal/store"
	"github.com/abhisek/lessonloop/internal/tutor"
)

// Engine is the caller surface the API serves.
type Engine interface {
	GetOrCreateSession(ctx context.Context, key lesson.Key) (*tutor.SessionView, error)
	ProcessTurn(ctx context.Context, key lesson.Key, text string) (*tutor.TurnResult, error)
	GenerateExercise(ctx context.Context, key lesson.Key) (*tutor.TurnResult, error)
	GenerateAssessmentQuestion(ctx context.Context, key lesson.Key) (*tutor.TurnResult, error)
	UpdateProgressStatus(ctx context.Context, key lesson.Key, status string) (*lesson.Session, error)
	History(ctx context.Context, key lesson.Key, limit int) ([]lesson.Message, error)
}

// Handler serves the /v1 routes.
type Handler struct {
	engine Engine
	log    *logger.Logger
}

// NewHandler creates a Handler.
func NewHandler(engine Engine, log *logger.Logger) *Handler {
	return &Handler{engine: engine, log: logger.OrNop(log)}
}

// Router returns the full HTTP handler with middleware.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(h.accessLog)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/healthz"))

	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes mounts the session routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/v1/sessions", func(r chi.Router) {
		r.Post("/", h.createSession)
		r.Post("/turn", h.turn)
		r.Post("/exercise", h.exercise)
		r.Post("/assessment", h.assessment)
		r.Put("/progress", h.progress)
		r.Get("/history", h.history)
	})
}

// sessionRequest addresses a session; Text and Status are used by the
// routes that need them.
type sessionRequest struct {
	UserID      string `json:"user_id"`
	SyllabusID  string `json:"syllabus_id"`
	ModuleIndex int    `json:"module_index"`
	LessonIndex int    `json:"lesson_index"`
	Text        string `json:"text,omitempty"`
	Status      string `json:"status,omitempty"`
}

func (r sessionRequest) key() lesson.Key {
	return lesson.Key{UserID: r.UserID, Ref: lesson.Ref{
		SyllabusID:  r.SyllabusID,
		ModuleIndex: r.ModuleIndex,
		LessonIndex: r.LessonIndex,
	}}
}

type sessionResponse struct {
	Session lesson.Session   `json:"session"`
	Summary lesson.Summary   `json:"summary"`
	History []lesson.Message `json:"history,omitempty"`
	Welcome *lesson.Message  `json:"welcome,omitempty"`
}

type turnResponse struct {
	Session      lesson.Session   `json:"session"`
	Summary      lesson.Summary   `json:"summary"`
	Messages     []lesson.Message `json:"messages"`
	ErrorMessage string           `json:"error_message,omitempty"`
}

func newTurnResponse(res *tutor.TurnResult) turnResponse {
	return turnResponse{
		Session:      res.Session,
		Summary:      res.Session.Summary(),
		Messages:     res.Messages,
		ErrorMessage: res.ErrorMessage,
	}
}

func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	v, err := h.engine.GetOrCreateSession(r.Context(), req.key())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	status := http.StatusOK
	if v.Welcome != nil {
		status = http.StatusCreated
	}
	JSON(w, status, sessionResponse{Session: v.Session, Summary: v.Session.Summary(), History: v.History, Welcome: v.Welcome})
}

func (h *Handler) turn(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	res, err := h.engine.ProcessTurn(r.Context(), req.key(), req.Text)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, newTurnResponse(res))
}

func (h *Handler) exercise(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	res, err := h.engine.GenerateExercise(r.Context(), req.key())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, newTurnResponse(res))
}

func (h *Handler) assessment(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	res, err := h.engine.GenerateAssessmentQuestion(r.Context(), req.key())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, newTurnResponse(res))
}

func (h *Handler) progress(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	s, err := h.engine.UpdateProgressStatus(r.Context(), req.key(), req.Status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, sessionResponse{Session: *s, Summary: s.Summary()})
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := sessionRequest{UserID: q.Get("user_id"), SyllabusID: q.Get("syllabus_id")}
	var err error
	if req.ModuleIndex, err = intParam(q.Get("module_index")); err != nil {
		Error(w, http.StatusBadRequest, "module_index must be an integer")
		return
	}
	if req.LessonIndex, err = intParam(q.Get("lesson_index")); err != nil {
		Error(w, http.StatusBadRequest, "lesson_index must be an integer")
		return
	}
	limit, err := intParam(q.Get("limit"))
	if err != nil || limit < 0 {
		Error(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}
	if err := req.key().Validate(); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	msgs, err := h.engine.History(r.Context(), req.key(), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if msgs == nil {
		msgs = []lesson.Message{}
	}
	JSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (sessionRequest, bool) {
	var req sessionRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return req, false
	}
	if err := req.key().Validate(); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return req, false
	}
	return req, true
}

// fail maps engine errors to status codes.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, tutor.ErrInvalidStatus):
		Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, tutor.ErrNoSession), errors.Is(err, exposition.ErrUnknownLesson):
		Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrVersionConflict):
		Error(w, http.StatusConflict, "session was modified concurrently, retry the request")
	default:
		h.log.Error("request failed", "path", r.URL.Path, "request_id", w.Header().Get(requestIDHeader), "error", err)
		Error(w, http.StatusInternalServerError, "internal error")
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

const requestIDHeader = "X-Request-ID"

// requestID echoes the caller's X-Request-ID or assigns a fresh one.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.log.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", w.Header().Get(requestIDHeader),
		)
	})
}
