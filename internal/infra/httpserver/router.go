package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/bryanwahyu/melascope-dx/internal/application/chat"
	"github.com/bryanwahyu/melascope-dx/internal/application/sessions"
	domain "github.com/bryanwahyu/melascope-dx/internal/domain/assessment"
	"github.com/bryanwahyu/melascope-dx/internal/infra/storage"
	"github.com/bryanwahyu/melascope-dx/internal/middleware"
)

const (
	defaultMaxUpload = 10 << 20
	// room for multipart boundaries and part headers on top of the file itself
	multipartOverhead = 16 << 10
)

var errBadRequest = errors.New("bad request")

// PreviewOpener serves preview bytes kept in process.
type PreviewOpener interface {
	Open(key string) ([]byte, string, error)
}

type Options struct {
	Registry       *sessions.Registry
	Previews       PreviewOpener // nil when previews live in object storage
	Metrics        *middleware.Metrics
	Checkers       map[string]middleware.HealthChecker
	Limiter        *middleware.RateLimiter // nil disables rate limiting
	AllowedOrigins []string
	MaxUploadBytes int64
	Logger         zerolog.Logger
}

type Router struct {
	reg       *sessions.Registry
	previews  PreviewOpener
	maxUpload int64
	log       zerolog.Logger
}

func NewRouter(opts Options) http.Handler {
	r := &Router{
		reg:       opts.Registry,
		previews:  opts.Previews,
		maxUpload: opts.MaxUploadBytes,
		log:       opts.Logger,
	}
	if r.maxUpload <= 0 {
		r.maxUpload = defaultMaxUpload
	}
	if opts.Metrics == nil {
		opts.Metrics = middleware.NewMetrics()
	}

	mux := chi.NewRouter()
	mux.Use(middleware.Logging(opts.Logger))
	mux.Use(middleware.Recover(opts.Logger))
	mux.Use(opts.Metrics.Middleware)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	mux.Get("/health", middleware.LivenessHandler)
	mux.Get("/ready", middleware.ReadinessHandler(opts.Checkers))
	mux.Get("/metrics", opts.Metrics.Handler)

	limited := func(h http.HandlerFunc) http.Handler {
		if opts.Limiter == nil {
			return h
		}
		return middleware.RateLimit(opts.Limiter)(h)
	}

	mux.Route("/v1", func(rt chi.Router) {
		rt.Post("/sessions", r.wrap(r.handleCreateSession))
		rt.Route("/sessions/{id}", func(s chi.Router) {
			s.Get("/", r.wrap(r.handleGetSession))
			s.Delete("/", r.wrap(r.handleCloseSession))
			s.Put("/file", r.wrap(r.handleSelectFile))
			s.Delete("/file", r.wrap(r.handleReset))
			s.Method(http.MethodPost, "/analyze", limited(r.wrap(r.handleAnalyze)))
			s.Get("/chat", r.wrap(r.handleGetChat))
			s.Method(http.MethodPost, "/chat", limited(r.wrap(r.handleChat)))
		})
		rt.Get("/previews/{key}", r.wrap(r.handlePreview))
		rt.Get("/history", r.wrap(r.handleHistory))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}

		status, msg := http.StatusInternalServerError, err.Error()
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, sessions.ErrSessionNotFound), errors.Is(err, storage.ErrPreviewNotFound):
			status = http.StatusNotFound
		case errors.Is(err, domain.ErrClosed):
			status = http.StatusGone
		case errors.Is(err, domain.ErrNoFile),
			errors.Is(err, domain.ErrAnalysisInProgress),
			errors.Is(err, domain.ErrAlreadyAnalyzed),
			errors.Is(err, domain.ErrReset),
			errors.Is(err, sessions.ErrNoChat),
			errors.Is(err, chat.ErrBusy):
			status = http.StatusConflict
		case errors.Is(err, chat.ErrEmptyMessage), errors.Is(err, errBadRequest):
			status = http.StatusBadRequest
		case errors.As(err, &tooLarge):
			status = http.StatusRequestEntityTooLarge
		case errors.Is(err, domain.ErrAnalysisFailed):
			status, msg = http.StatusBadGateway, domain.FailureNotice
		}

		if status >= 500 {
			r.log.Error().Err(err).Str("path", req.URL.Path).Int("status", status).Msg("request failed")
		}
		_ = writeJSON(w, status, errorResponse{Error: http.StatusText(status), Message: msg})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func (r *Router) session(req *http.Request) (*sessions.Session, error) {
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateSessionID(id); err != nil {
		return nil, fmt.Errorf("%w: %w", errBadRequest, err)
	}
	return r.reg.Get(id)
}

// POST /v1/sessions
func (r *Router) handleCreateSession(w http.ResponseWriter, req *http.Request) error {
	s := r.reg.Create()
	return writeJSON(w, http.StatusCreated, s.View())
}

// GET /v1/sessions/{id}
func (r *Router) handleGetSession(w http.ResponseWriter, req *http.Request) error {
	s, err := r.session(req)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, s.View())
}

// DELETE /v1/sessions/{id}
func (r *Router) handleCloseSession(w http.ResponseWriter, req *http.Request) error {
	s, err := r.session(req)
	if err != nil {
		return err
	}
	if err := r.reg.Close(req.Context(), s.ID); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// PUT /v1/sessions/{id}/file
// Body: multipart form, field "file"
func (r *Router) handleSelectFile(w http.ResponseWriter, req *http.Request) error {
	s, err := r.session(req)
	if err != nil {
		return err
	}
	if req.ContentLength > r.maxUpload+multipartOverhead {
		return &http.MaxBytesError{Limit: r.maxUpload}
	}
	req.Body = http.MaxBytesReader(w, req.Body, r.maxUpload+multipartOverhead)

	f, hdr, err := req.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return fmt.Errorf("%w: form field \"file\": %w", errBadRequest, err)
	}
	defer f.Close()
	if hdr.Size > r.maxUpload {
		return &http.MaxBytesError{Limit: r.maxUpload}
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("read upload: %w", err)
	}

	file := domain.NewFile(middleware.SanitizeString(hdr.Filename), hdr.Header.Get("Content-Type"), data)
	if err := s.SelectFile(req.Context(), file); err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, s.View())
}

// DELETE /v1/sessions/{id}/file
func (r *Router) handleReset(w http.ResponseWriter, req *http.Request) error {
	s, err := r.session(req)
	if err != nil {
		return err
	}
	if err := s.Reset(req.Context()); err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, s.View())
}

// POST /v1/sessions/{id}/analyze?async=true
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	s, err := r.session(req)
	if err != nil {
		return err
	}
	async, _ := strconv.ParseBool(req.URL.Query().Get("async"))

	// in-flight calls are not cancelled when the browser goes away
	ctx := context.WithoutCancel(req.Context())
	if err := s.StartAnalysis(ctx, async); err != nil {
		return err
	}

	status := http.StatusOK
	if async {
		status = http.StatusAccepted
	}
	return writeJSON(w, status, s.View())
}

type chatView struct {
	Available bool              `json:"available"`
	Context   *chat.Context     `json:"context,omitempty"`
	Reply     string            `json:"reply,omitempty"`
	Turns     []domain.ChatTurn `json:"turns"`
}

// GET /v1/sessions/{id}/chat
func (r *Router) handleGetChat(w http.ResponseWriter, req *http.Request) error {
	s, err := r.session(req)
	if err != nil {
		return err
	}
	c := s.Chat()
	if c == nil {
		return writeJSON(w, http.StatusOK, chatView{Turns: []domain.ChatTurn{}})
	}
	cc := c.Context()
	return writeJSON(w, http.StatusOK, chatView{Available: true, Context: &cc, Turns: c.Turns()})
}

// POST /v1/sessions/{id}/chat
// Body: {"message": "..."}
func (r *Router) handleChat(w http.ResponseWriter, req *http.Request) error {
	s, err := r.session(req)
	if err != nil {
		return err
	}
	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(io.LimitReader(req.Body, 64<<10)).Decode(&body); err != nil {
		return fmt.Errorf("%w: %w", errBadRequest, err)
	}
	msg := middleware.SanitizeString(body.Message)
	if err := middleware.ValidateChatMessage(msg); err != nil {
		return fmt.Errorf("%w: %w", errBadRequest, err)
	}

	reply, turns, err := s.SendChat(req.Context(), msg)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, chatView{Available: true, Reply: reply, Turns: turns})
}

// GET /v1/previews/{key}
func (r *Router) handlePreview(w http.ResponseWriter, req *http.Request) error {
	if r.previews == nil {
		return storage.ErrPreviewNotFound
	}
	data, ct, err := r.previews.Open(chi.URLParam(req, "key"))
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	_, err = w.Write(data)
	return err
}

// GET /v1/history?limit=20
func (r *Router) handleHistory(w http.ResponseWriter, req *http.Request) error {
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	items := r.reg.History().Recent(middleware.ValidateLimit(limit))
	return writeJSON(w, http.StatusOK, map[string]any{"items": items})
}
