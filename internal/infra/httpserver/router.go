package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	appanalysis "github.com/bryanwahyu/healthwave/internal/application/analysis"
	appchat "github.com/bryanwahyu/healthwave/internal/application/chat"
	"github.com/bryanwahyu/healthwave/internal/domain/ai"
	domain "github.com/bryanwahyu/healthwave/internal/domain/analysis"
	"github.com/bryanwahyu/healthwave/internal/domain/conversation"
	"github.com/bryanwahyu/healthwave/internal/domain/failures"
	"github.com/bryanwahyu/healthwave/internal/middleware"
)

// multipart bodies carry field headers on top of the file itself
const multipartOverhead = 1 << 20

type AnalysisService interface {
	Analyze(ctx context.Context, cmd appanalysis.AnalyzeCommand) (*domain.Result, error)
	Get(ctx context.Context, id domain.AnalysisID) (*domain.Result, error)
	ListByPatient(ctx context.Context, patientID int64, page, pageSize int) ([]*domain.Result, error)
	ListByDoctor(ctx context.Context, doctorID int64, page, pageSize int) ([]*domain.Result, error)
}

type ChatService interface {
	Respond(ctx context.Context, cmd appchat.RespondCommand) (appchat.Reply, error)
	History(ctx context.Context, userID int64, limit int) ([]*conversation.Turn, error)
}

// Deps wires the router. Limiter and AllowedOrigins are optional.
type Deps struct {
	Analysis       AnalysisService
	Chat           ChatService
	Metrics        *middleware.Metrics
	Logger         *slog.Logger
	Checkers       map[string]middleware.HealthChecker
	APIKeys        map[int64]string
	Limiter        *middleware.RateLimiter
	AllowedOrigins []string
	MaxUploadBytes int64
}

type Router struct {
	analysis  AnalysisService
	chat      ChatService
	metrics   *middleware.Metrics
	logger    *slog.Logger
	maxUpload int64
}

func NewRouter(d Deps) http.Handler {
	r := &Router{
		analysis:  d.Analysis,
		chat:      d.Chat,
		metrics:   d.Metrics,
		logger:    d.Logger,
		maxUpload: d.MaxUploadBytes,
	}
	if r.metrics == nil {
		r.metrics = middleware.NewMetrics()
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.maxUpload <= 0 {
		r.maxUpload = 16 << 20
	}

	mux := chi.NewRouter()
	mux.Use(chimw.RequestID, chimw.RealIP, chimw.Recoverer)
	mux.Use(middleware.Logging(r.logger), r.metrics.Middleware)
	if len(d.AllowedOrigins) > 0 {
		mux.Use(cors.Handler(cors.Options{
			AllowedOrigins:   d.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	mux.Get("/health", middleware.HealthHandler(d.Checkers))
	mux.Get("/health/ready", middleware.ReadinessHandler(d.Checkers))
	mux.Get("/health/live", middleware.LivenessHandler)

	mux.Group(func(rt chi.Router) {
		rt.Use(middleware.APIKeyAuth(d.APIKeys))
		if d.Limiter != nil {
			rt.Use(middleware.RateLimit(d.Limiter))
		}
		rt.Get("/metrics", r.metrics.Handler)

		rt.Route("/v1", func(rt chi.Router) {
			rt.Post("/analyses", r.wrap(r.handleAnalyze))
			rt.Get("/analyses", r.wrap(r.handleListMine))
			rt.Get("/analyses/{id}", r.wrap(r.handleGet))
			rt.Get("/patients/{patientID}/analyses", r.wrap(r.handleListPatient))
			rt.Post("/chat", r.wrap(r.handleChat))
			rt.Get("/chat/history", r.wrap(r.handleHistory))
		})
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		status, kind := statusFor(err)
		msg := err.Error()
		if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
			r.logger.ErrorContext(req.Context(), "request failed",
				"path", req.URL.Path, "kind", kind, "error", err)
			msg = http.StatusText(status)
		}
		middleware.WriteError(w, status, string(kind), msg)
	}
}

func statusFor(err error) (int, failures.Kind) {
	kind := failures.KindOf(err)
	switch kind {
	case failures.KindInvalidInput:
		return http.StatusBadRequest, kind
	case failures.KindUnsupportedFileType:
		return http.StatusUnsupportedMediaType, kind
	case failures.KindUnknownDomain:
		return http.StatusUnprocessableEntity, kind
	case failures.KindModelUnavailable:
		return http.StatusServiceUnavailable, kind
	case failures.KindExternalService:
		if errors.Is(err, ai.ErrQuotaExceeded) {
			return http.StatusTooManyRequests, kind
		}
		return http.StatusBadGateway, kind
	case failures.KindNotFound:
		return http.StatusNotFound, kind
	default:
		return http.StatusInternalServerError, kind
	}
}

func callerID(req *http.Request) (int64, error) {
	id, ok := middleware.GetUserFromContext(req.Context())
	if !ok {
		return 0, fmt.Errorf("%w: unauthenticated caller", failures.ErrInvalidInput)
	}
	return id, nil
}

func pageParams(req *http.Request) (int, int) {
	page, _ := strconv.Atoi(req.URL.Query().Get("page"))
	size, _ := strconv.Atoi(req.URL.Query().Get("page_size"))
	return middleware.ValidatePage(page), middleware.ValidateLimit(size)
}

func (r *Router) parseMultipart(w http.ResponseWriter, req *http.Request) error {
	req.Body = http.MaxBytesReader(w, req.Body, r.maxUpload+multipartOverhead)
	if err := req.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("%w: upload exceeds %d bytes", failures.ErrInvalidInput, r.maxUpload)
		}
		return fmt.Errorf("%w: multipart form: %w", failures.ErrInvalidInput, err)
	}
	return nil
}

func formFile(req *http.Request, field string) (multipart.File, *multipart.FileHeader, error) {
	f, hdr, err := req.FormFile(field)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s file is required", failures.ErrInvalidInput, field)
	}
	return f, hdr, nil
}

// POST /v1/analyses
// multipart: image=<file>, patient_id=<id>, domain=lung|brain (optional)
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) (err error) {
	defer r.metrics.TrackAnalysis()()
	defer func() { r.metrics.AnalysisDone(err) }()

	doctor, err := callerID(req)
	if err != nil {
		return err
	}
	if err := r.parseMultipart(w, req); err != nil {
		return err
	}
	defer req.MultipartForm.RemoveAll()

	patient, err := middleware.ParseID(req.FormValue("patient_id"))
	if err != nil {
		return fmt.Errorf("%w: patient_id: %w", failures.ErrInvalidInput, err)
	}
	f, hdr, err := formFile(req, "image")
	if err != nil {
		return err
	}
	defer f.Close()

	res, err := r.analysis.Analyze(req.Context(), appanalysis.AnalyzeCommand{
		DoctorID:  doctor,
		PatientID: patient,
		Filename:  hdr.Filename,
		Domain:    middleware.SanitizeString(req.FormValue("domain")),
		Image:     f,
	})
	if err != nil {
		return err
	}
	return middleware.WriteJSON(w, http.StatusCreated, res)
}

// GET /v1/analyses/{id}
func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateAnalysisID(id); err != nil {
		return fmt.Errorf("%w: %w", failures.ErrInvalidInput, err)
	}
	res, err := r.analysis.Get(req.Context(), domain.AnalysisID(id))
	if err != nil {
		return err
	}
	return middleware.WriteJSON(w, http.StatusOK, res)
}

// GET /v1/patients/{patientID}/analyses?page=&page_size=
func (r *Router) handleListPatient(w http.ResponseWriter, req *http.Request) error {
	patient, err := middleware.ParseID(chi.URLParam(req, "patientID"))
	if err != nil {
		return fmt.Errorf("%w: %w", failures.ErrInvalidInput, err)
	}
	page, size := pageParams(req)
	list, err := r.analysis.ListByPatient(req.Context(), patient, page, size)
	if err != nil {
		return err
	}
	return middleware.WriteJSON(w, http.StatusOK, list)
}

// GET /v1/analyses?page=&page_size=
// Analyses requested by the calling doctor.
func (r *Router) handleListMine(w http.ResponseWriter, req *http.Request) error {
	doctor, err := callerID(req)
	if err != nil {
		return err
	}
	page, size := pageParams(req)
	list, err := r.analysis.ListByDoctor(req.Context(), doctor, page, size)
	if err != nil {
		return err
	}
	return middleware.WriteJSON(w, http.StatusOK, list)
}

type chatResponse struct {
	Status string `json:"status"`
	appchat.Reply
}

// POST /v1/chat
// Body: {"message": "..."} or multipart file=<document>
func (r *Router) handleChat(w http.ResponseWriter, req *http.Request) (err error) {
	defer func() { r.metrics.ChatDone(err) }()

	user, err := callerID(req)
	if err != nil {
		return err
	}
	cmd := appchat.RespondCommand{UserID: user}

	mediaType, _, _ := mime.ParseMediaType(req.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.parseMultipart(w, req); err != nil {
			return err
		}
		defer req.MultipartForm.RemoveAll()

		f, hdr, err := formFile(req, "file")
		if err != nil {
			return err
		}
		defer f.Close()
		cmd.File = &conversation.Attachment{Name: hdr.Filename, Body: f}
	} else {
		var body struct {
			Message string `json:"message"`
		}
		dec := json.NewDecoder(io.LimitReader(req.Body, r.maxUpload+multipartOverhead))
		if err := dec.Decode(&body); err != nil {
			return fmt.Errorf("%w: decode body: %w", failures.ErrInvalidInput, err)
		}
		cmd.Message = strings.TrimSpace(body.Message)
	}

	reply, err := r.chat.Respond(req.Context(), cmd)
	if err != nil {
		return err
	}
	return middleware.WriteJSON(w, http.StatusOK, chatResponse{Status: "ok", Reply: reply})
}

// GET /v1/chat/history?limit=20
func (r *Router) handleHistory(w http.ResponseWriter, req *http.Request) error {
	user, err := callerID(req)
	if err != nil {
		return err
	}
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	turns, err := r.chat.History(req.Context(), user, limit)
	if err != nil {
		return err
	}
	return middleware.WriteJSON(w, http.StatusOK, turns)
}
