package httptransport

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"

	"github.com/arcward/x12elig"
	"github.com/arcward/x12elig/internal/metrics"
	"github.com/arcward/x12elig/internal/service"
)

// maxBodyBytes bounds request bodies. Decode content above the core's
// own limit is still read so it can be rejected with a proper error.
const maxBodyBytes = 1 << 20

// Error codes returned in ErrorResponse
const (
	CodeInvalidRequest  = "INVALID_REQUEST"
	CodeEncodeFailed    = "ENCODE_FAILED"
	CodeUnsupportedType = "UNSUPPORTED_TRANSACTION"
	CodeStorageError    = "STORAGE_ERROR"
)

// EncodeResponse is returned by POST /v1/encode when the result is saved
type EncodeResponse struct {
	Success bool   `json:"success"`
	Path    string `json:"path"`
}

type ErrorResponse struct {
	Success bool     `json:"success"`
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Errors  []string `json:"errors,omitempty"`
}

// Handler is the thin HTTP layer over a service.Processor
type Handler struct {
	processor *service.Processor
	logger    *slog.Logger
}

func NewHandler(processor *service.Processor, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{processor: processor, logger: logger}
}

// NewRouter wires all endpoints
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(h.logRequests)

	r.Get("/healthz", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Route(
		"/v1", func(r chi.Router) {
			r.Post("/decode", h.handleDecode)
			r.Post("/encode", h.handleEncode)
		},
	)
	return r
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			h.logger.InfoContext(
				r.Context(),
				"request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		},
	)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(
		w, http.StatusOK, map[string]any{
			"status":            "ok",
			"transaction_types": h.processor.TransactionTypes(),
		},
	)
}

// handleDecode accepts raw X12 content. The optional `type` query
// parameter is the expected transaction type.
func (h *Handler) handleDecode(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, CodeInvalidRequest, err.Error(), nil)
		return
	}

	result := h.processor.Decode(r.Context(), string(body), r.URL.Query().Get("type"))
	status := http.StatusOK
	if !result.OK() {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, result.Report())
}

// handleEncode accepts a JSON object of record data and responds with X12
// text. With `save=true` the document is written to the configured store
// instead, under the `dir` query parameter.
func (h *Handler) handleEncode(w http.ResponseWriter, r *http.Request) {
	var data map[string]any
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&data); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid JSON body", nil)
		return
	}
	data, err := x12elig.SanitizeData(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error(), service.ErrorStrings(err))
		return
	}

	q := r.URL.Query()
	txType := q.Get("type")
	if txType == "" {
		txType = "270"
	}

	if save, _ := strconv.ParseBool(q.Get("save")); save {
		name, err := h.processor.EncodeToStore(r.Context(), data, txType, q.Get("dir"))
		if err != nil {
			h.writeEncodeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, EncodeResponse{Success: true, Path: name})
		return
	}

	content, err := h.processor.Encode(r.Context(), data, txType)
	if err != nil {
		h.writeEncodeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/edi-x12")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, content)
}

func (h *Handler) writeEncodeError(w http.ResponseWriter, err error) {
	var fieldErr *x12elig.FieldError
	switch {
	case errors.Is(err, x12elig.ErrUnsupportedTransaction):
		writeError(w, http.StatusBadRequest, CodeUnsupportedType, err.Error(), nil)
	case errors.Is(err, service.ErrInvalidDir):
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error(), nil)
	case errors.As(err, &fieldErr),
		errors.Is(err, x12elig.ErrInvalidRecord),
		errors.Is(err, x12elig.ErrInvalidEnvelope),
		errors.Is(err, x12elig.ErrInvalidControlNumber),
		errors.Is(err, x12elig.ErrDelimiterInValue),
		errors.Is(err, x12elig.ErrInvalidSegment):
		writeError(w, http.StatusUnprocessableEntity, CodeEncodeFailed, err.Error(), nil)
	case errors.Is(err, service.ErrStorage):
		h.logger.Error("storing document failed", "error", err)
		writeError(w, http.StatusInternalServerError, CodeStorageError, "failed to store document", nil)
	default:
		h.logger.Error("encode failed", "error", err)
		writeError(w, http.StatusInternalServerError, CodeEncodeFailed, "failed to encode document", nil)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, message string, errs []string) {
	writeJSON(
		w, status, ErrorResponse{
			Code:    code,
			Message: message,
			Errors:  errs,
		},
	)
}
