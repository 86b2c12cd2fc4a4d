package conversion

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// HTTPOptions tunes the router.
type HTTPOptions struct {
	RequestTimeout time.Duration
	CORSOrigins    []string
}

// HTTPHandler exposes the push, upload-intent, status and health endpoints.
type HTTPHandler struct {
	service *Service
	logger  *zap.Logger
	router  chi.Router
}

// NewHTTPHandler constructs the HTTP handler and wires routes.
func NewHTTPHandler(service *Service, logger *zap.Logger, opts HTTPOptions) *HTTPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &HTTPHandler{
		service: service,
		logger:  logger,
	}
	h.buildRouter(opts)
	return h
}

func (h *HTTPHandler) buildRouter(opts HTTPOptions) {
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		MaxAge:         300,
	}))

	r.Get("/", h.handleRootGet)
	r.Post("/", h.handleRootPost)
	r.Get("/healthz", h.handleHealth)
	r.Post("/pubsub", h.handlePush)
	r.Post("/pubsub/", h.handlePush)
	r.Post("/generate-upload-url", h.handleUploadURL)
	r.Get("/check-status/{file_name}", h.handleStatus)

	h.router = r
}

// Router exposes the configured chi router.
func (h *HTTPHandler) Router() http.Handler {
	return h.router
}

func (h *HTTPHandler) handleRootGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "PDF to CMYK converter is running",
	})
}

func (h *HTTPHandler) handleRootPost(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "POST route handled",
	})
}

func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

type ingestResponse struct {
	Status        Outcome `json:"status"`
	Reason        string  `json:"reason,omitempty"`
	ConvertedFile string  `json:"converted_file,omitempty"`
	DownloadURL   string  `json:"download_url,omitempty"`
}

func (h *HTTPHandler) handlePush(w http.ResponseWriter, r *http.Request) {
	var envelope PushEnvelope
	if err := decodeBody(w, r, &envelope); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid Pub/Sub push envelope")
		return
	}

	fileName, err := envelope.Message.FileName()
	if err != nil {
		h.fail(w, "ingest", err, "Internal error: ")
		return
	}

	result, err := h.service.Ingest(r.Context(), fileName)
	if err != nil {
		h.fail(w, "ingest", err, "Internal error: ")
		return
	}

	writeJSON(w, http.StatusOK, ingestResponse{
		Status:        result.Status,
		Reason:        result.Reason,
		ConvertedFile: result.ConvertedFile,
		DownloadURL:   result.DownloadURL,
	})
}

type uploadRequest struct {
	FileName string `json:"file_name"`
}

type uploadResponse struct {
	UploadURL        string `json:"upload_url"`
	FileName         string `json:"file_name"`
	OriginalName     string `json:"original_name"`
	ExpiresInMinutes int    `json:"expires_in_minutes"`
}

func (h *HTTPHandler) handleUploadURL(w http.ResponseWriter, r *http.Request) {
	var req uploadRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	intent, err := h.service.IssueUpload(r.Context(), req.FileName)
	if err != nil {
		h.fail(w, "generate upload url", err, "Failed to generate upload URL: ")
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		UploadURL:        intent.UploadURL,
		FileName:         intent.FileName,
		OriginalName:     intent.OriginalName,
		ExpiresInMinutes: int(intent.ExpiresIn / time.Minute),
	})
}

type statusResponse struct {
	Status        string `json:"status"`
	ConvertedFile string `json:"converted_file"`
	DownloadURL   string `json:"download_url"`
	OriginalName  string `json:"original_name,omitempty"`
}

func (h *HTTPHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	fileName := chi.URLParam(r, "file_name")
	if r.URL.RawPath != "" {
		// chi routes on the escaped path when one is present.
		unescaped, err := url.PathUnescape(fileName)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid file name in path")
			return
		}
		fileName = unescaped
	}

	status, err := h.service.Status(r.Context(), fileName)
	if err != nil {
		h.fail(w, "check status", err, "Failed to check status: ")
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Status:        "completed",
		ConvertedFile: status.ConvertedFile,
		DownloadURL:   status.DownloadURL,
		OriginalName:  status.OriginalName,
	})
}

// fail writes the classified error. Client errors carry their own detail;
// conversion failures get a fixed message; anything else is summarised
// behind internalPrefix.
func (h *HTTPHandler) fail(w http.ResponseWriter, op string, err error, internalPrefix string) {
	kind := KindOf(err)
	detail := err.Error()

	var classified *Error
	if errors.As(err, &classified) && kind != KindInternal {
		detail = classified.Detail
	}

	switch kind {
	case KindBadRequest, KindNotFound:
		h.logger.Info(op+" rejected", zap.String("kind", kind.String()), zap.String("detail", detail))
	case KindConversionFailed:
		h.logger.Error(op+" failed", zap.String("kind", kind.String()), zap.Error(err))
		detail = "Ghostscript conversion failed."
	default:
		h.logger.Error(op+" failed", zap.String("kind", kind.String()), zap.Error(err))
		detail = internalPrefix + detail
	}

	writeError(w, kind.HTTPStatus(), detail)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{
		"detail": detail,
	})
}
