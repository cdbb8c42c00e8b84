package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/longkey1/chatassist/internal/chatassist"
	"github.com/longkey1/chatassist/pkg/logger"
	"github.com/longkey1/chatassist/pkg/metrics"
)

// Provider generates replies on behalf of widgets.
// *gemini.Client implements it.
type Provider interface {
	Generate(ctx context.Context, apiKey, model, prompt string) (string, error)
	GenerateWithFile(ctx context.Context, apiKey, model, prompt, mimeType string, data []byte) (string, error)
}

// PromptRequest is the body of POST /api/gemini
type PromptRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model"`
}

// PromptResponse is returned by POST /api/gemini
type PromptResponse struct {
	Text  string `json:"text"`
	Model string `json:"model"`
}

// UploadResponse is returned by POST /api/upload
type UploadResponse struct {
	Summary string `json:"summary"`
	Model   string `json:"model"`
}

// Handler serves the widget relay endpoints.
type Handler struct {
	provider       Provider
	apiKey         string
	maxUploadBytes int64
	log            *logger.Logger
}

// NewHandler creates a relay handler that calls provider with apiKey.
func NewHandler(provider Provider, apiKey string, maxUploadBytes int64, log *logger.Logger) *Handler {
	return &Handler{
		provider:       provider,
		apiKey:         apiKey,
		maxUploadBytes: maxUploadBytes,
		log:            log,
	}
}

// Prompt handles POST /api/gemini
func (h *Handler) Prompt(w http.ResponseWriter, r *http.Request) {
	var req PromptRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	model := modelOrDefault(req.Model)

	text, err := h.provider.Generate(r.Context(), h.apiKey, model, req.Prompt)
	h.record(r.Context(), "generate", model, err)
	if err != nil {
		h.writeProviderError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, PromptResponse{Text: text, Model: model})
}

// Upload handles POST /api/upload
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	prompt := r.FormValue("prompt")
	if strings.TrimSpace(prompt) == "" {
		prompt = chatassist.DefaultUploadPrompt
	}
	model := modelOrDefault(r.FormValue("model"))

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}

	summary, err := h.provider.GenerateWithFile(r.Context(), h.apiKey, model, prompt, mimeType, data)
	h.record(r.Context(), "upload", model, err)
	if err != nil {
		h.writeProviderError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, UploadResponse{Summary: summary, Model: model})
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

func (h *Handler) record(ctx context.Context, endpoint, model string, err error) {
	kind := "ok"
	if err != nil {
		kind = string(chatassist.KindOf(err))
		h.log.Warn("provider call failed",
			zap.String("endpoint", endpoint),
			zap.String("model", model),
			zap.String("kind", kind),
			zap.String("correlation_id", GetCorrelationID(ctx)),
			zap.Error(err),
		)
	}
	metrics.RecordProviderCall(endpoint, kind)
}

// writeProviderError maps a classified provider failure back to the status
// the widget's backend classifier expects.
func (h *Handler) writeProviderError(w http.ResponseWriter, err error) {
	ce := chatassist.AsChatError(err)
	writeError(w, StatusFor(ce.Kind), ce.Message)
}

// StatusFor returns the HTTP status the proxy uses for an error kind.
func StatusFor(kind chatassist.ErrorKind) int {
	switch kind {
	case chatassist.KindRateLimited:
		return http.StatusTooManyRequests
	case chatassist.KindUnauthorized:
		return http.StatusForbidden
	case chatassist.KindBadRequest, chatassist.KindEmptyPrompt:
		return http.StatusBadRequest
	case chatassist.KindModelNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func modelOrDefault(model string) string {
	if m := strings.TrimSpace(model); m != "" {
		return m
	}
	return chatassist.DefaultModel
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}
