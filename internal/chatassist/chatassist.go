// Package chatassist provides the core types shared by the chat widget:
// the session configuration, transcript messages, dispatch results and the
// classified error taxonomy.
// The request router (internal/router) and the conversation controller
// (internal/conversation) are built on these types.
package chatassist

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
)

const (
	// DefaultModel is used when neither the caller nor the config names a model.
	DefaultModel = "gemini-2.5-flash"

	// DefaultBackendURL is the proxy endpoint for text prompts.
	DefaultBackendURL = "/api/gemini"

	// DefaultUploadURL is the proxy endpoint for file uploads.
	DefaultUploadURL = "/api/upload"

	// DefaultGeminiBaseURL is the provider's public API root.
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	// DefaultUploadPrompt is sent with a file when the caller gives no prompt.
	DefaultUploadPrompt = "Analyze this file and provide a summary."

	// ModelStorageKey is the key under which the UI persists the selected model.
	ModelStorageKey = "chat-assistant-model"
)

// ModelInfo represents information about a model the widget can target.
type ModelInfo struct {
	ID          string // Model identifier (e.g., "gemini-2.5-flash")
	Description string // Human-readable description of the model
	IsDefault   bool   // Whether this is the default model
}

// KnownModels is the fallback list offered by the settings screen when the
// provider's model listing is unavailable.
var KnownModels = []ModelInfo{
	{ID: "gemini-2.5-flash", Description: "Fast and efficient Gemini 2.5", IsDefault: true},
	{ID: "gemini-2.5-pro", Description: "Advanced Gemini 2.5 for complex tasks"},
	{ID: "gemini-1.5-flash", Description: "Previous generation flash model"},
	{ID: "gemini-1.5-pro", Description: "Previous generation pro model"},
	{ID: "gemini-pro", Description: "First generation Gemini"},
}

// KnownModelIDs returns the identifiers of KnownModels in order.
func KnownModelIDs() []string {
	ids := make([]string, 0, len(KnownModels))
	for _, m := range KnownModels {
		ids = append(ids, m.ID)
	}
	return ids
}

// ChatConfig is supplied once per widget session by the embedding
// application. The core only reads it.
type ChatConfig struct {
	UseBackend    bool   // Route prompts through the caller's proxy instead of the provider
	APIKey        string // Provider credential, direct path only
	BackendURL    string // Proxy endpoint for prompts (default "/api/gemini")
	UploadURL     string // Proxy endpoint for uploads (falls back to BackendURL, then "/api/upload")
	BackendToken  string // Bearer token sent to the proxy, empty for none
	Origin        string // Base URL that relative proxy URLs are resolved against
	Model         string // Default model identifier
	GeminiBaseURL string // Provider API root, direct path only

	// UI-only settings, ignored by the core.
	Position    string
	ButtonColor string
}

// ModelOrDefault picks the model for a dispatch: the explicit argument, then
// the configured model, then DefaultModel.
func (c ChatConfig) ModelOrDefault(model string) string {
	if m := strings.TrimSpace(model); m != "" {
		return m
	}
	if m := strings.TrimSpace(c.Model); m != "" {
		return m
	}
	return DefaultModel
}

// PromptEndpoint returns the absolute proxy URL for text prompts.
func (c ChatConfig) PromptEndpoint() (string, error) {
	target := c.BackendURL
	if target == "" {
		target = DefaultBackendURL
	}
	return c.resolve(target)
}

// UploadEndpoint returns the absolute proxy URL for file uploads.
func (c ChatConfig) UploadEndpoint() (string, error) {
	target := c.UploadURL
	if target == "" {
		target = c.BackendURL
	}
	if target == "" {
		target = DefaultUploadURL
	}
	return c.resolve(target)
}

// resolve makes a proxy URL absolute against Origin.
func (c ChatConfig) resolve(target string) (string, error) {
	ref, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("invalid backend URL %q: %w", target, err)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	if c.Origin == "" {
		return "", fmt.Errorf("backend URL %q is relative and no origin is configured", target)
	}
	base, err := url.Parse(c.Origin)
	if err != nil || !base.IsAbs() {
		return "", fmt.Errorf("invalid origin %q", c.Origin)
	}
	return base.ResolveReference(ref).String(), nil
}

// Result is the normalized outcome of a successful dispatch.
type Result struct {
	Text   string          // Reply text extracted from the provider or backend
	Output string          // Alternate reply field some backends use
	Raw    json.RawMessage // Backend body, passed through as-is
}

// Reply returns the text the transcript should show: Text, then Output,
// then the raw backend body.
func (r *Result) Reply() string {
	if r == nil {
		return ""
	}
	if r.Text != "" {
		return r.Text
	}
	if r.Output != "" {
		return r.Output
	}
	return strings.TrimSpace(string(r.Raw))
}

// UploadResult is the outcome of a successful file upload.
type UploadResult struct {
	Summary string
}

// File is a user-selected file handed to the upload relay.
type File struct {
	Name        string    // Base name sent as the multipart filename
	ContentType string    // MIME type, empty when unknown
	Content     io.Reader // File bytes
}
