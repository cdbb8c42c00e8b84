// Package gemini is the direct-to-provider client for Google's Generative
// Language API. It builds generateContent requests, extracts the first
// candidate's text and classifies provider failures.
package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/longkey1/chatassist/internal/chatassist"
	"github.com/longkey1/chatassist/pkg/logger"
)

const (
	ProviderName   = "gemini"
	DefaultBaseURL = chatassist.DefaultGeminiBaseURL

	// DefaultTimeout bounds a single generateContent call.
	DefaultTimeout = 60 * time.Second

	// MaxResponseSize caps how much of a response body is read.
	MaxResponseSize = 10 * 1024 * 1024
)

// ModelsAPIResponse represents the response from Gemini's models endpoint
type ModelsAPIResponse struct {
	Models []GeminiModelData `json:"models"`
}

// GeminiModelData represents a single model in the API response
type GeminiModelData struct {
	Name                       string   `json:"name"`
	DisplayName                string   `json:"displayName"`
	Description                string   `json:"description"`
	SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
}

// GeminiRequest represents the request body for Gemini's generate content API
type GeminiRequest struct {
	Contents []GeminiContent `json:"contents"`
}

// GeminiContent represents a content item in the Gemini request format
type GeminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []GeminiPart `json:"parts"`
}

// GeminiPart is either a text part or an inline file part
type GeminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *GeminiInlineData `json:"inline_data,omitempty"`
}

// GeminiInlineData carries a base64 encoded file
type GeminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

// GeminiResponse represents the response from Gemini API
type GeminiResponse struct {
	Candidates []GeminiCandidate `json:"candidates"`
}

// GeminiCandidate represents a candidate response
type GeminiCandidate struct {
	Content GeminiResponseContent `json:"content"`
}

// GeminiResponseContent represents the content of a response
type GeminiResponseContent struct {
	Parts []GeminiResponsePart `json:"parts"`
}

// GeminiResponsePart represents a part of the response content
type GeminiResponsePart struct {
	Text string `json:"text"`
}

// GeminiErrorResponse is the error envelope returned with non-2xx statuses
type GeminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// FirstText returns the first candidate's first text part, or "".
func (r *GeminiResponse) FirstText() string {
	if len(r.Candidates) == 0 || len(r.Candidates[0].Content.Parts) == 0 {
		return ""
	}
	return r.Candidates[0].Content.Parts[0].Text
}

// Client talks to the Generative Language API
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logger.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the HTTP client (and its timeout)
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger used for failure diagnostics
func WithLogger(l *logger.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client for the given API root. An empty baseURL uses
// DefaultBaseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     logger.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root the client targets
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Generate sends a single text prompt and returns the reply text
func (c *Client) Generate(ctx context.Context, apiKey, model, prompt string) (string, error) {
	reqBody := GeminiRequest{
		Contents: []GeminiContent{
			{Parts: []GeminiPart{{Text: prompt}}},
		},
	}
	return c.generate(ctx, apiKey, model, reqBody)
}

// GenerateWithFile sends a prompt together with an inline file
func (c *Client) GenerateWithFile(ctx context.Context, apiKey, model, prompt, mimeType string, data []byte) (string, error) {
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	reqBody := GeminiRequest{
		Contents: []GeminiContent{
			{
				Parts: []GeminiPart{
					{InlineData: &GeminiInlineData{MimeType: mimeType, Data: base64.StdEncoding.EncodeToString(data)}},
					{Text: prompt},
				},
			},
		},
	}
	return c.generate(ctx, apiKey, model, reqBody)
}

func (c *Client) generate(ctx context.Context, apiKey, model string, reqBody GeminiRequest) (string, error) {
	if apiKey == "" {
		return "", chatassist.NewError(chatassist.KindMissingCredential,
			"API key is not configured. Provide your GEMINI_API_KEY.")
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("error marshaling request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		c.baseURL, url.PathEscape(model), url.QueryEscape(apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	status, body, err := c.do(req)
	if err != nil {
		return "", err
	}

	if status != http.StatusOK {
		ce := Classify(status, body, model)
		c.logger.Debug("provider request failed",
			zap.Int("status", status),
			zap.String("kind", string(ce.Kind)),
			zap.String("model", model),
			zap.ByteString("body", body),
		)
		return "", ce
	}

	var result GeminiResponse
	if err := json.Unmarshal(body, &result); err != nil {
		c.logger.Debug("unparseable provider response", zap.Error(err), zap.ByteString("body", body))
		return "", &chatassist.ChatError{Kind: chatassist.KindEmptyResponse,
			Message: "No response received from the model", Status: status, Err: err}
	}

	text := result.FirstText()
	if text == "" {
		return "", &chatassist.ChatError{Kind: chatassist.KindEmptyResponse,
			Message: "No response received from the model", Status: status}
	}
	return text, nil
}

// ListModels returns the models that support generateContent, sorted by ID
// in descending order
func (c *Client) ListModels(ctx context.Context, apiKey string) ([]chatassist.ModelInfo, error) {
	if apiKey == "" {
		return nil, chatassist.NewError(chatassist.KindMissingCredential,
			"API key is not configured. Provide your GEMINI_API_KEY.")
	}

	endpoint := c.baseURL + "/models?key=" + url.QueryEscape(apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	status, body, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, Classify(status, body, "")
	}

	var result ModelsAPIResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse API response: %w", err)
	}

	models := make([]chatassist.ModelInfo, 0, len(result.Models))
	for _, model := range result.Models {
		if !contains(model.SupportedGenerationMethods, "generateContent") {
			continue
		}

		description := model.Description
		if description == "" {
			description = model.DisplayName
		}

		id := strings.TrimPrefix(model.Name, "models/")
		models = append(models, chatassist.ModelInfo{
			ID:          id,
			Description: description,
			IsDefault:   id == chatassist.DefaultModel,
		})
	}

	sort.Slice(models, func(i, j int) bool {
		return models[i].ID > models[j].ID
	})

	return models, nil
}

// do performs the request and reads a size-limited body. Transport failures
// are returned as classified errors.
func (c *Client) do(req *http.Request) (int, []byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		ce := chatassist.TransportError("provider", err)
		c.logger.Debug("provider unreachable", zap.Error(err))
		return 0, nil, ce
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return resp.StatusCode, nil, &chatassist.ChatError{Kind: chatassist.KindTransport,
			Message: fmt.Sprintf("error reading response: %v", err), Status: resp.StatusCode, Err: err}
	}
	return resp.StatusCode, body, nil
}

// Classify converts a non-200 provider response into a classified error
func Classify(status int, body []byte, model string) *chatassist.ChatError {
	var apiErr GeminiErrorResponse
	_ = json.Unmarshal(body, &apiErr)
	detail := apiErr.Error.Message

	ce := &chatassist.ChatError{Status: status}
	switch {
	case status == http.StatusBadRequest:
		ce.Kind = chatassist.KindBadRequest
		ce.Message = detail
		if ce.Message == "" {
			ce.Message = "Invalid request"
		}
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		if detail == "" {
			detail = "no details"
		}
		ce.Kind = chatassist.KindUnauthorized
		ce.Message = fmt.Sprintf("API key lacks permission. Detail: %s. Check in Google AI Studio that the key is active and has the Generative Language API enabled.", detail)
	case status == http.StatusNotFound:
		ce.Kind = chatassist.KindModelNotFound
		ce.Message = fmt.Sprintf("Model %q not found. Use one of: %s", model, strings.Join(chatassist.KnownModelIDs(), ", "))
	case status == http.StatusTooManyRequests:
		ce.Kind = chatassist.KindRateLimited
		ce.Message = "Rate limit exceeded. Wait a few minutes and try again."
	default:
		ce.Kind = chatassist.KindTransport
		if detail != "" {
			ce.Message = fmt.Sprintf("Provider error (HTTP %d): %s", status, detail)
		} else {
			ce.Message = fmt.Sprintf("Request failed with status code %d", status)
		}
	}
	return ce
}

// contains checks if a string slice contains a specific string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
