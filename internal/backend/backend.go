// Package backend is the client for the caller-provided proxy that relays
// prompts and file uploads to the provider.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/longkey1/chatassist/internal/chatassist"
	"github.com/longkey1/chatassist/pkg/logger"
)

const (
	// DefaultPromptTimeout bounds a prompt relay call.
	DefaultPromptTimeout = 60 * time.Second

	// DefaultUploadTimeout bounds an upload relay call.
	DefaultUploadTimeout = 120 * time.Second

	maxResponseSize = 10 * 1024 * 1024
)

// promptRequest is the JSON body of a prompt relay call
type promptRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model"`
}

// Endpoint is a resolved proxy URL plus the optional bearer token the proxy
// expects
type Endpoint struct {
	URL   string
	Token string
}

func (e Endpoint) authorize(req *http.Request) {
	if e.Token != "" {
		req.Header.Set("Authorization", "Bearer "+e.Token)
	}
}

// Client sends prompts and uploads to the backend proxy
type Client struct {
	httpClient    *http.Client
	promptTimeout time.Duration
	uploadTimeout time.Duration
	logger        *logger.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeouts overrides the prompt and upload timeouts
func WithTimeouts(prompt, upload time.Duration) Option {
	return func(c *Client) {
		c.promptTimeout = prompt
		c.uploadTimeout = upload
	}
}

// WithLogger sets the logger used for failure diagnostics
func WithLogger(l *logger.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a backend client with the default timeouts
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient:    &http.Client{},
		promptTimeout: DefaultPromptTimeout,
		uploadTimeout: DefaultUploadTimeout,
		logger:        logger.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send posts {prompt, model} to endpoint and returns the backend body.
func (c *Client) Send(ctx context.Context, endpoint Endpoint, prompt, model string) (*chatassist.Result, error) {
	jsonData, err := json.Marshal(promptRequest{Prompt: prompt, Model: model})
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.promptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.URL, bytes.NewReader(jsonData))
	if err != nil {
		return nil, chatassist.TransportError("backend", err)
	}
	req.Header.Set("Content-Type", "application/json")
	endpoint.authorize(req)

	status, body, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, c.classify(status, body, model)
	}

	result := &chatassist.Result{}
	fields, ok := decodeObject(body)
	if !ok {
		// Non-JSON bodies are shown as-is.
		result.Text = strings.TrimSpace(string(body))
		return result, nil
	}
	result.Raw = json.RawMessage(body)
	result.Text = stringField(fields, "text")
	result.Output = stringField(fields, "output")
	return result, nil
}

// Upload posts file, prompt and model as multipart/form-data to endpoint.
func (c *Client) Upload(ctx context.Context, endpoint Endpoint, file *chatassist.File, prompt, model string) (*chatassist.UploadResult, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if err := writeFilePart(writer, file); err != nil {
		return nil, fmt.Errorf("error encoding upload: %w", err)
	}
	if err := writer.WriteField("prompt", prompt); err != nil {
		return nil, fmt.Errorf("error encoding upload: %w", err)
	}
	if err := writer.WriteField("model", model); err != nil {
		return nil, fmt.Errorf("error encoding upload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("error encoding upload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.uploadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.URL, &buf)
	if err != nil {
		return nil, chatassist.TransportError("backend", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	endpoint.authorize(req)

	status, body, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, c.classify(status, body, model)
	}

	fields, ok := decodeObject(body)
	if !ok {
		return &chatassist.UploadResult{Summary: strings.TrimSpace(string(body))}, nil
	}
	summary := stringField(fields, "summary")
	if summary == "" {
		summary = stringField(fields, "text")
	}
	if summary == "" {
		summary = strings.TrimSpace(string(body))
	}
	return &chatassist.UploadResult{Summary: summary}, nil
}

func writeFilePart(w *multipart.Writer, file *chatassist.File) error {
	name := file.Name
	if name == "" {
		name = "upload"
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)

	part, err := w.CreatePart(header)
	if err != nil {
		return err
	}
	if file.Content == nil {
		return nil
	}
	_, err = io.Copy(part, file.Content)
	return err
}

func (c *Client) do(req *http.Request) (int, []byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("backend unreachable", zap.String("url", req.URL.String()), zap.Error(err))
		return 0, nil, chatassist.TransportError("backend", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return resp.StatusCode, nil, &chatassist.ChatError{Kind: chatassist.KindTransport,
			Message: fmt.Sprintf("error reading backend response: %v", err), Status: resp.StatusCode, Err: err}
	}
	return resp.StatusCode, body, nil
}

func (c *Client) classify(status int, body []byte, model string) *chatassist.ChatError {
	ce := Classify(status, body, model)
	c.logger.Debug("backend request failed",
		zap.Int("status", status),
		zap.String("kind", string(ce.Kind)),
		zap.ByteString("body", body),
	)
	return ce
}

// Classify converts a non-200 backend response into a classified error.
// The backend reports details in an "error" field, either a string or an
// object.
func Classify(status int, body []byte, model string) *chatassist.ChatError {
	detail := errorDetail(body)

	ce := &chatassist.ChatError{Status: status}
	switch status {
	case http.StatusBadRequest:
		ce.Kind = chatassist.KindBadRequest
		ce.Message = detail
		if ce.Message == "" {
			ce.Message = "Invalid request"
		}
	case http.StatusUnauthorized, http.StatusForbidden:
		if detail == "" {
			detail = "no details"
		}
		ce.Kind = chatassist.KindUnauthorized
		ce.Message = fmt.Sprintf("API key lacks permission. Detail: %s. Check the key configured on the backend.", detail)
	case http.StatusNotFound:
		ce.Kind = chatassist.KindModelNotFound
		ce.Message = fmt.Sprintf("Model %q not found. Use one of: %s", model, strings.Join(chatassist.KnownModelIDs(), ", "))
	case http.StatusTooManyRequests:
		ce.Kind = chatassist.KindRateLimited
		ce.Message = "Rate limit exceeded. Wait a few minutes and try again."
	case http.StatusInternalServerError:
		if detail == "" {
			detail = "internal server error"
		}
		ce.Kind = chatassist.KindServerError
		ce.Message = "Server error: " + detail
	default:
		ce.Kind = chatassist.KindTransport
		if detail != "" {
			ce.Message = fmt.Sprintf("Backend error (HTTP %d): %s", status, detail)
		} else {
			ce.Message = fmt.Sprintf("Request failed with status code %d", status)
		}
	}
	return ce
}

// errorDetail extracts the "error" field of a backend body. Strings are
// returned as-is, objects with a message yield the message, anything else is
// re-encoded as JSON.
func errorDetail(body []byte) string {
	fields, ok := decodeObject(body)
	if !ok {
		return ""
	}
	raw, ok := fields["error"]
	if !ok || string(raw) == "null" {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Message != "" {
		return obj.Message
	}
	return string(raw)
}

func decodeObject(body []byte) (map[string]json.RawMessage, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		return nil, false
	}
	return fields, true
}

func stringField(fields map[string]json.RawMessage, key string) string {
	raw, ok := fields[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}
