// Package router turns a prompt plus the session config into exactly one
// outbound call, either straight to the provider or through the backend
// proxy, and normalizes the outcome into a Result or a classified error.
package router

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/longkey1/chatassist/internal/backend"
	"github.com/longkey1/chatassist/internal/chatassist"
	"github.com/longkey1/chatassist/internal/gemini"
	"github.com/longkey1/chatassist/pkg/logger"
	"github.com/longkey1/chatassist/pkg/metrics"
)

// Route names used in logs and metrics.
const (
	RouteDirect  = "direct"
	RouteBackend = "backend"
	RouteUpload  = "upload"
)

// strategy is one of the two ways a prompt can leave the process.
type strategy interface {
	name() string
	send(ctx context.Context, prompt, model string, cfg chatassist.ChatConfig) (*chatassist.Result, error)
}

// Router dispatches prompts and uploads. It holds no per-conversation state
// and is safe for concurrent use.
type Router struct {
	providerHTTP *http.Client
	backend      *backend.Client
	logger       *logger.Logger
}

// Option configures a Router
type Option func(*Router)

// WithLogger sets the router logger
func WithLogger(l *logger.Logger) Option {
	return func(r *Router) { r.logger = l }
}

// WithProviderHTTPClient sets the HTTP client used on the direct path
func WithProviderHTTPClient(hc *http.Client) Option {
	return func(r *Router) { r.providerHTTP = hc }
}

// WithBackendClient sets the client used on the backend path
func WithBackendClient(c *backend.Client) Option {
	return func(r *Router) { r.backend = c }
}

// New creates a Router
func New(opts ...Option) *Router {
	r := &Router{
		providerHTTP: &http.Client{Timeout: gemini.DefaultTimeout},
		logger:       logger.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.backend == nil {
		r.backend = backend.NewClient(backend.WithLogger(r.logger))
	}
	return r
}

// Dispatch sends prompt to the route selected by cfg.UseBackend. An empty
// model falls back to cfg.Model and then chatassist.DefaultModel. Every
// failure is a *chatassist.ChatError.
func (r *Router) Dispatch(ctx context.Context, prompt, model string, cfg chatassist.ChatConfig) (*chatassist.Result, error) {
	start := time.Now()
	route := r.route(cfg)

	var result *chatassist.Result
	var err error
	if strings.TrimSpace(prompt) == "" {
		err = chatassist.NewError(chatassist.KindEmptyPrompt, "Prompt is empty")
	} else {
		result, err = route.send(ctx, prompt, cfg.ModelOrDefault(model), cfg)
	}

	r.observe(route.name(), err, time.Since(start))
	if err != nil {
		return nil, chatassist.AsChatError(err)
	}
	return result, nil
}

// UploadAndProcess relays file to the backend upload endpoint. Uploads are
// only available on the backend path.
func (r *Router) UploadAndProcess(ctx context.Context, file *chatassist.File, prompt string, cfg chatassist.ChatConfig) (*chatassist.UploadResult, error) {
	start := time.Now()
	result, err := r.upload(ctx, file, prompt, cfg)
	r.observe(RouteUpload, err, time.Since(start))
	if err != nil {
		return nil, chatassist.AsChatError(err)
	}
	return result, nil
}

func (r *Router) upload(ctx context.Context, file *chatassist.File, prompt string, cfg chatassist.ChatConfig) (*chatassist.UploadResult, error) {
	if file == nil {
		return nil, chatassist.NewError(chatassist.KindMissingFile, "No file selected")
	}
	if !cfg.UseBackend {
		return nil, chatassist.NewError(chatassist.KindBackendRequired,
			"File upload requires a backend. Enable use_backend to upload files.")
	}

	endpoint, err := cfg.UploadEndpoint()
	if err != nil {
		return nil, &chatassist.ChatError{Kind: chatassist.KindTransport, Message: err.Error(), Err: err}
	}
	if strings.TrimSpace(prompt) == "" {
		prompt = chatassist.DefaultUploadPrompt
	}
	target := backend.Endpoint{URL: endpoint, Token: cfg.BackendToken}
	return r.backend.Upload(ctx, target, file, prompt, cfg.ModelOrDefault(""))
}

func (r *Router) route(cfg chatassist.ChatConfig) strategy {
	if cfg.UseBackend {
		return backendRoute{r}
	}
	return directRoute{r}
}

func (r *Router) observe(route string, err error, elapsed time.Duration) {
	kind := "ok"
	if err != nil {
		ce := chatassist.AsChatError(err)
		kind = string(ce.Kind)
		r.logger.Debug("dispatch failed",
			zap.String("route", route),
			zap.String("kind", kind),
			zap.Int("status", ce.Status),
			zap.Error(err),
		)
	}
	metrics.RecordDispatch(route, kind, elapsed.Seconds())
}

type directRoute struct{ r *Router }

func (directRoute) name() string { return RouteDirect }

func (d directRoute) send(ctx context.Context, prompt, model string, cfg chatassist.ChatConfig) (*chatassist.Result, error) {
	if cfg.APIKey == "" {
		return nil, chatassist.NewError(chatassist.KindMissingCredential,
			"API key is not configured. Provide your GEMINI_API_KEY.")
	}
	client := gemini.NewClient(cfg.GeminiBaseURL,
		gemini.WithHTTPClient(d.r.providerHTTP),
		gemini.WithLogger(d.r.logger),
	)
	text, err := client.Generate(ctx, cfg.APIKey, model, prompt)
	if err != nil {
		return nil, err
	}
	return &chatassist.Result{Text: text}, nil
}

type backendRoute struct{ r *Router }

func (backendRoute) name() string { return RouteBackend }

func (b backendRoute) send(ctx context.Context, prompt, model string, cfg chatassist.ChatConfig) (*chatassist.Result, error) {
	endpoint, err := cfg.PromptEndpoint()
	if err != nil {
		return nil, &chatassist.ChatError{Kind: chatassist.KindTransport, Message: err.Error(), Err: err}
	}
	target := backend.Endpoint{URL: endpoint, Token: cfg.BackendToken}
	return b.r.backend.Send(ctx, target, prompt, model)
}
