package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/longkey1/chatassist/internal/chatassist"
	"github.com/longkey1/chatassist/internal/chatassist/config"
	"github.com/longkey1/chatassist/internal/prefs"
	"github.com/longkey1/chatassist/internal/router"
	"github.com/longkey1/chatassist/pkg/logger"
	"github.com/spf13/cobra"
)

// routeFlags are the per-invocation overrides shared by chat, start and upload
type routeFlags struct {
	model      string
	useBackend bool
	direct     bool
	backendURL string
	uploadURL  string
}

func (f *routeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.model, "model", "m", "", "Model to use (e.g., gemini-2.5-pro)")
	cmd.Flags().BoolVarP(&f.useBackend, "backend", "b", false, "Route through the backend proxy")
	cmd.Flags().BoolVar(&f.direct, "direct", false, "Call the provider directly with api_key")
	cmd.Flags().StringVar(&f.backendURL, "backend-url", "", "Backend proxy endpoint (overrides backend_url)")
	cmd.Flags().StringVar(&f.uploadURL, "upload-url", "", "Backend upload endpoint (overrides upload_url, defaults to --backend-url when that is set)")
}

// loadChatConfig loads the config file and applies flag overrides
func loadChatConfig(cmd *cobra.Command, f *routeFlags) (chatassist.ChatConfig, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return chatassist.ChatConfig{}, fmt.Errorf("loading config: %w", err)
	}
	return applyRouteFlags(cmd, f, cfg.ChatConfig())
}

// applyRouteFlags overrides chat with the flags set on cmd. A --backend-url
// without --upload-url also moves uploads to that endpoint.
func applyRouteFlags(cmd *cobra.Command, f *routeFlags, chat chatassist.ChatConfig) (chatassist.ChatConfig, error) {
	if f.useBackend && f.direct {
		return chatassist.ChatConfig{}, fmt.Errorf("cannot specify both --backend and --direct")
	}

	if cmd.Flags().Changed("backend") {
		chat.UseBackend = f.useBackend
	}
	if cmd.Flags().Changed("direct") {
		chat.UseBackend = !f.direct
	}
	if f.backendURL != "" {
		chat.BackendURL = f.backendURL
		chat.UploadURL = ""
	}
	if f.uploadURL != "" {
		chat.UploadURL = f.uploadURL
	}
	return chat, nil
}

// resolveModel applies model priority: flag > saved selection > config
func resolveModel(f *routeFlags, cfg chatassist.ChatConfig, store *prefs.Store) string {
	if m := strings.TrimSpace(f.model); m != "" {
		return m
	}
	if store != nil {
		saved, err := store.SelectedModel()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to read preferences: %v\n", err)
		} else if saved != "" {
			return saved
		}
	}
	return cfg.ModelOrDefault("")
}

// newRouter creates the request router with the CLI logger
func newRouter() *router.Router {
	return router.New(router.WithLogger(logger.Global().Named("router")))
}

// isKnownModel reports whether id is one of the models the settings screen offers
func isKnownModel(id string) bool {
	for _, m := range chatassist.KnownModels {
		if m.ID == id {
			return true
		}
	}
	return false
}
