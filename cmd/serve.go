package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/longkey1/chatassist/internal/chatassist/config"
	"github.com/longkey1/chatassist/internal/gemini"
	"github.com/longkey1/chatassist/internal/proxy"
	"github.com/longkey1/chatassist/pkg/logger"
	"github.com/spf13/cobra"
)

var (
	serveAddr    string
	tokenSubject string
	tokenTTL     time.Duration
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the backend proxy",
	Long: `Run the backend proxy that the assistant uses when use_backend is enabled.
The proxy keeps the Gemini API key on the server and exposes:

  POST /api/gemini   {"prompt": "...", "model": "..."}
  POST /api/upload   multipart/form-data with file, prompt and model
  GET  /health
  GET  /metrics

Set proxy_jwt_secret to require a bearer token on /api (see 'chatassist serve token').`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		log, err := logger.New(cfg.ProxyLogLevel, "stdout")
		if err != nil {
			return fmt.Errorf("creating logger: %w", err)
		}
		defer log.Sync()

		addr := cfg.ProxyAddr
		if serveAddr != "" {
			addr = serveAddr
		}
		if cfg.ProxyGeminiAPIKey == "" {
			fmt.Fprintln(os.Stderr, "Warning: proxy_gemini_api_key is not set, every request will fail")
		}

		provider := gemini.NewClient(cfg.GeminiBaseURL, gemini.WithLogger(log.Named("gemini")))
		server := proxy.NewServer(proxy.Config{
			Addr:              addr,
			GeminiAPIKey:      cfg.ProxyGeminiAPIKey,
			AllowedOrigins:    cfg.ProxyAllowedOrigins,
			RateLimitRequests: cfg.ProxyRateLimitRequests,
			RateLimitWindow:   cfg.ProxyRateLimitWindow,
			JWTSecret:         cfg.ProxyJWTSecret,
			MaxUploadBytes:    cfg.ProxyMaxUploadBytes,
		}, provider, log)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return server.Run(ctx)
	},
}

// serveTokenCmd represents the serve token command
var serveTokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for the backend proxy",
	Long: `Issue an HS256 bearer token signed with proxy_jwt_secret.
Put the token in backend_token so the assistant sends it with every request.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		token, err := proxy.IssueToken(cfg.ProxyJWTSecret, tokenSubject, tokenTTL)
		if err != nil {
			return fmt.Errorf("issuing token: %w", err)
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.AddCommand(serveTokenCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides proxy_addr)")
	serveTokenCmd.Flags().StringVar(&tokenSubject, "subject", "widget", "Token subject")
	serveTokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime (0 for no expiry)")
}
