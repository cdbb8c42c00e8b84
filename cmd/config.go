package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/longkey1/chatassist/internal/chatassist/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const configFields = "configfile, use_backend, api_key, backend_url, upload_url, backend_token, origin, model, gemini_base_url, position, button_color, log_level, proxy_addr, proxy_gemini_api_key, proxy_jwt_secret"

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config [field]",
	Short: "Display current configuration",
	Long: `Display the current configuration values.
This command shows all configuration values loaded from the config file and environment variables.

If a field name is specified, only that field's value is displayed.
Available fields: ` + configFields + `

Examples:
  chatassist config              # Show all configuration
  chatassist config model        # Show only model
  chatassist config backend_url  # Show only the backend endpoint
  chatassist config api_key      # Show only the (masked) API key`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		// If a field is specified, show only that field
		if len(args) > 0 {
			field := strings.ToLower(args[0])
			switch field {
			case "configfile":
				fmt.Println(viper.ConfigFileUsed())
			case "use_backend", "usebackend":
				fmt.Println(cfg.UseBackend)
			case "api_key", "apikey":
				fmt.Println(config.MaskToken(cfg.APIKey))
			case "backend_url", "backendurl":
				fmt.Println(cfg.BackendURL)
			case "upload_url", "uploadurl":
				fmt.Println(cfg.UploadURL)
			case "backend_token", "backendtoken":
				fmt.Println(config.MaskToken(cfg.BackendToken))
			case "origin":
				fmt.Println(cfg.Origin)
			case "model":
				fmt.Println(cfg.Model)
			case "gemini_base_url", "geminibaseurl":
				fmt.Println(cfg.GeminiBaseURL)
			case "position":
				fmt.Println(cfg.Position)
			case "button_color", "buttoncolor":
				fmt.Println(cfg.ButtonColor)
			case "log_level", "loglevel":
				fmt.Println(cfg.LogLevel)
			case "proxy_addr", "proxyaddr":
				fmt.Println(cfg.ProxyAddr)
			case "proxy_gemini_api_key":
				fmt.Println(config.MaskToken(cfg.ProxyGeminiAPIKey))
			case "proxy_jwt_secret":
				fmt.Println(config.MaskToken(cfg.ProxyJWTSecret))
			default:
				fmt.Fprintf(os.Stderr, "Unknown field: %s\n", args[0])
				fmt.Fprintf(os.Stderr, "Available fields: %s\n", configFields)
				os.Exit(1)
			}
			return
		}

		// Display all configuration values
		fmt.Printf("ConfigFile: %s\n", viper.ConfigFileUsed())
		fmt.Printf("UseBackend: %v\n", cfg.UseBackend)
		fmt.Printf("APIKey: %s\n", config.MaskToken(cfg.APIKey))
		fmt.Printf("BackendURL: %s\n", cfg.BackendURL)
		fmt.Printf("UploadURL: %s\n", cfg.UploadURL)
		fmt.Printf("BackendToken: %s\n", config.MaskToken(cfg.BackendToken))
		fmt.Printf("Origin: %s\n", cfg.Origin)
		fmt.Printf("Model: %s\n", cfg.Model)
		fmt.Printf("GeminiBaseURL: %s\n", cfg.GeminiBaseURL)
		fmt.Printf("Position: %s\n", cfg.Position)
		fmt.Printf("ButtonColor: %s\n", cfg.ButtonColor)
		fmt.Printf("LogLevel: %s\n", cfg.LogLevel)
		fmt.Printf("ProxyAddr: %s\n", cfg.ProxyAddr)
		fmt.Printf("ProxyGeminiAPIKey: %s\n", config.MaskToken(cfg.ProxyGeminiAPIKey))
		fmt.Printf("ProxyAllowedOrigins: %s\n", strings.Join(cfg.ProxyAllowedOrigins, ","))
		fmt.Printf("ProxyRateLimit: %d per %s\n", cfg.ProxyRateLimitRequests, cfg.ProxyRateLimitWindow)
		fmt.Printf("ProxyJWTSecret: %s\n", config.MaskToken(cfg.ProxyJWTSecret))
		fmt.Printf("ProxyMaxUploadBytes: %d\n", cfg.ProxyMaxUploadBytes)
		fmt.Printf("ProxyLogLevel: %s\n", cfg.ProxyLogLevel)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
