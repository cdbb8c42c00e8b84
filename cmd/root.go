/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/longkey1/chatassist/internal/chatassist/config"
	"github.com/longkey1/chatassist/pkg/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "chatassist",
	Short: "An embeddable Gemini chat assistant",
	Long: `chatassist is a chat assistant for Google's Gemini models.
It talks to the provider directly with your API key, or through a backend
proxy that keeps the key on a server (see 'chatassist serve').
You can configure the tool using a TOML configuration file.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	_ = logger.Global().Sync()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initLogger)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/chatassist/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	// Set environment variable prefix and automatic env
	viper.SetEnvPrefix("CHATASSIST")
	viper.AutomaticEnv()

	home, err := os.UserHomeDir()
	cobra.CheckErr(err)
	userConfigDir := filepath.Join(home, ".config", "chatassist")

	config.SetDefaults(viper.GetViper())

	// Bind environment variables
	viper.BindEnv("api_key", "CHATASSIST_API_KEY")
	viper.BindEnv("use_backend", "CHATASSIST_USE_BACKEND")
	viper.BindEnv("backend_url", "CHATASSIST_BACKEND_URL")
	viper.BindEnv("backend_token", "CHATASSIST_BACKEND_TOKEN")
	viper.BindEnv("gemini_base_url", "CHATASSIST_GEMINI_BASE_URL")
	viper.BindEnv("proxy_gemini_api_key", "CHATASSIST_PROXY_GEMINI_API_KEY")
	viper.BindEnv("proxy_jwt_secret", "CHATASSIST_PROXY_JWT_SECRET")

	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
		}
	} else {
		// Load system-wide config first (lower priority)
		systemConfigPaths := []string{
			"/etc/chatassist",
			"/usr/local/etc/chatassist",
		}

		systemConfigLoaded := false
		for _, path := range systemConfigPaths {
			viper.AddConfigPath(path)
		}
		viper.SetConfigType("toml")
		viper.SetConfigName("config")

		if err := viper.ReadInConfig(); err == nil {
			systemConfigLoaded = true
			if verbose {
				fmt.Fprintln(os.Stderr, "Loaded system-wide config:", viper.ConfigFileUsed())
			}
		}

		// Load user config (higher priority) - merge with system config
		viper.AddConfigPath(userConfigDir)
		if systemConfigLoaded {
			if err := viper.MergeInConfig(); err != nil {
				if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
					fmt.Fprintf(os.Stderr, "Error merging user config file: %v\n", err)
				}
			} else if verbose {
				fmt.Fprintln(os.Stderr, "Merged user config:", viper.ConfigFileUsed())
			}
		} else {
			if err := viper.ReadInConfig(); err != nil {
				if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
					fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
				}
			}
		}
	}

	if verbose {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		fmt.Fprintln(os.Stderr, "Environment variables:")
		fmt.Fprintln(os.Stderr, "  CHATASSIST_MODEL:", viper.GetString("model"))
		fmt.Fprintln(os.Stderr, "  CHATASSIST_USE_BACKEND:", viper.GetBool("use_backend"))
		fmt.Fprintln(os.Stderr, "  CHATASSIST_BACKEND_URL:", viper.GetString("backend_url"))
		fmt.Fprintln(os.Stderr, "  CHATASSIST_GEMINI_BASE_URL:", viper.GetString("gemini_base_url"))
	}
}

// initLogger installs the global logger. CLI commands log to stderr.
func initLogger() {
	level := viper.GetString("log_level")
	if verbose {
		level = "debug"
	}
	log, err := logger.New(level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		return
	}
	logger.SetGlobal(log)
}
