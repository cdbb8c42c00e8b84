/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/longkey1/chatassist/internal/chatassist"
	"github.com/longkey1/chatassist/internal/chatassist/config"
	"github.com/longkey1/chatassist/internal/gemini"
	"github.com/longkey1/chatassist/pkg/logger"
	"github.com/spf13/cobra"
)

var knownOnly bool

// modelsCmd represents the models command
var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models the assistant can use",
	Long: `List the Gemini models that support text generation.
Fetches the latest model information directly from the provider's API when
api_key is set, and falls back to the built-in list otherwise.

Example:
  chatassist models          # List models from the API
  chatassist models --known  # List the built-in models only`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		models := chatassist.KnownModels
		if !knownOnly {
			if cfg.APIKey == "" {
				fmt.Fprintln(os.Stderr, "Warning: api_key is not set, showing the built-in model list")
			} else {
				if verbose {
					fmt.Fprintf(os.Stderr, "Listing models from: %s\n", cfg.GeminiBaseURL)
				}
				client := gemini.NewClient(cfg.GeminiBaseURL, gemini.WithLogger(logger.Global().Named("gemini")))
				listed, err := client.ListModels(cmd.Context(), cfg.APIKey)
				switch {
				case err != nil:
					fmt.Fprintf(os.Stderr, "Warning: failed to list models (%v), showing the built-in model list\n", err)
				case len(listed) == 0:
					fmt.Fprintln(os.Stderr, "Warning: no models returned from API, showing the built-in model list")
				default:
					models = listed
				}
			}
		}

		printModels(models)
		return nil
	},
}

func printModels(models []chatassist.ModelInfo) {
	// Calculate column widths
	maxModelIDWidth := 15
	for _, model := range models {
		if len(model.ID) > maxModelIDWidth {
			maxModelIDWidth = len(model.ID)
		}
	}

	fmt.Printf("%-*s  %-10s  %s\n", maxModelIDWidth, "MODEL ID", "DEFAULT", "DESCRIPTION")
	fmt.Printf("%s  %s  %s\n",
		strings.Repeat("-", maxModelIDWidth),
		strings.Repeat("-", 10),
		strings.Repeat("-", 50))

	for _, model := range models {
		defaultMark := ""
		if model.IsDefault {
			defaultMark = "Yes"
		}
		fmt.Printf("%-*s  %-10s  %s\n", maxModelIDWidth, model.ID, defaultMark, model.Description)
	}

	fmt.Printf("\nUse a model with: chatassist chat --model <model> [message]\n")
}

func init() {
	rootCmd.AddCommand(modelsCmd)

	modelsCmd.Flags().BoolVar(&knownOnly, "known", false, "Show the built-in model list without calling the API")
}
