/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/longkey1/chatassist/internal/chatassist"
	"github.com/longkey1/chatassist/internal/prefs"
	"github.com/longkey1/chatassist/internal/render"
	"github.com/spf13/cobra"
)

var (
	chatFlags routeFlags
	useEditor bool
)

// chatCmd represents the chat command
var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Send a single message to the assistant",
	Long: `Send a message to the assistant and print the reply.
This command performs exactly one request, either directly to Gemini or
through the backend proxy depending on use_backend.

For an interactive conversation, use 'chatassist start' instead.

If no message is provided as an argument, it reads from stdin.
If --editor flag is set, it opens the default editor (from EDITOR environment variable) to compose the message.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadChatConfig(cmd, &chatFlags)
		if err != nil {
			return err
		}

		// Get message from arguments, editor, or stdin
		var message string
		if useEditor {
			message, err = getMessageFromEditor()
			if err != nil {
				return fmt.Errorf("getting message from editor: %w", err)
			}
		} else if len(args) > 0 {
			message = strings.Join(args, " ")
		} else {
			input, err := io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("reading from stdin: %w", err)
			}
			message = strings.TrimSpace(string(input))
		}

		store, err := prefs.DefaultStore()
		if err != nil && verbose {
			fmt.Fprintf(os.Stderr, "Preferences unavailable: %v\n", err)
		}
		model := resolveModel(&chatFlags, cfg, store)
		if verbose {
			fmt.Fprintf(os.Stderr, "Model: %s (backend: %t)\n", model, cfg.UseBackend)
		}

		result, err := newRouter().Dispatch(cmd.Context(), message, model, cfg)
		if err != nil {
			return fmt.Errorf("chat request failed: %w", err)
		}

		out := render.New(os.Stdout, cfg.ButtonColor, cfg.Position)
		out.Message(chatassist.NewAssistantMessage(result.Reply()))
		return nil
	},
}

// getMessageFromEditor opens the default editor and returns the edited message
func getMessageFromEditor() (string, error) {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		return "", fmt.Errorf("EDITOR environment variable is not set")
	}

	// Create a temporary file
	tmpFile, err := os.CreateTemp("", "chatassist-*.txt")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %v", err)
	}
	defer os.Remove(tmpFile.Name())

	// Open the editor
	cmd := exec.Command(editor, tmpFile.Name())
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("failed to open editor: %v", err)
	}

	// Read the edited content
	content, err := os.ReadFile(tmpFile.Name())
	if err != nil {
		return "", fmt.Errorf("failed to read edited content: %v", err)
	}

	return strings.TrimSpace(string(content)), nil
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatFlags.register(chatCmd)
	chatCmd.Flags().BoolVarP(&useEditor, "editor", "e", false, "Use default editor (from EDITOR environment variable) to compose message")
}
