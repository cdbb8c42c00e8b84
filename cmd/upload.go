package cmd

import (
	"bytes"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/longkey1/chatassist/internal/chatassist"
	"github.com/longkey1/chatassist/internal/render"
	"github.com/spf13/cobra"
)

var uploadFlags routeFlags

// uploadCmd represents the upload command
var uploadCmd = &cobra.Command{
	Use:   "upload <file> [prompt]",
	Short: "Upload a file and print its summary",
	Long: `Upload a file to the backend proxy together with a prompt and print
the summary it returns. Uploads require use_backend (or --backend).

If no prompt is given, the file is summarized.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadChatConfig(cmd, &uploadFlags)
		if err != nil {
			return err
		}
		if m := strings.TrimSpace(uploadFlags.model); m != "" {
			cfg.Model = m
		}

		file, err := openUpload(args[0])
		if err != nil {
			return err
		}
		var prompt string
		if len(args) > 1 {
			prompt = args[1]
		}

		result, err := newRouter().UploadAndProcess(cmd.Context(), file, prompt, cfg)
		if err != nil {
			return fmt.Errorf("upload failed: %w", err)
		}

		out := render.New(os.Stdout, cfg.ButtonColor, cfg.Position)
		out.Message(chatassist.NewAssistantMessage(result.Summary))
		return nil
	},
}

// openUpload reads path into an upload with a detected content type
func openUpload(path string) (*chatassist.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return &chatassist.File{
		Name:        filepath.Base(path),
		ContentType: detectContentType(path, data),
		Content:     bytes.NewReader(data),
	}, nil
}

// detectContentType prefers the extension and falls back to sniffing
func detectContentType(path string, data []byte) string {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct
	}
	return http.DetectContentType(data)
}

func init() {
	rootCmd.AddCommand(uploadCmd)

	uploadFlags.register(uploadCmd)
}
