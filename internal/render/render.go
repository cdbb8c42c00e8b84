// Package render draws the terminal widget: the home, help and settings
// screens and the transcript. Markdown and colors are used only when the
// output is a terminal so piped output stays plain.
package render

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/longkey1/chatassist/internal/chatassist"
)

const defaultWrap = 80

// Renderer writes screens and messages to an output stream
type Renderer struct {
	out  io.Writer
	tty  bool
	md   *glamour.TermRenderer
	left bool

	accent lipgloss.Style
	user   lipgloss.Style
	errs   lipgloss.Style
	muted  lipgloss.Style
}

// New creates a renderer for out. Styling is enabled when out is a terminal.
// accentColor is the widget button color; position "left" aligns the
// assistant label to the left margin.
func New(out io.Writer, accentColor, position string) *Renderer {
	r := &Renderer{
		out:  out,
		left: position == "left",
	}

	width := defaultWrap
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		r.tty = true
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 20 && w < defaultWrap {
			width = w - 4
		}
	}

	if accentColor == "" {
		accentColor = "#6366f1"
	}
	r.accent = lipgloss.NewStyle().Foreground(lipgloss.Color(accentColor)).Bold(true)
	r.user = lipgloss.NewStyle().Foreground(lipgloss.Color("#a1a1aa")).Bold(true)
	r.errs = lipgloss.NewStyle().Foreground(lipgloss.Color("#ef4444"))
	r.muted = lipgloss.NewStyle().Foreground(lipgloss.Color("#71717a"))

	if r.tty {
		md, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(width),
		)
		if err == nil {
			r.md = md
		}
	}
	return r
}

// IsTerminal reports whether styling is enabled
func (r *Renderer) IsTerminal() bool {
	return r.tty
}

func (r *Renderer) style(s lipgloss.Style, text string) string {
	if !r.tty {
		return text
	}
	return s.Render(text)
}

// Markdown renders content with glamour on a terminal and returns it
// unchanged otherwise
func (r *Renderer) Markdown(content string) string {
	if r.md == nil {
		return content
	}
	rendered, err := r.md.Render(content)
	if err != nil {
		return content
	}
	return rendered
}

// Message writes one transcript entry
func (r *Renderer) Message(m chatassist.Message) {
	switch {
	case m.Role == chatassist.RoleUser:
		fmt.Fprintf(r.out, "%s %s\n", r.style(r.user, "You:"), m.Text)
	case m.IsError:
		fmt.Fprintln(r.out, r.style(r.errs, m.Text))
	default:
		label := r.style(r.accent, "Assistant:")
		if !r.left {
			label = "  " + label
		}
		fmt.Fprintln(r.out, label)
		text := r.Markdown(m.Text)
		fmt.Fprint(r.out, text)
		if !strings.HasSuffix(text, "\n") {
			fmt.Fprintln(r.out)
		}
	}
}

// Transcript writes every message in order
func (r *Renderer) Transcript(messages []chatassist.Message) {
	for _, m := range messages {
		r.Message(m)
	}
}

// Error writes a failure that is not part of the transcript
func (r *Renderer) Error(format string, args ...any) {
	fmt.Fprintln(r.out, r.style(r.errs, "Error: "+fmt.Sprintf(format, args...)))
}

// Info writes a muted status line
func (r *Renderer) Info(format string, args ...any) {
	fmt.Fprintln(r.out, r.style(r.muted, fmt.Sprintf(format, args...)))
}

// Home writes the welcome screen shown when the widget opens
func (r *Renderer) Home(cfg chatassist.ChatConfig, model string) {
	route := "direct to provider"
	if cfg.UseBackend {
		route = "via backend proxy"
	}
	fmt.Fprintln(r.out, r.style(r.accent, "Chat Assistant"))
	fmt.Fprintf(r.out, "Model: %s (%s)\n", model, route)
	fmt.Fprintln(r.out, r.style(r.muted, "Type a message and press Enter. /help lists commands."))
	fmt.Fprintln(r.out)
}

// Help writes the command reference
func (r *Renderer) Help() {
	fmt.Fprintln(r.out, "Commands:")
	fmt.Fprintln(r.out, "  /help            Show this help")
	fmt.Fprintln(r.out, "  /settings        Show the settings screen")
	fmt.Fprintln(r.out, "  /model <id>      Select the model for the next messages")
	fmt.Fprintln(r.out, "  /upload <path>   Upload a file and show its summary (backend only)")
	fmt.Fprintln(r.out, "  /undo            Delete the last message")
	fmt.Fprintln(r.out, "  /clear           Clear the conversation")
	fmt.Fprintln(r.out, "  /history         Show the conversation so far")
	fmt.Fprintln(r.out, "  /exit, /quit     Close the assistant")
	fmt.Fprintln(r.out)
}

// Settings writes the settings screen with the selectable models
func (r *Renderer) Settings(cfg chatassist.ChatConfig, current string, models []chatassist.ModelInfo) {
	fmt.Fprintln(r.out, r.style(r.accent, "Settings"))
	fmt.Fprintf(r.out, "  Backend:  %t\n", cfg.UseBackend)
	fmt.Fprintf(r.out, "  Position: %s\n", cfg.Position)
	fmt.Fprintln(r.out, "  Models:")
	for _, m := range models {
		marker := " "
		if m.ID == current {
			marker = "*"
		}
		line := fmt.Sprintf("  %s %-18s %s", marker, m.ID, m.Description)
		if m.IsDefault {
			line += " (default)"
		}
		fmt.Fprintln(r.out, line)
	}
	fmt.Fprintln(r.out, r.style(r.muted, "Use /model <id> to switch."))
	fmt.Fprintln(r.out)
}
