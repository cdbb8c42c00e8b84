package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/longkey1/chatassist/internal/chatassist"
	"github.com/longkey1/chatassist/internal/conversation"
	"github.com/longkey1/chatassist/internal/prefs"
	"github.com/longkey1/chatassist/internal/render"
	"github.com/longkey1/chatassist/internal/router"
	"github.com/longkey1/chatassist/pkg/logger"
	"github.com/spf13/cobra"
)

var startFlags routeFlags

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Open the chat assistant in interactive mode",
	Long: `Open the chat assistant and start an interactive conversation.

Each message is sent as a single prompt; the transcript is kept only for the
lifetime of the session. Type /help for the available commands.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadChatConfig(cmd, &startFlags)
		if err != nil {
			return err
		}

		store, err := prefs.DefaultStore()
		if err != nil {
			return fmt.Errorf("opening preferences: %w", err)
		}

		s := &session{
			r:     newRouter(),
			store: store,
			out:   render.New(os.Stdout, cfg.ButtonColor, cfg.Position),
			model: resolveModel(&startFlags, cfg, store),
			log:   logger.Global().Named("session"),
		}
		s.ctrl = conversation.New(s.r, cfg, conversation.WithLogger(s.log))

		in := newLineReader(os.Stdin)
		defer in.Close()

		if err := s.run(cmd.Context(), in); err != nil {
			return fmt.Errorf("interactive mode: %w", err)
		}
		return nil
	},
}

// session is one interactive run of the assistant
type session struct {
	ctrl  *conversation.Controller
	r     *router.Router
	store *prefs.Store
	out   *render.Renderer
	model string
	log   *logger.Logger
}

// run reads lines from in until EOF, Ctrl+C or /exit
func (s *session) run(ctx context.Context, in lineReader) error {
	unsubscribe := s.ctrl.Subscribe(func(st conversation.State) {
		s.log.Debug("state changed",
			zap.Int("messages", len(st.Messages)),
			zap.Bool("pending", st.Pending),
			zap.Bool("failed", st.LastError != nil),
		)
	})
	defer unsubscribe()

	s.out.Home(s.ctrl.Config(), s.model)

	for {
		line, err := in.ReadLine("You> ")
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, errInputAborted) {
				fmt.Fprintln(os.Stderr, "\nGoodbye!")
				return nil
			}
			return fmt.Errorf("input error: %w", err)
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if s.handleCommand(ctx, input) {
				continue
			}
			return nil
		}

		s.send(ctx, input)
	}
}

// send dispatches one prompt and prints the reply or error
func (s *session) send(ctx context.Context, text string) {
	stop := startSpinner()
	accepted := s.ctrl.Send(ctx, text, s.model)
	stop()

	if !accepted {
		s.out.Info("A reply is still pending.")
		return
	}
	st := s.ctrl.State()
	if n := len(st.Messages); n > 0 {
		s.out.Message(st.Messages[n-1])
	}
}

// upload relays a file through the backend and prints the summary
func (s *session) upload(ctx context.Context, path, prompt string) {
	file, err := openUpload(path)
	if err != nil {
		s.out.Error("%v", err)
		return
	}

	cfg := s.ctrl.Config()
	cfg.Model = s.model

	stop := startSpinner()
	result, err := s.r.UploadAndProcess(ctx, file, prompt, cfg)
	stop()

	if err != nil {
		s.out.Message(chatassist.NewErrorMessage(chatassist.AsChatError(err).Message))
		return
	}
	s.out.Message(chatassist.NewAssistantMessage(result.Summary))
}

// selectModel switches the model and persists the choice
func (s *session) selectModel(id string) {
	if id == "" {
		s.out.Info("Current model: %s", s.model)
		return
	}
	if !isKnownModel(id) {
		s.out.Info("Model %q is not in the known list; using it anyway.", id)
	}
	s.model = id
	if err := s.store.SetSelectedModel(id); err != nil {
		s.out.Error("failed to save model selection: %v", err)
		return
	}
	s.out.Info("Model set to %s", id)
}

// handleCommand processes slash commands.
// Returns true to continue the loop, false to exit
func (s *session) handleCommand(ctx context.Context, input string) bool {
	fields := strings.Fields(input)
	command := strings.ToLower(fields[0])
	rest := strings.TrimSpace(strings.TrimPrefix(input, fields[0]))

	switch command {
	case "/help", "/h":
		s.out.Help()

	case "/settings":
		s.out.Settings(s.ctrl.Config(), s.model, chatassist.KnownModels)

	case "/model", "/m":
		s.selectModel(rest)

	case "/upload", "/u":
		if len(fields) < 2 {
			s.out.Message(chatassist.NewErrorMessage("No file selected"))
			return true
		}
		prompt := strings.TrimSpace(strings.TrimPrefix(rest, fields[1]))
		s.upload(ctx, fields[1], prompt)

	case "/undo":
		s.ctrl.DeleteLast()
		s.out.Info("Deleted the last message.")

	case "/clear", "/c":
		s.ctrl.Clear()
		if s.out.IsTerminal() {
			fmt.Print("\033[H\033[2J")
		}
		s.out.Home(s.ctrl.Config(), s.model)

	case "/history":
		messages := s.ctrl.State().Messages
		if len(messages) == 0 {
			s.out.Info("No messages yet.")
			return true
		}
		s.out.Transcript(messages)

	case "/exit", "/quit", "/q":
		fmt.Fprintln(os.Stderr, "Goodbye!")
		return false

	default:
		s.out.Error("Unknown command: %s (type /help for commands)", fields[0])
	}
	return true
}

// startSpinner displays a spinner on a terminal stderr and returns the
// function that stops it
func startSpinner() func() {
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		return func() {}
	}

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		spinners := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
		i := 0
		for {
			select {
			case <-done:
				// Clear the spinner line
				fmt.Fprint(os.Stderr, "\r\033[K")
				return
			default:
				fmt.Fprintf(os.Stderr, "\r%s Waiting for response...", spinners[i])
				i = (i + 1) % len(spinners)
				time.Sleep(80 * time.Millisecond)
			}
		}
	}()
	return func() {
		close(done)
		<-stopped
	}
}

func init() {
	rootCmd.AddCommand(startCmd)

	startFlags.register(startCmd)
}
