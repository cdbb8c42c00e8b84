package cmd

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/longkey1/chatassist/internal/chatassist"
	"github.com/longkey1/chatassist/internal/conversation"
	"github.com/longkey1/chatassist/internal/prefs"
	"github.com/longkey1/chatassist/internal/render"
	"github.com/longkey1/chatassist/internal/router"
	"github.com/longkey1/chatassist/pkg/logger"
)

func newTestSession(t *testing.T, cfg chatassist.ChatConfig) (*session, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	r := router.New()
	s := &session{
		r:     r,
		store: prefs.NewStore(t.TempDir()),
		out:   render.New(&out, "", "right"),
		model: chatassist.DefaultModel,
		log:   logger.NewNop(),
	}
	s.ctrl = conversation.New(r, cfg)
	return s, &out
}

func runScript(t *testing.T, s *session, script string) {
	t.Helper()
	if err := s.run(context.Background(), newScannerReader(strings.NewReader(script), io.Discard)); err != nil {
		t.Fatalf("run() error = %v", err)
	}
}

func TestSessionDirect(t *testing.T) {
	var models []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		models = append(models, r.URL.Path)
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"hello back"}]}}]}`))
	}))
	defer server.Close()

	s, out := newTestSession(t, chatassist.ChatConfig{APIKey: "k", GeminiBaseURL: server.URL})
	runScript(t, s, "hello\n/model gemini-2.5-pro\nagain\n/history\n/exit\nignored\n")

	if len(models) != 2 {
		t.Fatalf("provider calls = %d, want 2", len(models))
	}
	if !strings.Contains(models[0], "gemini-2.5-flash") || !strings.Contains(models[1], "gemini-2.5-pro") {
		t.Errorf("request paths = %v", models)
	}
	if saved, _ := s.store.SelectedModel(); saved != "gemini-2.5-pro" {
		t.Errorf("saved model = %q", saved)
	}
	if n := len(s.ctrl.State().Messages); n != 4 {
		t.Errorf("len(Messages) = %d, want 4", n)
	}
	if !strings.Contains(out.String(), "hello back") || !strings.Contains(out.String(), "You: again") {
		t.Errorf("output = %q", out.String())
	}
}

func TestSessionCommands(t *testing.T) {
	s, out := newTestSession(t, chatassist.ChatConfig{})
	runScript(t, s, "hi\n/undo\n/upload\n/upload missing.txt\n/bogus\n")

	// The failed reply is removed by /undo.
	msgs := s.ctrl.State().Messages
	if len(msgs) != 1 || msgs[0].Role != chatassist.RoleUser {
		t.Fatalf("Messages after /undo = %+v", msgs)
	}

	got := out.String()
	for _, want := range []string{
		"Error: API key is not configured",
		"Error: No file selected",
		"reading file",
		"Unknown command: /bogus",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestSessionUploadRequiresBackend(t *testing.T) {
	path := t.TempDir() + "/notes.txt"
	if err := writeFile(path, "some notes"); err != nil {
		t.Fatal(err)
	}

	s, out := newTestSession(t, chatassist.ChatConfig{})
	runScript(t, s, "/upload "+path+" summarize please\n")

	if !strings.Contains(out.String(), "File upload requires a backend") {
		t.Errorf("output = %q", out.String())
	}
}

func TestSessionClear(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"text":"proxied"}`))
	}))
	defer server.Close()

	s, out := newTestSession(t, chatassist.ChatConfig{UseBackend: true, BackendURL: server.URL + "/api/gemini"})
	runScript(t, s, "hi\n/clear\n/history\n")

	if n := len(s.ctrl.State().Messages); n != 0 {
		t.Errorf("len(Messages) = %d after /clear", n)
	}
	if !strings.Contains(out.String(), "proxied") || !strings.Contains(out.String(), "No messages yet.") {
		t.Errorf("output = %q", out.String())
	}
}
