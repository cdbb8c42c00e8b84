package conversation

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/longkey1/chatassist/internal/chatassist"
	"github.com/longkey1/chatassist/internal/router"
)

// fakeDispatcher blocks each dispatch until release is closed (when set) and
// then returns reply/err.
type fakeDispatcher struct {
	calls   int32
	started chan struct{}
	release chan struct{}
	reply   string
	err     error
	panicV  any
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, prompt, model string, cfg chatassist.ChatConfig) (*chatassist.Result, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	if f.panicV != nil {
		panic(f.panicV)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &chatassist.Result{Text: f.reply}, nil
}

func TestSendAppendsUserMessageBeforeDispatch(t *testing.T) {
	d := &fakeDispatcher{started: make(chan struct{}, 1), release: make(chan struct{}), reply: "ok"}
	c := New(d, chatassist.ChatConfig{})

	done := make(chan bool)
	go func() { done <- c.Send(context.Background(), "hi", "") }()

	<-d.started
	s := c.State()
	if !s.Pending {
		t.Error("Pending = false while dispatch is in flight")
	}
	if len(s.Messages) != 1 || s.Messages[0].Role != chatassist.RoleUser || s.Messages[0].Text != "hi" {
		t.Fatalf("Messages = %+v, want the user message only", s.Messages)
	}

	close(d.release)
	if !<-done {
		t.Error("Send() = false, want true")
	}
	if c.State().Pending {
		t.Error("Pending = true after completion")
	}
}

func TestSendWhilePendingIsIgnored(t *testing.T) {
	d := &fakeDispatcher{started: make(chan struct{}, 1), release: make(chan struct{}), reply: "ok"}
	c := New(d, chatassist.ChatConfig{})

	done := make(chan bool)
	go func() { done <- c.Send(context.Background(), "first", "") }()
	<-d.started

	if c.Send(context.Background(), "second", "") {
		t.Error("second Send() = true while pending")
	}
	if n := len(c.State().Messages); n != 1 {
		t.Errorf("len(Messages) = %d after ignored send, want 1", n)
	}

	close(d.release)
	<-done

	if n := atomic.LoadInt32(&d.calls); n != 1 {
		t.Errorf("dispatch calls = %d, want 1", n)
	}
	s := c.State()
	if len(s.Messages) != 2 || s.Messages[1].Text != "ok" {
		t.Errorf("Messages = %+v", s.Messages)
	}
}

func TestSendBlankIsIgnored(t *testing.T) {
	d := &fakeDispatcher{reply: "ok"}
	c := New(d, chatassist.ChatConfig{})

	for _, text := range []string{"", "   ", "\n\t"} {
		if c.Send(context.Background(), text, "") {
			t.Errorf("Send(%q) = true", text)
		}
	}
	if n := atomic.LoadInt32(&d.calls); n != 0 {
		t.Errorf("dispatch calls = %d, want 0", n)
	}
	if len(c.State().Messages) != 0 {
		t.Error("blank sends changed the transcript")
	}
}

func TestPendingClearedOnEveryOutcome(t *testing.T) {
	tests := []struct {
		name     string
		d        *fakeDispatcher
		wantKind chatassist.ErrorKind
		wantText string
	}{
		{
			name:     "success",
			d:        &fakeDispatcher{reply: "fine"},
			wantText: "fine",
		},
		{
			name:     "classified failure",
			d:        &fakeDispatcher{err: chatassist.NewError(chatassist.KindRateLimited, "slow down")},
			wantKind: chatassist.KindRateLimited,
			wantText: "Error: slow down",
		},
		{
			name:     "unclassified failure",
			d:        &fakeDispatcher{err: errors.New("boom")},
			wantKind: chatassist.KindTransport,
			wantText: "Error: boom",
		},
		{
			name:     "dispatcher panic",
			d:        &fakeDispatcher{panicV: "kaboom"},
			wantKind: chatassist.KindTransport,
			wantText: "kaboom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(tt.d, chatassist.ChatConfig{})
			if !c.Send(context.Background(), "hi", "") {
				t.Fatal("Send() = false")
			}

			s := c.State()
			if s.Pending {
				t.Error("Pending = true after Send returned")
			}
			if len(s.Messages) != 2 {
				t.Fatalf("len(Messages) = %d, want 2", len(s.Messages))
			}
			last := s.Messages[1]
			if last.Role != chatassist.RoleAssistant {
				t.Errorf("last Role = %s", last.Role)
			}
			if !strings.Contains(last.Text, tt.wantText) {
				t.Errorf("last Text = %q, want it to contain %q", last.Text, tt.wantText)
			}

			if tt.wantKind == "" {
				if s.LastError != nil || last.IsError {
					t.Errorf("unexpected error state: %+v / %+v", s.LastError, last)
				}
				return
			}
			if !last.IsError {
				t.Error("IsError = false for a failed dispatch")
			}
			if s.LastError == nil || s.LastError.Kind != tt.wantKind {
				t.Errorf("LastError = %+v, want kind %s", s.LastError, tt.wantKind)
			}

			// The controller must accept a new send after any outcome.
			tt.d.panicV, tt.d.err, tt.d.reply = nil, nil, "again"
			if !c.Send(context.Background(), "retry", "") {
				t.Error("Send() after failure = false")
			}
			if c.State().LastError != nil {
				t.Error("LastError not cleared by the next accepted send")
			}
		})
	}
}

func TestDeleteLast(t *testing.T) {
	c := New(&fakeDispatcher{reply: "pong"}, chatassist.ChatConfig{})

	c.DeleteLast()
	if len(c.State().Messages) != 0 {
		t.Fatal("DeleteLast on empty transcript changed it")
	}

	c.Send(context.Background(), "ping", "")
	c.DeleteLast()
	s := c.State()
	if len(s.Messages) != 1 || s.Messages[0].Text != "ping" {
		t.Fatalf("after one DeleteLast: %+v", s.Messages)
	}
	c.DeleteLast()
	if len(c.State().Messages) != 0 {
		t.Fatal("transcript not empty after deleting both messages")
	}
}

func TestClearWhilePending(t *testing.T) {
	d := &fakeDispatcher{started: make(chan struct{}, 1), release: make(chan struct{}), reply: "late"}
	c := New(d, chatassist.ChatConfig{})

	done := make(chan bool)
	go func() { done <- c.Send(context.Background(), "hi", "") }()
	<-d.started

	c.Clear()
	s := c.State()
	if len(s.Messages) != 0 {
		t.Errorf("Messages = %+v right after Clear", s.Messages)
	}
	if !s.Pending {
		t.Error("Clear reset Pending while a send is in flight")
	}

	close(d.release)
	<-done

	s = c.State()
	if s.Pending {
		t.Error("Pending = true after the in-flight send completed")
	}
	if len(s.Messages) != 0 {
		t.Errorf("reply from before Clear was appended: %+v", s.Messages)
	}
}

func TestStateIsACopy(t *testing.T) {
	c := New(&fakeDispatcher{err: errors.New("x")}, chatassist.ChatConfig{})
	c.Send(context.Background(), "hi", "")

	s := c.State()
	s.Messages[0].Text = "mutated"
	s.LastError.Message = "mutated"

	fresh := c.State()
	if fresh.Messages[0].Text != "hi" || fresh.LastError.Message == "mutated" {
		t.Error("State() exposes internal storage")
	}
}

func TestSubscribe(t *testing.T) {
	c := New(&fakeDispatcher{reply: "ok"}, chatassist.ChatConfig{})

	var mu sync.Mutex
	var seen []State
	unsubscribe := c.Subscribe(func(s State) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	c.Send(context.Background(), "hi", "")

	mu.Lock()
	if len(seen) != 2 {
		t.Fatalf("notifications = %d, want 2", len(seen))
	}
	if !seen[0].Pending || len(seen[0].Messages) != 1 {
		t.Errorf("first notification = %+v", seen[0])
	}
	if seen[1].Pending || len(seen[1].Messages) != 2 {
		t.Errorf("second notification = %+v", seen[1])
	}
	mu.Unlock()

	unsubscribe()
	c.Clear()

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 {
		t.Errorf("observer called after unsubscribe")
	}
}

func TestConcurrentSendsDispatchOnce(t *testing.T) {
	d := &fakeDispatcher{release: make(chan struct{}), reply: "ok"}
	c := New(d, chatassist.ChatConfig{})

	var wg sync.WaitGroup
	var accepted int32
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c.Send(context.Background(), "hi", "") {
				atomic.AddInt32(&accepted, 1)
			}
		}()
	}

	// Give every goroutine a chance to hit the guard before releasing.
	time.Sleep(50 * time.Millisecond)
	close(d.release)
	wg.Wait()

	if n := atomic.LoadInt32(&d.calls); n != atomic.LoadInt32(&accepted) {
		t.Errorf("dispatch calls = %d, accepted = %d", n, accepted)
	}
	if n := len(c.State().Messages); n != 2*int(atomic.LoadInt32(&accepted)) {
		t.Errorf("len(Messages) = %d for %d accepted sends", n, accepted)
	}
}

func TestDirectScenario(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("key"); got != "k" {
			t.Errorf("key = %q", got)
		}
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"hello"}]}}]}`))
	}))
	defer server.Close()

	cfg := chatassist.ChatConfig{UseBackend: false, APIKey: "k", GeminiBaseURL: server.URL}
	c := New(router.New(), cfg)
	c.Send(context.Background(), "hi", "gemini-2.5-flash")

	s := c.State()
	if len(s.Messages) != 2 {
		t.Fatalf("len(Messages) = %d, want 2", len(s.Messages))
	}
	if m := s.Messages[0]; m.Role != chatassist.RoleUser || m.Text != "hi" {
		t.Errorf("Messages[0] = %+v", m)
	}
	if m := s.Messages[1]; m.Role != chatassist.RoleAssistant || m.Text != "hello" || m.IsError {
		t.Errorf("Messages[1] = %+v", m)
	}
	if s.Pending || s.LastError != nil {
		t.Errorf("Pending = %v, LastError = %+v", s.Pending, s.LastError)
	}
}

func TestBackendServerErrorScenario(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/gemini" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"db down"}`))
	}))
	defer server.Close()

	cfg := chatassist.ChatConfig{UseBackend: true, BackendURL: "/api/gemini", Origin: server.URL}
	c := New(router.New(), cfg)
	c.Send(context.Background(), "hi", "")

	s := c.State()
	last := s.Messages[len(s.Messages)-1]
	if last.Role != chatassist.RoleAssistant || !last.IsError || !strings.Contains(last.Text, "db down") {
		t.Errorf("last message = %+v", last)
	}
	if s.LastError == nil || s.LastError.Kind != chatassist.KindServerError {
		t.Errorf("LastError = %+v, want ServerError", s.LastError)
	}
}
