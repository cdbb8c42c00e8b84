package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/longkey1/chatassist/internal/chatassist"
)

func TestSend(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantReply string
		wantRaw   bool
	}{
		{name: "text field", body: `{"text":"hello","model":"gemini-2.5-flash"}`, wantReply: "hello", wantRaw: true},
		{name: "output field", body: `{"output":"from output"}`, wantReply: "from output", wantRaw: true},
		{name: "raw json fallback", body: `{"answer":"x"}`, wantReply: `{"answer":"x"}`, wantRaw: true},
		{name: "plain text body", body: "just text\n", wantReply: "just text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got promptRequest
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("method = %s, want POST", r.Method)
				}
				if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
					t.Errorf("decode request: %v", err)
				}
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			result, err := NewClient().Send(context.Background(), Endpoint{URL: server.URL + "/api/gemini"}, "hi", "gemini-2.5-pro")
			if err != nil {
				t.Fatalf("Send() error = %v", err)
			}
			if got.Prompt != "hi" || got.Model != "gemini-2.5-pro" {
				t.Errorf("request = %+v", got)
			}
			if reply := result.Reply(); reply != tt.wantReply {
				t.Errorf("Reply() = %q, want %q", reply, tt.wantReply)
			}
			if (result.Raw != nil) != tt.wantRaw {
				t.Errorf("Raw = %s, wantRaw %v", result.Raw, tt.wantRaw)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind chatassist.ErrorKind
		wantMsg  string
	}{
		{name: "bad request", status: 400, body: `{"error":"prompt is required"}`, wantKind: chatassist.KindBadRequest, wantMsg: "prompt is required"},
		{name: "bad request default", status: 400, body: ``, wantKind: chatassist.KindBadRequest, wantMsg: "Invalid request"},
		{name: "unauthorized", status: 401, body: `{"error":"bad token"}`, wantKind: chatassist.KindUnauthorized, wantMsg: "bad token"},
		{name: "forbidden", status: 403, body: `{}`, wantKind: chatassist.KindUnauthorized, wantMsg: "no details"},
		{name: "not found", status: 404, body: `{}`, wantKind: chatassist.KindModelNotFound, wantMsg: "gemini-2.5-flash"},
		{name: "rate limited", status: 429, body: `{"error":"rate limit exceeded"}`, wantKind: chatassist.KindRateLimited, wantMsg: "few minutes"},
		{name: "server error string", status: 500, body: `{"error":"db down"}`, wantKind: chatassist.KindServerError, wantMsg: "Server error: db down"},
		{name: "server error object", status: 500, body: `{"error":{"message":"upstream"}}`, wantKind: chatassist.KindServerError, wantMsg: "upstream"},
		{name: "server error other json", status: 500, body: `{"error":[1,2]}`, wantKind: chatassist.KindServerError, wantMsg: "[1,2]"},
		{name: "server error no detail", status: 500, body: `oops`, wantKind: chatassist.KindServerError, wantMsg: "internal server error"},
		{name: "bad gateway", status: 502, body: ``, wantKind: chatassist.KindTransport, wantMsg: "502"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ce := Classify(tt.status, []byte(tt.body), "gemini-x")
			if ce.Kind != tt.wantKind {
				t.Errorf("Kind = %s, want %s", ce.Kind, tt.wantKind)
			}
			if ce.Status != tt.status {
				t.Errorf("Status = %d, want %d", ce.Status, tt.status)
			}
			if !strings.Contains(ce.Message, tt.wantMsg) {
				t.Errorf("Message = %q, want it to contain %q", ce.Message, tt.wantMsg)
			}
		})
	}
}

func TestSendUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := server.URL
	server.Close()

	_, err := NewClient().Send(context.Background(), Endpoint{URL: endpoint}, "hi", "m")
	if !errors.Is(err, chatassist.ErrTransport) {
		t.Fatalf("error = %v, want ErrTransport", err)
	}
}

func TestSendTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer server.Close()

	client := NewClient(WithTimeouts(20*time.Millisecond, 20*time.Millisecond))
	_, err := client.Send(context.Background(), Endpoint{URL: server.URL}, "hi", "m")
	if !errors.Is(err, chatassist.ErrTransport) {
		t.Fatalf("error = %v, want ErrTransport", err)
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Errorf("message = %q", err.Error())
	}
}

func TestUpload(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantSummary string
	}{
		{name: "summary field", body: `{"summary":"a report"}`, wantSummary: "a report"},
		{name: "text field", body: `{"text":"from text"}`, wantSummary: "from text"},
		{name: "raw fallback", body: `{"pages":3}`, wantSummary: `{"pages":3}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := r.ParseMultipartForm(1 << 20); err != nil {
					t.Errorf("ParseMultipartForm: %v", err)
					return
				}
				if got := r.FormValue("prompt"); got != "what is this?" {
					t.Errorf("prompt = %q", got)
				}
				if got := r.FormValue("model"); got != "gemini-2.5-flash" {
					t.Errorf("model = %q", got)
				}
				f, hdr, err := r.FormFile("file")
				if err != nil {
					t.Errorf("FormFile: %v", err)
					return
				}
				defer f.Close()
				data, _ := io.ReadAll(f)
				if hdr.Filename != "notes.txt" || string(data) != "file body" {
					t.Errorf("file = %s %q", hdr.Filename, data)
				}
				if ct := hdr.Header.Get("Content-Type"); ct != "text/plain" {
					t.Errorf("file Content-Type = %q", ct)
				}
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			file := &chatassist.File{Name: "notes.txt", ContentType: "text/plain", Content: strings.NewReader("file body")}
			result, err := NewClient().Upload(context.Background(), Endpoint{URL: server.URL}, file, "what is this?", "gemini-2.5-flash")
			if err != nil {
				t.Fatalf("Upload() error = %v", err)
			}
			if result.Summary != tt.wantSummary {
				t.Errorf("Summary = %q, want %q", result.Summary, tt.wantSummary)
			}
		})
	}
}

func TestUploadRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	file := &chatassist.File{Name: "a.bin", Content: strings.NewReader("x")}
	_, err := NewClient().Upload(context.Background(), Endpoint{URL: server.URL}, file, "p", "m")
	if !errors.Is(err, chatassist.ErrRateLimited) {
		t.Fatalf("error = %v, want ErrRateLimited", err)
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  string
	}{
		{name: "with token", token: "abc", want: "Bearer abc"},
		{name: "without token", token: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.Header.Get("Authorization")
				_, _ = w.Write([]byte(`{"text":"ok"}`))
			}))
			defer server.Close()

			if _, err := NewClient().Send(context.Background(), Endpoint{URL: server.URL, Token: tt.token}, "hi", "m"); err != nil {
				t.Fatalf("Send() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Authorization = %q, want %q", got, tt.want)
			}
		})
	}
}
