package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/longkey1/chatassist/internal/chatassist"
)

func TestGenerate(t *testing.T) {
	var gotPath, gotKey string
	var gotReq GeminiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &gotReq); err != nil {
			t.Errorf("invalid request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"hello"}]}}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	text, err := client.Generate(context.Background(), "k", "gemini-2.5-flash", "hi")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if text != "hello" {
		t.Errorf("Generate() = %q, want hello", text)
	}
	if gotPath != "/models/gemini-2.5-flash:generateContent" {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != "k" {
		t.Errorf("key = %q, want k", gotKey)
	}
	if len(gotReq.Contents) != 1 || len(gotReq.Contents[0].Parts) != 1 || gotReq.Contents[0].Parts[0].Text != "hi" {
		t.Errorf("request contents = %+v", gotReq.Contents)
	}
}

func TestGenerateWithFile(t *testing.T) {
	var gotReq GeminiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"a summary"}]}}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	text, err := client.GenerateWithFile(context.Background(), "k", "gemini-2.5-flash", "summarize", "text/plain", []byte("file body"))
	if err != nil {
		t.Fatalf("GenerateWithFile() error = %v", err)
	}
	if text != "a summary" {
		t.Errorf("GenerateWithFile() = %q", text)
	}

	parts := gotReq.Contents[0].Parts
	if len(parts) != 2 {
		t.Fatalf("parts = %d, want 2", len(parts))
	}
	if parts[0].InlineData == nil || parts[0].InlineData.MimeType != "text/plain" {
		t.Fatalf("inline data = %+v", parts[0].InlineData)
	}
	decoded, err := base64.StdEncoding.DecodeString(parts[0].InlineData.Data)
	if err != nil || string(decoded) != "file body" {
		t.Errorf("inline data payload = %q (%v)", decoded, err)
	}
	if parts[1].Text != "summarize" {
		t.Errorf("prompt part = %q", parts[1].Text)
	}
}

func TestGenerateErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind chatassist.ErrorKind
		wantMsg  string
	}{
		{
			name:     "bad request uses provider message",
			status:   http.StatusBadRequest,
			body:     `{"error":{"code":400,"message":"contents is empty"}}`,
			wantKind: chatassist.KindBadRequest,
			wantMsg:  "contents is empty",
		},
		{
			name:     "bad request without detail",
			status:   http.StatusBadRequest,
			body:     `not json`,
			wantKind: chatassist.KindBadRequest,
			wantMsg:  "Invalid request",
		},
		{
			name:     "forbidden carries detail",
			status:   http.StatusForbidden,
			body:     `{"error":{"message":"API_KEY_INVALID"}}`,
			wantKind: chatassist.KindUnauthorized,
			wantMsg:  "API_KEY_INVALID",
		},
		{
			name:     "unauthorized",
			status:   http.StatusUnauthorized,
			body:     `{}`,
			wantKind: chatassist.KindUnauthorized,
			wantMsg:  "no details",
		},
		{
			name:     "unknown model lists alternatives",
			status:   http.StatusNotFound,
			body:     `{}`,
			wantKind: chatassist.KindModelNotFound,
			wantMsg:  "gemini-1.5-pro",
		},
		{
			name:     "rate limited",
			status:   http.StatusTooManyRequests,
			body:     `{"error":{"message":"quota"}}`,
			wantKind: chatassist.KindRateLimited,
			wantMsg:  "few minutes",
		},
		{
			name:     "provider 500 is transport",
			status:   http.StatusInternalServerError,
			body:     `{"error":{"message":"backend error"}}`,
			wantKind: chatassist.KindTransport,
			wantMsg:  "backend error",
		},
		{
			name:     "empty candidates",
			status:   http.StatusOK,
			body:     `{"candidates":[]}`,
			wantKind: chatassist.KindEmptyResponse,
		},
		{
			name:     "unparseable success",
			status:   http.StatusOK,
			body:     `<html>`,
			wantKind: chatassist.KindEmptyResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewClient(server.URL).Generate(context.Background(), "k", "gemini-x", "hi")
			if err == nil {
				t.Fatal("expected error")
			}
			if kind := chatassist.KindOf(err); kind != tt.wantKind {
				t.Errorf("kind = %s, want %s (%v)", kind, tt.wantKind, err)
			}
			if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("message %q does not contain %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestGenerateMissingKeyMakesNoRequest(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	_, err := NewClient(server.URL).Generate(context.Background(), "", "gemini-2.5-flash", "hi")
	if !errors.Is(err, chatassist.ErrMissingCredential) {
		t.Fatalf("error = %v, want ErrMissingCredential", err)
	}
	if n := atomic.LoadInt32(&calls); n != 0 {
		t.Errorf("calls = %d, want 0", n)
	}
}

func TestGenerateTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client := NewClient(server.URL, WithHTTPClient(&http.Client{Timeout: 20 * time.Millisecond}))
	_, err := client.Generate(context.Background(), "k", "gemini-2.5-flash", "hi")
	if !errors.Is(err, chatassist.ErrTransport) {
		t.Fatalf("error = %v, want ErrTransport", err)
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Errorf("message = %q, want timeout wording", err.Error())
	}
}

func TestListModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"models":[
			{"name":"models/gemini-1.5-pro","description":"older","supportedGenerationMethods":["generateContent"]},
			{"name":"models/embedding-001","supportedGenerationMethods":["embedContent"]},
			{"name":"models/gemini-2.5-flash","displayName":"Gemini 2.5 Flash","supportedGenerationMethods":["generateContent","countTokens"]}
		]}`))
	}))
	defer server.Close()

	models, err := NewClient(server.URL).ListModels(context.Background(), "k")
	if err != nil {
		t.Fatalf("ListModels() error = %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("len(models) = %d, want 2", len(models))
	}
	if models[0].ID != "gemini-2.5-flash" || !models[0].IsDefault {
		t.Errorf("models[0] = %+v", models[0])
	}
	if models[0].Description != "Gemini 2.5 Flash" {
		t.Errorf("description fallback = %q", models[0].Description)
	}
	if models[1].ID != "gemini-1.5-pro" || models[1].IsDefault {
		t.Errorf("models[1] = %+v", models[1])
	}
}
