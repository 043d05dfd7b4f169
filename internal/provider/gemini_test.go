package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGeminiGenerate(t *testing.T) {
	var gotPath, gotKey, gotClient string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		gotClient = r.Header.Get("X-Goog-Api-Client")
		data, _ := io.ReadAll(r.Body)
		json.Unmarshal(data, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"Hello!"}]},"finishReason":"STOP"}]}`)
	}))
	defer srv.Close()

	p := NewGeminiProvider("secret", WithBaseURL(srv.URL), WithModel("gemini-test"))
	req := &Request{
		Contents:         []Content{TextContent(RoleUser, "hi")},
		GenerationConfig: GenerationConfig{Temperature: 0.5, TopP: 0.9, TopK: 40, MaxOutputTokens: 500},
	}
	resp, err := p.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got := resp.Text(); got != "Hello!" {
		t.Errorf("Text() = %q", got)
	}
	if gotPath != "/models/gemini-test:generateContent" {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != "secret" {
		t.Errorf("key = %q", gotKey)
	}
	if gotClient != "gemchat/1.0" {
		t.Errorf("X-Goog-Api-Client = %q", gotClient)
	}
	if _, ok := gotBody["generationConfig"]; !ok {
		t.Errorf("body missing generationConfig: %v", gotBody)
	}
}

func TestGeminiErrorStatus(t *testing.T) {
	tests := []struct {
		name, body, want string
	}{
		{"upstream message", `{"error":{"code":400,"message":"API key not valid"}}`, "API key not valid"},
		{"no message", `{"error":{}}`, "Failed to call Gemini API"},
		{"not json", `<html>bad gateway</html>`, "Failed to call Gemini API"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			_, err := NewGeminiProvider("k", WithBaseURL(srv.URL)).Generate(context.Background(), &Request{})
			var ue *UpstreamError
			if !errors.As(err, &ue) {
				t.Fatalf("err = %v, want *UpstreamError", err)
			}
			if ue.StatusCode != http.StatusBadRequest {
				t.Errorf("StatusCode = %d", ue.StatusCode)
			}
			if ue.Message != tt.want {
				t.Errorf("Message = %q, want %q", ue.Message, tt.want)
			}
		})
	}
}

func TestGeminiCancellation(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := NewGeminiProvider("k", WithBaseURL(srv.URL)).Generate(ctx, &Request{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	var ue *UpstreamError
	if !errors.As(err, &ue) || ue.StatusCode != 0 {
		t.Errorf("expected transport UpstreamError, got %#v", err)
	}
}

func TestGeminiTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	p := NewGeminiProvider("k", WithBaseURL(srv.URL), WithTimeout(20*time.Millisecond))
	_, err := p.Generate(context.Background(), &Request{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want context.DeadlineExceeded", err)
	}
}
