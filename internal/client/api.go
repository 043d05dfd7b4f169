// Package client talks to a gemchat server over its JSON API and drives the
// terminal chat loop.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/gemchat/gemchat/internal/session"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
	Details    string
	Fields     []session.FieldError
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "server returned %d", e.StatusCode)
	if e.Message != "" {
		b.WriteString(": " + e.Message)
	}
	for _, f := range e.Fields {
		b.WriteString(": " + f.Message)
	}
	if e.Details != "" {
		b.WriteString(" (" + e.Details + ")")
	}
	return b.String()
}

// ChatReply is the body of a successful /api/chat call.
type ChatReply struct {
	Response       string `json:"response"`
	ConversationID string `json:"conversationId"`
}

// Health is the body of /api/health.
type Health struct {
	Status    string  `json:"status"`
	Uptime    float64 `json:"uptime"`
	Timestamp string  `json:"timestamp"`
	Version   string  `json:"version"`
}

// API is an HTTP client for one conversation. The session cookie is kept
// in a cookie jar, so consecutive calls share a session.
type API struct {
	baseURL   string
	http      *http.Client
	sessionID string
}

// NewAPI creates a client for the server at baseURL.
func NewAPI(baseURL string, timeout time.Duration) (*API, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	return &API{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Jar: jar, Timeout: timeout},
	}, nil
}

// SessionID returns the conversation id last reported by the server.
func (a *API) SessionID() string { return a.sessionID }

func (a *API) Chat(ctx context.Context, message string) (*ChatReply, error) {
	var out ChatReply
	if err := a.do(ctx, http.MethodPost, "/api/chat", map[string]string{"message": message}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) Preferences(ctx context.Context) (session.Preferences, error) {
	var out struct {
		Preferences session.Preferences `json:"preferences"`
	}
	err := a.do(ctx, http.MethodGet, "/api/preferences", nil, &out)
	return out.Preferences, err
}

func (a *API) UpdatePreferences(ctx context.Context, partial map[string]any) (session.Preferences, error) {
	var out struct {
		Preferences session.Preferences `json:"preferences"`
	}
	err := a.do(ctx, http.MethodPost, "/api/preferences", partial, &out)
	return out.Preferences, err
}

func (a *API) History(ctx context.Context) ([]session.Turn, error) {
	var out struct {
		History []session.Turn `json:"history"`
	}
	err := a.do(ctx, http.MethodGet, "/api/history", nil, &out)
	return out.History, err
}

func (a *API) Reset(ctx context.Context) error {
	if err := a.do(ctx, http.MethodPost, "/api/reset", nil, nil); err != nil {
		return err
	}
	a.sessionID = ""
	return nil
}

func (a *API) Health(ctx context.Context) (*Health, error) {
	var out Health
	if err := a.do(ctx, http.MethodGet, "/api/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if id := resp.Header.Get("X-Conversation-ID"); id != "" {
		a.sessionID = id
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var env struct {
			Error   string               `json:"error"`
			Details string               `json:"details"`
			Errors  []session.FieldError `json:"errors"`
		}
		if json.Unmarshal(data, &env) == nil {
			apiErr.Message, apiErr.Details, apiErr.Fields = env.Error, env.Details, env.Errors
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
