// Package provider defines the upstream generation interface and the shared
// request/response types. The types follow the Gemini generateContent wire
// format; each adapter (gemini.go, openai.go, anthropic.go) implements
// Provider by translating that payload to its own API.
package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ── Message types ────────────────────────────────────────────────────────────

// Upstream roles. History turns authored by the assistant are sent as "model".
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Part is one piece of a message. Only text parts are produced.
type Part struct {
	Text string `json:"text"`
}

// Content is one message in the conversation sent upstream.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// TextContent wraps text as a single-part message.
func TextContent(role, text string) Content {
	return Content{Role: role, Parts: []Part{{Text: text}}}
}

// Text joins the text parts of the message with newlines.
func (c Content) Text() string {
	texts := make([]string, len(c.Parts))
	for i, p := range c.Parts {
		texts[i] = p.Text
	}
	return strings.Join(texts, "\n")
}

// ── Request ──────────────────────────────────────────────────────────────────

type GenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopP            float64 `json:"topP"`
	TopK            int     `json:"topK"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type SafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

// Request is the composed payload for one generation call.
type Request struct {
	Contents          []Content        `json:"contents"`
	GenerationConfig  GenerationConfig `json:"generationConfig"`
	SafetySettings    []SafetySetting  `json:"safetySettings,omitempty"`
	SystemInstruction *Content         `json:"systemInstruction,omitempty"`
}

// ── Response ─────────────────────────────────────────────────────────────────

// FallbackReply is returned by Response.Text when the upstream produced no content.
const FallbackReply = "I'm sorry, I cannot provide a response to that request."

type Candidate struct {
	Content      *Content `json:"content,omitempty"`
	FinishReason string   `json:"finishReason,omitempty"`
}

// Response is the parsed upstream reply.
type Response struct {
	Candidates []Candidate `json:"candidates"`
}

// Text returns the first candidate's parts joined by newlines, or
// FallbackReply when there is no candidate, content or parts list.
// A present but empty parts list yields "".
func (r *Response) Text() string {
	if r == nil || len(r.Candidates) == 0 {
		return FallbackReply
	}
	c := r.Candidates[0].Content
	if c == nil || c.Parts == nil {
		return FallbackReply
	}
	return c.Text()
}

// textResponse builds a single-candidate response from adapter output.
func textResponse(texts []string, finishReason string) *Response {
	parts := make([]Part, len(texts))
	for i, t := range texts {
		parts[i] = Part{Text: t}
	}
	return &Response{Candidates: []Candidate{{
		Content:      &Content{Role: RoleModel, Parts: parts},
		FinishReason: finishReason,
	}}}
}

// ── Errors ───────────────────────────────────────────────────────────────────

// UpstreamError reports a failed generation call. StatusCode is zero for
// transport failures, in which case Err carries the cause.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *UpstreamError) Error() string {
	var b strings.Builder
	b.WriteString(e.Provider)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// ── Provider interface ───────────────────────────────────────────────────────

// Provider is implemented by every upstream adapter.
type Provider interface {
	// Generate sends one request and blocks until the reply is parsed,
	// ctx is cancelled or the configured timeout elapses.
	Generate(ctx context.Context, req *Request) (*Response, error)

	// Name returns the provider identifier, such as "gemini" or "openai".
	Name() string

	// DefaultModel returns the model requests are sent to.
	DefaultModel() string
}

// ── Options ──────────────────────────────────────────────────────────────────

// Option configures an adapter.
type Option func(*options)

type options struct {
	baseURL    string
	model      string
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
}

// DefaultTimeout bounds a single upstream call.
const DefaultTimeout = 60 * time.Second

func buildOptions(opts []Option) options {
	o := options{timeout: DefaultTimeout, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{}
	}
	return o
}

func WithBaseURL(url string) Option {
	return func(o *options) { o.baseURL = url }
}

func WithModel(model string) Option {
	return func(o *options) { o.model = model }
}

func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.httpClient = client }
}

// WithTimeout sets the per-call deadline. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func (o options) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.timeout)
}

func (o options) logLatency(provider, model string, start time.Time, err error) {
	attrs := []any{
		"provider", provider,
		"model", model,
		"duration", time.Since(start),
	}
	if err != nil {
		o.logger.Warn("upstream call failed", append(attrs, "err", err)...)
		return
	}
	o.logger.Info("upstream call", attrs...)
}
