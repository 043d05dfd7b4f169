package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultGeminiModel   = "gemini-1.5-flash"

	geminiClientHeader  = "gemchat/1.0"
	geminiDefaultErrMsg = "Failed to call Gemini API"
)

// GeminiProvider calls the Gemini generateContent endpoint directly.
type GeminiProvider struct {
	apiKey string
	opts   options
}

var _ Provider = (*GeminiProvider)(nil)

func NewGeminiProvider(apiKey string, opts ...Option) *GeminiProvider {
	o := buildOptions(opts)
	if o.baseURL == "" {
		o.baseURL = DefaultGeminiBaseURL
	}
	if o.model == "" {
		o.model = DefaultGeminiModel
	}
	return &GeminiProvider{apiKey: apiKey, opts: o}
}

func (p *GeminiProvider) Name() string         { return "gemini" }
func (p *GeminiProvider) DefaultModel() string { return p.opts.model }

func (p *GeminiProvider) Generate(ctx context.Context, req *Request) (resp *Response, err error) {
	start := time.Now()
	defer func() { p.opts.logLatency(p.Name(), p.opts.model, start, err) }()

	ctx, cancel := p.opts.withTimeout(ctx)
	defer cancel()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode gemini request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, &UpstreamError{Provider: p.Name(), Message: geminiDefaultErrMsg, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Goog-Api-Client", geminiClientHeader)

	httpResp, err := p.opts.httpClient.Do(httpReq)
	if err != nil {
		return nil, &UpstreamError{Provider: p.Name(), Message: geminiDefaultErrMsg, Err: err}
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(httpResp.Body, 64<<10))
		return nil, &UpstreamError{
			Provider:   p.Name(),
			StatusCode: httpResp.StatusCode,
			Message:    geminiErrorMessage(data),
		}
	}

	var out Response
	if err := json.NewDecoder(httpResp.Body).Decode(&out); err != nil {
		return nil, &UpstreamError{
			Provider:   p.Name(),
			StatusCode: httpResp.StatusCode,
			Message:    "decode gemini response",
			Err:        err,
		}
	}
	return &out, nil
}

func (p *GeminiProvider) endpoint() string {
	u := strings.TrimRight(p.opts.baseURL, "/") + "/models/" + url.PathEscape(p.opts.model) + ":generateContent"
	if p.apiKey != "" {
		u += "?key=" + url.QueryEscape(p.apiKey)
	}
	return u
}

// geminiErrorMessage extracts error.message from an error body.
func geminiErrorMessage(body []byte) string {
	var e struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error.Message != "" {
		return e.Error.Message
	}
	return geminiDefaultErrMsg
}
