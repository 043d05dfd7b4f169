package provider

import (
	"context"
	"errors"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
)

const DefaultAnthropicModel = "claude-sonnet-4-20250514"

// AnthropicProvider implements Provider using the Anthropic native API.
type AnthropicProvider struct {
	client anthropic.Client
	opts   options
}

var _ Provider = (*AnthropicProvider)(nil)

func NewAnthropicProvider(apiKey string, opts ...Option) *AnthropicProvider {
	o := buildOptions(opts)
	if o.model == "" {
		o.model = DefaultAnthropicModel
	}

	reqOpts := []anthropicoption.RequestOption{
		anthropicoption.WithAPIKey(apiKey),
		anthropicoption.WithHTTPClient(o.httpClient),
		anthropicoption.WithMaxRetries(0),
	}
	if o.baseURL != "" {
		reqOpts = append(reqOpts, anthropicoption.WithBaseURL(o.baseURL))
	}

	return &AnthropicProvider{
		client: anthropic.NewClient(reqOpts...),
		opts:   o,
	}
}

func (p *AnthropicProvider) Name() string         { return "anthropic" }
func (p *AnthropicProvider) DefaultModel() string { return p.opts.model }

func (p *AnthropicProvider) Generate(ctx context.Context, req *Request) (resp *Response, err error) {
	start := time.Now()
	defer func() { p.opts.logLatency(p.Name(), p.opts.model, start, err) }()

	ctx, cancel := p.opts.withTimeout(ctx)
	defer cancel()

	gc := req.GenerationConfig
	maxTokens := int64(gc.MaxOutputTokens)
	if maxTokens <= 0 {
		maxTokens = 500
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(p.opts.model),
		Messages:    p.buildMessages(req.Contents),
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(gc.Temperature),
	}
	if gc.TopK > 0 {
		params.TopK = anthropic.Int(int64(gc.TopK))
	}
	if req.SystemInstruction != nil {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemInstruction.Text()}}
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, p.wrapError(err)
	}

	var texts []string
	for _, block := range msg.Content {
		if block.Type == "text" {
			texts = append(texts, block.Text)
		}
	}
	if len(texts) == 0 {
		return &Response{}, nil
	}
	return textResponse(texts, string(msg.StopReason)), nil
}

// buildMessages converts Gemini-shaped contents to Anthropic message params.
func (p *AnthropicProvider) buildMessages(contents []Content) []anthropic.MessageParam {
	params := make([]anthropic.MessageParam, 0, len(contents))
	for _, c := range contents {
		block := anthropic.NewTextBlock(c.Text())
		switch c.Role {
		case RoleModel:
			params = append(params, anthropic.NewAssistantMessage(block))
		default:
			params = append(params, anthropic.NewUserMessage(block))
		}
	}
	return params
}

func (p *AnthropicProvider) wrapError(err error) error {
	ue := &UpstreamError{Provider: p.Name(), Message: "Failed to call Anthropic API", Err: err}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		ue.StatusCode = apiErr.StatusCode
	}
	return ue
}
