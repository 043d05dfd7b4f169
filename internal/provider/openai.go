package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAIProvider implements Provider for all OpenAI-compatible APIs,
// including OpenAI, DeepSeek, Kimi, Qwen, etc.
type OpenAIProvider struct {
	client openai.Client
	name   string
	opts   options
}

var _ Provider = (*OpenAIProvider)(nil)

func NewOpenAIProvider(apiKey string, opts ...Option) *OpenAIProvider {
	o := buildOptions(opts)
	if o.model == "" {
		o.model = DefaultOpenAIModel
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(o.httpClient),
		option.WithMaxRetries(0),
	}
	if o.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(o.baseURL))
	}

	return &OpenAIProvider{
		client: openai.NewClient(reqOpts...),
		name:   openAICompatibleName(o.baseURL),
		opts:   o,
	}
}

// openAICompatibleName guesses the vendor behind an OpenAI-compatible base URL.
func openAICompatibleName(baseURL string) string {
	switch {
	case strings.Contains(baseURL, "deepseek"):
		return "deepseek"
	case strings.Contains(baseURL, "moonshot"):
		return "kimi"
	case strings.Contains(baseURL, "dashscope"):
		return "qwen"
	case strings.Contains(baseURL, "generativelanguage"):
		return "gemini-openai"
	default:
		return "openai"
	}
}

func (p *OpenAIProvider) Name() string         { return p.name }
func (p *OpenAIProvider) DefaultModel() string { return p.opts.model }

func (p *OpenAIProvider) Generate(ctx context.Context, req *Request) (resp *Response, err error) {
	start := time.Now()
	defer func() { p.opts.logLatency(p.Name(), p.opts.model, start, err) }()

	ctx, cancel := p.opts.withTimeout(ctx)
	defer cancel()

	gc := req.GenerationConfig
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(p.opts.model),
		Messages:    p.buildMessages(req),
		Temperature: openai.Float(gc.Temperature),
		TopP:        openai.Float(gc.TopP),
	}
	if gc.MaxOutputTokens > 0 {
		params.MaxTokens = openai.Int(int64(gc.MaxOutputTokens))
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, p.wrapError(err)
	}
	if len(completion.Choices) == 0 {
		return &Response{}, nil
	}
	choice := completion.Choices[0]
	return textResponse([]string{choice.Message.Content}, string(choice.FinishReason)), nil
}

// buildMessages converts the Gemini-shaped contents to OpenAI chat messages.
func (p *OpenAIProvider) buildMessages(req *Request) []openai.ChatCompletionMessageParamUnion {
	var params []openai.ChatCompletionMessageParamUnion

	if req.SystemInstruction != nil {
		params = append(params, openai.SystemMessage(req.SystemInstruction.Text()))
	}

	for _, c := range req.Contents {
		text := c.Text()
		switch c.Role {
		case RoleModel:
			assistant := openai.ChatCompletionAssistantMessageParam{
				Content: openai.ChatCompletionAssistantMessageParamContentUnion{OfString: openai.String(text)},
			}
			params = append(params, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		default:
			params = append(params, openai.UserMessage(text))
		}
	}
	return params
}

func (p *OpenAIProvider) wrapError(err error) error {
	ue := &UpstreamError{Provider: p.Name(), Message: fmt.Sprintf("Failed to call %s API", p.Name()), Err: err}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		ue.StatusCode = apiErr.StatusCode
	}
	return ue
}
