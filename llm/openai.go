// OpenAI-compatible Provider implementation using go-openai library.
//
// Serves OpenRouter, OpenAI and DeepSeek, which share the Chat Completions
// wire format and differ only in base URL and headers.
//
// Information Hiding:
// - API endpoint, authentication and extra request headers
// - Request/response format for the Chat Completions API
// - Mapping of go-openai errors to StatusError

package llm

import (
	"context"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	openRouterBaseURL = "https://openrouter.ai/api/v1"
	deepseekBaseURL   = "https://api.deepseek.com/v1"

	// DefaultRequestTimeout bounds a single HTTP round trip.
	DefaultRequestTimeout = 30 * time.Second

	openRouterReferer = "https://github.com/richinex/lampcode"
	openRouterTitle   = "LampCode"
)

// OpenAIProvider implements the Provider interface for OpenAI-compatible
// endpoints.
type OpenAIProvider struct {
	defaults
	name   string
	client *openai.Client
}

// CompatibleConfig configures an OpenAI-compatible endpoint.
type CompatibleConfig struct {
	Name        string
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   uint32
	Temperature float32
	Headers     map[string]string
	Timeout     time.Duration
}

// NewCompatibleProvider creates a provider for any Chat Completions endpoint.
func NewCompatibleProvider(cfg CompatibleConfig) *OpenAIProvider {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	var transport http.RoundTripper = http.DefaultTransport
	if len(cfg.Headers) > 0 {
		transport = &headerTransport{base: transport, headers: cfg.Headers}
	}
	oc.HTTPClient = &http.Client{Timeout: timeout, Transport: transport}

	name := cfg.Name
	if name == "" {
		name = "openai"
	}
	return &OpenAIProvider{
		defaults: defaults{model: cfg.Model, maxTokens: cfg.MaxTokens, temperature: cfg.Temperature},
		name:     name,
		client:   openai.NewClientWithConfig(oc),
	}
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(apiKey, model string, maxTokens uint32, temperature float32) *OpenAIProvider {
	return NewCompatibleProvider(openAIConfig(apiKey, model, maxTokens, temperature))
}

// NewOpenRouterProvider creates a provider routed through OpenRouter.
func NewOpenRouterProvider(apiKey, model string, maxTokens uint32, temperature float32) *OpenAIProvider {
	return NewCompatibleProvider(openRouterConfig(apiKey, model, maxTokens, temperature))
}

// NewDeepSeekProvider creates a new DeepSeek provider.
func NewDeepSeekProvider(apiKey, model string, maxTokens uint32, temperature float32) *OpenAIProvider {
	return NewCompatibleProvider(deepSeekConfig(apiKey, model, maxTokens, temperature))
}

func openAIConfig(apiKey, model string, maxTokens uint32, temperature float32) CompatibleConfig {
	return CompatibleConfig{
		Name:        "openai",
		APIKey:      apiKey,
		Model:       model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}
}

func openRouterConfig(apiKey, model string, maxTokens uint32, temperature float32) CompatibleConfig {
	return CompatibleConfig{
		Name:        "openrouter",
		APIKey:      apiKey,
		BaseURL:     openRouterBaseURL,
		Model:       model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		Headers: map[string]string{
			"HTTP-Referer": openRouterReferer,
			"X-Title":      openRouterTitle,
		},
	}
}

func deepSeekConfig(apiKey, model string, maxTokens uint32, temperature float32) CompatibleConfig {
	return CompatibleConfig{
		Name:        "deepseek",
		APIKey:      apiKey,
		BaseURL:     deepseekBaseURL,
		Model:       model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string {
	return p.name
}

// Model returns the current model.
func (p *OpenAIProvider) Model() string {
	return p.model
}

// Complete sends a chat completion request. Cache breakpoints are not part
// of this wire format; OpenAI-compatible backends cache prefixes on their own.
func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (LLMResponse, error) {
	oreq := openai.ChatCompletionRequest{
		Model:       p.modelFor(req),
		Messages:    convertToOpenAIMessages(req.Messages),
		MaxTokens:   p.maxTokensFor(req),
		Temperature: p.temperatureFor(req),
	}
	if len(req.Tools) > 0 {
		oreq.Tools = convertToOpenAITools(req.Tools)
		if req.ToolChoice != "" {
			oreq.ToolChoice = string(req.ToolChoice)
		}
	}
	if f := req.ResponseFormat; f != nil {
		oreq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatType(f.Type),
		}
		if f.JSONSchema != nil {
			oreq.ResponseFormat.JSONSchema = &openai.ChatCompletionResponseFormatJSONSchema{
				Name:        f.JSONSchema.Name,
				Description: f.JSONSchema.Description,
				Schema:      f.JSONSchema.Schema,
				Strict:      f.JSONSchema.Strict,
			}
		}
	}

	resp, err := p.client.CreateChatCompletion(ctx, oreq)
	if err != nil {
		return LLMResponse{}, classifyError(p.name, err)
	}

	content := ""
	var toolCalls []ToolCall
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
		// Convert OpenAI tool calls to our format
		for _, tc := range resp.Choices[0].Message.ToolCalls {
			toolCalls = append(toolCalls, ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: []byte(tc.Function.Arguments),
			})
		}
	}

	usage := &TokenUsage{
		PromptTokens:     uint32(resp.Usage.PromptTokens),
		CompletionTokens: uint32(resp.Usage.CompletionTokens),
		TotalTokens:      uint32(resp.Usage.TotalTokens),
	}
	if d := resp.Usage.PromptTokensDetails; d != nil {
		usage.CachedTokens = uint32(d.CachedTokens)
	}

	return LLMResponse{Content: content, ToolCalls: toolCalls, Usage: usage}, nil
}

// convertToOpenAIMessages handles tool calls and tool responses.
func convertToOpenAIMessages(messages []ChatMessage) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		oaiMsg := openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}

		// Handle tool calls from assistant
		for _, tc := range msg.ToolCalls {
			oaiMsg.ToolCalls = append(oaiMsg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: string(tc.Arguments),
				},
			})
		}

		// Handle tool response
		if msg.ToolCallID != "" {
			oaiMsg.ToolCallID = msg.ToolCallID
		}

		result[i] = oaiMsg
	}
	return result
}

// convertToOpenAITools converts tool definitions to OpenAI format.
func convertToOpenAITools(tools []ToolDefinition) []openai.Tool {
	result := make([]openai.Tool, len(tools))
	for i, t := range tools {
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		}
	}
	return result
}

// headerTransport adds fixed headers to every request.
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	for k, v := range t.headers {
		r.Header.Set(k, v)
	}
	return t.base.RoundTrip(r)
}

// Verify OpenAIProvider implements Provider
var _ Provider = (*OpenAIProvider)(nil)
