// Anthropic Provider implementation using official anthropic-sdk-go.
//
// Information Hiding:
// - API endpoint and authentication
// - Request/response format for Anthropic Messages API
// - cache_control placement for messages marked as cache breakpoints
// - Folding consecutive tool results into one user turn

package llm

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider implements the Provider interface for Anthropic Claude.
type AnthropicProvider struct {
	defaults
	client anthropic.Client
}

// NewAnthropicProvider creates a new Anthropic provider.
func NewAnthropicProvider(apiKey, model string, maxTokens uint32, temperature float32, opts ...option.RequestOption) *AnthropicProvider {
	base := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0), // Client owns retries
		option.WithHTTPClient(&http.Client{Timeout: DefaultRequestTimeout}),
	}
	client := anthropic.NewClient(append(base, opts...)...)

	return &AnthropicProvider{
		defaults: defaults{model: model, maxTokens: maxTokens, temperature: temperature},
		client:   client,
	}
}

// Name returns the provider name.
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// Model returns the current model.
func (p *AnthropicProvider) Model() string {
	return p.model
}

// Complete sends a Messages API request.
func (p *AnthropicProvider) Complete(ctx context.Context, req Request) (LLMResponse, error) {
	messages, system := convertToAnthropicMessages(req.Messages)

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(p.modelFor(req)),
		MaxTokens:   int64(p.maxTokensFor(req)),
		Messages:    messages,
		Temperature: anthropic.Float(float64(p.temperatureFor(req))),
		System:      system,
	}

	// Tools stay declared whenever any are offered: the API rejects
	// tool_use history without them, so "none" is expressed via tool_choice.
	if len(req.Tools) > 0 {
		params.Tools = convertToAnthropicTools(req.Tools)
		switch req.ToolChoice {
		case ToolChoiceNone:
			none := anthropic.NewToolChoiceNoneParam()
			params.ToolChoice = anthropic.ToolChoiceUnionParam{OfNone: &none}
		case ToolChoiceAuto:
			params.ToolChoice = anthropic.ToolChoiceUnionParam{OfAuto: &anthropic.ToolChoiceAutoParam{}}
		}
	}

	message, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return LLMResponse{}, classifyError("anthropic", err)
	}

	content := ""
	var toolCalls []ToolCall
	for _, block := range message.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			content += variant.Text
		case anthropic.ToolUseBlock:
			toolCalls = append(toolCalls, ToolCall{
				ID:        variant.ID,
				Name:      variant.Name,
				Arguments: json.RawMessage(variant.Input),
			})
		}
	}

	var usage *TokenUsage
	if message.Usage.InputTokens > 0 || message.Usage.OutputTokens > 0 {
		// InputTokens excludes cache reads and writes.
		prompt := message.Usage.InputTokens + message.Usage.CacheReadInputTokens + message.Usage.CacheCreationInputTokens
		usage = &TokenUsage{
			PromptTokens:     uint32(prompt),
			CompletionTokens: uint32(message.Usage.OutputTokens),
			TotalTokens:      uint32(prompt + message.Usage.OutputTokens),
			CachedTokens:     uint32(message.Usage.CacheReadInputTokens),
		}
	}

	return LLMResponse{Content: content, ToolCalls: toolCalls, Usage: usage}, nil
}

// convertToAnthropicMessages splits out system blocks and converts the rest.
// Every system message becomes its own text block so a breakpoint can sit
// between the stable prompt and the project context.
func convertToAnthropicMessages(messages []ChatMessage) ([]anthropic.MessageParam, []anthropic.TextBlockParam) {
	var out []anthropic.MessageParam
	var system []anthropic.TextBlockParam

	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			block := anthropic.TextBlockParam{Text: msg.Content}
			if msg.CacheBreakpoint {
				block.CacheControl = anthropic.NewCacheControlEphemeralParam()
			}
			system = append(system, block)
		case RoleUser:
			out = append(out, anthropic.NewUserMessage(markBreakpoint(msg, anthropic.NewTextBlock(msg.Content))))
		case RoleAssistant:
			param := anthropic.MessageParam{Role: anthropic.MessageParamRoleAssistant}
			if msg.Content != "" {
				param.Content = append(param.Content, anthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				var input map[string]any
				_ = json.Unmarshal(tc.Arguments, &input)
				if input == nil {
					input = map[string]any{}
				}
				param.Content = append(param.Content, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
			}
			if len(param.Content) == 0 {
				param.Content = append(param.Content, anthropic.NewTextBlock(" "))
			}
			if msg.CacheBreakpoint {
				markBreakpoint(msg, param.Content[len(param.Content)-1])
			}
			out = append(out, param)
		case RoleTool:
			block := markBreakpoint(msg, anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false))
			// Results for one assistant turn must share a single user message.
			if n := len(out); n > 0 && out[n-1].Role == anthropic.MessageParamRoleUser && isToolResultTurn(out[n-1]) {
				out[n-1].Content = append(out[n-1].Content, block)
				continue
			}
			out = append(out, anthropic.NewUserMessage(block))
		}
	}

	return out, system
}

func markBreakpoint(msg ChatMessage, block anthropic.ContentBlockParamUnion) anthropic.ContentBlockParamUnion {
	if msg.CacheBreakpoint {
		if cc := block.GetCacheControl(); cc != nil {
			*cc = anthropic.NewCacheControlEphemeralParam()
		}
	}
	return block
}

func isToolResultTurn(m anthropic.MessageParam) bool {
	for _, b := range m.Content {
		if b.OfToolResult == nil {
			return false
		}
	}
	return len(m.Content) > 0
}

// convertToAnthropicTools converts tool definitions to Anthropic format.
func convertToAnthropicTools(tools []ToolDefinition) []anthropic.ToolUnionParam {
	result := make([]anthropic.ToolUnionParam, len(tools))
	for i, t := range tools {
		// Extract properties and required from the full schema
		properties, _ := t.Parameters["properties"].(map[string]any)
		required := requiredFields(t.Parameters)

		toolParam := anthropic.ToolParam{
			Name:        t.Name,
			Description: anthropic.String(t.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: properties,
				Required:   required,
			},
		}
		result[i] = anthropic.ToolUnionParam{OfTool: &toolParam}
	}
	return result
}

// requiredFields reads a schema's "required" list in either slice form.
func requiredFields(schema map[string]any) []string {
	switch req := schema["required"].(type) {
	case []string:
		return req
	case []any:
		out := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Verify AnthropicProvider implements Provider
var _ Provider = (*AnthropicProvider)(nil)
