// Package llm adapts langchaingo chat models to the provider-agnostic shapes
// of the domain package, including a bounded tool-calling loop.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/openai"

	"purpuria-agent/internal/domain"
)

const defaultMaxToolSteps = 8

// ErrToolStepsExhausted is returned when the model keeps requesting tools
// past the configured step limit.
var ErrToolStepsExhausted = errors.New("llm: tool step limit reached without a final answer")

// Client runs chat completions against a langchaingo model.
type Client struct {
	model        llms.Model
	maxToolSteps int
}

type Option func(*Client)

// WithMaxToolSteps bounds the number of model turns in RunTools.
func WithMaxToolSteps(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxToolSteps = n
		}
	}
}

// New wraps an existing langchaingo model.
func New(model llms.Model, opts ...Option) (*Client, error) {
	if model == nil {
		return nil, errors.New("llm: model must not be nil")
	}
	c := &Client{model: model, maxToolSteps: defaultMaxToolSteps}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewGemini builds a client backed by the Google AI (Gemini) provider.
func NewGemini(ctx context.Context, apiKey, defaultModel string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("llm: gemini api key must not be empty")
	}
	gopts := []googleai.Option{googleai.WithAPIKey(apiKey)}
	if defaultModel != "" {
		gopts = append(gopts, googleai.WithDefaultModel(defaultModel))
	}
	model, err := googleai.New(ctx, gopts...)
	if err != nil {
		return nil, fmt.Errorf("llm: create gemini model: %w", err)
	}
	return New(model, opts...)
}

// NewOpenAI builds a client backed by an OpenAI-compatible endpoint.
func NewOpenAI(apiKey, defaultModel, baseURL string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("llm: openai api key must not be empty")
	}
	oopts := []openai.Option{openai.WithToken(apiKey)}
	if defaultModel != "" {
		oopts = append(oopts, openai.WithModel(defaultModel))
	}
	if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
		oopts = append(oopts, openai.WithBaseURL(baseURL))
	}
	model, err := openai.New(oopts...)
	if err != nil {
		return nil, fmt.Errorf("llm: create openai model: %w", err)
	}
	return New(model, opts...)
}

// Chat returns the text of a single completion.
func (c *Client) Chat(ctx context.Context, model domain.ModelConfig, messages []domain.ChatMessage) (string, error) {
	resp, err := c.model.GenerateContent(ctx, toMessageContent(messages), callOptions(model, nil)...)
	if err != nil {
		return "", fmt.Errorf("llm: generate: %w", err)
	}
	choice, err := firstChoice(resp)
	if err != nil {
		return "", err
	}
	return choice.Content, nil
}

// RunTools lets the model call tools until it produces a text answer. Tool
// results are fed back as tool messages; unknown tool names are answered
// with an error payload so the model can recover.
func (c *Client) RunTools(ctx context.Context, model domain.ModelConfig, messages []domain.ChatMessage, tools []domain.Tool) (string, error) {
	byName := make(map[string]domain.Tool, len(tools))
	defs := make([]llms.Tool, 0, len(tools))
	for _, t := range tools {
		byName[t.Name()] = t
		defs = append(defs, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}

	history := toMessageContent(messages)
	opts := callOptions(model, defs)
	for step := 0; step < c.maxToolSteps; step++ {
		resp, err := c.model.GenerateContent(ctx, history, opts...)
		if err != nil {
			return "", fmt.Errorf("llm: generate (step %d): %w", step, err)
		}
		choice, err := firstChoice(resp)
		if err != nil {
			return "", err
		}
		if len(choice.ToolCalls) == 0 {
			return choice.Content, nil
		}

		calls := make([]llms.ContentPart, 0, len(choice.ToolCalls))
		for _, tc := range choice.ToolCalls {
			calls = append(calls, tc)
		}
		history = append(history, llms.MessageContent{Role: llms.ChatMessageTypeAI, Parts: calls})

		for _, tc := range choice.ToolCalls {
			name, result, err := invoke(ctx, byName, tc)
			if err != nil {
				return "", err
			}
			history = append(history, llms.MessageContent{
				Role: llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{llms.ToolCallResponse{
					ToolCallID: tc.ID,
					Name:       name,
					Content:    result,
				}},
			})
		}
	}
	return "", ErrToolStepsExhausted
}

func invoke(ctx context.Context, byName map[string]domain.Tool, tc llms.ToolCall) (string, string, error) {
	if tc.FunctionCall == nil {
		return "", unknownTool(""), nil
	}
	name := tc.FunctionCall.Name
	tool, ok := byName[name]
	if !ok {
		log.Warn().Str("tool", name).Msg("model requested unknown tool")
		return name, unknownTool(name), nil
	}
	log.Debug().Str("tool", name).Str("args", tc.FunctionCall.Arguments).Msg("calling tool")
	result, err := tool.Call(ctx, json.RawMessage(tc.FunctionCall.Arguments))
	if err != nil {
		return name, "", fmt.Errorf("llm: tool %s: %w", name, err)
	}
	return name, result, nil
}

func unknownTool(name string) string {
	buf, _ := json.Marshal(map[string]string{"erro": "ferramenta desconhecida: " + name})
	return string(buf)
}

func callOptions(model domain.ModelConfig, tools []llms.Tool) []llms.CallOption {
	opts := []llms.CallOption{llms.WithTemperature(model.Temperature)}
	if model.Name != "" {
		opts = append(opts, llms.WithModel(model.Name))
	}
	if model.TopP > 0 {
		opts = append(opts, llms.WithTopP(model.TopP))
	}
	if len(tools) > 0 {
		opts = append(opts, llms.WithTools(tools))
	}
	return opts
}

func firstChoice(resp *llms.ContentResponse) (*llms.ContentChoice, error) {
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return nil, errors.New("llm: no choices in response")
	}
	return resp.Choices[0], nil
}

func toMessageContent(messages []domain.ChatMessage) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		out = append(out, llms.TextParts(messageType(m.Role), m.Content))
	}
	return out
}

func messageType(r domain.Role) llms.ChatMessageType {
	switch r {
	case domain.RoleSystem:
		return llms.ChatMessageTypeSystem
	case domain.RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}
