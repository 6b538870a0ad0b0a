package llm

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"purpuria-agent/internal/domain"
)

type fakeModel struct {
	responses []*llms.ContentResponse
	err       error
	calls     [][]llms.MessageContent
	opts      []llms.CallOptions
}

func (f *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	var opts llms.CallOptions
	for _, o := range options {
		o(&opts)
	}
	f.calls = append(f.calls, append([]llms.MessageContent(nil), messages...))
	f.opts = append(f.opts, opts)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.responses) == 0 {
		return nil, errors.New("no scripted response")
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func text(s string) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: s}}}
}

func toolCall(id, name, args string) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{
		ToolCalls: []llms.ToolCall{{
			ID:           id,
			Type:         "function",
			FunctionCall: &llms.FunctionCall{Name: name, Arguments: args},
		}},
	}}}
}

type echoTool struct {
	name string
	got  []string
	err  error
}

func (t *echoTool) Name() string               { return t.name }
func (t *echoTool) Description() string        { return "echo" }
func (t *echoTool) Parameters() map[string]any { return map[string]any{"type": "object"} }
func (t *echoTool) Call(_ context.Context, args json.RawMessage) (string, error) {
	t.got = append(t.got, string(args))
	if t.err != nil {
		return "", t.err
	}
	return `{"ok":true}`, nil
}

var fast = domain.ModelConfig{Name: "gemini-2.0-flash"}

func TestNew_NilModel(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
}

func TestNewGemini_EmptyKey(t *testing.T) {
	_, err := NewGemini(context.Background(), " ", "gemini-2.5-flash")
	require.ErrorContains(t, err, "api key")
}

func TestNewOpenAI_EmptyKey(t *testing.T) {
	_, err := NewOpenAI("", "gpt-4o-mini", "")
	require.ErrorContains(t, err, "api key")
}

func TestChat_MapsRolesAndOptions(t *testing.T) {
	m := &fakeModel{responses: []*llms.ContentResponse{text("ROUTE=pedidos")}}
	c, err := New(m)
	require.NoError(t, err)

	out, err := c.Chat(context.Background(), domain.ModelConfig{Name: "main", Temperature: 0.7, TopP: 0.95}, []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: "sys"},
		{Role: domain.RoleUser, Content: "oi"},
		{Role: domain.RoleAssistant, Content: "olá"},
	})
	require.NoError(t, err)
	require.Equal(t, "ROUTE=pedidos", out)

	require.Len(t, m.calls, 1)
	roles := []llms.ChatMessageType{}
	for _, mc := range m.calls[0] {
		roles = append(roles, mc.Role)
	}
	require.Equal(t, []llms.ChatMessageType{llms.ChatMessageTypeSystem, llms.ChatMessageTypeHuman, llms.ChatMessageTypeAI}, roles)
	require.Equal(t, "main", m.opts[0].Model)
	require.InDelta(t, 0.7, m.opts[0].Temperature, 1e-9)
	require.InDelta(t, 0.95, m.opts[0].TopP, 1e-9)
	require.Empty(t, m.opts[0].Tools)
}

func TestChat_Errors(t *testing.T) {
	c, err := New(&fakeModel{err: errors.New("quota")})
	require.NoError(t, err)
	_, err = c.Chat(context.Background(), fast, nil)
	require.ErrorContains(t, err, "quota")

	c, err = New(&fakeModel{responses: []*llms.ContentResponse{{}}})
	require.NoError(t, err)
	_, err = c.Chat(context.Background(), fast, nil)
	require.ErrorContains(t, err, "no choices")
}

func TestRunTools_CallsToolAndFeedsResultBack(t *testing.T) {
	m := &fakeModel{responses: []*llms.ContentResponse{
		toolCall("c1", "consultar_pedidos_usuario", `{"status":"pendente"}`),
		text(`{"dominio":"pedidos","resposta":"Você tem 1 pedido."}`),
	}}
	tool := &echoTool{name: "consultar_pedidos_usuario"}
	c, err := New(m)
	require.NoError(t, err)

	out, err := c.RunTools(context.Background(), fast, []domain.ChatMessage{{Role: domain.RoleUser, Content: "meus pedidos"}}, []domain.Tool{tool})
	require.NoError(t, err)
	require.Equal(t, `{"dominio":"pedidos","resposta":"Você tem 1 pedido."}`, out)
	require.Equal(t, []string{`{"status":"pendente"}`}, tool.got)

	require.Len(t, m.opts[0].Tools, 1)
	require.Equal(t, "consultar_pedidos_usuario", m.opts[0].Tools[0].Function.Name)

	second := m.calls[1]
	require.Len(t, second, 3)
	require.Equal(t, llms.ChatMessageTypeAI, second[1].Role)
	require.Equal(t, llms.ChatMessageTypeTool, second[2].Role)
	resp, ok := second[2].Parts[0].(llms.ToolCallResponse)
	require.True(t, ok)
	require.Equal(t, "c1", resp.ToolCallID)
	require.Equal(t, `{"ok":true}`, resp.Content)
}

func TestRunTools_UnknownToolReportedToModel(t *testing.T) {
	m := &fakeModel{responses: []*llms.ContentResponse{
		toolCall("c1", "apagar_tudo", `{}`),
		text("ok"),
	}}
	c, err := New(m)
	require.NoError(t, err)

	out, err := c.RunTools(context.Background(), fast, nil, nil)
	require.NoError(t, err)
	require.Equal(t, "ok", out)
	resp := m.calls[1][1].Parts[0].(llms.ToolCallResponse)
	require.Contains(t, resp.Content, "ferramenta desconhecida")
}

func TestRunTools_StepLimit(t *testing.T) {
	m := &fakeModel{responses: []*llms.ContentResponse{
		toolCall("c1", "t", `{}`),
		toolCall("c2", "t", `{}`),
		toolCall("c3", "t", `{}`),
	}}
	c, err := New(m, WithMaxToolSteps(2))
	require.NoError(t, err)

	_, err = c.RunTools(context.Background(), fast, nil, []domain.Tool{&echoTool{name: "t"}})
	require.ErrorIs(t, err, ErrToolStepsExhausted)
	require.Len(t, m.calls, 2)
}

func TestRunTools_ToolFailureAborts(t *testing.T) {
	m := &fakeModel{responses: []*llms.ContentResponse{toolCall("c1", "t", `{}`)}}
	c, err := New(m)
	require.NoError(t, err)

	_, err = c.RunTools(context.Background(), fast, nil, []domain.Tool{&echoTool{name: "t", err: errors.New("encode")}})
	require.ErrorContains(t, err, "tool t")
}
