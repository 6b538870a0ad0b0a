package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"purpuria-agent/internal/domain"
)

type chatResponse struct {
	answer string
	err    error
}

type mockLLM struct {
	responses []chatResponse
	callCount int
	models    []domain.ModelConfig
	messages  [][]domain.ChatMessage
}

func (m *mockLLM) Chat(_ context.Context, model domain.ModelConfig, messages []domain.ChatMessage) (string, error) {
	m.models = append(m.models, model)
	m.messages = append(m.messages, messages)
	if len(m.responses) == 0 {
		return "", errors.New("no llm response configured")
	}
	idx := m.callCount
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	m.callCount++
	return m.responses[idx].answer, m.responses[idx].err
}

type mockRunner struct {
	answer   string
	err      error
	calls    int
	messages []domain.ChatMessage
	tools    []domain.Tool

	// invoke makes the runner call every tool once before answering.
	invoke bool
}

func (m *mockRunner) RunTools(ctx context.Context, _ domain.ModelConfig, messages []domain.ChatMessage, tools []domain.Tool) (string, error) {
	m.calls++
	m.messages = messages
	m.tools = tools
	if m.invoke {
		for _, t := range tools {
			if _, err := t.Call(ctx, json.RawMessage(`{}`)); err != nil {
				return "", err
			}
		}
	}
	return m.answer, m.err
}

type namedTool struct {
	name     string
	callerID string
	output   string
}

func (t namedTool) Name() string               { return t.name }
func (t namedTool) Description() string        { return "" }
func (t namedTool) Parameters() map[string]any { return nil }
func (t namedTool) Call(context.Context, json.RawMessage) (string, error) {
	if t.output == "" {
		return "{}", nil
	}
	return t.output, nil
}

type mockToolset struct {
	name   string
	output string
	bound  []string
}

func (m *mockToolset) Bind(callerID string) []domain.Tool {
	m.bound = append(m.bound, callerID)
	return []domain.Tool{namedTool{name: m.name, callerID: callerID, output: m.output}}
}

func allToolsets() map[domain.Domain]Toolset {
	return map[domain.Domain]Toolset{
		domain.DomainFAQ:    &mockToolset{name: "buscar_no_redis"},
		domain.DomainOrders: &mockToolset{name: "consultar_pedidos_usuario"},
		domain.DomainWaste:  &mockToolset{name: "consultar_catalogo_residuos"},
	}
}

type memoryHistory struct {
	mu        sync.Mutex
	turns     map[domain.ConversationKey][]domain.Turn
	loadErr   error
	appendErr error
	appends   int

	// loadDeadline records whether the last Load ran under a deadline.
	loadDeadline bool
}

func newMemoryHistory() *memoryHistory {
	return &memoryHistory{turns: map[domain.ConversationKey][]domain.Turn{}}
}

func (h *memoryHistory) Load(ctx context.Context, key domain.ConversationKey) ([]domain.Turn, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, h.loadDeadline = ctx.Deadline()
	if h.loadErr != nil {
		return nil, h.loadErr
	}
	return append([]domain.Turn(nil), h.turns[key]...), nil
}

func (h *memoryHistory) Append(_ context.Context, key domain.ConversationKey, turns ...domain.Turn) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.appends++
	if h.appendErr != nil {
		return h.appendErr
	}
	h.turns[key] = append(h.turns[key], turns...)
	return nil
}

type stubRouter struct {
	mu       sync.Mutex
	decision domain.RouteDecision
	calls    int
	history  []domain.Turn
}

func (r *stubRouter) Route(_ context.Context, _ string, history []domain.Turn) domain.RouteDecision {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.history = history
	return r.decision
}

type stubDispatcher struct {
	result domain.SpecialistResult
	err    error
	calls  int
	req    SpecialistRequest
}

func (d *stubDispatcher) Dispatch(_ context.Context, req SpecialistRequest) (domain.SpecialistResult, error) {
	d.calls++
	d.req = req
	return d.result, d.err
}

// approveValidator returns the reply unchanged unless rewrite is set.
type approveValidator struct {
	mu      sync.Mutex
	rewrite string
	err     error
	calls   int
	req     ValidationRequest
}

func (v *approveValidator) Validate(_ context.Context, req ValidationRequest) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls++
	v.req = req
	if v.err != nil {
		return "", v.err
	}
	if v.rewrite != "" {
		return v.rewrite, nil
	}
	return req.Reply, nil
}
