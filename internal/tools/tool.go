// Package tools adapts the data stores into the query capabilities the
// specialists call. A Set is bound to one caller per request; the caller
// identity never comes from model-supplied arguments.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"purpuria-agent/internal/domain"
)

// Handler executes a tool call on behalf of callerID.
type Handler func(ctx context.Context, callerID string, args json.RawMessage) (any, error)

// Spec describes one tool independently of any caller.
type Spec struct {
	Name        string
	Description string
	Parameters  map[string]any
	Handler     Handler
}

// Set is the toolset of a single specialist domain.
type Set struct {
	specs []Spec
}

// NewSet builds a toolset; names must be unique and handlers non-nil.
func NewSet(specs ...Spec) (*Set, error) {
	seen := make(map[string]bool, len(specs))
	for _, s := range specs {
		if strings.TrimSpace(s.Name) == "" {
			return nil, errors.New("tools: tool name must not be empty")
		}
		if s.Handler == nil {
			return nil, fmt.Errorf("tools: tool %q has no handler", s.Name)
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("tools: duplicate tool %q", s.Name)
		}
		seen[s.Name] = true
	}
	return &Set{specs: specs}, nil
}

// Names lists tool names in declaration order.
func (s *Set) Names() []string {
	out := make([]string, 0, len(s.specs))
	for _, spec := range s.specs {
		out = append(out, spec.Name)
	}
	return out
}

// Bind scopes every tool of the set to callerID.
func (s *Set) Bind(callerID string) []domain.Tool {
	out := make([]domain.Tool, 0, len(s.specs))
	for _, spec := range s.specs {
		out = append(out, &boundTool{spec: spec, callerID: callerID})
	}
	return out
}

type boundTool struct {
	spec     Spec
	callerID string
}

func (t *boundTool) Name() string               { return t.spec.Name }
func (t *boundTool) Description() string        { return t.spec.Description }
func (t *boundTool) Parameters() map[string]any { return t.spec.Parameters }

// Call runs the handler and renders its result as JSON. Store failures are
// reported to the model as {"erro": ...} so it can explain them; only
// encoding failures surface as errors.
func (t *boundTool) Call(ctx context.Context, args json.RawMessage) (string, error) {
	if len(strings.TrimSpace(string(args))) == 0 {
		args = json.RawMessage(`{}`)
	}
	result, err := t.spec.Handler(ctx, t.callerID, args)
	if err != nil {
		log.Warn().Err(err).
			Str("tool", t.spec.Name).
			Str("user_id", t.callerID).
			Msg("tool call failed")
		result = errorResult{Error: err.Error()}
	}
	buf, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("tools: encode %s result: %w", t.spec.Name, err)
	}
	return string(buf), nil
}

type errorResult struct {
	Error string `json:"erro"`
}

// objectSchema builds a JSON schema for an arguments object.
func objectSchema(props map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func decodeArgs(args json.RawMessage, v any) error {
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("argumentos inválidos: %w", err)
	}
	return nil
}

func splitStatuses(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
