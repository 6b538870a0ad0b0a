package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/kaptinlin/jsonrepair"
	"github.com/rs/zerolog/log"

	"purpuria-agent/internal/domain"
)

// ToolRunner drives a tool-calling conversation to a final text answer.
type ToolRunner interface {
	RunTools(ctx context.Context, model domain.ModelConfig, messages []domain.ChatMessage, tools []domain.Tool) (string, error)
}

// Toolset yields the tools of one domain scoped to a caller.
type Toolset interface {
	Bind(callerID string) []domain.Tool
}

// SpecialistRequest is everything a specialist needs for one turn.
type SpecialistRequest struct {
	Route    domain.Routed
	Question string
	CallerID string
	History  []domain.Turn
}

// SpecialistDispatcher runs the specialist bound to the routed domain.
type SpecialistDispatcher struct {
	runner   ToolRunner
	model    domain.ModelConfig
	toolsets map[domain.Domain]Toolset
}

func NewSpecialistDispatcher(runner ToolRunner, model domain.ModelConfig, toolsets map[domain.Domain]Toolset) (*SpecialistDispatcher, error) {
	if runner == nil {
		return nil, errors.New("usecase: tool runner must not be nil")
	}
	for _, d := range domain.Domains() {
		if toolsets[d] == nil {
			return nil, fmt.Errorf("usecase: missing toolset for domain %s", d)
		}
	}
	return &SpecialistDispatcher{runner: runner, model: model, toolsets: toolsets}, nil
}

// Dispatch returns a *DispatchError for unknown domains and malformed
// payloads; any other error is an upstream failure.
func (d *SpecialistDispatcher) Dispatch(ctx context.Context, req SpecialistRequest) (domain.SpecialistResult, error) {
	route := req.Route.Domain
	toolset, ok := d.toolsets[route]
	if !route.Known() || !ok {
		return domain.SpecialistResult{}, &DispatchError{Code: DispatchUnknownRoute, Domain: string(route)}
	}

	seen := &orderIDs{}
	raw, err := d.runner.RunTools(ctx, d.model, buildSpecialistMessages(specialistInput{
		domain:        route,
		question:      req.Question,
		clarification: req.Route.Clarification,
		callerID:      req.CallerID,
		history:       req.History,
	}), seen.watch(toolset.Bind(req.CallerID)))
	if err != nil {
		return domain.SpecialistResult{}, fmt.Errorf("usecase: specialist %s: %w", route, err)
	}

	result, err := parseSpecialistResult(route, raw, seen.list()...)
	if err != nil {
		return domain.SpecialistResult{}, &DispatchError{
			Code:    DispatchMalformedPayload,
			Domain:  string(route),
			Payload: raw,
			Err:     err,
		}
	}
	return result, nil
}

func parseSpecialistResult(route domain.Domain, raw string, knownIDs ...string) (domain.SpecialistResult, error) {
	payload := stripCodeFence(raw)
	if payload == "" {
		return domain.SpecialistResult{}, errors.New("empty payload")
	}

	result, err := decodeResult(payload)
	if err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(payload)
		if repairErr != nil {
			return domain.SpecialistResult{}, fmt.Errorf("decode: %w", err)
		}
		if result, err = decodeResult(repaired); err != nil {
			return domain.SpecialistResult{}, fmt.Errorf("decode repaired payload: %w", err)
		}
		log.Debug().Str("route", string(route)).Msg("specialist payload repaired")
	}

	if strings.TrimSpace(result.ResponseText) == "" {
		return domain.SpecialistResult{}, errors.New("missing resposta")
	}
	switch result.Domain {
	case "":
		result.Domain = route
	case route:
	default:
		return domain.SpecialistResult{}, fmt.Errorf("dominio %q does not match route", result.Domain)
	}

	result.ResponseText = redactIdentifiers(result.ResponseText, knownIDs...)
	result.Recommendation = redactIdentifiers(result.Recommendation, knownIDs...)
	result.FollowUp = redactIdentifiers(result.FollowUp, knownIDs...)
	return result, nil
}

func decodeResult(payload string) (domain.SpecialistResult, error) {
	var out domain.SpecialistResult
	dec := json.NewDecoder(bytes.NewBufferString(payload))
	if err := dec.Decode(&out); err != nil {
		return domain.SpecialistResult{}, err
	}
	if dec.More() {
		return domain.SpecialistResult{}, errors.New("trailing data after JSON object")
	}
	return out, nil
}

var (
	orderIdentifier = regexp.MustCompile(`(?i)\b(pedido)\s*(?:n[º°o]\.?|n\.|n[uú]mero|num\.?|nro\.?)?\s*[:=]?\s*#?\d+\b`)
	hashIdentifier  = regexp.MustCompile(`\s*#\d+`)
	labelIdentifier = regexp.MustCompile(`(?i)\s*\bid\s*[:=]?\s*\d+`)
	extraSpace      = regexp.MustCompile(`[ \t]{2,}`)
	spaceBeforeMark = regexp.MustCompile(`[ \t]+([.,;:!?])`)
)

// redactIdentifiers removes order identifiers that must not reach the user:
// "#123", "ID: 123", "pedido nº 123" and any of knownIDs standing alone.
func redactIdentifiers(s string, knownIDs ...string) string {
	if s == "" {
		return s
	}
	s = orderIdentifier.ReplaceAllString(s, "$1")
	s = hashIdentifier.ReplaceAllString(s, "")
	s = labelIdentifier.ReplaceAllString(s, "")
	for _, id := range knownIDs {
		s = regexp.MustCompile(`\s*\b`+regexp.QuoteMeta(id)+`\b`).ReplaceAllString(s, "")
	}
	s = extraSpace.ReplaceAllString(s, " ")
	s = spaceBeforeMark.ReplaceAllString(s, "$1")
	return strings.TrimSpace(s)
}

// orderIDs collects the order identifiers tool results exposed during one
// specialist turn.
type orderIDs struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func (o *orderIDs) watch(tools []domain.Tool) []domain.Tool {
	out := make([]domain.Tool, len(tools))
	for i, t := range tools {
		out[i] = watchedTool{Tool: t, seen: o}
	}
	return out
}

func (o *orderIDs) record(result string) {
	var v any
	if err := json.Unmarshal([]byte(result), &v); err != nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	collectOrderIDs(v, func(id string) {
		if o.ids == nil {
			o.ids = make(map[string]struct{})
		}
		o.ids[id] = struct{}{}
	})
}

func (o *orderIDs) list() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, 0, len(o.ids))
	for id := range o.ids {
		out = append(out, id)
	}
	return out
}

var orderIDFields = map[string]bool{"idpedido": true, "fkpedido": true, "pedido_id": true}

func collectOrderIDs(v any, add func(string)) {
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			collectOrderIDs(item, add)
		}
	case map[string]any:
		for k, item := range t {
			if orderIDFields[strings.ToLower(k)] {
				if id, ok := integerText(item); ok {
					add(id)
					continue
				}
			}
			collectOrderIDs(item, add)
		}
	}
}

func integerText(v any) (string, bool) {
	switch t := v.(type) {
	case float64:
		if t != float64(int64(t)) {
			return "", false
		}
		return strconv.FormatInt(int64(t), 10), true
	case string:
		t = strings.TrimSpace(t)
		if _, err := strconv.ParseInt(t, 10, 64); err != nil {
			return "", false
		}
		return t, true
	}
	return "", false
}

type watchedTool struct {
	domain.Tool
	seen *orderIDs
}

func (w watchedTool) Call(ctx context.Context, args json.RawMessage) (string, error) {
	out, err := w.Tool.Call(ctx, args)
	if err == nil {
		w.seen.record(out)
	}
	return out, err
}
