package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"purpuria-agent/internal/domain"
)

const (
	routeOutOfScope    = "fora_escopo"
	contextDirectReply = "N/A - Rota Direta"
)

// ValidationRequest carries the reply under review and what produced it.
// Result is nil for direct replies.
type ValidationRequest struct {
	Question string
	Route    domain.Domain
	Result   *domain.SpecialistResult
	Reply    string
	History  []domain.Turn
}

// LLMValidator approves or minimally rewrites a reply with the fast model.
type LLMValidator struct {
	llm   LLMClient
	model domain.ModelConfig
}

func NewLLMValidator(llm LLMClient, model domain.ModelConfig) (*LLMValidator, error) {
	if llm == nil {
		return nil, errors.New("usecase: validator llm must not be nil")
	}
	return &LLMValidator{llm: llm, model: model}, nil
}

// Validate returns the approved (possibly rewritten) reply. An empty verdict
// approves the reply unchanged.
func (v *LLMValidator) Validate(ctx context.Context, req ValidationRequest) (string, error) {
	in := validatorInput{
		question: req.Question,
		route:    routeOutOfScope,
		context:  contextDirectReply,
		reply:    req.Reply,
		history:  req.History,
	}
	if req.Result != nil {
		in.route = string(req.Route)
		buf, err := json.Marshal(req.Result)
		if err != nil {
			return "", fmt.Errorf("usecase: encode specialist context: %w", err)
		}
		in.context = string(buf)
	}

	raw, err := v.llm.Chat(ctx, v.model, buildValidatorMessages(in))
	if err != nil {
		return "", fmt.Errorf("usecase: validator: %w", err)
	}
	if out := stripCodeFence(raw); out != "" {
		return out, nil
	}
	return req.Reply, nil
}
