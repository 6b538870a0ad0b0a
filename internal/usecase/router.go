package usecase

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"purpuria-agent/internal/domain"
)

// LLMClient produces a single completion.
type LLMClient interface {
	Chat(ctx context.Context, model domain.ModelConfig, messages []domain.ChatMessage) (string, error)
}

// LLMRouter classifies a message with the fast model.
type LLMRouter struct {
	llm   LLMClient
	model domain.ModelConfig
}

func NewLLMRouter(llm LLMClient, model domain.ModelConfig) (*LLMRouter, error) {
	if llm == nil {
		return nil, errors.New("usecase: router llm must not be nil")
	}
	return &LLMRouter{llm: llm, model: model}, nil
}

// Route never fails: generation errors and empty output yield the fallback
// DirectReply.
func (r *LLMRouter) Route(ctx context.Context, question string, history []domain.Turn) domain.RouteDecision {
	raw, err := r.llm.Chat(ctx, r.model, buildRouterMessages(question, history))
	if err != nil {
		log.Warn().Err(err).Msg("router generation failed, answering with fallback")
		return domain.DirectReply{Text: ReplyFallback}
	}
	return ParseRouteDecision(raw)
}

var routeMarker = regexp.MustCompile(`ROUTE=[ \t]*(\w*)`)

// ParseRouteDecision reads the routing protocol:
//
//	ROUTE=<token>
//	PERGUNTA_ORIGINAL=<text>
//	CLARIFY=<text, may be empty>
//
// The first ROUTE= marker anywhere in the output decides, even inside
// markdown emphasis. Any other non-empty output is a direct reply.
func ParseRouteDecision(raw string) domain.RouteDecision {
	text := stripCodeFence(raw)
	if text == "" {
		return domain.DirectReply{Text: ReplyFallback}
	}

	loc := routeMarker.FindStringSubmatchIndex(text)
	if loc == nil {
		return domain.DirectReply{Text: text}
	}
	token := strings.TrimRight(text[loc[2]:loc[3]], "_")
	if token == "" {
		return domain.DirectReply{Text: ReplyFallback}
	}

	decision := domain.Routed{Domain: domain.Domain(token)}
	var haveQuestion, haveClarify bool
	for _, line := range strings.Split(text[loc[1]:], "\n") {
		if v, ok := protocolField(line, "PERGUNTA_ORIGINAL="); ok && !haveQuestion {
			decision.OriginalQuestion, haveQuestion = v, true
		}
		if v, ok := protocolField(line, "CLARIFY="); ok && !haveClarify {
			decision.Clarification, haveClarify = v, true
		}
	}
	return decision
}

// protocolField returns the value after name on line, without surrounding
// markdown emphasis.
func protocolField(line, name string) (string, bool) {
	i := strings.Index(line, name)
	if i < 0 {
		return "", false
	}
	return strings.Trim(line[i+len(name):], " \t\r*`"), true
}
