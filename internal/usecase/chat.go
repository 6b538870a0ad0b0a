package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"purpuria-agent/internal/domain"
)

const (
	defaultMaxContext   = 20
	defaultStageTimeout = 30 * time.Second
)

// Outcome is the terminal state of one chat request.
type Outcome string

const (
	OutcomeDone            Outcome = "done"
	OutcomeRefused         Outcome = "refused"
	OutcomeInternalError   Outcome = "internal_error"
	OutcomeUpstreamFailure Outcome = "upstream_failure"
)

// HistoryStore is the append-only conversation log.
type HistoryStore interface {
	Load(ctx context.Context, key domain.ConversationKey) ([]domain.Turn, error)
	Append(ctx context.Context, key domain.ConversationKey, turns ...domain.Turn) error
}

type TopicFilter interface {
	Blocked(text string) bool
}

type SafetyFilter interface {
	Unsafe(text string) bool
}

type Router interface {
	Route(ctx context.Context, question string, history []domain.Turn) domain.RouteDecision
}

type Dispatcher interface {
	Dispatch(ctx context.Context, req SpecialistRequest) (domain.SpecialistResult, error)
}

type Validator interface {
	Validate(ctx context.Context, req ValidationRequest) (string, error)
}

// Pipeline groups the stages ChatService runs in order.
type Pipeline struct {
	Topic      TopicFilter
	Safety     SafetyFilter
	History    HistoryStore
	Router     Router
	Dispatcher Dispatcher
	Validator  Validator
}

type Limits struct {
	MaxContextItems   int
	MaxQuestionLength int
	StageTimeout      time.Duration
}

type ChatInput struct {
	UserID         string
	ConversationID string
	Message        string
}

type ChatOutput struct {
	Reply   string
	Outcome Outcome
	Route   string
}

// ChatService answers one user message end to end. Requests are independent;
// the history store is the only shared state.
type ChatService struct {
	p      Pipeline
	limits Limits
}

func NewChatService(p Pipeline, limits Limits) (*ChatService, error) {
	switch {
	case p.Topic == nil:
		return nil, errors.New("usecase: topic filter must not be nil")
	case p.Safety == nil:
		return nil, errors.New("usecase: safety filter must not be nil")
	case p.History == nil:
		return nil, errors.New("usecase: history store must not be nil")
	case p.Router == nil:
		return nil, errors.New("usecase: router must not be nil")
	case p.Dispatcher == nil:
		return nil, errors.New("usecase: dispatcher must not be nil")
	case p.Validator == nil:
		return nil, errors.New("usecase: validator must not be nil")
	}
	if limits.MaxContextItems <= 0 {
		limits.MaxContextItems = defaultMaxContext
	}
	if limits.MaxQuestionLength < 0 {
		limits.MaxQuestionLength = 0
	}
	if limits.StageTimeout <= 0 {
		limits.StageTimeout = defaultStageTimeout
	}
	return &ChatService{p: p, limits: limits}, nil
}

// Chat runs the pipeline. The only error it returns is *Error with
// ErrorInvalidInput for a request without a conversation key; every other
// failure, including an unusable message, is rendered as the reply.
func (s *ChatService) Chat(ctx context.Context, in ChatInput) (ChatOutput, error) {
	key, err := domain.NewConversationKey(in.UserID, in.ConversationID)
	if err != nil {
		return ChatOutput{}, newError(ErrorInvalidInput, "invalid_conversation_key", err)
	}

	logger := log.Ctx(ctx).With().
		Str("user_id", key.UserID).
		Str("conversation_id", key.ConversationID).
		Logger()

	// Unusable messages are answered but not persisted.
	question := strings.TrimSpace(in.Message)
	if question == "" {
		logger.Info().Str("outcome", string(OutcomeRefused)).Msg("empty message")
		return ChatOutput{Reply: ReplyEmptyMessage, Outcome: OutcomeRefused}, nil
	}
	if limit := s.limits.MaxQuestionLength; limit > 0 && utf8.RuneCountInString(question) > limit {
		logger.Info().Str("outcome", string(OutcomeRefused)).Msg("message too long")
		return ChatOutput{Reply: fmt.Sprintf(replyMessageTooLong, limit), Outcome: OutcomeRefused}, nil
	}

	if s.p.Topic.Blocked(question) {
		return s.finish(ctx, logger, key, question, ChatOutput{Reply: ReplyInputRefused, Outcome: OutcomeRefused})
	}

	history, err := s.loadHistory(ctx, key)
	if err != nil {
		return s.upstreamFailure(logger, "history_load_error", err, ""), nil
	}

	decision := s.route(ctx, question, history)

	var req ValidationRequest
	switch d := decision.(type) {
	case domain.DirectReply:
		req = ValidationRequest{Question: question, Reply: d.Text, History: history}
	case domain.Routed:
		result, err := s.dispatch(ctx, SpecialistRequest{
			Route:    d,
			Question: question,
			CallerID: key.UserID,
			History:  history,
		})
		if err != nil {
			var dispatchErr *DispatchError
			if errors.As(err, &dispatchErr) {
				logger.Error().Err(err).
					Str("route", string(d.Domain)).
					Str("outcome", string(OutcomeInternalError)).
					Msg("dispatch failed")
				return ChatOutput{Reply: dispatchErr.Reply(), Outcome: OutcomeInternalError, Route: string(d.Domain)}, nil
			}
			return s.upstreamFailure(logger, "specialist_error", err, string(d.Domain)), nil
		}
		req = ValidationRequest{
			Question: question,
			Route:    d.Domain,
			Result:   &result,
			Reply:    Compose(result),
			History:  history,
		}
	default:
		req = ValidationRequest{Question: question, Reply: ReplyFallback, History: history}
	}

	route := routeOutOfScope
	if req.Result != nil {
		route = string(req.Route)
	}

	validated, err := s.validate(ctx, req)
	if err != nil {
		return s.upstreamFailure(logger, "validator_error", err, route), nil
	}

	if s.p.Safety.Unsafe(validated) {
		logger.Warn().Str("route", route).Msg("output guardrail tripped")
		return s.finish(ctx, logger, key, question, ChatOutput{Reply: ReplyOutputRefused, Outcome: OutcomeRefused, Route: route})
	}
	return s.finish(ctx, logger, key, question, ChatOutput{Reply: validated, Outcome: OutcomeDone, Route: route})
}

// finish persists the user question and the assistant reply as one append.
func (s *ChatService) finish(ctx context.Context, logger zerolog.Logger, key domain.ConversationKey, question string, out ChatOutput) (ChatOutput, error) {
	stageCtx, cancel := context.WithTimeout(ctx, s.limits.StageTimeout)
	defer cancel()
	if err := s.p.History.Append(stageCtx, key, domain.UserTurn(question), domain.AssistantTurn(out.Reply)); err != nil {
		return s.upstreamFailure(logger, "history_write_error", err, out.Route), nil
	}
	logger.Info().
		Str("route", out.Route).
		Str("outcome", string(out.Outcome)).
		Msg("chat turn completed")
	return out, nil
}

func (s *ChatService) upstreamFailure(logger zerolog.Logger, reason string, err error, route string) ChatOutput {
	logger.Error().Err(newError(ErrorUpstream, reason, err)).
		Str("route", route).
		Str("outcome", string(OutcomeUpstreamFailure)).
		Msg("chat turn failed")
	return ChatOutput{Reply: ReplyUpstream, Outcome: OutcomeUpstreamFailure, Route: route}
}

func (s *ChatService) loadHistory(ctx context.Context, key domain.ConversationKey) ([]domain.Turn, error) {
	stageCtx, cancel := context.WithTimeout(ctx, s.limits.StageTimeout)
	defer cancel()
	turns, err := s.p.History.Load(stageCtx, key)
	if err != nil {
		return nil, err
	}
	return recentTurns(turns, s.limits.MaxContextItems), nil
}

func (s *ChatService) route(ctx context.Context, question string, history []domain.Turn) domain.RouteDecision {
	stageCtx, cancel := context.WithTimeout(ctx, s.limits.StageTimeout)
	defer cancel()
	decision := s.p.Router.Route(stageCtx, question, history)
	if decision == nil {
		return domain.DirectReply{Text: ReplyFallback}
	}
	return decision
}

func (s *ChatService) dispatch(ctx context.Context, req SpecialistRequest) (domain.SpecialistResult, error) {
	stageCtx, cancel := context.WithTimeout(ctx, s.limits.StageTimeout)
	defer cancel()
	return s.p.Dispatcher.Dispatch(stageCtx, req)
}

func (s *ChatService) validate(ctx context.Context, req ValidationRequest) (string, error) {
	stageCtx, cancel := context.WithTimeout(ctx, s.limits.StageTimeout)
	defer cancel()
	return s.p.Validator.Validate(stageCtx, req)
}

// History returns the stored turns of a conversation, oldest first.
func (s *ChatService) History(ctx context.Context, userID, conversationID string) ([]domain.Turn, error) {
	key, err := domain.NewConversationKey(userID, conversationID)
	if err != nil {
		return nil, newError(ErrorInvalidInput, "invalid_conversation_key", err)
	}
	stageCtx, cancel := context.WithTimeout(ctx, s.limits.StageTimeout)
	defer cancel()
	turns, err := s.p.History.Load(stageCtx, key)
	if err != nil {
		return nil, newError(ErrorUpstream, "history_load_error", err)
	}
	return turns, nil
}
