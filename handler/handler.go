// Package handler serves the chat API from AWS Lambda behind an API Gateway
// proxy integration.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"purpuria-agent/internal/api/wire"
	"purpuria-agent/internal/domain"
	"purpuria-agent/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

// UseCase is the chat pipeline as seen by the Lambda transport.
type UseCase interface {
	Chat(ctx context.Context, in usecase.ChatInput) (usecase.ChatOutput, error)
	History(ctx context.Context, userID, conversationID string) ([]domain.Turn, error)
}

type Handler struct {
	uc  UseCase
	now func() time.Time
}

func NewHandler(uc UseCase) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: use case must not be nil")
	}
	return &Handler{uc: uc, now: time.Now}, nil
}

// Handle routes GET /alive, POST /chat/{conversationId} and GET /chat.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := headerValue(req.Headers, correlationHeader)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	logger := log.With().Str("correlation_id", correlationID).Logger()
	ctx = logger.WithContext(ctx)

	path := strings.TrimRight(req.Path, "/")
	switch {
	case req.HTTPMethod == http.MethodGet && path == "/alive":
		return respond(http.StatusOK, correlationID, wire.StatusResponse{Status: wire.AliveStatus}), nil
	case req.HTTPMethod == http.MethodPost && strings.HasPrefix(path, "/chat/"):
		return h.postMessage(ctx, req, conversationID(req, path), correlationID), nil
	case req.HTTPMethod == http.MethodGet && path == "/chat":
		return h.getHistory(ctx, req, correlationID), nil
	}
	return respond(http.StatusNotFound, correlationID, wire.ErrorResponse{Error: "NOT_FOUND"}), nil
}

func (h *Handler) postMessage(ctx context.Context, req events.APIGatewayProxyRequest, convID, correlationID string) events.APIGatewayProxyResponse {
	var body wire.MessageRequest
	if err := json.Unmarshal([]byte(req.Body), &body); err != nil {
		return respond(http.StatusBadRequest, correlationID, wire.InvalidBody())
	}
	out, err := h.uc.Chat(ctx, usecase.ChatInput{
		UserID:         body.SenderID,
		ConversationID: convID,
		Message:        body.Content,
	})
	if err != nil {
		return errorToResponse(ctx, err, correlationID)
	}
	return respond(http.StatusOK, correlationID, wire.Reply(out.Reply, body.SenderID, h.now()))
}

func (h *Handler) getHistory(ctx context.Context, req events.APIGatewayProxyRequest, correlationID string) events.APIGatewayProxyResponse {
	senderID := req.QueryStringParameters["senderId"]
	turns, err := h.uc.History(ctx, senderID, req.QueryStringParameters["chat_id"])
	if err != nil {
		return errorToResponse(ctx, err, correlationID)
	}
	return respond(http.StatusOK, correlationID, wire.History(turns, senderID, h.now()))
}

func conversationID(req events.APIGatewayProxyRequest, path string) string {
	if id := req.PathParameters["conversationId"]; id != "" {
		return id
	}
	return strings.TrimPrefix(path, "/chat/")
}

func errorToResponse(ctx context.Context, err error, correlationID string) events.APIGatewayProxyResponse {
	status, body := wire.Error(ctx, err)
	return respond(status, correlationID, body)
}

func respond(status int, correlationID string, body any) events.APIGatewayProxyResponse {
	buf, err := json.Marshal(body)
	if err != nil {
		status = http.StatusInternalServerError
		buf = []byte(`{"error":"INTERNAL_ERROR"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: correlationID,
		},
		Body: string(buf),
	}
}

func headerValue(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
