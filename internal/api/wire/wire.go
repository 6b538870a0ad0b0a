// Package wire holds the chat JSON shapes and the error-to-status mapping
// shared by the HTTP server and the Lambda handler.
package wire

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"purpuria-agent/internal/domain"
	"purpuria-agent/internal/usecase"
)

type MessageRequest struct {
	SenderID string `json:"senderId"`
	Content  string `json:"content"`
}

// MessageResponse is one chat message. SenderID is null on assistant turns.
type MessageResponse struct {
	Content   string    `json:"content"`
	SenderID  *string   `json:"senderId"`
	Read      bool      `json:"read"`
	Timestamp time.Time `json:"timestamp"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

const AliveStatus = "Api is alive!"

// Reply renders the pipeline answer addressed to senderID.
func Reply(content, senderID string, now time.Time) MessageResponse {
	return MessageResponse{Content: content, SenderID: &senderID, Read: true, Timestamp: now.UTC()}
}

// History renders stored turns; only user turns carry senderID.
func History(turns []domain.Turn, senderID string, now time.Time) []MessageResponse {
	out := make([]MessageResponse, 0, len(turns))
	for _, t := range turns {
		msg := MessageResponse{Content: t.Content, Read: true, Timestamp: now.UTC()}
		if t.Role == domain.RoleUser {
			sender := senderID
			msg.SenderID = &sender
		}
		out = append(out, msg)
	}
	return out
}

// InvalidBody is the response to a request body that is not valid JSON.
func InvalidBody() ErrorResponse {
	return ErrorResponse{Error: string(usecase.ErrorInvalidInput), Reason: "invalid_body"}
}

// Error maps a use case error to an HTTP status and body. Server-side
// failures are logged with the request logger carried by ctx.
func Error(ctx context.Context, err error) (int, ErrorResponse) {
	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		log.Ctx(ctx).Error().Err(err).Msg("unexpected use case error")
		return http.StatusInternalServerError, ErrorResponse{Error: string(usecase.ErrorInternal)}
	}
	status := http.StatusInternalServerError
	switch ucErr.Code {
	case usecase.ErrorInvalidInput:
		status = http.StatusBadRequest
	case usecase.ErrorUpstream:
		status = http.StatusBadGateway
	}
	if status >= http.StatusInternalServerError {
		log.Ctx(ctx).Error().Err(err).Msg("request failed")
	}
	return status, ErrorResponse{Error: string(ucErr.Code), Reason: ucErr.Reason}
}
