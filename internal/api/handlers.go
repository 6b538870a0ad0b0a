package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"purpuria-agent/internal/api/wire"
	"purpuria-agent/internal/repository"
	"purpuria-agent/internal/usecase"
)

func (s *Server) alive(c echo.Context) error {
	return c.JSON(http.StatusOK, wire.StatusResponse{Status: wire.AliveStatus})
}

func (s *Server) postMessage(c echo.Context) error {
	var req wire.MessageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, wire.InvalidBody())
	}

	out, err := s.chat.Chat(c.Request().Context(), usecase.ChatInput{
		UserID:         req.SenderID,
		ConversationID: c.Param("conversationId"),
		Message:        req.Content,
	})
	if err != nil {
		return s.writeError(c, err)
	}

	return c.JSON(http.StatusOK, wire.Reply(out.Reply, req.SenderID, s.now()))
}

func (s *Server) getHistory(c echo.Context) error {
	senderID := c.QueryParam("senderId")
	turns, err := s.chat.History(c.Request().Context(), senderID, c.QueryParam("chat_id"))
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, wire.History(turns, senderID, s.now()))
}

func (s *Server) addEmbedding(c echo.Context) error {
	var req embeddingRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, wire.InvalidBody())
	}
	key, err := s.knowledge.Add(c.Request().Context(), strings.TrimSpace(req.Text))
	if errors.Is(err, repository.ErrKnowledgeTooShort) {
		return c.JSON(http.StatusBadRequest, wire.ErrorResponse{Error: string(usecase.ErrorInvalidInput), Reason: "text_too_short"})
	}
	if err != nil {
		log.Ctx(c.Request().Context()).Error().Err(err).Msg("add knowledge entry failed")
		return c.JSON(http.StatusBadGateway, wire.ErrorResponse{Error: string(usecase.ErrorUpstream)})
	}
	return c.JSON(http.StatusCreated, embeddingResponse{Key: key})
}

func (s *Server) listEmbeddings(c echo.Context) error {
	entries, err := s.knowledge.List(c.Request().Context())
	if err != nil {
		log.Ctx(c.Request().Context()).Error().Err(err).Msg("list knowledge entries failed")
		return c.JSON(http.StatusBadGateway, wire.ErrorResponse{Error: string(usecase.ErrorUpstream)})
	}
	if entries == nil {
		entries = []repository.KnowledgeEntry{}
	}
	return c.JSON(http.StatusOK, entries)
}

func (s *Server) clearEmbeddings(c echo.Context) error {
	n, err := s.knowledge.Clear(c.Request().Context())
	if err != nil {
		log.Ctx(c.Request().Context()).Error().Err(err).Msg("clear knowledge entries failed")
		return c.JSON(http.StatusBadGateway, wire.ErrorResponse{Error: string(usecase.ErrorUpstream)})
	}
	return c.JSON(http.StatusOK, clearResponse{Removed: n})
}

func (s *Server) writeError(c echo.Context, err error) error {
	status, body := wire.Error(c.Request().Context(), err)
	return c.JSON(status, body)
}
