package domain

import (
	"errors"
	"strings"
)

// Turn is a single persisted conversation message. Turns are append-only and
// their order within a conversation is meaningful.
type Turn struct {
	Role    Role
	Content string
}

// UserTurn returns a turn authored by the end user.
func UserTurn(content string) Turn {
	return Turn{Role: RoleUser, Content: content}
}

// AssistantTurn returns a turn authored by the assistant.
func AssistantTurn(content string) Turn {
	return Turn{Role: RoleAssistant, Content: content}
}

// ConversationKey identifies one history sequence. The user identity is
// assumed to be authenticated upstream.
type ConversationKey struct {
	UserID         string
	ConversationID string
}

// NewConversationKey validates and builds a ConversationKey.
func NewConversationKey(userID, conversationID string) (ConversationKey, error) {
	userID = strings.TrimSpace(userID)
	conversationID = strings.TrimSpace(conversationID)
	if userID == "" {
		return ConversationKey{}, errors.New("domain: user id must not be empty")
	}
	if conversationID == "" {
		return ConversationKey{}, errors.New("domain: conversation id must not be empty")
	}
	return ConversationKey{UserID: userID, ConversationID: conversationID}, nil
}

// ToChatMessages converts persisted turns into prompt messages, dropping
// empty or unknown-role entries.
func ToChatMessages(turns []Turn) []ChatMessage {
	out := make([]ChatMessage, 0, len(turns))
	for _, t := range turns {
		content := strings.TrimSpace(t.Content)
		if content == "" {
			continue
		}
		switch t.Role {
		case RoleUser, RoleAssistant:
			out = append(out, ChatMessage{Role: t.Role, Content: content})
		}
	}
	return out
}
