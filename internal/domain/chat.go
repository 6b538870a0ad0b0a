package domain

// Role identifies who authored a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is the provider-agnostic chat message shape used by the usecase
// layer and LLM integrations.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ModelConfig selects a model and its sampling parameters for one call.
type ModelConfig struct {
	Name        string
	Temperature float64
	TopP        float64
}
