package domain

import (
	"context"
	"encoding/json"
)

// Tool is an external query capability a specialist may invoke during its
// turn. Implementations are already scoped to the caller identity.
type Tool interface {
	Name() string
	Description() string
	// Parameters returns the JSON schema of the arguments object.
	Parameters() map[string]any
	Call(ctx context.Context, args json.RawMessage) (string, error)
}
