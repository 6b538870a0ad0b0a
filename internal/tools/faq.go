package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

const faqTopK = 3

// KnowledgeSearcher finds stored FAQ texts close to a query.
type KnowledgeSearcher interface {
	Search(ctx context.Context, query string, k int) ([]string, error)
}

type faqArgs struct {
	Query string `json:"consulta"`
}

// FAQTools builds the app-FAQ specialist toolset.
func FAQTools(k KnowledgeSearcher) (*Set, error) {
	if k == nil {
		return nil, errors.New("tools: knowledge searcher must not be nil")
	}
	return NewSet(Spec{
		Name:        "buscar_no_redis",
		Description: "Busca as 3 informações mais relevantes sobre a empresa, o aplicativo ou dados institucionais com base na pergunta do usuário.",
		Parameters: objectSchema(map[string]any{
			"consulta": map[string]any{"type": "string", "description": "A pergunta ou termos a buscar."},
		}, "consulta"),
		Handler: func(ctx context.Context, _ string, args json.RawMessage) (any, error) {
			var a faqArgs
			if err := decodeArgs(args, &a); err != nil {
				return nil, err
			}
			query := strings.TrimSpace(a.Query)
			if query == "" {
				return nil, errors.New("consulta é obrigatória")
			}
			found, err := k.Search(ctx, query, faqTopK)
			if err != nil {
				return nil, err
			}
			if len(found) == 0 {
				return []string{"Nenhuma informação relevante encontrada."}, nil
			}
			return found, nil
		},
	})
}
