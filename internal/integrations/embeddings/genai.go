// Package embeddings turns knowledge texts and queries into vectors with the
// Gemini embedding models.
package embeddings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const DefaultModel = "text-embedding-004"

type embedAPI interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// Engine embeds single texts.
type Engine struct {
	api   embedAPI
	model string
}

// New creates a Gemini-backed engine.
func New(ctx context.Context, apiKey, model string) (*Engine, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("embeddings: api key must not be empty")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("embeddings: create genai client: %w", err)
	}
	return newEngine(client.Models, model)
}

func newEngine(api embedAPI, model string) (*Engine, error) {
	if api == nil {
		return nil, errors.New("embeddings: api must not be nil")
	}
	if model = strings.TrimSpace(model); model == "" {
		model = DefaultModel
	}
	return &Engine{api: api, model: model}, nil
}

// Embed returns the embedding vector of text.
func (e *Engine) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("embeddings: text must not be empty")
	}
	res, err := e.api.EmbedContent(ctx, e.model,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)},
		&genai.EmbedContentConfig{TaskType: "SEMANTIC_SIMILARITY"},
	)
	if err != nil {
		return nil, fmt.Errorf("embeddings: embed content: %w", err)
	}
	if res == nil || len(res.Embeddings) == 0 || res.Embeddings[0] == nil || len(res.Embeddings[0].Values) == 0 {
		return nil, errors.New("embeddings: no embeddings returned")
	}
	return res.Embeddings[0].Values, nil
}
