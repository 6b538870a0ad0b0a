package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/redis/go-redis/v9"
)

const (
	knowledgeKeyPrefix = "info"
	embeddingsListKey  = "embeddings_list"
	minKnowledgeRunes  = 5
)

// ErrKnowledgeTooShort is returned when an entry is too short to be useful.
var ErrKnowledgeTooShort = errors.New("repository: knowledge text too short")

// Embedder turns text into a dense vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// redisKVAPI is the subset of *redis.Client used by the knowledge store.
type redisKVAPI interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	MSet(ctx context.Context, values ...interface{}) *redis.StatusCmd
	Keys(ctx context.Context, pattern string) *redis.StringSliceCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// KnowledgeEntry is one stored FAQ text.
type KnowledgeEntry struct {
	Key        string `json:"key"`
	Text       string `json:"texto"`
	Dimensions int    `json:"dimensoes"`
}

// KnowledgeStore is the semantic-search store behind the app FAQ specialist.
// Texts live at info0..infoN and their vectors in one JSON list, aligned by
// numeric suffix order.
type KnowledgeStore struct {
	api      redisKVAPI
	embedder Embedder

	// writeMu serializes Add/Clear within this process; the list update is a
	// read-modify-write on embeddings_list.
	writeMu sync.Mutex
}

// NewKnowledgeStore creates a knowledge store.
func NewKnowledgeStore(api redisKVAPI, embedder Embedder) (*KnowledgeStore, error) {
	if api == nil {
		return nil, errors.New("repository: redis client must not be nil")
	}
	if embedder == nil {
		return nil, errors.New("repository: embedder must not be nil")
	}
	return &KnowledgeStore{api: api, embedder: embedder}, nil
}

// Add embeds and stores a new entry, returning its key.
func (s *KnowledgeStore) Add(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < minKnowledgeRunes {
		return "", ErrKnowledgeTooShort
	}
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return "", fmt.Errorf("repository: embed knowledge: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	keys, err := s.sortedKeys(ctx)
	if err != nil {
		return "", err
	}
	vectors, err := s.vectors(ctx)
	if err != nil {
		return "", err
	}
	if len(vectors) != len(keys) {
		return "", fmt.Errorf("repository: knowledge store out of sync: %d texts, %d vectors", len(keys), len(vectors))
	}

	key := nextKnowledgeKey(keys)
	buf, err := json.Marshal(append(vectors, vec))
	if err != nil {
		return "", fmt.Errorf("repository: encode embeddings: %w", err)
	}
	// One MSET keeps the text and the vector list in step.
	if err := s.api.MSet(ctx, key, text, embeddingsListKey, string(buf)).Err(); err != nil {
		return "", fmt.Errorf("repository: store knowledge: %w", err)
	}
	return key, nil
}

// Search returns up to k stored texts ranked by cosine similarity to query.
func (s *KnowledgeStore) Search(ctx context.Context, query string, k int) ([]string, error) {
	if k <= 0 {
		k = 3
	}
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("repository: embed query: %w", err)
	}
	vectors, err := s.vectors(ctx)
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, nil
	}
	keys, err := s.sortedKeys(ctx)
	if err != nil {
		return nil, err
	}

	type scored struct {
		score float64
		text  string
	}
	results := make([]scored, 0, len(keys))
	for i, key := range keys {
		if i >= len(vectors) {
			break
		}
		text, err := s.api.Get(ctx, key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, fmt.Errorf("repository: read knowledge %s: %w", key, err)
		}
		results = append(results, scored{score: cosineSimilarity(vec, vectors[i]), text: text})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].score > results[j].score })
	if len(results) > k {
		results = results[:k]
	}
	texts := make([]string, 0, len(results))
	for _, r := range results {
		texts = append(texts, r.text)
	}
	return texts, nil
}

// List returns every stored entry in key order.
func (s *KnowledgeStore) List(ctx context.Context) ([]KnowledgeEntry, error) {
	keys, err := s.sortedKeys(ctx)
	if err != nil {
		return nil, err
	}
	vectors, err := s.vectors(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]KnowledgeEntry, 0, len(keys))
	for i, key := range keys {
		text, err := s.api.Get(ctx, key).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("repository: read knowledge %s: %w", key, err)
		}
		entry := KnowledgeEntry{Key: key, Text: text}
		if i < len(vectors) {
			entry.Dimensions = len(vectors[i])
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Clear removes all knowledge keys and the vector list, leaving other data
// (chat history) in place. It returns the number of deleted keys.
func (s *KnowledgeStore) Clear(ctx context.Context) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	keys, err := s.sortedKeys(ctx)
	if err != nil {
		return 0, err
	}
	n, err := s.api.Del(ctx, append(keys, embeddingsListKey)...).Result()
	if err != nil {
		return 0, fmt.Errorf("repository: clear knowledge: %w", err)
	}
	return int(n), nil
}

func (s *KnowledgeStore) vectors(ctx context.Context) ([][]float32, error) {
	raw, err := s.api.Get(ctx, embeddingsListKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("repository: read embeddings: %w", err)
	}
	var out [][]float32
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("repository: decode embeddings: %w", err)
	}
	return out, nil
}

// sortedKeys lists info<N> keys ordered by N; keys without a numeric suffix
// are ignored.
func (s *KnowledgeStore) sortedKeys(ctx context.Context) ([]string, error) {
	keys, err := s.api.Keys(ctx, knowledgeKeyPrefix+"*").Result()
	if err != nil {
		return nil, fmt.Errorf("repository: list knowledge keys: %w", err)
	}
	type indexed struct {
		key string
		n   int
	}
	valid := make([]indexed, 0, len(keys))
	for _, k := range keys {
		n, err := strconv.Atoi(strings.TrimPrefix(k, knowledgeKeyPrefix))
		if err != nil || n < 0 {
			continue
		}
		valid = append(valid, indexed{key: k, n: n})
	}
	sort.Slice(valid, func(i, j int) bool { return valid[i].n < valid[j].n })
	out := make([]string, 0, len(valid))
	for _, v := range valid {
		out = append(out, v.key)
	}
	return out, nil
}

func nextKnowledgeKey(sorted []string) string {
	if len(sorted) == 0 {
		return knowledgeKeyPrefix + "0"
	}
	last, _ := strconv.Atoi(strings.TrimPrefix(sorted[len(sorted)-1], knowledgeKeyPrefix))
	return knowledgeKeyPrefix + strconv.Itoa(last+1)
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
