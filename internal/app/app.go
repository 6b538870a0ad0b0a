// Package app wires configuration into the running service: store clients,
// model clients, toolsets and the chat pipeline.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"purpuria-agent/internal/config"
	"purpuria-agent/internal/domain"
	"purpuria-agent/internal/guardrail"
	"purpuria-agent/internal/integrations/embeddings"
	"purpuria-agent/internal/integrations/llm"
	"purpuria-agent/internal/integrations/paramstore"
	"purpuria-agent/internal/repository"
	"purpuria-agent/internal/tools"
	"purpuria-agent/internal/usecase"
)

// App holds the constructed services and the resources to release on exit.
type App struct {
	Chat      *usecase.ChatService
	Knowledge *repository.KnowledgeStore

	closers []func(context.Context) error
}

// New connects every store and builds the pipeline. Connection problems are
// reported here rather than on the first request.
func New(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	if cfg == nil {
		return nil, errors.New("app: config must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("app: invalid configuration: %w", err)
	}

	a := &App{}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	keys, err := resolveKeys(ctx, cfg)
	if err != nil {
		return nil, err
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("app: parse REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(redisOpts)
	a.closers = append(a.closers, func(context.Context) error { return rdb.Close() })
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("app: ping redis: %w", err)
	}

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("app: create postgres pool: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error { pool.Close(); return nil })
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("app: ping postgres: %w", err)
	}

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURL))
	if err != nil {
		return nil, fmt.Errorf("app: connect mongo: %w", err)
	}
	a.closers = append(a.closers, mongoClient.Disconnect)
	if err := mongoClient.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("app: ping mongo: %w", err)
	}

	embedder, err := embeddings.New(ctx, keys.gemini, cfg.EmbeddingModel)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	if a.Knowledge, err = repository.NewKnowledgeStore(rdb, embedder); err != nil {
		return nil, err
	}

	history, err := newHistory(ctx, cfg, rdb)
	if err != nil {
		return nil, err
	}

	orders, err := repository.NewOrderStore(pool)
	if err != nil {
		return nil, err
	}
	catalog, err := repository.NewWasteCatalog(mongoClient.Database(cfg.MongoDatabase).Collection(cfg.MongoCollection))
	if err != nil {
		return nil, err
	}
	toolsets, err := buildToolsets(orders, catalog, a.Knowledge)
	if err != nil {
		return nil, err
	}

	model, err := newLLM(ctx, cfg, keys)
	if err != nil {
		return nil, err
	}

	fast := domain.ModelConfig{Name: cfg.FastModel, Temperature: cfg.FastTemperature}
	primary := domain.ModelConfig{Name: cfg.MainModel, Temperature: cfg.MainTemperature, TopP: cfg.MainTopP}

	router, err := usecase.NewLLMRouter(model, fast)
	if err != nil {
		return nil, err
	}
	dispatcher, err := usecase.NewSpecialistDispatcher(model, primary, toolsets)
	if err != nil {
		return nil, err
	}
	validator, err := usecase.NewLLMValidator(model, fast)
	if err != nil {
		return nil, err
	}

	a.Chat, err = usecase.NewChatService(usecase.Pipeline{
		Topic:      guardrail.DefaultKeywords(),
		Safety:     guardrail.DefaultProfanity(),
		History:    history,
		Router:     router,
		Dispatcher: dispatcher,
		Validator:  validator,
	}, usecase.Limits{
		MaxContextItems:   cfg.MaxContextItems,
		MaxQuestionLength: cfg.MaxQuestionLength,
		StageTimeout:      cfg.StageTimeout,
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("llm_provider", cfg.LLMProvider).
		Str("history_backend", cfg.HistoryBackend).
		Str("main_model", cfg.MainModel).
		Str("fast_model", cfg.FastModel).
		Msg("service initialized")
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

type apiKeys struct {
	gemini string
	openai string
}

type tokenReader interface {
	Token(ctx context.Context, name string) (string, error)
}

// resolveKeys fills keys missing from the environment from SSM parameters
// {prefix}/gemini-api-key and {prefix}/openai-api-key.
func resolveKeys(ctx context.Context, cfg *config.Config) (apiKeys, error) {
	keys := apiKeys{
		gemini: strings.TrimSpace(cfg.GeminiAPIKey),
		openai: strings.TrimSpace(cfg.OpenAIAPIKey),
	}
	needOpenAI := cfg.LLMProvider == config.ProviderOpenAI && keys.openai == ""
	if keys.gemini != "" && !needOpenAI {
		return keys, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return apiKeys{}, fmt.Errorf("app: load AWS config: %w", err)
	}
	ps, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		return apiKeys{}, err
	}
	return fillKeysFromParams(ctx, ps, cfg.ParamPrefix, keys, needOpenAI)
}

func fillKeysFromParams(ctx context.Context, tr tokenReader, prefix string, keys apiKeys, needOpenAI bool) (apiKeys, error) {
	prefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return apiKeys{}, errors.New("app: PARAM_PREFIX is required to read model keys from SSM")
	}
	var err error
	if keys.gemini == "" {
		if keys.gemini, err = tr.Token(ctx, prefix+"/gemini-api-key"); err != nil {
			return apiKeys{}, fmt.Errorf("app: resolve gemini key: %w", err)
		}
	}
	if needOpenAI {
		if keys.openai, err = tr.Token(ctx, prefix+"/openai-api-key"); err != nil {
			return apiKeys{}, fmt.Errorf("app: resolve openai key: %w", err)
		}
	}
	return keys, nil
}

func newHistory(ctx context.Context, cfg *config.Config, rdb *redis.Client) (usecase.HistoryStore, error) {
	if cfg.HistoryBackend != config.BackendDynamoDB {
		return repository.NewRedisHistory(rdb)
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("app: load AWS config: %w", err)
	}
	return repository.NewDynamoHistory(awsdynamodb.NewFromConfig(awsCfg), cfg.HistoryTable)
}

func newLLM(ctx context.Context, cfg *config.Config, keys apiKeys) (*llm.Client, error) {
	opt := llm.WithMaxToolSteps(cfg.MaxToolSteps)
	if cfg.LLMProvider == config.ProviderOpenAI {
		return llm.NewOpenAI(keys.openai, cfg.MainModel, cfg.OpenAIBaseURL, opt)
	}
	return llm.NewGemini(ctx, keys.gemini, cfg.MainModel, opt)
}

type toolQueries interface {
	tools.OrderQueries
	tools.OrderWasteQueries
}

func buildToolsets(orders toolQueries, catalog tools.CatalogQueries, knowledge tools.KnowledgeSearcher) (map[domain.Domain]usecase.Toolset, error) {
	orderTools, err := tools.OrderTools(orders)
	if err != nil {
		return nil, err
	}
	wasteTools, err := tools.WasteTools(catalog, orders)
	if err != nil {
		return nil, err
	}
	faqTools, err := tools.FAQTools(knowledge)
	if err != nil {
		return nil, err
	}
	return map[domain.Domain]usecase.Toolset{
		domain.DomainOrders: orderTools,
		domain.DomainWaste:  wasteTools,
		domain.DomainFAQ:    faqTools,
	}, nil
}
