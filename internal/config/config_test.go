package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("POSTGRES_URL", "postgres://purpura@localhost:5432/purpura")
	t.Setenv("MONGO_URL", "mongodb://localhost:27017")
	t.Setenv("GEMINI_API_KEY", "gm-key")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)
	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Equal(t, 8000, cfg.Port)
	require.Equal(t, BackendRedis, cfg.HistoryBackend)
	require.Equal(t, ProviderGemini, cfg.LLMProvider)
	require.Equal(t, "gemini-2.5-flash", cfg.MainModel)
	require.InDelta(t, 0.7, cfg.MainTemperature, 1e-9)
	require.InDelta(t, 0.95, cfg.MainTopP, 1e-9)
	require.Equal(t, "gemini-2.0-flash", cfg.FastModel)
	require.Zero(t, cfg.FastTemperature)
	require.Equal(t, 20, cfg.MaxContextItems)
	require.Zero(t, cfg.MaxQuestionLength)
	require.Equal(t, 30*time.Second, cfg.StageTimeout)
	require.Equal(t, "purpura", cfg.MongoDatabase)
	require.Equal(t, "empresas", cfg.MongoCollection)
	require.Equal(t, "gm-key", cfg.ModelAPIKey())
}

func TestLoad_FileThenEnvironment(t *testing.T) {
	setRequired(t)
	path := filepath.Join(t.TempDir(), "purpuria.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
port = 9000
stage_timeout = "5s"
main_model = "gemini-2.5-pro"
rate_limit = 2.5
`), 0o600))
	t.Setenv("PORT", "9100")
	t.Setenv("MAX_CONTEXT_ITEMS", "6")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9100, cfg.Port)
	require.Equal(t, 5*time.Second, cfg.StageTimeout)
	require.Equal(t, "gemini-2.5-pro", cfg.MainModel)
	require.InDelta(t, 2.5, cfg.RateLimit, 1e-9)
	require.Equal(t, 6, cfg.MaxContextItems)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestValidate_ReportsAllMissingOptions(t *testing.T) {
	for _, k := range []string{"REDIS_URL", "POSTGRES_URL", "MONGO_URL", "GEMINI_API_KEY", "OPENAI_API_KEY", "PARAM_PREFIX"} {
		t.Setenv(k, "")
	}
	cfg, err := Load("")
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"REDIS_URL", "POSTGRES_URL", "MONGO_URL", "model API key"} {
		require.ErrorContains(t, err, want)
	}
}

func TestValidate_ParamPrefixReplacesInlineKey(t *testing.T) {
	setRequired(t)
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("PARAM_PREFIX", "/purpuria/prod")
	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
}

func TestValidate_Backends(t *testing.T) {
	setRequired(t)
	t.Setenv("HISTORY_BACKEND", "dynamodb")
	cfg, err := Load("")
	require.NoError(t, err)
	require.ErrorContains(t, cfg.Validate(), "HISTORY_TABLE")

	t.Setenv("HISTORY_TABLE", "purpuria-history")
	cfg, err = Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	t.Setenv("HISTORY_BACKEND", "postgres")
	cfg, err = Load("")
	require.NoError(t, err)
	require.ErrorContains(t, cfg.Validate(), "HISTORY_BACKEND")
}

func TestValidate_OpenAIProviderStillNeedsGeminiForEmbeddings(t *testing.T) {
	setRequired(t)
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("GEMINI_API_KEY", "")
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "sk-test", cfg.ModelAPIKey())
	require.ErrorContains(t, cfg.Validate(), "embeddings")
}

func TestValidate_QuestionLengthCap(t *testing.T) {
	setRequired(t)
	t.Setenv("MAX_QUESTION_LENGTH", "500")
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 500, cfg.MaxQuestionLength)
	require.NoError(t, cfg.Validate())

	t.Setenv("MAX_QUESTION_LENGTH", "-1")
	cfg, err = Load("")
	require.NoError(t, err)
	require.ErrorContains(t, cfg.Validate(), "MAX_QUESTION_LENGTH")
}
