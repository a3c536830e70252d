package di

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"retrieval-agent/internal/infrastructure/env"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigFromEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(
		"LLM_PROVIDER=azure\nLLM_MODEL=gpt-4o\nAGENT_MAX_ITERATIONS=6\nAGENT_TOOL_TIMEOUT=10s\nSQL_ALLOW_WRITES=true\n"), 0o600))
	t.Setenv("APP_ENV", "test")
	for _, key := range []string{"LLM_PROVIDER", "LLM_MODEL", "AGENT_MAX_ITERATIONS", "AGENT_TOOL_TIMEOUT", "SQL_ALLOW_WRITES"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg := ConfigFromEnv(env.NewEnvService(dir))

	assert.Equal(t, "azure", cfg.LLMProvider)
	assert.Equal(t, "gpt-4o", cfg.LLMModel)
	assert.Equal(t, 6, cfg.Executor.MaxIterations)
	assert.Equal(t, 10*time.Second, cfg.Executor.ToolTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Executor.RunTimeout)
	assert.True(t, cfg.SQLAllowWrites)
	assert.Equal(t, "sqlite", cfg.SQLDriver)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestNewContainer_WiresTools(t *testing.T) {
	cfg := Config{
		LLMProvider:         "openai",
		LLMAPIKey:           "test",
		LLMModel:            "gpt-4o-mini",
		SQLDriver:           "sqlite",
		SQLDSN:              ":memory:",
		AzureSearchEndpoint: "http://127.0.0.1:1",
		AzureSearchIndex:    "docs",
		LogLevel:            "debug",
		LogQuiet:            true,
	}

	c, err := NewContainer(context.Background(), cfg)
	require.NoError(t, err)
	defer c.Close()

	var names []string
	for _, def := range c.Tools.Definitions() {
		names = append(names, def.Name)
	}
	assert.Equal(t, []string{"currency_convert", "document_search", "fetch_page", "sql_query", "sql_schema", "web_search"}, names)
	assert.Equal(t, 10, c.Executor.Config().MaxIterations)
	require.NotNil(t, c.Evaluator)

	rec := httptest.NewRecorder()
	c.Metrics.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestNewContainer_OptionalToolsOff(t *testing.T) {
	c, err := NewContainer(context.Background(), Config{LLMModel: "gpt-4o-mini", LogQuiet: true})
	require.NoError(t, err)
	defer c.Close()

	_, ok := c.Tools.Get("sql_query")
	assert.False(t, ok)
	_, ok = c.Tools.Get("document_search")
	assert.False(t, ok)
	_, ok = c.Tools.Get("web_search")
	assert.True(t, ok)
}

func TestNewContainer_Errors(t *testing.T) {
	_, err := NewContainer(context.Background(), Config{LogQuiet: true})
	assert.ErrorContains(t, err, "llm")

	_, err = NewContainer(context.Background(), Config{LLMModel: "m", LogLevel: "loud"})
	assert.ErrorContains(t, err, "logger")

	_, err = NewContainer(context.Background(), Config{LLMModel: "m", LogQuiet: true, SQLDriver: "oracle", SQLDSN: "x"})
	assert.ErrorContains(t, err, "database")
}
