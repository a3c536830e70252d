package di

import (
	"time"

	"retrieval-agent/internal/application/port/output"
	"retrieval-agent/internal/application/service"
	"retrieval-agent/internal/usecase/executor"
)

type Config struct {
	LLMProvider     string
	LLMAPIKey       string
	LLMModel        string
	LLMBaseURL      string
	AzureAPIVersion string

	BingKey         string
	BingEndpoint    string
	SearchRateLimit float64

	SQLDriver      string
	SQLDSN         string
	SQLAllowWrites bool
	SQLMaxRows     int

	AzureSearchEndpoint string
	AzureSearchKey      string
	AzureSearchIndex    string

	CurrencyAPIURL string
	BrowserFetch   bool

	Executor executor.Config
	Cache    service.CacheConfig

	OTLPEndpoint string
	LogLevel     string
	LogFile      string
	// LogQuiet keeps logs off stderr. The CLI sets it so the terminal only
	// shows the rendered run.
	LogQuiet bool

	// SystemPrompt overrides the embedded prompt template.
	SystemPrompt string
}

// ConfigFromEnv maps environment keys onto Config.
func ConfigFromEnv(env output.ConfigPort) Config {
	defaults := executor.DefaultConfig()
	return Config{
		LLMProvider:     env.GetWithDefault("LLM_PROVIDER", "openai"),
		LLMAPIKey:       env.Get("LLM_API_KEY"),
		LLMModel:        env.GetWithDefault("LLM_MODEL", "gpt-4o-mini"),
		LLMBaseURL:      env.Get("LLM_BASE_URL"),
		AzureAPIVersion: env.Get("AZURE_OPENAI_API_VERSION"),

		BingKey:         env.Get("BING_SEARCH_KEY"),
		BingEndpoint:    env.Get("BING_SEARCH_ENDPOINT"),
		SearchRateLimit: float64(env.GetInt("SEARCH_RATE_LIMIT", 3)),

		SQLDriver:      env.GetWithDefault("SQL_DRIVER", "sqlite"),
		SQLDSN:         env.Get("SQL_DSN"),
		SQLAllowWrites: env.GetBool("SQL_ALLOW_WRITES", false),
		SQLMaxRows:     env.GetInt("SQL_MAX_ROWS", 100),

		AzureSearchEndpoint: env.Get("AZURE_SEARCH_ENDPOINT"),
		AzureSearchKey:      env.Get("AZURE_SEARCH_KEY"),
		AzureSearchIndex:    env.Get("AZURE_SEARCH_INDEX"),

		CurrencyAPIURL: env.Get("CURRENCY_API_URL"),
		BrowserFetch:   env.GetBool("BROWSER_FETCH", false),

		Executor: executor.Config{
			MaxIterations:      env.GetInt("AGENT_MAX_ITERATIONS", defaults.MaxIterations),
			RunTimeout:         env.GetDuration("AGENT_RUN_TIMEOUT", defaults.RunTimeout),
			ToolTimeout:        env.GetDuration("AGENT_TOOL_TIMEOUT", defaults.ToolTimeout),
			MaxConcurrentTools: env.GetInt("AGENT_MAX_CONCURRENT_TOOLS", defaults.MaxConcurrentTools),
			MaxProtocolErrors:  env.GetInt("AGENT_MAX_PROTOCOL_ERRORS", defaults.MaxProtocolErrors),
			MaxObservationLen:  defaults.MaxObservationLen,
		},
		Cache: service.CacheConfig{
			MaxSize: env.GetInt("TOOL_CACHE_SIZE", 256),
			TTL:     env.GetDuration("TOOL_CACHE_TTL", 5*time.Minute),
		},

		OTLPEndpoint: env.Get("OTEL_EXPORTER_OTLP_ENDPOINT"),
		LogLevel:     env.GetWithDefault("LOG_LEVEL", "info"),
		LogFile:      env.Get("LOG_FILE"),
	}
}
