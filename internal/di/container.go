package di

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"retrieval-agent/internal/adapter/tool"
	"retrieval-agent/internal/application/port/output"
	"retrieval-agent/internal/application/service"
	"retrieval-agent/internal/infrastructure/currency"
	"retrieval-agent/internal/infrastructure/llm/openaicompat"
	"retrieval-agent/internal/infrastructure/logger"
	"retrieval-agent/internal/infrastructure/metrics"
	"retrieval-agent/internal/infrastructure/prompts"
	"retrieval-agent/internal/infrastructure/searchindex"
	"retrieval-agent/internal/infrastructure/sqldb"
	"retrieval-agent/internal/infrastructure/tracing"
	"retrieval-agent/internal/infrastructure/webpage"
	"retrieval-agent/internal/infrastructure/websearch"
	"retrieval-agent/internal/usecase/evaluator"
	"retrieval-agent/internal/usecase/executor"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Container struct {
	Config    Config
	Logger    output.LoggerPort
	LLM       output.LLMPort
	Tools     output.ToolRegistry
	Executor  *executor.UseCase
	Evaluator *evaluator.Evaluator
	Metrics   http.Handler

	closers []func()
}

func NewContainer(ctx context.Context, cfg Config) (*Container, error) {
	log, err := logger.New(logger.Config{Level: cfg.LogLevel, File: cfg.LogFile, Quiet: cfg.LogQuiet})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	c := &Container{Config: cfg, Logger: log}
	c.closers = append(c.closers, func() { log.Close() })

	shutdown, err := tracing.Setup(ctx, tracing.Config{Endpoint: cfg.OTLPEndpoint, ServiceName: "retrieval-agent"})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to set up tracing: %w", err)
	}
	c.closers = append(c.closers, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			log.Warn("Tracing shutdown failed", "error", err)
		}
	})

	llmCfg := openaicompat.DefaultConfig(openaicompat.Provider(cfg.LLMProvider), cfg.LLMAPIKey, cfg.LLMModel)
	if cfg.LLMBaseURL != "" {
		llmCfg.BaseURL = cfg.LLMBaseURL
	}
	if cfg.AzureAPIVersion != "" {
		llmCfg.APIVersion = cfg.AzureAPIVersion
	}
	llmCfg.Logger = log
	llm, err := openaicompat.New(llmCfg)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to create llm client: %w", err)
	}
	c.LLM = llm

	tools := service.NewToolRegistry()
	if err := c.registerTools(ctx, tools, log); err != nil {
		c.Close()
		return nil, err
	}
	c.Tools = tools

	template := cfg.SystemPrompt
	if template == "" {
		template = prompts.DefaultSystemPrompt
	}
	systemPrompt, err := prompts.GenerateSystemPrompt(template, tools, time.Now())
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to render system prompt: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	c.Metrics = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	c.Executor = executor.New(llm, tools, log, systemPrompt, cfg.Executor,
		logger.NewEventSink(log), metrics.NewSink(registry))
	c.Evaluator = evaluator.New(llm, log, prompts.EvaluatorPrompt)

	names := make([]string, 0, len(tools.All()))
	for _, t := range tools.All() {
		names = append(names, t.Name())
	}
	log.Info("Container ready", "provider", cfg.LLMProvider, "model", cfg.LLMModel, "tools", names)
	return c, nil
}

func (c *Container) registerTools(ctx context.Context, registry *service.ToolRegistryImpl, log output.LoggerPort) error {
	cached := func(t output.ToolPort) output.ToolPort {
		return service.WithCache(t, c.Config.Cache)
	}

	limiter := websearch.NewLimiter(c.Config.SearchRateLimit)
	var searcher websearch.Searcher
	if c.Config.BingKey != "" {
		searcher = websearch.NewBingClient(websearch.BingConfig{
			APIKey:   c.Config.BingKey,
			Endpoint: c.Config.BingEndpoint,
			Limiter:  limiter,
		})
	} else {
		searcher = websearch.NewDuckDuckGoClient("", limiter, nil)
	}
	registry.MustRegister(cached(tool.NewWebSearchTool(searcher, log)))

	var fetcher webpage.Fetcher = webpage.NewHTTPFetcher(nil)
	if c.Config.BrowserFetch {
		rodFetcher := webpage.NewRodFetcher(webpage.DefaultRodConfig())
		c.closers = append(c.closers, rodFetcher.Close)
		fetcher = rodFetcher
	}
	reader := webpage.NewReader(fetcher, webpage.ReaderConfig{})
	registry.MustRegister(cached(tool.NewFetchPageTool(reader, log)))

	if c.Config.SQLDSN != "" {
		db, err := sqldb.Open(ctx, sqldb.Config{
			Driver:      c.Config.SQLDriver,
			DSN:         c.Config.SQLDSN,
			MaxRows:     c.Config.SQLMaxRows,
			AllowWrites: c.Config.SQLAllowWrites,
		})
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		c.closers = append(c.closers, func() { db.Close() })
		registry.MustRegister(cached(tool.NewSQLQueryTool(db, log)))
		registry.MustRegister(cached(tool.NewSQLSchemaTool(db, log)))
	}

	if c.Config.AzureSearchEndpoint != "" {
		index := searchindex.NewAzureClient(searchindex.Config{
			Endpoint: c.Config.AzureSearchEndpoint,
			APIKey:   c.Config.AzureSearchKey,
			Index:    c.Config.AzureSearchIndex,
		})
		registry.MustRegister(cached(tool.NewDocumentSearchTool(index, log)))
	}

	rates := currency.NewFrankfurterClient(c.Config.CurrencyAPIURL, nil)
	registry.MustRegister(cached(tool.NewCurrencyConvertTool(rates, log)))
	return nil
}

// Close releases resources in reverse order of acquisition.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}
