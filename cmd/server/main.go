package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Rrens/text-to-dashboard/internal/api"
	"github.com/Rrens/text-to-dashboard/internal/api/handler"
	customMiddleware "github.com/Rrens/text-to-dashboard/internal/api/middleware"
	"github.com/Rrens/text-to-dashboard/internal/config"
	"github.com/Rrens/text-to-dashboard/internal/llm"
	"github.com/Rrens/text-to-dashboard/internal/llm/anthropic"
	"github.com/Rrens/text-to-dashboard/internal/llm/deepseek"
	"github.com/Rrens/text-to-dashboard/internal/llm/gemini"
	"github.com/Rrens/text-to-dashboard/internal/llm/ollama"
	"github.com/Rrens/text-to-dashboard/internal/llm/openai"
	"github.com/Rrens/text-to-dashboard/internal/observability"
	"github.com/Rrens/text-to-dashboard/internal/repository/redis"
	"github.com/Rrens/text-to-dashboard/internal/schema"
	"github.com/Rrens/text-to-dashboard/internal/security"
	"github.com/Rrens/text-to-dashboard/internal/service"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load .env file - try multiple locations
	envPaths := []string{".env", "../.env", "../../.env"}
	envLoaded := ""
	for _, p := range envPaths {
		if err := godotenv.Load(p); err == nil {
			envLoaded = p
			break
		}
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logCloser, err := observability.SetupLogger(cfg.Logging, os.Getenv("ENV") == "production")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	if envLoaded != "" {
		log.Debug().Str("path", envLoaded).Msg("loaded .env")
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("superset", cfg.Superset.BaseURL).
		Msg("Starting Text-to-Dashboard API server")

	schemaContext, err := schema.Load(cfg.Schema.ContextFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load schema context")
	}

	llmRouter := newLLMRouter(cfg.LLM)
	if len(llmRouter.ListProviders()) == 0 {
		log.Warn().Msg("No LLM provider is configured; generation endpoints will fail")
	}

	deps := api.Deps{
		LLMRouter:        llmRouter,
		DashboardService: service.NewDashboardService(llmRouter, cfg.Superset, schemaContext),
		Ready:            map[string]handler.Pinger{},
	}

	if cfg.Auth.JWTSecret != "" {
		jwtManager := security.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, 0)
		deps.Auth = customMiddleware.NewAuthMiddleware(jwtManager)
		log.Info().Msg("API token authentication enabled")
	}

	var sqlCache service.SQLCache
	if cfg.Redis.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		redisClient, err := redis.NewClient(ctx, cfg.Redis)
		cancel()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer redisClient.Close()

		rateLimiter := redis.NewRateLimiter(
			redisClient,
			cfg.Security.RateLimit.RequestsPerMinute,
			cfg.Security.RateLimit.Burst,
		)
		cache := redis.NewSQLCache(redisClient, cfg.Redis.CacheTTL)

		deps.RateLimit = customMiddleware.NewRateLimitMiddleware(rateLimiter)
		deps.Cache = cache
		deps.Ready["redis"] = redisClient
		sqlCache = cache
	}

	deps.QueryService = service.NewQueryService(llmRouter, schemaContext, cfg.Schema.Dialect, sqlCache)

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(cfg, deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().Msgf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

// newLLMRouter registers every provider that has credentials
func newLLMRouter(cfg config.LLMConfig) *llm.Router {
	llmRouter := llm.NewRouter(cfg.DefaultProvider)

	log.Info().Msgf("Initializing LLM providers. Default: %s", cfg.DefaultProvider)

	if cfg.Ollama.Host != "" {
		log.Info().Str("host", cfg.Ollama.Host).Msg("Registering Ollama provider")
		llmRouter.RegisterProvider(ollama.NewProvider(cfg.Ollama.Host, cfg.Ollama.DefaultModel))
	}
	if cfg.OpenAI.APIKey != "" {
		var opts []openai.Option
		if cfg.OpenAI.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.OpenAI.BaseURL))
		}
		llmRouter.RegisterProvider(openai.NewProvider(cfg.OpenAI.APIKey, cfg.OpenAI.Model, opts...))
	}
	if cfg.Anthropic.APIKey != "" {
		llmRouter.RegisterProvider(anthropic.NewProvider(cfg.Anthropic.APIKey, cfg.Anthropic.Model, cfg.Anthropic.BaseURL))
	}
	if cfg.DeepSeek.APIKey != "" {
		llmRouter.RegisterProvider(deepseek.NewProvider(cfg.DeepSeek.APIKey, cfg.DeepSeek.Model, cfg.DeepSeek.BaseURL))
	}
	if cfg.Gemini.APIKey != "" {
		log.Info().Int("key_len", len(cfg.Gemini.APIKey)).Msg("Registering Gemini provider")
		llmRouter.RegisterProvider(gemini.NewProvider(cfg.Gemini))
	} else {
		log.Warn().Msg("Gemini API Key is empty, skipping registration")
	}

	return llmRouter
}
