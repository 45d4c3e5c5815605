package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bryanwahyu/melascope-dx/internal/application"
	"github.com/bryanwahyu/melascope-dx/internal/application/history"
	"github.com/bryanwahyu/melascope-dx/internal/application/sessions"
	"github.com/bryanwahyu/melascope-dx/internal/config"
	domain "github.com/bryanwahyu/melascope-dx/internal/domain/assessment"
	"github.com/bryanwahyu/melascope-dx/internal/infra/ai/openai"
	"github.com/bryanwahyu/melascope-dx/internal/infra/analysisapi"
	"github.com/bryanwahyu/melascope-dx/internal/infra/httpserver"
	"github.com/bryanwahyu/melascope-dx/internal/infra/storage"
	"github.com/bryanwahyu/melascope-dx/internal/middleware"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// .env opsional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("failed to load .env")
	}

	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("config load error")
	}
	setupLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := middleware.NewMetrics()

	// init analysis api client
	client := analysisapi.New(cfg.AnalysisAPI.BaseURL,
		analysisapi.WithTimeout(cfg.AnalysisAPI.Timeout),
		analysisapi.WithLogger(log.Logger.With().Str("component", "analysisapi").Logger()),
		analysisapi.WithFallbackHook(metrics.Fallback),
	)

	var sender domain.ChatSender = client
	if cfg.Chat.Provider == config.ChatProviderOpenAI {
		llm := openai.NewChatClient(cfg.Chat.LLM.APIKey, cfg.Chat.LLM.BaseURL, cfg.Chat.LLM.Model,
			log.Logger.With().Str("component", "llm").Logger())
		llm.OnFallback(metrics.Fallback)
		sender = llm
	}

	checkers := map[string]middleware.HealthChecker{"analysis_api": client}

	// init preview store
	var (
		previews domain.PreviewStore
		opener   httpserver.PreviewOpener
	)
	switch cfg.Previews.Backend {
	case config.PreviewBackendMinio:
		store, err := storage.NewMinio(ctx, storage.MinioConfig{
			Endpoint:  cfg.Minio.Endpoint,
			Region:    cfg.Minio.Region,
			Bucket:    cfg.Minio.BucketName,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			UseSSL:    cfg.Minio.UseSSL,
			Prefix:    cfg.Minio.Prefix,
			URLExpiry: cfg.Previews.URLExpiry,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("minio init error")
		}
		previews = store
		checkers["previews"] = store
	default:
		mem := storage.NewMemory(storage.DefaultURLPrefix)
		previews, opener = mem, mem
		checkers["previews"] = mem
	}

	// init sessions
	reg := sessions.NewRegistry(sessions.Deps{
		Analyzer: client,
		Advisor:  client,
		Sender:   sender,
		Previews: previews,
		History:  history.NewStore(cfg.History.Capacity),
		Observer: metrics,
		Clock:    application.SystemClock{},
		Logger:   log.Logger,
		IdleTTL:  cfg.Sessions.IdleTTL,
	})
	go reg.Run(ctx, cfg.Sessions.SweepInterval)

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = middleware.NewRateLimiter(ctx, cfg.RateLimit.Capacity, cfg.RateLimit.RefillRate)
	}

	// init router
	mux := chi.NewRouter()
	mux.Mount("/", httpserver.NewRouter(httpserver.Options{
		Registry:       reg,
		Previews:       opener,
		Metrics:        metrics,
		Checkers:       checkers,
		Limiter:        limiter,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		Logger:         log.Logger,
	}))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// run server
	go func() {
		log.Info().
			Str("addr", addr).
			Str("analysis_api", cfg.AnalysisAPI.BaseURL).
			Str("chat", cfg.Chat.Provider).
			Str("previews", cfg.Previews.Backend).
			Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// graceful shutdown
	<-ctx.Done()
	log.Info().Msg("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
	reg.CloseAll(ctx2)
}

func setupLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Log.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Log.Format == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}
