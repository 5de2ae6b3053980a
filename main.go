package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	goredis "github.com/redis/go-redis/v9"

	"github.com/smart-order-intake/server/internal/api"
	"github.com/smart-order-intake/server/internal/core"
	"github.com/smart-order-intake/server/internal/intake/catalog"
	"github.com/smart-order-intake/server/internal/intake/export"
	"github.com/smart-order-intake/server/internal/intake/extraction"
	"github.com/smart-order-intake/server/internal/intake/graph"
	"github.com/smart-order-intake/server/internal/intake/model"
	"github.com/smart-order-intake/server/internal/intake/processing"
	"github.com/smart-order-intake/server/internal/intake/repo"
	"github.com/smart-order-intake/server/internal/intake/validation"
	"github.com/smart-order-intake/server/internal/metrics"
	logx "github.com/smart-order-intake/server/pkg/logger"
	pkgredis "github.com/smart-order-intake/server/pkg/redis"
)

// AppConfig defines all configurable parameters of the intake server,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL"`

	// Infrastructure
	Redis  pkgredis.Config
	Server model.ServerConfig

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Intake configs
	Extraction model.ExtractionModelConfig
	Breaker    model.BreakerConfig
	Catalog    model.CatalogConfig
	Export     model.ExportConfig
}

func main() {
	ctx := context.Background()

	// Load .env file
	envErr := godotenv.Load(".env")

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		logx.Init()
		logx.Fatal().Err(err).Msg("Failed to process environment config")
	}

	env := core.ParseEnvironment(cfg.Environment)
	logx.Init(logx.LoggerOpts{Environment: env, Level: cfg.LogLevel})
	if envErr != nil {
		logx.Warn().Err(envErr).Msg("Could not load .env file")
	}
	if env.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	products, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		logx.Fatal().Err(err).Str("path", cfg.Catalog.Path).Msg("Failed to load product catalog")
	}
	logx.Info().Int("products", products.Len()).Str("path", cfg.Catalog.Path).Msg("Product catalog loaded")

	var (
		rdb    *goredis.Client
		orders model.OrderRepository
	)
	if cfg.Redis.Enabled() {
		rdb, err = cfg.Redis.New(ctx)
		if err != nil {
			logx.Fatal().Err(err).Msg("Failed to initialise Redis client")
		}
		orders = repo.NewRedisOrderRepository(rdb, cfg.Server.OrderTTL)
		logx.Info().Msg("Connected to Redis, orders are stored in Redis")
	} else {
		orders = repo.NewMemoryOrderRepository(cfg.Server.OrderTTL)
		logx.Warn().Msg("REDIS_URL not set, orders are kept in memory")
	}

	reg := metrics.NewRegistry()

	runner, err := graph.BuildExtractionGraph(ctx, graph.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Extraction,
		Catalog: products,
	})
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to build extraction graph")
	}

	extractor := extraction.NewAdapter(runner, extraction.Config{
		Timeout: cfg.Extraction.Timeout,
		Breaker: cfg.Breaker,
	}, reg)

	processor, err := processing.NewProcessor(processing.Config{
		Extractor:     extractor,
		Aggregator:    processing.NewAggregator(validation.NewValidator(products)),
		Repo:          orders,
		Recorder:      reg,
		MaxEmailBytes: cfg.Server.MaxEmailBytes,
	})
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to build order processor")
	}

	handler := api.NewHandler(api.Config{
		Orders:  processor,
		Catalog: products,
		Forms:   export.NewFormBuilder(cfg.Export),
		Breaker: extractor,
		Metrics: reg,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logx.Info().
			Str("addr", srv.Addr).
			Str("environment", env.String()).
			Str("model", cfg.Extraction.Model).
			Msg("Smart Order Intake API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	ops := map[string]gfshutdown.Operation{
		"http-server": func(ctx context.Context) error {
			logx.Info().Msg("Shutting down HTTP server")
			return srv.Shutdown(ctx)
		},
	}
	if rdb != nil {
		ops["redis"] = func(context.Context) error {
			return rdb.Close()
		}
	}

	wait := gfshutdown.GracefulShutdown(ctx, cfg.Server.ShutdownTimeout, ops)
	exitCode := <-wait
	logx.Info().Int("exit_code", exitCode).Msg("Server exited")
	os.Exit(exitCode)
}
