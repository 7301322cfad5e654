package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"fintrack/internal/ai"
	"fintrack/internal/amqp"
	"fintrack/internal/backend"
	"fintrack/internal/cache"
	"fintrack/internal/cli"
	"fintrack/internal/format"
	apphttp "fintrack/internal/http"
	applog "fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/session"
	"fintrack/internal/table"
	"fintrack/internal/voice"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger.Logger)

	ctx, stop := cli.SignalContext(logger.Logger)
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	factory := backend.NewFactory(logger.Logger)
	store, err := factory.OpenStore(backendCfg)
	if err != nil {
		logger.Error("Failed to open store", "error", err, "backend", cfg.StoreBackend)
		os.Exit(1)
	}
	defer func() {
		if err := store.Cleanup(); err != nil {
			logger.Error("Failed to close store", "error", err)
		}
	}()

	var publisher services.EventPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without change events", "error", err)
		} else {
			defer client.Close()
			publisher = client
			logger.Info("Initialized AMQP client", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	txs := services.NewTransactionService(store.Store, publisher)
	sessions := session.NewManager(cfg.JWTSecret, cfg.SessionTTL)
	formatter := format.New(cfg.CurrencySymbol, cfg.CurrencyLocale)

	controllers := cache.NewControllers(cfg.MaxControllers, cfg.ControllerIdle, func(userID string) *table.Controller {
		return table.New(txs.ForUser(userID), table.SystemClock, formatter)
	})
	unwatch := controllers.Watch(sessions)
	defer unwatch()
	defer controllers.Close()

	cacheManager := cache.NewManager()
	cacheManager.Register(controllers)
	cacheManager.StartCleanup(time.Minute)
	defer cacheManager.Stop()

	var assistant *ai.Assistant
	if cfg.GeminiAPIKey != "" {
		model, err := ai.NewGeminiModel(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			logger.Error("Failed to initialize Gemini client", "error", err)
			os.Exit(1)
		}
		assistant = ai.NewAssistant(model)
		logger.Info("Gemini assistant enabled", "model", cfg.GeminiModel)
	} else {
		logger.Info("AI features disabled - no GEMINI_API_KEY provided")
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Dependencies{
		Transactions:      txs,
		Controllers:       controllers,
		Sessions:          sessions,
		Assistant:         assistant,
		Voice:             voice.NewProxy(cfg.BlandAPIKey, cfg.BlandEndpoint),
		Logger:            logger,
		Ready:             store.Ready,
		RequestsPerMinute: cfg.RequestsPerMinute,
	})

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	}()

	logger.Info("Starting fintrack server", "port", cfg.Port, "backend", cfg.StoreBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
