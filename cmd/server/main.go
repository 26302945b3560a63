// Command server runs the HTTP API: document submission, request listing,
// and the Telegram webhook intake. Delivery retries run in the separate
// sweeper binary so API deployments and recovery cadence stay independent.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/paperpeak/go-check-backend/internal/config"
	httpapi "github.com/paperpeak/go-check-backend/internal/http"
	"github.com/paperpeak/go-check-backend/internal/observability"
	"github.com/paperpeak/go-check-backend/internal/repo"
	"github.com/paperpeak/go-check-backend/internal/storage"
	"github.com/paperpeak/go-check-backend/internal/sysutil"
	"github.com/paperpeak/go-check-backend/internal/telegram"
)

const appVersion = "0.1.0"

func main() {
	_ = godotenv.Load()
	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	if cfg.Telegram.BotToken == "" || cfg.Telegram.ChatID == "" {
		log.Fatal().Msg("TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID are required")
	}
	if cfg.Telegram.WebhookSecret == "" {
		log.Fatal().Msg("TELEGRAM_WEBHOOK_SECRET is required")
	}

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	blobs, err := storage.NewMinioStore(storage.Config{
		Endpoint:  cfg.Minio.Endpoint,
		AccessKey: cfg.Minio.AccessKey,
		SecretKey: cfg.Minio.SecretKey,
		Bucket:    cfg.Minio.Bucket,
		UseSSL:    cfg.Minio.UseSSL,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("connect to minio")
	}
	{
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := blobs.EnsureBucket(ctx)
		cancel()
		if err != nil {
			log.Fatal().Err(err).Str("bucket", cfg.Minio.Bucket).Msg("ensure minio bucket")
		}
	}

	bot := telegram.NewClient(telegram.Config{
		BotToken:    cfg.Telegram.BotToken,
		ChatID:      cfg.Telegram.ChatID,
		APIBase:     cfg.Telegram.APIBase,
		MaxFileSize: cfg.MaxFileSize,
		Timeout:     cfg.Telegram.SendTimeout,
	})

	if cfg.OTEL.Enabled {
		shutdown, err := observability.SetupOTel(context.Background(), cfg.OTEL, appVersion)
		if err != nil {
			log.Fatal().Err(err).Msg("setup opentelemetry")
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(ctx); err != nil {
				log.Warn().Err(err).Msg("opentelemetry shutdown")
			}
		}()
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, blobs, bot, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("version", appVersion).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
		return
	}
	log.Info().Msg("server exited gracefully")
}
