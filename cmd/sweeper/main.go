// Command sweeper runs the bounded retry loop for failed deliveries. It can
// run continuously on an interval (the default) or perform a single pass with
// -once, which suits cron-style scheduling and smoke tests.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/paperpeak/go-check-backend/internal/config"
	"github.com/paperpeak/go-check-backend/internal/repo"
	"github.com/paperpeak/go-check-backend/internal/services"
	"github.com/paperpeak/go-check-backend/internal/storage"
	"github.com/paperpeak/go-check-backend/internal/sysutil"
	"github.com/paperpeak/go-check-backend/internal/telegram"
)

func main() {
	once := flag.Bool("once", false, "run a single sweep and exit")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.MustLoad()

	// SWEEP_ONCE mirrors -once for container entrypoints that cannot pass flags.
	singlePass := *once || sysutil.IsTruthy(os.Getenv("SWEEP_ONCE"))

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	if cfg.Telegram.BotToken == "" || cfg.Telegram.ChatID == "" {
		log.Fatal().Msg("TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID are required")
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

	bot := telegram.NewClient(telegram.Config{
		BotToken:    cfg.Telegram.BotToken,
		ChatID:      cfg.Telegram.ChatID,
		APIBase:     cfg.Telegram.APIBase,
		MaxFileSize: cfg.MaxFileSize,
		Timeout:     cfg.Telegram.SendTimeout,
	})

	sweeper := &services.SweeperService{
		DB:         db,
		Blobs:      blobs,
		Sender:     bot,
		MaxRetries: cfg.Sweep.MaxRetries,
		BatchSize:  cfg.Sweep.BatchSize,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if singlePass {
		if err := runSweep(ctx, sweeper); err != nil {
			os.Exit(1)
		}
		return
	}

	log.Info().Dur("interval", cfg.Sweep.Interval).Int("batch_size", cfg.Sweep.BatchSize).Msg("sweeper started")

	ticker := time.NewTicker(cfg.Sweep.Interval)
	defer ticker.Stop()

	// First pass immediately so restarts don't wait a full interval.
	_ = runSweep(ctx, sweeper)
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("sweeper stopping")
			return
		case <-ticker.C:
			_ = runSweep(ctx, sweeper)
		}
	}
}

// runSweep executes one sweep and logs its per-kind report.
func runSweep(ctx context.Context, sweeper *services.SweeperService) error {
	start := time.Now()
	report, err := sweeper.Sweep(ctx)
	if err != nil {
		log.Error().Err(err).Msg("sweep selection errors")
	}
	for kind, kr := range report {
		if kr.Selected == 0 {
			continue
		}
		log.Info().
			Str("kind", string(kind)).
			Int("selected", kr.Selected).
			Int("sent", kr.Sent).
			Int("released", kr.Released).
			Int("exhausted", kr.Exhausted).
			Int("claim_lost", kr.ClaimLost).
			Int("errors", kr.Errors).
			Dur("elapsed", time.Since(start)).
			Msg("sweep finished")
	}
	return err
}
