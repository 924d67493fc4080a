package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/mediavault/tubefetch/internal/admin"
	"github.com/mediavault/tubefetch/internal/config"
	"github.com/mediavault/tubefetch/internal/database"
	"github.com/mediavault/tubefetch/internal/media"
	"github.com/mediavault/tubefetch/internal/repository"
	"github.com/mediavault/tubefetch/internal/service"
	"github.com/mediavault/tubefetch/internal/storage"
	"github.com/mediavault/tubefetch/internal/telegram"
	"github.com/mediavault/tubefetch/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logr := logger.New()

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("database connect: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("database migrate: %v", err)
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		log.Fatalf("telegram bot: %v", err)
	}

	userRepo := repository.NewUserRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	jobRepo := repository.NewJobRepository(db)
	topupRepo := repository.NewTopupRepository(db)

	uploader, err := storage.NewUploader(storage.Config{
		Endpoint:      cfg.S3Endpoint,
		Region:        cfg.S3Region,
		AccessKey:     cfg.S3AccessKey,
		SecretKey:     cfg.S3SecretKey,
		Bucket:        cfg.S3Bucket,
		PublicBaseURL: cfg.S3PublicBaseURL,
		UsePathStyle:  cfg.S3UsePathStyle,
		Prefix:        cfg.S3Prefix,
	})
	if err != nil {
		log.Fatalf("storage uploader: %v", err)
	}

	fetcher := media.NewFetcher(logr, cfg.CookiesFile)
	downloader := media.NewDownloader(logr, cfg.DownloadDir, cfg.CookiesFile)

	notifier := telegram.NewNotifier(cfg, botAPI, logr)
	membership := telegram.NewMembership(cfg, botAPI)
	delivery := telegram.NewDelivery(botAPI, uploader, logr)

	userService := service.NewUserService(userRepo)
	ledgerService := service.NewLedgerService(logr, ledgerRepo)
	registrationService := service.NewRegistrationService(cfg, logr, userRepo, ledgerService, membership)
	bonusService := service.NewBonusService(cfg, logr, userRepo, ledgerService)
	jobService := service.NewJobService(cfg, logr, ledgerService, jobRepo, fetcher, downloader, delivery, notifier)
	topupService := service.NewTopupService(cfg, logr, topupRepo, userRepo, ledgerService, notifier, notifier)

	bot := telegram.NewBot(cfg, botAPI, logr, userService, ledgerService, jobService, topupService, registrationService, bonusService, membership)

	adminServer := admin.NewServer(cfg, logr, userService, topupService, jobService, botAPI)
	go func() {
		if err := adminServer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logr.Error("admin server stopped", "err", err)
		}
	}()

	if err := bot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logr.Error("bot stopped", "err", err)
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := jobService.Shutdown(drainCtx); err != nil {
		logr.Error("jobs did not drain before shutdown", "err", err)
	}
}
