// Package main wires the Telegram booking bot together with its ops HTTP
// server: configuration, logging, tracing, storage, the notification
// dispatcher, and graceful shutdown of the whole assembly.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/shortletng/shortlet-bot/internal/bot"
	"github.com/shortletng/shortlet-bot/internal/config"
	httpapi "github.com/shortletng/shortlet-bot/internal/http"
	"github.com/shortletng/shortlet-bot/internal/notify"
	"github.com/shortletng/shortlet-bot/internal/observability"
	"github.com/shortletng/shortlet-bot/internal/repo"
	"github.com/shortletng/shortlet-bot/internal/services"
	"github.com/shortletng/shortlet-bot/internal/session"
	"github.com/shortletng/shortlet-bot/internal/sysutil"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

// chatResolver maps domain identifiers to Telegram chat ids using the
// persisted user and apartment records.
type chatResolver struct {
	db *gorm.DB
}

func (r chatResolver) TenantChat(ctx context.Context, userID string) (int64, error) {
	u, err := repo.GetUser(ctx, r.db, userID)
	if err != nil {
		return 0, err
	}
	return u.ChatID, nil
}

func (r chatResolver) OwnerChat(ctx context.Context, apartmentID string) (int64, bool, error) {
	apt, err := repo.GetApartment(ctx, r.db, apartmentID)
	if err != nil {
		return 0, false, err
	}
	if apt.OwnerID == nil || *apt.OwnerID == "" {
		return 0, false, nil
	}
	u, err := repo.GetUser(ctx, r.db, *apt.OwnerID)
	if err != nil {
		return 0, false, err
	}
	return u.ChatID, true, nil
}

func (r chatResolver) OwnerID(ctx context.Context, apartmentID string) (string, bool, error) {
	apt, err := repo.GetApartment(ctx, r.db, apartmentID)
	if err != nil {
		return "", false, err
	}
	if apt.OwnerID == nil || *apt.OwnerID == "" {
		return "", false, nil
	}
	return *apt.OwnerID, true, nil
}

func main() {
	// Missing .env is fine in production where env vars come from the host.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	logger := sysutil.InitLogger(cfg.LogPretty)
	sysutil.SetLogLevel(cfg.LogLevel)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		logger.Fatal().Err(err).Msg("otel setup failed")
	}

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		logger.Fatal().Err(err).Msg("migrate failed")
	}

	tg, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		logger.Fatal().Err(err).Msg("telegram auth failed")
	}
	tg.Debug = cfg.Telegram.Debug
	logger.Info().Str("username", tg.Self.UserName).Msg("telegram bot authorized")

	dispatcher := notify.NewTelegramDispatcher(tg, chatResolver{db: db}, cfg.Telegram.AdminChatID, cfg.NotifyRPS, cfg.NotifyBurst, logger)

	services.CommissionRate = decimal.NewFromFloat(cfg.CommissionRate)

	bookings, ledger := bot.NewServices(db, dispatcher)
	bookings.PINTTL = cfg.PINTTL

	sessions := session.NewMemoryStore(cfg.SessionTTL)

	b := bot.New(tg, db, bookings, ledger, sessions, cfg.Telegram.AdminChatID, logger)
	go b.Run(ctx)

	r := gin.New()
	httpapi.RegisterRoutes(r, ledger, bookings, cfg)

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
		logger.Info().Str("addr", srv.Addr).Msg("ops server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("ops server failed")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("ops server shutdown failed")
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("otel shutdown failed")
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	logger.Info().Str("version", version).Msg("stopped")
}
