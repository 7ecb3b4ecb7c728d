// Package main is the entry point for the StrongHodl valuation service.
// It keeps a single Bitcoin price, a set of directed exchange rates and a
// derived portfolio snapshot consistent and cheap to read while background
// jobs refresh them from external feeds on independent schedules.
package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/wilqq-the/stronghodl/internal/clientdata"
	"github.com/wilqq-the/stronghodl/internal/clients/coingecko"
	"github.com/wilqq-the/stronghodl/internal/clients/exchangerate"
	"github.com/wilqq-the/stronghodl/internal/config"
	"github.com/wilqq-the/stronghodl/internal/database"
	"github.com/wilqq-the/stronghodl/internal/modules/ledger"
	"github.com/wilqq-the/stronghodl/internal/modules/prices"
	"github.com/wilqq-the/stronghodl/internal/modules/rates"
	"github.com/wilqq-the/stronghodl/internal/modules/settings"
	"github.com/wilqq-the/stronghodl/internal/modules/valuation"
	"github.com/wilqq-the/stronghodl/internal/reliability"
	"github.com/wilqq-the/stronghodl/internal/scheduler"
	"github.com/wilqq-the/stronghodl/internal/server"
	"github.com/wilqq-the/stronghodl/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting StrongHodl")

	// App database holds the ledger, rates, prices and the derived snapshot.
	appDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "app.db"),
		Profile: database.ProfileStandard,
		Name:    "app",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open app database")
	}
	defer appDB.Close()

	if err := appDB.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate app database")
	}

	// Client data database caches external feed responses with TTLs.
	clientDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "client_data.db"),
		Profile: database.ProfileCache,
		Name:    "client_data",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open client data database")
	}
	defer clientDB.Close()

	if err := clientDB.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate client data database")
	}

	// Feed clients
	cacheRepo := clientdata.NewRepository(clientDB.Conn())
	marketFeed := coingecko.NewClient(cfg.MarketFeedBaseURL, cacheRepo, log)
	fxFeed := exchangerate.NewClient(cfg.FxFeedBaseURL, cacheRepo, log)

	// Repositories and services
	settingsSvc := settings.NewService(settings.NewRepository(appDB.Conn()), log)
	rateRepo := rates.NewRepository(appDB.Conn(), log)
	resolver := rates.NewResolver(rateRepo, log)
	ledgerRepo := ledger.NewRepository(appDB.Conn(), log)
	priceRepo := prices.NewRepository(appDB.Conn(), log)
	priceSvc := prices.NewService(priceRepo, log)
	snapshotRepo := valuation.NewRepository(appDB.Conn(), log)
	engine := valuation.NewEngine(ledgerRepo, priceRepo, resolver, settingsSvc, snapshotRepo, log)
	triggers := valuation.NewTriggers(engine, cfg.DebounceWindow, cfg.RateLimitWindow, log)
	defer triggers.Stop()

	// Scheduler jobs
	intradayJob := scheduler.NewIntradayPriceJob(marketFeed, priceRepo, priceSvc, engine, settingsSvc, log)
	historicalJob := scheduler.NewHistoricalPriceJob(marketFeed, priceRepo, intradayJob, log)
	fxJob := scheduler.NewExchangeRatesJob(fxFeed, rateRepo, resolver, settingsSvc, log)
	sched := scheduler.New(intradayJob, historicalJob, fxJob, settingsSvc, log)

	// Websocket price stream
	priceStream := server.NewPriceStream(log)
	intradayJob.SetOnPrice(priceStream.Broadcast)

	// Optional cloud backups
	var backupService *reliability.BackupService
	if cfg.BackupEnabled {
		s3Client, err := reliability.NewS3Client(context.Background(), reliability.S3Config{
			Endpoint:  cfg.BackupEndpoint,
			AccessKey: cfg.BackupAccessKey,
			SecretKey: cfg.BackupSecretKey,
			Bucket:    cfg.BackupBucket,
		}, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create S3 client")
		}
		backupService = reliability.NewBackupService(s3Client, map[string]*sql.DB{
			"app":         appDB.Conn(),
			"client_data": clientDB.Conn(),
		}, cfg.DataDir, cfg.BackupRetention, log)
		log.Info().Str("bucket", cfg.BackupBucket).Msg("Cloud backups enabled")
	}

	srv := server.New(server.Config{
		Port:          cfg.Port,
		Log:           log,
		PriceService:  priceSvc,
		PriceRepo:     priceRepo,
		RateRepo:      rateRepo,
		Resolver:      resolver,
		Engine:        engine,
		Triggers:      triggers,
		Settings:      settingsSvc,
		Scheduler:     sched,
		BackupService: backupService,
		PriceStream:   priceStream,
	})

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// The scheduler bootstraps each feed synchronously before its timers
	// begin, so run it off the main goroutine to keep startup responsive.
	go func() {
		if err := sched.Start(cfg.IntradayInterval, cfg.HistoricalInterval, cfg.FxInterval); err != nil {
			log.Error().Err(err).Msg("Failed to start scheduler")
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")

	sched.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}

	log.Info().Msg("Shutdown complete")
}
