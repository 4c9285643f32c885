package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"smartmoney-tracker/config"
	"smartmoney-tracker/internal/api"
	"smartmoney-tracker/internal/cache"
	"smartmoney-tracker/internal/database"
	"smartmoney-tracker/internal/discovery"
	"smartmoney-tracker/internal/polymarket"
	"smartmoney-tracker/internal/positions"
	"smartmoney-tracker/internal/refresh"
	"smartmoney-tracker/internal/scheduler"
	"smartmoney-tracker/internal/tradesync"
	"smartmoney-tracker/internal/walletpnl"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	setupLogging(cfg.LoggingConfig)
	log.Info().Msg("[MAIN] Starting smart money tracker")

	db, err := database.NewDB(database.Config{
		Host:     cfg.DatabaseConfig.Host,
		Port:     cfg.DatabaseConfig.Port,
		User:     cfg.DatabaseConfig.User,
		Password: cfg.DatabaseConfig.Password,
		Database: cfg.DatabaseConfig.Database,
		SSLMode:  cfg.DatabaseConfig.SSLMode,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("[MAIN] Failed to connect to database")
	}
	defer db.Close()

	if err := db.RunMigrations(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("[MAIN] Failed to run migrations")
	}

	repo := database.NewRepository(db)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	limiter := polymarket.NewLimiter(cfg.PolymarketConfig)
	metrics := polymarket.NewMetrics(registry)
	client := polymarket.NewClient(cfg.PolymarketConfig, limiter, metrics, log.Logger)

	rejectTTL := time.Duration(cfg.DiscoveryConfig.RejectCacheTTLHours) * time.Hour
	rejects := cache.NewRejectCache(cfg.RedisConfig, rejectTTL, log.Logger)
	defer rejects.Close()

	scanner := discovery.NewScanner(repo, client, rejects, cfg.DiscoveryConfig, log.Logger)
	refresher := refresh.New(repo, client, cfg.SchedulerConfig.ParallelEventUpdateWorkers, log.Logger)
	reconciler := positions.NewReconciler(repo, client, cfg.SchedulerConfig.ParallelPositionUpdateWorkers, log.Logger)
	enricher := positions.NewEnricher(repo, client, log.Logger)
	syncer := tradesync.New(repo, client, cfg.SchedulerConfig.ParallelTradeWorkers, log.Logger)
	pnl := walletpnl.New(repo, cfg.SchedulerConfig.ParallelPnlSchedulerWorkers, cfg.DiscoveryConfig.HighVolumeThreshold, log.Logger)

	sched := cfg.SchedulerConfig
	runners := []*scheduler.Runner{
		scheduler.NewRunner("EVENTS", time.Duration(sched.EventRefreshIntervalHours)*time.Hour, refresher.RunOnce, log.Logger).RunOnStart(),
		scheduler.NewRunner("POSITIONS", time.Duration(sched.PositionRefreshIntervalMinutes)*time.Minute, reconciler.RunOnce, log.Logger),
		scheduler.NewRunner("TRADESYNC", time.Duration(sched.TradeSyncIntervalMinutes)*time.Minute, syncer.RunOnce, log.Logger),
		scheduler.NewRunner("ENRICHMENT", time.Duration(sched.ClosedEnrichIntervalMinutes)*time.Minute, enricher.RunOnce, log.Logger),
		scheduler.NewRunner("WALLETPNL", time.Duration(sched.WalletPnlIntervalHours)*time.Hour, pnl.RunOnce, log.Logger),
	}
	for _, r := range runners {
		if err := r.Start(); err != nil {
			log.Fatal().Err(err).Msg("[MAIN] Failed to start scheduler")
		}
	}

	server := api.NewServer(
		api.ServerConfig{
			Host:           cfg.ServerConfig.Host,
			Port:           cfg.ServerConfig.Port,
			ProductionMode: cfg.LoggingConfig.Level != "debug",
		},
		repo,
		api.Triggers{
			EventsRefresh: runners[0],
			Positions:     runners[1],
			TradeSync:     runners[2],
			Enrichment:    runners[3],
			WalletPnl:     pnl,
			Scanner:       scanner,
		},
		registry,
		log.Logger,
	)
	if err := server.Start(); err != nil {
		log.Fatal().Err(err).Msg("[MAIN] Failed to start API server")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("[MAIN] Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("[MAIN] API server shutdown failed")
	}
	for _, r := range runners {
		if err := r.Stop(); err != nil {
			log.Error().Err(err).Msg("[MAIN] Scheduler stop failed")
		}
	}
	log.Info().Msg("[MAIN] Shutdown complete")
}

func setupLogging(cfg config.LoggingConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if cfg.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}
