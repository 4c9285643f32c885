// Package api exposes the HTTP control surface: health, Prometheus
// metrics and manual triggers for every scheduler.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"smartmoney-tracker/internal/database"
	"smartmoney-tracker/internal/discovery"
	"smartmoney-tracker/internal/scheduler"
	"smartmoney-tracker/internal/walletpnl"
)

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host           string
	Port           int
	ProductionMode bool
}

// Triggers bundles everything the manual endpoints can kick off. The
// interval-driven jobs go through their runners so a manual trigger
// never overlaps a scheduled tick; the parameterized ones are invoked
// directly.
type Triggers struct {
	EventsRefresh *scheduler.Runner
	Positions     *scheduler.Runner
	Enrichment    *scheduler.Runner
	TradeSync     *scheduler.Runner
	WalletPnl     *walletpnl.Scheduler
	Scanner       *discovery.Scanner
}

type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	repo       *database.Repository
	triggers   Triggers
	registry   *prometheus.Registry
	config     ServerConfig
	log        zerolog.Logger
}

func NewServer(config ServerConfig, repo *database.Repository, triggers Triggers, registry *prometheus.Registry, log zerolog.Logger) *Server {
	if config.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type"}
	router.Use(cors.New(corsConfig))

	s := &Server{
		router:   router,
		repo:     repo,
		triggers: triggers,
		registry: registry,
		config:   config,
		log:      log.With().Str("component", "api").Logger(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	api := s.router.Group("/api")
	{
		api.GET("/health", s.handleHealth)

		triggers := api.Group("/triggers")
		{
			triggers.POST("/events-refresh", s.runnerHandler(s.triggers.EventsRefresh))
			triggers.POST("/positions-update", s.runnerHandler(s.triggers.Positions))
			triggers.POST("/closed-enrichment", s.runnerHandler(s.triggers.Enrichment))
			triggers.POST("/trade-sync", s.handleTradeSyncTrigger)
			triggers.POST("/wallet-pnl", s.handleWalletPnlTrigger)
			triggers.POST("/leaderboard-scan", s.handleLeaderboardScan)
		}
	}
}

// Start runs the HTTP server in the background.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		s.log.Info().Str("addr", addr).Msg("[API] Server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error().Err(err).Msg("[API] Server stopped unexpectedly")
		}
	}()
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
