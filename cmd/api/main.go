package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	stripe "github.com/stripe/stripe-go/v79"

	"server/internal/adapter/repo"
	"server/internal/http/handlers"
	"server/internal/http/httpapi"
	"server/internal/infra"
	"server/internal/infra/geoip"
	"server/internal/infra/google"
	"server/internal/middleware"
	"server/internal/storage"
	"server/internal/tasks"
)

func main() {
	// .env is optional.
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)
	stripe.Key = cfg.StripeSecretKey

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	queueClient := infra.NewQueueClient(cfg)
	defer queueClient.Close()

	store, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open storage")
	}

	var lookup middleware.CountryLookup
	if cfg.GeoIPDBPath != "" {
		resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
		if err != nil {
			logger.Warn().Err(err).Msg("geoip database unavailable")
		} else {
			lookup = resolver.CountryCode
		}
	}

	runs := repo.NewTaskRunRepository(dbpool)
	app := &handlers.App{
		Cfg:         cfg,
		Logger:      logger,
		Verifier:    google.NewVerifier(cfg.GoogleIssuer, cfg.GoogleClientID),
		Store:       store,
		Tasks:       tasks.NewEnqueuer(queueClient, runs),
		Users:       repo.NewUserRepository(dbpool),
		Runs:        runs,
		Analyses:    repo.NewAnalysisRepository(dbpool),
		Certs:       repo.NewCertificationRepository(dbpool),
		Forum:       repo.NewForumRepository(dbpool),
		Counseling:  repo.NewCounselingRepository(dbpool),
		Scores:      repo.NewScoreRepository(dbpool),
		Payments:    repo.NewPaymentRepository(dbpool),
		Leaderboard: repo.NewLeaderboardRepository(dbpool),
		Analytics:   repo.NewAnalyticsRepository(dbpool),
	}

	router := httpapi.NewRouter(app, lookup)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
