package main

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"server/internal/adapter/repo"
	"server/internal/domain"
	"server/internal/infra"
	"server/internal/llm"
	"server/internal/storage"
	"server/internal/tasks"
)

// forumSweepSchedule controls how often due persona schedules are claimed.
const forumSweepSchedule = "@every 1m"

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

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

	client := llm.NewClient(llm.Options{
		APIKey:  cfg.AnthropicAPIKey,
		BaseURL: cfg.AnthropicBaseURL,
		Model:   cfg.AnthropicModel,
		Logger:  &logger,
	})
	if cfg.AnthropicAPIKey == "" {
		// Fall back to the key stored via the llmkey tool.
		creds := repo.NewCredentialRepository(dbpool)
		token, err := creds.Token(ctx, repo.ProviderAnthropic)
		if err != nil || token == "" {
			logger.Warn().Err(err).Msg("no anthropic api key configured; llm tasks will fail")
		} else {
			client.SetAPIKey(token)
		}
	}

	runs := repo.NewTaskRunRepository(dbpool)
	handler := tasks.NewHandler(tasks.HandlerOptions{
		Config:     cfg,
		Logger:     logger,
		LLM:        client,
		Store:      store,
		Enqueuer:   tasks.NewEnqueuer(queueClient, runs),
		Users:      repo.NewUserRepository(dbpool),
		Runs:       runs,
		Analyses:   repo.NewAnalysisRepository(dbpool),
		Certs:      repo.NewCertificationRepository(dbpool),
		Forum:      repo.NewForumRepository(dbpool),
		Counseling: repo.NewCounselingRepository(dbpool),
		Analytics:  repo.NewAnalyticsRepository(dbpool),
	})

	mux := asynq.NewServeMux()
	handler.Register(mux)

	scheduler := infra.NewQueueScheduler(cfg)
	if _, err := scheduler.Register(forumSweepSchedule, asynq.NewTask(string(domain.TaskKindForumSweep), nil)); err != nil {
		logger.Fatal().Err(err).Msg("failed to register forum sweep")
	}
	go func() {
		if err := scheduler.Run(); err != nil {
			logger.Fatal().Err(err).Msg("scheduler failed")
		}
	}()

	server := infra.NewQueueServer(cfg, logger)
	logger.Info().Int("concurrency", cfg.WorkerConcurrency).Msg("worker starting")
	if err := server.Run(mux); err != nil {
		logger.Fatal().Err(err).Msg("worker failed")
	}
}
