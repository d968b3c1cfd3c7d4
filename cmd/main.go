package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/courtside/tournament-engine/brackets"
	"github.com/courtside/tournament-engine/config"
	"github.com/courtside/tournament-engine/db"
	"github.com/courtside/tournament-engine/handlers"
	"github.com/courtside/tournament-engine/repositories"
	api "github.com/courtside/tournament-engine/routes"
	"github.com/courtside/tournament-engine/services"
	"github.com/courtside/tournament-engine/storage"
	"github.com/go-chi/chi/v5"
)

func main() {
	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Подключение к базе данных
	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	if err := db.Migrate(ctx, dbConn); err != nil {
		logger.Error("failed to apply schema", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("database connection established")

	// Архив результатов в Cloudflare R2, если настроен
	var archiver services.ResultArchiver
	if cfg.R2.Enabled() {
		uploader, err := storage.NewCloudflareR2Uploader(ctx, cfg.R2)
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		archiver = storage.NewResultsArchive(uploader)
		logger.Info("results archive enabled", slog.String("bucket", cfg.R2.BucketName))
	} else {
		logger.Warn("R2 is not configured, results archive disabled")
	}

	// Инициализация WebSocket Hub
	wsHub := brackets.NewHub()
	go wsHub.Run(ctx)
	logger.Info("WebSocket Hub started")

	// Инициализация репозиториев
	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
	bracketRepo := repositories.NewPostgresBracketRepository(dbConn)
	groupStageRepo := repositories.NewPostgresGroupStageRepository(dbConn)
	rankingRepo := repositories.NewPostgresRankingRepository(dbConn)
	userRepo := repositories.NewPostgresUserRepository(dbConn)
	transactor := repositories.NewPostgresTransactor(dbConn)
	logger.Info("Repositories initialized")

	// Инициализация сервисов
	rankingService := services.NewRankingService(rankingRepo, cfg.DefaultElo, logger)
	bracketService := services.NewBracketService(
		tournamentRepo,
		bracketRepo,
		transactor,
		rankingService,
		brackets.NewSingleEliminationGenerator(),
		wsHub,
		archiver,
		logger,
	)
	groupStageService := services.NewGroupStageService(
		tournamentRepo,
		groupStageRepo,
		bracketRepo,
		transactor,
		rankingService,
		wsHub,
		logger,
	)
	knockoutService := services.NewKnockoutService(tournamentRepo, groupStageRepo, transactor, bracketService, logger)
	tournamentService := services.NewTournamentService(tournamentRepo, bracketRepo, groupStageRepo, userRepo, logger)
	logger.Info("Services initialized")

	// Планировщик закрытия регистрации
	scheduler, err := services.NewStatusScheduler(tournamentService, cfg.StatusSchedulerInterval, logger)
	if err != nil {
		logger.Error("failed to create status scheduler", slog.Any("error", err))
		os.Exit(1)
	}
	if err := scheduler.Start(ctx); err != nil {
		logger.Error("failed to start status scheduler", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := scheduler.Shutdown(); err != nil {
			logger.Error("failed to stop status scheduler", slog.Any("error", err))
		}
	}()

	// Настройка маршрутизатора
	router := chi.NewRouter()
	api.SetupRoutes(router, api.Handlers{
		Tournaments: handlers.NewTournamentHandler(tournamentService),
		Brackets:    handlers.NewBracketHandler(bracketService, knockoutService),
		GroupStages: handlers.NewGroupStageHandler(groupStageService),
		WebSocket:   handlers.NewWebSocketHandler(wsHub, cfg.CORSAllowedOrigins),
	}, api.Options{
		JWTSecretKey:   cfg.JWTSecretKey,
		AllowedOrigins: cfg.CORSAllowedOrigins,
	})
	logger.Info("Routes configured")

	// Настройка и запуск HTTP-сервера
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			stop()
			return
		}
		logger.Info("server stopped gracefully")
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		logger.Info("shutting down server", slog.Duration("timeout", 15*time.Second))
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
		} else {
			logger.Info("server shutdown complete")
		}
	}
	logger.Info("application exited")
}
