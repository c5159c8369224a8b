// Package main выполняет один проход начисления поинтов за просмотры.
// Запускается по расписанию (cron) отдельно от HTTP-сервера.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/grapadi/points-system/internal/config"
	"github.com/grapadi/points-system/internal/repository"
	"github.com/grapadi/points-system/internal/service"
	"github.com/grapadi/points-system/internal/settings"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}
	defer repo.Close()

	settingsStore := settings.NewStore(repo, nil)

	svc := service.NewService(repo, settingsStore, logger)
	defer svc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, err := svc.CalculateViewPoints(ctx)
	if err != nil {
		sugar.Errorw("view points calculation failed", "error", err.Error())
		os.Exit(1)
	}

	sugar.Infow("view points calculation finished",
		"posts_processed", summary.PostsProcessed,
		"points_awarded", summary.PointsAwarded,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
	)

	if summary.Failed > 0 {
		os.Exit(1)
	}
}
