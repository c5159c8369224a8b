package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/grapadi/points-system/internal/model"
	"github.com/grapadi/points-system/internal/settings"
)

const accrualBatchSize = 100

// AccrualSummary содержит итоги одного прохода начисления поинтов за просмотры.
type AccrualSummary struct {
	PostsProcessed int64
	PointsAwarded  int64
	Skipped        int64
	Failed         int64
}

// eligiblePoints вычисляет общее число поинтов, заработанных статьёй за
// просмотры: floor(views / viewsPerPoint), не более maxPoints.
func eligiblePoints(viewCount, viewsPerPoint, maxPoints int64) int64 {
	earned := viewCount / viewsPerPoint
	if earned > maxPoints {
		earned = maxPoints
	}
	return earned
}

// CalculateViewPoints выполняет один проход начисления поинтов за просмотры по
// всем опубликованным статьям, не достигшим предела. Проход идемпотентен:
// повторный запуск без роста просмотров не начисляет ничего. Ошибки отдельных
// статей логируются и пропускаются, проход продолжается.
func (s *Service) CalculateViewPoints(ctx context.Context) (*AccrualSummary, error) {
	viewsPerPoint, err := s.settings.GetInt(ctx, settings.KeyViewsPerPoint, 100)
	if err != nil {
		return nil, err
	}
	maxPoints, err := s.settings.GetInt(ctx, settings.KeyMaxPointsPerArticle, 10)
	if err != nil {
		return nil, err
	}

	if viewsPerPoint <= 0 {
		return nil, fmt.Errorf("%w: %s must be positive, got %d",
			ErrInvalidConfiguration, settings.KeyViewsPerPoint, viewsPerPoint)
	}
	if maxPoints <= 0 {
		return nil, fmt.Errorf("%w: %s must be positive, got %d",
			ErrInvalidConfiguration, settings.KeyMaxPointsPerArticle, maxPoints)
	}

	sum := &AccrualSummary{}
	afterID := int64(0)

	for {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		posts, err := s.repo.GetPostsForViewAccrual(ctx, afterID, accrualBatchSize, maxPoints)
		if err != nil {
			return sum, fmt.Errorf("fetch accrual batch: %w", err)
		}
		if len(posts) == 0 {
			break
		}

		for _, p := range posts {
			afterID = p.ID

			earned := eligiblePoints(p.ViewCount, viewsPerPoint, maxPoints)
			delta := earned - p.PointsFromViews
			if delta <= 0 {
				// Обычное установившееся состояние: просмотры не выросли до
				// следующего поинта. Не ошибка.
				sum.Skipped++
				continue
			}

			reason := fmt.Sprintf("Points for %d views on: %s", p.ViewCount, p.Title)
			awarded, err := s.repo.AwardViewPoints(ctx, p, delta, earned, reason)
			if err != nil {
				s.logger.Error("award view points",
					zap.Int64("postID", p.ID),
					zap.Error(err),
				)
				sum.Failed++
				continue
			}
			if !awarded {
				// Водяной знак сдвинул конкурентный проход; его итоги учтёт он сам.
				sum.Skipped++
				continue
			}

			sum.PostsProcessed++
			sum.PointsAwarded += delta
		}

		if len(posts) < accrualBatchSize {
			break
		}
	}

	return sum, nil
}

// CreatePost сохраняет новую статью пользователя в статусе черновика.
func (s *Service) CreatePost(ctx context.Context, userID int64, title, body string) (int64, error) {
	return s.repo.CreatePost(ctx, userID, title, body)
}

// GetPostsByUser возвращает статьи пользователя.
func (s *Service) GetPostsByUser(ctx context.Context, userID int64) ([]model.Post, error) {
	return s.repo.GetPostsByUser(ctx, userID)
}

// RegisterView учитывает один просмотр опубликованной статьи.
func (s *Service) RegisterView(ctx context.Context, postID int64) error {
	return s.repo.RegisterView(ctx, postID)
}

// SetPostStatus переводит статью в новый статус. При первом переходе в
// published автору начисляется бонус points_per_publish; повторные переходы
// published -> rejected -> published бонус не начисляют. Возвращает признак
// начисления бонуса.
func (s *Service) SetPostStatus(ctx context.Context, postID int64, status model.PostStatus) (bool, error) {
	if !status.Valid() {
		return false, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	var bonus int64
	if status == model.PostStatusPublished {
		var err error
		bonus, err = s.settings.GetInt(ctx, settings.KeyPointsPerPublish, 10)
		if err != nil {
			return false, err
		}
		if bonus < 0 {
			return false, fmt.Errorf("%w: %s must not be negative, got %d",
				ErrInvalidConfiguration, settings.KeyPointsPerPublish, bonus)
		}
	}

	return s.repo.SetPostStatus(ctx, postID, status, bonus)
}
