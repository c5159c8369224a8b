package service

import (
	"context"
	"time"

	"github.com/grapadi/points-system/internal/model"
	"github.com/grapadi/points-system/internal/settings"
)

// GetRedemptionCatalog возвращает активные позиции каталога обмена.
func (s *Service) GetRedemptionCatalog(ctx context.Context) ([]model.RedemptionItem, error) {
	return s.repo.GetActiveRedemptionItems(ctx)
}

// SubmitRedemption создаёт заявку на обмен поинтов на выплату. Баланс, лимит
// незавершённых заявок и пауза между заявками проверяются на сервере заново,
// независимо от данных клиента. Списание поинтов и создание заявки атомарны.
func (s *Service) SubmitRedemption(ctx context.Context, userID, itemID int64, payment model.PaymentDetails) (int64, error) {
	item, err := s.repo.GetRedemptionItemByID(ctx, itemID)
	if err != nil {
		return 0, err
	}
	if !item.IsActive {
		return 0, ErrItemUnavailable
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return 0, err
	}
	if user.Points < item.PointCost {
		return 0, &InsufficientPointsError{Required: item.PointCost, Available: user.Points}
	}

	maxPending, err := s.settings.GetInt(ctx, settings.KeyMaxPendingRequests, 1)
	if err != nil {
		return 0, err
	}
	if maxPending < 1 {
		maxPending = 1
	}

	unresolved, err := s.repo.CountUnresolvedRequests(ctx, userID)
	if err != nil {
		return 0, err
	}
	if int64(unresolved) >= maxPending {
		return 0, &PendingLimitError{Limit: int(maxPending)}
	}

	cooldown, err := s.settings.GetDuration(ctx, settings.KeyCooldownHours, 24)
	if err != nil {
		return 0, err
	}
	if cooldown > 0 {
		last, err := s.repo.GetLastRequestTime(ctx, userID)
		if err != nil {
			return 0, err
		}
		if last != nil {
			elapsed := time.Since(*last)
			if elapsed < cooldown {
				return 0, &CooldownError{Remaining: cooldown - elapsed}
			}
		}
	}

	// Снимки point_cost и rupiah_value берутся из позиции каталога внутри
	// репозитория: изменение каталога после подачи заявки её не затрагивает.
	return s.repo.CreateRedemptionRequest(ctx, userID, item, payment, int(maxPending))
}

// GetRedemptionHistory возвращает историю заявок пользователя.
func (s *Service) GetRedemptionHistory(ctx context.Context, userID int64) ([]model.RedemptionRequest, error) {
	return s.repo.GetRequestsByUser(ctx, userID)
}

// GetRedemptionRequests возвращает заявки всех пользователей для
// административного интерфейса, опционально фильтруя по статусу.
func (s *Service) GetRedemptionRequests(ctx context.Context, status *model.RedemptionStatus) ([]model.RedemptionRequest, error) {
	if status != nil && !status.Valid() {
		return nil, ErrInvalidStatus
	}
	return s.repo.GetRequests(ctx, status)
}

// GetRedemptionRequest возвращает заявку по идентификатору.
func (s *Service) GetRedemptionRequest(ctx context.Context, requestID int64) (*model.RedemptionRequest, error) {
	return s.repo.GetRequestByID(ctx, requestID)
}

// UpdateRedemptionStatus переводит заявку в новый статус от имени администратора.
// Конечные заявки неизменяемы; отклонение возвращает поинты на баланс.
func (s *Service) UpdateRedemptionStatus(ctx context.Context, requestID int64, status model.RedemptionStatus, adminID int64, adminNote string) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	return s.repo.UpdateRedemptionStatus(ctx, requestID, status, adminID, adminNote)
}

// GetRedemptionItems возвращает весь каталог обмена для администратора.
func (s *Service) GetRedemptionItems(ctx context.Context) ([]model.RedemptionItem, error) {
	return s.repo.GetAllRedemptionItems(ctx)
}

// CreateRedemptionItem добавляет позицию в каталог обмена.
func (s *Service) CreateRedemptionItem(ctx context.Context, item model.RedemptionItem) (int64, error) {
	return s.repo.CreateRedemptionItem(ctx, item)
}

// UpdateRedemptionItem обновляет позицию каталога обмена.
func (s *Service) UpdateRedemptionItem(ctx context.Context, item model.RedemptionItem) error {
	return s.repo.UpdateRedemptionItem(ctx, item)
}
