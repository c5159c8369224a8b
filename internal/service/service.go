// Package service реализует бизнес-логику платформы поинтов и обмена.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/grapadi/points-system/internal/model"
	"github.com/grapadi/points-system/internal/repository"
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error

	CreateUser(ctx context.Context, login string, passwordHash []byte) (int64, error)
	GetUserByLogin(ctx context.Context, login string) (*model.User, error)
	GetUserByID(ctx context.Context, userID int64) (*model.User, error)

	GetBalance(ctx context.Context, userID int64) (*model.Balance, error)
	GetPointLogsByUser(ctx context.Context, userID int64) ([]model.PointLog, error)
	AwardPoints(ctx context.Context, userID, amount int64, pointType model.PointType, reason string, postID *int64) error

	CreatePost(ctx context.Context, userID int64, title, body string) (int64, error)
	GetPostByID(ctx context.Context, postID int64) (*model.Post, error)
	GetPostsByUser(ctx context.Context, userID int64) ([]model.Post, error)
	RegisterView(ctx context.Context, postID int64) error
	SetPostStatus(ctx context.Context, postID int64, status model.PostStatus, publishBonus int64) (bool, error)
	GetPostsForViewAccrual(ctx context.Context, afterID int64, limit int, maxPoints int64) ([]repository.PostForAccrual, error)
	AwardViewPoints(ctx context.Context, post repository.PostForAccrual, delta, newTotal int64, reason string) (bool, error)

	GetActiveRedemptionItems(ctx context.Context) ([]model.RedemptionItem, error)
	GetAllRedemptionItems(ctx context.Context) ([]model.RedemptionItem, error)
	GetRedemptionItemByID(ctx context.Context, itemID int64) (*model.RedemptionItem, error)
	CreateRedemptionItem(ctx context.Context, item model.RedemptionItem) (int64, error)
	UpdateRedemptionItem(ctx context.Context, item model.RedemptionItem) error
	CountUnresolvedRequests(ctx context.Context, userID int64) (int, error)
	GetLastRequestTime(ctx context.Context, userID int64) (*time.Time, error)
	CreateRedemptionRequest(ctx context.Context, userID int64, item *model.RedemptionItem, payment model.PaymentDetails, maxPending int) (int64, error)
	UpdateRedemptionStatus(ctx context.Context, requestID int64, newStatus model.RedemptionStatus, adminID int64, adminNote string) error
	GetRequestsByUser(ctx context.Context, userID int64) ([]model.RedemptionRequest, error)
	GetRequests(ctx context.Context, status *model.RedemptionStatus) ([]model.RedemptionRequest, error)
	GetRequestByID(ctx context.Context, requestID int64) (*model.RedemptionRequest, error)
}

// Settings описывает контракт чтения и записи настраиваемых параметров.
type Settings interface {
	Get(ctx context.Context, key, def string) (string, error)
	GetInt(ctx context.Context, key string, def int64) (int64, error)
	GetDuration(ctx context.Context, key string, defHours int64) (time.Duration, error)
	Set(ctx context.Context, key, value, group string) error
	Group(ctx context.Context, group string) ([]model.Setting, error)
}

// ErrInvalidConfiguration возвращается, когда значение настройки делает
// начисление бессмысленным (например, неположительный делитель просмотров).
var (
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrItemUnavailable возвращается при попытке обмена на неактивную позицию каталога.
	ErrItemUnavailable = errors.New("redemption item unavailable")
	// ErrInvalidStatus возвращается при неизвестном значении статуса во входных данных.
	ErrInvalidStatus = errors.New("invalid status value")
)

// InsufficientPointsError возвращается при попытке обмена с недостаточным балансом.
type InsufficientPointsError struct {
	Required  int64
	Available int64
}

func (e *InsufficientPointsError) Error() string {
	return fmt.Sprintf("insufficient points: need %d, have %d", e.Required, e.Available)
}

// PendingLimitError возвращается при превышении лимита незавершённых заявок.
type PendingLimitError struct {
	Limit int
}

func (e *PendingLimitError) Error() string {
	return fmt.Sprintf("pending requests limit of %d reached", e.Limit)
}

// CooldownError возвращается при подаче заявки до истечения паузы между заявками.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("cooldown active: %s remaining", e.Remaining.Round(time.Minute))
}

// Service содержит бизнес-логику платформы поинтов.
type Service struct {
	repo     Repository
	settings Settings
	logger   *zap.Logger
}

// NewService создаёт новый сервис с указанным репозиторием и хранилищем настроек.
func NewService(repo Repository, settings Settings, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:     repo,
		settings: settings,
		logger:   logger,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// RegisterUser регистрирует нового пользователя.
func (s *Service) RegisterUser(ctx context.Context, login, password string) (int64, error) {
	hashed := hashPassword(login, password)
	id, err := s.repo.CreateUser(ctx, login, hashed)
	if err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			return 0, repository.ErrUserExists
		}
		return 0, err
	}
	return id, nil
}

// AuthenticateUser проверяет логин и пароль пользователя и возвращает его идентификатор.
func (s *Service) AuthenticateUser(ctx context.Context, login, password string) (int64, error) {
	u, err := s.repo.GetUserByLogin(ctx, login)
	if err != nil {
		return 0, err
	}

	hashed := hashPassword(login, password)
	if hex.EncodeToString(hashed) != hex.EncodeToString(u.PasswordHash) {
		return 0, errors.New("invalid credentials")
	}

	return u.ID, nil
}

func hashPassword(login, password string) []byte {
	sum := sha256.Sum256([]byte(login + ":" + password))
	return sum[:]
}

// IsAdmin сообщает, имеет ли пользователь административные права.
func (s *Service) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return u.IsAdmin, nil
}

// GetBalance возвращает баланс пользователя и сумму всех списаний на обмен.
func (s *Service) GetBalance(ctx context.Context, userID int64) (*model.Balance, error) {
	return s.repo.GetBalance(ctx, userID)
}

// GetPointHistory возвращает историю движения поинтов пользователя.
func (s *Service) GetPointHistory(ctx context.Context, userID int64) ([]model.PointLog, error) {
	return s.repo.GetPointLogsByUser(ctx, userID)
}

// AdjustPoints выполняет ручную корректировку баланса администратором.
// Корректировка попадает в журнал, списание не может увести баланс в минус.
func (s *Service) AdjustPoints(ctx context.Context, userID, amount int64, reason string) error {
	if amount == 0 {
		return errors.New("adjustment amount must not be zero")
	}
	if reason == "" {
		return errors.New("adjustment reason is required")
	}
	return s.repo.AwardPoints(ctx, userID, amount, model.PointTypeAdjustment, reason, nil)
}

// GetSettingsGroup возвращает настройки указанной группы.
func (s *Service) GetSettingsGroup(ctx context.Context, group string) ([]model.Setting, error) {
	return s.settings.Group(ctx, group)
}

// UpdateSetting записывает значение настройки со сбросом кэша.
func (s *Service) UpdateSetting(ctx context.Context, key, value, group string) error {
	return s.settings.Set(ctx, key, value, group)
}
