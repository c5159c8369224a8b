// Package settings предоставляет кэшируемый доступ к настраиваемым параметрам платформы.
//
// Хранилище — явный внедряемый объект: движки получают его в конструкторе,
// а тесты подменяют фальшивым провайдером вместо мутации глобального состояния.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/grapadi/points-system/internal/model"
	"github.com/grapadi/points-system/internal/repository"
)

// Ключи настроек, используемые движками поинтов.
const (
	KeyPointsPerPublish    = "points_per_publish"
	KeyViewsPerPoint       = "views_per_point"
	KeyMaxPointsPerArticle = "max_points_per_article"
	KeyMaxPendingRequests  = "max_pending_requests"
	KeyCooldownHours       = "redemption_cooldown_hours"
)

const cacheTTL = time.Hour

// Repository описывает контракт доступа к таблице настроек.
type Repository interface {
	GetSetting(ctx context.Context, key string) (string, error)
	UpsertSetting(ctx context.Context, key, value, group string) error
	GetSettingsByGroup(ctx context.Context, group string) ([]model.Setting, error)
}

// Cache описывает кэш значений настроек. Промах кэша — не ошибка.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, ttl time.Duration)
	Delete(ctx context.Context, key string)
}

// Store предоставляет чтение настроек с кэшированием и запись со сбросом кэша.
type Store struct {
	repo  Repository
	cache Cache
}

// NewStore создаёт хранилище настроек поверх репозитория и кэша.
func NewStore(repo Repository, cache Cache) *Store {
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &Store{repo: repo, cache: cache}
}

// Get возвращает значение настройки или def, если настройка отсутствует.
// Результат кэшируется до первой записи или истечения TTL.
func (s *Store) Get(ctx context.Context, key, def string) (string, error) {
	if v, ok := s.cache.Get(ctx, key); ok {
		return v, nil
	}

	v, err := s.repo.GetSetting(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrSettingNotFound) {
			s.cache.Set(ctx, key, def, cacheTTL)
			return def, nil
		}
		return "", fmt.Errorf("get setting %q: %w", key, err)
	}

	s.cache.Set(ctx, key, v, cacheTTL)
	return v, nil
}

// GetInt возвращает целочисленное значение настройки или def.
// Значение из хранилища считается недоверенным: повреждённое число — ошибка.
func (s *Store) GetInt(ctx context.Context, key string, def int64) (int64, error) {
	raw, err := s.Get(ctx, key, strconv.FormatInt(def, 10))
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("setting %q is not an integer: %w", key, err)
	}
	return v, nil
}

// GetDuration возвращает значение настройки, хранимое в часах, как длительность.
func (s *Store) GetDuration(ctx context.Context, key string, defHours int64) (time.Duration, error) {
	hours, err := s.GetInt(ctx, key, defHours)
	if err != nil {
		return 0, err
	}
	return time.Duration(hours) * time.Hour, nil
}

// Set записывает значение настройки и сбрасывает её кэш, чтобы последующие
// чтения видели новое значение сразу.
func (s *Store) Set(ctx context.Context, key, value, group string) error {
	if err := s.repo.UpsertSetting(ctx, key, value, group); err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	s.cache.Delete(ctx, key)
	return nil
}

// Group возвращает все настройки указанной группы без кэширования.
func (s *Store) Group(ctx context.Context, group string) ([]model.Setting, error) {
	return s.repo.GetSettingsByGroup(ctx, group)
}
