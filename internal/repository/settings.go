package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/grapadi/points-system/internal/model"
)

// GetSetting возвращает значение настройки по ключу.
func (r *PostgresRepository) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := r.pool.QueryRow(ctx,
		`SELECT value FROM settings WHERE key = $1`,
		key,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrSettingNotFound
		}
		return "", fmt.Errorf("get setting: %w", err)
	}
	return value, nil
}

// UpsertSetting записывает значение настройки, создавая её при отсутствии.
func (r *PostgresRepository) UpsertSetting(ctx context.Context, key, value, group string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO settings (key, value, "group") VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, "group" = EXCLUDED."group"`,
		key, value, group,
	)
	if err != nil {
		return fmt.Errorf("upsert setting: %w", err)
	}
	return nil
}

// GetSettingsByGroup возвращает все настройки указанной группы.
func (r *PostgresRepository) GetSettingsByGroup(ctx context.Context, group string) ([]model.Setting, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT key, value, description, "group" FROM settings WHERE "group" = $1 ORDER BY key`,
		group,
	)
	if err != nil {
		return nil, fmt.Errorf("select settings: %w", err)
	}
	defer rows.Close()

	var settings []model.Setting
	for rows.Next() {
		var s model.Setting
		if err := rows.Scan(&s.Key, &s.Value, &s.Description, &s.Group); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		settings = append(settings, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return settings, nil
}
