package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/grapadi/points-system/internal/model"
)

// awardPointsTx добавляет запись журнала и атомарно увеличивает баланс пользователя
// в рамках переданной транзакции. Журнал и денормализованный баланс меняются
// только вместе.
func awardPointsTx(ctx context.Context, tx pgx.Tx, userID, amount int64, pointType model.PointType, reason string, postID *int64) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO point_logs (user_id, post_id, points, type, reason) VALUES ($1, $2, $3, $4, $5)`,
		userID, postID, amount, string(pointType), reason,
	)
	if err != nil {
		return fmt.Errorf("insert point log: %w", err)
	}

	cmdTag, err := tx.Exec(ctx,
		`UPDATE users SET points = points + $2 WHERE id = $1`,
		userID, amount,
	)
	if err != nil {
		return fmt.Errorf("increment points: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}

// deductPointsTx добавляет отрицательную запись журнала и атомарно уменьшает баланс.
// Условие points >= $2 в UPDATE защищает от ухода баланса в минус при гонке:
// вторая из двух конкурентных заявок на пограничном балансе не пройдёт.
func deductPointsTx(ctx context.Context, tx pgx.Tx, userID, amount int64, pointType model.PointType, reason string, postID *int64) error {
	cmdTag, err := tx.Exec(ctx,
		`UPDATE users SET points = points - $2 WHERE id = $1 AND points >= $2`,
		userID, amount,
	)
	if err != nil {
		return fmt.Errorf("decrement points: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrInsufficientBalance
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO point_logs (user_id, post_id, points, type, reason) VALUES ($1, $2, $3, $4, $5)`,
		userID, postID, -amount, string(pointType), reason,
	)
	if err != nil {
		return fmt.Errorf("insert point log: %w", err)
	}

	return nil
}

// AwardPoints изменяет баланс пользователя и записывает событие в журнал.
// Отрицательная сумма списывает поинты и не может увести баланс в минус.
func (r *PostgresRepository) AwardPoints(ctx context.Context, userID, amount int64, pointType model.PointType, reason string, postID *int64) error {
	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		if amount < 0 {
			err = deductPointsTx(ctx, tx, userID, -amount, pointType, reason, postID)
		} else {
			err = awardPointsTx(ctx, tx, userID, amount, pointType, reason, postID)
		}
		if err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

// GetBalance возвращает текущий баланс пользователя и сумму всех списаний на обмен.
func (r *PostgresRepository) GetBalance(ctx context.Context, userID int64) (*model.Balance, error) {
	var points int64
	err := r.pool.QueryRow(ctx,
		`SELECT points FROM users WHERE id = $1`,
		userID,
	).Scan(&points)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("select points: %w", err)
	}

	var redeemed int64
	err = r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(-points), 0)
		 FROM point_logs
		 WHERE user_id = $1 AND type = $2`,
		userID, string(model.PointTypeRedemption),
	).Scan(&redeemed)
	if err != nil {
		return nil, fmt.Errorf("sum redemptions: %w", err)
	}

	return &model.Balance{Points: points, Redeemed: redeemed}, nil
}

// GetPointLogsByUser возвращает историю движения поинтов пользователя,
// начиная с последних событий.
func (r *PostgresRepository) GetPointLogsByUser(ctx context.Context, userID int64) ([]model.PointLog, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, post_id, points, type, reason, created_at
		 FROM point_logs
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select point logs: %w", err)
	}
	defer rows.Close()

	var logs []model.PointLog
	for rows.Next() {
		var (
			l         model.PointLog
			pointType string
			createdAt time.Time
		)
		if err := rows.Scan(&l.ID, &l.UserID, &l.PostID, &l.Points, &pointType, &l.Reason, &createdAt); err != nil {
			return nil, fmt.Errorf("scan point log: %w", err)
		}
		l.Type = model.PointType(pointType)
		l.CreatedAt = createdAt
		logs = append(logs, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return logs, nil
}
