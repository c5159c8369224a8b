package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/grapadi/points-system/internal/model"
)

// CreatePost сохраняет новую статью в статусе черновика.
func (r *PostgresRepository) CreatePost(ctx context.Context, userID int64, title, body string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO posts (user_id, title, body, status) VALUES ($1, $2, $3, $4) RETURNING id`,
		userID, title, body, string(model.PostStatusDraft),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert post: %w", err)
	}
	return id, nil
}

// GetPostByID возвращает статью по идентификатору.
func (r *PostgresRepository) GetPostByID(ctx context.Context, postID int64) (*model.Post, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, user_id, title, body, status, view_count,
		        points_awarded_from_views, points_awarded_on_publish, published_at, created_at
		 FROM posts WHERE id = $1`,
		postID,
	)

	var p model.Post
	var status string
	err := row.Scan(&p.ID, &p.UserID, &p.Title, &p.Body, &status, &p.ViewCount,
		&p.PointsFromViews, &p.PointsAwardedOnPublish, &p.PublishedAt, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("get post: %w", err)
	}
	p.Status = model.PostStatus(status)

	return &p, nil
}

// GetPostsByUser возвращает статьи пользователя, начиная с последних.
func (r *PostgresRepository) GetPostsByUser(ctx context.Context, userID int64) ([]model.Post, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, title, body, status, view_count,
		        points_awarded_from_views, points_awarded_on_publish, published_at, created_at
		 FROM posts
		 WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select posts: %w", err)
	}
	defer rows.Close()

	var posts []model.Post
	for rows.Next() {
		var p model.Post
		var status string
		if err := rows.Scan(&p.ID, &p.UserID, &p.Title, &p.Body, &status, &p.ViewCount,
			&p.PointsFromViews, &p.PointsAwardedOnPublish, &p.PublishedAt, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		p.Status = model.PostStatus(status)
		posts = append(posts, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return posts, nil
}

// RegisterView увеличивает счётчик просмотров опубликованной статьи.
func (r *PostgresRepository) RegisterView(ctx context.Context, postID int64) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE posts SET view_count = view_count + 1 WHERE id = $1 AND status = $2`,
		postID, string(model.PostStatusPublished),
	)
	if err != nil {
		return fmt.Errorf("increment view count: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrPostNotFound
	}
	return nil
}

// SetPostStatus переводит статью в новый статус. При переходе в published
// единоразово начисляет автору бонус publishBonus: защитой служит хранимое поле
// points_awarded_on_publish, поэтому повторная публикация после отклонения
// бонус не начисляет. Возвращает признак того, что бонус был начислен.
func (r *PostgresRepository) SetPostStatus(ctx context.Context, postID int64, status model.PostStatus, publishBonus int64) (bool, error) {
	var awarded bool

	err := r.withRetry(ctx, func() error {
		awarded = false

		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		var userID int64
		var title string
		err = tx.QueryRow(ctx,
			`SELECT user_id, title FROM posts WHERE id = $1 FOR UPDATE`,
			postID,
		).Scan(&userID, &title)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrPostNotFound
			}
			return fmt.Errorf("lock post: %w", err)
		}

		if status == model.PostStatusPublished {
			_, err = tx.Exec(ctx,
				`UPDATE posts SET status = $2, published_at = COALESCE(published_at, now()) WHERE id = $1`,
				postID, string(status),
			)
		} else {
			_, err = tx.Exec(ctx,
				`UPDATE posts SET status = $2 WHERE id = $1`,
				postID, string(status),
			)
		}
		if err != nil {
			return fmt.Errorf("update post status: %w", err)
		}

		if status == model.PostStatusPublished && publishBonus > 0 {
			cmdTag, err := tx.Exec(ctx,
				`UPDATE posts SET points_awarded_on_publish = $2 WHERE id = $1 AND points_awarded_on_publish = 0`,
				postID, publishBonus,
			)
			if err != nil {
				return fmt.Errorf("mark publish bonus: %w", err)
			}

			if cmdTag.RowsAffected() == 1 {
				reason := fmt.Sprintf("Published article: %s", title)
				if err := awardPointsTx(ctx, tx, userID, publishBonus, model.PointTypePublish, reason, &postID); err != nil {
					return err
				}
				awarded = true
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})

	return awarded, err
}

// PostForAccrual описывает статью, ожидающую пересчёта поинтов за просмотры.
type PostForAccrual struct {
	ID              int64
	UserID          int64
	Title           string
	ViewCount       int64
	PointsFromViews int64
}

// GetPostsForViewAccrual возвращает порцию опубликованных статей, не достигших
// предела поинтов за просмотры. Пагинация по первичному ключу делает проход
// детерминированным и возобновляемым; фильтр по пределу применяется заново на
// каждой порции, так что статьи, достигшие предела параллельным процессом,
// в следующие порции не попадают.
func (r *PostgresRepository) GetPostsForViewAccrual(ctx context.Context, afterID int64, limit int, maxPoints int64) ([]PostForAccrual, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, title, view_count, points_awarded_from_views
		 FROM posts
		 WHERE status = $1 AND points_awarded_from_views < $2 AND id > $3
		 ORDER BY id
		 LIMIT $4`,
		string(model.PostStatusPublished), maxPoints, afterID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select posts for accrual: %w", err)
	}
	defer rows.Close()

	var res []PostForAccrual
	for rows.Next() {
		var p PostForAccrual
		if err := rows.Scan(&p.ID, &p.UserID, &p.Title, &p.ViewCount, &p.PointsFromViews); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		res = append(res, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// AwardViewPoints начисляет автору поинты за просмотры и поднимает водяной знак
// points_awarded_from_views до newTotal одной транзакцией. Сравнение со старым
// значением в UPDATE исключает двойное начисление при конкурентных проходах:
// если знак уже сдвинут другим процессом, транзакция не начисляет ничего и
// возвращает false.
func (r *PostgresRepository) AwardViewPoints(ctx context.Context, post PostForAccrual, delta, newTotal int64, reason string) (bool, error) {
	awarded := false
	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		cmdTag, err := tx.Exec(ctx,
			`UPDATE posts SET points_awarded_from_views = $2
			 WHERE id = $1 AND points_awarded_from_views = $3`,
			post.ID, newTotal, post.PointsFromViews,
		)
		if err != nil {
			return fmt.Errorf("advance view mark: %w", err)
		}
		if cmdTag.RowsAffected() == 0 {
			// Водяной знак сдвинут конкурентным проходом — пропускаем без начисления.
			awarded = false
			return nil
		}

		if err := awardPointsTx(ctx, tx, post.UserID, delta, model.PointTypeViews, reason, &post.ID); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		awarded = true
		return nil
	})
	return awarded, err
}
