package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/grapadi/points-system/internal/model"
)

// GetActiveRedemptionItems возвращает активные позиции каталога обмена в порядке показа.
func (r *PostgresRepository) GetActiveRedemptionItems(ctx context.Context) ([]model.RedemptionItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, description, point_cost, rupiah_value, is_active, sort_order, created_at
		 FROM redemption_items
		 WHERE is_active = TRUE
		 ORDER BY sort_order, point_cost`,
	)
	if err != nil {
		return nil, fmt.Errorf("select redemption items: %w", err)
	}
	defer rows.Close()

	return scanRedemptionItems(rows)
}

// GetAllRedemptionItems возвращает весь каталог обмена для административного интерфейса.
func (r *PostgresRepository) GetAllRedemptionItems(ctx context.Context) ([]model.RedemptionItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, description, point_cost, rupiah_value, is_active, sort_order, created_at
		 FROM redemption_items
		 ORDER BY sort_order, point_cost`,
	)
	if err != nil {
		return nil, fmt.Errorf("select redemption items: %w", err)
	}
	defer rows.Close()

	return scanRedemptionItems(rows)
}

func scanRedemptionItems(rows pgx.Rows) ([]model.RedemptionItem, error) {
	var items []model.RedemptionItem
	for rows.Next() {
		var it model.RedemptionItem
		if err := rows.Scan(&it.ID, &it.Name, &it.Description, &it.PointCost, &it.RupiahValue,
			&it.IsActive, &it.SortOrder, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan redemption item: %w", err)
		}
		items = append(items, it)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

// GetRedemptionItemByID возвращает позицию каталога по идентификатору.
func (r *PostgresRepository) GetRedemptionItemByID(ctx context.Context, itemID int64) (*model.RedemptionItem, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, name, description, point_cost, rupiah_value, is_active, sort_order, created_at
		 FROM redemption_items WHERE id = $1`,
		itemID,
	)

	var it model.RedemptionItem
	err := row.Scan(&it.ID, &it.Name, &it.Description, &it.PointCost, &it.RupiahValue,
		&it.IsActive, &it.SortOrder, &it.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("get redemption item: %w", err)
	}

	return &it, nil
}

// CreateRedemptionItem добавляет позицию в каталог обмена.
func (r *PostgresRepository) CreateRedemptionItem(ctx context.Context, item model.RedemptionItem) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO redemption_items (name, description, point_cost, rupiah_value, is_active, sort_order)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		item.Name, item.Description, item.PointCost, item.RupiahValue, item.IsActive, item.SortOrder,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert redemption item: %w", err)
	}
	return id, nil
}

// UpdateRedemptionItem обновляет позицию каталога обмена. Снимки цен в уже
// созданных заявках не затрагиваются.
func (r *PostgresRepository) UpdateRedemptionItem(ctx context.Context, item model.RedemptionItem) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE redemption_items
		 SET name = $2, description = $3, point_cost = $4, rupiah_value = $5, is_active = $6, sort_order = $7
		 WHERE id = $1`,
		item.ID, item.Name, item.Description, item.PointCost, item.RupiahValue, item.IsActive, item.SortOrder,
	)
	if err != nil {
		return fmt.Errorf("update redemption item: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

// CountUnresolvedRequests возвращает число заявок пользователя в неконечных статусах.
func (r *PostgresRepository) CountUnresolvedRequests(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM redemption_requests
		 WHERE user_id = $1 AND status IN ($2, $3)`,
		userID, string(model.RedemptionStatusPending), string(model.RedemptionStatusProcessing),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unresolved requests: %w", err)
	}
	return count, nil
}

// GetLastRequestTime возвращает время последней заявки пользователя.
// Возвращает nil, если заявок не было.
func (r *PostgresRepository) GetLastRequestTime(ctx context.Context, userID int64) (*time.Time, error) {
	var createdAt time.Time
	err := r.pool.QueryRow(ctx,
		`SELECT created_at FROM redemption_requests
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT 1`,
		userID,
	).Scan(&createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select last request: %w", err)
	}
	return &createdAt, nil
}

// CreateRedemptionRequest списывает point_cost с баланса пользователя и создаёт
// заявку одной транзакцией: либо происходит и то и другое, либо ничего.
// Строка пользователя блокируется для сериализации конкурентных списаний,
// баланс и лимит незавершённых заявок перепроверяются уже под блокировкой.
func (r *PostgresRepository) CreateRedemptionRequest(ctx context.Context, userID int64, item *model.RedemptionItem, payment model.PaymentDetails, maxPending int) (int64, error) {
	var requestID int64

	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		var points int64
		err = tx.QueryRow(ctx, `SELECT points FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&points)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrUserNotFound
			}
			return fmt.Errorf("lock user for update: %w", err)
		}

		if points < item.PointCost {
			return ErrInsufficientBalance
		}

		var unresolved int
		err = tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM redemption_requests
			 WHERE user_id = $1 AND status IN ($2, $3)`,
			userID, string(model.RedemptionStatusPending), string(model.RedemptionStatusProcessing),
		).Scan(&unresolved)
		if err != nil {
			return fmt.Errorf("count unresolved requests: %w", err)
		}
		if unresolved >= maxPending {
			return ErrMaxPendingRequests
		}

		reason := fmt.Sprintf("Point redemption: %s", item.Name)
		if err := deductPointsTx(ctx, tx, userID, item.PointCost, model.PointTypeRedemption, reason, nil); err != nil {
			return err
		}

		err = tx.QueryRow(ctx,
			`INSERT INTO redemption_requests
			 (user_id, redemption_item_id, point_cost, rupiah_value, payment_method,
			  bank_name, account_number, account_holder,
			  ewallet_provider, ewallet_number, ewallet_name, status)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			 RETURNING id`,
			userID, item.ID, item.PointCost, item.RupiahValue, string(payment.Method),
			payment.BankName, payment.AccountNumber, payment.AccountHolder,
			payment.EWalletProvider, payment.EWalletNumber, payment.EWalletName,
			string(model.RedemptionStatusPending),
		).Scan(&requestID)
		if err != nil {
			return fmt.Errorf("insert redemption request: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})

	return requestID, err
}

// UpdateRedemptionStatus переводит заявку в новый статус. Конечные заявки
// неизменяемы. При отклонении снимок point_cost возвращается на баланс
// пользователя в той же транзакции.
func (r *PostgresRepository) UpdateRedemptionStatus(ctx context.Context, requestID int64, newStatus model.RedemptionStatus, adminID int64, adminNote string) error {
	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		var (
			userID    int64
			pointCost int64
			status    string
		)
		err = tx.QueryRow(ctx,
			`SELECT user_id, point_cost, status FROM redemption_requests WHERE id = $1 FOR UPDATE`,
			requestID,
		).Scan(&userID, &pointCost, &status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrRequestNotFound
			}
			return fmt.Errorf("lock request: %w", err)
		}

		current := model.RedemptionStatus(status)
		if current.Terminal() {
			return ErrRequestFinalized
		}
		if !current.CanTransitionTo(newStatus) {
			return ErrInvalidTransition
		}

		if newStatus == model.RedemptionStatusRejected {
			reason := fmt.Sprintf("Refund: request #%d rejected", requestID)
			if err := awardPointsTx(ctx, tx, userID, pointCost, model.PointTypeRefund, reason, nil); err != nil {
				return err
			}
		}

		// Пустая заметка не затирает сохранённую ранее.
		_, err = tx.Exec(ctx,
			`UPDATE redemption_requests
			 SET status = $2, admin_note = COALESCE(NULLIF($3, ''), admin_note),
			     processed_by = $4, processed_at = now()
			 WHERE id = $1`,
			requestID, string(newStatus), adminNote, adminID,
		)
		if err != nil {
			return fmt.Errorf("update request status: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

const selectRequestColumns = `
	SELECT r.id, r.user_id, r.redemption_item_id, i.name, r.point_cost, r.rupiah_value,
	       r.payment_method, r.bank_name, r.account_number, r.account_holder,
	       r.ewallet_provider, r.ewallet_number, r.ewallet_name,
	       r.status, r.admin_note, r.processed_by, r.processed_at, r.created_at
	FROM redemption_requests r
	JOIN redemption_items i ON i.id = r.redemption_item_id`

// GetRequestsByUser возвращает историю заявок пользователя, начиная с последних.
func (r *PostgresRepository) GetRequestsByUser(ctx context.Context, userID int64) ([]model.RedemptionRequest, error) {
	rows, err := r.pool.Query(ctx,
		selectRequestColumns+`
		 WHERE r.user_id = $1
		 ORDER BY r.created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select requests: %w", err)
	}
	defer rows.Close()

	return scanRedemptionRequests(rows)
}

// GetRequests возвращает заявки всех пользователей, опционально фильтруя по статусу.
func (r *PostgresRepository) GetRequests(ctx context.Context, status *model.RedemptionStatus) ([]model.RedemptionRequest, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if status != nil {
		rows, err = r.pool.Query(ctx,
			selectRequestColumns+`
			 WHERE r.status = $1
			 ORDER BY r.created_at DESC`,
			string(*status),
		)
	} else {
		rows, err = r.pool.Query(ctx,
			selectRequestColumns+`
			 ORDER BY r.created_at DESC`,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("select requests: %w", err)
	}
	defer rows.Close()

	return scanRedemptionRequests(rows)
}

// GetRequestByID возвращает заявку по идентификатору.
func (r *PostgresRepository) GetRequestByID(ctx context.Context, requestID int64) (*model.RedemptionRequest, error) {
	row := r.pool.QueryRow(ctx, selectRequestColumns+` WHERE r.id = $1`, requestID)

	req, err := scanRedemptionRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("get request: %w", err)
	}
	return req, nil
}

func scanRedemptionRequest(row pgx.Row) (*model.RedemptionRequest, error) {
	var (
		req           model.RedemptionRequest
		paymentMethod string
		status        string
	)
	err := row.Scan(&req.ID, &req.UserID, &req.ItemID, &req.ItemName, &req.PointCost, &req.RupiahValue,
		&paymentMethod, &req.Payment.BankName, &req.Payment.AccountNumber, &req.Payment.AccountHolder,
		&req.Payment.EWalletProvider, &req.Payment.EWalletNumber, &req.Payment.EWalletName,
		&status, &req.AdminNote, &req.ProcessedBy, &req.ProcessedAt, &req.CreatedAt)
	if err != nil {
		return nil, err
	}
	req.Payment.Method = model.PaymentMethod(paymentMethod)
	req.Status = model.RedemptionStatus(status)
	return &req, nil
}

func scanRedemptionRequests(rows pgx.Rows) ([]model.RedemptionRequest, error) {
	var res []model.RedemptionRequest
	for rows.Next() {
		req, err := scanRedemptionRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		res = append(res, *req)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
