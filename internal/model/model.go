// Package model содержит доменные сущности платформы публикаций.
package model

import "time"

// User представляет зарегистрированного пользователя с бонусным балансом.
type User struct {
	ID           int64
	Login        string
	PasswordHash []byte
	Points       int64
	IsAdmin      bool
	CreatedAt    time.Time
}

// PostStatus описывает статус публикации статьи.
type PostStatus string

const (
	PostStatusDraft     PostStatus = "draft"
	PostStatusPending   PostStatus = "pending"
	PostStatusPublished PostStatus = "published"
	PostStatusRejected  PostStatus = "rejected"
)

// Valid сообщает, является ли значение известным статусом статьи.
func (s PostStatus) Valid() bool {
	switch s {
	case PostStatusDraft, PostStatusPending, PostStatusPublished, PostStatusRejected:
		return true
	}
	return false
}

// Post описывает статью и счётчики начисления поинтов.
type Post struct {
	ID                     int64
	UserID                 int64
	Title                  string
	Body                   string
	Status                 PostStatus
	ViewCount              int64
	PointsFromViews        int64
	PointsAwardedOnPublish int64
	PublishedAt            *time.Time
	CreatedAt              time.Time
}

// PointType описывает причину движения поинтов в журнале.
type PointType string

const (
	PointTypePublish    PointType = "publish"
	PointTypeViews      PointType = "views"
	PointTypeRedemption PointType = "redemption"
	PointTypeRefund     PointType = "refund"
	PointTypeAdjustment PointType = "adjustment"
)

// PointLog описывает одну неизменяемую запись журнала поинтов.
// Положительное значение Points — начисление, отрицательное — списание.
type PointLog struct {
	ID        int64
	UserID    int64
	PostID    *int64
	Points    int64
	Type      PointType
	Reason    string
	CreatedAt time.Time
}

// RedemptionItem описывает позицию каталога обмена поинтов.
type RedemptionItem struct {
	ID          int64
	Name        string
	Description string
	PointCost   int64
	RupiahValue int64
	IsActive    bool
	SortOrder   int
	CreatedAt   time.Time
}

// PaymentMethod описывает способ выплаты по заявке на обмен.
type PaymentMethod string

const (
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodEWallet      PaymentMethod = "e_wallet"
)

// Valid сообщает, является ли значение известным способом выплаты.
func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodBankTransfer || m == PaymentMethodEWallet
}

// RedemptionStatus описывает статус заявки на обмен поинтов.
type RedemptionStatus string

const (
	RedemptionStatusPending    RedemptionStatus = "pending"
	RedemptionStatusProcessing RedemptionStatus = "processing"
	RedemptionStatusCompleted  RedemptionStatus = "completed"
	RedemptionStatusRejected   RedemptionStatus = "rejected"
)

// Valid сообщает, является ли значение известным статусом заявки.
func (s RedemptionStatus) Valid() bool {
	switch s {
	case RedemptionStatusPending, RedemptionStatusProcessing,
		RedemptionStatusCompleted, RedemptionStatusRejected:
		return true
	}
	return false
}

// Terminal сообщает, является ли статус конечным. Конечные заявки неизменяемы.
func (s RedemptionStatus) Terminal() bool {
	return s == RedemptionStatusCompleted || s == RedemptionStatusRejected
}

// CanTransitionTo проверяет допустимость перехода заявки в новый статус.
func (s RedemptionStatus) CanTransitionTo(next RedemptionStatus) bool {
	switch s {
	case RedemptionStatusPending:
		return next == RedemptionStatusProcessing ||
			next == RedemptionStatusCompleted ||
			next == RedemptionStatusRejected
	case RedemptionStatusProcessing:
		return next == RedemptionStatusCompleted ||
			next == RedemptionStatusRejected
	}
	return false
}

// PaymentDetails содержит реквизиты выплаты, зависящие от способа.
type PaymentDetails struct {
	Method          PaymentMethod
	BankName        string
	AccountNumber   string
	AccountHolder   string
	EWalletProvider string
	EWalletNumber   string
	EWalletName     string
}

// RedemptionRequest описывает заявку пользователя на обмен поинтов на деньги.
// PointCost и RupiahValue — снимки каталога на момент создания заявки.
type RedemptionRequest struct {
	ID          int64
	UserID      int64
	ItemID      int64
	ItemName    string
	PointCost   int64
	RupiahValue int64
	Payment     PaymentDetails
	Status      RedemptionStatus
	AdminNote   string
	ProcessedBy *int64
	ProcessedAt *time.Time
	CreatedAt   time.Time
}

// Balance содержит текущий баланс пользователя и сумму всех списаний на обмен.
type Balance struct {
	Points   int64 `json:"points"`
	Redeemed int64 `json:"redeemed"`
}

// Setting описывает настраиваемый параметр платформы.
type Setting struct {
	Key         string
	Value       string
	Description string
	Group       string
}
