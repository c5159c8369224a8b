// Package handler содержит HTTP-обработчики API платформы поинтов.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/grapadi/points-system/internal/middleware"
	"github.com/grapadi/points-system/internal/model"
	"github.com/grapadi/points-system/internal/repository"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, login, password string) (int64, error)
	AuthenticateUser(ctx context.Context, login, password string) (int64, error)
	IsAdmin(ctx context.Context, userID int64) (bool, error)

	GetBalance(ctx context.Context, userID int64) (*model.Balance, error)
	GetPointHistory(ctx context.Context, userID int64) ([]model.PointLog, error)
	AdjustPoints(ctx context.Context, userID, amount int64, reason string) error

	CreatePost(ctx context.Context, userID int64, title, body string) (int64, error)
	GetPostsByUser(ctx context.Context, userID int64) ([]model.Post, error)
	RegisterView(ctx context.Context, postID int64) error
	SetPostStatus(ctx context.Context, postID int64, status model.PostStatus) (bool, error)

	GetRedemptionCatalog(ctx context.Context) ([]model.RedemptionItem, error)
	SubmitRedemption(ctx context.Context, userID, itemID int64, payment model.PaymentDetails) (int64, error)
	GetRedemptionHistory(ctx context.Context, userID int64) ([]model.RedemptionRequest, error)
	GetRedemptionRequests(ctx context.Context, status *model.RedemptionStatus) ([]model.RedemptionRequest, error)
	GetRedemptionRequest(ctx context.Context, requestID int64) (*model.RedemptionRequest, error)
	UpdateRedemptionStatus(ctx context.Context, requestID int64, status model.RedemptionStatus, adminID int64, adminNote string) error

	GetRedemptionItems(ctx context.Context) ([]model.RedemptionItem, error)
	CreateRedemptionItem(ctx context.Context, item model.RedemptionItem) (int64, error)
	UpdateRedemptionItem(ctx context.Context, item model.RedemptionItem) error

	GetSettingsGroup(ctx context.Context, group string) ([]model.Setting, error)
	UpdateSetting(ctx context.Context, key, value, group string) error
}

// Handler реализует HTTP-обработчики API платформы поинтов.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

type credentialsRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// Register обрабатывает регистрацию нового пользователя.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Login == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	userID, err := h.service.RegisterUser(r.Context(), req.Login, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
			return
		}
		h.logger.Error("register user error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.authMiddleware.SetAuthCookie(w, userID)
	w.WriteHeader(http.StatusOK)
}

// Login выполняет аутентификацию пользователя и установку cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Login == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	userID, err := h.service.AuthenticateUser(r.Context(), req.Login, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) || err.Error() == "invalid credentials" {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		h.logger.Error("login user error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.authMiddleware.SetAuthCookie(w, userID)
	w.WriteHeader(http.StatusOK)
}

// GetBalance возвращает баланс поинтов текущего пользователя.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	balance, err := h.service.GetBalance(r.Context(), userID)
	if err != nil {
		h.logger.Error("get balance error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, balanceResponse{Points: balance.Points, Redeemed: balance.Redeemed})
}

type balanceResponse struct {
	Points   int64 `json:"points"`
	Redeemed int64 `json:"redeemed"`
}

type pointLogResponse struct {
	Points    int64  `json:"points"`
	Type      string `json:"type"`
	Reason    string `json:"reason"`
	PostID    *int64 `json:"post_id,omitempty"`
	CreatedAt string `json:"created_at"`
}

// GetPointHistory возвращает журнал движений поинтов текущего пользователя.
func (h *Handler) GetPointHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	logs, err := h.service.GetPointHistory(r.Context(), userID)
	if err != nil {
		h.logger.Error("get point history error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(logs) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]pointLogResponse, 0, len(logs))
	for _, l := range logs {
		resp = append(resp, pointLogResponse{
			Points:    l.Points,
			Type:      string(l.Type),
			Reason:    l.Reason,
			PostID:    l.PostID,
			CreatedAt: l.CreatedAt.Format(time.RFC3339),
		})
	}

	writeJSON(w, resp)
}

type createPostRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type postResponse struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Status      string `json:"status"`
	ViewCount   int64  `json:"view_count"`
	PublishedAt string `json:"published_at,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// CreatePost создаёт черновик статьи текущего пользователя.
func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req createPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Title == "" || req.Body == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	postID, err := h.service.CreatePost(r.Context(), userID, req.Title, req.Body)
	if err != nil {
		h.logger.Error("create post error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]int64{"id": postID})
}

// GetPosts возвращает статьи текущего пользователя.
func (h *Handler) GetPosts(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	posts, err := h.service.GetPostsByUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("get posts error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(posts) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]postResponse, 0, len(posts))
	for _, p := range posts {
		pr := postResponse{
			ID:        p.ID,
			Title:     p.Title,
			Status:    string(p.Status),
			ViewCount: p.ViewCount,
			CreatedAt: p.CreatedAt.Format(time.RFC3339),
		}
		if p.PublishedAt != nil {
			pr.PublishedAt = p.PublishedAt.Format(time.RFC3339)
		}
		resp = append(resp, pr)
	}

	writeJSON(w, resp)
}

// RegisterView фиксирует просмотр опубликованной статьи.
func (h *Handler) RegisterView(w http.ResponseWriter, r *http.Request) {
	postID, err := pathID(r, "postID")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.RegisterView(r.Context(), postID); err != nil {
		if errors.Is(err, repository.ErrPostNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("register view error", zap.Error(err), zap.Int64("postID", postID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
