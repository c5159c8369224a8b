package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/grapadi/points-system/internal/middleware"
	"github.com/grapadi/points-system/internal/model"
	"github.com/grapadi/points-system/internal/repository"
	"github.com/grapadi/points-system/internal/service"
	"github.com/grapadi/points-system/internal/validation"
)

type catalogItemResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	PointCost   int64  `json:"point_cost"`
	RupiahValue int64  `json:"rupiah_value"`
}

// GetCatalog возвращает активные позиции каталога обмена поинтов.
func (h *Handler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.GetRedemptionCatalog(r.Context())
	if err != nil {
		h.logger.Error("get catalog error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]catalogItemResponse, 0, len(items))
	for _, it := range items {
		resp = append(resp, catalogItemResponse{
			ID:          it.ID,
			Name:        it.Name,
			Description: it.Description,
			PointCost:   it.PointCost,
			RupiahValue: it.RupiahValue,
		})
	}

	writeJSON(w, resp)
}

type submitRedemptionRequest struct {
	ItemID          int64  `json:"item_id"`
	Method          string `json:"method"`
	BankName        string `json:"bank_name,omitempty"`
	AccountNumber   string `json:"account_number,omitempty"`
	AccountHolder   string `json:"account_holder,omitempty"`
	EWalletProvider string `json:"ewallet_provider,omitempty"`
	EWalletNumber   string `json:"ewallet_number,omitempty"`
	EWalletName     string `json:"ewallet_name,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: msg})
}

// SubmitRedemption создаёт заявку на обмен поинтов от текущего пользователя.
func (h *Handler) SubmitRedemption(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req submitRedemptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	payment := model.PaymentDetails{
		Method:          model.PaymentMethod(req.Method),
		BankName:        req.BankName,
		AccountNumber:   req.AccountNumber,
		AccountHolder:   req.AccountHolder,
		EWalletProvider: req.EWalletProvider,
		EWalletNumber:   req.EWalletNumber,
		EWalletName:     req.EWalletName,
	}

	if err := validation.ValidatePaymentDetails(payment); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	requestID, err := h.service.SubmitRedemption(r.Context(), userID, req.ItemID, payment)
	if err != nil {
		h.writeRedemptionError(w, r, err, userID)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]int64{"id": requestID})
}

func (h *Handler) writeRedemptionError(w http.ResponseWriter, r *http.Request, err error, userID int64) {
	var insufficientErr *service.InsufficientPointsError
	var limitErr *service.PendingLimitError
	var cooldownErr *service.CooldownError

	switch {
	case errors.Is(err, repository.ErrItemNotFound):
		writeError(w, http.StatusNotFound, "redemption item not found")
	case errors.Is(err, service.ErrItemUnavailable):
		writeError(w, http.StatusUnprocessableEntity, "redemption item is not available")
	case errors.As(err, &insufficientErr):
		writeError(w, http.StatusPaymentRequired, insufficientErr.Error())
	case errors.Is(err, repository.ErrInsufficientBalance):
		// Сработала защита баланса внутри транзакции: предварительная проверка
		// пропустила заявку, которую журнал не покрывает. Гонка или ошибка выше
		// по стеку, поэтому уровень error.
		h.logger.Error("balance guard tripped on redemption submit",
			zap.Error(err), zap.Int64("userID", userID))
		writeError(w, http.StatusPaymentRequired, "insufficient points")
	case errors.As(err, &limitErr):
		writeError(w, http.StatusConflict, limitErr.Error())
	case errors.Is(err, repository.ErrMaxPendingRequests):
		writeError(w, http.StatusConflict, "too many unresolved requests")
	case errors.As(err, &cooldownErr):
		w.Header().Set("Retry-After", strconv.FormatInt(int64(cooldownErr.Remaining.Seconds())+1, 10))
		writeError(w, http.StatusTooManyRequests, cooldownErr.Error())
	default:
		h.logger.Error("submit redemption error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

type redemptionResponse struct {
	ID          int64  `json:"id"`
	ItemName    string `json:"item_name"`
	PointCost   int64  `json:"point_cost"`
	RupiahValue int64  `json:"rupiah_value"`
	Method      string `json:"method"`
	Status      string `json:"status"`
	AdminNote   string `json:"admin_note,omitempty"`
	CreatedAt   string `json:"created_at"`
	ProcessedAt string `json:"processed_at,omitempty"`
}

func toRedemptionResponse(req model.RedemptionRequest) redemptionResponse {
	resp := redemptionResponse{
		ID:          req.ID,
		ItemName:    req.ItemName,
		PointCost:   req.PointCost,
		RupiahValue: req.RupiahValue,
		Method:      string(req.Payment.Method),
		Status:      string(req.Status),
		AdminNote:   req.AdminNote,
		CreatedAt:   req.CreatedAt.Format(time.RFC3339),
	}
	if req.ProcessedAt != nil {
		resp.ProcessedAt = req.ProcessedAt.Format(time.RFC3339)
	}
	return resp
}

// GetRedemptions возвращает историю заявок текущего пользователя.
func (h *Handler) GetRedemptions(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	requests, err := h.service.GetRedemptionHistory(r.Context(), userID)
	if err != nil {
		h.logger.Error("get redemptions error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(requests) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]redemptionResponse, 0, len(requests))
	for _, req := range requests {
		resp = append(resp, toRedemptionResponse(req))
	}

	writeJSON(w, resp)
}
