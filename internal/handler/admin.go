package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/grapadi/points-system/internal/middleware"
	"github.com/grapadi/points-system/internal/model"
	"github.com/grapadi/points-system/internal/repository"
	"github.com/grapadi/points-system/internal/service"
)

// requireAdmin пропускает запрос дальше только для администраторов.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.GetUserIDFromContext(r.Context())
		if !ok {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		isAdmin, err := h.service.IsAdmin(r.Context(), userID)
		if err != nil {
			h.logger.Error("admin check error", zap.Error(err), zap.Int64("userID", userID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		if !isAdmin {
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type adjustPointsRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

// AdjustPoints выполняет ручную корректировку баланса пользователя.
func (h *Handler) AdjustPoints(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userID")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req adjustPointsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Amount == 0 || req.Reason == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.AdjustPoints(r.Context(), userID, req.Amount, req.Reason); err != nil {
		switch {
		case errors.Is(err, repository.ErrUserNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, repository.ErrInsufficientBalance):
			writeError(w, http.StatusPaymentRequired, "insufficient points for deduction")
		default:
			h.logger.Error("adjust points error", zap.Error(err), zap.Int64("userID", userID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
}

type setPostStatusRequest struct {
	Status string `json:"status"`
}

// SetPostStatus меняет модерационный статус статьи. При первой публикации
// автору начисляется бонус за публикацию.
func (h *Handler) SetPostStatus(w http.ResponseWriter, r *http.Request) {
	postID, err := pathID(r, "postID")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req setPostStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	awarded, err := h.service.SetPostStatus(r.Context(), postID, model.PostStatus(req.Status))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidStatus):
			writeError(w, http.StatusBadRequest, "unknown post status")
		case errors.Is(err, repository.ErrPostNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		default:
			h.logger.Error("set post status error", zap.Error(err), zap.Int64("postID", postID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, map[string]bool{"bonus_awarded": awarded})
}

// GetAdminRedemptions возвращает заявки на обмен, опционально отфильтрованные по статусу.
func (h *Handler) GetAdminRedemptions(w http.ResponseWriter, r *http.Request) {
	var status *model.RedemptionStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		s := model.RedemptionStatus(raw)
		status = &s
	}

	requests, err := h.service.GetRedemptionRequests(r.Context(), status)
	if err != nil {
		if errors.Is(err, service.ErrInvalidStatus) {
			writeError(w, http.StatusBadRequest, "unknown redemption status")
			return
		}
		h.logger.Error("get admin redemptions error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]redemptionResponse, 0, len(requests))
	for _, req := range requests {
		resp = append(resp, toRedemptionResponse(req))
	}

	writeJSON(w, resp)
}

// GetAdminRedemption возвращает одну заявку со всеми реквизитами выплаты.
func (h *Handler) GetAdminRedemption(w http.ResponseWriter, r *http.Request) {
	requestID, err := pathID(r, "requestID")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	req, err := h.service.GetRedemptionRequest(r.Context(), requestID)
	if err != nil {
		if errors.Is(err, repository.ErrRequestNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("get admin redemption error", zap.Error(err), zap.Int64("requestID", requestID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	type adminRedemptionResponse struct {
		redemptionResponse
		UserID  int64                `json:"user_id"`
		Payment adminPaymentResponse `json:"payment"`
	}

	writeJSON(w, adminRedemptionResponse{
		redemptionResponse: toRedemptionResponse(*req),
		UserID:             req.UserID,
		Payment:            toAdminPaymentResponse(req.Payment),
	})
}

type adminPaymentResponse struct {
	Method          string `json:"method"`
	BankName        string `json:"bank_name,omitempty"`
	AccountNumber   string `json:"account_number,omitempty"`
	AccountHolder   string `json:"account_holder,omitempty"`
	EWalletProvider string `json:"ewallet_provider,omitempty"`
	EWalletNumber   string `json:"ewallet_number,omitempty"`
	EWalletName     string `json:"ewallet_name,omitempty"`
}

func toAdminPaymentResponse(p model.PaymentDetails) adminPaymentResponse {
	return adminPaymentResponse{
		Method:          string(p.Method),
		BankName:        p.BankName,
		AccountNumber:   p.AccountNumber,
		AccountHolder:   p.AccountHolder,
		EWalletProvider: p.EWalletProvider,
		EWalletNumber:   p.EWalletNumber,
		EWalletName:     p.EWalletName,
	}
}

type updateRedemptionStatusRequest struct {
	Status    string `json:"status"`
	AdminNote string `json:"admin_note,omitempty"`
}

// UpdateRedemptionStatus переводит заявку в новый статус. Отклонение
// возвращает поинты пользователю.
func (h *Handler) UpdateRedemptionStatus(w http.ResponseWriter, r *http.Request) {
	adminID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	requestID, err := pathID(r, "requestID")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req updateRedemptionStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	err = h.service.UpdateRedemptionStatus(r.Context(), requestID, model.RedemptionStatus(req.Status), adminID, req.AdminNote)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidStatus):
			writeError(w, http.StatusBadRequest, "unknown redemption status")
		case errors.Is(err, repository.ErrRequestNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, repository.ErrRequestFinalized):
			h.logger.Error("attempt to modify finalized request",
				zap.Error(err), zap.Int64("requestID", requestID), zap.Int64("adminID", adminID))
			writeError(w, http.StatusConflict, "request already finalized")
		case errors.Is(err, repository.ErrInvalidTransition):
			h.logger.Error("disallowed redemption status transition",
				zap.Error(err), zap.Int64("requestID", requestID), zap.Int64("adminID", adminID),
				zap.String("status", req.Status))
			writeError(w, http.StatusConflict, "transition not allowed")
		default:
			h.logger.Error("update redemption status error", zap.Error(err), zap.Int64("requestID", requestID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
}

type itemRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	PointCost   int64  `json:"point_cost"`
	RupiahValue int64  `json:"rupiah_value"`
	IsActive    bool   `json:"is_active"`
	SortOrder   int    `json:"sort_order"`
}

type itemResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	PointCost   int64  `json:"point_cost"`
	RupiahValue int64  `json:"rupiah_value"`
	IsActive    bool   `json:"is_active"`
	SortOrder   int    `json:"sort_order"`
}

// GetAdminItems возвращает все позиции каталога, включая отключённые.
func (h *Handler) GetAdminItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.GetRedemptionItems(r.Context())
	if err != nil {
		h.logger.Error("get admin items error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]itemResponse, 0, len(items))
	for _, it := range items {
		resp = append(resp, itemResponse{
			ID:          it.ID,
			Name:        it.Name,
			Description: it.Description,
			PointCost:   it.PointCost,
			RupiahValue: it.RupiahValue,
			IsActive:    it.IsActive,
			SortOrder:   it.SortOrder,
		})
	}

	writeJSON(w, resp)
}

// CreateItem добавляет позицию в каталог обмена.
func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Name == "" || req.PointCost <= 0 || req.RupiahValue <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	itemID, err := h.service.CreateRedemptionItem(r.Context(), model.RedemptionItem{
		Name:        req.Name,
		Description: req.Description,
		PointCost:   req.PointCost,
		RupiahValue: req.RupiahValue,
		IsActive:    req.IsActive,
		SortOrder:   req.SortOrder,
	})
	if err != nil {
		h.logger.Error("create item error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]int64{"id": itemID})
}

// UpdateItem изменяет позицию каталога обмена.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathID(r, "itemID")
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req itemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Name == "" || req.PointCost <= 0 || req.RupiahValue <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	err = h.service.UpdateRedemptionItem(r.Context(), model.RedemptionItem{
		ID:          itemID,
		Name:        req.Name,
		Description: req.Description,
		PointCost:   req.PointCost,
		RupiahValue: req.RupiahValue,
		IsActive:    req.IsActive,
		SortOrder:   req.SortOrder,
	})
	if err != nil {
		if errors.Is(err, repository.ErrItemNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("update item error", zap.Error(err), zap.Int64("itemID", itemID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

type settingResponse struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
	Group       string `json:"group"`
}

// GetSettings возвращает настройки указанной группы.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	group := r.URL.Query().Get("group")
	if group == "" {
		group = "points"
	}

	settings, err := h.service.GetSettingsGroup(r.Context(), group)
	if err != nil {
		h.logger.Error("get settings error", zap.Error(err), zap.String("group", group))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := make([]settingResponse, 0, len(settings))
	for _, st := range settings {
		resp = append(resp, settingResponse{
			Key:         st.Key,
			Value:       st.Value,
			Description: st.Description,
			Group:       st.Group,
		})
	}

	writeJSON(w, resp)
}

type updateSettingRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	Group string `json:"group"`
}

// UpdateSetting сохраняет настройку и сбрасывает её кэш.
func (h *Handler) UpdateSetting(w http.ResponseWriter, r *http.Request) {
	var req updateSettingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Key == "" || req.Value == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if req.Group == "" {
		req.Group = "points"
	}

	if err := h.service.UpdateSetting(r.Context(), req.Key, req.Value, req.Group); err != nil {
		h.logger.Error("update setting error", zap.Error(err), zap.String("key", req.Key))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}
