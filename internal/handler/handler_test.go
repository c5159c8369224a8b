package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/grapadi/points-system/internal/middleware"
	"github.com/grapadi/points-system/internal/model"
	"github.com/grapadi/points-system/internal/repository"
	"github.com/grapadi/points-system/internal/service"
)

type stubService struct {
	registerUserID int64
	registerErr    error

	authUserID int64
	authErr    error

	isAdmin    bool
	isAdminErr error

	balanceResp *model.Balance
	balanceErr  error

	historyResp []model.PointLog
	historyErr  error

	adjustErr error

	createPostID  int64
	createPostErr error

	postsResp []model.Post
	postsErr  error

	registerViewErr error

	setStatusAwarded bool
	setStatusErr     error

	catalogResp []model.RedemptionItem
	catalogErr  error

	submitID  int64
	submitErr error

	redemptionsResp []model.RedemptionRequest
	redemptionsErr  error

	requestResp *model.RedemptionRequest
	requestErr  error

	updateStatusErr error

	itemsResp []model.RedemptionItem
	itemsErr  error

	createItemID  int64
	createItemErr error
	updateItemErr error

	settingsResp []model.Setting
	settingsErr  error

	updateSettingErr error
}

func (s *stubService) RegisterUser(ctx context.Context, login, password string) (int64, error) {
	return s.registerUserID, s.registerErr
}

func (s *stubService) AuthenticateUser(ctx context.Context, login, password string) (int64, error) {
	return s.authUserID, s.authErr
}

func (s *stubService) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	return s.isAdmin, s.isAdminErr
}

func (s *stubService) GetBalance(ctx context.Context, userID int64) (*model.Balance, error) {
	return s.balanceResp, s.balanceErr
}

func (s *stubService) GetPointHistory(ctx context.Context, userID int64) ([]model.PointLog, error) {
	return s.historyResp, s.historyErr
}

func (s *stubService) AdjustPoints(ctx context.Context, userID, amount int64, reason string) error {
	return s.adjustErr
}

func (s *stubService) CreatePost(ctx context.Context, userID int64, title, body string) (int64, error) {
	return s.createPostID, s.createPostErr
}

func (s *stubService) GetPostsByUser(ctx context.Context, userID int64) ([]model.Post, error) {
	return s.postsResp, s.postsErr
}

func (s *stubService) RegisterView(ctx context.Context, postID int64) error {
	return s.registerViewErr
}

func (s *stubService) SetPostStatus(ctx context.Context, postID int64, status model.PostStatus) (bool, error) {
	return s.setStatusAwarded, s.setStatusErr
}

func (s *stubService) GetRedemptionCatalog(ctx context.Context) ([]model.RedemptionItem, error) {
	return s.catalogResp, s.catalogErr
}

func (s *stubService) SubmitRedemption(ctx context.Context, userID, itemID int64, payment model.PaymentDetails) (int64, error) {
	return s.submitID, s.submitErr
}

func (s *stubService) GetRedemptionHistory(ctx context.Context, userID int64) ([]model.RedemptionRequest, error) {
	return s.redemptionsResp, s.redemptionsErr
}

func (s *stubService) GetRedemptionRequests(ctx context.Context, status *model.RedemptionStatus) ([]model.RedemptionRequest, error) {
	return s.redemptionsResp, s.redemptionsErr
}

func (s *stubService) GetRedemptionRequest(ctx context.Context, requestID int64) (*model.RedemptionRequest, error) {
	return s.requestResp, s.requestErr
}

func (s *stubService) UpdateRedemptionStatus(ctx context.Context, requestID int64, status model.RedemptionStatus, adminID int64, adminNote string) error {
	return s.updateStatusErr
}

func (s *stubService) GetRedemptionItems(ctx context.Context) ([]model.RedemptionItem, error) {
	return s.itemsResp, s.itemsErr
}

func (s *stubService) CreateRedemptionItem(ctx context.Context, item model.RedemptionItem) (int64, error) {
	return s.createItemID, s.createItemErr
}

func (s *stubService) UpdateRedemptionItem(ctx context.Context, item model.RedemptionItem) error {
	return s.updateItemErr
}

func (s *stubService) GetSettingsGroup(ctx context.Context, group string) ([]model.Setting, error) {
	return s.settingsResp, s.settingsErr
}

func (s *stubService) UpdateSetting(ctx context.Context, key, value, group string) error {
	return s.updateSettingErr
}

func newTestHandler(t *testing.T, svc Service) *Handler {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	auth := middleware.NewAuthMiddleware("test-secret")

	return NewHandler(svc, logger, auth)
}

func newObservedHandler(t *testing.T, svc Service) (*Handler, *observer.ObservedLogs) {
	t.Helper()

	core, logs := observer.New(zap.ErrorLevel)
	auth := middleware.NewAuthMiddleware("test-secret")

	return NewHandler(svc, zap.New(core), auth), logs
}

func authCookie(t *testing.T, h *Handler, userID int64) *http.Cookie {
	t.Helper()

	rec := httptest.NewRecorder()
	h.authMiddleware.SetAuthCookie(rec, userID)
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatalf("auth cookie not set")
	}
	return cookies[0]
}

func TestRegister_Success(t *testing.T) {
	svc := &stubService{registerUserID: 42}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(credentialsRequest{Login: "user", Password: "pass"})

	req := httptest.NewRequest(http.MethodPost, "/api/user/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if len(res.Cookies()) == 0 {
		t.Fatalf("auth cookie not set on register")
	}
}

func TestRegister_Conflict(t *testing.T) {
	svc := &stubService{registerErr: repository.ErrUserExists}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(credentialsRequest{Login: "user", Password: "pass"})

	req := httptest.NewRequest(http.MethodPost, "/api/user/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	if rec.Result().StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusConflict)
	}
}

func TestLogin_Unauthorized(t *testing.T) {
	svc := &stubService{authErr: repository.ErrUserNotFound}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(credentialsRequest{Login: "user", Password: "bad"})

	req := httptest.NewRequest(http.MethodPost, "/api/user/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Login(rec, req)

	if rec.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestGetBalance_JSONResponse(t *testing.T) {
	svc := &stubService{balanceResp: &model.Balance{Points: 120, Redeemed: 300}}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/user/balance", nil)
	req.AddCookie(authCookie(t, h, 1))

	rec := httptest.NewRecorder()
	handlerWithAuth := h.authMiddleware.Middleware(http.HandlerFunc(h.GetBalance))
	handlerWithAuth.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if ct := res.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type = %q, want application/json", ct)
	}

	var resp balanceResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Points != 120 || resp.Redeemed != 300 {
		t.Fatalf("balance = %+v, want points 120 redeemed 300", resp)
	}
}

func TestGetPointHistory_NoContent(t *testing.T) {
	svc := &stubService{historyResp: []model.PointLog{}}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/user/points", nil)
	req.AddCookie(authCookie(t, h, 1))

	rec := httptest.NewRecorder()
	handlerWithAuth := h.authMiddleware.Middleware(http.HandlerFunc(h.GetPointHistory))
	handlerWithAuth.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusNoContent)
	}
}

func validSubmitBody(t *testing.T) []byte {
	t.Helper()
	body, err := json.Marshal(submitRedemptionRequest{
		ItemID:        1,
		Method:        "bank_transfer",
		BankName:      "BCA",
		AccountNumber: "1234567890",
		AccountHolder: "Budi Santoso",
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return body
}

func TestSubmitRedemption_Created(t *testing.T) {
	svc := &stubService{submitID: 7}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodPost, "/api/user/redemptions", bytes.NewReader(validSubmitBody(t)))
	req.AddCookie(authCookie(t, h, 1))

	rec := httptest.NewRecorder()
	handlerWithAuth := h.authMiddleware.Middleware(http.HandlerFunc(h.SubmitRedemption))
	handlerWithAuth.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusCreated)
	}
}

func TestSubmitRedemption_StatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{
			name:       "insufficient points",
			err:        &service.InsufficientPointsError{Required: 100, Available: 50},
			wantStatus: http.StatusPaymentRequired,
		},
		{
			name:       "pending limit reached",
			err:        &service.PendingLimitError{Limit: 1},
			wantStatus: http.StatusConflict,
		},
		{
			name:       "cooldown active",
			err:        &service.CooldownError{Remaining: 3 * time.Hour},
			wantStatus: http.StatusTooManyRequests,
		},
		{
			name:       "item not found",
			err:        repository.ErrItemNotFound,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "item inactive",
			err:        service.ErrItemUnavailable,
			wantStatus: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{submitErr: tt.err}
			h := newTestHandler(t, svc)

			req := httptest.NewRequest(http.MethodPost, "/api/user/redemptions", bytes.NewReader(validSubmitBody(t)))
			req.AddCookie(authCookie(t, h, 1))

			rec := httptest.NewRecorder()
			handlerWithAuth := h.authMiddleware.Middleware(http.HandlerFunc(h.SubmitRedemption))
			handlerWithAuth.ServeHTTP(rec, req)

			if rec.Result().StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Result().StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestSubmitRedemption_BalanceGuardLoggedAsError(t *testing.T) {
	svc := &stubService{submitErr: repository.ErrInsufficientBalance}
	h, logs := newObservedHandler(t, svc)

	req := httptest.NewRequest(http.MethodPost, "/api/user/redemptions", bytes.NewReader(validSubmitBody(t)))
	req.AddCookie(authCookie(t, h, 1))

	rec := httptest.NewRecorder()
	handlerWithAuth := h.authMiddleware.Middleware(http.HandlerFunc(h.SubmitRedemption))
	handlerWithAuth.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusPaymentRequired)
	}
	if logs.Len() == 0 {
		t.Fatalf("balance guard fault produced no error-severity log entries")
	}
}

func TestUpdateRedemptionStatus_InvariantFaultsLoggedAsError(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "finalized request", err: repository.ErrRequestFinalized},
		{name: "disallowed transition", err: repository.ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{isAdmin: true, updateStatusErr: tt.err}
			h, logs := newObservedHandler(t, svc)
			router := h.SetupRouter()

			body, _ := json.Marshal(updateRedemptionStatusRequest{Status: "completed"})

			req := httptest.NewRequest(http.MethodPut, "/api/admin/redemptions/8/status", bytes.NewReader(body))
			req.AddCookie(authCookie(t, h, 1))
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			if rec.Result().StatusCode != http.StatusConflict {
				t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusConflict)
			}
			if logs.Len() == 0 {
				t.Fatalf("invariant fault produced no error-severity log entries")
			}
		})
	}
}

func TestSubmitRedemption_InvalidPaymentDetails(t *testing.T) {
	svc := &stubService{}
	h := newTestHandler(t, svc)

	// Реквизиты банка отсутствуют при методе bank_transfer.
	body, _ := json.Marshal(submitRedemptionRequest{ItemID: 1, Method: "bank_transfer"})

	req := httptest.NewRequest(http.MethodPost, "/api/user/redemptions", bytes.NewReader(body))
	req.AddCookie(authCookie(t, h, 1))

	rec := httptest.NewRecorder()
	handlerWithAuth := h.authMiddleware.Middleware(http.HandlerFunc(h.SubmitRedemption))
	handlerWithAuth.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusUnprocessableEntity)
	}
}

func TestRegisterView_ViaRouter(t *testing.T) {
	svc := &stubService{}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	req := httptest.NewRequest(http.MethodPost, "/api/posts/5/view", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusOK)
	}
}

func TestRegisterView_NotFound(t *testing.T) {
	svc := &stubService{registerViewErr: repository.ErrPostNotFound}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	req := httptest.NewRequest(http.MethodPost, "/api/posts/99/view", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusNotFound)
	}
}

func TestAdminRoutes_ForbiddenForRegularUser(t *testing.T) {
	svc := &stubService{isAdmin: false}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/admin/redemptions", nil)
	req.AddCookie(authCookie(t, h, 1))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusForbidden)
	}
}

func TestAdminRoutes_UnauthorizedWithoutCookie(t *testing.T) {
	svc := &stubService{isAdmin: true}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/admin/redemptions", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestSetPostStatus_BonusFlag(t *testing.T) {
	svc := &stubService{isAdmin: true, setStatusAwarded: true}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	body, _ := json.Marshal(setPostStatusRequest{Status: "published"})

	req := httptest.NewRequest(http.MethodPut, "/api/admin/posts/3/status", bytes.NewReader(body))
	req.AddCookie(authCookie(t, h, 1))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var resp map[string]bool
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp["bonus_awarded"] {
		t.Fatalf("bonus_awarded = false, want true")
	}
}

func TestAdjustPoints_PaymentRequiredOnOverdraft(t *testing.T) {
	svc := &stubService{isAdmin: true, adjustErr: repository.ErrInsufficientBalance}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	body, _ := json.Marshal(adjustPointsRequest{Amount: -500, Reason: "cleanup"})

	req := httptest.NewRequest(http.MethodPost, "/api/admin/users/2/points", bytes.NewReader(body))
	req.AddCookie(authCookie(t, h, 1))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusPaymentRequired)
	}
}

func TestUpdateRedemptionStatus_ConflictOnFinalized(t *testing.T) {
	svc := &stubService{isAdmin: true, updateStatusErr: repository.ErrRequestFinalized}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	body, _ := json.Marshal(updateRedemptionStatusRequest{Status: "rejected"})

	req := httptest.NewRequest(http.MethodPut, "/api/admin/redemptions/8/status", bytes.NewReader(body))
	req.AddCookie(authCookie(t, h, 1))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Result().StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Result().StatusCode, http.StatusConflict)
	}
}

func TestGetCatalog_JSONResponse(t *testing.T) {
	svc := &stubService{catalogResp: []model.RedemptionItem{
		{ID: 1, Name: "Voucher 50k", PointCost: 100, RupiahValue: 50000, IsActive: true},
	}}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/redemptions/catalog", nil)
	req.AddCookie(authCookie(t, h, 1))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var resp []catalogItemResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp) != 1 || resp[0].PointCost != 100 {
		t.Fatalf("catalog = %+v, want one item with point cost 100", resp)
	}
}
