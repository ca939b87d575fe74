package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/todomaster/internal/validation"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// Get は期限切れを補正したユーザー情報を返す。
	Get(ctx context.Context, userID string) (*userResponse, error)
	// Register はユーザーを冪等に登録する。新規作成した場合にtrueを返す。
	Register(ctx context.Context, userID, email string) (bool, error)
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	service   UserServiceInterface
	validator *validation.Validator
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface, validator *validation.Validator) *UserHandler {
	return &UserHandler{
		service:   service,
		validator: validator,
	}
}

// userResponse はユーザー情報のAPIレスポンス。
type userResponse struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	IsSubscribed     bool       `json:"isSubscribed"`
	SubscriptionEnds *time.Time `json:"subscriptionEnds"`
	CreatedAt        time.Time  `json:"createdAt"`
}

// signUpRequest はサインアップリクエストのボディ。
type signUpRequest struct {
	EmailAddress string `json:"emailAddress" validate:"required,email,max=320"`
}

// signUpResponse はサインアップのAPIレスポンス。
type signUpResponse struct {
	Message string `json:"message"`
	Created bool   `json:"created"`
}

// Me は認証済みユーザーの情報を返す。
// GET /api/users/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	u, err := h.service.Get(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, u)
}

// SignUp は認証済みユーザー自身をアプリケーションに登録する。
// Webhookの到達が遅れた場合の補完として使用し、登録済みでも成功を返す。
// POST /api/sign-up
func (h *UserHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req signUpRequest
	if err := h.validator.DecodeJSON(r.Body, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	created, err := h.service.Register(r.Context(), userID, req.EmailAddress)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	status := http.StatusOK
	message := "User already registered"
	if created {
		status = http.StatusCreated
		message = "User registered successfully"
	}
	writeJSON(w, status, signUpResponse{Message: message, Created: created})
}
