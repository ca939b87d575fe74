package handler

import (
	"context"
	"net/http"
	"time"
)

// SubscriptionServiceInterface はサブスクリプションハンドラーが必要とするサービスインターフェース。
type SubscriptionServiceInterface interface {
	// GetStatus は期限切れを補正した現在の状態を返す。
	GetStatus(ctx context.Context, userID string) (*subscriptionStatusResponse, error)
	// Activate は現在時刻から1ヶ月間のサブスクリプションを有効化する。
	Activate(ctx context.Context, userID string) (*subscriptionStatusResponse, error)
}

// SubscriptionHandler はサブスクリプション管理のHTTPハンドラー。
type SubscriptionHandler struct {
	service SubscriptionServiceInterface
}

// NewSubscriptionHandler はSubscriptionHandlerを生成する。
func NewSubscriptionHandler(service SubscriptionServiceInterface) *SubscriptionHandler {
	return &SubscriptionHandler{
		service: service,
	}
}

// subscriptionStatusResponse はサブスクリプション状態のAPIレスポンス。
// 未購読の場合subscriptionEndsはnullになる。
type subscriptionStatusResponse struct {
	IsSubscribed     bool       `json:"isSubscribed"`
	SubscriptionEnds *time.Time `json:"subscriptionEnds"`
}

// activateResponse は有効化のAPIレスポンス。
type activateResponse struct {
	Message string `json:"message"`
	subscriptionStatusResponse
}

// GetStatus はサブスクリプション状態を取得する。
// GET /api/subscription
func (h *SubscriptionHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	status, err := h.service.GetStatus(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// Activate はサブスクリプションを有効化する。決済処理は行わない。
// POST /api/subscription
func (h *SubscriptionHandler) Activate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	status, err := h.service.Activate(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, activateResponse{
		Message:                    "Subscribed successfully",
		subscriptionStatusResponse: *status,
	})
}
