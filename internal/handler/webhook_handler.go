package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/todomaster/internal/model"
	"github.com/hitoshi/todomaster/internal/validation"
)

// webhookMaxBodyBytes はWebhookリクエストボディの上限サイズ。
const webhookMaxBodyBytes = 1 << 20

// eventTypeUserCreated はIDプロバイダーのユーザー作成イベント。
const eventTypeUserCreated = "user.created"

// WebhookVerifier はWebhookリクエストの署名を検証する。
type WebhookVerifier interface {
	Verify(header http.Header, body []byte) error
}

// UserRegistrar はWebhookからのユーザー登録に必要なインターフェース。
type UserRegistrar interface {
	Register(ctx context.Context, userID, email string) (bool, error)
}

// WebhookHandler はIDプロバイダーからのWebhookを受け付けるHTTPハンドラー。
type WebhookHandler struct {
	verifier  WebhookVerifier
	users     UserRegistrar
	validator *validation.Validator
}

// NewWebhookHandler はWebhookHandlerを生成する。
// verifierがnilの場合は署名検証を行わない（開発環境専用）。
func NewWebhookHandler(verifier WebhookVerifier, users UserRegistrar, validator *validation.Validator) *WebhookHandler {
	return &WebhookHandler{
		verifier:  verifier,
		users:     users,
		validator: validator,
	}
}

// webhookEvent はWebhookの共通エンベロープ。
type webhookEvent struct {
	Type string          `json:"type" validate:"required"`
	Data json.RawMessage `json:"data"`
}

// userCreatedData はuser.createdイベントのdata部。
type userCreatedData struct {
	ID                    string                `json:"id" validate:"required"`
	PrimaryEmailAddressID string                `json:"primary_email_address_id"`
	EmailAddresses        []webhookEmailAddress `json:"email_addresses" validate:"dive"`
}

type webhookEmailAddress struct {
	ID           string `json:"id" validate:"required"`
	EmailAddress string `json:"email_address" validate:"required,email"`
}

// primaryEmail はprimary_email_address_idに一致するメールアドレスを返す。
func (d *userCreatedData) primaryEmail() (string, bool) {
	for _, e := range d.EmailAddresses {
		if e.ID == d.PrimaryEmailAddressID {
			return e.EmailAddress, true
		}
	}
	return "", false
}

// Receive はWebhookを受け付け、user.createdイベントでユーザーを登録する。
// 同一イベントの再送は登録済みとして成功を返す。それ以外のイベントは無視する。
// POST /api/webhooks/idp
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, webhookMaxBodyBytes))
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	if h.verifier != nil {
		if err := h.verifier.Verify(r.Header, body); err != nil {
			slog.Warn("webhook verification failed",
				slog.String("error", err.Error()),
			)
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewWebhookSignatureError())
			return
		}
	}

	var evt webhookEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}
	if err := h.validator.Struct(&evt); err != nil {
		handleServiceError(w, r, err)
		return
	}

	if evt.Type != eventTypeUserCreated {
		slog.Info("webhook event ignored", slog.String("event_type", evt.Type))
		writeJSON(w, http.StatusOK, messageResponse{Message: "Webhook received successfully"})
		return
	}

	var data userCreatedData
	if err := json.Unmarshal(evt.Data, &data); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}
	if err := h.validator.Struct(&data); err != nil {
		handleServiceError(w, r, err)
		return
	}

	email, ok := data.primaryEmail()
	if !ok {
		slog.Warn("webhook user has no primary email", slog.String("user_id", data.ID))
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("プライマリメールアドレスが見つかりません。"))
		return
	}

	if _, err := h.users.Register(r.Context(), data.ID, email); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Webhook received successfully"})
}
