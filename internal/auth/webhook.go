package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	svix "github.com/svix/svix-webhooks/go"
)

// Webhook署名ヘッダー（Svix形式）
const (
	HeaderWebhookID        = "svix-id"
	HeaderWebhookTimestamp = "svix-timestamp"
	HeaderWebhookSignature = "svix-signature"
)

var (
	// ErrMissingWebhookHeaders は署名ヘッダーが欠けている場合のエラー。
	ErrMissingWebhookHeaders = errors.New("missing webhook signature headers")
	// ErrInvalidWebhookSignature は署名またはタイムスタンプが不正な場合のエラー。
	ErrInvalidWebhookSignature = errors.New("invalid webhook signature")
)

// WebhookVerifier はIdPから送られるWebhookの署名をSvix SDKで検証する。
// タイムスタンプの許容範囲（前後5分）はSDKの既定値に従う。
type WebhookVerifier struct {
	wh *svix.Webhook
}

// NewWebhookVerifier はWebhookVerifierを生成する。
// secretは "whsec_" に続くbase64文字列。
func NewWebhookVerifier(secret string) (*WebhookVerifier, error) {
	secret = strings.TrimSpace(secret)
	if strings.TrimPrefix(secret, "whsec_") == "" {
		return nil, errors.New("webhook secret is empty")
	}

	wh, err := svix.NewWebhook(secret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize webhook verifier: %w", err)
	}

	return &WebhookVerifier{wh: wh}, nil
}

// Verify はリクエストヘッダーとボディから署名を検証する。
func (v *WebhookVerifier) Verify(header http.Header, body []byte) error {
	if header.Get(HeaderWebhookID) == "" ||
		header.Get(HeaderWebhookTimestamp) == "" ||
		header.Get(HeaderWebhookSignature) == "" {
		return ErrMissingWebhookHeaders
	}

	if err := v.wh.Verify(body, header); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidWebhookSignature, err)
	}
	return nil
}
