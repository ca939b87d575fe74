// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, todo, subscription, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthenticated = "UNAUTHENTICATED"
	ErrCodeUserNotFound    = "USER_NOT_FOUND"
	ErrCodeTodoNotFound    = "TODO_NOT_FOUND"
	ErrCodeForbidden       = "FORBIDDEN"
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeInvalidRequest  = "INVALID_REQUEST"
	ErrCodeCSRF            = "CSRF_TOKEN_INVALID"
	ErrCodeWebhookInvalid  = "WEBHOOK_SIGNATURE_INVALID"
	ErrCodeRateLimited     = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal        = "INTERNAL_ERROR"
)

// IsCode はerrのチェーンに指定コードのAPIErrorが含まれるかを返す。
func IsCode(err error, code string) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}

// NewUnauthenticatedError は未認証エラーを生成する。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewTodoNotFoundError はtodo未検出エラーを生成する。
func NewTodoNotFoundError(todoID string) *APIError {
	return &APIError{
		Code:     ErrCodeTodoNotFound,
		Message:  fmt.Sprintf("指定されたtodoが見つかりません: %s", todoID),
		Category: "todo",
		Action:   "一覧を再読み込みしてください。",
	}
}

// NewForbiddenError は他ユーザーのリソースへの操作を拒否するエラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "このtodoを操作する権限がありません。",
		Category: "todo",
		Action:   "自分が作成したtodoのみ操作できます。",
	}
}

// NewEmptyTitleError はタイトルが空の場合のエラーを生成する。
func NewEmptyTitleError() *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  "タイトルが空です。",
		Category: "validation",
		Action:   "タイトルを入力してください。",
	}
}

// NewTitleTooLongError はタイトルが上限を超えた場合のエラーを生成する。
func NewTitleTooLongError(max int) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("タイトルが長すぎます（最大%d文字）。", max),
		Category: "validation",
		Action:   "タイトルを短くしてください。",
	}
}

// NewValidationError は汎用の入力検証エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  reason,
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewInvalidRequestError はリクエストボディが解釈できない場合のエラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "リクエストボディが不正です。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewCSRFError はCSRFトークン検証に失敗した場合のエラーを生成する。
func NewCSRFError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRF,
		Message:  "CSRFトークンの検証に失敗しました。",
		Category: "auth",
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}

// NewWebhookSignatureError はWebhook署名の検証に失敗した場合のエラーを生成する。
func NewWebhookSignatureError() *APIError {
	return &APIError{
		Code:     ErrCodeWebhookInvalid,
		Message:  "Webhookの署名を検証できませんでした。",
		Category: "auth",
		Action:   "署名シークレットの設定を確認してください。",
	}
}

// NewRateLimitedError はレート制限超過のエラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "指定された時間が経過してから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。原因はログにのみ出力し、ユーザーには汎用メッセージを返す。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
