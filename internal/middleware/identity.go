// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/todomaster/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userIDContextKey はリクエストコンテキストにユーザーIDを格納するためのキー。
var userIDContextKey = contextKey("user_id")

// errNoUserID はコンテキストにユーザーIDが存在しないことを示す。
var errNoUserID = errors.New("user ID not found in context")

// TokenVerifier は外部IDプロバイダーが発行したセッショントークンを検証し、ユーザーIDを返す。
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// NewIdentityMiddleware はリクエストからセッショントークンを読み取り、
// 検証済みのユーザーIDをリクエストコンテキストに注入するミドルウェアを返す。
// トークンはAuthorizationヘッダー（Bearer）を優先し、なければcookieNameのCookieから読む。
// 未認証リクエストには401 UNAUTHENTICATEDを返す。
func NewIdentityMiddleware(verifier TokenVerifier, cookieName string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := tokenFromRequest(r, cookieName)
			if token == "" {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
				return
			}

			userID, err := verifier.Verify(token)
			if err != nil || userID == "" {
				slog.Debug("session token rejected",
					slog.String("path", r.URL.Path),
					slog.Any("error", err),
				)
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
				return
			}

			recordUserIDForLog(r.Context(), userID)
			next.ServeHTTP(w, r.WithContext(ContextWithUserID(r.Context(), userID)))
		})
	}
}

// tokenFromRequest はリクエストからセッショントークンを取り出す。見つからない場合は空文字を返す。
func tokenFromRequest(r *http.Request, cookieName string) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return ""
		}
		return strings.TrimSpace(token)
	}
	if cookieName == "" {
		return ""
	}
	cookie, err := r.Cookie(cookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// hasBearerToken はAuthorizationヘッダーでトークンが送信されているかを返す。
func hasBearerToken(r *http.Request) bool {
	scheme, _, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	return ok && strings.EqualFold(scheme, "Bearer")
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", errNoUserID
	}
	return userID, nil
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}
