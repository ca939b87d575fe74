package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/todomaster/internal/model"
)

const (
	// csrfCookieName はCSRFトークンを保持するCookieの名前。
	// フロントエンドからJavaScriptで読み取れるよう、HttpOnlyではない。
	csrfCookieName = "csrf_token"

	// csrfHeaderName はフロントエンドがトークンを送り返すヘッダー名。
	csrfHeaderName = "X-CSRF-Token"

	// csrfTokenBytes はトークンの乱数バイト数。
	csrfTokenBytes = 32

	defaultCSRFMaxAge = 24 * time.Hour
)

var (
	errCSRFCookieMissing = errors.New("csrf cookie missing")
	errCSRFHeaderMissing = errors.New("csrf header missing")
	errCSRFMismatch      = errors.New("csrf token mismatch")
)

// CSRFConfig はCSRFミドルウェアの設定。
// MaxAgeが0の場合は24時間。
type CSRFConfig struct {
	CookieSecure bool
	CookieDomain string
	MaxAge       time.Duration
}

func (c CSRFConfig) maxAge() time.Duration {
	if c.MaxAge <= 0 {
		return defaultCSRFMaxAge
	}
	return c.MaxAge
}

// csrfTokenResponse はGET /api/csrf-tokenのレスポンスボディ。
type csrfTokenResponse struct {
	Token string `json:"token"`
}

// NewCSRFMiddleware はセッションCookieで認証されたリクエスト向けのダブルサブミットCSRF対策を返す。
//
// GET/HEAD/OPTIONSは検証せず、トークンCookieが無ければ発行する。
// 更新系メソッドはCookieとX-CSRF-Tokenヘッダーの一致を要求する。
// Authorizationヘッダーはブラウザが自動付与しないため、Bearer認証のリクエストは検証しない。
func NewCSRFMiddleware(config CSRFConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch {
			case isSafeMethod(r.Method):
				if _, ok := currentCSRFToken(r); !ok {
					if _, err := issueCSRFToken(w, config); err != nil {
						slog.Error("failed to issue CSRF token", slog.String("error", err.Error()))
					}
				}
			case hasBearerToken(r):
			default:
				if err := checkCSRFToken(r); err != nil {
					slog.Warn("CSRF validation failed",
						slog.String("reason", err.Error()),
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
					)
					WriteErrorResponse(w, http.StatusForbidden, model.NewCSRFError())
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// NewCSRFTokenHandler はGET /api/csrf-tokenのハンドラーを返す。
// Cookieに有効なトークンがあればそれを返し、無ければ発行して返す。
func NewCSRFTokenHandler(config CSRFConfig) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := currentCSRFToken(r)
		if !ok {
			var err error
			token, err = issueCSRFToken(w, config)
			if err != nil {
				slog.Error("failed to issue CSRF token", slog.String("error", err.Error()))
				WriteInternalServerError(w)
				return
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(csrfTokenResponse{Token: token}); err != nil {
			slog.Error("failed to encode CSRF token response", slog.String("error", err.Error()))
		}
	})
}

// currentCSRFToken はリクエストのCookieに保持されたトークンを返す。
func currentCSRFToken(r *http.Request) (string, bool) {
	c, err := r.Cookie(csrfCookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

// checkCSRFToken はCookieとヘッダーのトークンを定数時間で照合する。
func checkCSRFToken(r *http.Request) error {
	cookieToken, ok := currentCSRFToken(r)
	if !ok {
		return errCSRFCookieMissing
	}
	headerToken := r.Header.Get(csrfHeaderName)
	if headerToken == "" {
		return errCSRFHeaderMissing
	}
	if subtle.ConstantTimeCompare([]byte(cookieToken), []byte(headerToken)) != 1 {
		return errCSRFMismatch
	}
	return nil
}

// issueCSRFToken は新しいトークンを生成してCookieに書き込み、そのトークンを返す。
func issueCSRFToken(w http.ResponseWriter, config CSRFConfig) (string, error) {
	b := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	token := base64.RawURLEncoding.EncodeToString(b)

	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		Domain:   config.CookieDomain,
		MaxAge:   int(config.maxAge().Seconds()),
		HttpOnly: false,
		Secure:   config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return token, nil
}

// isSafeMethod は状態を変更しないHTTPメソッドかどうかを判定する。
func isSafeMethod(method string) bool {
	return method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions
}
