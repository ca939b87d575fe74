package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/todomaster/internal/metrics"
	"github.com/hitoshi/todomaster/internal/middleware"
	"github.com/hitoshi/todomaster/internal/validation"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// 共通
	Logger          *slog.Logger
	HealthChecker   HealthChecker
	MetricsGatherer prometheus.Gatherer      // nilの場合/metricsを公開しない
	Metrics         metrics.MetricsCollector // nilの場合HTTPメトリクスを記録しない
	Validator       *validation.Validator

	// ミドルウェア依存
	TokenVerifier     middleware.TokenVerifier
	SessionCookieName string
	CORSAllowedOrigin string
	CSRF              middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter

	// Webhook。nilの場合は署名検証を行わない
	WebhookVerifier WebhookVerifier

	// サービス
	TodoService         TodoServiceInterface
	SubscriptionService SubscriptionServiceInterface
	UserService         UserServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Logging → Recovery → Metrics → SecurityHeaders → CORS
//	  認証ルートのみ: Identity → CSRF → RateLimit(General) → RateLimit(Mutation)
//
// ヘルスチェック、メトリクス、CSRFトークン、Webhookは認証の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	v := deps.Validator
	if v == nil {
		v = validation.New()
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewRecoveryMiddleware())
	if deps.Metrics != nil {
		r.Use(metrics.Middleware(deps.Metrics))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	todoHandler := NewTodoHandler(deps.TodoService, v)
	subHandler := NewSubscriptionHandler(deps.SubscriptionService)
	userHandler := NewUserHandler(deps.UserService, v)
	webhookHandler := NewWebhookHandler(deps.WebhookVerifier, deps.UserService, v)

	// --- 認証不要のルート ---

	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsGatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.MetricsGatherer))
	}
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRF))

	// 署名で認証するためセッションとCSRFの対象外
	r.Post("/api/webhooks/idp", webhookHandler.Receive)

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewIdentityMiddleware(deps.TokenVerifier, deps.SessionCookieName))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRF))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(deps.RateLimiter.MutationMiddleware())

		r.Route("/api/todos", func(r chi.Router) {
			r.Get("/", todoHandler.ListTodos)
			r.Post("/", todoHandler.CreateTodo)
			r.Put("/{id}", todoHandler.ToggleTodo)
			r.Delete("/{id}", todoHandler.DeleteTodo)
		})

		r.Route("/api/subscription", func(r chi.Router) {
			r.Get("/", subHandler.GetStatus)
			r.Post("/", subHandler.Activate)
		})

		r.Get("/api/users/me", userHandler.Me)
		r.Post("/api/sign-up", userHandler.SignUp)
	})

	return r
}
