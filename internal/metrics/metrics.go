// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 期限切れ補正の発生元ラベル
const (
	ExpirySourceRead  = "read"
	ExpirySourceSweep = "sweep"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ミドルウェアやサービス層、ワーカーから利用する。
type MetricsCollector interface {
	RecordTodoCreated()
	RecordTodoToggled()
	RecordTodoDeleted()
	RecordSubscriptionActivated()
	RecordSubscriptionExpired(source string, count int)
	RecordUserRegistered(created bool)
	RecordHTTPRequest(method, route string, statusCode int, duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	todoOps         *prometheus.CounterVec
	subsActivated   prometheus.Counter
	subsExpired     *prometheus.CounterVec
	usersRegistered *prometheus.CounterVec
	httpStatus      *prometheus.CounterVec
	httpLatency     *prometheus.HistogramVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		todoOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "todomaster_todo_operations_total",
			Help: "todo操作（create/toggle/delete）の成功数",
		}, []string{"op"}),
		subsActivated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "todomaster_subscription_activated_total",
			Help: "サブスクリプション有効化の合計数",
		}),
		subsExpired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "todomaster_subscription_expired_total",
			Help: "期限切れとして解除されたサブスクリプション数",
		}, []string{"source"}),
		usersRegistered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "todomaster_user_registration_total",
			Help: "ユーザー登録要求の合計数（created=falseは既存ユーザー）",
		}, []string{"created"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "todomaster_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "todomaster_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		c.todoOps,
		c.subsActivated,
		c.subsExpired,
		c.usersRegistered,
		c.httpStatus,
		c.httpLatency,
	)

	return c
}

// RecordTodoCreated はtodo作成を記録する。
func (c *Collector) RecordTodoCreated() {
	c.todoOps.WithLabelValues("create").Inc()
}

// RecordTodoToggled はtodo完了状態の反転を記録する。
func (c *Collector) RecordTodoToggled() {
	c.todoOps.WithLabelValues("toggle").Inc()
}

// RecordTodoDeleted はtodo削除を記録する。
func (c *Collector) RecordTodoDeleted() {
	c.todoOps.WithLabelValues("delete").Inc()
}

// RecordSubscriptionActivated はサブスクリプション有効化を記録する。
func (c *Collector) RecordSubscriptionActivated() {
	c.subsActivated.Inc()
}

// RecordSubscriptionExpired は期限切れ解除を記録する。
// sourceは ExpirySourceRead または ExpirySourceSweep。
func (c *Collector) RecordSubscriptionExpired(source string, count int) {
	c.subsExpired.WithLabelValues(source).Add(float64(count))
}

// RecordUserRegistered はユーザー登録要求を記録する。
func (c *Collector) RecordUserRegistered(created bool) {
	c.usersRegistered.WithLabelValues(strconv.FormatBool(created)).Inc()
}

// RecordHTTPRequest はHTTPレスポンスのステータスコードと処理時間を記録する。
func (c *Collector) RecordHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
	c.httpLatency.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

// statusRecorder はレスポンスのステータスコードを記録するラッパー。
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware はリクエストごとにステータスコードと処理時間を記録するミドルウェアを返す。
// ラベルのカーディナリティを抑えるため、パスではなくchiのルートパターンを使用する。
func Middleware(c MetricsCollector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if p := rctx.RoutePattern(); p != "" {
					route = p
				}
			}
			c.RecordHTTPRequest(r.Method, route, rec.status, time.Since(start))
		})
	}
}
