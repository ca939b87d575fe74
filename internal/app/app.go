package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/todomaster/internal/auth"
	"github.com/hitoshi/todomaster/internal/config"
	"github.com/hitoshi/todomaster/internal/database"
	"github.com/hitoshi/todomaster/internal/handler"
	"github.com/hitoshi/todomaster/internal/logger"
	"github.com/hitoshi/todomaster/internal/metrics"
	"github.com/hitoshi/todomaster/internal/middleware"
	"github.com/hitoshi/todomaster/internal/repository"
	"github.com/hitoshi/todomaster/internal/subscription"
	"github.com/hitoshi/todomaster/internal/todo"
	"github.com/hitoshi/todomaster/internal/user"
	"github.com/hitoshi/todomaster/internal/validation"
	"github.com/hitoshi/todomaster/internal/worker/expiry"
)

// shutdownTimeout はグレースフルシャットダウンの待機上限。
const shutdownTimeout = 30 * time.Second

// Init はアプリケーションの初期化を行う。
// .envファイルがあれば環境変数として読み込み（既存の環境変数は上書きしない）、
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, nil)

	// 2. .envの読み込み。ファイルが無いのは通常運用
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to load .env file", slog.String("error", err.Error()))
	}

	// 3. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 4. 設定されたログレベルで再初期化
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg, ParseMigrateDirection(args))
	default:
		return runServe(cfg)
	}
}

// newMetrics はプロセス単位のPrometheusレジストリとCollectorを生成する。
// Goランタイムとプロセスのメトリクスも合わせて登録する。
func newMetrics() (*prometheus.Registry, *metrics.Collector) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.NewCollector(reg)
}

// openDB はDB接続を開き、疎通を確認する。
func openDB(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

// buildRouter はAPIサーバーの全依存関係をワイヤリングしてルーターを構築する。
// 返されるRateLimiterはシャットダウン時にStopすること。
func buildRouter(cfg *config.Config, db *sql.DB, reg *prometheus.Registry, collector *metrics.Collector) (http.Handler, *middleware.RateLimiter, error) {
	// 1. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	todoRepo := repository.NewPostgresTodoRepo(db)

	// 2. ドメインサービスの初期化
	subService := subscription.NewService(userRepo, collector)
	userService := user.NewService(userRepo, subService, collector)
	todoService := todo.NewService(todoRepo, collector, cfg.TodosPerPage)

	// 3. 認証の初期化
	tokenVerifier, err := auth.NewTokenVerifier(auth.TokenVerifierConfig{
		PublicKeyPEM: cfg.IdPJWTPublicKey,
		Secret:       cfg.IdPJWTSecret,
		Issuer:       cfg.IdPIssuer,
		Leeway:       5 * time.Second,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize token verifier: %w", err)
	}

	var webhookVerifier handler.WebhookVerifier
	if cfg.WebhookSkipVerify {
		slog.Warn("webhook signature verification is disabled")
	} else {
		v, err := auth.NewWebhookVerifier(cfg.WebhookSecret)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize webhook verifier: %w", err)
		}
		webhookVerifier = v
	}

	// 4. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitMutation),
	)

	deps := &handler.RouterDeps{
		Logger:          slog.Default(),
		HealthChecker:   db,
		MetricsGatherer: reg,
		Metrics:         collector,
		Validator:       validation.New(),

		TokenVerifier:     tokenVerifier,
		SessionCookieName: cfg.IdPSessionCookie,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CSRF: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		RateLimiter: rateLimiter,

		WebhookVerifier: webhookVerifier,

		TodoService:         handler.NewTodoServiceAdapter(todoService),
		SubscriptionService: handler.NewSubscriptionServiceAdapter(subService),
		UserService:         handler.NewUserServiceAdapter(userService),
	}

	return handler.NewRouter(deps), rateLimiter, nil
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	reg, collector := newMetrics()
	router, rateLimiter, err := buildRouter(cfg, db, reg, collector)
	if err != nil {
		return err
	}
	defer rateLimiter.Stop()

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-stop:
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
	}
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、期限切れサブスクリプションの一括解除ジョブを定期実行する。
// ジョブのメトリクスはWORKER_METRICS_PORTの/metricsで公開する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	reg, collector := newMetrics()
	userRepo := repository.NewPostgresUserRepo(db)
	subService := subscription.NewService(userRepo, collector)
	job := expiry.NewJob(subService, slog.Default())

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           metrics.SetupMetricsRoute(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker metrics server error", slog.String("error", err.Error()))
		}
	}()

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("worker starting",
		slog.Duration("sweep_interval", cfg.ExpirySweepInterval),
		slog.String("metrics_addr", metricsServer.Addr),
	)

	// ジョブをメインgoroutineで実行（ブロッキング）
	job.Start(ctx, cfg.ExpirySweepInterval)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("worker metrics server shutdown failed", slog.String("error", err.Error()))
	}

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// MigrateUpでは未適用のマイグレーションをすべて順番に適用し、
// MigrateDownでは直近のマイグレーションを1つ戻す。
func runMigrate(cfg *config.Config, direction MigrateDirection) error {
	slog.Info("running database migrations",
		slog.String("direction", string(direction)),
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if direction == MigrateDown {
		if err := database.RollbackMigration(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migration rollback failed: %w", err)
		}
	} else if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, applied, err := database.CurrentVersion(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	slog.Info("database migrations completed successfully",
		slog.String("direction", string(direction)),
		slog.Uint64("version", uint64(version)),
		slog.Bool("applied", applied),
		slog.Bool("dirty", dirty),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
