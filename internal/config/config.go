package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// IdP（セッショントークン検証）
	IdPJWTPublicKey   string `envconfig:"IDP_JWT_PUBLIC_KEY"`
	IdPJWTSecret      string `envconfig:"IDP_JWT_SECRET"`
	IdPIssuer         string `envconfig:"IDP_ISSUER"`
	IdPSessionCookie  string `envconfig:"IDP_SESSION_COOKIE" default:"__session"`
	WebhookSecret     string `envconfig:"WEBHOOK_SECRET"`
	WebhookSkipVerify bool   `envconfig:"WEBHOOK_SKIP_VERIFY" default:"false"`

	// Todo
	TodosPerPage int `envconfig:"TODOS_PER_PAGE" default:"10"`

	// Rate Limit（req/min）
	RateLimitGeneral  int `envconfig:"RATE_LIMIT_GENERAL" default:"120"`
	RateLimitMutation int `envconfig:"RATE_LIMIT_MUTATION" default:"60"`

	// Worker
	ExpirySweepInterval time.Duration `envconfig:"EXPIRY_SWEEP_INTERVAL" default:"1h"`
	WorkerMetricsPort   string        `envconfig:"WORKER_METRICS_PORT" default:"9091"`

	// Log
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Server
	ServerPort string `envconfig:"SERVER_PORT" default:"8080"`
	BaseURL    string `envconfig:"BASE_URL" default:"http://localhost:8080"`

	// Cookie
	CookieSecure bool   `ignored:"true"`
	CookieDomain string `envconfig:"COOKIE_DOMAIN"`

	// CORS
	CORSAllowedOrigin string `envconfig:"CORS_ALLOWED_ORIGIN" default:"http://localhost:3000"`
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")

	return &cfg, nil
}

// validate はenvconfigのタグで表現できない組み合わせ制約を検証する。
func (c *Config) validate() error {
	var missing []string

	// envconfigのrequiredは空文字の設定値を許容するため明示的に確認する
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	// トークン検証にはPEM公開鍵か共有シークレットのどちらかが必要
	if c.IdPJWTPublicKey == "" && c.IdPJWTSecret == "" {
		missing = append(missing, "IDP_JWT_PUBLIC_KEY or IDP_JWT_SECRET")
	}

	if c.WebhookSecret == "" && !c.WebhookSkipVerify {
		missing = append(missing, "WEBHOOK_SECRET")
	}

	if len(missing) > 0 {
		return fmt.Errorf("required environment variables are not set: %v", missing)
	}

	if c.TodosPerPage < 1 {
		return errors.New("TODOS_PER_PAGE must be at least 1")
	}

	return nil
}
