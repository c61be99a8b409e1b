// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// MinJWTSecretLength はHS256署名鍵として受け付けるJWT_SECRETの最小バイト数。
const MinJWTSecretLength = 32

// Config はアプリケーション全体の設定を保持する。
// 起動時に1回読み込み、イミュータブルとして各コンポーネントへ注入する。
type Config struct {
	// Database
	DatabaseURL string `env:"DATABASE_URL,notEmpty"`

	// Token
	JWTSecret string        `env:"JWT_SECRET,notEmpty"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"168h"`

	// OAuth
	GoogleClientID     string `env:"GOOGLE_CLIENT_ID,notEmpty"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET,notEmpty"`
	GoogleRedirectURL  string `env:"GOOGLE_REDIRECT_URL,notEmpty"`

	// Client
	ClientURL string `env:"CLIENT_URL,notEmpty"`

	// Rate Limit（req/min）
	RateLimitGeneral   int `env:"RATE_LIMIT_GENERAL" envDefault:"120"`
	RateLimitTaskWrite int `env:"RATE_LIMIT_TASK_WRITE" envDefault:"60"`

	// Logging
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`

	// Server
	ServerPort string `env:"SERVER_PORT" envDefault:"8080"`

	// Cookie
	CookieDomain string `env:"COOKIE_DOMAIN"`
	CookieSecure bool   `env:"-"`

	// CORS（未指定の場合はCLIENT_URLのみ許可）
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
}

// Load は.envファイル（存在する場合）と環境変数からConfigを読み込む。
// 必須環境変数が未設定または値が不正な場合はエラーを返す。
func Load() (*Config, error) {
	// .envが無い環境（本番・テスト）では何もしない
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("invalid environment variables: %w", err)
	}

	cfg.ClientURL = strings.TrimRight(cfg.ClientURL, "/")
	cfg.CookieSecure = strings.HasPrefix(cfg.ClientURL, "https://")
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{cfg.ClientURL}
	}

	if len(cfg.JWTSecret) < MinJWTSecretLength {
		return nil, fmt.Errorf("invalid environment variables: JWT_SECRET must be at least %d bytes, got %d", MinJWTSecretLength, len(cfg.JWTSecret))
	}
	if cfg.TokenTTL <= 0 {
		return nil, fmt.Errorf("invalid environment variables: TOKEN_TTL must be positive, got %s", cfg.TokenTTL)
	}
	if cfg.RateLimitGeneral <= 0 || cfg.RateLimitTaskWrite <= 0 {
		return nil, fmt.Errorf("invalid environment variables: rate limits must be positive")
	}

	return cfg, nil
}

// TokenMaxAge はトークンCookieのMax-Age（秒）を返す。
func (c *Config) TokenMaxAge() int {
	return int(c.TokenTTL / time.Second)
}
