package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Auth（外部認証サービス）
	AuthURL     string // 認証サービスのベースURL（例: https://xyz.supabase.co/auth/v1）
	AuthAPIKey  string // 認証サービスの公開APIキー
	AuthTimeout time.Duration

	// Store
	StoreTimeout time.Duration // ストア・認証呼び出しの打ち切り時間

	// Login guard
	LoginMaxAttempts   int           // ロックアウトまでの連続失敗回数
	LoginLockoutWindow time.Duration // ロックアウトウィンドウ

	// Rate Limit（req/min）
	RateLimitLogin   int
	RateLimitContact int

	// Session cookie
	AccessCookieMaxAge  int // アクセストークンCookieの有効期間（秒）
	RefreshCookieMaxAge int // リフレッシュトークンCookieの有効期間（秒）

	// Server
	ServerPort string
	BaseURL    string
	SiteTitle  string // Atomフィード等で使うサイト名

	// Cookie
	CookieSecure bool
	CookieDomain string

	// Image
	ImageURLProbe bool // 保存時にアイキャッチ画像URLへ実際にHEADリクエストを送るか
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envがあれば先に読み込む（未存在は無視）。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.AuthURL = os.Getenv("AUTH_URL")
	if cfg.AuthURL == "" {
		missing = append(missing, "AUTH_URL")
	}

	cfg.AuthAPIKey = os.Getenv("AUTH_API_KEY")
	if cfg.AuthAPIKey == "" {
		missing = append(missing, "AUTH_API_KEY")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.AuthTimeout = getEnvDuration("AUTH_TIMEOUT", 10*time.Second)
	cfg.StoreTimeout = getEnvDuration("STORE_TIMEOUT", 10*time.Second)
	cfg.LoginMaxAttempts = getEnvInt("LOGIN_MAX_ATTEMPTS", 5)
	cfg.LoginLockoutWindow = getEnvDuration("LOGIN_LOCKOUT_WINDOW", 15*time.Minute)
	cfg.RateLimitLogin = getEnvInt("RATE_LIMIT_LOGIN", 10)
	cfg.RateLimitContact = getEnvInt("RATE_LIMIT_CONTACT", 5)
	cfg.AccessCookieMaxAge = getEnvInt("ACCESS_COOKIE_MAX_AGE", 3600)
	cfg.RefreshCookieMaxAge = getEnvInt("REFRESH_COOKIE_MAX_AGE", 604800)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.SiteTitle = getEnvString("SITE_TITLE", "Portfolio Blog")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.ImageURLProbe = getEnvBool("IMAGE_URL_PROBE", false)

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
