package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/massargual/portfolio-api/internal/model"
)

// RateLimiterConfig はレート制限の設定を保持する。
// 公開エンドポイントは未認証のためIPアドレス単位で制限する。
type RateLimiterConfig struct {
	LoginRate       rate.Limit    // ログインAPIのレート（req/sec）
	LoginBurst      int           // ログインAPIのバーストサイズ
	ContactRate     rate.Limit    // 問い合わせAPIのレート（req/sec）
	ContactBurst    int           // 問い合わせAPIのバーストサイズ
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
// ログイン 10 req/min/IP、問い合わせ 5 req/min/IP
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		LoginRate:       rate.Limit(10.0 / 60.0),
		LoginBurst:      10,
		ContactRate:     rate.Limit(5.0 / 60.0),
		ContactBurst:    5,
		CleanupInterval: 5 * time.Minute,
	}
}

// ipLimiter はIPアドレスごとのレートリミッターとアクセス時刻を保持する。
type ipLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter はIPアドレスごとのレート制限を管理する。
// ログインAPIと問い合わせAPIの2種類を独立に提供する。
type RateLimiter struct {
	config RateLimiterConfig

	loginMu       sync.RWMutex
	loginLimiters map[string]*ipLimiter

	contactMu       sync.RWMutex
	contactLimiters map[string]*ipLimiter

	stopCh chan struct{}
}

// NewRateLimiter は新しいRateLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config:          config,
		loginLimiters:   make(map[string]*ipLimiter),
		contactLimiters: make(map[string]*ipLimiter),
		stopCh:          make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

// LoginMiddleware はログインAPI用のレート制限ミドルウェアを返す。
// アカウント単位のログイン試行制限（auth.LoginLimiter）とは独立に動作し、
// IPアドレス単位でエンドポイント自体への流量を抑える。
func (rl *RateLimiter) LoginMiddleware() func(next http.Handler) http.Handler {
	return rl.middleware("login", rl.getOrCreateLoginLimiter, rl.config.LoginRate)
}

// ContactMiddleware は問い合わせAPI用のレート制限ミドルウェアを返す。
func (rl *RateLimiter) ContactMiddleware() func(next http.Handler) http.Handler {
	return rl.middleware("contact", rl.getOrCreateContactLimiter, rl.config.ContactRate)
}

func (rl *RateLimiter) middleware(limitType string, get func(string) *rate.Limiter, r rate.Limit) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ip := clientIP(req)
			limiter := get(ip)

			if !limiter.Allow() {
				writeRateLimitResponse(w, r)
				slog.Warn("rate limit exceeded",
					slog.String("ip", ip),
					slog.String("limit_type", limitType),
				)
				return
			}

			next.ServeHTTP(w, req)
		})
	}
}

// LoginLimiterCount は現在管理されているログインリミッターのエントリ数を返す。
// テストおよびメトリクス用。
func (rl *RateLimiter) LoginLimiterCount() int {
	rl.loginMu.RLock()
	defer rl.loginMu.RUnlock()
	return len(rl.loginLimiters)
}

// ContactLimiterCount は現在管理されている問い合わせリミッターのエントリ数を返す。
// テストおよびメトリクス用。
func (rl *RateLimiter) ContactLimiterCount() int {
	rl.contactMu.RLock()
	defer rl.contactMu.RUnlock()
	return len(rl.contactLimiters)
}

// getOrCreateLoginLimiter はIPのログインリミッターを取得または作成する。
func (rl *RateLimiter) getOrCreateLoginLimiter(ip string) *rate.Limiter {
	rl.loginMu.RLock()
	il, exists := rl.loginLimiters[ip]
	rl.loginMu.RUnlock()

	if exists {
		rl.loginMu.Lock()
		il.lastAccess = time.Now()
		rl.loginMu.Unlock()
		return il.limiter
	}

	rl.loginMu.Lock()
	defer rl.loginMu.Unlock()

	// ダブルチェック
	if il, exists := rl.loginLimiters[ip]; exists {
		il.lastAccess = time.Now()
		return il.limiter
	}

	limiter := rate.NewLimiter(rl.config.LoginRate, rl.config.LoginBurst)
	rl.loginLimiters[ip] = &ipLimiter{
		limiter:    limiter,
		lastAccess: time.Now(),
	}

	return limiter
}

// getOrCreateContactLimiter はIPの問い合わせリミッターを取得または作成する。
func (rl *RateLimiter) getOrCreateContactLimiter(ip string) *rate.Limiter {
	rl.contactMu.RLock()
	il, exists := rl.contactLimiters[ip]
	rl.contactMu.RUnlock()

	if exists {
		rl.contactMu.Lock()
		il.lastAccess = time.Now()
		rl.contactMu.Unlock()
		return il.limiter
	}

	rl.contactMu.Lock()
	defer rl.contactMu.Unlock()

	// ダブルチェック
	if il, exists := rl.contactLimiters[ip]; exists {
		il.lastAccess = time.Now()
		return il.limiter
	}

	limiter := rate.NewLimiter(rl.config.ContactRate, rl.config.ContactBurst)
	rl.contactLimiters[ip] = &ipLimiter{
		limiter:    limiter,
		lastAccess: time.Now(),
	}

	return limiter
}

// cleanupLoop はバックグラウンドで期限切れエントリを定期的にクリーンアップする。
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup は最終アクセス時刻がCleanupIntervalの2倍を超えたエントリを削除する。
func (rl *RateLimiter) cleanup() {
	ttl := rl.config.CleanupInterval * 2

	now := time.Now()

	rl.loginMu.Lock()
	for ip, il := range rl.loginLimiters {
		if now.Sub(il.lastAccess) > ttl {
			delete(rl.loginLimiters, ip)
		}
	}
	rl.loginMu.Unlock()

	rl.contactMu.Lock()
	for ip, il := range rl.contactLimiters {
		if now.Sub(il.lastAccess) > ttl {
			delete(rl.contactLimiters, ip)
		}
	}
	rl.contactMu.Unlock()
}

// clientIP はリクエストの送信元IPアドレスを取り出す。
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeRateLimitResponse は429 Too Many Requestsレスポンスを書き込む。
// Retry-Afterヘッダーにはトークンが補充されるまでの推定秒数を設定する。
func writeRateLimitResponse(w http.ResponseWriter, r rate.Limit) {
	// Retry-Afterの算出: 1トークンが補充されるまでの秒数
	retryAfterSec := int(math.Ceil(1.0 / float64(r)))
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	WriteErrorResponse(w, http.StatusTooManyRequests, &model.APIError{
		Code:     "RATE_LIMIT_EXCEEDED",
		Message:  "Too many requests. Please try again later.",
		Category: "system",
		Action:   "Please wait and retry after the specified time.",
	})
}
