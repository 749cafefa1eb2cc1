// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/massargual/portfolio-api/internal/auth"
)

const (
	adminPrefix = "/admin"
	loginPath   = "/admin/login"
)

// gateExemptPaths はトークン検査を適用しない管理サブパス。
// ログインは未認証で到達する必要がある。リフレッシュは期限切れの
// アクセストークンを前提とし、リフレッシュトークンで認証する。
// ログアウトはCookieを破棄するだけでトークンの有効性を問わない。
var gateExemptPaths = []string{
	loginPath,
	"/admin/logout",
	"/admin/session/refresh",
}

// sensitivePathPatterns は存在を秘匿すべきパスのパターン。
// スキャナーからのプローブには404を返し、それ以上の処理を行わない。
var sensitivePathPatterns = []string{
	"/.env",
	"/.git",
	"/.htaccess",
	"/.aws",
	"/wp-admin",
	"/wp-login",
	"/xmlrpc.php",
	"/phpmyadmin",
	"/config.json",
	"/package.json",
	"/composer.json",
	"/yarn.lock",
	"/package-lock.json",
}

// AdminGate は管理パスへのエッジアクセス制御を行うミドルウェア。
//
// トークンは3セグメント形状とexpクレームのみを検査し、署名検証は行わない。
// このゲートは未認証ユーザーを早期にログイン画面へ誘導するための
// 粗いフィルタであり、認可の根拠にしてはならない。状態変更操作は
// 必ずRequireUserによる認証サービスでの本検証を経由する。
type AdminGate struct {
	cookies *auth.CookieManager
	parser  *jwt.Parser
	metrics GateMetrics

	// now はテストで時刻を差し替えるためのフック。
	now func() time.Time
}

// GateMetrics はゲートでのブロックを記録するインターフェース。
type GateMetrics interface {
	RecordGateBlock(kind string)
}

// NewAdminGate はAdminGateを生成する。metricsはnil可。
func NewAdminGate(cookies *auth.CookieManager, metrics GateMetrics) *AdminGate {
	return &AdminGate{
		cookies: cookies,
		parser:  jwt.NewParser(),
		metrics: metrics,
		now:     time.Now,
	}
}

// Middleware はエッジアクセス制御のミドルウェアを返す。
// リクエストごとの判定:
//  1. センシティブなパスパターンに一致 → 即404
//  2. 管理パス（ログイン・リフレッシュ・ログアウトを除く）でトークン欠落・不正・期限切れ → ログインへリダイレクト
//  3. それ以外 → 素通し
func (g *AdminGate) Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path

			if isSensitivePath(path) {
				slog.Warn("sensitive path probe blocked",
					slog.String("path", path),
					slog.String("remote_addr", r.RemoteAddr),
				)
				g.recordBlock("sensitive_path")
				http.NotFound(w, r)
				return
			}

			if !isProtectedAdminPath(path) {
				next.ServeHTTP(w, r)
				return
			}

			token := auth.ReadAccessToken(r)
			if token == "" {
				g.recordBlock("missing_token")
				g.redirectToLogin(w, r, false)
				return
			}

			if !g.tokenLooksValid(token) {
				// 壊れた・期限切れのCookieは破棄してからリダイレクトする
				g.recordBlock("invalid_token")
				g.redirectToLogin(w, r, true)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// tokenLooksValid はトークンの構造と期限クレームを検査する。
func (g *AdminGate) tokenLooksValid(token string) bool {
	if strings.Count(token, ".") != 2 {
		return false
	}

	claims := jwt.MapClaims{}
	if _, _, err := g.parser.ParseUnverified(token, claims); err != nil {
		return false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return false
	}
	if exp != nil && exp.Before(g.now()) {
		return false
	}

	return true
}

// redirectToLogin はログインパスへリダイレクトする。
// 元のリクエストパスをredirectクエリパラメータで引き継ぐ。
func (g *AdminGate) redirectToLogin(w http.ResponseWriter, r *http.Request, clearCookies bool) {
	if clearCookies {
		g.cookies.Clear(w)
	}

	target := loginPath + "?redirect=" + url.QueryEscape(r.URL.Path)
	http.Redirect(w, r, target, http.StatusFound)
}

// recordBlock はブロックをメトリクスに記録する。
func (g *AdminGate) recordBlock(kind string) {
	if g.metrics != nil {
		g.metrics.RecordGateBlock(kind)
	}
}

// isSensitivePath はパスがセンシティブなパターンに一致するか判定する。
func isSensitivePath(path string) bool {
	lower := strings.ToLower(path)
	for _, pattern := range sensitivePathPatterns {
		if strings.HasPrefix(lower, pattern) {
			return true
		}
	}
	return false
}

// isProtectedAdminPath は管理プレフィックス配下かつ検査対象外サブパス以外か判定する。
func isProtectedAdminPath(path string) bool {
	if path != adminPrefix && !strings.HasPrefix(path, adminPrefix+"/") {
		return false
	}
	for _, exempt := range gateExemptPaths {
		if path == exempt || strings.HasPrefix(path, exempt+"/") {
			return false
		}
	}
	return true
}
