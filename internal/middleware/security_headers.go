package middleware

import (
	"net/http"
	"strings"
)

// NewSecurityHeadersMiddleware はセキュリティ関連のHTTPレスポンスヘッダーを付与するミドルウェアを返す。
// 静的アセットとfaviconを除く全レスポンスに無条件で適用される。
func NewSecurityHeadersMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isStaticAsset(r.URL.Path) {
				w.Header().Set("X-Content-Type-Options", "nosniff")
				w.Header().Set("X-Frame-Options", "DENY")
				w.Header().Set("X-XSS-Protection", "1; mode=block")
				w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// isStaticAsset は静的アセットのパスか判定する。
func isStaticAsset(path string) bool {
	return strings.HasPrefix(path, "/static/") || path == "/favicon.ico"
}
