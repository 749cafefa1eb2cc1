package auth

import (
	"net/http"

	"github.com/massargual/portfolio-api/internal/model"
)

// Cookie名。外部認証サービスのクライアントSDKと互換の名前を使う。
const (
	AccessTokenCookie  = "sb-access-token"
	RefreshTokenCookie = "sb-refresh-token"
)

// CookieConfig はセッションCookieの属性設定。
type CookieConfig struct {
	Secure        bool   // 本番（https）でのみtrue
	Domain        string // 空の場合はホストのみ
	AccessMaxAge  int    // アクセストークンCookieの有効期間（秒）
	RefreshMaxAge int    // リフレッシュトークンCookieの有効期間（秒）
}

// CookieManager はセッションCookieの唯一の書き込み経路。
// 他のコードがこのCookieを直接設定・削除してはならない。
type CookieManager struct {
	config CookieConfig
}

// NewCookieManager はCookieManagerを生成する。
func NewCookieManager(config CookieConfig) *CookieManager {
	return &CookieManager{config: config}
}

// Persist はセッションのトークンをCookieに書き込む。
func (m *CookieManager) Persist(w http.ResponseWriter, session *model.Session) {
	http.SetCookie(w, m.cookie(AccessTokenCookie, session.AccessToken, m.config.AccessMaxAge))
	http.SetCookie(w, m.cookie(RefreshTokenCookie, session.RefreshToken, m.config.RefreshMaxAge))
}

// Clear は両方のトークンCookieを無条件に無効化する。
// セッションが存在しない場合でも常に空値・MaxAge 0で上書きする。
func (m *CookieManager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, m.cookie(AccessTokenCookie, "", -1))
	http.SetCookie(w, m.cookie(RefreshTokenCookie, "", -1))
}

// ReadAccessToken はリクエストからアクセストークンCookieを読み取る。
// 存在しない場合は空文字列を返す。
func ReadAccessToken(r *http.Request) string {
	cookie, err := r.Cookie(AccessTokenCookie)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// ReadRefreshToken はリクエストからリフレッシュトークンCookieを読み取る。
// 存在しない場合は空文字列を返す。
func ReadRefreshToken(r *http.Request) string {
	cookie, err := r.Cookie(RefreshTokenCookie)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func (m *CookieManager) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   m.config.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.config.Secure,
		SameSite: http.SameSiteStrictMode,
	}
}
