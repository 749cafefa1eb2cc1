package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/massargual/portfolio-api/internal/auth"
	"github.com/massargual/portfolio-api/internal/middleware"
	"github.com/massargual/portfolio-api/internal/model"
)

// defaultAdminPath はリダイレクト先が指定されない場合の遷移先。
const defaultAdminPath = "/admin/dashboard"

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	// SignIn はパスワードでサインインする。
	SignIn(ctx context.Context, email, password string) (*model.Session, error)
	// SendMagicLink はマジックリンクの送信を要求する。
	SendMagicLink(ctx context.Context, email string) error
	// Refresh はリフレッシュトークンを新しいセッションに交換する。
	Refresh(ctx context.Context, refreshToken string) (*model.Session, error)
	// SignOut はセッションをサーバー側で無効化する。
	SignOut(ctx context.Context, accessToken string)
}

// AuthHandler はサインイン・サインアウトのHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	cookies *auth.CookieManager
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, cookies *auth.CookieManager) *AuthHandler {
	return &AuthHandler{
		service: service,
		cookies: cookies,
	}
}

// loginRequest はサインインリクエストのボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// magicLinkRequest はマジックリンク送信リクエストのボディ。
type magicLinkRequest struct {
	Email string `json:"email"`
}

// sessionCreatedResponse はサインイン成功時のレスポンス。
// redirectはログイン後の遷移先。ゲートが付与したredirectクエリを引き継ぐ。
type sessionCreatedResponse struct {
	User     userResponse `json:"user"`
	Redirect string       `json:"redirect"`
}

// Login はパスワードサインインを処理する。
// POST /admin/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	if req.Email == "" || req.Password == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("Email and password are required."))
		return
	}

	session, err := h.service.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.cookies.Persist(w, session)

	writeJSON(w, http.StatusOK, sessionCreatedResponse{
		User:     userResponse{ID: session.User.ID, Email: session.User.Email},
		Redirect: sanitizeRedirect(r.URL.Query().Get("redirect")),
	})
}

// LoginOTP はマジックリンクの送信を処理する。
// POST /admin/login/otp
func (h *AuthHandler) LoginOTP(w http.ResponseWriter, r *http.Request) {
	var req magicLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	if req.Email == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewValidationError("Email is required."))
		return
	}

	if err := h.service.SendMagicLink(r.Context(), req.Email); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"message": "Check your email for the sign-in link.",
	})
}

// Logout はサインアウトを処理する。
// リモート無効化の成否にかかわらずCookieは必ずクリアする。
// POST /admin/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.service.SignOut(r.Context(), auth.ReadAccessToken(r))
	h.cookies.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

// Refresh はリフレッシュトークンによるセッション更新を処理する。
// 失敗時はCookieをクリアして再サインインを促す。
// POST /admin/session/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	refreshToken := auth.ReadRefreshToken(r)
	if refreshToken == "" {
		h.cookies.Clear(w)
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewRefreshFailedError())
		return
	}

	session, err := h.service.Refresh(r.Context(), refreshToken)
	if err != nil {
		h.cookies.Clear(w)
		handleServiceError(w, err)
		return
	}

	h.cookies.Persist(w, session)

	writeJSON(w, http.StatusOK, map[string]userResponse{
		"user": {ID: session.User.ID, Email: session.User.Email},
	})
}

// Session は認証済みセッションの情報を返す。
// RequireUserミドルウェアの背後に配置される。
// GET /admin/api/session
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, &model.APIError{
			Code:     "UNAUTHORIZED",
			Message:  "Authentication required.",
			Category: "auth",
			Action:   "Please sign in again.",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]userResponse{
		"user": {ID: user.ID, Email: user.Email},
	})
}

// sanitizeRedirect はログイン後の遷移先を検証する。
// オープンリダイレクトを防ぐため、サイト内の絶対パスのみ許可する。
func sanitizeRedirect(target string) string {
	if target == "" {
		return defaultAdminPath
	}
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") {
		return defaultAdminPath
	}
	if strings.ContainsAny(target, "\r\n\\") {
		return defaultAdminPath
	}
	return target
}
