package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/massargual/portfolio-api/internal/auth"
	"github.com/massargual/portfolio-api/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userContextKey はリクエストコンテキストに認証済みユーザーを格納するためのキー。
var userContextKey = contextKey("user")

// Authenticator はアクセストークンの本検証を行うインターフェース。
// auth.Serviceの部分集合として定義する。
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*model.User, error)
}

// NewRequireUserMiddleware はアクセストークンを認証サービスで本検証し、
// 管理者ユーザーをリクエストコンテキストに注入するミドルウェアを返す。
// エッジゲートの形状チェックとは独立しており、状態変更APIは
// 必ずこのミドルウェアの背後に配置する。
func NewRequireUserMiddleware(authenticator Authenticator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.ReadAccessToken(r)
			if token == "" {
				writeUnauthorized(w)
				return
			}

			user, err := authenticator.Authenticate(r.Context(), token)
			if err != nil {
				if !errors.Is(err, auth.ErrNotAdmin) {
					slog.Warn("token verification failed",
						slog.String("error", err.Error()),
					)
				}
				writeUnauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext はリクエストコンテキストから認証済みユーザーを取得する。
// RequireUserミドルウェアを通過したリクエストでのみ有効。
func UserFromContext(ctx context.Context) (*model.User, error) {
	user, ok := ctx.Value(userContextKey).(*model.User)
	if !ok || user == nil {
		return nil, fmt.Errorf("user not found in context")
	}
	return user, nil
}

// ContextWithUser はコンテキストに認証済みユーザーを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

func writeUnauthorized(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusUnauthorized, &model.APIError{
		Code:     "UNAUTHORIZED",
		Message:  "Authentication required.",
		Category: "auth",
		Action:   "Please sign in again.",
	})
}
