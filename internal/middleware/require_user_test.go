package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/massargual/portfolio-api/internal/auth"
	"github.com/massargual/portfolio-api/internal/model"
)

type mockAuthenticator struct {
	authenticateFn func(ctx context.Context, accessToken string) (*model.User, error)
}

func (m *mockAuthenticator) Authenticate(ctx context.Context, accessToken string) (*model.User, error) {
	if m.authenticateFn != nil {
		return m.authenticateFn(ctx, accessToken)
	}
	return nil, auth.ErrNotAdmin
}

var _ Authenticator = (*mockAuthenticator)(nil)

func TestRequireUser_InjectsUserIntoContext(t *testing.T) {
	authenticator := &mockAuthenticator{
		authenticateFn: func(ctx context.Context, accessToken string) (*model.User, error) {
			if accessToken != "valid-token" {
				t.Errorf("accessToken = %q", accessToken)
			}
			return &model.User{ID: "user-1", Email: "owner@example.com"}, nil
		},
	}

	var gotUser *model.User
	handler := NewRequireUserMiddleware(authenticator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, _ = UserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/admin/api/session", nil)
	req.AddCookie(&http.Cookie{Name: auth.AccessTokenCookie, Value: "valid-token"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if gotUser == nil || gotUser.ID != "user-1" {
		t.Errorf("user in context = %+v", gotUser)
	}
}

func TestRequireUser_MissingCookie(t *testing.T) {
	handler := NewRequireUserMiddleware(&mockAuthenticator{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not run without a token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/admin/api/session", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRequireUser_NonAdminRejected(t *testing.T) {
	handler := NewRequireUserMiddleware(&mockAuthenticator{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not run for a non-admin user")
	}))

	req := httptest.NewRequest(http.MethodGet, "/admin/api/session", nil)
	req.AddCookie(&http.Cookie{Name: auth.AccessTokenCookie, Value: "valid-token"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestUserFromContext_Missing(t *testing.T) {
	if _, err := UserFromContext(context.Background()); err == nil {
		t.Error("expected error for a context without a user")
	}
}
