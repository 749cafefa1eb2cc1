package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/massargual/portfolio-api/internal/authclient"
	"github.com/massargual/portfolio-api/internal/model"
	"github.com/massargual/portfolio-api/internal/repository"
)

// --- モック定義 ---

type mockCredentialStore struct {
	signInWithPasswordFn  func(ctx context.Context, email, password string) (*model.Session, error)
	signInWithMagicLinkFn func(ctx context.Context, email string) error
	refreshSessionFn      func(ctx context.Context, refreshToken string) (*model.Session, error)
	signOutFn             func(ctx context.Context, accessToken string) error
	getUserFn             func(ctx context.Context, accessToken string) (*model.User, error)

	signInCalls int
}

func (m *mockCredentialStore) SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error) {
	m.signInCalls++
	if m.signInWithPasswordFn != nil {
		return m.signInWithPasswordFn(ctx, email, password)
	}
	return nil, nil
}

func (m *mockCredentialStore) SignInWithMagicLink(ctx context.Context, email string) error {
	if m.signInWithMagicLinkFn != nil {
		return m.signInWithMagicLinkFn(ctx, email)
	}
	return nil
}

func (m *mockCredentialStore) RefreshSession(ctx context.Context, refreshToken string) (*model.Session, error) {
	if m.refreshSessionFn != nil {
		return m.refreshSessionFn(ctx, refreshToken)
	}
	return nil, nil
}

func (m *mockCredentialStore) SignOut(ctx context.Context, accessToken string) error {
	if m.signOutFn != nil {
		return m.signOutFn(ctx, accessToken)
	}
	return nil
}

func (m *mockCredentialStore) GetUser(ctx context.Context, accessToken string) (*model.User, error) {
	if m.getUserFn != nil {
		return m.getUserFn(ctx, accessToken)
	}
	return nil, nil
}

type mockAdminRepo struct {
	isAdminFn func(ctx context.Context, userID string) (bool, error)
}

func (m *mockAdminRepo) IsAdmin(ctx context.Context, userID string) (bool, error) {
	if m.isAdminFn != nil {
		return m.isAdminFn(ctx, userID)
	}
	return false, nil
}

// --- compile-time interface checks ---
var _ CredentialStore = (*mockCredentialStore)(nil)
var _ repository.AdminRepository = (*mockAdminRepo)(nil)

// newTestService はテスト用のServiceと依存を生成する。
func newTestService(store *mockCredentialStore, adminRepo *mockAdminRepo) (*Service, *MemoryLoginLimiter) {
	now := time.Now()
	limiter := &MemoryLoginLimiter{
		config: LoginLimiterConfig{
			MaxAttempts:   5,
			LockoutWindow: 15 * time.Minute,
		},
		attempts: make(map[string]*loginAttempt),
		now:      func() time.Time { return now },
		stopCh:   make(chan struct{}),
	}
	if adminRepo == nil {
		adminRepo = &mockAdminRepo{}
	}
	svc := NewService(store, limiter, adminRepo, nil, ServiceConfig{CallTimeout: 5 * time.Second})
	return svc, limiter
}

// --- テスト ---

func TestSignIn_Success(t *testing.T) {
	want := &model.Session{
		AccessToken:  "a.b.c",
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Now().Add(time.Hour),
		User:         model.User{ID: "user-1", Email: "owner@example.com"},
	}
	store := &mockCredentialStore{
		signInWithPasswordFn: func(ctx context.Context, email, password string) (*model.Session, error) {
			return want, nil
		},
	}
	svc, limiter := newTestService(store, nil)

	session, err := svc.SignIn(context.Background(), "owner@example.com", "secret")
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if session.AccessToken != want.AccessToken {
		t.Errorf("AccessToken = %q, want %q", session.AccessToken, want.AccessToken)
	}
	if limiter.AttemptCount() != 0 {
		t.Errorf("success should purge the attempt record, count = %d", limiter.AttemptCount())
	}
}

func TestSignIn_FailureReturnsGenericError(t *testing.T) {
	store := &mockCredentialStore{
		signInWithPasswordFn: func(ctx context.Context, email, password string) (*model.Session, error) {
			return nil, authclient.ErrInvalidCredentials
		},
	}
	svc, _ := newTestService(store, nil)

	_, err := svc.SignIn(context.Background(), "owner@example.com", "wrong")

	apiErr := model.AsAPIError(err)
	if apiErr == nil || apiErr.Code != model.ErrCodeInvalidCredentials {
		t.Fatalf("error = %v, want INVALID_CREDENTIALS", err)
	}
	if apiErr.Message != "Invalid credentials. Please try again." {
		t.Errorf("Message = %q", apiErr.Message)
	}
}

func TestSignIn_TransportFailureAlsoGeneralized(t *testing.T) {
	store := &mockCredentialStore{
		signInWithPasswordFn: func(ctx context.Context, email, password string) (*model.Session, error) {
			return nil, errors.New("connection refused")
		},
	}
	svc, _ := newTestService(store, nil)

	_, err := svc.SignIn(context.Background(), "owner@example.com", "secret")

	apiErr := model.AsAPIError(err)
	if apiErr == nil || apiErr.Code != model.ErrCodeInvalidCredentials {
		t.Fatalf("error = %v, want INVALID_CREDENTIALS", err)
	}
}

func TestSignIn_SixthAttemptBlockedWithoutContactingStore(t *testing.T) {
	store := &mockCredentialStore{
		signInWithPasswordFn: func(ctx context.Context, email, password string) (*model.Session, error) {
			return nil, authclient.ErrInvalidCredentials
		},
	}
	svc, _ := newTestService(store, nil)

	for i := 0; i < 5; i++ {
		svc.SignIn(context.Background(), "owner@example.com", "wrong")
	}
	if store.signInCalls != 5 {
		t.Fatalf("signInCalls = %d, want 5", store.signInCalls)
	}

	// 6回目は正しいパスワードでも認証サービスに接触せず拒否される
	_, err := svc.SignIn(context.Background(), "owner@example.com", "correct")

	apiErr := model.AsAPIError(err)
	if apiErr == nil || apiErr.Code != model.ErrCodeRateLimited {
		t.Fatalf("error = %v, want RATE_LIMITED", err)
	}
	if store.signInCalls != 5 {
		t.Errorf("signInCalls = %d, credential store must not be contacted when rate limited", store.signInCalls)
	}
}

func TestSignIn_SuccessResetsLimiter(t *testing.T) {
	fail := true
	store := &mockCredentialStore{
		signInWithPasswordFn: func(ctx context.Context, email, password string) (*model.Session, error) {
			if fail {
				return nil, authclient.ErrInvalidCredentials
			}
			return &model.Session{User: model.User{ID: "user-1"}}, nil
		},
	}
	svc, limiter := newTestService(store, nil)

	for i := 0; i < 4; i++ {
		svc.SignIn(context.Background(), "owner@example.com", "wrong")
	}

	fail = false
	if _, err := svc.SignIn(context.Background(), "owner@example.com", "correct"); err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}

	if limiter.AttemptCount() != 0 {
		t.Errorf("counter should reset to zero on success, count = %d", limiter.AttemptCount())
	}
}

func TestRefresh_InvalidRefreshToken(t *testing.T) {
	store := &mockCredentialStore{
		refreshSessionFn: func(ctx context.Context, refreshToken string) (*model.Session, error) {
			return nil, authclient.ErrRefreshFailed
		},
	}
	svc, _ := newTestService(store, nil)

	_, err := svc.Refresh(context.Background(), "stale")

	apiErr := model.AsAPIError(err)
	if apiErr == nil || apiErr.Code != model.ErrCodeRefreshFailed {
		t.Fatalf("error = %v, want REFRESH_FAILED", err)
	}
}

func TestSignOut_RemoteFailureIsSwallowed(t *testing.T) {
	store := &mockCredentialStore{
		signOutFn: func(ctx context.Context, accessToken string) error {
			return errors.New("network down")
		},
	}
	svc, _ := newTestService(store, nil)

	// panicせず戻ればよい。ローカル状態のクリアは呼び出し側の責務。
	svc.SignOut(context.Background(), "token-1")
}

func TestAuthenticate_AdminUser(t *testing.T) {
	store := &mockCredentialStore{
		getUserFn: func(ctx context.Context, accessToken string) (*model.User, error) {
			return &model.User{ID: "user-1", Email: "owner@example.com"}, nil
		},
	}
	adminRepo := &mockAdminRepo{
		isAdminFn: func(ctx context.Context, userID string) (bool, error) {
			return userID == "user-1", nil
		},
	}
	svc, _ := newTestService(store, adminRepo)

	user, err := svc.Authenticate(context.Background(), "a.b.c")
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if user.ID != "user-1" {
		t.Errorf("user.ID = %q, want user-1", user.ID)
	}
}

func TestAuthenticate_NonAdminRejected(t *testing.T) {
	store := &mockCredentialStore{
		getUserFn: func(ctx context.Context, accessToken string) (*model.User, error) {
			return &model.User{ID: "user-2"}, nil
		},
	}
	svc, _ := newTestService(store, &mockAdminRepo{})

	_, err := svc.Authenticate(context.Background(), "a.b.c")
	if !errors.Is(err, ErrNotAdmin) {
		t.Errorf("error = %v, want ErrNotAdmin", err)
	}
}

func TestAuthenticate_InvalidToken(t *testing.T) {
	store := &mockCredentialStore{
		getUserFn: func(ctx context.Context, accessToken string) (*model.User, error) {
			return nil, authclient.ErrUnauthorized
		},
	}
	svc, _ := newTestService(store, &mockAdminRepo{})

	_, err := svc.Authenticate(context.Background(), "bad")
	if !errors.Is(err, authclient.ErrUnauthorized) {
		t.Errorf("error = %v, want ErrUnauthorized", err)
	}
}
