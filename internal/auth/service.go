package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/massargual/portfolio-api/internal/authclient"
	"github.com/massargual/portfolio-api/internal/model"
	"github.com/massargual/portfolio-api/internal/repository"
)

// ErrNotAdmin は認証自体は有効だが管理者許可リストに含まれないことを表す。
var ErrNotAdmin = errors.New("user is not an admin")

// CredentialStore は外部認証サービスのアダプタインターフェース。
// authclient.Clientの部分集合として定義する。
type CredentialStore interface {
	SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error)
	SignInWithMagicLink(ctx context.Context, email string) error
	RefreshSession(ctx context.Context, refreshToken string) (*model.Session, error)
	SignOut(ctx context.Context, accessToken string) error
	GetUser(ctx context.Context, accessToken string) (*model.User, error)
}

// MetricsRecorder はサインイン結果のメトリクス記録インターフェース。
type MetricsRecorder interface {
	RecordLoginAttempt(outcome string)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	CallTimeout time.Duration // 認証サービス呼び出しの打ち切り時間
}

// Service はサインイン・サインアウトのビジネスロジックを提供する。
// ログイン試行制限と外部認証サービスの呼び出しを束ねる。
type Service struct {
	store     CredentialStore
	limiter   LoginLimiter
	adminRepo repository.AdminRepository
	metrics   MetricsRecorder
	config    ServiceConfig
}

// NewService はServiceを生成する。
// metricsはnil可（記録をスキップする）。
func NewService(
	store CredentialStore,
	limiter LoginLimiter,
	adminRepo repository.AdminRepository,
	metrics MetricsRecorder,
	config ServiceConfig,
) *Service {
	return &Service{
		store:     store,
		limiter:   limiter,
		adminRepo: adminRepo,
		metrics:   metrics,
		config:    config,
	}
}

// SignIn はパスワードでサインインする。
// 試行制限に達している場合は認証サービスに接触せずRATE_LIMITEDを返す。
// 制限を通過した試行は、成否にかかわらず必ず1回だけ記録される。
func (s *Service) SignIn(ctx context.Context, email, password string) (*model.Session, error) {
	if !s.limiter.CheckAllowed(email) {
		slog.Warn("sign-in blocked by login limiter", slog.String("email", email))
		s.record("rate_limited")
		return nil, model.NewRateLimitedError()
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	session, err := s.store.SignInWithPassword(ctx, email, password)
	s.limiter.RecordOutcome(email, err == nil)

	if err != nil {
		// アカウント列挙を防ぐため、原因によらず同一のエラーを返す。
		// 詳細はログにのみ残す。
		slog.Warn("sign-in failed",
			slog.String("email", email),
			slog.String("error", err.Error()),
		)
		s.record("failure")
		return nil, model.NewInvalidCredentialsError()
	}

	slog.Info("sign-in succeeded", slog.String("user_id", session.User.ID))
	s.record("success")
	return session, nil
}

// SendMagicLink はワンタイムのマジックリンク送信を要求する。
func (s *Service) SendMagicLink(ctx context.Context, email string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.store.SignInWithMagicLink(ctx, email); err != nil {
		slog.Error("magic link delivery failed",
			slog.String("email", email),
			slog.String("error", err.Error()),
		)
		return model.NewStoreError(fmt.Sprintf("magic link delivery failed: %v", err))
	}

	slog.Info("magic link sent", slog.String("email", email))
	return nil
}

// Refresh はリフレッシュトークンを新しいセッションに交換する。
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*model.Session, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	session, err := s.store.RefreshSession(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, authclient.ErrRefreshFailed) {
			return nil, model.NewRefreshFailedError()
		}
		return nil, model.NewStoreError(fmt.Sprintf("session refresh failed: %v", err))
	}
	return session, nil
}

// SignOut はセッションをサーバー側で無効化する。
// リモート呼び出しが失敗してもローカルとしては常に成功する。
// 呼び出し側はCookieのクリアを無条件に行うこと。
func (s *Service) SignOut(ctx context.Context, accessToken string) {
	if accessToken == "" {
		return
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.store.SignOut(ctx, accessToken); err != nil {
		slog.Warn("remote sign-out failed, local state cleared anyway",
			slog.String("error", err.Error()),
		)
	}
}

// Authenticate はアクセストークンを認証サービスで本検証し、
// 管理者許可リストに含まれるユーザーを返す。
// エッジゲートの構造チェックはUX用の粗いフィルタに過ぎず、
// 状態変更操作の認可は必ずこの検証を経由する。
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*model.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	user, err := s.store.GetUser(ctx, accessToken)
	if err != nil {
		if errors.Is(err, authclient.ErrUnauthorized) {
			return nil, authclient.ErrUnauthorized
		}
		return nil, fmt.Errorf("token verification failed: %w", err)
	}

	isAdmin, err := s.adminRepo.IsAdmin(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("admin check failed: %w", err)
	}
	if !isAdmin {
		slog.Warn("authenticated user is not an admin", slog.String("user_id", user.ID))
		return nil, ErrNotAdmin
	}

	return user, nil
}

// withTimeout は設定された打ち切り時間付きのコンテキストを返す。
func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.config.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.config.CallTimeout)
}

// record はメトリクスにサインイン結果を記録する。
func (s *Service) record(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordLoginAttempt(outcome)
	}
}
