// Package authclient は外部認証サービス（GoTrue互換REST API）のクライアントを提供する。
//
// このサービスはアカウント状態を一切保持しない。パスワードサインイン、
// マジックリンク送信、トークンリフレッシュ、サインアウト、トークン検証を
// すべて外部サービスに委譲し、結果のセッション（トークンと有効期限）だけを扱う。
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/massargual/portfolio-api/internal/model"
)

// ErrInvalidCredentials は認証失敗を表す。
// アカウントの存在有無を漏らさないため、原因を区別しない。
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrRefreshFailed はリフレッシュトークンが無効・期限切れであることを表す。
var ErrRefreshFailed = errors.New("refresh failed")

// ErrUnauthorized はアクセストークンが無効であることを表す。
var ErrUnauthorized = errors.New("unauthorized")

// Config はクライアントの設定。
type Config struct {
	BaseURL string        // 認証サービスのベースURL（末尾スラッシュなし）
	APIKey  string        // apikeyヘッダーに載せる公開キー
	Timeout time.Duration // HTTPリクエストのタイムアウト
}

// Client は外部認証サービスのHTTPクライアント。
type Client struct {
	config     Config
	httpClient *http.Client
}

// NewClient はClientを生成する。
// httpClientがnilの場合はConfig.Timeoutを適用したクライアントを使用する。
func NewClient(config Config, httpClient *http.Client) *Client {
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if httpClient == nil {
		timeout := config.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		config:     config,
		httpClient: httpClient,
	}
}

// sessionResponse は認証サービスのトークンレスポンス。
type sessionResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	User         struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

// toSession はレスポンスをドメインモデルに変換する。
func (r *sessionResponse) toSession(now time.Time) *model.Session {
	return &model.Session{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		ExpiresAt:    now.Add(time.Duration(r.ExpiresIn) * time.Second),
		User: model.User{
			ID:    r.User.ID,
			Email: r.User.Email,
		},
	}
}

// SignInWithPassword はメールアドレスとパスワードでサインインする。
// 認証サービスが4xxを返した場合は一律ErrInvalidCredentialsを返す。
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error) {
	body := map[string]string{
		"email":    strings.ToLower(strings.TrimSpace(email)),
		"password": password,
	}

	resp, err := c.post(ctx, "/token?grant_type=password", "", body)
	if err != nil {
		return nil, fmt.Errorf("failed to call auth service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return nil, ErrInvalidCredentials
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth service returned status %d", resp.StatusCode)
	}

	var sr sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("failed to decode session response: %w", err)
	}
	return sr.toSession(time.Now()), nil
}

// SignInWithMagicLink はワンタイムのマジックリンク送信を要求する。
// 配送チャネル自体の障害以外は成功として扱う。
func (c *Client) SignInWithMagicLink(ctx context.Context, email string) error {
	body := map[string]string{
		"email": strings.ToLower(strings.TrimSpace(email)),
	}

	resp, err := c.post(ctx, "/otp", "", body)
	if err != nil {
		return fmt.Errorf("failed to call auth service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("magic link delivery failed with status %d", resp.StatusCode)
	}
	return nil
}

// RefreshSession はリフレッシュトークンを新しいアクセストークンに交換する。
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*model.Session, error) {
	if refreshToken == "" {
		return nil, ErrRefreshFailed
	}

	body := map[string]string{"refresh_token": refreshToken}

	resp, err := c.post(ctx, "/token?grant_type=refresh_token", "", body)
	if err != nil {
		return nil, fmt.Errorf("failed to call auth service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return nil, ErrRefreshFailed
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth service returned status %d", resp.StatusCode)
	}

	var sr sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("failed to decode session response: %w", err)
	}
	return sr.toSession(time.Now()), nil
}

// SignOut はセッションをサーバー側で無効化する。
// 呼び出し側はこの呼び出しが失敗してもローカル状態（Cookie）を必ずクリアすること。
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	resp, err := c.post(ctx, "/logout", accessToken, nil)
	if err != nil {
		return fmt.Errorf("failed to call auth service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusUnauthorized {
		return fmt.Errorf("sign out failed with status %d", resp.StatusCode)
	}
	return nil
}

// GetUser はアクセストークンを認証サービスで検証し、ユーザー情報を返す。
// エッジゲートの構造チェックは通過済みでも、状態変更操作の前には
// 必ずこの呼び出しで本検証を行う。
func (c *Client) GetUser(ctx context.Context, accessToken string) (*model.User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/user", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	c.setHeaders(req, accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call auth service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth service returned status %d", resp.StatusCode)
	}

	var user struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to decode user response: %w", err)
	}
	return &model.User{ID: user.ID, Email: user.Email}, nil
}

// post はJSONボディ付きPOSTリクエストを送信する。
func (c *Client) post(ctx context.Context, path, accessToken string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	c.setHeaders(req, accessToken)

	return c.httpClient.Do(req)
}

// setHeaders はAPIキーと（指定時）Bearerトークンを設定する。
func (c *Client) setHeaders(req *http.Request, accessToken string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.config.APIKey)
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
}
