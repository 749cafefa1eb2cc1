// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, post, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeSlugConflict       = "SLUG_CONFLICT"
	ErrCodePostNotFound       = "POST_NOT_FOUND"
	ErrCodePublishConflict    = "PUBLISH_CONFLICT"
	ErrCodeRateLimited        = "RATE_LIMITED"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeRefreshFailed      = "REFRESH_FAILED"
	ErrCodeStoreError         = "STORE_ERROR"
)

// NewValidationError は必須フィールド欠落・不正フォーマットのエラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  message,
		Category: "validation",
		Action:   "Fill in all required fields and try again.",
	}
}

// NewSlugConflictError はスラッグ重複エラーを生成する。
func NewSlugConflictError(slug string) *APIError {
	return &APIError{
		Code:     ErrCodeSlugConflict,
		Message:  fmt.Sprintf("A post with slug %q already exists.", slug),
		Category: "validation",
		Action:   "Please choose a different slug.",
	}
}

// NewPostNotFoundError は記事未検出エラーを生成する。
func NewPostNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodePostNotFound,
		Message:  fmt.Sprintf("Post not found: %s", id),
		Category: "post",
		Action:   "The post may have been deleted. Reload the dashboard.",
	}
}

// NewPublishConflictError は公開状態の楽観的更新が競合した場合のエラーを生成する。
// ストア上の現在値がリクエスト時の期待値と一致しなかったことを示す。
func NewPublishConflictError(id string) *APIError {
	return &APIError{
		Code:     ErrCodePublishConflict,
		Message:  fmt.Sprintf("Publish state of post %s changed concurrently.", id),
		Category: "post",
		Action:   "Reload the post and retry.",
	}
}

// NewRateLimitedError はログイン試行回数超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "Too many login attempts. Please try again later.",
		Category: "auth",
		Action:   "Wait 15 minutes before trying again.",
	}
}

// NewInvalidCredentialsError は認証失敗エラーを生成する。
// アカウント列挙を防ぐため、原因によらず同一メッセージを返す。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "Invalid credentials. Please try again.",
		Category: "auth",
		Action:   "Check your email and password.",
	}
}

// NewRefreshFailedError はリフレッシュトークンが無効・期限切れの場合のエラーを生成する。
func NewRefreshFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeRefreshFailed,
		Message:  "Session could not be refreshed.",
		Category: "auth",
		Action:   "Please sign in again.",
	}
}

// NewStoreError はデータストアとの通信障害エラーを生成する。
// rawMessageは管理画面にのみ表示され、公開側には伝播させない。
func NewStoreError(rawMessage string) *APIError {
	return &APIError{
		Code:     ErrCodeStoreError,
		Message:  rawMessage,
		Category: "system",
		Action:   "Please wait a moment and retry.",
	}
}

// AsAPIError はエラーチェーンからAPIErrorを取り出す。
// 見つからない場合はnilを返す。
func AsAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return nil
}
