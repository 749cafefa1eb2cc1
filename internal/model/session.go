// Package model はドメインモデルを定義する。
package model

import "time"

// Session は外部認証サービスが発行した認証済みセッションを表す。
// アカウント状態のコピーは保持せず、トークンと有効期限のみを扱う。
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	User         User
}

// User は外部認証サービス上のユーザーを表す。
type User struct {
	ID    string
	Email string
}

// Expired はセッションが期限切れかどうかを判定する。
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && s.ExpiresAt.Before(now)
}
