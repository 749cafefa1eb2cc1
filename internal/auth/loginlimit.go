// Package auth はサインインフローとログイン試行制限を提供する。
package auth

import (
	"strings"
	"sync"
	"time"
)

// LoginLimiter はログイン試行の制限インターフェース。
// プロセス内メモリ実装の他、水平スケール時には共有TTLストアを
// 背後に持つ実装へ差し替えられる。
type LoginLimiter interface {
	// CheckAllowed は指定アカウントのサインイン試行を許可するか判定する。
	// ロックアウトウィンドウを過ぎた記録は副作用として破棄される。
	CheckAllowed(email string) bool

	// RecordOutcome は試行結果を記録する。
	// 成功時は記録を完全に破棄し、失敗時は失敗回数を加算する。
	// サインイン入口は1回の試行につき必ず1回だけ呼び出すこと。
	RecordOutcome(email string, success bool)
}

// LoginLimiterConfig はログイン試行制限の設定を保持する。
type LoginLimiterConfig struct {
	MaxAttempts     int           // ロックアウトまでの連続失敗回数
	LockoutWindow   time.Duration // 最終失敗からこの時間が過ぎれば記録をリセットする
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// DefaultLoginLimiterConfig はデフォルトのログイン試行制限設定を返す。
// 要件: 連続5回失敗で15分間ロックアウト
func DefaultLoginLimiterConfig() LoginLimiterConfig {
	return LoginLimiterConfig{
		MaxAttempts:     5,
		LockoutWindow:   15 * time.Minute,
		CleanupInterval: 5 * time.Minute,
	}
}

// loginAttempt はアカウントごとの失敗記録を保持する。
type loginAttempt struct {
	count       int
	lastFailure time.Time
}

// MemoryLoginLimiter はプロセス内メモリでログイン試行を管理するLoginLimiter実装。
// プロセス再起動で消え、複数インスタンス間では共有されない。
type MemoryLoginLimiter struct {
	config LoginLimiterConfig

	mu       sync.Mutex
	attempts map[string]*loginAttempt

	// now はテストで時刻を差し替えるためのフック。
	now func() time.Time

	stopCh chan struct{}
}

// NewMemoryLoginLimiter は新しいMemoryLoginLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewMemoryLoginLimiter(config LoginLimiterConfig) *MemoryLoginLimiter {
	l := &MemoryLoginLimiter{
		config:   config,
		attempts: make(map[string]*loginAttempt),
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}

	go l.cleanupLoop()

	return l
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (l *MemoryLoginLimiter) Stop() {
	close(l.stopCh)
}

// CheckAllowed は指定アカウントのサインイン試行を許可するか判定する。
func (l *MemoryLoginLimiter) CheckAllowed(email string) bool {
	key := normalizeEmail(email)

	l.mu.Lock()
	defer l.mu.Unlock()

	attempt, exists := l.attempts[key]
	if !exists {
		return true
	}

	// ロックアウトウィンドウを過ぎていれば記録を破棄して許可
	if l.now().Sub(attempt.lastFailure) > l.config.LockoutWindow {
		delete(l.attempts, key)
		return true
	}

	return attempt.count < l.config.MaxAttempts
}

// RecordOutcome は試行結果を記録する。
func (l *MemoryLoginLimiter) RecordOutcome(email string, success bool) {
	key := normalizeEmail(email)

	l.mu.Lock()
	defer l.mu.Unlock()

	if success {
		delete(l.attempts, key)
		return
	}

	if attempt, exists := l.attempts[key]; exists {
		attempt.count++
		attempt.lastFailure = l.now()
		return
	}

	l.attempts[key] = &loginAttempt{
		count:       1,
		lastFailure: l.now(),
	}
}

// AttemptCount は現在管理されているエントリ数を返す。テストおよびメトリクス用。
func (l *MemoryLoginLimiter) AttemptCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.attempts)
}

// cleanupLoop はバックグラウンドで期限切れエントリを定期的にクリーンアップする。
func (l *MemoryLoginLimiter) cleanupLoop() {
	if l.config.CleanupInterval <= 0 {
		return
	}

	ticker := time.NewTicker(l.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.stopCh:
			return
		}
	}
}

// cleanup は最終失敗からロックアウトウィンドウを過ぎたエントリを削除する。
func (l *MemoryLoginLimiter) cleanup() {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	for key, attempt := range l.attempts {
		if now.Sub(attempt.lastFailure) > l.config.LockoutWindow {
			delete(l.attempts, key)
		}
	}
}

// normalizeEmail はメールアドレスをキーとして正規化する。
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
