package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresAdminRepo はPostgreSQLを使用した管理者許可リストリポジトリ。
type PostgresAdminRepo struct {
	db *sql.DB
}

// NewPostgresAdminRepo はPostgresAdminRepoを生成する。
func NewPostgresAdminRepo(db *sql.DB) *PostgresAdminRepo {
	return &PostgresAdminRepo{db: db}
}

// IsAdmin は指定ユーザーが管理者許可リストに含まれるか判定する。
func (r *PostgresAdminRepo) IsAdmin(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM admins WHERE user_id = $1)`,
		userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("管理者権限の確認に失敗しました: %w", err)
	}
	return exists, nil
}
