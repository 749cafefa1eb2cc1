package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/massargual/portfolio-api/internal/model"
)

// PostgresContactRepo はPostgreSQLを使用した問い合わせメッセージリポジトリ。
type PostgresContactRepo struct {
	db *sql.DB
}

// NewPostgresContactRepo はPostgresContactRepoを生成する。
func NewPostgresContactRepo(db *sql.DB) *PostgresContactRepo {
	return &PostgresContactRepo{db: db}
}

// Create はメッセージを作成する。
func (r *PostgresContactRepo) Create(ctx context.Context, msg *model.ContactMessage) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO contact_messages (id, name, email, message, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		msg.ID, msg.Name, msg.Email, msg.Message, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("問い合わせメッセージの作成に失敗しました: %w", err)
	}
	return nil
}

// ListRecent は新着順に最大limit件のメッセージを返す。
func (r *PostgresContactRepo) ListRecent(ctx context.Context, limit int) ([]*model.ContactMessage, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, email, message, created_at
		 FROM contact_messages
		 ORDER BY created_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("問い合わせ一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	msgs := []*model.ContactMessage{}
	for rows.Next() {
		msg := &model.ContactMessage{}
		if err := rows.Scan(&msg.ID, &msg.Name, &msg.Email, &msg.Message, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("問い合わせ行の読み取りに失敗しました: %w", err)
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("問い合わせ一覧の走査に失敗しました: %w", err)
	}
	return msgs, nil
}
