package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/massargual/portfolio-api/internal/model"
)

// uniqueViolation はPostgreSQLの一意制約違反のSQLSTATEコード。
const uniqueViolation = "23505"

// PostgresPostRepo はPostgreSQLを使用した記事リポジトリ。
type PostgresPostRepo struct {
	db *sql.DB
}

// NewPostgresPostRepo はPostgresPostRepoを生成する。
func NewPostgresPostRepo(db *sql.DB) *PostgresPostRepo {
	return &PostgresPostRepo{db: db}
}

const postColumns = `id, title, slug, excerpt, content, image_url, published, created_at, updated_at`

// scanPost は1行を*model.BlogPostに変換する。
func scanPost(row interface{ Scan(...any) error }) (*model.BlogPost, error) {
	post := &model.BlogPost{}
	err := row.Scan(
		&post.ID, &post.Title, &post.Slug, &post.Excerpt, &post.Content,
		&post.ImageURL, &post.Published, &post.CreatedAt, &post.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return post, nil
}

// FindByID は指定IDの記事を取得する。見つからない場合はnilを返す。
func (r *PostgresPostRepo) FindByID(ctx context.Context, id string) (*model.BlogPost, error) {
	post, err := scanPost(r.db.QueryRowContext(ctx,
		`SELECT `+postColumns+` FROM blog_posts WHERE id = $1`,
		id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("記事の取得に失敗しました: %w", err)
	}
	return post, nil
}

// FindPublishedBySlug はスラッグで公開済み記事を検索する。見つからない場合はnilを返す。
func (r *PostgresPostRepo) FindPublishedBySlug(ctx context.Context, slug string) (*model.BlogPost, error) {
	post, err := scanPost(r.db.QueryRowContext(ctx,
		`SELECT `+postColumns+` FROM blog_posts WHERE slug = $1 AND published = TRUE`,
		slug,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("記事の取得に失敗しました: %w", err)
	}
	return post, nil
}

// SlugExists はexcludeID以外のレコードにスラッグが存在するか判定する。
func (r *PostgresPostRepo) SlugExists(ctx context.Context, slug, excludeID string) (bool, error) {
	var exists bool
	var err error
	if excludeID == "" {
		err = r.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM blog_posts WHERE slug = $1)`,
			slug,
		).Scan(&exists)
	} else {
		err = r.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM blog_posts WHERE slug = $1 AND id <> $2)`,
			slug, excludeID,
		).Scan(&exists)
	}
	if err != nil {
		return false, fmt.Errorf("スラッグの存在確認に失敗しました: %w", err)
	}
	return exists, nil
}

// ListAll は全記事（下書き含む）をcreated_at降順で返す。
func (r *PostgresPostRepo) ListAll(ctx context.Context) ([]*model.BlogPost, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+postColumns+` FROM blog_posts ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("記事一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return collectPosts(rows)
}

// ListPublished は公開済み記事をcreated_at降順でページング取得する。
func (r *PostgresPostRepo) ListPublished(ctx context.Context, offset, limit int) ([]*model.BlogPost, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+postColumns+` FROM blog_posts
		 WHERE published = TRUE
		 ORDER BY created_at DESC
		 OFFSET $1 LIMIT $2`,
		offset, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("公開記事一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return collectPosts(rows)
}

// CountPublished は公開済み記事の総数を返す。
func (r *PostgresPostRepo) CountPublished(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM blog_posts WHERE published = TRUE`,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("公開記事数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// Create は記事を作成する。スラッグ重複時はErrDuplicateSlugを返す。
func (r *PostgresPostRepo) Create(ctx context.Context, post *model.BlogPost) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO blog_posts (id, title, slug, excerpt, content, image_url, published, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		post.ID, post.Title, post.Slug, post.Excerpt, post.Content,
		post.ImageURL, post.Published, post.CreatedAt, post.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateSlug
		}
		return fmt.Errorf("記事の作成に失敗しました: %w", err)
	}
	return nil
}

// Update は記事の全フィールドを上書き更新する。
func (r *PostgresPostRepo) Update(ctx context.Context, post *model.BlogPost) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE blog_posts
		 SET title = $2, slug = $3, excerpt = $4, content = $5,
		     image_url = $6, published = $7, updated_at = $8
		 WHERE id = $1`,
		post.ID, post.Title, post.Slug, post.Excerpt, post.Content,
		post.ImageURL, post.Published, post.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateSlug
		}
		return fmt.Errorf("記事の更新に失敗しました: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("記事の更新結果の確認に失敗しました: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetPublished は公開フラグを楽観的に更新する。
// 現在値がexpectedと一致する行だけを更新することで、
// 素朴なトグルの二重適用（リトライで元に戻る問題）を防ぐ。
func (r *PostgresPostRepo) SetPublished(ctx context.Context, id string, expected, next bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE blog_posts SET published = $3, updated_at = now()
		 WHERE id = $1 AND published = $2`,
		id, expected, next,
	)
	if err != nil {
		return fmt.Errorf("公開状態の更新に失敗しました: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("公開状態の更新結果の確認に失敗しました: %w", err)
	}
	if affected > 0 {
		return nil
	}

	// 0行更新: 記事が存在しないのか、現在値が期待値と異なるのかを区別する
	var exists bool
	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM blog_posts WHERE id = $1)`,
		id,
	).Scan(&exists); err != nil {
		return fmt.Errorf("記事の存在確認に失敗しました: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrPublishConflict
}

// Delete は指定IDの記事を削除する。
func (r *PostgresPostRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM blog_posts WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("記事の削除に失敗しました: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("記事の削除結果の確認に失敗しました: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// collectPosts は結果セットを記事スライスに変換する。
func collectPosts(rows *sql.Rows) ([]*model.BlogPost, error) {
	posts := []*model.BlogPost{}
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("記事行の読み取りに失敗しました: %w", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("記事一覧の走査に失敗しました: %w", err)
	}
	return posts, nil
}

// isUniqueViolation はエラーがPostgreSQLの一意制約違反かどうかを判定する。
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}
