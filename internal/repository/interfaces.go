// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/massargual/portfolio-api/internal/model"
)

// ErrDuplicateSlug はスラッグの一意制約違反を表す。
// ストア側のユニークインデックスが権威的なシグナルであり、
// アプリ側の事前チェックをすり抜けた競合書き込みもこのエラーで検出される。
var ErrDuplicateSlug = errors.New("duplicate slug")

// ErrNotFound は対象レコードが存在しないことを表す。
var ErrNotFound = errors.New("record not found")

// ErrPublishConflict は公開フラグの条件付き更新が競合したことを表す。
// レコードは存在するが、現在値が期待値と一致しなかった場合に返される。
var ErrPublishConflict = errors.New("publish state conflict")

// PostRepository はブログ記事の永続化インターフェース。
type PostRepository interface {
	// FindByID は指定IDの記事を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.BlogPost, error)

	// FindPublishedBySlug はスラッグで公開済み記事を検索する。
	// 下書きは対象外。見つからない場合はnilを返す。
	FindPublishedBySlug(ctx context.Context, slug string) (*model.BlogPost, error)

	// SlugExists はexcludeID以外のレコードにスラッグが存在するか判定する。
	// excludeIDが空文字列の場合は全レコードが対象。
	SlugExists(ctx context.Context, slug, excludeID string) (bool, error)

	// ListAll は全記事（下書き含む）をcreated_at降順で返す。管理画面用。
	ListAll(ctx context.Context) ([]*model.BlogPost, error)

	// ListPublished は公開済み記事をcreated_at降順でoffset/limitページング取得する。
	ListPublished(ctx context.Context, offset, limit int) ([]*model.BlogPost, error)

	// CountPublished は公開済み記事の総数を返す。
	CountPublished(ctx context.Context) (int, error)

	// Create は記事を作成する。スラッグ重複時はErrDuplicateSlugを返す。
	Create(ctx context.Context, post *model.BlogPost) error

	// Update は記事の全フィールドを上書き更新する。
	// 対象が存在しない場合はErrNotFound、スラッグ重複時はErrDuplicateSlugを返す。
	Update(ctx context.Context, post *model.BlogPost) error

	// SetPublished は公開フラグを楽観的に更新する。
	// 現在値がexpectedと一致する場合のみnextに更新し、updated_atを更新する。
	// 対象が存在しない場合はErrNotFound、
	// 存在するが現在値がexpectedと異なる場合はErrPublishConflictを返す。
	SetPublished(ctx context.Context, id string, expected, next bool) error

	// Delete は指定IDの記事を削除する。対象が存在しない場合はErrNotFoundを返す。
	Delete(ctx context.Context, id string) error
}

// ContactRepository は問い合わせメッセージの永続化インターフェース。
type ContactRepository interface {
	// Create はメッセージを作成する。
	Create(ctx context.Context, msg *model.ContactMessage) error

	// ListRecent は新着順に最大limit件のメッセージを返す。管理画面用。
	ListRecent(ctx context.Context, limit int) ([]*model.ContactMessage, error)
}

// AdminRepository は管理者許可リストの参照インターフェース。
type AdminRepository interface {
	// IsAdmin は指定ユーザーが管理者許可リストに含まれるか判定する。
	IsAdmin(ctx context.Context, userID string) (bool, error)
}
