// Package post はブログ記事のライフサイクル管理を提供する。
package post

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/html"

	"github.com/massargual/portfolio-api/internal/model"
	"github.com/massargual/portfolio-api/internal/repository"
)

const (
	// maxExcerptLength は要約の最大文字数（rune単位）。
	maxExcerptLength = 300

	// maxTitleLength はタイトルの最大文字数。
	maxTitleLength = 200

	// defaultPageSize / maxPageSize は公開側ページングの既定値と上限。
	defaultPageSize = 10
	maxPageSize     = 50
)

// Sanitizer は保存前の本文サニタイズを行う。
type Sanitizer interface {
	SanitizeHTML(content string) string
}

// ImageURLValidator はアイキャッチ画像URLの検証を行う。
type ImageURLValidator interface {
	ValidateImageURL(rawURL string) error
}

// ServiceConfig は記事サービスの設定。
type ServiceConfig struct {
	StoreTimeout time.Duration // ストア操作の打ち切り時間
}

// Service はブログ記事のライフサイクル操作を提供する。
// 入力検証、スラッグ導出、要約導出、集計値の再計算を束ねる。
type Service struct {
	repo      repository.PostRepository
	sanitizer Sanitizer
	imageVal  ImageURLValidator
	config    ServiceConfig
}

// NewService はServiceを生成する。
func NewService(repo repository.PostRepository, sanitizer Sanitizer, imageVal ImageURLValidator, config ServiceConfig) *Service {
	return &Service{
		repo:      repo,
		sanitizer: sanitizer,
		imageVal:  imageVal,
		config:    config,
	}
}

// Create は記事を新規作成し、作成後の記事と最新の集計値を返す。
func (s *Service) Create(ctx context.Context, fields model.PostFields) (*model.BlogPost, model.PostStats, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	post, err := s.buildPost(ctx, "", fields)
	if err != nil {
		return nil, model.PostStats{}, err
	}

	now := time.Now().UTC()
	post.ID = uuid.New().String()
	post.CreatedAt = now
	post.UpdatedAt = now

	if err := s.repo.Create(ctx, post); err != nil {
		if errors.Is(err, repository.ErrDuplicateSlug) {
			return nil, model.PostStats{}, model.NewSlugConflictError(post.Slug)
		}
		return nil, model.PostStats{}, model.NewStoreError(fmt.Sprintf("failed to create post: %v", err))
	}

	slog.Info("post created",
		slog.String("post_id", post.ID),
		slog.String("slug", post.Slug),
		slog.Bool("published", post.Published),
	)

	stats, err := s.freshStats(ctx)
	if err != nil {
		return nil, model.PostStats{}, err
	}
	return post, stats, nil
}

// Update は記事の全フィールドを上書き更新し、更新後の記事と最新の集計値を返す。
func (s *Service) Update(ctx context.Context, id string, fields model.PostFields) (*model.BlogPost, model.PostStats, error) {
	if !validPostID(id) {
		return nil, model.PostStats{}, model.NewPostNotFoundError(id)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, model.PostStats{}, model.NewStoreError(fmt.Sprintf("failed to load post: %v", err))
	}
	if existing == nil {
		return nil, model.PostStats{}, model.NewPostNotFoundError(id)
	}

	post, err := s.buildPost(ctx, id, fields)
	if err != nil {
		return nil, model.PostStats{}, err
	}
	post.ID = existing.ID
	post.CreatedAt = existing.CreatedAt
	post.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, post); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateSlug):
			return nil, model.PostStats{}, model.NewSlugConflictError(post.Slug)
		case errors.Is(err, repository.ErrNotFound):
			return nil, model.PostStats{}, model.NewPostNotFoundError(id)
		default:
			return nil, model.PostStats{}, model.NewStoreError(fmt.Sprintf("failed to update post: %v", err))
		}
	}

	slog.Info("post updated", slog.String("post_id", post.ID), slog.String("slug", post.Slug))

	stats, err := s.freshStats(ctx)
	if err != nil {
		return nil, model.PostStats{}, err
	}
	return post, stats, nil
}

// SetPublished は公開フラグを楽観的に切り替える。
// expectedはリクエスト発行時点でクライアントが見ていた公開状態であり、
// ストア上の現在値と一致しない場合は更新せずに競合エラーを返す。
func (s *Service) SetPublished(ctx context.Context, id string, expected bool) (*model.BlogPost, model.PostStats, error) {
	if !validPostID(id) {
		return nil, model.PostStats{}, model.NewPostNotFoundError(id)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	next := !expected
	if err := s.repo.SetPublished(ctx, id, expected, next); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, model.PostStats{}, model.NewPostNotFoundError(id)
		case errors.Is(err, repository.ErrPublishConflict):
			slog.Warn("publish toggle conflict",
				slog.String("post_id", id),
				slog.Bool("expected", expected),
			)
			return nil, model.PostStats{}, model.NewPublishConflictError(id)
		default:
			return nil, model.PostStats{}, model.NewStoreError(fmt.Sprintf("failed to toggle publish state: %v", err))
		}
	}

	slog.Info("publish state toggled", slog.String("post_id", id), slog.Bool("published", next))

	post, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, model.PostStats{}, model.NewStoreError(fmt.Sprintf("failed to load post: %v", err))
	}

	stats, err := s.freshStats(ctx)
	if err != nil {
		return nil, model.PostStats{}, err
	}
	return post, stats, nil
}

// Delete は記事を削除し、削除後の最新の集計値を返す。
func (s *Service) Delete(ctx context.Context, id string) (model.PostStats, error) {
	if !validPostID(id) {
		return model.PostStats{}, model.NewPostNotFoundError(id)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.PostStats{}, model.NewPostNotFoundError(id)
		}
		return model.PostStats{}, model.NewStoreError(fmt.Sprintf("failed to delete post: %v", err))
	}

	slog.Info("post deleted", slog.String("post_id", id))

	return s.freshStats(ctx)
}

// GetByID は下書きを含む記事を取得する。管理画面用。
func (s *Service) GetByID(ctx context.Context, id string) (*model.BlogPost, error) {
	if !validPostID(id) {
		return nil, model.NewPostNotFoundError(id)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	post, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, model.NewStoreError(fmt.Sprintf("failed to load post: %v", err))
	}
	if post == nil {
		return nil, model.NewPostNotFoundError(id)
	}
	return post, nil
}

// ListWithStats は全記事（下書き含む）と集計値を返す。管理画面用。
func (s *Service) ListWithStats(ctx context.Context) ([]*model.BlogPost, model.PostStats, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	posts, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, model.PostStats{}, model.NewStoreError(fmt.Sprintf("failed to list posts: %v", err))
	}
	return posts, model.ComputeStats(posts), nil
}

// ListPublished は公開済み記事をページング取得する。
// pageは1始まり。limitは1〜maxPageSizeにクランプされる。
func (s *Service) ListPublished(ctx context.Context, page, limit int) ([]*model.BlogPost, int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset := (page - 1) * limit

	posts, err := s.repo.ListPublished(ctx, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list published posts: %w", err)
	}

	total, err := s.repo.CountPublished(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count published posts: %w", err)
	}

	return posts, total, nil
}

// GetPublishedBySlug はスラッグで公開済み記事を取得する。
// 下書きは見つからない扱いになる。
func (s *Service) GetPublishedBySlug(ctx context.Context, slug string) (*model.BlogPost, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	post, err := s.repo.FindPublishedBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("failed to load post by slug: %w", err)
	}
	if post == nil {
		return nil, model.NewPostNotFoundError(slug)
	}
	return post, nil
}

// buildPost は入力フィールドを検証し、保存可能な記事を組み立てる。
// excludeIDが空でない場合、そのレコード自身はスラッグ重複チェックの対象外。
func (s *Service) buildPost(ctx context.Context, excludeID string, fields model.PostFields) (*model.BlogPost, error) {
	title := strings.TrimSpace(fields.Title)
	if title == "" {
		return nil, model.NewValidationError("Title is required.")
	}
	if len([]rune(title)) > maxTitleLength {
		return nil, model.NewValidationError(fmt.Sprintf("Title must be at most %d characters.", maxTitleLength))
	}

	content := strings.TrimSpace(fields.Content)
	if content == "" {
		return nil, model.NewValidationError("Content is required.")
	}
	if s.sanitizer != nil {
		content = s.sanitizer.SanitizeHTML(content)
	}

	slug := strings.TrimSpace(fields.Slug)
	if slug == "" {
		slug = Slugify(title)
	}
	if !ValidSlug(slug) {
		return nil, model.NewValidationError("Slug may contain only lowercase letters, digits, and hyphens.")
	}

	// 通常ケースを即座に弾くための事前チェック。
	// 競合書き込みに対する権威的な判定はストアのユニークインデックスが担う。
	exists, err := s.repo.SlugExists(ctx, slug, excludeID)
	if err != nil {
		return nil, model.NewStoreError(fmt.Sprintf("failed to check slug: %v", err))
	}
	if exists {
		return nil, model.NewSlugConflictError(slug)
	}

	excerpt := strings.TrimSpace(fields.Excerpt)
	if excerpt == "" {
		excerpt = DeriveExcerpt(content)
	}
	// テキストノードのない本文（画像のみ等）からは導出できない
	if excerpt == "" {
		return nil, model.NewValidationError("Excerpt is required and could not be derived from the content.")
	}
	if len([]rune(excerpt)) > maxExcerptLength {
		return nil, model.NewValidationError(fmt.Sprintf("Excerpt must be at most %d characters.", maxExcerptLength))
	}

	imageURL := strings.TrimSpace(fields.ImageURL)
	if imageURL != "" && s.imageVal != nil {
		if err := s.imageVal.ValidateImageURL(imageURL); err != nil {
			return nil, model.NewValidationError(fmt.Sprintf("Invalid image URL: %v", err))
		}
	}

	return &model.BlogPost{
		Title:     title,
		Slug:      slug,
		Excerpt:   excerpt,
		Content:   content,
		ImageURL:  imageURL,
		Published: fields.Published,
	}, nil
}

// freshStats は最新のコレクションを走査して集計値を再計算する。
// 変更操作のたびに呼び出し、古い集計値の使い回しを防ぐ。
func (s *Service) freshStats(ctx context.Context) (model.PostStats, error) {
	posts, err := s.repo.ListAll(ctx)
	if err != nil {
		return model.PostStats{}, model.NewStoreError(fmt.Sprintf("failed to recompute stats: %v", err))
	}
	return model.ComputeStats(posts), nil
}

// validPostID はUUID形式かどうかを判定する。
// 不正な形式はストアに問い合わせるまでもなく存在しない。
func validPostID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// withTimeout は設定された打ち切り時間付きのコンテキストを返す。
func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.config.StoreTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.config.StoreTimeout)
}

// DeriveExcerpt は本文からプレーンテキストの要約を導出する。
// HTMLタグを除去し、空白を正規化した先頭部分を返す。
func DeriveExcerpt(content string) string {
	text := stripHTML(content)
	words := strings.Fields(text)
	text = strings.Join(words, " ")

	runes := []rune(text)
	if len(runes) <= maxExcerptLength {
		return text
	}

	// 単語の途中で切らない
	cut := string(runes[:maxExcerptLength-3])
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		cut = cut[:idx]
	}
	return cut + "..."
}

// stripHTML はHTMLフラグメントからテキストノードのみを取り出す。
func stripHTML(content string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(content))
	var b strings.Builder
	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			b.Write(tokenizer.Text())
			b.WriteByte(' ')
		}
	}
}
