package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/massargual/portfolio-api/internal/model"
)

// PublicPostService は公開ハンドラーが必要とするサービスインターフェース。
type PublicPostService interface {
	ListPublished(ctx context.Context, page, limit int) ([]*model.BlogPost, int, error)
	GetPublishedBySlug(ctx context.Context, slug string) (*model.BlogPost, error)
}

// PublicHandlerConfig は公開ハンドラーの設定。
type PublicHandlerConfig struct {
	BaseURL   string // サイトのベースURL。Atomフィードのリンク生成に使う
	SiteTitle string // Atomフィードのタイトル
}

// PublicHandler は訪問者向けの読み取り専用ハンドラー。
// ストア障害は訪問者にエラーとして伝播させず、空の結果に縮退して
// 診断情報をログに残す。
type PublicHandler struct {
	service PublicPostService
	config  PublicHandlerConfig
}

// NewPublicHandler はPublicHandlerを生成する。
func NewPublicHandler(service PublicPostService, config PublicHandlerConfig) *PublicHandler {
	return &PublicHandler{
		service: service,
		config:  config,
	}
}

// publicListResponse は公開記事一覧のレスポンス。
type publicListResponse struct {
	Posts []postResponse `json:"posts"`
	Total int            `json:"total"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
}

// ListPosts は公開済み記事を新着順にページング取得する。
// GET /api/posts?page=1&limit=10
func (h *PublicHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 10)

	posts, total, err := h.service.ListPublished(r.Context(), page, limit)
	if err != nil {
		// 訪問者には空の結果を返し、詳細はログにのみ残す
		slog.Error("public post listing degraded to empty",
			slog.String("error", err.Error()),
		)
		posts, total = nil, 0
	}

	writeJSON(w, http.StatusOK, publicListResponse{
		Posts: toPostResponses(posts),
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// GetPost はスラッグで公開済み記事を取得する。下書きは404になる。
// GET /api/posts/{slug}
func (h *PublicHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	post, err := h.service.GetPublishedBySlug(r.Context(), slug)
	if err != nil {
		apiErr := model.AsAPIError(err)
		if apiErr == nil || apiErr.Code != model.ErrCodePostNotFound {
			slog.Error("public post fetch degraded to not found",
				slog.String("slug", slug),
				slog.String("error", err.Error()),
			)
		}
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewPostNotFoundError(slug))
		return
	}

	writeJSON(w, http.StatusOK, toPostResponse(post))
}

// Health はヘルスチェックエンドポイント。
// GET /health
func (h *PublicHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// queryInt はクエリパラメータを整数として取り出す。不正値はデフォルトに落とす。
func queryInt(r *http.Request, key string, defaultVal int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}
