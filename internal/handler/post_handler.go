package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/massargual/portfolio-api/internal/model"
)

// PostServiceInterface は記事ハンドラーが必要とするサービスインターフェース。
type PostServiceInterface interface {
	Create(ctx context.Context, fields model.PostFields) (*model.BlogPost, model.PostStats, error)
	Update(ctx context.Context, id string, fields model.PostFields) (*model.BlogPost, model.PostStats, error)
	SetPublished(ctx context.Context, id string, expected bool) (*model.BlogPost, model.PostStats, error)
	Delete(ctx context.Context, id string) (model.PostStats, error)
	GetByID(ctx context.Context, id string) (*model.BlogPost, error)
	ListWithStats(ctx context.Context) ([]*model.BlogPost, model.PostStats, error)
}

// PostMetrics は記事の変更操作のメトリクス記録インターフェース。
type PostMetrics interface {
	RecordPostMutation(operation string)
}

// PostHandler は管理画面向けの記事CRUDハンドラー。
// 全エンドポイントはRequireUserミドルウェアの背後に配置される。
type PostHandler struct {
	service PostServiceInterface
	metrics PostMetrics
}

// NewPostHandler はPostHandlerを生成する。metricsはnil可。
func NewPostHandler(service PostServiceInterface, metrics PostMetrics) *PostHandler {
	return &PostHandler{
		service: service,
		metrics: metrics,
	}
}

// postFieldsRequest は記事の作成・更新リクエストのボディ。
type postFieldsRequest struct {
	Title     string `json:"title"`
	Slug      string `json:"slug"`
	Excerpt   string `json:"excerpt"`
	Content   string `json:"content"`
	ImageURL  string `json:"image_url"`
	Published bool   `json:"published"`
}

// publishToggleRequest は公開フラグ切り替えリクエストのボディ。
// publishedにはクライアントが見ていた現在の公開状態を入れる。
type publishToggleRequest struct {
	Published bool `json:"published"`
}

// postWithStatsResponse は変更操作後のレスポンス。
// 集計値は変更後のコレクションから再計算された最新値。
type postWithStatsResponse struct {
	Post  postResponse    `json:"post"`
	Stats model.PostStats `json:"stats"`
}

// postListResponse は管理画面向けの記事一覧レスポンス。
type postListResponse struct {
	Posts []postResponse  `json:"posts"`
	Stats model.PostStats `json:"stats"`
}

// List は全記事（下書き含む）と集計値を返す。
// GET /admin/api/posts
func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	posts, stats, err := h.service.ListWithStats(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, postListResponse{
		Posts: toPostResponses(posts),
		Stats: stats,
	})
}

// Get は記事1件を返す。下書きも対象。
// GET /admin/api/posts/{id}
func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	post, err := h.service.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPostResponse(post))
}

// Create は記事を新規作成する。
// POST /admin/api/posts
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req postFieldsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	post, stats, err := h.service.Create(r.Context(), toPostFields(req))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.recordMutation("create")
	writeJSON(w, http.StatusCreated, postWithStatsResponse{
		Post:  toPostResponse(post),
		Stats: stats,
	})
}

// Update は記事を上書き更新する。
// PUT /admin/api/posts/{id}
func (h *PostHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req postFieldsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	post, stats, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), toPostFields(req))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.recordMutation("update")
	writeJSON(w, http.StatusOK, postWithStatsResponse{
		Post:  toPostResponse(post),
		Stats: stats,
	})
}

// Publish は公開フラグを楽観的に切り替える。
// ボディのpublishedが現在のストア値と一致しない場合は409を返す。
// POST /admin/api/posts/{id}/publish
func (h *PostHandler) Publish(w http.ResponseWriter, r *http.Request) {
	var req publishToggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	post, stats, err := h.service.SetPublished(r.Context(), chi.URLParam(r, "id"), req.Published)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.recordMutation("publish_toggle")
	writeJSON(w, http.StatusOK, postWithStatsResponse{
		Post:  toPostResponse(post),
		Stats: stats,
	})
}

// Delete は記事を削除し、削除後の集計値を返す。
// DELETE /admin/api/posts/{id}
func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.recordMutation("delete")
	writeJSON(w, http.StatusOK, map[string]model.PostStats{"stats": stats})
}

func (h *PostHandler) recordMutation(operation string) {
	if h.metrics != nil {
		h.metrics.RecordPostMutation(operation)
	}
}

// toPostFields はリクエストボディをサービス層の入力に変換する。
func toPostFields(req postFieldsRequest) model.PostFields {
	return model.PostFields{
		Title:     req.Title,
		Slug:      req.Slug,
		Excerpt:   req.Excerpt,
		Content:   req.Content,
		ImageURL:  req.ImageURL,
		Published: req.Published,
	}
}
