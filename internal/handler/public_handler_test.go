package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/mmcdole/gofeed"

	"github.com/massargual/portfolio-api/internal/model"
)

type mockPublicService struct {
	listPublishedFn      func(ctx context.Context, page, limit int) ([]*model.BlogPost, int, error)
	getPublishedBySlugFn func(ctx context.Context, slug string) (*model.BlogPost, error)
}

func (m *mockPublicService) ListPublished(ctx context.Context, page, limit int) ([]*model.BlogPost, int, error) {
	if m.listPublishedFn != nil {
		return m.listPublishedFn(ctx, page, limit)
	}
	return nil, 0, nil
}

func (m *mockPublicService) GetPublishedBySlug(ctx context.Context, slug string) (*model.BlogPost, error) {
	if m.getPublishedBySlugFn != nil {
		return m.getPublishedBySlugFn(ctx, slug)
	}
	return nil, model.NewPostNotFoundError(slug)
}

var _ PublicPostService = (*mockPublicService)(nil)

func newPublicTestHandler(service *mockPublicService) *PublicHandler {
	return NewPublicHandler(service, PublicHandlerConfig{
		BaseURL:   "https://example.com",
		SiteTitle: "Example Blog",
	})
}

func TestListPosts_ReturnsPublishedPage(t *testing.T) {
	service := &mockPublicService{
		listPublishedFn: func(ctx context.Context, page, limit int) ([]*model.BlogPost, int, error) {
			if page != 2 || limit != 5 {
				t.Errorf("page=%d limit=%d, want 2 and 5", page, limit)
			}
			return []*model.BlogPost{samplePost("a", true)}, 11, nil
		},
	}
	h := newPublicTestHandler(service)

	req := httptest.NewRequest(http.MethodGet, "/api/posts?page=2&limit=5", nil)
	rec := httptest.NewRecorder()
	h.ListPosts(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body publicListResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Posts) != 1 || body.Total != 11 {
		t.Errorf("posts=%d total=%d", len(body.Posts), body.Total)
	}
}

func TestListPosts_StoreFailureDegradesToEmpty(t *testing.T) {
	service := &mockPublicService{
		listPublishedFn: func(ctx context.Context, page, limit int) ([]*model.BlogPost, int, error) {
			return nil, 0, errors.New("store unreachable")
		},
	}
	h := newPublicTestHandler(service)

	req := httptest.NewRequest(http.MethodGet, "/api/posts", nil)
	rec := httptest.NewRecorder()
	h.ListPosts(rec, req)

	// 訪問者にはエラーを見せず、空の結果で200を返す
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body publicListResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Posts) != 0 || body.Total != 0 {
		t.Errorf("posts=%d total=%d, want empty", len(body.Posts), body.Total)
	}
}

func TestGetPost_BySlug(t *testing.T) {
	service := &mockPublicService{
		getPublishedBySlugFn: func(ctx context.Context, slug string) (*model.BlogPost, error) {
			if slug != "sample" {
				t.Errorf("slug = %q", slug)
			}
			return samplePost("a", true), nil
		},
	}
	h := newPublicTestHandler(service)

	req := httptest.NewRequest(http.MethodGet, "/api/posts/sample", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("slug", "sample")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	rec := httptest.NewRecorder()
	h.GetPost(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestGetPost_StoreFailureDegradesToNotFound(t *testing.T) {
	service := &mockPublicService{
		getPublishedBySlugFn: func(ctx context.Context, slug string) (*model.BlogPost, error) {
			return nil, errors.New("store unreachable")
		},
	}
	h := newPublicTestHandler(service)

	req := httptest.NewRequest(http.MethodGet, "/api/posts/sample", nil)
	rec := httptest.NewRecorder()
	h.GetPost(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestFeed_ProducesParsableAtom(t *testing.T) {
	service := &mockPublicService{
		listPublishedFn: func(ctx context.Context, page, limit int) ([]*model.BlogPost, int, error) {
			return []*model.BlogPost{samplePost("a", true)}, 1, nil
		},
	}
	h := newPublicTestHandler(service)

	req := httptest.NewRequest(http.MethodGet, "/api/feed", nil)
	rec := httptest.NewRecorder()
	h.Feed(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "atom+xml") {
		t.Errorf("Content-Type = %q", ct)
	}

	// 出力が実際のフィードパーサーで読めることを確認する
	feed, err := gofeed.NewParser().ParseString(rec.Body.String())
	if err != nil {
		t.Fatalf("feed is not parsable: %v\n%s", err, rec.Body.String())
	}
	if feed.Title != "Example Blog" {
		t.Errorf("feed.Title = %q", feed.Title)
	}
	if len(feed.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(feed.Items))
	}
	if feed.Items[0].Link != "https://example.com/blog/sample" {
		t.Errorf("item link = %q", feed.Items[0].Link)
	}
}

func TestFeed_EmptyOnStoreFailure(t *testing.T) {
	service := &mockPublicService{
		listPublishedFn: func(ctx context.Context, page, limit int) ([]*model.BlogPost, int, error) {
			return nil, 0, errors.New("store unreachable")
		},
	}
	h := newPublicTestHandler(service)

	req := httptest.NewRequest(http.MethodGet, "/api/feed", nil)
	rec := httptest.NewRecorder()
	h.Feed(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	feed, err := gofeed.NewParser().ParseString(rec.Body.String())
	if err != nil {
		t.Fatalf("feed is not parsable: %v", err)
	}
	if len(feed.Items) != 0 {
		t.Errorf("items = %d, want 0", len(feed.Items))
	}
}

func TestHealth(t *testing.T) {
	h := newPublicTestHandler(&mockPublicService{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.Health(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
