package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/massargual/portfolio-api/internal/auth"
	"github.com/massargual/portfolio-api/internal/metrics"
	"github.com/massargual/portfolio-api/internal/middleware"
	"github.com/massargual/portfolio-api/internal/repository"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// 認証
	AuthService   AuthServiceInterface
	Authenticator middleware.Authenticator
	Cookies       *auth.CookieManager

	// 記事
	PostService   PostServiceInterface
	PublicService PublicPostService
	PublicConfig  PublicHandlerConfig

	// 問い合わせ
	ContactRepo repository.ContactRepository

	// 横断的関心事
	Logger      *slog.Logger
	RateLimiter *middleware.RateLimiter
	Metrics     *metrics.Collector
	Gatherer    prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → AdminGate
//
// AdminGateは全リクエストを通過するが、管理パス（ログインを除く）にのみ
// トークン検査を適用する。管理APIはさらにRequireUserで本認証される。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// Metricsはnil可。nilの具象ポインタをそのままインターフェースに
	// 入れると消費側のnil判定をすり抜けるため、ここで変換を止める。
	var gateMetrics middleware.GateMetrics
	var requestMetrics middleware.RequestMetrics
	var postMetrics PostMetrics
	if deps.Metrics != nil {
		gateMetrics = deps.Metrics
		requestMetrics = deps.Metrics
		postMetrics = deps.Metrics
	}

	gate := middleware.NewAdminGate(deps.Cookies, gateMetrics)

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, requestMetrics))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(gate.Middleware())

	authHandler := NewAuthHandler(deps.AuthService, deps.Cookies)
	postHandler := NewPostHandler(deps.PostService, postMetrics)
	publicHandler := NewPublicHandler(deps.PublicService, deps.PublicConfig)
	contactHandler := NewContactHandler(deps.ContactRepo)

	// --- 公開ルート ---

	r.Get("/health", publicHandler.Health)
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/posts", publicHandler.ListPosts)
		r.Get("/posts/{slug}", publicHandler.GetPost)
		r.Get("/feed", publicHandler.Feed)
		r.With(deps.RateLimiter.ContactMiddleware()).Post("/contact", contactHandler.Submit)
	})

	// --- サインインフロー（ゲートの保護対象外のログインサブパス） ---

	r.Route("/admin/login", func(r chi.Router) {
		r.Use(deps.RateLimiter.LoginMiddleware())
		r.Post("/", authHandler.Login)
		r.Post("/otp", authHandler.LoginOTP)
	})

	r.Post("/admin/logout", authHandler.Logout)
	r.Post("/admin/session/refresh", authHandler.Refresh)

	// --- 管理API（本認証必須） ---

	r.Route("/admin/api", func(r chi.Router) {
		r.Use(middleware.NewRequireUserMiddleware(deps.Authenticator))

		r.Get("/session", authHandler.Session)

		r.Route("/posts", func(r chi.Router) {
			r.Get("/", postHandler.List)
			r.Post("/", postHandler.Create)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", postHandler.Get)
				r.Put("/", postHandler.Update)
				r.Delete("/", postHandler.Delete)
				r.Post("/publish", postHandler.Publish)
			})
		})

		r.Get("/contact", contactHandler.List)
	})

	return r
}
