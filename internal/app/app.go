package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/massargual/portfolio-api/internal/auth"
	"github.com/massargual/portfolio-api/internal/authclient"
	"github.com/massargual/portfolio-api/internal/config"
	"github.com/massargual/portfolio-api/internal/database"
	"github.com/massargual/portfolio-api/internal/handler"
	"github.com/massargual/portfolio-api/internal/logger"
	"github.com/massargual/portfolio-api/internal/metrics"
	"github.com/massargual/portfolio-api/internal/middleware"
	"github.com/massargual/portfolio-api/internal/post"
	"github.com/massargual/portfolio-api/internal/repository"
	"github.com/massargual/portfolio-api/internal/security"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	postRepo := repository.NewPostgresPostRepo(db)
	contactRepo := repository.NewPostgresContactRepo(db)
	adminRepo := repository.NewPostgresAdminRepo(db)

	// 3. セキュリティサービスの初期化
	sanitizer := security.NewContentSanitizer()
	imageGuard := security.NewImageURLGuard(cfg.ImageURLProbe, cfg.StoreTimeout)

	// 4. メトリクスの初期化
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	// 5. ドメインサービスの初期化
	authStore := authclient.NewClient(authclient.Config{
		BaseURL: cfg.AuthURL,
		APIKey:  cfg.AuthAPIKey,
		Timeout: cfg.AuthTimeout,
	}, &http.Client{Timeout: cfg.AuthTimeout})

	limiter := auth.NewMemoryLoginLimiter(auth.LoginLimiterConfig{
		MaxAttempts:     cfg.LoginMaxAttempts,
		LockoutWindow:   cfg.LoginLockoutWindow,
		CleanupInterval: 5 * time.Minute,
	})
	defer limiter.Stop()

	authService := auth.NewService(authStore, limiter, adminRepo, collector,
		auth.ServiceConfig{CallTimeout: cfg.AuthTimeout})

	postService := post.NewService(postRepo, sanitizer, imageGuard,
		post.ServiceConfig{StoreTimeout: cfg.StoreTimeout})

	cookies := auth.NewCookieManager(auth.CookieConfig{
		Secure:        cfg.CookieSecure,
		Domain:        cfg.CookieDomain,
		AccessMaxAge:  cfg.AccessCookieMaxAge,
		RefreshMaxAge: cfg.RefreshCookieMaxAge,
	})

	// 6. ルーターの構築
	// configのレート制限はreq/min単位なのでreq/secに変換する
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		LoginRate:       rate.Limit(float64(cfg.RateLimitLogin) / 60.0),
		LoginBurst:      cfg.RateLimitLogin,
		ContactRate:     rate.Limit(float64(cfg.RateLimitContact) / 60.0),
		ContactBurst:    cfg.RateLimitContact,
		CleanupInterval: 5 * time.Minute,
	})
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		AuthService:   authService,
		Authenticator: authService,
		Cookies:       cookies,
		PostService:   postService,
		PublicService: postService,
		PublicConfig: handler.PublicHandlerConfig{
			BaseURL:   cfg.BaseURL,
			SiteTitle: cfg.SiteTitle,
		},
		ContactRepo: contactRepo,
		Logger:      slog.Default(),
		RateLimiter: rateLimiter,
		Metrics:     collector,
		Gatherer:    reg,
	})

	// 7. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
