// Package app はアプリケーションの初期化と起動を提供する。
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

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fiddo/connect/internal/catalog"
	"github.com/fiddo/connect/internal/config"
	"github.com/fiddo/connect/internal/database"
	"github.com/fiddo/connect/internal/handler"
	"github.com/fiddo/connect/internal/linking"
	"github.com/fiddo/connect/internal/logger"
	"github.com/fiddo/connect/internal/metrics"
	"github.com/fiddo/connect/internal/middleware"
	"github.com/fiddo/connect/internal/model"
	"github.com/fiddo/connect/internal/profile"
	"github.com/fiddo/connect/internal/provider/mercadolibre"
	"github.com/fiddo/connect/internal/provider/tiendanube"
	"github.com/fiddo/connect/internal/repository"
	"github.com/fiddo/connect/internal/session"
)

// Init はアプリケーションの初期化を行う。
// .envファイル（存在する場合）と環境変数からConfigを読み込み、
// JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. 開発用の.envを読み込む（無ければそのまま進む）
	_ = godotenv.Load()

	// 2. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 3. 環境変数から設定を読み込む
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
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandSeed:
		return runSeed(cfg)
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

	// 2. リポジトリとセッション検証の初期化
	userRepo := repository.NewPostgresUserRepo(db)
	verifier := session.NewVerifier(cfg.JWTSecret)

	// 3. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. プロバイダークライアントの初期化
	// プロバイダーごとに独立したHTTPクライアントを持たせる
	mlClient := mercadolibre.NewClient(mercadolibre.Config{
		ClientID:     cfg.MercadoLibreClientID,
		ClientSecret: cfg.MercadoLibreClientSecret,
		RedirectURI:  cfg.MercadoLibreRedirectURI,
	}, &http.Client{Timeout: cfg.ProviderTimeout}, slog.Default())

	tnClient := tiendanube.NewClient(tiendanube.Config{
		ClientID:     cfg.TiendaNubeClientID,
		ClientSecret: cfg.TiendaNubeClientSecret,
		RedirectURI:  cfg.TiendaNubeRedirectURI,
		UserAgent:    cfg.TiendaNubeUserAgent,
	}, &http.Client{Timeout: cfg.ProviderTimeout}, slog.Default())

	// 5. ドメインサービスの初期化
	linkingService := linking.NewService(
		verifier, mlClient, tnClient, userRepo,
		linking.ProviderConfigs{
			MercadoLibreConfigured: cfg.MercadoLibreConfigured(),
			TiendaNubeConfigured:   cfg.TiendaNubeConfigured(),
		},
		collector,
	)
	catalogService := catalog.NewService(userRepo, tnClient, collector, cfg.DefaultThumbnail)
	profileService := profile.NewService(userRepo, mlClient, tnClient, collector)

	// 6. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral))
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:             slog.Default(),
		Authenticator:      verifier,
		CORSAllowedOrigins: []string{cfg.CORSAllowedOrigin},
		RateLimiter:        rateLimiter,
		StatusMetrics:      collector,

		LinkingService: linkingService,
		CatalogService: catalogService,
		ProfileService: profileService,

		HealthChecker:   db,
		MetricsGatherer: registry,

		ConnectConfig: handler.ConnectHandlerConfig{BaseURL: cfg.BaseURL},
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
	slog.Info("running database migrations")

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runSeed は開発用のデモユーザーを作成する。
// ユーザー登録はこのサービスの範囲外のため、ローカルで連携フローを
// 試すための最小限のレコードだけを投入する。
func runSeed(cfg *config.Config) error {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	userRepo := repository.NewPostgresUserRepo(db)

	user := &model.User{
		ID:    uuid.NewString(),
		Email: "demo@fiddo.app",
		Name:  "Demo",
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := userRepo.Create(ctx, user); err != nil {
		return fmt.Errorf("failed to create seed user: %w", err)
	}

	slog.Info("seed user created",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)
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
