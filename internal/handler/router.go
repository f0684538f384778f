package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fiddo/connect/internal/metrics"
	"github.com/fiddo/connect/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger             *slog.Logger
	Authenticator      middleware.Authenticator
	CORSAllowedOrigins []string
	RateLimiter        *middleware.RateLimiter
	StatusMetrics      middleware.StatusRecorder

	// サービス
	LinkingService LinkingServiceInterface
	CatalogService CatalogServiceInterface
	ProfileService ProfileServiceInterface

	// 運用
	HealthChecker   HealthChecker
	MetricsGatherer prometheus.Gatherer

	// 設定
	ConnectConfig ConnectHandlerConfig
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → [Auth → RateLimit]
//
// OAuthコールバック（ブラウザナビゲーション）と運用エンドポイントは
// 認証ミドルウェアの外に配置する。コールバック内のセッション検証は
// サービス層が行う。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigins))
	r.Use(middleware.NewLoggingMiddleware(logger, deps.StatusMetrics))

	connectHandler := NewConnectHandler(deps.LinkingService, deps.ConnectConfig)
	catalogHandler := NewCatalogHandler(deps.CatalogService)
	profileHandler := NewProfileHandler(deps.ProfileService)
	healthHandler := NewHealthHandler(deps.HealthChecker)

	// --- 認証不要のルート ---

	// OAuthコールバック
	r.Route("/auth", func(r chi.Router) {
		r.Get("/mercadolibre/callback", connectHandler.MercadoLibreCallback)
		r.Get("/tiendanube/callback", connectHandler.TiendaNubeCallback)
	})

	// 運用エンドポイント
	r.Get("/health", healthHandler.Health)
	if deps.MetricsGatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.MetricsGatherer))
	}

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.Authenticator))
		r.Use(deps.RateLimiter.Middleware())

		// 連携解除
		r.Post("/auth/mercadolibre/disconnect", connectHandler.DisconnectMercadoLibre)
		r.Post("/auth/tiendanube/disconnect", connectHandler.DisconnectTiendaNube)

		// カタログデータ
		r.Get("/api/customers", catalogHandler.ListCustomers)
		r.Get("/api/products", catalogHandler.ListProducts)

		// プロフィール
		r.Get("/api/profile", profileHandler.GetProfile)
	})

	return r
}
