package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Session
	JWTSecret string

	// MercadoLibre OAuth
	// 未設定のままでも起動は可能で、連携フローが
	// MissingConfigurationとして失敗する（起動時には検証しない）。
	MercadoLibreClientID     string
	MercadoLibreClientSecret string
	MercadoLibreRedirectURI  string

	// Tienda Nube OAuth
	TiendaNubeClientID     string
	TiendaNubeClientSecret string
	TiendaNubeRedirectURI  string
	TiendaNubeUserAgent    string

	// Provider
	ProviderTimeout  time.Duration
	DefaultThumbnail string

	// Rate Limit
	RateLimitGeneral int

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// デフォルト値
const (
	// DefaultTiendaNubeUserAgent はTienda Nube APIに送るUser-Agentの既定値。
	DefaultTiendaNubeUserAgent = "Fiddo-App (support@fiddo.app)"
	// DefaultThumbnailAsset は商品画像がない場合のサムネイルの既定値。
	DefaultThumbnailAsset = "/brand/Fiddo.JPG"
)

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Provider credentials（任意。欠落は連携時にMissingConfigurationとなる）
	cfg.MercadoLibreClientID = os.Getenv("MERCADOLIBRE_CLIENT_ID")
	cfg.MercadoLibreClientSecret = os.Getenv("MERCADOLIBRE_CLIENT_SECRET")
	cfg.MercadoLibreRedirectURI = os.Getenv("MERCADOLIBRE_REDIRECT_URI")
	cfg.TiendaNubeClientID = os.Getenv("TIENDANUBE_CLIENT_ID")
	cfg.TiendaNubeClientSecret = os.Getenv("TIENDANUBE_CLIENT_SECRET")
	cfg.TiendaNubeRedirectURI = os.Getenv("TIENDANUBE_REDIRECT_URI")

	// Optional fields with defaults
	cfg.TiendaNubeUserAgent = getEnvString("TIENDANUBE_USER_AGENT", DefaultTiendaNubeUserAgent)
	cfg.ProviderTimeout = getEnvDuration("PROVIDER_TIMEOUT", 10*time.Second)
	cfg.DefaultThumbnail = getEnvString("DEFAULT_THUMBNAIL", DefaultThumbnailAsset)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

// MercadoLibreConfigured はMercadoLibre連携に必要な設定が揃っているかを返す。
func (c *Config) MercadoLibreConfigured() bool {
	return c.MercadoLibreClientID != "" && c.MercadoLibreClientSecret != "" && c.MercadoLibreRedirectURI != ""
}

// TiendaNubeConfigured はTienda Nube連携に必要な設定が揃っているかを返す。
func (c *Config) TiendaNubeConfigured() bool {
	return c.TiendaNubeClientID != "" && c.TiendaNubeClientSecret != "" && c.TiendaNubeRedirectURI != ""
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
