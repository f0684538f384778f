// Package mercadolibre はMercadoLibre APIのクライアントを提供する。
// 認可コードのトークン交換と、連携ユーザーのプロフィール取得を行う。
package mercadolibre

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

const (
	defaultTokenURL   = "https://api.mercadolibre.com/oauth/token"
	defaultAPIBaseURL = "https://api.mercadolibre.com"
)

// Config はMercadoLibreクライアントの設定。
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string

	// テスト用にオーバーライド可能なURL
	TokenURL   string
	APIBaseURL string
}

// Client はMercadoLibre APIのクライアント。
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient はClientを生成する。
// httpClientには有限のタイムアウトを設定したものを渡すこと。
func NewClient(config Config, httpClient *http.Client, logger *slog.Logger) *Client {
	if config.TokenURL == "" {
		config.TokenURL = defaultTokenURL
	}
	if config.APIBaseURL == "" {
		config.APIBaseURL = defaultAPIBaseURL
	}
	return &Client{
		config:     config,
		httpClient: httpClient,
		logger:     logger,
	}
}

// TokenResult はトークン交換の結果を表す。
type TokenResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	UserID       string // MercadoLibre側のユーザーID
}

// tokenResponse はトークンエンドポイントのレスポンス。
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	UserID       int64  `json:"user_id"`
}

// ExchangeCode は認可コードをアクセストークンに交換する。
// 認可コードは一度しか使えないため、失敗してもリトライしない。
// 上流のエラー内容はログにのみ記録し、呼び出し元にはエラーとしてのみ返す。
func (c *Client) ExchangeCode(ctx context.Context, code string) (*TokenResult, error) {
	reqBody, err := json.Marshal(map[string]string{
		"client_id":     c.config.ClientID,
		"client_secret": c.config.ClientSecret,
		"code":          code,
		"redirect_uri":  c.config.RedirectURI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.TokenURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("mercadolibre token exchange failed",
			slog.Int("http_status", resp.StatusCode),
			slog.String("body", string(body)),
		)
		return nil, fmt.Errorf("token exchange failed with status %d", resp.StatusCode)
	}

	var tokenResp tokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("empty access token in response")
	}

	return &TokenResult{
		AccessToken:  tokenResp.AccessToken,
		RefreshToken: tokenResp.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second),
		UserID:       strconv.FormatInt(tokenResp.UserID, 10),
	}, nil
}

// FetchUserProfile は連携ユーザーのMercadoLibreプロフィールを取得する。
// プロフィールはそのままレスポンスに埋め込まれるため、構造を解釈せず返す。
func (c *Client) FetchUserProfile(ctx context.Context, accessToken, externalUserID string) (map[string]interface{}, error) {
	url := fmt.Sprintf("%s/users/%s", c.config.APIBaseURL, externalUserID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create profile request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("profile request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("mercadolibre profile fetch failed",
			slog.Int("http_status", resp.StatusCode),
			slog.String("body", string(body)),
		)
		return nil, fmt.Errorf("profile fetch failed with status %d", resp.StatusCode)
	}

	var profile map[string]interface{}
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse profile response: %w", err)
	}

	return profile, nil
}
