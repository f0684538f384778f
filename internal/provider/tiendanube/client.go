// Package tiendanube はTienda Nube APIのクライアントを提供する。
// 認可コードのトークン交換、ページ単位のリソース取得、ストア情報の取得を行う。
package tiendanube

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
)

const (
	defaultTokenURL   = "https://www.tiendanube.com/apps/authorize/token"
	defaultAPIBaseURL = "https://api.tiendanube.com/v1"

	// totalCountHeader はコレクション全体の件数を伝えるレスポンスヘッダー。
	totalCountHeader = "X-Total-Count"
)

// Config はTienda Nubeクライアントの設定。
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	UserAgent    string

	// テスト用にオーバーライド可能なURL
	TokenURL   string
	APIBaseURL string
}

// Client はTienda Nube APIのクライアント。
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
// StoreIDはレスポンスに含まれない場合があり、その場合は空文字列となる
// （呼び出し元がコールバックのstore_idで補完する）。
type TokenResult struct {
	AccessToken string
	TokenType   string
	Scope       string
	StoreID     string
	UserID      string
}

// tokenResponse はトークンエンドポイントのレスポンス。
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope"`
	UserID      *int64 `json:"user_id"`
	StoreID     *int64 `json:"store_id"`
}

// ExchangeCode は認可コードをアクセストークンに交換する。
// 認可コードは一度しか使えないため、失敗してもリトライしない。
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
		c.logger.Error("tiendanube token exchange failed",
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

	result := &TokenResult{
		AccessToken: tokenResp.AccessToken,
		TokenType:   tokenResp.TokenType,
		Scope:       tokenResp.Scope,
	}
	if tokenResp.StoreID != nil {
		result.StoreID = strconv.FormatInt(*tokenResp.StoreID, 10)
	}
	if tokenResp.UserID != nil {
		result.UserID = strconv.FormatInt(*tokenResp.UserID, 10)
	}

	return result, nil
}

// Customer はTienda Nube APIの顧客リソース。
type Customer struct {
	ID             int64    `json:"id"`
	Email          *string  `json:"email"`
	Name           *string  `json:"name"`
	FirstName      *string  `json:"first_name"`
	LastName       *string  `json:"last_name"`
	OrdersCount    *int     `json:"orders_count"`
	DefaultAddress *Address `json:"default_address"`
}

// Address はTienda Nube APIの住所リソース。
type Address struct {
	Province *string `json:"province"`
}

// Product はTienda Nube APIの商品リソース。
type Product struct {
	ID       int64     `json:"id"`
	Name     string    `json:"name"`
	Images   []Image   `json:"images"`
	Variants []Variant `json:"variants"`
}

// Image はTienda Nube APIの商品画像リソース。
type Image struct {
	Src string `json:"src"`
}

// Variant はTienda Nube APIの商品バリアントリソース。
// 価格は文字列、在庫は数値またはnullで返る。
type Variant struct {
	Price            *string  `json:"price"`
	PromotionalPrice *string  `json:"promotional_price"`
	Stock            *float64 `json:"stock"`
}

// FetchCustomers は顧客の1ページ分を購入回数の降順で取得する。
// 戻り値のtotalはコレクション全体の件数。
func (c *Client) FetchCustomers(ctx context.Context, accessToken, storeID string, page, perPage int) ([]Customer, int, error) {
	query := url.Values{}
	query.Set("sort", "orders_count:desc")

	body, total, err := c.fetchPage(ctx, accessToken, storeID, "customers", page, perPage, query)
	if err != nil {
		return nil, 0, err
	}

	var customers []Customer
	if err := json.Unmarshal(body, &customers); err != nil {
		return nil, 0, fmt.Errorf("failed to parse customers response: %w", err)
	}
	if total < 0 {
		total = len(customers)
	}

	return customers, total, nil
}

// FetchProducts は商品の1ページ分を取得する。
// 正規化に必要なフィールドのみを要求する。
func (c *Client) FetchProducts(ctx context.Context, accessToken, storeID string, page, perPage int) ([]Product, int, error) {
	query := url.Values{}
	query.Set("fields", "id,name,images,variants")

	body, total, err := c.fetchPage(ctx, accessToken, storeID, "products", page, perPage, query)
	if err != nil {
		return nil, 0, err
	}

	var products []Product
	if err := json.Unmarshal(body, &products); err != nil {
		return nil, 0, fmt.Errorf("failed to parse products response: %w", err)
	}
	if total < 0 {
		total = len(products)
	}

	return products, total, nil
}

// FetchStoreProfile はストア情報を取得する。
// プロフィールはそのままレスポンスに埋め込まれるため、構造を解釈せず返す。
func (c *Client) FetchStoreProfile(ctx context.Context, accessToken, storeID string) (map[string]interface{}, error) {
	reqURL := fmt.Sprintf("%s/%s/store", c.config.APIBaseURL, storeID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create store request: %w", err)
	}
	c.setHeaders(req, accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("store request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read store response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("tiendanube store fetch failed",
			slog.Int("http_status", resp.StatusCode),
			slog.String("body", string(body)),
		)
		return nil, fmt.Errorf("store fetch failed with status %d", resp.StatusCode)
	}

	var profile map[string]interface{}
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse store response: %w", err)
	}

	return profile, nil
}

// fetchPage は1ページ分のリソースを取得する。
// totalはX-Total-Countヘッダーから読み取り、欠落時は-1を返す
// （呼び出し元がアイテム数で代替する。欠落は致命的ではない）。
func (c *Client) fetchPage(ctx context.Context, accessToken, storeID, resource string, page, perPage int, query url.Values) ([]byte, int, error) {
	reqURL, err := url.Parse(fmt.Sprintf("%s/%s/%s", c.config.APIBaseURL, storeID, resource))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build request URL: %w", err)
	}

	q := reqURL.Query()
	for key, vals := range query {
		for _, v := range vals {
			q.Add(key, v)
		}
	}
	q.Set("per_page", strconv.Itoa(perPage))
	q.Set("page", strconv.Itoa(page))
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req, accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%s request failed: %w", resource, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read %s response: %w", resource, err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("tiendanube request failed",
			slog.String("resource", resource),
			slog.Int("http_status", resp.StatusCode),
			slog.String("body", string(body)),
		)
		return nil, 0, fmt.Errorf("%s fetch failed with status %d", resource, resp.StatusCode)
	}

	total := -1
	if header := resp.Header.Get(totalCountHeader); header != "" {
		if parsed, err := strconv.Atoi(header); err == nil {
			total = parsed
		}
	}

	return body, total, nil
}

// setHeaders はTienda Nube APIが要求するヘッダーを設定する。
// 旧形式のAuthenticationヘッダーと標準のAuthorizationヘッダーを両方送る。
func (c *Client) setHeaders(req *http.Request, accessToken string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Authentication", "bearer "+accessToken)
	req.Header.Set("Authorization", "Bearer "+accessToken)
}
