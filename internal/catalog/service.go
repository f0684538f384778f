// Package catalog はストアフロントプロバイダーの顧客・商品データを
// プロバイダー非依存の形に正規化して提供する。
// 取得はリクエストごとに行い、結果をキャッシュ・永続化しない。
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/fiddo/connect/internal/model"
	"github.com/fiddo/connect/internal/provider/tiendanube"
)

const (
	defaultLimit = 20
	maxPerPage   = 100

	providerLabel = "tiendanube"
)

// LinkReader は連携情報の読み取りに必要なインターフェース。
type LinkReader interface {
	FindTiendaNubeLink(ctx context.Context, userID string) (*model.TiendaNubeLink, error)
}

// StorefrontAPI はストアフロントAPIからのページ取得に必要なインターフェース。
type StorefrontAPI interface {
	FetchCustomers(ctx context.Context, accessToken, storeID string, page, perPage int) ([]tiendanube.Customer, int, error)
	FetchProducts(ctx context.Context, accessToken, storeID string, page, perPage int) ([]tiendanube.Product, int, error)
}

// MetricsRecorder はプロバイダー呼び出しメトリクスの記録インターフェース。
type MetricsRecorder interface {
	RecordProviderRequest(provider, operation, outcome string, duration time.Duration)
}

// Service はカタログデータの取得と正規化を提供する。
type Service struct {
	links            LinkReader
	storefront       StorefrontAPI
	metrics          MetricsRecorder
	defaultThumbnail string
}

// NewService はServiceを生成する。
func NewService(links LinkReader, storefront StorefrontAPI, metrics MetricsRecorder, defaultThumbnail string) *Service {
	return &Service{
		links:            links,
		storefront:       storefront,
		metrics:          metrics,
		defaultThumbnail: defaultThumbnail,
	}
}

// PageRequest はページ指定。ゼロ値は先頭ページ・既定サイズを意味する。
type PageRequest struct {
	Limit  int
	Offset int
}

// resolve はページ指定をプロバイダーAPIのページ番号とページサイズに変換する。
// perPageはlimitを上限100で丸めた値、ページ番号はoffsetをperPageで
// 割った商に1を足した値になる。offsetがperPageの倍数でない場合、
// 返るページの先頭は指定したoffsetと一致しないことがある。
func (p PageRequest) resolve() (page, perPage int) {
	limit := p.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	perPage = limit
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	offset := p.Offset
	if offset < 0 {
		offset = 0
	}
	page = offset/perPage + 1
	return page, perPage
}

// ListCustomers は連携済みストアの顧客を購入回数の降順で1ページ分返す。
func (s *Service) ListCustomers(ctx context.Context, userID string, req PageRequest) (*model.PagedResult[model.Customer], error) {
	link, err := s.requireLink(ctx, userID)
	if err != nil {
		return nil, err
	}

	page, perPage := req.resolve()

	start := time.Now()
	customers, total, err := s.storefront.FetchCustomers(ctx, link.AccessToken, link.StoreID, page, perPage)
	if err != nil {
		s.metrics.RecordProviderRequest(providerLabel, "customers", "error", time.Since(start))
		slog.Error("failed to fetch customers",
			slog.String("user_id", userID),
			slog.String("store_id", link.StoreID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewUpstreamError("clientes")
	}
	s.metrics.RecordProviderRequest(providerLabel, "customers", "success", time.Since(start))

	items := make([]model.Customer, 0, len(customers))
	for _, c := range customers {
		items = append(items, normalizeCustomer(c))
	}

	return &model.PagedResult[model.Customer]{Items: items, Total: total}, nil
}

// ListProducts は連携済みストアの商品を1ページ分返す。
func (s *Service) ListProducts(ctx context.Context, userID string, req PageRequest) (*model.PagedResult[model.Product], error) {
	link, err := s.requireLink(ctx, userID)
	if err != nil {
		return nil, err
	}

	page, perPage := req.resolve()

	start := time.Now()
	products, total, err := s.storefront.FetchProducts(ctx, link.AccessToken, link.StoreID, page, perPage)
	if err != nil {
		s.metrics.RecordProviderRequest(providerLabel, "products", "error", time.Since(start))
		slog.Error("failed to fetch products",
			slog.String("user_id", userID),
			slog.String("store_id", link.StoreID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewUpstreamError("productos")
	}
	s.metrics.RecordProviderRequest(providerLabel, "products", "success", time.Since(start))

	items := make([]model.Product, 0, len(products))
	for _, p := range products {
		items = append(items, s.normalizeProduct(p))
	}

	return &model.PagedResult[model.Product]{Items: items, Total: total}, nil
}

// requireLink は有効なTienda Nube連携を取得する。未連携は業務エラー。
func (s *Service) requireLink(ctx context.Context, userID string) (*model.TiendaNubeLink, error) {
	link, err := s.links.FindTiendaNubeLink(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tiendanube link: %w", err)
	}
	if !link.Active() {
		return nil, model.NewNotConnectedError("Tienda Nube")
	}
	return link, nil
}

// normalizeCustomer はプロバイダーの顧客を正規化する。
// 表示名は name、email、プレースホルダーの順で決まる。
func normalizeCustomer(c tiendanube.Customer) model.Customer {
	id := strconv.FormatInt(c.ID, 10)

	nickname := stringValue(c.Name)
	if nickname == "" {
		nickname = stringValue(c.Email)
	}
	if nickname == "" {
		nickname = "Cliente " + id
	}

	var province *string
	if c.DefaultAddress != nil {
		province = c.DefaultAddress.Province
	}

	purchaseCount := 0
	if c.OrdersCount != nil {
		purchaseCount = *c.OrdersCount
	}

	return model.Customer{
		ID:            id,
		Nickname:      nickname,
		FirstName:     c.FirstName,
		LastName:      c.LastName,
		Email:         c.Email,
		Province:      province,
		PurchaseCount: purchaseCount,
	}
}

// normalizeProduct はプロバイダーの商品を正規化する。
// 価格と在庫は先頭バリアントから、サムネイルは先頭画像から取る。
func (s *Service) normalizeProduct(p tiendanube.Product) model.Product {
	var price float64
	var quantity int
	if len(p.Variants) > 0 {
		v := p.Variants[0]
		price = parsePrice(v.PromotionalPrice, v.Price)
		if v.Stock != nil {
			quantity = int(*v.Stock)
		}
	}

	thumbnail := s.defaultThumbnail
	if len(p.Images) > 0 && p.Images[0].Src != "" {
		thumbnail = p.Images[0].Src
	}

	return model.Product{
		ID:                strconv.FormatInt(p.ID, 10),
		Title:             p.Name,
		Price:             price,
		Thumbnail:         thumbnail,
		AvailableQuantity: quantity,
	}
}

// parsePrice はプロモーション価格、通常価格の順で文字列価格を数値化する。
// どちらも無い、または数値として解釈できない場合は0を返す。
func parsePrice(promotional, regular *string) float64 {
	raw := stringValue(promotional)
	if raw == "" {
		raw = stringValue(regular)
	}
	if raw == "" {
		return 0
	}

	price, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(price) {
		return 0
	}
	return price
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
