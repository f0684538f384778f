package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fiddo/connect/internal/model"
	"github.com/fiddo/connect/internal/provider/tiendanube"
)

const testThumbnail = "/brand/Fiddo.JPG"

type mockLinkReader struct {
	findFunc func(ctx context.Context, userID string) (*model.TiendaNubeLink, error)
}

func (m *mockLinkReader) FindTiendaNubeLink(ctx context.Context, userID string) (*model.TiendaNubeLink, error) {
	return m.findFunc(ctx, userID)
}

type mockStorefront struct {
	fetchCustomersFunc func(ctx context.Context, accessToken, storeID string, page, perPage int) ([]tiendanube.Customer, int, error)
	fetchProductsFunc  func(ctx context.Context, accessToken, storeID string, page, perPage int) ([]tiendanube.Product, int, error)
}

func (m *mockStorefront) FetchCustomers(ctx context.Context, accessToken, storeID string, page, perPage int) ([]tiendanube.Customer, int, error) {
	return m.fetchCustomersFunc(ctx, accessToken, storeID, page, perPage)
}

func (m *mockStorefront) FetchProducts(ctx context.Context, accessToken, storeID string, page, perPage int) ([]tiendanube.Product, int, error) {
	return m.fetchProductsFunc(ctx, accessToken, storeID, page, perPage)
}

type mockMetrics struct {
	requests []string // "provider/operation/outcome"
}

func (m *mockMetrics) RecordProviderRequest(provider, operation, outcome string, duration time.Duration) {
	m.requests = append(m.requests, provider+"/"+operation+"/"+outcome)
}

func linkedReader() *mockLinkReader {
	return &mockLinkReader{
		findFunc: func(ctx context.Context, userID string) (*model.TiendaNubeLink, error) {
			return &model.TiendaNubeLink{
				StoreID:     "98765",
				AccessToken: "tn-token",
			}, nil
		},
	}
}

func strPtr(s string) *string { return &s }

func intPtr(n int) *int { return &n }

func floatPtr(f float64) *float64 { return &f }

func TestPageRequest_resolve(t *testing.T) {
	tests := []struct {
		name        string
		req         PageRequest
		wantPage    int
		wantPerPage int
	}{
		{name: "ゼロ値は既定サイズの先頭ページ", req: PageRequest{}, wantPage: 1, wantPerPage: 20},
		{name: "limit=20 offset=0", req: PageRequest{Limit: 20, Offset: 0}, wantPage: 1, wantPerPage: 20},
		{name: "limit=50 offset=100は3ページ目", req: PageRequest{Limit: 50, Offset: 100}, wantPage: 3, wantPerPage: 50},
		{name: "limitは100で丸める", req: PageRequest{Limit: 500, Offset: 0}, wantPage: 1, wantPerPage: 100},
		{name: "負のoffsetは0として扱う", req: PageRequest{Limit: 10, Offset: -5}, wantPage: 1, wantPerPage: 10},
		{name: "負のlimitは既定値", req: PageRequest{Limit: -1, Offset: 40}, wantPage: 3, wantPerPage: 20},
		{name: "offsetがperPageの倍数でない場合は商で切り捨て", req: PageRequest{Limit: 20, Offset: 30}, wantPage: 2, wantPerPage: 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, perPage := tt.req.resolve()
			if page != tt.wantPage || perPage != tt.wantPerPage {
				t.Errorf("resolve() = (%d, %d), want (%d, %d)", page, perPage, tt.wantPage, tt.wantPerPage)
			}
		})
	}
}

func TestService_ListCustomers(t *testing.T) {
	t.Run("正常系: 正規化とページング", func(t *testing.T) {
		storefront := &mockStorefront{
			fetchCustomersFunc: func(ctx context.Context, accessToken, storeID string, page, perPage int) ([]tiendanube.Customer, int, error) {
				if accessToken != "tn-token" || storeID != "98765" {
					t.Errorf("credentials = (%q, %q)", accessToken, storeID)
				}
				if page != 3 || perPage != 50 {
					t.Errorf("paging = (%d, %d), want (3, 50)", page, perPage)
				}
				return []tiendanube.Customer{
					{
						ID:          1,
						Name:        strPtr("Ana García"),
						Email:       strPtr("ana@example.com"),
						FirstName:   strPtr("Ana"),
						LastName:    strPtr("García"),
						OrdersCount: intPtr(12),
						DefaultAddress: &tiendanube.Address{
							Province: strPtr("Buenos Aires"),
						},
					},
					{ID: 2, Email: strPtr("solo-email@example.com")},
					{ID: 3},
				}, 143, nil
			},
		}
		metrics := &mockMetrics{}
		svc := NewService(linkedReader(), storefront, metrics, testThumbnail)

		result, err := svc.ListCustomers(context.Background(), "user-1", PageRequest{Limit: 50, Offset: 100})
		if err != nil {
			t.Fatalf("ListCustomers: %v", err)
		}

		if result.Total != 143 {
			t.Errorf("Total = %d, want 143", result.Total)
		}
		if len(result.Items) != 3 {
			t.Fatalf("len(Items) = %d, want 3", len(result.Items))
		}

		first := result.Items[0]
		if first.ID != "1" || first.Nickname != "Ana García" || first.PurchaseCount != 12 {
			t.Errorf("first = %+v", first)
		}
		if first.Province == nil || *first.Province != "Buenos Aires" {
			t.Errorf("Province = %v", first.Province)
		}

		if result.Items[1].Nickname != "solo-email@example.com" {
			t.Errorf("email fallback nickname = %q", result.Items[1].Nickname)
		}
		if result.Items[2].Nickname != "Cliente 3" {
			t.Errorf("placeholder nickname = %q", result.Items[2].Nickname)
		}
		if result.Items[2].PurchaseCount != 0 {
			t.Errorf("PurchaseCount = %d, want 0", result.Items[2].PurchaseCount)
		}

		if len(metrics.requests) != 1 || metrics.requests[0] != "tiendanube/customers/success" {
			t.Errorf("metrics = %v", metrics.requests)
		}
	})

	t.Run("異常系: 未連携", func(t *testing.T) {
		links := &mockLinkReader{
			findFunc: func(ctx context.Context, userID string) (*model.TiendaNubeLink, error) {
				return nil, nil
			},
		}
		svc := NewService(links, nil, &mockMetrics{}, testThumbnail)

		_, err := svc.ListCustomers(context.Background(), "user-1", PageRequest{})

		var apiErr *model.APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("error type = %T", err)
		}
		if apiErr.Code != model.ErrCodeNotConnected {
			t.Errorf("Code = %q, want %q", apiErr.Code, model.ErrCodeNotConnected)
		}
	})

	t.Run("異常系: 上流の失敗", func(t *testing.T) {
		storefront := &mockStorefront{
			fetchCustomersFunc: func(ctx context.Context, accessToken, storeID string, page, perPage int) ([]tiendanube.Customer, int, error) {
				return nil, 0, errors.New("request failed with status 429")
			},
		}
		metrics := &mockMetrics{}
		svc := NewService(linkedReader(), storefront, metrics, testThumbnail)

		_, err := svc.ListCustomers(context.Background(), "user-1", PageRequest{})

		var apiErr *model.APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("error type = %T", err)
		}
		if apiErr.Code != model.ErrCodeUpstreamError {
			t.Errorf("Code = %q, want %q", apiErr.Code, model.ErrCodeUpstreamError)
		}
		if len(metrics.requests) != 1 || metrics.requests[0] != "tiendanube/customers/error" {
			t.Errorf("metrics = %v", metrics.requests)
		}
	})
}

func TestService_ListProducts(t *testing.T) {
	t.Run("正常系: 価格・在庫・サムネイルの正規化", func(t *testing.T) {
		storefront := &mockStorefront{
			fetchProductsFunc: func(ctx context.Context, accessToken, storeID string, page, perPage int) ([]tiendanube.Product, int, error) {
				return []tiendanube.Product{
					{
						ID:   10,
						Name: "Remera",
						Images: []tiendanube.Image{
							{Src: "https://cdn.example.com/remera.jpg"},
						},
						Variants: []tiendanube.Variant{
							{Price: strPtr("1500.00"), PromotionalPrice: strPtr("990.50"), Stock: floatPtr(7)},
						},
					},
					{
						ID:   11,
						Name: "Gorra",
						Variants: []tiendanube.Variant{
							{Price: strPtr("800.00"), Stock: nil},
						},
					},
					{ID: 12, Name: "Sin variantes"},
					{
						ID:   13,
						Name: "Precio inválido",
						Variants: []tiendanube.Variant{
							{Price: strPtr("no-es-numero")},
						},
					},
				}, 4, nil
			},
		}
		svc := NewService(linkedReader(), storefront, &mockMetrics{}, testThumbnail)

		result, err := svc.ListProducts(context.Background(), "user-1", PageRequest{})
		if err != nil {
			t.Fatalf("ListProducts: %v", err)
		}
		if len(result.Items) != 4 {
			t.Fatalf("len(Items) = %d, want 4", len(result.Items))
		}

		first := result.Items[0]
		if first.ID != "10" || first.Title != "Remera" {
			t.Errorf("first = %+v", first)
		}
		if first.Price != 990.50 {
			t.Errorf("promotional price = %v, want 990.50", first.Price)
		}
		if first.AvailableQuantity != 7 {
			t.Errorf("AvailableQuantity = %d, want 7", first.AvailableQuantity)
		}
		if first.Thumbnail != "https://cdn.example.com/remera.jpg" {
			t.Errorf("Thumbnail = %q", first.Thumbnail)
		}

		second := result.Items[1]
		if second.Price != 800 {
			t.Errorf("regular price = %v, want 800", second.Price)
		}
		if second.AvailableQuantity != 0 {
			t.Errorf("nil stock quantity = %d, want 0", second.AvailableQuantity)
		}
		if second.Thumbnail != testThumbnail {
			t.Errorf("default thumbnail = %q", second.Thumbnail)
		}

		if result.Items[2].Price != 0 {
			t.Errorf("no-variant price = %v, want 0", result.Items[2].Price)
		}
		if result.Items[3].Price != 0 {
			t.Errorf("invalid price = %v, want 0", result.Items[3].Price)
		}
	})

	t.Run("異常系: 上流の失敗", func(t *testing.T) {
		storefront := &mockStorefront{
			fetchProductsFunc: func(ctx context.Context, accessToken, storeID string, page, perPage int) ([]tiendanube.Product, int, error) {
				return nil, 0, errors.New("request failed with status 500")
			},
		}
		svc := NewService(linkedReader(), storefront, &mockMetrics{}, testThumbnail)

		_, err := svc.ListProducts(context.Background(), "user-1", PageRequest{})

		var apiErr *model.APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("error type = %T", err)
		}
		if apiErr.Code != model.ErrCodeUpstreamError {
			t.Errorf("Code = %q, want %q", apiErr.Code, model.ErrCodeUpstreamError)
		}
	})
}
