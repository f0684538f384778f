package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fiddo/connect/internal/catalog"
	"github.com/fiddo/connect/internal/middleware"
	"github.com/fiddo/connect/internal/model"
)

type mockCatalogService struct {
	listCustomersFunc func(ctx context.Context, userID string, req catalog.PageRequest) (*model.PagedResult[model.Customer], error)
	listProductsFunc  func(ctx context.Context, userID string, req catalog.PageRequest) (*model.PagedResult[model.Product], error)
}

func (m *mockCatalogService) ListCustomers(ctx context.Context, userID string, req catalog.PageRequest) (*model.PagedResult[model.Customer], error) {
	return m.listCustomersFunc(ctx, userID, req)
}

func (m *mockCatalogService) ListProducts(ctx context.Context, userID string, req catalog.PageRequest) (*model.PagedResult[model.Product], error) {
	return m.listProductsFunc(ctx, userID, req)
}

func authedRequest(method, target string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	return req.WithContext(middleware.ContextWithUserID(req.Context(), "user-1"))
}

func TestCatalogHandler_ListCustomers(t *testing.T) {
	t.Run("正常系: クエリパラメータの解釈とJSONレスポンス", func(t *testing.T) {
		service := &mockCatalogService{
			listCustomersFunc: func(ctx context.Context, userID string, req catalog.PageRequest) (*model.PagedResult[model.Customer], error) {
				if userID != "user-1" {
					t.Errorf("userID = %q", userID)
				}
				if req.Limit != 50 || req.Offset != 100 {
					t.Errorf("req = %+v", req)
				}
				return &model.PagedResult[model.Customer]{
					Items: []model.Customer{{ID: "1", Nickname: "Ana", PurchaseCount: 3}},
					Total: 143,
				}, nil
			},
		}
		h := NewCatalogHandler(service)

		rec := httptest.NewRecorder()
		h.ListCustomers(rec, authedRequest(http.MethodGet, "/api/customers?limit=50&offset=100"))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
		}

		var body model.PagedResult[model.Customer]
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("failed to parse body: %v", err)
		}
		if body.Total != 143 || len(body.Items) != 1 {
			t.Errorf("body = %+v", body)
		}
		if body.Items[0].Nickname != "Ana" {
			t.Errorf("Items[0] = %+v", body.Items[0])
		}
	})

	t.Run("正常系: 不正なクエリパラメータはゼロ値として扱う", func(t *testing.T) {
		service := &mockCatalogService{
			listCustomersFunc: func(ctx context.Context, userID string, req catalog.PageRequest) (*model.PagedResult[model.Customer], error) {
				if req.Limit != 0 || req.Offset != 0 {
					t.Errorf("req = %+v, want zero values", req)
				}
				return &model.PagedResult[model.Customer]{Items: []model.Customer{}}, nil
			},
		}
		h := NewCatalogHandler(service)

		rec := httptest.NewRecorder()
		h.ListCustomers(rec, authedRequest(http.MethodGet, "/api/customers?limit=abc&offset=xyz"))

		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
		}
	})

	t.Run("異常系: 未連携は400", func(t *testing.T) {
		service := &mockCatalogService{
			listCustomersFunc: func(ctx context.Context, userID string, req catalog.PageRequest) (*model.PagedResult[model.Customer], error) {
				return nil, model.NewNotConnectedError("Tienda Nube")
			},
		}
		h := NewCatalogHandler(service)

		rec := httptest.NewRecorder()
		h.ListCustomers(rec, authedRequest(http.MethodGet, "/api/customers"))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}

		var body apiErrorBody
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("failed to parse body: %v", err)
		}
		if body.Code != model.ErrCodeNotConnected {
			t.Errorf("Code = %q, want %q", body.Code, model.ErrCodeNotConnected)
		}
	})

	t.Run("異常系: 上流の失敗は502", func(t *testing.T) {
		service := &mockCatalogService{
			listCustomersFunc: func(ctx context.Context, userID string, req catalog.PageRequest) (*model.PagedResult[model.Customer], error) {
				return nil, model.NewUpstreamError("clientes")
			},
		}
		h := NewCatalogHandler(service)

		rec := httptest.NewRecorder()
		h.ListCustomers(rec, authedRequest(http.MethodGet, "/api/customers"))

		if rec.Code != http.StatusBadGateway {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusBadGateway)
		}
	})

	t.Run("異常系: 未認証コンテキストは401", func(t *testing.T) {
		h := NewCatalogHandler(&mockCatalogService{})

		rec := httptest.NewRecorder()
		h.ListCustomers(rec, httptest.NewRequest(http.MethodGet, "/api/customers", nil))

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
		}
	})
}

func TestCatalogHandler_ListProducts(t *testing.T) {
	t.Run("正常系: JSONレスポンス", func(t *testing.T) {
		service := &mockCatalogService{
			listProductsFunc: func(ctx context.Context, userID string, req catalog.PageRequest) (*model.PagedResult[model.Product], error) {
				return &model.PagedResult[model.Product]{
					Items: []model.Product{
						{ID: "10", Title: "Remera", Price: 990.5, Thumbnail: "/brand/Fiddo.JPG", AvailableQuantity: 7},
					},
					Total: 1,
				}, nil
			},
		}
		h := NewCatalogHandler(service)

		rec := httptest.NewRecorder()
		h.ListProducts(rec, authedRequest(http.MethodGet, "/api/products"))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
		}

		var body model.PagedResult[model.Product]
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("failed to parse body: %v", err)
		}
		if len(body.Items) != 1 || body.Items[0].Price != 990.5 {
			t.Errorf("body = %+v", body)
		}
	})
}

// apiErrorBody はテストで使うエラーレスポンスの形。
type apiErrorBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}
