package tiendanube

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func testClient(tokenURL, apiBaseURL string) *Client {
	return NewClient(Config{
		ClientID:     "test-client-id",
		ClientSecret: "test-client-secret",
		RedirectURI:  "http://localhost:8080/auth/tiendanube/callback",
		UserAgent:    "Fiddo-App (support@fiddo.app)",
		TokenURL:     tokenURL,
		APIBaseURL:   apiBaseURL,
	}, &http.Client{Timeout: 5 * time.Second}, testLogger())
}

func TestExchangeCode_Success(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var reqBody map[string]string
		if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
			t.Fatalf("failed to decode request body: %v", err)
		}
		if reqBody["client_id"] != "test-client-id" {
			t.Errorf("client_id = %q", reqBody["client_id"])
		}
		if reqBody["code"] != "abc123" {
			t.Errorf("code = %q", reqBody["code"])
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "tok",
			"token_type":   "bearer",
			"scope":        "read_products,read_customers",
			"user_id":      101,
			"store_id":     999,
		})
	}))
	defer tokenServer.Close()

	client := testClient(tokenServer.URL, "")

	result, err := client.ExchangeCode(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("ExchangeCode() error = %v", err)
	}

	if result.AccessToken != "tok" {
		t.Errorf("AccessToken = %q, want %q", result.AccessToken, "tok")
	}
	if result.StoreID != "999" {
		t.Errorf("StoreID = %q, want %q", result.StoreID, "999")
	}
	if result.UserID != "101" {
		t.Errorf("UserID = %q, want %q", result.UserID, "101")
	}
	if result.TokenType != "bearer" {
		t.Errorf("TokenType = %q", result.TokenType)
	}
}

func TestExchangeCode_StoreIDOmitted_ReturnsEmptyStoreID(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok","token_type":"bearer"}`))
	}))
	defer tokenServer.Close()

	client := testClient(tokenServer.URL, "")

	result, err := client.ExchangeCode(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("ExchangeCode() error = %v", err)
	}

	// store_id欠落時は空文字列（呼び出し元がコールバックの値で補完する）
	if result.StoreID != "" {
		t.Errorf("StoreID = %q, want empty", result.StoreID)
	}
}

func TestExchangeCode_NonSuccessStatus_ReturnsError(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid_client"}`))
	}))
	defer tokenServer.Close()

	client := testClient(tokenServer.URL, "")

	if _, err := client.ExchangeCode(context.Background(), "abc123"); err == nil {
		t.Fatal("expected error for non-success status")
	}
}

// requireHeaders はTienda Nube APIが要求するヘッダーが揃っていることを検証する。
func requireHeaders(t *testing.T, r *http.Request) {
	t.Helper()
	if auth := r.Header.Get("Authentication"); auth != "bearer tn-token" {
		t.Errorf("Authentication = %q, want %q", auth, "bearer tn-token")
	}
	if auth := r.Header.Get("Authorization"); auth != "Bearer tn-token" {
		t.Errorf("Authorization = %q, want %q", auth, "Bearer tn-token")
	}
	if ua := r.Header.Get("User-Agent"); ua != "Fiddo-App (support@fiddo.app)" {
		t.Errorf("User-Agent = %q", ua)
	}
	if accept := r.Header.Get("Accept"); accept != "application/json" {
		t.Errorf("Accept = %q", accept)
	}
}

func TestFetchCustomers_Success(t *testing.T) {
	apiServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requireHeaders(t, r)
		if r.URL.Path != "/999/customers" {
			t.Errorf("path = %q, want /999/customers", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("per_page") != "20" {
			t.Errorf("per_page = %q, want 20", q.Get("per_page"))
		}
		if q.Get("page") != "1" {
			t.Errorf("page = %q, want 1", q.Get("page"))
		}
		if q.Get("sort") != "orders_count:desc" {
			t.Errorf("sort = %q", q.Get("sort"))
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Total-Count", "57")
		w.Write([]byte(`[{"id":1,"name":"Ana","orders_count":3},{"id":2,"email":"b@example.com"}]`))
	}))
	defer apiServer.Close()

	client := testClient("", apiServer.URL)

	customers, total, err := client.FetchCustomers(context.Background(), "tn-token", "999", 1, 20)
	if err != nil {
		t.Fatalf("FetchCustomers() error = %v", err)
	}

	if len(customers) != 2 {
		t.Fatalf("len(customers) = %d, want 2", len(customers))
	}
	if total != 57 {
		t.Errorf("total = %d, want 57", total)
	}
	if customers[0].Name == nil || *customers[0].Name != "Ana" {
		t.Errorf("customers[0].Name = %v", customers[0].Name)
	}
	if customers[0].OrdersCount == nil || *customers[0].OrdersCount != 3 {
		t.Errorf("customers[0].OrdersCount = %v", customers[0].OrdersCount)
	}
}

func TestFetchCustomers_MissingTotalHeader_FallsBackToItemCount(t *testing.T) {
	apiServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":1},{"id":2},{"id":3}]`))
	}))
	defer apiServer.Close()

	client := testClient("", apiServer.URL)

	_, total, err := client.FetchCustomers(context.Background(), "tn-token", "999", 1, 20)
	if err != nil {
		t.Fatalf("FetchCustomers() error = %v", err)
	}

	if total != 3 {
		t.Errorf("total = %d, want 3 (fallback to item count)", total)
	}
}

func TestFetchProducts_Success(t *testing.T) {
	apiServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requireHeaders(t, r)
		if r.URL.Path != "/999/products" {
			t.Errorf("path = %q, want /999/products", r.URL.Path)
		}
		if fields := r.URL.Query().Get("fields"); fields != "id,name,images,variants" {
			t.Errorf("fields = %q", fields)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Total-Count", "1")
		w.Write([]byte(`[{"id":10,"name":"Remera","images":[{"src":"https://cdn.example.com/1.jpg"}],"variants":[{"price":"1500.00","promotional_price":"1200.00","stock":7}]}]`))
	}))
	defer apiServer.Close()

	client := testClient("", apiServer.URL)

	products, total, err := client.FetchProducts(context.Background(), "tn-token", "999", 1, 20)
	if err != nil {
		t.Fatalf("FetchProducts() error = %v", err)
	}

	if total != 1 {
		t.Errorf("total = %d, want 1", total)
	}
	if len(products) != 1 {
		t.Fatalf("len(products) = %d, want 1", len(products))
	}
	p := products[0]
	if p.Name != "Remera" {
		t.Errorf("Name = %q", p.Name)
	}
	if len(p.Variants) != 1 || p.Variants[0].PromotionalPrice == nil || *p.Variants[0].PromotionalPrice != "1200.00" {
		t.Errorf("Variants = %+v", p.Variants)
	}
	if p.Variants[0].Stock == nil || *p.Variants[0].Stock != 7 {
		t.Errorf("Stock = %v", p.Variants[0].Stock)
	}
}

func TestFetchProducts_NonSuccessStatus_ReturnsError(t *testing.T) {
	apiServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"message":"rate limited"}`))
	}))
	defer apiServer.Close()

	client := testClient("", apiServer.URL)

	if _, _, err := client.FetchProducts(context.Background(), "tn-token", "999", 1, 20); err == nil {
		t.Fatal("expected error for non-success status")
	}
}

func TestFetchStoreProfile_Success(t *testing.T) {
	apiServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requireHeaders(t, r)
		if r.URL.Path != "/999/store" {
			t.Errorf("path = %q, want /999/store", r.URL.Path)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":999,"name":{"es":"Mi Tienda"}}`))
	}))
	defer apiServer.Close()

	client := testClient("", apiServer.URL)

	profile, err := client.FetchStoreProfile(context.Background(), "tn-token", "999")
	if err != nil {
		t.Fatalf("FetchStoreProfile() error = %v", err)
	}

	if profile["id"] != float64(999) {
		t.Errorf("id = %v", profile["id"])
	}
}
