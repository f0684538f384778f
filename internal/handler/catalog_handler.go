package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/fiddo/connect/internal/catalog"
	"github.com/fiddo/connect/internal/middleware"
	"github.com/fiddo/connect/internal/model"
)

// CatalogServiceInterface はカタログハンドラーが必要とするサービスインターフェース。
type CatalogServiceInterface interface {
	ListCustomers(ctx context.Context, userID string, req catalog.PageRequest) (*model.PagedResult[model.Customer], error)
	ListProducts(ctx context.Context, userID string, req catalog.PageRequest) (*model.PagedResult[model.Product], error)
}

// CatalogHandler は顧客・商品データのHTTPハンドラー。
type CatalogHandler struct {
	service CatalogServiceInterface
}

// NewCatalogHandler はCatalogHandlerを生成する。
func NewCatalogHandler(service CatalogServiceInterface) *CatalogHandler {
	return &CatalogHandler{service: service}
}

// ListCustomers は連携済みストアの顧客一覧を取得する。
// GET /api/customers?limit=20&offset=0
func (h *CatalogHandler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	result, err := h.service.ListCustomers(r.Context(), userID, pageRequestFromQuery(r))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, result)
}

// ListProducts は連携済みストアの商品一覧を取得する。
// GET /api/products?limit=20&offset=0
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	result, err := h.service.ListProducts(r.Context(), userID, pageRequestFromQuery(r))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, result)
}

// pageRequestFromQuery はクエリパラメータからページ指定を組み立てる。
// 数値として解釈できない値はゼロ値のまま扱い、既定値に解決される。
func pageRequestFromQuery(r *http.Request) catalog.PageRequest {
	var req catalog.PageRequest
	query := r.URL.Query()
	if limit, err := strconv.Atoi(query.Get("limit")); err == nil {
		req.Limit = limit
	}
	if offset, err := strconv.Atoi(query.Get("offset")); err == nil {
		req.Offset = offset
	}
	return req
}

// --- ヘルパー関数 ---

// writeJSONResponse はJSONレスポンスを書き込む。
func writeJSONResponse(w http.ResponseWriter, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(body)
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeNotConnected:
		return http.StatusBadRequest
	case model.ErrCodeUpstreamError:
		return http.StatusBadGateway
	case model.ErrCodeUserNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
