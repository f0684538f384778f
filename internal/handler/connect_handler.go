// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/fiddo/connect/internal/linking"
	"github.com/fiddo/connect/internal/middleware"
	"github.com/fiddo/connect/internal/model"
)

const sessionCookieName = "session_token"

// LinkingServiceInterface は連携ハンドラーが必要とするサービスインターフェース。
type LinkingServiceInterface interface {
	HandleMercadoLibreCallback(ctx context.Context, cb linking.MercadoLibreCallback) linking.Outcome
	HandleTiendaNubeCallback(ctx context.Context, cb linking.TiendaNubeCallback) linking.Outcome
	Disconnect(ctx context.Context, userID string, kind model.ProviderKind) error
}

// ConnectHandlerConfig は連携ハンドラーの設定。
type ConnectHandlerConfig struct {
	// BaseURL はリダイレクト先フロントエンドのベースURL。
	BaseURL string
}

// ConnectHandler はプロバイダー連携のHTTPハンドラー。
// コールバックはブラウザのナビゲーション中に呼ばれるため、
// エラーもHTTPステータスではなくリダイレクトのクエリパラメータで伝える。
type ConnectHandler struct {
	service LinkingServiceInterface
	config  ConnectHandlerConfig
}

// NewConnectHandler はConnectHandlerを生成する。
func NewConnectHandler(service LinkingServiceInterface, config ConnectHandlerConfig) *ConnectHandler {
	return &ConnectHandler{
		service: service,
		config:  config,
	}
}

// MercadoLibreCallback はMercadoLibreのOAuthコールバックを処理する。
// GET /auth/mercadolibre/callback?code=xxx&error=yyy
func (h *ConnectHandler) MercadoLibreCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	outcome := h.service.HandleMercadoLibreCallback(r.Context(), linking.MercadoLibreCallback{
		SessionToken:  sessionTokenFromRequest(r),
		Code:          query.Get("code"),
		ProviderError: query.Get("error"),
	})

	h.redirect(w, r, "mercadolibre", outcome)
}

// TiendaNubeCallback はTienda NubeのOAuthコールバックを処理する。
// GET /auth/tiendanube/callback?code=xxx&store_id=yyy&error=zzz
func (h *ConnectHandler) TiendaNubeCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	outcome := h.service.HandleTiendaNubeCallback(r.Context(), linking.TiendaNubeCallback{
		SessionToken:  sessionTokenFromRequest(r),
		Code:          query.Get("code"),
		StoreID:       query.Get("store_id"),
		ProviderError: query.Get("error"),
	})

	h.redirect(w, r, "tiendanube", outcome)
}

// DisconnectMercadoLibre はMercadoLibre連携を解除する。
// POST /auth/mercadolibre/disconnect
func (h *ConnectHandler) DisconnectMercadoLibre(w http.ResponseWriter, r *http.Request) {
	h.disconnect(w, r, model.ProviderMercadoLibre)
}

// DisconnectTiendaNube はTienda Nube連携を解除する。
// POST /auth/tiendanube/disconnect
func (h *ConnectHandler) DisconnectTiendaNube(w http.ResponseWriter, r *http.Request) {
	h.disconnect(w, r, model.ProviderTiendaNube)
}

func (h *ConnectHandler) disconnect(w http.ResponseWriter, r *http.Request, kind model.ProviderKind) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	if err := h.service.Disconnect(r.Context(), userID, kind); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// redirect はコールバックの結果に応じてブラウザをリダイレクトする。
// 成功は <provider>_success=true、失敗は <provider>_error=<reason>。
func (h *ConnectHandler) redirect(w http.ResponseWriter, r *http.Request, provider string, outcome linking.Outcome) {
	if outcome.RedirectToLogin {
		http.Redirect(w, r, h.config.BaseURL+"/login", http.StatusTemporaryRedirect)
		return
	}

	target, err := url.Parse(h.config.BaseURL + "/dashboard")
	if err != nil {
		slog.Error("invalid base URL", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	query := target.Query()
	if outcome.Indicator == model.IndicatorSuccess {
		query.Set(provider+"_success", "true")
	} else {
		query.Set(provider+"_error", outcome.Indicator)
	}
	target.RawQuery = query.Encode()

	http.Redirect(w, r, target.String(), http.StatusTemporaryRedirect)
}

// sessionTokenFromRequest はセッションCookieの値を返す。欠落時は空文字。
// 検証はサービス層で行う（コールバックでは401ではなくログインへ誘導するため）。
func sessionTokenFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}
