package handler

import (
	"context"
	"net/http"

	"github.com/fiddo/connect/internal/middleware"
	"github.com/fiddo/connect/internal/model"
	"github.com/fiddo/connect/internal/profile"
)

// ProfileServiceInterface はプロフィールハンドラーが必要とするサービスインターフェース。
type ProfileServiceInterface interface {
	GetProfile(ctx context.Context, userID string) (*profile.Profile, error)
}

// ProfileHandler は集約プロフィールのHTTPハンドラー。
type ProfileHandler struct {
	service ProfileServiceInterface
}

// NewProfileHandler はProfileHandlerを生成する。
func NewProfileHandler(service ProfileServiceInterface) *ProfileHandler {
	return &ProfileHandler{service: service}
}

// GetProfile はユーザーのアイデンティティと連携状態を取得する。
// GET /api/profile
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	result, err := h.service.GetProfile(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, result)
}
