// Package profile はユーザーのアイデンティティと各プロバイダーの
// 連携状態をひとつのビューに集約する。
// プロバイダーのプロフィール取得はベストエフォートで、失敗しても
// 連携状態の表示は維持される。アクセストークンは決して含めない。
package profile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fiddo/connect/internal/model"
)

// UserReader はユーザーの読み取りに必要なインターフェース。
type UserReader interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// MercadoLibreProfileAPI はMercadoLibreプロフィール取得のインターフェース。
type MercadoLibreProfileAPI interface {
	FetchUserProfile(ctx context.Context, accessToken, externalUserID string) (map[string]interface{}, error)
}

// TiendaNubeProfileAPI はTienda Nubeストア情報取得のインターフェース。
type TiendaNubeProfileAPI interface {
	FetchStoreProfile(ctx context.Context, accessToken, storeID string) (map[string]interface{}, error)
}

// MetricsRecorder はプロバイダー呼び出しメトリクスの記録インターフェース。
type MetricsRecorder interface {
	RecordProviderRequest(provider, operation, outcome string, duration time.Duration)
}

// Service はプロフィールの集約を提供する。
type Service struct {
	users     UserReader
	mlProfile MercadoLibreProfileAPI
	tnProfile TiendaNubeProfileAPI
	metrics   MetricsRecorder
	now       func() time.Time
}

// NewService はServiceを生成する。
func NewService(users UserReader, mlProfile MercadoLibreProfileAPI, tnProfile TiendaNubeProfileAPI, metrics MetricsRecorder) *Service {
	return &Service{
		users:     users,
		mlProfile: mlProfile,
		tnProfile: tnProfile,
		metrics:   metrics,
		now:       time.Now,
	}
}

// Profile は集約されたプロフィールビュー。
type Profile struct {
	User         Identity          `json:"user"`
	MercadoLibre MercadoLibreState `json:"mercadolibre"`
	TiendaNube   TiendaNubeState   `json:"tiendanube"`
}

// Identity はローカルユーザーのアイデンティティ。
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// MercadoLibreState はMercadoLibre連携の状態。トークンは含めない。
type MercadoLibreState struct {
	Connected bool                   `json:"connected"`
	UserID    string                 `json:"userId,omitempty"`
	ExpiresAt *time.Time             `json:"expiresAt,omitempty"`
	Profile   map[string]interface{} `json:"profile,omitempty"`
}

// TiendaNubeState はTienda Nube連携の状態。トークンは含めない。
type TiendaNubeState struct {
	Connected bool                   `json:"connected"`
	StoreID   string                 `json:"storeId,omitempty"`
	UserID    string                 `json:"userId,omitempty"`
	Scope     string                 `json:"scope,omitempty"`
	TokenType string                 `json:"tokenType,omitempty"`
	Profile   map[string]interface{} `json:"profile,omitempty"`
}

// GetProfile はユーザーのアイデンティティと連携状態を集約して返す。
func (s *Service) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	profile := &Profile{
		User: Identity{
			ID:    user.ID,
			Email: user.Email,
			Name:  user.Name,
		},
		MercadoLibre: s.mercadoLibreState(ctx, user.MercadoLibre),
		TiendaNube:   s.tiendaNubeState(ctx, user.TiendaNube),
	}
	return profile, nil
}

// mercadoLibreState はMercadoLibre連携の状態を構築する。
// 期限切れの連携は未連携として扱う。
func (s *Service) mercadoLibreState(ctx context.Context, link *model.MercadoLibreLink) MercadoLibreState {
	if !link.Active(s.now()) {
		return MercadoLibreState{Connected: false}
	}

	state := MercadoLibreState{
		Connected: true,
		UserID:    link.UserID,
		ExpiresAt: &link.ExpiresAt,
	}

	start := time.Now()
	remote, err := s.mlProfile.FetchUserProfile(ctx, link.AccessToken, link.UserID)
	if err != nil {
		s.metrics.RecordProviderRequest("mercadolibre", "profile", "error", time.Since(start))
		slog.Warn("failed to enrich mercadolibre profile", slog.String("error", err.Error()))
		return state
	}
	s.metrics.RecordProviderRequest("mercadolibre", "profile", "success", time.Since(start))

	state.Profile = remote
	return state
}

// tiendaNubeState はTienda Nube連携の状態を構築する。
func (s *Service) tiendaNubeState(ctx context.Context, link *model.TiendaNubeLink) TiendaNubeState {
	if !link.Active() {
		return TiendaNubeState{Connected: false}
	}

	state := TiendaNubeState{
		Connected: true,
		StoreID:   link.StoreID,
		UserID:    link.UserID,
		Scope:     link.Scope,
		TokenType: link.TokenType,
	}

	start := time.Now()
	remote, err := s.tnProfile.FetchStoreProfile(ctx, link.AccessToken, link.StoreID)
	if err != nil {
		s.metrics.RecordProviderRequest("tiendanube", "profile", "error", time.Since(start))
		slog.Warn("failed to enrich tiendanube profile", slog.String("error", err.Error()))
		return state
	}
	s.metrics.RecordProviderRequest("tiendanube", "profile", "success", time.Since(start))

	state.Profile = remote
	return state
}
