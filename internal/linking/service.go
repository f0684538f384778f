// Package linking はOAuthコールバックによるアカウント連携と、連携解除を提供する。
// コールバック処理は Received → Authenticated → Exchanged → Persisted の
// 順に進み、どの段階で失敗しても理由を分類してリダイレクトで通知する。
package linking

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fiddo/connect/internal/model"
	"github.com/fiddo/connect/internal/provider/mercadolibre"
	"github.com/fiddo/connect/internal/provider/tiendanube"
	"github.com/fiddo/connect/internal/session"
)

// Authenticator はセッショントークンの検証に必要なインターフェース。
type Authenticator interface {
	Verify(token string) (string, error)
}

// MercadoLibreExchanger はMercadoLibreのトークン交換に必要なインターフェース。
type MercadoLibreExchanger interface {
	ExchangeCode(ctx context.Context, code string) (*mercadolibre.TokenResult, error)
}

// TiendaNubeExchanger はTienda Nubeのトークン交換に必要なインターフェース。
type TiendaNubeExchanger interface {
	ExchangeCode(ctx context.Context, code string) (*tiendanube.TokenResult, error)
}

// LinkStore は連携情報の書き込みに必要なインターフェース。
// repository.UserRepositoryの部分集合として定義する。
type LinkStore interface {
	SetMercadoLibreLink(ctx context.Context, userID string, link *model.MercadoLibreLink) error
	SetTiendaNubeLink(ctx context.Context, userID string, link *model.TiendaNubeLink) error
	ClearLink(ctx context.Context, userID string, kind model.ProviderKind) error
}

// MetricsRecorder は連携関連メトリクスの記録インターフェース。
type MetricsRecorder interface {
	RecordLinkAttempt(provider, outcome string)
	RecordUnlink(provider string)
}

// ProviderConfigs は各プロバイダーの設定が揃っているかの判定。
// 欠落はサーバー設定の問題であり、リダイレクトフローでは5xxではなく
// MissingConfigurationインジケータとして通知する。
type ProviderConfigs struct {
	MercadoLibreConfigured bool
	TiendaNubeConfigured   bool
}

// Service はアカウント連携のビジネスロジックを提供する。
type Service struct {
	authenticator Authenticator
	mlClient      MercadoLibreExchanger
	tnClient      TiendaNubeExchanger
	store         LinkStore
	configs       ProviderConfigs
	metrics       MetricsRecorder
}

// NewService はServiceを生成する。
func NewService(
	authenticator Authenticator,
	mlClient MercadoLibreExchanger,
	tnClient TiendaNubeExchanger,
	store LinkStore,
	configs ProviderConfigs,
	metrics MetricsRecorder,
) *Service {
	return &Service{
		authenticator: authenticator,
		mlClient:      mlClient,
		tnClient:      tnClient,
		store:         store,
		configs:       configs,
		metrics:       metrics,
	}
}

// Outcome はコールバック処理の結果を表す。
// この層はエラーページを描画せず、リダイレクト先の決定材料のみを返す。
type Outcome struct {
	// RedirectToLogin はセッションが無効でログイン画面へ誘導すべきことを示す。
	// 連携の失敗ではなくセッションの問題であり、インジケータは付けない。
	RedirectToLogin bool
	// Indicator はダッシュボードに渡すステータスインジケータ。
	// 成功時はmodel.IndicatorSuccess、失敗時は分類された理由。
	Indicator string
}

// TiendaNubeCallback はTienda Nubeコールバックで受け取った値。
type TiendaNubeCallback struct {
	SessionToken  string
	Code          string
	StoreID       string // state相関子。トークンレスポンスがstore_idを省略した場合の代替
	ProviderError string // プロバイダーが報告したerrorパラメータ
}

// HandleTiendaNubeCallback はTienda NubeのOAuthコールバックを処理する。
// 成功時は連携情報の全フィールドを1回の書き込みで永続化する。
// 失敗時は書き込みを一切行わない。
func (s *Service) HandleTiendaNubeCallback(ctx context.Context, cb TiendaNubeCallback) Outcome {
	provider := string(model.ProviderTiendaNube)

	// 1. コールバック自体の検証（セッションより先に判定する）
	if cb.ProviderError != "" {
		slog.Warn("tiendanube callback reported provider error",
			slog.String("provider_error", cb.ProviderError),
		)
		return s.failed(provider, cb.ProviderError)
	}
	if cb.Code == "" || cb.StoreID == "" {
		return s.failed(provider, model.IndicatorMissingCode)
	}

	// 2. セッション検証。失敗は連携の失敗として扱わずログインへ誘導する
	userID, err := s.authenticator.Verify(cb.SessionToken)
	if err != nil {
		return Outcome{RedirectToLogin: true}
	}

	// 3. サーバー設定の検証
	if !s.configs.TiendaNubeConfigured {
		slog.Error("tiendanube credentials are not configured")
		return s.failed(provider, model.IndicatorMissingConfiguration)
	}

	// 4. トークン交換
	token, err := s.tnClient.ExchangeCode(ctx, cb.Code)
	if err != nil {
		slog.Error("tiendanube token exchange failed", slog.String("error", err.Error()))
		return s.failed(provider, model.IndicatorTokenRequestFailed)
	}

	// トークンレスポンスがstore_idを省略した場合のみコールバックの値で補完する
	storeID := token.StoreID
	if storeID == "" {
		storeID = cb.StoreID
	}

	// 5. 永続化。キーは認証済みセッションのユーザーID。
	// URL中の識別子は使わない（改ざんによる連携乗っ取りを防ぐ）。
	link := &model.TiendaNubeLink{
		StoreID:     storeID,
		UserID:      token.UserID,
		AccessToken: token.AccessToken,
		TokenType:   token.TokenType,
		Scope:       token.Scope,
	}
	if err := s.store.SetTiendaNubeLink(ctx, userID, link); err != nil {
		slog.Error("failed to persist tiendanube link",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return s.failed(provider, model.IndicatorServerError)
	}

	slog.Info("tiendanube account linked",
		slog.String("user_id", userID),
		slog.String("store_id", storeID),
	)
	s.metrics.RecordLinkAttempt(provider, model.IndicatorSuccess)
	return Outcome{Indicator: model.IndicatorSuccess}
}

// MercadoLibreCallback はMercadoLibreコールバックで受け取った値。
type MercadoLibreCallback struct {
	SessionToken  string
	Code          string
	ProviderError string
}

// HandleMercadoLibreCallback はMercadoLibreのOAuthコールバックを処理する。
func (s *Service) HandleMercadoLibreCallback(ctx context.Context, cb MercadoLibreCallback) Outcome {
	provider := string(model.ProviderMercadoLibre)

	if cb.ProviderError != "" {
		slog.Warn("mercadolibre callback reported provider error",
			slog.String("provider_error", cb.ProviderError),
		)
		return s.failed(provider, cb.ProviderError)
	}
	if cb.Code == "" {
		return s.failed(provider, model.IndicatorMissingCode)
	}

	userID, err := s.authenticator.Verify(cb.SessionToken)
	if err != nil {
		return Outcome{RedirectToLogin: true}
	}

	if !s.configs.MercadoLibreConfigured {
		slog.Error("mercadolibre credentials are not configured")
		return s.failed(provider, model.IndicatorMissingConfiguration)
	}

	token, err := s.mlClient.ExchangeCode(ctx, cb.Code)
	if err != nil {
		slog.Error("mercadolibre token exchange failed", slog.String("error", err.Error()))
		return s.failed(provider, model.IndicatorTokenRequestFailed)
	}

	link := &model.MercadoLibreLink{
		UserID:       token.UserID,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.ExpiresAt,
	}
	if err := s.store.SetMercadoLibreLink(ctx, userID, link); err != nil {
		slog.Error("failed to persist mercadolibre link",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return s.failed(provider, model.IndicatorServerError)
	}

	slog.Info("mercadolibre account linked",
		slog.String("user_id", userID),
		slog.String("external_user_id", token.UserID),
	)
	s.metrics.RecordLinkAttempt(provider, model.IndicatorSuccess)
	return Outcome{Indicator: model.IndicatorSuccess}
}

// Disconnect は指定プロバイダーの連携を解除する。
// すでに未連携の場合も成功として扱う（冪等）。
func (s *Service) Disconnect(ctx context.Context, userID string, kind model.ProviderKind) error {
	if err := s.store.ClearLink(ctx, userID, kind); err != nil {
		return fmt.Errorf("failed to clear %s link: %w", kind, err)
	}

	slog.Info("provider account disconnected",
		slog.String("user_id", userID),
		slog.String("provider", string(kind)),
	)
	s.metrics.RecordUnlink(string(kind))
	return nil
}

// failed は失敗の結果を生成し、メトリクスに記録する。
func (s *Service) failed(provider, indicator string) Outcome {
	s.metrics.RecordLinkAttempt(provider, indicator)
	return Outcome{Indicator: indicator}
}

// compile-time interface check
var _ Authenticator = (*session.Verifier)(nil)
