// Package model はドメインモデルを定義する。
package model

import "time"

// ProviderKind は外部ECプロバイダーの種別を表す。
type ProviderKind string

const (
	// ProviderMercadoLibre はマーケットプレイス型プロバイダー（MercadoLibre）。
	ProviderMercadoLibre ProviderKind = "mercadolibre"
	// ProviderTiendaNube はストアフロント型プロバイダー（Tienda Nube）。
	ProviderTiendaNube ProviderKind = "tiendanube"
)

// User はサービス利用ユーザーを表す。
// 各プロバイダーとの連携情報をそれぞれ最大1つ保持する。
type User struct {
	ID        string
	Email     string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time

	// 連携情報。未連携の場合はnil。
	// 連携は「全フィールドが揃って存在する」か「完全に存在しない」かの
	// いずれかであり、部分的な状態は取らない。
	MercadoLibre *MercadoLibreLink
	TiendaNube   *TiendaNubeLink
}

// MercadoLibreLink はMercadoLibreアカウントとの連携情報を表す。
type MercadoLibreLink struct {
	UserID       string // MercadoLibre側のユーザーID
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time // この時刻を過ぎるとAccessTokenは無効
}

// Active は連携が現在有効かどうかを返す。
// 期限切れのトークンは「未連携」として扱う（自動リフレッシュは行わない）。
func (l *MercadoLibreLink) Active(now time.Time) bool {
	return l != nil && l.UserID != "" && l.AccessToken != "" && l.ExpiresAt.After(now)
}

// TiendaNubeLink はTienda Nubeストアとの連携情報を表す。
// このプロバイダーのトークンに有効期限の概念はない。
type TiendaNubeLink struct {
	StoreID     string
	UserID      string // トークンレスポンスに含まれない場合は空
	AccessToken string
	TokenType   string
	Scope       string
}

// Active は連携が現在有効かどうかを返す。
func (l *TiendaNubeLink) Active() bool {
	return l != nil && l.StoreID != "" && l.AccessToken != ""
}
