// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, provider, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeNotConnected  = "NOT_CONNECTED"
	ErrCodeUpstreamError = "UPSTREAM_ERROR"
	ErrCodeUserNotFound  = "USER_NOT_FOUND"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// リダイレクトフローで使用するステータスインジケータ。
// コールバック処理の結果をダッシュボードにクエリパラメータで伝える。
const (
	IndicatorSuccess              = "success"
	IndicatorMissingCode          = "MissingCode"
	IndicatorMissingConfiguration = "MissingConfiguration"
	IndicatorTokenRequestFailed   = "TokenRequestFailed"
	IndicatorServerError          = "ServerError"
)

// NewUnauthorizedError は未認証エラーを生成する。
// セッションの欠落・署名不正・期限切れのいずれでも同一のエラーを返す。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "No autenticado",
		Category: "auth",
		Action:   "Iniciá sesión para continuar.",
	}
}

// NewNotConnectedError はプロバイダー未連携エラーを生成する。
func NewNotConnectedError(provider string) *APIError {
	return &APIError{
		Code:     ErrCodeNotConnected,
		Message:  fmt.Sprintf("Usuario no conectado a %s", provider),
		Category: "validation",
		Action:   "Conectá tu cuenta desde el panel para acceder a estos datos.",
	}
}

// NewUpstreamError はプロバイダーAPI呼び出し失敗エラーを生成する。
// 上流のステータスやボディはログにのみ記録し、レスポンスには含めない。
func NewUpstreamError(resource string) *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamError,
		Message:  fmt.Sprintf("No se pudieron obtener los %s", resource),
		Category: "provider",
		Action:   "Esperá unos minutos y volvé a intentar.",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "Usuario no encontrado",
		Category: "auth",
		Action:   "Iniciá sesión nuevamente.",
	}
}
