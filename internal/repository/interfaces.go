// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/fiddo/connect/internal/model"
)

// ErrUserNotFound は書き込み対象のユーザー行が存在しないことを表す。
var ErrUserNotFound = errors.New("user not found")

// UserRepository はユーザーとプロバイダー連携情報の永続化インターフェース。
// 連携情報の書き込みは常に1ユーザー行への単一UPDATEであり、
// 読み手から部分的な状態が観測されることはない。
type UserRepository interface {
	// FindByID は指定IDのユーザーを連携情報込みで取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindTiendaNubeLink は指定ユーザーのTienda Nube連携情報のみを取得する。
	// 未連携の場合はnilを返す。読み取るカラムを連携情報に限定し、
	// 呼び出し元に不要な認証情報を渡さない。
	FindTiendaNubeLink(ctx context.Context, userID string) (*model.TiendaNubeLink, error)

	// SetMercadoLibreLink はMercadoLibre連携の全フィールドを1回のUPDATEで書き込む。
	// ユーザー行が存在しない場合はErrUserNotFoundを返す。
	SetMercadoLibreLink(ctx context.Context, userID string, link *model.MercadoLibreLink) error

	// SetTiendaNubeLink はTienda Nube連携の全フィールドを1回のUPDATEで書き込む。
	// ユーザー行が存在しない場合はErrUserNotFoundを返す。
	SetTiendaNubeLink(ctx context.Context, userID string, link *model.TiendaNubeLink) error

	// ClearLink は指定プロバイダーの連携カラムをすべて1回のUPDATEでNULLにする。
	// すでに未連携の場合も成功として扱う（冪等）。
	// ユーザー行が存在しない場合はErrUserNotFoundを返す。
	ClearLink(ctx context.Context, userID string, kind model.ProviderKind) error

	// Create はユーザーを作成する。開発用シードが使用する（登録機能はこの層の対象外）。
	Create(ctx context.Context, user *model.User) error
}
