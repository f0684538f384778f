// Package model はドメインモデルを定義する。
package model

// Customer はプロバイダー非依存の正規化された顧客を表す。
// リクエストごとにプロバイダーのデータから構築され、永続化されない。
type Customer struct {
	ID            string  `json:"id"`
	Nickname      string  `json:"nickname"`
	FirstName     *string `json:"firstName"`
	LastName      *string `json:"lastName"`
	Email         *string `json:"email"`
	Province      *string `json:"province"`
	PurchaseCount int     `json:"purchaseCount"`
}

// Product はプロバイダー非依存の正規化された商品を表す。
type Product struct {
	ID                string  `json:"id"`
	Title             string  `json:"title"`
	Price             float64 `json:"price"`
	Thumbnail         string  `json:"thumbnail"`
	AvailableQuantity int     `json:"available_quantity"`
}

// PagedResult は正規化済みアイテムのページと、
// リモートコレクション全体の件数を表す。
type PagedResult[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}
