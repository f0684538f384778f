// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"
)

const sessionCookieName = "session_token"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userIDContextKey はリクエストコンテキストにユーザーIDを格納するためのキー。
var userIDContextKey = contextKey("user_id")

// Authenticator はセッショントークンの検証に必要なインターフェース。
// session.Verifierの部分集合として定義する。
type Authenticator interface {
	Verify(token string) (string, error)
}

// NewAuthMiddleware はHTTP Only Cookieからセッショントークンを読み取り、
// 署名と有効期限を検証するミドルウェアを返す。
// 認証済みユーザーIDをリクエストコンテキストに注入する。
// Cookieの欠落・署名不正・期限切れはいずれも同一の401レスポンスになる。
func NewAuthMiddleware(authenticator Authenticator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(sessionCookieName)
			if err != nil || cookie.Value == "" {
				WriteUnauthorizedResponse(w)
				return
			}

			userID, err := authenticator.Verify(cookie.Value)
			if err != nil {
				WriteUnauthorizedResponse(w)
				return
			}

			ctx := context.WithValue(r.Context(), userIDContextKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}
