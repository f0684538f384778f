// Package session は署名付きセッショントークンの検証を提供する。
package session

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthenticated はセッション検証の失敗を表す。
// トークンの欠落・署名不正・期限切れ・クレーム不正のいずれであっても
// この同一のエラーを返し、どの検証で落ちたかを呼び出し元に漏らさない。
var ErrUnauthenticated = errors.New("unauthenticated")

// Verifier はHS256で署名されたセッショントークンを検証する。
// I/Oを伴わず、署名検証と期限チェックのみを行う。
type Verifier struct {
	secret []byte
}

// NewVerifier はVerifierを生成する。
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// sessionClaims はセッショントークンのクレーム。
// userIdクレームが認証済みユーザーの識別子を保持する。
type sessionClaims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// Verify はトークンを検証し、含まれるユーザーIDを返す。
// いかなる検証失敗でもErrUnauthenticatedを返す。
func (v *Verifier) Verify(token string) (string, error) {
	if token == "" {
		return "", ErrUnauthenticated
	}

	claims := &sessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		// HS256以外のアルゴリズムは受け付けない
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", ErrUnauthenticated
	}

	if claims.UserID == "" {
		return "", ErrUnauthenticated
	}

	return claims.UserID, nil
}
