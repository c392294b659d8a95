// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// NewAuthMiddleware はBearerトークン認証のミドルウェアを返す。
// Authorizationヘッダー（Bearer <token>）の値を設定済みAPIトークンと
// 照合し、一致しないリクエストには401を返す。
// WebSocket接続はヘッダーを付与できないクライアントがあるため、
// クエリパラメータtokenでの指定も受け付ける。
func NewAuthMiddleware(apiToken string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				token = r.URL.Query().Get("token")
			}
			if token == "" || apiToken == "" {
				WriteUnauthorizedError(w)
				return
			}

			// タイミング攻撃を避けるため定数時間で比較する
			if subtle.ConstantTimeCompare([]byte(token), []byte(apiToken)) != 1 {
				WriteUnauthorizedError(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// bearerToken はAuthorizationヘッダーからBearerトークンを取り出す。
// ヘッダーが無い、またはBearer形式でない場合は空文字列を返す。
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
		return auth[len(prefix):]
	}
	return ""
}
