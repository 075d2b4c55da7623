// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/taskman/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	// userContextKey はリクエストコンテキストに認証済みユーザーを格納するためのキー。
	userContextKey = contextKey("user")
	// tokenContextKey はリクエストの認証に使われたトークンを格納するためのキー。
	tokenContextKey = contextKey("token")
)

// SessionVerifier はトークンの検証に必要なインターフェース。
// auth.Serviceの部分集合として定義する。
type SessionVerifier interface {
	VerifySession(ctx context.Context, raw string) (*model.User, string, error)
}

// NewAuthMiddleware はAuthorizationヘッダーのBearerトークンを検証する
// ミドルウェアを返す。認証済みユーザーとトークンをリクエスト
// コンテキストに注入する。
//
// ヘッダー欠落・署名不正・期限切れ・失効・ユーザー削除済みのいずれも
// 区別せず401 Unauthorizedを返す。失敗理由の内訳はログとメトリクスに
// のみ現れる。ストレージ障害は認証失敗に偽装せず500を返す。
func NewAuthMiddleware(verifier SessionVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			user, tok, err := verifier.VerifySession(r.Context(), raw)
			if err != nil {
				if !isAuthFailure(err) {
					// ストレージ障害等の基盤エラーは認証失敗ではない
					slog.Error("session verification failed",
						slog.String("error", err.Error()),
					)
					WriteInternalServerError(w)
					return
				}
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey, user)
			ctx = context.WithValue(ctx, tokenContextKey, tok)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken はAuthorizationヘッダーからBearerトークンを取り出す。
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}

// isAuthFailure は認証として想定内の失敗（トークン・セッション起因）かを判定する。
func isAuthFailure(err error) bool {
	for _, sentinel := range []error{
		model.ErrTokenMalformed,
		model.ErrTokenExpired,
		model.ErrSessionRevoked,
		model.ErrIdentityNotFound,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// UserFromContext はリクエストコンテキストから認証済みユーザーを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func UserFromContext(ctx context.Context) (*model.User, error) {
	user, ok := ctx.Value(userContextKey).(*model.User)
	if !ok || user == nil {
		return nil, fmt.Errorf("user not found in context")
	}
	return user, nil
}

// TokenFromContext はリクエストの認証に使われたトークンを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func TokenFromContext(ctx context.Context) (string, error) {
	tok, ok := ctx.Value(tokenContextKey).(string)
	if !ok || tok == "" {
		return "", fmt.Errorf("token not found in context")
	}
	return tok, nil
}

// ContextWithSession はコンテキストに認証済みユーザーとトークンを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithSession(ctx context.Context, user *model.User, tok string) context.Context {
	ctx = context.WithValue(ctx, userContextKey, user)
	return context.WithValue(ctx, tokenContextKey, tok)
}
