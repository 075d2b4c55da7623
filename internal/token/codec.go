// Package token はセッショントークンの発行と検証を提供する。
//
// トークンはHMAC-SHA256署名付きJWTで、ユーザーID（sub）、発行時刻（iat）、
// 有効期限（exp）を持つ。署名鍵はプロセス全体で共有する設定値であり、
// 鍵をローテーションすると発行済みの全トークンが無効になる。
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/taskman/internal/model"
)

// Codec はセッショントークンの発行・検証を行う。
type Codec struct {
	secret []byte
}

// NewCodec はCodecを生成する。
// secretが空の場合はエラーを返す。
func NewCodec(secret string) (*Codec, error) {
	if secret == "" {
		return nil, errors.New("token signing secret is required")
	}
	return &Codec{secret: []byte(secret)}, nil
}

// Issue は指定ユーザーIDに紐づくトークンを発行する。
// 有効期限はnow+ttl。
func (c *Codec) Issue(userID string, now time.Time, ttl time.Duration) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Decode はトークンを検証し、埋め込まれたユーザーIDを返す。
// 有効期限切れの場合はmodel.ErrTokenExpired、署名・構造が不正な場合は
// model.ErrTokenMalformedを返す。検証時刻はnowで固定する。
func (c *Codec) Decode(raw string, now time.Time) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, c.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("%w: %v", model.ErrTokenExpired, err)
		}
		return "", fmt.Errorf("%w: %v", model.ErrTokenMalformed, err)
	}

	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject claim", model.ErrTokenMalformed)
	}
	return claims.Subject, nil
}

// keyFunc は署名検証鍵を返すjwt.Keyfunc。
func (c *Codec) keyFunc(t *jwt.Token) (interface{}, error) {
	return c.secret, nil
}
