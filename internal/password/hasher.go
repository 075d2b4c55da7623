// Package password はパスワードの一方向ハッシュ化と検証を提供する。
package password

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/taskman/internal/model"
)

// DefaultCost はbcryptのデフォルトコストパラメータ。
const DefaultCost = 12

// Hasher はbcryptによるパスワードハッシュ化を提供する。
// ソルトはbcrypt内部で呼び出しごとにランダム生成され、出力に埋め込まれる。
type Hasher struct {
	cost int
}

// NewHasher はHasherを生成する。
// costが有効範囲外の場合はDefaultCostを使用する。
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash は平文パスワードのbcryptハッシュを返す。
// 空のパスワードはErrInvalidSecretで拒否する。
// bcryptは72バイトを超える入力を扱えないため、同様に拒否する。
func (h *Hasher) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", fmt.Errorf("empty password: %w", model.ErrInvalidSecret)
	}
	if len(plaintext) > 72 {
		return "", fmt.Errorf("password exceeds 72 bytes: %w", model.ErrInvalidSecret)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Verify は平文パスワードがハッシュと一致するかを返す。
// 保存されたハッシュが壊れている場合もエラーは返さずfalseを返す
// （フェイルクローズ）。
func (h *Hasher) Verify(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
