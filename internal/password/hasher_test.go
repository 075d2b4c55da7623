package password

import (
	"errors"
	"strings"
	"testing"

	"github.com/hitoshi/taskman/internal/model"
)

// ハッシュ化したパスワードが検証に成功することを検証
func TestHashAndVerify_RoundTrip(t *testing.T) {
	// テストではbcryptの最小コストを使用して実行時間を抑える
	h := NewHasher(4)

	hash, err := h.Hash("correct horse battery staple")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	if hash == "correct horse battery staple" {
		t.Fatal("hash must not equal plaintext")
	}
	if !h.Verify("correct horse battery staple", hash) {
		t.Error("Verify() = false for correct password")
	}
}

// 誤ったパスワードは検証に失敗することを検証
func TestVerify_WrongPassword_Fails(t *testing.T) {
	h := NewHasher(4)

	hash, err := h.Hash("original-password")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	if h.Verify("wrong-password", hash) {
		t.Error("Verify() = true for wrong password")
	}
}

// 同じパスワードでも呼び出しごとに異なるハッシュが生成されることを検証
// （ソルトが呼び出しごとにランダムであること）
func TestHash_ProducesDifferentHashesPerCall(t *testing.T) {
	h := NewHasher(4)

	hash1, err := h.Hash("same-password")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	hash2, err := h.Hash("same-password")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	if hash1 == hash2 {
		t.Error("expected different hashes for the same password")
	}
}

// 空のパスワードはErrInvalidSecretで拒否されることを検証
func TestHash_EmptyPassword_ReturnsInvalidSecret(t *testing.T) {
	h := NewHasher(4)

	_, err := h.Hash("")
	if !errors.Is(err, model.ErrInvalidSecret) {
		t.Errorf("Hash(\"\") error = %v, want ErrInvalidSecret", err)
	}
}

// 72バイトを超えるパスワードは拒否されることを検証（bcryptの制約）
func TestHash_TooLongPassword_ReturnsInvalidSecret(t *testing.T) {
	h := NewHasher(4)

	_, err := h.Hash(strings.Repeat("a", 73))
	if !errors.Is(err, model.ErrInvalidSecret) {
		t.Errorf("Hash(73 bytes) error = %v, want ErrInvalidSecret", err)
	}
}

// 壊れたハッシュに対してVerifyがパニックせずfalseを返すことを検証
func TestVerify_MalformedHash_FailsClosed(t *testing.T) {
	h := NewHasher(4)

	for _, malformed := range []string{"", "not-a-bcrypt-hash", "$2a$xx$broken"} {
		if h.Verify("any-password", malformed) {
			t.Errorf("Verify() = true for malformed hash %q", malformed)
		}
	}
}

// 範囲外コストはデフォルトに丸められることを検証
func TestNewHasher_OutOfRangeCost_UsesDefault(t *testing.T) {
	h := NewHasher(99)
	if h.cost != DefaultCost {
		t.Errorf("cost = %d, want %d", h.cost, DefaultCost)
	}
}
