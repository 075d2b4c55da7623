package config

import (
	"testing"
	"time"
)

// 必須環境変数が揃っている場合にLoadが成功することを検証
func TestLoad_AllRequiredSet_Succeeds(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/taskman?sslmode=disable")
	t.Setenv("TOKEN_SECRET", "test-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.DatabaseURL != "postgres://localhost:5432/taskman?sslmode=disable" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.TokenSecret != "test-secret" {
		t.Errorf("TokenSecret = %q", cfg.TokenSecret)
	}
}

// 必須環境変数が欠けている場合にLoadが失敗することを検証
func TestLoad_MissingRequired_Fails(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("TOKEN_SECRET", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing required environment variables")
	}
}

// オプション項目のデフォルト値を検証
func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/db")
	t.Setenv("TOKEN_SECRET", "secret")
	t.Setenv("TOKEN_TTL", "")
	t.Setenv("BCRYPT_COST", "")
	t.Setenv("SERVER_PORT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.TokenTTL != 7*24*time.Hour {
		t.Errorf("TokenTTL = %v, want 168h", cfg.TokenTTL)
	}
	if cfg.BcryptCost != 12 {
		t.Errorf("BcryptCost = %d, want 12", cfg.BcryptCost)
	}
	if cfg.ServerPort != "8080" {
		t.Errorf("ServerPort = %q, want 8080", cfg.ServerPort)
	}
	if cfg.AvatarMaxSize != 1048576 {
		t.Errorf("AvatarMaxSize = %d, want 1048576", cfg.AvatarMaxSize)
	}
}

// 不正な形式のオプション値はデフォルトにフォールバックすることを検証
func TestLoad_InvalidOptionalValues_FallBackToDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/db")
	t.Setenv("TOKEN_SECRET", "secret")
	t.Setenv("TOKEN_TTL", "not-a-duration")
	t.Setenv("BCRYPT_COST", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.TokenTTL != 7*24*time.Hour {
		t.Errorf("TokenTTL = %v, want default 168h", cfg.TokenTTL)
	}
	if cfg.BcryptCost != 12 {
		t.Errorf("BcryptCost = %d, want default 12", cfg.BcryptCost)
	}
}

// 環境変数で設定を上書きできることを検証
func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/db")
	t.Setenv("TOKEN_SECRET", "secret")
	t.Setenv("TOKEN_TTL", "24h")
	t.Setenv("RATE_LIMIT_AUTH", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.TokenTTL != 24*time.Hour {
		t.Errorf("TokenTTL = %v, want 24h", cfg.TokenTTL)
	}
	if cfg.RateLimitAuth != 5 {
		t.Errorf("RateLimitAuth = %d, want 5", cfg.RateLimitAuth)
	}
}
