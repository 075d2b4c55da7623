// Package auth は資格情報の検証とセッション管理を提供する。
//
// トークンは「署名・有効期限の検証に成功し、かつ所有ユーザーの
// セッション一覧に存在する」場合にのみ有効とみなす。両方の条件を
// 要求することで、ログアウトとログアウトオールが単なる助言ではなく
// 実効的な失効操作になる。
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/taskman/internal/model"
	"github.com/hitoshi/taskman/internal/repository"
)

// SecretHasher はパスワードのハッシュ化・検証インターフェース。
// password.Hasherの部分集合として定義する。
type SecretHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) bool
}

// TokenCodec はセッショントークンの発行・検証インターフェース。
// token.Codecの部分集合として定義する。
type TokenCodec interface {
	Issue(userID string, now time.Time, ttl time.Duration) (string, error)
	Decode(raw string, now time.Time) (string, error)
}

// Metrics は認証イベントのメトリクス記録インターフェース。
// metrics.Collectorの部分集合として定義する。nilの場合は記録しない。
type Metrics interface {
	RecordLogin(outcome string)
	RecordSessionIssued()
	RecordSessionRevoked(count int)
	RecordSessionVerifyFailure(reason string)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	TokenTTL time.Duration // セッショントークンの有効期間
}

// Service は認証・セッション管理のビジネスロジックを提供する。
type Service struct {
	userRepo repository.UserRepository
	hasher   SecretHasher
	codec    TokenCodec
	metrics  Metrics
	config   ServiceConfig
	now      func() time.Time
}

// NewService はServiceを生成する。metricsはnilでもよい。
func NewService(
	userRepo repository.UserRepository,
	hasher SecretHasher,
	codec TokenCodec,
	metrics Metrics,
	config ServiceConfig,
) *Service {
	return &Service{
		userRepo: userRepo,
		hasher:   hasher,
		codec:    codec,
		metrics:  metrics,
		config:   config,
		now:      time.Now,
	}
}

// NormalizeEmail はメールアドレスを比較可能な形に正規化する。
// 大文字小文字を区別しない一意性のため、保存時・検索時の両方で適用する。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register は新規ユーザーを作成し、最初のセッショントークンを発行する。
// メールアドレスの重複はmodel.ErrEmailTaken、空・過長のパスワードは
// model.ErrInvalidSecretを返す。
// 最初のトークンはユーザーレコードと同時に永続化されるため、
// 登録とログインの間に失効の隙間はない。
func (s *Service) Register(ctx context.Context, email, secret, name string, age int) (*model.User, string, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, "", fmt.Errorf("email is required: %w", model.ErrInvalidUpdateFields)
	}
	if age < 0 {
		return nil, "", fmt.Errorf("age must be non-negative: %w", model.ErrInvalidUpdateFields)
	}

	hash, err := s.hasher.Hash(secret)
	if err != nil {
		return nil, "", err
	}

	now := s.now()
	userID := uuid.New().String()

	tok, err := s.codec.Issue(userID, now, s.config.TokenTTL)
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue token: %w", err)
	}

	user := &model.User{
		ID:           userID,
		Email:        email,
		Name:         name,
		Age:          age,
		PasswordHash: hash,
		Sessions:     model.SessionList{tok},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, "", err
	}

	s.recordSessionIssued()
	slog.Info("new user registered",
		slog.String("user_id", userID),
	)

	return user, tok, nil
}

// Authenticate はメールアドレスとパスワードでユーザーを特定する。
// ユーザーが存在しない場合もパスワードが一致しない場合も、区別のない
// model.ErrInvalidCredentialsを返す（アカウント列挙対策）。
// ストレージ障害はそのまま伝播し、認証失敗には偽装しない。
func (s *Service) Authenticate(ctx context.Context, email, secret string) (*model.User, error) {
	user, err := s.userRepo.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("failed to look up credentials: %w", err)
	}
	if user == nil || !s.hasher.Verify(secret, user.PasswordHash) {
		return nil, model.ErrInvalidCredentials
	}
	return user, nil
}

// Login は資格情報を検証し、新しいセッションを発行する。
func (s *Service) Login(ctx context.Context, email, secret string) (*model.User, string, error) {
	user, err := s.Authenticate(ctx, email, secret)
	if err != nil {
		s.recordLogin("failure")
		return nil, "", err
	}

	tok, err := s.CreateSession(ctx, user)
	if err != nil {
		return nil, "", err
	}

	s.recordLogin("success")
	slog.Info("user logged in",
		slog.String("user_id", user.ID),
	)

	return user, tok, nil
}

// CreateSession はユーザーの新しいセッショントークンを発行し、
// セッション一覧の末尾に追加して永続化する。
// 追加はDB側のアトミックな配列操作で行われ、同一ユーザーへの
// 並行ログインが互いのセッションを失わせることはない。
func (s *Service) CreateSession(ctx context.Context, user *model.User) (string, error) {
	tok, err := s.codec.Issue(user.ID, s.now(), s.config.TokenTTL)
	if err != nil {
		return "", fmt.Errorf("failed to issue token: %w", err)
	}

	if err := s.userRepo.AppendSession(ctx, user.ID, tok); err != nil {
		return "", fmt.Errorf("failed to persist session: %w", err)
	}

	user.Sessions = user.Sessions.Add(tok)
	s.recordSessionIssued()

	return tok, nil
}

// VerifySession は提示されたトークンを検証し、所有ユーザーと
// トークン自身を返す。失敗種別:
//   - model.ErrTokenExpired / ErrTokenMalformed: 復号失敗
//   - model.ErrIdentityNotFound: ユーザーが削除済み
//   - model.ErrSessionRevoked: セッション一覧に存在しない
//
// 返却するトークンはログアウト時にどのセッションを失効させるかの
// 特定に使う。
func (s *Service) VerifySession(ctx context.Context, raw string) (*model.User, string, error) {
	userID, err := s.codec.Decode(raw, s.now())
	if err != nil {
		s.recordVerifyFailure("token_invalid")
		return nil, "", err
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load user for session: %w", err)
	}
	if user == nil {
		s.recordVerifyFailure("identity_not_found")
		return nil, "", model.ErrIdentityNotFound
	}
	if !user.HasSession(raw) {
		s.recordVerifyFailure("revoked")
		return nil, "", model.ErrSessionRevoked
	}

	return user, raw, nil
}

// RevokeSession は指定トークンのセッションだけを失効させる。
// 既に存在しない場合もエラーにしない（冪等）。
func (s *Service) RevokeSession(ctx context.Context, user *model.User, tok string) error {
	if err := s.userRepo.RemoveSession(ctx, user.ID, tok); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	user.Sessions = user.Sessions.Remove(tok)
	s.recordSessionRevoked(1)
	slog.Info("session revoked",
		slog.String("user_id", user.ID),
	)

	return nil
}

// RevokeAllSessions はユーザーの全セッションを失効させる（冪等）。
func (s *Service) RevokeAllSessions(ctx context.Context, user *model.User) error {
	revoked := len(user.Sessions)

	if err := s.userRepo.ClearSessions(ctx, user.ID); err != nil {
		return fmt.Errorf("failed to revoke all sessions: %w", err)
	}

	user.Sessions = model.SessionList{}
	s.recordSessionRevoked(revoked)
	slog.Info("all sessions revoked",
		slog.String("user_id", user.ID),
		slog.Int("count", revoked),
	)

	return nil
}

func (s *Service) recordLogin(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordLogin(outcome)
	}
}

func (s *Service) recordSessionIssued() {
	if s.metrics != nil {
		s.metrics.RecordSessionIssued()
	}
}

func (s *Service) recordSessionRevoked(count int) {
	if s.metrics != nil && count > 0 {
		s.metrics.RecordSessionRevoked(count)
	}
}

func (s *Service) recordVerifyFailure(reason string) {
	if s.metrics != nil {
		s.metrics.RecordSessionVerifyFailure(reason)
	}
}
