// Package user はユーザープロフィール管理のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/taskman/internal/auth"
	"github.com/hitoshi/taskman/internal/avatar"
	"github.com/hitoshi/taskman/internal/model"
	"github.com/hitoshi/taskman/internal/repository"
)

// TaskDeleter はタスクの一括削除インターフェース。
// アカウント削除時のカスケード削除に使用する。
type TaskDeleter interface {
	DeleteByOwner(ctx context.Context, ownerID string) error
}

// AvatarProcessor はアップロード画像の正規化インターフェース。
// avatar.Processorの部分集合として定義する。
type AvatarProcessor interface {
	Process(data []byte) ([]byte, error)
}

// Update はプロフィール更新の内容を表す。
// nilのフィールドは変更しない。許可リスト（name, age, password, email）の
// 検査はハンドラー層で行われ、ここには検査済みの更新のみが渡される。
type Update struct {
	Name   *string
	Age    *int
	Email  *string
	Secret *string
}

// Service はユーザー管理のサービス層。
type Service struct {
	userRepo    repository.UserRepository
	taskDeleter TaskDeleter
	hasher      auth.SecretHasher
	processor   AvatarProcessor
	now         func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	taskDeleter TaskDeleter,
	hasher auth.SecretHasher,
	processor AvatarProcessor,
) *Service {
	return &Service{
		userRepo:    userRepo,
		taskDeleter: taskDeleter,
		hasher:      hasher,
		processor:   processor,
		now:         time.Now,
	}
}

// UpdateProfile はプロフィールを更新する。
// パスワードが含まれる場合は永続化前に再ハッシュする。
// バリデーション失敗時はレコードを一切変更しない。
func (s *Service) UpdateProfile(ctx context.Context, user *model.User, upd Update) (*model.User, error) {
	updated := *user

	if upd.Name != nil {
		updated.Name = *upd.Name
	}
	if upd.Age != nil {
		if *upd.Age < 0 {
			return nil, fmt.Errorf("age must be non-negative: %w", model.ErrInvalidUpdateFields)
		}
		updated.Age = *upd.Age
	}
	if upd.Email != nil {
		email := auth.NormalizeEmail(*upd.Email)
		if email == "" {
			return nil, fmt.Errorf("email must not be empty: %w", model.ErrInvalidUpdateFields)
		}
		updated.Email = email
	}
	if upd.Secret != nil {
		hash, err := s.hasher.Hash(*upd.Secret)
		if err != nil {
			return nil, err
		}
		updated.PasswordHash = hash
	}

	updated.UpdatedAt = s.now()
	if err := s.userRepo.Update(ctx, &updated); err != nil {
		return nil, err
	}

	slog.Info("user profile updated",
		slog.String("user_id", updated.ID),
	)

	return &updated, nil
}

// Delete はアカウントを削除する。
// 削除順序: tasks → user（セッション一覧とアバターはユーザー行と共に消える）。
// 削除済みユーザーを参照する孤児タスクを残さないことがこの順序の目的。
func (s *Service) Delete(ctx context.Context, user *model.User) error {
	if err := s.taskDeleter.DeleteByOwner(ctx, user.ID); err != nil {
		return fmt.Errorf("failed to delete owned tasks: %w", err)
	}

	if err := s.userRepo.DeleteByID(ctx, user.ID); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	slog.Info("user account deleted",
		slog.String("user_id", user.ID),
	)

	return nil
}

// SetAvatar はアップロードされた画像を正規化して保存する。
// 画像として処理できない入力はmodel.APIError（INVALID_AVATAR）を返す。
func (s *Service) SetAvatar(ctx context.Context, userID string, data []byte) error {
	processed, err := s.processor.Process(data)
	if err != nil {
		if errors.Is(err, avatar.ErrUnsupportedImage) {
			return model.NewInvalidAvatarError("対応していない画像形式です")
		}
		return fmt.Errorf("failed to process avatar: %w", err)
	}

	if err := s.userRepo.UpdateAvatar(ctx, userID, processed); err != nil {
		return fmt.Errorf("failed to store avatar: %w", err)
	}
	return nil
}

// GetAvatar は指定ユーザーのアバター画像を返す。
// 存在しない場合はnilを返す。
func (s *Service) GetAvatar(ctx context.Context, userID string) ([]byte, error) {
	data, err := s.userRepo.FindAvatarByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load avatar: %w", err)
	}
	return data, nil
}

// ClearAvatar はアバター画像を削除する（冪等）。
func (s *Service) ClearAvatar(ctx context.Context, userID string) error {
	if err := s.userRepo.UpdateAvatar(ctx, userID, nil); err != nil {
		return fmt.Errorf("failed to clear avatar: %w", err)
	}
	return nil
}
