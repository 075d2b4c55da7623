// Package task はタスク管理のドメインロジックを提供する。
//
// すべての読み取り・更新・削除は認証済みユーザーのIDを所有者条件として
// 実行される。他ユーザーのタスクは存在するかどうかも観測できず、
// アクセスは一律にmodel.ErrTaskNotFoundとなる。
package task

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

// Update はタスク更新の内容を表す。
// nilのフィールドは変更しない。許可リスト（description, completed）の
// 検査はハンドラー層で行われ、ここには検査済みの更新のみが渡される。
type Update struct {
	Description *string
	Completed   *bool
}

// Service はタスク管理のサービス層。
type Service struct {
	taskRepo repository.TaskRepository
	now      func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(taskRepo repository.TaskRepository) *Service {
	return &Service{
		taskRepo: taskRepo,
		now:      time.Now,
	}
}

// Create は認証済みユーザーを所有者とするタスクを作成する。
// 所有者はリクエスト内容に関わらずownerIDで確定する。
func (s *Service) Create(ctx context.Context, ownerID, description string) (*model.Task, error) {
	if strings.TrimSpace(description) == "" {
		return nil, fmt.Errorf("description must not be empty: %w", model.ErrInvalidUpdateFields)
	}

	now := s.now()
	task := &model.Task{
		ID:          uuid.New().String(),
		OwnerID:     ownerID,
		Description: description,
		Completed:   false,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.taskRepo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	slog.Info("task created",
		slog.String("task_id", task.ID),
		slog.String("owner_id", ownerID),
	)

	return task, nil
}

// Get は所有者条件付きでタスクを1件取得する。
// 存在しない、または所有者が一致しない場合はmodel.ErrTaskNotFoundを返す。
func (s *Service) Get(ctx context.Context, id, ownerID string) (*model.Task, error) {
	task, err := s.taskRepo.FindByIDAndOwner(ctx, id, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	if task == nil {
		return nil, model.ErrTaskNotFound
	}
	return task, nil
}

// List は所有者のタスク一覧をフィルタ・ページネーション・ソート条件付きで返す。
// 該当がない場合は空スライスを返す。
func (s *Service) List(ctx context.Context, ownerID string, opts model.TaskListOptions) ([]*model.Task, error) {
	tasks, err := s.taskRepo.ListByOwner(ctx, ownerID, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	if tasks == nil {
		tasks = []*model.Task{}
	}
	return tasks, nil
}

// UpdateTask は所有者条件付きでタスクを更新する。
// 存在しない、または所有者が一致しない場合はmodel.ErrTaskNotFoundを返す。
func (s *Service) UpdateTask(ctx context.Context, id, ownerID string, upd Update) (*model.Task, error) {
	task, err := s.Get(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	if upd.Description != nil {
		if strings.TrimSpace(*upd.Description) == "" {
			return nil, fmt.Errorf("description must not be empty: %w", model.ErrInvalidUpdateFields)
		}
		task.Description = *upd.Description
	}
	if upd.Completed != nil {
		task.Completed = *upd.Completed
	}

	task.UpdatedAt = s.now()
	if err := s.taskRepo.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	return task, nil
}

// Delete は所有者条件付きでタスクを削除し、削除したタスクを返す。
// 存在しない、または所有者が一致しない場合はmodel.ErrTaskNotFoundを返す。
func (s *Service) Delete(ctx context.Context, id, ownerID string) (*model.Task, error) {
	task, err := s.taskRepo.DeleteByIDAndOwner(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	slog.Info("task deleted",
		slog.String("task_id", id),
		slog.String("owner_id", ownerID),
	)

	return task, nil
}
