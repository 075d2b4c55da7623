package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hitoshi/taskman/internal/model"
)

// PostgresTaskRepo はPostgreSQLを使用したタスクリポジトリ。
// すべての読み取り・更新・削除はWHERE句で(id, owner_id)を同時に
// 指定する。所有者チェックを後から行う方式は採らない。
type PostgresTaskRepo struct {
	db *sql.DB
}

// NewPostgresTaskRepo はPostgresTaskRepoを生成する。
func NewPostgresTaskRepo(db *sql.DB) *PostgresTaskRepo {
	return &PostgresTaskRepo{db: db}
}

// sortColumns はsortByで指定可能なフィールド名とカラム名の対応表。
// ここにないフィールド名が指定された場合はソートなしとして扱う。
var sortColumns = map[string]string{
	"createdAt":   "created_at",
	"updatedAt":   "updated_at",
	"description": "description",
	"completed":   "completed",
}

// Create はタスクを作成する。
func (r *PostgresTaskRepo) Create(ctx context.Context, task *model.Task) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tasks (id, owner_id, description, completed, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		task.ID, task.OwnerID, task.Description, task.Completed, task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

// FindByIDAndOwner は指定IDかつ指定所有者のタスクを取得する。
// 見つからない場合はnilを返す。
func (r *PostgresTaskRepo) FindByIDAndOwner(ctx context.Context, id, ownerID string) (*model.Task, error) {
	task := &model.Task{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, owner_id, description, completed, created_at, updated_at
		 FROM tasks WHERE id = $1 AND owner_id = $2`,
		id, ownerID,
	).Scan(&task.ID, &task.OwnerID, &task.Description, &task.Completed, &task.CreatedAt, &task.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find task: %w", err)
	}

	return task, nil
}

// ListByOwner は所有者のタスク一覧をフィルタ・ページネーション・
// ソート条件付きで返す。
func (r *PostgresTaskRepo) ListByOwner(ctx context.Context, ownerID string, opts model.TaskListOptions) ([]*model.Task, error) {
	query, args := buildListQuery(ownerID, opts)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []*model.Task{}
	for rows.Next() {
		task := &model.Task{}
		if err := rows.Scan(&task.ID, &task.OwnerID, &task.Description, &task.Completed, &task.CreatedAt, &task.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}

	return tasks, nil
}

// buildListQuery はタスク一覧取得のSQLとパラメータを構築する。
// カラム名はsortColumnsの許可リスト経由でのみ埋め込み、値はすべて
// プレースホルダで渡す。
func buildListQuery(ownerID string, opts model.TaskListOptions) (string, []any) {
	var sb strings.Builder
	args := []any{ownerID}

	sb.WriteString(
		`SELECT id, owner_id, description, completed, created_at, updated_at
		 FROM tasks WHERE owner_id = $1`)

	if opts.Completed != nil {
		args = append(args, *opts.Completed)
		fmt.Fprintf(&sb, " AND completed = $%d", len(args))
	}

	if col, ok := sortColumns[opts.SortBy]; ok {
		dir := "ASC"
		if opts.SortDir == model.SortDesc {
			dir = "DESC"
		}
		fmt.Fprintf(&sb, " ORDER BY %s %s", col, dir)
	}

	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}
	if opts.Skip > 0 {
		args = append(args, opts.Skip)
		fmt.Fprintf(&sb, " OFFSET $%d", len(args))
	}

	return sb.String(), args
}

// Update は指定IDかつ指定所有者のタスクの内容を更新する。
// 該当行がない場合はmodel.ErrTaskNotFoundを返す。
func (r *PostgresTaskRepo) Update(ctx context.Context, task *model.Task) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE tasks SET description = $1, completed = $2, updated_at = $3
		 WHERE id = $4 AND owner_id = $5`,
		task.Description, task.Completed, task.UpdatedAt, task.ID, task.OwnerID,
	)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	return requireRow(result, model.ErrTaskNotFound)
}

// DeleteByIDAndOwner は指定IDかつ指定所有者のタスクを削除し、
// 削除したタスクを返す。該当行がない場合はmodel.ErrTaskNotFoundを返す。
func (r *PostgresTaskRepo) DeleteByIDAndOwner(ctx context.Context, id, ownerID string) (*model.Task, error) {
	task := &model.Task{}
	err := r.db.QueryRowContext(ctx,
		`DELETE FROM tasks WHERE id = $1 AND owner_id = $2
		 RETURNING id, owner_id, description, completed, created_at, updated_at`,
		id, ownerID,
	).Scan(&task.ID, &task.OwnerID, &task.Description, &task.Completed, &task.CreatedAt, &task.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, model.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to delete task: %w", err)
	}

	return task, nil
}

// DeleteByOwner は所有者の全タスクを削除する。
func (r *PostgresTaskRepo) DeleteByOwner(ctx context.Context, ownerID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE owner_id = $1`,
		ownerID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete tasks by owner: %w", err)
	}
	return nil
}

// compile-time interface check
var _ TaskRepository = (*PostgresTaskRepo)(nil)
