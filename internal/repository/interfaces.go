// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/taskman/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
//
// セッション一覧の変更（Append/Remove/Clear）は単一レコードに対する
// アトミックな配列操作として実装すること。同一ユーザーへの並行ログインが
// 互いのセッションを失わせてはならない。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	// Avatarカラムは含まない（FindAvatarByIDを使用すること）。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail は正規化済みメールアドレスでユーザーを検索する。
	// 見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。
	// メールアドレスが重複する場合はmodel.ErrEmailTakenを返す。
	Create(ctx context.Context, user *model.User) error

	// Update はユーザーのプロフィール（email, name, age, password_hash）を更新する。
	// メールアドレスが重複する場合はmodel.ErrEmailTakenを返す。
	Update(ctx context.Context, user *model.User) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するtasksはON DELETE CASCADEで削除される。
	DeleteByID(ctx context.Context, id string) error

	// AppendSession はセッション一覧の末尾にトークンを追加する。
	AppendSession(ctx context.Context, userID, token string) error

	// RemoveSession は一致するトークンをセッション一覧から取り除く。
	// 含まれていない場合も成功する（冪等）。
	RemoveSession(ctx context.Context, userID, token string) error

	// ClearSessions はセッション一覧を空にする（冪等）。
	ClearSessions(ctx context.Context, userID string) error

	// ListSessionHolders はセッションを1件以上持つ全ユーザーの
	// IDとセッション一覧を返す。期限切れセッションの掃除に使用する。
	ListSessionHolders(ctx context.Context) ([]*model.User, error)

	// FindAvatarByID は指定IDのユーザーのアバター画像を返す。
	// ユーザーが存在しない、またはアバター未設定の場合はnilを返す。
	FindAvatarByID(ctx context.Context, id string) ([]byte, error)

	// UpdateAvatar はアバター画像を差し替える。nilを渡すと削除する。
	UpdateAvatar(ctx context.Context, id string, avatar []byte) error
}

// TaskRepository はタスクデータの永続化インターフェース。
//
// 読み取り・更新・削除はすべて(id, owner_id)の複合述語で行う。
// 所有者が一致しない場合は「存在しない」と同じ結果を返し、
// 他ユーザーのタスクの存在が観測できないようにする。
type TaskRepository interface {
	// Create はタスクを作成する。
	Create(ctx context.Context, task *model.Task) error

	// FindByIDAndOwner は指定IDかつ指定所有者のタスクを取得する。
	// 見つからない場合はnilを返す。
	FindByIDAndOwner(ctx context.Context, id, ownerID string) (*model.Task, error)

	// ListByOwner は所有者のタスク一覧をフィルタ・ページネーション・
	// ソート条件付きで返す。
	ListByOwner(ctx context.Context, ownerID string, opts model.TaskListOptions) ([]*model.Task, error)

	// Update は指定IDかつ指定所有者のタスクの内容を更新する。
	// 該当行がない場合はmodel.ErrTaskNotFoundを返す。
	Update(ctx context.Context, task *model.Task) error

	// DeleteByIDAndOwner は指定IDかつ指定所有者のタスクを削除し、
	// 削除したタスクを返す。該当行がない場合はmodel.ErrTaskNotFoundを返す。
	DeleteByIDAndOwner(ctx context.Context, id, ownerID string) (*model.Task, error)

	// DeleteByOwner は所有者の全タスクを削除する。アカウント削除時に使用する。
	DeleteByOwner(ctx context.Context, ownerID string) error
}
