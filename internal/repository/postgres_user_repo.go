package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/taskman/internal/model"
)

// uniqueViolation はPostgreSQLの一意制約違反のSQLSTATEコード。
const uniqueViolation = "23505"

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
// セッション一覧はusers.sessions（TEXT[]）に保持し、追加・削除は
// array_append/array_removeによる単一UPDATE文で行う。行単位の
// read-modify-writeがDB側でアトミックに実行されるため、並行ログインが
// 互いのセッションを上書きすることはない。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return r.findOne(ctx,
		`SELECT id, email, name, age, password_hash, sessions, created_at, updated_at
		 FROM users WHERE id = $1`,
		id,
	)
}

// FindByEmail は正規化済みメールアドレスでユーザーを検索する。
// 見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx,
		`SELECT id, email, name, age, password_hash, sessions, created_at, updated_at
		 FROM users WHERE email = $1`,
		email,
	)
}

// findOne は単一ユーザーを取得する共通実装。
func (r *PostgresUserRepo) findOne(ctx context.Context, query string, arg any) (*model.User, error) {
	user := &model.User{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID, &user.Email, &user.Name, &user.Age, &user.PasswordHash,
		pq.Array((*[]string)(&user.Sessions)),
		&user.CreatedAt, &user.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	return user, nil
}

// Create はユーザーを作成する。
// メールアドレスが重複する場合はmodel.ErrEmailTakenを返す。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, age, password_hash, sessions, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		user.ID, user.Email, user.Name, user.Age, user.PasswordHash,
		pq.Array([]string(user.Sessions)),
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.ErrEmailTaken
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// Update はユーザーのプロフィールを更新する。
// セッション一覧とアバターはこのメソッドでは変更しない。
func (r *PostgresUserRepo) Update(ctx context.Context, user *model.User) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET email = $1, name = $2, age = $3, password_hash = $4, updated_at = $5
		 WHERE id = $6`,
		user.Email, user.Name, user.Age, user.PasswordHash, user.UpdatedAt, user.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.ErrEmailTaken
		}
		return fmt.Errorf("failed to update user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return model.ErrIdentityNotFound
	}
	return nil
}

// DeleteByID は指定IDのユーザーを削除する。
// 関連するtasksはON DELETE CASCADEで削除される。
func (r *PostgresUserRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM users WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return model.ErrIdentityNotFound
	}
	return nil
}

// AppendSession はセッション一覧の末尾にトークンを追加する。
func (r *PostgresUserRepo) AppendSession(ctx context.Context, userID, token string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET sessions = array_append(sessions, $1), updated_at = now()
		 WHERE id = $2`,
		token, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to append session: %w", err)
	}
	return requireRow(result, model.ErrIdentityNotFound)
}

// RemoveSession は一致するトークンをセッション一覧から取り除く。
// 含まれていない場合も成功する（冪等）。
func (r *PostgresUserRepo) RemoveSession(ctx context.Context, userID, token string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET sessions = array_remove(sessions, $1), updated_at = now()
		 WHERE id = $2`,
		token, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove session: %w", err)
	}
	return requireRow(result, model.ErrIdentityNotFound)
}

// ClearSessions はセッション一覧を空にする（冪等）。
func (r *PostgresUserRepo) ClearSessions(ctx context.Context, userID string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET sessions = '{}', updated_at = now() WHERE id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to clear sessions: %w", err)
	}
	return requireRow(result, model.ErrIdentityNotFound)
}

// ListSessionHolders はセッションを1件以上持つ全ユーザーの
// IDとセッション一覧を返す。
func (r *PostgresUserRepo) ListSessionHolders(ctx context.Context) ([]*model.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, sessions FROM users WHERE cardinality(sessions) > 0`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list session holders: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user := &model.User{}
		if err := rows.Scan(&user.ID, pq.Array((*[]string)(&user.Sessions))); err != nil {
			return nil, fmt.Errorf("failed to scan session holder: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate session holders: %w", err)
	}

	return users, nil
}

// FindAvatarByID は指定IDのユーザーのアバター画像を返す。
// ユーザーが存在しない、またはアバター未設定の場合はnilを返す。
func (r *PostgresUserRepo) FindAvatarByID(ctx context.Context, id string) ([]byte, error) {
	var avatar []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT avatar FROM users WHERE id = $1`,
		id,
	).Scan(&avatar)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find avatar: %w", err)
	}

	return avatar, nil
}

// UpdateAvatar はアバター画像を差し替える。nilを渡すと削除する。
func (r *PostgresUserRepo) UpdateAvatar(ctx context.Context, id string, avatar []byte) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET avatar = $1, updated_at = now() WHERE id = $2`,
		avatar, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update avatar: %w", err)
	}
	return requireRow(result, model.ErrIdentityNotFound)
}

// isUniqueViolation はPostgreSQLの一意制約違反かどうかを判定する。
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}

// requireRow は更新対象行が存在しなかった場合にnotFoundを返す。
func requireRow(result sql.Result, notFound error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return notFound
	}
	return nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
