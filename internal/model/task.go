package model

import "time"

// Task はユーザーが所有するタスクを表す。
// OwnerIDは作成時に認証済みユーザーのIDで確定し、以後変更されない。
type Task struct {
	ID          string
	OwnerID     string
	Description string
	Completed   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SortDirection はタスク一覧の並び順を表す。
type SortDirection string

const (
	// SortAsc は昇順を表す。
	SortAsc SortDirection = "asc"
	// SortDesc は降順を表す。
	SortDesc SortDirection = "desc"
)

// TaskListOptions はタスク一覧取得のフィルタ・ページネーション・ソート条件を表す。
// ゼロ値は「フィルタなし・全件・ソートなし」を意味する。
type TaskListOptions struct {
	// Completed が非nilの場合、completedフラグで絞り込む。
	Completed *bool
	// Limit が正の場合、取得件数を制限する。0以下は無制限。
	Limit int
	// Skip が正の場合、先頭からその件数を読み飛ばす。
	Skip int
	// SortBy はソート対象フィールド。空文字列はソートなし。
	// 許可されないフィールド名が指定された場合もソートなしとして扱う。
	SortBy string
	// SortDir はソート方向。SortByが有効な場合のみ参照される。
	SortDir SortDirection
}
