// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// PasswordHashにはbcryptハッシュのみを保持し、平文パスワードは
// アカウント作成・更新処理の中でしか存在しない。
type User struct {
	ID           string
	Email        string // 小文字正規化済み。全ユーザー間で一意。
	Name         string
	Age          int
	PasswordHash string
	Sessions     SessionList // 有効なセッショントークン（発行順）
	Avatar       []byte      // アバター画像（PNG）。未設定の場合はnil。
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasSession は指定トークンがセッション一覧に含まれるかを返す。
func (u *User) HasSession(token string) bool {
	return u.Sessions.Contains(token)
}

// SessionList はユーザーの有効セッショントークンの順序付きコレクション。
// 追加・削除・全削除の操作を明示的に定義する。永続化層では
// 単一レコードに対するアトミックな配列操作として反映される。
type SessionList []string

// Contains は指定トークンが含まれるかを返す。
func (s SessionList) Contains(token string) bool {
	for _, t := range s {
		if t == token {
			return true
		}
	}
	return false
}

// Add はトークンを末尾に追加した新しいSessionListを返す。
func (s SessionList) Add(token string) SessionList {
	out := make(SessionList, 0, len(s)+1)
	out = append(out, s...)
	return append(out, token)
}

// Remove は一致するトークンを除いた新しいSessionListを返す。
// 含まれていない場合は同内容のコピーを返す（冪等）。
func (s SessionList) Remove(token string) SessionList {
	out := make(SessionList, 0, len(s))
	for _, t := range s {
		if t != token {
			out = append(out, t)
		}
	}
	return out
}
