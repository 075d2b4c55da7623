// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// 認証・認可サブシステムのエラー種別。
// サービス層はこれらのセンチネルエラーを返し、ハンドラー層が
// HTTPレスポンスに変換する。トークン・セッション系の失敗は
// 境界（ミドルウェア）ですべてUNAUTHORIZEDに集約され、
// 個別の失敗理由はログにのみ記録される。
var (
	// ErrInvalidSecret は空または不正なパスワード入力を表す。
	ErrInvalidSecret = errors.New("invalid secret")
	// ErrInvalidCredentials はメールアドレスまたはパスワードの不一致を表す。
	// アカウント列挙を防ぐため、どちらが誤っていたかは区別しない。
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrTokenMalformed は署名または構造が不正なトークンを表す。
	ErrTokenMalformed = errors.New("token malformed")
	// ErrTokenExpired は有効期限切れのトークンを表す。
	ErrTokenExpired = errors.New("token expired")
	// ErrSessionRevoked は失効済み（セッション一覧に存在しない）トークンを表す。
	ErrSessionRevoked = errors.New("session revoked")
	// ErrIdentityNotFound はトークンが指すユーザーが存在しないことを表す。
	ErrIdentityNotFound = errors.New("identity not found")
	// ErrInvalidUpdateFields は許可リスト外のフィールドを含む更新リクエストを表す。
	ErrInvalidUpdateFields = errors.New("invalid update fields")
	// ErrEmailTaken は既に使用されているメールアドレスでの登録・変更を表す。
	ErrEmailTaken = errors.New("email already taken")
	// ErrTaskNotFound は所有タスクが見つからないことを表す。
	// 他ユーザーのタスクIDを指定した場合も同じエラーになる（存在の秘匿）。
	ErrTaskNotFound = errors.New("task not found")
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, task, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeInvalidUpdate      = "INVALID_UPDATE"
	ErrCodeEmailTaken         = "EMAIL_TAKEN"
	ErrCodeTaskNotFound       = "TASK_NOT_FOUND"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeInvalidAvatar      = "INVALID_AVATAR"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// NewUnauthorizedError は認証エラーを生成する。
// 失敗理由（期限切れ・失効・署名不正）はクライアントに区別させない。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewInvalidCredentialsError はログイン失敗エラーを生成する。
// メールアドレスの存在有無を区別しない単一のメッセージを返す。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewInvalidRequestError はリクエスト形式エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "リクエスト内容を確認してください。",
	}
}

// NewInvalidUpdateError は許可リスト外フィールドによる更新拒否エラーを生成する。
func NewInvalidUpdateError(fields []string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidUpdate,
		Message:  fmt.Sprintf("更新できないフィールドが含まれています: %v", fields),
		Category: "validation",
		Action:   "更新可能なフィールドのみを指定してください。",
	}
}

// NewEmailTakenError はメールアドレス重複エラーを生成する。
func NewEmailTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  "このメールアドレスは既に使用されています。",
		Category: "validation",
		Action:   "別のメールアドレスを指定してください。",
	}
}

// NewTaskNotFoundError はタスク未検出エラーを生成する。
// 他ユーザーのタスクへのアクセスも同じエラーになる。
func NewTaskNotFoundError(taskID string) *APIError {
	return &APIError{
		Code:     ErrCodeTaskNotFound,
		Message:  fmt.Sprintf("指定されたタスクが見つかりません: %s", taskID),
		Category: "task",
		Action:   "タスクIDを確認してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewInvalidAvatarError はアバター画像の形式エラーを生成する。
func NewInvalidAvatarError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidAvatar,
		Message:  fmt.Sprintf("アバター画像を処理できません: %s", reason),
		Category: "validation",
		Action:   "1MB以下のPNGまたはJPEG画像をアップロードしてください。",
	}
}
