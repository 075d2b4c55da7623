// Package handler はHTTP APIのハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/taskman/internal/middleware"
	"github.com/hitoshi/taskman/internal/model"
	"github.com/hitoshi/taskman/internal/user"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	// Register は新規ユーザーを作成し、最初のセッショントークンを発行する。
	Register(ctx context.Context, email, secret, name string, age int) (*model.User, string, error)
	// Login は資格情報を検証し、新しいセッションを発行する。
	Login(ctx context.Context, email, secret string) (*model.User, string, error)
	// RevokeSession は指定トークンのセッションだけを失効させる。
	RevokeSession(ctx context.Context, user *model.User, tok string) error
	// RevokeAllSessions はユーザーの全セッションを失効させる。
	RevokeAllSessions(ctx context.Context, user *model.User) error
}

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// UpdateProfile はプロフィールを更新する。
	UpdateProfile(ctx context.Context, u *model.User, upd user.Update) (*model.User, error)
	// Delete はアカウントと所有タスクを削除する。
	Delete(ctx context.Context, u *model.User) error
	// SetAvatar はアップロード画像を正規化して保存する。
	SetAvatar(ctx context.Context, userID string, data []byte) error
	// GetAvatar はアバター画像を返す。未設定の場合はnil。
	GetAvatar(ctx context.Context, userID string) ([]byte, error)
	// ClearAvatar はアバター画像を削除する。
	ClearAvatar(ctx context.Context, userID string) error
}

// UserHandlerConfig はユーザーハンドラーの設定。
type UserHandlerConfig struct {
	AvatarMaxSize int64 // アバターアップロードの最大バイト数
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	authService AuthServiceInterface
	userService UserServiceInterface
	config      UserHandlerConfig
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(authService AuthServiceInterface, userService UserServiceInterface, config UserHandlerConfig) *UserHandler {
	return &UserHandler{
		authService: authService,
		userService: userService,
		config:      config,
	}
}

// registerRequest はユーザー登録リクエストのボディ。
type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Age      int    `json:"age"`
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// userResponse はユーザー情報のAPIレスポンス。
// パスワードハッシュ・セッション一覧・アバターは含めない。
type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Age       int       `json:"age"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// sessionResponse はユーザーとトークンを返すレスポンス。
type sessionResponse struct {
	User  userResponse `json:"user"`
	Token string       `json:"token"`
}

// Register は新規ユーザー登録を処理する。
// POST /users
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}

	u, tok, err := h.authService.Register(r.Context(), req.Email, req.Password, req.Name, req.Age)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, sessionResponse{
		User:  toUserResponse(u),
		Token: tok,
	})
}

// Login は資格情報を検証して新しいセッションを発行する。
// POST /users/login
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}

	u, tok, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		User:  toUserResponse(u),
		Token: tok,
	})
}

// Logout は現在のリクエストで使われたセッションだけを失効させる。
// 他デバイスのセッションは有効なまま残る。
// POST /users/logout
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	u, tok, ok := sessionFromRequest(w, r)
	if !ok {
		return
	}

	if err := h.authService.RevokeSession(r.Context(), u, tok); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// LogoutAll はユーザーの全セッションを失効させる。
// POST /users/logoutAll
func (h *UserHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	u, _, ok := sessionFromRequest(w, r)
	if !ok {
		return
	}

	if err := h.authService.RevokeAllSessions(r.Context(), u); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Me は認証済みユーザー自身のプロフィールを返す。
// GET /users/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	u, _, ok := sessionFromRequest(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(u))
}

// 更新リクエストで受け付けるフィールド名の許可リスト。
var allowedUserUpdateFields = map[string]bool{
	"name":     true,
	"age":      true,
	"password": true,
	"email":    true,
}

// UpdateMe はプロフィールを更新する。
// 許可リスト（name, age, password, email）以外のフィールドを含む
// リクエストは、許可されたフィールドも含めて全体を拒否する。
// PATCH /users/me
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	u, _, ok := sessionFromRequest(w, r)
	if !ok {
		return
	}

	fields, invalid, err := decodeUpdateFields(r.Body, allowedUserUpdateFields)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}
	if len(invalid) > 0 {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidUpdateError(invalid))
		return
	}

	var upd user.Update
	if raw, ok := fields["name"]; ok {
		if err := json.Unmarshal(raw, &upd.Name); err != nil || upd.Name == nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("nameは文字列で指定してください"))
			return
		}
	}
	if raw, ok := fields["age"]; ok {
		if err := json.Unmarshal(raw, &upd.Age); err != nil || upd.Age == nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("ageは整数で指定してください"))
			return
		}
	}
	if raw, ok := fields["password"]; ok {
		if err := json.Unmarshal(raw, &upd.Secret); err != nil || upd.Secret == nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("passwordは文字列で指定してください"))
			return
		}
	}
	if raw, ok := fields["email"]; ok {
		if err := json.Unmarshal(raw, &upd.Email); err != nil || upd.Email == nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("emailは文字列で指定してください"))
			return
		}
	}

	updated, err := h.userService.UpdateProfile(r.Context(), u, upd)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(updated))
}

// DeleteMe はアカウントを削除する。所有タスクもすべて削除される。
// DELETE /users/me
func (h *UserHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	u, _, ok := sessionFromRequest(w, r)
	if !ok {
		return
	}

	if err := h.userService.Delete(r.Context(), u); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(u))
}

// UploadAvatar はアバター画像のアップロードを処理する。
// multipart/form-dataのavatarフィールドから読み取り、250x250のPNGに
// 正規化して保存する。上限サイズ超過・非対応形式は400を返す。
// POST /users/me/avatar
func (h *UserHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	u, _, ok := sessionFromRequest(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.config.AvatarMaxSize)
	if err := r.ParseMultipartForm(h.config.AvatarMaxSize); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidAvatarError("アップロードサイズが上限を超えているか、形式が不正です"))
		return
	}

	file, _, err := r.FormFile("avatar")
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidAvatarError("avatarフィールドがありません"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidAvatarError("アップロードデータを読み取れません"))
		return
	}

	if err := h.userService.SetAvatar(r.Context(), u.ID, data); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// DeleteAvatar はアバター画像を削除する。
// DELETE /users/me/avatar
func (h *UserHandler) DeleteAvatar(w http.ResponseWriter, r *http.Request) {
	u, _, ok := sessionFromRequest(w, r)
	if !ok {
		return
	}

	if err := h.userService.ClearAvatar(r.Context(), u.ID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ServeAvatar は任意ユーザーのアバター画像を返す。認証不要。
// GET /users/{id}/avatar
func (h *UserHandler) ServeAvatar(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	data, err := h.userService.GetAvatar(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if data == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewUserNotFoundError())
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// toUserResponse はmodel.UserからAPIレスポンスに変換する。
func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Age:       u.Age,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// sessionFromRequest はコンテキストから認証済みユーザーとトークンを取り出す。
// 取り出せない場合は401を書き込み、falseを返す。
func sessionFromRequest(w http.ResponseWriter, r *http.Request) (*model.User, string, bool) {
	u, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return nil, "", false
	}
	tok, err := middleware.TokenFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return nil, "", false
	}
	return u, tok, true
}
