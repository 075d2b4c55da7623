package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/taskman/internal/model"
	"github.com/hitoshi/taskman/internal/task"
)

// TaskServiceInterface はタスクハンドラーが必要とするサービスインターフェース。
type TaskServiceInterface interface {
	// Create は認証済みユーザーを所有者とするタスクを作成する。
	Create(ctx context.Context, ownerID, description string) (*model.Task, error)
	// Get は所有者条件付きでタスクを取得する。
	Get(ctx context.Context, id, ownerID string) (*model.Task, error)
	// List は所有者のタスク一覧を条件付きで返す。
	List(ctx context.Context, ownerID string, opts model.TaskListOptions) ([]*model.Task, error)
	// UpdateTask は所有者条件付きでタスクを更新する。
	UpdateTask(ctx context.Context, id, ownerID string, upd task.Update) (*model.Task, error)
	// Delete は所有者条件付きでタスクを削除し、削除したタスクを返す。
	Delete(ctx context.Context, id, ownerID string) (*model.Task, error)
}

// TaskHandler はタスク管理のHTTPハンドラー。
type TaskHandler struct {
	service TaskServiceInterface
}

// NewTaskHandler はTaskHandlerを生成する。
func NewTaskHandler(service TaskServiceInterface) *TaskHandler {
	return &TaskHandler{
		service: service,
	}
}

// createTaskRequest はタスク作成リクエストのボディ。
type createTaskRequest struct {
	Description string `json:"description"`
}

// taskResponse はタスク情報のAPIレスポンス。
type taskResponse struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Description string    `json:"description"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Create はタスク作成を処理する。所有者はリクエスト内容に関わらず
// 認証済みユーザーになる。
// POST /tasks
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	u, _, ok := sessionFromRequest(w, r)
	if !ok {
		return
	}

	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}

	created, err := h.service.Create(r.Context(), u.ID, req.Description)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toTaskResponse(created))
}

// List はタスク一覧を返す。
// クエリパラメータ: completed（"true"のみ真）, limit, skip,
// sortBy=field_asc|field_desc（field: createdAt, updatedAt, description, completed）
// GET /tasks
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	u, _, ok := sessionFromRequest(w, r)
	if !ok {
		return
	}

	opts, apiErr := parseListOptions(r)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	tasks, err := h.service.List(r.Context(), u.ID, opts)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	out := make([]taskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, toTaskResponse(t))
	}
	writeJSON(w, http.StatusOK, out)
}

// Get はタスク詳細を返す。
// GET /tasks/{id}
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	u, _, ok := sessionFromRequest(w, r)
	if !ok {
		return
	}
	taskID := chi.URLParam(r, "id")

	found, err := h.service.Get(r.Context(), taskID, u.ID)
	if err != nil {
		if errors.Is(err, model.ErrTaskNotFound) {
			writeAPIErrorResponse(w, http.StatusNotFound, model.NewTaskNotFoundError(taskID))
			return
		}
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTaskResponse(found))
}

// 更新リクエストで受け付けるフィールド名の許可リスト。
var allowedTaskUpdateFields = map[string]bool{
	"description": true,
	"completed":   true,
}

// Update はタスクを更新する。許可リスト（description, completed）以外の
// フィールドを含むリクエストは全体を拒否する。
// PATCH /tasks/{id}
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	u, _, ok := sessionFromRequest(w, r)
	if !ok {
		return
	}
	taskID := chi.URLParam(r, "id")

	fields, invalid, err := decodeUpdateFields(r.Body, allowedTaskUpdateFields)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}
	if len(invalid) > 0 {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidUpdateError(invalid))
		return
	}

	var upd task.Update
	if raw, ok := fields["description"]; ok {
		if err := json.Unmarshal(raw, &upd.Description); err != nil || upd.Description == nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("descriptionは文字列で指定してください"))
			return
		}
	}
	if raw, ok := fields["completed"]; ok {
		if err := json.Unmarshal(raw, &upd.Completed); err != nil || upd.Completed == nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("completedは真偽値で指定してください"))
			return
		}
	}

	updated, err := h.service.UpdateTask(r.Context(), taskID, u.ID, upd)
	if err != nil {
		if errors.Is(err, model.ErrTaskNotFound) {
			writeAPIErrorResponse(w, http.StatusNotFound, model.NewTaskNotFoundError(taskID))
			return
		}
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTaskResponse(updated))
}

// Delete はタスクを削除し、削除したタスクを返す。
// DELETE /tasks/{id}
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	u, _, ok := sessionFromRequest(w, r)
	if !ok {
		return
	}
	taskID := chi.URLParam(r, "id")

	deleted, err := h.service.Delete(r.Context(), taskID, u.ID)
	if err != nil {
		if errors.Is(err, model.ErrTaskNotFound) {
			writeAPIErrorResponse(w, http.StatusNotFound, model.NewTaskNotFoundError(taskID))
			return
		}
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTaskResponse(deleted))
}

// toTaskResponse はmodel.TaskからAPIレスポンスに変換する。
func toTaskResponse(t *model.Task) taskResponse {
	return taskResponse{
		ID:          t.ID,
		OwnerID:     t.OwnerID,
		Description: t.Description,
		Completed:   t.Completed,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// parseListOptions はタスク一覧のクエリパラメータを解釈する。
// completedは"true"のみ真、それ以外の値は偽として扱う。
// limit/skipは解釈できない値を未指定（無制限/0）として扱う。
// 形式が定義されているsortByのみ、不正な方向指定を*model.APIErrorとして返す。
func parseListOptions(r *http.Request) (model.TaskListOptions, *model.APIError) {
	var opts model.TaskListOptions
	q := r.URL.Query()

	if v := q.Get("completed"); v != "" {
		completed := v == "true"
		opts.Completed = &completed
	}

	if v := q.Get("limit"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil {
			opts.Limit = limit
		}
	}

	if v := q.Get("skip"); v != "" {
		if skip, err := strconv.Atoi(v); err == nil {
			opts.Skip = skip
		}
	}

	if v := q.Get("sortBy"); v != "" {
		// 形式: field_asc または field_desc
		field, dir, found := cutLast(v, "_")
		if !found {
			return opts, model.NewInvalidRequestError("sortByはfield_ascまたはfield_descの形式で指定してください")
		}
		switch dir {
		case "asc":
			opts.SortDir = model.SortAsc
		case "desc":
			opts.SortDir = model.SortDesc
		default:
			return opts, model.NewInvalidRequestError("sortByの方向はascまたはdescを指定してください")
		}
		opts.SortBy = field
	}

	return opts, nil
}

// cutLast は最後のセパレータで文字列を2つに分割する。
// フィールド名自体がアンダースコアを含む場合に備える。
func cutLast(s, sep string) (before, after string, found bool) {
	idx := strings.LastIndex(s, sep)
	if idx < 0 {
		return s, "", false
	}
	return s[:idx], s[idx+len(sep):], true
}
