package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/taskman/internal/model"
)

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	writeJSON(w, statusCode, apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
// センチネルエラーは対応するAPIErrorに変換し、どれにも該当しない
// エラー（ストレージ障害等）は詳細をログにのみ記録して500を返す。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	switch {
	case errors.Is(err, model.ErrInvalidCredentials):
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewInvalidCredentialsError())
	case errors.Is(err, model.ErrEmailTaken):
		writeAPIErrorResponse(w, http.StatusConflict, model.NewEmailTakenError())
	case errors.Is(err, model.ErrInvalidSecret):
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("パスワードが不正です"))
	case errors.Is(err, model.ErrInvalidUpdateFields):
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("入力値が不正です"))
	case errors.Is(err, model.ErrTaskNotFound):
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewTaskNotFoundError(""))
	case errors.Is(err, model.ErrIdentityNotFound):
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewUserNotFoundError())
	default:
		slog.Error("internal server error", slog.String("error", err.Error()))
		writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
			Code:     model.ErrCodeInternal,
			Message:  "内部エラーが発生しました。",
			Category: "system",
			Action:   "しばらく待ってから再度お試しください。",
		})
	}
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUnauthorized, model.ErrCodeInvalidCredentials:
		return http.StatusUnauthorized
	case model.ErrCodeInvalidRequest, model.ErrCodeInvalidUpdate, model.ErrCodeInvalidAvatar:
		return http.StatusBadRequest
	case model.ErrCodeEmailTaken:
		return http.StatusConflict
	case model.ErrCodeTaskNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// decodeUpdateFields はJSONボディをフィールド単位で読み取り、
// 許可リストに含まれないフィールド名の一覧を返す。
// 1つでも許可外フィールドがあれば呼び出し側は更新全体を拒否する。
func decodeUpdateFields(body io.Reader, allowed map[string]bool) (map[string]json.RawMessage, []string, error) {
	var fields map[string]json.RawMessage
	if err := json.NewDecoder(body).Decode(&fields); err != nil {
		return nil, nil, err
	}

	var invalid []string
	for name := range fields {
		if !allowed[name] {
			invalid = append(invalid, name)
		}
	}
	return fields, invalid, nil
}
