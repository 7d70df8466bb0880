package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/hall-scheduler/internal/application"
)

var (
	errBadRequestBody = errors.New("無効なリクエスト形式です。")
	errInvalidID      = errors.New("無効な ID です。")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	return responder{logger: defaultLogger(logger)}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := localizedStatusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).WarnContext(ctx, "request rejected", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	var (
		vErr        *application.ValidationError
		conflictErr *application.ConflictError
		stateErr    *application.InvalidStateError
	)
	switch {
	case errors.As(err, &vErr):
		r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: "VALIDATION_FAILED",
			Message:   "入力内容に誤りがあります。",
			Errors:    localizeValidationErrors(vErr),
		})
	case errors.As(err, &conflictErr):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: "CONFLICT",
			Message:   "指定された時間帯は既存の予定と重複しています。",
			Conflicts: toConflictDTOs(conflictErr.Conflicts),
		})
	case errors.As(err, &stateErr):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: "INVALID_STATE",
			Message:   "予約の現在の状態ではこの操作を実行できません。",
			Status:    string(stateErr.From),
		})
	case errors.Is(err, application.ErrRoomInUse):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: "ROOM_IN_USE",
			Message:   "予定または予約が登録されている会場は削除できません。",
		})
	case errors.Is(err, application.ErrNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{Message: "指定されたリソースが見つかりません。"})
	case errors.Is(err, context.DeadlineExceeded):
		r.writeJSON(ctx, w, http.StatusServiceUnavailable, errorResponse{Message: "処理が混み合っています。時間をおいて再度お試しください。"})
	default:
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Message: "サーバー内部でエラーが発生しました。"})
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func localizedStatusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "リクエスト内容が正しくありません。"
	case http.StatusNotFound:
		return "指定されたリソースが見つかりません。"
	case http.StatusConflict:
		return "要求はリソースの現在の状態と競合しています。"
	case http.StatusUnprocessableEntity:
		return "入力内容に誤りがあります。"
	case http.StatusServiceUnavailable:
		return "サービスを利用できません。"
	default:
		return "サーバー内部でエラーが発生しました。"
	}
}

func localizeValidationErrors(vErr *application.ValidationError) map[string]string {
	if vErr == nil || len(vErr.FieldErrors) == 0 {
		return nil
	}

	translated := make(map[string]string, len(vErr.FieldErrors))
	for field, msg := range vErr.FieldErrors {
		translated[field] = translateValidationMessage(msg)
	}
	return translated
}

func translateValidationMessage(message string) string {
	switch message {
	case "name is required":
		return "会場名は必須です。"
	case "capacity must be positive":
		return "収容人数は正の整数で指定してください。"
	case "hourly rate must not be negative":
		return "時間単価は 0 以上で指定してください。"
	case "room id is required":
		return "会場 ID は必須です。"
	case "occupant id is required":
		return "利用者 ID は必須です。"
	case "at least one weekday is required":
		return "曜日を 1 つ以上指定してください。"
	case "start time must be between 00:00 and 23:59":
		return "開始時刻は 00:00 から 23:59 の範囲で指定してください。"
	case "end time must be between 00:01 and 24:00":
		return "終了時刻は 00:01 から 24:00 の範囲で指定してください。"
	case "end time must be after start time":
		return "終了時刻は開始時刻より後である必要があります。"
	case "valid from is required":
		return "適用開始日は必須です。"
	case "valid until must not be before valid from":
		return "適用終了日は適用開始日以降で指定してください。"
	case "start time is required":
		return "開始日時は必須です。"
	case "end time is required":
		return "終了日時は必須です。"
	case "start time must be a whole minute":
		return "開始日時は分単位で指定してください。"
	case "end time must be a whole minute":
		return "終了日時は分単位で指定してください。"
	case "booking must end on its start date":
		return "予約は開始日と同じ日のうちに終了する必要があります。"
	case "date is required":
		return "日付は必須です。"
	case "sub slot minutes must not be negative":
		return "分割単位は 0 以上で指定してください。"
	case "sub slot minutes must not exceed working hours":
		return "分割単位は営業時間の長さ以内で指定してください。"
	case "from is required":
		return "開始日は必須です。"
	case "to is required":
		return "終了日は必須です。"
	case "to must be after from", "to must not be before from":
		return "終了は開始より後で指定してください。"
	case "range must be at most 366 days", "range must be ordered and at most 366 days":
		return "期間は 366 日以内で指定してください。"
	case "must be HH:MM":
		return "時刻は HH:MM 形式で指定してください。"
	case "must be YYYY-MM-DD":
		return "日付は YYYY-MM-DD 形式で指定してください。"
	case "must be an RFC3339 timestamp":
		return "日時は RFC3339 形式で指定してください。"
	case "must be an integer":
		return "整数で指定してください。"
	case "must be a decimal number":
		return "数値で指定してください。"
	case "unknown status":
		return "不明な状態です。"
	default:
		if strings.HasPrefix(message, "unknown weekday:") {
			return "不明な曜日が含まれています: " + strings.TrimSpace(strings.TrimPrefix(message, "unknown weekday:"))
		}
		return message
	}
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
	Conflicts []conflictDTO     `json:"conflicts,omitempty"`
	Status    string            `json:"status,omitempty"`
}
