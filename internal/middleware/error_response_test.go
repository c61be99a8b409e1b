package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/taskflow/internal/model"
)

// recordErrorResponse はWriteErrorResponseの出力を構造体と生JSONの両方で返す。
func recordErrorResponse(t *testing.T, write func(w http.ResponseWriter)) (*httptest.ResponseRecorder, ErrorResponseBody, map[string]json.RawMessage) {
	t.Helper()
	w := httptest.NewRecorder()
	write(w)

	raw := w.Body.Bytes()
	var body ErrorResponseBody
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("failed to decode body %q: %v", raw, err)
	}
	var fields map[string]json.RawMessage
	if err := json.NewDecoder(bytes.NewReader(raw)).Decode(&fields); err != nil {
		t.Fatalf("failed to decode raw body: %v", err)
	}
	return w, body, fields
}

// TestWriteErrorResponse_DomainErrors は各APIErrorコンストラクタの内容がそのまま返ることを検証する。
func TestWriteErrorResponse_DomainErrors(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		apiErr     *model.APIError
		code       string
		category   string
	}{
		{"未認証", http.StatusUnauthorized, model.NewUnauthorizedError(), model.ErrCodeUnauthorized, "auth"},
		{"認証情報の誤り", http.StatusUnauthorized, model.NewInvalidCredentialsError(), model.ErrCodeInvalidCredentials, "auth"},
		{"メールアドレス重複", http.StatusConflict, model.NewEmailTakenError(), model.ErrCodeEmailTaken, "auth"},
		{"タスクなし", http.StatusNotFound, model.NewTaskNotFoundError("task-1"), model.ErrCodeTaskNotFound, "task"},
		{"共有先ユーザーなし", http.StatusNotFound, model.NewUserNotFoundError(), model.ErrCodeUserNotFound, "auth"},
		{"リクエスト不正", http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディが空です"), model.ErrCodeInvalidRequest, "validation"},
		{"レート制限", http.StatusTooManyRequests, model.NewRateLimitExceededError(), model.ErrCodeRateLimitExceeded, "system"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body, raw := recordErrorResponse(t, func(w http.ResponseWriter) {
				WriteErrorResponse(w, tt.statusCode, tt.apiErr)
			})

			if w.Code != tt.statusCode {
				t.Errorf("status = %d, want %d", w.Code, tt.statusCode)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", ct)
			}
			if body.Code != tt.code || body.Category != tt.category {
				t.Errorf("code/category = %s/%s, want %s/%s", body.Code, body.Category, tt.code, tt.category)
			}
			if body.Message != tt.apiErr.Message || body.Action != tt.apiErr.Action {
				t.Errorf("message/action = %q/%q, want %q/%q", body.Message, body.Action, tt.apiErr.Message, tt.apiErr.Action)
			}
			if body.Message == "" || body.Action == "" {
				t.Error("message and action must not be empty")
			}
			if _, ok := raw["fields"]; ok {
				t.Errorf("fields must be omitted for %s", tt.code)
			}
		})
	}
}

// TestWriteErrorResponse_ValidationFields はフィールド単位の検証エラーがfieldsに入ることを検証する。
func TestWriteErrorResponse_ValidationFields(t *testing.T) {
	w, body, _ := recordErrorResponse(t, func(w http.ResponseWriter) {
		WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError(map[string]string{
			"title":    "タイトルを入力してください。",
			"priority": "優先度はlow、medium、highのいずれかを指定してください。",
		}))
	})

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if body.Code != model.ErrCodeValidationFailed || body.Category != "validation" {
		t.Errorf("code/category = %s/%s", body.Code, body.Category)
	}
	if len(body.Fields) != 2 || body.Fields["title"] != "タイトルを入力してください。" {
		t.Errorf("fields = %v, want title and priority errors", body.Fields)
	}
}

// TestWriteInternalServerError_HidesDetails は内部エラーが詳細を含まない汎用レスポンスになることを検証する。
func TestWriteInternalServerError_HidesDetails(t *testing.T) {
	w, body, raw := recordErrorResponse(t, WriteInternalServerError)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	want := model.NewInternalError()
	if body.Code != want.Code || body.Message != want.Message || body.Category != want.Category || body.Action != want.Action {
		t.Errorf("body = %+v, want %+v", body, want)
	}
	for _, key := range []string{"code", "message", "category", "action"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("missing required field: %s", key)
		}
	}
}
