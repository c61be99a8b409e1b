package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/taskflow/internal/metrics"
	"github.com/hitoshi/taskflow/internal/model"
	"github.com/hitoshi/taskflow/internal/task"
)

// TaskServiceInterface はタスクハンドラーが必要とするサービスインターフェース。
type TaskServiceInterface interface {
	List(ctx context.Context, userID string, params task.ListParams) (*model.TaskPage, error)
	Create(ctx context.Context, userID string, input task.CreateInput) (*model.Task, error)
	Get(ctx context.Context, userID, taskID string) (*model.Task, error)
	Update(ctx context.Context, userID, taskID string, input task.UpdateInput) (*model.Task, error)
	Delete(ctx context.Context, userID, taskID string) error
	Share(ctx context.Context, userID, taskID, email string) (*model.Task, error)
	Unshare(ctx context.Context, userID, taskID, recipientID string) (*model.Task, error)
}

// TaskHandler はタスク管理のHTTPハンドラー。
type TaskHandler struct {
	service TaskServiceInterface
	metrics metrics.MetricsCollector
}

// NewTaskHandler はTaskHandlerを生成する。collectorがnilの場合はメトリクスを記録しない。
func NewTaskHandler(service TaskServiceInterface, collector metrics.MetricsCollector) *TaskHandler {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &TaskHandler{
		service: service,
		metrics: collector,
	}
}

// createTaskRequest はタスク作成リクエストのボディ。
type createTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Priority    string `json:"priority"`
}

// updateTaskRequest はタスク更新リクエストのボディ。省略したフィールドは変更しない。
type updateTaskRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
	Priority    *string `json:"priority"`
}

// shareTaskRequest はタスク共有リクエストのボディ。
type shareTaskRequest struct {
	Email string `json:"email"`
}

// List は閲覧可能なタスクの一覧を返す。
// GET /api/tasks?page=1&limit=10&status=&priority=&search=&sort=created_at&order=desc
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	q := r.URL.Query()
	page, err := h.service.List(r.Context(), user.ID, task.ListParams{
		Page:     q.Get("page"),
		Limit:    q.Get("limit"),
		Status:   q.Get("status"),
		Priority: q.Get("priority"),
		Search:   q.Get("search"),
		Sort:     q.Get("sort"),
		Order:    q.Get("order"),
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toTaskListResponse(page))
}

// Create はタスクを作成する。
// POST /api/tasks
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	var req createTaskRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	t, err := h.service.Create(r.Context(), user.ID, task.CreateInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	h.metrics.RecordTaskOperation("create")
	writeJSON(w, http.StatusCreated, toTaskResponse(t))
}

// Get はタスクを1件返す。
// GET /api/tasks/{id}
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	t, err := h.service.Get(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toTaskResponse(t))
}

// Update はタスクを部分更新する。
// PUT /api/tasks/{id}
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	var req updateTaskRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	t, err := h.service.Update(r.Context(), user.ID, chi.URLParam(r, "id"), task.UpdateInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	h.metrics.RecordTaskOperation("update")
	writeJSON(w, http.StatusOK, toTaskResponse(t))
}

// Delete はタスクを削除する。
// DELETE /api/tasks/{id}
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	if err := h.service.Delete(r.Context(), user.ID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, err)
		return
	}

	h.metrics.RecordTaskOperation("delete")
	w.WriteHeader(http.StatusNoContent)
}

// Share はタスクをメールアドレスで指定したユーザーと共有する。
// POST /api/tasks/{id}/share
func (h *TaskHandler) Share(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	var req shareTaskRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	t, err := h.service.Share(r.Context(), user.ID, chi.URLParam(r, "id"), req.Email)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	h.metrics.RecordTaskOperation("share")
	writeJSON(w, http.StatusOK, toTaskResponse(t))
}

// Unshare はタスクの共有を解除する。
// DELETE /api/tasks/{id}/share/{userId}
func (h *TaskHandler) Unshare(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	t, err := h.service.Unshare(r.Context(), user.ID, chi.URLParam(r, "id"), chi.URLParam(r, "userId"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	h.metrics.RecordTaskOperation("unshare")
	writeJSON(w, http.StatusOK, toTaskResponse(t))
}
