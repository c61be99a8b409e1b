package handler

import (
	"time"

	"github.com/hitoshi/taskflow/internal/model"
)

// preferencesResponse はユーザー設定のAPIレスポンス。
type preferencesResponse struct {
	Theme         string `json:"theme"`
	Notifications bool   `json:"notifications"`
}

// userResponse は公開ユーザー情報のAPIレスポンス。
// パスワードハッシュと外部IdPのIDは含めない。
type userResponse struct {
	ID            string              `json:"id"`
	Email         string              `json:"email"`
	Name          string              `json:"name"`
	AvatarURL     string              `json:"avatar_url"`
	EmailVerified bool                `json:"email_verified"`
	HasPassword   bool                `json:"has_password"`
	LastLoginAt   *time.Time          `json:"last_login_at"`
	Preferences   preferencesResponse `json:"preferences"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.Name,
		AvatarURL:     u.AvatarURL,
		EmailVerified: u.EmailVerified,
		HasPassword:   u.HasPassword(),
		LastLoginAt:   u.LastLoginAt,
		Preferences: preferencesResponse{
			Theme:         string(u.Preferences.Theme),
			Notifications: u.Preferences.Notifications,
		},
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// authResponse はログイン・登録成功時のAPIレスポンス。
type authResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

// taskResponse はタスクのAPIレスポンス。
type taskResponse struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	Priority    string    `json:"priority"`
	SharedWith  []string  `json:"shared_with"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toTaskResponse(t *model.Task) taskResponse {
	sharedWith := t.SharedWith
	if sharedWith == nil {
		sharedWith = []string{}
	}
	return taskResponse{
		ID:          t.ID,
		OwnerID:     t.OwnerID,
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		Priority:    string(t.Priority),
		SharedWith:  sharedWith,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// taskListResponse はタスク一覧のAPIレスポンス。
type taskListResponse struct {
	Tasks       []taskResponse `json:"tasks"`
	TotalTasks  int            `json:"total_tasks"`
	TotalPages  int            `json:"total_pages"`
	CurrentPage int            `json:"current_page"`
}

func toTaskListResponse(page *model.TaskPage) taskListResponse {
	tasks := make([]taskResponse, len(page.Tasks))
	for i, t := range page.Tasks {
		tasks[i] = toTaskResponse(t)
	}
	return taskListResponse{
		Tasks:       tasks,
		TotalTasks:  page.TotalTasks,
		TotalPages:  page.TotalPages,
		CurrentPage: page.CurrentPage,
	}
}

// messageResponse は単純なメッセージのAPIレスポンス。
type messageResponse struct {
	Message string `json:"message"`
}
