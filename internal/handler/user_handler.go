package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/taskflow/internal/model"
	"github.com/hitoshi/taskflow/internal/user"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	GetProfile(ctx context.Context, userID string) (*model.User, error)
	UpdateProfile(ctx context.Context, userID string, update user.ProfileUpdate) (*model.User, error)
	UpdatePreferences(ctx context.Context, userID string, prefs model.Preferences) (*model.User, error)
	SetPassword(ctx context.Context, userID string, change user.PasswordChange) error
}

// UserHandler はユーザープロフィール管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

type updateProfileRequest struct {
	Name      *string `json:"name"`
	AvatarURL *string `json:"avatar_url"`
}

type updatePreferencesRequest struct {
	Theme         string `json:"theme"`
	Notifications *bool  `json:"notifications"`
}

type setPasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// GetMe はログインユーザーのプロフィールを返す。
// GET /api/users/me
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	u := requireUser(w, r)
	if u == nil {
		return
	}

	profile, err := h.service.GetProfile(r.Context(), u.ID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(profile))
}

// UpdateMe は表示名・アバターURLを更新する。
// PATCH /api/users/me
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	u := requireUser(w, r)
	if u == nil {
		return
	}

	var req updateProfileRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	profile, err := h.service.UpdateProfile(r.Context(), u.ID, user.ProfileUpdate{
		Name:      req.Name,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(profile))
}

// UpdatePreferences はテーマと通知設定を更新する。notificationsを省略した場合は現在の値を維持する。
// PUT /api/users/me/preferences
func (h *UserHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	u := requireUser(w, r)
	if u == nil {
		return
	}

	var req updatePreferencesRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	prefs := model.Preferences{
		Theme:         model.Theme(req.Theme),
		Notifications: u.Preferences.Notifications,
	}
	if req.Notifications != nil {
		prefs.Notifications = *req.Notifications
	}

	profile, err := h.service.UpdatePreferences(r.Context(), u.ID, prefs)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(profile))
}

// SetPassword はパスワードを設定または変更する。
// PUT /api/users/me/password
func (h *UserHandler) SetPassword(w http.ResponseWriter, r *http.Request) {
	u := requireUser(w, r)
	if u == nil {
		return
	}

	var req setPasswordRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if err := h.service.SetPassword(r.Context(), u.ID, user.PasswordChange{
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	}); err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
