package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/taskflow/internal/middleware"
	"github.com/hitoshi/taskflow/internal/model"
	"github.com/hitoshi/taskflow/internal/user"
)

// --- モック定義 ---

type mockUserService struct {
	getProfileFn        func(ctx context.Context, userID string) (*model.User, error)
	updateProfileFn     func(ctx context.Context, userID string, update user.ProfileUpdate) (*model.User, error)
	updatePreferencesFn func(ctx context.Context, userID string, prefs model.Preferences) (*model.User, error)
	setPasswordFn       func(ctx context.Context, userID string, change user.PasswordChange) error
}

var _ UserServiceInterface = (*mockUserService)(nil)

func (m *mockUserService) GetProfile(ctx context.Context, userID string) (*model.User, error) {
	if m.getProfileFn != nil {
		return m.getProfileFn(ctx, userID)
	}
	return testUser(), nil
}

func (m *mockUserService) UpdateProfile(ctx context.Context, userID string, update user.ProfileUpdate) (*model.User, error) {
	if m.updateProfileFn != nil {
		return m.updateProfileFn(ctx, userID, update)
	}
	return testUser(), nil
}

func (m *mockUserService) UpdatePreferences(ctx context.Context, userID string, prefs model.Preferences) (*model.User, error) {
	if m.updatePreferencesFn != nil {
		return m.updatePreferencesFn(ctx, userID, prefs)
	}
	return testUser(), nil
}

func (m *mockUserService) SetPassword(ctx context.Context, userID string, change user.PasswordChange) error {
	if m.setPasswordFn != nil {
		return m.setPasswordFn(ctx, userID, change)
	}
	return nil
}

// authedRequest はテストユーザーをコンテキストに注入したリクエストを生成する。
func authedRequest(method, target, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	return req.WithContext(middleware.ContextWithUser(req.Context(), testUser()))
}

// --- テスト ---

func TestUserHandler_GetMe(t *testing.T) {
	var gotID string
	svc := &mockUserService{
		getProfileFn: func(ctx context.Context, userID string) (*model.User, error) {
			gotID = userID
			return testUser(), nil
		},
	}
	h := NewUserHandler(svc)

	w := httptest.NewRecorder()
	h.GetMe(w, authedRequest(http.MethodGet, "/api/users/me", ""))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotID != testUser().ID {
		t.Errorf("userID = %q, want %q", gotID, testUser().ID)
	}
	var got userResponse
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if got.Preferences.Theme != "auto" || !got.Preferences.Notifications {
		t.Errorf("preferences = %+v, want auto/true", got.Preferences)
	}
}

func TestUserHandler_GetMe_Unauthenticated(t *testing.T) {
	h := NewUserHandler(&mockUserService{})

	w := httptest.NewRecorder()
	h.GetMe(w, httptest.NewRequest(http.MethodGet, "/api/users/me", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestUserHandler_UpdateMe_PassesOnlyGivenFields(t *testing.T) {
	var got user.ProfileUpdate
	svc := &mockUserService{
		updateProfileFn: func(ctx context.Context, userID string, update user.ProfileUpdate) (*model.User, error) {
			got = update
			u := testUser()
			u.Name = *update.Name
			return u, nil
		},
	}
	h := NewUserHandler(svc)

	w := httptest.NewRecorder()
	h.UpdateMe(w, authedRequest(http.MethodPatch, "/api/users/me", `{"name":"Alicia"}`))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got.Name == nil || *got.Name != "Alicia" {
		t.Errorf("Name = %v, want Alicia", got.Name)
	}
	if got.AvatarURL != nil {
		t.Errorf("AvatarURL = %v, want nil", *got.AvatarURL)
	}
}

func TestUserHandler_UpdateMe_ValidationError(t *testing.T) {
	svc := &mockUserService{
		updateProfileFn: func(ctx context.Context, userID string, update user.ProfileUpdate) (*model.User, error) {
			return nil, model.NewValidationError(map[string]string{"avatar_url": "invalid"})
		},
	}
	h := NewUserHandler(svc)

	w := httptest.NewRecorder()
	h.UpdateMe(w, authedRequest(http.MethodPatch, "/api/users/me", `{"avatar_url":"ftp://x"}`))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body.Fields["avatar_url"] == "" {
		t.Errorf("fields = %v, want avatar_url entry", body.Fields)
	}
}

func TestUserHandler_UpdatePreferences(t *testing.T) {
	tests := []struct {
		name              string
		body              string
		wantTheme         model.Theme
		wantNotifications bool
	}{
		{name: "both fields", body: `{"theme":"dark","notifications":false}`, wantTheme: model.ThemeDark, wantNotifications: false},
		{name: "notifications omitted keeps current", body: `{"theme":"light"}`, wantTheme: model.ThemeLight, wantNotifications: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got model.Preferences
			svc := &mockUserService{
				updatePreferencesFn: func(ctx context.Context, userID string, prefs model.Preferences) (*model.User, error) {
					got = prefs
					u := testUser()
					u.Preferences = prefs
					return u, nil
				},
			}
			h := NewUserHandler(svc)

			w := httptest.NewRecorder()
			h.UpdatePreferences(w, authedRequest(http.MethodPut, "/api/users/me/preferences", tt.body))

			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
			}
			if got.Theme != tt.wantTheme || got.Notifications != tt.wantNotifications {
				t.Errorf("prefs = %+v, want theme=%s notifications=%v", got, tt.wantTheme, tt.wantNotifications)
			}
		})
	}
}

func TestUserHandler_SetPassword(t *testing.T) {
	tests := []struct {
		name       string
		serviceErr error
		wantStatus int
	}{
		{name: "success", wantStatus: http.StatusNoContent},
		{name: "wrong current password", serviceErr: model.NewInvalidCredentialsError(), wantStatus: http.StatusUnauthorized},
		{name: "weak password", serviceErr: model.NewValidationError(map[string]string{"new_password": "short"}), wantStatus: http.StatusBadRequest},
		{name: "repository failure", serviceErr: errors.New("db down"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got user.PasswordChange
			svc := &mockUserService{
				setPasswordFn: func(ctx context.Context, userID string, change user.PasswordChange) error {
					got = change
					return tt.serviceErr
				},
			}
			h := NewUserHandler(svc)

			w := httptest.NewRecorder()
			h.SetPassword(w, authedRequest(http.MethodPut, "/api/users/me/password",
				`{"current_password":"old-secret","new_password":"new-secret"}`))

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if got.CurrentPassword != "old-secret" || got.NewPassword != "new-secret" {
				t.Errorf("change = %+v", got)
			}
			if tt.wantStatus == http.StatusNoContent && w.Body.Len() != 0 {
				t.Errorf("204 response should have no body, got %q", w.Body.String())
			}
		})
	}
}
