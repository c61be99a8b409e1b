// Package user はユーザープロフィールと設定のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/taskflow/internal/auth"
	"github.com/hitoshi/taskflow/internal/model"
	"github.com/hitoshi/taskflow/internal/repository"
	"github.com/hitoshi/taskflow/internal/security"
)

// maxAvatarURLLength はアバターURLの最大長。
const maxAvatarURLLength = 2048

// ProfileUpdate はプロフィール更新の入力。nilのフィールドは変更しない。
type ProfileUpdate struct {
	Name      *string
	AvatarURL *string
}

// PasswordChange はパスワード設定・変更の入力。
// パスワード未設定のユーザーはCurrentPasswordを省略できる。
type PasswordChange struct {
	CurrentPassword string
	NewPassword     string
}

// Service はユーザープロフィール管理のサービス層。
type Service struct {
	userRepo     repository.UserRepository
	sanitizer    security.TextSanitizer
	passwordCost int
	now          func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// passwordCostが0の場合はbcryptのデフォルトコストを使用する。
func NewService(userRepo repository.UserRepository, sanitizer security.TextSanitizer, passwordCost int) *Service {
	return &Service{
		userRepo:     userRepo,
		sanitizer:    sanitizer,
		passwordCost: passwordCost,
		now:          time.Now,
	}
}

// GetProfile はユーザーのプロフィールを返す。
func (s *Service) GetProfile(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// UpdateProfile は表示名とアバターURLを更新する。
func (s *Service) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (*model.User, error) {
	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	fields := make(map[string]string)
	if update.Name != nil {
		name, ok := s.sanitizer.Clean(*update.Name)
		if !ok {
			fields["name"] = security.MarkupNotAllowedMessage
		} else if msg := auth.ValidateDisplayName(name); msg != "" {
			fields["name"] = msg
		} else {
			user.Name = name
		}
	}
	if update.AvatarURL != nil {
		if msg := validateAvatarURL(*update.AvatarURL); msg != "" {
			fields["avatar_url"] = msg
		} else {
			user.AvatarURL = *update.AvatarURL
		}
	}
	if len(fields) > 0 {
		return nil, model.NewValidationError(fields)
	}

	user.UpdatedAt = s.now()
	if err := s.userRepo.UpdateProfile(ctx, user); err != nil {
		return nil, fmt.Errorf("プロフィールの更新に失敗しました: %w", err)
	}
	return user, nil
}

// UpdatePreferences はテーマと通知設定を更新する。
func (s *Service) UpdatePreferences(ctx context.Context, userID string, prefs model.Preferences) (*model.User, error) {
	if !prefs.Theme.Valid() {
		return nil, model.NewValidationError(map[string]string{
			"theme": "テーマはlight、dark、autoのいずれかを指定してください。",
		})
	}

	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.userRepo.UpdatePreferences(ctx, userID, prefs); err != nil {
		return nil, fmt.Errorf("設定の更新に失敗しました: %w", err)
	}
	user.Preferences = prefs
	return user, nil
}

// SetPassword はパスワードを設定または変更する。
// 既にパスワードを持つユーザーは現在のパスワードが一致しなければINVALID_CREDENTIALSとなる。
func (s *Service) SetPassword(ctx context.Context, userID string, change PasswordChange) error {
	if msg := auth.ValidatePassword(change.NewPassword); msg != "" {
		return model.NewValidationError(map[string]string{"new_password": msg})
	}

	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return err
	}

	if user.HasPassword() {
		ok, err := auth.CheckPassword(user.PasswordHash, change.CurrentPassword)
		if err != nil {
			return fmt.Errorf("パスワードの照合に失敗しました: %w", err)
		}
		if !ok {
			return model.NewInvalidCredentialsError()
		}
	}

	hash, err := auth.HashPassword(change.NewPassword, s.passwordCost)
	if err != nil {
		return err
	}
	if err := s.userRepo.UpdatePassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("パスワードの更新に失敗しました: %w", err)
	}

	slog.Info("パスワードを更新しました",
		slog.String("user_id", userID),
		slog.Bool("first_password", !user.HasPassword()),
	)
	return nil
}

// validateAvatarURL はアバターURLの制約違反メッセージを返す。空文字列はアバター削除として許可する。
func validateAvatarURL(raw string) string {
	if raw == "" {
		return ""
	}
	if len(raw) > maxAvatarURLLength {
		return fmt.Sprintf("アバターURLは%d文字以内で入力してください。", maxAvatarURLLength)
	}
	if err := security.ValidatePublicURL(raw); err != nil {
		return "アバターURLは公開されているhttpまたはhttpsのURLを指定してください。"
	}
	return ""
}
