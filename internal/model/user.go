// Package model はドメインモデルを定義する。
package model

import "time"

// Theme はUIテーマの設定値を表す。
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
	ThemeAuto  Theme = "auto"
)

// Valid はテーマが定義済みの値かどうかを返す。
func (t Theme) Valid() bool {
	switch t {
	case ThemeLight, ThemeDark, ThemeAuto:
		return true
	}
	return false
}

// Preferences はユーザーの表示・通知設定を表す。
type Preferences struct {
	Theme         Theme
	Notifications bool
}

// DefaultPreferences は新規ユーザーに適用する初期設定を返す。
func DefaultPreferences() Preferences {
	return Preferences{Theme: ThemeAuto, Notifications: true}
}

// User はサービス利用ユーザーを表す。
// PasswordHashが空の場合はローカル認証を持たない（外部IdPのみ）。
type User struct {
	ID            string
	Email         string
	PasswordHash  string
	Name          string
	AvatarURL     string
	EmailVerified bool
	LastLoginAt   *time.Time
	Preferences   Preferences
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// HasPassword はローカル認証用のパスワードが設定されているかを返す。
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// Identity は外部IdPとの紐付け情報を表す。
// (Provider, ProviderUserID) の組はグローバルに一意。
type Identity struct {
	ID             string
	UserID         string
	Provider       string
	ProviderUserID string
	CreatedAt      time.Time
}

// ProviderGoogle はGoogle OAuthのプロバイダ名。
const ProviderGoogle = "google"
