// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/taskflow/internal/model"
)

var (
	// ErrNotFound は更新・削除対象のレコードが存在しない場合に返す。
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateEmail はメールアドレスの一意制約違反を表す。
	ErrDuplicateEmail = errors.New("email already exists")
	// ErrDuplicateIdentity は(provider, provider_user_id)の一意制約違反を表す。
	ErrDuplicateIdentity = errors.New("identity already exists")
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレス（大文字小文字を区別しない）でユーザーを検索する。
	// 見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はローカル認証ユーザーを作成する。
	// メールアドレスが重複する場合はErrDuplicateEmailを返す。
	Create(ctx context.Context, user *model.User) error

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error

	// UpdateLastLogin は最終ログイン日時を更新する。
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error

	// UpdateProfile は表示名・アバターURL・メール確認状態を更新する。
	UpdateProfile(ctx context.Context, user *model.User) error

	// UpdatePreferences はテーマと通知設定を更新する。
	UpdatePreferences(ctx context.Context, id string, prefs model.Preferences) error

	// UpdatePassword はパスワードハッシュを更新する。
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)

	// Create は既存ユーザーにidentityを紐付ける。
	// 組が重複する場合はErrDuplicateIdentityを返す。
	Create(ctx context.Context, identity *model.Identity) error
}

// TaskRepository はタスクデータの永続化インターフェース。
type TaskRepository interface {
	// FindByID は指定IDのタスクを共有先ユーザーIDとともに取得する。
	// 見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Task, error)

	// ListVisible はユーザーが所有または共有されているタスクを条件に従って取得する。
	// 戻り値の2番目はページングを適用する前の総件数。
	ListVisible(ctx context.Context, userID string, q model.TaskQuery) ([]*model.Task, int, error)

	// Create はタスクを作成する。
	Create(ctx context.Context, task *model.Task) error

	// Update はタスクのタイトル・説明・状態・優先度を上書きする。
	// 対象が存在しない場合はErrNotFoundを返す。
	Update(ctx context.Context, task *model.Task) error

	// DeleteByID は指定IDのタスクを削除する。共有情報はCASCADE削除される。
	// 対象が存在しない場合はErrNotFoundを返す。
	DeleteByID(ctx context.Context, id string) error

	// AddShare はタスクの共有先を追加する。既に共有済みの場合は何もしない。
	AddShare(ctx context.Context, taskID, userID string) error

	// RemoveShare はタスクの共有先を削除する。
	// 共有されていない場合はErrNotFoundを返す。
	RemoveShare(ctx context.Context, taskID, userID string) error
}
