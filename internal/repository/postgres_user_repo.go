package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/taskflow/internal/model"
)

// usersEmailIndex はメールアドレスの一意インデックス名。
const usersEmailIndex = "idx_users_email"

const userColumns = `id, email, password_hash, name, avatar_url, email_verified,
	last_login_at, theme, notifications, created_at, updated_at`

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`,
		email,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return user, nil
}

// Create はローカル認証ユーザーを作成する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	return insertUser(ctx, r.db, user)
}

// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
func (r *PostgresUserRepo) CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertUser(ctx, tx, user); err != nil {
		return err
	}

	if err := insertIdentity(ctx, tx, identity); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// UpdateLastLogin は最終ログイン日時を更新する。
func (r *PostgresUserRepo) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.execUpdate(ctx, "last login",
		`UPDATE users SET last_login_at = $2 WHERE id = $1`,
		id, at,
	)
}

// UpdateProfile は表示名・アバターURL・メール確認状態を更新する。
func (r *PostgresUserRepo) UpdateProfile(ctx context.Context, user *model.User) error {
	return r.execUpdate(ctx, "profile",
		`UPDATE users SET name = $2, avatar_url = $3, email_verified = $4, updated_at = $5 WHERE id = $1`,
		user.ID, user.Name, nullString(user.AvatarURL), user.EmailVerified, user.UpdatedAt,
	)
}

// UpdatePreferences はテーマと通知設定を更新する。
func (r *PostgresUserRepo) UpdatePreferences(ctx context.Context, id string, prefs model.Preferences) error {
	return r.execUpdate(ctx, "preferences",
		`UPDATE users SET theme = $2, notifications = $3, updated_at = now() WHERE id = $1`,
		id, string(prefs.Theme), prefs.Notifications,
	)
}

// UpdatePassword はパスワードハッシュを更新する。
func (r *PostgresUserRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return r.execUpdate(ctx, "password",
		`UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`,
		id, passwordHash,
	)
}

func (r *PostgresUserRepo) execUpdate(ctx context.Context, what, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update user %s: %w", what, err)
	}
	return requireAffected(result)
}

// execer は*sql.DBと*sql.Txの共通部分。
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertUser(ctx context.Context, db execer, user *model.User) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, name, avatar_url, email_verified,
		                    last_login_at, theme, notifications, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		user.ID, user.Email, nullString(user.PasswordHash), user.Name, nullString(user.AvatarURL),
		user.EmailVerified, user.LastLoginAt, string(user.Preferences.Theme), user.Preferences.Notifications,
		user.CreatedAt, user.UpdatedAt,
	)
	if isUniqueViolation(err, usersEmailIndex) {
		return ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// scanUser は1行分のユーザーを読み取る。行が無い場合はnil, nilを返す。
func scanUser(row *sql.Row) (*model.User, error) {
	var (
		user         model.User
		passwordHash sql.NullString
		avatarURL    sql.NullString
		lastLogin    sql.NullTime
		theme        string
	)
	err := row.Scan(
		&user.ID, &user.Email, &passwordHash, &user.Name, &avatarURL, &user.EmailVerified,
		&lastLogin, &theme, &user.Preferences.Notifications, &user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	user.PasswordHash = passwordHash.String
	user.AvatarURL = avatarURL.String
	user.Preferences.Theme = model.Theme(theme)
	if lastLogin.Valid {
		t := lastLogin.Time
		user.LastLoginAt = &t
	}
	return &user, nil
}

// nullString は空文字列をSQLのNULLとして扱う。
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
