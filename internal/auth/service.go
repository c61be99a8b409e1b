// Package auth はローカル認証・Google OAuth認証とトークン発行を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/taskflow/internal/model"
	"github.com/hitoshi/taskflow/internal/repository"
	"github.com/hitoshi/taskflow/internal/security"
)

// ErrUnverifiedEmailConflict は未確認メールアドレスのOAuthアカウントが
// 既存ユーザーのメールアドレスと衝突した場合に返す。
var ErrUnverifiedEmailConflict = errors.New("unverified oauth email conflicts with existing user")

// OAuthUserInfo はOAuthプロバイダーから取得したユーザー情報を表す。
type OAuthUserInfo struct {
	ProviderUserID string
	Email          string
	EmailVerified  bool
	Name           string
	AvatarURL      string
	Provider       string
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、ユーザー情報を取得する。
	ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error)
}

// TokenMinter はユーザーIDからベアラートークンを発行する。
type TokenMinter interface {
	Issue(userID string) (string, error)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	// PasswordCost はbcryptのコスト。0の場合はデフォルト。
	PasswordCost int
	// Now は現在時刻を返す。nilの場合はtime.Now。
	Now func() time.Time
}

// AuthResult は認証成功時に返すユーザーとトークン。
type AuthResult struct {
	User  *model.User
	Token string
}

// RegisterInput はローカル認証ユーザー登録の入力。
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	oauth     OAuthProvider
	tokens    TokenMinter
	userRepo  repository.UserRepository
	identRepo repository.IdentityRepository
	sanitizer security.TextSanitizer
	config    ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	oauth OAuthProvider,
	tokens TokenMinter,
	userRepo repository.UserRepository,
	identRepo repository.IdentityRepository,
	sanitizer security.TextSanitizer,
	config ServiceConfig,
) *Service {
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Service{
		oauth:     oauth,
		tokens:    tokens,
		userRepo:  userRepo,
		identRepo: identRepo,
		sanitizer: sanitizer,
		config:    config,
	}
}

// GetLoginURL はOAuth認証URLを生成する。
func (s *Service) GetLoginURL(state string) string {
	return s.oauth.GetLoginURL(state)
}

// Register はローカル認証ユーザーを登録し、トークンを発行する。
// 入力不正はVALIDATION_FAILED、メールアドレス重複はEMAIL_TAKENのAPIErrorを返す。
func (s *Service) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	fields := make(map[string]string)

	name, ok := s.sanitizer.Clean(input.Name)
	if !ok {
		fields["name"] = security.MarkupNotAllowedMessage
	} else if msg := ValidateDisplayName(name); msg != "" {
		fields["name"] = msg
	}
	email, err := security.NormalizeEmail(input.Email)
	if err != nil {
		fields["email"] = "有効なメールアドレスを入力してください。"
	}
	if msg := ValidatePassword(input.Password); msg != "" {
		fields["password"] = msg
	}
	if len(fields) > 0 {
		return nil, model.NewValidationError(fields)
	}

	hash, err := HashPassword(input.Password, s.config.PasswordCost)
	if err != nil {
		return nil, err
	}

	now := s.config.Now()
	user := &model.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		Preferences:  model.DefaultPreferences(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, model.NewEmailTakenError()
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user registered", slog.String("user_id", user.ID))
	return s.completeLogin(ctx, user)
}

// Login はメールアドレスとパスワードで認証し、トークンを発行する。
// 未登録・パスワード不一致・パスワード未設定のいずれもINVALID_CREDENTIALSとなる。
func (s *Service) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	normalized, err := security.NormalizeEmail(email)
	if err != nil {
		return nil, model.NewInvalidCredentialsError()
	}

	user, err := s.userRepo.FindByEmail(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil || !user.HasPassword() {
		return nil, model.NewInvalidCredentialsError()
	}

	ok, err := CheckPassword(user.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, model.NewInvalidCredentialsError()
	}

	return s.completeLogin(ctx, user)
}

// HandleCallback はOAuthコールバックを処理し、トークンを発行する。
// identityが登録済みならそのユーザー、未登録なら確認済みメールアドレスで既存ユーザーに紐付け、
// いずれもなければusersレコードとidentitiesレコードを同時に作成する。
func (s *Service) HandleCallback(ctx context.Context, code string) (*AuthResult, error) {
	// 1. 認可コードをトークンに交換し、ユーザー情報を取得
	userInfo, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	email, err := security.NormalizeEmail(userInfo.Email)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid email from provider", ErrOAuthExchange)
	}

	// 2. identitiesテーブルで既存ユーザーを検索
	user, err := s.findOrCreateOAuthUser(ctx, userInfo, email)
	if err != nil {
		return nil, err
	}

	// 3. プロバイダーの情報で未設定の項目を補完
	if err := s.mergeProviderProfile(ctx, user, userInfo); err != nil {
		return nil, err
	}

	return s.completeLogin(ctx, user)
}

// findOrCreateOAuthUser はOAuthユーザー情報に対応するユーザーを取得または作成する。
func (s *Service) findOrCreateOAuthUser(ctx context.Context, info *OAuthUserInfo, email string) (*model.User, error) {
	identity, err := s.identRepo.FindByProviderAndProviderUserID(ctx, info.Provider, info.ProviderUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}

	if identity != nil {
		user, err := s.userRepo.FindByID(ctx, identity.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to find user: %w", err)
		}
		if user == nil {
			return nil, fmt.Errorf("user %s for identity not found", identity.UserID)
		}
		slog.Info("existing user logged in",
			slog.String("user_id", user.ID),
			slog.String("provider", info.Provider),
		)
		return user, nil
	}

	now := s.config.Now()

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if existing != nil {
		if !info.EmailVerified {
			return nil, ErrUnverifiedEmailConflict
		}
		err := s.identRepo.Create(ctx, &model.Identity{
			ID:             uuid.NewString(),
			UserID:         existing.ID,
			Provider:       info.Provider,
			ProviderUserID: info.ProviderUserID,
			CreatedAt:      now,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to link identity: %w", err)
		}
		slog.Info("identity linked to existing user",
			slog.String("user_id", existing.ID),
			slog.String("provider", info.Provider),
		)
		return existing, nil
	}

	// マークアップを含むプロバイダー名は採用せずメールアドレスから補う
	name, ok := s.sanitizer.Clean(info.Name)
	if !ok {
		name = ""
	}
	name = truncateRunes(name, MaxNameLength)
	if name == "" {
		name = truncateRunes(strings.SplitN(email, "@", 2)[0], MaxNameLength)
	}

	newUser := &model.User{
		ID:            uuid.NewString(),
		Email:         email,
		Name:          name,
		AvatarURL:     info.AvatarURL,
		EmailVerified: info.EmailVerified,
		Preferences:   model.DefaultPreferences(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	newIdentity := &model.Identity{
		ID:             uuid.NewString(),
		UserID:         newUser.ID,
		Provider:       info.Provider,
		ProviderUserID: info.ProviderUserID,
		CreatedAt:      now,
	}
	if err := s.userRepo.CreateWithIdentity(ctx, newUser, newIdentity); err != nil {
		return nil, fmt.Errorf("failed to create user and identity: %w", err)
	}

	slog.Info("new user created",
		slog.String("user_id", newUser.ID),
		slog.String("provider", info.Provider),
	)
	return newUser, nil
}

// mergeProviderProfile はアバター未設定時の補完とメール確認状態の反映を行う。
func (s *Service) mergeProviderProfile(ctx context.Context, user *model.User, info *OAuthUserInfo) error {
	changed := false
	if user.AvatarURL == "" && info.AvatarURL != "" {
		user.AvatarURL = info.AvatarURL
		changed = true
	}
	if info.EmailVerified && !user.EmailVerified {
		user.EmailVerified = true
		changed = true
	}
	if !changed {
		return nil
	}

	user.UpdatedAt = s.config.Now()
	if err := s.userRepo.UpdateProfile(ctx, user); err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	return nil
}

// completeLogin は最終ログイン日時を更新してトークンを発行する。
func (s *Service) completeLogin(ctx context.Context, user *model.User) (*AuthResult, error) {
	at := nextLoginTime(s.config.Now(), user.LastLoginAt)
	if err := s.userRepo.UpdateLastLogin(ctx, user.ID, at); err != nil {
		return nil, fmt.Errorf("failed to update last login: %w", err)
	}
	user.LastLoginAt = &at

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	return &AuthResult{User: user, Token: token}, nil
}

// nextLoginTime は前回のログイン日時より必ず後になるログイン日時を返す。
// PostgreSQLのtimestamptzに合わせてマイクロ秒に切り詰める。
func nextLoginTime(now time.Time, prev *time.Time) time.Time {
	at := now.UTC().Truncate(time.Microsecond)
	if prev != nil {
		floor := prev.UTC().Truncate(time.Microsecond).Add(time.Microsecond)
		if at.Before(floor) {
			at = floor
		}
	}
	return at
}

// truncateRunes は文字列を先頭からn文字に切り詰める。
func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
