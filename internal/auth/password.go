package auth

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

// 資格情報の入力制約
const (
	MinPasswordLength = 6
	// MaxPasswordBytes はbcryptが扱える入力の上限。
	MaxPasswordBytes = 72
	MaxNameLength    = 50
)

// HashPassword はパスワードをbcryptでハッシュ化する。
// costが0の場合はbcrypt.DefaultCostを使用する。
func HashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword はパスワードがハッシュと一致するかを返す。
// ハッシュが空（パスワード未設定）の場合は常にfalse。
func CheckPassword(hash, password string) (bool, error) {
	if hash == "" {
		return false, nil
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to compare password: %w", err)
	}
	return true, nil
}

// ValidatePassword はパスワードの制約違反メッセージを返す。問題がなければ空文字列。
func ValidatePassword(password string) string {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return fmt.Sprintf("パスワードは%d文字以上で入力してください。", MinPasswordLength)
	}
	if len(password) > MaxPasswordBytes {
		return fmt.Sprintf("パスワードは%dバイト以内で入力してください。", MaxPasswordBytes)
	}
	return ""
}

// ValidateDisplayName はサニタイズ済みの表示名の制約違反メッセージを返す。問題がなければ空文字列。
func ValidateDisplayName(name string) string {
	if name == "" {
		return "名前を入力してください。"
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return fmt.Sprintf("名前は%d文字以内で入力してください。", MaxNameLength)
	}
	return ""
}
