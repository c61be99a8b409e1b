package security

import (
	"errors"
	"net/mail"
	"strings"

	"golang.org/x/net/idna"
)

// ErrInvalidEmail はメールアドレスの形式が不正な場合に返す。
var ErrInvalidEmail = errors.New("invalid email address")

// maxEmailLength はRFC 5321に基づくメールアドレスの最大長。
const maxEmailLength = 254

// NormalizeEmail はメールアドレスを検証し、比較・保存用の正規形に変換する。
// 前後の空白を除去し、ローカル部とドメインを小文字化し、
// 国際化ドメインはPunycode（ASCII）表記に変換する。
// "Name <addr>" 形式の入力は受け付けない。
func NormalizeEmail(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || len(trimmed) > maxEmailLength {
		return "", ErrInvalidEmail
	}

	addr, err := mail.ParseAddress(trimmed)
	if err != nil || addr.Address != trimmed || addr.Name != "" {
		return "", ErrInvalidEmail
	}

	at := strings.LastIndex(trimmed, "@")
	local, domain := trimmed[:at], trimmed[at+1:]
	if local == "" || domain == "" || !strings.Contains(domain, ".") {
		return "", ErrInvalidEmail
	}

	asciiDomain, err := idna.Lookup.ToASCII(domain)
	if err != nil {
		return "", ErrInvalidEmail
	}

	normalized := strings.ToLower(local) + "@" + strings.ToLower(asciiDomain)
	if len(normalized) > maxEmailLength {
		return "", ErrInvalidEmail
	}
	return normalized, nil
}
