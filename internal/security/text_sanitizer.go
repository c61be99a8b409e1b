// Package security はユーザー入力の無害化と正規化を提供する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// MarkupNotAllowedMessage はマークアップを含む入力に対する検証メッセージ。
const MarkupNotAllowedMessage = "HTMLタグは使用できません。"

// TextSanitizer はプレーンテキストとして保存する入力にマークアップが含まれないか検査する。
// タスクのタイトル・説明やユーザーの表示名の保存前に使用する。
type TextSanitizer interface {
	// Clean は前後の空白を取り除いた入力をそのまま返す。
	// タグとして解釈される部分を含む場合はokがfalseになる。
	// 入力は書き換えないため、同じ値を何度渡しても結果は変わらない。
	Clean(raw string) (cleaned string, ok bool)
}

// textSanitizer はTextSanitizerの実装。
// bluemondayのポリシーはスレッドセーフなので1つを共有する。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はbluemondayのStrictPolicyを検出器として使うTextSanitizerを生成する。
func NewTextSanitizer() TextSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

// Clean はStrictPolicyを通しても文字列としての内容が変わらない入力のみ受け付ける。
func (s *textSanitizer) Clean(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", true
	}
	// StrictPolicyはテキスト部分を再エスケープし改行も正規化するため、両辺を揃えて比較する
	if plainText(s.policy.Sanitize(trimmed)) != plainText(trimmed) {
		return trimmed, false
	}
	return trimmed, true
}

var newlineNormalizer = strings.NewReplacer("\r\n", "\n", "\r", "\n")

func plainText(s string) string {
	return newlineNormalizer.Replace(html.UnescapeString(s))
}
