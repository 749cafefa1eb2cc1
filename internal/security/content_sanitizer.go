// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizer は記事本文のHTMLフラグメントをサニタイズし、
// 保存データへのスクリプト混入を防ぐ。
// bluemondayライブラリを使用した許可リストベースのポリシーで、
// 安全なタグと属性のみを通過させる。
package security

import (
	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizer はHTMLコンテンツのサニタイズ機能を提供する。
// 記事の保存前に使用される。
type ContentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerの新しいインスタンスを生成する。
// 初期化時にbluemondayのカスタムポリシーを構築する。
// ポリシーの内容:
//   - 許可タグ: 見出し、段落、リスト、引用、コード、強調、リンク、画像
//   - 禁止タグ: script, iframe, style および全てのon*イベント属性
//   - imgのsrc属性: http/httpsスキームのみ許可
//   - aタグ: rel="noreferrer noopener" を強制付与
func NewContentSanitizer() *ContentSanitizer {
	p := bluemonday.NewPolicy()

	// 本文は管理者自身が書くためフィード取り込みより広い許可リストを使う。
	// script等は許可リストに含めないことで自動的に除去される。
	p.AllowElements(
		"h1", "h2", "h3", "h4",
		"p", "br", "hr",
		"ul", "ol", "li",
		"blockquote", "pre", "code",
		"strong", "em", "del",
		"table", "thead", "tbody", "tr", "th", "td",
	)

	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	p.AllowAttrs("src", "alt").OnElements("img")
	p.AllowAttrs("class").OnElements("pre", "code")
	p.AllowURLSchemes("http", "https")

	return &ContentSanitizer{
		policy: p,
	}
}

// SanitizeHTML はHTMLコンテンツをサニタイズして安全なHTMLを返す。
// 同一入力に対して常に同一出力を返す（冪等）。
func (s *ContentSanitizer) SanitizeHTML(rawHTML string) string {
	return s.policy.Sanitize(rawHTML)
}
