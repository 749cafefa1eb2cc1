package post

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// slugPattern は保存可能なスラッグの形式。小文字英数字とハイフンのみ。
var slugPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// stripMarks はNFD分解後の結合文字（ダイアクリティカルマーク）を除去する。
var stripMarks = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// Slugify はタイトルからURL安全なスラッグを導出する。
// アクセント付き文字はベース文字に落とし、英数字以外の連続は
// 1つのハイフンにまとめる。導出できない場合は空文字列を返す。
func Slugify(title string) string {
	s, _, err := transform.String(stripMarks, title)
	if err != nil {
		s = title
	}
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))
	lastHyphen := true // 先頭のハイフンを抑止する
	for _, r := range s {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}

	return strings.Trim(b.String(), "-")
}

// ValidSlug はスラッグが保存可能な形式か判定する。
func ValidSlug(slug string) bool {
	return slugPattern.MatchString(slug)
}
