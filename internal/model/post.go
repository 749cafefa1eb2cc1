// Package model はドメインモデルを定義する。
package model

import "time"

// BlogPost はブログ記事を表す。サイト唯一の永続ビジネスエンティティ。
type BlogPost struct {
	ID        string
	Title     string
	Slug      string // URL安全な識別子。[a-z0-9-]+ かつテーブル全体で一意
	Excerpt   string // 300文字以内の要約
	Content   string // 本文（Markdown または HTMLフラグメント）
	ImageURL  string // アイキャッチ画像の絶対URL（任意）
	Published bool   // false = 下書き
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PostStats は記事コレクションの集計値を表す。
// 変更操作のたびに最新のコレクションを走査して再計算される。
// 変更前に計算した値を使い回してはならない。
type PostStats struct {
	Total     int `json:"total"`
	Published int `json:"published"`
	Drafts    int `json:"drafts"`
}

// ComputeStats は記事コレクションを走査して集計値を導出する。
func ComputeStats(posts []*BlogPost) PostStats {
	stats := PostStats{Total: len(posts)}
	for _, p := range posts {
		if p.Published {
			stats.Published++
		} else {
			stats.Drafts++
		}
	}
	return stats
}

// PostFields は記事の作成・更新リクエストに含まれる入力フィールドを表す。
type PostFields struct {
	Title     string
	Slug      string // 空の場合はTitleから導出される
	Excerpt   string // 空の場合はContentから導出される
	Content   string
	ImageURL  string
	Published bool
}

// ContactMessage は問い合わせフォームから送信されたメッセージを表す。
type ContactMessage struct {
	ID        string
	Name      string
	Email     string
	Message   string
	CreatedAt time.Time
}
