package handler

import (
	"encoding/xml"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/massargual/portfolio-api/internal/model"
)

// feedEntryLimit はAtomフィードに載せる最新記事の件数。
const feedEntryLimit = 20

// atomFeed はAtom 1.0のフィードルート要素。
type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Xmlns   string      `xml:"xmlns,attr"`
	Title   string      `xml:"title"`
	ID      string      `xml:"id"`
	Updated string      `xml:"updated"`
	Links   []atomLink  `xml:"link"`
	Author  atomAuthor  `xml:"author"`
	Entries []atomEntry `xml:"entry"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr,omitempty"`
	Type string `xml:"type,attr,omitempty"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

type atomEntry struct {
	Title   string   `xml:"title"`
	ID      string   `xml:"id"`
	Link    atomLink `xml:"link"`
	Updated string   `xml:"updated"`
	Summary string   `xml:"summary,omitempty"`
}

// Feed は公開済み記事のAtomフィードを返す。
// GET /api/feed
func (h *PublicHandler) Feed(w http.ResponseWriter, r *http.Request) {
	posts, _, err := h.service.ListPublished(r.Context(), 1, feedEntryLimit)
	if err != nil {
		slog.Error("feed generation degraded to empty",
			slog.String("error", err.Error()),
		)
		posts = nil
	}

	feed := h.buildFeed(posts)

	w.Header().Set("Content-Type", "application/atom+xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(xml.Header))
	if err := xml.NewEncoder(w).Encode(feed); err != nil {
		slog.Error("failed to encode feed", slog.String("error", err.Error()))
	}
}

// buildFeed は記事スライスからAtomフィードを組み立てる。
func (h *PublicHandler) buildFeed(posts []*model.BlogPost) atomFeed {
	base := strings.TrimSuffix(h.config.BaseURL, "/")

	updated := time.Time{}
	entries := make([]atomEntry, 0, len(posts))
	for _, p := range posts {
		if p.UpdatedAt.After(updated) {
			updated = p.UpdatedAt
		}
		link := base + "/blog/" + p.Slug
		entries = append(entries, atomEntry{
			Title:   p.Title,
			ID:      link,
			Link:    atomLink{Href: link, Rel: "alternate"},
			Updated: p.UpdatedAt.UTC().Format(time.RFC3339),
			Summary: p.Excerpt,
		})
	}
	if updated.IsZero() {
		updated = time.Now()
	}

	return atomFeed{
		Xmlns:   "http://www.w3.org/2005/Atom",
		Title:   h.config.SiteTitle,
		ID:      base + "/",
		Updated: updated.UTC().Format(time.RFC3339),
		Links: []atomLink{
			{Href: base + "/api/feed", Rel: "self", Type: "application/atom+xml"},
			{Href: base + "/", Rel: "alternate"},
		},
		Author:  atomAuthor{Name: h.config.SiteTitle},
		Entries: entries,
	}
}
