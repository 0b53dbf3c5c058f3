// Package store contains entities of the publisher and the storage for
// the pages it has written.
package store

import (
	"context"
	"sort"
	"time"
)

// Manifest keeps track of the pages written by the publisher.
type Manifest interface {
	Record(ctx context.Context, pages ...Page) error
	Forget(ctx context.Context, names ...string) error
	List(ctx context.Context) ([]Page, error)
}

// Article is a published article, rebuilt from the data source on every run.
type Article struct {
	RecordID    string    `json:"record_id"`
	Title       string    `json:"title"`
	Slug        string    `json:"slug"`
	Content     string    `json:"content"`
	PublishDate time.Time `json:"publish_date"`
	Tags        []string  `json:"tags"`
}

// Page is a file written to the output directory.
type Page struct {
	Name      string    `json:"name"`
	Slug      string    `json:"slug,omitempty"`
	RunID     string    `json:"run_id"`
	WrittenAt time.Time `json:"written_at"`
}

// SortArticles orders articles by publish day in the given location,
// newest first. Articles published on the same day keep their relative order.
// A nil location means UTC.
func SortArticles(articles []Article, loc *time.Location) {
	if loc == nil {
		loc = time.UTC
	}

	days := make([]int, len(articles))
	for i, a := range articles {
		y, m, d := a.PublishDate.In(loc).Date()
		days[i] = y*10000 + int(m)*100 + d
	}

	sort.Stable(byDayDesc{articles: articles, days: days})
}

// Day returns the publish date of the article as YYYY-MM-DD in the given location.
func (a Article) Day(loc *time.Location) string {
	return a.PublishDate.In(loc).Format(DateLayout)
}

// DateLayout is the layout of publish dates shown to readers.
const DateLayout = "2006-01-02"

type byDayDesc struct {
	articles []Article
	days     []int // yyyymmdd
}

func (s byDayDesc) Len() int           { return len(s.articles) }
func (s byDayDesc) Less(i, j int) bool { return s.days[i] > s.days[j] }
func (s byDayDesc) Swap(i, j int) {
	s.articles[i], s.articles[j] = s.articles[j], s.articles[i]
	s.days[i], s.days[j] = s.days[j], s.days[i]
}
