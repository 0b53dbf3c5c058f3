package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSortArticles(t *testing.T) {
	t1 := time.UnixMilli(1700000000000).UTC()
	t2 := t1.Add(24 * time.Hour)

	articles := []Article{
		{Title: "old-1", PublishDate: t1},
		{Title: "new-1", PublishDate: t2},
		{Title: "old-2", PublishDate: t1},
		{Title: "new-2", PublishDate: t2},
		{Title: "old-3", PublishDate: t1},
	}

	SortArticles(articles, nil)
	assert.Equal(t, []string{"new-1", "new-2", "old-1", "old-2", "old-3"}, titles(articles))
}

func TestSortArticles_SameDay(t *testing.T) {
	morning := time.Date(2023, 11, 14, 8, 0, 0, 0, time.UTC)
	evening := time.Date(2023, 11, 14, 20, 0, 0, 0, time.UTC)
	nextDay := time.Date(2023, 11, 15, 1, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		loc  *time.Location
		want []string
	}{
		{name: "utc", loc: time.UTC, want: []string{"next", "morning", "evening"}},
		// 2023-11-15 for evening and next, 2023-11-14 for morning
		{name: "zone ahead", loc: time.FixedZone("UTC+8", 8*3600), want: []string{"evening", "next", "morning"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			articles := []Article{
				{Title: "morning", PublishDate: morning},
				{Title: "evening", PublishDate: evening},
				{Title: "next", PublishDate: nextDay},
			}
			SortArticles(articles, tt.loc)
			assert.Equal(t, tt.want, titles(articles))
		})
	}
}

func TestSortArticles_Empty(t *testing.T) {
	var articles []Article
	SortArticles(articles, time.UTC)
	assert.Empty(t, articles)
}

func TestArticle_Day(t *testing.T) {
	a := Article{PublishDate: time.UnixMilli(1700000000000)}
	assert.Equal(t, "2023-11-14", a.Day(time.UTC))
	assert.Equal(t, "2023-11-15", a.Day(time.FixedZone("UTC+8", 8*3600)))
}

func titles(articles []Article) []string {
	res := make([]string, 0, len(articles))
	for _, a := range articles {
		res = append(res, a.Title)
	}
	return res
}

func newTestBolt(t *testing.T) *Bolt {
	b, err := NewBolt(filepath.Join(t.TempDir(), "pages.db"))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, b.Close()) })
	return b
}

func TestBolt(t *testing.T) {
	ctx := context.Background()
	b := newTestBolt(t)

	at := time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)

	require.NoError(t, b.Record(ctx,
		Page{Name: "index.html", RunID: "run-1", WrittenAt: at},
		Page{Name: "a.html", Slug: "a", RunID: "run-1", WrittenAt: at},
	))

	pages, err := b.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Page{
		{Name: "a.html", Slug: "a", RunID: "run-1", WrittenAt: at},
		{Name: "index.html", RunID: "run-1", WrittenAt: at},
	}, pages)

	// overwrite
	require.NoError(t, b.Record(ctx, Page{Name: "a.html", Slug: "a", RunID: "run-2", WrittenAt: at}))
	pages, err = b.List(ctx)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, "run-2", pages[0].RunID)

	require.NoError(t, b.Forget(ctx, "a.html", "unknown.html"))
	require.NoError(t, b.Forget(ctx))

	pages, err = b.List(ctx)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "index.html", pages[0].Name)
}

func TestBolt_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "pages.db")

	b, err := NewBolt(path)
	require.NoError(t, err)
	require.NoError(t, b.Record(ctx, Page{Name: "x.html", Slug: "x"}))
	require.NoError(t, b.Close())

	b, err = NewBolt(path)
	require.NoError(t, err)
	defer b.Close()

	pages, err := b.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Page{{Name: "x.html", Slug: "x"}}, pages)
}

func TestBolt_Empty(t *testing.T) {
	pages, err := newTestBolt(t).List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pages)
}
