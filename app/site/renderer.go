// Package site renders articles into a static HTML site.
package site

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/Semior001/bitable-publisher/app/logging"
	"github.com/Semior001/bitable-publisher/app/store"
	"github.com/Semior001/bitable-publisher/pkg/logx"
	"github.com/samber/lo"
	"golang.org/x/exp/slog"
)

//go:embed templates/*.html
var defaultTemplates embed.FS

// Names of the templates and of the index page.
const (
	IndexPage       = "index.html"
	ArticleTemplate = "article.html"
)

const excerptLen = 100

// Config defines where to take templates from and where to put pages.
type Config struct {
	TemplateDir string // embedded templates are used if empty
	OutputDir   string
	Location    *time.Location // UTC if nil
}

// Renderer writes the index page and the article pages.
type Renderer struct {
	log *slog.Logger
	cfg Config
	now func() time.Time
}

// NewRenderer makes a new Renderer.
func NewRenderer(lg *slog.Logger, cfg Config) *Renderer {
	if lg == nil {
		lg = slog.New(logx.NoOp())
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Renderer{log: lg, cfg: cfg, now: time.Now}
}

// ArticleView is an article as seen by templates.
type ArticleView struct {
	Title   string
	Slug    string
	Tags    []string
	Date    string
	Content template.HTML
	Excerpt string
	Link    string // empty for articles without a page
}

// IndexView is the data of the index page.
type IndexView struct {
	Articles []ArticleView
}

// Render writes the index page with all articles and a page per article
// with a slug. It returns the pages written, in write order.
func (r *Renderer) Render(ctx context.Context, articles []store.Article) ([]store.Page, error) {
	indexTmpl, articleTmpl, err := r.templates()
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}

	views := make([]ArticleView, 0, len(articles))
	for _, a := range articles {
		v, err := r.view(a)
		if err != nil {
			return nil, fmt.Errorf("prepare article %q: %w", a.RecordID, err)
		}
		views = append(views, v)
	}

	if err = os.MkdirAll(r.cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("make output dir: %w", err)
	}

	runID, _ := logging.RunIDFromContext(ctx)
	page := func(name, slug string) store.Page {
		return store.Page{Name: name, Slug: slug, RunID: runID, WrittenAt: r.now()}
	}

	if err = r.write(indexTmpl, IndexPage, IndexView{Articles: views}); err != nil {
		return nil, err
	}

	pages := []store.Page{page(IndexPage, "")}

	for _, v := range views {
		if v.Slug == "" {
			r.log.DebugCtx(ctx, "article has no slug, page skipped", slog.String("title", v.Title))
			continue
		}

		if !safeSlug(v.Slug) {
			r.log.WarnCtx(ctx, "article slug is not a valid file name, page skipped",
				slog.String("slug", v.Slug), slog.String("title", v.Title))
			continue
		}

		name := v.Slug + ".html"
		if err = r.write(articleTmpl, name, v); err != nil {
			return nil, err
		}

		pages = append(pages, page(name, v.Slug))
	}

	r.log.InfoCtx(ctx, "site rendered",
		slog.Int("articles", len(articles)),
		slog.Int("pages", len(pages)),
		slog.String("dir", r.cfg.OutputDir))

	return pages, nil
}

func (r *Renderer) templates() (index, article *template.Template, err error) {
	var fsys fs.FS = os.DirFS(r.cfg.TemplateDir)
	if r.cfg.TemplateDir == "" {
		if fsys, err = fs.Sub(defaultTemplates, "templates"); err != nil {
			return nil, nil, fmt.Errorf("open embedded templates: %w", err)
		}
	}

	if index, err = template.ParseFS(fsys, IndexPage); err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", IndexPage, err)
	}

	if article, err = template.ParseFS(fsys, ArticleTemplate); err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", ArticleTemplate, err)
	}

	return index, article, nil
}

func (r *Renderer) view(a store.Article) (ArticleView, error) {
	exc, err := excerpt(a.Content)
	if err != nil {
		return ArticleView{}, fmt.Errorf("make excerpt: %w", err)
	}

	v := ArticleView{
		Title:   a.Title,
		Slug:    a.Slug,
		Tags:    lo.Filter(a.Tags, func(s string, _ int) bool { return s != "" }), // empty labels aren't shown
		Date:    a.Day(r.cfg.Location),
		Content: template.HTML(a.Content),
		Excerpt: exc,
	}

	if v.Slug != "" && safeSlug(v.Slug) {
		v.Link = url.PathEscape(v.Slug) + ".html"
	}

	return v, nil
}

// write renders the page in memory first, so that a template error
// doesn't leave a truncated file behind.
func (r *Renderer) write(tmpl *template.Template, name string, data any) error {
	buf := &bytes.Buffer{}
	if err := tmpl.Execute(buf, data); err != nil {
		return fmt.Errorf("execute template for %s: %w", name, err)
	}

	if err := os.WriteFile(filepath.Join(r.cfg.OutputDir, name), buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}

	return nil
}

// excerpt returns the beginning of the content text with markup stripped.
func excerpt(content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	text := strings.Join(strings.Fields(doc.Text()), " ")

	runes := []rune(text)
	if len(runes) <= excerptLen {
		return text, nil
	}

	return string(runes[:excerptLen]) + "...", nil
}

// safeSlug reports whether the slug can be used as a file name
// inside the output directory.
func safeSlug(slug string) bool {
	if slug == "." || slug == ".." {
		return false
	}
	return !strings.ContainsAny(slug, `/\`) && !strings.ContainsRune(slug, 0)
}
