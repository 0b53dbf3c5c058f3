// Package cmd contains commands for the application.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Semior001/bitable-publisher/app/feishu"
	"github.com/Semior001/bitable-publisher/app/logging"
	"github.com/Semior001/bitable-publisher/app/notify"
	"github.com/Semior001/bitable-publisher/app/site"
	"github.com/Semior001/bitable-publisher/app/store"
	"github.com/Semior001/bitable-publisher/pkg/logx"
	"github.com/go-pkgz/requester"
	"github.com/google/uuid"
	"golang.org/x/exp/slog"
	"golang.org/x/sync/errgroup"
)

// Publish is a command to fetch published articles and render the site.
type Publish struct {
	Feishu struct {
		BaseURL        string        `long:"base-url" env:"BASE_URL" default:"https://open.feishu.cn/open-apis" description:"open platform API base URL"`
		AppID          string        `long:"app-id" env:"APP_ID" description:"application id"`
		AppSecret      string        `long:"app-secret" env:"APP_SECRET" description:"application secret"`
		AppToken       string        `long:"app-token" env:"APP_TOKEN" description:"bitable app token"`
		TableID        string        `long:"table-id" env:"TABLE_ID" description:"articles table id"`
		PublishedValue string        `long:"published-value" env:"PUBLISHED_VALUE" default:"是" description:"value of is_published for published articles"`
		PageSize       int           `long:"page-size" env:"PAGE_SIZE" default:"500" description:"max records to fetch"`
		Timeout        time.Duration `long:"timeout" env:"TIMEOUT" default:"0s" description:"timeout for API calls, 0 for none"`
	} `group:"feishu" namespace:"feishu" env-namespace:"FEISHU"`

	Site struct {
		Templates string `long:"templates" env:"TEMPLATES" description:"dir with index.html and article.html, embedded templates if empty"`
		Output    string `long:"output" env:"OUTPUT" default:"public" description:"output dir"`
		Timezone  string `long:"timezone" env:"TIMEZONE" default:"UTC" description:"time zone of publish dates"`
		Manifest  string `long:"manifest" env:"MANIFEST" description:"bolt file to record written pages"`
		Prune     bool   `long:"prune" env:"PRUNE" description:"remove recorded pages that weren't written in this run"`
	} `group:"site" namespace:"site" env-namespace:"SITE"`

	Telegram struct {
		Token   string   `long:"token" env:"TOKEN" description:"telegram bot token"`
		ChatIDs []string `long:"chat-ids" env:"CHAT_IDS" env-delim:"," description:"chats to notify"`
	} `group:"telegram" namespace:"telegram" env-namespace:"TELEGRAM"`

	notifier notifier
}

type notifier interface {
	Notify(ctx context.Context, text string) error
}

// report is a summary of a successful run.
type report struct {
	Articles int
	Pages    int
	Removed  int
}

// Execute runs the command.
func (p Publish) Execute(_ []string) error {
	lg := slog.Default()

	if p.notifier == nil && p.Telegram.Token != "" && len(p.Telegram.ChatIDs) > 0 {
		tg, err := notify.NewTelegram(lg.With(slog.String("prefix", "telegram")), p.Telegram.Token, p.Telegram.ChatIDs)
		if err != nil {
			return fmt.Errorf("make telegram notifier: %w", err)
		}
		p.notifier = tg
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	ctx = logging.ContextWithRunID(ctx, uuid.New().String())

	var rep report

	ewg, ctx := errgroup.WithContext(ctx)
	ewg.Go(func() error {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sig)

		select {
		case sig := <-sig:
			lg.WarnCtx(ctx, "caught signal, stopping", slog.String("signal", sig.String()))
			return fmt.Errorf("interrupted by %s", sig)
		case <-ctx.Done():
			return nil
		}
	})
	ewg.Go(func() (err error) {
		defer stop()
		rep, err = p.publish(ctx, lg)
		return err
	})

	err := ewg.Wait()

	// the run context is done here, notifications get their own
	nctx := logging.ContextWithRunID(context.Background(), logRunID(ctx))

	if err != nil {
		p.notify(nctx, lg, fmt.Sprintf("site publishing failed: %v", err))
		return err
	}

	msg := fmt.Sprintf("site published: %d articles, %d pages", rep.Articles, rep.Pages)
	if rep.Removed > 0 {
		msg += fmt.Sprintf(", %d stale pages removed", rep.Removed)
	}
	p.notify(nctx, lg, msg)

	return nil
}

func (p Publish) publish(ctx context.Context, lg *slog.Logger) (report, error) {
	loc, err := time.LoadLocation(p.Site.Timezone)
	if err != nil {
		return report{}, fmt.Errorf("load time zone: %w", err)
	}

	if p.Site.Prune && p.Site.Manifest == "" {
		return report{}, errors.New("pruning requires a manifest path")
	}

	lg.InfoCtx(ctx, "publishing started",
		slog.String("app_token", p.Feishu.AppToken),
		slog.String("table_id", p.Feishu.TableID))

	rq := requester.New(
		http.Client{Timeout: p.Feishu.Timeout},
		logx.LoggingRoundTripper(lg.With(slog.String("prefix", "http")), logx.RoundTripperOpts{
			Level:         slog.LevelDebug,
			SecretHeaders: []string{"Authorization"},
			SecretFields:  []string{"app_secret", "tenant_access_token"},
		}),
	)

	client := feishu.NewClient(lg.With(slog.String("prefix", "feishu")), rq, feishu.Config{
		BaseURL:        p.Feishu.BaseURL,
		AppID:          p.Feishu.AppID,
		AppSecret:      p.Feishu.AppSecret,
		AppToken:       p.Feishu.AppToken,
		TableID:        p.Feishu.TableID,
		PublishedValue: p.Feishu.PublishedValue,
		PageSize:       p.Feishu.PageSize,
		Location:       loc,
	})

	token, err := client.TenantToken(ctx)
	if err != nil {
		return report{}, fmt.Errorf("token retrieval failed: %w", err)
	}

	articles, err := client.ListPublished(ctx, token)
	if err != nil {
		return report{}, fmt.Errorf("article fetch failed: %w", err)
	}

	renderer := site.NewRenderer(lg.With(slog.String("prefix", "site")), site.Config{
		TemplateDir: p.Site.Templates,
		OutputDir:   p.Site.Output,
		Location:    loc,
	})

	pages, err := renderer.Render(ctx, articles)
	if err != nil {
		return report{}, fmt.Errorf("site render failed: %w", err)
	}

	rep := report{Articles: len(articles), Pages: len(pages)}

	if p.Site.Manifest == "" {
		return rep, nil
	}

	manifest, err := store.NewBolt(p.Site.Manifest)
	if err != nil {
		return report{}, fmt.Errorf("open manifest: %w", err)
	}

	defer func() {
		if err := manifest.Close(); err != nil {
			lg.ErrorCtx(ctx, "close manifest", slog.Any("err", err))
		}
	}()

	removed, err := site.Reconcile(ctx, manifest, p.Site.Output, pages, p.Site.Prune)
	if err != nil {
		return report{}, fmt.Errorf("reconcile manifest: %w", err)
	}

	for _, name := range removed {
		lg.InfoCtx(ctx, "stale page removed", slog.String("name", name))
	}
	rep.Removed = len(removed)

	return rep, nil
}

func (p Publish) notify(ctx context.Context, lg *slog.Logger, text string) {
	if p.notifier == nil {
		return
	}

	if err := p.notifier.Notify(ctx, text); err != nil {
		lg.WarnCtx(ctx, "failed to send notification", slog.Any("err", err))
	}
}

func logRunID(ctx context.Context) string {
	id, _ := logging.RunIDFromContext(ctx)
	return id
}
