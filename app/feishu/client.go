// Package feishu contains a client to retrieve published articles
// from a Feishu (Lark) bitable.
package feishu

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Semior001/bitable-publisher/app/store"
	"github.com/Semior001/bitable-publisher/pkg/logx"
	"github.com/go-pkgz/requester"
	"github.com/go-pkgz/requester/middleware"
	"golang.org/x/exp/slog"
)

// DefaultBaseURL is the base URL of the Feishu open platform API.
const DefaultBaseURL = "https://open.feishu.cn/open-apis"

// ErrNoToken is returned when the auth response has no token.
var ErrNoToken = errors.New("no tenant_access_token in response")

// ErrNoData is returned when the records response has no data object.
var ErrNoData = errors.New("no data in response")

// APIError is a non-zero code reported by the API in a response body.
type APIError struct {
	Code int
	Msg  string
}

// Error returns the code and the message of the API error.
func (e *APIError) Error() string { return fmt.Sprintf("api error %d: %s", e.Code, e.Msg) }

// Config defines the application credentials and the table to read.
type Config struct {
	BaseURL   string
	AppID     string
	AppSecret string
	AppToken  string // bitable app token, identifies the data source
	TableID   string

	PublishedValue string // value of is_published for published records
	PageSize       int
	Location       *time.Location // articles of the same day in it keep the table order, UTC if nil
}

// Client requests the bitable open API.
type Client struct {
	log *slog.Logger
	rq  *requester.Requester
	cfg Config
}

// NewClient makes a new Client.
func NewClient(lg *slog.Logger, rq *requester.Requester, cfg Config) *Client {
	if lg == nil {
		lg = slog.New(logx.NoOp())
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		log: lg,
		rq:  rq.With(middleware.JSON),
		cfg: cfg,
	}
}

// TenantToken exchanges the application credentials for a tenant access token.
func (c *Client) TenantToken(ctx context.Context) (string, error) {
	body, err := json.Marshal(struct {
		AppID     string `json:"app_id"`
		AppSecret string `json:"app_secret"`
	}{AppID: c.cfg.AppID, AppSecret: c.cfg.AppSecret})
	if err != nil {
		return "", fmt.Errorf("marshal credentials: %w", err)
	}

	u := c.cfg.BaseURL + "/auth/v3/tenant_access_token/internal"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	var resp struct {
		Code              int    `json:"code"`
		Msg               string `json:"msg"`
		TenantAccessToken string `json:"tenant_access_token"`
		Expire            int    `json:"expire"`
	}

	if err = c.do(ctx, c.rq, req, &resp); err != nil {
		return "", err
	}

	if resp.Code != 0 {
		return "", &APIError{Code: resp.Code, Msg: resp.Msg}
	}

	if resp.TenantAccessToken == "" {
		return "", ErrNoToken
	}

	c.log.DebugCtx(ctx, "tenant token received", slog.Int("expire_sec", resp.Expire))

	return resp.TenantAccessToken, nil
}

// ListPublished returns published articles from the first page of the table,
// newest first.
func (c *Client) ListPublished(ctx context.Context, token string) ([]store.Article, error) {
	q := url.Values{}
	q.Set("filter", fmt.Sprintf(`CurrentValue.[%s]="%s"`, FieldPublished, c.cfg.PublishedValue))
	if c.cfg.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(c.cfg.PageSize))
	}

	u := fmt.Sprintf("%s/bitable/v1/apps/%s/tables/%s/records?%s",
		c.cfg.BaseURL, url.PathEscape(c.cfg.AppToken), url.PathEscape(c.cfg.TableID), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	var resp struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
		Data *struct {
			HasMore   bool     `json:"has_more"`
			PageToken string   `json:"page_token"`
			Total     int      `json:"total"`
			Items     []Record `json:"items"`
		} `json:"data"`
	}

	rq := c.rq.With(middleware.Header("Authorization", "Bearer "+token))
	if err = c.do(ctx, rq, req, &resp); err != nil {
		return nil, err
	}

	if resp.Code != 0 {
		return nil, &APIError{Code: resp.Code, Msg: resp.Msg}
	}

	if resp.Data == nil {
		return nil, ErrNoData
	}

	if resp.Data.HasMore {
		c.log.WarnCtx(ctx, "table has more published records than fit in one page, the rest is skipped",
			slog.Int("total", resp.Data.Total),
			slog.Int("received", len(resp.Data.Items)))
	}

	articles := make([]store.Article, 0, len(resp.Data.Items))
	for _, rec := range resp.Data.Items {
		article, err := ParseRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("parse record: %w", err)
		}
		articles = append(articles, article)
	}

	store.SortArticles(articles, c.cfg.Location)

	c.log.DebugCtx(ctx, "articles fetched", slog.Int("count", len(articles)))

	return articles, nil
}

func (c *Client) do(ctx context.Context, rq *requester.Requester, req *http.Request, dst any) error {
	resp, err := rq.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.log.WarnCtx(ctx, "failed to close response body", slog.Any("err", err))
		}
	}()

	ok := resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices
	if !ok {
		return fmt.Errorf("bad status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if err = json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}

	return nil
}
