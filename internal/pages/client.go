package pages

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"drrm-api/internal/logger"
)

//go:embed fallback/*.txt
var fallbackFS embed.FS

// 内容来源
const (
	FromDatabase = "database"
	FromFallback = "fallback"
	FromMessage  = "message"
)

// Content：前端展示所需的页面标题与正文
type Content struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Source  string `json:"source"`
}

// Client：通过 /api/page 拉取页面，网络失败时回退到内置文本
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), HTTP: &http.Client{Timeout: 5 * time.Second}}
}

// DefaultTitle：未取到数据库内容时显示的标题
func DefaultTitle(typ string) string {
	switch typ {
	case "admin":
		return "Admin Panel"
	case "login":
		return "Login"
	}
	if typ == "" {
		return ""
	}
	return strings.ToUpper(typ[:1]) + typ[1:]
}

// Fetch：按三种情况返回内容
//   - 2xx：数据库标题与正文
//   - 非 2xx：默认标题 + 提示语
//   - 请求失败：默认标题 + fallback/<type>.txt；文件缺失时为失败提示
//
// 返回的 error 仅在 ctx 已取消时非空
func (c *Client) Fetch(ctx context.Context, typ string) (Content, error) {
	out := Content{Title: DefaultTitle(typ)}
	u := c.BaseURL + "/page?type=" + url.QueryEscape(typ)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return out, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		logger.L().Warn("page_fetch_fallback", "type", typ, "err", err)
		return fallback(typ, out), nil
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		out.Content = fmt.Sprintf("Failed to load %s content from database. Using fallback.", typ)
		out.Source = FromMessage
		return out, nil
	}
	var body struct {
		Page struct {
			Title   string `json:"title"`
			Content string `json:"content"`
		} `json:"page"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		logger.L().Warn("page_fetch_decode_error", "type", typ, "err", err)
		return fallback(typ, out), nil
	}
	out.Title = body.Page.Title
	out.Content = body.Page.Content
	out.Source = FromDatabase
	return out, nil
}

func fallback(typ string, out Content) Content {
	b, err := fallbackFS.ReadFile("fallback/" + typ + ".txt")
	if err != nil {
		out.Content = fmt.Sprintf("Failed to load %s content", typ)
		out.Source = FromMessage
		return out
	}
	out.Content = string(b)
	out.Source = FromFallback
	return out
}
