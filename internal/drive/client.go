// 包 drive：Google Drive 文件夹图片列表，供全景与普通图库使用
package drive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"drrm-api/internal/logger"
	"drrm-api/internal/metrics"

	"github.com/patrickmn/go-cache"
)

const defaultBaseURL = "https://www.googleapis.com/drive/v3"

// ErrNoAPIKey：未配置 GOOGLE_DRIVE_API_KEY
var ErrNoAPIKey = errors.New("Google Drive API key not configured")

// APIError：Drive 返回非 2xx，Status 原样透传给调用方
type APIError struct {
	Status     int
	StatusText string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("google drive api: %d %s", e.Status, e.StatusText)
}

// File：Drive files.list 中本方案使用的字段
type File struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	MimeType      string `json:"mimeType"`
	ThumbnailLink string `json:"thumbnailLink"`
	WebViewLink   string `json:"webViewLink"`
	CreatedTime   string `json:"createdTime"`
}

// Image：对外返回的图片结构
type Image struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnailUrl"`
	ViewURL      string `json:"viewUrl"`
}

// ImageFromFile：缺少缩略图链接时使用 thumbnail?sz=w500
func ImageFromFile(f File) Image {
	thumb := f.ThumbnailLink
	if thumb == "" {
		thumb = "https://drive.google.com/thumbnail?id=" + f.ID + "&sz=w500"
	}
	return Image{
		ID:           f.ID,
		Name:         f.Name,
		URL:          "https://drive.google.com/uc?export=view&id=" + f.ID,
		ThumbnailURL: thumb,
		ViewURL:      "https://drive.google.com/file/d/" + f.ID + "/view",
	}
}

// Client：带本地缓存的 Drive 列表客户端
// 约束：缓存键为 folderId；失败结果不缓存
type Client struct {
	key     string
	baseURL string
	http    *http.Client
	cache   *cache.Cache
}

type Option func(*Client)

// WithBaseURL：测试中指向 httptest 服务
func WithBaseURL(u string) Option { return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") } }

// WithHTTPClient：替换默认 10s 超时的 http.Client
func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

// WithCacheTTL：ttl<=0 关闭缓存
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) {
		if ttl <= 0 {
			c.cache = nil
			return
		}
		c.cache = cache.New(ttl, 2*ttl)
	}
}

func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		key:     apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		cache:   cache.New(time.Hour, 2*time.Hour),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ListImages：列出文件夹中未删除的图片，按创建时间倒序，最多 100 张
func (c *Client) ListImages(ctx context.Context, folderID string) ([]Image, error) {
	if c.key == "" {
		return nil, ErrNoAPIKey
	}
	if c.cache != nil {
		if v, ok := c.cache.Get(folderID); ok {
			metrics.DriveCacheHitsTotal.Inc()
			return v.([]Image), nil
		}
	}
	q := url.Values{}
	q.Set("q", "'"+folderID+"' in parents and mimeType contains 'image/' and trashed=false")
	q.Set("fields", "files(id, name, mimeType, thumbnailLink, webViewLink, createdTime)")
	q.Set("key", c.key)
	q.Set("pageSize", "100")
	q.Set("orderBy", "createdTime desc")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/files?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	t0 := time.Now()
	metrics.DriveRequestsTotal.Inc()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.DriveFailTotal.Inc()
		logger.L().Error("drive_http_error", "folder", folderID, "err", err)
		return nil, err
	}
	defer resp.Body.Close()
	metrics.DriveDurationMs.Observe(float64(time.Since(t0).Milliseconds()))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.DriveFailTotal.Inc()
		logger.L().Error("drive_api_error", "folder", folderID, "status", resp.StatusCode)
		return nil, &APIError{Status: resp.StatusCode, StatusText: http.StatusText(resp.StatusCode)}
	}
	var body struct {
		Files []File `json:"files"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		metrics.DriveFailTotal.Inc()
		return nil, fmt.Errorf("decode drive response: %w", err)
	}
	images := make([]Image, 0, len(body.Files))
	for _, f := range body.Files {
		images = append(images, ImageFromFile(f))
	}
	logger.L().Debug("drive_list_ok", "folder", folderID, "count", len(images), "duration_ms", time.Since(t0).Milliseconds())
	if c.cache != nil {
		c.cache.SetDefault(folderID, images)
	}
	return images, nil
}
