// 包 api：集中注册 HTTP API 路由，主入口将其挂载到 API_BASE 前缀
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"drrm-api/internal/drive"
	"drrm-api/internal/galleries"
	"drrm-api/internal/logger"
	"drrm-api/internal/mapstate"
	"drrm-api/internal/query"
	"drrm-api/internal/store"

	"github.com/gorilla/mux"
)

// PageGetter：页面读取，生产环境为 *pages.Service
type PageGetter interface {
	Get(ctx context.Context, typ string) (*store.Page, error)
}

// PageInvalidator：写语句成功后清理页面缓存，生产环境为 *pages.Service
type PageInvalidator interface {
	InvalidateAll(ctx context.Context) error
}

// ImageLister：Drive 图片列表，生产环境为 *drive.Client
type ImageLister interface {
	ListImages(ctx context.Context, folderID string) ([]drive.Image, error)
}

// Deps：路由依赖；Pages/Query 为 nil 表示数据库未配置
type Deps struct {
	Pages       PageGetter
	PageCache   PageInvalidator
	Query       query.Runner
	Drive       ImageLister
	Galleries   *galleries.Config
	Map         *mapstate.Map
	Registry    *mapstate.Registry
	Pipeline    *mapstate.Pipeline
	Bus         *mapstate.Bus
	DatasetPath string
	Origins     []string
}

// BuildRoutes：构建 API 路由
func BuildRoutes(d Deps) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	}).Methods(http.MethodGet)

	r.HandleFunc("/page", pageHandler(d.Pages)).Methods(http.MethodGet)
	r.HandleFunc("/query", queryHandler(d.Query, d.PageCache)).Methods(http.MethodPost)

	r.HandleFunc("/drive-images", driveImagesHandler(d.Drive)).Methods(http.MethodGet)
	r.HandleFunc("/galleries", galleriesHandler(d.Galleries)).Methods(http.MethodGet)
	r.HandleFunc("/galleries/{view}/images", galleryImagesHandler(d.Galleries, d.Drive)).Methods(http.MethodGet)

	if d.Registry != nil {
		m := &mapHandlers{d: d}
		r.HandleFunc("/map/layers", m.list).Methods(http.MethodGet)
		r.HandleFunc("/map/layers", m.upload).Methods(http.MethodPost)
		r.HandleFunc("/map/layers", m.clear).Methods(http.MethodDelete)
		r.HandleFunc("/map/layers/dataset", m.dataset).Methods(http.MethodPost)
		r.HandleFunc("/map/layers/{id}/toggle", m.toggle).Methods(http.MethodPost)
		r.HandleFunc("/map/layers/{id}/zoom", m.zoom).Methods(http.MethodPost)
		r.HandleFunc("/map/layers/{id}/geojson", m.geojson).Methods(http.MethodGet)
		r.HandleFunc("/map/layers/{id}/nearest", m.nearest).Methods(http.MethodGet)
		r.HandleFunc("/map/layers/{id}", m.remove).Methods(http.MethodDelete)
		r.HandleFunc("/map/viewport", m.viewport).Methods(http.MethodGet)
		r.HandleFunc("/map/viewport", m.applyViewport).Methods(http.MethodPost)
		r.HandleFunc("/map/events", m.events).Methods(http.MethodGet)
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
	return r
}

// writeJSON：先编码再写头，编码失败返回 500
func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		logger.L().Error("json_encode_error", "err", err)
		status = http.StatusInternalServerError
		b = []byte(`{"error":"Internal server error"}`)
	}
	w.Header().Set("content-type", "application/json; charset=utf-8")
	if w.Header().Get("cache-control") == "" {
		w.Header().Set("cache-control", "no-store")
	}
	w.WriteHeader(status)
	_, _ = w.Write(append(b, '\n'))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}
