package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"drrm-api/internal/geo"
	"drrm-api/internal/logger"
	"drrm-api/internal/mapstate"
	"drrm-api/internal/metrics"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const (
	maxUploadMemory = 32 << 20
	maxUploadFiles  = 32
	uploadOverhead  = 1 << 20
	wsWriteWait     = 10 * time.Second
	wsPingEvery     = 30 * time.Second
	wsPongWait      = 60 * time.Second
)

type mapHandlers struct {
	d Deps
}

func (m *mapHandlers) list(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"layers":   m.d.Registry.List(),
		"viewport": m.viewportOrNil(),
	})
}

func (m *mapHandlers) viewportOrNil() *mapstate.Viewport {
	if m.d.Map == nil {
		return nil
	}
	vp := m.d.Map.Viewport()
	return &vp
}

// upload：multipart 字段 files，可多文件；单个文件失败不影响其余文件
func (m *mapHandlers) upload(w http.ResponseWriter, r *http.Request) {
	if m.d.Pipeline == nil {
		writeError(w, http.StatusServiceUnavailable, "Upload pipeline not configured")
		return
	}
	// 请求体上限：单文件上限 × maxUploadFiles + 表单开销
	if n := m.d.Pipeline.MaxBytes(); n > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, n*maxUploadFiles+uploadOverhead)
	}
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "Upload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid multipart body")
		return
	}
	defer r.MultipartForm.RemoveAll()
	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "No files uploaded")
		return
	}
	files := make([]mapstate.File, 0, len(headers))
	for _, fh := range headers {
		files = append(files, multipartFile(fh))
	}
	res := m.d.Pipeline.Upload(r.Context(), files)
	res.Viewport = m.viewportOrNil()
	logger.L().Info("map_upload", "files", len(files), "added", len(res.Added), "errors", len(res.Errors))
	writeJSON(w, http.StatusOK, res)
}

func multipartFile(fh *multipart.FileHeader) mapstate.File {
	return mapstate.File{
		Name: fh.Filename,
		Open: func() (io.ReadCloser, error) { return fh.Open() },
	}
}

func (m *mapHandlers) dataset(w http.ResponseWriter, r *http.Request) {
	if m.d.DatasetPath == "" || m.d.Pipeline == nil {
		writeError(w, http.StatusNotFound, "CSV dataset not configured")
		return
	}
	f, err := os.Open(m.d.DatasetPath)
	if err != nil {
		logger.L().Error("dataset_open_error", "path", m.d.DatasetPath, "err", err)
		writeError(w, http.StatusInternalServerError, "Failed to open CSV dataset")
		return
	}
	defer f.Close()
	li, err := m.d.Pipeline.LoadDataset(m.d.DatasetPath, f)
	if err != nil {
		logger.L().Error("dataset_load_error", "path", m.d.DatasetPath, "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, li)
}

func (m *mapHandlers) toggle(w http.ResponseWriter, r *http.Request) {
	li, ok := m.d.Registry.Toggle(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "Layer not found")
		return
	}
	writeJSON(w, http.StatusOK, li)
}

func (m *mapHandlers) zoom(w http.ResponseWriter, r *http.Request) {
	fitted, found := m.d.Registry.ZoomTo(mux.Vars(r)["id"])
	if !found {
		writeError(w, http.StatusNotFound, "Layer not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"fitted": fitted, "viewport": m.viewportOrNil()})
}

func (m *mapHandlers) geojson(w http.ResponseWriter, r *http.Request) {
	fc, ok := m.d.Registry.FeatureCollection(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "Layer not found")
		return
	}
	b, err := fc.MarshalJSON()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("content-type", "application/geo+json")
	w.Header().Set("cache-control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

// nearest：查询点最近的图层要素，如最近的疏散中心
func (m *mapHandlers) nearest(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, err1 := strconv.ParseFloat(q.Get("lat"), 64)
	lon, err2 := strconv.ParseFloat(q.Get("lon"), 64)
	if err1 != nil || err2 != nil || !geo.ValidLonLat(lon, lat) {
		writeError(w, http.StatusBadRequest, "lat and lon are required")
		return
	}
	hit, ok := m.d.Registry.Nearest(mux.Vars(r)["id"], mapstate.LatLng{Lat: lat, Lon: lon})
	if !ok {
		writeError(w, http.StatusNotFound, "No features in layer")
		return
	}
	writeJSON(w, http.StatusOK, hit)
}

// remove：未知 id 视为已删除
func (m *mapHandlers) remove(w http.ResponseWriter, r *http.Request) {
	m.d.Registry.Remove(mux.Vars(r)["id"])
	w.WriteHeader(http.StatusNoContent)
}

func (m *mapHandlers) clear(w http.ResponseWriter, r *http.Request) {
	n := m.d.Registry.Clear()
	writeJSON(w, http.StatusOK, map[string]any{"removed": n})
}

func (m *mapHandlers) viewport(w http.ResponseWriter, r *http.Request) {
	if m.d.Map == nil {
		writeError(w, http.StatusServiceUnavailable, "Map not configured")
		return
	}
	writeJSON(w, http.StatusOK, m.d.Map.Viewport())
}

type viewportRequest struct {
	Action string   `json:"action"`
	Lat    *float64 `json:"lat"`
	Lon    *float64 `json:"lon"`
	Zoom   *int     `json:"zoom"`
}

func (m *mapHandlers) applyViewport(w http.ResponseWriter, r *http.Request) {
	if m.d.Map == nil {
		writeError(w, http.StatusServiceUnavailable, "Map not configured")
		return
	}
	var req viewportRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	var vp mapstate.Viewport
	switch strings.ToLower(req.Action) {
	case "zoom_in":
		vp = m.d.Map.ZoomIn()
	case "zoom_out":
		vp = m.d.Map.ZoomOut()
	case "fly_to", "set":
		if req.Lat == nil || req.Lon == nil || *req.Lat < -90 || *req.Lat > 90 || *req.Lon < -180 || *req.Lon > 180 {
			writeError(w, http.StatusBadRequest, "lat and lon are required")
			return
		}
		zoom := -1
		if req.Zoom != nil {
			zoom = *req.Zoom
		}
		vp = m.d.Map.FlyTo(mapstate.LatLng{Lat: *req.Lat, Lon: *req.Lon}, zoom)
	default:
		writeError(w, http.StatusBadRequest, "Unknown viewport action "+req.Action)
		return
	}
	writeJSON(w, http.StatusOK, vp)
}

// snapshot：新连接首帧，携带当前图层与视口
type snapshot struct {
	Type     string               `json:"type"`
	Layers   []mapstate.LayerInfo `json:"layers"`
	Viewport *mapstate.Viewport   `json:"viewport,omitempty"`
}

func (m *mapHandlers) upgrader() *websocket.Upgrader {
	origins := m.d.Origins
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, o := range origins {
				if o == "*" || strings.EqualFold(o, origin) {
					return true
				}
			}
			return false
		},
	}
}

// events：WebSocket 推送地图事件；客户端断开或服务关闭时结束
func (m *mapHandlers) events(w http.ResponseWriter, r *http.Request) {
	if m.d.Bus == nil {
		writeError(w, http.StatusServiceUnavailable, "Event stream not configured")
		return
	}
	conn, err := m.upgrader().Upgrade(w, r, nil)
	if err != nil {
		logger.L().Warn("ws_upgrade_error", "err", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	ch := m.d.Bus.Subscribe(ctx, 64)
	metrics.MapEventSubscribers.Inc()
	defer metrics.MapEventSubscribers.Dec()
	logger.L().Info("ws_connected", "remote", r.RemoteAddr)

	// 读循环只处理 pong 与关闭帧
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteJSON(snapshot{Type: "snapshot", Layers: m.d.Registry.List(), Viewport: m.viewportOrNil()}); err != nil {
		return
	}

	ping := time.NewTicker(wsPingEvery)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			logger.L().Info("ws_closed", "remote", r.RemoteAddr)
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				logger.L().Warn("ws_write_error", "err", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}
