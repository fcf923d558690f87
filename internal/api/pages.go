package api

import (
	"errors"
	"fmt"
	"net/http"

	"drrm-api/internal/logger"
	"drrm-api/internal/metrics"
	"drrm-api/internal/pages"
	"drrm-api/internal/query"
)

// pageView：/api/page 返回的页面字段
type pageView struct {
	ID      int    `json:"id"`
	Type    string `json:"type"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

func pageHandler(pg PageGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		typ := r.URL.Query().Get("type")
		if typ == "" {
			metrics.PageRequestsTotal.WithLabelValues("bad_request").Inc()
			writeError(w, http.StatusBadRequest, "Missing `type` query parameter")
			return
		}
		if pg == nil {
			metrics.PageRequestsTotal.WithLabelValues("error").Inc()
			writeError(w, http.StatusInternalServerError, query.ErrNotConfigured.Error())
			return
		}
		p, err := pg.Get(r.Context(), typ)
		if errors.Is(err, pages.ErrNotFound) {
			metrics.PageRequestsTotal.WithLabelValues("not_found").Inc()
			writeError(w, http.StatusNotFound, fmt.Sprintf("Page type %q not found", typ))
			return
		}
		if err != nil {
			metrics.PageRequestsTotal.WithLabelValues("error").Inc()
			logger.L().Error("page_fetch_error", "type", typ, "err", err)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		metrics.PageRequestsTotal.WithLabelValues("ok").Inc()
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"page":    pageView{ID: p.ID, Type: p.Type, Title: p.Title, Content: p.Content},
		})
	}
}
