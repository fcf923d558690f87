package api

import (
	"encoding/json"
	"net/http"

	"drrm-api/internal/logger"
	"drrm-api/internal/metrics"
	"drrm-api/internal/query"
)

type queryRequest struct {
	SQL    string `json:"sql"`
	Params []any  `json:"params"`
}

// queryHandler：请求体原样交给执行器；数据库错误以 500 + 原始信息返回
// 约束：写语句成功后清理页面缓存，保证 /page 读到新内容
func queryHandler(run query.Runner, pc PageInvalidator) http.HandlerFunc {
	if run == nil {
		run = query.NewPoolRunner(nil)
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req queryRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
		dec.UseNumber()
		if err := dec.Decode(&req); err != nil || req.SQL == "" {
			metrics.QueryRequestsTotal.WithLabelValues("bad_request").Inc()
			writeError(w, http.StatusBadRequest, "Missing `sql` in request body")
			return
		}
		params := query.Params(req.Params)
		if params == nil {
			params = []any{}
		}
		res, err := run.Run(r.Context(), req.SQL, params)
		if err != nil {
			metrics.QueryRequestsTotal.WithLabelValues("error").Inc()
			logger.L().Error("query_error", "err", err)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if pc != nil && query.IsWrite(req.SQL) {
			if err := pc.InvalidateAll(r.Context()); err != nil {
				logger.L().Warn("page_cache_invalidate_error", "err", err)
			}
		}
		metrics.QueryRequestsTotal.WithLabelValues("ok").Inc()
		writeJSON(w, http.StatusOK, res)
	}
}
