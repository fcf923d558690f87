package middleware

import (
	"net/http"
	"runtime/debug"

	"drrm-api/internal/logger"
)

// Recover：处理器 panic 时记录堆栈并返回 JSON 500
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				if err == http.ErrAbortHandler {
					panic(err)
				}
				logger.L().Error("http_panic", "path", r.URL.Path, "err", err, "stack", string(debug.Stack()))
				w.Header().Set("content-type", "application/json; charset=utf-8")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":"Internal server error"}`))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
