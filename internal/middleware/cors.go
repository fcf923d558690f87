package middleware

import (
	"os"
	"strings"

	"github.com/rs/cors"
)

// 前端开发服务器与本机预览的默认来源
var defaultOrigins = []string{
	"http://localhost:5173",
	"http://127.0.0.1:5173",
	"http://localhost:3000",
	"http://localhost:4173",
}

// CORSOriginsFromEnv：CORS_ORIGINS 为逗号分隔列表，"*" 表示任意来源
func CORSOriginsFromEnv() []string {
	v := os.Getenv("CORS_ORIGINS")
	if v == "" {
		return defaultOrigins
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// CORS：与 Drive 图库函数一致的方法与请求头集合
func CORS(origins []string) *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Client-Info", "Apikey"},
		MaxAge:         600,
	})
}
