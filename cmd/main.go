// 程序入口：仅负责读取配置、初始化依赖并启动服务；API 注册在 internal/api 以便扩展
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"drrm-api/internal/api"
	"drrm-api/internal/drive"
	"drrm-api/internal/galleries"
	"drrm-api/internal/logger"
	"drrm-api/internal/mapstate"
	"drrm-api/internal/metrics"
	"drrm-api/internal/middleware"
	"drrm-api/internal/migrate"
	"drrm-api/internal/pages"
	"drrm-api/internal/query"
	"drrm-api/internal/store"
	"drrm-api/internal/utils"
	"drrm-api/internal/version"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	// 日志初始化
	l := logger.Setup()
	l.Debug("log_init_ok", "version", version.Version, "commit", version.Commit)
	apiBase := os.Getenv("API_BASE")
	if apiBase == "" {
		apiBase = "/api"
	}
	l.Debug("config_api_base", "base", apiBase)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := api.Deps{Origins: middleware.CORSOriginsFromEnv()}

	// 数据库未配置时服务照常启动，/page 与 /query 返回配置错误
	db, err := utils.OpenPostgresFromEnv()
	switch {
	case errors.Is(err, utils.ErrNoDatabaseURL):
		l.Warn("db_not_configured")
	case err != nil:
		l.Error("db_open_error", "err", err)
		os.Exit(1)
	default:
		defer db.Close()
		l.Info("db_open_ok")
		if err := db.PingContext(ctx); err != nil {
			l.Error("db_ping_error", "err", err)
		} else {
			l.Info("db_ping_ok")
		}
		if os.Getenv("AUTO_MIGRATE") != "false" {
			if err := migrate.EnsureSchema(ctx, db); err != nil {
				l.Error("schema_error", "err", err)
				os.Exit(1)
			}
			l.Info("schema_ok")
		}
	}

	rc := utils.OpenRedisFromEnv()
	if rc == nil {
		l.Info("redis_disabled")
	} else {
		defer rc.Close()
		if err := rc.Ping(ctx).Err(); err != nil {
			l.Error("redis_ping_error", "err", err)
		} else {
			l.Info("redis_ping_ok")
		}
	}

	if db != nil {
		ttl := 5 * time.Minute
		if s := os.Getenv("PAGE_CACHE_TTL"); s != "" {
			if d, e := time.ParseDuration(s); e == nil && d > 0 {
				ttl = d
			}
		}
		svc := pages.NewService(store.AttachDB(db), rc, ttl)
		deps.Pages, deps.PageCache = svc, svc
	}

	pool, err := utils.OpenPoolFromEnv(ctx)
	if err != nil {
		if !errors.Is(err, utils.ErrNoDatabaseURL) {
			l.Error("pgxpool_open_error", "err", err)
		}
		deps.Query = query.NewPoolRunner(nil)
	} else {
		defer pool.Close()
		l.Info("pgxpool_open_ok")
		deps.Query = query.NewPoolRunner(pool)
	}

	driveKey := os.Getenv("GOOGLE_DRIVE_API_KEY")
	if driveKey == "" {
		l.Warn("drive_key_missing")
	}
	deps.Drive = drive.NewClient(driveKey)

	gc, err := galleries.Load(os.Getenv("GALLERY_CONFIG"))
	if err != nil {
		l.Error("gallery_config_error", "err", err)
		os.Exit(1)
	}
	l.Info("gallery_config_ok", "count", len(gc.List()))
	deps.Galleries = gc

	// 地图状态：事件总线 → 视口 → 图层注册表 → 上传管线
	bus := mapstate.NewBus(256)
	m := mapstate.NewMap(mapstate.DefaultOptions(), bus)
	defer m.Close()
	reg := mapstate.NewRegistry(m, bus)
	popts := []mapstate.PipelineOption{mapstate.WithFitPolicy(mapstate.ParseFitPolicy(os.Getenv("MAP_FIT_POLICY")))}
	if s := os.Getenv("MAP_UPLOAD_MAX_BYTES"); s != "" {
		if n, e := strconv.ParseInt(s, 10, 64); e == nil {
			popts = append(popts, mapstate.WithMaxBytes(n))
		}
	}
	deps.Map, deps.Registry, deps.Bus = m, reg, bus
	deps.Pipeline = mapstate.NewPipeline(reg, popts...)
	deps.DatasetPath = os.Getenv("MAP_CSV_DATASET")

	mux := http.NewServeMux()
	apiMux := api.BuildRoutes(deps)
	mux.Handle(apiBase+"/", http.StripPrefix(apiBase, apiMux))
	mux.Handle(apiBase+"/metrics", metrics.Handler())

	addr := os.Getenv("ADDR")
	if addr == "" {
		addr = ":9999"
	}
	handler := logger.AccessMiddleware(l)(mux)
	handler = middleware.Wrap(handler)
	s := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		l.Info("shutdown_begin")
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.Shutdown(sctx); err != nil {
			l.Error("shutdown_error", "err", err)
		}
	}()

	if os.Getenv("TLS_ENABLE") == "true" {
		certPath := os.Getenv("TLS_CERT_PATH")
		keyPath := os.Getenv("TLS_KEY_PATH")
		if certPath == "" {
			certPath = filepath.Join("data", "certs", "server.crt")
		}
		if keyPath == "" {
			keyPath = filepath.Join("data", "certs", "server.key")
		}
		if err := utils.EnsureSelfSignedCert(certPath, keyPath, "drrm-api.local"); err != nil {
			l.Error("tls_cert_error", "err", err)
			os.Exit(1)
		}
		l.Info("listening_tls", "addr", addr, "cert", certPath)
		err = s.ListenAndServeTLS(certPath, keyPath)
	} else {
		l.Info("listening", "addr", addr)
		err = s.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.Error("server_error", "err", err)
		os.Exit(1)
	}
	l.Info("shutdown_done")
}
