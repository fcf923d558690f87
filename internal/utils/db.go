package utils

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
)

// ErrNoDatabaseURL：未配置任何数据库连接信息
var ErrNoDatabaseURL = errors.New("NEON_DATABASE_URL not configured")

// DatabaseURLFromEnv：按优先级读取连接串 NEON_DATABASE_URL > DATABASE_URL > PG_* 拼接
// 约束：三者都缺失时返回空串；PG_HOST 未设置视为未配置，避免误连本机默认库
func DatabaseURLFromEnv() string {
	if v := os.Getenv("NEON_DATABASE_URL"); v != "" {
		return v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		return v
	}
	if os.Getenv("PG_HOST") == "" {
		return ""
	}
	return BuildPostgresDSNFromEnv()
}

func BuildPostgresDSNFromEnv() string {
	host := os.Getenv("PG_HOST")
	if host == "" {
		host = "localhost"
	}
	port := os.Getenv("PG_PORT")
	if port == "" {
		port = "5432"
	}
	user := os.Getenv("PG_USER")
	if user == "" {
		user = "postgres"
	}
	pass := os.Getenv("PG_PASSWORD")
	db := os.Getenv("PG_DB")
	if db == "" {
		db = "drrm"
	}
	ssl := os.Getenv("PG_SSLMODE")
	if ssl == "" {
		ssl = "require"
	}
	dsn := "postgres://" + user
	if pass != "" {
		dsn += ":" + pass
	}
	dsn += "@" + host + ":" + port + "/" + db + "?sslmode=" + ssl
	return dsn
}

func poolSizesFromEnv() (int, int) {
	maxOpen := 10
	maxIdle := 5
	if v := os.Getenv("PG_MAX_OPEN_CONNS"); v != "" {
		if n, e := strconv.Atoi(v); e == nil && n > 0 {
			maxOpen = n
		}
	}
	if v := os.Getenv("PG_MAX_IDLE_CONNS"); v != "" {
		if n, e := strconv.Atoi(v); e == nil && n >= 0 {
			maxIdle = n
		}
	}
	return maxOpen, maxIdle
}

// OpenPostgresFromEnv：database/sql + lib/pq，供页面存储与建表使用
func OpenPostgresFromEnv() (*sql.DB, error) {
	dsn := DatabaseURLFromEnv()
	if dsn == "" {
		return nil, ErrNoDatabaseURL
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	maxOpen, maxIdle := poolSizesFromEnv()
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	return db, nil
}

// OpenPoolFromEnv：pgx 连接池，供 SQL 透传使用；行值按 Postgres 类型解码
func OpenPoolFromEnv(ctx context.Context) (*pgxpool.Pool, error) {
	dsn := DatabaseURLFromEnv()
	if dsn == "" {
		return nil, ErrNoDatabaseURL
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	maxOpen, _ := poolSizesFromEnv()
	cfg.MaxConns = int32(maxOpen)
	return pgxpool.NewWithConfig(ctx, cfg)
}
