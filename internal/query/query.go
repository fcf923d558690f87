// 包 query：/api/query 的 SQL 透传执行，不做白名单、拼接或重试
package query

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"drrm-api/internal/logger"
	"drrm-api/internal/metrics"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotConfigured：未配置数据库时的执行错误，文本与前端约定一致
var ErrNotConfigured = errors.New("NEON_DATABASE_URL not configured")

// Result：与前端约定的返回结构
type Result struct {
	Rows     []map[string]any `json:"rows"`
	RowCount int64            `json:"rowCount"`
}

// Runner：执行任意 SQL；生产环境为 *PoolRunner，测试中可替换
type Runner interface {
	Run(ctx context.Context, sql string, params []any) (*Result, error)
}

// PoolRunner：基于 pgx 连接池的执行器
type PoolRunner struct {
	pool *pgxpool.Pool
}

// NewPoolRunner：pool 允许为 nil，此时每次执行都返回 ErrNotConfigured
func NewPoolRunner(pool *pgxpool.Pool) *PoolRunner { return &PoolRunner{pool: pool} }

func (r *PoolRunner) Run(ctx context.Context, sql string, params []any) (*Result, error) {
	if r.pool == nil {
		return nil, ErrNotConfigured
	}
	t0 := time.Now()
	defer func() { metrics.QueryDurationMs.Observe(float64(time.Since(t0).Milliseconds())) }()
	rows, err := r.pool.Query(ctx, sql, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	fields := rows.FieldDescriptions()
	out := &Result{Rows: []map[string]any{}}
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		m := make(map[string]any, len(fields))
		for i, fd := range fields {
			m[fd.Name] = normalize(vals[i])
		}
		out.Rows = append(out.Rows, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out.RowCount = rows.CommandTag().RowsAffected()
	logger.L().Debug("query_done", "rows", len(out.Rows), "row_count", out.RowCount, "duration_ms", time.Since(t0).Milliseconds())
	return out, nil
}

// normalize：uuid 列以文本返回，其余值交给 encoding/json
func normalize(v any) any {
	switch x := v.(type) {
	case [16]byte:
		return uuid.UUID(x).String()
	}
	return v
}

// Params：将 JSON 解码出的参数转换为驱动可编码的值
// 约束：需配合 json.Decoder.UseNumber；整数转 int64，其余数字转 float64
func Params(in []any) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = param(v)
	}
	return out
}

func param(v any) any {
	switch x := v.(type) {
	case json.Number:
		s := x.String()
		if !strings.ContainsAny(s, ".eE") {
			if n, err := x.Int64(); err == nil {
				return n
			}
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return s
	case []any:
		return Params(x)
	}
	return v
}

// IsWrite：语句是否可能修改数据；仅 SELECT/SHOW/VALUES/TABLE 开头视为只读
// 约束：WITH 可能包含写子句，按写处理
func IsWrite(sql string) bool {
	s := strings.TrimLeft(sql, " \t\r\n(")
	for strings.HasPrefix(s, "--") {
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			s = strings.TrimLeft(s[i+1:], " \t\r\n(")
		} else {
			return false
		}
	}
	word := s
	if i := strings.IndexFunc(s, func(r rune) bool { return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '(' || r == ';' }); i >= 0 {
		word = s[:i]
	}
	switch strings.ToUpper(word) {
	case "SELECT", "SHOW", "VALUES", "TABLE":
		return false
	}
	return true
}
