package migrate

import (
	"context"
	"database/sql"
	"drrm-api/internal/logger"
)

// 默认页面内容：仅在对应 type 不存在时写入，不覆盖管理员已编辑的文本
var seedPages = []struct {
	Type    string
	Title   string
	Content string
}{
	{
		Type:    "login",
		Title:   "MDRRMO Dashboard Login",
		Content: "Authorized personnel only.\nEnter the office password to manage dashboard content.",
	},
	{
		Type:    "admin",
		Title:   "Admin Panel",
		Content: "Welcome to the DRRM admin panel.\nUse this area to review page content, uploaded map layers and gallery folders.",
	},
}

// EnsureSchema：首次运行创建 pages 表与索引并写入默认页面
// 约束：全部语句可重复执行；已存在的行保持不变
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS pages (
            id SERIAL PRIMARY KEY,
            type TEXT NOT NULL,
            title TEXT NOT NULL DEFAULT '',
            content TEXT NOT NULL DEFAULT '',
            updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uniq_pages_type ON pages(type)`,
	}
	for i, s := range stmts {
		logger.L().Debug("schema_exec", "idx", i)
		if _, err := db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	for _, p := range seedPages {
		if _, err := db.ExecContext(ctx,
			`INSERT INTO pages(type, title, content) VALUES($1, $2, $3) ON CONFLICT (type) DO NOTHING`,
			p.Type, p.Title, p.Content); err != nil {
			return err
		}
		logger.L().Debug("schema_seed", "type", p.Type)
	}
	logger.L().Debug("schema_done")
	return nil
}
