// 包 store: 提供与 PostgreSQL 的数据访问层，负责 pages 表的读写
package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"drrm-api/internal/logger"

	_ "github.com/lib/pq"
)

// ErrPageNotFound：按 type 查询无匹配行
var ErrPageNotFound = errors.New("page not found")

// Store: 数据库访问入口，持有连接池
type Store struct {
	db *sql.DB
}

func AttachDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// Page: pages 表的一行
type Page struct {
	ID        int       `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PageByType: 读取指定类型的页面；无匹配返回 ErrPageNotFound，其余错误原样返回
func (s *Store) PageByType(ctx context.Context, typ string) (*Page, error) {
	row := s.db.QueryRowContext(ctx, "SELECT id, type, title, content, updated_at FROM pages WHERE type = $1", typ)
	var p Page
	if err := row.Scan(&p.ID, &p.Type, &p.Title, &p.Content, &p.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			logger.L().Debug("db_page_miss", "type", typ)
			return nil, ErrPageNotFound
		}
		return nil, err
	}
	logger.L().Debug("db_page_hit", "type", typ, "id", p.ID)
	return &p, nil
}

// ListPages: 按 id 升序列出全部页面
func (s *Store) ListPages(ctx context.Context) ([]Page, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, type, title, content, updated_at FROM pages ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Page
	for rows.Next() {
		var p Page
		if err := rows.Scan(&p.ID, &p.Type, &p.Title, &p.Content, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpsertPage: 按 type 写入或更新标题与正文，刷新 updated_at
func (s *Store) UpsertPage(ctx context.Context, typ, title, content string) (*Page, error) {
	row := s.db.QueryRowContext(ctx, `INSERT INTO pages(type, title, content, updated_at)
        VALUES($1, $2, $3, now())
        ON CONFLICT (type) DO UPDATE SET title=EXCLUDED.title, content=EXCLUDED.content, updated_at=now()
        RETURNING id, type, title, content, updated_at`, typ, title, content)
	var p Page
	if err := row.Scan(&p.ID, &p.Type, &p.Title, &p.Content, &p.UpdatedAt); err != nil {
		return nil, err
	}
	logger.L().Debug("db_page_upsert", "type", typ, "id", p.ID)
	return &p, nil
}
