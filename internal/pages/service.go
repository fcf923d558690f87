// 包 pages：登录/管理页文本的读取，数据库为准，Redis 做读穿缓存
package pages

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"drrm-api/internal/logger"
	"drrm-api/internal/metrics"
	"drrm-api/internal/store"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound：页面类型不存在
var ErrNotFound = store.ErrPageNotFound

// Source：页面数据来源，生产环境为 *store.Store
type Source interface {
	PageByType(ctx context.Context, typ string) (*store.Page, error)
}

// Cache：Service 用到的 Redis 命令子集，*redis.Client 满足该接口
type Cache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Service：页面读取服务
// 约束：rc 为 nil 时不使用缓存；缓存只保存命中的页面，不缓存 404
type Service struct {
	src Source
	rc  Cache
	ttl time.Duration

	mu     sync.Mutex
	cached map[string]struct{}
}

// NewService：rc 可为 nil 或值为 nil 的 *redis.Client
func NewService(src Source, rc Cache, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if c, ok := rc.(*redis.Client); ok && c == nil {
		rc = nil
	}
	return &Service{src: src, rc: rc, ttl: ttl, cached: map[string]struct{}{}}
}

func cacheKey(typ string) string { return "page:" + typ }

// Get：先查 Redis，未命中再查数据库并回填
// Redis 故障只记录日志，不影响返回
func (s *Service) Get(ctx context.Context, typ string) (*store.Page, error) {
	if s.rc != nil {
		if v, err := s.rc.Get(ctx, cacheKey(typ)).Result(); err == nil && v != "" {
			var p store.Page
			if json.Unmarshal([]byte(v), &p) == nil {
				metrics.PageCacheHitsTotal.Inc()
				return &p, nil
			}
		} else if err != nil && !errors.Is(err, redis.Nil) {
			logger.L().Debug("page_cache_get_error", "type", typ, "err", err)
		}
		metrics.PageCacheMissesTotal.Inc()
	}
	p, err := s.src.PageByType(ctx, typ)
	if err != nil {
		return nil, err
	}
	if s.rc != nil {
		if b, err := json.Marshal(p); err == nil {
			if err := s.rc.Set(ctx, cacheKey(typ), string(b), s.ttl).Err(); err != nil {
				logger.L().Debug("page_cache_set_error", "type", typ, "err", err)
			} else {
				s.mu.Lock()
				s.cached[typ] = struct{}{}
				s.mu.Unlock()
			}
		}
	}
	return p, nil
}

// Invalidate：页面被修改后删除缓存
func (s *Service) Invalidate(ctx context.Context, typ string) error {
	if s.rc == nil {
		return nil
	}
	s.mu.Lock()
	delete(s.cached, typ)
	s.mu.Unlock()
	return s.rc.Del(ctx, cacheKey(typ)).Err()
}

// InvalidateAll：删除本进程写入过的全部页面缓存
// 约束：/api/query 执行写语句后调用；其他进程写入的键由 TTL 过期
func (s *Service) InvalidateAll(ctx context.Context) error {
	if s.rc == nil {
		return nil
	}
	s.mu.Lock()
	keys := make([]string, 0, len(s.cached))
	for typ := range s.cached {
		keys = append(keys, cacheKey(typ))
	}
	s.cached = map[string]struct{}{}
	s.mu.Unlock()
	if len(keys) == 0 {
		return nil
	}
	sort.Strings(keys)
	return s.rc.Del(ctx, keys...).Err()
}
