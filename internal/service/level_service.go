package service

import (
	"academy_backend/internal/model"
	"academy_backend/internal/repository"
	"academy_backend/pkg/logger"
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const levelCacheTTL = 10 * time.Minute

// LevelService 等级目录：Redis缓存 → 远程库（为空则按租户播种默认值）→ 内置兜底。
// 任何一层失败都静默降级，等级换算永远可用。
type LevelService struct {
	LevelRepo *repository.LevelRepository
	Redis     *redis.Client
}

func NewLevelService(levelRepo *repository.LevelRepository, rdb *redis.Client) *LevelService {
	return &LevelService{LevelRepo: levelRepo, Redis: rdb}
}

func levelCacheKey(tenantID string) string {
	return "academy:levels:" + tenantID
}

// GetLevelTable 返回租户的等级查找表
func (s *LevelService) GetLevelTable(sctx model.SyncContext) *model.LevelTable {
	return model.NewLevelTable(s.GetLevels(sctx))
}

// GetLevels 返回租户的等级目录（升序）
func (s *LevelService) GetLevels(sctx model.SyncContext) []model.Level {
	ctx := context.Background()

	if s.Redis != nil {
		if raw, err := s.Redis.Get(ctx, levelCacheKey(sctx.TenantID)).Bytes(); err == nil {
			var levels []model.Level
			if json.Unmarshal(raw, &levels) == nil && len(levels) > 0 {
				return levels
			}
		}
	}

	if !sctx.Reachable {
		return model.DefaultLevels()
	}

	levels, err := s.LevelRepo.ListByTenant(sctx.TenantID)
	if err != nil {
		logger.Log.Warn("Failed to load level catalog, using defaults",
			zap.String("tenant", sctx.TenantID), zap.Error(err))
		return model.DefaultLevels()
	}

	if len(levels) == 0 {
		// 新租户惰性播种
		levels, err = s.LevelRepo.SeedDefaults(sctx.TenantID)
		if err != nil {
			logger.Log.Warn("Failed to seed default levels",
				zap.String("tenant", sctx.TenantID), zap.Error(err))
			return model.DefaultLevels()
		}
		logger.Log.Info("Seeded default level catalog", zap.String("tenant", sctx.TenantID))
	}

	if s.Redis != nil {
		if raw, err := json.Marshal(levels); err == nil {
			if err := s.Redis.Set(ctx, levelCacheKey(sctx.TenantID), raw, levelCacheTTL).Err(); err != nil {
				logger.Log.Debug("Failed to cache level catalog", zap.Error(err))
			}
		}
	}

	return levels
}
