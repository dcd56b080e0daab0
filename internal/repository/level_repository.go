package repository

import (
	"academy_backend/internal/model"

	"gorm.io/gorm"
)

type LevelRepository struct {
	DB *gorm.DB
}

func NewLevelRepository(db *gorm.DB) *LevelRepository {
	return &LevelRepository{DB: db}
}

// ListByTenant 按等级号升序返回租户的等级目录
func (r *LevelRepository) ListByTenant(tenantID string) ([]model.Level, error) {
	var levels []model.Level
	err := r.DB.Where("tenant_id = ?", tenantID).Order("level_number").Find(&levels).Error
	return levels, err
}

// SeedDefaults 为新租户写入默认等级目录（惰性初始化）
func (r *LevelRepository) SeedDefaults(tenantID string) ([]model.Level, error) {
	defaults := model.DefaultLevels()
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		for i := range defaults {
			defaults[i].TenantID = tenantID
			if err := tx.Create(&defaults[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return defaults, nil
}
