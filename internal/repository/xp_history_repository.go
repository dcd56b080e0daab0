package repository

import (
	"academy_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type XPHistoryRepository struct {
	DB *gorm.DB
}

func NewXPHistoryRepository(db *gorm.DB) *XPHistoryRepository {
	return &XPHistoryRepository{DB: db}
}

// Append 追加一条流水；流水只增不改
func (r *XPHistoryRepository) Append(entry *model.XPHistory) error {
	return r.DB.Create(entry).Error
}

// Exists 按ID判断流水是否已落库；离线流水重放据此去重
func (r *XPHistoryRepository) Exists(id string) (bool, error) {
	var count int64
	err := r.DB.Model(&model.XPHistory{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

func (r *XPHistoryRepository) ListRecent(tenantID, userID string, limit int) ([]model.XPHistory, error) {
	var entries []model.XPHistory
	err := r.DB.
		Where("tenant_id = ? AND user_id = ?", tenantID, userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

// ActivityDates 从流水提取去重后的活动日历日（UTC, YYYY-MM-DD），最近的在前。
// 在Go侧归一化日期，避免依赖各数据库方言的日期函数。
func (r *XPHistoryRepository) ActivityDates(tenantID, userID string, limit int) ([]string, error) {
	var timestamps []time.Time
	err := r.DB.Model(&model.XPHistory{}).
		Where("tenant_id = ? AND user_id = ?", tenantID, userID).
		Order("created_at DESC").
		Limit(limit).
		Pluck("created_at", &timestamps).Error
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(timestamps))
	dates := make([]string, 0, len(timestamps))
	for _, ts := range timestamps {
		day := ts.UTC().Format("2006-01-02")
		if !seen[day] {
			seen[day] = true
			dates = append(dates, day)
		}
	}
	return dates, nil
}
