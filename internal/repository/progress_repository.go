package repository

import (
	"academy_backend/internal/model"
	"errors"

	"gorm.io/gorm"
)

type ProgressRepository struct {
	DB *gorm.DB
}

func NewProgressRepository(db *gorm.DB) *ProgressRepository {
	return &ProgressRepository{DB: db}
}

// Get 读取(租户,用户)的进度；不存在返回 nil（首次访问由引擎惰性创建）
func (r *ProgressRepository) Get(tenantID, userID string) (*model.UserProgress, error) {
	var progress model.UserProgress
	err := r.DB.Where("tenant_id = ? AND user_id = ?", tenantID, userID).First(&progress).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &progress, nil
}

// Upsert 按(tenant_id, user_id)唯一键写入进度
func (r *ProgressRepository) Upsert(progress *model.UserProgress) error {
	res := r.DB.Model(&model.UserProgress{}).
		Where("tenant_id = ? AND user_id = ?", progress.TenantID, progress.UserID).
		Updates(map[string]interface{}{
			"total_xp":           progress.TotalXP,
			"current_level":      progress.CurrentLevel,
			"courses_completed":  progress.CoursesCompleted,
			"lessons_completed":  progress.LessonsCompleted,
			"missions_completed": progress.MissionsCompleted,
			"current_streak":     progress.CurrentStreak,
			"longest_streak":     progress.LongestStreak,
			"last_activity_date": progress.LastActivityDate,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// MySQL对值未变化的UPDATE报告0行，需再确认行是否存在
		var count int64
		if err := r.DB.Model(&model.UserProgress{}).
			Where("tenant_id = ? AND user_id = ?", progress.TenantID, progress.UserID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return r.DB.Create(progress).Error
		}
	}
	return nil
}

// IncrementXP 原子累加 total_xp，保证并发奖励不会相互覆盖
func (r *ProgressRepository) IncrementXP(tenantID, userID string, amount int) error {
	return r.DB.Model(&model.UserProgress{}).
		Where("tenant_id = ? AND user_id = ?", tenantID, userID).
		Update("total_xp", gorm.Expr("total_xp + ?", amount)).
		Error
}
