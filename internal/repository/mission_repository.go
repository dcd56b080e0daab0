package repository

import (
	"academy_backend/internal/model"
	"errors"

	"gorm.io/gorm"
)

type MissionRepository struct {
	DB *gorm.DB
}

func NewMissionRepository(db *gorm.DB) *MissionRepository {
	return &MissionRepository{DB: db}
}

func (r *MissionRepository) FindByID(tenantID, missionID string) (*model.Mission, error) {
	var mission model.Mission
	err := r.DB.Where("tenant_id = ? AND id = ?", tenantID, missionID).First(&mission).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &mission, nil
}

func (r *MissionRepository) ListByTenant(tenantID string) ([]model.Mission, error) {
	var missions []model.Mission
	err := r.DB.Where("tenant_id = ?", tenantID).Order("order_index").Find(&missions).Error
	return missions, err
}

func (r *MissionRepository) CountByTenant(tenantID string) (int64, error) {
	var count int64
	err := r.DB.Model(&model.Mission{}).Where("tenant_id = ?", tenantID).Count(&count).Error
	return count, err
}

func (r *MissionRepository) GetProgress(tenantID, userID, missionID string) (*model.MissionProgress, error) {
	var progress model.MissionProgress
	err := r.DB.
		Where("tenant_id = ? AND user_id = ? AND mission_id = ?", tenantID, userID, missionID).
		First(&progress).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &progress, nil
}

func (r *MissionRepository) ListProgress(tenantID, userID string) ([]model.MissionProgress, error) {
	var progress []model.MissionProgress
	err := r.DB.Where("tenant_id = ? AND user_id = ?", tenantID, userID).Find(&progress).Error
	return progress, err
}

// UpsertProgress 按(tenant_id, user_id, mission_id)唯一键写入任务进度
func (r *MissionRepository) UpsertProgress(progress *model.MissionProgress) error {
	res := r.DB.Model(&model.MissionProgress{}).
		Where("tenant_id = ? AND user_id = ? AND mission_id = ?",
			progress.TenantID, progress.UserID, progress.MissionID).
		Updates(map[string]interface{}{
			"status":          progress.Status,
			"checklist_state": progress.ChecklistState,
			"started_at":      progress.StartedAt,
			"completed_at":    progress.CompletedAt,
			"xp_earned":       progress.XPEarned,
			"help_used":       progress.HelpUsed,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// MySQL对值未变化的UPDATE报告0行，需再确认行是否存在
		var count int64
		if err := r.DB.Model(&model.MissionProgress{}).
			Where("tenant_id = ? AND user_id = ? AND mission_id = ?",
				progress.TenantID, progress.UserID, progress.MissionID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return r.DB.Create(progress).Error
		}
	}
	return nil
}
