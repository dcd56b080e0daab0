package repository

import (
	"academy_backend/internal/model"
	"errors"

	"gorm.io/gorm"
)

type LessonRepository struct {
	DB *gorm.DB
}

func NewLessonRepository(db *gorm.DB) *LessonRepository {
	return &LessonRepository{DB: db}
}

func (r *LessonRepository) FindByID(tenantID, lessonID string) (*model.Lesson, error) {
	var lesson model.Lesson
	err := r.DB.Where("tenant_id = ? AND id = ?", tenantID, lessonID).First(&lesson).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &lesson, nil
}

func (r *LessonRepository) ListByTenant(tenantID string) ([]model.Lesson, error) {
	var lessons []model.Lesson
	err := r.DB.Where("tenant_id = ?", tenantID).Order("course_id, order_index").Find(&lessons).Error
	return lessons, err
}

func (r *LessonRepository) FindCourse(tenantID, courseID string) (*model.Course, error) {
	var course model.Course
	err := r.DB.Where("tenant_id = ? AND id = ?", tenantID, courseID).First(&course).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &course, nil
}

func (r *LessonRepository) CountCourses(tenantID string) (int64, error) {
	var count int64
	err := r.DB.Model(&model.Course{}).Where("tenant_id = ?", tenantID).Count(&count).Error
	return count, err
}

// CountCoursesInProgress 统计该用户存在进行中课时的课程数
func (r *LessonRepository) CountCoursesInProgress(tenantID, userID string) (int64, error) {
	var count int64
	err := r.DB.Model(&model.Lesson{}).
		Joins("JOIN academy_lesson_progress lp ON lp.lesson_id = academy_lessons.id AND lp.tenant_id = academy_lessons.tenant_id").
		Where("academy_lessons.tenant_id = ? AND lp.user_id = ? AND lp.status = ?",
			tenantID, userID, model.StatusInProgress).
		Distinct("academy_lessons.course_id").
		Count(&count).Error
	return count, err
}

// CountPendingInCourse 统计课程内该用户尚未完成的课时数
func (r *LessonRepository) CountPendingInCourse(tenantID, userID, courseID string) (int64, error) {
	var count int64
	err := r.DB.Model(&model.Lesson{}).
		Where("academy_lessons.tenant_id = ? AND academy_lessons.course_id = ?", tenantID, courseID).
		Where("academy_lessons.id NOT IN (?)",
			r.DB.Model(&model.LessonProgress{}).
				Select("lesson_id").
				Where("tenant_id = ? AND user_id = ? AND status = ?", tenantID, userID, model.StatusCompleted),
		).
		Count(&count).Error
	return count, err
}

func (r *LessonRepository) GetProgress(tenantID, userID, lessonID string) (*model.LessonProgress, error) {
	var progress model.LessonProgress
	err := r.DB.
		Where("tenant_id = ? AND user_id = ? AND lesson_id = ?", tenantID, userID, lessonID).
		First(&progress).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &progress, nil
}

func (r *LessonRepository) ListProgress(tenantID, userID string) ([]model.LessonProgress, error) {
	var progress []model.LessonProgress
	err := r.DB.Where("tenant_id = ? AND user_id = ?", tenantID, userID).Find(&progress).Error
	return progress, err
}

// UpsertProgress 按(tenant_id, user_id, lesson_id)唯一键写入课时进度
func (r *LessonRepository) UpsertProgress(progress *model.LessonProgress) error {
	res := r.DB.Model(&model.LessonProgress{}).
		Where("tenant_id = ? AND user_id = ? AND lesson_id = ?",
			progress.TenantID, progress.UserID, progress.LessonID).
		Updates(map[string]interface{}{
			"status":                progress.Status,
			"video_watched_percent": progress.VideoWatchedPercent,
			"video_current_time":    progress.VideoCurrentTime,
			"max_watched_time":      progress.MaxWatchedTime,
			"quiz_best_score":       progress.QuizBestScore,
			"quiz_completed":        progress.QuizCompleted,
			"xp_earned":             progress.XPEarned,
			"completed_at":          progress.CompletedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// MySQL对值未变化的UPDATE报告0行，需再确认行是否存在
		var count int64
		if err := r.DB.Model(&model.LessonProgress{}).
			Where("tenant_id = ? AND user_id = ? AND lesson_id = ?",
				progress.TenantID, progress.UserID, progress.LessonID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return r.DB.Create(progress).Error
		}
	}
	return nil
}
