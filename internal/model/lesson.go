package model

import "time"

// Course 课程目录条目；课程的全部课时完成后整体发放课程XP
// swagger:model Course
type Course struct {
	UUIDBase
	TenantID   string `gorm:"size:36;index;not null" json:"tenantId"`
	Title      string `gorm:"size:255;not null" json:"title"`
	Icon       string `gorm:"size:16" json:"icon"`
	XPReward   int    `gorm:"column:xp_reward;default:0" json:"xpReward"`
	OrderIndex int    `gorm:"default:0" json:"orderIndex"`
}

func (Course) TableName() string {
	return "academy_courses"
}

// Lesson 课时目录条目（内容编辑不在本服务范围内，只读）
// swagger:model Lesson
type Lesson struct {
	UUIDBase
	TenantID   string  `gorm:"size:36;index;not null" json:"tenantId"`
	CourseID   string  `gorm:"size:36;index" json:"courseId"`
	Title      string  `gorm:"size:255;not null" json:"title"`
	VideoURL   string  `gorm:"size:512" json:"videoUrl"`
	Duration   float64 `gorm:"default:0" json:"duration"` // 视频时长（秒）
	XPReward   int     `gorm:"column:xp_reward;default:0" json:"xpReward"`
	OrderIndex int     `gorm:"default:0" json:"orderIndex"`
}

func (Lesson) TableName() string {
	return "academy_lessons"
}

// LessonProgress 每(租户,用户,课时)一行的观看/测验进度。
// 状态只能单调前进：not_started → in_progress → completed，completed为终态。
// maxWatchedTime 只增不减；未完成时快进寻址会被钳制到该值。
// swagger:model LessonProgress
type LessonProgress struct {
	UUIDBase
	TenantID            string         `gorm:"size:36;uniqueIndex:idx_lesson_progress;not null" json:"tenantId"`
	UserID              string         `gorm:"size:36;uniqueIndex:idx_lesson_progress;not null" json:"userId"`
	LessonID            string         `gorm:"size:36;uniqueIndex:idx_lesson_progress;not null" json:"lessonId"`
	Status              ProgressStatus `gorm:"size:20;default:'not_started'" json:"status"`
	VideoWatchedPercent int            `gorm:"default:0" json:"videoWatchedPercent"`
	VideoCurrentTime    float64        `gorm:"default:0" json:"videoCurrentTime"`
	MaxWatchedTime      float64        `gorm:"default:0" json:"maxWatchedTime"`
	QuizBestScore       int            `gorm:"default:0" json:"quizBestScore"`
	QuizCompleted       bool           `gorm:"default:false" json:"quizCompleted"`
	XPEarned            int            `gorm:"column:xp_earned;default:0" json:"xpEarned"`
	CompletedAt         *time.Time     `json:"completedAt,omitempty"`
}

func (LessonProgress) TableName() string {
	return "academy_lesson_progress"
}

// QuizUnlocked 观看进度是否已解锁测验
func (p *LessonProgress) QuizUnlocked(unlockPercent int) bool {
	return p.Status == StatusCompleted || p.VideoWatchedPercent >= unlockPercent
}
