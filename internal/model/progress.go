package model

// UserProgress 每个(租户,用户)一行的累计进度。
// 只通过进度引擎的 addXp 事务变更；totalXp 与 currentLevel 单调不减。
// swagger:model UserProgress
type UserProgress struct {
	UUIDBase
	TenantID          string `gorm:"size:36;uniqueIndex:idx_progress_tenant_user;not null" json:"tenantId"`
	UserID            string `gorm:"size:36;uniqueIndex:idx_progress_tenant_user;not null" json:"userId"`
	TotalXP           int    `gorm:"column:total_xp;default:0" json:"totalXp"`
	CurrentLevel      int    `gorm:"default:1" json:"currentLevel"`
	CoursesCompleted  int    `gorm:"default:0" json:"coursesCompleted"`
	LessonsCompleted  int    `gorm:"default:0" json:"lessonsCompleted"`
	MissionsCompleted int    `gorm:"default:0" json:"missionsCompleted"`
	CurrentStreak     int    `gorm:"default:0" json:"currentStreak"`
	LongestStreak     int    `gorm:"default:0" json:"longestStreak"`
	// 日历日，格式 YYYY-MM-DD，统一按UTC归一化
	LastActivityDate string `gorm:"size:10" json:"lastActivityDate"`
}

func (UserProgress) TableName() string {
	return "academy_user_progress"
}

// NewUserProgress 首次活动时惰性创建的零值进度
func NewUserProgress(tenantID, userID string) *UserProgress {
	return &UserProgress{
		TenantID:     tenantID,
		UserID:       userID,
		TotalXP:      0,
		CurrentLevel: 1,
	}
}

// XPAwardResult addXp 事务的返回值，调用方据此触发升级反馈
// swagger:model XPAwardResult
type XPAwardResult struct {
	NewTotalXP int  `json:"newTotalXp"`
	LeveledUp  bool `json:"leveledUp"`
	// 仅在升级时返回新等级号
	NewLevel int `json:"newLevel,omitempty"`
	Synced   bool `json:"synced"` // false 表示本次仅写入本地，等待补偿同步
}

// Streak 连续学习天数的展示视图
// swagger:model Streak
type Streak struct {
	Current          int    `json:"current"`
	Longest          int    `json:"longest"`
	LastActivityDate string `json:"lastActivityDate"`
	// 最近7天是否有活动，索引0为6天前，索引6为今天
	WeekHistory []bool `json:"weekHistory"`
}

// UserStats 仪表盘聚合数据
// swagger:model UserStats
type UserStats struct {
	XP struct {
		Current    int `json:"current"`
		NextLevel  int `json:"nextLevel"`
		Percentage int `json:"percentage"`
	} `json:"xp"`
	Courses struct {
		Completed  int `json:"completed"`
		InProgress int `json:"inProgress"`
		Total      int `json:"total"`
	} `json:"courses"`
	Missions struct {
		Completed int `json:"completed"`
		Available int `json:"available"`
	} `json:"missions"`
	Badges struct {
		Earned int `json:"earned"`
		Total  int `json:"total"`
	} `json:"badges"`
}
