package util

const (
	DateFormat = "2006-01-02"
	TimeFormat = "2006-01-02 15:04:05"
)

// XP来源类型，同时决定 addXp 事务中累加哪个完成计数器
const (
	XPSourceLesson  = "lesson"
	XPSourceCourse  = "course"
	XPSourceMission = "mission"
	XPSourceBadge   = "badge"
	XPSourceStreak  = "streak"
	XPSourceBonus   = "bonus"
)

// 课时/测验门槛
const (
	QuizUnlockPercent = 90 // 视频观看进度超过该百分比后解锁测验
	QuizPassScore     = 70 // 测验及格分（百分制）

	// SeekToleranceSeconds 播放位置超出已观看最远点该秒数以上判定为快进寻址
	SeekToleranceSeconds = 2.0
)

// 流水查询上限
const (
	DefaultXPHistoryLimit = 50
	StreakHistoryLimit    = 1000 // 重算连续天数时最多回看的流水条数
	LocalActivityDatesMax = 400  // 本地缓存保留的活动日期数量上限
)
