package model

import "sort"

// Level 等级目录条目，按租户共享只读；level 1 的门槛恒为 0
// swagger:model Level
type Level struct {
	UUIDBase
	TenantID    string `gorm:"size:36;uniqueIndex:idx_level_tenant_number;not null" json:"tenantId"`
	LevelNumber int    `gorm:"uniqueIndex:idx_level_tenant_number;not null" json:"levelNumber"`
	Name        string `gorm:"size:100;not null" json:"name"`
	Color       string `gorm:"size:7" json:"color"`
	Icon        string `gorm:"size:16" json:"icon"`
	XPRequired  int    `gorm:"column:xp_required;default:0" json:"xpRequired"`
}

func (Level) TableName() string {
	return "academy_levels"
}

// DefaultLevels 内置四档等级目录。远程目录不可达时的兜底，
// 保证等级换算永远不会阻塞在目录拉取上。
func DefaultLevels() []Level {
	return []Level{
		{LevelNumber: 1, Name: "Explorador", Color: "#06b6d4", Icon: "🔍", XPRequired: 0},
		{LevelNumber: 2, Name: "Conhecedor", Color: "#0891b2", Icon: "📚", XPRequired: 500},
		{LevelNumber: 3, Name: "Especialista", Color: "#0e7490", Icon: "🎯", XPRequired: 1500},
		{LevelNumber: 4, Name: "Mestre", Color: "#164e63", Icon: "👑", XPRequired: 3500},
	}
}

// LevelTable 纯函数等级查找表，构造后不可变
type LevelTable struct {
	levels []Level
}

// NewLevelTable 按 xpRequired 升序整理目录；空目录回退到内置默认值
func NewLevelTable(levels []Level) *LevelTable {
	if len(levels) == 0 {
		levels = DefaultLevels()
	}
	sorted := make([]Level, len(levels))
	copy(sorted, levels)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].XPRequired < sorted[j].XPRequired
	})
	return &LevelTable{levels: sorted}
}

// Levels 返回目录副本
func (t *LevelTable) Levels() []Level {
	out := make([]Level, len(t.levels))
	copy(out, t.levels)
	return out
}

// LevelForXP 返回 xpRequired <= totalXP 的最高等级；负数XP兜底为第一级
func (t *LevelTable) LevelForXP(totalXP int) Level {
	result := t.levels[0]
	for _, l := range t.levels {
		if totalXP >= l.XPRequired {
			result = l
		} else {
			break
		}
	}
	return result
}

// NextLevel 返回 levelNumber+1 的等级，最高级时 ok 为 false
func (t *LevelTable) NextLevel(level Level) (Level, bool) {
	for _, l := range t.levels {
		if l.LevelNumber == level.LevelNumber+1 {
			return l, true
		}
	}
	return Level{}, false
}

// XPRange 返回等级的XP区间 [min, max]；最高级无上界，max 返回 -1
func (t *LevelTable) XPRange(level Level) (min, max int) {
	min = level.XPRequired
	if next, ok := t.NextLevel(level); ok {
		return min, next.XPRequired - 1
	}
	return min, -1
}

// ProgressPercent 当前等级区间内的完成百分比，最高级恒为100
func (t *LevelTable) ProgressPercent(totalXP int) int {
	curr := t.LevelForXP(totalXP)
	next, ok := t.NextLevel(curr)
	if !ok {
		return 100
	}
	span := next.XPRequired - curr.XPRequired
	if span <= 0 {
		return 100
	}
	pct := (totalXP - curr.XPRequired) * 100 / span
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return pct
}
