package model

import (
	"encoding/json"
	"time"
)

// ChecklistItem 任务的原子子项；required 项全部勾选后才允许完成任务
// swagger:model ChecklistItem
type ChecklistItem struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Required bool   `json:"required"`
}

// Mission 任务目录条目（内容编辑不在本服务范围内，只读）
// swagger:model Mission
type Mission struct {
	UUIDBase
	TenantID      string          `gorm:"size:36;index;not null" json:"tenantId"`
	Title         string          `gorm:"size:255;not null" json:"title"`
	Description   string          `gorm:"type:text" json:"description"`
	Icon          string          `gorm:"size:16" json:"icon"`
	XPReward      int             `gorm:"column:xp_reward;default:0" json:"xpReward"`
	Type          string          `gorm:"size:50;default:'tutorial'" json:"type"`
	Category      string          `gorm:"size:100" json:"category"`
	OrderIndex    int             `gorm:"default:0" json:"orderIndex"`
	EstimatedTime int             `gorm:"default:0" json:"estimatedTime"` // 预计耗时（分钟）
	Requirements  json.RawMessage `gorm:"type:json" json:"requirements"`  // ChecklistItem 数组
	Prerequisites json.RawMessage `gorm:"type:json" json:"prerequisites"` // 前置任务ID数组
	Deadline      *time.Time      `json:"deadline,omitempty"`
}

func (Mission) TableName() string {
	return "academy_missions"
}

// ChecklistItems 解码清单定义；requirements 为空时返回空切片
func (m *Mission) ChecklistItems() ([]ChecklistItem, error) {
	if len(m.Requirements) == 0 {
		return nil, nil
	}
	var items []ChecklistItem
	if err := json.Unmarshal(m.Requirements, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// PrerequisiteIDs 解码前置任务ID列表
func (m *Mission) PrerequisiteIDs() ([]string, error) {
	if len(m.Prerequisites) == 0 {
		return nil, nil
	}
	var ids []string
	if err := json.Unmarshal(m.Prerequisites, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// MissionProgress 每(租户,用户,任务)一行的任务进度。
// completed 为终态；重复完成返回既有 xpEarned，不再发放XP。
// swagger:model MissionProgress
type MissionProgress struct {
	UUIDBase
	TenantID       string          `gorm:"size:36;uniqueIndex:idx_mission_progress;not null" json:"tenantId"`
	UserID         string          `gorm:"size:36;uniqueIndex:idx_mission_progress;not null" json:"userId"`
	MissionID      string          `gorm:"size:36;uniqueIndex:idx_mission_progress;not null" json:"missionId"`
	Status         ProgressStatus  `gorm:"size:20;default:'locked'" json:"status"`
	ChecklistState json.RawMessage `gorm:"type:json" json:"checklistState"` // item id -> bool
	StartedAt      *time.Time      `json:"startedAt,omitempty"`
	CompletedAt    *time.Time      `json:"completedAt,omitempty"`
	XPEarned       int             `gorm:"column:xp_earned;default:0" json:"xpEarned"`
	HelpUsed       bool            `gorm:"default:false" json:"helpUsed"`
}

func (MissionProgress) TableName() string {
	return "academy_mission_progress"
}

// Checklist 解码勾选状态；空值返回空map
func (p *MissionProgress) Checklist() map[string]bool {
	state := map[string]bool{}
	if len(p.ChecklistState) > 0 {
		// 损坏的JSON按空状态处理，不阻塞用户
		_ = json.Unmarshal(p.ChecklistState, &state)
	}
	return state
}

// SetChecklist 序列化勾选状态
func (p *MissionProgress) SetChecklist(state map[string]bool) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	p.ChecklistState = raw
	return nil
}
