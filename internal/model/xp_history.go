package model

// XPHistory 只追加的XP流水，连续天数重算以此为事实来源。
// 永不更新或删除。
// swagger:model XPHistory
type XPHistory struct {
	UUIDBase
	TenantID    string `gorm:"size:36;index:idx_xp_history_tenant_user;not null" json:"tenantId"`
	UserID      string `gorm:"size:36;index:idx_xp_history_tenant_user;not null" json:"userId"`
	Amount      int    `gorm:"column:xp_amount;not null" json:"xpAmount"`
	SourceType  string `gorm:"size:50;not null" json:"sourceType"`
	SourceID    string `gorm:"size:36" json:"sourceId,omitempty"`
	Description string `gorm:"size:255" json:"description"`
}

func (XPHistory) TableName() string {
	return "academy_xp_history"
}
