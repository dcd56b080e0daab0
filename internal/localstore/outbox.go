package localstore

import (
	"academy_backend/internal/model"
	"encoding/json"
	"time"

	"gorm.io/gorm/clause"
)

// 待发写入的类别
const (
	OutboxProgress = "progress"
	OutboxLesson   = "lesson"
	OutboxMission  = "mission"
	OutboxHistory  = "history"
)

// OutboxEntry 远程写入失败后留在本地的待补偿写入。
// 在每次重连或后续进度事件时机会性重放，替代"等下一次事件碰巧触发"的丢失风险。
type OutboxEntry struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	TenantID  string `gorm:"size:36;index:idx_outbox_tenant_user;uniqueIndex:idx_outbox_ref"`
	UserID    string `gorm:"size:36;index:idx_outbox_tenant_user;uniqueIndex:idx_outbox_ref"`
	Kind      string `gorm:"size:20;uniqueIndex:idx_outbox_ref"`
	RefID     string `gorm:"size:64;uniqueIndex:idx_outbox_ref"`
	Payload   []byte `gorm:"not null"`
	CreatedAt time.Time
}

func (OutboxEntry) TableName() string {
	return "cache_outbox"
}

// Enqueue 记录一条待发写入。进度类条目按(kind, refID)去重保留最新快照，
// 流水类条目(refID唯一)只追加。
func (s *Store) Enqueue(sctx model.SyncContext, kind, refID string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	entry := OutboxEntry{
		TenantID: sctx.TenantID,
		UserID:   sctx.UserID,
		Kind:     kind,
		RefID:    refID,
		Payload:  raw,
	}
	return s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "user_id"}, {Name: "kind"}, {Name: "ref_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload"}),
	}).Create(&entry).Error
}

// Pending 按入队顺序返回某(租户,用户)的全部待发写入
func (s *Store) Pending(sctx model.SyncContext) ([]OutboxEntry, error) {
	var entries []OutboxEntry
	err := s.DB.
		Where("tenant_id = ? AND user_id = ?", sctx.TenantID, sctx.UserID).
		Order("id").
		Find(&entries).Error
	return entries, err
}

// PendingAll 返回全部租户/用户的待发写入，连接恢复时整体重放
func (s *Store) PendingAll() ([]OutboxEntry, error) {
	var entries []OutboxEntry
	err := s.DB.Order("id").Find(&entries).Error
	return entries, err
}

// Ack 确认一条待发写入已成功重放
func (s *Store) Ack(id uint) error {
	return s.DB.Delete(&OutboxEntry{}, "id = ?", id).Error
}
