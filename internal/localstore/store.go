package localstore

import (
	"academy_backend/internal/model"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 缓存键的实体类别段
const (
	KindProgress      = "progress"
	KindLesson        = "lesson"
	KindMission       = "mission"
	KindActivityDates = "activity_dates"
	KindLevels        = "levels"
	KindCatalog       = "catalog"
)

// Entry 本地缓存的一条键值记录，value 为JSON编码
type Entry struct {
	Key       string    `gorm:"primaryKey;size:255"`
	Value     []byte    `gorm:"not null"`
	UpdatedAt time.Time `gorm:"index"`
}

func (Entry) TableName() string {
	return "cache_entries"
}

// Store 本地缓存库。每个(租户,用户,类别)的条目共享一个稳定前缀，
// 支持按前缀整体清除（用户主动重置）。仅当前进程写入，无需跨进程锁。
type Store struct {
	DB *gorm.DB
}

func NewStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&Entry{}, &OutboxEntry{}); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

// Key 构造 tenant/user/kind[/id] 形式的缓存键
func Key(sctx model.SyncContext, kind string, parts ...string) string {
	segs := append([]string{sctx.TenantID, sctx.UserID, kind}, parts...)
	return strings.Join(segs, "/")
}

// Prefix 返回某(租户,用户)下全部条目的键前缀
func Prefix(sctx model.SyncContext) string {
	return sctx.TenantID + "/" + sctx.UserID + "/"
}

// Get 读取并解码一个条目，found 为 false 表示键不存在
func (s *Store) Get(key string, out interface{}) (found bool, err error) {
	var entry Entry
	if err := s.DB.First(&entry, "`key` = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(entry.Value, out); err != nil {
		return false, err
	}
	return true, nil
}

// Put 编码并写入一个条目（存在即覆盖）
func (s *Store) Put(key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	entry := Entry{Key: key, Value: raw, UpdatedAt: time.Now()}
	return s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
}

func (s *Store) Delete(key string) error {
	return s.DB.Delete(&Entry{}, "`key` = ?", key).Error
}

// Keys 列出某前缀下的全部键
func (s *Store) Keys(prefix string) ([]string, error) {
	var keys []string
	err := s.DB.Model(&Entry{}).
		Where("`key` LIKE ?", prefix+"%").
		Order("`key`").
		Pluck("`key`", &keys).Error
	return keys, err
}

// ClearPrefix 清除某前缀下的全部条目及未同步的待发写入
func (s *Store) ClearPrefix(sctx model.SyncContext) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&Entry{}, "`key` LIKE ?", Prefix(sctx)+"%").Error; err != nil {
			return err
		}
		return tx.Delete(&OutboxEntry{}, "tenant_id = ? AND user_id = ?", sctx.TenantID, sctx.UserID).Error
	})
}
