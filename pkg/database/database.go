package database

import (
	"academy_backend/internal/config"
	"academy_backend/internal/model"
	"fmt"
	"log"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDB 连接远程权威库（MySQL）；迁移由调用方按需执行
func InitDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=Local",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.DBName,
		cfg.Charset,
		cfg.ParseTime,
	)

	// 跳过启动期握手：远程库宕机时服务仍要以离线模式起来
	db, err := gorm.Open(mysql.New(mysql.Config{
		DSN:                       dsn,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		Logger:               logger.Default.LogMode(logger.Warn),
		DisableAutomaticPing: true,
	})

	if err != nil {
		return nil, err
	}

	log.Println("Database connection established")

	return db, nil
}

// Migrate 迁移远程库的全部表
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.UserProgress{},
		&model.Level{},
		&model.Course{},
		&model.Lesson{},
		&model.LessonProgress{},
		&model.Mission{},
		&model.MissionProgress{},
		&model.XPHistory{},
	)
}
