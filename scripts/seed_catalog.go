// 手动初始化演示目录数据脚本
//
// 等级目录在首次请求时会惰性写入默认值，课程/课时/任务目录
// 则由内容团队维护。此脚本仅用于本地开发或演示环境一键造数。
//
// 用法: go run scripts/seed_catalog.go -tenant demo
package main

import (
	"academy_backend/internal/config"
	"academy_backend/internal/model"
	"academy_backend/internal/repository"
	"academy_backend/pkg/database"
	"academy_backend/pkg/logger"
	"encoding/json"
	"flag"
	"log"
	"os"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

func main() {
	tenantID := flag.String("tenant", "demo", "目标租户ID")
	flag.Parse()

	data, err := os.ReadFile("configs/config.yaml")
	if err != nil {
		log.Fatalf("无法读取配置文件: %v", err)
	}

	var cfg config.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		log.Fatalf("解析配置文件失败: %v", err)
	}

	logger.InitLogger(cfg.Server.Mode)

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("数据库迁移失败: %v", err)
	}

	log.Printf("为租户 %s 初始化演示目录...", *tenantID)

	levelRepo := repository.NewLevelRepository(db)
	levels, err := levelRepo.ListByTenant(*tenantID)
	if err != nil {
		log.Fatalf("读取等级目录失败: %v", err)
	}
	if len(levels) == 0 {
		if _, err := levelRepo.SeedDefaults(*tenantID); err != nil {
			log.Fatalf("写入等级目录失败: %v", err)
		}
		log.Println("等级目录已写入")
	} else {
		log.Println("等级目录已存在，跳过")
	}

	var courseCount int64
	if err := db.Model(&model.Course{}).Where("tenant_id = ?", *tenantID).Count(&courseCount).Error; err != nil {
		log.Fatalf("读取课程目录失败: %v", err)
	}
	if courseCount == 0 {
		seedCourses(db, *tenantID)
		log.Println("课程与课时目录已写入")
	} else {
		log.Println("课程目录已存在，跳过")
	}

	var missionCount int64
	if err := db.Model(&model.Mission{}).Where("tenant_id = ?", *tenantID).Count(&missionCount).Error; err != nil {
		log.Fatalf("读取任务目录失败: %v", err)
	}
	if missionCount == 0 {
		seedMissions(db, *tenantID)
		log.Println("任务目录已写入")
	} else {
		log.Println("任务目录已存在，跳过")
	}

	log.Println("完成！")
}

func seedCourses(db *gorm.DB, tenantID string) {
	course := &model.Course{
		TenantID:   tenantID,
		Title:      "Primeiros Passos",
		Icon:       "🚀",
		XPReward:   200,
		OrderIndex: 1,
	}
	if err := db.Create(course).Error; err != nil {
		log.Fatalf("写入课程失败: %v", err)
	}

	lessons := []model.Lesson{
		{TenantID: tenantID, CourseID: course.ID, Title: "Bem-vindo à plataforma",
			Duration: 180, XPReward: 50, OrderIndex: 1},
		{TenantID: tenantID, CourseID: course.ID, Title: "Configurando seu perfil",
			Duration: 240, XPReward: 50, OrderIndex: 2},
		{TenantID: tenantID, CourseID: course.ID, Title: "Sua primeira venda",
			Duration: 420, XPReward: 100, OrderIndex: 3},
	}
	for i := range lessons {
		if err := db.Create(&lessons[i]).Error; err != nil {
			log.Fatalf("写入课时失败: %v", err)
		}
	}
}

func seedMissions(db *gorm.DB, tenantID string) {
	onboarding := []model.ChecklistItem{
		{ID: "watch-intro", Text: "Assistir ao vídeo de introdução", Required: true},
		{ID: "complete-profile", Text: "Completar o perfil", Required: true},
		{ID: "join-community", Text: "Entrar na comunidade", Required: false},
	}
	onboardingRaw, _ := json.Marshal(onboarding)
	first := &model.Mission{
		TenantID:      tenantID,
		Title:         "Onboarding",
		Description:   "Conheça a plataforma e prepare sua conta.",
		Icon:          "🎯",
		XPReward:      100,
		Type:          "tutorial",
		OrderIndex:    1,
		EstimatedTime: 15,
		Requirements:  onboardingRaw,
	}
	if err := db.Create(first).Error; err != nil {
		log.Fatalf("写入任务失败: %v", err)
	}

	sale := []model.ChecklistItem{
		{ID: "create-product", Text: "Cadastrar um produto", Required: true},
		{ID: "share-link", Text: "Compartilhar o link de venda", Required: true},
	}
	saleRaw, _ := json.Marshal(sale)
	prereqRaw, _ := json.Marshal([]string{first.ID})
	second := &model.Mission{
		TenantID:      tenantID,
		Title:         "Primeira venda",
		Description:   "Coloque um produto no ar e faça sua primeira venda.",
		Icon:          "💰",
		XPReward:      250,
		Type:          "practice",
		OrderIndex:    2,
		EstimatedTime: 60,
		Requirements:  saleRaw,
		Prerequisites: prereqRaw,
	}
	if err := db.Create(second).Error; err != nil {
		log.Fatalf("写入任务失败: %v", err)
	}
}
