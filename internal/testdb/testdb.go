// Package testdb 为仓储层与服务层测试提供基于 SQLite 内存库的 GORM 连接。
//
// 每个测试使用独立的共享缓存内存库，连接池限制为 1：事务期间只能通过
// 事务连接访问数据库，与生产环境 PostgreSQL 的行锁语义在串行化效果上一致。
package testdb

import (
	"fmt"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"acadcore/cbcs/internal/model"
)

// Open 打开并迁移一个测试专用数据库，测试结束时自动关闭
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("打开测试数据库失败: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("获取底层连接失败: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&model.AllocationCycle{},
		&model.SubjectOffering{},
		&model.SectionCapacity{},
		&model.StudentPreference{},
		&model.FinalAssignment{},
	); err != nil {
		t.Fatalf("AutoMigrate 失败: %v", err)
	}

	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// SectionSeed 测试用班级定义
type SectionSeed struct {
	SectionID string
	StaffID   string
	Capacity  int
}

// SeedCycle 创建一个只含一门课程的 OPEN 轮次
func SeedCycle(t testing.TB, db *gorm.DB, expectedTotal int, policy string, sections ...SectionSeed) *model.AllocationCycle {
	t.Helper()

	subject := model.SubjectOffering{
		CourseCode: "CS-E1",
		Title:      "Elective I",
		Credits:    3,
		Bucket:     "PE-1",
	}
	for i, s := range sections {
		subject.Sections = append(subject.Sections, model.SectionCapacity{
			SectionID:   s.SectionID,
			SectionName: fmt.Sprintf("Section %d", i+1),
			StaffID:     s.StaffID,
			MaxCapacity: s.Capacity,
			SortOrder:   i,
		})
	}

	cycle := &model.AllocationCycle{
		Name:          "CSE 2026 Sem 5",
		BatchID:       "11111111-1111-1111-1111-111111111111",
		DepartmentID:  "22222222-2222-2222-2222-222222222222",
		SemesterID:    "33333333-3333-3333-3333-333333333333",
		ExpectedTotal: expectedTotal,
		State:         model.CycleStateOpen,
		Policy:        policy,
		Subjects:      []model.SubjectOffering{subject},
	}
	if err := db.Create(cycle).Error; err != nil {
		t.Fatalf("创建测试轮次失败: %v", err)
	}
	return cycle
}
