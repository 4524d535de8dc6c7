package testutil

import (
	"fmt"
	"sage_edu_backend/internal/model"
	"sage_edu_backend/pkg/database"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// DB 每个测试一个独立的内存 SQLite 库，表结构与线上一致
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		tb.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	tb.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		tb.Fatalf("migrate: %v", err)
	}
	return db
}

func CreateUser(tb testing.TB, db *gorm.DB, name string, role model.UserRole) *model.User {
	tb.Helper()
	user := &model.User{
		Name:     name,
		Email:    fmt.Sprintf("%s-%s@example.com", name, uuid.New().String()[:8]),
		Password: "hashed",
		Role:     role,
	}
	if err := db.Create(user).Error; err != nil {
		tb.Fatalf("create user: %v", err)
	}
	return user
}

func CreateCourse(tb testing.TB, db *gorm.DB, teacherID uint, title string) *model.Course {
	tb.Helper()
	course := &model.Course{
		TeacherID: teacherID,
		Title:     title,
		Subject:   "Math",
	}
	if err := db.Create(course).Error; err != nil {
		tb.Fatalf("create course: %v", err)
	}
	return course
}

func CreateModule(tb testing.TB, db *gorm.DB, courseID string, t model.ModuleType, position int) *model.CourseModule {
	tb.Helper()
	m := &model.CourseModule{
		CourseID:         courseID,
		ModuleType:       t,
		Title:            model.DefaultModuleTitle(t),
		TimelinePosition: position,
		DurationMinutes:  5,
	}
	if err := db.Create(m).Error; err != nil {
		tb.Fatalf("create module: %v", err)
	}
	return m
}
