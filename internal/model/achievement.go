package model

import "time"

const (
	AchievementFirstModule    = "first_module"
	AchievementTenModules     = "ten_modules"
	AchievementCourseComplete = "course_complete"
)

type Achievement struct {
	BaseModel
	UserID   uint   `gorm:"uniqueIndex:idx_user_achievement;not null" json:"userId"`
	Code     string `gorm:"size:50;uniqueIndex:idx_user_achievement;not null" json:"code"`
	Name     string `gorm:"size:100;not null" json:"name"`
	Icon     string `gorm:"size:50" json:"icon"`
	Points   int    `gorm:"default:0" json:"points"`
	CourseID string `gorm:"size:36;uniqueIndex:idx_user_achievement" json:"courseId,omitempty"` // 课程类成就
}

func (Achievement) TableName() string {
	return "achievements"
}

// ModuleCompletion 每个 (用户, 模块) 只记录一次
type ModuleCompletion struct {
	ID           uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       uint       `gorm:"uniqueIndex:idx_user_module;not null" json:"userId"`
	ModuleID     string     `gorm:"size:36;uniqueIndex:idx_user_module;not null" json:"moduleId"`
	CourseID     string     `gorm:"size:36;index;not null" json:"courseId"`
	ModuleType   ModuleType `gorm:"size:20" json:"moduleType"`
	Minutes      int        `gorm:"default:0" json:"minutes"`
	PointsEarned int        `gorm:"default:0" json:"pointsEarned"`
	Score        *int       `json:"score,omitempty"`
	CreatedAt    time.Time  `gorm:"index" json:"createdAt"`
}

func (ModuleCompletion) TableName() string {
	return "module_completions"
}
