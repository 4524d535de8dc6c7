package model

import (
	"time"
)

// Course 课程：有序模块集合 + 描述信息
type Course struct {
	UUIDBase
	TeacherID         uint           `gorm:"index;not null" json:"teacherId"`
	Title             string         `gorm:"size:255;not null" json:"title"`
	Description       string         `gorm:"type:text" json:"description"`
	Subject           string         `gorm:"size:100" json:"subject"`
	GradeLevel        string         `gorm:"size:50" json:"gradeLevel"`
	Difficulty        string         `gorm:"size:20" json:"difficulty"`
	EstimatedDuration int            `gorm:"default:0" json:"estimatedDuration"` // 分钟
	IsPublished       bool           `gorm:"default:false;index" json:"isPublished"`
	PublishAt         *time.Time     `gorm:"index" json:"publishAt,omitempty"` // 定时发布
	Modules           []CourseModule `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"modules,omitempty"`
}

func (Course) TableName() string {
	return "courses"
}
