package model

import (
	"fmt"

	"gorm.io/datatypes"
)

type ModuleType string

const (
	ModuleContent    ModuleType = "content"
	ModuleQuiz       ModuleType = "quiz"
	ModuleGame       ModuleType = "game"
	ModuleVideo      ModuleType = "video"
	ModuleImage      ModuleType = "image"
	ModuleAssessment ModuleType = "assessment"
)

// ModuleTypeInfo 模块类型的展示信息（组件面板与模块卡片共用）
type ModuleTypeInfo struct {
	Type  ModuleType `json:"type"`
	Label string     `json:"label"`
	Icon  string     `json:"icon"`
	Color string     `json:"color"`
}

var moduleTypes = []ModuleTypeInfo{
	{Type: ModuleContent, Label: "Content", Icon: "📖", Color: "blue"},
	{Type: ModuleQuiz, Label: "Quiz", Icon: "❓", Color: "purple"},
	{Type: ModuleGame, Label: "Game", Icon: "🎮", Color: "green"},
	{Type: ModuleVideo, Label: "Video", Icon: "🎬", Color: "red"},
	{Type: ModuleImage, Label: "Image", Icon: "🖼️", Color: "orange"},
	{Type: ModuleAssessment, Label: "Assessment", Icon: "📝", Color: "teal"},
}

// ModuleTypes 返回固定顺序的模块类型目录，返回值是副本
func ModuleTypes() []ModuleTypeInfo {
	out := make([]ModuleTypeInfo, len(moduleTypes))
	copy(out, moduleTypes)
	return out
}

func LookupModuleType(t ModuleType) (ModuleTypeInfo, bool) {
	for _, info := range moduleTypes {
		if info.Type == t {
			return info, true
		}
	}
	return ModuleTypeInfo{}, false
}

func (t ModuleType) Valid() bool {
	_, ok := LookupModuleType(t)
	return ok
}

// MaxTimelinePosition 时间线位置的硬上限，布局时超出的模块归入最后一个槽位
const MaxTimelinePosition = 9999

// DefaultModuleTitle 新建模块的默认标题
func DefaultModuleTitle(t ModuleType) string {
	return fmt.Sprintf("New %s Module", t)
}

// CourseModule 时间线上的一个模块
// TimelinePosition 是排序键：允许空位，也允许并发导致的重复值
type CourseModule struct {
	UUIDBase
	CourseID         string         `gorm:"size:36;index:idx_course_timeline,priority:1;not null" json:"courseId"`
	ModuleType       ModuleType     `gorm:"size:20;not null" json:"moduleType"`
	Title            string         `gorm:"size:255;not null" json:"title"`
	Description      string         `gorm:"type:text" json:"description"`
	OrderIndex       int            `gorm:"default:0" json:"orderIndex"`
	TimelinePosition int            `gorm:"index:idx_course_timeline,priority:2;not null;default:0" json:"timelinePosition"`
	DurationMinutes  int            `gorm:"not null;default:5" json:"durationMinutes"`
	Content          datatypes.JSON `json:"content"`
	AIContent        datatypes.JSON `gorm:"column:ai_content" json:"aiContent,omitempty"`
	IsHidden         bool           `gorm:"default:false" json:"isHidden"`
	IsPublished      bool           `gorm:"default:false" json:"isPublished"`
}

func (CourseModule) TableName() string {
	return "course_modules"
}
