package model

import (
	"time"
)

// TutorMessage 存储 AI 导师对话记录，支持多轮对话
type TutorMessage struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uint      `gorm:"index" json:"userId"`
	SessionID string    `gorm:"size:50;index" json:"sessionId"` // 会话 ID，用于切断历史边界
	ModuleID  string    `gorm:"size:36" json:"moduleId,omitempty"`
	Question  string    `gorm:"type:text;not null" json:"question"`
	Answer    string    `gorm:"type:text;not null" json:"answer"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}

func (TutorMessage) TableName() string {
	return "tutor_messages"
}
