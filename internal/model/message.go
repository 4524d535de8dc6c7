package model

import "time"

// Message 用户之间的私信
type Message struct {
	BaseModel
	SenderID    uint       `gorm:"index:idx_msg_pair;not null" json:"senderId"`
	RecipientID uint       `gorm:"index:idx_msg_pair;index;not null" json:"recipientId"`
	Content     string     `gorm:"type:text;not null" json:"content"`
	ReadAt      *time.Time `json:"readAt,omitempty"`
}

func (Message) TableName() string {
	return "messages"
}
