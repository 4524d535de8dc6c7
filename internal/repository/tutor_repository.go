package repository

import (
	"sage_edu_backend/internal/model"

	"gorm.io/gorm"
)

type TutorRepository struct {
	DB *gorm.DB
}

func NewTutorRepository(db *gorm.DB) *TutorRepository {
	return &TutorRepository{DB: db}
}

func (r *TutorRepository) Save(msg *model.TutorMessage) error {
	return r.DB.Create(msg).Error
}

// RecentHistory 取最近 limit 轮，按时间正序返回
func (r *TutorRepository) RecentHistory(userID uint, sessionID string, limit int) ([]model.TutorMessage, error) {
	var rows []model.TutorMessage
	err := r.DB.Where("user_id = ? AND session_id = ?", userID, sessionID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}

func (r *TutorRepository) Sessions(userID uint) ([]string, error) {
	var ids []string
	err := r.DB.Model(&model.TutorMessage{}).
		Where("user_id = ?", userID).
		Group("session_id").
		Order("MAX(created_at) DESC").
		Pluck("session_id", &ids).Error
	return ids, err
}
