package repository

import (
	"errors"
	"sage_edu_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AchievementRepository struct {
	DB *gorm.DB
}

func NewAchievementRepository(db *gorm.DB) *AchievementRepository {
	return &AchievementRepository{DB: db}
}

func (r *AchievementRepository) FindByUserID(userID uint) ([]model.Achievement, error) {
	var achievements []model.Achievement
	err := r.DB.Where("user_id = ?", userID).Order("created_at ASC").Find(&achievements).Error
	return achievements, err
}

// Grant 已拥有时返回 false
func (r *AchievementRepository) Grant(tx *gorm.DB, a *model.Achievement) (bool, error) {
	if tx == nil {
		tx = r.DB
	}
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(a)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

type CompletionRepository struct {
	DB *gorm.DB
}

func NewCompletionRepository(db *gorm.DB) *CompletionRepository {
	return &CompletionRepository{DB: db}
}

func (r *CompletionRepository) Find(userID uint, moduleID string) (*model.ModuleCompletion, error) {
	var c model.ModuleCompletion
	err := r.DB.Where("user_id = ? AND module_id = ?", userID, moduleID).First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Create 重复完成返回 false，不报错
func (r *CompletionRepository) Create(tx *gorm.DB, c *model.ModuleCompletion) (bool, error) {
	if tx == nil {
		tx = r.DB
	}
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(c)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *CompletionRepository) CountByUser(tx *gorm.DB, userID uint) (int64, error) {
	if tx == nil {
		tx = r.DB
	}
	var count int64
	err := tx.Model(&model.ModuleCompletion{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

func (r *CompletionRepository) CountByUserAndCourse(tx *gorm.DB, userID uint, courseID string) (int64, error) {
	if tx == nil {
		tx = r.DB
	}
	var count int64
	err := tx.Model(&model.ModuleCompletion{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Count(&count).Error
	return count, err
}

func (r *CompletionRepository) ListByUser(userID uint, limit int) ([]model.ModuleCompletion, error) {
	var rows []model.ModuleCompletion
	query := r.DB.Where("user_id = ?", userID).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&rows).Error
	return rows, err
}

// TypeMinutes 按模块类型汇总的学习时长
type TypeMinutes struct {
	ModuleType model.ModuleType `json:"moduleType"`
	Modules    int              `json:"modules"`
	Minutes    int              `json:"minutes"`
}

func (r *CompletionRepository) MinutesByType(userID uint) ([]TypeMinutes, error) {
	var rows []TypeMinutes
	err := r.DB.Model(&model.ModuleCompletion{}).
		Select("module_type, COUNT(*) AS modules, COALESCE(SUM(minutes), 0) AS minutes").
		Where("user_id = ?", userID).
		Group("module_type").
		Order("module_type").
		Scan(&rows).Error
	return rows, err
}

func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
