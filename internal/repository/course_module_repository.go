package repository

import (
	"context"
	"sage_edu_backend/internal/model"

	"gorm.io/gorm"
)

// CourseModuleRepository 每个方法对应一次数据库往返，不做重试
type CourseModuleRepository struct {
	DB *gorm.DB
}

func NewCourseModuleRepository(db *gorm.DB) *CourseModuleRepository {
	return &CourseModuleRepository{DB: db}
}

// ListByCourse 按时间线位置排序，位置相同时保持插入顺序
func (r *CourseModuleRepository) ListByCourse(ctx context.Context, courseID string, includeHidden bool) ([]model.CourseModule, error) {
	var modules []model.CourseModule
	query := r.DB.WithContext(ctx).Where("course_id = ?", courseID)
	if !includeHidden {
		query = query.Where("is_hidden = ?", false)
	}
	err := query.Order("timeline_position ASC, created_at ASC").Find(&modules).Error
	return modules, err
}

func (r *CourseModuleRepository) FindByID(ctx context.Context, id string) (*model.CourseModule, error) {
	var m model.CourseModule
	err := r.DB.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *CourseModuleRepository) Create(ctx context.Context, m *model.CourseModule) error {
	return r.DB.WithContext(ctx).Create(m).Error
}

// Updates 局部更新，fields 的键为列名
func (r *CourseModuleRepository) Updates(ctx context.Context, id string, fields map[string]interface{}) error {
	res := r.DB.WithContext(ctx).Model(&model.CourseModule{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *CourseModuleRepository) Delete(ctx context.Context, id string) error {
	res := r.DB.WithContext(ctx).Where("id = ?", id).Delete(&model.CourseModule{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *CourseModuleRepository) CountByCourse(ctx context.Context, courseID string) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.CourseModule{}).
		Where("course_id = ? AND is_hidden = ?", courseID, false).
		Count(&count).Error
	return count, err
}

// PositionCollision 同一课程中重复的时间线位置
type PositionCollision struct {
	CourseID         string `json:"courseId" yaml:"course_id"`
	TimelinePosition int    `json:"timelinePosition" yaml:"timeline_position"`
	Count            int    `json:"count" yaml:"modules"`
}

func (r *CourseModuleRepository) FindPositionCollisions(ctx context.Context) ([]PositionCollision, error) {
	var rows []PositionCollision
	err := r.DB.WithContext(ctx).Model(&model.CourseModule{}).
		Select("course_id, timeline_position, COUNT(*) AS count").
		Group("course_id, timeline_position").
		Having("COUNT(*) > 1").
		Order("course_id, timeline_position").
		Scan(&rows).Error
	return rows, err
}

// ListNextForLearner 学生已开始的已发布课程中尚未完成的模块，按课程与时间线顺序
func (r *CourseModuleRepository) ListNextForLearner(ctx context.Context, userID uint, limit int) ([]model.CourseModule, error) {
	var modules []model.CourseModule
	started := r.DB.Model(&model.ModuleCompletion{}).Select("course_id").Where("user_id = ?", userID)
	done := r.DB.Model(&model.ModuleCompletion{}).Select("module_id").Where("user_id = ?", userID)

	err := r.DB.WithContext(ctx).
		Model(&model.CourseModule{}).
		Joins("JOIN courses ON courses.id = course_modules.course_id AND courses.deleted_at IS NULL").
		Where("courses.is_published = ? AND course_modules.is_hidden = ?", true, false).
		Where("course_modules.course_id IN (?)", started).
		Where("course_modules.id NOT IN (?)", done).
		Order("course_modules.course_id, course_modules.timeline_position ASC, course_modules.created_at ASC").
		Limit(limit).
		Find(&modules).Error
	return modules, err
}
