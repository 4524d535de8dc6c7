package repository

import (
	"context"
	"sage_edu_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type CourseRepository struct {
	DB *gorm.DB
}

func NewCourseRepository(db *gorm.DB) *CourseRepository {
	return &CourseRepository{DB: db}
}

func (r *CourseRepository) Create(ctx context.Context, course *model.Course) error {
	return r.DB.WithContext(ctx).Create(course).Error
}

// CreateWithModules 课程与模块在同一事务中创建
func (r *CourseRepository) CreateWithModules(ctx context.Context, course *model.Course, modules []model.CourseModule) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Modules").Create(course).Error; err != nil {
			return err
		}
		for i := range modules {
			modules[i].CourseID = course.ID
			if err := tx.Create(&modules[i]).Error; err != nil {
				return err
			}
		}
		course.Modules = modules
		return nil
	})
}

func (r *CourseRepository) FindByID(ctx context.Context, id string) (*model.Course, error) {
	var course model.Course
	err := r.DB.WithContext(ctx).Where("id = ?", id).First(&course).Error
	if err != nil {
		return nil, err
	}
	return &course, nil
}

func (r *CourseRepository) FindByTeacher(ctx context.Context, teacherID uint) ([]model.Course, error) {
	var courses []model.Course
	err := r.DB.WithContext(ctx).
		Where("teacher_id = ?", teacherID).
		Order("updated_at DESC").
		Find(&courses).Error
	return courses, err
}

func (r *CourseRepository) ListPublished(ctx context.Context, subject string, page, limit int) ([]model.Course, int64, error) {
	var courses []model.Course
	var total int64

	query := r.DB.WithContext(ctx).Model(&model.Course{}).Where("is_published = ?", true)
	if subject != "" {
		query = query.Where("subject = ?", subject)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Order("created_at DESC").Offset((page - 1) * limit).Limit(limit).Find(&courses).Error
	return courses, total, err
}

func (r *CourseRepository) Update(ctx context.Context, course *model.Course) error {
	return r.DB.WithContext(ctx).Omit("Modules").Save(course).Error
}

// Delete 删除课程并级联删除其模块
func (r *CourseRepository) Delete(ctx context.Context, id string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("course_id = ?", id).Delete(&model.CourseModule{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&model.Course{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// PublishDue 发布所有到期的定时课程，返回发布数量
func (r *CourseRepository) PublishDue(ctx context.Context, now time.Time) (int64, error) {
	res := r.DB.WithContext(ctx).Model(&model.Course{}).
		Where("is_published = ? AND publish_at IS NOT NULL AND publish_at <= ?", false, now).
		Updates(map[string]interface{}{"is_published": true, "publish_at": nil})
	return res.RowsAffected, res.Error
}

// ModuleStats 每门课程的模块数与总时长
type ModuleStats struct {
	CourseID     string `json:"courseId"`
	ModuleCount  int    `json:"moduleCount"`
	TotalMinutes int    `json:"totalMinutes"`
}

func (r *CourseRepository) ModuleStats(ctx context.Context, courseIDs []string) (map[string]ModuleStats, error) {
	out := make(map[string]ModuleStats, len(courseIDs))
	if len(courseIDs) == 0 {
		return out, nil
	}
	var rows []ModuleStats
	err := r.DB.WithContext(ctx).Model(&model.CourseModule{}).
		Select("course_id, COUNT(*) AS module_count, COALESCE(SUM(duration_minutes), 0) AS total_minutes").
		Where("course_id IN ?", courseIDs).
		Group("course_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.CourseID] = row
	}
	return out, nil
}
