package service

import (
	"context"
	"errors"
	"sage_edu_backend/internal/model"
	"sage_edu_backend/internal/repository"
	"sage_edu_backend/internal/util"
	"time"

	"gorm.io/gorm"
)

type CourseService struct {
	CourseRepo *repository.CourseRepository
	ModuleRepo *repository.CourseModuleRepository
	Builder    *CourseBuilderService
}

func NewCourseService(courseRepo *repository.CourseRepository, moduleRepo *repository.CourseModuleRepository, builder *CourseBuilderService) *CourseService {
	return &CourseService{
		CourseRepo: courseRepo,
		ModuleRepo: moduleRepo,
		Builder:    builder,
	}
}

type CourseRequest struct {
	Title             string     `json:"title" binding:"required,max=255"`
	Description       string     `json:"description"`
	Subject           string     `json:"subject" binding:"max=100"`
	GradeLevel        string     `json:"gradeLevel" binding:"max=50"`
	Difficulty        string     `json:"difficulty" binding:"omitempty,oneof=beginner intermediate advanced"`
	EstimatedDuration int        `json:"estimatedDuration" binding:"gte=0"`
	PublishAt         *time.Time `json:"publishAt"`
}

type CourseSummary struct {
	model.Course
	ModuleCount  int `json:"moduleCount"`
	TotalMinutes int `json:"totalMinutes"`
}

type CourseDetail struct {
	*model.Course
	TotalMinutes int `json:"totalMinutes"`
}

type PublishRequest struct {
	Publish   bool       `json:"publish"`
	PublishAt *time.Time `json:"publishAt"`
}

func (s *CourseService) Create(ctx context.Context, teacherID uint, req CourseRequest) (*model.Course, error) {
	course := &model.Course{
		TeacherID:         teacherID,
		Title:             req.Title,
		Description:       req.Description,
		Subject:           req.Subject,
		GradeLevel:        req.GradeLevel,
		Difficulty:        req.Difficulty,
		EstimatedDuration: req.EstimatedDuration,
		PublishAt:         req.PublishAt,
	}
	if err := s.CourseRepo.Create(ctx, course); err != nil {
		return nil, err
	}
	return course, nil
}

func (s *CourseService) Update(ctx context.Context, claims *util.Claims, courseID string, req CourseRequest) (*model.Course, error) {
	course, err := s.Builder.AuthorizeCourse(ctx, courseID, claims)
	if err != nil {
		return nil, err
	}
	course.Title = req.Title
	course.Description = req.Description
	course.Subject = req.Subject
	course.GradeLevel = req.GradeLevel
	course.Difficulty = req.Difficulty
	course.EstimatedDuration = req.EstimatedDuration
	course.PublishAt = req.PublishAt
	if err := s.CourseRepo.Update(ctx, course); err != nil {
		return nil, err
	}
	return course, nil
}

// Delete 课程与模块在同一事务中删除
func (s *CourseService) Delete(ctx context.Context, claims *util.Claims, courseID string) error {
	if _, err := s.Builder.AuthorizeCourse(ctx, courseID, claims); err != nil {
		return err
	}
	if err := s.CourseRepo.Delete(ctx, courseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrCourseNotFound
		}
		return err
	}
	s.Builder.InvalidateCourse(ctx, courseID)
	return nil
}

// Publish 立即发布/下线，或设置定时发布时间
func (s *CourseService) Publish(ctx context.Context, claims *util.Claims, courseID string, req PublishRequest) (*model.Course, error) {
	course, err := s.Builder.AuthorizeCourse(ctx, courseID, claims)
	if err != nil {
		return nil, err
	}
	if req.PublishAt != nil && req.PublishAt.After(time.Now()) {
		course.IsPublished = false
		course.PublishAt = req.PublishAt
	} else {
		course.IsPublished = req.Publish
		course.PublishAt = nil
	}
	if err := s.CourseRepo.Update(ctx, course); err != nil {
		return nil, err
	}
	return course, nil
}

func (s *CourseService) ListForTeacher(ctx context.Context, teacherID uint) ([]CourseSummary, error) {
	courses, err := s.CourseRepo.FindByTeacher(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	return s.summarize(ctx, courses)
}

func (s *CourseService) ListPublished(ctx context.Context, subject string, page, limit int) ([]CourseSummary, int64, error) {
	courses, total, err := s.CourseRepo.ListPublished(ctx, subject, page, limit)
	if err != nil {
		return nil, 0, err
	}
	list, err := s.summarize(ctx, courses)
	return list, total, err
}

func (s *CourseService) summarize(ctx context.Context, courses []model.Course) ([]CourseSummary, error) {
	ids := make([]string, len(courses))
	for i, c := range courses {
		ids[i] = c.ID
	}
	stats, err := s.CourseRepo.ModuleStats(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]CourseSummary, len(courses))
	for i, c := range courses {
		st := stats[c.ID]
		out[i] = CourseSummary{Course: c, ModuleCount: st.ModuleCount, TotalMinutes: st.TotalMinutes}
	}
	return out, nil
}

// Detail 课程负责人能看到隐藏模块与未发布课程，其他人只能看已发布内容
func (s *CourseService) Detail(ctx context.Context, courseID string, claims *util.Claims) (*CourseDetail, error) {
	course, err := s.CourseRepo.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCourseNotFound
		}
		return nil, err
	}

	owner := claims != nil && (claims.Role == model.Admin || claims.UserID == course.TeacherID)
	if !owner && !course.IsPublished {
		return nil, util.ErrCourseNotFound
	}

	modules, err := s.ModuleRepo.ListByCourse(ctx, courseID, owner)
	if err != nil {
		return nil, err
	}
	course.Modules = modules

	total := 0
	for _, m := range modules {
		total += m.DurationMinutes
	}
	return &CourseDetail{Course: course, TotalMinutes: total}, nil
}

// PublishDue 由定时任务调用
func (s *CourseService) PublishDue(ctx context.Context, now time.Time) (int64, error) {
	return s.CourseRepo.PublishDue(ctx, now)
}
