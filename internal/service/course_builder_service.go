package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sage_edu_backend/internal/config"
	"sage_edu_backend/internal/model"
	"sage_edu_backend/internal/repository"
	"sage_edu_backend/internal/util"
	"sage_edu_backend/pkg/logger"
	"sage_edu_backend/pkg/monitoring"
	"sage_edu_backend/pkg/tracing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-redis/redis/v8"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	moduleCacheTTL     = 10 * time.Minute
	defaultMaxPosition = 999
)

// ModuleUpdate 设置面板提交的局部更新，nil 字段保持不变
type ModuleUpdate struct {
	Title            *string         `json:"title" validate:"omitempty,min=1,max=255"`
	Description      *string         `json:"description" validate:"omitempty,max=5000"`
	DurationMinutes  *int            `json:"durationMinutes" validate:"omitempty,gt=0,lte=1440"`
	TimelinePosition *int            `json:"timelinePosition" validate:"omitempty,gte=0,timeline_position"`
	OrderIndex       *int            `json:"orderIndex" validate:"omitempty,gte=0"`
	Content          json.RawMessage `json:"content" swaggertype:"object"`
	AIContent        json.RawMessage `json:"aiContent" swaggertype:"object"`
	IsHidden         *bool           `json:"isHidden"`
	IsPublished      *bool           `json:"isPublished"`
}

func (u ModuleUpdate) IsEmpty() bool {
	return u.Title == nil && u.Description == nil && u.DurationMinutes == nil &&
		u.TimelinePosition == nil && u.OrderIndex == nil && u.Content == nil &&
		u.AIContent == nil && u.IsHidden == nil && u.IsPublished == nil
}

// Columns 转成列名到值的映射
func (u ModuleUpdate) Columns() map[string]interface{} {
	fields := make(map[string]interface{})
	if u.Title != nil {
		fields["title"] = *u.Title
	}
	if u.Description != nil {
		fields["description"] = *u.Description
	}
	if u.DurationMinutes != nil {
		fields["duration_minutes"] = *u.DurationMinutes
	}
	if u.TimelinePosition != nil {
		fields["timeline_position"] = *u.TimelinePosition
	}
	if u.OrderIndex != nil {
		fields["order_index"] = *u.OrderIndex
	}
	if u.Content != nil {
		fields["content"] = jsonColumn(u.Content)
	}
	if u.AIContent != nil {
		fields["ai_content"] = jsonColumn(u.AIContent)
	}
	if u.IsHidden != nil {
		fields["is_hidden"] = *u.IsHidden
	}
	if u.IsPublished != nil {
		fields["is_published"] = *u.IsPublished
	}
	return fields
}

// ApplyTo 把更新作用到内存中的模块上
func (u ModuleUpdate) ApplyTo(m *model.CourseModule) {
	if u.Title != nil {
		m.Title = *u.Title
	}
	if u.Description != nil {
		m.Description = *u.Description
	}
	if u.DurationMinutes != nil {
		m.DurationMinutes = *u.DurationMinutes
	}
	if u.TimelinePosition != nil {
		m.TimelinePosition = *u.TimelinePosition
	}
	if u.OrderIndex != nil {
		m.OrderIndex = *u.OrderIndex
	}
	if u.Content != nil {
		m.Content = jsonColumn(u.Content)
	}
	if u.AIContent != nil {
		m.AIContent = jsonColumn(u.AIContent)
	}
	if u.IsHidden != nil {
		m.IsHidden = *u.IsHidden
	}
	if u.IsPublished != nil {
		m.IsPublished = *u.IsPublished
	}
}

func jsonColumn(raw json.RawMessage) datatypes.JSON {
	if string(raw) == "null" {
		return nil
	}
	return datatypes.JSON(raw)
}

// CourseBuilderService 时间线编辑器的持久化适配层，唯一直接读写 course_modules 的组件
// 每个操作一次往返，不重试
type CourseBuilderService struct {
	ModuleRepo *repository.CourseModuleRepository
	CourseRepo *repository.CourseRepository
	Redis      *redis.Client
	Cfg        *config.Config
	validate   *validator.Validate
	onChange   []func(courseID string)
}

func NewCourseBuilderService(moduleRepo *repository.CourseModuleRepository, courseRepo *repository.CourseRepository, rdb *redis.Client, cfg *config.Config) *CourseBuilderService {
	s := &CourseBuilderService{
		ModuleRepo: moduleRepo,
		CourseRepo: courseRepo,
		Redis:      rdb,
		Cfg:        cfg,
	}
	v := validator.New()
	v.RegisterValidation("module_type", func(fl validator.FieldLevel) bool {
		return model.ModuleType(fl.Field().String()).Valid()
	})
	v.RegisterValidation("timeline_position", func(fl validator.FieldLevel) bool {
		return fl.Field().Int() <= int64(s.MaxPosition())
	})
	s.validate = v
	return s
}

// OnTimelineChanged 注册写成功后的回调
func (s *CourseBuilderService) OnTimelineChanged(fn func(courseID string)) {
	s.onChange = append(s.onChange, fn)
}

func (s *CourseBuilderService) DefaultDuration() int {
	if s.Cfg != nil && s.Cfg.Builder.DefaultDurationMinutes > 0 {
		return s.Cfg.Builder.DefaultDurationMinutes
	}
	return 5
}

// MaxPosition 允许写入的最大时间线位置
func (s *CourseBuilderService) MaxPosition() int {
	if s.Cfg != nil && s.Cfg.Builder.MaxPosition > 0 && s.Cfg.Builder.MaxPosition <= model.MaxTimelinePosition {
		return s.Cfg.Builder.MaxPosition
	}
	return defaultMaxPosition
}

func (s *CourseBuilderService) checkPosition(position int) error {
	if position < 0 || position > s.MaxPosition() {
		return util.ErrInvalidPosition
	}
	return nil
}

func (s *CourseBuilderService) ValidateUpdate(u ModuleUpdate) error {
	if err := s.validate.Struct(u); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			switch verrs[0].Field() {
			case "DurationMinutes":
				return util.ErrInvalidDuration
			case "TimelinePosition", "OrderIndex":
				return util.ErrInvalidPosition
			}
			return fmt.Errorf("%w: %s", util.ErrInvalidField, verrs[0].Field())
		}
		return err
	}
	for _, raw := range []json.RawMessage{u.Content, u.AIContent} {
		if raw != nil && !json.Valid(raw) {
			return fmt.Errorf("%w: content must be a JSON document", util.ErrInvalidField)
		}
	}
	return nil
}

// AuthorizeCourse 教师只能编辑自己的课程，管理员不受限
func (s *CourseBuilderService) AuthorizeCourse(ctx context.Context, courseID string, claims *util.Claims) (*model.Course, error) {
	course, err := s.CourseRepo.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCourseNotFound
		}
		return nil, err
	}
	if claims == nil {
		return nil, util.ErrUnauthorized
	}
	if claims.Role != model.Admin && course.TeacherID != claims.UserID {
		return nil, util.ErrPermissionDenied
	}
	return course, nil
}

func (s *CourseBuilderService) AuthorizeModule(ctx context.Context, moduleID string, claims *util.Claims) (*model.CourseModule, error) {
	m, err := s.ModuleRepo.FindByID(ctx, moduleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrModuleNotFound
		}
		return nil, err
	}
	if _, err := s.AuthorizeCourse(ctx, m.CourseID, claims); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *CourseBuilderService) ListModules(ctx context.Context, courseID string) ([]model.CourseModule, error) {
	ctx, span := tracing.StartSpan(ctx, "builder.ListModules", attribute.String("course.id", courseID))
	var err error
	defer func() { tracing.EndSpan(span, err) }()

	if modules, ok := s.cachedModules(ctx, courseID); ok {
		return modules, nil
	}

	modules, err := s.ModuleRepo.ListByCourse(ctx, courseID, true)
	if err != nil {
		return nil, err
	}
	s.cacheModules(ctx, courseID, modules)
	return modules, nil
}

func (s *CourseBuilderService) Timeline(ctx context.Context, courseID string) (TimelineLayout, error) {
	modules, err := s.ListModules(ctx, courseID)
	if err != nil {
		return TimelineLayout{}, err
	}
	return BuildTimeline(modules), nil
}

func (s *CourseBuilderService) CreateModule(ctx context.Context, courseID string, t model.ModuleType, position, durationMinutes int) (*model.CourseModule, error) {
	ctx, span := tracing.StartSpan(ctx, "builder.CreateModule",
		attribute.String("course.id", courseID),
		attribute.String("module.type", string(t)),
		attribute.Int("module.position", position))
	var err error
	defer func() {
		monitoring.ObserveMutation("create", err)
		tracing.EndSpan(span, err)
	}()

	if !t.Valid() {
		err = util.ErrInvalidModuleType
		return nil, err
	}
	if err = s.checkPosition(position); err != nil {
		return nil, err
	}
	if durationMinutes == 0 {
		durationMinutes = s.DefaultDuration()
	}
	if durationMinutes < 0 {
		err = util.ErrInvalidDuration
		return nil, err
	}

	m := &model.CourseModule{
		CourseID:         courseID,
		ModuleType:       t,
		Title:            model.DefaultModuleTitle(t),
		TimelinePosition: position,
		DurationMinutes:  durationMinutes,
		Content:          datatypes.JSON("{}"),
	}
	if err = s.ModuleRepo.Create(ctx, m); err != nil {
		return nil, err
	}

	s.changed(ctx, courseID)
	return m, nil
}

// PlaceModule 组件面板拖放到空槽位时的创建，槽位已被占用则拒绝
func (s *CourseBuilderService) PlaceModule(ctx context.Context, courseID string, t model.ModuleType, position, durationMinutes int) (*model.CourseModule, error) {
	if err := s.checkPosition(position); err != nil {
		monitoring.ObserveMutation("create", err)
		return nil, err
	}
	layout, err := s.Timeline(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if layout.Slot(position).Occupied() {
		return nil, util.ErrSlotOccupied
	}
	return s.CreateModule(ctx, courseID, t, position, durationMinutes)
}

func (s *CourseBuilderService) UpdateModule(ctx context.Context, moduleID string, u ModuleUpdate) (*model.CourseModule, error) {
	ctx, span := tracing.StartSpan(ctx, "builder.UpdateModule", attribute.String("module.id", moduleID))
	var err error
	defer func() {
		monitoring.ObserveMutation("update", err)
		tracing.EndSpan(span, err)
	}()

	if err = s.ValidateUpdate(u); err != nil {
		return nil, err
	}

	if !u.IsEmpty() {
		if err = s.ModuleRepo.Updates(ctx, moduleID, u.Columns()); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				err = util.ErrModuleNotFound
			}
			return nil, err
		}
	}

	var m *model.CourseModule
	m, err = s.ModuleRepo.FindByID(ctx, moduleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = util.ErrModuleNotFound
		}
		return nil, err
	}

	s.changed(ctx, m.CourseID)
	return m, nil
}

// MoveModule 只改写被移动模块的位置，其余模块不动，重复位置保留
func (s *CourseBuilderService) MoveModule(ctx context.Context, moduleID string, position int) (*model.CourseModule, error) {
	if err := s.checkPosition(position); err != nil {
		monitoring.ObserveMutation("move", err)
		return nil, err
	}
	return s.UpdateModule(ctx, moduleID, ModuleUpdate{TimelinePosition: &position})
}

func (s *CourseBuilderService) DeleteModule(ctx context.Context, moduleID string) error {
	ctx, span := tracing.StartSpan(ctx, "builder.DeleteModule", attribute.String("module.id", moduleID))
	var err error
	defer func() {
		monitoring.ObserveMutation("delete", err)
		tracing.EndSpan(span, err)
	}()

	var m *model.CourseModule
	m, err = s.ModuleRepo.FindByID(ctx, moduleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = util.ErrModuleNotFound
		}
		return err
	}
	if err = s.ModuleRepo.Delete(ctx, moduleID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = util.ErrModuleNotFound
		}
		return err
	}

	s.changed(ctx, m.CourseID)
	return nil
}

// InvalidateCourse 课程被删除或批量生成模块后清理缓存
func (s *CourseBuilderService) InvalidateCourse(ctx context.Context, courseID string) {
	s.changed(ctx, courseID)
}

func (s *CourseBuilderService) changed(ctx context.Context, courseID string) {
	if s.Redis != nil {
		if err := s.Redis.Del(ctx, moduleCacheKey(courseID)).Err(); err != nil {
			logger.Log.Warn("Failed to invalidate module cache", zap.String("courseId", courseID), zap.Error(err))
		}
	}
	for _, fn := range s.onChange {
		fn(courseID)
	}
}

func moduleCacheKey(courseID string) string {
	return fmt.Sprintf("course_modules:%s", courseID)
}

func (s *CourseBuilderService) cachedModules(ctx context.Context, courseID string) ([]model.CourseModule, bool) {
	if s.Redis == nil {
		return nil, false
	}
	data, err := s.Redis.Get(ctx, moduleCacheKey(courseID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Log.Warn("Module cache read failed", zap.String("courseId", courseID), zap.Error(err))
		}
		return nil, false
	}
	var modules []model.CourseModule
	if err := json.Unmarshal(data, &modules); err != nil {
		return nil, false
	}
	return modules, true
}

func (s *CourseBuilderService) cacheModules(ctx context.Context, courseID string, modules []model.CourseModule) {
	if s.Redis == nil {
		return
	}
	data, err := json.Marshal(modules)
	if err != nil {
		return
	}
	if err := s.Redis.Set(ctx, moduleCacheKey(courseID), data, moduleCacheTTL).Err(); err != nil {
		logger.Log.Warn("Module cache write failed", zap.String("courseId", courseID), zap.Error(err))
	}
}
