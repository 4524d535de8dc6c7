package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sage_edu_backend/internal/model"
	"sage_edu_backend/internal/repository"
	"sage_edu_backend/internal/util"
	"sage_edu_backend/pkg/logger"
	"strings"

	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const (
	GenerateTypeCourse   = "course"
	defaultModuleCount   = 5
	maxGeneratedModules  = 20
	defaultCourseMinutes = 45
)

// GenerateRequest /api/ai/generate 的请求体
// type 为模块类型时生成该模块的 ai_content；为 course 时生成整门课程
type GenerateRequest struct {
	Type        string                 `json:"type" binding:"required"`
	Prompt      string                 `json:"prompt"`
	ModuleID    string                 `json:"moduleId"`
	Subject     string                 `json:"subject"`
	GradeLevel  string                 `json:"gradeLevel"`
	Topic       string                 `json:"topic"`
	Difficulty  string                 `json:"difficulty"`
	Duration    int                    `json:"duration"`
	ModuleCount int                    `json:"moduleCount"`
	Topics      []string               `json:"topics"`
	Preferences map[string]interface{} `json:"preferences"`
}

func (r GenerateRequest) IsCourse() bool {
	return r.Type == GenerateTypeCourse
}

type GenerationService struct {
	AI         *AIService
	Builder    *CourseBuilderService
	CourseRepo *repository.CourseRepository
}

func NewGenerationService(ai *AIService, builder *CourseBuilderService, courseRepo *repository.CourseRepository) *GenerationService {
	return &GenerationService{AI: ai, Builder: builder, CourseRepo: courseRepo}
}

var moduleSystemPrompts = map[model.ModuleType]string{
	model.ModuleContent:    `Write lesson content. Respond with JSON: {"title": string, "sections": [{"heading": string, "body": string}], "keyPoints": [string]}.`,
	model.ModuleQuiz:       `Write a quiz. Respond with JSON: {"title": string, "questions": [{"question": string, "options": [string], "answer": number, "explanation": string}]}.`,
	model.ModuleGame:       `Design a short learning game. Respond with JSON: {"title": string, "rules": [string], "rounds": [{"prompt": string, "solution": string}]}.`,
	model.ModuleVideo:      `Write a video script outline. Respond with JSON: {"title": string, "scenes": [{"narration": string, "visual": string, "seconds": number}]}.`,
	model.ModuleImage:      `Describe illustrations for the lesson. Respond with JSON: {"title": string, "images": [{"prompt": string, "caption": string, "altText": string}]}.`,
	model.ModuleAssessment: `Write an assessment. Respond with JSON: {"title": string, "tasks": [{"prompt": string, "rubric": [{"criterion": string, "points": number}]}]}.`,
}

func generationFailed(err error) error {
	return fmt.Errorf("%w: %v", util.ErrGenerationFailed, err)
}

// GenerateModuleContent 生成结果原样写入模块的 ai_content，失败时模块保持不变
func (s *GenerationService) GenerateModuleContent(ctx context.Context, req GenerateRequest, claims *util.Claims) (*model.CourseModule, error) {
	t := model.ModuleType(req.Type)
	if !t.Valid() {
		return nil, util.ErrInvalidModuleType
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("%w: prompt is required", util.ErrInvalidField)
	}
	if req.ModuleID == "" {
		return nil, util.ErrModuleNotFound
	}

	m, err := s.Builder.AuthorizeModule(ctx, req.ModuleID, claims)
	if err != nil {
		return nil, err
	}

	system := "You generate educational material for a course module. Output only JSON. " + moduleSystemPrompts[t]
	prompt := fmt.Sprintf("Module title: %s\nModule description: %s\nDuration: %d minutes\nRequest: %s",
		m.Title, m.Description, m.DurationMinutes, req.Prompt)

	doc, err := s.AI.GenerateJSON(ctx, "module_"+string(t), system, prompt)
	if err != nil {
		logger.Log.Warn("Module generation failed", zap.String("moduleId", m.ID), zap.Error(err))
		return nil, generationFailed(err)
	}

	return s.Builder.UpdateModule(ctx, m.ID, ModuleUpdate{AIContent: doc})
}

type generatedCourse struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Modules     []generatedModule `json:"modules"`
}

type generatedModule struct {
	Type            string          `json:"type"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	DurationMinutes int             `json:"durationMinutes"`
	Content         json.RawMessage `json:"content"`
}

// GenerateCourse 生成课程与模块，模块位置依次为 0..n-1，在同一事务中写入
func (s *GenerationService) GenerateCourse(ctx context.Context, req GenerateRequest, claims *util.Claims) (*model.Course, error) {
	if claims == nil {
		return nil, util.ErrUnauthorized
	}
	if !claims.IsTeacher() {
		return nil, util.ErrPermissionDenied
	}
	if strings.TrimSpace(req.Subject) == "" || strings.TrimSpace(req.Topic) == "" {
		return nil, fmt.Errorf("%w: subject and topic are required", util.ErrInvalidField)
	}
	count := req.ModuleCount
	if count <= 0 {
		count = defaultModuleCount
	}
	if count > maxGeneratedModules {
		count = maxGeneratedModules
	}
	duration := req.Duration
	if duration <= 0 {
		duration = defaultCourseMinutes
	}

	prefs, _ := json.Marshal(req.Preferences)
	system := `You design courses for teachers. Output only JSON: {"title": string, "description": string, "modules": [{"type": one of "content","quiz","game","video","image","assessment", "title": string, "description": string, "durationMinutes": number, "content": object}]}.`
	prompt := fmt.Sprintf("Subject: %s\nGrade level: %s\nTopic: %s\nDifficulty: %s\nTotal duration: %d minutes\nNumber of modules: %d\nSubtopics: %s\nPreferences: %s",
		req.Subject, req.GradeLevel, req.Topic, req.Difficulty, duration, count, strings.Join(req.Topics, ", "), string(prefs))

	doc, err := s.AI.GenerateJSON(ctx, "course", system, prompt)
	if err != nil {
		logger.Log.Warn("Course generation failed", zap.Uint("teacherId", claims.UserID), zap.Error(err))
		return nil, generationFailed(err)
	}

	var gen generatedCourse
	if err := json.Unmarshal(doc, &gen); err != nil || len(gen.Modules) == 0 {
		return nil, generationFailed(util.ErrAIResponseInvalid)
	}
	if len(gen.Modules) > count {
		gen.Modules = gen.Modules[:count]
	}

	course := &model.Course{
		TeacherID:   claims.UserID,
		Title:       firstNonEmpty(gen.Title, req.Topic),
		Description: gen.Description,
		Subject:     req.Subject,
		GradeLevel:  req.GradeLevel,
		Difficulty:  req.Difficulty,
	}
	modules := make([]model.CourseModule, len(gen.Modules))
	total := 0
	for i, gm := range gen.Modules {
		t := model.ModuleType(strings.ToLower(gm.Type))
		if !t.Valid() {
			t = model.ModuleContent
		}
		minutes := gm.DurationMinutes
		if minutes <= 0 {
			minutes = s.Builder.DefaultDuration()
		}
		content := datatypes.JSON("{}")
		if len(gm.Content) > 0 && json.Valid(gm.Content) {
			content = datatypes.JSON(gm.Content)
		}
		modules[i] = model.CourseModule{
			ModuleType:       t,
			Title:            firstNonEmpty(gm.Title, model.DefaultModuleTitle(t)),
			Description:      gm.Description,
			OrderIndex:       i,
			TimelinePosition: i,
			DurationMinutes:  minutes,
			Content:          content,
		}
		total += minutes
	}
	course.EstimatedDuration = total

	if err := s.CourseRepo.CreateWithModules(ctx, course, modules); err != nil {
		return nil, err
	}
	return course, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
