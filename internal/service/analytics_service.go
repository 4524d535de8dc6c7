package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sage_edu_backend/internal/model"
	"sage_edu_backend/internal/repository"
	"sage_edu_backend/internal/util"
	"strings"
)

const adaptiveCandidateLimit = 20

type AnalyticsService struct {
	AI             *AIService
	CompletionRepo *repository.CompletionRepository
	ModuleRepo     *repository.CourseModuleRepository
	UserRepo       *repository.UserRepository
}

func NewAnalyticsService(ai *AIService, completionRepo *repository.CompletionRepository, moduleRepo *repository.CourseModuleRepository, userRepo *repository.UserRepository) *AnalyticsService {
	return &AnalyticsService{
		AI:             ai,
		CompletionRepo: completionRepo,
		ModuleRepo:     moduleRepo,
		UserRepo:       userRepo,
	}
}

type LearningStats struct {
	ModulesCompleted int                      `json:"modulesCompleted"`
	TotalMinutes     int                      `json:"totalMinutes"`
	Points           int                      `json:"points"`
	AverageScore     *float64                 `json:"averageScore,omitempty"`
	ByType           []repository.TypeMinutes `json:"byType"`
	Recent           []model.ModuleCompletion `json:"recent"`
}

type LearningInsights struct {
	Stats    *LearningStats  `json:"stats"`
	Insights json.RawMessage `json:"insights" swaggertype:"object"`
}

type Recommendation struct {
	Module model.CourseModule `json:"module"`
	Reason string             `json:"reason"`
}

func (s *AnalyticsService) Stats(userID uint) (*LearningStats, error) {
	user, err := s.UserRepo.FindByID(userID)
	if err != nil {
		return nil, util.ErrUserNotFound
	}
	byType, err := s.CompletionRepo.MinutesByType(userID)
	if err != nil {
		return nil, err
	}
	recent, err := s.CompletionRepo.ListByUser(userID, 0)
	if err != nil {
		return nil, err
	}

	stats := &LearningStats{Points: user.Points, ByType: byType, Recent: recent}
	for _, t := range byType {
		stats.ModulesCompleted += t.Modules
		stats.TotalMinutes += t.Minutes
	}

	scored, sum := 0, 0
	for _, c := range recent {
		if c.Score != nil {
			scored++
			sum += *c.Score
		}
	}
	if scored > 0 {
		avg := float64(sum) / float64(scored)
		stats.AverageScore = &avg
	}
	if len(stats.Recent) > 10 {
		stats.Recent = stats.Recent[:10]
	}
	return stats, nil
}

// Insights 让模型根据学习数据给出总结与建议
func (s *AnalyticsService) Insights(ctx context.Context, userID uint) (*LearningInsights, error) {
	stats, err := s.Stats(userID)
	if err != nil {
		return nil, err
	}
	data, _ := json.Marshal(stats)

	system := `You are a learning analytics assistant. Output only JSON: {"summary": string, "strengths": [string], "improvements": [string], "nextSteps": [string]}.`
	doc, err := s.AI.GenerateJSON(ctx, "insights", system, "Student learning data:\n"+string(data))
	if err != nil {
		return nil, generationFailed(err)
	}
	return &LearningInsights{Stats: stats, Insights: doc}, nil
}

// Adaptive 在学生已开始的课程中挑选下一步要学的模块
func (s *AnalyticsService) Adaptive(ctx context.Context, userID uint, limit int) ([]Recommendation, error) {
	if limit <= 0 || limit > adaptiveCandidateLimit {
		limit = 3
	}
	candidates, err := s.ModuleRepo.ListNextForLearner(ctx, userID, adaptiveCandidateLimit)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return []Recommendation{}, nil
	}
	stats, err := s.Stats(userID)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	for _, m := range candidates {
		fmt.Fprintf(&sb, "- id=%s type=%s title=%q minutes=%d\n", m.ID, m.ModuleType, m.Title, m.DurationMinutes)
	}
	statsJSON, _ := json.Marshal(stats.ByType)
	prompt := fmt.Sprintf("Completed minutes by module type: %s\nAverage score: %v\nCandidate modules:\n%sPick up to %d modules.",
		string(statsJSON), avgOrNone(stats.AverageScore), sb.String(), limit)
	system := `You recommend what a student should study next. Output only JSON: {"recommendations": [{"moduleId": string, "reason": string}]}. Only use ids from the candidate list.`

	doc, err := s.AI.GenerateJSON(ctx, "adaptive", system, prompt)
	if err != nil {
		return nil, generationFailed(err)
	}
	var parsed struct {
		Recommendations []struct {
			ModuleID string `json:"moduleId"`
			Reason   string `json:"reason"`
		} `json:"recommendations"`
	}
	if err := json.Unmarshal(doc, &parsed); err != nil {
		return nil, generationFailed(util.ErrAIResponseInvalid)
	}

	byID := make(map[string]model.CourseModule, len(candidates))
	for _, m := range candidates {
		byID[m.ID] = m
	}
	out := make([]Recommendation, 0, limit)
	seen := make(map[string]bool)
	for _, r := range parsed.Recommendations {
		m, ok := byID[r.ModuleID]
		if !ok || seen[r.ModuleID] {
			continue
		}
		seen[r.ModuleID] = true
		out = append(out, Recommendation{Module: m, Reason: r.Reason})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func avgOrNone(avg *float64) string {
	if avg == nil {
		return "none"
	}
	return fmt.Sprintf("%.1f", *avg)
}
