package service

import (
	"context"
	"fmt"
	"sage_edu_backend/internal/model"
	"sage_edu_backend/internal/repository"
	"sage_edu_backend/pkg/logger"
	"strings"

	"go.uber.org/zap"
)

const (
	tutorHistoryRounds  = 5
	maxBackgroundLength = 4000
)

type TutorService struct {
	AI         *AIService
	TutorRepo  *repository.TutorRepository
	ModuleRepo *repository.CourseModuleRepository
}

func NewTutorService(ai *AIService, tutorRepo *repository.TutorRepository, moduleRepo *repository.CourseModuleRepository) *TutorService {
	return &TutorService{AI: ai, TutorRepo: tutorRepo, ModuleRepo: moduleRepo}
}

type TutorAskRequest struct {
	SessionID string `json:"sessionId" binding:"required,max=50"`
	ModuleID  string `json:"moduleId"`
	Question  string `json:"question" binding:"required"`
}

// moduleBackground 以当前模块作为回答的背景知识
func (s *TutorService) moduleBackground(ctx context.Context, moduleID string) string {
	if moduleID == "" {
		return ""
	}
	m, err := s.ModuleRepo.FindByID(ctx, moduleID)
	if err != nil {
		return ""
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Module: %s (%s, %d minutes)\n", m.Title, m.ModuleType, m.DurationMinutes)
	if m.Description != "" {
		fmt.Fprintf(&sb, "Description: %s\n", m.Description)
	}
	if len(m.Content) > 0 {
		fmt.Fprintf(&sb, "Content: %s\n", string(m.Content))
	}
	if len(m.AIContent) > 0 {
		fmt.Fprintf(&sb, "Generated material: %s\n", string(m.AIContent))
	}
	bg := sb.String()
	if len(bg) > maxBackgroundLength {
		bg = bg[:maxBackgroundLength]
	}
	return bg
}

func (s *TutorService) history(userID uint, sessionID string) []AIChatMessage {
	rows, err := s.TutorRepo.RecentHistory(userID, sessionID, tutorHistoryRounds)
	if err != nil {
		logger.Log.Warn("Failed to load tutor history", zap.Uint("userId", userID), zap.Error(err))
		return nil
	}
	msgs := make([]AIChatMessage, 0, len(rows)*2)
	for _, r := range rows {
		msgs = append(msgs,
			AIChatMessage{Role: "user", Content: r.Question},
			AIChatMessage{Role: "assistant", Content: r.Answer})
	}
	return msgs
}

// AskStream 转发模型的流式输出，完整回答在结束后写入历史
func (s *TutorService) AskStream(ctx context.Context, userID uint, req TutorAskRequest) (<-chan string, <-chan error) {
	upstream, upstreamErr := s.AI.ChatStream(ctx, req.Question, s.moduleBackground(ctx, req.ModuleID), s.history(userID, req.SessionID))

	out := make(chan string)
	errChan := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errChan)

		var answer strings.Builder
		for chunk := range upstream {
			answer.WriteString(chunk)
			select {
			case out <- chunk:
			case <-ctx.Done():
			}
		}
		if err := <-upstreamErr; err != nil {
			errChan <- err
			return
		}
		if answer.Len() == 0 {
			return
		}

		record := &model.TutorMessage{
			UserID:    userID,
			SessionID: req.SessionID,
			ModuleID:  req.ModuleID,
			Question:  req.Question,
			Answer:    answer.String(),
		}
		if err := s.TutorRepo.Save(record); err != nil {
			logger.Log.Error("Failed to save tutor message", zap.Uint("userId", userID), zap.Error(err))
		}
	}()
	return out, errChan
}

func (s *TutorService) History(userID uint, sessionID string) ([]model.TutorMessage, error) {
	return s.TutorRepo.RecentHistory(userID, sessionID, 50)
}

func (s *TutorService) Sessions(userID uint) ([]string, error) {
	return s.TutorRepo.Sessions(userID)
}
