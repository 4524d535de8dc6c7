package service

import (
	"context"
	"errors"
	"sage_edu_backend/internal/config"
	"sage_edu_backend/internal/model"
	"sage_edu_backend/internal/repository"
	"sage_edu_backend/internal/util"
	"sage_edu_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type achievementDef struct {
	Name   string
	Icon   string
	Points int
}

var achievementDefs = map[string]achievementDef{
	model.AchievementFirstModule:    {Name: "First Steps", Icon: "🌱", Points: 10},
	model.AchievementTenModules:     {Name: "Ten Modules", Icon: "🔟", Points: 50},
	model.AchievementCourseComplete: {Name: "Course Complete", Icon: "🏆", Points: 100},
}

type AchievementService struct {
	DB              *gorm.DB
	AchievementRepo *repository.AchievementRepository
	CompletionRepo  *repository.CompletionRepository
	UserRepo        *repository.UserRepository
	ModuleRepo      *repository.CourseModuleRepository
	CourseRepo      *repository.CourseRepository
	Cfg             *config.Config
}

func NewAchievementService(
	db *gorm.DB,
	achievementRepo *repository.AchievementRepository,
	completionRepo *repository.CompletionRepository,
	userRepo *repository.UserRepository,
	moduleRepo *repository.CourseModuleRepository,
	courseRepo *repository.CourseRepository,
	cfg *config.Config,
) *AchievementService {
	return &AchievementService{
		DB:              db,
		AchievementRepo: achievementRepo,
		CompletionRepo:  completionRepo,
		UserRepo:        userRepo,
		ModuleRepo:      moduleRepo,
		CourseRepo:      courseRepo,
		Cfg:             cfg,
	}
}

type CompleteModuleRequest struct {
	Score *int `json:"score" binding:"omitempty,gte=0,lte=100"`
}

type CompletionResult struct {
	Completion       *model.ModuleCompletion `json:"completion"`
	AlreadyCompleted bool                    `json:"alreadyCompleted"`
	PointsEarned     int                     `json:"pointsEarned"`
	Unlocked         []model.Achievement     `json:"unlocked"`
}

type UserAchievements struct {
	TotalPoints   int                 `json:"totalPoints"`
	CurrentLevel  int                 `json:"currentLevel"`
	NextLevelAt   int                 `json:"nextLevelAt"`
	Rank          int                 `json:"rank"`
	Badges        []model.Achievement `json:"badges"`
	Leaderboard   []LeaderboardEntry  `json:"leaderboard"`
	ModulesPassed int64               `json:"modulesPassed"`
}

type LeaderboardEntry struct {
	Rank   int    `json:"rank"`
	UserID uint   `json:"userId"`
	User   string `json:"user"`
	Points int    `json:"points"`
	Avatar string `json:"avatar,omitempty"`
}

func (s *AchievementService) pointsPerMinute() int {
	if s.Cfg != nil && s.Cfg.Builder.PointsPerMinute > 0 {
		return s.Cfg.Builder.PointsPerMinute
	}
	return 1
}

// CompleteModule 每个 (用户, 模块) 只发一次积分，重复调用返回 AlreadyCompleted
func (s *AchievementService) CompleteModule(ctx context.Context, userID uint, moduleID string, score *int) (*CompletionResult, error) {
	m, err := s.ModuleRepo.FindByID(ctx, moduleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrModuleNotFound
		}
		return nil, err
	}
	if m.IsHidden {
		return nil, util.ErrModuleNotFound
	}
	course, err := s.CourseRepo.FindByID(ctx, m.CourseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCourseNotFound
		}
		return nil, err
	}
	if !course.IsPublished {
		return nil, util.ErrCourseNotPublished
	}
	courseModules, err := s.ModuleRepo.CountByCourse(ctx, course.ID)
	if err != nil {
		return nil, err
	}

	result := &CompletionResult{Unlocked: []model.Achievement{}}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		completion := &model.ModuleCompletion{
			UserID:       userID,
			ModuleID:     m.ID,
			CourseID:     m.CourseID,
			ModuleType:   m.ModuleType,
			Minutes:      m.DurationMinutes,
			PointsEarned: m.DurationMinutes * s.pointsPerMinute(),
			Score:        score,
		}
		created, err := s.CompletionRepo.Create(tx, completion)
		if err != nil {
			return err
		}
		if !created {
			result.AlreadyCompleted = true
			return nil
		}
		result.Completion = completion
		result.PointsEarned = completion.PointsEarned

		total, err := s.CompletionRepo.CountByUser(tx, userID)
		if err != nil {
			return err
		}
		inCourse, err := s.CompletionRepo.CountByUserAndCourse(tx, userID, course.ID)
		if err != nil {
			return err
		}

		var codes []string
		if total >= 1 {
			codes = append(codes, model.AchievementFirstModule)
		}
		if total >= 10 {
			codes = append(codes, model.AchievementTenModules)
		}
		for _, code := range codes {
			if err := s.grant(tx, userID, code, "", result); err != nil {
				return err
			}
		}
		if courseModules > 0 && inCourse >= courseModules {
			if err := s.grant(tx, userID, model.AchievementCourseComplete, course.ID, result); err != nil {
				return err
			}
		}

		return s.UserRepo.AddPoints(tx, userID, result.PointsEarned)
	})
	if err != nil {
		return nil, err
	}

	if len(result.Unlocked) > 0 {
		logger.Log.Info("Achievements unlocked",
			zap.Uint("userId", userID),
			zap.Int("count", len(result.Unlocked)),
			zap.String("moduleId", moduleID))
	}
	return result, nil
}

func (s *AchievementService) grant(tx *gorm.DB, userID uint, code, courseID string, result *CompletionResult) error {
	def := achievementDefs[code]
	a := &model.Achievement{
		UserID:   userID,
		Code:     code,
		Name:     def.Name,
		Icon:     def.Icon,
		Points:   def.Points,
		CourseID: courseID,
	}
	granted, err := s.AchievementRepo.Grant(tx, a)
	if err != nil || !granted {
		return err
	}
	result.Unlocked = append(result.Unlocked, *a)
	result.PointsEarned += def.Points
	return nil
}

func (s *AchievementService) GetUserAchievements(userID uint) (*UserAchievements, error) {
	user, err := s.UserRepo.FindByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrUserNotFound
		}
		return nil, err
	}

	achievements, err := s.AchievementRepo.FindByUserID(userID)
	if err != nil {
		return nil, err
	}

	leaderboard, err := s.GetLeaderboard(10)
	if err != nil {
		return nil, err
	}

	rank, err := s.UserRepo.RankOf(userID)
	if err != nil {
		return nil, err
	}

	passed, err := s.CompletionRepo.CountByUser(nil, userID)
	if err != nil {
		return nil, err
	}

	level, next := calculateLevel(user.Points)
	return &UserAchievements{
		TotalPoints:   user.Points,
		CurrentLevel:  level,
		NextLevelAt:   next,
		Rank:          rank,
		Badges:        achievements,
		Leaderboard:   leaderboard,
		ModulesPassed: passed,
	}, nil
}

func (s *AchievementService) GetLeaderboard(limit int) ([]LeaderboardEntry, error) {
	users, err := s.UserRepo.FindTopByPoints(limit)
	if err != nil {
		return nil, err
	}

	leaderboard := make([]LeaderboardEntry, len(users))
	for i, user := range users {
		leaderboard[i] = LeaderboardEntry{
			Rank:   i + 1,
			UserID: user.ID,
			User:   user.Name,
			Points: user.Points,
			Avatar: user.Avatar,
		}
	}
	return leaderboard, nil
}

// calculateLevel 每 200 积分升一级
func calculateLevel(points int) (int, int) {
	level := points / 200
	return level, (level + 1) * 200
}
