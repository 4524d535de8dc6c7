package service

import (
	"context"
	"sage_edu_backend/internal/model"
	"sage_edu_backend/internal/repository"
)

const (
	dashboardRecentCompletions = 5
	dashboardCourseCount       = 6
)

type DashboardService struct {
	Achievements   *AchievementService
	Courses        *CourseService
	CompletionRepo *repository.CompletionRepository
	MessageRepo    *repository.MessageRepository
}

func NewDashboardService(
	achievements *AchievementService,
	courses *CourseService,
	completionRepo *repository.CompletionRepository,
	messageRepo *repository.MessageRepository,
) *DashboardService {
	return &DashboardService{
		Achievements:   achievements,
		Courses:        courses,
		CompletionRepo: completionRepo,
		MessageRepo:    messageRepo,
	}
}

type StudentDashboard struct {
	Points            int                      `json:"points"`
	Level             int                      `json:"level"`
	NextLevelAt       int                      `json:"nextLevelAt"`
	Rank              int                      `json:"rank"`
	Achievements      []model.Achievement      `json:"achievements"`
	RecentCompletions []model.ModuleCompletion `json:"recentCompletions"`
	UnreadMessages    int64                    `json:"unreadMessages"`
	Courses           []CourseSummary          `json:"courses"`
}

type TeacherDashboard struct {
	Courses          []CourseSummary `json:"courses"`
	PublishedCourses int             `json:"publishedCourses"`
	TotalModules     int             `json:"totalModules"`
	TotalMinutes     int             `json:"totalMinutes"`
	UnreadMessages   int64           `json:"unreadMessages"`
}

func (s *DashboardService) GetStudentDashboard(ctx context.Context, userID uint) (*StudentDashboard, error) {
	ua, err := s.Achievements.GetUserAchievements(userID)
	if err != nil {
		return nil, err
	}

	recent, err := s.CompletionRepo.ListByUser(userID, dashboardRecentCompletions)
	if err != nil {
		return nil, err
	}

	unread, err := s.MessageRepo.UnreadCount(userID)
	if err != nil {
		return nil, err
	}

	courses, _, err := s.Courses.ListPublished(ctx, "", 1, dashboardCourseCount)
	if err != nil {
		return nil, err
	}

	return &StudentDashboard{
		Points:            ua.TotalPoints,
		Level:             ua.CurrentLevel,
		NextLevelAt:       ua.NextLevelAt,
		Rank:              ua.Rank,
		Achievements:      ua.Badges,
		RecentCompletions: recent,
		UnreadMessages:    unread,
		Courses:           courses,
	}, nil
}

func (s *DashboardService) GetTeacherDashboard(ctx context.Context, teacherID uint) (*TeacherDashboard, error) {
	courses, err := s.Courses.ListForTeacher(ctx, teacherID)
	if err != nil {
		return nil, err
	}

	unread, err := s.MessageRepo.UnreadCount(teacherID)
	if err != nil {
		return nil, err
	}

	d := &TeacherDashboard{Courses: courses, UnreadMessages: unread}
	for _, c := range courses {
		if c.IsPublished {
			d.PublishedCourses++
		}
		d.TotalModules += c.ModuleCount
		d.TotalMinutes += c.TotalMinutes
	}
	return d, nil
}
