package service

import (
	"context"
	"sage_edu_backend/internal/model"
	"sage_edu_backend/internal/repository"
	"sage_edu_backend/internal/testutil"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newDashboardService(t *testing.T) (*DashboardService, *gorm.DB) {
	t.Helper()
	courses, db := newCourseService(t)
	return NewDashboardService(
		newAchievementService(db),
		courses,
		repository.NewCompletionRepository(db),
		repository.NewMessageRepository(db),
	), db
}

func TestStudentDashboard(t *testing.T) {
	svc, db := newDashboardService(t)
	student := testutil.CreateUser(t, db, "student", model.Student)
	course, modules := publishedCourse(t, db, model.ModuleContent, model.ModuleQuiz)
	ctx := context.Background()

	_, err := svc.Achievements.CompleteModule(ctx, student.ID, modules[0].ID, nil)
	require.NoError(t, err)
	require.NoError(t, db.Create(&model.Message{SenderID: course.TeacherID, RecipientID: student.ID, Content: "welcome"}).Error)

	d, err := svc.GetStudentDashboard(ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, d.Points)
	assert.Equal(t, 0, d.Level)
	assert.Equal(t, 200, d.NextLevelAt)
	assert.Len(t, d.Achievements, 1)
	assert.Len(t, d.RecentCompletions, 1)
	assert.EqualValues(t, 1, d.UnreadMessages)
	require.Len(t, d.Courses, 1)
	assert.Equal(t, course.ID, d.Courses[0].ID)
	assert.Equal(t, 2, d.Courses[0].ModuleCount)
}

func TestTeacherDashboardTotals(t *testing.T) {
	svc, db := newDashboardService(t)
	teacher := testutil.CreateUser(t, db, "teacher", model.Teacher)
	published := testutil.CreateCourse(t, db, teacher.ID, "Optics")
	draft := testutil.CreateCourse(t, db, teacher.ID, "Waves")
	require.NoError(t, db.Model(published).Update("is_published", true).Error)
	testutil.CreateModule(t, db, published.ID, model.ModuleContent, 0)
	testutil.CreateModule(t, db, published.ID, model.ModuleQuiz, 1)
	testutil.CreateModule(t, db, draft.ID, model.ModuleVideo, 0)

	d, err := svc.GetTeacherDashboard(context.Background(), teacher.ID)
	require.NoError(t, err)
	assert.Len(t, d.Courses, 2)
	assert.Equal(t, 1, d.PublishedCourses)
	assert.Equal(t, 3, d.TotalModules)
	assert.Equal(t, 15, d.TotalMinutes)
	assert.Zero(t, d.UnreadMessages)
}
