package service

import (
	"context"
	"sage_edu_backend/internal/model"
	"sage_edu_backend/internal/repository"
	"sage_edu_backend/internal/testutil"
	"sage_edu_backend/internal/util"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newCourseService(t *testing.T) (*CourseService, *gorm.DB) {
	t.Helper()
	builder, db := newBuilderService(t)
	return NewCourseService(repository.NewCourseRepository(db), repository.NewCourseModuleRepository(db), builder), db
}

func TestCourseDetailVisibility(t *testing.T) {
	svc, db := newCourseService(t)
	teacher := testutil.CreateUser(t, db, "teacher", model.Teacher)
	student := testutil.CreateUser(t, db, "student", model.Student)
	ctx := context.Background()

	course, err := svc.Create(ctx, teacher.ID, CourseRequest{Title: "Optics", Subject: "Physics"})
	require.NoError(t, err)
	testutil.CreateModule(t, db, course.ID, model.ModuleContent, 0)
	hidden := testutil.CreateModule(t, db, course.ID, model.ModuleQuiz, 1)
	require.NoError(t, db.Model(hidden).Update("is_hidden", true).Error)

	studentClaims := &util.Claims{UserID: student.ID, Role: model.Student}
	teacherClaims := &util.Claims{UserID: teacher.ID, Role: model.Teacher}

	_, err = svc.Detail(ctx, course.ID, studentClaims)
	assert.ErrorIs(t, err, util.ErrCourseNotFound)

	detail, err := svc.Detail(ctx, course.ID, teacherClaims)
	require.NoError(t, err)
	assert.Len(t, detail.Modules, 2)
	assert.Equal(t, 10, detail.TotalMinutes)

	_, err = svc.Publish(ctx, teacherClaims, course.ID, PublishRequest{Publish: true})
	require.NoError(t, err)

	detail, err = svc.Detail(ctx, course.ID, studentClaims)
	require.NoError(t, err)
	require.Len(t, detail.Modules, 1)
	assert.Equal(t, model.ModuleContent, detail.Modules[0].ModuleType)
}

func TestCourseDeleteCascadesModules(t *testing.T) {
	svc, db := newCourseService(t)
	teacher := testutil.CreateUser(t, db, "teacher", model.Teacher)
	other := testutil.CreateUser(t, db, "other", model.Teacher)
	course := testutil.CreateCourse(t, db, teacher.ID, "Optics")
	testutil.CreateModule(t, db, course.ID, model.ModuleContent, 0)
	testutil.CreateModule(t, db, course.ID, model.ModuleVideo, 1)
	ctx := context.Background()

	err := svc.Delete(ctx, &util.Claims{UserID: other.ID, Role: model.Teacher}, course.ID)
	assert.ErrorIs(t, err, util.ErrPermissionDenied)

	require.NoError(t, svc.Delete(ctx, &util.Claims{UserID: teacher.ID, Role: model.Teacher}, course.ID))

	modules, err := svc.ModuleRepo.ListByCourse(ctx, course.ID, true)
	require.NoError(t, err)
	assert.Empty(t, modules)
}

func TestCourseListsIncludeModuleStats(t *testing.T) {
	svc, db := newCourseService(t)
	teacher := testutil.CreateUser(t, db, "teacher", model.Teacher)
	course := testutil.CreateCourse(t, db, teacher.ID, "Optics")
	testutil.CreateModule(t, db, course.ID, model.ModuleContent, 0)
	testutil.CreateModule(t, db, course.ID, model.ModuleVideo, 3)
	ctx := context.Background()

	list, err := svc.ListForTeacher(ctx, teacher.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 2, list[0].ModuleCount)
	assert.Equal(t, 10, list[0].TotalMinutes)

	published, total, err := svc.ListPublished(ctx, "", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
	assert.Empty(t, published)
}

func TestScheduledPublish(t *testing.T) {
	svc, db := newCourseService(t)
	teacher := testutil.CreateUser(t, db, "teacher", model.Teacher)
	claims := &util.Claims{UserID: teacher.ID, Role: model.Teacher}
	ctx := context.Background()

	due, err := svc.Create(ctx, teacher.ID, CourseRequest{Title: "Due"})
	require.NoError(t, err)
	later, err := svc.Create(ctx, teacher.ID, CourseRequest{Title: "Later"})
	require.NoError(t, err)

	future := time.Now().Add(time.Hour)
	scheduled, err := svc.Publish(ctx, claims, later.ID, PublishRequest{PublishAt: &future})
	require.NoError(t, err)
	assert.False(t, scheduled.IsPublished)
	require.NoError(t, db.Model(&model.Course{}).Where("id = ?", due.ID).Update("publish_at", time.Now().Add(-time.Minute)).Error)

	NewPublishScheduler(svc).RunOnce()

	stored, err := svc.CourseRepo.FindByID(ctx, due.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsPublished)
	assert.Nil(t, stored.PublishAt)

	stored, err = svc.CourseRepo.FindByID(ctx, later.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsPublished)
	assert.NotNil(t, stored.PublishAt)
}
