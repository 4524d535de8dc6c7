package service

import (
	"context"
	"encoding/json"
	"math"
	"sage_edu_backend/internal/config"
	"sage_edu_backend/internal/model"
	"sage_edu_backend/internal/repository"
	"sage_edu_backend/internal/testutil"
	"sage_edu_backend/internal/util"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newBuilderService(t *testing.T) (*CourseBuilderService, *gorm.DB) {
	t.Helper()
	db := testutil.DB(t)
	cfg := &config.Config{Builder: config.BuilderConfig{DefaultDurationMinutes: 5, PointsPerMinute: 2}}
	svc := NewCourseBuilderService(
		repository.NewCourseModuleRepository(db),
		repository.NewCourseRepository(db),
		nil,
		cfg,
	)
	return svc, db
}

func TestBuilderServiceCreateAndList(t *testing.T) {
	svc, db := newBuilderService(t)
	teacher := testutil.CreateUser(t, db, "teacher", model.Teacher)
	course := testutil.CreateCourse(t, db, teacher.ID, "Algebra")
	ctx := context.Background()

	var changed []string
	svc.OnTimelineChanged(func(courseID string) { changed = append(changed, courseID) })

	created, err := svc.CreateModule(ctx, course.ID, model.ModuleVideo, 2, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "New video Module", created.Title)
	assert.Equal(t, 5, created.DurationMinutes)

	_, err = svc.CreateModule(ctx, course.ID, model.ModuleContent, 0, 15)
	require.NoError(t, err)

	modules, err := svc.ListModules(ctx, course.ID)
	require.NoError(t, err)
	require.Len(t, modules, 2)
	assert.Equal(t, 0, modules[0].TimelinePosition)
	assert.Equal(t, 15, modules[0].DurationMinutes)
	assert.Equal(t, 2, modules[1].TimelinePosition)
	assert.Equal(t, []string{course.ID, course.ID}, changed)
}

func TestBuilderServiceCreateValidation(t *testing.T) {
	svc, _ := newBuilderService(t)
	ctx := context.Background()

	_, err := svc.CreateModule(ctx, "c", "podcast", 0, 0)
	assert.ErrorIs(t, err, util.ErrInvalidModuleType)
	_, err = svc.CreateModule(ctx, "c", model.ModuleQuiz, -1, 0)
	assert.ErrorIs(t, err, util.ErrInvalidPosition)
	_, err = svc.CreateModule(ctx, "c", model.ModuleQuiz, 0, -5)
	assert.ErrorIs(t, err, util.ErrInvalidDuration)
}

func TestBuilderServiceOrdersCollisionsByCreation(t *testing.T) {
	svc, db := newBuilderService(t)
	teacher := testutil.CreateUser(t, db, "teacher", model.Teacher)
	course := testutil.CreateCourse(t, db, teacher.ID, "Algebra")
	first := testutil.CreateModule(t, db, course.ID, model.ModuleQuiz, 1)
	second := testutil.CreateModule(t, db, course.ID, model.ModuleGame, 0)

	moved, err := svc.MoveModule(context.Background(), second.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, moved.TimelinePosition)

	layout, err := svc.Timeline(context.Background(), course.ID)
	require.NoError(t, err)
	require.Len(t, layout.Slots, 3)
	assert.False(t, layout.Slots[0].Occupied())
	require.Len(t, layout.Slots[1].Modules, 2)
	assert.Equal(t, first.ID, layout.Slots[1].Modules[0].ID)
	assert.Equal(t, second.ID, layout.Slots[1].Modules[1].ID)
}

func TestBuilderServiceUpdatePartial(t *testing.T) {
	svc, db := newBuilderService(t)
	teacher := testutil.CreateUser(t, db, "teacher", model.Teacher)
	course := testutil.CreateCourse(t, db, teacher.ID, "Algebra")
	m := testutil.CreateModule(t, db, course.ID, model.ModuleContent, 0)

	title := "Linear equations"
	duration := 20
	updated, err := svc.UpdateModule(context.Background(), m.ID, ModuleUpdate{
		Title:           &title,
		DurationMinutes: &duration,
		Content:         json.RawMessage(`{"body":"x + 1 = 2"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "Linear equations", updated.Title)
	assert.Equal(t, 20, updated.DurationMinutes)
	assert.Equal(t, 0, updated.TimelinePosition)
	assert.JSONEq(t, `{"body":"x + 1 = 2"}`, string(updated.Content))
}

func TestBuilderServiceUpdateValidation(t *testing.T) {
	svc, db := newBuilderService(t)
	teacher := testutil.CreateUser(t, db, "teacher", model.Teacher)
	course := testutil.CreateCourse(t, db, teacher.ID, "Algebra")
	m := testutil.CreateModule(t, db, course.ID, model.ModuleContent, 0)
	ctx := context.Background()

	zero := 0
	_, err := svc.UpdateModule(ctx, m.ID, ModuleUpdate{DurationMinutes: &zero})
	assert.ErrorIs(t, err, util.ErrInvalidDuration)

	negative := -1
	_, err = svc.UpdateModule(ctx, m.ID, ModuleUpdate{TimelinePosition: &negative})
	assert.ErrorIs(t, err, util.ErrInvalidPosition)

	empty := ""
	_, err = svc.UpdateModule(ctx, m.ID, ModuleUpdate{Title: &empty})
	assert.Error(t, err)

	_, err = svc.UpdateModule(ctx, m.ID, ModuleUpdate{Content: json.RawMessage(`{broken`)})
	assert.Error(t, err)

	_, err = svc.MoveModule(ctx, m.ID, -2)
	assert.ErrorIs(t, err, util.ErrInvalidPosition)
}

func TestBuilderServiceDelete(t *testing.T) {
	svc, db := newBuilderService(t)
	teacher := testutil.CreateUser(t, db, "teacher", model.Teacher)
	course := testutil.CreateCourse(t, db, teacher.ID, "Algebra")
	a := testutil.CreateModule(t, db, course.ID, model.ModuleContent, 0)
	b := testutil.CreateModule(t, db, course.ID, model.ModuleQuiz, 1)
	c := testutil.CreateModule(t, db, course.ID, model.ModuleVideo, 2)
	ctx := context.Background()

	require.NoError(t, svc.DeleteModule(ctx, b.ID))
	assert.ErrorIs(t, svc.DeleteModule(ctx, b.ID), util.ErrModuleNotFound)

	modules, err := svc.ListModules(ctx, course.ID)
	require.NoError(t, err)
	require.Len(t, modules, 2)
	assert.Equal(t, a.ID, modules[0].ID)
	assert.Equal(t, c.ID, modules[1].ID)
	assert.Equal(t, 2, modules[1].TimelinePosition)
}

func TestBuilderServiceAuthorize(t *testing.T) {
	svc, db := newBuilderService(t)
	owner := testutil.CreateUser(t, db, "owner", model.Teacher)
	other := testutil.CreateUser(t, db, "other", model.Teacher)
	admin := testutil.CreateUser(t, db, "admin", model.Admin)
	course := testutil.CreateCourse(t, db, owner.ID, "Algebra")
	m := testutil.CreateModule(t, db, course.ID, model.ModuleContent, 0)
	ctx := context.Background()

	_, err := svc.AuthorizeCourse(ctx, course.ID, &util.Claims{UserID: owner.ID, Role: model.Teacher})
	assert.NoError(t, err)
	_, err = svc.AuthorizeCourse(ctx, course.ID, &util.Claims{UserID: other.ID, Role: model.Teacher})
	assert.ErrorIs(t, err, util.ErrPermissionDenied)
	_, err = svc.AuthorizeCourse(ctx, course.ID, &util.Claims{UserID: admin.ID, Role: model.Admin})
	assert.NoError(t, err)
	_, err = svc.AuthorizeCourse(ctx, "missing", &util.Claims{UserID: owner.ID, Role: model.Teacher})
	assert.ErrorIs(t, err, util.ErrCourseNotFound)

	_, err = svc.AuthorizeModule(ctx, m.ID, &util.Claims{UserID: other.ID, Role: model.Teacher})
	assert.ErrorIs(t, err, util.ErrPermissionDenied)
	_, err = svc.AuthorizeModule(ctx, "missing", &util.Claims{UserID: owner.ID, Role: model.Teacher})
	assert.ErrorIs(t, err, util.ErrModuleNotFound)
}

func TestBuilderSessionAgainstDatabase(t *testing.T) {
	svc, db := newBuilderService(t)
	teacher := testutil.CreateUser(t, db, "teacher", model.Teacher)
	course := testutil.CreateCourse(t, db, teacher.ID, "Algebra")
	testutil.CreateModule(t, db, course.ID, model.ModuleContent, 0)
	testutil.CreateModule(t, db, course.ID, model.ModuleVideo, 2)
	ctx := context.Background()

	session := NewBuilderSession(course.ID, svc, svc.DefaultDuration(), svc.MaxPosition())
	require.NoError(t, session.Load(ctx))
	require.NoError(t, session.BeginDragType(model.ModuleQuiz))
	_, created, err := session.Drop(ctx, 1)
	require.NoError(t, err)

	stored, err := svc.ListModules(ctx, course.ID)
	require.NoError(t, err)
	require.Len(t, stored, 3)
	assert.Equal(t, created.ID, stored[1].ID)
	assert.Equal(t, []int{0, 1, 2}, positions(stored))
}

func createCourseWithModules(t *testing.T, db *gorm.DB, types ...model.ModuleType) *model.Course {
	t.Helper()
	teacher := testutil.CreateUser(t, db, "teacher", model.Teacher)
	course := testutil.CreateCourse(t, db, teacher.ID, "Course")
	for i, mt := range types {
		testutil.CreateModule(t, db, course.ID, mt, i)
	}
	return course
}

func TestBuilderServicePlaceModuleRejectsOccupiedSlot(t *testing.T) {
	svc, db := newBuilderService(t)
	teacher := testutil.CreateUser(t, db, "teacher", model.Teacher)
	course := testutil.CreateCourse(t, db, teacher.ID, "Algebra")
	testutil.CreateModule(t, db, course.ID, model.ModuleQuiz, 1)
	ctx := context.Background()

	_, err := svc.PlaceModule(ctx, course.ID, model.ModuleGame, 1, 0)
	assert.ErrorIs(t, err, util.ErrSlotOccupied)

	placed, err := svc.PlaceModule(ctx, course.ID, model.ModuleGame, 4, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, placed.TimelinePosition)
}

func TestBuilderServiceEnforcesPositionLimit(t *testing.T) {
	svc, db := newBuilderService(t)
	svc.Cfg.Builder.MaxPosition = 20
	teacher := testutil.CreateUser(t, db, "teacher", model.Teacher)
	course := testutil.CreateCourse(t, db, teacher.ID, "Algebra")
	m := testutil.CreateModule(t, db, course.ID, model.ModuleQuiz, 1)
	ctx := context.Background()

	_, err := svc.CreateModule(ctx, course.ID, model.ModuleGame, 21, 0)
	assert.ErrorIs(t, err, util.ErrInvalidPosition)
	_, err = svc.PlaceModule(ctx, course.ID, model.ModuleGame, math.MaxInt, 0)
	assert.ErrorIs(t, err, util.ErrInvalidPosition)
	_, err = svc.MoveModule(ctx, m.ID, math.MaxInt)
	assert.ErrorIs(t, err, util.ErrInvalidPosition)
	far := 1_000_000_000
	_, err = svc.UpdateModule(ctx, m.ID, ModuleUpdate{TimelinePosition: &far})
	assert.ErrorIs(t, err, util.ErrInvalidPosition)

	moved, err := svc.MoveModule(ctx, m.ID, 20)
	require.NoError(t, err)
	assert.Equal(t, 20, moved.TimelinePosition)
	assert.Equal(t, 20, svc.MaxPosition())
}
