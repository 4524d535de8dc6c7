package repository

import (
	"context"
	"sage_edu_backend/internal/model"
	"sage_edu_backend/internal/testutil"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestListByCourseOrdersByPositionThenCreation(t *testing.T) {
	db := testutil.DB(t)
	repo := NewCourseModuleRepository(db)
	teacher := testutil.CreateUser(t, db, "teacher", model.Teacher)
	course := testutil.CreateCourse(t, db, teacher.ID, "History")

	late := testutil.CreateModule(t, db, course.ID, model.ModuleQuiz, 3)
	first := testutil.CreateModule(t, db, course.ID, model.ModuleContent, 1)
	second := testutil.CreateModule(t, db, course.ID, model.ModuleGame, 1)
	hidden := testutil.CreateModule(t, db, course.ID, model.ModuleVideo, 0)
	require.NoError(t, db.Model(hidden).Update("is_hidden", true).Error)

	ctx := context.Background()
	visible, err := repo.ListByCourse(ctx, course.ID, false)
	require.NoError(t, err)
	require.Len(t, visible, 3)
	assert.Equal(t, []string{first.ID, second.ID, late.ID}, []string{visible[0].ID, visible[1].ID, visible[2].ID})

	all, err := repo.ListByCourse(ctx, course.ID, true)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, hidden.ID, all[0].ID)

	count, err := repo.CountByCourse(ctx, course.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)
}

func TestUpdatesAndDeleteReportMissingRows(t *testing.T) {
	db := testutil.DB(t)
	repo := NewCourseModuleRepository(db)
	ctx := context.Background()

	assert.ErrorIs(t, repo.Updates(ctx, "missing", map[string]interface{}{"title": "x"}), gorm.ErrRecordNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, "missing"), gorm.ErrRecordNotFound)
}

func TestFindPositionCollisions(t *testing.T) {
	db := testutil.DB(t)
	repo := NewCourseModuleRepository(db)
	teacher := testutil.CreateUser(t, db, "teacher", model.Teacher)
	course := testutil.CreateCourse(t, db, teacher.ID, "History")
	other := testutil.CreateCourse(t, db, teacher.ID, "Geography")

	testutil.CreateModule(t, db, course.ID, model.ModuleContent, 2)
	testutil.CreateModule(t, db, course.ID, model.ModuleQuiz, 2)
	testutil.CreateModule(t, db, course.ID, model.ModuleGame, 2)
	testutil.CreateModule(t, db, course.ID, model.ModuleVideo, 0)
	testutil.CreateModule(t, db, other.ID, model.ModuleContent, 0)
	deleted := testutil.CreateModule(t, db, other.ID, model.ModuleQuiz, 0)
	require.NoError(t, repo.Delete(context.Background(), deleted.ID))

	collisions, err := repo.FindPositionCollisions(context.Background())
	require.NoError(t, err)
	require.Len(t, collisions, 1)
	assert.Equal(t, PositionCollision{CourseID: course.ID, TimelinePosition: 2, Count: 3}, collisions[0])
}
