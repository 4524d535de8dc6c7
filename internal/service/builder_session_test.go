package service

import (
	"context"
	"errors"
	"math"
	"sage_edu_backend/internal/model"
	"sage_edu_backend/internal/util"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errStoreDown = errors.New("store unavailable")

type fakeStore struct {
	modules []model.CourseModule
	fail    bool
	calls   []string
	nextID  int
}

func (f *fakeStore) ListModules(ctx context.Context, courseID string) ([]model.CourseModule, error) {
	f.calls = append(f.calls, "list")
	if f.fail {
		return nil, errStoreDown
	}
	return append([]model.CourseModule(nil), f.modules...), nil
}

func (f *fakeStore) PlaceModule(ctx context.Context, courseID string, t model.ModuleType, position, durationMinutes int) (*model.CourseModule, error) {
	f.calls = append(f.calls, "create")
	if f.fail {
		return nil, errStoreDown
	}
	for _, m := range f.modules {
		if m.TimelinePosition == position {
			return nil, util.ErrSlotOccupied
		}
	}
	f.nextID++
	m := model.CourseModule{
		CourseID:         courseID,
		ModuleType:       t,
		Title:            model.DefaultModuleTitle(t),
		TimelinePosition: position,
		DurationMinutes:  durationMinutes,
	}
	m.ID = "created-" + string(rune('0'+f.nextID))
	m.CreatedAt = time.Now()
	f.modules = append(f.modules, m)
	return &m, nil
}

func (f *fakeStore) UpdateModule(ctx context.Context, moduleID string, u ModuleUpdate) (*model.CourseModule, error) {
	f.calls = append(f.calls, "update")
	if f.fail {
		return nil, errStoreDown
	}
	for i := range f.modules {
		if f.modules[i].ID == moduleID {
			u.ApplyTo(&f.modules[i])
			m := f.modules[i]
			return &m, nil
		}
	}
	return nil, util.ErrModuleNotFound
}

func (f *fakeStore) MoveModule(ctx context.Context, moduleID string, position int) (*model.CourseModule, error) {
	return f.UpdateModule(ctx, moduleID, ModuleUpdate{TimelinePosition: &position})
}

func (f *fakeStore) DeleteModule(ctx context.Context, moduleID string) error {
	f.calls = append(f.calls, "delete")
	if f.fail {
		return errStoreDown
	}
	for i := range f.modules {
		if f.modules[i].ID == moduleID {
			f.modules = append(f.modules[:i], f.modules[i+1:]...)
			return nil
		}
	}
	return util.ErrModuleNotFound
}

func newSession(t *testing.T, modules ...model.CourseModule) (*BuilderSession, *fakeStore) {
	t.Helper()
	base := time.Now().Add(-time.Hour)
	for i := range modules {
		modules[i].CreatedAt = base.Add(time.Duration(i) * time.Second)
	}
	store := &fakeStore{modules: modules}
	s := NewBuilderSession("course-1", store, 5, 50)
	require.NoError(t, s.Load(context.Background()))
	return s, store
}

func positions(mods []model.CourseModule) []int {
	out := make([]int, len(mods))
	for i, m := range mods {
		out[i] = m.TimelinePosition
	}
	return out
}

func TestSessionDropNewModuleIntoGap(t *testing.T) {
	s, _ := newSession(t, mod("a", model.ModuleContent, 0), mod("b", model.ModuleVideo, 2))

	require.NoError(t, s.BeginDragType(model.ModuleQuiz))
	s.Drag().UpdateHoverPosition(1)
	intent, created, err := s.Drop(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, IntentCreate, intent.Kind)
	require.NotNil(t, created)
	assert.Equal(t, model.ModuleQuiz, created.ModuleType)
	assert.Equal(t, 1, created.TimelinePosition)
	assert.Equal(t, "New quiz Module", created.Title)
	assert.Equal(t, 5, created.DurationMinutes)

	layout := s.Layout()
	require.Len(t, layout.Slots, 4)
	assert.True(t, layout.Slots[1].Occupied())
	assert.False(t, layout.Slots[3].Occupied())
	assert.False(t, s.Drag().Snapshot().Active)
}

func TestSessionCreateRevertsOnStoreFailure(t *testing.T) {
	s, store := newSession(t, mod("a", model.ModuleContent, 0))
	store.fail = true

	_, err := s.Create(context.Background(), model.ModuleGame, 1, 0)
	assert.ErrorIs(t, err, errStoreDown)
	assert.Equal(t, []int{0}, positions(s.Modules()))
}

func TestSessionCreateRejectsOccupiedSlot(t *testing.T) {
	s, store := newSession(t, mod("a", model.ModuleContent, 0))

	_, err := s.Create(context.Background(), model.ModuleGame, 0, 0)
	assert.ErrorIs(t, err, util.ErrSlotOccupied)
	assert.NotContains(t, store.calls, "create")
}

func TestSessionCreateChecksStoreForSlotsFilledElsewhere(t *testing.T) {
	s, store := newSession(t, mod("a", model.ModuleContent, 0))
	// 另一个编辑器在本会话加载后占用了槽位 1
	store.modules = append(store.modules, mod("b", model.ModuleQuiz, 1))

	require.NoError(t, s.BeginDragType(model.ModuleGame))
	_, _, err := s.Drop(context.Background(), 1)
	assert.ErrorIs(t, err, util.ErrSlotOccupied)
	assert.Equal(t, []int{0}, positions(s.Modules()))
	assert.False(t, s.Drag().Snapshot().Active)
}

func TestSessionRejectsPositionBeyondLimit(t *testing.T) {
	s, store := newSession(t, mod("a", model.ModuleContent, 0))
	ctx := context.Background()

	_, err := s.Create(ctx, model.ModuleGame, 51, 0)
	assert.ErrorIs(t, err, util.ErrInvalidPosition)

	_, err = s.Move(ctx, "a", math.MaxInt)
	assert.ErrorIs(t, err, util.ErrInvalidPosition)

	far := 1_000_000_000
	_, err = s.Update(ctx, "a", ModuleUpdate{TimelinePosition: &far})
	assert.ErrorIs(t, err, util.ErrInvalidPosition)

	require.NoError(t, s.BeginDragModule("a"))
	_, _, err = s.Drop(ctx, math.MaxInt)
	assert.ErrorIs(t, err, util.ErrInvalidPosition)
	assert.False(t, s.Drag().Snapshot().Active)

	_, err = s.Move(ctx, "a", 50)
	require.NoError(t, err)
	assert.Equal(t, []string{"list", "update"}, store.calls)
}

func TestSessionMoveKeepsCollision(t *testing.T) {
	s, _ := newSession(t, mod("a", model.ModuleContent, 0), mod("b", model.ModuleVideo, 1))

	require.NoError(t, s.BeginDragModule("b"))
	intent, moved, err := s.Drop(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, IntentMove, intent.Kind)
	assert.Equal(t, 0, moved.TimelinePosition)

	layout := s.Layout()
	require.Len(t, layout.Slots, 2)
	require.Len(t, layout.Slots[0].Modules, 2)
	assert.Equal(t, "a", layout.Slots[0].Modules[0].ID)
	assert.Equal(t, "b", layout.Slots[0].Modules[1].ID)
}

func TestSessionMoveRevertsOnStoreFailure(t *testing.T) {
	s, store := newSession(t, mod("a", model.ModuleContent, 0), mod("b", model.ModuleVideo, 3))
	store.fail = true

	_, err := s.Move(context.Background(), "b", 1)
	assert.ErrorIs(t, err, errStoreDown)

	m, ok := s.Find("b")
	require.True(t, ok)
	assert.Equal(t, 3, m.TimelinePosition)
}

func TestSessionDropOnOwnSlotIsNoop(t *testing.T) {
	s, store := newSession(t, mod("a", model.ModuleContent, 0))

	require.NoError(t, s.BeginDragModule("a"))
	intent, m, err := s.Drop(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, IntentNone, intent.Kind)
	assert.Nil(t, m)
	assert.Equal(t, []string{"list"}, store.calls)
}

func TestSessionDropWithoutDrag(t *testing.T) {
	s, _ := newSession(t)
	_, _, err := s.Drop(context.Background(), 0)
	assert.ErrorIs(t, err, util.ErrNoActiveDrag)
}

func TestSessionDeleteLeavesGap(t *testing.T) {
	s, _ := newSession(t,
		mod("a", model.ModuleContent, 0),
		mod("b", model.ModuleQuiz, 1),
		mod("c", model.ModuleVideo, 2),
	)

	_, err := s.Apply(context.Background(), DeleteIntent(mod("b", model.ModuleQuiz, 1)))
	require.NoError(t, err)

	assert.Equal(t, []int{0, 2}, positions(s.Modules()))
	layout := s.Layout()
	require.Len(t, layout.Slots, 4)
	assert.False(t, layout.Slots[1].Occupied())
}

func TestSessionDeleteRevertsOnStoreFailure(t *testing.T) {
	s, store := newSession(t, mod("a", model.ModuleContent, 0), mod("b", model.ModuleQuiz, 1))
	store.fail = true

	err := s.Delete(context.Background(), "a")
	assert.ErrorIs(t, err, errStoreDown)
	assert.Equal(t, []int{0, 1}, positions(s.Modules()))
}

func TestSessionUpdateRevertsOnStoreFailure(t *testing.T) {
	s, store := newSession(t, mod("a", model.ModuleContent, 0))
	store.fail = true

	title := "Fractions"
	_, err := s.Update(context.Background(), "a", ModuleUpdate{Title: &title})
	assert.ErrorIs(t, err, errStoreDown)

	m, _ := s.Find("a")
	assert.Equal(t, "New content Module", m.Title)

	store.fail = false
	updated, err := s.Update(context.Background(), "a", ModuleUpdate{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Fractions", updated.Title)
}

func TestSessionUpdateRejectsInvalidDuration(t *testing.T) {
	s, store := newSession(t, mod("a", model.ModuleContent, 0))
	zero := 0

	_, err := s.Update(context.Background(), "a", ModuleUpdate{DurationMinutes: &zero})
	assert.ErrorIs(t, err, util.ErrInvalidDuration)
	assert.Equal(t, []string{"list"}, store.calls)
}

func TestSessionSelectIntent(t *testing.T) {
	s, _ := newSession(t, mod("a", model.ModuleContent, 0))

	m, err := s.Apply(context.Background(), SelectIntent(mod("a", model.ModuleContent, 0)))
	require.NoError(t, err)
	assert.Equal(t, "a", m.ID)

	_, err = s.Apply(context.Background(), Intent{Kind: IntentSelect, ModuleID: "missing"})
	assert.ErrorIs(t, err, util.ErrModuleNotFound)
}
