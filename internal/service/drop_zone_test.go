package service

import (
	"sage_edu_backend/internal/model"
	"sage_edu_backend/internal/util"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activeSnapshot(p DragPayload, hover *int) DragSnapshot {
	return DragSnapshot{Active: true, Payload: &p, HoverPosition: hover}
}

func TestDropZoneAccepts(t *testing.T) {
	empty := DropZone{Position: 1}
	occupied := DropZone{Position: 0, Occupied: true}

	idle := DragSnapshot{}
	assert.False(t, empty.Accepts(idle))
	assert.False(t, occupied.Accepts(idle))

	newModule := activeSnapshot(NewModulePayload(model.ModuleQuiz), nil)
	assert.True(t, empty.Accepts(newModule))
	assert.False(t, occupied.Accepts(newModule))

	existing := activeSnapshot(ExistingModulePayload(mod("m", model.ModuleContent, 2)), nil)
	assert.True(t, empty.Accepts(existing))
	assert.True(t, occupied.Accepts(existing))
}

func TestDropZoneHighlighted(t *testing.T) {
	hover := 1
	zone := DropZone{Position: 1}

	assert.True(t, zone.Highlighted(activeSnapshot(NewModulePayload(model.ModuleQuiz), &hover)))
	assert.False(t, DropZone{Position: 2}.Highlighted(activeSnapshot(NewModulePayload(model.ModuleQuiz), &hover)))
	assert.False(t, DropZone{Position: 1, Occupied: true}.Highlighted(activeSnapshot(NewModulePayload(model.ModuleQuiz), &hover)))
}

func TestResolveDropCreate(t *testing.T) {
	intent, err := ResolveDrop(activeSnapshot(NewModulePayload(model.ModuleQuiz), nil), DropZone{Position: 1})
	require.NoError(t, err)
	assert.Equal(t, Intent{Kind: IntentCreate, ModuleType: model.ModuleQuiz, Position: 1}, intent)
}

func TestResolveDropMove(t *testing.T) {
	snap := activeSnapshot(ExistingModulePayload(mod("m", model.ModuleVideo, 2)), nil)

	intent, err := ResolveDrop(snap, DropZone{Position: 0, Occupied: true})
	require.NoError(t, err)
	assert.Equal(t, IntentMove, intent.Kind)
	assert.Equal(t, "m", intent.ModuleID)
	assert.Equal(t, 0, intent.Position)

	intent, err = ResolveDrop(snap, DropZone{Position: 2, Occupied: true})
	require.NoError(t, err)
	assert.Equal(t, IntentNone, intent.Kind)
}

func TestResolveDropErrors(t *testing.T) {
	_, err := ResolveDrop(DragSnapshot{}, DropZone{Position: 0})
	assert.ErrorIs(t, err, util.ErrNoActiveDrag)

	_, err = ResolveDrop(activeSnapshot(NewModulePayload(model.ModuleQuiz), nil), DropZone{Position: 0, Occupied: true})
	assert.ErrorIs(t, err, util.ErrDropRejected)
}

func TestCardIntents(t *testing.T) {
	m := mod("m", model.ModuleImage, 3)
	assert.Equal(t, IntentSelect, SelectIntent(m).Kind)
	del := DeleteIntent(m)
	assert.Equal(t, IntentDelete, del.Kind)
	assert.Equal(t, "m", del.ModuleID)
}
