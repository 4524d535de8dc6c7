package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModuleTypesOrder(t *testing.T) {
	types := ModuleTypes()
	require.Len(t, types, 6)

	got := make([]ModuleType, 0, len(types))
	for _, info := range types {
		got = append(got, info.Type)
		assert.NotEmpty(t, info.Label)
		assert.NotEmpty(t, info.Icon)
		assert.NotEmpty(t, info.Color)
	}
	assert.Equal(t, []ModuleType{ModuleContent, ModuleQuiz, ModuleGame, ModuleVideo, ModuleImage, ModuleAssessment}, got)
}

func TestModuleTypesReturnsCopy(t *testing.T) {
	types := ModuleTypes()
	types[0].Label = "mutated"

	info, ok := LookupModuleType(ModuleContent)
	require.True(t, ok)
	assert.Equal(t, "Content", info.Label)
}

func TestModuleTypeValid(t *testing.T) {
	assert.True(t, ModuleQuiz.Valid())
	assert.False(t, ModuleType("podcast").Valid())
	assert.False(t, ModuleType("").Valid())
}

func TestDefaultModuleTitle(t *testing.T) {
	assert.Equal(t, "New quiz Module", DefaultModuleTitle(ModuleQuiz))
}
