package temperature

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseFromPreset(t *testing.T) {
	v, err := BaseFromPreset(PresetCreative)
	require.NoError(t, err)
	assert.Equal(t, 0.7, v)
}

func TestBaseFromPresetUnknown(t *testing.T) {
	_, err := BaseFromPreset(Preset("extreme"))
	assert.Error(t, err)
}

func TestForStageGenerateIsHotterAndCapped(t *testing.T) {
	assert.InDelta(t, 0.91, ForStage(StageGenerate, 0.7), 0.001)
	assert.Equal(t, 0.95, ForStage(StageGenerate, 0.9))
}

func TestForStageCriticIsCoolerAndFloored(t *testing.T) {
	assert.InDelta(t, 0.25, ForStage(StageEvaluate, 0.5), 0.001)
	assert.Equal(t, 0.1, ForStage(StageEvaluate, 0.05))
}

func TestForStageClampedToUnitRange(t *testing.T) {
	assert.Equal(t, 1.0, ForStage(StageAdvocate, 5.0))
	assert.Equal(t, 0.0, ForStage(StageAdvocate, -5.0))
}
