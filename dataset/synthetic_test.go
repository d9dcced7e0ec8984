package dataset

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/heliosphere-sim/model"
	"github.com/signalsfoundry/heliosphere-sim/units"
)

func TestSyntheticPresentDay(t *testing.T) {
	p := SyntheticParameters(PresentAge)
	assert.InDelta(t, 121.6, float64(p.HeliopauseNose), 1e-9)
	assert.Equal(t, model.MorphologyCometary, p.Morphology)

	young := SyntheticParameters(100)
	assert.Greater(t, float64(young.HeliopauseNose), float64(p.HeliopauseNose))
	assert.Equal(t, model.MorphologyBubble, young.Morphology)
}

func TestGenerateLoadsBack(t *testing.T) {
	times := UniformEpochs(0, 10000, 11)
	require.Len(t, times, 11)
	assert.Equal(t, units.Megayears(1000), times[1])

	files, err := Generate(times)
	require.NoError(t, err)
	assert.Len(t, files, 2+len(times))

	ld := newInitialized(t, files)
	got, err := ld.LoadParametersAt(context.Background(), times[3])
	require.NoError(t, err)
	want := SyntheticParameters(times[3])
	assert.InDelta(t, float64(want.HeliopauseNose), float64(got.HeliopauseNose), 1e-9)
	assert.False(t, got.Fallback)
}

func TestGenerateRejectsUnordered(t *testing.T) {
	_, err := Generate([]units.Megayears{0, 10, 10})
	assert.Error(t, err)
	_, err = Generate(nil)
	assert.Error(t, err)
}

func TestFilesWriteDir(t *testing.T) {
	files, err := Generate(UniformEpochs(0, 100, 3))
	require.NoError(t, err)
	dir := t.TempDir()
	require.NoError(t, files.WriteDir(dir))

	ld := newInitialized(t, NewDirSource(dir))
	epochs, err := ld.Epochs()
	require.NoError(t, err)
	assert.Equal(t, []units.Megayears{0, 50, 100}, epochs)

	_, err = files.Fetch(context.Background(), "nope.json")
	assert.True(t, errors.Is(err, ErrNotFound))
}
