package scaler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkallio/skycast-go/internal/errors"
)

func testParams() Parameters {
	return Parameters{
		Min:       []float64{0, -0.5},
		Scale:     []float64{0.001, 0.02},
		DataMin:   []float64{0, 25},
		DataMax:   []float64{1000, 75},
		DataRange: []float64{1000, 50},
	}
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	store, err := NewStore(testParams())
	require.NoError(t, err)

	inputs := [][]float64{
		{0, 25},
		{1000, 75},
		{432.5, 61.2},
		{999.999, 25.001},
	}

	for _, x := range inputs {
		scaled, err := store.Forward(x)
		require.NoError(t, err)
		back, err := store.Inverse(scaled)
		require.NoError(t, err)
		for i := range x {
			assert.InEpsilon(t, x[i]+1, back[i]+1, 1e-6, "feature %d", i)
		}
	}
}

func TestExtrapolatesOutsideTrainingRange(t *testing.T) {
	t.Parallel()

	store, err := NewStore(testParams())
	require.NoError(t, err)

	// No clamping: values outside [data_min, data_max] map linearly.
	scaled, err := store.Forward([]float64{2000, 100})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, scaled[0], 1e-9)
	assert.InDelta(t, 1.5, scaled[1], 1e-9)
}

func TestLengthMismatch(t *testing.T) {
	t.Parallel()

	store, err := NewStore(testParams())
	require.NoError(t, err)

	_, err = store.Forward([]float64{1})
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))
}

func TestInverseScalar(t *testing.T) {
	t.Parallel()

	store, err := NewStore(testParams())
	require.NoError(t, err)

	assert.InDelta(t, 500.0, store.InverseScalar(0.5), 1e-9)
}

func TestLoadArtifact(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "scaler.json")
	artifact := `{
		"min_": [0],
		"scale_": [0.001],
		"data_min_": [0],
		"data_max_": [1000],
		"data_range_": [1000]
	}`
	require.NoError(t, os.WriteFile(path, []byte(artifact), 0o644))

	store, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, store.FeatureCount())
}

func TestLoadFailures(t *testing.T) {
	t.Parallel()

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
		require.Error(t, err)
		assert.True(t, errors.HasCategory(err, errors.CategoryConfiguration))
	})

	t.Run("malformed json", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "scaler.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
		_, err := Load(path)
		require.Error(t, err)
		assert.True(t, errors.HasCategory(err, errors.CategoryConfiguration))
	})

	t.Run("zero range", func(t *testing.T) {
		t.Parallel()
		p := testParams()
		p.DataRange[1] = 0
		_, err := NewStore(p)
		require.Error(t, err)
		assert.True(t, errors.HasCategory(err, errors.CategoryConfiguration))
	})

	t.Run("mismatched arrays", func(t *testing.T) {
		t.Parallel()
		p := testParams()
		p.DataMax = p.DataMax[:1]
		_, err := NewStore(p)
		require.Error(t, err)
	})
}
