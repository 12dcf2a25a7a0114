package classifier

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskgate/riskgate/internal/engine"
)

func testCoefficients() []float64 {
	return []float64{2.0, 1.5, -0.8, -0.3, 0, 0.01, 3.0, -0.05}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quality.json")

	require.NoError(t, Save(path, testCoefficients(), -1.2))

	clf, err := Load(path)
	require.NoError(t, err)

	p, err := clf.PredictProbability(make([]float64, len(engine.Schema().Names)))
	require.NoError(t, err)
	// Zero features: sigmoid(intercept).
	assert.InDelta(t, 0.23147, p, 1e-4)
}

func TestLoadNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.True(t, eris.Is(err, ErrArtifactNotFound))
}

func TestLoadCorruptArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.False(t, eris.Is(err, ErrArtifactNotFound))
}

func TestLoadRejectsSchemaMismatch(t *testing.T) {
	schema := engine.Schema()

	tests := []struct {
		name   string
		mutate func(a *Artifact)
	}{
		{"wrong version", func(a *Artifact) { a.SchemaVersion = 99 }},
		{"missing feature", func(a *Artifact) {
			a.FeatureNames = a.FeatureNames[:len(a.FeatureNames)-1]
			a.Coefficients = a.Coefficients[:len(a.Coefficients)-1]
		}},
		{"reordered features", func(a *Artifact) {
			a.FeatureNames[0], a.FeatureNames[1] = a.FeatureNames[1], a.FeatureNames[0]
		}},
		{"coefficient count mismatch", func(a *Artifact) {
			a.Coefficients = append(a.Coefficients, 0.5)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			art := Artifact{
				SchemaVersion: schema.Version,
				FeatureNames:  append([]string(nil), schema.Names...),
				Coefficients:  testCoefficients(),
				Intercept:     0,
			}
			tt.mutate(&art)

			err := validate(&art)
			require.Error(t, err)
		})
	}
}

func TestPredictProbabilityBounds(t *testing.T) {
	clf := NewLinear([]float64{10}, 0)

	low, err := clf.PredictProbability([]float64{-100})
	require.NoError(t, err)
	high, err := clf.PredictProbability([]float64{100})
	require.NoError(t, err)

	assert.InDelta(t, 0, low, 1e-9)
	assert.InDelta(t, 1, high, 1e-9)
}

func TestPredictProbabilityLengthMismatch(t *testing.T) {
	clf := NewLinear([]float64{1, 2}, 0)

	_, err := clf.PredictProbability([]float64{1})
	assert.Error(t, err)
}
