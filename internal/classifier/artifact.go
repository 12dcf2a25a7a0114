package classifier

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/riskgate/riskgate/internal/engine"
)

// ErrArtifactNotFound signals that no artifact exists at the given path.
// Callers distinguish this valid "not present" state from a corrupt or
// incompatible artifact, which is an initialization failure.
var ErrArtifactNotFound = eris.New("classifier: artifact not found")

// Artifact is the on-disk JSON form of a trained model. FeatureNames pins
// the exact feature order used at training time so a mismatched serving
// schema fails at load instead of silently mis-scoring.
type Artifact struct {
	SchemaVersion int       `json:"schema_version"`
	FeatureNames  []string  `json:"feature_names"`
	Coefficients  []float64 `json:"coefficients"`
	Intercept     float64   `json:"intercept"`
}

// Load reads and validates an artifact, returning a ready classifier.
// A missing file yields ErrArtifactNotFound; anything else wrong with the
// artifact is a load failure.
func Load(path string) (*Linear, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrArtifactNotFound
		}
		return nil, eris.Wrapf(err, "classifier: read artifact %s", path)
	}

	var art Artifact
	if err := json.Unmarshal(data, &art); err != nil {
		return nil, eris.Wrapf(err, "classifier: parse artifact %s", path)
	}
	if err := validate(&art); err != nil {
		return nil, eris.Wrapf(err, "classifier: artifact %s", path)
	}

	zap.L().Info("classifier: artifact loaded",
		zap.String("path", path),
		zap.Int("schema_version", art.SchemaVersion),
		zap.Int("features", len(art.FeatureNames)),
	)
	return NewLinear(art.Coefficients, art.Intercept), nil
}

// Save writes an artifact for the current feature schema. Used by tests and
// tooling that produce serving-side models.
func Save(path string, coefficients []float64, intercept float64) error {
	schema := engine.Schema()
	if len(coefficients) != len(schema.Names) {
		return eris.Errorf("classifier: %d coefficients for %d features",
			len(coefficients), len(schema.Names))
	}
	art := Artifact{
		SchemaVersion: schema.Version,
		FeatureNames:  schema.Names,
		Coefficients:  coefficients,
		Intercept:     intercept,
	}
	data, err := json.MarshalIndent(art, "", "  ")
	if err != nil {
		return eris.Wrap(err, "classifier: marshal artifact")
	}
	return eris.Wrapf(os.WriteFile(path, data, 0o644), "classifier: write artifact %s", path)
}

// validate checks the artifact against the serving feature schema.
func validate(art *Artifact) error {
	schema := engine.Schema()
	if art.SchemaVersion != schema.Version {
		return eris.Errorf("schema version %d, serving expects %d",
			art.SchemaVersion, schema.Version)
	}
	if len(art.FeatureNames) != len(schema.Names) {
		return eris.Errorf("%d features, serving expects %d",
			len(art.FeatureNames), len(schema.Names))
	}
	for i, name := range schema.Names {
		if art.FeatureNames[i] != name {
			return eris.Errorf("feature %d is %q, serving expects %q",
				i, art.FeatureNames[i], name)
		}
	}
	if len(art.Coefficients) != len(art.FeatureNames) {
		return eris.Errorf("%d coefficients for %d features",
			len(art.Coefficients), len(art.FeatureNames))
	}
	return nil
}
