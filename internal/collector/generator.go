package collector

import (
	"math"
	"math/rand"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/riskgate/riskgate/internal/engine"
	"github.com/riskgate/riskgate/internal/model"
)

// Range bounds a uniformly drawn metric.
type Range struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Profile configures the synthetic deployment generator. Zero values fall
// back to the historical defaults, so a partial YAML profile only overrides
// what it names.
type Profile struct {
	TestPassRate   Range   `yaml:"test_pass_rate"`
	CodeCoverage   Range   `yaml:"code_coverage"`
	CodeComplexity Range   `yaml:"code_complexity"`
	LinesOfCode    Range   `yaml:"lines_of_code"`
	DeployFreq     Range   `yaml:"deployment_frequency"`
	VulnMean       float64 `yaml:"vuln_mean"`
}

// DefaultProfile returns the generation ranges used for the historical
// training corpus.
func DefaultProfile() Profile {
	return Profile{
		TestPassRate:   Range{Min: 0.7, Max: 1.0},
		CodeCoverage:   Range{Min: 0.5, Max: 0.95},
		CodeComplexity: Range{Min: 1, Max: 10},
		LinesOfCode:    Range{Min: 500, Max: 10000},
		DeployFreq:     Range{Min: 1, Max: 30},
		VulnMean:       2,
	}
}

// LoadProfile reads a generator profile from a YAML file, filling unset
// fields from the defaults.
func LoadProfile(path string) (Profile, error) {
	p := DefaultProfile()

	data, err := os.ReadFile(path)
	if err != nil {
		return p, eris.Wrapf(err, "collector: read profile %s", path)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, eris.Wrapf(err, "collector: parse profile %s", path)
	}
	return p.withDefaults(), nil
}

func (p Profile) withDefaults() Profile {
	def := DefaultProfile()
	fill := func(r *Range, d Range) {
		if r.Min == 0 && r.Max == 0 {
			*r = d
		}
	}
	fill(&p.TestPassRate, def.TestPassRate)
	fill(&p.CodeCoverage, def.CodeCoverage)
	fill(&p.CodeComplexity, def.CodeComplexity)
	fill(&p.LinesOfCode, def.LinesOfCode)
	fill(&p.DeployFreq, def.DeployFreq)
	if p.VulnMean == 0 {
		p.VulnMean = def.VulnMean
	}
	return p
}

// Generator produces synthetic deployment observations for training and
// smoke testing. Deterministic for a given seed and profile.
type Generator struct {
	rng     *rand.Rand
	profile Profile
}

// NewGenerator creates a Generator with the given seed and profile.
func NewGenerator(seed int64, profile Profile) *Generator {
	return &Generator{
		rng:     rand.New(rand.NewSource(seed)),
		profile: profile,
	}
}

// Generate produces n deployment observations with post-deployment outcome
// metrics. Success is drawn with probability equal to the derived
// quality_score, so the corpus stays consistent with the scoring formulas.
func (g *Generator) Generate(n int) []model.Deployment {
	deps := make([]model.Deployment, 0, n)
	for i := 0; i < n; i++ {
		rec := model.MetricRecord{
			model.MetricTestPassRate:    g.uniform(g.profile.TestPassRate),
			model.MetricCodeCoverage:    g.uniform(g.profile.CodeCoverage),
			model.MetricSecurityVulns:   float64(g.poisson(g.profile.VulnMean)),
			model.MetricCodeComplexity:  g.uniform(g.profile.CodeComplexity),
			model.MetricLinesOfCode:     math.Floor(g.uniform(g.profile.LinesOfCode)),
			model.MetricDeployFrequency: g.uniform(g.profile.DeployFreq),
		}

		successProb := engine.DeriveFeatures(rec)[model.MetricQualityScore]
		success := g.rng.Float64() < successProb

		if success {
			rec[model.MetricDeploySuccess] = 1
			rec[model.MetricErrorRate] = g.uniform(Range{Min: 0, Max: 0.1})
			rec[model.MetricResponseTime] = g.uniform(Range{Min: 100, Max: 500})
		} else {
			rec[model.MetricDeploySuccess] = 0
			rec[model.MetricErrorRate] = g.uniform(Range{Min: 0.05, Max: 0.3})
			rec[model.MetricResponseTime] = g.uniform(Range{Min: 400, Max: 2000})
		}

		deps = append(deps, model.Deployment{
			BuildNumber: i + 1,
			Metrics:     rec,
		})
	}
	return deps
}

func (g *Generator) uniform(r Range) float64 {
	return r.Min + g.rng.Float64()*(r.Max-r.Min)
}

// poisson draws from a Poisson distribution via Knuth's method; fine for
// the small means used here.
func (g *Generator) poisson(mean float64) int {
	l := math.Exp(-mean)
	k := 0
	p := 1.0
	for {
		p *= g.rng.Float64()
		if p <= l {
			return k
		}
		k++
	}
}
