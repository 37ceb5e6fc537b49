// Package family resolves virtual "<ns>/family" model aliases into concrete
// models by scoring task complexity with an evaluator model.
package family

import (
	"os"
	"strings"

	"github.com/Laisky/errors/v2"
	"gopkg.in/yaml.v3"
)

type ScoreRange struct {
	MinScore    int    `yaml:"min_score"`
	MaxScore    int    `yaml:"max_score"`
	TargetModel string `yaml:"target_model"`
	Reason      string `yaml:"reason"`
}

type RoutingConfig struct {
	ScoreRanges          []ScoreRange `yaml:"score_ranges"`
	FallbackModel        string       `yaml:"fallback_model"`
	FallbackProvider     string       `yaml:"fallback_provider"`
	CacheDurationMinutes int          `yaml:"cache_duration_minutes"`
	EvaluationTimeoutMs  int          `yaml:"evaluation_timeout_ms"`
}

type Family struct {
	DisplayName        string        `yaml:"display_name"`
	Description        string        `yaml:"description"`
	IsActive           bool          `yaml:"is_active"`
	EvaluationModelId  string        `yaml:"evaluation_model_id"`
	EvaluationProvider string        `yaml:"evaluation_provider"`
	RoutingConfig      RoutingConfig `yaml:"routing_config"`
}

type Settings struct {
	MaxFamiliesPerUser          int  `yaml:"max_families_per_user"`
	DefaultCacheDurationMinutes int  `yaml:"default_cache_duration_minutes"`
	EnableFallbackRouting       bool `yaml:"enable_fallback_routing"`
}

type Config struct {
	Families map[string]*Family `yaml:"families"`
	Settings Settings           `yaml:"settings"`
}

// LoadConfig reads and validates the family routing document.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read family config %s", path)
	}
	var cfg Config
	if err = yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, errors.Wrap(err, "parse family config")
	}
	for id, fam := range cfg.Families {
		if err = validateFamily(id, fam); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

func validateFamily(id string, fam *Family) error {
	if fam.EvaluationModelId == "" {
		return errors.Errorf("family %s: evaluation_model_id is required", id)
	}
	rc := &fam.RoutingConfig
	if len(rc.ScoreRanges) == 0 {
		return errors.Errorf("family %s: score_ranges must not be empty", id)
	}
	if rc.FallbackModel == "" {
		return errors.Errorf("family %s: fallback_model is required", id)
	}
	if strings.HasSuffix(rc.FallbackModel, "/family") {
		return errors.Errorf("family %s: fallback_model must be a concrete model", id)
	}

	prevMax := 0
	for i, sr := range rc.ScoreRanges {
		if sr.MinScore < 1 || sr.MaxScore > 100 || sr.MinScore > sr.MaxScore {
			return errors.Errorf("family %s: score_ranges[%d] has invalid bounds [%d,%d]",
				id, i, sr.MinScore, sr.MaxScore)
		}
		if sr.MinScore <= prevMax {
			return errors.Errorf("family %s: score_ranges[%d] overlaps or is out of order", id, i)
		}
		prevMax = sr.MaxScore
		if sr.TargetModel == "" {
			return errors.Errorf("family %s: score_ranges[%d] missing target_model", id, i)
		}
		// Targets must not recurse into another family.
		if strings.HasSuffix(sr.TargetModel, "/family") {
			return errors.Errorf("family %s: score_ranges[%d] target must be a concrete model", id, i)
		}
	}
	return nil
}

// TargetForScore maps an evaluator score onto the first containing range.
// Scores outside every range fall back.
func (f *Family) TargetForScore(score int) (string, bool) {
	for _, sr := range f.RoutingConfig.ScoreRanges {
		if score >= sr.MinScore && score <= sr.MaxScore {
			return sr.TargetModel, true
		}
	}
	return "", false
}
