package family

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTestFamily() *Family {
	return &Family{
		DisplayName:        "SOTA",
		IsActive:           true,
		EvaluationModelId:  "gpt-4o-mini",
		EvaluationProvider: "openai",
		RoutingConfig: RoutingConfig{
			ScoreRanges: []ScoreRange{
				{MinScore: 1, MaxScore: 30, TargetModel: "gpt-4o-mini"},
				{MinScore: 31, MaxScore: 70, TargetModel: "gpt-4o"},
				{MinScore: 71, MaxScore: 100, TargetModel: "claude-sonnet-4"},
			},
			FallbackModel: "gpt-4o",
		},
	}
}

func TestValidateFamilyAccepts(t *testing.T) {
	assert.NoError(t, validateFamily("sota", validTestFamily()))
}

func TestValidateFamilyRejects(t *testing.T) {
	cases := map[string]func(*Family){
		"missing evaluator": func(f *Family) { f.EvaluationModelId = "" },
		"empty ranges":      func(f *Family) { f.RoutingConfig.ScoreRanges = nil },
		"missing fallback":  func(f *Family) { f.RoutingConfig.FallbackModel = "" },
		"family fallback":   func(f *Family) { f.RoutingConfig.FallbackModel = "other/family" },
		"family target":     func(f *Family) { f.RoutingConfig.ScoreRanges[0].TargetModel = "other/family" },
		"zero min score":    func(f *Family) { f.RoutingConfig.ScoreRanges[0].MinScore = 0 },
		"max above 100":     func(f *Family) { f.RoutingConfig.ScoreRanges[2].MaxScore = 101 },
		"inverted bounds":   func(f *Family) { f.RoutingConfig.ScoreRanges[1].MaxScore = 20 },
		"overlap":           func(f *Family) { f.RoutingConfig.ScoreRanges[1].MinScore = 30 },
		"missing target":    func(f *Family) { f.RoutingConfig.ScoreRanges[1].TargetModel = "" },
	}
	for name, mutate := range cases {
		fam := validTestFamily()
		mutate(fam)
		assert.Error(t, validateFamily("sota", fam), name)
	}
}

func TestTargetForScore(t *testing.T) {
	fam := validTestFamily()

	target, ok := fam.TargetForScore(1)
	require.True(t, ok)
	assert.Equal(t, "gpt-4o-mini", target)

	target, ok = fam.TargetForScore(31)
	require.True(t, ok)
	assert.Equal(t, "gpt-4o", target)

	target, ok = fam.TargetForScore(100)
	require.True(t, ok)
	assert.Equal(t, "claude-sonnet-4", target)
}

func TestTargetForScoreGap(t *testing.T) {
	fam := validTestFamily()
	// Configured ranges may leave holes; those scores fall back.
	fam.RoutingConfig.ScoreRanges = []ScoreRange{
		{MinScore: 1, MaxScore: 30, TargetModel: "gpt-4o-mini"},
		{MinScore: 60, MaxScore: 100, TargetModel: "gpt-4o"},
	}
	_, ok := fam.TargetForScore(45)
	assert.False(t, ok)
}

func TestLoadConfig(t *testing.T) {
	doc := `
families:
  makehub-sota:
    display_name: SOTA
    is_active: true
    evaluation_model_id: gpt-4o-mini
    evaluation_provider: openai
    routing_config:
      score_ranges:
        - min_score: 1
          max_score: 50
          target_model: gpt-4o-mini
        - min_score: 51
          max_score: 100
          target_model: gpt-4o
      fallback_model: gpt-4o
      cache_duration_minutes: 10
settings:
  default_cache_duration_minutes: 5
  enable_fallback_routing: true
`
	path := filepath.Join(t.TempDir(), "families.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Contains(t, cfg.Families, "makehub-sota")
	assert.Equal(t, 10, cfg.Families["makehub-sota"].RoutingConfig.CacheDurationMinutes)
	assert.True(t, cfg.Settings.EnableFallbackRouting)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	doc := `
families:
  broken:
    is_active: true
    evaluation_model_id: gpt-4o-mini
    routing_config:
      score_ranges:
        - min_score: 1
          max_score: 100
          target_model: nested/family
      fallback_model: gpt-4o
`
	path := filepath.Join(t.TempDir(), "families.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
