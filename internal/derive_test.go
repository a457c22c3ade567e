package internal

import (
	"testing"

	"github.com/chrisconley/auditor-collector/specs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helpers

type componentRuleOption func(*specs.ComponentRuleSpec)

func withOnlyIf(key, matches string) componentRuleOption {
	return func(s *specs.ComponentRuleSpec) { s.OnlyIf = &specs.ConditionSpec{Key: key, Matches: matches} }
}

func withScores(scores ...specs.ScoreRuleSpec) componentRuleOption {
	return func(s *specs.ComponentRuleSpec) { s.Scores = scores }
}

// newTestComponentRule creates a ComponentRuleSpec sourced from key.
// Conditions and scores default to none.
func newTestComponentRule(name, key string, opts ...componentRuleOption) specs.ComponentRuleSpec {
	spec := specs.ComponentRuleSpec{Name: name, Key: key}
	for _, opt := range opts {
		opt(&spec)
	}
	return spec
}

func testJob() specs.AttributesSpec {
	return specs.AttributesSpec{
		"UserId":    "alice",
		"GroupId":   "grp1",
		"StartTime": "2022-01-01T00:00:00",
		"EndTime":   "2022-01-01T01:00:00",
		"NNodes":    "2",
		"NumCPUs":   "64",
		"Partition": "cpu-short",
	}
}

func TestDerive(t *testing.T) {
	t.Run("unconditional component is always included", func(t *testing.T) {
		// Arrange
		config := specs.RuleConfigSpec{
			Components: []specs.ComponentRuleSpec{newTestComponentRule("nodes", "NNodes")},
		}

		// Act
		components, err := DeriveSpec(testJob(), config)

		// Assert
		require.NoError(t, err)
		require.Len(t, components, 1)
		assert.Equal(t, "nodes", components[0].Name)
		assert.Equal(t, int64(2), components[0].Amount)
		assert.Empty(t, components[0].Scores)
	})

	t.Run("non-matching component condition omits the component and its scores", func(t *testing.T) {
		// Arrange
		config := specs.RuleConfigSpec{
			Components: []specs.ComponentRuleSpec{
				newTestComponentRule("gpus", "NNodes",
					withOnlyIf("Partition", "^gpu"),
					withScores(specs.ScoreRuleSpec{Name: "HEPSPEC", Factor: 1.2})),
				newTestComponentRule("cores", "NumCPUs"),
			},
		}

		// Act
		components, err := DeriveSpec(testJob(), config)

		// Assert
		require.NoError(t, err)
		require.Len(t, components, 1)
		assert.Equal(t, "cores", components[0].Name)
	})

	t.Run("score condition selects scores by partition", func(t *testing.T) {
		config := specs.RuleConfigSpec{
			Components: []specs.ComponentRuleSpec{
				newTestComponentRule("cores", "NumCPUs", withScores(
					specs.ScoreRuleSpec{Name: "gpu-score", Factor: 2.5, OnlyIf: &specs.ConditionSpec{Key: "Partition", Matches: "^gpu.*"}},
					specs.ScoreRuleSpec{Name: "HEPSPEC", Factor: 1.0},
				)),
			},
		}

		cpuJob := testJob()
		gpuJob := testJob()
		gpuJob["Partition"] = "gpu-a100"

		cpuComponents, err := DeriveSpec(cpuJob, config)
		require.NoError(t, err)
		gpuComponents, err := DeriveSpec(gpuJob, config)
		require.NoError(t, err)

		require.Len(t, cpuComponents, 1)
		assert.Equal(t, []specs.ScoreSpec{{Name: "HEPSPEC", Factor: 1.0}}, cpuComponents[0].Scores)

		require.Len(t, gpuComponents, 1)
		assert.Equal(t, []specs.ScoreSpec{
			{Name: "gpu-score", Factor: 2.5},
			{Name: "HEPSPEC", Factor: 1.0},
		}, gpuComponents[0].Scores)
	})

	t.Run("output follows configuration order", func(t *testing.T) {
		config := specs.RuleConfigSpec{
			Components: []specs.ComponentRuleSpec{
				newTestComponentRule("cores", "NumCPUs"),
				newTestComponentRule("nodes", "NNodes"),
			},
		}

		components, err := DeriveSpec(testJob(), config)

		require.NoError(t, err)
		require.Len(t, components, 2)
		assert.Equal(t, "cores", components[0].Name)
		assert.Equal(t, "nodes", components[1].Name)
	})

	t.Run("forbidden characters are stripped from component names", func(t *testing.T) {
		config := specs.RuleConfigSpec{
			Components: []specs.ComponentRuleSpec{newTestComponentRule("cores(total)", "NumCPUs")},
		}

		components, err := DeriveSpec(testJob(), config)

		require.NoError(t, err)
		assert.Equal(t, "corestotal", components[0].Name)
	})

	t.Run("unparsable amount names key and value", func(t *testing.T) {
		job := testJob()
		job["NNodes"] = "two"
		config := specs.RuleConfigSpec{
			Components: []specs.ComponentRuleSpec{newTestComponentRule("nodes", "NNodes")},
		}

		_, err := DeriveSpec(job, config)

		require.Error(t, err)
		var parseErr *AmountParseError
		require.ErrorAs(t, err, &parseErr)
		assert.Equal(t, "NNodes", parseErr.Key)
		assert.Equal(t, "two", parseErr.Value)
		assert.True(t, IsJobDataError(err))
	})

	t.Run("negative amount is rejected", func(t *testing.T) {
		job := testJob()
		job["NNodes"] = "-1"
		config := specs.RuleConfigSpec{
			Components: []specs.ComponentRuleSpec{newTestComponentRule("nodes", "NNodes")},
		}

		_, err := DeriveSpec(job, config)

		var parseErr *AmountParseError
		require.ErrorAs(t, err, &parseErr)
	})

	t.Run("missing source attribute is an error", func(t *testing.T) {
		config := specs.RuleConfigSpec{
			Components: []specs.ComponentRuleSpec{newTestComponentRule("gpus", "NumGPUs")},
		}

		_, err := DeriveSpec(testJob(), config)

		var missing *MissingAttributeError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, "NumGPUs", missing.Key)
	})

	t.Run("condition on a missing attribute is an error, not a skip", func(t *testing.T) {
		config := specs.RuleConfigSpec{
			Components: []specs.ComponentRuleSpec{
				newTestComponentRule("nodes", "NNodes", withOnlyIf("Reservation", ".*")),
			},
		}

		components, err := DeriveSpec(testJob(), config)

		assert.Nil(t, components)
		var missing *MissingAttributeError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, "Reservation", missing.Key)
	})

	t.Run("no rules yields no components", func(t *testing.T) {
		components, err := DeriveSpec(testJob(), specs.RuleConfigSpec{})

		require.NoError(t, err)
		assert.Empty(t, components)
	})
}

func TestNewRuleConfig(t *testing.T) {
	t.Run("malformed pattern is a configuration error", func(t *testing.T) {
		_, err := NewRuleConfig(specs.RuleConfigSpec{
			Components: []specs.ComponentRuleSpec{
				newTestComponentRule("nodes", "NNodes", withOnlyIf("Partition", "([a-z")),
			},
		})

		require.Error(t, err)
		assert.True(t, IsConfigError(err))
		assert.Contains(t, err.Error(), "invalid regex expression")
	})

	t.Run("negative score factor is a configuration error", func(t *testing.T) {
		_, err := NewRuleConfig(specs.RuleConfigSpec{
			Components: []specs.ComponentRuleSpec{
				newTestComponentRule("nodes", "NNodes", withScores(specs.ScoreRuleSpec{Name: "HEPSPEC", Factor: -1})),
			},
		})

		require.Error(t, err)
		assert.True(t, IsConfigError(err))
	})

	t.Run("missing source key is a configuration error", func(t *testing.T) {
		_, err := NewRuleConfig(specs.RuleConfigSpec{
			Components: []specs.ComponentRuleSpec{newTestComponentRule("nodes", "")},
		})

		require.Error(t, err)
		assert.True(t, IsConfigError(err))
	})

	t.Run("compiled conditions are kept on the rules", func(t *testing.T) {
		config, err := NewRuleConfig(specs.RuleConfigSpec{
			Components: []specs.ComponentRuleSpec{
				newTestComponentRule("nodes", "NNodes", withOnlyIf("Partition", "^gpu")),
			},
		})

		require.NoError(t, err)
		require.Len(t, config.Components(), 1)
		condition := config.Components()[0].Condition()
		require.NotNil(t, condition)
		assert.Equal(t, "Partition", condition.Key().ToString())
		assert.Equal(t, "^gpu", condition.Pattern())
	})
}

func TestCondition(t *testing.T) {
	condition, err := NewCondition(specs.ConditionSpec{Key: "Partition", Matches: "^gpu.*"})
	require.NoError(t, err)

	for _, tc := range []struct {
		partition string
		want      bool
	}{
		{"cpu-short", false},
		{"gpu-a100", true},
		{"", false},
		{"bigpu", false},
	} {
		t.Run(tc.partition, func(t *testing.T) {
			got, err := condition.Matches(NewAttributes(specs.AttributesSpec{"Partition": tc.partition}))

			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
